// Package gateway speaks the Alipay OpenAPI page-pay protocol: signed
// requests, the auto-submit payment form, callback verification and trade
// queries.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"carrental-backend/internal/utils"
)

const (
	methodPagePay    = "alipay.trade.page.pay"
	methodTradeQuery = "alipay.trade.query"

	timestampLayout = "2006-01-02 15:04:05"

	TradeSuccess  = "TRADE_SUCCESS"
	TradeFinished = "TRADE_FINISHED"

	codeSuccess       = "10000"
	subCodeNotExist   = "ACQ.TRADE_NOT_EXIST"
	queryResponseNode = "alipay_trade_query_response"
)

// Config is immutable once the client is built.
type Config struct {
	AppID         string
	GatewayURL    string
	PrivateKey    string
	PublicKey     string
	NotifyURL     string
	ReturnURL     string
	Charset       string
	SubjectPrefix string
	ProductCode   string
	Timeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.Charset == "" {
		c.Charset = "utf-8"
	}
	if c.ProductCode == "" {
		c.ProductCode = "FAST_INSTANT_TRADE_PAY"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "CarRental-"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

type Client struct {
	cfg    Config
	signer *signer
	http   *http.Client
	now    func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.AppID == "" || cfg.GatewayURL == "" {
		return nil, errors.New("gateway app id and url are required")
	}
	s, err := newSigner(cfg.PrivateKey, cfg.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		signer: s,
		http:   &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}, nil
}

func (c *Client) AppID() string {
	return c.cfg.AppID
}

func (c *Client) endpoint() string {
	sep := "?"
	if strings.Contains(c.cfg.GatewayURL, "?") {
		sep = "&"
	}
	return c.cfg.GatewayURL + sep + "charset=" + url.QueryEscape(c.cfg.Charset)
}

func (c *Client) signedParams(method string, biz any, extra map[string]string) (map[string]string, error) {
	content, err := json.Marshal(biz)
	if err != nil {
		return nil, fmt.Errorf("failed to encode biz_content: %w", err)
	}
	params := map[string]string{
		"app_id":      c.cfg.AppID,
		"method":      method,
		"format":      "JSON",
		"charset":     c.cfg.Charset,
		"sign_type":   "RSA2",
		"timestamp":   c.now().Format(timestampLayout),
		"version":     "1.0",
		"biz_content": string(content),
	}
	for k, v := range extra {
		params[k] = v
	}

	sig, err := c.signer.sign(signContent(params, excludeRequest))
	if err != nil {
		return nil, err
	}
	params["sign"] = sig
	return params, nil
}

type pagePayBiz struct {
	OutTradeNo  string `json:"out_trade_no"`
	ProductCode string `json:"product_code"`
	TotalAmount string `json:"total_amount"`
	Subject     string `json:"subject"`
}

// PagePayForm renders the auto-submitting HTML form that hands the browser
// over to the gateway.
func (c *Client) PagePayForm(orderNo string, amountCents int64) (string, error) {
	params, err := c.signedParams(methodPagePay, pagePayBiz{
		OutTradeNo:  orderNo,
		ProductCode: c.cfg.ProductCode,
		TotalAmount: utils.FormatCents(amountCents),
		Subject:     c.cfg.SubjectPrefix + orderNo,
	}, map[string]string{
		"notify_url": c.cfg.NotifyURL,
		"return_url": c.cfg.ReturnURL,
	})
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "<form id=\"alipaysubmit\" name=\"alipaysubmit\" action=\"%s\" method=\"POST\">\n", html.EscapeString(c.endpoint()))
	for _, k := range keys {
		if params[k] == "" {
			continue
		}
		fmt.Fprintf(&b, "<input type=\"hidden\" name=\"%s\" value=\"%s\"/>\n", html.EscapeString(k), html.EscapeString(params[k]))
	}
	b.WriteString("<input type=\"submit\" value=\"Pay\" style=\"display:none\"/>\n</form>\n")
	b.WriteString("<script>document.forms['alipaysubmit'].submit();</script>")
	return b.String(), nil
}

// Callback is a verified notify or return callback.
type Callback struct {
	NotifyID    string
	AppID       string
	OutTradeNo  string
	TradeNo     string
	TradeStatus string
	TotalAmount string
}

// Succeeded reports whether the trade reached a paid state.
func (cb *Callback) Succeeded() bool {
	return cb.TradeStatus == TradeSuccess || cb.TradeStatus == TradeFinished
}

func flatten(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for k := range params {
		out[k] = params.Get(k)
	}
	return out
}

// ParseCallback verifies the signature and extracts the trade fields. A bad
// signature wraps domain.ErrSignature.
func (c *Client) ParseCallback(params url.Values) (*Callback, error) {
	flat := flatten(params)
	if err := c.signer.verifyParams(flat); err != nil {
		return nil, err
	}
	return &Callback{
		NotifyID:    flat["notify_id"],
		AppID:       flat["app_id"],
		OutTradeNo:  flat["out_trade_no"],
		TradeNo:     flat["trade_no"],
		TradeStatus: flat["trade_status"],
		TotalAmount: flat["total_amount"],
	}, nil
}

type TradeQueryResult struct {
	Found       bool
	OutTradeNo  string
	TradeNo     string
	TradeStatus string
	TotalAmount string
}

func (r *TradeQueryResult) Succeeded() bool {
	return r.Found && (r.TradeStatus == TradeSuccess || r.TradeStatus == TradeFinished)
}

type tradeQueryResponse struct {
	Code        string `json:"code"`
	Msg         string `json:"msg"`
	SubCode     string `json:"sub_code"`
	SubMsg      string `json:"sub_msg"`
	OutTradeNo  string `json:"out_trade_no"`
	TradeNo     string `json:"trade_no"`
	TradeStatus string `json:"trade_status"`
	TotalAmount string `json:"total_amount"`
}

// QueryTrade asks the gateway for the state of orderNo. A trade the gateway
// never saw comes back with Found false.
func (c *Client) QueryTrade(ctx context.Context, orderNo string) (*TradeQueryResult, error) {
	params, err := c.signedParams(methodTradeQuery, map[string]string{"out_trade_no": orderNo}, nil)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build trade query: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset="+c.cfg.Charset)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trade query failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read trade query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trade query returned status %d", resp.StatusCode)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode trade query response: %w", err)
	}
	node, ok := envelope[queryResponseNode]
	if !ok {
		return nil, fmt.Errorf("trade query response has no %s", queryResponseNode)
	}
	var sig string
	if raw, ok := envelope["sign"]; ok {
		if err := json.Unmarshal(raw, &sig); err != nil {
			return nil, fmt.Errorf("failed to decode trade query sign: %w", err)
		}
	}
	if err := c.signer.verifyContent(string(node), sig); err != nil {
		return nil, err
	}

	var r tradeQueryResponse
	if err := json.Unmarshal(node, &r); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", queryResponseNode, err)
	}
	if r.Code != codeSuccess {
		if r.SubCode == subCodeNotExist {
			return &TradeQueryResult{OutTradeNo: orderNo}, nil
		}
		return nil, fmt.Errorf("trade query rejected: %s %s (%s)", r.Code, r.SubCode, r.SubMsg)
	}
	return &TradeQueryResult{
		Found:       true,
		OutTradeNo:  r.OutTradeNo,
		TradeNo:     r.TradeNo,
		TradeStatus: r.TradeStatus,
		TotalAmount: r.TotalAmount,
	}, nil
}

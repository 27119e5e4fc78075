// Package telematics pushes vehicle status changes to in-vehicle units over
// MQTT so a unit can lock or unlock itself when its car is rented or returned.
package telematics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"carrental-backend/internal/logger"
	"carrental-backend/internal/service"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	PublishTimeout time.Duration
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Publisher struct {
	client  publisher
	conn    mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

type statusMessage struct {
	VehicleID   int64     `json:"vehicle_id"`
	PlateNumber string    `json:"plate_number"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	FromCode    int       `json:"from_code"`
	ToCode      int       `json:"to_code"`
	OrderID     int64     `json:"order_id,omitempty"`
	At          time.Time `json:"at"`
}

// Connect dials the broker and returns a publisher that reconnects on its own.
func Connect(cfg Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", "broker", cfg.BrokerURL, "error", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.BrokerURL, err)
	}

	p := newPublisher(client, cfg)
	p.conn = client
	return p, nil
}

func newPublisher(client publisher, cfg Config) *Publisher {
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Publisher{
		client:  client,
		prefix:  strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:     cfg.QoS,
		timeout: timeout,
	}
}

// Topic is <prefix>/vehicles/<id>/status.
func (p *Publisher) Topic(vehicleID int64) string {
	t := fmt.Sprintf("vehicles/%d/status", vehicleID)
	if p.prefix == "" {
		return t
	}
	return p.prefix + "/" + t
}

// PublishVehicleStatus sends a retained message so a unit that reconnects
// picks up the latest state.
func (p *Publisher) PublishVehicleStatus(ctx context.Context, change service.VehicleChange) error {
	payload, err := json.Marshal(statusMessage{
		VehicleID:   change.VehicleID,
		PlateNumber: change.PlateNumber,
		From:        change.From.String(),
		To:          change.To.String(),
		FromCode:    int(change.From),
		ToCode:      int(change.To),
		OrderID:     change.OrderID,
		At:          change.At,
	})
	if err != nil {
		return err
	}

	topic := p.Topic(change.VehicleID)
	logger.ExternalServiceCall("mqtt", "publish", "topic", topic)
	token := p.client.Publish(topic, p.qos, true, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !token.WaitTimeout(timeout) {
		err = fmt.Errorf("timed out publishing to %s", topic)
	} else {
		err = token.Error()
	}
	logger.ExternalServiceResult("mqtt", "publish", err, "topic", topic)
	return err
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Disconnect(250)
	}
}

package http

import (
	"net/http"

	"carrental-backend/internal/security"
	"carrental-backend/internal/service"
	"carrental-backend/internal/storage"

	"github.com/gorilla/mux"
)

// Handler serves the REST API
type Handler struct {
	orders     service.OrderService
	payments   service.PaymentService
	afterSales service.AfterSalesService
	coupons    service.CouponService
	evidence   storage.EvidenceStore
}

// NewHandler creates the API handler. evidence may be nil, which disables uploads.
func NewHandler(
	orders service.OrderService,
	payments service.PaymentService,
	afterSales service.AfterSalesService,
	coupons service.CouponService,
	evidence storage.EvidenceStore,
) *Handler {
	return &Handler{
		orders:     orders,
		payments:   payments,
		afterSales: afterSales,
		coupons:    coupons,
		evidence:   evidence,
	}
}

// NewRouter registers every route. Route names key the security levels in
// config.EndpointSecurityConfig.
func NewRouter(h *Handler, tokens security.TokenManager) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware, identityMiddleware(tokens))

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/orders/quote", h.QuoteOrder).Methods(http.MethodPost).Name("orders.quote")
	api.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost).Name("orders.create")
	api.HandleFunc("/orders", h.ListMyOrders).Methods(http.MethodGet).Name("orders.list")
	api.HandleFunc("/orders/{id:[0-9]+}", h.GetOrder).Methods(http.MethodGet).Name("orders.get")
	api.HandleFunc("/orders/{id:[0-9]+}/status", h.GetOrderStatus).Methods(http.MethodGet).Name("orders.status")
	api.HandleFunc("/orders/{id:[0-9]+}/cancel", h.CancelOrder).Methods(http.MethodPost).Name("orders.cancel")
	api.HandleFunc("/orders/{id:[0-9]+}/review", h.ReviewOrder).Methods(http.MethodPost).Name("orders.review")
	api.HandleFunc("/orders/{id:[0-9]+}/payment-form", h.PaymentForm).Methods(http.MethodPost).Name("orders.payment_form")

	api.HandleFunc("/coupons/{id:[0-9]+}/claim", h.ClaimCoupon).Methods(http.MethodPost).Name("coupons.claim")

	api.HandleFunc("/after-sales", h.OpenCase).Methods(http.MethodPost).Name("after_sales.open")
	api.HandleFunc("/after-sales", h.ListMyCases).Methods(http.MethodGet).Name("after_sales.list")
	api.HandleFunc("/after-sales/{id:[0-9]+}", h.GetCase).Methods(http.MethodGet).Name("after_sales.get")

	api.HandleFunc("/evidence", h.UploadEvidence).Methods(http.MethodPost).Name("after_sales.evidence")
	api.HandleFunc("/evidence", h.DownloadEvidence).Methods(http.MethodGet).Name("evidence.download")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/orders", h.ListAllOrders).Methods(http.MethodGet).Name("admin.orders.list")
	admin.HandleFunc("/orders/stats", h.OrderStats).Methods(http.MethodGet).Name("admin.orders.stats")
	admin.HandleFunc("/orders/{id:[0-9]+}/approve", h.ApproveOrder).Methods(http.MethodPost).Name("admin.orders.approve")
	admin.HandleFunc("/orders/{id:[0-9]+}/reject", h.RejectOrder).Methods(http.MethodPost).Name("admin.orders.reject")
	admin.HandleFunc("/orders/{id:[0-9]+}/pickup", h.RecordPickup).Methods(http.MethodPost).Name("admin.orders.pickup")
	admin.HandleFunc("/orders/{id:[0-9]+}/return", h.RecordReturn).Methods(http.MethodPost).Name("admin.orders.return")
	admin.HandleFunc("/orders/{id:[0-9]+}/complete", h.CompleteOrder).Methods(http.MethodPost).Name("admin.orders.complete")
	admin.HandleFunc("/after-sales", h.ListCases).Methods(http.MethodGet).Name("admin.after_sales.list")
	admin.HandleFunc("/after-sales/{id:[0-9]+}/audit", h.AuditCase).Methods(http.MethodPost).Name("admin.after_sales.audit")

	api.HandleFunc("/payments/alipay/notify", h.AlipayNotify).Methods(http.MethodPost).Name("payments.notify")
	api.HandleFunc("/payments/alipay/return", h.AlipayReturn).Methods(http.MethodGet).Name("payments.return")

	return r
}

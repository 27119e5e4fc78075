package http

import (
	"net/http"

	"carrental-backend/internal/domain"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type reviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

type statusResponse struct {
	OrderID int64              `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
	Label   string             `json:"label"`
}

type paymentFormResponse struct {
	OrderID int64  `json:"order_id"`
	Form    string `json:"form"`
}

func (h *Handler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	quote, err := h.orders.Quote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.orders.Create(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, size, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, total, err := h.orders.ListMine(r.Context(), id, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Order]{Items: orders, Total: total, Page: page, PageSize: size})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		return h.orders.Get(r.Context(), id, orderID)
	})
}

func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		st, err := h.orders.GetStatus(r.Context(), id, orderID)
		if err != nil {
			return nil, err
		}
		return statusResponse{OrderID: orderID, Status: st, Label: st.String()}, nil
	})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		var req reasonRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			return nil, err
		}
		return h.orders.Cancel(r.Context(), id, orderID, req.Reason)
	})
}

func (h *Handler) ReviewOrder(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		var req reviewRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.orders.Review(r.Context(), id, orderID, req.Rating, req.Text)
	})
}

func (h *Handler) PaymentForm(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		form, err := h.payments.CreatePaymentForm(r.Context(), id, orderID)
		if err != nil {
			return nil, err
		}
		return paymentFormResponse{OrderID: orderID, Form: form}, nil
	})
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, size, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := domain.OrderFilter{Page: page, PageSize: size}
	if raw := r.URL.Query().Get("status"); raw != "" {
		v, err := queryInt(r, "status", 0)
		if err != nil {
			writeError(w, r, err)
			return
		}
		st := domain.OrderStatus(v)
		filter.Status = &st
	}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		v, err := queryInt(r, "user_id", 0)
		if err != nil {
			writeError(w, r, err)
			return
		}
		filter.UserID = &v
	}

	orders, total, err := h.orders.ListAll(r.Context(), id, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Order]{Items: orders, Total: total, Page: page, PageSize: size})
}

func (h *Handler) OrderStats(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.orders.Stats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		return h.orders.Approve(r.Context(), id, orderID)
	})
}

func (h *Handler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		var req reasonRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.orders.Reject(r.Context(), id, orderID, req.Reason)
	})
}

func (h *Handler) RecordPickup(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		var rec domain.PickupRecord
		if err := decodeJSON(r, &rec); err != nil {
			return nil, err
		}
		return h.orders.RecordPickup(r.Context(), id, orderID, rec)
	})
}

func (h *Handler) RecordReturn(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		var rec domain.ReturnRecord
		if err := decodeJSON(r, &rec); err != nil {
			return nil, err
		}
		return h.orders.RecordReturn(r.Context(), id, orderID, rec)
	})
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, orderID int64) (any, error) {
		return h.orders.Complete(r.Context(), id, orderID)
	})
}

func (h *Handler) ClaimCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	couponID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	grant, err := h.coupons.Claim(r.Context(), id, couponID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

// withID resolves the actor and {id}, runs fn and writes its result
func (h *Handler) withID(w http.ResponseWriter, r *http.Request, fn func(id domain.Identity, entityID int64) (any, error)) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entityID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := fn(id, entityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

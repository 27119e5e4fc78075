package http

import (
	"net/http"

	"carrental-backend/internal/domain"
)

func (h *Handler) OpenCase(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.OpenCaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.afterSales.Open(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListMyCases(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cases, err := h.afterSales.ListMine(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.AfterSalesCase]{Items: cases, Total: int32(len(cases)), Page: 1, PageSize: int32(len(cases))})
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, caseID int64) (any, error) {
		return h.afterSales.Get(r.Context(), id, caseID)
	})
}

func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
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
	var status *domain.AfterSalesStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		v, err := queryInt(r, "status", 0)
		if err != nil {
			writeError(w, r, err)
			return
		}
		st := domain.AfterSalesStatus(v)
		status = &st
	}
	cases, total, err := h.afterSales.ListByStatus(r.Context(), id, status, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.AfterSalesCase]{Items: cases, Total: total, Page: page, PageSize: size})
}

func (h *Handler) AuditCase(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id domain.Identity, caseID int64) (any, error) {
		var req domain.AuditRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.afterSales.Audit(r.Context(), id, caseID, req)
	})
}

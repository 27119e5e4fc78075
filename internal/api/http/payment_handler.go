package http

import (
	"net/http"

	"carrental-backend/internal/logger"
)

// AlipayNotify handles the gateway's asynchronous notification. The gateway
// only reads the plain-text body: "success" stops its retries.
func (h *Handler) AlipayNotify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logger.Warn("Malformed gateway notification", "error", err)
		writePlain(w, "failure")
		return
	}
	params := r.PostForm
	if len(params) == 0 {
		params = r.Form
	}
	writePlain(w, h.payments.HandleNotify(r.Context(), params))
}

// AlipayReturn handles the browser redirect after payment and forwards the
// customer to the front end
func (h *Handler) AlipayReturn(w http.ResponseWriter, r *http.Request) {
	target := h.payments.HandleReturn(r.Context(), r.URL.Query())
	http.Redirect(w, r, target, http.StatusFound)
}

func writePlain(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

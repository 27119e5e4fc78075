package http

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

var errEvidenceDisabled = errors.New("evidence storage is not configured")

type evidenceResponse struct {
	Key string `json:"key"`
}

// UploadEvidence stores the raw request body as a photo and returns its key,
// which callers attach to pickup, return or after-sales records
func (h *Handler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	if h.evidence == nil {
		writeError(w, r, errEvidenceDisabled)
		return
	}
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r, domain.Validationf("missing or invalid content type"))
		return
	}

	key, err := h.evidence.Save(r.Context(), id.UserID, contentType, r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, evidenceResponse{Key: key})
}

// DownloadEvidence streams a stored photo to its uploader or to staff
func (h *Handler) DownloadEvidence(w http.ResponseWriter, r *http.Request) {
	if h.evidence == nil {
		writeError(w, r, errEvidenceDisabled)
		return
	}
	id, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := r.URL.Query().Get("key")
	owner, err := h.evidence.Owner(key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if owner != id.UserID && !id.IsStaff() {
		writeError(w, r, domain.ErrForbidden)
		return
	}

	file, contentType, err := h.evidence.Open(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, file); err != nil {
		logger.Warn("Failed to stream evidence", "key", key, "error", err)
	}
}

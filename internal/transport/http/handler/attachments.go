package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/go-classroom-api/internal/infrastructure/blob"
)

// AttachmentHandler serves stored attachments by their stored name.
type AttachmentHandler struct {
	store blob.Store
}

func NewAttachmentHandler(store blob.Store) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// Get resolves the attachment's permanent location. The local driver serves
// the file directly; the S3 driver resolves to a presigned URL and redirects.
func (h *AttachmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	location, err := h.store.Open(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		http.Redirect(w, r, location, http.StatusFound)
		return
	}
	http.ServeFile(w, r, location)
}

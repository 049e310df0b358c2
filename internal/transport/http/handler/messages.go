package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/go-classroom-api/internal/application/dispatch"
	"github.com/go-classroom-api/internal/domain"
	"github.com/go-classroom-api/internal/infrastructure/blob"
	"github.com/go-classroom-api/internal/transport/http/middleware"
)

// MessageHandler handles message dispatch and history endpoints. Send accepts
// either a JSON body with content or a multipart form with a content field and
// an optional file part.
type MessageHandler struct {
	svc      dispatch.Service
	tempDir  string
	maxBytes int64
	logger   *zap.Logger
}

func NewMessageHandler(svc dispatch.Service, tempDir string, maxBytes int64, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, tempDir: tempDir, maxBytes: maxBytes, logger: logger}
}

func (h *MessageHandler) SendToGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	in, err := h.parseSendInput(w, r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.svc.SendToGroup(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		h.discardUpload(in.Upload)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DispatchEnvelope{Message: res.Message, Notification: res.Notification})
}

func (h *MessageHandler) SendToUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	in, err := h.parseSendInput(w, r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.svc.SendToUser(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		h.discardUpload(in.Upload)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DispatchEnvelope{Message: res.Message, Notification: res.Notification})
}

func (h *MessageHandler) ListGroupMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	group, messages, err := h.svc.ListGroupMessages(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GroupHistoryEnvelope{Group: group, Messages: messages})
}

func (h *MessageHandler) ListUserMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	messages, err := h.svc.ListUserMessages(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	msg, err := h.svc.GetMessage(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// discardUpload removes a spooled file whose send was rejected. Storage may
// already have consumed the temp path; a missing file means nothing was left
// behind.
func (h *MessageHandler) discardUpload(up *blob.Upload) {
	if up == nil {
		return
	}
	if err := os.Remove(up.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("spooled upload left behind",
			zap.String("path", up.TempPath),
			zap.Error(err),
		)
	}
}

// parseSendInput reads either body shape into a SendInput. Multipart file
// parts are spooled to the temp dir so storage can take over with a rename.
func (h *MessageHandler) parseSendInput(w http.ResponseWriter, r *http.Request) (dispatch.SendInput, error) {
	// 1 MiB of headroom over the attachment limit for the form framing.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			if isBodyTooLarge(err) {
				return dispatch.SendInput{}, fmt.Errorf("request body exceeds limit: %w", domain.ErrPayloadTooLarge)
			}
			return dispatch.SendInput{}, fmt.Errorf("invalid request body: %w", domain.ErrValidation)
		}
		return dispatch.SendInput{Content: body.Content}, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if isBodyTooLarge(err) {
			return dispatch.SendInput{}, fmt.Errorf("request body exceeds limit: %w", domain.ErrPayloadTooLarge)
		}
		return dispatch.SendInput{}, fmt.Errorf("invalid multipart form: %w", domain.ErrValidation)
	}

	in := dispatch.SendInput{Content: r.FormValue("content")}

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil
		}
		return dispatch.SendInput{}, fmt.Errorf("invalid file part: %w", domain.ErrValidation)
	}
	defer f.Close()

	up, err := h.spoolUpload(f, header.Filename, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		return dispatch.SendInput{}, err
	}
	in.Upload = up
	return in, nil
}

// spoolUpload copies the file part into the temp dir next to permanent
// storage so the later relocation is a same-volume rename.
func (h *MessageHandler) spoolUpload(f io.Reader, name, contentType string, size int64) (*blob.Upload, error) {
	if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %v: %w", err, domain.ErrStorage)
	}
	tmp, err := os.CreateTemp(h.tempDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %v: %w", err, domain.ErrStorage)
	}
	written, err := io.Copy(tmp, f)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("spool upload: %v: %w", err, domain.ErrStorage)
	}
	if size <= 0 {
		size = written
	}
	return &blob.Upload{
		TempPath:     tmp.Name(),
		OriginalName: name,
		ContentType:  contentType,
		Size:         size,
	}, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

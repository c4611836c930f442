package handlers

import (
	"errors"
	"net/http"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/go-chi/chi/v5"
)

const (
	formFieldFile      = "file"
	maxMultipartMemory = 16 << 20
	maxUploadBodyBytes = services.MaxUploadBytes + 1<<20
)

// UploadHandler accepts listing images.
type UploadHandler struct {
	uploadService *services.UploadService
}

func NewUploadHandler(uploadService *services.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadRouter registers upload routes on the given router. A nil handler
// means no storage backend is configured and uploads answer 503.
func UploadRouter(r chi.Router, handler *UploadHandler, authHandler *AuthHandler) {
	if handler == nil {
		r.With(authHandler.RequireAuth).Post("/", func(w http.ResponseWriter, r *http.Request) {
			writeServiceError(w, r, apperr.ErrStorageUnavailable)
		})
		return
	}
	r.With(authHandler.RequireAuth).Post("/", handler.Upload)
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodyBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, apperr.Invalid(formFieldFile, "exceeds 10 MiB"))
			return
		}
		writeServiceError(w, r, apperr.Invalid("", "invalid multipart form"))
		return
	}

	file, _, err := r.FormFile(formFieldFile)
	if err != nil {
		writeServiceError(w, r, apperr.Invalid(formFieldFile, "is required"))
		return
	}
	defer file.Close()

	url, err := h.uploadService.UploadImage(r.Context(), userIDFromContext(r.Context()), file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{URL: url})
}

type UploadResponse struct {
	URL string `json:"url"`
}

package controllers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"flashback/internal/models"
	"flashback/internal/providers"
	"flashback/internal/services"

	"github.com/gabriel-vasile/mimetype"
	json "github.com/goccy/go-json"
)

type errorResponse struct {
	Error string `json:"error"`
}

type rateLimitedResponse struct {
	Error string `json:"error"`
	services.RateStatus
}

type decadesResponse struct {
	Decades []string `json:"decades"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

// writeImage sends raw image bytes; a non-empty filename turns the response
// into a download.
func writeImage(w http.ResponseWriter, img *models.Image, filename string) {
	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	if filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func extensionFor(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil {
		return m.Extension()
	}
	return ".png"
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrGenerationPending),
		errors.Is(err, models.ErrAlbumIncomplete):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnknownDecade),
		errors.Is(err, models.ErrNoDecades),
		errors.Is(err, models.ErrDuplicateDecade),
		errors.Is(err, models.ErrDecadeNotSelected):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrOrchestratorStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to their status. Unexpected errors are logged
// and answered without detail.
func (ac *ApiController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		ac.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s: %s", r.Method, r.URL.Path, err)
		writeJSON(w, status, errorResponse{Error: "Internal Server Error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

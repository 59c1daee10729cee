package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"flashback/internal/models"
	"flashback/internal/providers"
	"flashback/internal/services"
	"flashback/internal/structures"

	json "github.com/goccy/go-json"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	multipartMemory    = 32 << 20
)

type ApiController struct {
	logger       providers.Logger
	history      services.HistoryServiceInterface
	orchestrator services.OrchestratorInterface
	rateGauge    services.RateGaugeInterface
	album        services.AlbumServiceInterface
	cache        providers.CacheProviderInterface
	maxUpload    int64
}

func NewApiController(conf *structures.Config, logger providers.Logger, history services.HistoryServiceInterface, orchestrator services.OrchestratorInterface, rateGauge services.RateGaugeInterface, album services.AlbumServiceInterface, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:       logger,
		history:      history,
		orchestrator: orchestrator,
		rateGauge:    rateGauge,
		album:        album,
		cache:        cache,
		maxUpload:    conf.Upload.MaxSize,
	}
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, r *http.Request, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		ac.writeError(w, r, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) versionKey(prefix string) string {
	return prefix + ":v" + strconv.FormatUint(ac.history.Version(), 10)
}

// Upload creates a session from the multipart field "image". Optional
// repeated "decade" fields preselect decades.
func (ac *ApiController) Upload(w http.ResponseWriter, r *http.Request) {
	if ac.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, ac.maxUpload+maxRequestBodySize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			ac.writeError(w, r, models.ErrUploadTooLarge)
		case errors.Is(err, http.ErrNotMultipart):
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed multipart body"})
		}
		return
	}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed multipart body"})
		return
	}
	defer file.Close()

	img, err := services.ReadUpload(file, ac.maxUpload)
	if errors.Is(err, models.ErrNoFile) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		ac.writeError(w, r, err)
		return
	}

	session, err := ac.history.Create(r.Context(), *img, r.MultipartForm.Value["decade"])
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.logger.Infof(providers.TypePost, "Session %s created from %s %dx%d", session.ID, img.MimeType, img.Width, img.Height)
	writeJSON(w, http.StatusCreated, newSessionView(session))
}

func (ac *ApiController) ListSessions(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, ac.versionKey("sessions"), func() (any, error) {
		sessions, err := ac.history.List(r.Context())
		if err != nil {
			return nil, err
		}
		out := make([]sessionSummary, len(sessions))
		for i, s := range sessions {
			out[i] = newSessionSummary(s)
		}
		return out, nil
	})
}

func (ac *ApiController) GetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ac.serveFromCacheOrCompute(w, r, ac.versionKey("session:"+id), func() (any, error) {
		s, err := ac.history.Get(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return newSessionView(s), nil
	})
}

func (ac *ApiController) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := ac.history.Delete(r.Context(), id); err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.logger.Infof(providers.TypePost, "Session %s deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	Decades []string `json:"decades"`
}

func (ac *ApiController) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload generateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Bad Request"})
		return
	}
	if err := models.ValidateDecades(payload.Decades); err != nil {
		ac.writeError(w, r, err)
		return
	}
	if !ac.checkRate(w, len(payload.Decades)) {
		return
	}

	session, err := ac.orchestrator.Start(r.Context(), r.PathValue("id"), payload.Decades)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newSessionView(session))
}

func (ac *ApiController) Regenerate(w http.ResponseWriter, r *http.Request) {
	if !ac.checkRate(w, 1) {
		return
	}
	session, err := ac.orchestrator.Regenerate(r.Context(), r.PathValue("id"), r.PathValue("decade"))
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newSessionView(session))
}

// checkRate answers 429 with the gauge status when the request does not fit.
func (ac *ApiController) checkRate(w http.ResponseWriter, requested int) bool {
	st := ac.rateGauge.Check(requested)
	if st.Allowed {
		return true
	}
	msg := fmt.Sprintf("%s, try again in %d minutes", models.ErrRateLimited, st.RetryAfterMinutes)
	if st.ExceedsLimit {
		msg = fmt.Sprintf("%s: %d generations requested but the limit is %d per %d minutes",
			models.ErrRateLimited, st.Requested, st.Limit, st.WindowMinutes)
	} else {
		w.Header().Set("Retry-After", strconv.Itoa(st.RetryAfterMinutes*60))
	}
	writeJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
		Error:      msg,
		RateStatus: st,
	})
	return false
}

func (ac *ApiController) GetOriginal(w http.ResponseWriter, r *http.Request) {
	s, err := ac.history.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	writeImage(w, &s.Original, "")
}

func (ac *ApiController) GetDecadeImage(w http.ResponseWriter, r *http.Request) {
	decade := r.PathValue("decade")
	s, err := ac.history.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	res, ok := s.Result(decade)
	switch {
	case !ok:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no image for decade " + decade})
		return
	case res.Status == models.StatusPending:
		ac.writeError(w, r, models.ErrGenerationPending)
		return
	case res.Status != models.StatusDone || res.Image == nil:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no image for decade " + decade})
		return
	}

	var attachment string
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		attachment = "flashback-" + decade + extensionFor(res.Image.MimeType)
	}
	writeImage(w, res.Image, attachment)
}

func (ac *ApiController) GetAlbum(w http.ResponseWriter, r *http.Request) {
	s, err := ac.history.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	data, err := ac.album.Compose(s)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	writeImage(w, &models.Image{Data: data, MimeType: "image/png"}, "flashback-album-"+s.ID+".png")
}

func (ac *ApiController) RateLimit(w http.ResponseWriter, r *http.Request) {
	requested := 0
	if q := r.URL.Query().Get("requested"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "requested must be a non-negative integer"})
			return
		}
		requested = n
	}
	writeJSON(w, http.StatusOK, ac.rateGauge.Check(requested))
}

func (ac *ApiController) ListDecades(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, "decades", func() (any, error) {
		return decadesResponse{Decades: models.Decades}, nil
	})
}

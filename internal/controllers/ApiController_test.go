package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flashback/internal/models"
	"flashback/internal/services"
	"flashback/internal/structures"
	"flashback/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	ac      *ApiController
	store   *testutil.MockStore
	history services.HistoryServiceInterface
	orch    services.OrchestratorInterface
	gen     *testutil.MockGenerator
	cache   *testutil.MockCache
	logger  *testutil.MockLogger
	mux     *http.ServeMux
}

func testConfig() *structures.Config {
	return &structures.Config{
		RateLimit: structures.RateLimitConfig{MaxGenerations: 10, WindowMinutes: 60},
		Upload:    structures.UploadConfig{MaxSize: 1 << 20},
		Album:     structures.AlbumConfig{Title: "Flashback", CardWidth: 120},
	}
}

func newAPIFixture(t *testing.T, conf *structures.Config) *apiFixture {
	t.Helper()
	f := &apiFixture{
		store:  testutil.NewMockStore(),
		gen:    &testutil.MockGenerator{},
		cache:  testutil.NewMockCache(),
		logger: &testutil.MockLogger{},
	}
	f.history = services.NewHistoryService(f.store)
	gauge := services.NewRateGauge(conf)
	f.orch = services.NewOrchestrator(conf, f.history, f.gen, gauge, f.logger, &testutil.MockMetrics{})
	album, err := services.NewAlbumService(conf)
	require.NoError(t, err)
	f.ac = NewApiController(conf, f.logger, f.history, f.orch, gauge, album, f.cache)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.orch.Stop(ctx)
	})

	f.mux = http.NewServeMux()
	f.mux.HandleFunc("POST /sessions", f.ac.Upload)
	f.mux.HandleFunc("GET /sessions", f.ac.ListSessions)
	f.mux.HandleFunc("GET /sessions/{id}", f.ac.GetSession)
	f.mux.HandleFunc("DELETE /sessions/{id}", f.ac.DeleteSession)
	f.mux.HandleFunc("POST /sessions/{id}/generate", f.ac.Generate)
	f.mux.HandleFunc("POST /sessions/{id}/decades/{decade}/regenerate", f.ac.Regenerate)
	f.mux.HandleFunc("GET /sessions/{id}/original", f.ac.GetOriginal)
	f.mux.HandleFunc("GET /sessions/{id}/decades/{decade}/image", f.ac.GetDecadeImage)
	f.mux.HandleFunc("GET /sessions/{id}/album", f.ac.GetAlbum)
	f.mux.HandleFunc("GET /rate-limit", f.ac.RateLimit)
	f.mux.HandleFunc("GET /decades", f.ac.ListDecades)
	return f
}

func (f *apiFixture) do(method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func multipartBody(t *testing.T, file []byte, decades ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if file != nil {
		fw, err := mw.CreateFormFile("image", "photo")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	for _, d := range decades {
		require.NoError(t, mw.WriteField("decade", d))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *apiFixture) upload(t *testing.T, decades ...string) sessionView {
	t.Helper()
	body, ct := multipartBody(t, testutil.PNGImage(8, 4), decades...)
	rr := f.do(http.MethodPost, "/sessions", body, ct)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var v sessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func (f *apiFixture) generate(t *testing.T, id string, decades ...string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(generateRequest{Decades: decades})
	require.NoError(t, err)
	return f.do(http.MethodPost, "/sessions/"+id+"/generate", bytes.NewBuffer(payload), "application/json")
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

// --- Upload ---

func TestUpload_CreatesSession(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	v := f.upload(t, "1950s", "1990s")

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, models.StageUploaded, v.Stage)
	assert.Equal(t, []string{"1950s", "1990s"}, v.Decades)
	assert.Equal(t, "/sessions/"+v.ID+"/original", v.Original.URL)
	assert.Equal(t, "image/png", v.Original.MimeType)
	assert.Equal(t, 8, v.Original.Width)
	assert.InDelta(t, 2.0, v.AspectRatio, 1e-9)
	assert.Empty(t, v.AlbumURL)
	assert.Equal(t, 1, f.history.Count())
}

func TestUpload_NothingUploaded(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	body, ct := multipartBody(t, nil, "1950s")
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/sessions", body, ct).Code)

	body, ct = multipartBody(t, []byte{})
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/sessions", body, ct).Code)

	rr := f.do(http.MethodPost, "/sessions", bytes.NewBufferString("{}"), "application/json")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	assert.Zero(t, f.history.Count())
}

func TestUpload_UnsupportedType(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	body, ct := multipartBody(t, []byte("%PDF-1.4 not a picture"))
	rr := f.do(http.MethodPost, "/sessions", body, ct)

	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Contains(t, decodeError(t, rr), "unsupported image type")
}

func TestUpload_TooLarge(t *testing.T) {
	conf := testConfig()
	conf.Upload.MaxSize = 100
	f := newAPIFixture(t, conf)

	body, ct := multipartBody(t, testutil.JPEGImage(64, 64))
	rr := f.do(http.MethodPost, "/sessions", body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestUpload_UnknownDecade(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	body, ct := multipartBody(t, testutil.TinyPNG(), "1890s")
	rr := f.do(http.MethodPost, "/sessions", body, ct)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, f.history.Count())
}

func TestUpload_StoreFailure(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	f.store.UpsertErr = errors.New("disk on fire")

	body, ct := multipartBody(t, testutil.TinyPNG())
	rr := f.do(http.MethodPost, "/sessions", body, ct)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal Server Error", decodeError(t, rr))
	assert.Equal(t, 1, f.logger.Count("error"))
}

// --- Sessions ---

func TestListSessions_NewestFirstAndCached(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	first := f.upload(t)
	second := f.upload(t)

	rr := f.do(http.MethodGet, "/sessions", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []sessionSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	key := fmt.Sprintf("sessions:v%d", f.history.Version())
	_, cached := f.cache.Get(key)
	assert.True(t, cached)

	// a write bumps the version, so the stale entry is never served
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/sessions/"+second.ID, nil, "").Code)
	rr = f.do(http.MethodGet, "/sessions", nil, "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestGetSession(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	v := f.upload(t)

	rr := f.do(http.MethodGet, "/sessions/"+v.ID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	rr = f.do(http.MethodGet, "/sessions/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteSession(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	v := f.upload(t)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/sessions/"+v.ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/sessions/"+v.ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/sessions/"+v.ID, nil, "").Code)
}

func TestGetOriginal(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	v := f.upload(t)

	rr := f.do(http.MethodGet, "/sessions/"+v.ID+"/original", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, testutil.PNGImage(8, 4), rr.Body.Bytes())
	assert.Empty(t, rr.Header().Get("Content-Disposition"))
}

// --- Generation ---

func TestGenerate_RunsToCompletion(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	v := f.upload(t)

	rr := f.generate(t, v.ID, "1950s", "1960s")
	require.Equal(t, http.StatusAccepted, rr.Code)
	var started sessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))
	assert.Equal(t, models.StageGenerating, started.Stage)
	assert.Equal(t, models.StatusPending, started.Results["1950s"].Status)

	f.orch.Wait()

	rr = f.do(http.MethodGet, "/sessions/"+v.ID, nil, "")
	var done sessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &done))
	assert.Equal(t, models.StageShown, done.Stage)
	assert.Equal(t, "/sessions/"+v.ID+"/decades/1960s/image", done.Results["1960s"].ImageURL)
	assert.Equal(t, "/sessions/"+v.ID+"/album", done.AlbumURL)
}

func TestGenerate_BadRequests(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	v := f.upload(t)

	rr := f.do(http.MethodPost, "/sessions/"+v.ID+"/generate", bytes.NewBufferString("not json"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, http.StatusBadRequest, f.generate(t, v.ID).Code)
	assert.Equal(t, http.StatusBadRequest, f.generate(t, v.ID, "1950s", "1950s").Code)
	assert.Equal(t, http.StatusBadRequest, f.generate(t, v.ID, "2020s").Code)
	assert.Equal(t, http.StatusNotFound, f.generate(t, "missing", "1950s").Code)
	assert.Zero(t, f.gen.CallCount())
}

func TestGenerate_RateLimited(t *testing.T) {
	conf := testConfig()
	conf.RateLimit.MaxGenerations = 2
	f := newAPIFixture(t, conf)
	v := f.upload(t)

	require.Equal(t, http.StatusAccepted, f.generate(t, v.ID, "1950s", "1960s").Code)
	f.orch.Wait()

	rr := f.generate(t, v.ID, "1970s")

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "3600", rr.Header().Get("Retry-After"))
	var resp rateLimitedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Allowed)
	assert.False(t, resp.ExceedsLimit)
	assert.Equal(t, 2, resp.Used)
	assert.Equal(t, 60, resp.RetryAfterMinutes)
	assert.Contains(t, resp.Error, "try again in 60 minutes")
	assert.Equal(t, 2, f.gen.CallCount())
}

func TestGenerate_RequestAboveLimit(t *testing.T) {
	conf := testConfig()
	conf.RateLimit.MaxGenerations = 2
	f := newAPIFixture(t, conf)
	v := f.upload(t)

	rr := f.generate(t, v.ID, "1950s", "1960s", "1970s")

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Empty(t, rr.Header().Get("Retry-After"))
	var resp rateLimitedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Allowed)
	assert.True(t, resp.ExceedsLimit)
	assert.Equal(t, 3, resp.Requested)
	assert.Equal(t, 2, resp.Limit)
	assert.Zero(t, resp.RetryAfterMinutes)
	assert.Contains(t, resp.Error, "3 generations requested but the limit is 2 per 60 minutes")
	assert.Zero(t, f.gen.CallCount())
}

func TestGenerate_PendingConflict(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	f.gen.GenerateFn = func(context.Context, *models.GenerationRequest) (*models.Image, error) {
		started <- struct{}{}
		<-release
		return &models.Image{Data: testutil.TinyPNG(), MimeType: "image/png"}, nil
	}
	v := f.upload(t)

	require.Equal(t, http.StatusAccepted, f.generate(t, v.ID, "1950s").Code)
	<-started

	assert.Equal(t, http.StatusConflict, f.generate(t, v.ID, "1950s").Code)
	rr := f.do(http.MethodPost, "/sessions/"+v.ID+"/decades/1950s/regenerate", nil, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = f.do(http.MethodGet, "/sessions/"+v.ID+"/decades/1950s/image", nil, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = f.do(http.MethodGet, "/sessions/"+v.ID+"/album", nil, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(release)
	f.orch.Wait()
}

func TestRegenerate(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	v := f.upload(t)
	require.Equal(t, http.StatusAccepted, f.generate(t, v.ID, "1950s").Code)
	f.orch.Wait()

	rr := f.do(http.MethodPost, "/sessions/"+v.ID+"/decades/1950s/regenerate", nil, "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	f.orch.Wait()
	assert.Equal(t, 2, f.gen.CallCount())

	rr = f.do(http.MethodPost, "/sessions/"+v.ID+"/decades/1980s/regenerate", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = f.do(http.MethodPost, "/sessions/"+v.ID+"/decades/1880s/regenerate", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGenerate_AfterShutdown(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	v := f.upload(t)
	require.NoError(t, f.orch.Stop(context.Background()))

	assert.Equal(t, http.StatusServiceUnavailable, f.generate(t, v.ID, "1950s").Code)
}

// --- Images ---

func TestGetDecadeImage(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	f.gen.GenerateFn = func(_ context.Context, req *models.GenerationRequest) (*models.Image, error) {
		if req.Decade == "1960s" {
			return nil, errors.New("refused")
		}
		return &models.Image{Data: testutil.JPEGImage(2, 2), MimeType: "image/jpeg"}, nil
	}
	v := f.upload(t)
	require.Equal(t, http.StatusAccepted, f.generate(t, v.ID, "1950s", "1960s").Code)
	f.orch.Wait()

	rr := f.do(http.MethodGet, "/sessions/"+v.ID+"/decades/1950s/image", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
	assert.Empty(t, rr.Header().Get("Content-Disposition"))

	rr = f.do(http.MethodGet, "/sessions/"+v.ID+"/decades/1950s/image?download=1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "attachment; filename=flashback-1950s.jpg", rr.Header().Get("Content-Disposition"))

	rr = f.do(http.MethodGet, "/sessions/"+v.ID+"/decades/1960s/image", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = f.do(http.MethodGet, "/sessions/"+v.ID+"/decades/1990s/image", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = f.do(http.MethodGet, "/sessions/missing/decades/1950s/image", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetAlbum(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	v := f.upload(t)

	rr := f.do(http.MethodGet, "/sessions/"+v.ID+"/album", nil, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	require.Equal(t, http.StatusAccepted, f.generate(t, v.ID, "1950s", "1980s", "2000s").Code)
	f.orch.Wait()

	rr = f.do(http.MethodGet, "/sessions/"+v.ID+"/album", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "flashback-album-"+v.ID+".png")
	img, err := services.DecodeImage(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
}

// --- Misc ---

func TestRateLimit(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	rr := f.do(http.MethodGet, "/rate-limit?requested=4", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var st services.RateStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.True(t, st.Allowed)
	assert.Equal(t, 10, st.Limit)
	assert.Equal(t, 4, st.Requested)
	assert.Equal(t, 60, st.WindowMinutes)

	rr = f.do(http.MethodGet, "/rate-limit?requested=11", nil, "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.False(t, st.Allowed)
	assert.True(t, st.ExceedsLimit)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/rate-limit?requested=abc", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/rate-limit?requested=-1", nil, "").Code)
}

func TestListDecades(t *testing.T) {
	f := newAPIFixture(t, testConfig())

	rr := f.do(http.MethodGet, "/decades", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp decadesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, models.Decades, resp.Decades)

	_, cached := f.cache.Get("decades")
	assert.True(t, cached)
}

func TestServeFromCache(t *testing.T) {
	f := newAPIFixture(t, testConfig())
	f.cache.Set("decades", []byte(`{"decades":["cached"]}`))

	rr := f.do(http.MethodGet, "/decades", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"decades":["cached"]}`, rr.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.ErrSessionNotFound, http.StatusNotFound},
		{models.ErrGenerationPending, http.StatusConflict},
		{fmt.Errorf("%w: missing 1950s", models.ErrAlbumIncomplete), http.StatusConflict},
		{models.ErrUnknownDecade, http.StatusBadRequest},
		{models.ErrNoDecades, http.StatusBadRequest},
		{models.ErrDuplicateDecade, http.StatusBadRequest},
		{models.ErrDecadeNotSelected, http.StatusBadRequest},
		{models.ErrUnsupportedImage, http.StatusUnsupportedMediaType},
		{models.ErrUploadTooLarge, http.StatusRequestEntityTooLarge},
		{models.ErrRateLimited, http.StatusTooManyRequests},
		{services.ErrOrchestratorStopped, http.StatusServiceUnavailable},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".jpg", extensionFor("image/jpeg"))
	assert.Equal(t, ".webp", extensionFor("image/webp"))
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".png", extensionFor(""))
}

func TestWriteImage_Headers(t *testing.T) {
	rr := httptest.NewRecorder()
	writeImage(rr, &models.Image{Data: []byte("abc"), MimeType: "image/webp"}, "a b.webp")

	assert.Equal(t, "3", rr.Header().Get("Content-Length"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Disposition"), "attachment; filename="))
}

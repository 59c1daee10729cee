package imagegen

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flashback/internal/models"
	"flashback/internal/structures"
	"flashback/internal/testutil"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&structures.Config{Generator: structures.GeneratorConfig{
		APIKey:  "secret",
		BaseURL: srv.URL + "/",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}}, &testutil.MockLogger{})
}

func testRequest() *models.GenerationRequest {
	return &models.GenerationRequest{
		Decade: "1960s",
		Prompt: "a 1960s portrait",
		Source: models.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"},
	}
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestClient_Generate_Success(t *testing.T) {
	png := testutil.TinyPNG()
	var got generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		writeBody(w, http.StatusOK, `{"candidates":[{"content":{"parts":[
			{"text":"here you go"},
			{"inlineData":{"mimeType":"image/jpeg","data":"`+base64.StdEncoding.EncodeToString(png)+`"}}
		]}}]}`)
	})

	img, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)
	assert.Equal(t, "image/jpeg", img.MimeType)

	require.Len(t, got.Contents, 1)
	parts := got.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, parts[0].InlineData.Data)
	assert.Equal(t, "image/png", parts[0].InlineData.MimeType)
	assert.Equal(t, "a 1960s portrait", parts[1].Text)
	assert.Equal(t, []string{"IMAGE", "TEXT"}, got.GenerationConfig.ResponseModalities)
}

func TestClient_Generate_DefaultMimeType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"AAEC"}}]}}]}`)
	})

	img, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, []byte{0, 1, 2}, img.Data)
}

func TestClient_Generate_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusTooManyRequests, `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	})

	_, err := c.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Resource has been exhausted")
}

func TestClient_Generate_BadStatusWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusBadGateway, "upstream unavailable")
	})

	_, err := c.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_Generate_Blocked(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	})

	_, err := c.Generate(context.Background(), testRequest())
	assert.ErrorIs(t, err, models.ErrGeneratorNoImage)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestClient_Generate_TextOnly(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"I can't do that."}]},"finishReason":"STOP"}]}`)
	})

	_, err := c.Generate(context.Background(), testRequest())
	assert.ErrorIs(t, err, models.ErrGeneratorNoImage)
	assert.Contains(t, err.Error(), "I can't do that.")
}

func TestClient_Generate_FinishReason(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"candidates":[{"content":{"parts":[]},"finishReason":"IMAGE_SAFETY"}]}`)
	})

	_, err := c.Generate(context.Background(), testRequest())
	assert.ErrorIs(t, err, models.ErrGeneratorNoImage)
	assert.Contains(t, err.Error(), "IMAGE_SAFETY")
}

func TestClient_Generate_NotConfigured(t *testing.T) {
	c := NewClient(&structures.Config{}, &testutil.MockLogger{})
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultModel, c.model)

	_, err := c.Generate(context.Background(), testRequest())
	assert.ErrorIs(t, err, models.ErrGeneratorNotConfig)
}

func TestClient_Generate_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Generate_RateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"AAEC"}}]}}]}`)
	})
	c.limiter = rate.NewLimiter(1, 1)

	_, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	// the burst is spent, the next token is a second away
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Generate(ctx, testRequest())
	assert.Error(t, err)
}

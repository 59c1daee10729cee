package imagegen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"flashback/internal/models"
	"flashback/internal/providers"
	"flashback/internal/structures"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash-image-preview"

	maxResponseSize = 64 << 20
)

// Client calls the Gemini generateContent endpoint with the source photo
// inline and returns the first image part of the answer.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     providers.Logger
}

func NewClient(conf *structures.Config, logger providers.Logger) *Client {
	gc := conf.Generator
	c := &Client{
		apiKey:     gc.APIKey,
		baseURL:    strings.TrimRight(gc.BaseURL, "/"),
		model:      gc.Model,
		httpClient: &http.Client{Timeout: gc.Timeout},
		logger:     logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if gc.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(gc.RequestsPerSecond), 1)
	}
	return c
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
}

func (c *Client) Generate(ctx context.Context, req *models.GenerationRequest) (*models.Image, error) {
	if c.apiKey == "" {
		return nil, models.ErrGeneratorNotConfig
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(newRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image model request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debugf(providers.TypeGeneration, "%s %s: %d in %s", req.Decade, c.model, resp.StatusCode, time.Since(start))

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("image model returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return nil, fmt.Errorf("image model error: %s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image model returned status %d", resp.StatusCode)
	}
	return out.image()
}

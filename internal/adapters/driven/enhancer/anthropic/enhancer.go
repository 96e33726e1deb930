// Package anthropic provides a narrative enhancement adapter using the
// Anthropic API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/calyx-health/deid/internal/adapters/driven/enhancer"
	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
)

// Ensure Enhancer implements the interface.
var _ driven.Enhancer = (*Enhancer)(nil)

// Default configuration values.
const (
	DefaultBaseURL           = "https://api.anthropic.com"
	DefaultModel             = "claude-3-7-sonnet-latest"
	DefaultTimeout           = 120 * time.Second
	DefaultRequestsPerMinute = 50
	DefaultMaxTokens         = 4096

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic enhancement adapter.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the model to use (default: claude-3-7-sonnet-latest).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestsPerMinute throttles outbound calls so parallel chunk jobs
	// stay under the account rate limit (default: 50).
	RequestsPerMinute int

	// MaxTokens caps the response length (default: 4096).
	MaxTokens int
}

// Enhancer rewrites scrubbed clinical text using the Anthropic API.
type Enhancer struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	limiter   *rate.Limiter
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model     string            `json:"model"`
	Messages  []messagesMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
}

// messagesMessage is the Anthropic message format.
type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a new Anthropic enhancement adapter.
func New(cfg Config) (*Enhancer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required: %w", domain.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &Enhancer{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute),
	}, nil
}

// Enhance rewrites one chunk of scrubbed section content. Rate-limit and
// server-side failures wrap domain.ErrTransientService so the pipeline
// retries them; malformed-request rejections do not.
func (e *Enhancer) Enhance(ctx context.Context, req driven.EnhanceRequest) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqBody := messagesRequest{
		Model: e.model,
		Messages: []messagesMessage{
			{Role: "user", Content: enhancer.BuildPrompt(req)},
		},
		MaxTokens: e.maxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.baseURL+"/v1/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", e.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Network errors and client timeouts are worth retrying.
		return "", fmt.Errorf("send request: %v: %w", err, domain.ErrTransientService)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %v: %w", err, domain.ErrTransientService)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp, body)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}
	if len(msgResp.Content) == 0 {
		return "", errors.New("anthropic: no response content returned")
	}

	// Concatenate all text content blocks.
	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(result.String()), nil
}

// classifyStatus maps an error response to retryable or permanent. 429 and
// 5xx are transient; everything else is a permanent rejection. A
// Retry-After header, when parseable, is reported in the message so
// operators can see what the service asked for.
func classifyStatus(resp *http.Response, body []byte) error {
	transient := resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= http.StatusInternalServerError

	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}

	if !transient {
		return fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, detail)
	}

	if after := resp.Header.Get("Retry-After"); after != "" {
		if secs, err := strconv.Atoi(after); err == nil {
			return fmt.Errorf("anthropic status %d, retry after %ds: %w",
				resp.StatusCode, secs, domain.ErrTransientService)
		}
	}
	return fmt.Errorf("anthropic status %d: %s: %w", resp.StatusCode, detail, domain.ErrTransientService)
}

// ModelName returns the model identifier used in cache fingerprints.
func (e *Enhancer) ModelName() string {
	return e.model
}

// Ping validates the service is reachable by checking the /v1/models
// endpoint. This validates the API key without running inference.
func (e *Enhancer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("anthropic: failed to create ping request: %w", err)
	}
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("anthropic: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (e *Enhancer) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

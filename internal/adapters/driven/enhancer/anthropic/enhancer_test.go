package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
)

func newTestEnhancer(t *testing.T, handler http.HandlerFunc) *Enhancer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	e, err := New(Config{
		APIKey:            "test-key",
		BaseURL:           server.URL,
		Model:             "test-model",
		RequestsPerMinute: 6000,
	})
	require.NoError(t, err)
	return e
}

// TestNew_RequiresAPIKey tests the configuration guard.
func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

// TestEnhancer_Enhance tests the happy path: prompt and headers on the
// wire, concatenated text blocks back.
func TestEnhancer_Enhance(t *testing.T) {
	e := newTestEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "[PERSON_1] attended")
		assert.Contains(t, req.Messages[0].Content, "MAINTAIN ALL PLACEHOLDERS")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": "Enhanced: "},
				{"type": "text", "text": "[PERSON_1] attended the assessment."},
			},
		})
	})

	result, err := e.Enhance(context.Background(), driven.EnhanceRequest{
		Section:     "background_information",
		Content:     "[PERSON_1] attended.",
		TotalChunks: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Enhanced: [PERSON_1] attended the assessment.", result)
}

// TestEnhancer_Enhance_RateLimited tests that a 429 is classified as
// transient so the pipeline retries it.
func TestEnhancer_Enhance_RateLimited(t *testing.T) {
	e := newTestEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := e.Enhance(context.Background(), driven.EnhanceRequest{
		Section: "notes", Content: "text", TotalChunks: 1,
	})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.Contains(t, err.Error(), "retry after 30s")
}

// TestEnhancer_Enhance_ServerError tests that 5xx is transient.
func TestEnhancer_Enhance_ServerError(t *testing.T) {
	e := newTestEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := e.Enhance(context.Background(), driven.EnhanceRequest{
		Section: "notes", Content: "text", TotalChunks: 1,
	})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

// TestEnhancer_Enhance_BadRequest tests that a 4xx rejection is permanent.
func TestEnhancer_Enhance_BadRequest(t *testing.T) {
	e := newTestEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"max_tokens out of range"}}`))
	})

	_, err := e.Enhance(context.Background(), driven.EnhanceRequest{
		Section: "notes", Content: "text", TotalChunks: 1,
	})
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
	assert.Contains(t, err.Error(), "status 400")
}

// TestEnhancer_Ping tests the lightweight reachability check.
func TestEnhancer_Ping(t *testing.T) {
	e := newTestEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, e.Ping(context.Background()))
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
)

// mockEnhancer implements driven.Enhancer for testing.
type mockEnhancer struct {
	mu       sync.Mutex
	calls    atomic.Int32
	enhance  func(ctx context.Context, req driven.EnhanceRequest) (string, error)
	requests []driven.EnhanceRequest
}

func (m *mockEnhancer) Enhance(ctx context.Context, req driven.EnhanceRequest) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.enhance != nil {
		return m.enhance(ctx, req)
	}
	return "enhanced: " + req.Content, nil
}

func (m *mockEnhancer) ModelName() string { return "mock-model" }

func (m *mockEnhancer) Ping(_ context.Context) error { return nil }

func (m *mockEnhancer) Close() error { return nil }

func testPipeline(enhancer driven.Enhancer, cfg domain.EngineConfig) *Pipeline {
	cfg.Normalise()
	cache := NewEnhanceCache(cfg.CacheMaxEntries, cfg.CacheMaxAge, nil)
	return NewPipeline(enhancer, cache, cfg)
}

// TestPipeline_EnhanceSection_Unsplit tests the common case: a section
// under the chunk budget goes through as a single call.
func TestPipeline_EnhanceSection_Unsplit(t *testing.T) {
	enhancer := &mockEnhancer{}
	p := testPipeline(enhancer, domain.EngineConfig{ChunkSize: 1000})

	result, err := p.EnhanceSection(context.Background(), "sess-1", "background", "Short section text.")
	require.NoError(t, err)
	assert.Equal(t, "enhanced: Short section text.", result)
	assert.Equal(t, int32(1), enhancer.calls.Load())

	require.Len(t, enhancer.requests, 1)
	assert.Equal(t, "background", enhancer.requests[0].Section)
	assert.Equal(t, 1, enhancer.requests[0].TotalChunks)
}

// TestPipeline_EnhanceSection_OrderedReassembly tests that chunk results
// are joined in original order even when calls complete in arbitrary
// order under concurrency.
func TestPipeline_EnhanceSection_OrderedReassembly(t *testing.T) {
	enhancer := &mockEnhancer{
		enhance: func(ctx context.Context, req driven.EnhanceRequest) (string, error) {
			time.Sleep(time.Duration(rand.Intn(15)) * time.Millisecond)
			return fmt.Sprintf("<%d>", req.ChunkIndex), nil
		},
	}
	p := testPipeline(enhancer, domain.EngineConfig{ChunkSize: 40, Workers: 8})

	var paras []string
	for i := 0; i < 10; i++ {
		paras = append(paras, fmt.Sprintf("Paragraph number %02d with some text.", i))
	}
	text := strings.Join(paras, "\n\n")

	result, err := p.EnhanceSection(context.Background(), "sess-1", "history", text)
	require.NoError(t, err)

	var want []string
	for i := 0; i < 10; i++ {
		want = append(want, fmt.Sprintf("<%d>", i))
	}
	assert.Equal(t, strings.Join(want, "\n\n"), result)
}

// TestPipeline_EnhanceSection_IdenticalChunksComputedOnce tests that the
// cache collapses identical chunk content into one external call.
func TestPipeline_EnhanceSection_IdenticalChunksComputedOnce(t *testing.T) {
	enhancer := &mockEnhancer{}
	p := testPipeline(enhancer, domain.EngineConfig{ChunkSize: 30, Workers: 1})

	para := "Same paragraph, repeated."
	text := para + "\n\n" + para + "\n\n" + para

	result, err := p.EnhanceSection(context.Background(), "sess-1", "notes", text)
	require.NoError(t, err)
	assert.Equal(t, int32(1), enhancer.calls.Load())
	assert.Equal(t, 3, strings.Count(result, "enhanced: "+para))
}

// TestPipeline_EnhanceSection_TransientRetried tests that failures
// wrapping the transient sentinel are retried until success.
func TestPipeline_EnhanceSection_TransientRetried(t *testing.T) {
	var attempts atomic.Int32
	enhancer := &mockEnhancer{
		enhance: func(ctx context.Context, req driven.EnhanceRequest) (string, error) {
			if attempts.Add(1) < 3 {
				return "", fmt.Errorf("rate limited: %w", domain.ErrTransientService)
			}
			return "done", nil
		},
	}
	p := testPipeline(enhancer, domain.EngineConfig{
		ChunkSize:   1000,
		RetryCount:  3,
		BackoffBase: time.Millisecond,
	})

	result, err := p.EnhanceSection(context.Background(), "sess-1", "background", "text")
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, int32(3), attempts.Load())
}

// TestPipeline_EnhanceSection_PermanentNotRetried tests that
// non-transient rejections fail immediately with chunk context attached.
func TestPipeline_EnhanceSection_PermanentNotRetried(t *testing.T) {
	var attempts atomic.Int32
	rejected := errors.New("invalid request")
	enhancer := &mockEnhancer{
		enhance: func(ctx context.Context, req driven.EnhanceRequest) (string, error) {
			attempts.Add(1)
			return "", rejected
		},
	}
	p := testPipeline(enhancer, domain.EngineConfig{
		ChunkSize:   1000,
		RetryCount:  5,
		BackoffBase: time.Millisecond,
	})

	_, err := p.EnhanceSection(context.Background(), "sess-9", "background", "text")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())

	var ce *domain.ChunkError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "sess-9", ce.SessionID)
	assert.Equal(t, "background", ce.Section)
	assert.Equal(t, 0, ce.Index)
	assert.ErrorIs(t, err, rejected)
	assert.ErrorIs(t, err, domain.ErrChunkFailed)
}

// TestPipeline_EnhanceSection_RetriesExhausted tests that a persistently
// transient chunk surfaces as a ChunkError after the retry budget.
func TestPipeline_EnhanceSection_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	enhancer := &mockEnhancer{
		enhance: func(ctx context.Context, req driven.EnhanceRequest) (string, error) {
			attempts.Add(1)
			return "", fmt.Errorf("still overloaded: %w", domain.ErrTransientService)
		},
	}
	p := testPipeline(enhancer, domain.EngineConfig{
		ChunkSize:   1000,
		RetryCount:  2,
		BackoffBase: time.Millisecond,
	})

	_, err := p.EnhanceSection(context.Background(), "sess-1", "background", "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrChunkFailed)
	assert.ErrorIs(t, err, domain.ErrTransientService)
	assert.Equal(t, int32(3), attempts.Load()) // initial + 2 retries
}

// TestPipeline_EnhanceSection_Empty tests that blank sections skip the
// collaborator entirely.
func TestPipeline_EnhanceSection_Empty(t *testing.T) {
	enhancer := &mockEnhancer{}
	p := testPipeline(enhancer, domain.EngineConfig{})

	result, err := p.EnhanceSection(context.Background(), "sess-1", "background", "  \n ")
	require.NoError(t, err)
	assert.Equal(t, "  \n ", result)
	assert.Equal(t, int32(0), enhancer.calls.Load())
}

// TestSplitChunks_ParagraphBoundaries tests that splitting prefers
// paragraph breaks and keeps every fragment within budget.
func TestSplitChunks_ParagraphBoundaries(t *testing.T) {
	a := strings.Repeat("a", 30)
	b := strings.Repeat("b", 30)
	c := strings.Repeat("c", 30)
	text := a + "\n\n" + b + "\n\n" + c

	chunks := SplitChunks(text, 70)
	require.Len(t, chunks, 2)
	assert.Equal(t, a+"\n\n"+b, chunks[0])
	assert.Equal(t, c, chunks[1])
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch), 70)
	}
}

// TestSplitChunks_SentenceFallback tests that an oversized paragraph is
// cut at sentence ends.
func TestSplitChunks_SentenceFallback(t *testing.T) {
	text := "First sentence here. Second sentence follows on. Third one closes it out."
	chunks := SplitChunks(text, 30)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch), 30)
	}
	joined := strings.Join(chunks, " ")
	assert.Equal(t, text, joined)
}

// TestSplitChunks_PlaceholderNeverSplit tests that a hard cut will not
// land inside a placeholder token.
func TestSplitChunks_PlaceholderNeverSplit(t *testing.T) {
	text := strings.Repeat("x", 20) + "[MEDICAL_RECORD_12]" + strings.Repeat("y", 20)
	chunks := SplitChunks(text, 25)

	whole := 0
	for _, ch := range chunks {
		assert.NotRegexp(t, `\[[A-Z_]+$`, ch)
		whole += strings.Count(ch, "[MEDICAL_RECORD_12]")
	}
	assert.Equal(t, 1, whole)
}

// TestSplitChunks_RuneNeverSplit tests that a hard cut through text with
// no sentence boundary backs up to a rune start instead of severing a
// multi-byte character.
func TestSplitChunks_RuneNeverSplit(t *testing.T) {
	// 30 two-byte runes, no spaces or sentence ends; an odd budget would
	// otherwise cut mid-rune.
	text := strings.Repeat("é", 30)
	chunks := SplitChunks(text, 25)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.True(t, utf8.ValidString(ch))
		assert.LessOrEqual(t, len(ch), 25)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

// TestSplitChunks_UnderBudget tests the trivial no-split path.
func TestSplitChunks_UnderBudget(t *testing.T) {
	chunks := SplitChunks("short", 100)
	assert.Equal(t, []string{"short"}, chunks)
}

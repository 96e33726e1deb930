package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
	"github.com/calyx-health/deid/internal/logger"
)

// Pipeline is the chunked enhancement coordinator: it splits scrubbed
// section text into ordered chunks sized for the external collaborator,
// dispatches them concurrently through the deduplicating cache, and
// reassembles results strictly by sequence index.
type Pipeline struct {
	enhancer driven.Enhancer
	cache    *EnhanceCache

	chunkSize   int
	retryCount  int
	backoffBase time.Duration
	workers     int
}

// NewPipeline creates a coordinator for one enhancer. cfg must already be
// normalised.
func NewPipeline(enhancer driven.Enhancer, cache *EnhanceCache, cfg domain.EngineConfig) *Pipeline {
	return &Pipeline{
		enhancer:    enhancer,
		cache:       cache,
		chunkSize:   cfg.ChunkSize,
		retryCount:  cfg.RetryCount,
		backoffBase: cfg.BackoffBase,
		workers:     cfg.Workers,
	}
}

// EnhanceSection runs one section's scrubbed text through the enhancement
// collaborator. Chunk calls may complete in any order; the returned text
// is always joined in original chunk order. A chunk that exhausts its
// retries fails the whole section with a ChunkError carrying session,
// section and chunk index; other sections are unaffected.
func (p *Pipeline) EnhanceSection(ctx context.Context, sessionID, section, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	parts := SplitChunks(text, p.chunkSize)
	chunks := make([]domain.Chunk, len(parts))
	for i, content := range parts {
		chunks[i] = domain.Chunk{
			SessionID: sessionID,
			Section:   section,
			Index:     i,
			Content:   content,
		}
	}
	if len(chunks) > 1 {
		logger.Info("section %q split into %d chunks", section, len(chunks))
	}

	results := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, chunk := range chunks {
		g.Go(func() error {
			enhanced, err := p.enhanceChunk(gctx, chunk, len(chunks))
			if err != nil {
				return err
			}
			results[chunk.Index] = enhanced
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return strings.Join(results, "\n\n"), nil
}

// enhanceChunk dispatches one chunk through the cache with bounded
// exponential-backoff retries on transient failures. Non-transient
// rejections are never retried.
func (p *Pipeline) enhanceChunk(ctx context.Context, chunk domain.Chunk, total int) (string, error) {
	fp := Fingerprint(p.enhancer.ModelName()+"/"+chunk.Section, chunk.Content)

	result, err := p.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (string, error) {
		return p.callWithRetry(ctx, driven.EnhanceRequest{
			Section:     chunk.Section,
			Content:     chunk.Content,
			ChunkIndex:  chunk.Index,
			TotalChunks: total,
		})
	})
	if err != nil {
		return "", &domain.ChunkError{
			SessionID: chunk.SessionID,
			Section:   chunk.Section,
			Index:     chunk.Index,
			Attempts:  p.retryCount + 1,
			Err:       err,
		}
	}
	return result, nil
}

// callWithRetry applies the configured retry policy around one external
// call. Only errors wrapping domain.ErrTransientService are retried.
func (p *Pipeline) callWithRetry(ctx context.Context, req driven.EnhanceRequest) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.backoffBase

	var result string
	operation := func() error {
		var err error
		result, err = p.enhancer.Enhance(ctx, req)
		if err == nil {
			return nil
		}
		if domain.IsTransient(err) {
			logger.Warn("transient failure on %q chunk %d: %v", req.Section, req.ChunkIndex, err)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(p.retryCount)), ctx))
	if err != nil {
		return "", err
	}
	return result, nil
}

// SplitChunks splits text into fragments no longer than maxSize bytes,
// preferring paragraph breaks, then sentence breaks, before falling back
// to a hard cut. A placeholder token is never split across two fragments.
func SplitChunks(text string, maxSize int) []string {
	if maxSize <= 0 || len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		sep := 0
		if current.Len() > 0 {
			sep = 2
		}
		if current.Len()+sep+len(para) <= maxSize {
			if sep > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
			continue
		}
		flush()

		if len(para) <= maxSize {
			current.WriteString(para)
			continue
		}
		// Paragraph too large on its own: split at sentence ends.
		for _, piece := range splitOversize(para, maxSize) {
			if current.Len() > 0 && current.Len()+1+len(piece) <= maxSize {
				current.WriteString(" ")
				current.WriteString(piece)
			} else {
				flush()
				current.WriteString(piece)
			}
		}
		flush()
	}
	flush()

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// splitOversize breaks a single long paragraph into pieces of at most
// maxSize bytes, cutting at sentence ends where possible and never inside
// a placeholder token.
func splitOversize(para string, maxSize int) []string {
	var pieces []string
	rest := para
	for len(rest) > maxSize {
		cut := sentenceCut(rest, maxSize)
		if cut <= 0 {
			cut = safeCut(rest, maxSize)
		}
		pieces = append(pieces, strings.TrimRight(rest[:cut], " "))
		rest = strings.TrimLeft(rest[cut:], " ")
	}
	if rest != "" {
		pieces = append(pieces, rest)
	}
	return pieces
}

// sentenceCut finds the right-most sentence end within the budget.
// Returns 0 when there is none.
func sentenceCut(s string, maxSize int) int {
	window := s[:maxSize]
	best := 0
	for i := 1; i < len(window); i++ {
		if (window[i-1] == '.' || window[i-1] == '!' || window[i-1] == '?') && window[i] == ' ' {
			best = i + 1
		}
		if window[i] == '\n' {
			best = i + 1
		}
	}
	return best
}

// safeCut returns the largest cut point at or under maxSize that lands
// neither inside a placeholder token nor inside a multi-byte rune.
func safeCut(s string, maxSize int) int {
	cut := maxSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	for _, loc := range domain.PlaceholderPattern().FindAllStringIndex(s, -1) {
		if loc[0] >= cut {
			break
		}
		if loc[0] < cut && cut < loc[1] {
			cut = loc[0]
			break
		}
	}
	if cut == 0 {
		// Placeholder (or rune) longer than the budget; emit it whole
		// rather than fracture it.
		if loc := domain.PlaceholderPattern().FindStringIndex(s); loc != nil && loc[0] == 0 {
			return loc[1]
		}
		_, n := utf8.DecodeRuneInString(s)
		if n > 0 {
			return n
		}
		return maxSize
	}
	return cut
}

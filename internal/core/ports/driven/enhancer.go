package driven

import "context"

// EnhanceRequest carries one chunk of scrubbed text to the narrative
// enhancement collaborator. Content contains placeholders, never PHI.
type EnhanceRequest struct {
	// Section names the report section the content belongs to. Drives
	// section-specific prompt guidance.
	Section string

	// Content is the scrubbed text to enhance.
	Content string

	// ChunkIndex and TotalChunks describe the chunk's position when a
	// section was split for size. Both zero for unsplit sections. The
	// position is for logging only; prompts must not vary on it, because
	// cached results are keyed on model, section and content alone.
	ChunkIndex  int
	TotalChunks int
}

// Enhancer is the narrative enhancement collaborator: an opaque
// text-in/text-out service. Implementations must preserve placeholder
// tokens exactly and classify failures so the pipeline can tell retryable
// rate-limit/network errors (wrap domain.ErrTransientService) from
// permanent rejections (anything else).
//
// Implementations may include:
//   - Anthropic (Claude)
//   - Ollama (local models)
type Enhancer interface {
	// Enhance rewrites one chunk of scrubbed section content.
	Enhance(ctx context.Context, req EnhanceRequest) (string, error)

	// ModelName returns the model identifier. It participates in cache
	// fingerprints so results from different models never mix.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters): the scrub/restore engine,
// the deduplicating enhancement cache, the chunked pipeline
// coordinator and the session lifecycle.
package services

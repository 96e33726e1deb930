// Package domain defines the core business entities for the de-identification
// engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Category: A PHI category (person, date, address, ...)
//   - Match: A detected PHI span in source text
//   - Placeholder: The reversible token substituted for a span
//   - ReferenceTable: The session-scoped placeholder↔value bijection
//   - Chunk: An ordered fragment of scrubbed text sized for enhancement
//   - Session: One document-processing session and its lifecycle
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

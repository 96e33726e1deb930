// Package sqlite provides SQLite-backed persistence for session metadata
// and the enhancement result cache.
//
// One database file holds both concerns. Reference table artifacts do NOT
// live here: they carry the PHI mapping and are stored as separate
// per-session files (encrypted at rest) so they can be deleted
// individually when a session is purged.
//
// The schema is managed through embedded migrations applied on open, so a
// database created by an older build upgrades in place.
package sqlite

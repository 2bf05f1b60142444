// Package monitor implements the facility hierarchy and report tracking.
//
// The hierarchy is three levels deep: zones contain subzones, subzones
// contain sites. Each site carries free-form sensor and alarm payloads
// plus an append-only history of past readings. Parent-to-child
// membership is derived from the child's back-reference at query time,
// so a successful child insert is immediately visible in the parent
// without a second write.
//
// All persistence goes through Repository, backed by SQLite with JSON
// text columns for the free-form payloads.
package monitor

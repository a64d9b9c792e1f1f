// Package session houses the in-memory implementation of core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. A durable SQLite backend lives in
// storage/sqlite; only the wiring layer decides which one to instantiate.
package session

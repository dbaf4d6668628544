// Package postgres provides PostgreSQL-backed implementations of the store
// interfaces: the durable task queue rows and the persisted avatar records.
// Database errors are mapped to the sentinel errors in the store package so
// callers never depend on driver-specific error types.
package postgres

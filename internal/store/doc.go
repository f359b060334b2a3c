// Package store defines the persistence interfaces used by the service
// layer, plus the shared DBTX/transaction plumbing their implementations
// build on. Concrete implementations live in internal/platform/postgres.
package store

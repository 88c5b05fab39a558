// Package store persists registered endpoints so the gateway can
// restore its registry across restarts. The SQLite implementation is
// the only backend; the Store interface exists so tests and callers
// depend on behavior rather than the driver.
package store

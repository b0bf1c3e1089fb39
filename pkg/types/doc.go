// Package types defines the core data structures shared across the LDM
// server: the hierarchy (platforms, projects, folders, files, rows),
// translation memory, background operations, trash, sessions, and sync
// subscriptions. Both backend adapters and every engine operate on these
// types; nothing here is backend-specific.
package types

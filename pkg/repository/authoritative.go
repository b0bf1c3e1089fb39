package repository

import "github.com/ldmsys/ldm/pkg/manager"

// NewAuthoritativeBackend wraps a Manager as a Backend. Manager already
// implements every method Backend needs (writes go through Raft, reads hit
// the local store) — this exists purely so callers don't need to know
// that detail to construct a Repository.
func NewAuthoritativeBackend(mgr *manager.Manager) Backend {
	return mgr
}

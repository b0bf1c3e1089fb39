package identity

import "github.com/ldmsys/ldm/pkg/types"

// roleRank orders Role from least to most privileged so HasAtLeastRole
// can do a single comparison instead of an explicit table per pair.
var roleRank = map[types.Role]int{
	types.RoleViewer:     0,
	types.RoleTranslator: 1,
	types.RoleAdmin:      2,
}

// HasAtLeastRole reports whether p's role meets or exceeds min.
func HasAtLeastRole(p *types.Principal, min types.Role) bool {
	if p == nil {
		return false
	}
	return roleRank[p.Role] >= roleRank[min]
}

// CanAccessScope reports whether p may act on the given platform or
// project id. An empty Scopes slice means the principal is restricted
// only by Role, not by scope — e.g. an admin with no listed scopes. A
// non-empty Scopes slice is an allowlist.
func CanAccessScope(p *types.Principal, id string) bool {
	if p == nil {
		return false
	}
	if len(p.Scopes) == 0 {
		return true
	}
	for _, scope := range p.Scopes {
		if scope == id {
			return true
		}
	}
	return false
}

// IsOfflineSandboxAllowed reports whether p may use the local/offline
// backend. Every authenticated principal may; the check exists as a
// single point other capability rules (e.g. a future "admins only"
// policy) can be layered onto.
func IsOfflineSandboxAllowed(p *types.Principal) bool {
	return p != nil && p.UserID != ""
}

package api

import (
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/identity"
	"github.com/ldmsys/ldm/pkg/types"
)

const principalContextKey = "principal"

// loadPrincipal runs after echojwt has validated the bearer token and
// parsed it into *identity.Claims (stashed under echojwt's default
// ContextKey, "user"); it turns those claims into the types.Principal
// every handler reads, so handlers never touch JWT machinery directly.
func (s *Server) loadPrincipal(c echo.Context) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return
	}
	claims, ok := token.Claims.(*identity.Claims)
	if !ok {
		return
	}
	c.Set(principalContextKey, &types.Principal{
		UserID:    claims.UserID,
		Role:      types.Role(claims.Role),
		MachineID: claims.MachineID,
		Scopes:    claims.Scopes,
	})
}

func principalFrom(c echo.Context) (*types.Principal, bool) {
	p, ok := c.Get(principalContextKey).(*types.Principal)
	return p, ok
}

// requirePrincipal fails the request if echojwt did not resolve a
// principal, which should only happen for an unauthenticated route that
// forgot it needs one.
func requirePrincipal(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := principalFrom(c); !ok {
			return errs.New(errs.Unauthenticated, "no authenticated principal")
		}
		return next(c)
	}
}

// requireRole builds middleware rejecting principals below min in the
// Viewer < Translator < Admin ordering.
func requireRole(min types.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := principalFrom(c)
			if !ok {
				return errs.New(errs.Unauthenticated, "no authenticated principal")
			}
			if !identity.HasAtLeastRole(p, min) {
				return errs.New(errs.Forbidden, "role "+string(p.Role)+" does not meet required "+string(min))
			}
			return next(c)
		}
	}
}

// requireScope rejects a request touching an id outside the principal's
// allowed scopes.
func requireScope(id string, p *types.Principal) error {
	if !identity.CanAccessScope(p, id) {
		return errs.New(errs.Forbidden, "principal is not scoped to "+id)
	}
	return nil
}

// Package identity resolves the authenticated Principal for every
// request and enforces the coarse role/scope checks that gate
// hierarchy and TM operations. Token issuance/validation is grounded on
// evalgo-org-eve's auth.TokenService; cluster join tokens are a separate
// concern, handled by pkg/manager.TokenManager.
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/types"
)

// Claims is the JWT payload carrying everything needed to rebuild a
// types.Principal without a database round trip.
type Claims struct {
	UserID    string   `json:"user_id"`
	Role      string   `json:"role"`
	MachineID string   `json:"machine_id"`
	Scopes    []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Service issues and validates Principal tokens.
type Service struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewService creates an identity Service. secret signs every token with
// HS256; expiration is the default token lifetime used by Issue.
func NewService(secret string, expiration time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		issuer:     "ldm",
		expiration: expiration,
	}
}

// Issue signs a token for p.
func (s *Service) Issue(p *types.Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    p.UserID,
		Role:      string(p.Role),
		MachineID: p.MachineID,
		Scopes:    p.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   p.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errs.Wrap(errs.Internal, p.UserID, "sign token", err)
	}
	return signed, nil
}

// Parse validates tokenString and rebuilds the Principal it carries.
func (s *Service) Parse(tokenString string) (*types.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Unauthenticated, "", "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errs.New(errs.Unauthenticated, "invalid token claims")
	}

	return &types.Principal{
		UserID:    claims.UserID,
		Role:      types.Role(claims.Role),
		MachineID: claims.MachineID,
		Scopes:    claims.Scopes,
	}, nil
}

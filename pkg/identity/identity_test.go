package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ldmsys/ldm/pkg/types"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	p := &types.Principal{
		UserID:    "alice",
		Role:      types.RoleTranslator,
		MachineID: "laptop-1",
		Scopes:    []string{"proj-1", "proj-2"},
	}

	token, err := svc.Issue(p)
	require.NoError(t, err)

	got, err := svc.Parse(token)
	require.NoError(t, err)
	require.Equal(t, p.UserID, got.UserID)
	require.Equal(t, p.Role, got.Role)
	require.Equal(t, p.MachineID, got.MachineID)
	require.Equal(t, p.Scopes, got.Scopes)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewService("secret-a", time.Hour).Issue(&types.Principal{UserID: "alice", Role: types.RoleViewer})
	require.NoError(t, err)

	_, err = NewService("secret-b", time.Hour).Parse(token)
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	svc := NewService("secret", -time.Minute)
	token, err := svc.Issue(&types.Principal{UserID: "alice", Role: types.RoleViewer})
	require.NoError(t, err)

	_, err = svc.Parse(token)
	require.Error(t, err)
}

func TestHasAtLeastRoleOrdering(t *testing.T) {
	admin := &types.Principal{UserID: "a", Role: types.RoleAdmin}
	translator := &types.Principal{UserID: "t", Role: types.RoleTranslator}
	viewer := &types.Principal{UserID: "v", Role: types.RoleViewer}

	require.True(t, HasAtLeastRole(admin, types.RoleAdmin))
	require.True(t, HasAtLeastRole(admin, types.RoleViewer))
	require.True(t, HasAtLeastRole(translator, types.RoleTranslator))
	require.False(t, HasAtLeastRole(translator, types.RoleAdmin))
	require.False(t, HasAtLeastRole(viewer, types.RoleTranslator))
	require.False(t, HasAtLeastRole(nil, types.RoleViewer))
}

func TestCanAccessScope(t *testing.T) {
	unrestricted := &types.Principal{UserID: "a", Role: types.RoleAdmin}
	scoped := &types.Principal{UserID: "t", Role: types.RoleTranslator, Scopes: []string{"proj-1"}}

	require.True(t, CanAccessScope(unrestricted, "proj-9"))
	require.True(t, CanAccessScope(scoped, "proj-1"))
	require.False(t, CanAccessScope(scoped, "proj-2"))
	require.False(t, CanAccessScope(nil, "proj-1"))
}

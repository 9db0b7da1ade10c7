package authz

import (
	"os"
	"path/filepath"
	"testing"

	"quote_pipeline_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actorWith(roles ...Role) Actor {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return Actor{Roles: out}
}

func TestDefaultMatrix(t *testing.T) {
	p := New(nil)

	cases := []struct {
		role     Role
		resource Resource
		action   Action
		want     bool
	}{
		{RoleManager, ResourceQuotes, ActionCreate, true},
		{RoleManager, ResourceClients, ActionList, true},
		{RoleManager, ResourceQuotes, ActionDelete, false},
		{RoleManager, ResourceClients, ActionDelete, false},
		{RoleAdmin, ResourceQuotes, ActionDelete, true},
		{RoleAdmin, ResourceClients, ActionDelete, true},
		{RoleSuperAdmin, ResourceQuotes, ActionReopen, true},
		{RoleMarketing, ResourceClients, ActionView, true},
		{RoleMarketing, ResourceClients, ActionUpdate, false},
		{RoleMarketing, ResourceQuotes, ActionView, false},
		{RoleStaff, ResourceQuotes, ActionList, false},
		{RoleStaff, ResourceAppointments, ActionCreate, true},
		{RoleStaff, ResourceAppointments, ActionDelete, false},
	}

	for _, tc := range cases {
		got := p.CanAccess(actorWith(tc.role), tc.resource, tc.action)
		assert.Equalf(t, tc.want, got, "%s %s %s", tc.role, tc.action, tc.resource)
	}
}

func TestCanAccessUsesAnyRole(t *testing.T) {
	p := New(nil)
	assert.True(t, p.CanAccess(actorWith(RoleStaff, RoleAdmin), ResourceQuotes, ActionDelete))
	assert.False(t, p.CanAccess(Actor{}, ResourceAppointments, ActionView))
	assert.False(t, p.CanAccess(Actor{Roles: []string{"owner"}}, ResourceQuotes, ActionView))
}

func TestCanTransition(t *testing.T) {
	p := New(nil)
	manager := actorWith(RoleManager)
	admin := actorWith(RoleAdmin)

	assert.True(t, p.CanTransition(manager, "draft", "sent"))
	assert.False(t, p.CanTransition(actorWith(RoleStaff), "draft", "sent"))
	assert.False(t, p.CanTransition(manager, "refused", "draft"))
	assert.True(t, p.CanTransition(admin, "refused", "draft"))
	assert.False(t, p.CanTransition(admin, "sent", "expired"))
	assert.True(t, p.CanTransition(SystemActor(), "sent", "expired"))
	assert.False(t, p.CanTransition(SystemActor(), "sent", "accepted"))
}

func TestRequire(t *testing.T) {
	p := New(nil)

	require.NoError(t, p.Require(actorWith(RoleAdmin), ResourceClients, ActionDelete))
	require.NoError(t, p.Require(SystemActor(), ResourceQuotes, ActionUpdate))

	err := p.Require(actorWith(RoleManager), ResourceClients, ActionDelete)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
roles:
  staff:
    quotes: [view, list]
`), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, p.CanAccess(actorWith(RoleStaff), ResourceQuotes, ActionView))
	assert.False(t, p.CanAccess(actorWith(RoleAdmin), ResourceQuotes, ActionView))
}

func TestLoadFileRejectsUnknownNames(t *testing.T) {
	cases := map[string]string{
		"role":     "roles:\n  owner:\n    quotes: [view]\n",
		"resource": "roles:\n  staff:\n    invoices: [view]\n",
		"action":   "roles:\n  staff:\n    quotes: [approve]\n",
		"empty":    "roles: {}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadDefaultsWithoutPath(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.True(t, p.CanAccess(actorWith(RoleManager), ResourceQuotes, ActionView))
}

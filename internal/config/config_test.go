package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER", "")
	t.Setenv("GUARD_LOCALHOST_PORTS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, IdentityProviderLocal, cfg.Identity.Provider)
	assert.Equal(t, []string{"3000"}, cfg.Guard.LocalhostPorts)
	assert.Equal(t, "X-Requested-With", cfg.Guard.MarkerHeader)
	assert.Equal(t, "XMLHttpRequest", cfg.Guard.MarkerValue)
	assert.False(t, cfg.Reconcile.Enabled)
	assert.Equal(t, time.Duration(0), cfg.Identity.Timeout())
}

func TestLoadTrimsSiteURLAndParsesPorts(t *testing.T) {
	t.Setenv("SITE_URL", "https://artisans.example.fr/")
	t.Setenv("GUARD_LOCALHOST_PORTS", "3000, 5173")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://artisans.example.fr", cfg.Guard.SiteURL)
	assert.Equal(t, []string{"3000", "5173"}, cfg.Guard.LocalhostPorts)
}

func TestLoadRejectsRemoteProviderWithoutURL(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER", IdentityProviderRemote)
	t.Setenv("IDENTITY_REMOTE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER", "ldap")

	_, err := Load()
	require.Error(t, err)
}

func TestReconcileDurations(t *testing.T) {
	r := ReconcileConfig{}
	assert.Equal(t, 10*time.Minute, r.Interval())
	assert.Equal(t, 30*time.Minute, r.Grace())

	r = ReconcileConfig{IntervalSeconds: 5, GraceMinutes: 2}
	assert.Equal(t, 5*time.Second, r.Interval())
	assert.Equal(t, 2*time.Minute, r.Grace())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 85, cfg.Alerts.CriticalFillLevel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ModeDefault, cfg.App.Mode)
	assert.Equal(t, 5*time.Second, cfg.Messaging.OutboxDrainInterval)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  mode: demo
alerts:
  critical_fill_level: 90
  admin_email: ops@example.com
messaging:
  backend: mqtt
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Demo())
	assert.Equal(t, 90, cfg.Alerts.CriticalFillLevel)
	assert.Equal(t, "ops@example.com", cfg.AdminEmail())
	assert.Equal(t, "mqtt", cfg.Messaging.Backend)
	// untouched sections keep their defaults
	assert.Equal(t, 8083, cfg.Web.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "env@example.com")
	t.Setenv("APP_MODE", "DEMO")
	t.Setenv("SENDGRID_API_KEY", "SG.test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", cfg.AdminEmail())
	assert.True(t, cfg.Demo())
	assert.Equal(t, "SG.test", cfg.Mail.SendGridAPIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Alerts.CriticalFillLevel = 0
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Messaging.Backend = "amqp"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.App.Mode = "chaos"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Defaults()
	cfg.Alerts.AdminEmail = "saved@example.com"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved@example.com", loaded.AdminEmail())
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := Defaults()
	cfg.App.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())
}

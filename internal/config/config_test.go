package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobarin/auctioneer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	for _, k := range []string{"API_PORT", "DID_API_KEY", "PUBLIC_BASE_URL", "VERCEL_URL", "STORAGE_BACKEND", "POLL_INTERVAL", "POLL_MAX_ATTEMPTS", "POLL_TIMEOUT", "SELECTED_AVATAR"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.Empty(t, cfg.DIDAPIKey, "missing key is not a load error")
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.PollMaxAttempts)
	assert.Zero(t, cfg.PollTimeout)
	assert.Equal(t, DefaultSelectedAvatar, cfg.SelectedAvatar)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_PORT", "9000")
	t.Setenv("VERCEL_URL", "auction.example.app")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_TIMEOUT", "90")
	t.Setenv("POLL_MAX_ATTEMPTS", "30")
	t.Setenv("STORAGE_BACKEND", "GCS")
	t.Setenv("GCS_BUCKET", "lots")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://auction.example.app", cfg.PublicBaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.PollTimeout)
	assert.Equal(t, 30, cfg.PollMaxAttempts)
	assert.Equal(t, "gcs", cfg.StorageBackend)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := Config{StorageBackend: "local", PollInterval: time.Second}
	require.NoError(t, base.Validate())

	tests := map[string]func(c *Config){
		"unknown backend":   func(c *Config) { c.StorageBackend = "s3" },
		"supabase no creds": func(c *Config) { c.StorageBackend = "supabase" },
		"gcs no bucket":     func(c *Config) { c.StorageBackend = "gcs" },
		"zero interval":     func(c *Config) { c.PollInterval = 0 },
		"negative attempts": func(c *Config) { c.PollMaxAttempts = -1 },
		"negative rate":     func(c *Config) { c.VendorRateLimit = -2 },
	}
	for name, mutate := range tests {
		c := base
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestRosterSelect(t *testing.T) {
	t.Parallel()

	r := DefaultRoster()

	a, err := r.Select(DefaultSelectedAvatar)
	require.NoError(t, err)
	assert.Equal(t, "John Wick", a.Name)
	assert.Equal(t, models.ModeCustom, a.Mode())
	assert.Equal(t, "en-US-DavisNeural", a.VoiceID)

	p, err := r.Select("presenter/amy-jcwCkr1grs")
	require.NoError(t, err)
	assert.Equal(t, models.ModeRegistered, p.Mode())
	assert.Equal(t, "amy-jcwCkr1grs", p.ID)

	_, err = r.Select("custom-avatar/Nobody")
	assert.Error(t, err)
	_, err = r.Select("hologram/x")
	assert.Error(t, err)

	assert.Len(t, r.Fallbacks, 2)
}

func TestLoadRosterFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "avatars.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[custom]]
id = "custom-1"
name = "Auntie Lou"
image = "/avatars/lou.png"
voice_id = "en-US-JennyNeural"
gender = "female"
cloned_voice = false
`), 0o644))

	r, err := LoadRoster(path)
	require.NoError(t, err)

	a, err := r.Select("custom-avatar/auntie lou")
	require.NoError(t, err)
	assert.Equal(t, "/avatars/lou.png", a.ImageURL)
	assert.True(t, a.IsCustomImage)
	assert.Equal(t, models.GenderFemale, a.Gender)

	// Fallbacks kept from the defaults.
	assert.Len(t, r.Fallbacks, 2)
}

func TestLoadRosterRejectsIncomplete(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[custom]]\nname = \"No Image\"\n"), 0o644))

	_, err := LoadRoster(path)
	assert.Error(t, err)

	_, err = LoadRoster(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ard14n/AJETE/api/schemas"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Browser.StabilityQuiet)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.DefaultModel)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, 7*time.Second, cfg.TTS.MinWatchdog)
	assert.Equal(t, 70*time.Millisecond, cfg.TTS.PerChar)
	assert.Equal(t, "artifacts", cfg.Artifacts.Dir)
}

func TestAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("AJETE_LLM_APIKEY", "")
	t.Setenv("GEMINI_API_KEY", "from-gemini")
	t.Setenv("GOOGLE_API_KEY", "from-google")

	cfg := loadDefaults(t)
	assert.Equal(t, "from-gemini", cfg.LLM.APIKey, "GEMINI_API_KEY wins over GOOGLE_API_KEY")

	t.Setenv("AJETE_LLM_APIKEY", "from-ajete")
	cfg = loadDefaults(t)
	assert.Equal(t, "from-ajete", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	base := func() *Config { return loadDefaults(t) }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"perception timeout", func(c *Config) { c.Browser.PerceptionTimeout = 0 }, "perception_timeout"},
		{"quiet exceeds cap", func(c *Config) { c.Browser.StabilityQuiet = 5 * time.Second }, "stability_quiet"},
		{"attempts", func(c *Config) { c.LLM.MaxAttempts = 0 }, "max_attempts"},
		{"watchdog order", func(c *Config) { c.TTS.MinWatchdog = time.Minute }, "min_watchdog"},
		{"artifacts dir", func(c *Config) { c.Artifacts.Dir = "  " }, "artifacts.dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvePersona(t *testing.T) {
	cfg := loadDefaults(t)

	p := cfg.ResolvePersona("Hurried-Shopper")
	assert.Equal(t, "hurried-shopper", p.Name, "matching is case-insensitive")

	p = cfg.ResolvePersona("does-not-exist")
	assert.Equal(t, "curious-browser", p.Name, "unknown names fall back to the first persona")

	p = cfg.ResolvePersona("")
	assert.Equal(t, "curious-browser", p.Name)
}

func TestResolvePersonaNormalizes(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Personas = []schemas.Persona{{Name: "sparse"}}

	p := cfg.ResolvePersona("sparse")
	assert.Equal(t, int64(1440), p.Width)
	assert.Equal(t, int64(900), p.Height)
	assert.Equal(t, 1.0, p.DeviceScale)
	assert.Equal(t, "en-US", p.Locale)
	assert.Equal(t, "UTC", p.Timezone)
}

func TestDefaultPersonasHaveVoices(t *testing.T) {
	for _, p := range DefaultPersonas() {
		require.NotNil(t, p.Voice, p.Name)
		assert.NotEmpty(t, p.Voice.VoiceName, p.Name)
		assert.NotEmpty(t, p.BasePrompt, p.Name)
	}
}

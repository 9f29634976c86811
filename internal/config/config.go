// Package config defines the typed configuration surface of the agent and
// its viper-backed loading rules.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ard14n/AJETE/api/schemas"
)

// Config is the root configuration record.
type Config struct {
	Server    ServerConfig      `mapstructure:"server" yaml:"server"`
	Logger    LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	LLM       LLMConfig         `mapstructure:"llm" yaml:"llm"`
	TTS       TTSConfig         `mapstructure:"tts" yaml:"tts"`
	Artifacts ArtifactsConfig   `mapstructure:"artifacts" yaml:"artifacts"`
	Personas  []schemas.Persona `mapstructure:"personas" yaml:"personas"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig carries the per-step ceilings of the control loop. Every
// external call the loop suspends on is bounded by one of these.
type BrowserConfig struct {
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	HydrationWait     time.Duration `mapstructure:"hydration_wait" yaml:"hydration_wait"`
	PerceptionTimeout time.Duration `mapstructure:"perception_timeout" yaml:"perception_timeout"`
	StabilityQuiet    time.Duration `mapstructure:"stability_quiet" yaml:"stability_quiet"`
	StabilityCap      time.Duration `mapstructure:"stability_cap" yaml:"stability_cap"`
	SettleWait        time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
	FailureWait       time.Duration `mapstructure:"failure_wait" yaml:"failure_wait"`
}

// LLMConfig configures the vision model client. The API key is environment
// only and is never written to artifacts.
type LLMConfig struct {
	APIKey         string        `mapstructure:"-" yaml:"-"`
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint"`
	DefaultModel   string        `mapstructure:"default_model" yaml:"default_model"`
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BackoffStep    time.Duration `mapstructure:"backoff_step" yaml:"backoff_step"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// TTSConfig configures speech synthesis and the playback watchdog
// (max(min, len*per_char), clamped to max).
type TTSConfig struct {
	Models      []string      `mapstructure:"models" yaml:"models"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	MinWatchdog time.Duration `mapstructure:"min_watchdog" yaml:"min_watchdog"`
	MaxWatchdog time.Duration `mapstructure:"max_watchdog" yaml:"max_watchdog"`
	PerChar     time.Duration `mapstructure:"per_char" yaml:"per_char"`
}

// ArtifactsConfig locates the per-run artifact directories.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ajete")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.hydration_wait", 2*time.Second)
	v.SetDefault("browser.perception_timeout", 5*time.Second)
	v.SetDefault("browser.stability_quiet", 500*time.Millisecond)
	v.SetDefault("browser.stability_cap", 3*time.Second)
	v.SetDefault("browser.settle_wait", 1*time.Second)
	v.SetDefault("browser.failure_wait", 5*time.Second)

	v.SetDefault("llm.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.default_model", "gemini-2.0-flash")
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.backoff_step", 1200*time.Millisecond)
	v.SetDefault("llm.request_timeout", 45*time.Second)

	v.SetDefault("tts.models", []string{
		"gemini-2.5-flash-preview-tts",
		"gemini-2.5-pro-preview-tts",
	})
	v.SetDefault("tts.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("tts.min_watchdog", 7*time.Second)
	v.SetDefault("tts.max_watchdog", 45*time.Second)
	v.SetDefault("tts.per_char", 70*time.Millisecond)

	v.SetDefault("artifacts.dir", "artifacts")
}

// Load unmarshals the viper state into a Config, resolves the API key from
// the environment, and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.LLM.APIKey = firstEnv("AJETE_LLM_APIKEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Browser.PerceptionTimeout <= 0 {
		return fmt.Errorf("browser.perception_timeout must be positive")
	}
	if c.Browser.StabilityQuiet > c.Browser.StabilityCap {
		return fmt.Errorf("browser.stability_quiet exceeds browser.stability_cap")
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1")
	}
	if c.TTS.MinWatchdog > c.TTS.MaxWatchdog {
		return fmt.Errorf("tts.min_watchdog exceeds tts.max_watchdog")
	}
	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		return fmt.Errorf("artifacts.dir must not be empty")
	}
	return nil
}

// ResolvePersona returns the persona matching name, falling back to the
// default persona for unknown or empty names.
func (c *Config) ResolvePersona(name string) schemas.Persona {
	personas := c.Personas
	if len(personas) == 0 {
		personas = DefaultPersonas()
	}
	for _, p := range personas {
		if strings.EqualFold(p.Name, name) {
			return normalizePersona(p)
		}
	}
	return normalizePersona(personas[0])
}

// normalizePersona fills unset viewport fields so browser emulation never
// receives zero dimensions.
func normalizePersona(p schemas.Persona) schemas.Persona {
	if p.Width <= 0 {
		p.Width = 1440
	}
	if p.Height <= 0 {
		p.Height = 900
	}
	if p.DeviceScale <= 0 {
		p.DeviceScale = 1.0
	}
	if p.Locale == "" {
		p.Locale = "en-US"
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	return p
}

// DefaultPersonas is the built-in persona set used when the config file does
// not supply one.
func DefaultPersonas() []schemas.Persona {
	return []schemas.Persona{
		{
			Name: "curious-browser",
			BasePrompt: "You are a curious, patient web user exploring a site for the first time. " +
				"You read what is on screen, prefer visible navigation, and explain every step in the first person.",
			Width: 1440, Height: 900, DeviceScale: 1.0,
			Locale: "en-US", Timezone: "UTC",
			Voice: &schemas.VoiceConfig{VoiceName: "Kore", LanguageCode: "en-US"},
		},
		{
			Name: "hurried-shopper",
			BasePrompt: "You are a shopper in a hurry. You head straight for search fields and product listings, " +
				"skip promotional content, and say out loud what you are looking for.",
			Width: 1280, Height: 800, DeviceScale: 1.0,
			Locale: "en-US", Timezone: "America/New_York",
			Voice: &schemas.VoiceConfig{VoiceName: "Puck", LanguageCode: "en-US"},
		},
		{
			Name: "methodical-tester",
			BasePrompt: "You are a methodical QA tester. You verify one element at a time, note unexpected behaviour, " +
				"and never repeat an interaction that already failed.",
			Width: 1920, Height: 1080, DeviceScale: 1.0,
			Locale:        "de-DE",
			Timezone:      "Europe/Berlin",
			ReducedMotion: true,
			Voice:         &schemas.VoiceConfig{VoiceName: "Charon", LanguageCode: "de-DE"},
		},
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 15 * time.Second
	defaultIdleTimeout        = 60 * time.Second
	defaultTemplatesDir       = "templates"
	defaultPublicDir          = "public"
	defaultLikeCoinAPI        = "https://api.like.co"
	defaultMiscAPI            = "https://api.like.co"
	defaultLikerLandAPI       = "https://api.liker.land"
	defaultLikeCoHostname     = "like.co"
	defaultLikerLandURLBase   = "https://liker.land"
	defaultAPITimeout         = 8 * time.Second
	defaultDebounce           = 500 * time.Millisecond
	defaultCooldownStartDelay = 3 * time.Second
	defaultCooldownTick       = 16 * time.Millisecond
	defaultIdleTTL            = 30 * time.Minute
	defaultRegistrySweep      = time.Minute
	defaultLocalesDir         = "locales"
	defaultLocaleFallback     = "en"
	defaultEnvironment        = "local"
	defaultFrameAncestors     = "*"
	defaultRateLimitRPS       = 10
	defaultRateLimitBurst     = 20
	defaultLogLevel           = "info"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	API       APIConfig
	Widget    WidgetConfig
	Locales   LocaleConfig
	Security  SecurityConfig
	Analytics AnalyticsConfig
	LogLevel  string
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TemplatesDir string
	PublicDir    string
	Dev          bool
}

// APIConfig points the widget at the LikeCoin backends. Empty base URLs switch the client
// to its offline fake.
type APIConfig struct {
	LikeCoinAPI      string
	MiscAPI          string
	LikerLandAPI     string
	LikeCoHostname   string
	LikerLandURLBase string
	Timeout          time.Duration
}

// WidgetConfig holds the interaction timings of the like button.
type WidgetConfig struct {
	Debounce           time.Duration
	CooldownStartDelay time.Duration
	CooldownTick       time.Duration
	IdleTTL            time.Duration
	RegistrySweep      time.Duration
}

// LocaleConfig lists the locale bundles to load.
type LocaleConfig struct {
	Dir       string
	Fallback  string
	Supported []string
}

// SecurityConfig groups cookie signing and response hardening settings.
type SecurityConfig struct {
	Environment     string
	SessionHashKey  string
	SessionBlockKey string
	FrameAncestors  string
	RateLimitRPS    int
	RateLimitBurst  int
}

// AnalyticsConfig is surfaced to templates.
type AnalyticsConfig struct {
	GA4MeasurementID string
	Debug            bool
}

// IsProd reports whether the service runs with production hardening.
func (c Config) IsProd() bool {
	return c.Security.Environment == "prod"
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	return slices.Clone(e.fields)
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration by combining defaults, .env overrides, environment
// variables and the explicit env map, in increasing precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	e := env(func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	})

	port := e.str("LIKEBUTTON_PORT", "")
	if port == "" {
		// Cloud Run injects PORT.
		port = e.str("PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         port,
			ReadTimeout:  e.duration("LIKEBUTTON_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: e.duration("LIKEBUTTON_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  e.duration("LIKEBUTTON_IDLE_TIMEOUT", defaultIdleTimeout),
			TemplatesDir: e.str("LIKEBUTTON_TEMPLATES_DIR", defaultTemplatesDir),
			PublicDir:    e.str("LIKEBUTTON_PUBLIC_DIR", defaultPublicDir),
			Dev:          e.flag("LIKEBUTTON_DEV", false),
		},
		API: APIConfig{
			LikeCoinAPI:      trimBase(e.raw("LIKEBUTTON_LIKECOIN_API", defaultLikeCoinAPI)),
			MiscAPI:          trimBase(e.raw("LIKEBUTTON_MISC_API", defaultMiscAPI)),
			LikerLandAPI:     trimBase(e.raw("LIKEBUTTON_LIKERLAND_API", defaultLikerLandAPI)),
			LikeCoHostname:   e.str("LIKEBUTTON_LIKE_CO_HOSTNAME", defaultLikeCoHostname),
			LikerLandURLBase: trimBase(e.str("LIKEBUTTON_LIKERLAND_URL_BASE", defaultLikerLandURLBase)),
			Timeout:          e.duration("LIKEBUTTON_API_TIMEOUT", defaultAPITimeout),
		},
		Widget: WidgetConfig{
			Debounce:           e.duration("LIKEBUTTON_DEBOUNCE", defaultDebounce),
			CooldownStartDelay: e.duration("LIKEBUTTON_COOLDOWN_START_DELAY", defaultCooldownStartDelay),
			CooldownTick:       e.duration("LIKEBUTTON_COOLDOWN_TICK", defaultCooldownTick),
			IdleTTL:            e.duration("LIKEBUTTON_IDLE_TTL", defaultIdleTTL),
			RegistrySweep:      e.duration("LIKEBUTTON_REGISTRY_SWEEP", defaultRegistrySweep),
		},
		Locales: LocaleConfig{
			Dir:       e.str("LIKEBUTTON_LOCALES_DIR", defaultLocalesDir),
			Fallback:  strings.ToLower(e.str("LIKEBUTTON_LOCALE_FALLBACK", defaultLocaleFallback)),
			Supported: e.list("LIKEBUTTON_LOCALES", []string{"en", "zh"}),
		},
		Security: SecurityConfig{
			Environment:     strings.ToLower(e.str("LIKEBUTTON_ENV", defaultEnvironment)),
			SessionHashKey:  e.str("LIKEBUTTON_SESSION_HASH_KEY", ""),
			SessionBlockKey: e.str("LIKEBUTTON_SESSION_BLOCK_KEY", ""),
			FrameAncestors:  e.str("LIKEBUTTON_FRAME_ANCESTORS", defaultFrameAncestors),
			RateLimitRPS:    e.number("LIKEBUTTON_RATE_LIMIT_RPS", defaultRateLimitRPS),
			RateLimitBurst:  e.number("LIKEBUTTON_RATE_LIMIT_BURST", defaultRateLimitBurst),
		},
		Analytics: AnalyticsConfig{
			GA4MeasurementID: e.str("LIKEBUTTON_GA_MEASUREMENT_ID", ""),
			Debug:            e.flag("LIKEBUTTON_ANALYTICS_DEBUG", false),
		},
		LogLevel: e.str("LOG_LEVEL", defaultLogLevel),
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	checks := []struct {
		field string
		ok    bool
	}{
		{"Server.Port", cfg.Server.Port != ""},
		{"API.Timeout", cfg.API.Timeout > 0},
		{"API.LikeCoHostname", cfg.API.LikeCoHostname != ""},
		{"Widget.Debounce", cfg.Widget.Debounce > 0},
		{"Widget.CooldownStartDelay", cfg.Widget.CooldownStartDelay > 0},
		{"Widget.CooldownTick", cfg.Widget.CooldownTick > 0},
		{"Widget.IdleTTL", cfg.Widget.IdleTTL > 0},
		{"Widget.RegistrySweep", cfg.Widget.RegistrySweep > 0},
		{"Locales.Fallback", slices.Contains(cfg.Locales.Supported, cfg.Locales.Fallback)},
		{"Security.RateLimitRPS", cfg.Security.RateLimitRPS > 0},
		{"Security.RateLimitBurst", cfg.Security.RateLimitBurst > 0},
		{"Security.SessionHashKey", !cfg.IsProd() || cfg.Security.SessionHashKey != ""},
	}
	var invalid []string
	for _, c := range checks {
		if !c.ok {
			invalid = append(invalid, c.field)
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

// env resolves a configuration key; ok is false when no source sets it.
type env func(key string) (value string, ok bool)

func (e env) str(key, fallback string) string {
	if value, ok := e(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// raw lets an explicitly empty value win over fallback. API base URLs use it so "" can
// select offline mode.
func (e env) raw(key, fallback string) string {
	if value, ok := e(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func (e env) duration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(e.str(key, "")); err == nil {
		return d
	}
	return fallback
}

func (e env) number(key string, fallback int) int {
	if n, err := strconv.Atoi(e.str(key, "")); err == nil {
		return n
	}
	return fallback
}

func (e env) flag(key string, fallback bool) bool {
	switch strings.ToLower(e.str(key, "")) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}

func (e env) list(key string, fallback []string) []string {
	raw := e.str(key, "")
	if raw == "" {
		return slices.Clone(fallback)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.ToLower(strings.TrimSpace(part)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func trimBase(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the call router server.
// Precedence: CLI flags > env vars > .env file > defaults.
type Config struct {
	DataDir          string
	HTTPPort         int
	BaseURL          string // public base URL used to build webhook callback URLs
	VendorAPIURL     string // voice-AI vendor API root
	TwilioAccountSID string
	TwilioAuthToken  string
	DefaultTimezone  string // IANA timezone for lines without one
	CORSOrigins      string
	LogLevel         string
	LogFormat        string // "text" or "json"
}

// defaults
const (
	defaultDataDir  = "./data"
	defaultHTTPPort = 8080
	defaultBaseURL  = "http://localhost:8080"
	defaultTimezone = "Europe/London"
	defaultLogLevel = "info"
	defaultLogFmt   = "text"
)

// envPrefix is the prefix for all call router environment variables.
const envPrefix = "CALLROUTER_"

// Load parses configuration from CLI flags, environment variables, and an
// optional .env file in the working directory.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	// A missing .env file is not an error; it is optional in production.
	_ = godotenv.Load()

	cfg := &Config{}

	fs := flag.NewFlagSet("callrouterd", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the database")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.BaseURL, "base-url", defaultBaseURL, "public base URL for webhook callback URLs")
	fs.StringVar(&cfg.VendorAPIURL, "vendor-api-url", "", "voice-AI vendor API root URL")
	fs.StringVar(&cfg.TwilioAccountSID, "twilio-account-sid", "", "telephony provider account SID")
	fs.StringVar(&cfg.TwilioAuthToken, "twilio-auth-token", "", "telephony provider auth token")
	fs.StringVar(&cfg.DefaultTimezone, "default-timezone", defaultTimezone, "default IANA timezone for schedule matching")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", "", "comma-separated list of allowed CORS origins (use * for all)")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFmt, "log output format (text, json)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// Map of flag name to env var name.
	envMap := map[string]string{
		"data-dir":           envPrefix + "DATA_DIR",
		"http-port":          envPrefix + "HTTP_PORT",
		"base-url":           envPrefix + "BASE_URL",
		"vendor-api-url":     envPrefix + "VENDOR_API_URL",
		"twilio-account-sid": envPrefix + "TWILIO_ACCOUNT_SID",
		"twilio-auth-token":  envPrefix + "TWILIO_AUTH_TOKEN",
		"default-timezone":   envPrefix + "DEFAULT_TIMEZONE",
		"cors-origins":       envPrefix + "CORS_ORIGINS",
		"log-level":          envPrefix + "LOG_LEVEL",
		"log-format":         envPrefix + "LOG_FORMAT",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "base-url":
			cfg.BaseURL = val
		case "vendor-api-url":
			cfg.VendorAPIURL = val
		case "twilio-account-sid":
			cfg.TwilioAccountSID = val
		case "twilio-auth-token":
			cfg.TwilioAuthToken = val
		case "default-timezone":
			cfg.DefaultTimezone = val
		case "cors-origins":
			cfg.CORSOrigins = val
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base-url must start with http:// or https://, got %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")

	if c.VendorAPIURL != "" &&
		!strings.HasPrefix(c.VendorAPIURL, "http://") && !strings.HasPrefix(c.VendorAPIURL, "https://") {
		return fmt.Errorf("vendor-api-url must start with http:// or https://, got %q", c.VendorAPIURL)
	}

	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("default-timezone %q is not a valid IANA timezone: %w", c.DefaultTimezone, err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	return nil
}

// FallbackURL returns the absolute URL the telephony provider calls with the
// team-dial outcome.
func (c *Config) FallbackURL() string {
	return c.BaseURL + "/incoming/fallback"
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

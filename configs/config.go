package configs

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrMissingCredentials is returned when the gateway key pair is not configured.
var ErrMissingCredentials = errors.New("gateway.key_id and gateway.key_secret are required")

// Secret holds a credential. It never prints its value through fmt or slog.
type Secret string

func (s Secret) String() string { return redacted(s) }

func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted(s)) }

// Reveal returns the raw value. Only pass it to code that authenticates with it.
func (s Secret) Reveal() string { return string(s) }

func redacted(s Secret) string {
	if s == "" {
		return ""
	}
	return "***redacted***"
}

type Config struct {
	App struct {
		Name      string `koanf:"name"`
		Port      int    `koanf:"port"`
		LogLevel  string `koanf:"log_level"`
		LogFile   string `koanf:"log_file"`
		LogFormat string `koanf:"log_format"` // json | text
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
		MaxBodyBytes    int64         `koanf:"max_body_bytes"`
		// CIDRs or IPs of reverse proxies whose X-Forwarded-For is trusted.
		// Env form is comma separated, e.g. PAYRELAY_HTTP__TRUSTED_PROXIES=10.0.0.0/8,127.0.0.1
		TrustedProxies []string `koanf:"trusted_proxies"`
	} `koanf:"http"`

	Gateway struct {
		BaseURL   string        `koanf:"base_url"`
		KeyID     string        `koanf:"key_id"`
		KeySecret Secret        `koanf:"key_secret"`
		Timeout   time.Duration `koanf:"timeout"`
	} `koanf:"gateway"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password Secret `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	RateLimit struct {
		PerMinute int `koanf:"per_minute"`
	} `koanf:"rate_limit"`
}

var defaults = map[string]any{
	"app.name":              "payment-relay",
	"app.port":              3000,
	"app.log_level":         "info",
	"app.log_format":        "json",
	"http.read_timeout":     "10s",
	"http.write_timeout":    "30s",
	"http.idle_timeout":     "60s",
	"http.shutdown_timeout": "15s",
	"http.max_body_bytes":   1 << 20,
	"gateway.base_url":      "https://api.razorpay.com",
	"gateway.timeout":       "10s",
	"rate_limit.per_minute": 60,
}

// HTTPAddr is the listen address derived from app.port.
func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 0) built-in defaults
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix PAYRELAY_, nested with __)
	// e.g. PAYRELAY_REDIS__ADDR, PAYRELAY_GATEWAY__TIMEOUT
	if err := k.Load(env.ProviderWithValue("PAYRELAY_", ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(key, "PAYRELAY_")
		key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
		if key == "http.trusted_proxies" {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	// 4) the variables hosting platforms and the Razorpay docs use
	if err := k.Load(env.ProviderWithValue("", ".", wellKnownEnv), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func splitList(v string) []string {
	out := []string{}
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// wellKnownEnv maps the unprefixed variables onto config keys. Empty values are skipped.
func wellKnownEnv(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	switch key {
	case "RAZORPAY_KEY_ID":
		return "gateway.key_id", value
	case "RAZORPAY_KEY_SECRET":
		return "gateway.key_secret", value
	case "PORT":
		return "app.port", value
	}
	return "", nil
}

func (c Config) Validate() error {
	if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
		return ErrMissingCredentials
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port out of range: %d", c.App.Port)
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url required")
	}
	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("rate_limit.per_minute must not be negative")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive")
	}
	for _, p := range c.HTTP.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err == nil {
			continue
		}
		if net.ParseIP(p) == nil {
			return fmt.Errorf("http.trusted_proxies: %q is not an IP or CIDR", p)
		}
	}
	return nil
}

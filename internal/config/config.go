package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// MinSecretLength is the shortest signing secret accepted for HS256 tokens.
const MinSecretLength = 32

type Config struct {
	Port           string
	BaseURL        string
	DatabaseURL    string
	RedisURL       string
	LogFile        string
	LogFormat      string
	MetricsAddr    string
	TokenSecret    string
	TokenTTL       time.Duration
	SessionTTL     time.Duration
	SecureCookies  bool
	TrustedProxies []string
	Email          EmailConfig
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Secure   bool
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

var defaults = map[string]string{
	"port":            "8080",
	"base_url":        "http://localhost:3333",
	"redis_url":       "redis://localhost:6379",
	"log.format":      "json",
	"metrics_addr":    ":9100",
	"token.ttl":       "72h",
	"session.ttl":     "168h",
	"cookies.secure":  "true",
	"email.port":      "587",
	"email.from":      "",
	"log.file":        "",
	"database_url":    "",
	"token.secret":    "",
	"trusted_proxies": "",
}

// envKeys maps config keys to environment variables; the first non-empty
// variable wins.
var envKeys = []struct {
	key   string
	names []string
}{
	{"port", []string{"PORT"}},
	{"base_url", []string{"APP_URL", "APP_BASE_URL"}},
	{"database_url", []string{"DATABASE_URL"}},
	{"redis_url", []string{"REDIS_URL"}},
	{"log.file", []string{"LOG_FILE"}},
	{"log.format", []string{"LOG_FORMAT"}},
	{"metrics_addr", []string{"METRICS_ADDR"}},
	{"token.secret", []string{"SECRET", "TOKEN_SECRET"}},
	{"token.ttl", []string{"TOKEN_TTL"}},
	{"session.ttl", []string{"SESSION_TTL"}},
	{"cookies.secure", []string{"SECURE_COOKIES"}},
	{"trusted_proxies", []string{"TRUSTED_PROXIES"}},
	{"email.host", []string{"EMAIL_SERVER_HOST"}},
	{"email.port", []string{"EMAIL_SERVER_PORT"}},
	{"email.username", []string{"EMAIL_SERVER_USER"}},
	{"email.password", []string{"EMAIL_SERVER_PASSWORD"}},
	{"email.from", []string{"FROM_EMAIL", "EMAIL_FROM"}},
	{"email.secure", []string{"EMAIL_SERVER_SECURE"}},
}

var flagKeys = map[string]string{
	"port":         "port",
	"base-url":     "base_url",
	"log-format":   "log.format",
	"metrics-addr": "metrics_addr",
}

// Load builds the process configuration. Sources are applied in order:
// defaults, the optional YAML file at path, environment variables, then
// flags that were explicitly set on the command line.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg, err := Read(path, flags)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read resolves the layers like Load but skips validation, for tools such as
// migrate that only need part of the config.
func Read(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return Config{}, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	for _, e := range envKeys {
		val := clean(firstNonEmpty(lookupAll(e.names)...))
		if val == "" {
			continue
		}
		if err := k.Set(e.key, val); err != nil {
			return Config{}, err
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (Config, error) {
	emailPort, err := strconv.Atoi(clean(k.String("email.port")))
	if err != nil {
		emailPort = 587
	}

	cfg := Config{
		Port:           k.String("port"),
		BaseURL:        strings.TrimRight(k.String("base_url"), "/"),
		DatabaseURL:    k.String("database_url"),
		RedisURL:       k.String("redis_url"),
		LogFile:        k.String("log.file"),
		LogFormat:      k.String("log.format"),
		MetricsAddr:    k.String("metrics_addr"),
		TokenSecret:    k.String("token.secret"),
		TokenTTL:       parseDuration(k.String("token.ttl"), 72*time.Hour),
		SessionTTL:     parseDuration(k.String("session.ttl"), 7*24*time.Hour),
		SecureCookies:  parseBool(k.String("cookies.secure")),
		TrustedProxies: parseList(k.String("trusted_proxies")),
		Email: EmailConfig{
			Host:     k.String("email.host"),
			Port:     emailPort,
			Username: k.String("email.username"),
			Password: k.String("email.password"),
			From:     k.String("email.from"),
			Secure:   parseBool(k.String("email.secure")),
		},
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.TokenSecret) < MinSecretLength {
		return fmt.Errorf("SECRET must be at least %d bytes", MinSecretLength)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("APP_URL is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

func lookupAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, os.Getenv(n))
	}
	return out
}

func clean(val string) string {
	return strings.Trim(val, "\"' \t\r\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseDuration accepts Go duration strings or a bare number of seconds.
func parseDuration(val string, def time.Duration) time.Duration {
	val = clean(val)
	if val == "" {
		return def
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func parseBool(val string) bool {
	if val == "" {
		return false
	}
	val = strings.ToLower(clean(val))
	return val == "1" || val == "true" || val == "yes"
}

func parseList(val string) []string {
	parts := strings.Split(val, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Package config loads and validates runtime configuration. Values come from
// struct defaults overlaid with LINKVAULT_* environment variables; there is no
// config file. Validation failures abort startup rather than limping along
// with a half-formed configuration.
package config

import (
	"fmt"
	"net"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "LINKVAULT_"

// Config holds every runtime tunable.
type Config struct {
	// Addr is the listen address, ip:port or :port.
	Addr string `koanf:"addr" validate:"required,ip_port"`
	// DataDir holds the SQLite database and the payload blobs.
	DataDir string `koanf:"data_dir" validate:"required,safe_dir"`
	// MaxUploadBytes caps a single file upload.
	MaxUploadBytes int64 `koanf:"max_upload_bytes" validate:"gt=0"`
	// DefaultTTL applies when a create request names no expiry.
	DefaultTTL time.Duration `koanf:"default_ttl" validate:"gt=0"`
	// MaxTTL is the longest lifetime a create request may ask for.
	MaxTTL time.Duration `koanf:"max_ttl" validate:"gtefield=DefaultTTL"`
	// JWTSecret signs session tokens. When empty, a random per-process
	// secret is generated at startup and sessions do not survive restarts.
	JWTSecret string `koanf:"jwt_secret"`
	// TokenTTL bounds session token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl" validate:"gt=0"`
	// ReclaimInterval is how often the background sweep runs.
	ReclaimInterval time.Duration `koanf:"reclaim_interval" validate:"gt=0"`
	// AccessLogRetention is how long access events are kept.
	AccessLogRetention time.Duration `koanf:"access_log_retention" validate:"gt=0"`
}

// DefaultAppConfig is the configuration used when no environment overrides
// are present.
var DefaultAppConfig = Config{
	Addr:               ":8080",
	DataDir:            "data",
	MaxUploadBytes:     50 << 20,
	DefaultTTL:         10 * time.Minute,
	MaxTTL:             30 * 24 * time.Hour,
	TokenTTL:           7 * 24 * time.Hour,
	ReclaimInterval:    5 * time.Minute,
	AccessLogRetention: 30 * 24 * time.Hour,
}

// defaultLoader seeds a koanf instance with DefaultAppConfig. A package var
// so tests can inject load failures.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

// Load builds the effective configuration: defaults, then environment
// overrides, then validation.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	v := validator.New()
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("safe_dir", validDataDir); err != nil {
		return nil, err
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// SQLiteDSN returns the database DSN rooted under DataDir, with the pragmas
// the engine relies on (WAL for concurrent readers, busy timeout so the
// claim UPDATE waits out writer contention).
func (c *Config) SQLiteDSN() string {
	return "file:" + path.Join(c.DataDir, "linkvault.db") +
		"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"
}

// PayloadDir returns the blob directory under DataDir.
func (c *Config) PayloadDir() string {
	return path.Join(c.DataDir, "payloads")
}

// validIPPort accepts ip:port with a numeric port in 1..65535. Hostnames are
// rejected: the listen address is an interface, not a name.
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// validDataDir rejects paths that escape upward or collapse to a filesystem
// root. Relative paths are fine; they resolve against the working directory.
func validDataDir(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if p == "" {
		return false
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == "/" {
		return false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	return true
}

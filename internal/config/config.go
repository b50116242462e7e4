// Package config resolves runtime settings from flags, environment, .env files and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/and161185/outfit-studio/internal/errs"
)

// Backends.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// EnvPrefix prefixes every environment variable, e.g. OUTFIT_BACKEND.
const EnvPrefix = "OUTFIT"

// Keys.
const (
	KeyBackend      = "backend"
	KeyDataDir      = "data-dir"
	KeyDSN          = "dsn"
	KeyJWTKey       = "jwt-key"
	KeySessionTTL   = "session-ttl"
	KeyAPIKey       = "api-key"
	KeyModel        = "model"
	KeyClientID     = "client-id"
	KeyMaxSlotBytes = "max-slot-bytes"
	KeyDev          = "dev"
)

// Config holds resolved settings.
type Config struct {
	Backend      string
	DataDir      string
	DSN          string
	JWTKey       string
	SessionTTL   time.Duration
	APIKey       string
	Model        string
	ClientID     string
	MaxSlotBytes int64
	Dev          bool
}

// TokenPath is where the remote backend keeps its session token.
func (c Config) TokenPath() string { return filepath.Join(c.DataDir, "token.json") }

// New returns a viper instance with defaults and environment bindings applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyBackend, BackendLocal)
	v.SetDefault(KeyDataDir, defaultDataDir())
	v.SetDefault(KeySessionTTL, 24*time.Hour)
	v.SetDefault(KeyModel, "gemini-2.5-flash-image")
	v.SetDefault(KeyMaxSlotBytes, int64(5<<20))
	v.SetDefault(KeyDev, false)

	// the generation key is commonly exported without the prefix
	_ = v.BindEnv(KeyAPIKey, EnvPrefix+"_API_KEY", "GEMINI_API_KEY", "API_KEY")
	if host, err := os.Hostname(); err == nil {
		v.SetDefault(KeyClientID, host)
	}
	return v
}

// LoadDotEnv loads the given .env files into the process environment. Missing files are skipped
// and variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the optional config file and returns validated settings.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	c := Config{
		Backend:      strings.ToLower(strings.TrimSpace(v.GetString(KeyBackend))),
		DataDir:      v.GetString(KeyDataDir),
		DSN:          v.GetString(KeyDSN),
		JWTKey:       v.GetString(KeyJWTKey),
		SessionTTL:   v.GetDuration(KeySessionTTL),
		APIKey:       strings.TrimSpace(v.GetString(KeyAPIKey)),
		Model:        v.GetString(KeyModel),
		ClientID:     v.GetString(KeyClientID),
		MaxSlotBytes: v.GetInt64(KeyMaxSlotBytes),
		Dev:          v.GetBool(KeyDev),
	}
	return c, c.Validate()
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.DataDir == "" {
			return errs.Validation("%s is required for the local backend", KeyDataDir)
		}
	case BackendRemote:
		if c.DSN == "" {
			return errs.Validation("%s is required for the remote backend", KeyDSN)
		}
		if c.JWTKey == "" {
			return errs.Validation("%s is required for the remote backend", KeyJWTKey)
		}
	default:
		return errs.Validation("unknown backend %q (want %s or %s)", c.Backend, BackendLocal, BackendRemote)
	}
	if c.SessionTTL <= 0 {
		return errs.Validation("%s must be positive", KeySessionTTL)
	}
	if c.MaxSlotBytes <= 0 {
		return errs.Validation("%s must be positive", KeyMaxSlotBytes)
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "outfit-studio")
	}
	return ".outfit-studio"
}

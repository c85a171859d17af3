package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "CHECKIN"

var (
	ErrUnknownStoreDriver = errors.New("config: unknown store driver")
	ErrInvalid            = errors.New("config: invalid value")
)

// Load builds the configuration from defaults, an optional YAML file, a .env
// file and the environment, in increasing precedence. Every key can be set as
// CHECKIN_<SECTION>_<KEY>; PORT, DATABASE_URL and CORS_ORIGINS are also read.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// legacyEnv keeps the plain variable names deployments already set.
var legacyEnv = map[string]string{
	"server.port":         "PORT",
	"database.url":        "DATABASE_URL",
	"server.cors_origins": "CORS_ORIGINS",
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("database.url", d.Database.URL)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.bolt_path", d.Store.BoltPath)

	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.confirm_path", d.Backend.ConfirmPath)
	v.SetDefault("backend.release_path", d.Backend.ReleasePath)
	v.SetDefault("backend.auth_token", d.Backend.AuthToken)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.max_retries", d.Backend.MaxRetries)
	v.SetDefault("backend.retry_backoff", d.Backend.RetryBackoff)
	v.SetDefault("backend.duplicate_markers", d.Backend.DuplicateMarkers)

	v.SetDefault("coordinator.wait_timeout", d.Coordinator.WaitTimeout)
	v.SetDefault("coordinator.poll_interval", d.Coordinator.PollInterval)
	v.SetDefault("coordinator.stale_after", d.Coordinator.StaleAfter)

	v.SetDefault("hold.duration", d.Hold.Duration)
	v.SetDefault("hold.sweep_interval", d.Hold.SweepInterval)

	v.SetDefault("navigation.success", d.Navigation.Success)
	v.SetDefault("navigation.failure", d.Navigation.Failure)
	v.SetDefault("navigation.verifying", d.Navigation.Verifying)
	v.SetDefault("navigation.expired", d.Navigation.Expired)

	v.SetDefault("session.cookie_name", d.Session.CookieName)
	v.SetDefault("session.secure", d.Session.Secure)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverPostgres:
	case DriverBolt:
		if c.Store.BoltPath == "" {
			return fmt.Errorf("%w: store.bolt_path is empty", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver)
	}

	switch {
	case c.Server.Port == "":
		return fmt.Errorf("%w: server.port is empty", ErrInvalid)
	case c.Backend.MaxRetries < 0:
		return fmt.Errorf("%w: backend.max_retries must not be negative", ErrInvalid)
	case c.Hold.Duration < time.Second:
		return fmt.Errorf("%w: hold.duration must be at least 1s", ErrInvalid)
	case c.Coordinator.PollInterval <= 0:
		return fmt.Errorf("%w: coordinator.poll_interval must be positive", ErrInvalid)
	case c.Coordinator.WaitTimeout <= 0:
		return fmt.Errorf("%w: coordinator.wait_timeout must be positive", ErrInvalid)
	case c.Backend.Timeout <= 0:
		return fmt.Errorf("%w: backend.timeout must be positive", ErrInvalid)
	case c.Coordinator.StaleAfter <= c.Backend.SettleBudget():
		// A holder still inside its retry budget would be re-granted to a second caller.
		return fmt.Errorf("%w: coordinator.stale_after %s must exceed the backend settle budget %s",
			ErrInvalid, c.Coordinator.StaleAfter, c.Backend.SettleBudget())
	case c.Session.CookieName == "":
		return fmt.Errorf("%w: session.cookie_name is empty", ErrInvalid)
	}
	return nil
}

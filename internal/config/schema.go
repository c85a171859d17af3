package config

import "time"

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Database    DatabaseConfig    `yaml:"database" mapstructure:"database"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Backend     BackendConfig     `yaml:"backend" mapstructure:"backend"`
	Coordinator CoordinatorConfig `yaml:"coordinator" mapstructure:"coordinator"`
	Hold        HoldConfig        `yaml:"hold" mapstructure:"hold"`
	Navigation  NavigationConfig  `yaml:"navigation" mapstructure:"navigation"`
	Session     SessionConfig     `yaml:"session" mapstructure:"session"`
}

type ServerConfig struct {
	Port            string        `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// StoreConfig selects where confirmation records and hold timers live.
type StoreConfig struct {
	// Driver is one of memory, bolt, postgres.
	Driver   string `yaml:"driver" mapstructure:"driver"`
	BoltPath string `yaml:"bolt_path" mapstructure:"bolt_path"`
}

// BackendConfig points at the booking service that confirms payments.
type BackendConfig struct {
	BaseURL          string        `yaml:"base_url" mapstructure:"base_url"`
	ConfirmPath      string        `yaml:"confirm_path" mapstructure:"confirm_path"`
	ReleasePath      string        `yaml:"release_path" mapstructure:"release_path"`
	AuthToken        string        `yaml:"auth_token" mapstructure:"auth_token"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries       int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	DuplicateMarkers []string      `yaml:"duplicate_markers" mapstructure:"duplicate_markers"`
}

// SettleBudget is the longest one confirmation attempt can hold its order:
// every call running into the timeout plus the linear backoff between them.
func (b BackendConfig) SettleBudget() time.Duration {
	calls := time.Duration(b.MaxRetries + 1)
	backoff := b.RetryBackoff * time.Duration(b.MaxRetries*(b.MaxRetries+1)/2)
	return calls*b.Timeout + backoff
}

type CoordinatorConfig struct {
	WaitTimeout  time.Duration `yaml:"wait_timeout" mapstructure:"wait_timeout"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	StaleAfter   time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
}

type HoldConfig struct {
	Duration      time.Duration `yaml:"duration" mapstructure:"duration"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// NavigationConfig holds the front-end routes the screen controller redirects to.
type NavigationConfig struct {
	Success   string `yaml:"success" mapstructure:"success"`
	Failure   string `yaml:"failure" mapstructure:"failure"`
	Verifying string `yaml:"verifying" mapstructure:"verifying"`
	Expired   string `yaml:"expired" mapstructure:"expired"`
}

type SessionConfig struct {
	CookieName string `yaml:"cookie_name" mapstructure:"cookie_name"`
	Secure     bool   `yaml:"secure" mapstructure:"secure"`
}

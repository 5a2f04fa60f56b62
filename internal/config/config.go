package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultAdminAddress is where a stock cjdroute listens for admin RPC.
	DefaultAdminAddress = "127.0.0.1:11234"

	// DefaultAdminPassword is the password cjdroute uses when none is configured.
	DefaultAdminPassword = "NONE"

	// DefaultCycleTime is the scheduler tick. One query leaves per tick.
	DefaultCycleTime = 50 * time.Millisecond

	// DefaultInfoInterval is how often an info record and the completion
	// check run.
	DefaultInfoInterval = 5 * time.Second

	// DefaultRetryInterval is how long a query may stay unanswered before it
	// is re-sent.
	DefaultRetryInterval = 30 * time.Second

	// DefaultMaxRetries is how many re-sends a query gets before it is
	// abandoned with a fail record.
	DefaultMaxRetries = 10

	// DefaultAdminTimeout bounds each admin RPC round trip.
	DefaultAdminTimeout = 10 * time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "cjdnswalk"
)

// Config holds all configuration options for a walk.
// It is populated from the config file and CLI flags and passed down
// explicitly; nothing reads it from global state.
type Config struct {
	// AdminAddress is the cjdroute admin endpoint in "host:port" form.
	AdminAddress string

	// AdminPassword authenticates admin calls.
	AdminPassword string

	// AdminTimeout bounds each admin round trip.
	AdminTimeout time.Duration

	// Bootstrap is the node name of the first peer to query.
	// When empty, the first established peer reported by the router is used.
	Bootstrap string

	// CycleTime is the scheduler tick.
	CycleTime time.Duration

	// InfoInterval is the period of info records and completion checks.
	InfoInterval time.Duration

	// RetryInterval is the per-query retry timeout.
	RetryInterval time.Duration

	// MaxRetries is the number of re-sends before a query is abandoned.
	MaxRetries int

	// Output is the event log path. Empty or "-" means stdout.
	// A ".zst" suffix selects zstd compression.
	Output string

	// Verbose enables slog.LevelDebug.
	Verbose bool

	// LogJSON switches the stderr logger to JSON.
	LogJSON bool

	// ConfigFilePath is the explicit --config path, if any.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		AdminAddress:  DefaultAdminAddress,
		AdminPassword: DefaultAdminPassword,
		AdminTimeout:  DefaultAdminTimeout,
		CycleTime:     DefaultCycleTime,
		InfoInterval:  DefaultInfoInterval,
		RetryInterval: DefaultRetryInterval,
		MaxRetries:    DefaultMaxRetries,
	}
}

// Apply overlays the non-zero values of a config file onto c.
// Flags are applied afterwards by the caller so they win over the file.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	if f.Admin.Address != "" {
		c.AdminAddress = f.Admin.Address
	}
	if f.Admin.Password != "" {
		c.AdminPassword = f.Admin.Password
	}
	if f.Admin.Timeout > 0 {
		c.AdminTimeout = f.Admin.Timeout
	}
	if f.Walk.Bootstrap != "" {
		c.Bootstrap = f.Walk.Bootstrap
	}
	if f.Walk.CycleTime > 0 {
		c.CycleTime = f.Walk.CycleTime
	}
	if f.Walk.InfoInterval > 0 {
		c.InfoInterval = f.Walk.InfoInterval
	}
	if f.Walk.RetryInterval > 0 {
		c.RetryInterval = f.Walk.RetryInterval
	}
	if f.Walk.MaxRetries != nil {
		c.MaxRetries = *f.Walk.MaxRetries
	}
	if f.Output != "" {
		c.Output = f.Output
	}
}

// ApplyAdmin overlays credentials read from a cjdns admin file.
func (c *Config) ApplyAdmin(a *AdminFile) {
	if a == nil {
		return
	}
	if addr := a.Address(); addr != "" {
		c.AdminAddress = addr
	}
	if a.Password != "" {
		c.AdminPassword = a.Password
	}
}

// XDGDataDir returns the XDG data directory for cjdnswalk.
// On Linux: ~/.local/share/cjdnswalk
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for cjdnswalk.
// On Linux: ~/.config/cjdnswalk
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first violated rule as a sentinel error.
func (c *Config) Validate() error {
	if c.AdminAddress == "" {
		return ErrNoAdminAddress
	}
	if c.AdminTimeout <= 0 {
		return ErrInvalidAdminTimeout
	}
	if c.CycleTime <= 0 {
		return ErrInvalidCycleTime
	}
	if c.InfoInterval <= 0 {
		return ErrInvalidInfoInterval
	}
	if c.RetryInterval <= 0 {
		return ErrInvalidRetryInterval
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	return nil
}

package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ledger/internal/recordstore"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Ledger  LedgerConfig      `yaml:"ledger"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Ledger.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig holds the path to the region directory.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how the bearer token is enforced:
//   - "disabled" (default): no token required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// Mutating requests always carry an SSH signature regardless of Mode.
// SignatureMaxAge bounds how old a signed timestamp may be.
type AuthConfig struct {
	Mode            string        `yaml:"mode"`
	Token           string        `yaml:"token"`
	SignatureMaxAge time.Duration `yaml:"signature_max_age"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled".
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
		validation.Field(&c.SignatureMaxAge, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when bearer authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// LedgerConfig holds store capacity settings. Defaults apply to fields a
// create request leaves out; Limits cap what a request may ask for.
type LedgerConfig struct {
	Defaults recordstore.Config `yaml:"defaults"`
	Limits   recordstore.Config `yaml:"limits"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("ledger.defaults: %w", err)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("ledger.limits: %w", err)
	}
	if c.Defaults.MaxRecords > c.Limits.MaxRecords || c.Defaults.MaxDataLength > c.Limits.MaxDataLength {
		return fmt.Errorf("ledger: defaults %d x %d exceed limits %d x %d",
			c.Defaults.MaxRecords, c.Defaults.MaxDataLength, c.Limits.MaxRecords, c.Limits.MaxDataLength)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Path: "./regions",
		},
		SQLite: SQLiteConfig{
			Path: "./ledger.db",
		},
		Auth: AuthConfig{
			Mode:            AuthModeDisabled,
			SignatureMaxAge: 5 * time.Minute,
		},
		Ledger: LedgerConfig{
			Defaults: recordstore.DefaultConfig(),
			Limits: recordstore.Config{
				MaxRecords:    100000,
				MaxDataLength: 4096,
			},
		},
	}
}

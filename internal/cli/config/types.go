// Package config loads sqlfence configuration.
//
// Values are layered, lowest to highest precedence: built-in defaults,
// sqlfence.yaml, a .env file next to it, SQLFENCE_* environment variables
// and explicitly set command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/sqlfence/internal/generate"
	"github.com/leapstack-labs/sqlfence/pkg/adapter"
	"github.com/leapstack-labs/sqlfence/pkg/schema"
)

// TargetConfig is the connection configuration of a target database.
type TargetConfig = adapter.Config

// Config holds all CLI configuration options.
type Config struct {
	Schema    schema.Config           `koanf:"schema"`
	Target    *TargetConfig           `koanf:"target"`
	Targets   map[string]TargetConfig `koanf:"targets"`
	Limits    adapter.Limits          `koanf:"limits"`
	Generator generate.Config         `koanf:"generator"`
	Server    ServerConfig            `koanf:"server"`
	StatePath string                  `koanf:"state_path"`
	EvalsPath string                  `koanf:"evals_path"`
	LogLevel  string                  `koanf:"log_level"`
	LogFormat string                  `koanf:"log_format"`
	Output    string                  `koanf:"output"`
	Verbose   bool                    `koanf:"verbose"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// TargetName is the named target selected with --target, if any.
	TargetName string `koanf:"-"`
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Default configuration values.
const (
	ConfigFileName     = "sqlfence.yaml"
	AltConfigFileName  = "sqlfence.yml"
	EnvPrefix          = "SQLFENCE_"
	DefaultStateFile   = ".sqlfence/history.db"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
	DefaultServerHost  = "127.0.0.1"
	DefaultServerPort  = 8000
	DefaultFrontendURL = "http://localhost:5173"
)

// Output modes accepted by --output.
var OutputModes = []string{"auto", "text", "markdown", "json", "csv"}

// HasTarget reports whether a target database is configured.
func (c *Config) HasTarget() bool {
	return c.Target != nil && c.Target.Type != ""
}

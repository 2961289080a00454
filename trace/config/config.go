// Package config reads the YAML configuration of a tracing session and
// builds the session together with its backends and their resources.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Pro7ech/hetrace/trace"
)

// BackendKind names a trace backend.
type BackendKind int

const (
	BackendText = BackendKind(iota)
	BackendMLIR
	BackendHeracles
	BackendSpans
	BackendNull
)

var backendNames = []string{"text", "mlir", "heracles", "spans", "null"}

func (k BackendKind) String() string {
	if k < 0 || int(k) >= len(backendNames) {
		return fmt.Sprintf("BackendKind(%d)", int(k))
	}
	return backendNames[k]
}

// MarshalText implements [encoding.TextMarshaler].
func (k BackendKind) MarshalText() (text []byte, err error) {
	if k < 0 || int(k) >= len(backendNames) {
		return nil, fmt.Errorf("invalid backend %d", int(k))
	}
	return []byte(backendNames[k]), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *BackendKind) UnmarshalText(text []byte) (err error) {
	for i, name := range backendNames {
		if string(text) == name {
			*k = BackendKind(i)
			return
		}
	}
	return fmt.Errorf("unknown backend %q, must be one of text, mlir, heracles, spans, null", text)
}

// Stdout and Redis are the special values of [Sink.Output].
const (
	Stdout = "-"
	Redis  = "redis"
)

// Sink is the destination of a line based backend.
type Sink struct {
	// Output is a file path, "-" for the standard output or "redis" to
	// push lines onto the Redis list Key.
	Output string `yaml:"output"`
	// Append opens an existing file in append mode instead of truncating it.
	Append bool `yaml:"append,omitempty"`
	// Key is the Redis list of the "redis" output.
	Key string `yaml:"key,omitempty"`
	// Namespace is the dialect of the IR backend.
	Namespace string `yaml:"namespace,omitempty"`
}

// HeraclesConfig selects the HERACLES artifacts written when the
// session is closed.
type HeraclesConfig struct {
	// Base is the path prefix of the artifacts.
	Base   string `yaml:"base"`
	Binary bool   `yaml:"binary"`
	JSON   bool   `yaml:"json"`
}

// RedisConfig holds the connection settings of Redis sinks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// LogConfig configures the session logger.
type LogConfig struct {
	// Level is a zerolog level name, "disabled" turns logging off.
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// Config is the configuration of a tracing session.
type Config struct {
	Backends []BackendKind        `yaml:"backends"`
	Text     Sink                 `yaml:"text"`
	MLIR     Sink                 `yaml:"mlir"`
	Heracles HeraclesConfig       `yaml:"heracles"`
	Redis    RedisConfig          `yaml:"redis"`
	Identity trace.IdentityPolicy `yaml:"identity"`
	Truncate int                  `yaml:"truncate"`
	Strict   bool                 `yaml:"strict"`
	Metrics  bool                 `yaml:"metrics"`
	Log      LogConfig            `yaml:"log"`
}

// Default returns the default configuration: a text trace on the
// standard output and warnings logged to the console.
func Default() Config {
	return Config{
		Backends: []BackendKind{BackendText},
		Text:     Sink{Output: Stdout, Key: "hetrace:text"},
		MLIR:     Sink{Output: Stdout, Key: "hetrace:mlir", Namespace: trace.DefaultNamespace},
		Heracles: HeraclesConfig{Base: "trace", Binary: true},
		Identity: trace.ContentHash,
		Truncate: trace.DefaultTruncate,
		Log:      LogConfig{Level: "warn", Format: "console"},
	}
}

// Load reads the configuration file at path.
func Load(path string) (cfg Config, err error) {
	var p []byte
	if p, err = os.ReadFile(path); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if cfg, err = Parse(p); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return
}

// Parse decodes a YAML configuration. Fields absent from p keep their
// [Default] value; unknown fields are rejected.
func Parse(p []byte) (cfg Config, err error) {

	cfg = Default()

	dec := yaml.NewDecoder(bytes.NewReader(p))
	dec.KnownFields(true)

	if err = dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks the consistency of cfg.
func (cfg Config) Validate() (err error) {

	if cfg.Truncate < 0 {
		return fmt.Errorf("invalid truncate %d: must be non-negative", cfg.Truncate)
	}

	for _, k := range cfg.Backends {
		var sink Sink
		switch k {
		case BackendText:
			sink = cfg.Text
		case BackendMLIR:
			sink = cfg.MLIR
		case BackendHeracles:
			if cfg.Heracles.Base == "" && (cfg.Heracles.Binary || cfg.Heracles.JSON) {
				return fmt.Errorf("heracles: empty base path")
			}
			continue
		default:
			continue
		}
		if sink.Output == Redis && cfg.Redis.Addr == "" {
			return fmt.Errorf("%s: redis output without redis address", k)
		}
	}

	switch cfg.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be one of console, json", cfg.Log.Format)
	}

	return
}

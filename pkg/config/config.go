// Package config loads nttrun.yaml, the configuration file shared by the
// nttrun commands. Command-line flags override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/nttrun/pkg/suite"
)

// FileName is the configuration file looked up by Discover.
const FileName = "nttrun.yaml"

// Lister kinds.
const (
	ListerFile    = "file"
	ListerCommand = "command"
	ListerJSONRPC = "jsonrpc"
)

// Defaults used when a value is not configured.
const (
	DefaultEngine      = "localhost:9999"
	DefaultConcurrency = 1
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "console"
	DefaultFormat      = "console"
)

// Config represents an nttrun.yaml file.
type Config struct {
	Engine  EngineConfig      `yaml:"engine,omitempty"  json:"engine,omitempty"`
	Suite   SuiteConfig       `yaml:"suite,omitempty"   json:"suite,omitempty"`
	Run     RunConfig         `yaml:"run,omitempty"     json:"run,omitempty"`
	Baskets map[string]string `yaml:"baskets,omitempty" json:"baskets,omitempty"`
	Log     LogConfig         `yaml:"log,omitempty"     json:"log,omitempty"`

	// Root is the directory containing the file. Relative paths in the
	// file are resolved against it. Set after loading, not from YAML.
	Root string `yaml:"-" json:"-"`
}

// EngineConfig locates the engine serving ntt.Runtime.
type EngineConfig struct {
	Address string        `yaml:"address,omitempty" json:"address,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"` // per run
}

// SuiteConfig selects how suite listings are obtained.
type SuiteConfig struct {
	Source  string         `yaml:"source,omitempty"  json:"source,omitempty"`
	Lister  string         `yaml:"lister,omitempty"  json:"lister,omitempty"` // file, command or jsonrpc
	Command []string       `yaml:"command,omitempty" json:"command,omitempty"`
	JSONRPC *JSONRPCConfig `yaml:"jsonrpc,omitempty" json:"jsonrpc,omitempty"`
}

// JSONRPCConfig describes a persistent listing process.
type JSONRPCConfig struct {
	Binary         string        `yaml:"binary"                    json:"binary"`
	Args           []string      `yaml:"args,omitempty"            json:"args,omitempty"`
	Env            []string      `yaml:"env,omitempty"             json:"env,omitempty"`
	ReadySignal    string        `yaml:"ready_signal,omitempty"    json:"ready_signal,omitempty"`
	StartupTimeout time.Duration `yaml:"startup_timeout,omitempty" json:"startup_timeout,omitempty"`
	Method         string        `yaml:"method,omitempty"          json:"method,omitempty"`
}

// RunConfig holds batch execution settings.
type RunConfig struct {
	Concurrency int    `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	FailFast    bool   `yaml:"fail_fast,omitempty"   json:"fail_fast,omitempty"`
	Format      string `yaml:"format,omitempty"      json:"format,omitempty"`
	Trace       string `yaml:"trace,omitempty"       json:"trace,omitempty"`
	Params      string `yaml:"params,omitempty"      json:"params,omitempty"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"  json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// EngineAddress returns the engine address (default: localhost:9999).
func (c *Config) EngineAddress() string {
	if c != nil && c.Engine.Address != "" {
		return c.Engine.Address
	}
	return DefaultEngine
}

// Concurrency returns the number of parallel runs (default: 1).
func (c *Config) Concurrency() int {
	if c != nil && c.Run.Concurrency > 0 {
		return c.Run.Concurrency
	}
	return DefaultConcurrency
}

// Format returns the report format (default: console).
func (c *Config) Format() string {
	if c != nil && c.Run.Format != "" {
		return c.Run.Format
	}
	return DefaultFormat
}

// LogLevel returns the log level (default: warn).
func (c *Config) LogLevel() string {
	if c != nil && c.Log.Level != "" {
		return c.Log.Level
	}
	return DefaultLogLevel
}

// LogFormat returns the log format (default: console).
func (c *Config) LogFormat() string {
	if c != nil && c.Log.Format != "" {
		return c.Log.Format
	}
	return DefaultLogFormat
}

// ListerKind returns the configured lister kind. Without an explicit kind,
// a configured command selects the command lister and a configured
// jsonrpc block the JSON-RPC lister; otherwise listings are files.
func (c *Config) ListerKind() string {
	switch {
	case c == nil:
		return ListerFile
	case c.Suite.Lister != "":
		return c.Suite.Lister
	case len(c.Suite.Command) > 0:
		return ListerCommand
	case c.Suite.JSONRPC != nil:
		return ListerJSONRPC
	}
	return ListerFile
}

// Path resolves p against Root. Absolute and empty paths are returned
// unchanged.
func (c *Config) Path(p string) string {
	if c == nil || c.Root == "" || p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Lister builds the suite lister of kind (ListerKind if empty). A JSON-RPC
// lister owns a process; callers should close it when it implements
// io.Closer.
func (c *Config) Lister(kind string, log zerolog.Logger) (suite.Lister, error) {
	if kind == "" {
		kind = c.ListerKind()
	}
	var root string
	if c != nil {
		root = c.Root
	}
	switch kind {
	case ListerFile:
		return suite.FileLister{Dir: root}, nil
	case ListerCommand:
		if c == nil || len(c.Suite.Command) == 0 {
			return nil, fmt.Errorf("lister %q: suite.command is not configured", kind)
		}
		return suite.CommandLister{Argv: c.Suite.Command, Dir: root}, nil
	case ListerJSONRPC:
		if c == nil || c.Suite.JSONRPC == nil || c.Suite.JSONRPC.Binary == "" {
			return nil, fmt.Errorf("lister %q: suite.jsonrpc.binary is not configured", kind)
		}
		j := c.Suite.JSONRPC
		return suite.NewJSONRPCLister(suite.JSONRPCConfig{
			Binary:         j.Binary,
			Args:           j.Args,
			Env:            j.Env,
			ReadySignal:    j.ReadySignal,
			StartupTimeout: j.StartupTimeout,
			Method:         j.Method,
		}, log), nil
	}
	return nil, fmt.Errorf("unknown lister %q (want %s, %s or %s)", kind, ListerFile, ListerCommand, ListerJSONRPC)
}

// BasketLookup returns a variable lookup for selection.Basket.LoadBaskets.
// Variables set in the environment win; otherwise a key of the form
// <prefix>_<name> resolves to the configured basket <name>, and prefix
// itself to the configured basket names when the environment lists none.
func (c *Config) BasketLookup(env func(string) (string, bool), prefix string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := env(key); ok {
			return v, true
		}
		if c == nil || len(c.Baskets) == 0 {
			return "", false
		}
		if key == prefix {
			names := make([]string, 0, len(c.Baskets))
			for name := range c.Baskets {
				names = append(names, name)
			}
			sort.Strings(names)
			return strings.Join(names, ":"), true
		}
		if name, ok := strings.CutPrefix(key, prefix+"_"); ok {
			def, ok := c.Baskets[name]
			return def, ok
		}
		return "", false
	}
}

// Load reads and strictly parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.Root = abs
	return cfg, nil
}

// Parse strictly decodes a configuration document. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Suite.Lister {
	case "", ListerFile, ListerCommand, ListerJSONRPC:
	default:
		return fmt.Errorf("suite.lister: unknown lister %q", c.Suite.Lister)
	}
	if c.Run.Concurrency < 0 {
		return fmt.Errorf("run.concurrency: must not be negative")
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("engine.timeout: must not be negative")
	}
	for name := range c.Baskets {
		if name == "" || strings.ContainsAny(name, ": \t") {
			return fmt.Errorf("baskets: invalid basket name %q", name)
		}
	}
	return nil
}

// Discover walks up from dir to find the nearest nttrun.yaml. It returns
// nil and no error when there is none.
func Discover(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for {
		candidate := filepath.Join(abs, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, nil
		}
		abs = parent
	}
}

// Package config loads the launcher configuration from TOML, environment
// variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vigil-labs/launcher/internal/logger"
	"github.com/vigil-labs/launcher/internal/process"
	"github.com/vigil-labs/launcher/internal/role"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes environment overrides, e.g. LAUNCHER_SERVER_LISTEN.
const EnvPrefix = "LAUNCHER"

// FileName is the config file looked up in the install root when no path is given.
const FileName = "launcher.toml"

// Config is the top-level TOML structure.
type Config struct {
	Root     string        `mapstructure:"root" toml:"root"`
	LockFile string        `mapstructure:"lock_file" toml:"lock_file"`
	Env      []string      `mapstructure:"env" toml:"env"`
	EnvFiles []string      `mapstructure:"env_files" toml:"env_files"`
	Node     DaemonConfig  `mapstructure:"node" toml:"node"`
	Wallet   DaemonConfig  `mapstructure:"wallet" toml:"wallet"`
	Log      logger.Config `mapstructure:"log" toml:"log"`
	API      APIConfig     `mapstructure:"api" toml:"api"`
	Server   ServerConfig  `mapstructure:"server" toml:"server"`
	Metrics  MetricsConfig `mapstructure:"metrics" toml:"metrics"`
	History  HistoryConfig `mapstructure:"history" toml:"history"`
}

// DaemonConfig describes one bundled daemon.
type DaemonConfig struct {
	Executable   string        `mapstructure:"executable" toml:"executable"`
	WorkDir      string        `mapstructure:"workdir" toml:"workdir"`
	Args         []string      `mapstructure:"args" toml:"args"`
	Marker       string        `mapstructure:"marker" toml:"marker"`
	StartTimeout time.Duration `mapstructure:"start_timeout" toml:"start_timeout"`
	StopWait     time.Duration `mapstructure:"stop_wait" toml:"stop_wait"`
	Env          []string      `mapstructure:"env" toml:"env"`
}

// APIConfig points the explorer facade at its backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" toml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout"`
}

// ServerConfig configures the presentation-facing HTTP bridge.
type ServerConfig struct {
	Listen      string  `mapstructure:"listen" toml:"listen"`
	BasePath    string  `mapstructure:"base_path" toml:"base_path"`
	FaucetRate  float64 `mapstructure:"faucet_rate" toml:"faucet_rate"` // requests per second
	FaucetBurst int     `mapstructure:"faucet_burst" toml:"faucet_burst"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen         string        `mapstructure:"listen" toml:"listen"`
	SampleInterval time.Duration `mapstructure:"sample_interval" toml:"sample_interval"`
}

// HistoryConfig lists sink DSNs; see history/factory for the formats.
type HistoryConfig struct {
	DSN    []string `mapstructure:"dsn" toml:"dsn"`
	Buffer int      `mapstructure:"buffer" toml:"buffer"`
}

// DefaultRoot returns the directory of the running launcher binary.
func DefaultRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func setDefaults(v *viper.Viper, root string) {
	v.SetDefault("root", root)
	v.SetDefault("lock_file", "launcher.lock")
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})

	v.SetDefault("node.executable", filepath.Join("node", exeName("vgld")))
	v.SetDefault("node.marker", "")
	v.SetDefault("node.start_timeout", time.Duration(0))
	v.SetDefault("node.stop_wait", 10*time.Second)
	v.SetDefault("wallet.executable", filepath.Join("wallet", exeName("vigilwallet")))
	v.SetDefault("wallet.marker", "")
	v.SetDefault("wallet.start_timeout", time.Duration(0))
	v.SetDefault("wallet.stop_wait", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.dir", "logs")

	v.SetDefault("api.base_url", "http://127.0.0.1:7777")
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("server.listen", "127.0.0.1:8765")
	v.SetDefault("server.base_path", "/ipc")
	v.SetDefault("server.faucet_rate", 0.2)
	v.SetDefault("server.faucet_burst", 1)

	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.sample_interval", 5*time.Second)

	v.SetDefault("history.dsn", []string{})
	v.SetDefault("history.buffer", 256)
}

// Default returns the built-in configuration for an install rooted at root.
func Default(root string) *Config {
	v := viper.New()
	setDefaults(v, root)
	var c Config
	// defaults always decode
	_ = v.Unmarshal(&c)
	return &c
}

// Load reads path (or launcher.toml in the install root when path is empty
// and the file exists), applies LAUNCHER_* overrides and resolves relative
// paths against root.
func Load(path string) (*Config, error) {
	root := DefaultRoot()
	v := viper.New()
	setDefaults(v, root)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".toml"))
		v.SetConfigType("toml")
		v.AddConfigPath(root)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// resolve makes every relative path absolute against Root.
func (c *Config) resolve() error {
	if c.Root == "" {
		c.Root = DefaultRoot()
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("%w: root %q: %v", ErrInvalid, c.Root, err)
	}
	c.Root = abs
	c.Node.Executable = c.abs(c.Node.Executable)
	c.Node.WorkDir = c.abs(c.Node.WorkDir)
	c.Wallet.Executable = c.abs(c.Wallet.Executable)
	c.Wallet.WorkDir = c.abs(c.Wallet.WorkDir)
	c.LockFile = c.abs(c.LockFile)
	c.Log.File.Dir = c.abs(c.Log.File.Dir)
	c.Log.File.Path = c.abs(c.Log.File.Path)
	for i, f := range c.EnvFiles {
		c.EnvFiles[i] = c.abs(f)
	}
	c.Server.BasePath = "/" + strings.Trim(c.Server.BasePath, "/")
	if c.Server.BasePath == "/" {
		c.Server.BasePath = ""
	}
	return nil
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Validate checks value ranges. Executables are not required to exist: a
// missing binary is reported as a status event when it is started.
func (c *Config) Validate() error {
	var problems []string
	for _, r := range role.All {
		d := c.Daemon(r)
		if d.Executable == "" {
			problems = append(problems, r.String()+".executable is empty")
		}
		if d.StartTimeout < 0 {
			problems = append(problems, r.String()+".start_timeout must not be negative")
		}
		if d.StopWait < 0 {
			problems = append(problems, r.String()+".stop_wait must not be negative")
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is unknown", c.Log.Level))
	}
	if f := strings.ToLower(c.Log.Format); f != "" && f != "text" && f != "json" {
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if c.API.Timeout <= 0 {
		problems = append(problems, "api.timeout must be positive")
	}
	if c.Server.FaucetRate < 0 || c.Server.FaucetBurst < 0 {
		problems = append(problems, "server.faucet_rate and server.faucet_burst must not be negative")
	}
	if c.Metrics.SampleInterval < 0 {
		problems = append(problems, "metrics.sample_interval must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Daemon returns the section of r.
func (c *Config) Daemon(r role.Role) DaemonConfig {
	if r == role.Wallet {
		return c.Wallet
	}
	return c.Node
}

// Spec builds the process spec of r.
func (c *Config) Spec(r role.Role) process.Spec {
	d := c.Daemon(r)
	return process.Spec{
		Name:         r.String(),
		Executable:   d.Executable,
		WorkDir:      d.WorkDir,
		Args:         d.Args,
		Env:          d.Env,
		Marker:       d.Marker,
		StartTimeout: d.StartTimeout,
		StopWait:     d.StopWait,
		Log:          c.Log,
	}
}

// Specs returns the spec of every role.
func (c *Config) Specs() map[role.Role]process.Spec {
	out := make(map[role.Role]process.Spec, len(role.All))
	for _, r := range role.All {
		out[r] = c.Spec(r)
	}
	return out
}

// GlobalEnv returns the launcher-wide variables: env_files in order, then the
// env list overriding them.
func (c *Config) GlobalEnv() ([]string, error) {
	var out []string
	for _, p := range c.EnvFiles {
		pairs, err := LoadEnvFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return append(out, c.Env...), nil
}

// LoadEnvFile parses a .env file with KEY=VALUE lines (no export, no quotes),
// keeping file order. Blank lines and lines starting with # are ignored.
func LoadEnvFile(path string) ([]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, strings.TrimSpace(line[:i])+"="+strings.TrimSpace(line[i+1:]))
		}
	}
	return out, nil
}

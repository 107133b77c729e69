package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// WriteDefault writes the built-in configuration to path as TOML. Paths are
// kept relative so the file stays valid when the install moves. An existing
// file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	b, err := MarshalTOML(Default(""))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o600)
}

// MarshalTOML encodes c with durations written as strings ("10s").
func MarshalTOML(c *Config) ([]byte, error) {
	doc := map[string]any{
		"root":      c.Root,
		"lock_file": c.LockFile,
		"env":       nonNil(c.Env),
		"env_files": nonNil(c.EnvFiles),
		"node":      daemonDoc(c.Node),
		"wallet":    daemonDoc(c.Wallet),
		"log":       c.Log,
		"api": map[string]any{
			"base_url": c.API.BaseURL,
			"timeout":  dur(c.API.Timeout),
		},
		"server": c.Server,
		"metrics": map[string]any{
			"listen":          c.Metrics.Listen,
			"sample_interval": dur(c.Metrics.SampleInterval),
		},
		"history": map[string]any{
			"dsn":    nonNil(c.History.DSN),
			"buffer": c.History.Buffer,
		},
	}
	return toml.Marshal(doc)
}

func daemonDoc(d DaemonConfig) map[string]any {
	return map[string]any{
		"executable":    d.Executable,
		"workdir":       d.WorkDir,
		"args":          nonNil(d.Args),
		"marker":        d.Marker,
		"start_timeout": dur(d.StartTimeout),
		"stop_wait":     dur(d.StopWait),
		"env":           nonNil(d.Env),
	}
}

func dur(d time.Duration) string { return d.String() }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Package config loads the optional .overseer file (YAML) or
// .overseer.toml file from the repository root.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/deixis/overseer/internal/gotest"
	"github.com/deixis/overseer/internal/runner"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

// Default values for runner configuration.
const (
	DefaultMaxOutput = 1 << 20 // 1 MB per stream
	DefaultHistory   = ".overseer-history/history.db"
	DefaultStore     = "sqlite"
)

// File names searched for at the repository root, in order.
const (
	YAMLFile = ".overseer"
	TOMLFile = ".overseer.toml"
)

// Config holds the parsed configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int                `yaml:"version" toml:"version"`
	RawTimeout   string             `yaml:"timeout" toml:"timeout"`       // e.g. "30s"; empty = unbounded
	RawMaxOutput int                `yaml:"max_output" toml:"max_output"` // bytes per stream
	History      string             `yaml:"history" toml:"history"`       // SQLite path or JSON directory
	Store        string             `yaml:"store" toml:"store"`           // sqlite or disk
	LogLevel     string             `yaml:"log_level" toml:"log_level"`
	Profiles     map[string]Profile `yaml:"profiles" toml:"profiles"`
	Check        CheckConfig        `yaml:"check" toml:"check"`
}

// Profile is a named, reusable execution request.
type Profile struct {
	Command            string       `yaml:"command" toml:"command"` // split with POSIX shell rules
	Args               []string     `yaml:"args" toml:"args"`       // used verbatim when set
	Dir                string       `yaml:"dir" toml:"dir"`
	Env                []string     `yaml:"env" toml:"env"`
	RawTimeout         string       `yaml:"timeout" toml:"timeout"`
	InterruptOnFailure bool         `yaml:"interrupt_on_failure" toml:"interrupt_on_failure"`
	InterruptOnSuccess bool         `yaml:"interrupt_on_success" toml:"interrupt_on_success"`
	Policy             PolicyConfig `yaml:"policy" toml:"policy"`
}

// PolicyConfig selects and parameterises an evaluation policy.
type PolicyConfig struct {
	Kind    string   `yaml:"kind" toml:"kind"` // exit-code (default), keyword or go-test
	Ignore  []string `yaml:"ignore" toml:"ignore"`
	Fail    []string `yaml:"fail" toml:"fail"`
	Succeed []string `yaml:"succeed" toml:"succeed"`
}

// CheckConfig defines the profiles run by `overseer check`.
type CheckConfig struct {
	Steps []string `yaml:"steps" toml:"steps"` // default: every profile, sorted by name
}

// Timeout returns the configured default time budget, or zero.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.RawTimeout)
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// StoreKind returns the configured history backend or the default.
func (c *Config) StoreKind() string {
	if c.Store != "" {
		return c.Store
	}
	return DefaultStore
}

// HistoryPath returns the history location resolved against root.
func (c *Config) HistoryPath(root string) string {
	p := c.History
	if p == "" {
		p = DefaultHistory
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// CheckSteps returns the configured check steps, falling back to every
// profile in name order.
func (c *Config) CheckSteps() []string {
	if len(c.Check.Steps) > 0 {
		return c.Check.Steps
	}
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Profile returns the named profile.
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	return p, nil
}

// Timeout returns the profile's time budget, falling back to def.
func (p Profile) Timeout(def time.Duration) time.Duration {
	if d := parseDuration(p.RawTimeout); d > 0 {
		return d
	}
	return def
}

// Argv returns the profile's argument vector. Args wins over Command;
// Command is split like a POSIX shell would, expanding $VARS from the
// process environment.
func (p Profile) Argv() ([]string, error) {
	if len(p.Args) > 0 {
		return slices.Clone(p.Args), nil
	}
	return SplitCommand(p.Command)
}

// SplitCommand splits a command line into words using POSIX shell rules.
func SplitCommand(command string) ([]string, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}
	fields, err := shell.Fields(command, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("parsing command %q: %w", command, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("command %q has no words", command)
	}
	return fields, nil
}

// Build returns the policy described by pc. An empty kind selects the
// keyword policy when any keyword is configured, and exit-code otherwise.
func (pc PolicyConfig) Build() (runner.Policy, error) {
	kind := pc.Kind
	if kind == "" {
		kind = "exit-code"
		if len(pc.Ignore)+len(pc.Fail)+len(pc.Succeed) > 0 {
			kind = "keyword"
		}
	}
	switch kind {
	case "exit-code":
		return runner.ExitCodePolicy{}, nil
	case "go-test":
		return gotest.Policy{}, nil
	case "keyword":
		return runner.KeywordPolicy{
			Ignore:  slices.Clone(pc.Ignore),
			Fail:    slices.Clone(pc.Fail),
			Succeed: slices.Clone(pc.Succeed),
		}, nil
	default:
		return nil, fmt.Errorf("unknown policy kind %q", pc.Kind)
	}
}

func parseDuration(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing go.mod; falls back to workspace
	Path     string // file the config was read from; empty when defaulted
}

// Load reads the configuration from the repository root. The repository
// root is discovered by walking upward from workspace looking for go.mod.
// .overseer (YAML) is preferred over .overseer.toml. If neither exists, a
// default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		// No go.mod found; use workspace as root.
		root = workspace
	}

	for _, name := range []string{YAMLFile, TOMLFile} {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		cfg, err := parse(name, data)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, RepoRoot: root, Path: path}, nil
	}
	return &LoadResult{Config: &Config{}, RepoRoot: root}, nil
}

func parse(name string, data []byte) (*Config, error) {
	cfg := &Config{}
	if name == TOMLFile {
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return cfg, nil
}

// findRepoRoot walks upward from dir looking for a directory containing go.mod.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

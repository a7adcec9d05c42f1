// Package config loads and validates the launcher configuration.
//
// Configuration comes from a YAML file with environment variable expansion.
// A .env/.env.local file is loaded first (process environment wins), so
// secrets such as remote tokens can be referenced as ${GIZMO_TOKEN} in the
// YAML without ever being written to it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the launcher configuration.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Remote    RemoteConfig    `yaml:"remote"`
	Launch    LaunchConfig    `yaml:"launch"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// WorkspaceConfig describes the on-disk installation layout.
type WorkspaceConfig struct {
	Root           string   `yaml:"root"`
	UserDataDir    string   `yaml:"user_data_dir,omitempty"`
	StorageDir     string   `yaml:"storage_dir,omitempty"`
	StorageSubdirs []string `yaml:"storage_subdirs,omitempty"`
	// Preserve lists additional top-level entries that survive an update
	// (virtual environments, version-control metadata, ...).
	Preserve []string `yaml:"preserve,omitempty"`
}

// RemoteConfig describes where fresh application code is fetched from.
type RemoteConfig struct {
	URL     string      `yaml:"url"`
	Branch  string      `yaml:"branch,omitempty"`
	Depth   int         `yaml:"depth,omitempty"`
	Timeout string      `yaml:"timeout,omitempty"` // Go duration string, e.g. "10m"
	Auth    *AuthConfig `yaml:"auth,omitempty"`
}

// FetchTimeout parses the configured fetch timeout. Defaults are applied at
// load time, so this only fails on an operator-supplied malformed value.
func (r *RemoteConfig) FetchTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 0, fmt.Errorf("remote.timeout: %w", err)
	}
	return d, nil
}

// LaunchConfig describes how the service is started after an update.
type LaunchConfig struct {
	Port        int         `yaml:"port,omitempty"`
	APIPort     int         `yaml:"api_port,omitempty"`
	ComputeMode ComputeMode `yaml:"compute_mode,omitempty"`
	Share       bool        `yaml:"share,omitempty"`
	Threads     int         `yaml:"threads,omitempty"`
	CtxSize     int         `yaml:"ctx_size,omitempty"`
	Model       ModelConfig `yaml:"model,omitempty"`
}

// ComputeMode selects between accelerated and CPU-only operation.
type ComputeMode string

const (
	ComputeModeGPU ComputeMode = "gpu"
	ComputeModeCPU ComputeMode = "cpu"
)

// ModelConfig describes an optional model artifact to download into storage.
type ModelConfig struct {
	RepoURL  string `yaml:"repo_url,omitempty"`
	File     string `yaml:"file,omitempty"`
	MinBytes int64  `yaml:"min_bytes,omitempty"`
}

// HistoryConfig controls the update-run journal.
type HistoryConfig struct {
	// Path to the SQLite journal. Empty selects a default inside the
	// storage logs subtree so the journal survives updates.
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists; never override process environment.
	if err := godotenv.Load(".env", ".env.local"); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Workspace.UserDataDir == "" {
		c.Workspace.UserDataDir = "user-data"
	}
	if c.Workspace.StorageDir == "" {
		c.Workspace.StorageDir = "storage"
	}
	if len(c.Workspace.StorageSubdirs) == 0 {
		c.Workspace.StorageSubdirs = []string{"models", "cache", "logs"}
	}
	if c.Workspace.Preserve == nil {
		c.Workspace.Preserve = []string{".git", "installer_files"}
	}
	if c.Remote.Branch == "" {
		c.Remote.Branch = "main"
	}
	if c.Remote.Depth == 0 {
		c.Remote.Depth = 1
	}
	if c.Remote.Timeout == "" {
		c.Remote.Timeout = "10m"
	}
	if c.Launch.Port == 0 {
		c.Launch.Port = 7860
	}
	if c.Launch.APIPort == 0 {
		c.Launch.APIPort = 5000
	}
	if c.Launch.ComputeMode == "" {
		c.Launch.ComputeMode = ComputeModeGPU
	}
	if c.Launch.Threads == 0 {
		c.Launch.Threads = 2
	}
	if c.Launch.CtxSize == 0 {
		c.Launch.CtxSize = 4096
	}
	if c.Launch.Model.MinBytes == 0 {
		c.Launch.Model.MinBytes = 100 * 1024 * 1024
	}
}

// Validate checks invariants that cannot be defaulted away.
func (c *Config) Validate() error {
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}
	switch c.Launch.ComputeMode {
	case ComputeModeGPU, ComputeModeCPU:
	default:
		return fmt.Errorf("launch.compute_mode must be %q or %q, got %q",
			ComputeModeGPU, ComputeModeCPU, c.Launch.ComputeMode)
	}
	if c.Remote.URL == "" && c.Remote.Auth != nil && !c.Remote.Auth.IsZero() {
		return fmt.Errorf("remote.auth configured but remote.url is empty")
	}
	if c.Remote.Depth < 0 {
		return fmt.Errorf("remote.depth must not be negative")
	}
	if _, err := c.Remote.FetchTimeout(); err != nil {
		return err
	}
	if err := c.Remote.Auth.validate(); err != nil {
		return fmt.Errorf("remote.auth: %w", err)
	}
	return nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := `# gizmolaunch configuration
workspace:
  root: /srv/gizmo
  # Entries that survive an update in addition to user-data/ and storage/:
  preserve:
    - .git
    - installer_files

remote:
  url: https://git.example.com/gizmo/app.git
  branch: main
  timeout: 10m
  auth:
    type: token
    token: ${GIZMO_TOKEN}

launch:
  port: 7860
  api_port: 5000
  compute_mode: gpu
  share: false
  model:
    repo_url: https://models.example.com/gizmo
    file: gizmo-7b-q4.gguf
`
	if err := os.WriteFile(configPath, []byte(example), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

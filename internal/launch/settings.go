// Package launch prepares the application's runtime configuration inside the
// protected user data area and builds the process command that starts it.
package launch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/gizmolaunch/internal/config"
	"git.home.luguber.info/inful/gizmolaunch/internal/workspace"
)

// Settings is the application settings file written into user data before
// every launch. Field order follows the file the application expects.
type Settings struct {
	Listen    bool   `yaml:"listen"`
	Share     bool   `yaml:"share"`
	Loader    string `yaml:"loader"`
	CtxSize   int    `yaml:"n_ctx"`
	BatchSize int    `yaml:"n_batch"`
	GPULayers int    `yaml:"n_gpu_layers"`
	Threads   int    `yaml:"threads"`
	Model     string `yaml:"model"`
	API       bool   `yaml:"api"`
	APIPort   int    `yaml:"api_port"`
}

// Preparer writes launch configuration into the workspace.
type Preparer struct {
	ws  *workspace.Workspace
	cfg config.LaunchConfig
}

// NewPreparer returns a Preparer for the given workspace and launch config.
func NewPreparer(ws *workspace.Workspace, cfg config.LaunchConfig) *Preparer {
	return &Preparer{ws: ws, cfg: cfg}
}

// gpuLayers maps the compute mode to the loader's GPU layer count. Full
// offload in GPU mode, none in CPU mode.
func (p *Preparer) gpuLayers() int {
	if p.cfg.ComputeMode == config.ComputeModeCPU {
		return 0
	}
	return -1
}

func (p *Preparer) settings() Settings {
	model := "None"
	if p.cfg.Model.File != "" {
		model = p.cfg.Model.File
	}
	return Settings{
		Listen:    true,
		Share:     p.cfg.Share,
		Loader:    "llama.cpp",
		CtxSize:   p.cfg.CtxSize,
		BatchSize: 512,
		GPULayers: p.gpuLayers(),
		Threads:   p.cfg.Threads,
		Model:     model,
		API:       true,
		APIPort:   p.cfg.APIPort,
	}
}

// WriteSettings writes settings.yaml into the user data directory and returns
// its path.
func (p *Preparer) WriteSettings() (string, error) {
	data, err := yaml.Marshal(p.settings())
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}
	path := filepath.Join(p.ws.UserDataPath(), "settings.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create user data dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write settings: %w", err)
	}
	return path, nil
}

// Flags returns the command line flags passed to the application process and
// mirrored into CMD_FLAGS.txt.
func (p *Preparer) Flags() []string {
	flags := []string{"--listen"}
	if p.cfg.Port > 0 {
		flags = append(flags, "--listen-port", strconv.Itoa(p.cfg.Port))
	}
	if p.cfg.Share {
		flags = append(flags, "--share")
	}
	flags = append(flags,
		"--verbose",
		"--api", "--api-port", strconv.Itoa(p.cfg.APIPort),
		"--loader", "llama.cpp",
		"--gpu-layers", strconv.Itoa(p.gpuLayers()),
		"--ctx-size", strconv.Itoa(p.cfg.CtxSize),
		"--batch-size", "512",
		"--threads", strconv.Itoa(p.cfg.Threads),
	)
	if p.cfg.Model.File != "" {
		flags = append(flags, "--model", p.cfg.Model.File)
	}
	return flags
}

// WriteFlags writes CMD_FLAGS.txt into the user data directory and returns
// its path.
func (p *Preparer) WriteFlags() (string, error) {
	path := filepath.Join(p.ws.UserDataPath(), "CMD_FLAGS.txt")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create user data dir: %w", err)
	}
	content := strings.Join(p.Flags(), " ")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write flags: %w", err)
	}
	return path, nil
}

package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/gizmolaunch/internal/config"
	"git.home.luguber.info/inful/gizmolaunch/internal/version"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"gizmolaunch.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Launch struct {
		Token       string `help:"Remote credential; supplying one runs the update sequence before launch"`
		Port        int    `short:"p" help:"UI listen port (overrides configuration)"`
		CPU         bool   `help:"Force CPU-only operation"`
		Share       bool   `help:"Expose a public sharing link"`
		SkipModel   bool   `help:"Skip the model download check"`
		MetricsAddr string `help:"Serve Prometheus metrics on this address (e.g. :9090)"`
	} `cmd:"" help:"Prepare the workspace and start the application, updating first when a credential is given"`

	Update struct {
		Token       string `help:"Remote credential for the fetch (falls back to configured remote.auth)"`
		MetricsAddr string `help:"Serve Prometheus metrics on this address"`
	} `cmd:"" help:"Run the update sequence without launching"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	History struct {
		Limit int `short:"n" help:"Number of runs to show" default:"10"`
	} `cmd:"" help:"Show recent update runs"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Vars{"version": version.Version})

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch ctx.Command() {
	case "launch":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		applyLaunchOverrides(cfg)
		if err := runLaunch(cfg); err != nil {
			slog.Error("Launch failed", "error", err)
			os.Exit(1)
		}
	case "update":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runUpdate(cfg); err != nil {
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", "path", CLI.Config)
	case "history":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runHistory(cfg, CLI.History.Limit); err != nil {
			slog.Error("History failed", "error", err)
			os.Exit(1)
		}
	}
}

// applyLaunchOverrides folds command line flags into the loaded configuration.
// The credential is deliberately not part of the configuration; it stays a
// per-invocation value and is never written anywhere.
func applyLaunchOverrides(cfg *config.Config) {
	if CLI.Launch.Port > 0 {
		cfg.Launch.Port = CLI.Launch.Port
	}
	if CLI.Launch.CPU {
		cfg.Launch.ComputeMode = config.ComputeModeCPU
	}
	if CLI.Launch.Share {
		cfg.Launch.Share = true
	}
}

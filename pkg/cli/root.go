package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/vizier/pkg/config"
)

const (
	// Version is the current version of Vizier
	Version = "0.3.0"
)

// Config holds the global configuration for the Vizier CLI
type Config struct {
	ConfigDir string
	Debug     bool

	// Settings is the loaded config.yaml with environment overrides applied.
	Settings *config.Config
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for Vizier
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vizier",
		Short: "Vizier - curation workflows for tabular data",
		Long: `Vizier records data curation as versioned workflows.
Every edit to a workflow (append, insert, replace or delete a module) creates a
new version and re-executes only the modules whose inputs may have changed.
Branches fork a workflow at any module and evolve independently.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}

	// Persistent flags (available to all subcommands)
	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.vizier)")

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewViztrailCommand())
	cmd.AddCommand(NewBranchCommand())
	cmd.AddCommand(NewModuleCommand())
	cmd.AddCommand(NewWorkflowCommand())
	cmd.AddCommand(NewDatasetCommand())
	cmd.AddCommand(NewFileCommand())
	cmd.AddCommand(NewCredentialCommand())
	cmd.AddCommand(NewServeCommand())

	return cmd
}

// initConfig resolves the config directory and loads config.yaml.
// The --config-dir flag wins over VIZIER_CONFIG_DIR and ~/.vizier.
func initConfig() error {
	if GlobalConfig.ConfigDir == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return err
		}
		GlobalConfig.ConfigDir = dir
	}

	if err := os.MkdirAll(GlobalConfig.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settings, err := config.Load(GlobalConfig.ConfigDir)
	if err != nil {
		return err
	}
	GlobalConfig.Settings = settings
	return nil
}

// newLogger returns a text logger on stderr in debug mode and a discarding
// logger otherwise.
func newLogger() *slog.Logger {
	if GlobalConfig.Debug {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	if GlobalConfig.ConfigDir != "" {
		return GlobalConfig.ConfigDir
	}
	dir, err := config.DefaultDir()
	if err != nil {
		return ".vizier"
	}
	return dir
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

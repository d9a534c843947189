package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/vizier/pkg/config"
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		dataDir         string
		viztrailBackend string
		datasetBackend  string
		bucket          string
		engineURL       string
		force           bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file",
		Long: `Write config.yaml into the configuration directory.

The file is created in ~/.vizier/config.yaml unless --config-dir or
VIZIER_CONFIG_DIR selects another directory.

Examples:
  vizier init
  vizier init --viztrail-backend sqlite
  vizier init --dataset-backend s3 --bucket curation-data
  vizier init --dataset-backend rpc --engine-url http://engine:8089/rpc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := GetConfigDir()
			path := filepath.Join(dir, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("configuration already exists: %s\n\nUse --force to overwrite it", path)
			}

			cfg := config.Default(dir)
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if viztrailBackend != "" {
				cfg.Viztrails.Backend = viztrailBackend
			}
			if datasetBackend != "" {
				cfg.Datasets.Backend = datasetBackend
			}
			cfg.S3.Bucket = bucket
			cfg.Engine.URL = engineURL
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(dir); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration written to %s\n", path)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Viztrails: %s\n", cfg.Viztrails.Backend)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Datasets:  %s\n", cfg.Datasets.Backend)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Data dir:  %s\n", cfg.DataDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for viztrails, datasets and files (default: config dir)")
	cmd.Flags().StringVar(&viztrailBackend, "viztrail-backend", "", "Viztrail store: filesystem, sqlite or memory")
	cmd.Flags().StringVar(&datasetBackend, "dataset-backend", "", "Dataset store: filesystem, s3, rpc or memory")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket of the s3 dataset backend")
	cmd.Flags().StringVar(&engineURL, "engine-url", "", "Endpoint of the delegated engine")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")

	return cmd
}

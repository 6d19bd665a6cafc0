package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smeshlabs/uploader-setup/internal/config"
	"github.com/smeshlabs/uploader-setup/internal/logger"
	"github.com/smeshlabs/uploader-setup/internal/service/deployer"
	"github.com/smeshlabs/uploader-setup/internal/version"
)

var (
	// configPath stores the path to the optional YAML overrides file.
	configPath string
	// installRoot overrides the configured install root.
	installRoot string
	// artifactPath overrides where the uploader artifact is read from.
	artifactPath string
	// unitDirectory overrides the systemd unit directory.
	unitDirectory string
	// skipDependencies skips the pip install step.
	skipDependencies bool
	// logLevel sets the minimum logging level.
	logLevel string

	// rootCmd represents the base command that provisions the uploader.
	rootCmd = &cobra.Command{
		Use:   "uploader-setup",
		Short: "Install and configure the Meshtastic sensor uploader.",
		Long: `Provision a Raspberry Pi with the Meshtastic to Supabase sensor uploader.

Creates the install layout (data/ and scripts/ under the install root),
installs the uploader's Python dependencies user-scoped, stages the uploader
artifact from the working directory, and generates the environment file, the
systemd unit, a manual launcher and a crontab helper.

The produced deployment is inert: enable and start the service (or run the
crontab helper) as a separate step, after replacing the service key
placeholder in the environment file. Re-running overwrites every generated
file unconditionally.

Writing the systemd unit requires elevated rights; run with sudo.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			applyLogLevel()

			options := &deployer.Options{
				ConfigPath:       configPath,
				InstallRoot:      installRoot,
				ArtifactPath:     artifactPath,
				UnitDirectory:    unitDirectory,
				SkipDependencies: skipDependencies,
			}

			return deployer.Run(ctx, options)
		},
	}
)

// Execute runs the uploader-setup CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyLogLevel configures the global logger from the --log-level flag.
func applyLogLevel() {
	if level, ok := logger.ParseLogLevel(logLevel); ok {
		logger.SetLevel(level)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to overrides file (default "+config.DefaultConfigFilename+")")
	rootCmd.PersistentFlags().StringVar(&installRoot, "root", "", "override the install root directory")
	rootCmd.PersistentFlags().StringVar(&unitDirectory, "unit-dir", "", "override the systemd unit directory")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug|info|warn|error)")

	rootCmd.Flags().StringVar(&artifactPath, "artifact", "", "override the uploader artifact path")
	rootCmd.Flags().BoolVar(&skipDependencies, "skip-deps", false, "skip Python dependency installation")
}

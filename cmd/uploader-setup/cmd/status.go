package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smeshlabs/uploader-setup/internal/service/status"
)

// statusCmd reports the deployment state without mutating the host.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the state of the uploader deployment.",
	Long: `Report which deployment artifacts exist, whether the service key
placeholder has been replaced, whether the systemd unit is installed and
whether an uploader process is currently running. Read-only.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		applyLogLevel()

		options := &status.Options{
			ConfigPath:    configPath,
			InstallRoot:   installRoot,
			UnitDirectory: unitDirectory,
		}

		return status.Run(ctx, options)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd)
}

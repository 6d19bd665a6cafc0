package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smeshlabs/uploader-setup/internal/config"
	"github.com/smeshlabs/uploader-setup/internal/logger"
	"github.com/smeshlabs/uploader-setup/internal/registrar"
	"github.com/smeshlabs/uploader-setup/internal/render"
)

// crontabCmd appends the boot-time entry, like the generated helper does.
var crontabCmd = &cobra.Command{
	Use:   "crontab",
	Short: "Register the uploader as a boot-time crontab entry.",
	Long: `Append an @reboot entry for the uploader to the invoking user's crontab.

This is the alternative to enabling the systemd unit; pick exactly one.
Existing crontab entries are preserved and nothing is deduplicated: running
this twice registers the entry twice.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		applyLogLevel()
		ctx = logger.WithName(ctx, "uploader-setup")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		if installRoot != "" {
			cfg.InstallRoot = installRoot
		}

		if err = config.Validate(cfg); err != nil {
			return err
		}

		entry := render.CronEntry(cfg)
		if err = registrar.NewHost(cfg.UnitDirectory).AppendScheduledEntry(ctx, entry); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Registered boot-time entry", "entry", entry)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(crontabCmd)
}

package status

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/smeshlabs/uploader-setup/internal/config"
	"github.com/smeshlabs/uploader-setup/internal/logger"
	"github.com/smeshlabs/uploader-setup/internal/procfind"
)

// Options are inputs accepted by the status entry point.
type Options struct {
	// ConfigPath is the optional path to the YAML overrides file.
	ConfigPath string
	// InstallRoot overrides the configured install root.
	InstallRoot string
	// UnitDirectory overrides the service manager directory.
	UnitDirectory string
}

// Report describes the observable state of a deployment. It is read-only;
// collecting it never mutates the host.
type Report struct {
	// InstallRootExists reports whether the install root directory exists.
	InstallRootExists bool
	// ArtifactStaged reports the staged artifact's presence and exec bit.
	ArtifactStaged     bool
	ArtifactExecutable bool
	// EnvFileExists reports the environment descriptor's presence.
	EnvFileExists bool
	// CredentialPlaceholder reports whether the operator still has to
	// replace the service key.
	CredentialPlaceholder bool
	// WrapperExists and CronHelperExists report the generated scripts.
	WrapperExists    bool
	CronHelperExists bool
	// UnitInstalled reports the unit file in the service manager directory.
	UnitInstalled bool
	// UploaderRunning reports a live uploader process.
	UploaderRunning bool
}

// Run collects and logs a deployment report.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "uploader-status")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if opts.InstallRoot != "" {
		cfg.InstallRoot = opts.InstallRoot
	}

	if opts.UnitDirectory != "" {
		cfg.UnitDirectory = opts.UnitDirectory
	}

	if err = config.Validate(cfg); err != nil {
		return err
	}

	report := Collect(cfg, procfind.New())

	logger.InfoKV(ctx, "Install root", "path", cfg.InstallRoot, "exists", report.InstallRootExists)
	logger.InfoKV(ctx, "Staged artifact", "path", cfg.StagedArtifact(),
		"exists", report.ArtifactStaged, "executable", report.ArtifactExecutable)
	logger.InfoKV(ctx, "Environment file", "path", cfg.EnvFile(), "exists", report.EnvFileExists)

	if report.CredentialPlaceholder {
		logger.Warnf(ctx, "SUPABASE_SERVICE_KEY is still the placeholder; edit %s", cfg.EnvFile())
	}

	logger.InfoKV(ctx, "Manual launcher", "path", cfg.WrapperPath(), "exists", report.WrapperExists)
	logger.InfoKV(ctx, "Crontab helper", "path", cfg.CronHelperPath(), "exists", report.CronHelperExists)
	logger.InfoKV(ctx, "Service unit", "path", cfg.UnitPath(), "installed", report.UnitInstalled)
	logger.InfoKV(ctx, "Uploader process", "running", report.UploaderRunning)

	return nil
}

// Collect builds the report for the given deployment. The finder locates a
// live uploader process; the uploader runs through the Python interpreter, so
// comm alone cannot identify it.
func Collect(cfg *config.Deployment, finder *procfind.Finder) *Report {
	report := &Report{
		InstallRootExists: dirExists(cfg.InstallRoot),
		EnvFileExists:     fileExists(cfg.EnvFile()),
		WrapperExists:     fileExists(cfg.WrapperPath()),
		CronHelperExists:  fileExists(cfg.CronHelperPath()),
		UnitInstalled:     fileExists(cfg.UnitPath()),
	}

	if info, err := os.Stat(cfg.StagedArtifact()); err == nil && !info.IsDir() {
		report.ArtifactStaged = true
		report.ArtifactExecutable = info.Mode()&0o111 != 0
	}

	report.CredentialPlaceholder = hasCredentialPlaceholder(cfg)
	_, report.UploaderRunning = finder.FindUploader(cfg.PythonBin, cfg.ArtifactName)

	return report
}

// hasCredentialPlaceholder reports whether the environment descriptor still
// carries the unset service key.
func hasCredentialPlaceholder(cfg *config.Deployment) bool {
	contents, err := os.ReadFile(cfg.EnvFile())
	if err != nil {
		return false
	}

	want := fmt.Sprintf("SUPABASE_SERVICE_KEY=%s", config.CredentialPlaceholder)

	for _, line := range strings.Split(string(contents), "\n") {
		if line == want {
			return true
		}
	}

	return false
}

// dirExists reports whether path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

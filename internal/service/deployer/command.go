package deployer

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/smeshlabs/uploader-setup/internal/config"
	"github.com/smeshlabs/uploader-setup/internal/hostcmd"
	"github.com/smeshlabs/uploader-setup/internal/logger"
	"github.com/smeshlabs/uploader-setup/internal/procfind"
	"github.com/smeshlabs/uploader-setup/internal/registrar"
	"github.com/smeshlabs/uploader-setup/internal/render"

	// Ensure SHA512 is available for artifact staging.
	_ "crypto/sha512"
)

// stagingChecksumFunction verifies the staged artifact matches its source.
const stagingChecksumFunction crypto.Hash = crypto.SHA512

var (
	// ErrArtifactMissing is returned when the uploader artifact is not in
	// the working directory. There is nothing to deploy without it.
	ErrArtifactMissing = errors.New("uploader artifact not found")

	// ErrDependencyInstall is returned when the Python package
	// installation fails. The staged artifact cannot run without its
	// dependencies, so the deployment aborts.
	ErrDependencyInstall = errors.New("python dependency installation failed")
)

// Options are inputs accepted by the deployer entry point.
type Options struct {
	// ConfigPath is the optional path to the YAML overrides file.
	ConfigPath string
	// InstallRoot overrides the configured install root.
	InstallRoot string
	// ArtifactPath overrides where the uploader artifact is read from.
	// Defaults to the configured artifact name in the working directory.
	ArtifactPath string
	// UnitDirectory overrides the service manager directory.
	UnitDirectory string
	// SkipDependencies skips the Python package installation step.
	SkipDependencies bool
}

// runner holds the resolved configuration and injected host capabilities for
// a single deployment. It is intentionally unexported; call Run(ctx, Options)
// from callers.
type runner struct {
	cfg              *config.Deployment // Record all artifacts render from.
	artifactPath     string             // Source location of the uploader artifact.
	skipDependencies bool               // Whether to skip pip install.
	registrar        registrar.Registrar
	commands         hostcmd.Runner
	processes        *procfind.Finder
	modelPath        string // Host identification file, normally /proc/device-tree/model.
	cpuInfoPath      string // Fallback identification file.
}

// Run executes the deployment and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "uploader-setup")

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

	artifactPath := opts.ArtifactPath
	if artifactPath == "" {
		artifactPath = cfg.ArtifactName
	}

	r := &runner{
		cfg:              cfg,
		artifactPath:     artifactPath,
		skipDependencies: opts.SkipDependencies,
		registrar:        registrar.NewHost(cfg.UnitDirectory),
		commands:         hostcmd.Exec{},
		processes:        procfind.New(),
		modelPath:        defaultModelPath,
		cpuInfoPath:      defaultCPUInfoPath,
	}

	if err = r.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Deployment failed", "error", err)
		return err
	}

	logger.Infof(ctx, "Deployment complete. Enable the service with `sudo systemctl enable --now %s`, or run %s instead.",
		cfg.UnitFilename(), cfg.CronHelperPath())

	return nil
}

// Run executes the deployment steps in their required order:
// 1) Host sanity check (advisory).
// 2) Layout creation.
// 3) Python dependency installation (fatal on failure).
// 4) Artifact staging (fatal when missing).
// 5) Environment descriptor generation.
// 6) Unit installation via the registrar.
// 7) Manual wrapper generation.
// 8) Crontab helper generation.
// Re-running overwrites every generated file unconditionally.
func (r *runner) Run(ctx context.Context) error {
	r.checkHost(ctx)

	if err := r.createLayout(ctx); err != nil {
		return err
	}

	if err := r.installDependencies(ctx); err != nil {
		return err
	}

	if err := r.stageArtifact(ctx); err != nil {
		return err
	}

	if err := r.writeEnvFile(ctx); err != nil {
		return err
	}

	if err := r.installUnit(ctx); err != nil {
		return err
	}

	if err := r.writeWrapper(ctx); err != nil {
		return err
	}

	return r.writeCronHelper(ctx)
}

// createLayout creates the install root and its data and scripts
// subdirectories. Pre-existing directories are not an error.
func (r *runner) createLayout(ctx context.Context) error {
	for _, dir := range []string{r.cfg.InstallRoot, r.cfg.DataDir(), r.cfg.ScriptsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create layout: %w", err)
		}
	}

	logger.InfoKV(ctx, "Install layout ready", "root", r.cfg.InstallRoot)

	return nil
}

// installDependencies installs the uploader's Python packages user-scoped.
// A failure here is fatal: the staged artifact cannot run without them.
func (r *runner) installDependencies(ctx context.Context) error {
	if r.skipDependencies {
		logger.Warn(ctx, "Skipping Python dependency installation")
		return nil
	}

	logger.InfoKV(ctx, "Installing Python dependencies", "packages", strings.Join(r.cfg.PythonPackages, " "))

	args := append([]string{"install", "--user"}, r.cfg.PythonPackages...)

	output, err := r.commands.Run(ctx, nil, r.cfg.PipBin, args...)
	if err != nil {
		if len(output) > 0 {
			logger.ErrorKV(ctx, "Package installer output", "output", string(output))
		}

		return fmt.Errorf("%w: %v", ErrDependencyInstall, err)
	}

	return nil
}

// stageArtifact copies the uploader artifact into scripts/ and marks it
// executable. The copy is applied atomically with a SHA-512 checksum so a
// partially written artifact can never end up executable.
func (r *runner) stageArtifact(ctx context.Context) error {
	source, err := os.ReadFile(r.artifactPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s (run the installer from the directory containing it)",
				ErrArtifactMissing, r.artifactPath)
		}

		return fmt.Errorf("read artifact: %w", err)
	}

	hasher := stagingChecksumFunction.New()
	if _, err = hasher.Write(source); err != nil {
		return fmt.Errorf("checksum artifact: %w", err)
	}

	staged := r.cfg.StagedArtifact()

	if _, err = os.Stat(staged); err != nil && os.IsNotExist(err) {
		var target *os.File

		if target, err = os.Create(staged); err != nil {
			return fmt.Errorf("stage artifact: %w", err)
		}

		if err = target.Close(); err != nil {
			return fmt.Errorf("stage artifact: %w", err)
		}
	}

	applyOptions := goupdate.Options{
		TargetPath: staged,
		TargetMode: config.DefaultExecutablePermissions,
		Checksum:   hasher.Sum(nil),
		Hash:       stagingChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(source), applyOptions); err != nil {
		return fmt.Errorf("stage artifact: %w", err)
	}

	if _, err = os.Stat(staged + ".old"); err == nil {
		_ = os.Remove(staged + ".old")
	}

	logger.InfoKV(ctx, "Staged uploader artifact", "path", staged)

	return nil
}

// writeEnvFile generates the environment descriptor. It carries a credential
// placeholder, so permissions are restricted.
func (r *runner) writeEnvFile(ctx context.Context) error {
	contents, err := render.EnvFile(r.cfg)
	if err != nil {
		return err
	}

	if err = os.WriteFile(r.cfg.EnvFile(), contents, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write environment file: %w", err)
	}

	logger.InfoKV(ctx, "Wrote environment file; replace the service key placeholder before starting",
		"path", r.cfg.EnvFile())

	return nil
}

// installUnit renders the systemd unit and hands it to the registrar. The
// unit is inert until the operator enables and starts it.
func (r *runner) installUnit(ctx context.Context) error {
	contents, err := render.Unit(r.cfg)
	if err != nil {
		return err
	}

	path, err := r.registrar.InstallUnit(ctx, r.cfg.UnitFilename(), contents)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installed service unit (not enabled)", "path", path)

	return nil
}

// writeWrapper generates the manual launcher for interactive debugging.
func (r *runner) writeWrapper(ctx context.Context) error {
	contents, err := render.Wrapper(r.cfg)
	if err != nil {
		return err
	}

	if err = os.WriteFile(r.cfg.WrapperPath(), contents, config.DefaultExecutablePermissions); err != nil {
		return fmt.Errorf("write wrapper: %w", err)
	}

	logger.InfoKV(ctx, "Wrote manual launcher", "path", r.cfg.WrapperPath())

	return nil
}

// writeCronHelper generates the crontab registration helper. Generation
// never mutates the task table; only running the helper appends the entry.
func (r *runner) writeCronHelper(ctx context.Context) error {
	contents, err := render.CronHelper(r.cfg)
	if err != nil {
		return err
	}

	if err = os.WriteFile(r.cfg.CronHelperPath(), contents, config.DefaultExecutablePermissions); err != nil {
		return fmt.Errorf("write crontab helper: %w", err)
	}

	logger.InfoKV(ctx, "Wrote crontab helper (run it to register the boot entry)", "path", r.cfg.CronHelperPath())

	return nil
}

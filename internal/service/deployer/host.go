package deployer

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/smeshlabs/uploader-setup/internal/logger"
)

const (
	// expectedHostModel is the device class this tool provisions.
	expectedHostModel = "Raspberry Pi"

	// defaultModelPath identifies the board on Raspberry Pi OS.
	defaultModelPath = "/proc/device-tree/model"

	// defaultCPUInfoPath is the fallback identification source.
	defaultCPUInfoPath = "/proc/cpuinfo"
)

// errHostModelUnknown is returned when neither identification source names
// the board.
var errHostModelUnknown = errors.New("host model not identified")

// checkHost inspects host identification data and warns when the host does
// not look like the expected device class. Advisory only; it never aborts
// the deployment.
func (r *runner) checkHost(ctx context.Context) {
	model, err := readHostModel(r.modelPath, r.cpuInfoPath)

	switch {
	case err != nil:
		logger.WarnKV(ctx, "Could not identify host hardware, continuing anyway", "error", err)
	case !strings.Contains(model, expectedHostModel):
		logger.WarnKV(ctx, "Host does not identify as a Raspberry Pi, continuing anyway", "model", model)
	default:
		logger.InfoKV(ctx, "Host identified", "model", model)
	}

	r.warnIfUploaderRunning(ctx)
}

// readHostModel reads the board model, preferring the device tree and
// falling back to the Model line of cpuinfo.
func readHostModel(modelPath, cpuInfoPath string) (string, error) {
	if data, err := os.ReadFile(modelPath); err == nil {
		// The device tree model is NUL terminated.
		return strings.TrimRight(string(data), "\x00\n"), nil
	}

	data, err := os.ReadFile(cpuInfoPath)
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "Model") {
			continue
		}

		if _, value, found := strings.Cut(line, ":"); found {
			return strings.TrimSpace(value), nil
		}
	}

	return "", errHostModelUnknown
}

// warnIfUploaderRunning looks for a live uploader process so the operator
// knows a redeploy will not take effect until it restarts. The uploader runs
// through the Python interpreter, so matching is delegated to the finder.
// Advisory only.
func (r *runner) warnIfUploaderRunning(ctx context.Context) {
	pid, running := r.processes.FindUploader(r.cfg.PythonBin, r.cfg.ArtifactName)
	if !running {
		return
	}

	logger.WarnKV(ctx, "Uploader appears to be running; restart it to pick up this deployment",
		"pid", pid)
}

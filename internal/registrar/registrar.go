package registrar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smeshlabs/uploader-setup/internal/hostcmd"
)

// Registrar is the injected capability for mutating global host state: the
// service manager's unit directory and the periodic task table. The deployer
// core only talks to this interface, so it can run against a fake without
// touching a real host.
type Registrar interface {
	// InstallUnit writes a unit file into the service manager directory
	// and returns the installed path. The unit stays inert until the
	// operator enables and starts it.
	InstallUnit(ctx context.Context, filename string, contents []byte) (string, error)

	// AppendScheduledEntry appends one line to the invoking user's task
	// table, preserving existing entries. No deduplication is performed.
	AppendScheduledEntry(ctx context.Context, line string) error
}

const (
	// unitFilePermissions is world-readable like any systemd unit.
	unitFilePermissions = 0o644

	// missingTableMarker is what crontab -l prints when the user has no
	// table yet. Only this failure may be treated as an empty table; any
	// other listing failure must abort, or writing the table back would
	// wipe existing entries.
	missingTableMarker = "no crontab"
)

// Host mutates the real host. Writing to the unit directory normally
// requires elevated rights.
type Host struct {
	// UnitDirectory is the service manager directory units are written to.
	UnitDirectory string
	// Runner executes the crontab commands.
	Runner hostcmd.Runner
}

// NewHost returns a Host registrar targeting the given unit directory.
func NewHost(unitDirectory string) *Host {
	return &Host{
		UnitDirectory: unitDirectory,
		Runner:        hostcmd.Exec{},
	}
}

// InstallUnit writes the unit file, overwriting any previous version.
func (h *Host) InstallUnit(_ context.Context, filename string, contents []byte) (string, error) {
	path := filepath.Join(h.UnitDirectory, filename)
	if err := os.WriteFile(path, contents, unitFilePermissions); err != nil {
		return "", fmt.Errorf("install unit: %w", err)
	}

	return path, nil
}

// AppendScheduledEntry reads the current crontab, appends the line and
// writes the whole table back. A missing crontab (the `no crontab for user`
// case) is treated as empty; any other listing failure aborts before the
// write-back, since proceeding with a partial read would drop entries.
func (h *Host) AppendScheduledEntry(ctx context.Context, line string) error {
	existing, err := h.Runner.Run(ctx, nil, "crontab", "-l")
	if err != nil {
		if !strings.Contains(string(existing), missingTableMarker) {
			return fmt.Errorf("read task table: %w", err)
		}

		existing = nil
	}

	table := string(existing)
	if table != "" && !strings.HasSuffix(table, "\n") {
		table += "\n"
	}

	table += line + "\n"

	if _, err := h.Runner.Run(ctx, []byte(table), "crontab", "-"); err != nil {
		return fmt.Errorf("append scheduled entry: %w", err)
	}

	return nil
}

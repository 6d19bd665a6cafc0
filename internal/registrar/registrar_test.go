package registrar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner plays the crontab command: -l returns the stored table (or the
// `no crontab` message when none exists), - replaces it with stdin. failList
// simulates a listing failure unrelated to a missing table.
type fakeRunner struct {
	table    string
	hasTable bool
	failList bool
	failSet  bool
}

var errFakeCrontab = errors.New("crontab failed")

func (f *fakeRunner) Run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	if name != "crontab" {
		return nil, errFakeCrontab
	}

	switch args[0] {
	case "-l":
		if f.failList {
			return []byte("crontab: cannot open spool directory\n"), errFakeCrontab
		}

		if !f.hasTable {
			return []byte("no crontab for pi\n"), errFakeCrontab
		}

		return []byte(f.table), nil
	case "-":
		if f.failSet {
			return nil, errFakeCrontab
		}

		f.table = string(stdin)
		f.hasTable = true

		return nil, nil
	default:
		return nil, errFakeCrontab
	}
}

// TestHost_InstallUnit writes a unit and returns its installed path.
func TestHost_InstallUnit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	host := NewHost(dir)

	path, err := host.InstallUnit(context.Background(), "sensor-uploader.service", []byte("[Unit]\n"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sensor-uploader.service"), path)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[Unit]\n", string(contents))
}

// TestHost_InstallUnit_Overwrites re-installs without backup or diffing.
func TestHost_InstallUnit_Overwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	host := NewHost(dir)

	_, err := host.InstallUnit(context.Background(), "u.service", []byte("old"))
	require.NoError(t, err)

	path, err := host.InstallUnit(context.Background(), "u.service", []byte("new"))
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new", string(contents))
}

// TestHost_AppendScheduledEntry_EmptyTable treats a missing crontab as empty.
func TestHost_AppendScheduledEntry_EmptyTable(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	host := &Host{UnitDirectory: t.TempDir(), Runner: runner}

	require.NoError(t, host.AppendScheduledEntry(context.Background(), "@reboot echo hi"))
	require.Equal(t, "@reboot echo hi\n", runner.table)
}

// TestHost_AppendScheduledEntry_PreservesExisting keeps prior entries and
// performs no deduplication: two appends mean two entries.
func TestHost_AppendScheduledEntry_PreservesExisting(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{table: "0 4 * * * /usr/bin/backup\n", hasTable: true}
	host := &Host{UnitDirectory: t.TempDir(), Runner: runner}

	entry := "@reboot /usr/bin/python3 uploader.py"
	require.NoError(t, host.AppendScheduledEntry(context.Background(), entry))
	require.NoError(t, host.AppendScheduledEntry(context.Background(), entry))

	lines := strings.Split(strings.TrimRight(runner.table, "\n"), "\n")
	require.Equal(t, []string{
		"0 4 * * * /usr/bin/backup",
		entry,
		entry,
	}, lines)
}

// TestHost_AppendScheduledEntry_ListFailureAborts refuses to write the table
// back when listing fails for any reason other than a missing table. A
// transient listing failure must not wipe existing entries.
func TestHost_AppendScheduledEntry_ListFailureAborts(t *testing.T) {
	t.Parallel()

	existing := "0 4 * * * /usr/bin/backup\n"
	runner := &fakeRunner{table: existing, hasTable: true, failList: true}
	host := &Host{UnitDirectory: t.TempDir(), Runner: runner}

	err := host.AppendScheduledEntry(context.Background(), "@reboot x")
	require.ErrorIs(t, err, errFakeCrontab)

	// The table was never written back, so nothing was lost.
	require.Equal(t, existing, runner.table)
}

// TestHost_AppendScheduledEntry_SetFailure surfaces crontab write failures.
func TestHost_AppendScheduledEntry_SetFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{failSet: true}
	host := &Host{UnitDirectory: t.TempDir(), Runner: runner}

	err := host.AppendScheduledEntry(context.Background(), "@reboot x")
	require.Error(t, err)
}

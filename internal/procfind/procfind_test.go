package procfind

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testArtifact = "raspberry_pi_meshtastic_uploader.py"

// fakeLister returns a canned process list.
type fakeLister struct {
	processes []Process
	err       error
}

func (f *fakeLister) Processes() ([]Process, error) {
	return f.processes, f.err
}

// cmdlineMap serves NUL-separated command lines per pid.
func cmdlineMap(lines map[int][]string) func(pid int) ([]byte, error) {
	return func(pid int) ([]byte, error) {
		arguments, ok := lines[pid]
		if !ok {
			return nil, fmt.Errorf("no cmdline for pid %d", pid)
		}

		return []byte(strings.Join(arguments, "\x00") + "\x00"), nil
	}
}

// TestFindUploader_InterpreterInvoked matches the deployment's actual
// invocation shape: the comm is the interpreter's, the artifact only shows
// up in the command line.
func TestFindUploader_InterpreterInvoked(t *testing.T) {
	t.Parallel()

	finder := &Finder{
		Lister: &fakeLister{processes: []Process{
			{Pid: 100, Executable: "systemd"},
			{Pid: 4242, Executable: "python3"},
		}},
		Cmdline: cmdlineMap(map[int][]string{
			4242: {"/usr/bin/python3", "/home/pi/Documents/smesh/snode/scripts/" + testArtifact, "/dev/ttyUSB0"},
		}),
	}

	pid, running := finder.FindUploader("/usr/bin/python3", testArtifact)
	require.True(t, running)
	require.Equal(t, 4242, pid)
}

// TestFindUploader_OtherInterpreterProcess ignores interpreter processes
// running something else.
func TestFindUploader_OtherInterpreterProcess(t *testing.T) {
	t.Parallel()

	finder := &Finder{
		Lister: &fakeLister{processes: []Process{
			{Pid: 4242, Executable: "python3"},
		}},
		Cmdline: cmdlineMap(map[int][]string{
			4242: {"/usr/bin/python3", "/usr/lib/some_other_tool.py"},
		}),
	}

	_, running := finder.FindUploader("/usr/bin/python3", testArtifact)
	require.False(t, running)
}

// TestFindUploader_DirectExecution matches a directly executed artifact by
// its truncated comm.
func TestFindUploader_DirectExecution(t *testing.T) {
	t.Parallel()

	finder := &Finder{
		Lister: &fakeLister{processes: []Process{
			{Pid: 77, Executable: testArtifact[:commLength]},
		}},
		Cmdline: cmdlineMap(nil),
	}

	pid, running := finder.FindUploader("/usr/bin/python3", testArtifact)
	require.True(t, running)
	require.Equal(t, 77, pid)
}

// TestFindUploader_Failures reports not found on listing and cmdline errors.
func TestFindUploader_Failures(t *testing.T) {
	t.Parallel()

	finder := &Finder{
		Lister:  &fakeLister{err: errors.New("listing failed")},
		Cmdline: cmdlineMap(nil),
	}

	_, running := finder.FindUploader("/usr/bin/python3", testArtifact)
	require.False(t, running)

	// An interpreter process whose cmdline cannot be read is skipped.
	finder = &Finder{
		Lister: &fakeLister{processes: []Process{
			{Pid: 4242, Executable: "python3"},
		}},
		Cmdline: cmdlineMap(nil),
	}

	_, running = finder.FindUploader("/usr/bin/python3", testArtifact)
	require.False(t, running)
}

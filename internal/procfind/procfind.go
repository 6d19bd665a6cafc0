package procfind

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
)

// commLength is the kernel's process name limit; names longer than this
// show up truncated in process listings.
const commLength = 15

// Process is the subset of process information used for matching.
type Process struct {
	// Pid is the process identifier.
	Pid int
	// Executable is the kernel comm, truncated to commLength.
	Executable string
}

// Lister enumerates running processes. The host implementation uses go-ps;
// tests swap it out.
type Lister interface {
	Processes() ([]Process, error)
}

// psLister lists real host processes via go-ps.
type psLister struct{}

// Processes implements Lister.
func (psLister) Processes() ([]Process, error) {
	listed, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	processes := make([]Process, 0, len(listed))
	for _, process := range listed {
		processes = append(processes, Process{
			Pid:        process.Pid(),
			Executable: process.Executable(),
		})
	}

	return processes, nil
}

// Finder locates a running uploader process.
type Finder struct {
	// Lister enumerates candidate processes.
	Lister Lister
	// Cmdline returns the NUL-separated command line of a pid.
	Cmdline func(pid int) ([]byte, error)
}

// New returns a Finder backed by the real host.
func New() *Finder {
	return &Finder{
		Lister:  psLister{},
		Cmdline: procCmdline,
	}
}

// FindUploader returns the pid of a running uploader process. The generated
// unit, wrapper and cron entry all start the artifact through the Python
// interpreter, so the comm to look for is the interpreter's; the artifact
// name is then confirmed in the process command line. A directly executed
// artifact is matched by comm alone. Listing and read failures report not
// found; every caller treats the answer as advisory.
func (f *Finder) FindUploader(pythonBin, artifactName string) (int, bool) {
	processes, err := f.Lister.Processes()
	if err != nil {
		return 0, false
	}

	artifactComm := comm(artifactName)
	interpreterComm := comm(filepath.Base(pythonBin))

	for _, process := range processes {
		switch process.Executable {
		case artifactComm:
			return process.Pid, true
		case interpreterComm:
			cmdline, err := f.Cmdline(process.Pid)
			if err != nil {
				continue
			}

			for _, argument := range strings.Split(string(cmdline), "\x00") {
				if filepath.Base(argument) == artifactName {
					return process.Pid, true
				}
			}
		}
	}

	return 0, false
}

// procCmdline reads the command line of a pid from procfs.
func procCmdline(pid int) ([]byte, error) {
	return os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
}

// comm truncates a process name to the kernel's comm length.
func comm(name string) string {
	if len(name) > commLength {
		return name[:commLength]
	}

	return name
}

package hostcmd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Runner executes a host command synchronously. The deployer and the
// registrar depend on this interface so tests can swap the host out.
type Runner interface {
	// Run executes name with args, feeding stdin when non-nil, and returns
	// the combined output. A non-zero exit status is returned as an error.
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// Exec runs commands on the real host.
type Exec struct{}

// Run implements Runner using os/exec.
func (Exec) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w", name, err)
	}

	return output, nil
}

package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smeshlabs/uploader-setup/internal/config"
)

// TestRender_Deterministic verifies identical records render byte-identical
// artifacts across runs.
func TestRender_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	for _, render := range []func(*config.Deployment) ([]byte, error){EnvFile, Unit, Wrapper, CronHelper} {
		first, err := render(cfg)
		require.NoError(t, err)

		second, err := render(config.Default())
		require.NoError(t, err)
		require.Equal(t, first, second)
	}
}

// TestEnvFile_Contents checks the KEY=value lines, comment header and the
// credential placeholder.
func TestEnvFile_Contents(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	out, err := EnvFile(cfg)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")

	var keys []string

	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		require.True(t, found, "non-comment line without '=': %q", line)
		keys = append(keys, key)

		if key == "SUPABASE_SERVICE_KEY" {
			require.Equal(t, config.CredentialPlaceholder, value)
		}
	}

	require.Equal(t, cfg.EnvKeys(), keys)
}

// TestWrapper_ExportsExactlyEnvKeys asserts the wrapper's export list is the
// environment descriptor's key set, nothing more and nothing less.
func TestWrapper_ExportsExactlyEnvKeys(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	out, err := Wrapper(cfg)
	require.NoError(t, err)

	var exported []string

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "export ") {
			continue
		}

		exported = append(exported, strings.Fields(strings.TrimPrefix(line, "export "))...)
	}

	require.Equal(t, cfg.EnvKeys(), exported)

	// The wrapper sources the descriptor and passes the device variable.
	require.Contains(t, string(out), `source "`+cfg.EnvFile()+`"`)
	require.Contains(t, string(out), `"$TTY_DEVICE"`)
}

// TestUnit_DeviceTracksDescriptor guards against the unit's ExecStart
// argument diverging from the descriptor's TTY_DEVICE value when the device
// path is changed.
func TestUnit_DeviceTracksDescriptor(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.TTYDevice = "/dev/ttyACM3"

	out, err := Unit(cfg)
	require.NoError(t, err)

	unit := string(out)
	require.Contains(t, unit, "ExecStart="+cfg.PythonBin+" "+cfg.StagedArtifact()+" /dev/ttyACM3")

	env, err := EnvFile(cfg)
	require.NoError(t, err)
	require.Contains(t, string(env), "TTY_DEVICE=/dev/ttyACM3")
}

// TestUnit_Sections checks the declarative sections the supervisor consumes.
func TestUnit_Sections(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	out, err := Unit(cfg)
	require.NoError(t, err)

	unit := string(out)
	require.Contains(t, unit, "[Unit]")
	require.Contains(t, unit, "[Service]")
	require.Contains(t, unit, "[Install]")
	require.Contains(t, unit, "WorkingDirectory="+cfg.InstallRoot)
	require.Contains(t, unit, "EnvironmentFile="+cfg.EnvFile())
	require.Contains(t, unit, "Restart=always")
	require.Contains(t, unit, "RestartSec=10")
	require.Contains(t, unit, "StandardOutput=append:"+cfg.StdoutLog())
	require.Contains(t, unit, "StandardError=append:"+cfg.StderrLog())
	require.Contains(t, unit, "WantedBy=multi-user.target")

	// Stdout and stderr go to distinct files.
	require.NotEqual(t, cfg.StdoutLog(), cfg.StderrLog())
}

// TestCronEntry_Format pins the @reboot line layout.
func TestCronEntry_Format(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	entry := CronEntry(cfg)
	require.True(t, strings.HasPrefix(entry, "@reboot source "+cfg.EnvFile()+"; "))
	require.Contains(t, entry, "cd "+cfg.InstallRoot+"; ")
	require.Contains(t, entry, cfg.PythonBin+" "+cfg.StagedArtifact()+" "+cfg.TTYDevice)
	require.True(t, strings.HasSuffix(entry, ">> "+cfg.CronLog()+" 2>&1"))
}

// TestCronHelper_CarriesEntry ensures the helper script embeds the exact
// scheduled line and pipes through crontab preserving existing entries.
func TestCronHelper_CarriesEntry(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	out, err := CronHelper(cfg)
	require.NoError(t, err)

	helper := string(out)
	require.True(t, strings.HasPrefix(helper, "#!/bin/bash"))
	require.Contains(t, helper, "ENTRY='"+CronEntry(cfg)+"'")
	require.Contains(t, helper, "crontab -l")
	require.Contains(t, helper, "| crontab -")
}

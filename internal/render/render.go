package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/smeshlabs/uploader-setup/internal/config"
)

//go:embed templates/env.tmpl
var envTemplate string

//go:embed templates/unit.tmpl
var unitTemplate string

//go:embed templates/wrapper.tmpl
var wrapperTemplate string

//go:embed templates/cron_helper.tmpl
var cronHelperTemplate string

var templates = template.Must(template.New("env").Parse(envTemplate))

func init() { //nolint:gochecknoinits // Templates are static; a parse failure is a programming error.
	template.Must(templates.New("unit").Parse(unitTemplate))
	template.Must(templates.New("wrapper").Parse(wrapperTemplate))
	template.Must(templates.New("cron_helper").Parse(cronHelperTemplate))
}

// wrapperView adds the precomputed export list to the deployment record.
type wrapperView struct {
	*config.Deployment

	// ExportList is every environment descriptor key, space separated.
	ExportList string
}

// cronHelperView carries the single scheduled line into the helper template.
type cronHelperView struct {
	// Entry is the @reboot crontab line the helper appends.
	Entry string
}

// EnvFile renders the environment descriptor. Keys and order come from
// Deployment.EnvPairs, the single source for every consumer.
func EnvFile(cfg *config.Deployment) ([]byte, error) {
	return execute("env", cfg)
}

// Unit renders the systemd unit. The ExecStart device argument is the same
// TTYDevice value that lands in the environment descriptor, so changing the
// device path in the deployment record updates both in lockstep.
func Unit(cfg *config.Deployment) ([]byte, error) {
	return execute("unit", cfg)
}

// Wrapper renders the manual launcher. It sources the environment descriptor
// and exports exactly the descriptor's key set before invoking the artifact.
func Wrapper(cfg *config.Deployment) ([]byte, error) {
	return execute("wrapper", &wrapperView{
		Deployment: cfg,
		ExportList: strings.Join(cfg.EnvKeys(), " "),
	})
}

// CronHelper renders the crontab registration helper. Generating the helper
// never touches the task table; only running it appends the entry.
func CronHelper(cfg *config.Deployment) ([]byte, error) {
	return execute("cron_helper", &cronHelperView{Entry: CronEntry(cfg)})
}

// CronEntry returns the boot-time task table line shared by the generated
// helper and the crontab subcommand.
func CronEntry(cfg *config.Deployment) string {
	return fmt.Sprintf("@reboot source %s; cd %s; %s %s %s >> %s 2>&1",
		cfg.EnvFile(), cfg.InstallRoot, cfg.PythonBin, cfg.StagedArtifact(), cfg.TTYDevice, cfg.CronLog())
}

// execute runs a named template into a buffer.
func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

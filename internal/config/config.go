package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Deployment is the single record every generated artifact is rendered from.
// The environment file, the systemd unit, the manual wrapper and the crontab
// helper all derive their values here, so the key set and the device path can
// never drift between them.
type Deployment struct {
	// InstallRoot is the base directory for the deployment layout.
	InstallRoot string `yaml:"install_root"`
	// ArtifactName is the uploader script staged into scripts/.
	// It is a bare filename, looked up in the working directory.
	ArtifactName string `yaml:"artifact"`
	// PythonBin is the interpreter the unit and wrappers invoke.
	PythonBin string `yaml:"python_bin"`
	// PipBin is the package installer used for Python dependencies.
	PipBin string `yaml:"pip_bin"`
	// PythonPackages are installed user-scoped before staging.
	PythonPackages []string `yaml:"python_packages"`
	// ServiceName is the systemd unit name without the .service suffix.
	ServiceName string `yaml:"service_name"`
	// UnitDirectory is where the unit file is installed. Writing here
	// normally requires elevated rights.
	UnitDirectory string `yaml:"unit_directory"`

	// SupabaseURL is the Supabase project endpoint.
	SupabaseURL string `yaml:"supabase_url"`
	// SupabaseServiceKey is written as a placeholder the operator must
	// replace before the uploader can authenticate.
	SupabaseServiceKey string `yaml:"supabase_service_key"`
	// APIBaseURL is the smesh API the uploader posts batches to.
	APIBaseURL string `yaml:"api_base_url"`
	// TTYDevice is the serial device the uploader reads from. It is also
	// the single positional argument of every artifact invocation.
	TTYDevice string `yaml:"tty_device"`
	// DefaultLatitude is used for readings without a GPS fix.
	DefaultLatitude float64 `yaml:"default_latitude"`
	// DefaultLongitude is used for readings without a GPS fix.
	DefaultLongitude float64 `yaml:"default_longitude"`
	// UploadBatchSize is the number of readings per upload.
	UploadBatchSize int `yaml:"upload_batch_size"`
	// UploadIntervalSec is the delay between upload attempts.
	UploadIntervalSec int `yaml:"upload_interval_sec"`
	// Debug toggles verbose logging in the uploader.
	Debug bool `yaml:"debug"`
}

// Pair is one KEY=value entry of the environment descriptor.
type Pair struct {
	Key   string
	Value string
}

const (
	// DefaultConfigFilename is the optional YAML overrides file looked up
	// in the working directory.
	DefaultConfigFilename = "uploader-setup.yaml"

	// CredentialPlaceholder marks the service key the operator must
	// replace after installation.
	CredentialPlaceholder = "REPLACE_WITH_SUPABASE_SERVICE_KEY"

	// DefaultFilePermissions restricts generated configuration files;
	// the environment descriptor carries a credential.
	DefaultFilePermissions = 0o600

	// DefaultExecutablePermissions is used for staged and generated
	// executables.
	DefaultExecutablePermissions os.FileMode = 0o755
)

var (
	// errConfigIsNotSet is returned when a nil deployment is provided.
	errConfigIsNotSet = errors.New("deployment configuration is not set")
	// errInstallRootRequired is returned when the install root is missing or relative.
	errInstallRootRequired = errors.New("install root must be an absolute path")
	// errArtifactNameInvalid is returned when the artifact name is empty or contains a path.
	errArtifactNameInvalid = errors.New("artifact must be a bare filename")
	// errServiceNameRequired is returned when the unit name is missing.
	errServiceNameRequired = errors.New("service name must be provided")
)

// Default returns the hard-coded deployment matching the Pi image this tool
// provisions. Every value is a fixed default or a placeholder; nothing is
// solicited from the operator at generation time.
func Default() *Deployment {
	return &Deployment{
		InstallRoot:        "/home/pi/Documents/smesh/snode",
		ArtifactName:       "raspberry_pi_meshtastic_uploader.py",
		PythonBin:          "/usr/bin/python3",
		PipBin:             "pip3",
		PythonPackages:     []string{"meshtastic", "requests", "pypubsub"},
		ServiceName:        "sensor-uploader",
		UnitDirectory:      "/etc/systemd/system",
		SupabaseURL:        "https://vanqyqnugswokfchdhpk.supabase.co",
		SupabaseServiceKey: CredentialPlaceholder,
		APIBaseURL:         "http://localhost:3000",
		TTYDevice:          "/dev/ttyUSB0",
		DefaultLatitude:    37.7749,
		DefaultLongitude:   -122.4194,
		UploadBatchSize:    10,
		UploadIntervalSec:  30,
		Debug:              false,
	}
}

// Load reads the overrides file and merges it over the defaults. A missing
// file at the default path is not an error: the defaults are the contract,
// the YAML file only exists for non-standard hosts.
func Load(path string) (*Deployment, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}

		return nil, fmt.Errorf("read deployment settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal deployment settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the deployment to the provided path.
func Save(path string, cfg *Deployment) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal deployment settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write deployment settings: %w", err)
	}

	return nil
}

// Validate checks the deployment for required fields and fills defaults left
// empty by a sparse overrides file.
func Validate(cfg *Deployment) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if !filepath.IsAbs(cfg.InstallRoot) {
		return errInstallRootRequired
	}

	if cfg.ArtifactName == "" || strings.ContainsRune(cfg.ArtifactName, os.PathSeparator) {
		return errArtifactNameInvalid
	}

	if cfg.ServiceName == "" {
		return errServiceNameRequired
	}

	if _, err := url.ParseRequestURI(cfg.SupabaseURL); err != nil {
		return fmt.Errorf("invalid supabase URL: %w", err)
	}

	defaults := Default()

	if cfg.PythonBin == "" {
		cfg.PythonBin = defaults.PythonBin
	}

	if cfg.PipBin == "" {
		cfg.PipBin = defaults.PipBin
	}

	if len(cfg.PythonPackages) == 0 {
		cfg.PythonPackages = defaults.PythonPackages
	}

	if cfg.UnitDirectory == "" {
		cfg.UnitDirectory = defaults.UnitDirectory
	}

	if cfg.UploadBatchSize <= 0 {
		cfg.UploadBatchSize = defaults.UploadBatchSize
	}

	if cfg.UploadIntervalSec <= 0 {
		cfg.UploadIntervalSec = defaults.UploadIntervalSec
	}

	return nil
}

// EnvPairs returns the environment descriptor entries in their fixed file
// order. This list is the only source of environment keys: the wrapper's
// export list is rendered from it, key by key.
func (d *Deployment) EnvPairs() []Pair {
	return []Pair{
		{Key: "SUPABASE_URL", Value: d.SupabaseURL},
		{Key: "SUPABASE_SERVICE_KEY", Value: d.SupabaseServiceKey},
		{Key: "API_BASE_URL", Value: d.APIBaseURL},
		{Key: "TTY_DEVICE", Value: d.TTYDevice},
		{Key: "DEFAULT_LATITUDE", Value: formatFloat(d.DefaultLatitude)},
		{Key: "DEFAULT_LONGITUDE", Value: formatFloat(d.DefaultLongitude)},
		{Key: "UPLOAD_BATCH_SIZE", Value: strconv.Itoa(d.UploadBatchSize)},
		{Key: "UPLOAD_INTERVAL_SEC", Value: strconv.Itoa(d.UploadIntervalSec)},
		{Key: "DEBUG", Value: strconv.FormatBool(d.Debug)},
	}
}

// EnvKeys returns the keys of EnvPairs in the same order.
func (d *Deployment) EnvKeys() []string {
	pairs := d.EnvPairs()
	keys := make([]string, 0, len(pairs))

	for _, p := range pairs {
		keys = append(keys, p.Key)
	}

	return keys
}

// DataDir is where the uploader and its wrappers append their logs.
func (d *Deployment) DataDir() string {
	return filepath.Join(d.InstallRoot, "data")
}

// ScriptsDir holds the staged uploader artifact.
func (d *Deployment) ScriptsDir() string {
	return filepath.Join(d.InstallRoot, "scripts")
}

// EnvFile is the generated environment descriptor path.
func (d *Deployment) EnvFile() string {
	return filepath.Join(d.InstallRoot, ".env")
}

// WrapperPath is the generated manual launcher path.
func (d *Deployment) WrapperPath() string {
	return filepath.Join(d.InstallRoot, "start_uploader.sh")
}

// CronHelperPath is the generated crontab registration helper path.
func (d *Deployment) CronHelperPath() string {
	return filepath.Join(d.InstallRoot, "install_crontab.sh")
}

// StagedArtifact is the artifact location after staging.
func (d *Deployment) StagedArtifact() string {
	return filepath.Join(d.ScriptsDir(), d.ArtifactName)
}

// UnitFilename is the systemd unit file name.
func (d *Deployment) UnitFilename() string {
	return d.ServiceName + ".service"
}

// UnitPath is the installed unit location.
func (d *Deployment) UnitPath() string {
	return filepath.Join(d.UnitDirectory, d.UnitFilename())
}

// StdoutLog is the unit's stdout append target under data/.
func (d *Deployment) StdoutLog() string {
	return filepath.Join(d.DataDir(), "uploader.log")
}

// StderrLog is the unit's stderr append target under data/.
func (d *Deployment) StderrLog() string {
	return filepath.Join(d.DataDir(), "uploader_error.log")
}

// CronLog is where the boot-time crontab entry redirects combined output.
func (d *Deployment) CronLog() string {
	return filepath.Join(d.DataDir(), "cron_uploader.log")
}

// formatFloat renders coordinates without trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

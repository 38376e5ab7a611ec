package provision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultPollInterval = 5 * time.Second

// Credentials identify a wireless network.
type Credentials struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
}

// String hides the passphrase.
func (c Credentials) String() string {
	return fmt.Sprintf("ssid=%q passphrase=<redacted>", c.SSID)
}

// Provisioner yields network credentials, blocking until they exist.
type Provisioner interface {
	ObtainCredentials(ctx context.Context, stationName string) (Credentials, error)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// FileProvisioner reads credentials from a YAML file.
type FileProvisioner struct {
	path     string
	interval time.Duration
	logger   Logger
}

// NewFileProvisioner creates a provisioner for path.
// A non-positive interval selects 5 seconds.
func NewFileProvisioner(path string, interval time.Duration) *FileProvisioner {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &FileProvisioner{path: path, interval: interval, logger: noopLogger{}}
}

// SetLogger sets the logger for the provisioner.
func (p *FileProvisioner) SetLogger(logger Logger) {
	p.logger = logger
}

// ObtainCredentials blocks until the file holds usable credentials.
//
// Parameters:
//   - ctx: Cancels the wait
//   - stationName: Name the device is waiting under, for the log
//
// Returns:
//   - Credentials: The parsed file
//   - error: ctx.Err() when cancelled, or a read error other than "not exist"
func (p *FileProvisioner) ObtainCredentials(ctx context.Context, stationName string) (Credentials, error) {
	announced := false

	for {
		creds, err := p.read()
		if err == nil {
			p.logger.Info("network credentials loaded", "path", p.path, "ssid", creds.SSID)
			return creds, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrIncomplete) {
			return Credentials{}, err
		}

		if !announced {
			p.logger.Warn("awaiting network configuration",
				"station", stationName,
				"path", p.path,
				"reason", err,
			)
			announced = true
		}

		select {
		case <-ctx.Done():
			return Credentials{}, ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

func (p *FileProvisioner) read() (Credentials, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading credentials: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parsing credentials %s: %w", p.path, err)
	}
	if creds.SSID == "" {
		return Credentials{}, fmt.Errorf("%w: %s has no ssid", ErrIncomplete, p.path)
	}
	return creds, nil
}

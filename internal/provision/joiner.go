package provision

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Join modes accepted by NewJoiner.
const (
	JoinNone  = "none"
	JoinNMCLI = "nmcli"
)

// joinTimeout bounds one nmcli invocation.
const joinTimeout = 60 * time.Second

// Joiner connects the host to a network.
type Joiner interface {
	Join(ctx context.Context, creds Credentials) error
}

// NewJoiner returns the joiner for a mode from config.
func NewJoiner(mode string, logger Logger) (Joiner, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	switch mode {
	case "", JoinNone:
		return NoopJoiner{logger: logger}, nil
	case JoinNMCLI:
		return &NMCLIJoiner{logger: logger, run: runCommand}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownJoiner, mode)
}

// NoopJoiner assumes the host network is already up.
type NoopJoiner struct {
	logger Logger
}

// Join logs and returns nil.
func (j NoopJoiner) Join(_ context.Context, creds Credentials) error {
	if j.logger != nil {
		j.logger.Debug("network join skipped", "ssid", creds.SSID)
	}
	return nil
}

// NMCLIJoiner joins through NetworkManager.
type NMCLIJoiner struct {
	logger Logger
	run    func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Join runs `nmcli device wifi connect <ssid> [password <passphrase>]`.
func (j *NMCLIJoiner) Join(ctx context.Context, creds Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	args := []string{"device", "wifi", "connect", creds.SSID}
	if creds.Passphrase != "" {
		args = append(args, "password", creds.Passphrase)
	}

	out, err := j.run(ctx, "nmcli", args...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w: %s", ErrJoinFailed, creds.SSID, err, strings.TrimSpace(string(out)))
	}

	j.logger.Info("joined network", "ssid", creds.SSID)
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // Fixed binary; arguments are passed without a shell
}

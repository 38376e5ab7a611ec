package ota

import (
	"fmt"
	"os"
	"path/filepath"
)

// Installer puts a staged image in place.
type Installer interface {
	Install(target Target, image string) error
}

// FileInstaller moves staged images over fixed paths.
//
// The move is a rename, so the staging directory must sit on the same
// filesystem as the destinations. An empty destination path rejects that
// target.
type FileInstaller struct {
	FirmwarePath   string
	FilesystemPath string
}

// Install renames image to the destination for target.
func (i FileInstaller) Install(target Target, image string) error {
	dest := i.FirmwarePath
	if target == TargetFilesystem {
		dest = i.FilesystemPath
	}
	if dest == "" {
		return fmt.Errorf("%w: no install path for %s", ErrInvalidTarget, target)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	if err := os.Chmod(image, 0o755); err != nil { //nolint:gosec // G302: installed firmware must be executable
		return fmt.Errorf("chmod %s: %w", image, err)
	}
	if err := os.Rename(image, dest); err != nil {
		return fmt.Errorf("moving image to %s: %w", dest, err)
	}
	return nil
}

// Updater drains upload events from the scheduler loop.
type Updater struct {
	server    *Server
	installer Installer
	logger    Logger
}

// NewUpdater connects an installer to a server's events.
func NewUpdater(server *Server, installer Installer) *Updater {
	return &Updater{
		server:    server,
		installer: installer,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for update events.
func (u *Updater) SetLogger(logger Logger) {
	u.logger = logger
}

// Service handles every queued event and returns without waiting for more.
//
// Returns:
//   - nil: Nothing to do, or only progress and failures were handled
//   - error: wrapping ErrRestartRequired after an install, or ErrInstallFailed
func (u *Updater) Service() error {
	for {
		select {
		case ev := <-u.server.Events():
			if err := u.handle(ev); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (u *Updater) handle(ev Event) error {
	switch ev.Kind {
	case EventStart:
		u.logger.Info("update started", "target", ev.Target, "size", contentLength(ev.Total))

	case EventProgress:
		u.logger.Debug("update progress",
			"target", ev.Target,
			"received", ev.Received,
			"percent", ev.Percent(),
		)

	case EventError:
		u.logger.Error("update failed", "target", ev.Target, "code", ev.Code, "error", ev.Err)

	case EventEnd:
		u.logger.Info("update received", "target", ev.Target, "bytes", ev.Received, "image", ev.Image)
		return u.install(ev)
	}

	return nil
}

func (u *Updater) install(ev Event) error {
	u.server.setState(StateInstalling, nil)

	if err := u.installer.Install(ev.Target, ev.Image); err != nil {
		_ = os.Remove(ev.Image) //nolint:errcheck // Staged image is useless after a failed install
		err = fmt.Errorf("%w: %s: %w", ErrInstallFailed, ev.Target, err)
		u.server.setState(StateFailed, err)
		return err
	}

	u.server.setState(StateInstalled, nil)
	u.logger.Info("update installed, restart required", "target", ev.Target)
	return fmt.Errorf("%s installed: %w", ev.Target, ErrRestartRequired)
}

package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestFileProvisioner_Present(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wifi.yaml")
	if err := os.WriteFile(path, []byte("ssid: HomeNet\npassphrase: hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	creds, err := NewFileProvisioner(path, time.Millisecond).ObtainCredentials(context.Background(), "AutoConnectAP")
	if err != nil {
		t.Fatalf("ObtainCredentials() error = %v", err)
	}
	if creds.SSID != "HomeNet" || creds.Passphrase != "hunter2" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestFileProvisioner_WaitsForFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wifi.yaml")

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(path+".tmp", []byte("ssid: Late\n"), 0o600) //nolint:errcheck // Test setup
		_ = os.Rename(path+".tmp", path)                                //nolint:errcheck // Test setup
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	creds, err := NewFileProvisioner(path, 5*time.Millisecond).ObtainCredentials(ctx, "AutoConnectAP")
	if err != nil {
		t.Fatalf("ObtainCredentials() error = %v", err)
	}
	if creds.SSID != "Late" {
		t.Errorf("SSID = %q, want Late", creds.SSID)
	}
}

func TestFileProvisioner_IncompleteKeepsWaiting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wifi.yaml")
	if err := os.WriteFile(path, []byte("passphrase: only\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewFileProvisioner(path, 5*time.Millisecond).ObtainCredentials(ctx, "AutoConnectAP")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ObtainCredentials() error = %v, want DeadlineExceeded", err)
	}
}

func TestFileProvisioner_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wifi.yaml")
	if err := os.WriteFile(path, []byte("ssid: [broken"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileProvisioner(path, time.Millisecond).ObtainCredentials(context.Background(), "AutoConnectAP")
	if err == nil {
		t.Fatal("ObtainCredentials() expected parse error")
	}
}

func TestCredentials_StringRedacts(t *testing.T) {
	s := Credentials{SSID: "HomeNet", Passphrase: "hunter2"}.String()
	if strings.Contains(s, "hunter2") {
		t.Errorf("String() = %q leaks the passphrase", s)
	}
}

func TestNewJoiner(t *testing.T) {
	tests := []struct {
		mode    string
		wantErr bool
	}{
		{"", false},
		{JoinNone, false},
		{JoinNMCLI, false},
		{"wpa_supplicant", true},
	}

	for _, tt := range tests {
		_, err := NewJoiner(tt.mode, nil)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewJoiner(%q) error = %v, wantErr %v", tt.mode, err, tt.wantErr)
		}
	}
}

func TestNMCLIJoiner(t *testing.T) {
	tests := []struct {
		name     string
		creds    Credentials
		runErr   error
		wantArgs []string
		wantErr  bool
	}{
		{
			name:     "with passphrase",
			creds:    Credentials{SSID: "HomeNet", Passphrase: "hunter2"},
			wantArgs: []string{"device", "wifi", "connect", "HomeNet", "password", "hunter2"},
		},
		{
			name:     "open network",
			creds:    Credentials{SSID: "Cafe"},
			wantArgs: []string{"device", "wifi", "connect", "Cafe"},
		},
		{
			name:     "nmcli fails",
			creds:    Credentials{SSID: "HomeNet"},
			runErr:   errors.New("exit status 10"),
			wantArgs: []string{"device", "wifi", "connect", "HomeNet"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotName string
			var gotArgs []string
			j := &NMCLIJoiner{logger: noopLogger{}, run: func(_ context.Context, name string, args ...string) ([]byte, error) {
				gotName, gotArgs = name, args
				return []byte("Error: No network with SSID found."), tt.runErr
			}}

			err := j.Join(context.Background(), tt.creds)

			if (err != nil) != tt.wantErr {
				t.Errorf("Join() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrJoinFailed) {
				t.Errorf("Join() error = %v, want ErrJoinFailed", err)
			}
			if gotName != "nmcli" || !slices.Equal(gotArgs, tt.wantArgs) {
				t.Errorf("ran %s %v, want nmcli %v", gotName, gotArgs, tt.wantArgs)
			}
		})
	}
}

package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/influxdb"
)

// fakeInflux answers ping and collects line protocol from the write endpoint.
type fakeInflux struct {
	*httptest.Server

	mu     sync.Mutex
	lines  []string
	reject bool
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		if f.reject {
			f.mu.Unlock()
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "switch",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	srv := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(srv.URL), "kitchen-01")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, srv
}

func TestConnect(t *testing.T) {
	client, _ := connect(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg, "kitchen-01")
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(testConfig(url), "kitchen-01")
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := connect(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	client, _ := connect(t)
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWrites(t *testing.T) {
	tests := []struct {
		name  string
		write func(c *influxdb.Client)
		want  []string
	}{
		{
			name:  "connect attempt failure",
			write: func(c *influxdb.Client) { c.WriteConnectAttempt(3, errors.New("refused")) },
			want:  []string{influxdb.MeasurementConnect, "device_id=kitchen-01", "attempt=3i", "success=false", `error="refused"`},
		},
		{
			name:  "connect attempt success",
			write: func(c *influxdb.Client) { c.WriteConnectAttempt(1, nil) },
			want:  []string{influxdb.MeasurementConnect, "success=true"},
		},
		{
			name:  "publish",
			write: func(c *influxdb.Client) { c.WritePublish("switch/kitchen-01/status/state", true) },
			want:  []string{influxdb.MeasurementPublish, `topic=switch/kitchen-01/status/state`, "success=true"},
		},
		{
			name:  "state",
			write: func(c *influxdb.Client) { c.WriteState("color", "red") },
			want:  []string{influxdb.MeasurementState, "feature=color", `value="red"`},
		},
		{
			name:  "heartbeat",
			write: func(c *influxdb.Client) { c.WriteHeartbeat(90*time.Second, 2048, 7) },
			want:  []string{influxdb.MeasurementHeartbeat, "uptime_s=90", "heap_bytes=2048u", "goroutines=7i"},
		},
		{
			name: "custom point keeps explicit device id",
			write: func(c *influxdb.Client) {
				c.WritePoint("custom", map[string]string{"device_id": "other"}, map[string]interface{}{"v": 1.5})
			},
			want: []string{"custom", "device_id=other", "v=1.5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := connect(t)

			var writeErr error
			var mu sync.Mutex
			client.SetOnError(func(err error) {
				mu.Lock()
				writeErr = err
				mu.Unlock()
			})

			tt.write(client)
			client.Flush()

			lines := srv.Lines()
			if len(lines) != 1 {
				t.Fatalf("wrote %d lines, want 1: %v", len(lines), lines)
			}
			for _, part := range tt.want {
				if !strings.Contains(lines[0], part) {
					t.Errorf("line %q missing %q", lines[0], part)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if writeErr != nil {
				t.Errorf("write error = %v", writeErr)
			}
		})
	}
}

func TestClose(t *testing.T) {
	client, srv := connect(t)

	client.WriteState("power", "on")

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if n := len(srv.Lines()); n != 1 {
		t.Errorf("Close() flushed %d lines, want 1", n)
	}

	// Writes after close are dropped.
	client.WriteState("power", "off")
	client.Flush()
	if n := len(srv.Lines()); n != 1 {
		t.Errorf("lines after close = %d, want 1", n)
	}
}

func TestWriteFailure(t *testing.T) {
	client, srv := connect(t)
	srv.mu.Lock()
	srv.reject = true
	srv.mu.Unlock()

	errs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	client.WriteState("power", "on")
	client.Flush()

	select {
	case err := <-errs:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no write error reported")
	}
	if client.Failures() < 1 {
		t.Errorf("Failures() = %d, want at least 1", client.Failures())
	}
}

package ota

import (
	"context"
	"crypto/md5" //nolint:gosec // G501: MD5 is the upload tools' integrity check, not a security control
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	// eventBuffer bounds the events waiting for the scheduler loop.
	eventBuffer = 64

	// progressStep is the number of bytes between progress events.
	progressStep = 64 << 10

	// gracefulShutdownTimeout bounds Close.
	gracefulShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second

	// headerMD5 carries the expected image checksum as hex.
	headerMD5 = "X-Update-MD5"

	defaultMaxImageSize = 64 << 20
)

// Config configures the update server.
type Config struct {
	// Listen is the TCP address, e.g. ":8266".
	Listen string

	// PasswordHash is an Argon2id PHC string. Empty disables authentication.
	PasswordHash string

	// StagingDir receives uploads before installation.
	StagingDir string

	// MaxImageSize caps an upload in bytes (default 64 MiB).
	MaxImageSize int64
}

// Logger defines the logging interface used by the server and updater.
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

// State is the update server's progress as shown by GET /status.
type State string

const (
	StateIdle       State = "idle"
	StateReceiving  State = "receiving"
	StateStaged     State = "staged"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateFailed     State = "failed"
)

// Status is the body of GET /status.
type Status struct {
	State    State  `json:"state"`
	Target   Target `json:"target,omitempty"`
	Received int64  `json:"received"`
	Total    int64  `json:"total"`
	Error    string `json:"error,omitempty"`
}

// Server receives images over HTTP.
//
// Thread Safety: HTTP handlers run on net/http goroutines; status is
// guarded by mu and events leave through a channel.
type Server struct {
	cfg    Config
	hash   *passwordHash
	events chan Event
	logger Logger

	mu     sync.Mutex
	status Status
	busy   bool

	httpServer *http.Server
	listener   net.Listener
}

// NewServer validates cfg and returns a server that is not yet listening.
//
// Returns:
//   - *Server: Server ready for Start, or for Handler in tests
//   - error: ErrInvalidHash if the password hash cannot be parsed
func NewServer(cfg Config) (*Server, error) {
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = defaultMaxImageSize
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}

	s := &Server{
		cfg:    cfg,
		events: make(chan Event, eventBuffer),
		logger: noopLogger{},
		status: Status{State: StateIdle},
	}

	if cfg.PasswordHash != "" {
		h, err := parsePasswordHash(cfg.PasswordHash)
		if err != nil {
			return nil, err
		}
		s.hash = h
	}

	return s, nil
}

// SetLogger sets the logger for HTTP request records.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
}

// AuthRequired reports whether uploads need a password.
func (s *Server) AuthRequired() bool {
	return s.hash != nil
}

// Events returns the channel the Updater drains.
func (s *Server) Events() <-chan Event {
	return s.events
}

// Status returns a snapshot of the upload progress.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/status", s.handleStatus)
	r.Post("/update", s.handleUpdate)

	return r
}

// Start listens on the configured address and serves in the background.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("ota listen %s: %w", s.cfg.Listen, err)
	}

	s.listener = l
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ota server error", "error", err)
		}
	}()

	s.logger.Info("ota server listening", "address", l.Addr().String(), "auth", s.AuthRequired())
	return nil
}

// Port returns the bound TCP port, or 0 before Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Close waits up to 10 seconds for an upload in flight, then stops.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down ota server: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

// handleUpdate streams one image into the staging directory.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.hash != nil {
		_, password, ok := r.BasicAuth()
		if !ok || !s.hash.verify(password) {
			s.emit(ctx, Event{Kind: EventError, Code: ErrorAuth, Err: ErrUnauthorized})
			w.Header().Set("WWW-Authenticate", `Basic realm="ota"`)
			writeError(w, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
	}

	target, err := ParseTarget(r.URL.Query().Get("target"))
	if err != nil {
		s.emit(ctx, Event{Kind: EventError, Code: ErrorBegin, Err: err})
		writeError(w, http.StatusBadRequest, err)
		return
	}

	wantMD5 := strings.ToLower(strings.TrimSpace(r.Header.Get(headerMD5)))
	if wantMD5 != "" {
		if b, decErr := hex.DecodeString(wantMD5); decErr != nil || len(b) != md5.Size {
			err = fmt.Errorf("%w: malformed %s header", ErrChecksumMismatch, headerMD5)
			s.emit(ctx, Event{Kind: EventError, Target: target, Code: ErrorBegin, Err: err})
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	total := r.ContentLength
	if total == 0 {
		err = ErrEmptyImage
		s.emit(ctx, Event{Kind: EventError, Target: target, Code: ErrorBegin, Err: err})
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if total > s.cfg.MaxImageSize {
		err = fmt.Errorf("%w: %d > %d bytes", ErrImageTooLarge, total, s.cfg.MaxImageSize)
		s.emit(ctx, Event{Kind: EventError, Target: target, Code: ErrorBegin, Err: err})
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	if !s.acquire(target, total) {
		s.emit(ctx, Event{Kind: EventError, Target: target, Code: ErrorBegin, Err: ErrBusy})
		writeError(w, http.StatusConflict, ErrBusy)
		return
	}

	image, received, err := s.receive(w, r, target, total, wantMD5)
	if err != nil {
		s.release(StateFailed, err)
		return
	}

	s.release(StateStaged, nil)
	s.emit(ctx, Event{Kind: EventEnd, Target: target, Received: received, Total: total, Image: image})
	writeJSON(w, http.StatusOK, s.Status())
}

// receive copies the body to a staging file and checks its checksum.
// It returns the staged path and the byte count. On error it has already
// answered the request and removed the file.
func (s *Server) receive(w http.ResponseWriter, r *http.Request, target Target, total int64, wantMD5 string) (string, int64, error) {
	ctx := r.Context()

	fail := func(status int, code ErrorCode, err error, path string) (string, int64, error) {
		if path != "" {
			_ = os.Remove(path) //nolint:errcheck // Best-effort cleanup of a partial image
		}
		s.emit(ctx, Event{Kind: EventError, Target: target, Code: code, Err: err})
		writeError(w, status, err)
		return "", 0, err
	}

	if err := os.MkdirAll(s.cfg.StagingDir, 0o750); err != nil {
		return fail(http.StatusInternalServerError, ErrorBegin, fmt.Errorf("creating staging dir: %w", err), "")
	}
	f, err := os.CreateTemp(s.cfg.StagingDir, string(target)+"-*.bin")
	if err != nil {
		return fail(http.StatusInternalServerError, ErrorBegin, fmt.Errorf("creating staging file: %w", err), "")
	}
	path := f.Name()

	s.emit(ctx, Event{Kind: EventStart, Target: target, Total: total})

	sum := md5.New() //nolint:gosec // G401: see import
	progress := &progressWriter{server: s, ctx: ctx, target: target, total: total}
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxImageSize)

	_, copyErr := io.Copy(io.MultiWriter(f, sum, progress), body)
	closeErr := f.Close()

	if copyErr != nil {
		var maxErr *http.MaxBytesError
		if errors.As(copyErr, &maxErr) {
			return fail(http.StatusRequestEntityTooLarge, ErrorReceive, fmt.Errorf("%w: %w", ErrImageTooLarge, copyErr), path)
		}
		return fail(http.StatusBadRequest, ErrorReceive, fmt.Errorf("receiving image: %w", copyErr), path)
	}
	if closeErr != nil {
		return fail(http.StatusInternalServerError, ErrorEnd, fmt.Errorf("writing staging file: %w", closeErr), path)
	}
	if total >= 0 && progress.received != total {
		return fail(http.StatusBadRequest, ErrorReceive, fmt.Errorf("short image: got %d of %d bytes", progress.received, total), path)
	}
	if progress.received == 0 {
		return fail(http.StatusBadRequest, ErrorReceive, ErrEmptyImage, path)
	}

	if wantMD5 != "" {
		if got := hex.EncodeToString(sum.Sum(nil)); got != wantMD5 {
			return fail(http.StatusBadRequest, ErrorEnd, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, wantMD5), path)
		}
	}

	return path, progress.received, nil
}

// acquire marks an upload as running. It fails if one already is.
func (s *Server) acquire(target Target, total int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || s.status.State == StateInstalling {
		return false
	}
	s.busy = true
	s.status = Status{State: StateReceiving, Target: target, Total: total}
	return true
}

func (s *Server) release(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.status.State = state
	if err != nil {
		s.status.Error = err.Error()
	}
}

// setState is called by the Updater while installing.
func (s *Server) setState(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = state
	s.status.Error = ""
	if err != nil {
		s.status.Error = err.Error()
	}
}

func (s *Server) addReceived(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Received += n
}

// emit queues an event for the Updater. Progress events are dropped when
// the queue is full; the others wait until there is room or the request ends.
func (s *Server) emit(ctx context.Context, ev Event) {
	if ev.Kind == EventProgress {
		select {
		case s.events <- ev:
		default:
		}
		return
	}
	select {
	case s.events <- ev:
	case <-ctx.Done():
		s.logger.Warn("ota event dropped", "kind", ev.Kind, "error", ctx.Err())
	}
}

// progressWriter counts bytes and emits a progress event every progressStep.
type progressWriter struct {
	server   *Server
	ctx      context.Context
	target   Target
	total    int64
	received int64
	reported int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n := len(b)
	p.received += int64(n)
	p.server.addReceived(int64(n))

	if p.received-p.reported >= progressStep || p.received == p.total {
		p.reported = p.received
		p.server.emit(p.ctx, Event{Kind: EventProgress, Target: p.target, Received: p.received, Total: p.total})
	}
	return n, nil
}

// errorBody is the JSON error response.
type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Status: status, Message: err.Error()})
}

// loggingMiddleware logs each request with method, path, status and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Info("ota request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"remote", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// recoveryMiddleware turns a handler panic into a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered in ota handler", "error", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// contentLength formats a byte count for logs, "unknown" when negative.
func contentLength(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return strconv.FormatInt(n, 10)
}

// Gray Logic Switch - network-connected appliance controller
//
// The switch joins the network, holds one MQTT session to the site broker,
// answers phrase commands on its command topics with state reports, and
// accepts firmware images over HTTP. Everything between the broker and the
// handlers runs on a single cooperative loop.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-switch/internal/command"
	"github.com/nerrad567/gray-logic-switch/internal/heartbeat"
	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-switch/internal/journal"
	"github.com/nerrad567/gray-logic-switch/internal/ota"
	"github.com/nerrad567/gray-logic-switch/internal/provision"
	"github.com/nerrad567/gray-logic-switch/internal/registry"
	"github.com/nerrad567/gray-logic-switch/internal/router"
	"github.com/nerrad567/gray-logic-switch/internal/scheduler"
	"github.com/nerrad567/gray-logic-switch/internal/session"
	"github.com/nerrad567/gray-logic-switch/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// exitRestart tells the supervisor a new image is installed.
	exitRestart = 3

	// generatedIDLength is the number of hex digits in a generated client id suffix.
	generatedIDLength = 8

	// journalPruneInterval is how often old journal entries are pruned.
	journalPruneInterval = time.Hour
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ota.ErrRestartRequired):
		fmt.Fprintf(os.Stderr, "Restart: %v\n", err)
		cancel()
		os.Exit(exitRestart) //nolint:gocritic // cancel called above
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}

// run wires the switch together and drives the scheduler loop.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, an ota.ErrRestartRequired wrap after an
//     update was installed, or the start-up failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Switch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	clientID := resolveClientID(cfg.Device)
	topics := mqtt.Topics{Category: cfg.Device.Category, ClientID: clientID}
	log = log.With("client_id", clientID)

	if err := joinNetwork(ctx, cfg, stationName(cfg.Network, topics), log.Component("provision")); err != nil {
		return err
	}

	// InfluxDB (optional)
	var metrics *influxdb.Client
	if cfg.InfluxDB.Enabled {
		metrics, err = influxdb.Connect(cfg.InfluxDB, clientID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := metrics.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		metrics.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// State journal (optional)
	var db *database.DB
	var jrnl *journal.Journal
	if cfg.Database.Enabled {
		var dbErr error
		db, dbErr = openJournal(ctx, cfg.Database)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		jrnl = journal.New(db.DB)
		jrnl.SetLogger(log.Component("journal"))
		log.Info("state journal ready", "path", cfg.Database.Path)
	}

	if err := healthCheck(ctx, db, metrics); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Command handlers
	reg, err := registry.New(registry.DefaultBindings(topics)...)
	if err != nil {
		return fmt.Errorf("building topic registry: %w", err)
	}
	actuator := command.NewLogActuator(log.Component("actuator"))
	bindings := reg.Bindings()
	handlers := make([]command.Handler, 0, len(bindings))
	for _, b := range bindings {
		h := command.New(b, actuator)
		h.SetLogger(log.Component("command"))
		handlers = append(handlers, h)
	}
	if jrnl != nil {
		n, restoreErr := jrnl.Restore(ctx, handlers...)
		if restoreErr != nil {
			log.Warn("restoring feature state failed", "error", restoreErr)
		}
		log.Info("feature state restored", "features", n, "state", command.Snapshot(handlers...))

		retention := cfg.GetRetention()
		pruned, pruneErr := jrnl.Prune(ctx, retention)
		if pruneErr != nil {
			log.Warn("pruning journal failed", "error", pruneErr)
		} else {
			log.Info("journal pruned", "deleted", pruned, "retention", retention)
		}

		retainCtx, stopRetain := context.WithCancel(ctx)
		retained := make(chan struct{})
		go func() {
			defer close(retained)
			jrnl.Retain(retainCtx, retention, journalPruneInterval)
		}()
		defer func() {
			stopRetain()
			<-retained
		}()
	}

	// Broker session
	transport, err := mqtt.NewTransport(
		mqtt.Identity{
			Host:     cfg.MQTT.Broker.Host,
			Port:     cfg.MQTT.Broker.Port,
			TLS:      cfg.MQTT.Broker.TLS,
			ClientID: clientID,
			Username: cfg.MQTT.Auth.Username,
			Password: cfg.MQTT.Auth.Password,
		},
		mqtt.Will{
			Topic:   topics.Will(),
			QoS:     byte(cfg.MQTT.Will.QoS), //nolint:gosec // Validated to 0..2 by config
			Retain:  cfg.MQTT.Will.Retain,
			Payload: orDefault(cfg.MQTT.Will.Payload, clientID+" has disconnected..."),
		},
		mqtt.Options{
			ConnectTimeout: cfg.GetConnectTimeout(),
			KeepAlive:      cfg.GetKeepAlive(),
			InboundBuffer:  cfg.MQTT.InboundBuffer,
		},
	)
	if err != nil {
		return fmt.Errorf("creating MQTT transport: %w", err)
	}

	initialDelay, maxDelay := cfg.GetReconnectDelays()
	opts := session.Options{
		QoS:     byte(cfg.MQTT.QoS), //nolint:gosec // Validated to 0..2 by config
		Backoff: session.Backoff{InitialDelay: initialDelay, MaxDelay: maxDelay},
		Logger:  log.Component("session"),
	}
	if cfg.MQTT.Online.Enabled {
		opts.Online = &session.Announcement{
			Topic:   topics.Debug(),
			Payload: orDefault(cfg.MQTT.Online.Payload, clientID+" connected"),
		}
	}
	if metrics != nil {
		opts.Metrics = metrics
	}
	manager := session.NewManager(transport, reg.CommandTopics(), opts)
	defer func() {
		log.Info("disconnecting from MQTT", "state", manager.State())
		manager.Close()
	}()

	rt, err := router.New(reg, manager, handlers...)
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}
	rt.SetLogger(log.Component("router"))
	rt.SetRecorder(stateRecorder{journal: jrnl, metrics: metrics})
	manager.SetDispatcher(rt)

	loopOpts := scheduler.Options{
		Idle:   cfg.GetIdle(),
		Logger: log.Component("scheduler"),
	}

	// Heartbeat (optional)
	if cfg.Heartbeat.Enabled {
		var hbMetrics heartbeat.Metrics
		if metrics != nil {
			hbMetrics = metrics
		}
		hb := heartbeat.New(cfg.GetHeartbeatInterval(), hbMetrics)
		hb.SetLogger(log.Component("heartbeat"))
		hb.Start(ctx)
		defer hb.Stop()
		loopOpts.Suspend = append(loopOpts.Suspend, hb)
	}

	// Update transport (optional)
	if cfg.OTA.Enabled {
		updater, stop, otaErr := startOTA(cfg, topics, log.Component("ota"))
		if otaErr != nil {
			return otaErr
		}
		defer stop()
		loopOpts.Updater = updater
	} else {
		log.Info("update server disabled")
	}

	log.Info("initialisation complete, entering scheduler loop",
		"broker", cfg.Broker(),
		"topics", reg.CommandTopics(),
	)

	err = scheduler.New(manager, loopOpts).Run(ctx)
	if errors.Is(err, ota.ErrRestartRequired) {
		log.Info("update installed, restarting", "reason", err)
		return err
	}
	if err != nil {
		return fmt.Errorf("scheduler loop: %w", err)
	}

	log.Info("Gray Logic Switch stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_SWITCH_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_SWITCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// resolveClientID returns the configured client id, or generates
// "<category>-<8 hex digits>" when it is empty.
func resolveClientID(dev config.DeviceConfig) string {
	if dev.ClientID != "" {
		return dev.ClientID
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:generatedIDLength]
	return dev.Category + "-" + suffix
}

// stationName returns the configured station name, or "<category>-<client_id>".
func stationName(network config.NetworkConfig, topics mqtt.Topics) string {
	return orDefault(network.StationName, topics.Category+"-"+topics.ClientID)
}

// joinNetwork blocks until credentials are available, then joins.
func joinNetwork(ctx context.Context, cfg *config.Config, station string, log *logging.Logger) error {
	provisioner := provision.NewFileProvisioner(cfg.Network.CredentialsFile, cfg.GetPollInterval())
	provisioner.SetLogger(log)

	creds, err := provisioner.ObtainCredentials(ctx, station)
	if err != nil {
		return fmt.Errorf("obtaining network credentials: %w", err)
	}

	joiner, err := provision.NewJoiner(cfg.Network.Join, log)
	if err != nil {
		return err
	}
	if err := joiner.Join(ctx, creds); err != nil {
		return fmt.Errorf("joining network: %w", err)
	}
	return nil
}

// healthCheck verifies the optional stores opened at start-up.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Journal database (may be nil if disabled)
//   - influxClient: InfluxDB client (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// hashPassword reads a password from the first line of in and writes its
// argon2id hash, in the form ota.password_hash expects, to out.
func hashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := ota.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

// openJournal opens and migrates the journal database.
func openJournal(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// startOTA starts the update server and, if enabled, its mDNS record.
// The returned stop function shuts both down.
func startOTA(cfg *config.Config, topics mqtt.Topics, log *logging.Logger) (*ota.Updater, func(), error) {
	server, err := ota.NewServer(ota.Config{
		Listen:       cfg.OTA.Listen,
		PasswordHash: cfg.OTA.PasswordHash,
		StagingDir:   cfg.OTA.StagingDir,
		MaxImageSize: cfg.OTA.MaxImageSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating update server: %w", err)
	}
	server.SetLogger(log)
	if err := server.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting update server: %w", err)
	}
	log.Info("update server listening", "port", server.Port(), "auth", server.AuthRequired())

	var advertiser *ota.Advertiser
	if cfg.OTA.MDNS {
		hostname := orDefault(cfg.OTA.Hostname, topics.Category+"-"+topics.ClientID)
		advertiser, err = ota.Advertise(hostname, server.Port(), server.AuthRequired())
		if err != nil {
			log.Warn("mDNS advertisement failed", "error", err)
		} else {
			log.Info("advertising update service", "hostname", hostname, "service", ota.ServiceType)
		}
	}

	updater := ota.NewUpdater(server, ota.FileInstaller{
		FirmwarePath:   cfg.OTA.FirmwarePath,
		FilesystemPath: cfg.OTA.FilesystemPath,
	})
	updater.SetLogger(log)

	stop := func() {
		if advertiser != nil {
			advertiser.Shutdown()
		}
		log.Info("stopping update server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping update server", "error", closeErr)
		}
	}
	return updater, stop, nil
}

// stateRecorder sends each report to the journal and to InfluxDB.
// Either may be nil.
type stateRecorder struct {
	journal *journal.Journal
	metrics *influxdb.Client
}

func (r stateRecorder) Record(ctx context.Context, report command.Report, published bool) error {
	if r.metrics != nil {
		r.metrics.WriteState(report.Feature, report.Value)
	}
	if r.journal == nil {
		return nil
	}
	return r.journal.Record(ctx, report, published)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// notes is the command-line shell of the notes store.
//
// It opens the SQLite database named in the configuration (creating it
// with the current schema when missing), applies pending migrations and
// runs one subcommand against it. Writes are announced on MQTT and query
// timings are recorded in InfluxDB when those integrations are enabled.
//
// Usage:
//
//	notes <command> [arguments]
//
// Run "notes help" for the command list.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/pnotes/notes-core/migrations"

	"github.com/pnotes/notes-core/internal/infrastructure/config"
	"github.com/pnotes/notes-core/internal/infrastructure/influxdb"
	"github.com/pnotes/notes-core/internal/infrastructure/logging"
	"github.com/pnotes/notes-core/internal/infrastructure/mqtt"
	"github.com/pnotes/notes-core/internal/notes"
	"github.com/pnotes/notes-core/internal/sqlite"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when NOTES_CONFIG is unset.
	defaultConfigPath = "configs/config.yaml"

	// configEnv names the environment variable holding the config path.
	configEnv = "NOTES_CONFIG"
)

func main() {
	// Cancel on Ctrl+C or SIGTERM so watch and long queries stop cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command and its arguments (os.Args without the program name)
//   - out: Destination for command output
//
// Returns:
//   - error: nil on success, or error describing failure
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errNoCommand
	}
	if args[0] == "help" {
		printUsage(out)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()

	configPath := getConfigPath()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Debug("starting notes",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	// Connect to InfluxDB (optional)
	var telemetry *influxdb.Telemetry
	if cfg.InfluxDB.Enabled {
		telemetry, err = influxdb.Connect(ctx, cfg.InfluxDB, influxdb.OnWriteError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		}))
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := telemetry.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Debug("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Open database
	dbOpts := []sqlite.Option{
		sqlite.WithLogger(log),
		sqlite.WithBusyTimeout(cfg.GetBusyTimeout()),
	}
	if telemetry != nil {
		dbOpts = append(dbOpts, sqlite.WithObserver(&queryObserver{telemetry: telemetry}))
	}
	db := sqlite.New(dbOpts...)
	if err := openStore(ctx, db, cfg.Database, log); err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	// Connect to the MQTT change feed (optional)
	var feed *mqtt.Feed
	if cfg.MQTT.Enabled {
		feed, err = mqtt.Connect(cfg.MQTT,
			mqtt.WithLogger(log),
			mqtt.OnConnect(func(reconnect bool) {
				if reconnect {
					log.Info("MQTT change feed reconnected", "client_id", cfg.MQTT.Broker.ClientID)
				}
			}),
			mqtt.OnDisconnect(func(err error) {
				log.Warn("MQTT disconnected", "error", err)
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			if closeErr := feed.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Debug("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	repoOpts := []notes.Option{notes.WithLogger(log)}
	if feed != nil || telemetry != nil {
		repoOpts = append(repoOpts, notes.WithPublisher(&changePublisher{feed: feed, telemetry: telemetry}))
	}

	a := &app{
		db:         db,
		categories: notes.NewCategoryRepository(db, repoOpts...),
		notes:      notes.NewNoteRepository(db, repoOpts...),
		feed:       feed,
		out:        out,
		log:        log,
	}
	if err := a.execute(ctx, args); err != nil {
		return err
	}

	if telemetry != nil {
		a.recordStoreSize(ctx, telemetry)
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NOTES_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads path, falling back to the built-in defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return config.Load(path)
}

// openStore opens the configured database, creating it with the current
// schema when the file does not exist yet. Pending migrations are applied
// to writable databases.
func openStore(ctx context.Context, db *sqlite.Database, cfg config.DatabaseConfig, log *logging.Logger) error {
	if cfg.Path == sqlite.InMemory {
		if err := db.Create(ctx, cfg.Path, notes.InitSchema, false); err != nil {
			return fmt.Errorf("creating database: %w", err)
		}
		return nil
	}

	err := db.Open(ctx, cfg.Path, cfg.ReadOnly)
	switch {
	case err == nil:
		log.Debug("database opened", "path", cfg.Path, "read_only", cfg.ReadOnly)
	case errors.Is(err, sqlite.ErrNotExist) && !cfg.ReadOnly:
		if err := db.Create(ctx, cfg.Path, notes.InitSchema, false); err != nil {
			return fmt.Errorf("creating database: %w", err)
		}
		log.Info("database created", "path", cfg.Path)
		return nil
	default:
		return fmt.Errorf("opening database: %w", err)
	}

	if cfg.ReadOnly {
		return nil
	}
	if err := notes.Migrate(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// changePublisher fans change events out to the MQTT change feed and the
// InfluxDB change counter. Either may be nil.
type changePublisher struct {
	feed      *mqtt.Feed
	telemetry *influxdb.Telemetry
}

// PublishChange implements notes.Publisher.
func (p *changePublisher) PublishChange(_ context.Context, e notes.ChangeEvent) error {
	// A nil Telemetry drops the point.
	p.telemetry.RecordChange(string(e.Entity), string(e.Action))
	if p.feed == nil {
		return nil
	}
	return p.feed.Announce(string(e.Entity), string(e.Action), e)
}

// queryObserver adapts InfluxDB telemetry to sqlite.Observer.
type queryObserver struct {
	telemetry *influxdb.Telemetry
}

// ObserveQuery implements sqlite.Observer.
func (o *queryObserver) ObserveQuery(e sqlite.QueryEvent) {
	o.telemetry.RecordQuery(e.Verb, e.Duration, e.Rows, e.Err != nil)
}

package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/pnotes/notes-core/internal/infrastructure/config"
)

const (
	pingTimeout = 5 * time.Second

	defaultBatchSize    = 100
	defaultFlushSeconds = 10
)

// Option configures Telemetry before it starts.
type Option func(*Telemetry)

// OnWriteError registers fn for batches the server rejected. fn runs on
// the telemetry goroutine.
func OnWriteError(fn func(err error)) Option {
	return func(t *Telemetry) { t.onError = fn }
}

// Telemetry records how the notes store is used: query timings, change
// counts and store size. Points are batched and written in the
// background, so recording never blocks a store operation.
//
// A nil or closed Telemetry drops every point, which lets callers record
// unconditionally. All methods are safe for concurrent use.
type Telemetry struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	onError  func(err error)
	closed   atomic.Bool
}

// Connect pings the server in cfg and starts the batching writer.
//
// Parameters:
//   - ctx: Bounds the initial ping
//   - cfg: InfluxDB section of the configuration
//   - opts: Write error hook
//
// Returns:
//   - *Telemetry: Ready to record
//   - error: ErrTelemetryDisabled, ErrServerUnreachable or ErrUnhealthy
func Connect(ctx context.Context, cfg config.InfluxDBConfig, opts ...Option) (*Telemetry, error) {
	if !cfg.Enabled {
		return nil, ErrTelemetryDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	t := &Telemetry{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.reportWriteErrors(t.writeAPI.Errors())
	return t, nil
}

// clientOptions applies the batch settings, falling back to the defaults
// for values that are not positive.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushSeconds
	}
	// #nosec G115 -- both are positive
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush) * uint(time.Second/time.Millisecond))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerUnreachable, err)
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

// reportWriteErrors drains the write API's error channel until Close.
func (t *Telemetry) reportWriteErrors(errs <-chan error) {
	for err := range errs {
		if t.onError != nil {
			t.onError(err)
		}
	}
}

// Active reports whether points are still being recorded.
func (t *Telemetry) Active() bool {
	return t != nil && t.client != nil && !t.closed.Load()
}

// HealthCheck pings the server.
func (t *Telemetry) HealthCheck(ctx context.Context) error {
	if !t.Active() {
		return ErrTelemetryClosed
	}
	if err := ping(ctx, t.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// Flush writes buffered points now. It blocks until they are sent.
func (t *Telemetry) Flush() {
	if t.Active() {
		t.writeAPI.Flush()
	}
}

// Close flushes buffered points and releases the client. Later calls
// are no-ops.
func (t *Telemetry) Close() error {
	if t == nil || t.client == nil || t.closed.Swap(true) {
		return nil
	}
	t.writeAPI.Flush()
	t.client.Close()
	return nil
}

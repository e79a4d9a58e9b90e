package influxdb

import "errors"

// Telemetry errors. Writes never return errors; a failed batch is handed
// to the OnWriteError hook instead.
var (
	// ErrTelemetryDisabled is returned by Connect when influxdb.enabled is false.
	ErrTelemetryDisabled = errors.New("influxdb: telemetry disabled in configuration")

	// ErrServerUnreachable is returned when the server does not answer a ping.
	ErrServerUnreachable = errors.New("influxdb: server unreachable")

	// ErrUnhealthy is returned when the server answers but reports itself unhealthy.
	ErrUnhealthy = errors.New("influxdb: server reports unhealthy")

	// ErrTelemetryClosed is returned by HealthCheck after Close.
	ErrTelemetryClosed = errors.New("influxdb: telemetry closed")
)

// Package influxdb records notes store telemetry in InfluxDB v2.
//
// Three measurements are written:
//   - sqlite_queries: one point per database verb (verb, status, duration, rows)
//   - notes_changes: one point per category or note change
//   - notes_store: category and note counts per database file
//
// Points are batched by the influxdb-client-go write API and sent in the
// background. Recording never fails; rejected batches go to the
// OnWriteError hook. Telemetry is optional, and a nil *Telemetry drops
// every point.
//
// # Usage
//
//	tel, err := influxdb.Connect(ctx, cfg.InfluxDB,
//	    influxdb.OnWriteError(func(err error) { log.Error("InfluxDB write error", "error", err) }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer tel.Close()
//
//	tel.RecordQuery("select", time.Millisecond, 3, false)
package influxdb

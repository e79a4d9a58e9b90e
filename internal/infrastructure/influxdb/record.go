package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementQueries = "sqlite_queries"
	measurementChanges = "notes_changes"
	measurementStore   = "notes_store"
)

// RecordQuery records one executed database verb.
//
// Parameters:
//   - verb: The facade verb (exec, insert, update, select, script)
//   - duration: Wall time spent in the verb, including statement finalisation
//   - rows: Rows returned (select) or affected (others)
//   - failed: Whether the verb returned an error
func (t *Telemetry) RecordQuery(verb string, duration time.Duration, rows int, failed bool) {
	if t.Active() {
		t.writeAPI.WritePoint(queryPoint(verb, duration, rows, failed, time.Now()))
	}
}

// RecordChange counts one change to a category or note.
func (t *Telemetry) RecordChange(entity, action string) {
	if t.Active() {
		t.writeAPI.WritePoint(changePoint(entity, action, time.Now()))
	}
}

// RecordStoreSize records the category and note counts of the database
// at path. The path is a tag, so several stores can share a bucket.
func (t *Telemetry) RecordStoreSize(path string, categories, notes int) {
	if t.Active() {
		t.writeAPI.WritePoint(storePoint(path, categories, notes, time.Now()))
	}
}

func queryPoint(verb string, duration time.Duration, rows int, failed bool, at time.Time) *write.Point {
	status := "ok"
	if failed {
		status = "error"
	}
	return write.NewPoint(
		measurementQueries,
		map[string]string{
			"verb":   verb,
			"status": status,
		},
		map[string]interface{}{
			"duration_ms": float64(duration) / float64(time.Millisecond),
			"rows":        int64(rows),
		},
		at,
	)
}

func changePoint(entity, action string, at time.Time) *write.Point {
	return write.NewPoint(
		measurementChanges,
		map[string]string{
			"entity": entity,
			"action": action,
		},
		map[string]interface{}{
			"count": int64(1),
		},
		at,
	)
}

func storePoint(path string, categories, notes int, at time.Time) *write.Point {
	return write.NewPoint(
		measurementStore,
		map[string]string{
			"path": path,
		},
		map[string]interface{}{
			"categories": int64(categories),
			"notes":      int64(notes),
		},
		at,
	)
}

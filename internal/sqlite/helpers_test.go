package sqlite

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// logBuffer is a goroutine-safe sink for a text slog handler.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// errorCount returns how many diagnostics were reported.
func (b *logBuffer) errorCount() int {
	return strings.Count(b.String(), `msg="SQLite error"`)
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

const createPeople = "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"

// newMemoryDB returns an in-memory database holding table t.
func newMemoryDB(t *testing.T, opts ...Option) (*Database, *logBuffer) {
	t.Helper()

	log, buf := newTestLogger()
	db := New(append([]Option{WithLogger(log)}, opts...)...)

	err := db.Create(context.Background(), InMemory, func(ctx context.Context, db *Database) error {
		return db.Exec(ctx, createPeople)
	}, false)
	if err != nil {
		t.Fatalf("Create(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return db, buf
}

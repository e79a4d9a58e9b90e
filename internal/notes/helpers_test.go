package notes_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/pnotes/notes-core/internal/notes"
	"github.com/pnotes/notes-core/internal/sqlite"
	_ "github.com/pnotes/notes-core/migrations"
)

// newTestDB creates an in-memory database with the full schema.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()

	db := sqlite.New(sqlite.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := db.Create(context.Background(), sqlite.InMemory, notes.InitSchema, false); err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	return db
}

// recordingPublisher collects published events and optionally fails.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notes.ChangeEvent
	fail   bool
}

func (p *recordingPublisher) PublishChange(_ context.Context, e notes.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	if p.fail {
		return errors.New("broker unavailable")
	}
	return nil
}

func (p *recordingPublisher) last() notes.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return notes.ChangeEvent{}
	}
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/pnotes/notes-core/internal/sqlite"
)

// RootID is the parent id of top-level categories.
const RootID int64 = 0

// Category is one node of the category tree.
type Category struct {
	ID      int64     `json:"id"`
	PID     int64     `json:"pid"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// String renders the category for logs and the command line.
func (c Category) String() string {
	return fmt.Sprintf("id:%d, pid:%d, name:%s, created:%s, updated:%s",
		c.ID, c.PID, c.Name, formatStamp(c.Created), formatStamp(c.Updated))
}

// Note is a titled text stored in a category.
type Note struct {
	ID          int64     `json:"id"`
	PID         int64     `json:"pid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// Node is a category together with its subcategories.
type Node struct {
	Category
	Children []*Node `json:"children,omitempty"`
}

// Entity names the kind of record a ChangeEvent refers to.
type Entity string

// Entities.
const (
	EntityCategory Entity = "category"
	EntityNote     Entity = "note"
)

// Action names what happened to the record.
type Action string

// Actions.
const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionMoved   Action = "moved"
	ActionDeleted Action = "deleted"
)

// ChangeEvent describes one successful write.
type ChangeEvent struct {
	Entity Entity    `json:"entity"`
	Action Action    `json:"action"`
	ID     int64     `json:"id"`
	PID    int64     `json:"pid"`
	At     time.Time `json:"at"`
}

// Publisher delivers change events to interested parties.
type Publisher interface {
	PublishChange(ctx context.Context, e ChangeEvent) error
}

// Store is the subset of *sqlite.Database the repositories use.
type Store interface {
	Insert(ctx context.Context, text string, args ...any) (int64, error)
	Update(ctx context.Context, text string, args ...any) error
	Select(ctx context.Context, text string, args ...any) (*sqlite.Result, error)
	SelectQuery(ctx context.Context, q sqlite.Query) (*sqlite.Result, error)
}

// Logger is the logging surface the repositories need.
type Logger interface {
	Warn(msg string, args ...any)
}

// categoryFromRow builds a Category from the columns present in row.
// Missing columns leave their field at the zero value.
func categoryFromRow(row *sqlite.Row) Category {
	return Category{
		ID:      row.Int64("id"),
		PID:     row.Int64("pid"),
		Name:    row.Str("name"),
		Created: parseStamp(row.Str("created")),
		Updated: parseStamp(row.Str("updated")),
	}
}

// noteFromRow builds a Note from the columns present in row.
func noteFromRow(row *sqlite.Row) Note {
	return Note{
		ID:          row.Int64("id"),
		PID:         row.Int64("pid"),
		Title:       row.Str("title"),
		Description: row.Str("description"),
		Content:     row.Str("content"),
		Created:     parseStamp(row.Str("created")),
		Updated:     parseStamp(row.Str("updated")),
	}
}

// parseStamp reads a timestamp written by the schema triggers, which
// store local time without a zone. Unparseable text yields the zero time.
func parseStamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(sqlite.DateTimeFormat, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateTime)
}

// count runs a COUNT(*) AS n query and returns n.
func count(ctx context.Context, db Store, text string, args ...any) (int64, error) {
	result, err := db.Select(ctx, text, args...)
	if err != nil {
		return 0, err
	}
	row, ok := result.First()
	if !ok {
		return 0, nil
	}
	return row.Int64("n"), nil
}

package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pnotes/notes-core/internal/sqlite"
)

// NoteRepository reads and writes the note table.
type NoteRepository struct {
	db   Store
	opts repoOptions
}

// NewNoteRepository creates a note repository on db.
func NewNoteRepository(db Store, opts ...Option) *NoteRepository {
	return &NoteRepository{db: db, opts: buildOptions(opts)}
}

// Save inserts n when it has no id yet and updates it otherwise.
func (r *NoteRepository) Save(ctx context.Context, n *Note) error {
	if n.ID == 0 {
		return r.Insert(ctx, n)
	}
	return r.Update(ctx, n)
}

// Insert stores n as a new note and sets n.ID. Within one category the
// combination of title and description must be unique.
func (r *NoteRepository) Insert(ctx context.Context, n *Note) error {
	if strings.TrimSpace(n.Title) == "" {
		return ErrInvalidName
	}

	const query = `INSERT INTO note (pid, title, description, content) VALUES (?,?,?,?)`
	id, err := r.db.Insert(ctx, query, n.PID, n.Title, n.Description, n.Content)
	if err != nil {
		if errors.Is(err, sqlite.ErrConstraint) {
			return fmt.Errorf("note %q: %w", n.Title, ErrExists)
		}
		return fmt.Errorf("inserting note %q: %w", n.Title, err)
	}
	n.ID = id

	r.opts.publish(ctx, EntityNote, ActionCreated, n.ID, n.PID)
	return nil
}

// Update writes every field of n back to its row.
func (r *NoteRepository) Update(ctx context.Context, n *Note) error {
	if strings.TrimSpace(n.Title) == "" {
		return ErrInvalidName
	}
	previous, err := r.WithID(ctx, n.ID)
	if err != nil {
		return err
	}

	const query = `UPDATE note SET pid=?, title=?, description=?, content=? WHERE id=?`
	if err := r.db.Update(ctx, query, n.PID, n.Title, n.Description, n.Content, n.ID); err != nil {
		if errors.Is(err, sqlite.ErrConstraint) {
			return fmt.Errorf("note %q: %w", n.Title, ErrExists)
		}
		return fmt.Errorf("updating note %d: %w", n.ID, err)
	}

	action := ActionUpdated
	if previous.PID != n.PID {
		action = ActionMoved
	}
	r.opts.publish(ctx, EntityNote, action, n.ID, n.PID)
	return nil
}

// Move puts note id into category pid. The destination must not already
// hold a note with the same title.
func (r *NoteRepository) Move(ctx context.Context, id, pid int64) error {
	note, err := r.WithID(ctx, id)
	if err != nil {
		return err
	}
	if note.PID == pid {
		return nil
	}

	taken, err := r.ContainsTitle(ctx, pid, note.Title)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("note %q: %w", note.Title, ErrExists)
	}

	note.PID = pid
	return r.Update(ctx, note)
}

// Delete removes note id.
func (r *NoteRepository) Delete(ctx context.Context, id int64) error {
	note, err := r.WithID(ctx, id)
	if err != nil {
		return err
	}

	const query = `DELETE FROM note WHERE id=?`
	if err := r.db.Update(ctx, query, id); err != nil {
		return fmt.Errorf("deleting note %d: %w", id, err)
	}

	r.opts.publish(ctx, EntityNote, ActionDeleted, id, note.PID)
	return nil
}

// WithID returns the note with the given id, or ErrNoteNotFound.
func (r *NoteRepository) WithID(ctx context.Context, id int64) (*Note, error) {
	const query = `SELECT * FROM note WHERE id=?`
	result, err := r.db.Select(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("querying note %d: %w", id, err)
	}
	row, ok := result.First()
	if !ok {
		return nil, ErrNoteNotFound
	}
	note := noteFromRow(row)
	return &note, nil
}

// Notes returns the notes with the given ids in the order of ids.
// Ids that do not exist are skipped.
func (r *NoteRepository) Notes(ctx context.Context, ids []int64) ([]Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := sqlite.NewQuery(`SELECT * FROM note WHERE id IN (` + placeholders + `)`)
	for _, id := range ids {
		q = q.Bind(id)
	}

	result, err := r.db.SelectQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}

	byID := make(map[int64]Note, result.Len())
	for _, row := range result.All() {
		note := noteFromRow(row)
		byID[note.ID] = note
	}

	notes := make([]Note, 0, len(byID))
	for _, id := range ids {
		if note, ok := byID[id]; ok {
			notes = append(notes, note)
			delete(byID, id)
		}
	}
	return notes, nil
}

// ForCategory returns the notes of category pid ordered by title.
func (r *NoteRepository) ForCategory(ctx context.Context, pid int64) ([]Note, error) {
	const query = `SELECT * FROM note WHERE pid=? ORDER BY title, description`
	result, err := r.db.Select(ctx, query, pid)
	if err != nil {
		return nil, fmt.Errorf("querying notes of category %d: %w", pid, err)
	}

	notes := make([]Note, 0, result.Len())
	for _, row := range result.All() {
		notes = append(notes, noteFromRow(row))
	}
	return notes, nil
}

// Exists reports whether category pid holds a note with this title and
// description.
func (r *NoteRepository) Exists(ctx context.Context, pid int64, title, description string) (bool, error) {
	const query = `SELECT COUNT(*) AS n FROM note WHERE pid=? AND title=? AND description=?`
	n, err := count(ctx, r.db, query, pid, title, description)
	if err != nil {
		return false, fmt.Errorf("checking note title: %w", err)
	}
	return n > 0, nil
}

// ContainsTitle reports whether category pid holds a note with this
// title, whatever its description.
func (r *NoteRepository) ContainsTitle(ctx context.Context, pid int64, title string) (bool, error) {
	const query = `SELECT COUNT(*) AS n FROM note WHERE pid=? AND title=?`
	n, err := count(ctx, r.db, query, pid, title)
	if err != nil {
		return false, fmt.Errorf("checking note title: %w", err)
	}
	return n > 0, nil
}

// CountInCategory returns the number of notes in category pid.
func (r *NoteRepository) CountInCategory(ctx context.Context, pid int64) (int64, error) {
	const query = `SELECT COUNT(*) AS n FROM note WHERE pid=?`
	n, err := count(ctx, r.db, query, pid)
	if err != nil {
		return 0, fmt.Errorf("counting notes of category %d: %w", pid, err)
	}
	return n, nil
}

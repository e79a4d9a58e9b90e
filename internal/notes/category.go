package notes

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pnotes/notes-core/internal/sqlite"
)

// maxDepth bounds ChainFor so a corrupted pid cycle cannot loop forever.
const maxDepth = 1024

// CategoryRepository reads and writes the category table.
type CategoryRepository struct {
	db   Store
	opts repoOptions
}

// NewCategoryRepository creates a category repository on db.
func NewCategoryRepository(db Store, opts ...Option) *CategoryRepository {
	return &CategoryRepository{db: db, opts: buildOptions(opts)}
}

// Insert adds a category named name under pid and returns its id.
// Two direct children of the same parent cannot share a name
// (compared case-insensitively); that case returns ErrExists.
func (r *CategoryRepository) Insert(ctx context.Context, pid int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return sqlite.InvalidRowID, ErrInvalidName
	}

	exists, err := r.Exists(ctx, pid, name)
	if err != nil {
		return sqlite.InvalidRowID, err
	}
	if exists {
		return sqlite.InvalidRowID, fmt.Errorf("category %q: %w", name, ErrExists)
	}

	const query = `INSERT INTO category (pid, name) VALUES (?,?)`
	id, err := r.db.Insert(ctx, query, pid, name)
	if err != nil {
		if errors.Is(err, sqlite.ErrConstraint) {
			return sqlite.InvalidRowID, fmt.Errorf("category %q: %w", name, ErrExists)
		}
		return sqlite.InvalidRowID, fmt.Errorf("inserting category %q: %w", name, err)
	}

	r.opts.publish(ctx, EntityCategory, ActionCreated, id, pid)
	return id, nil
}

// Rename changes the name of category id.
func (r *CategoryRepository) Rename(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}

	category, err := r.WithID(ctx, id)
	if err != nil {
		return err
	}

	const dupQuery = `SELECT COUNT(*) AS n FROM category WHERE pid=? AND name=? AND id<>?`
	n, err := count(ctx, r.db, dupQuery, category.PID, name, id)
	if err != nil {
		return fmt.Errorf("checking category name: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("category %q: %w", name, ErrExists)
	}

	const query = `UPDATE category SET name=? WHERE id=?`
	if err := r.db.Update(ctx, query, name, id); err != nil {
		if errors.Is(err, sqlite.ErrConstraint) {
			return fmt.Errorf("category %q: %w", name, ErrExists)
		}
		return fmt.Errorf("renaming category %d: %w", id, err)
	}

	r.opts.publish(ctx, EntityCategory, ActionUpdated, id, category.PID)
	return nil
}

// Delete removes category id. A category that still has subcategories
// is refused with ErrHasSubcategories.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	category, err := r.WithID(ctx, id)
	if err != nil {
		return err
	}

	hasChildren, err := r.HasSubcategories(ctx, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return ErrHasSubcategories
	}

	const query = `DELETE FROM category WHERE id=?`
	if err := r.db.Update(ctx, query, id); err != nil {
		return fmt.Errorf("deleting category %d: %w", id, err)
	}

	r.opts.publish(ctx, EntityCategory, ActionDeleted, id, category.PID)
	return nil
}

// WithID returns the category with the given id, or ErrCategoryNotFound.
func (r *CategoryRepository) WithID(ctx context.Context, id int64) (*Category, error) {
	const query = `SELECT * FROM category WHERE id=?`
	result, err := r.db.Select(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("querying category %d: %w", id, err)
	}
	row, ok := result.First()
	if !ok {
		return nil, ErrCategoryNotFound
	}
	category := categoryFromRow(row)
	return &category, nil
}

// NameWithID returns only the name of category id.
func (r *CategoryRepository) NameWithID(ctx context.Context, id int64) (string, error) {
	const query = `SELECT name FROM category WHERE id=?`
	result, err := r.db.Select(ctx, query, id)
	if err != nil {
		return "", fmt.Errorf("querying category %d: %w", id, err)
	}
	row, ok := result.First()
	if !ok {
		return "", ErrCategoryNotFound
	}
	return row.Str("name"), nil
}

// All returns every category ordered by parent then name.
func (r *CategoryRepository) All(ctx context.Context) ([]Category, error) {
	const query = `SELECT * FROM category ORDER BY pid, name`
	return r.queryCategories(ctx, query)
}

// Children returns the direct subcategories of pid ordered by name.
func (r *CategoryRepository) Children(ctx context.Context, pid int64) ([]Category, error) {
	const query = `SELECT * FROM category WHERE pid=? ORDER BY name`
	return r.queryCategories(ctx, query, pid)
}

// HasSubcategories reports whether any category has id as its parent.
func (r *CategoryRepository) HasSubcategories(ctx context.Context, id int64) (bool, error) {
	const query = `SELECT COUNT(*) AS n FROM category WHERE pid=?`
	n, err := count(ctx, r.db, query, id)
	if err != nil {
		return false, fmt.Errorf("counting subcategories of %d: %w", id, err)
	}
	return n > 0, nil
}

// Exists reports whether pid already has a direct child called name.
func (r *CategoryRepository) Exists(ctx context.Context, pid int64, name string) (bool, error) {
	const query = `SELECT COUNT(*) AS n FROM category WHERE pid=? AND name=?`
	n, err := count(ctx, r.db, query, pid, name)
	if err != nil {
		return false, fmt.Errorf("checking category name: %w", err)
	}
	return n > 0, nil
}

// ChainFor returns the ids and names on the path from the top level down
// to category id, both ordered root first. The walk stops at pid 0 or at
// a parent that no longer exists.
func (r *CategoryRepository) ChainFor(ctx context.Context, id int64) (ids []int64, names []string, err error) {
	current := id
	for range maxDepth {
		category, err := r.WithID(ctx, current)
		if errors.Is(err, ErrCategoryNotFound) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, category.ID)
		names = append(names, category.Name)
		current = category.PID
		if current == RootID {
			break
		}
	}
	if len(ids) == 0 {
		return nil, nil, ErrCategoryNotFound
	}

	slices.Reverse(ids)
	slices.Reverse(names)
	return ids, names, nil
}

// NamesChainFor returns only the names of ChainFor.
func (r *CategoryRepository) NamesChainFor(ctx context.Context, id int64) ([]string, error) {
	_, names, err := r.ChainFor(ctx, id)
	return names, err
}

// Tree returns the whole category tree. Top-level nodes and every
// node's children are ordered by name.
func (r *CategoryRepository) Tree(ctx context.Context) ([]*Node, error) {
	categories, err := r.All(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make(map[int64]*Node, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &Node{Category: c}
	}

	// All is ordered by pid then name, so appending keeps children sorted.
	var roots []*Node
	for _, c := range categories {
		node := nodes[c.ID]
		if parent, ok := nodes[c.PID]; ok && c.PID != RootID {
			parent.Children = append(parent.Children, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots, nil
}

func (r *CategoryRepository) queryCategories(ctx context.Context, query string, args ...any) ([]Category, error) {
	result, err := r.db.Select(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}

	categories := make([]Category, 0, result.Len())
	for _, row := range result.All() {
		categories = append(categories, categoryFromRow(row))
	}
	return categories, nil
}

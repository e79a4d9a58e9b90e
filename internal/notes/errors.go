package notes

import "errors"

var (
	// ErrCategoryNotFound is returned when a category ID does not exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrNoteNotFound is returned when a note ID does not exist.
	ErrNoteNotFound = errors.New("note not found")

	// ErrHasSubcategories is returned when deleting a category that still has children.
	ErrHasSubcategories = errors.New("category has subcategories: delete them first")

	// ErrExists is returned when a category name or note title is already
	// taken within the same parent.
	ErrExists = errors.New("already exists in this category")

	// ErrInvalidName is returned for an empty category name or note title.
	ErrInvalidName = errors.New("name must not be empty")
)

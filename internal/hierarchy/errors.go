package hierarchy

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName     = errors.New("name must not be empty")
	ErrNegativeSeats = errors.New("seats must not be negative")
	ErrNegativePrice = errors.New("price must not be negative")
)

// DuplicateNameError reports a case-insensitive name collision within one
// sibling set.
type DuplicateNameError struct {
	Name string
}

func (e DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate name: %q", e.Name)
}

// PathNotFoundError reports an index path that does not resolve to a node.
// A caller holding such a path is out of sync with the tree; the operation
// is aborted and the tree is left untouched.
type PathNotFoundError struct {
	Path Path
}

func (e PathNotFoundError) Error() string {
	return fmt.Sprintf("path not found: %s", e.Path)
}

// ValidationError carries the complete violation set of a tree that failed
// pre-save validation. The save is refused as a whole; no partial persistence.
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hierarchy validation failed: %d violation(s)", len(e.Violations))
}

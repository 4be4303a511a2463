package catalog

import (
	"errors"
	"fmt"
)

// ErrNoModels indicates the models directory contains no artifacts
var ErrNoModels = errors.New("no model artifacts found")

// DirNotFoundError indicates the models directory does not exist
type DirNotFoundError struct {
	Dir string
}

func (e *DirNotFoundError) Error() string {
	return fmt.Sprintf("models directory not found: %s", e.Dir)
}

// InvalidSelectionError indicates the operator's selection could not be
// mapped to an available artifact
type InvalidSelectionError struct {
	Input string
	Count int
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid selection %q: expected a number between 1 and %d", e.Input, e.Count)
}

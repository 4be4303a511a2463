package switcher

import "fmt"

// TargetNotFoundError indicates the requested model file is missing
type TargetNotFoundError struct {
	Name string
	Dir  string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("model %s not found in %s", e.Name, e.Dir)
}

// RollbackError indicates the rollback after a health-check timeout
// itself failed. It is reported, never retried.
type RollbackError struct {
	Timeout error // the health timeout that triggered the rollback
	Err     error // why the rollback failed
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed after health-check timeout: %v (timeout: %v)", e.Err, e.Timeout)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

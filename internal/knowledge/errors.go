package knowledge

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested note or insight does not exist.
	ErrNotFound = errors.New("knowledge: not found")
	// ErrInvalidInput is returned for records that cannot be stored as given.
	ErrInvalidInput = errors.New("knowledge: invalid input")
)

// StorageError reports a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("knowledge: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageFailure reports whether err originated in the database layer.
func IsStorageFailure(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Package drafts persists in-progress applications so a wizard can be
// resumed. Storage is best-effort: failures are reported to callers as
// *StorageError values that are logged and otherwise ignored.
package drafts

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Get when the key has no entry
var ErrNotFound = errors.New("draft not found")

// ErrMalformedDraft is reported when a stored entry cannot be used
var ErrMalformedDraft = errors.New("malformed draft")

// Store is a string key-value store holding serialized drafts
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Op names the storage operation that failed
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
	OpClear Op = "clear"
)

// StorageError wraps a failure of the underlying store
type StorageError struct {
	Op  Op
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("draft %s failed for %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Purger is implemented by stores that can drop drafts in bulk
type Purger interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

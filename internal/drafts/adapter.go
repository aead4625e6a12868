package drafts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/terra-clan/apply-wizard/internal/models"
)

// Key builds the store key of a wizard's draft
func Key(prefix, wizardID string) string {
	return prefix + wizardID
}

// Adapter reads and writes the draft of one wizard
type Adapter struct {
	store Store
	key   string
}

// NewAdapter creates an adapter for the entry stored under key
func NewAdapter(store Store, key string) *Adapter {
	return &Adapter{store: store, key: key}
}

// Key returns the store key the adapter works on
func (a *Adapter) Key() string {
	return a.key
}

// Hydrate loads the stored draft. It always returns a usable snapshot:
// an absent, unreadable or malformed entry yields the defaults. The error
// only describes why the defaults were used and is meant for logging.
func (a *Adapter) Hydrate(ctx context.Context) (models.DraftSnapshot, error) {
	raw, err := a.store.Get(ctx, a.key)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultDraft(), nil
	}
	if err != nil {
		return models.DefaultDraft(), &StorageError{Op: OpRead, Key: a.key, Err: err}
	}

	snap, err := decodeDraft([]byte(raw))
	if err != nil {
		return models.DefaultDraft(), fmt.Errorf("%w: %s: %v", ErrMalformedDraft, a.key, err)
	}
	return snap, nil
}

func decodeDraft(raw []byte) (models.DraftSnapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.DraftSnapshot{}, err
	}

	data, ok := fields["data"]
	if !ok || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return models.DraftSnapshot{}, errors.New("missing data")
	}

	snap := models.DefaultDraft()
	if err := json.Unmarshal(data, &snap.Data); err != nil {
		return models.DraftSnapshot{}, fmt.Errorf("data: %w", err)
	}
	snap.Data.Sanitize()

	if lastStep, ok := fields["lastStep"]; ok {
		var route *string
		if err := json.Unmarshal(lastStep, &route); err == nil && route != nil {
			snap.LastStep = *route
		}
	}
	return snap, nil
}

// Exists reports whether a draft is stored under the adapter's key
func (a *Adapter) Exists(ctx context.Context) (bool, error) {
	_, err := a.store.Get(ctx, a.key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Op: OpRead, Key: a.key, Err: err}
	}
	return true, nil
}

// Autosave overwrites the stored draft with snap
func (a *Adapter) Autosave(ctx context.Context, snap models.DraftSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return &StorageError{Op: OpWrite, Key: a.key, Err: err}
	}
	if err := a.store.Set(ctx, a.key, string(raw)); err != nil {
		return &StorageError{Op: OpWrite, Key: a.key, Err: err}
	}
	return nil
}

// Clear removes the stored draft. A missing entry is not an error.
func (a *Adapter) Clear(ctx context.Context) error {
	err := a.store.Delete(ctx, a.key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return &StorageError{Op: OpClear, Key: a.key, Err: err}
	}
	return nil
}

package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreRequired is returned by constructors missing one of the four stores.
	ErrStoreRequired = errors.New("store is required")
	// ErrFailedChunks is returned by Commit for bundles holding chunks without a valid embedding.
	ErrFailedChunks = errors.New("bundle holds failed chunks")
)

// StoreName names one of the backing stores.
type StoreName string

const (
	StoreMetadata StoreName = "metadata"
	StoreContent  StoreName = "content"
	StoreGraph    StoreName = "graph"
	StoreVector   StoreName = "vector"
)

// StoreError is a failed store operation, naming the offending store.
type StoreError struct {
	Store StoreName
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func newStoreError(store StoreName, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Store: store, Op: op, Err: err}
}

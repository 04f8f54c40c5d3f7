package badger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/core/storage"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

// ContentStore keeps document content and chunk text in BadgerDB.
// Values are JSON encoded. Embeddings live in the vector store and are not persisted here.
type ContentStore struct {
	backend *Backend
}

var _ storage.ContentStore = (*ContentStore)(nil)

// NewContentStore creates a content store on an open backend.
func NewContentStore(backend *Backend) *ContentStore {
	return &ContentStore{backend: backend}
}

// NewMemoryContentStore creates an in-memory content store for testing.
// Caller must close the returned backend when done.
func NewMemoryContentStore() (*ContentStore, *Backend, error) {
	backend, err := OpenBackend("", true, nil)
	if err != nil {
		return nil, nil, err
	}
	return NewContentStore(backend), backend, nil
}

// UpsertContent stores the content of a document, replacing any previous version.
func (s *ContentStore) UpsertContent(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(doc)
	if err != nil {
		return helper.NewError("marshal document", err)
	}

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		return tx.Set(makeDocumentKey(doc.ID), value)
	}, true)
	if err != nil {
		return helper.NewError("upsert content", err)
	}

	return nil
}

// UpsertChunks replaces the chunks of a document with chunks.
func (s *ContentStore) UpsertChunks(ctx context.Context, documentID uuid.UUID, chunks []*model.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := deletePrefix(tx, makeChunkPrefix(documentID))
		if err != nil {
			return err
		}

		for _, chunk := range chunks {
			stored := *chunk
			stored.Embedding = nil

			value, err := json.Marshal(&stored)
			if err != nil {
				return err
			}
			err = tx.Set(makeChunkKey(documentID, chunk.Index), value)
			if err != nil {
				return err
			}
		}
		return nil
	}, true)
	if err != nil {
		return helper.NewError("upsert chunks", err)
	}

	return nil
}

// SelectContent retrieves the content of a document.
// Returns helper.ErrNotFound if nothing is stored for the document.
func (s *ContentStore) SelectContent(ctx context.Context, documentID uuid.UUID) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc *model.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentKey(documentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return helper.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			doc = &model.Document{}
			return json.Unmarshal(val, doc)
		})
	}, false)
	if err != nil {
		return nil, helper.NewError("select content", err)
	}

	return doc, nil
}

// SelectChunks retrieves the chunks of a document ordered by index.
func (s *ContentStore) SelectChunks(ctx context.Context, documentID uuid.UUID) ([]*model.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunks := []*model.Chunk{}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				chunk := &model.Chunk{}
				err := json.Unmarshal(val, chunk)
				if err != nil {
					return err
				}
				chunks = append(chunks, chunk)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, helper.NewError("select chunks", err)
	}

	return chunks, nil
}

// DeleteDocument removes the content and chunks of a document.
// Returns the number of deleted keys. Deleting an unknown document is a no-op.
func (s *ContentStore) DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	deleted := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		n, err := deletePrefix(tx, makeChunkPrefix(documentID))
		if err != nil {
			return err
		}
		deleted += n

		key := makeDocumentKey(documentID)
		_, err = tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted++
		return tx.Delete(key)
	}, true)
	if err != nil {
		return 0, helper.NewError("delete content", err)
	}

	return deleted, nil
}

// ListDocumentIDs returns the ids of all documents having content or chunks, sorted.
func (s *ContentStore) ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]struct{}{}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, prefix := range []string{documentPrefix, chunkPrefix} {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			opts.PrefetchValues = false
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				id, ok := documentIDFromKey(iter.Item().Key())
				if ok {
					seen[id] = struct{}{}
				}
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		return nil, helper.NewError("list content", err)
	}

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})

	return ids, nil
}

// deletePrefix deletes all keys with prefix and returns how many were deleted.
func deletePrefix(tx *badger.Txn, prefix []byte) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		err := tx.Delete(key)
		if err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

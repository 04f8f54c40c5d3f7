package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

const indexRebuildTimeout = 60 * time.Second

// ChangeIndex rebuilds the similarity index of the vectors table.
// Drop and create run in one transaction, a failed build keeps the old index.
func (h *VectorsDBHandler) ChangeIndex(ctx context.Context, config model.VectorIndexConfig) error {
	err := config.Validate()
	if err != nil {
		return helper.NewError("change index", err)
	}
	config = config.WithDefaults()

	ctx, cancel := context.WithTimeout(ctx, indexRebuildTimeout)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_vectors_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = tx.ExecContext(ctx, createIndexSQL(config))
	if err != nil {
		return helper.NewError("create index", err)
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Rebuilt vector index",
		"type", string(config.Type),
		"m", config.M,
		"ef_construction", config.EFConstruction,
		"lists", config.Lists,
	)

	return nil
}

// ChangeIndexType rebuilds the index with the default parameters of indexType.
func (h *VectorsDBHandler) ChangeIndexType(ctx context.Context, indexType model.IndexType) error {
	return h.ChangeIndex(ctx, model.VectorIndexConfig{Type: indexType})
}

func createIndexSQL(config model.VectorIndexConfig) string {
	if config.Type == model.IndexIVFFlat {
		return fmt.Sprintf(
			`CREATE INDEX idx_vectors_embedding ON vectors USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			config.Lists,
		)
	}
	return fmt.Sprintf(
		`CREATE INDEX idx_vectors_embedding ON vectors USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
		config.M, config.EFConstruction,
	)
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/docgrapher/core/storage"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
	loadSql "github.com/siherrmann/docgrapher/sql"
)

// DocumentsDBHandlerFunctions defines the interface for document record database operations.
type DocumentsDBHandlerFunctions interface {
	Begin(ctx context.Context) (storage.MetadataTx, error)
	SelectRecord(ctx context.Context, documentID uuid.UUID) (*model.DocumentRecord, error)
	FilterCommitted(ctx context.Context, documentIDs []uuid.UUID) ([]uuid.UUID, error)
	ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error)
	DeleteRecord(ctx context.Context, documentID uuid.UUID) (bool, error)
}

// DocumentsDBHandler handles the document_records table, the metadata store.
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new document records database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := loadSql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'document_records' table in the database.
// If the table already exists, it does not create it again.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_document_records();`)
	if err != nil {
		return helper.NewError("init document_records", err)
	}

	h.db.Logger.Info("Checked/created table document_records")

	return nil
}

// Begin opens a metadata transaction.
func (h *DocumentsDBHandler) Begin(ctx context.Context) (storage.MetadataTx, error) {
	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, helper.NewError("begin", err)
	}
	return &DocumentsTx{tx: tx}, nil
}

// SelectRecord retrieves the record of a document.
// Returns helper.ErrNotFound if the document has no committed record.
func (h *DocumentsDBHandler) SelectRecord(ctx context.Context, documentID uuid.UUID) (*model.DocumentRecord, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_document_record($1)`,
		documentID,
	)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select record", helper.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return record, nil
}

// FilterCommitted returns the subset of documentIDs having a record, sorted by id.
func (h *DocumentsDBHandler) FilterCommitted(ctx context.Context, documentIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(documentIDs) == 0 {
		return []uuid.UUID{}, nil
	}
	return h.selectIDs(ctx, pq.Array(uuidStrings(documentIDs)))
}

// ListDocumentIDs returns the ids of all committed documents, sorted by id.
func (h *DocumentsDBHandler) ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	return h.selectIDs(ctx, nil)
}

func (h *DocumentsDBHandler) selectIDs(ctx context.Context, filter interface{}) ([]uuid.UUID, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_document_record_ids($1::uuid[])`,
		filter,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanIDs(rows)
}

// DeleteRecord deletes the record of a document and reports whether one existed.
func (h *DocumentsDBHandler) DeleteRecord(ctx context.Context, documentID uuid.UUID) (bool, error) {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_document_record($1)`,
		documentID,
	).Scan(&deleted)
	if err != nil {
		return false, helper.NewError("delete record", err)
	}
	return deleted > 0, nil
}

// DocumentsTx is an open transaction on the document_records table.
type DocumentsTx struct {
	tx *sql.Tx
}

// UpsertRecord inserts or replaces the record of a document inside the transaction.
func (t *DocumentsTx) UpsertRecord(ctx context.Context, record *model.DocumentRecord) error {
	row := t.tx.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_document_record($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.DocumentID,
		record.Title,
		record.Format,
		record.Source,
		string(record.Status),
		record.QualityScore,
		record.WordCount,
		record.ReadingTime,
		record.Checksum,
		record.ChunkCount,
		record.RelationshipCount,
		record.Metadata,
	)

	stored, err := scanRecord(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*record = *stored

	return nil
}

// Commit commits the transaction.
func (t *DocumentsTx) Commit() error {
	return helper.NewError("commit", t.tx.Commit())
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *DocumentsTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return helper.NewError("rollback", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.DocumentRecord, error) {
	record := &model.DocumentRecord{}
	var status string
	err := row.Scan(
		&record.DocumentID,
		&record.Title,
		&record.Format,
		&record.Source,
		&status,
		&record.QualityScore,
		&record.WordCount,
		&record.ReadingTime,
		&record.Checksum,
		&record.ChunkCount,
		&record.RelationshipCount,
		&record.Metadata,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.Status = model.RecordStatus(status)
	return record, nil
}

func scanIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		err := rows.Scan(&id)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		ids = append(ids, id)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return ids, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	return s
}

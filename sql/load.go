package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed init.sql
var initSQL string

//go:embed documents.sql
var documentsSQL string

//go:embed nodes.sql
var nodesSQL string

//go:embed edges.sql
var edgesSQL string

//go:embed vectors.sql
var vectorsSQL string

// Function lists for verification
var DocumentsFunctions = []string{
	"init_document_records",
	"upsert_document_record",
	"select_document_record",
	"select_document_record_ids",
	"delete_document_record",
}

var NodesFunctions = []string{
	"init_nodes",
	"merge_entity_metadata",
	"upsert_node",
	"select_node",
	"select_node_by_external_id",
	"select_nodes_by_name",
	"select_nodes_by_similarity",
	"delete_nodes_by_document",
	"select_node_document_ids",
}

var EdgesFunctions = []string{
	"init_edges",
	"upsert_edge",
	"select_edges_from_node",
	"select_edges_connected_to_node",
	"delete_edges_by_document",
	"select_edge_document_ids",
}

var VectorsFunctions = []string{
	"init_vectors",
	"upsert_vector",
	"select_vectors_by_similarity",
	"select_vector_ids_by_document",
	"delete_vectors_by_document",
	"select_vector_document_ids",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	slog.Debug("Database extensions initialized successfully")
	return nil
}

// LoadDocumentsSql loads document record SQL functions
func LoadDocumentsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "documents", documentsSQL, DocumentsFunctions, force)
}

// LoadNodesSql loads graph node SQL functions
func LoadNodesSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "nodes", nodesSQL, NodesFunctions, force)
}

// LoadEdgesSql loads graph edge SQL functions
func LoadEdgesSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "edges", edgesSQL, EdgesFunctions, force)
}

// LoadVectorsSql loads vector store SQL functions
func LoadVectorsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "vectors", vectorsSQL, VectorsFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadDocumentsSql(db, force); err != nil {
		return err
	}

	if err := LoadNodesSql(db, force); err != nil {
		return err
	}

	if err := LoadEdgesSql(db, force); err != nil {
		return err
	}

	if err := LoadVectorsSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadFunctions executes the SQL script unless all functions exist already (or force is set)
// and verifies afterwards that every function was created.
func loadFunctions(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	slog.Debug("SQL functions loaded successfully", slog.String("group", name))
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			slog.Debug("Function does not exist", slog.String("function", f))
			break
		}
	}
	return allExist, nil
}

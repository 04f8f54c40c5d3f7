package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/docgrapher"
	"github.com/siherrmann/docgrapher/core/convert"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

const introContent = `# Graph Databases

Graph databases are designed to store and query data with complex relationships.
They use nodes to represent entities and edges to represent relationships between them.

## PostgreSQL

PostgreSQL with pgvector can be used to build graph-based systems.
The edges table links nodes, while pgvector enables vector similarity search.

## Retrieval

Combining these features allows retrieval strategies that leverage both semantic similarity
and graph structure.`

const followUpContent = `# Traversing the Graph

This note extends the introduction. See the documentation on 'Introduction to Graph Databases'
for the basics of nodes and edges.

Breadth-first traversal follows relationship edges hop by hop and only visits committed documents.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// Default hugot embeddings, heuristic judgments so no API key is needed
	config := model.DefaultPipelineConfig()
	config.Storage.BadgerDir = ""
	config.Relations.DisableInference = true

	g, err := docgrapher.NewDocGrapher(dbConfig, config)
	if err != nil {
		log.Fatalf("Failed to create docgrapher: %v", err)
	}
	defer g.Close()

	registry := convert.DefaultRegistry()
	intro, err := convert.NewDocument(registry, "Introduction to Graph Databases", model.FormatMarkdown, "basic_example", []byte(introContent))
	if err != nil {
		log.Fatalf("Failed to convert document: %v", err)
	}
	followUp, err := convert.NewDocument(registry, "Traversing the Graph", model.FormatMarkdown, "basic_example", []byte(followUpContent))
	if err != nil {
		log.Fatalf("Failed to convert document: %v", err)
	}

	observer := func(event model.StageEvent) {
		if event.Status != model.StageStatusStarted {
			fmt.Printf("  %-12s %-9s %s\n", event.Stage, event.Status, event.Duration)
		}
	}

	ctx := context.Background()
	for _, doc := range []*model.Document{intro, followUp} {
		fmt.Printf("Processing %q\n", doc.Title)
		result := g.ProcessDocument(ctx, doc, nil, observer)
		if !result.Success {
			log.Fatalf("Failed in stage %s: %s", result.Stage, result.Message)
		}
		fmt.Printf("Committed %s with %d chunks and %d relationships\n\n", result.DocumentID, result.ChunkCount, result.RelationshipCount)
	}

	related, err := g.RelatedDocuments(ctx, followUp.ID, 2, nil)
	if err != nil {
		log.Fatalf("Failed to traverse: %v", err)
	}

	fmt.Printf("Related to %q:\n", followUp.Title)
	for _, r := range related {
		fmt.Printf("  [%d hop] %s %q via %s (confidence %.2f)\n", r.Distance, r.Node.Kind, r.Node.Name, r.Edge.Type, r.Edge.Confidence)
	}
}

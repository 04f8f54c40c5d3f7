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

const sampleContent1 = `# Graph Databases

Graph databases are designed to store and query data with complex relationships.
They use nodes to represent entities and edges to represent relationships between them.

## Storage

PostgreSQL with pgvector can be used to build graph-based systems.
Relationship edges live in a table, while pgvector enables vector similarity search.

## Retrieval

Combining these features allows retrieval strategies that leverage both semantic similarity
and graph structure for more sophisticated information retrieval.`

const sampleContent2 = `# Machine Learning for Retrieval

Machine learning is transforming how we process and retrieve information.

Vector embeddings capture semantic meaning of text, enabling similarity-based search.
Neural networks can learn representations that understand context and relationships.

Modern retrieval systems combine database indexing with machine learning models
to provide more intelligent and context-aware search capabilities. This work is tracked as Feature #42.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	config := model.DefaultPipelineConfig()
	config.Storage.BadgerDir = ""
	config.Relations.DisableInference = true
	config.Relations.MinSimilarity = 0.3

	g, err := docgrapher.NewDocGrapher(dbConfig, config)
	if err != nil {
		log.Fatalf("Failed to create docgrapher: %v", err)
	}
	defer g.Close()

	ctx := context.Background()

	// Knowledge base entry referenced by the second document
	feature, err := g.UpsertKnowledgeNode(ctx, model.CategoryFeature, "Semantic search", "42", model.Metadata{"status": "in progress"})
	if err != nil {
		log.Fatalf("Failed to create feature: %v", err)
	}

	doc1 := newMarkdownDocument("Introduction to Graph Databases", sampleContent1, model.Metadata{"topic": "graph databases"})
	doc2 := newMarkdownDocument("Machine Learning for Information Retrieval", sampleContent2, model.Metadata{"topic": "machine learning"})

	// Externally supplied analysis, overlapping with the feature name
	analysis := &model.Analysis{
		Summary:  "Embeddings for retrieval",
		Concepts: []*model.Entity{{Name: "Semantic search", Kind: model.EntityKindConcept}},
	}

	// 1. Concurrent ingestion
	fmt.Println("=== 1. Ingesting Documents ===")
	results := g.ProcessDocuments(ctx, []docgrapher.Job{
		{Document: doc1},
		{Document: doc2, Analysis: analysis},
	}, nil)
	for _, result := range results {
		if !result.Success {
			log.Fatalf("Failed to process %s in stage %s: %s", result.DocumentID, result.Stage, result.Message)
		}
		fmt.Printf("Document %s: %d chunks, %d relationships, %d dropped candidates\n",
			result.DocumentID, result.ChunkCount, result.RelationshipCount, result.DroppedCandidates)
	}

	queryText := "What are graph databases?"

	// 2. Vector-only search
	fmt.Println("\n=== 2. Vector-Only Search ===")
	vectorConfig := model.DefaultQueryConfig()
	vectorConfig.TopK = 3
	vectorResults, err := g.Search(ctx, queryText, vectorConfig)
	if err != nil {
		log.Fatalf("Vector search failed: %v", err)
	}
	printResults("Vector Search", vectorResults)

	// 3. Contextual search (vector hits plus neighboring chunks)
	fmt.Println("\n=== 3. Contextual Search ===")
	contextConfig := model.DefaultQueryConfig()
	contextConfig.TopK = 2
	contextConfig.ContextWindow = 1
	contextResults, err := g.Search(ctx, queryText, contextConfig)
	if err != nil {
		log.Fatalf("Contextual search failed: %v", err)
	}
	printResults("Contextual Search", contextResults)

	// 4. Demonstrate index type switching
	fmt.Println("\n=== 4. Changing Index Type ===")
	fmt.Println("Switching to IVFFlat index...")
	err = g.Vectors.ChangeIndex(ctx, model.VectorIndexConfig{Type: model.IndexIVFFlat, Lists: 100})
	if err != nil {
		log.Printf("Warning: Index change failed (this is okay for small datasets): %v", err)
	} else {
		fmt.Println("Successfully switched to IVFFlat index")
	}

	fmt.Println("Switching back to HNSW index...")
	err = g.Vectors.ChangeIndexType(ctx, model.IndexHNSW)
	if err != nil {
		log.Printf("Warning: Index change failed: %v", err)
	} else {
		fmt.Println("Successfully switched to HNSW index")
	}

	// 5. Graph traversal from the second document
	fmt.Println("\n=== 5. Related Documents (BFS) ===")
	related, err := g.RelatedDocuments(ctx, doc2.ID, 2, nil)
	if err != nil {
		log.Printf("Traversal failed: %v", err)
	}
	for _, r := range related {
		marker := ""
		if r.Node.ID == feature.ID {
			marker = " (feature)"
		}
		fmt.Printf("  - Distance %d: %s %q via %s%s\n", r.Distance, r.Node.Kind, r.Node.Name, r.Edge.Type, marker)
	}

	// 6. Delete and sweep
	fmt.Println("\n=== 6. Delete and Sweep ===")
	deleted, err := g.DeleteDocument(ctx, doc1.ID)
	if err != nil {
		log.Fatalf("Delete failed: %v", err)
	}
	fmt.Printf("Deleted %s, removed per store: %v\n", doc1.ID, deleted.Removed)

	swept, err := g.SweepOrphans(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	fmt.Printf("Sweep removed %d orphaned entries\n", swept.Total())

	fmt.Println("\n=== Advanced Example Completed Successfully! ===")
}

func newMarkdownDocument(title string, content string, metadata model.Metadata) *model.Document {
	doc, err := convert.NewDocument(convert.DefaultRegistry(), title, model.FormatMarkdown, "advanced_example", []byte(content))
	if err != nil {
		log.Fatalf("Failed to convert %s: %v", title, err)
	}
	doc.Metadata = metadata
	return doc
}

func printResults(title string, results []*model.SearchResult) {
	fmt.Printf("\n%s - Found %d results:\n", title, len(results))
	for i, result := range results {
		if i >= 3 {
			break // Show only first 3
		}
		fmt.Printf("\n  Result %d:\n", i+1)
		fmt.Printf("    Score: %.4f (similarity: %.4f, distance: %d)\n",
			result.Score, result.Similarity, result.Distance)
		fmt.Printf("    Method: %s\n", result.Method)
		fmt.Printf("    Section: %s\n", result.Chunk.Title)
		fmt.Printf("    Content: %s\n", result.Chunk.Preview(80))
	}
}

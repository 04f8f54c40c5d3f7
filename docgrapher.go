package docgrapher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/siherrmann/docgrapher/core/graph"
	"github.com/siherrmann/docgrapher/core/pipeline"
	"github.com/siherrmann/docgrapher/core/relation"
	"github.com/siherrmann/docgrapher/core/retrieval"
	"github.com/siherrmann/docgrapher/core/storage"
	"github.com/siherrmann/docgrapher/database"
	contentStore "github.com/siherrmann/docgrapher/database/badger"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
	loadSql "github.com/siherrmann/docgrapher/sql"
)

// DocGrapher runs the document pipeline and owns every store and provider it needs.
type DocGrapher struct {
	DB        *helper.Database
	Documents *database.DocumentsDBHandler
	Graph     *database.GraphDBHandler
	Vectors   *database.VectorsDBHandler
	Content   *contentStore.ContentStore

	Pipeline      *pipeline.Pipeline
	Finder        *relation.Finder
	Characterizer *relation.Characterizer
	Orchestrator  *storage.Orchestrator
	Sweeper       *storage.Sweeper
	Retrieval     *retrieval.Engine
	Metrics       *helper.Collector

	config            model.PipelineConfig
	embeddingProvider pipeline.EmbeddingProvider
	inferenceProvider relation.InferenceProvider
	analyzer          pipeline.Analyzer
	pool              *ants.Pool
	closers           []func() error
	stopSweeper       context.CancelFunc
	sweeperDone       chan struct{}
	// Logging
	log *slog.Logger
}

// Job is one document handed to ProcessDocuments.
// Analysis carries the externally supplied summary, entities and concepts and may be nil.
type Job struct {
	Document *model.Document
	Analysis *model.Analysis
}

// Related is a node reached from a document over relationship edges.
// Record is set for documents and nil for knowledge base nodes.
type Related struct {
	*graph.TraversalResult
	Record *model.DocumentRecord
}

// NewDocGrapher validates the config, connects to PostgreSQL, opens the Badger content
// store and wires the pipeline. Providers not set through options are built from the config.
func NewDocGrapher(dbConfig *helper.DatabaseConfiguration, config model.PipelineConfig, opts ...Option) (*DocGrapher, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	g := &DocGrapher{
		Metrics: helper.NewCollector("docgrapher"),
		config:  config,
		log: slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{Level: slog.LevelInfo},
		})),
	}
	for _, opt := range opts {
		err := opt(g)
		if err != nil {
			return nil, err
		}
	}

	embedder, err := g.newEmbeddingProvider()
	if err != nil {
		g.Close()
		return nil, err
	}
	if embedder.Dimension() != config.Embedding.Dimension {
		g.Close()
		return nil, fmt.Errorf("%w: provider dimension %d differs from configured dimension %d", model.ErrInvalidConfig, embedder.Dimension(), config.Embedding.Dimension)
	}

	err = g.openStores(dbConfig)
	if err != nil {
		g.Close()
		return nil, err
	}

	err = g.wire()
	if err != nil {
		g.Close()
		return nil, err
	}

	if config.Storage.SweepInterval > 0 {
		g.startSweeper(config.Storage.SweepInterval)
	}

	return g, nil
}

func (g *DocGrapher) openStores(dbConfig *helper.DatabaseConfiguration) error {
	db, err := helper.NewDatabase("docgrapher", dbConfig, g.log)
	if err != nil {
		return err
	}
	g.DB = db
	g.closers = append(g.closers, db.Close)

	err = loadSql.Init(db.Instance)
	if err != nil {
		return helper.NewError("initialize database extensions", err)
	}

	force := g.config.Storage.ForceSQL
	dimension := g.config.Embedding.Dimension

	g.Documents, err = database.NewDocumentsDBHandler(db, force)
	if err != nil {
		return helper.NewError("create documents handler", err)
	}

	g.Graph, err = database.NewGraphDBHandler(db, dimension, force)
	if err != nil {
		return helper.NewError("create graph handler", err)
	}

	g.Vectors, err = database.NewVectorsDBHandler(db, dimension, force)
	if err != nil {
		return helper.NewError("create vectors handler", err)
	}
	if g.config.Storage.VectorIndex.Type != "" {
		err = g.Vectors.ChangeIndex(context.Background(), g.config.Storage.VectorIndex)
		if err != nil {
			return helper.NewError("change vector index", err)
		}
	}

	// An empty directory keeps content in memory
	dir := g.config.Storage.BadgerDir
	backend, err := contentStore.OpenBackend(dir, dir == "", g.log)
	if err != nil {
		return helper.NewError("open content store", err)
	}
	g.closers = append(g.closers, backend.Close)
	g.Content = contentStore.NewContentStore(backend)

	return nil
}

func (g *DocGrapher) wire() error {
	chunker, err := pipeline.NewChunker(g.config.Chunking, nil)
	if err != nil {
		return helper.NewError("create chunker", err)
	}
	batcher, err := pipeline.NewBatcher(pipeline.NewBreakerProvider(g.embeddingProvider, g.config.Embedding, g.log), g.config.Embedding, g.log)
	if err != nil {
		return helper.NewError("create batcher", err)
	}
	g.Pipeline = pipeline.NewPipeline(chunker, batcher)

	g.Finder, err = relation.NewFinder(g.Vectors, g.Graph, g.Documents, g.config.Relations, g.log)
	if err != nil {
		return helper.NewError("create finder", err)
	}

	inference, err := g.newInferenceProvider()
	if err != nil {
		return err
	}
	limited := relation.NewRateLimitedInference(inference, g.config.Relations.RequestsPerSec, g.config.Relations.Burst)
	g.Characterizer, err = relation.NewCharacterizer(limited, g.config.Relations, g.log)
	if err != nil {
		return helper.NewError("create characterizer", err)
	}

	g.Orchestrator, err = storage.NewOrchestrator(g.Documents, g.Content, g.Graph, g.Vectors, g.log)
	if err != nil {
		return helper.NewError("create orchestrator", err)
	}
	g.Sweeper, err = storage.NewSweeper(g.Orchestrator, g.Metrics, g.log)
	if err != nil {
		return helper.NewError("create sweeper", err)
	}
	g.Retrieval, err = retrieval.NewEngine(g.Vectors, g.Orchestrator)
	if err != nil {
		return helper.NewError("create retrieval engine", err)
	}

	g.pool, err = ants.NewPool(g.config.Workers)
	if err != nil {
		return helper.NewError("create worker pool", err)
	}

	return nil
}

func (g *DocGrapher) newEmbeddingProvider() (pipeline.EmbeddingProvider, error) {
	if g.embeddingProvider != nil {
		return g.embeddingProvider, nil
	}

	switch g.config.Embedding.Provider {
	case model.ProviderOpenAI:
		provider, err := pipeline.NewOpenAIProvider(g.config.Embedding, g.log)
		if err != nil {
			return nil, helper.NewError("create openai embedding provider", err)
		}
		g.embeddingProvider = provider
	default:
		provider, err := pipeline.NewHugotProvider(g.config.Embedding)
		if err != nil {
			return nil, helper.NewError("create hugot embedding provider", err)
		}
		g.closers = append(g.closers, provider.Close)
		g.embeddingProvider = provider
	}

	return g.embeddingProvider, nil
}

func (g *DocGrapher) newInferenceProvider() (relation.InferenceProvider, error) {
	if g.inferenceProvider != nil {
		return g.inferenceProvider, nil
	}

	if g.config.Relations.DisableInference {
		g.log.Info("Inference disabled, using heuristic relationship judgments")
		g.inferenceProvider = relation.HeuristicInference{}
		return g.inferenceProvider, nil
	}

	provider, err := relation.NewOpenAIInference(g.config.Relations, g.log)
	if err != nil {
		return nil, helper.NewError("create inference provider", err)
	}
	g.inferenceProvider = provider

	return g.inferenceProvider, nil
}

func (g *DocGrapher) startSweeper(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	g.stopSweeper = cancel
	g.sweeperDone = make(chan struct{})

	go func() {
		defer close(g.sweeperDone)
		err := g.Sweeper.Run(ctx, interval)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.log.Error("Sweeper stopped", "error", err)
		}
	}()
}

// Close stops the sweeper, releases the worker pool and closes all stores and providers.
func (g *DocGrapher) Close() error {
	if g.stopSweeper != nil {
		g.stopSweeper()
		<-g.sweeperDone
		g.stopSweeper = nil
	}
	if g.pool != nil {
		g.pool.Release()
		g.pool = nil
	}
	if closer, ok := g.analyzer.(io.Closer); ok {
		g.closers = append(g.closers, closer.Close)
		g.analyzer = nil
	}

	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		err := g.closers[i]()
		if err != nil {
			errs = append(errs, err)
		}
	}
	g.closers = nil

	return errors.Join(errs...)
}

// documentRun holds the intermediate results of one document.
type documentRun struct {
	doc              *model.Document
	analysis         *model.Analysis
	spans            []pipeline.Span
	chunks           []*model.Chunk
	candidates       []*model.Candidate
	characterization *relation.Characterization
	commit           *storage.CommitResult
}

// ProcessDocument runs plan, chunk, embed, relate, characterize and store for one document.
// Stages run in order, the context is checked before each of them and the observer
// receives a started and a completed or failed event per stage.
// The result only reports success if the metadata record was committed.
func (g *DocGrapher) ProcessDocument(ctx context.Context, doc *model.Document, analysis *model.Analysis, observer model.Observer) *model.ProcessingResult {
	if doc == nil {
		g.Metrics.ObserveDocument(false)
		return model.NewFailedResult(uuid.Nil, model.StagePlan, helper.NewError("process document", fmt.Errorf("document is nil")))
	}

	run := &documentRun{doc: doc, analysis: analysis}
	err := g.process(ctx, run, observer)
	if err != nil {
		result := model.NewFailedResult(doc.ID, model.StageStore, err)
		result.ChunkCount = len(run.chunks)
		result.Orphaned = run.commit != nil && run.commit.Orphaned
		g.Metrics.ObserveDocument(false)
		g.log.Warn("Document processing failed", slog.String("document_id", doc.ID.String()), slog.String("stage", string(result.Stage)), slog.String("error", err.Error()))
		return result
	}

	g.Metrics.ObserveDocument(true)
	g.log.Info("Processed document",
		slog.String("document_id", doc.ID.String()),
		slog.String("title", doc.Title),
		slog.Int("chunks", len(run.chunks)),
		slog.Int("relationships", len(run.characterization.Accepted)),
	)

	return &model.ProcessingResult{
		Success:           true,
		DocumentID:        doc.ID,
		ChunkCount:        len(run.chunks),
		RelationshipCount: len(run.characterization.Accepted),
		DroppedCandidates: len(run.characterization.Dropped),
	}
}

func (g *DocGrapher) process(ctx context.Context, run *documentRun, observer model.Observer) error {
	id := run.doc.ID

	err := g.stage(ctx, id, model.StagePlan, observer, func() error {
		run.spans = g.Pipeline.Chunker.Plan(run.doc)
		return nil
	})
	if err != nil {
		return err
	}

	err = g.stage(ctx, id, model.StageChunk, observer, func() error {
		run.chunks = g.Pipeline.Chunker.Materialize(run.doc, run.spans)
		return nil
	})
	if err != nil {
		return err
	}

	err = g.stage(ctx, id, model.StageEmbed, observer, func() error {
		return g.Pipeline.Batcher.EmbedChunks(ctx, run.chunks)
	})
	if err != nil {
		return err
	}

	err = g.stage(ctx, id, model.StageRelate, observer, func() error {
		if run.analysis == nil && g.analyzer != nil {
			analysis, err := g.analyzer.Analyze(ctx, run.doc, run.chunks)
			if err != nil {
				return helper.NewError("analyze document", err)
			}
			run.analysis = analysis
		}

		candidates, err := g.Finder.Find(ctx, run.doc, run.chunks, run.analysis)
		run.candidates = candidates
		return err
	})
	if err != nil {
		return err
	}

	err = g.stage(ctx, id, model.StageCharacterize, observer, func() error {
		characterization, err := g.Characterizer.Characterize(ctx, run.doc, run.analysis, run.candidates)
		run.characterization = characterization
		return err
	})
	if err != nil {
		return err
	}
	g.Metrics.ObserveRelationships(len(run.characterization.Accepted), len(run.characterization.Dropped))

	return g.stage(ctx, id, model.StageStore, observer, func() error {
		commit, err := g.Orchestrator.Commit(ctx, &storage.Bundle{
			Document:      run.doc,
			Chunks:        run.chunks,
			Analysis:      run.analysis,
			Relationships: run.characterization.Accepted,
		})
		run.commit = commit
		return err
	})
}

// stage runs fn as one pipeline stage unless ctx is already done.
// The returned error is a *model.StageError.
func (g *DocGrapher) stage(ctx context.Context, documentID uuid.UUID, stage model.Stage, observer model.Observer, fn func() error) error {
	err := ctx.Err()
	if err != nil {
		return model.NewStageError(stage, err)
	}

	observer.Notify(model.StageEvent{DocumentID: documentID, Stage: stage, Status: model.StageStatusStarted})

	start := time.Now()
	err = fn()
	duration := time.Since(start)
	g.Metrics.ObserveStage(string(stage), duration, err)

	status := model.StageStatusCompleted
	if err != nil {
		status = model.StageStatusFailed
	}
	observer.Notify(model.StageEvent{DocumentID: documentID, Stage: stage, Status: status, Duration: duration, Err: err})

	return model.NewStageError(stage, err)
}

// ProcessDocuments processes independent documents concurrently on the worker pool.
// Results are returned in input order. The observer may be called concurrently.
func (g *DocGrapher) ProcessDocuments(ctx context.Context, jobs []Job, observer model.Observer) []*model.ProcessingResult {
	results := make([]*model.ProcessingResult, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		err := g.pool.Submit(func() {
			defer wg.Done()
			results[i] = g.ProcessDocument(ctx, job.Document, job.Analysis, observer)
		})
		if err != nil {
			wg.Done()
			documentID := uuid.Nil
			if job.Document != nil {
				documentID = job.Document.ID
			}
			results[i] = model.NewFailedResult(documentID, model.StagePlan, helper.NewError("submit document", err))
		}
	}
	wg.Wait()

	return results
}

// DeleteDocument removes a document from all stores, metadata first.
// This is the compensating action for a document that should not stay committed.
func (g *DocGrapher) DeleteDocument(ctx context.Context, documentID uuid.UUID) (*storage.DeleteResult, error) {
	start := time.Now()
	result, err := g.Orchestrator.Delete(ctx, documentID)
	g.Metrics.ObserveStage(string(model.StageDelete), time.Since(start), err)
	if err != nil {
		return result, model.NewStageError(model.StageDelete, err)
	}

	g.log.Info("Deleted document", slog.String("document_id", documentID.String()), slog.Bool("existed", result.Existed))

	return result, nil
}

// UpsertKnowledgeNode get-or-creates a feature or roadmap item node, matched by
// kind and normalized name. externalID is the id used by explicit references like "Feature #123".
func (g *DocGrapher) UpsertKnowledgeNode(ctx context.Context, kind model.Category, name string, externalID string, metadata model.Metadata) (*model.Node, error) {
	if kind != model.CategoryFeature && kind != model.CategoryRoadmapItem {
		return nil, helper.NewError("upsert knowledge node", fmt.Errorf("kind %q is not a knowledge base kind", kind))
	}
	if strings.TrimSpace(name) == "" {
		return nil, helper.NewError("upsert knowledge node", fmt.Errorf("name is empty"))
	}
	if metadata == nil {
		metadata = model.Metadata{}
	}

	node, err := g.Graph.UpsertNode(ctx, &model.Node{
		ID:         uuid.New(),
		Kind:       kind,
		Name:       strings.TrimSpace(name),
		ExternalID: externalID,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, helper.NewError("upsert knowledge node", err)
	}

	g.log.Debug("Upserted knowledge node", slog.String("kind", string(kind)), slog.String("name", node.Name), slog.String("id", node.ID.String()))

	return node, nil
}

// SweepOrphans removes side store entries of documents without a metadata record.
func (g *DocGrapher) SweepOrphans(ctx context.Context) (*storage.SweepResult, error) {
	return g.Sweeper.Sweep(ctx)
}

// Record returns the metadata record of a committed document.
func (g *DocGrapher) Record(ctx context.Context, documentID uuid.UUID) (*model.DocumentRecord, error) {
	return g.Orchestrator.Record(ctx, documentID)
}

// Chunks returns the chunks of a committed document in chunk order.
func (g *DocGrapher) Chunks(ctx context.Context, documentID uuid.UUID) ([]*model.Chunk, error) {
	return g.Orchestrator.Chunks(ctx, documentID)
}

// RelatedDocuments walks relationship edges breadth-first from a committed document.
// The document itself is not part of the result. Empty edgeTypes follow every relationship.
func (g *DocGrapher) RelatedDocuments(ctx context.Context, documentID uuid.UUID, maxHops int, edgeTypes []model.RelationshipType) ([]*Related, error) {
	results, err := graph.BFS(ctx, g.reader(), documentID, maxHops, edgeTypes, true)
	if err != nil {
		return nil, helper.NewError("related documents", err)
	}

	related := make([]*Related, 0, len(results)-1)
	for _, result := range results[1:] {
		r := &Related{TraversalResult: result}
		if result.Node.Kind == model.CategoryDocument {
			record, err := g.Documents.SelectRecord(ctx, result.Node.ID)
			if errors.Is(err, helper.ErrNotFound) {
				// Deleted since the traversal
				continue
			}
			if err != nil {
				return nil, helper.NewError("select related record", err)
			}
			r.Record = record
		}
		related = append(related, r)
	}

	return related, nil
}

// Search embeds the query and returns the most similar chunks of committed documents.
// A positive config.ContextWindow adds the neighboring chunks of every hit.
func (g *DocGrapher) Search(ctx context.Context, query string, config model.QueryConfig) ([]*model.SearchResult, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, helper.NewError("search", fmt.Errorf("query is empty"))
	}

	provider := g.Pipeline.Batcher.Provider()
	vectors, err := provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != provider.Dimension() {
		return nil, helper.NewError("embed query", pipeline.ErrDimensionMismatch)
	}

	results, err := retrieval.NewStrategy(g.Retrieval, config).Retrieve(ctx, vectors[0], config)
	if err != nil {
		return nil, helper.NewError("search", err)
	}

	g.log.Debug("Searched chunks", slog.String("query", query), slog.Int("results", len(results)))

	return results, nil
}

func (g *DocGrapher) reader() graph.GraphReader {
	return &committedGraph{GraphDBHandler: g.Graph, documents: g.Documents}
}

// committedGraph joins the graph handler against the metadata store.
type committedGraph struct {
	*database.GraphDBHandler
	documents *database.DocumentsDBHandler
}

func (c *committedGraph) FilterCommitted(ctx context.Context, documentIDs []uuid.UUID) ([]uuid.UUID, error) {
	return c.documents.FilterCommitted(ctx, documentIDs)
}

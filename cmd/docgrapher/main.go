package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siherrmann/docgrapher"
	"github.com/siherrmann/docgrapher/core/convert"
	"github.com/siherrmann/docgrapher/core/pipeline"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docgrapher",
		Usage: "Chunk, embed and relate documents into a knowledge graph",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML pipeline configuration",
				Value:   "docgrapher.yaml",
			},
			&cli.StringFlag{
				Name:  "badger-dir",
				Usage: "Directory of the content store, overrides storage.badger_dir",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve prometheus metrics on this address, e.g. :9090",
			},
			&cli.BoolFlag{
				Name:  "ner",
				Usage: "Extract entities with the hugot NER pipeline for documents without analysis",
			},
			&cli.Float64Flag{
				Name:  "ner-min-score",
				Usage: "Minimum score of an extracted entity",
				Value: 0.8,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Convert and process files concurrently",
				ArgsUsage: "<files...>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source tag stored with every document, defaults to the file path",
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Remove a document from all stores",
				ArgsUsage: "<id>",
				Action:    deleteCommand,
			},
			{
				Name:   "sweep",
				Usage:  "Remove side store entries of documents without a metadata record",
				Action: sweepCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Sweep repeatedly at this interval until interrupted, 0 sweeps once",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Find the chunks most similar to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of vector hits",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum cosine similarity of a hit",
					},
					&cli.IntFlag{
						Name:  "context",
						Usage: "Add this many neighboring chunks around every hit",
					},
				},
			},
			{
				Name:      "related",
				Usage:     "List documents and entities related to a document",
				ArgsUsage: "<id>",
				Action:    relatedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "hops",
						Usage: "Maximum number of relationship hops",
						Value: 2,
					},
					&cli.StringSliceFlag{
						Name:  "type",
						Usage: "Only follow relationships of this type, repeatable",
					},
				},
			},
			{
				Name:      "knowledge",
				Usage:     "Add a feature or roadmap item that documents can be related to",
				ArgsUsage: "<name>",
				Action:    knowledgeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Node kind: feature or roadmap_item",
						Value: string(model.CategoryFeature),
					},
					&cli.StringFlag{
						Name:  "external-id",
						Usage: "Id used by references like \"Feature #123\"",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	level, err := parseLogLevel(c.String("log-level"))
	if err != nil {
		return err
	}

	logger := slog.New(helper.NewPrettyHandler(os.Stderr, helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: level},
	}))
	slog.SetDefault(logger)

	return nil
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", value)
	}
}

// loadConfig reads the pipeline config and applies the flag overrides.
func loadConfig(c *cli.Context) (model.PipelineConfig, error) {
	config, err := model.LoadPipelineConfig(c.String("config"))
	if err != nil {
		return config, fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("badger-dir") {
		config.Storage.BadgerDir = c.String("badger-dir")
	}
	// Sweeping is driven by the sweep command
	config.Storage.SweepInterval = 0

	return config, config.Validate()
}

// openGrapher builds the grapher from the environment database config and the flags.
// The returned function stops the metrics server and closes the grapher.
func openGrapher(c *cli.Context) (*docgrapher.DocGrapher, func(), error) {
	config, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read database configuration: %w", err)
	}

	opts := []docgrapher.Option{docgrapher.WithLogger(slog.Default())}
	if c.Bool("ner") {
		analyzer, err := pipeline.NewNERAnalyzer(float32(c.Float64("ner-min-score")))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create entity analyzer: %w", err)
		}
		opts = append(opts, docgrapher.WithAnalyzer(analyzer))
	}

	g, err := docgrapher.NewDocGrapher(dbConfig, config, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create docgrapher: %w", err)
	}

	var server *http.Server
	if addr := c.String("metrics-addr"); addr != "" {
		server = serveMetrics(addr, g.Metrics)
	}

	closeFn := func() {
		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		}
		if err := g.Close(); err != nil {
			slog.Error("Failed to close docgrapher", "error", err)
		}
	}

	return g, closeFn, nil
}

func serveMetrics(addr string, collector *helper.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
	slog.Info("Serving metrics", "addr", addr)

	return server
}

// readJobs converts every file by its extension. Titles default to the file name.
func readJobs(registry *convert.Registry, paths []string, source string) ([]docgrapher.Job, error) {
	jobs := make([]docgrapher.Job, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		name := filepath.Base(path)
		title := strings.TrimSuffix(name, filepath.Ext(name))
		if title == "" {
			title = name
		}
		docSource := source
		if docSource == "" {
			docSource = path
		}

		doc, err := convert.NewDocument(registry, title, model.FormatFromPath(path), docSource, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", path, err)
		}
		jobs = append(jobs, docgrapher.Job{Document: doc})
	}

	return jobs, nil
}

func ingestCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one file is required")
	}

	jobs, err := readJobs(convert.DefaultRegistry(), paths, c.String("source"))
	if err != nil {
		return err
	}

	g, closeFn, err := openGrapher(c)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	observer := model.Observer(func(event model.StageEvent) {
		if event.Status == model.StageStatusFailed {
			slog.Debug("Stage failed", "document_id", event.DocumentID, "stage", event.Stage, "error", event.Err)
		}
	})

	results := g.ProcessDocuments(ctx, jobs, observer)

	failed := 0
	for i, result := range results {
		printResult(paths[i], result)
		if !result.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}

	return nil
}

func printResult(path string, result *model.ProcessingResult) {
	if result.Success {
		fmt.Printf("%s %s %s (%d chunks, %d relationships, %d dropped)\n",
			color.GreenString("ok"), path, result.DocumentID, result.ChunkCount, result.RelationshipCount, result.DroppedCandidates)
		return
	}
	fmt.Printf("%s %s %s failed in %s: %s\n",
		color.RedString("fail"), path, result.DocumentID, result.Stage, result.Message)
	if result.Orphaned {
		fmt.Printf("     side store entries left behind, run sweep to remove them\n")
	}
}

func parseDocumentID(c *cli.Context) (uuid.UUID, error) {
	if c.Args().Len() != 1 {
		return uuid.Nil, fmt.Errorf("exactly one document id is required")
	}
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid document id %q: %w", c.Args().First(), err)
	}
	return id, nil
}

func deleteCommand(c *cli.Context) error {
	id, err := parseDocumentID(c)
	if err != nil {
		return err
	}

	g, closeFn, err := openGrapher(c)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := g.DeleteDocument(c.Context, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if !result.Existed {
		fmt.Printf("%s %s had no metadata record\n", color.YellowString("none"), id)
	} else {
		fmt.Printf("%s %s deleted\n", color.GreenString("ok"), id)
	}
	for store, n := range result.Removed {
		fmt.Printf("     %-8s %d removed\n", store, n)
	}

	return nil
}

func sweepCommand(c *cli.Context) error {
	g, closeFn, err := openGrapher(c)
	if err != nil {
		return err
	}
	defer closeFn()

	interval := c.Duration("interval")
	if interval <= 0 {
		result, err := g.SweepOrphans(c.Context)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		fmt.Printf("%s removed %d orphaned entries\n", color.GreenString("ok"), result.Total())
		for store, ids := range result.Orphans {
			fmt.Printf("     %-8s %d orphaned documents\n", store, len(ids))
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Sweeping until interrupted", "interval", interval)
	err = g.Sweeper.Run(ctx, interval)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sweeper stopped: %w", err)
	}

	return nil
}

func relatedCommand(c *cli.Context) error {
	id, err := parseDocumentID(c)
	if err != nil {
		return err
	}

	edgeTypes := make([]model.RelationshipType, 0, len(c.StringSlice("type")))
	for _, t := range c.StringSlice("type") {
		edgeTypes = append(edgeTypes, model.RelationshipType(t))
	}

	g, closeFn, err := openGrapher(c)
	if err != nil {
		return err
	}
	defer closeFn()

	related, err := g.RelatedDocuments(c.Context, id, c.Int("hops"), edgeTypes)
	if err != nil {
		return fmt.Errorf("failed to traverse: %w", err)
	}

	for _, r := range related {
		fmt.Printf("[%d hop] %s %q via %s (confidence %.2f)\n", r.Distance, r.Node.Kind, r.Node.Name, r.Edge.Type, r.Edge.Confidence)
	}

	return nil
}

func knowledgeCommand(c *cli.Context) error {
	name := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("a name is required")
	}
	kind := model.Category(c.String("kind"))
	if kind != model.CategoryFeature && kind != model.CategoryRoadmapItem {
		return fmt.Errorf("invalid kind %q, use %s or %s", kind, model.CategoryFeature, model.CategoryRoadmapItem)
	}

	g, closeFn, err := openGrapher(c)
	if err != nil {
		return err
	}
	defer closeFn()

	node, err := g.UpsertKnowledgeNode(c.Context, kind, name, c.String("external-id"), nil)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", kind, err)
	}

	fmt.Printf("%s %s %q %s\n", color.GreenString("ok"), node.Kind, node.Name, node.ID)

	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	config := model.DefaultQueryConfig()
	config.TopK = c.Int("top-k")
	config.MinSimilarity = c.Float64("min-similarity")
	config.ContextWindow = c.Int("context")
	err := config.Validate()
	if err != nil {
		return err
	}

	g, closeFn, err := openGrapher(c)
	if err != nil {
		return err
	}
	defer closeFn()

	results, err := g.Search(c.Context, query, config)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for _, r := range results {
		label := color.GreenString("%.3f", r.Score)
		if r.Method == model.MethodContext {
			label = color.YellowString("%.3f", r.Score)
		}
		fmt.Printf("%s %s #%d %q\n", label, r.DocumentID, r.Chunk.Index, r.Chunk.Preview(120))
	}

	return nil
}

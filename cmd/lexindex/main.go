// lexindex command line entry point
// Indexes a parsed legal corpus and answers retrieval queries against it
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nainya/lexindex/internal/config"
	"github.com/nainya/lexindex/internal/logger"
	"github.com/nainya/lexindex/internal/metrics"
	"github.com/nainya/lexindex/pkg/chunk"
	"github.com/nainya/lexindex/pkg/embed"
	"github.com/nainya/lexindex/pkg/index"
	"github.com/nainya/lexindex/pkg/ingest"
	"github.com/nainya/lexindex/pkg/retrieve"
	"github.com/nainya/lexindex/pkg/store"
	"github.com/nainya/lexindex/pkg/store/memory"
	"github.com/nainya/lexindex/pkg/store/qdrantstore"
	"github.com/nainya/lexindex/pkg/store/sqlitestore"
	"github.com/nainya/lexindex/pkg/tree"
)

var (
	configPath = flag.String("config", "lexindex.yaml", "Configuration file path")
	mode       = flag.String("mode", "", "Operation: index | query | count")
	elements   = flag.String("elements", "", "Element JSON file to index")
	strict     = flag.Bool("strict", false, "Synthesize placeholder nodes for skipped levels")
	queryText  = flag.String("query", "", "Query text")
	topK       = flag.Int("top-k", 0, "Result count override")
	citation   = flag.String("citation", "", "Filter: exact citation match")
	subtree    = flag.String("subtree", "", "Filter: restrict to descendants of this node id")
	asOf       = flag.String("as-of", "", "Filter: effective date (YYYY-MM-DD)")
	timeout    = flag.Duration("timeout", 30*time.Second, "Per-operation deadline")
	serve      = flag.Bool("serve-metrics", false, "Expose /metrics while running")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lexindex: %v\n", err)
		os.Exit(1)
	}

	logger.InitGlobalLogger(logger.Config{Level: cfg.LogLevel, Pretty: true})
	log := logger.GetGlobalLogger()

	m := metrics.NewMetrics()
	sink := metrics.NewSink(m, log)

	if *serve {
		obsServer := metrics.NewObservabilityServer(cfg.MetricsPort, log)
		obsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obsServer.Shutdown(shutdownCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal("store open failed").Err(err).Send()
	}
	defer closeStore()

	emb, err := openEmbedder(cfg)
	if err != nil {
		log.Fatal("embedder init failed").Err(err).Send()
	}

	switch *mode {
	case "index":
		err = runIndex(ctx, cfg, log, m, sink, st, emb)
	case "query":
		err = runQuery(ctx, cfg, log, sink, st, emb)
	case "count":
		err = runCount(ctx, st)
	default:
		fmt.Fprintln(os.Stderr, "lexindex: -mode must be index, query or count")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed").Err(err).Str("mode", *mode).Send()
		os.Exit(1)
	}
}

func runIndex(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics, sink *metrics.Sink, st store.Store, emb embed.Embedder) error {
	if *elements == "" {
		return fmt.Errorf("index mode requires -elements")
	}
	els, err := ingest.LoadElements(*elements)
	if err != nil {
		return err
	}
	if err := st.Init(ctx, emb.Dimension()); err != nil {
		return err
	}

	writer := index.NewWriter(st, index.Config{
		BatchSize:   cfg.Writer.BatchSize,
		Workers:     cfg.Writer.Workers,
		MaxAttempts: cfg.Writer.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Writer.BaseBackoffMS) * time.Millisecond,
	}, sink)

	pipeline := &ingest.Pipeline{
		Builder:  &tree.Builder{Strict: *strict},
		Chunker:  &chunk.Chunker{MaxTokens: cfg.Chunker.MaxTokens},
		Embedder: emb,
		Writer:   writer,
		Log:      log,
		Sink:     sink,
	}

	_, report, err := pipeline.Run(ctx, els)
	if report != nil {
		status := "ok"
		switch {
		case len(report.Unwritten) > 0:
			status = "partial"
		case err != nil:
			status = "error"
		}
		kinds := make(map[string]int)
		for _, w := range report.TreeWarnings {
			kinds[string(w.Kind)]++
		}
		m.RecordPipelineRun(status, report.Chunks, len(report.SizeWarnings), len(report.Unwritten), kinds)
		if n, cntErr := st.Count(context.Background()); cntErr == nil {
			m.StoreRecordsTotal.Set(float64(n))
		}
		log.Info("indexing finished").
			Str("run_id", report.RunID).
			Int("nodes", report.Nodes).
			Int("chunks", report.Chunks).
			Int("written", report.Written).
			Int("unwritten", len(report.Unwritten)).
			Int("tree_warnings", len(report.TreeWarnings)).
			Int("size_warnings", len(report.SizeWarnings)).
			Dur("duration", report.Duration).
			Send()
		if len(report.Unwritten) > 0 {
			fmt.Fprintf(os.Stderr, "unwritten chunk ids (%d):\n", len(report.Unwritten))
			for _, id := range report.Unwritten {
				fmt.Fprintln(os.Stderr, id)
			}
		}
	}
	return err
}

func runQuery(ctx context.Context, cfg *config.Config, log *logger.Logger, sink *metrics.Sink, st store.Store, emb embed.Embedder) error {
	if *queryText == "" {
		return fmt.Errorf("query mode requires -query")
	}

	filter, err := buildFilter()
	if err != nil {
		return err
	}

	retriever := retrieve.New(st, emb, retrieve.Config{
		TopK:               cfg.Retriever.TopK,
		RerankDepth:        cfg.Retriever.RerankDepth,
		BoostWeight:        cfg.Retriever.BoostWeight,
		SiblingMergeWindow: cfg.Retriever.SiblingMergeWindow,
	}, sink)

	q := retrieve.Query{Text: *queryText, Filter: filter}
	if *topK > 0 {
		q.TopK = *topK
	}
	result, err := retriever.Retrieve(ctx, q)
	if err != nil {
		return err
	}

	log.RetrieveLogger().Info("query answered").
		Int("candidates", result.Candidates).
		Int("passages", len(result.Passages)).
		Send()
	for i, p := range result.Passages {
		fmt.Printf("%2d. %s  (score %.4f)\n", i+1, p.Citation, p.Score)
		if len(p.MergedChunkIDs) > 1 {
			fmt.Printf("    merged: %s\n", strings.Join(p.MergedChunkIDs, ", "))
		}
		fmt.Printf("    %s\n\n", indent(p.Text))
	}
	return nil
}

func runCount(ctx context.Context, st store.Store) error {
	n, err := st.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func buildFilter() (store.Filter, error) {
	var f store.Filter
	if *citation != "" {
		f.Equals = map[string]string{"citation": *citation}
	}
	f.AncestorContains = *subtree
	if *asOf != "" {
		t, err := time.Parse("2006-01-02", *asOf)
		if err != nil {
			return f, fmt.Errorf("invalid -as-of date %q", *asOf)
		}
		t = t.UTC()
		f.EffectiveAt = &t
	}
	return f, nil
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Type {
	case "", "memory":
		return memory.New(), func() {}, nil
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "lexindex.db"
		}
		s, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "qdrant":
		qc := cfg.Store.Qdrant
		if qc == nil {
			return nil, nil, fmt.Errorf("store type qdrant requires a qdrant config block")
		}
		s, err := qdrantstore.Open(qdrantstore.Config{
			Host:       qc.Host,
			Port:       qc.Port,
			APIKey:     qc.APIKey,
			UseTLS:     qc.UseTLS,
			Collection: qc.Collection,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

func openEmbedder(cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Embedder.Type {
	case "", "hashing":
		return embed.NewHashingEmbedder(cfg.Embedder.Dimension), nil
	case "openai":
		return embed.NewOpenAIClient(embed.OpenAIConfig{
			BaseURL:   cfg.Embedder.BaseURL,
			APIKeyEnv: cfg.Embedder.APIKeyEnv,
			Model:     cfg.Embedder.Model,
			Dimension: cfg.Embedder.Dimension,
		})
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n    ")
}

// Package main is the Chie CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/genbatech/chie/internal/analyze"
	"github.com/genbatech/chie/internal/blob"
	"github.com/genbatech/chie/internal/config"
	"github.com/genbatech/chie/internal/embedding"
	"github.com/genbatech/chie/internal/ingest"
	"github.com/genbatech/chie/internal/keyword"
	"github.com/genbatech/chie/internal/llm"
	"github.com/genbatech/chie/internal/models"
	"github.com/genbatech/chie/internal/search"
	"github.com/genbatech/chie/internal/server"
	"github.com/genbatech/chie/internal/store"
	"github.com/genbatech/chie/internal/vector"
	"github.com/genbatech/chie/internal/watcher"
	"github.com/genbatech/chie/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/chie/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "chie server" from the project dir uses the project's
// config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys may live in a local .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "list":
		runList()
	case "diffs":
		runDiffs()
	case "search":
		runSearch()
	case "analyze":
		runAnalyze()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("chie version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ing := components.Ingester
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watch := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			if _, err := ing.IngestFile(context.Background(), path, cfg.Ingest.RetainOriginals); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		if err := watch.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watch.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Ingester,
		components.Engine,
		components.Correlator,
		components.Store,
		components.VectorIndex,
		components.KeywordIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.VectorIndexPath != "" && components.VectorIndex != nil {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty = ingest directly into local storage")
	retainOriginal := fs.Bool("retain-original", false, "keep a copy of the uploaded bytes in the blob store")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: chie ingest [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	if *serverURL != "" {
		doc, err := ingestViaHTTP(*serverURL, path, *retainOriginal)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %s as %s (type %s)\n", path, doc.ID, doc.LogicalType)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	doc, err := components.Ingester.IngestFile(context.Background(), path, *retainOriginal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.Error(err))
		}
	}
	fmt.Printf("Ingested %s as %s (type %s)\n", path, doc.ID, doc.LogicalType)
}

func ingestViaHTTP(serverURL, path string, retainOriginal bool) (*models.ProcessedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(content); err != nil {
		return nil, err
	}
	if retainOriginal {
		if err := w.WriteField("retain_original", "true"); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/knowledge", w.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var doc models.ProcessedDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &doc, nil
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of documents")
	offset := fs.Int("offset", 0, "listing offset")
	query := fs.String("q", "", "filter by title/description substring")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	var docs []*models.DocumentSummary
	if *query != "" {
		docs, err = st.SearchDocuments(ctx, *query, *limit)
	} else {
		docs, err = st.ListDocuments(ctx, *offset, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	for _, d := range docs {
		fmt.Printf("%s  %-24s  %s  %s\n", d.ID, d.LogicalType, d.CreatedAt.Format(time.RFC3339), d.Title)
	}
}

func runDiffs() {
	fs := flag.NewFlagSet("diffs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: chie diffs [flags] <logical-type>")
		os.Exit(1)
	}
	logicalType := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	diffs, err := st.ListDiffsByType(context.Background(), logicalType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Diffs failed: %v\n", err)
		os.Exit(1)
	}
	if len(diffs) == 0 {
		fmt.Printf("No diffs recorded for %q\n", logicalType)
		return
	}
	for _, d := range diffs {
		status := fmt.Sprintf("+%d -%d", d.AddedCount(), d.RemovedCount())
		if d.Unavailable {
			status = "unavailable"
		}
		fmt.Printf("%s  %s  %s\n", d.CreatedAt.Format(time.RFC3339), d.ID, status)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 10, "number of results")
	logicalType := fs.String("type", "", "restrict to one logical type")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: chie search [flags] <query>")
		os.Exit(1)
	}
	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryStr == "" {
		fmt.Println("Usage: chie search [flags] <query>")
		os.Exit(1)
	}

	query := &models.SearchQuery{Text: queryStr, Limit: *limit, LogicalType: *logicalType}
	body, _ := json.Marshal(query)
	resp, err := http.Post(*serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Search failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(response)
		return
	}
	fmt.Printf("%d result(s) in %dms\n", response.Total, response.TookMS)
	for i, r := range response.Results {
		fmt.Printf("%d. [%.3f] %s (%s)\n", i+1, r.Score, r.Document.Title, r.Document.LogicalType)
		if r.BestChunk != "" {
			snippet := r.BestChunk
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			fmt.Printf("   %s\n", snippet)
		}
	}
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	reportPath := fs.String("report", "", "path to a failure report JSON file (default: stdin)")
	_ = fs.Parse(os.Args[2:])

	var (
		raw []byte
		err error
	)
	if *reportPath != "" {
		raw, err = os.ReadFile(*reportPath)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read report: %v\n", err)
		os.Exit(1)
	}

	var report models.FailureReport
	if err := json.Unmarshal(raw, &report); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid report JSON: %v\n", err)
		os.Exit(1)
	}
	body, _ := json.Marshal(map[string]interface{}{"report": report})
	resp, err := http.Post(*serverURL+"/api/v1/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analyze failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Analyze failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("risk:            %s\n", result.RiskLevel)
	fmt.Printf("est. resolution: %s\n", result.EstimatedResolutionTime)
	fmt.Println("suggested actions:")
	for _, a := range result.SuggestedActions {
		fmt.Printf("  - %s\n", a)
	}
	if len(result.RankedDocuments) > 0 {
		fmt.Println("related documents:")
		for _, d := range result.RankedDocuments {
			fmt.Printf("  [%.3f] %s\n", d.Score, d.DocumentID)
		}
	}
	if result.Narrative != "" {
		fmt.Printf("\n%s\n", result.Narrative)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	for _, key := range []string{"documents", "chunks", "vector_index_size", "keyword_doc_count", "disk_usage_bytes", "ingest_halted"} {
		if v, ok := status[key]; ok {
			fmt.Printf("%-20s %v\n", key+":", v)
		}
	}
}

// Components holds initialized services.
type Components struct {
	Store        store.Store
	Blobs        blob.Store
	Embedder     embedding.Embedder
	VectorIndex  vector.Index
	KeywordIndex keyword.Index
	Ingester     *ingest.Ingester
	Engine       *search.Engine
	Correlator   *analyze.Correlator
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	blobs, err := blob.NewDiskStore(cfg.Storage.BlobDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		embedder, err = embedding.NewRemoteEmbedder(embedding.RemoteConfig{
			BaseURL:           cfg.Embedding.BaseURL,
			APIKey:            os.Getenv("CHIE_EMBEDDING_API_KEY"),
			Model:             cfg.Embedding.Model,
			Dimensions:        cfg.Embedding.Dimensions,
			Timeout:           time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			CacheSize:         cfg.Embedding.CacheSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	ctx := context.Background()
	vectorIndex, err := vector.NewIndex(ctx, cfg.Vector.Type, vector.Options{
		Dimensions:       cfg.Embedding.Dimensions,
		QdrantAddr:       cfg.Vector.QdrantAddr,
		QdrantCollection: cfg.Vector.QdrantCollection,
	})
	if err != nil {
		// Fall back to memory when the configured backend is unreachable.
		if cfg.Vector.Type != "memory" && cfg.Vector.Type != "" {
			logger.Warn("failed to create vector index, falling back to memory",
				zap.String("requested_type", cfg.Vector.Type),
				zap.Error(err))
			vectorIndex, err = vector.NewIndex(ctx, "memory", vector.Options{Dimensions: cfg.Embedding.Dimensions})
		}
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	if err := rebuildVectorIndex(ctx, st, vectorIndex, logger); err != nil {
		return nil, fmt.Errorf("failed to rebuild vector index: %w", err)
	}
	logger.Info("vector index initialized",
		zap.String("type", cfg.Vector.Type),
		zap.Int("size", vectorIndex.Size()))

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	if err := rebuildKeywordIndex(ctx, st, keywordIndex, logger); err != nil {
		return nil, fmt.Errorf("failed to rebuild keyword index: %w", err)
	}

	chunker := ingest.NewChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap)
	ingester := ingest.NewIngester(st, blobs, embedder, vectorIndex, keywordIndex, chunker,
		ingest.WithLogger(logger))

	engine := search.NewEngine(st, embedder, vectorIndex, keywordIndex, search.Config{
		TopKCandidates: cfg.Search.TopKCandidates,
		DefaultLimit:   cfg.Search.DefaultLimit,
		KeywordWeight:  cfg.Search.KeywordWeight,
		SemanticWeight: cfg.Search.SemanticWeight,
	})

	correlatorOpts := []analyze.Option{analyze.WithLogger(logger)}
	if cfg.LLM.Enabled {
		narrative, err := llm.NewClient(llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  os.Getenv("CHIE_LLM_API_KEY"),
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			logger.Warn("narrative provider disabled", zap.Error(err))
		} else {
			correlatorOpts = append(correlatorOpts, analyze.WithNarrativeProvider(narrative))
		}
	}
	correlator := analyze.NewCorrelator(st, embedder, correlatorOpts...)

	return &Components{
		Store:        st,
		Blobs:        blobs,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Ingester:     ingester,
		Engine:       engine,
		Correlator:   correlator,
	}, nil
}

// rebuildKeywordIndex repopulates an empty keyword index from the store, for
// when the Bleve directory was deleted but the database survived.
func rebuildKeywordIndex(ctx context.Context, st store.Store, kw keyword.Index, logger *zap.Logger) error {
	count, err := kw.DocCount()
	if err != nil || count > 0 {
		return err
	}
	docCount, err := st.CountDocuments(ctx)
	if err != nil || docCount == 0 {
		return err
	}
	logger.Info("rebuilding keyword index from store", zap.Int64("documents", docCount))
	const pageSize = 100
	for offset := 0; ; offset += pageSize {
		summaries, err := st.ListDocuments(ctx, offset, pageSize)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			return nil
		}
		for _, sum := range summaries {
			doc, err := st.GetDocument(ctx, sum.ID)
			if err != nil {
				return err
			}
			if err := kw.Index(ctx, doc); err != nil {
				return err
			}
		}
	}
}

// rebuildVectorIndex re-adds stored chunk embeddings when the index holds
// fewer entries than the database, for when the snapshot file was lost or is
// stale after a crash. Remove-then-add keeps partially loaded snapshots from
// accumulating duplicates.
func rebuildVectorIndex(ctx context.Context, st store.Store, vx vector.Index, logger *zap.Logger) error {
	chunkCount, err := st.CountChunks(ctx)
	if err != nil || chunkCount == 0 {
		return err
	}
	if int64(vx.Size()) >= chunkCount {
		return nil
	}
	logger.Info("rebuilding vector index from store",
		zap.Int("index_size", vx.Size()),
		zap.Int64("chunks", chunkCount))
	const pageSize = 100
	for offset := 0; ; offset += pageSize {
		summaries, err := st.ListDocuments(ctx, offset, pageSize)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			return nil
		}
		for _, sum := range summaries {
			chunks, err := st.GetChunksByDocumentID(ctx, sum.ID)
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				continue
			}
			chunkIDs := make([]string, len(chunks))
			entries := make([]vector.Entry, len(chunks))
			for i, ch := range chunks {
				chunkIDs[i] = ch.ID
				entries[i] = vector.Entry{ChunkID: ch.ID, DocumentID: ch.DocumentID, Vector: ch.Embedding}
			}
			if err := vx.Remove(ctx, chunkIDs); err != nil {
				return err
			}
			if err := vx.Add(ctx, entries); err != nil {
				return err
			}
		}
	}
}

func printUsage() {
	fmt.Println(`chie - failure-analysis knowledge base

Usage:
  chie server [flags]              Start the HTTP server
  chie ingest [flags] <file>       Ingest a knowledge document
  chie list [flags]                List stored documents
  chie diffs [flags] <type>        Show version diffs for a logical type
  chie search [flags] <query>      Hybrid search over the knowledge base
  chie analyze [flags]             Correlate a failure report (JSON on stdin)
  chie status [flags]              Show server status
  chie version                     Show version
  chie help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/chie/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string      Config file path (direct mode)
  --server string      Server URL; empty ingests directly into local storage
  --retain-original    Keep a copy of the uploaded bytes in the blob store

Search Flags:
  --server string    Server URL (default: http://localhost:8080)
  --limit int        Number of results (default: 10)
  --type string      Restrict to one logical type
  --output string    Output format: text or json

Analyze Flags:
  --server string    Server URL (default: http://localhost:8080)
  --report string    Path to failure report JSON (default: stdin)

Examples:
  chie server
  chie ingest maintenance_manual.pdf
  chie ingest --retain-original inspection_sheet.xlsx
  chie search "brake pad wear"
  chie diffs pdf
  chie analyze --report failure.json
  chie status --output json`)
}

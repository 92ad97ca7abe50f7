// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/plantops/kotae/internal/answer"
	"github.com/plantops/kotae/internal/cli"
	"github.com/plantops/kotae/internal/config"
	"github.com/plantops/kotae/internal/embedding"
	"github.com/plantops/kotae/internal/ingest"
	"github.com/plantops/kotae/internal/lexical"
	"github.com/plantops/kotae/internal/models"
	"github.com/plantops/kotae/internal/refiner"
	"github.com/plantops/kotae/internal/retrieval"
	"github.com/plantops/kotae/internal/server"
	"github.com/plantops/kotae/internal/store"
	"github.com/plantops/kotae/internal/vecindex"
	"github.com/plantops/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "kotae server" from the project dir uses the project's
// config (including debug). Returns the config and the path actually loaded.
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
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
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

	srv := server.NewServer(
		components.Retriever,
		components.Synthesizer,
		components.Ingester,
		components.Records,
		components.Index,
		cfg.Retrieval.TopN,
		&cfg.Server,
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
	if err := components.Index.Persist(); err != nil {
		logger.Warn("vector index persist failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// askArgsReorder moves any flags (and their values) that appear after the
// question to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument.
func askArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "Question is all remaining arguments joined by spaces. Multi-word questions work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kotae ask any critical pump alerts today
  kotae ask "what happened to compressor C-204?"
  kotae ask --output json "recent temperature warnings"
`)
}

func runAsk() {
	askArgs := askArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage when server is not running)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(askArgs)

	if fs.NArg() < 1 {
		printAskUsage(fs)
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	if *serverURL != "" {
		response, err := queryViaHTTP(*serverURL, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct storage access (when server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	outcome, err := components.Retriever.Retrieve(ctx, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	draft := components.Synthesizer.Synthesize(ctx, question, outcome.Evidence)
	response := &models.QueryResponse{
		Answer:            draft.Narrative,
		RelevantLogs:      models.ToRelevantLogs(outcome.Top(cfg.Retrieval.TopN)),
		SuggestedFollowup: draft.Followup,
	}
	if err := cli.WriteAnswer(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func queryViaHTTP(serverURL, question string) (*models.QueryResponse, error) {
	body, err := json.Marshal(models.QueryRequest{Question: question})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// readRecordsFile parses a JSON file holding either a bare array of record
// inputs or an object with a "records" array.
func readRecordsFile(path string) ([]models.RecordInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []models.RecordInput
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Records []models.RecordInput `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse records file: %w", err)
	}
	return wrapped.Records, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage when server is not running)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ingest [flags] <records.json>")
		os.Exit(1)
	}
	records, err := readRecordsFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read records: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "No records in file")
		os.Exit(1)
	}

	if *serverURL != "" {
		body, _ := json.Marshal(map[string]interface{}{"records": records})
		resp, err := http.Post(*serverURL+"/api/v1/records", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Ingest failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Ingested %d record(s)\n", len(records))
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	stored, err := components.Ingester.IngestRecords(context.Background(), records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %d record(s)\n", len(stored))
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Records             int64  `json:"records"`
	VectorIndexSize     int    `json:"vector_index_size"`
	VectorIndexState    string `json:"vector_index_state"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()

		count, err := components.Records.Count(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count records failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Records:             count,
			VectorIndexSize:     components.Index.Size(),
			VectorIndexState:    indexStateName(components.Index.State()),
			EmbeddingDimensions: components.Index.Dimensions(),
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("records:            %d   # count of ingested log records\n", status.Records)
		fmt.Printf("vector_index_size:  %d   # count of vectors in semantic index\n", status.VectorIndexSize)
		fmt.Printf("vector_index_state: %s\n", status.VectorIndexState)
		if status.EmbeddingDimensions > 0 {
			fmt.Printf("embedding_dims:     %d\n", status.EmbeddingDimensions)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func indexStateName(state vecindex.State) string {
	switch state {
	case vecindex.StateInitialized:
		return "initialized"
	case vecindex.StatePopulated:
		return "populated"
	default:
		return "uninitialized"
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Records     store.RecordStore
	Provider    embedding.Provider
	Index       *vecindex.Manager
	Retriever   *retrieval.Orchestrator
	Synthesizer *answer.Synthesizer
	Ingester    *ingest.Service
}

func (c *Components) Close() {
	if c.Records != nil {
		_ = c.Records.Close()
	}
	if c.Provider != nil {
		_ = c.Provider.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	records, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider, err := newProvider(cfg, logger)
	if err != nil {
		_ = records.Close()
		return nil, err
	}

	index := vecindex.NewManager(cfg.Storage.VectorIndexPath, cfg.Storage.IDMapPath)
	if err := index.Load(); err != nil {
		_ = records.Close()
		_ = provider.Close()
		return nil, fmt.Errorf("failed to load vector index: %w", err)
	}
	logger.Info("vector index loaded",
		zap.Int("size", index.Size()),
		zap.Int("dimensions", index.Dimensions()))

	fallback := lexical.NewRetriever(records, cfg.Retrieval.LexicalScanLimit)
	retriever := retrieval.NewOrchestrator(provider, index, fallback, records, &cfg.Retrieval, logger)

	var ref refiner.Refiner
	if cfg.Refiner.Enabled {
		r, err := refiner.NewOpenAIRefiner(os.Getenv("OPENAI_API_KEY"), cfg.Refiner.Model, cfg.Refiner.MaxTokens)
		if err != nil {
			logger.Warn("refiner disabled", zap.Error(err))
		} else {
			ref = r
		}
	}
	synthesizer := answer.NewSynthesizer(ref, cfg.Refiner.Timeout(), logger)
	ingester := ingest.NewService(records, provider, index, logger)

	return &Components{
		Records:     records,
		Provider:    provider,
		Index:       index,
		Retriever:   retriever,
		Synthesizer: synthesizer,
		Ingester:    ingester,
	}, nil
}

func newProvider(cfg *config.Config, logger *zap.Logger) (embedding.Provider, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), cfg.Embedding.Model, cfg.Embedding.Dimensions)
	case "onnx":
		provider, err := embedding.NewONNXProvider(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			logger.Warn("ONNX provider unavailable, falling back to mock", zap.Error(err))
			return embedding.NewMockProvider(cfg.Embedding.Dimensions), nil
		}
		return provider, nil
	case "mock":
		return embedding.NewMockProvider(cfg.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

func printUsage() {
	fmt.Println(`kotae - Natural-language Q&A over equipment logs

Usage:
  kotae server [flags]             Start the HTTP server
  kotae ask [flags] <question>     Ask a question about ingested logs
  kotae ingest [flags] <file>      Ingest a JSON batch of log records
  kotae status [flags]             Show record/index status
  kotae version                    Show version
  kotae help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to use direct storage when server is not running.
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ask "any critical pump alerts today?"
  kotae ask --output json recent temperature warnings
  kotae ingest logs.json
  kotae status --output json`)
}

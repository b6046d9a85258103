package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/raseed/receipt-pipeline/internal/docstore"
	"github.com/raseed/receipt-pipeline/internal/extraction"
	"github.com/raseed/receipt-pipeline/internal/insights"
	"github.com/raseed/receipt-pipeline/internal/mailfetch"
	"github.com/raseed/receipt-pipeline/internal/pipeline"
	"github.com/raseed/receipt-pipeline/internal/predictions"
	"github.com/raseed/receipt-pipeline/internal/server"
	"github.com/raseed/receipt-pipeline/internal/source"
	"github.com/raseed/receipt-pipeline/internal/warehouse"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-pipeline")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		backend         = fs.StringLong("backend", "gemini", "Extraction backend: 'gemini' or 'ollama'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava)")
		sourceType      = fs.StringLong("source", "gcs", "Object source: 'gcs' or 'local'")
		storagePath     = fs.StringLong("storage", "./receipts", "Base directory for the local object source")
		store           = fs.StringLong("docstore", "firestore", "Document store: 'firestore' or 'bolt'")
		dbPath          = fs.StringLong("db", "receipt-pipeline.db", "Database file path for the bolt document store")
		project         = fs.StringLong("project", "", "Google Cloud project ID")
		dataset         = fs.StringLong("dataset", "receipts", "BigQuery dataset name")
		rawTable        = fs.StringLong("raw-table", "raw_receipts", "Table for raw extracted receipts")
		enrichedTable   = fs.StringLong("enriched-table", "enriched_receipts", "Table for enriched receipts")
		predictionTable = fs.StringLong("prediction-table", "prediction_results", "Table for prediction results")
		collection      = fs.StringLong("collection", "receipts", "Document collection for raw receipts")
		insightsColl    = fs.StringLong("insights-collection", "receipt_insights", "Document collection for derived insights")
		intakeBucket    = fs.StringLong("intake-bucket", "raw-receipts", "Bucket that email bodies are uploaded into")
		gmailToken      = fs.StringLong("gmail-token", "", "Path to a Gmail authorized-user token file (enables the Gmail trigger)")
		rasterizePDF    = fs.BoolLong("rasterize-pdf", "Rasterize PDF pages to images before extraction (required for ollama)")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username for the run endpoints (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password for the run endpoints (optional)")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_PIPELINE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *project == "" && (*store == "firestore" || *sourceType == "gcs") {
		slog.Error("A Google Cloud project is required. Set --project or RECEIPT_PIPELINE_PROJECT")
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize extraction backend
	var generator extraction.Generator
	var err error
	switch *backend {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini backend...", "model", *geminiModel)
		generator, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama backend...", "url", *ollamaURL, "model", *ollamaModel)
		generator, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
		// Ollama cannot consume PDFs inline
		*rasterizePDF = true
	default:
		slog.Error("Invalid extraction backend", "backend", *backend, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer generator.Close()

	// Initialize object source
	var objects source.ObjectStore
	switch *sourceType {
	case "gcs":
		slog.Info("Initializing Cloud Storage source...")
		objects, err = source.NewGCS(ctx)
	case "local":
		slog.Info("Initializing local source...", "path", *storagePath)
		objects, err = source.NewLocal(*storagePath)
	default:
		slog.Error("Invalid object source", "source", *sourceType, "valid", "gcs or local")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize object source", "error", err)
		os.Exit(1)
	}
	defer objects.Close()

	// Initialize document store
	var docs docstore.Store
	switch *store {
	case "firestore":
		slog.Info("Initializing Firestore...", "project", *project)
		docs, err = docstore.NewFirestore(ctx, *project)
	case "bolt":
		slog.Info("Initializing bolt document store...", "path", *dbPath)
		docs, err = docstore.NewBoltStore(*dbPath)
	default:
		slog.Error("Invalid document store", "docstore", *store, "valid", "firestore or bolt")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize document store", "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	// Initialize warehouse
	slog.Info("Initializing BigQuery...", "project", *project, "dataset", *dataset)
	wh, err := warehouse.NewBigQuery(ctx, *project, *dataset)
	if err != nil {
		slog.Error("Failed to initialize BigQuery", "error", err)
		os.Exit(1)
	}
	defer wh.Close()

	// Initialize services
	preparer := extraction.NewPreparer(extraction.NewFFmpegSampler(), *rasterizePDF)
	pipelineService := pipeline.NewService(objects, preparer, generator, docs, wh, pipeline.Config{
		ReceiptsCollection: *collection,
		RawTable:           *rawTable,
		EnrichedTable:      *enrichedTable,
	})

	qualifiedRaw := fmt.Sprintf("%s.%s.%s", *project, *dataset, *rawTable)
	qualifiedEnriched := fmt.Sprintf("%s.%s.%s", *project, *dataset, *enrichedTable)
	modelPrefix := fmt.Sprintf("%s.%s", *project, *dataset)
	insightService := insights.NewService(wh, docs, qualifiedRaw, *insightsColl)
	predictionService := predictions.NewService(wh, qualifiedEnriched, modelPrefix, *predictionTable)

	var mailService server.MailHandler
	if *gmailToken != "" {
		slog.Info("Initializing Gmail trigger...", "token", *gmailToken)
		gmailSource, err := mailfetch.NewGmailSource(ctx, *gmailToken)
		if err != nil {
			slog.Error("Failed to initialize Gmail", "error", err)
			os.Exit(1)
		}
		mailService = mailfetch.NewService(gmailSource, objects, *intakeBucket)
	} else {
		mailService = disabledMail{}
	}

	// Initialize server
	basicAuth := server.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	srv := server.New(pipelineService, mailService, insightService, predictionService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// disabledMail rejects Gmail pushes when no token file is configured.
type disabledMail struct{}

func (disabledMail) HandlePush(context.Context, []byte) error {
	return fmt.Errorf("gmail trigger is not configured")
}

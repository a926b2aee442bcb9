// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/ragdesk/internal/config"
	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/chat"
	db "github.com/markdave123-py/ragdesk/internal/core/database"
	ingestion "github.com/markdave123-py/ragdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragdesk/internal/core/llm"
	objectclient "github.com/markdave123-py/ragdesk/internal/core/object-client"
	"github.com/markdave123-py/ragdesk/internal/core/summarizer"
	"github.com/markdave123-py/ragdesk/internal/core/tasks"
	"github.com/markdave123-py/ragdesk/internal/core/vectorstore"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/services"
)

// App owns every long-lived component. Build it with NewApp and release it
// with Close.
type App struct {
	Config      *config.Config
	DBClient    *db.DatabaseClient
	Vectors     core.VectorStore
	Providers   *llm.Providers
	Archive     *objectclient.S3Client
	Tasks       *tasks.Tracker
	Summaries   *summarizer.Runner
	Ingestor    *ingestion.DocumentIngestor
	Documents   *services.DocumentService
	Sessions    *services.SessionService
	Collections *services.CollectionService
	Chat        *chat.Orchestrator

	stopSummaries context.CancelFunc
	log           *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.NewModuleLogger("app", "bootstrap")

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{Config: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	log.Info("database initialized and ready", "driver", cfg.DBDriver)

	pg := dbClient.SQL()
	if cfg.DBDriver != "postgres" {
		pg = nil
	}
	vectors, err := vectorstore.New(appCtx, cfg, pg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the vector store, %w", err)
	}
	a.Vectors = vectors
	log.Info("vector store initialized and ready", "backend", cfg.VectorBackend)

	providers, err := llm.NewProviders(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the inference providers, %w", err)
	}
	a.Providers = providers

	var storage core.ObjectClient
	if cfg.ArchiveBackend == "s3" {
		s3c, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		a.Archive = s3c
		storage = s3c
		log.Info("object client initialized and ready", "bucket", s3c.Bucket())
	}

	a.Tasks = tasks.NewTracker(dbClient, dbClient)
	if n, err := a.Tasks.RecoverOnStartup(appCtx); err != nil {
		log.Error("task recovery failed", "error", err)
	} else if n > 0 {
		log.Warn("recovered interrupted tasks", "count", n)
	}

	// summaries outlive the bootstrap timeout
	runCtx, stop := context.WithCancel(ctx)
	a.stopSummaries = stop
	sum := summarizer.New(providers.LLM, summarizer.Config{
		SectionSize: cfg.SummaryChunkSize,
		MaxSections: cfg.SummaryMaxChunks,
	})
	a.Summaries = summarizer.NewRunner(runCtx, sum, dbClient, a.Tasks, cfg.SummaryWorkers)

	a.Ingestor = ingestion.NewDocumentIngestor(
		dbClient,
		vectors,
		providers.Embedder,
		ingestion.NewDocconvExtractor(cfg.UseReadability),
		a.Tasks,
		a.Summaries,
		&ingestion.IngestConfig{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			BatchSize:    cfg.EmbedBatchSize,
		},
	)

	a.Documents = services.NewDocumentService(dbClient, a.Ingestor, storage, cfg.BucketName, cfg.UploadDir)
	a.Sessions = services.NewSessionService(dbClient)
	a.Collections = services.NewCollectionService(vectors, dbClient, dbClient)
	classifier, err := chat.NewClassifier(cfg.IntentClassifier, providers.LLM)
	if err != nil {
		return nil, err
	}
	a.Chat = chat.NewOrchestrator(providers.LLM, providers.Embedder, vectors, chat.Config{
		RetrievedDocs: cfg.RetrievedDocsCount,
		HistoryWindow: cfg.ChatHistoryWindow,
		Params:        decodingParams(cfg.Decoding),
	}, chat.WithClassifier(classifier))

	ok = true
	log.Info("application ready", "profile", cfg.Profile, "llm", cfg.LLMBackend, "embed", cfg.EmbedBackend)
	return a, nil
}

// Close stops background summaries, waits for running ones to return and
// releases every connection.
func (a *App) Close() {
	if a.stopSummaries != nil {
		a.stopSummaries()
	}
	if a.Summaries != nil {
		a.Summaries.Wait()
	}

	var errs []error
	if a.Providers != nil {
		errs = append(errs, a.Providers.Close())
	}
	if a.Vectors != nil {
		errs = append(errs, a.Vectors.Close())
	}
	if a.DBClient != nil {
		errs = append(errs, a.DBClient.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Error("shutdown", "error", err)
	}
}

func decodingParams(d config.DecodingConfig) core.DecodingParams {
	return core.DecodingParams{
		Temperature:     d.Temperature,
		TopP:            d.TopP,
		MaxTokens:       d.MaxTokens,
		Stop:            d.Stop,
		PresencePenalty: d.PresencePenalty,
		RepeatPenalty:   d.RepeatPenalty,
	}
}

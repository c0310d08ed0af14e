package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/api/handlers"
	"github.com/markdave123-py/Examina/internal/config"
	"github.com/markdave123-py/Examina/internal/core"
	db "github.com/markdave123-py/Examina/internal/core/database"
	"github.com/markdave123-py/Examina/internal/core/extraction_engine"
	"github.com/markdave123-py/Examina/internal/core/ingestion_engine"
	"github.com/markdave123-py/Examina/internal/core/llm"
	"github.com/markdave123-py/Examina/internal/core/notify"
	objectclient "github.com/markdave123-py/Examina/internal/core/object-client"
	"github.com/markdave123-py/Examina/internal/logging"
	"github.com/markdave123-py/Examina/internal/services"
)

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Selector     *llm.ModelSelector
	ExamWorkers  *ingestion_engine.ExamIngestor
	Server       *Server

	gemini []*llm.GeminiLLM
	log    *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("app.db_ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg, log)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}
	log.Info("app.object_store_ready")

	a := &App{DBClient: dbClient, ObjectClient: objClient, log: log}

	primary, fallback, err := a.completionClients(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Selector = llm.NewModelSelector(llm.SelectorConfig{
		Primary:       primary,
		Fallback:      fallback,
		Model:         cfg.GenModel,
		Candidates:    cfg.CandidateModels,
		CheckInterval: cfg.ModelCheckInterval,
		Logger:        log.Named("models"),
	})
	if !a.Selector.Configured() {
		log.Warn("app.ai_not_configured", zap.String("hint", "set GEMINI_API_KEY"))
	}

	pipeline := extraction_engine.NewPipeline(a.Selector, pipelineConfig(cfg), extraction_engine.WithLogger(log.Named("extract")))

	var notifier core.Notifier = notify.NewLogNotifier(log.Named("notify"))
	if cfg.SendGridAPIKey != "" {
		notifier = notify.NewSendgridNotifier(cfg.SendGridAPIKey, cfg.MailFrom, log.Named("notify"))
	}

	a.ExamWorkers = ingestion_engine.NewExamIngestor(
		dbClient, objClient,
		ingestion_engine.NewDocconvExtractor(false),
		pipeline,
		notifier,
		ingestion_engine.IngestConfig{Workers: cfg.Workers},
		log.Named("jobs"),
	)

	examService := services.NewExamService(dbClient, objClient, a.ExamWorkers, pipeline, a.Selector, cfg.BucketName, log)
	a.Server = NewServer(cfg,
		handlers.NewExamHandler(examService, log),
		handlers.NewAIHandler(examService, log),
		log.Named("http"))

	return a, nil
}

// completionClients builds one Gemini client per configured key. A missing
// key leaves that slot nil.
func (a *App) completionClients(ctx context.Context, cfg *config.Config) (primary, fallback core.CompletionClient, err error) {
	if cfg.AIAPIKey != "" {
		g, err := llm.NewGeminiLLM(ctx, cfg.AIAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("primary completion client: %w", err)
		}
		a.gemini = append(a.gemini, g)
		primary = g
	}
	if cfg.AIFallbackAPIKey != "" {
		g, err := llm.NewGeminiLLM(ctx, cfg.AIFallbackAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback completion client: %w", err)
		}
		a.gemini = append(a.gemini, g)
		fallback = g
	}
	return primary, fallback, nil
}

func pipelineConfig(cfg *config.Config) extraction_engine.Config {
	pc := extraction_engine.DefaultConfig()
	pc.ChunkSize = cfg.ChunkSize
	pc.InterChunkDelay = cfg.InterChunkDelay
	pc.CallTimeout = cfg.CallTimeout
	pc.Concurrency = cfg.ChunkConcurrency
	pc.MinQuestionLength = cfg.MinQuestionLength
	pc.Retry.BaseDelay = cfg.BaseBackoff
	pc.Retry.MaxRetries = cfg.MaxRetries
	return pc
}

// Start launches model revalidation, the exam workers and the HTTP server.
// It returns once the server stops.
func (a *App) Start(ctx context.Context) error {
	if a.Selector.Configured() {
		go func() {
			if model, err := a.Selector.Refresh(ctx); err != nil {
				a.log.Warn("app.model_check_failed", zap.Error(err))
			} else {
				a.log.Info("app.model_selected", zap.String("model", model))
			}
			a.Selector.Run(ctx)
		}()
	}
	a.ExamWorkers.Start(ctx)
	return a.Server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.Server.Shutdown(ctx)
	a.Close()
	return err
}

func (a *App) Close() {
	var errs []error
	for _, g := range a.gemini {
		errs = append(errs, g.Close())
	}
	if a.DBClient != nil {
		errs = append(errs, a.DBClient.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("app.close", zap.Error(err))
	}
}

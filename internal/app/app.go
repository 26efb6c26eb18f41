package app

import (
	"context"
	"errors"
	"log"

	"github.com/justsurfingit/job-o-matic/internal/apply"
	"github.com/justsurfingit/job-o-matic/internal/bundle"
	"github.com/justsurfingit/job-o-matic/internal/config"
	"github.com/justsurfingit/job-o-matic/internal/database"
	"github.com/justsurfingit/job-o-matic/internal/services"
	"gorm.io/gorm"
)

// App holds the services shared by the api server and jobctl.
type App struct {
	Config  config.Config
	DB      *gorm.DB
	LLM     *services.LLMService
	Jobs    *services.JobService
	Matcher *services.MatcherService
	Bulk    *services.BulkService
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}

	var tailorer services.Tailorer = services.TemplateTailor{}
	llm, err := services.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	switch {
	case errors.Is(err, services.ErrNoAPIKey):
		log.Println("⚠️  GEMINI_API_KEY is empty. Using template tailoring; extraction is disabled.")
	case err != nil:
		return nil, err
	default:
		tailorer = llm
	}

	jobs := services.NewJobService(db)
	adapters := apply.NewAdapters(apply.Options{
		GreenhouseAPIRoot: cfg.GreenhouseAPIRoot,
		LeverAPIRoot:      cfg.LeverAPIRoot,
		UserAgent:         cfg.UserAgent,
		CVDir:             cfg.CVDir,
		Timeout:           cfg.SubmitTimeout,
	})
	bulk := services.NewBulkService(jobs, bundle.NewStore(cfg.BundleRoot), tailorer, adapters, services.NewPacer(cfg.SubmitSpacing))
	bulk.PreviewTimeout = cfg.PreviewTimeout
	bulk.CandidateName = cfg.CandidateName

	return &App{
		Config:  cfg,
		DB:      db,
		LLM:     llm,
		Jobs:    jobs,
		Matcher: services.NewMatcherService(db),
		Bulk:    bulk,
	}, nil
}

func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/qinqiang2000/RedBlueMatcher/internal/config"
	"github.com/qinqiang2000/RedBlueMatcher/internal/email/noop"
	"github.com/qinqiang2000/RedBlueMatcher/internal/email/ses"
	"github.com/qinqiang2000/RedBlueMatcher/internal/handler"
	"github.com/qinqiang2000/RedBlueMatcher/internal/jobs"
	"github.com/qinqiang2000/RedBlueMatcher/internal/match"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
	"github.com/qinqiang2000/RedBlueMatcher/internal/repository/postgres"
	"github.com/qinqiang2000/RedBlueMatcher/internal/router"
	"github.com/qinqiang2000/RedBlueMatcher/internal/service"
	s3storage "github.com/qinqiang2000/RedBlueMatcher/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	billRepo := postgres.NewBillRepo(db)
	candidateRepo := postgres.NewCandidateRepo(db)
	matchRepo := postgres.NewMatchRepo(db)
	skuRepo := postgres.NewSKURepo(db)
	runRepo := postgres.NewRunRepo(db)
	tenantRepo := postgres.NewTenantRepo(db)
	userRepo := postgres.NewUserRepo(db)

	objectStorage, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	var emailSender port.EmailSender
	if cfg.Email.Provider == "ses" {
		emailSender, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName, cfg.Email.FrontendURL)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	} else {
		emailSender = noop.NewNoopSender()
	}

	engine := match.New(billRepo, candidateRepo, matchRepo, time.Now)
	exporter := service.NewWorkbookExporter(matchRepo, skuRepo, objectStorage, cfg.Match.ResultBucket)
	notifier := service.NewEmailNotifier(userRepo, emailSender)
	orchestrator := service.NewOrchestrator(engine, runRepo, service.OrchestratorConfig{
		Concurrency:  cfg.Match.Concurrency,
		RunTimeout:   cfg.Match.RunTimeout,
		MaxBatchSize: cfg.Match.MaxBatchSize,
	}, exporter, notifier, billRepo, skuRepo)

	authSvc := service.NewAuthService(userRepo, tenantRepo, cfg.JWT)
	jobsClient := jobs.NewClient(cfg.Redis.Addr, cfg.Redis.DB)
	defer jobsClient.Close()

	authH := handler.NewAuthHandler(authSvc)
	batchH := handler.NewBatchHandler(orchestrator, jobsClient, objectStorage, cfg.Match.ResultBucket, cfg.Match.PresignExpiry)
	healthH := handler.NewHealthHandler(db)

	r := router.Setup(authSvc, authH, batchH, healthH, cfg.CORS.AllowedOrigins)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

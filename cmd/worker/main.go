package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qinqiang2000/RedBlueMatcher/internal/config"
	"github.com/qinqiang2000/RedBlueMatcher/internal/email/noop"
	"github.com/qinqiang2000/RedBlueMatcher/internal/email/ses"
	"github.com/qinqiang2000/RedBlueMatcher/internal/jobs"
	"github.com/qinqiang2000/RedBlueMatcher/internal/match"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
	"github.com/qinqiang2000/RedBlueMatcher/internal/repository/postgres"
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

	batchHandler := jobs.NewBatchMatchHandler(orchestrator)
	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:   cfg.Redis.Addr,
		RedisDB:     cfg.Redis.DB,
		Concurrency: cfg.Match.Concurrency,
		Handler:     batchHandler,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("worker starting, draining batch-match queue")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("worker failed: %w", err)
	}
	log.Println("worker shut down")

	return nil
}

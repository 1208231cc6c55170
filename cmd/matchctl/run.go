package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qinqiang2000/RedBlueMatcher/internal/config"
	"github.com/qinqiang2000/RedBlueMatcher/internal/jobs"
	"github.com/qinqiang2000/RedBlueMatcher/internal/logger"
	"github.com/qinqiang2000/RedBlueMatcher/internal/repository/postgres"
	"github.com/qinqiang2000/RedBlueMatcher/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger and inspect batch match runs",
}

var runTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Enqueue a batch match run for a tenant and a set of bill ids",
	RunE:  runTrigger,
}

var runStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current status of a batch match run",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runTriggerCmd)
	runCmd.AddCommand(runStatusCmd)

	runTriggerCmd.Flags().String("tenant", "", "tenant id")
	runTriggerCmd.Flags().String("user", "", "requesting user id")
	runTriggerCmd.Flags().String("bill-ids", "", "comma-separated bill ids")
	_ = runTriggerCmd.MarkFlagRequired("tenant")
	_ = runTriggerCmd.MarkFlagRequired("user")
	_ = runTriggerCmd.MarkFlagRequired("bill-ids")

	runStatusCmd.Flags().String("tenant", "", "tenant id")
	runStatusCmd.Flags().String("run", "", "run id")
	_ = runStatusCmd.MarkFlagRequired("tenant")
	_ = runStatusCmd.MarkFlagRequired("run")
}

// runTrigger and runStatus only enqueue or read MatchRun rows (Enqueue
// also reads bill lines and SKU metadata for its advisory check) and
// never execute a run, so the Orchestrator they build is never handed a
// live match.Engine; neither Enqueue nor GetRun dereferences it.

func runTrigger(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("run-trigger")

	tenantID, _ := cmd.Flags().GetString("tenant")
	userID, _ := cmd.Flags().GetString("user")
	billIDsFlag, _ := cmd.Flags().GetString("bill-ids")

	var billIDs []string
	for _, id := range strings.Split(billIDsFlag, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			billIDs = append(billIDs, id)
		}
	}
	if len(billIDs) == 0 {
		return fmt.Errorf("--bill-ids must list at least one bill id")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	runRepo := postgres.NewRunRepo(db)
	billRepo := postgres.NewBillRepo(db)
	skuRepo := postgres.NewSKURepo(db)
	orchestrator := service.NewOrchestrator(nil, runRepo, service.OrchestratorConfig{
		MaxBatchSize: cfg.Match.MaxBatchSize,
	}, nil, nil, billRepo, skuRepo)

	run, err := orchestrator.Enqueue(cmd.Context(), tenantID, userID, billIDs)
	if err != nil {
		return fmt.Errorf("enqueue run: %w", err)
	}

	jobsClient := jobs.NewClient(cfg.Redis.Addr, cfg.Redis.DB)
	defer jobsClient.Close()

	if _, err := jobsClient.EnqueueBatchMatch(cmd.Context(), jobs.BatchMatchPayload{
		TenantID:    run.TenantID,
		RunID:       run.ID,
		RequestedBy: run.RequestedBy,
		BillIDs:     run.BillIDs,
	}); err != nil {
		return fmt.Errorf("enqueue batch match job: %w", err)
	}

	log.Info().Str("run_id", run.ID).Int("bills", len(billIDs)).Msg("run enqueued")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("run-status")

	tenantID, _ := cmd.Flags().GetString("tenant")
	runID, _ := cmd.Flags().GetString("run")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	runRepo := postgres.NewRunRepo(db)
	orchestrator := service.NewOrchestrator(nil, runRepo, service.OrchestratorConfig{}, nil, nil, nil, nil)

	run, err := orchestrator.GetRun(cmd.Context(), tenantID, runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	log.Info().
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Int("success", run.SuccessCount).
		Int("failure", run.FailureCount).
		Str("shortfall_total", run.ShortfallTotal.String()).
		Str("result_object_key", run.ResultObjectKey).
		Msg("run status")
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qinqiang2000/RedBlueMatcher/internal/config"
	"github.com/qinqiang2000/RedBlueMatcher/internal/logger"
	"github.com/qinqiang2000/RedBlueMatcher/internal/repository/postgres"
	"github.com/qinqiang2000/RedBlueMatcher/internal/service"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Provision and inspect tenants",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new tenant",
	RunE:  runTenantCreate,
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants",
	RunE:  runTenantList,
}

func init() {
	rootCmd.AddCommand(tenantCmd)
	tenantCmd.AddCommand(tenantCreateCmd)
	tenantCmd.AddCommand(tenantListCmd)

	tenantCreateCmd.Flags().String("name", "", "tenant display name")
	tenantCreateCmd.Flags().String("slug", "", "tenant slug, used for login")
	_ = tenantCreateCmd.MarkFlagRequired("name")
	_ = tenantCreateCmd.MarkFlagRequired("slug")

	tenantListCmd.Flags().Int("offset", 0, "list offset")
	tenantListCmd.Flags().Int("limit", 50, "list limit")
}

func newTenantService() (service.TenantService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return service.NewTenantService(postgres.NewTenantRepo(db)), func() { _ = db.Close() }, nil
}

func runTenantCreate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("tenant-create")

	name, _ := cmd.Flags().GetString("name")
	slug, _ := cmd.Flags().GetString("slug")

	tenants, closeDB, err := newTenantService()
	if err != nil {
		return err
	}
	defer closeDB()

	tenant, err := tenants.Create(cmd.Context(), service.CreateTenantInput{Name: name, Slug: slug})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}

	log.Info().Str("tenant_id", tenant.ID.String()).Str("slug", tenant.Slug).Msg("tenant created")
	return nil
}

func runTenantList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("tenant-list")

	offset, _ := cmd.Flags().GetInt("offset")
	limit, _ := cmd.Flags().GetInt("limit")

	tenants, closeDB, err := newTenantService()
	if err != nil {
		return err
	}
	defer closeDB()

	rows, total, err := tenants.List(cmd.Context(), offset, limit)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	for _, t := range rows {
		fmt.Printf("%s\t%s\t%s\tactive=%v\n", t.ID, t.Slug, t.Name, t.IsActive)
	}
	log.Info().Int("returned", len(rows)).Int("total", total).Msg("tenants listed")
	return nil
}

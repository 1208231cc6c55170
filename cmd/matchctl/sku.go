package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qinqiang2000/RedBlueMatcher/internal/config"
	"github.com/qinqiang2000/RedBlueMatcher/internal/logger"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
	"github.com/qinqiang2000/RedBlueMatcher/internal/repository/postgres"
)

var skuCmd = &cobra.Command{
	Use:   "sku",
	Short: "Manage the SKU reference table",
}

var skuImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk upsert SKU metadata from a CSV file (columns: code,description,unit,quantity_scale)",
	RunE:  runSKUImport,
}

func init() {
	rootCmd.AddCommand(skuCmd)
	skuCmd.AddCommand(skuImportCmd)
	skuImportCmd.Flags().String("file", "", "path to the SKU CSV file")
	_ = skuImportCmd.MarkFlagRequired("file")
}

func runSKUImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("sku-import")

	path, _ := cmd.Flags().GetString("file")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	entries, err := parseSKUCSV(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(entries) == 0 {
		log.Warn().Str("file", path).Msg("no rows found, nothing to import")
		return nil
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

	skuRepo := postgres.NewSKURepo(db)
	if err := skuRepo.Upsert(cmd.Context(), entries); err != nil {
		return fmt.Errorf("upsert sku metadata: %w", err)
	}

	log.Info().Int("rows", len(entries)).Str("file", path).Msg("sku metadata imported")
	return nil
}

// parseSKUCSV reads rows of code,description,unit,quantity_scale. The
// quantity_scale column is optional and defaults to 0 when a row omits
// it. A header row whose first cell is "code" (case-insensitive) is
// skipped.
func parseSKUCSV(r io.Reader) ([]port.SKUMetadata, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var entries []port.SKUMetadata
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("expected at least 3 columns (code,description,unit[,quantity_scale]), got %d", len(record))
		}
		if first {
			first = false
			if len(record) > 0 && strings.EqualFold(record[0], "code") {
				continue
			}
		}

		var scale int
		if len(record) >= 4 && record[3] != "" {
			scale, err = strconv.Atoi(record[3])
			if err != nil {
				return nil, fmt.Errorf("invalid quantity_scale %q for code %q: %w", record[3], record[0], err)
			}
		}

		entries = append(entries, port.SKUMetadata{
			Code:          record[0],
			Description:   record[1],
			Unit:          record[2],
			QuantityScale: scale,
		})
	}
	return entries, nil
}

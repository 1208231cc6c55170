// Package export builds the result workbook for a finished batch match
// run: one sheet of individual match records, one sheet of per-bill
// outcomes.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
)

const (
	matchRecordsSheet = "Match Records"
	billOutcomesSheet = "Bill Outcomes"
)

var matchRecordColumns = []string{
	"Bill ID", "SKU", "SKU Description", "Invoice ID", "Invoice Line ID",
	"Bill Amount", "Invoice Amount", "Match Amount",
	"Bill Unit Price", "Bill Quantity", "Invoice Unit Price", "Invoice Quantity", "Invoice Quantity 2",
	"Matched At",
}

var billOutcomeColumns = []string{
	"Bill ID", "Status", "Matched Amount", "Shortfall Amount", "Failure Reason", "Finished At",
}

// BuildWorkbook renders a run's match records and bill outcomes into an
// in-memory xlsx workbook and writes it to w. skuDescriptions enriches
// the match records sheet with a human-readable product description
// where the SKU is known; a missing entry leaves the cell blank.
func BuildWorkbook(w io.Writer, records []domain.MatchRecord, outcomes []domain.BillOutcome, skuDescriptions map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", matchRecordsSheet); err != nil {
		return fmt.Errorf("export: renaming sheet: %w", err)
	}
	if err := writeMatchRecords(f, records, skuDescriptions); err != nil {
		return err
	}

	if _, err := f.NewSheet(billOutcomesSheet); err != nil {
		return fmt.Errorf("export: creating outcomes sheet: %w", err)
	}
	if err := writeBillOutcomes(f, outcomes); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: writing workbook: %w", err)
	}
	return nil
}

func writeMatchRecords(f *excelize.File, records []domain.MatchRecord, skuDescriptions map[string]string) error {
	for i, h := range matchRecordColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("export: match records header cell: %w", err)
		}
		if err := f.SetCellValue(matchRecordsSheet, cell, h); err != nil {
			return fmt.Errorf("export: writing match records header: %w", err)
		}
	}
	for rowIdx, r := range records {
		row := rowIdx + 2
		values := []interface{}{
			r.BillID, r.SKU, skuDescriptions[r.SKU], r.InvoiceID, r.InvoiceLineID,
			r.BillAmount.String(), r.InvoiceAmount.String(), r.MatchAmount.String(),
			r.BillUnitPrice.String(), r.BillQuantity.String(),
			r.InvoiceUnitPrice.String(), r.InvoiceQuantity.String(), r.InvoiceQuantity2.String(),
			r.MatchedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("export: match records cell at row %d: %w", row, err)
			}
			if err := f.SetCellValue(matchRecordsSheet, cell, v); err != nil {
				return fmt.Errorf("export: writing match record row %d: %w", row, err)
			}
		}
	}
	return nil
}

func writeBillOutcomes(f *excelize.File, outcomes []domain.BillOutcome) error {
	for i, h := range billOutcomeColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("export: bill outcomes header cell: %w", err)
		}
		if err := f.SetCellValue(billOutcomesSheet, cell, h); err != nil {
			return fmt.Errorf("export: writing bill outcomes header: %w", err)
		}
	}
	for rowIdx, o := range outcomes {
		row := rowIdx + 2
		values := []interface{}{
			o.BillID, string(o.Status), o.MatchedAmount.String(), o.ShortfallAmount.String(),
			o.FailureReason, o.FinishedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("export: bill outcomes cell at row %d: %w", row, err)
			}
			if err := f.SetCellValue(billOutcomesSheet, cell, v); err != nil {
				return fmt.Errorf("export: writing bill outcome row %d: %w", row, err)
			}
		}
	}
	return nil
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a run id or tenant slug for use in an object
// key or Content-Disposition header.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildObjectKey returns the storage key for a run's result workbook:
// {tenant}/batch-matches/{run_id}.xlsx
func BuildObjectKey(tenantSlug, runID string) string {
	return fmt.Sprintf("%s/batch-matches/%s.xlsx", SanitizeFilename(tenantSlug), SanitizeFilename(runID))
}

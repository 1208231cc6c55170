package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/export"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

// WorkbookExporter builds and uploads the result workbook for a
// finished run, per §6's export requirement.
type WorkbookExporter struct {
	records port.MatchRecordRepository
	skus    port.SKURepository
	storage port.ObjectStorage
	bucket  string
}

// NewWorkbookExporter constructs a WorkbookExporter.
func NewWorkbookExporter(records port.MatchRecordRepository, skus port.SKURepository, storage port.ObjectStorage, bucket string) *WorkbookExporter {
	return &WorkbookExporter{records: records, skus: skus, storage: storage, bucket: bucket}
}

// ExportRun assembles and uploads a run's result workbook, returning
// the object key it was stored under.
func (e *WorkbookExporter) ExportRun(ctx context.Context, run *domain.MatchRun, outcomes []domain.BillOutcome) (string, error) {
	records, err := e.records.ListByBillIDs(ctx, run.TenantID, run.BillIDs)
	if err != nil {
		return "", fmt.Errorf("exporter: listing match records: %w", err)
	}

	descriptions := make(map[string]string)
	for _, r := range records {
		if _, seen := descriptions[r.SKU]; seen {
			continue
		}
		meta, ok, err := e.skus.Get(ctx, r.SKU)
		if err == nil && ok {
			descriptions[r.SKU] = meta.Description
		}
	}

	var buf bytes.Buffer
	if err := export.BuildWorkbook(&buf, records, outcomes, descriptions); err != nil {
		return "", fmt.Errorf("exporter: building workbook: %w", err)
	}

	key := export.BuildObjectKey(run.TenantID, run.ID)
	_, err = e.storage.Upload(ctx, port.UploadInput{
		Bucket:      e.bucket,
		Key:         key,
		Body:        &buf,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Size:        int64(buf.Len()),
	})
	if err != nil {
		return "", fmt.Errorf("exporter: uploading workbook: %w", err)
	}
	return key, nil
}

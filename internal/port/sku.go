package port

import "context"

// SKUMetadata is a reference row describing a known product code,
// used to enrich exported workbooks and to flag unrecognized SKUs when
// a batch is enqueued. QuantityScale is the number of decimal places
// Unit is normally quoted to; it is descriptive only and is never
// enforced by the matching engine.
type SKUMetadata struct {
	Code          string `db:"code"`
	Description   string `db:"description"`
	Unit          string `db:"unit"`
	QuantityScale int    `db:"quantity_scale"`
}

// SKURepository persists the SKU metadata reference table. Absence of
// a code is not an error for matching; it only affects export
// enrichment and the advisory warning logged at enqueue.
type SKURepository interface {
	Get(ctx context.Context, code string) (*SKUMetadata, bool, error)
	Upsert(ctx context.Context, entries []SKUMetadata) error
}

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mpajak/betslip/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only needs the time-ranged list queries, not the full domain
// store interfaces. The Postgres stores satisfy these implicitly.
// ---------------------------------------------------------------------------

// CouponArchiveStore provides read access to settled coupons for archival.
type CouponArchiveStore interface {
	// ListSettledBefore returns coupons settled strictly before the cutoff.
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Coupon, error)
}

// TransactionArchiveStore provides read access to win transactions for
// archival.
type TransactionArchiveStore interface {
	// ListSettledBefore returns WIN transactions created strictly before the
	// cutoff.
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error)
}

// ArchiveImpl implements domain.Archiver by querying the stores for settled
// records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer       domain.BlobWriter
	coupons      CouponArchiveStore
	transactions TransactionArchiveStore
	audit        domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	coupons CouponArchiveStore,
	transactions TransactionArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:       writer,
		coupons:      coupons,
		transactions: transactions,
		audit:        audit,
	}
}

// ArchiveSettledCoupons queries the coupons settled before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/coupons/YYYY-MM.jsonl. The archival event is recorded in the audit
// log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveSettledCoupons(ctx context.Context, before time.Time) (int64, error) {
	coupons, err := a.coupons.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive coupons query: %w", err)
	}
	if len(coupons) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(coupons)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive coupons marshal: %w", err)
	}

	path := archivePath("coupons", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive coupons upload: %w", err)
	}

	count := int64(len(coupons))

	if err := a.audit.Log(ctx, "archive.coupons", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive coupons audit log: %w", err)
	}

	return count, nil
}

// ArchiveTransactions queries the WIN transactions created before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/transactions/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	txs, err := a.transactions.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions query: %w", err)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(txs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions marshal: %w", err)
	}

	path := archivePath("transactions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions upload: %w", err)
	}

	count := int64(len(txs))

	if err := a.audit.Log(ctx, "archive.transactions", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive transactions audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/coupons/2026-01.jsonl
//	archive/transactions/2026-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)

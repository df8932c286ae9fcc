package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/predifi/intent-gateway/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the time-ranged query methods it actually
// calls, not the full domain store interfaces. The Postgres stores satisfy
// these implicitly through their ListBefore methods.
// ---------------------------------------------------------------------------

// OrderArchiveStore provides read access to admitted orders for archival
// purposes.
type OrderArchiveStore interface {
	// ListBefore returns all order records created strictly before the
	// given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.OrderRecord, error)
}

// CommitmentArchiveStore provides read access to admitted commitments for
// archival purposes.
type CommitmentArchiveStore interface {
	// ListBefore returns all commitment records created strictly before the
	// given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.CommitmentRecord, error)
}

// ---------------------------------------------------------------------------
// ArchiveImpl
// ---------------------------------------------------------------------------

// ArchiveImpl implements domain.Archiver by querying the intent stores for
// old records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	orders      OrderArchiveStore
	commitments CommitmentArchiveStore
	audit       domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	orders OrderArchiveStore,
	commitments CommitmentArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		orders:      orders,
		commitments: commitments,
		audit:       audit,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// multipartThreshold is the serialized size above which an archive file is
// uploaded as a multipart upload instead of a single PutObject.
const multipartThreshold = 32 * 1024 * 1024

// upload picks the upload strategy by payload size.
func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) >= multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// ArchiveOrders queries all order records created before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/orders/YYYY-MM.jsonl. The archival event is recorded in the audit
// log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.orders.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	path := archivePath("orders", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, "archive.orders", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive orders audit log: %w", err)
	}

	return count, nil
}

// ArchiveCommitments queries all commitment records created before the
// cutoff, serializes them to JSONL, and uploads the file to S3 at
// archive/commitments/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveCommitments(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.commitments.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive commitments query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive commitments marshal: %w", err)
	}

	path := archivePath("commitments", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive commitments upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, "archive.commitments", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive commitments audit log: %w", err)
	}

	return count, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/orders/2026-08.jsonl
//	archive/commitments/2026-08.jsonl
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

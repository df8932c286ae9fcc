package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/predifi/intent-gateway/internal/domain"
)

type fakeWriter struct {
	puts map[string][]byte
}

func (w *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.puts == nil {
		w.puts = make(map[string][]byte)
	}
	w.puts[path] = buf
	return nil
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return w.Put(ctx, path, data, "")
}

type fakeOrderArchiveStore struct {
	records []domain.OrderRecord
}

func (s *fakeOrderArchiveStore) ListBefore(ctx context.Context, before time.Time) ([]domain.OrderRecord, error) {
	var out []domain.OrderRecord
	for _, r := range s.records {
		if r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeCommitmentArchiveStore struct {
	records []domain.CommitmentRecord
}

func (s *fakeCommitmentArchiveStore) ListBefore(ctx context.Context, before time.Time) ([]domain.CommitmentRecord, error) {
	var out []domain.CommitmentRecord
	for _, r := range s.records {
		if r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeAudit struct {
	events []string
}

func (a *fakeAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveOrders(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	orders := &fakeOrderArchiveStore{records: []domain.OrderRecord{
		{ID: "a", Maker: "0x1", Nonce: "n1", CreatedAt: cutoff.Add(-48 * time.Hour)},
		{ID: "b", Maker: "0x2", Nonce: "n2", CreatedAt: cutoff.Add(-time.Hour)},
		{ID: "c", Maker: "0x3", Nonce: "n3", CreatedAt: cutoff.Add(time.Hour)}, // too new
	}}
	writer := &fakeWriter{}
	audit := &fakeAudit{}

	arch := NewArchiver(writer, orders, &fakeCommitmentArchiveStore{}, audit)

	count, err := arch.ArchiveOrders(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveOrders: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	wantPath := "archive/orders/2026-08.jsonl"
	buf, ok := writer.puts[wantPath]
	if !ok {
		t.Fatalf("no upload at %s, got %v", wantPath, writer.puts)
	}

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d JSONL lines, want 2", len(lines))
	}
	var first domain.OrderRecord
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if first.ID != "a" {
		t.Errorf("first archived ID = %s, want a", first.ID)
	}

	if len(audit.events) != 1 || audit.events[0] != "archive.orders" {
		t.Errorf("audit events = %v, want [archive.orders]", audit.events)
	}
}

func TestArchiveOrdersEmpty(t *testing.T) {
	writer := &fakeWriter{}
	audit := &fakeAudit{}
	arch := NewArchiver(writer, &fakeOrderArchiveStore{}, &fakeCommitmentArchiveStore{}, audit)

	count, err := arch.ArchiveOrders(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ArchiveOrders: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if len(writer.puts) != 0 {
		t.Errorf("nothing should be uploaded for an empty sweep, got %v", writer.puts)
	}
	if len(audit.events) != 0 {
		t.Errorf("nothing should be audited for an empty sweep, got %v", audit.events)
	}
}

func TestArchiveCommitments(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	commitments := &fakeCommitmentArchiveStore{records: []domain.CommitmentRecord{
		{ID: "x", UserAddress: "0x9", Nonce: "n9", CreatedAt: cutoff.Add(-time.Hour)},
	}}
	writer := &fakeWriter{}
	audit := &fakeAudit{}
	arch := NewArchiver(writer, &fakeOrderArchiveStore{}, commitments, audit)

	count, err := arch.ArchiveCommitments(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveCommitments: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if _, ok := writer.puts["archive/commitments/2026-08.jsonl"]; !ok {
		t.Errorf("missing commitment archive upload, got %v", writer.puts)
	}
	if len(audit.events) != 1 || audit.events[0] != "archive.commitments" {
		t.Errorf("audit events = %v, want [archive.commitments]", audit.events)
	}
}

func TestMarshalJSONLEscaping(t *testing.T) {
	buf, err := marshalJSONL([]map[string]string{{"k": "<&>"}})
	if err != nil {
		t.Fatalf("marshalJSONL: %v", err)
	}
	if !bytes.Contains(buf, []byte("<&>")) {
		t.Errorf("HTML escaping should be disabled, got %s", buf)
	}
}

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// OrderIntentStore persists admitted order intents. Insert must enforce
// uniqueness on (maker, nonce) at the constraint level and return
// ErrNonceUsed on violation; that constraint, not FindByMakerAndNonce, is
// the authoritative replay guard.
type OrderIntentStore interface {
	Insert(ctx context.Context, rec OrderRecord) error
	FindByMakerAndNonce(ctx context.Context, maker, nonce string) (OrderRecord, error)
	GetByID(ctx context.Context, id string) (OrderRecord, error)
	ListByMaker(ctx context.Context, maker string, opts ListOpts) ([]OrderRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]OrderRecord, error)
	UpdateStatus(ctx context.Context, id string, status IntentStatus) error
}

// CommitmentStore persists admitted staking commitments with the same
// uniqueness contract on (userAddress, nonce).
type CommitmentStore interface {
	Insert(ctx context.Context, rec CommitmentRecord) error
	FindByUserAndNonce(ctx context.Context, user, nonce string) (CommitmentRecord, error)
	GetByID(ctx context.Context, id string) (CommitmentRecord, error)
	ListByUser(ctx context.Context, user string, opts ListOpts) ([]CommitmentRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]CommitmentRecord, error)
	UpdateStatus(ctx context.Context, id string, status IntentStatus) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of admissions, rejections,
// and archival events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Clock supplies the verification time for temporal checks. Injectable so
// tests can pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predifi/intent-gateway/internal/domain"
)

// CommitmentStore implements domain.CommitmentStore using PostgreSQL with a
// UNIQUE (user_address, nonce) constraint on intent_commitments.
type CommitmentStore struct {
	pool *pgxpool.Pool
}

var _ domain.CommitmentStore = (*CommitmentStore)(nil)

// NewCommitmentStore creates a new CommitmentStore backed by the given
// connection pool.
func NewCommitmentStore(pool *pgxpool.Pool) *CommitmentStore {
	return &CommitmentStore{pool: pool}
}

// Insert persists an admitted commitment record.
func (s *CommitmentStore) Insert(ctx context.Context, rec domain.CommitmentRecord) error {
	const query = `
		INSERT INTO intent_commitments (
			id, user_address, token, amount, nonce,
			signed_at, signature, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.UserAddress, rec.Token, rec.Amount, rec.Nonce,
		rec.Timestamp, rec.Signature, string(rec.Status), rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrNonceUsed
		}
		return fmt.Errorf("postgres: insert commitment %s: %w", rec.ID, err)
	}
	return nil
}

const commitmentSelectCols = `id, user_address, token, amount, nonce,
	signed_at, signature, status, created_at`

func scanCommitmentFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.CommitmentRecord, error) {
	var rec domain.CommitmentRecord
	var status string

	err := scanner.Scan(
		&rec.ID, &rec.UserAddress, &rec.Token, &rec.Amount, &rec.Nonce,
		&rec.Timestamp, &rec.Signature, &status, &rec.CreatedAt,
	)
	if err != nil {
		return domain.CommitmentRecord{}, err
	}

	rec.Status = domain.IntentStatus(status)
	return rec, nil
}

func scanCommitmentRows(rows pgx.Rows) ([]domain.CommitmentRecord, error) {
	var records []domain.CommitmentRecord
	for rows.Next() {
		rec, err := scanCommitmentFromRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FindByUserAndNonce retrieves the commitment admitted under (user, nonce).
func (s *CommitmentStore) FindByUserAndNonce(ctx context.Context, user, nonce string) (domain.CommitmentRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+commitmentSelectCols+` FROM intent_commitments WHERE user_address = $1 AND nonce = $2`,
		user, nonce)

	rec, err := scanCommitmentFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CommitmentRecord{}, domain.ErrNotFound
		}
		return domain.CommitmentRecord{}, fmt.Errorf("postgres: find commitment by user %s nonce %s: %w", user, nonce, err)
	}
	return rec, nil
}

// GetByID retrieves a single commitment record by ID.
func (s *CommitmentStore) GetByID(ctx context.Context, id string) (domain.CommitmentRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+commitmentSelectCols+` FROM intent_commitments WHERE id = $1`, id)

	rec, err := scanCommitmentFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CommitmentRecord{}, domain.ErrNotFound
		}
		return domain.CommitmentRecord{}, fmt.Errorf("postgres: get commitment %s: %w", id, err)
	}
	return rec, nil
}

// ListByUser returns commitment records for a user, newest first, with
// pagination.
func (s *CommitmentStore) ListByUser(ctx context.Context, user string, opts domain.ListOpts) ([]domain.CommitmentRecord, error) {
	query := `SELECT ` + commitmentSelectCols + ` FROM intent_commitments WHERE user_address = $1 ORDER BY created_at DESC`
	args := []any{user}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list commitments by user: %w", err)
	}
	defer rows.Close()

	records, err := scanCommitmentRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan commitments by user: %w", err)
	}
	return records, nil
}

// ListBefore returns commitment records admitted before the given time,
// oldest first.
func (s *CommitmentStore) ListBefore(ctx context.Context, before time.Time) ([]domain.CommitmentRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+commitmentSelectCols+` FROM intent_commitments
		 WHERE created_at < $1
		 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list commitments before %s: %w", before, err)
	}
	defer rows.Close()

	records, err := scanCommitmentRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan commitments before %s: %w", before, err)
	}
	return records, nil
}

// UpdateStatus changes the status of an existing commitment record.
func (s *CommitmentStore) UpdateStatus(ctx context.Context, id string, status domain.IntentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE intent_commitments SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update commitment status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

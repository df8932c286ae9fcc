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

// OrderIntentStore implements domain.OrderIntentStore using PostgreSQL.
// The UNIQUE (maker, nonce) constraint on intent_orders is the authoritative
// replay guard; Insert surfaces it as domain.ErrNonceUsed.
type OrderIntentStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderIntentStore = (*OrderIntentStore)(nil)

// NewOrderIntentStore creates a new OrderIntentStore backed by the given
// connection pool.
func NewOrderIntentStore(pool *pgxpool.Pool) *OrderIntentStore {
	return &OrderIntentStore{pool: pool}
}

// Insert persists an admitted order record.
func (s *OrderIntentStore) Insert(ctx context.Context, rec domain.OrderRecord) error {
	const query = `
		INSERT INTO intent_orders (
			id, maker, market_id, outcome, price, size,
			nonce, expiry, signature, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Maker, rec.MarketID, string(rec.Outcome),
		rec.Price, rec.Size,
		rec.Nonce, rec.Expiry, rec.Signature,
		string(rec.Status), rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrNonceUsed
		}
		return fmt.Errorf("postgres: insert order %s: %w", rec.ID, err)
	}
	return nil
}

const orderSelectCols = `id, maker, market_id, outcome, price, size,
	nonce, expiry, signature, status, created_at`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.OrderRecord, error) {
	var rec domain.OrderRecord
	var outcome, status string

	err := scanner.Scan(
		&rec.ID, &rec.Maker, &rec.MarketID, &outcome,
		&rec.Price, &rec.Size,
		&rec.Nonce, &rec.Expiry, &rec.Signature,
		&status, &rec.CreatedAt,
	)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	rec.Outcome = domain.Outcome(outcome)
	rec.Status = domain.IntentStatus(status)
	return rec, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.OrderRecord, error) {
	var records []domain.OrderRecord
	for rows.Next() {
		rec, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FindByMakerAndNonce retrieves the order admitted under (maker, nonce).
func (s *OrderIntentStore) FindByMakerAndNonce(ctx context.Context, maker, nonce string) (domain.OrderRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM intent_orders WHERE maker = $1 AND nonce = $2`,
		maker, nonce)

	rec, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderRecord{}, domain.ErrNotFound
		}
		return domain.OrderRecord{}, fmt.Errorf("postgres: find order by maker %s nonce %s: %w", maker, nonce, err)
	}
	return rec, nil
}

// GetByID retrieves a single order record by ID.
func (s *OrderIntentStore) GetByID(ctx context.Context, id string) (domain.OrderRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM intent_orders WHERE id = $1`, id)

	rec, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderRecord{}, domain.ErrNotFound
		}
		return domain.OrderRecord{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return rec, nil
}

// ListByMaker returns order records for a maker, newest first, with
// pagination.
func (s *OrderIntentStore) ListByMaker(ctx context.Context, maker string, opts domain.ListOpts) ([]domain.OrderRecord, error) {
	query := `SELECT ` + orderSelectCols + ` FROM intent_orders WHERE maker = $1 ORDER BY created_at DESC`
	args := []any{maker}
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
		return nil, fmt.Errorf("postgres: list orders by maker: %w", err)
	}
	defer rows.Close()

	records, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders by maker: %w", err)
	}
	return records, nil
}

// ListBefore returns order records admitted before the given time, oldest
// first. Used by the archival sweep.
func (s *OrderIntentStore) ListBefore(ctx context.Context, before time.Time) ([]domain.OrderRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM intent_orders
		 WHERE created_at < $1
		 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders before %s: %w", before, err)
	}
	defer rows.Close()

	records, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders before %s: %w", before, err)
	}
	return records, nil
}

// UpdateStatus changes the status of an existing order record.
func (s *OrderIntentStore) UpdateStatus(ctx context.Context, id string, status domain.IntentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE intent_orders SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update order status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

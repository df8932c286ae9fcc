package admission

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/predifi/intent-gateway/internal/domain"
	"github.com/predifi/intent-gateway/internal/typeddata"
)

// Commitments is the admission pipeline for signed staking commitments. It
// mirrors the order pipeline with a freshness window in place of an expiry
// and an amount ceiling in place of the price interval.
type Commitments struct {
	dom   typeddata.Domain
	store domain.CommitmentStore
	opts  Options
}

// NewCommitments creates the commitment pipeline.
func NewCommitments(dom typeddata.Domain, store domain.CommitmentStore, opts Options) *Commitments {
	opts.fillDefaults()
	return &Commitments{dom: dom, store: store, opts: opts}
}

// Admit validates and persists a signed commitment exactly once.
func (a *Commitments) Admit(ctx context.Context, sub domain.SignedCommitment) (domain.CommitmentRecord, error) {
	c := sub.Commitment

	// 1. Shape.
	amount, err := validateCommitmentShape(c, sub.Signature)
	if err != nil {
		return domain.CommitmentRecord{}, err
	}

	// 2. Signature.
	digest, err := typeddata.HashCommitment(a.dom, c)
	if err != nil {
		return domain.CommitmentRecord{}, fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
	}
	recovered, err := typeddata.RecoverSigner(digest, sub.Signature)
	if err != nil {
		return domain.CommitmentRecord{}, err
	}

	user := strings.ToLower(c.UserAddress)
	if strings.ToLower(recovered.Hex()) != user {
		a.opts.flagMismatch(ctx, domain.KindCommitment, user, c.Nonce, recovered.Hex())
		return domain.CommitmentRecord{}, fmt.Errorf("%w: recovered %s",
			domain.ErrSignerMismatch, recovered.Hex())
	}

	// 3. Temporal: the signing timestamp must be fresh in either direction.
	// This is a liveness check against stale or future-dated signing
	// ceremonies, not an expiry.
	now := a.opts.nowUnix()
	drift := now - c.Timestamp
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(domain.CommitmentFreshnessWindow.Seconds()) {
		return domain.CommitmentRecord{}, fmt.Errorf("%w: timestamp %d drifts %ds from now",
			domain.ErrStaleTimestamp, c.Timestamp, drift)
	}

	// 4. Bounds.
	if amount.Sign() <= 0 {
		return domain.CommitmentRecord{}, fmt.Errorf("%w: got %s", domain.ErrAmountNotPositive, c.Amount)
	}
	if amount.Cmp(domain.MaxCommitmentAmount) > 0 {
		return domain.CommitmentRecord{}, fmt.Errorf("%w: %s > %s base units",
			domain.ErrAmountTooLarge, c.Amount, domain.MaxCommitmentAmount)
	}

	// 5. Replay.
	if a.opts.Nonces != nil {
		seen, err := a.opts.Nonces.Seen(ctx, domain.KindCommitment, user, c.Nonce)
		if err == nil && seen {
			return domain.CommitmentRecord{}, fmt.Errorf("%w: user %s nonce %s",
				domain.ErrNonceUsed, user, c.Nonce)
		}
	}
	if _, err := a.store.FindByUserAndNonce(ctx, user, c.Nonce); err == nil {
		return domain.CommitmentRecord{}, fmt.Errorf("%w: user %s nonce %s",
			domain.ErrNonceUsed, user, c.Nonce)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.CommitmentRecord{}, fmt.Errorf("admission: replay lookup: %w", err)
	}

	rec := domain.CommitmentRecord{
		ID:          uuid.New().String(),
		UserAddress: user,
		Token:       c.Token,
		Amount:      c.Amount,
		Nonce:       c.Nonce,
		Timestamp:   c.Timestamp,
		Signature:   sub.Signature,
		Status:      domain.StatusPending,
		CreatedAt:   a.opts.createdAt(),
	}

	if err := a.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrNonceUsed) {
			return domain.CommitmentRecord{}, fmt.Errorf("%w: user %s nonce %s",
				domain.ErrNonceUsed, user, c.Nonce)
		}
		return domain.CommitmentRecord{}, fmt.Errorf("admission: insert commitment: %w", err)
	}

	a.opts.sideEffects(ctx, ChannelCommitments, "commitment.admitted", domain.AdmissionEvent{
		Kind:      domain.KindCommitment,
		RecordID:  rec.ID,
		Principal: user,
		Nonce:     rec.Nonce,
		Outcome:   "admitted",
		At:        rec.CreatedAt,
	})
	if a.opts.Alerts != nil {
		_ = a.opts.Alerts.Notify(ctx, "commitment_admitted", "Commitment admitted",
			fmt.Sprintf("%s %s base units by %s", rec.Amount, rec.Token, user))
	}

	return rec, nil
}

// validateCommitmentShape checks field presence and typing, returning the
// parsed amount for the bounds step.
func validateCommitmentShape(c domain.CommitmentIntent, signature string) (*big.Int, error) {
	switch {
	case c.UserAddress == "":
		return nil, fmt.Errorf("%w: userAddress is required", domain.ErrMalformedRequest)
	case !common.IsHexAddress(c.UserAddress):
		return nil, fmt.Errorf("%w: userAddress %q is not a valid address", domain.ErrMalformedRequest, c.UserAddress)
	case c.Token == "":
		return nil, fmt.Errorf("%w: token is required", domain.ErrMalformedRequest)
	case c.Nonce == "":
		return nil, fmt.Errorf("%w: nonce is required", domain.ErrMalformedRequest)
	case c.Timestamp <= 0:
		return nil, fmt.Errorf("%w: timestamp is required", domain.ErrMalformedRequest)
	case signature == "":
		return nil, fmt.Errorf("%w: signature is required", domain.ErrMalformedRequest)
	}

	amount, ok := new(big.Int).SetString(c.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("%w: amount %q is not an integer", domain.ErrMalformedRequest, c.Amount)
	}

	return amount, nil
}

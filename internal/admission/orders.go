package admission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/predifi/intent-gateway/internal/domain"
	"github.com/predifi/intent-gateway/internal/typeddata"
)

// Orders is the admission pipeline for signed trade orders.
type Orders struct {
	dom   typeddata.Domain
	store domain.OrderIntentStore
	opts  Options
}

// NewOrders creates the order pipeline for the given typed-data domain and
// store.
func NewOrders(dom typeddata.Domain, store domain.OrderIntentStore, opts Options) *Orders {
	opts.fillDefaults()
	return &Orders{dom: dom, store: store, opts: opts}
}

// Admit runs the full pipeline over a submission. On success the order is
// persisted exactly once with status pending and the record is returned; on
// failure the returned error wraps one of the domain rejection sentinels and
// nothing is persisted.
func (a *Orders) Admit(ctx context.Context, sub domain.SignedOrder) (domain.OrderRecord, error) {
	o := sub.Order

	// 1. Shape: every field present and individually well typed.
	price, size, err := validateOrderShape(o, sub.Signature)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	// 2. Signature: digest, recover, compare against the claimed maker.
	digest, err := typeddata.HashOrder(a.dom, o)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
	}
	recovered, err := typeddata.RecoverSigner(digest, sub.Signature)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	maker := strings.ToLower(o.Maker)
	if strings.ToLower(recovered.Hex()) != maker {
		a.opts.flagMismatch(ctx, domain.KindOrder, maker, o.Nonce, recovered.Hex())
		return domain.OrderRecord{}, fmt.Errorf("%w: recovered %s",
			domain.ErrSignerMismatch, recovered.Hex())
	}

	// 3. Temporal: expiry must not have passed at verification time.
	now := a.opts.nowUnix()
	if o.Expiry < now {
		return domain.OrderRecord{}, fmt.Errorf("%w: expiry %d is %ds in the past",
			domain.ErrExpired, o.Expiry, now-o.Expiry)
	}

	// 4. Bounds: price strictly inside (0, 1), size strictly positive.
	if price <= 0 || price >= 1 {
		return domain.OrderRecord{}, fmt.Errorf("%w: price %s must be strictly between 0 and 1",
			domain.ErrPriceOutOfRange, o.Price)
	}
	if size <= 0 {
		return domain.OrderRecord{}, fmt.Errorf("%w: got %s", domain.ErrSizeNotPositive, o.Size)
	}

	// 5. Replay: fast paths first, the insert's uniqueness constraint last
	// and authoritative.
	if a.opts.Nonces != nil {
		seen, err := a.opts.Nonces.Seen(ctx, domain.KindOrder, maker, o.Nonce)
		if err == nil && seen {
			return domain.OrderRecord{}, fmt.Errorf("%w: maker %s nonce %s",
				domain.ErrNonceUsed, maker, o.Nonce)
		}
	}
	if _, err := a.store.FindByMakerAndNonce(ctx, maker, o.Nonce); err == nil {
		return domain.OrderRecord{}, fmt.Errorf("%w: maker %s nonce %s",
			domain.ErrNonceUsed, maker, o.Nonce)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.OrderRecord{}, fmt.Errorf("admission: replay lookup: %w", err)
	}

	rec := domain.OrderRecord{
		ID:        uuid.New().String(),
		Maker:     maker,
		MarketID:  o.MarketID,
		Outcome:   o.Outcome,
		Price:     o.Price,
		Size:      o.Size,
		Nonce:     o.Nonce,
		Expiry:    o.Expiry,
		Signature: sub.Signature,
		Status:    domain.StatusPending,
		CreatedAt: a.opts.createdAt(),
	}

	if err := a.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrNonceUsed) {
			// Lost the race against a concurrent duplicate; the other
			// submission was admitted.
			return domain.OrderRecord{}, fmt.Errorf("%w: maker %s nonce %s",
				domain.ErrNonceUsed, maker, o.Nonce)
		}
		return domain.OrderRecord{}, fmt.Errorf("admission: insert order: %w", err)
	}

	a.opts.sideEffects(ctx, ChannelOrders, "order.admitted", domain.AdmissionEvent{
		Kind:      domain.KindOrder,
		RecordID:  rec.ID,
		Principal: maker,
		Nonce:     rec.Nonce,
		Outcome:   "admitted",
		At:        rec.CreatedAt,
	})
	if a.opts.Alerts != nil {
		_ = a.opts.Alerts.Notify(ctx, "order_admitted", "Order admitted",
			fmt.Sprintf("market %s %s %s @ %s by %s", rec.MarketID, rec.Outcome, rec.Size, rec.Price, maker))
	}

	return rec, nil
}

// validateOrderShape checks field presence and typing, returning the parsed
// price and size for the bounds step.
func validateOrderShape(o domain.OrderIntent, signature string) (price, size float64, err error) {
	switch {
	case o.Maker == "":
		return 0, 0, fmt.Errorf("%w: maker is required", domain.ErrMalformedRequest)
	case !common.IsHexAddress(o.Maker):
		return 0, 0, fmt.Errorf("%w: maker %q is not a valid address", domain.ErrMalformedRequest, o.Maker)
	case o.MarketID == "":
		return 0, 0, fmt.Errorf("%w: marketId is required", domain.ErrMalformedRequest)
	case o.Outcome != domain.OutcomeYes && o.Outcome != domain.OutcomeNo:
		return 0, 0, fmt.Errorf("%w: outcome must be YES or NO, got %q", domain.ErrMalformedRequest, o.Outcome)
	case o.Nonce == "":
		return 0, 0, fmt.Errorf("%w: nonce is required", domain.ErrMalformedRequest)
	case o.Expiry <= 0:
		return 0, 0, fmt.Errorf("%w: expiry is required", domain.ErrMalformedRequest)
	case signature == "":
		return 0, 0, fmt.Errorf("%w: signature is required", domain.ErrMalformedRequest)
	}

	// ParseFloat accepts "NaN" and "Inf", which would sail through the
	// bounds comparisons; only finite decimals are well formed.
	price, perr := strconv.ParseFloat(o.Price, 64)
	if perr != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, 0, fmt.Errorf("%w: price %q is not a decimal number", domain.ErrMalformedRequest, o.Price)
	}
	size, serr := strconv.ParseFloat(o.Size, 64)
	if serr != nil || math.IsNaN(size) || math.IsInf(size, 0) {
		return 0, 0, fmt.Errorf("%w: size %q is not a decimal number", domain.ErrMalformedRequest, o.Size)
	}

	return price, size, nil
}

// Package domain defines the core types, error taxonomy, and collaborator
// interfaces for the intent gateway. It has no dependencies outside the
// standard library so every other package can import it freely.
package domain

import (
	"math/big"
	"time"
)

// IntentKind discriminates the two protocol instances.
type IntentKind string

const (
	KindOrder      IntentKind = "order"
	KindCommitment IntentKind = "commitment"
)

// Outcome selects one of the two sides of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// IntentStatus tracks the record lifecycle after admission. The gateway only
// ever writes "pending"; later transitions belong to the matching engine and
// staking ledger.
type IntentStatus string

const (
	StatusPending   IntentStatus = "pending"
	StatusFilled    IntentStatus = "filled"
	StatusCancelled IntentStatus = "cancelled"
)

// CommitmentFreshnessWindow bounds how far a commitment's signing timestamp
// may drift from the gateway clock in either direction.
const CommitmentFreshnessWindow = 300 * time.Second

// MaxCommitmentAmount is the per-commitment ceiling: 150,000 tokens at
// 18 decimals, in base units.
var MaxCommitmentAmount = new(big.Int).Mul(
	big.NewInt(150_000),
	new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
)

// OrderIntent is the payload a maker signs to authorize a trade order
// off-chain. Price and size are decimal strings so the signed bytes survive
// JSON transport without float mangling.
type OrderIntent struct {
	Maker    string  `json:"maker"`
	MarketID string  `json:"marketId"`
	Outcome  Outcome `json:"outcome"`
	Price    string  `json:"price"`
	Size     string  `json:"size"`
	Nonce    string  `json:"nonce"`
	Expiry   int64   `json:"expiry"` // unix seconds
}

// CommitmentIntent is the payload a user signs to authorize a staking
// commitment. Amount is a base-unit (wei-scale) integer string. Timestamp is
// the signing time, not an expiry.
type CommitmentIntent struct {
	UserAddress string `json:"userAddress"`
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	Nonce       string `json:"nonce"`
	Timestamp   int64  `json:"timestamp"` // unix seconds
}

// SignedOrder is the inbound submission envelope for trade orders.
type SignedOrder struct {
	Order     OrderIntent `json:"order"`
	Signature string      `json:"signature"`
}

// SignedCommitment is the inbound submission envelope for staking
// commitments.
type SignedCommitment struct {
	Commitment CommitmentIntent `json:"commitment"`
	Signature  string           `json:"signature"`
}

// OrderRecord is an admitted order as persisted in the system of record.
// Fields other than Status are immutable after admission; the decimal
// strings are stored exactly as signed so the digest can be recomputed.
type OrderRecord struct {
	ID        string       `json:"id"`
	Maker     string       `json:"maker"` // normalized lowercase
	MarketID  string       `json:"marketId"`
	Outcome   Outcome      `json:"outcome"`
	Price     string       `json:"price"`
	Size      string       `json:"size"`
	Nonce     string       `json:"nonce"`
	Expiry    int64        `json:"expiry"`
	Signature string       `json:"signature"`
	Status    IntentStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

// CommitmentRecord is an admitted staking commitment.
type CommitmentRecord struct {
	ID          string       `json:"id"`
	UserAddress string       `json:"userAddress"` // normalized lowercase
	Token       string       `json:"token"`
	Amount      string       `json:"amount"`
	Nonce       string       `json:"nonce"`
	Timestamp   int64        `json:"timestamp"`
	Signature   string       `json:"signature"`
	Status      IntentStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// AdmissionEvent is published on the signal bus when an intent is admitted
// or rejected for a security-relevant reason.
type AdmissionEvent struct {
	Kind      IntentKind `json:"kind"`
	RecordID  string     `json:"recordId,omitempty"`
	Principal string     `json:"principal"`
	Nonce     string     `json:"nonce"`
	Outcome   string     `json:"outcome"` // "admitted" or a rejection code
	At        time.Time  `json:"at"`
}

// Package typeddata implements the EIP-712 typed-structured-data scheme used
// to authorize trade orders and staking commitments off-chain: the schema
// registry shared with the signing client, deterministic digest computation,
// and signer recovery.
package typeddata

import (
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Field is one (name, type) pair of a typed-data struct. Field order is part
// of the hash: reordering silently changes every digest, so the lists below
// are a versioned contract with the client signing library, not an
// implementation detail.
type Field struct {
	Name string
	Type string
}

// OrderFields is the field layout of the Order primary type.
var OrderFields = []Field{
	{"maker", "address"},
	{"marketId", "string"},
	{"outcome", "string"},
	{"price", "string"},
	{"size", "string"},
	{"nonce", "string"},
	{"expiry", "uint256"},
}

// CommitmentFields is the field layout of the Commitment primary type.
var CommitmentFields = []Field{
	{"userAddress", "address"},
	{"token", "string"},
	{"amount", "uint256"},
	{"nonce", "string"},
	{"timestamp", "uint256"},
}

// encodeType renders the canonical EIP-712 type string, e.g.
// "Order(address maker,string marketId,...)".
func encodeType(primary string, fields []Field) string {
	var b strings.Builder
	b.WriteString(primary)
	b.WriteByte('(')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Type)
		b.WriteByte(' ')
		b.WriteString(f.Name)
	}
	b.WriteByte(')')
	return b.String()
}

// Pre-computed keccak256 type hashes of the canonical type strings.
var (
	// EIP712Domain(string name,string version,uint256 chainId)
	domainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	domainWithContractTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	orderTypeHash      = ethcrypto.Keccak256([]byte(encodeType("Order", OrderFields)))
	commitmentTypeHash = ethcrypto.Keccak256([]byte(encodeType("Commitment", CommitmentFields)))
)

// Domain is an EIP-712 domain descriptor. When VerifyingContract is empty
// the domain omits the verifyingContract field entirely (a different domain
// type hash, matching clients that sign without one).
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// Schema bundles the two domains both protocol instances must agree on with
// the signing client. Name/version values here and the field lists above
// must match the client bit-for-bit or every signature fails verification.
type Schema struct {
	Order      Domain
	Commitment Domain
}

// Domain name/version constants shared with the browser signing code.
const (
	OrderDomainName      = "Predifi Exchange"
	OrderDomainVersion   = "1"
	CommitmentDomainName = "Predifi Staking"
	CommitmentVersion    = "1"
)

// NewSchema builds the registry for a chain. verifyingContract applies to
// the Order domain only; pass "" to omit it.
func NewSchema(chainID int64, verifyingContract string) Schema {
	return Schema{
		Order: Domain{
			Name:              OrderDomainName,
			Version:           OrderDomainVersion,
			ChainID:           chainID,
			VerifyingContract: verifyingContract,
		},
		Commitment: Domain{
			Name:    CommitmentDomainName,
			Version: CommitmentVersion,
			ChainID: chainID,
		},
	}
}

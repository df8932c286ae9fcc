package typeddata

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/predifi/intent-gateway/internal/domain"
)

// Separator returns keccak256(abi.encode(typeHash, nameHash, versionHash,
// chainId[, verifyingContract])). Deterministic in the domain values.
func (d Domain) Separator() []byte {
	if d.VerifyingContract != "" {
		contract := common.HexToAddress(d.VerifyingContract)
		return ethcrypto.Keccak256(
			concatBytes(
				domainWithContractTypeHash,
				ethcrypto.Keccak256([]byte(d.Name)),
				ethcrypto.Keccak256([]byte(d.Version)),
				bigIntTo32Bytes(big.NewInt(d.ChainID)),
				common.LeftPadBytes(contract.Bytes(), 32),
			),
		)
	}
	return ethcrypto.Keccak256(
		concatBytes(
			domainTypeHash,
			ethcrypto.Keccak256([]byte(d.Name)),
			ethcrypto.Keccak256([]byte(d.Version)),
			bigIntTo32Bytes(big.NewInt(d.ChainID)),
		),
	)
}

// HashOrder computes the EIP-712 digest an order signature was produced
// over. Identical (domain, intent) inputs always hash identically; changing
// any field changes the output.
func HashOrder(dom Domain, o domain.OrderIntent) ([]byte, error) {
	if !common.IsHexAddress(o.Maker) {
		return nil, fmt.Errorf("typeddata: invalid maker address %q", o.Maker)
	}
	maker := common.HexToAddress(o.Maker)

	structHash := ethcrypto.Keccak256(
		concatBytes(
			orderTypeHash,
			common.LeftPadBytes(maker.Bytes(), 32),
			ethcrypto.Keccak256([]byte(o.MarketID)),
			ethcrypto.Keccak256([]byte(o.Outcome)),
			ethcrypto.Keccak256([]byte(o.Price)),
			ethcrypto.Keccak256([]byte(o.Size)),
			ethcrypto.Keccak256([]byte(o.Nonce)),
			bigIntTo32Bytes(big.NewInt(o.Expiry)),
		),
	)

	return eip712Hash(dom.Separator(), structHash), nil
}

// HashCommitment computes the EIP-712 digest for a staking commitment.
func HashCommitment(dom Domain, c domain.CommitmentIntent) ([]byte, error) {
	if !common.IsHexAddress(c.UserAddress) {
		return nil, fmt.Errorf("typeddata: invalid user address %q", c.UserAddress)
	}
	user := common.HexToAddress(c.UserAddress)

	amount, ok := new(big.Int).SetString(c.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("typeddata: invalid amount %q", c.Amount)
	}

	structHash := ethcrypto.Keccak256(
		concatBytes(
			commitmentTypeHash,
			common.LeftPadBytes(user.Bytes(), 32),
			ethcrypto.Keccak256([]byte(c.Token)),
			bigIntTo32Bytes(amount),
			ethcrypto.Keccak256([]byte(c.Nonce)),
			bigIntTo32Bytes(big.NewInt(c.Timestamp)),
		),
	)

	return eip712Hash(dom.Separator(), structHash), nil
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}

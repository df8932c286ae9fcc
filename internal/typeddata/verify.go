package typeddata

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/predifi/intent-gateway/internal/domain"
)

// sigLen is the expected signature length: r (32) || s (32) || v (1).
const sigLen = 65

// RecoverSigner recovers the address that produced sigHex over a 32-byte
// digest. The recovery byte v is accepted as 0/1 or 27/28. All decode
// failures return an error wrapping domain.ErrInvalidSignature; a
// non-nil address is only ever returned alongside a nil error.
func RecoverSigner(digest []byte, sigHex string) (common.Address, error) {
	raw, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if len(raw) != sigLen {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d",
			domain.ErrInvalidSignature, sigLen, len(raw))
	}

	// Work on a copy: SigToPub wants v in {0,1} and callers keep their hex.
	sig := make([]byte, sigLen)
	copy(sig, raw)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery id %d",
			domain.ErrInvalidSignature, raw[64])
	}

	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	return ethcrypto.PubkeyToAddress(*pub), nil
}

package typeddata

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/predifi/intent-gateway/internal/domain"
)

const (
	testKeyHex      = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	otherTestKeyHex = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
)

var testSchema = NewSchema(137, "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")

func testOrder(maker string) domain.OrderIntent {
	return domain.OrderIntent{
		Maker:    maker,
		MarketID: "m1",
		Outcome:  domain.OutcomeYes,
		Price:    "0.42",
		Size:     "10",
		Nonce:    "n1",
		Expiry:   1900000000,
	}
}

func TestHashOrderDeterministic(t *testing.T) {
	order := testOrder("0x3535353535353535353535353535353535353535")

	first, err := HashOrder(testSchema.Order, order)
	if err != nil {
		t.Fatalf("HashOrder failed: %v", err)
	}
	second, err := HashOrder(testSchema.Order, order)
	if err != nil {
		t.Fatalf("HashOrder failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("digest not stable across calls: %x vs %x", first, second)
	}
	if len(first) != 32 {
		t.Errorf("expected 32-byte digest, got %d bytes", len(first))
	}
}

func TestHashOrderFieldSensitivity(t *testing.T) {
	base := testOrder("0x3535353535353535353535353535353535353535")
	baseDigest, err := HashOrder(testSchema.Order, base)
	if err != nil {
		t.Fatalf("HashOrder failed: %v", err)
	}

	mutations := map[string]domain.OrderIntent{
		"maker":    testOrder("0x0000000000000000000000000000000000000001"),
		"marketId": func() domain.OrderIntent { o := base; o.MarketID = "m2"; return o }(),
		"outcome":  func() domain.OrderIntent { o := base; o.Outcome = domain.OutcomeNo; return o }(),
		"price":    func() domain.OrderIntent { o := base; o.Price = "0.43"; return o }(),
		"size":     func() domain.OrderIntent { o := base; o.Size = "11"; return o }(),
		"nonce":    func() domain.OrderIntent { o := base; o.Nonce = "n2"; return o }(),
		"expiry":   func() domain.OrderIntent { o := base; o.Expiry = 1900000001; return o }(),
	}

	for field, mutated := range mutations {
		digest, err := HashOrder(testSchema.Order, mutated)
		if err != nil {
			t.Fatalf("HashOrder with mutated %s failed: %v", field, err)
		}
		if bytes.Equal(baseDigest, digest) {
			t.Errorf("changing %s did not change the digest", field)
		}
	}
}

func TestHashOrderDomainSensitivity(t *testing.T) {
	order := testOrder("0x3535353535353535353535353535353535353535")

	baseDigest, err := HashOrder(testSchema.Order, order)
	if err != nil {
		t.Fatalf("HashOrder failed: %v", err)
	}

	otherChain := NewSchema(80002, testSchema.Order.VerifyingContract)
	otherDigest, err := HashOrder(otherChain.Order, order)
	if err != nil {
		t.Fatalf("HashOrder failed: %v", err)
	}
	if bytes.Equal(baseDigest, otherDigest) {
		t.Error("changing chain ID did not change the digest")
	}

	noContract := testSchema.Order
	noContract.VerifyingContract = ""
	noContractDigest, err := HashOrder(noContract, order)
	if err != nil {
		t.Fatalf("HashOrder failed: %v", err)
	}
	if bytes.Equal(baseDigest, noContractDigest) {
		t.Error("dropping the verifying contract did not change the digest")
	}
}

func TestHashOrderRejectsBadMaker(t *testing.T) {
	if _, err := HashOrder(testSchema.Order, testOrder("not-an-address")); err == nil {
		t.Error("expected error for invalid maker address")
	}
}

func TestHashCommitmentAmountValidation(t *testing.T) {
	c := domain.CommitmentIntent{
		UserAddress: "0x3535353535353535353535353535353535353535",
		Token:       "USDC",
		Amount:      "1000000000000000000",
		Nonce:       "n1",
		Timestamp:   1700000000,
	}
	if _, err := HashCommitment(testSchema.Commitment, c); err != nil {
		t.Fatalf("HashCommitment failed: %v", err)
	}

	c.Amount = "not-a-number"
	if _, err := HashCommitment(testSchema.Commitment, c); err == nil {
		t.Error("expected error for non-numeric amount")
	}

	c.Amount = "-1"
	if _, err := HashCommitment(testSchema.Commitment, c); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestSignAndRecoverRoundTrip(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	order := testOrder(signer.Address().Hex())
	digest, err := HashOrder(testSchema.Order, order)
	if err != nil {
		t.Fatalf("HashOrder failed: %v", err)
	}

	sig, err := signer.SignDigest(digest)
	if err != nil {
		t.Fatalf("SignDigest failed: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+130 {
		t.Fatalf("unexpected signature encoding: %q", sig)
	}

	recovered, err := RecoverSigner(digest, sig)
	if err != nil {
		t.Fatalf("RecoverSigner failed: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
}

func TestRecoverSignerWrongKey(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	other, err := NewSigner(otherTestKeyHex)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	order := testOrder(signer.Address().Hex())
	digest, err := HashOrder(testSchema.Order, order)
	if err != nil {
		t.Fatalf("HashOrder failed: %v", err)
	}

	sig, err := other.SignDigest(digest)
	if err != nil {
		t.Fatalf("SignDigest failed: %v", err)
	}

	recovered, err := RecoverSigner(digest, sig)
	if err != nil {
		t.Fatalf("RecoverSigner failed: %v", err)
	}
	if recovered == signer.Address() {
		t.Error("signature from a different key recovered the claimed principal")
	}
	if recovered != other.Address() {
		t.Errorf("recovered %s, want the actual signer %s", recovered.Hex(), other.Address().Hex())
	}
}

func TestRecoverSignerMalformed(t *testing.T) {
	digest := make([]byte, 32)

	cases := map[string]string{
		"not hex":         "zzzz",
		"missing prefix":  "deadbeef",
		"too short":       "0xdeadbeef",
		"bad recovery id": "0x" + strings.Repeat("11", 64) + "05",
	}

	for name, sig := range cases {
		if _, err := RecoverSigner(digest, sig); !errors.Is(err, domain.ErrInvalidSignature) {
			t.Errorf("%s: got %v, want ErrInvalidSignature", name, err)
		}
	}
}

func TestRecoverSignerAcceptsBothVEncodings(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	digest, err := HashCommitment(testSchema.Commitment, domain.CommitmentIntent{
		UserAddress: signer.Address().Hex(),
		Token:       "USDC",
		Amount:      "5000000000000000000",
		Nonce:       "n9",
		Timestamp:   1700000000,
	})
	if err != nil {
		t.Fatalf("HashCommitment failed: %v", err)
	}

	sig, err := signer.SignDigest(digest)
	if err != nil {
		t.Fatalf("SignDigest failed: %v", err)
	}

	// Rewrite v from 27/28 to 0/1 and verify recovery still succeeds.
	raw := sig[2:]
	vByte := raw[len(raw)-2:]
	var lowered string
	switch vByte {
	case "1b":
		lowered = "0x" + raw[:len(raw)-2] + "00"
	case "1c":
		lowered = "0x" + raw[:len(raw)-2] + "01"
	default:
		t.Fatalf("unexpected v byte %q", vByte)
	}

	recovered, err := RecoverSigner(digest, lowered)
	if err != nil {
		t.Fatalf("RecoverSigner with v in {0,1} failed: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
}

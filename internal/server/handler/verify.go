package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/predifi/intent-gateway/internal/domain"
	"github.com/predifi/intent-gateway/internal/typeddata"
)

// VerifyHandler serves the stateless verification endpoint. It recomputes
// the digest for a signed payload and reports the recovered signer without
// touching storage, so callers can debug signing ceremonies safely.
type VerifyHandler struct {
	schema typeddata.Schema
	logger *slog.Logger
}

// NewVerifyHandler creates a VerifyHandler bound to the given schema.
func NewVerifyHandler(schema typeddata.Schema, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{schema: schema, logger: logger}
}

type verifyRequest struct {
	Kind       domain.IntentKind        `json:"kind"`
	Order      *domain.OrderIntent      `json:"order,omitempty"`
	Commitment *domain.CommitmentIntent `json:"commitment,omitempty"`
	Signature  string                   `json:"signature"`
}

type verifyResponse struct {
	Valid  bool   `json:"valid"`
	Signer string `json:"signer,omitempty"`
	Digest string `json:"digest,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Verify recomputes the typed-data digest and recovers the signer.
// POST /api/verify
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid request body: "+err.Error())
		return
	}

	var (
		digest    []byte
		principal string
		err       error
	)
	switch req.Kind {
	case domain.KindOrder:
		if req.Order == nil {
			writeError(w, http.StatusBadRequest, "malformed_request", "order payload required")
			return
		}
		principal = req.Order.Maker
		digest, err = typeddata.HashOrder(h.schema.Order, *req.Order)
	case domain.KindCommitment:
		if req.Commitment == nil {
			writeError(w, http.StatusBadRequest, "malformed_request", "commitment payload required")
			return
		}
		principal = req.Commitment.UserAddress
		digest, err = typeddata.HashCommitment(h.schema.Commitment, *req.Commitment)
	default:
		writeError(w, http.StatusBadRequest, "malformed_request", "kind must be order or commitment")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}

	recovered, err := typeddata.RecoverSigner(digest, req.Signature)
	if err != nil {
		writeJSON(w, http.StatusOK, verifyResponse{
			Valid:  false,
			Digest: hexutil.Encode(digest),
			Reason: "invalid_signature",
		})
		return
	}

	resp := verifyResponse{
		Signer: recovered.Hex(),
		Digest: hexutil.Encode(digest),
	}
	if strings.EqualFold(recovered.Hex(), principal) {
		resp.Valid = true
	} else {
		resp.Reason = "signer_mismatch"
	}

	writeJSON(w, http.StatusOK, resp)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/predifi/intent-gateway/internal/domain"
)

// CommitmentAdmitter is what the commitment handler requires from the
// admission pipeline.
type CommitmentAdmitter interface {
	Admit(ctx context.Context, sub domain.SignedCommitment) (domain.CommitmentRecord, error)
}

// CommitmentHandler serves staking commitment endpoints.
type CommitmentHandler struct {
	admitter CommitmentAdmitter
	store    domain.CommitmentStore
	logger   *slog.Logger
}

// NewCommitmentHandler creates a CommitmentHandler with the given pipeline,
// store, and logger.
func NewCommitmentHandler(admitter CommitmentAdmitter, store domain.CommitmentStore, logger *slog.Logger) *CommitmentHandler {
	return &CommitmentHandler{
		admitter: admitter,
		store:    store,
		logger:   logger,
	}
}

// SubmitCommitment runs a signed commitment through the admission pipeline.
// POST /api/commitments
func (h *CommitmentHandler) SubmitCommitment(w http.ResponseWriter, r *http.Request) {
	var sub domain.SignedCommitment
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid request body: "+err.Error())
		return
	}

	rec, err := h.admitter.Admit(r.Context(), sub)
	if err != nil {
		writeRejection(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, submitCommitmentResponse{
		Success:      true,
		Accepted:     true,
		CommitmentID: rec.ID,
		RecordID:     rec.ID,
		Status:       rec.Status,
		Commitment:   rec,
	})
}

// submitCommitmentResponse is the success envelope for commitment
// submission, mirroring the order envelope.
type submitCommitmentResponse struct {
	Success      bool                    `json:"success"`
	Accepted     bool                    `json:"accepted"`
	CommitmentID string                  `json:"commitmentId"`
	RecordID     string                  `json:"recordId"`
	Status       domain.IntentStatus     `json:"status"`
	Commitment   domain.CommitmentRecord `json:"commitment"`
}

type listCommitmentsResponse struct {
	Commitments []domain.CommitmentRecord `json:"commitments"`
}

// ListCommitments returns admitted commitments for a user.
// GET /api/commitments?user=0x...&limit=50&offset=0
func (h *CommitmentHandler) ListCommitments(w http.ResponseWriter, r *http.Request) {
	user := strings.ToLower(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "malformed_request", "user query parameter required")
		return
	}

	commitments, err := h.store.ListByUser(r.Context(), user, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list commitments failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list commitments")
		return
	}

	if commitments == nil {
		commitments = []domain.CommitmentRecord{}
	}

	writeJSON(w, http.StatusOK, listCommitmentsResponse{Commitments: commitments})
}

// GetCommitment returns a single admitted commitment by ID.
// GET /api/commitments/{id}
func (h *CommitmentHandler) GetCommitment(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "malformed_request", "missing commitment id")
		return
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "commitment not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get commitment failed",
			slog.String("commitment_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get commitment")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

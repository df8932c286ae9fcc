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

// OrderAdmitter is what the order handler requires from the admission
// pipeline.
type OrderAdmitter interface {
	Admit(ctx context.Context, sub domain.SignedOrder) (domain.OrderRecord, error)
}

// OrderHandler serves order submission and lookup endpoints.
type OrderHandler struct {
	admitter OrderAdmitter
	store    domain.OrderIntentStore
	logger   *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given pipeline, store,
// and logger.
func NewOrderHandler(admitter OrderAdmitter, store domain.OrderIntentStore, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		admitter: admitter,
		store:    store,
		logger:   logger,
	}
}

// SubmitOrder runs a signed order through the admission pipeline.
// POST /api/orders
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var sub domain.SignedOrder
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid request body: "+err.Error())
		return
	}

	rec, err := h.admitter.Admit(r.Context(), sub)
	if err != nil {
		writeRejection(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, submitOrderResponse{
		Success:  true,
		Accepted: true,
		OrderID:  rec.ID,
		RecordID: rec.ID,
		Status:   rec.Status,
		Order:    rec,
	})
}

// submitOrderResponse is the success envelope for order submission. OrderID
// and RecordID carry the same value; both names are part of the client
// contract.
type submitOrderResponse struct {
	Success  bool                `json:"success"`
	Accepted bool                `json:"accepted"`
	OrderID  string              `json:"orderId"`
	RecordID string              `json:"recordId"`
	Status   domain.IntentStatus `json:"status"`
	Order    domain.OrderRecord  `json:"order"`
}

type listOrdersResponse struct {
	Orders []domain.OrderRecord `json:"orders"`
}

// ListOrders returns admitted orders for a maker.
// GET /api/orders?maker=0x...&limit=50&offset=0
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	maker := strings.ToLower(r.URL.Query().Get("maker"))
	if maker == "" {
		writeError(w, http.StatusBadRequest, "malformed_request", "maker query parameter required")
		return
	}

	orders, err := h.store.ListByMaker(r.Context(), maker, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list orders")
		return
	}

	if orders == nil {
		orders = []domain.OrderRecord{}
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// GetOrder returns a single admitted order by ID.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "malformed_request", "missing order id")
		return
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get order")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

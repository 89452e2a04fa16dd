package transfer

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/somulo1/chamaledger/internal/ledger"
)

// Handler exposes the operation endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type operationRequest struct {
	Type               string `json:"type"`
	Amount             int64  `json:"amount"`
	SourceUserID       string `json:"source_user_id"`
	SourceChamaID      string `json:"source_chama_id"`
	DestinationUserID  string `json:"destination_user_id"`
	DestinationChamaID string `json:"destination_chama_id"`
	Description        string `json:"description"`
	ClientTxID         string `json:"client_tx_id"`
}

type transactionResponse struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Amount            int64  `json:"amount"`
	SourceWallet      string `json:"source_wallet,omitempty"`
	DestinationWallet string `json:"destination_wallet,omitempty"`
	Status            string `json:"status"`
	Description       string `json:"description,omitempty"`
	ClientTxID        string `json:"client_tx_id,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func toResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:                t.ID,
		Type:              string(t.Kind),
		Amount:            t.Amount,
		SourceWallet:      t.SourceWallet,
		DestinationWallet: t.DestinationWallet,
		Status:            t.Status,
		Description:       t.Description,
		ClientTxID:        t.ClientTxID,
		CreatedAt:         t.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Execute processes one operation request.
func (h *Handler) Execute(c *fiber.Ctx) error {
	var req operationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	t, err := h.service.Execute(c.UserContext(), Request{
		Kind:             ledger.Kind(req.Type),
		Amount:           req.Amount,
		SourceOwner:      ledger.OwnerRef{UserID: req.SourceUserID, ChamaID: req.SourceChamaID},
		DestinationOwner: ledger.OwnerRef{UserID: req.DestinationUserID, ChamaID: req.DestinationChamaID},
		Description:      req.Description,
		ClientTxID:       req.ClientTxID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			// Retried submission: replay the original record.
			return c.Status(http.StatusOK).JSON(toResponse(t))
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidOperation):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		case errors.Is(err, ledger.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ledger.ErrConflict):
			return fiber.NewError(http.StatusConflict, "concurrent conflict, retry later")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(toResponse(t))
}

package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/somulo1/chamaledger/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type resolveRequest struct {
	UserID  string `json:"user_id"`
	ChamaID string `json:"chama_id"`
}

type walletResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id,omitempty"`
	ChamaID  string `json:"chama_id,omitempty"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// Resolve returns the owner's wallet, creating one lazily.
func (h *Handler) Resolve(c *fiber.Ctx) error {
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Resolve(c.UserContext(), ledger.OwnerRef{UserID: req.UserID, ChamaID: req.ChamaID})
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidOperation) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(walletResponse{
		ID:       w.ID,
		UserID:   w.OwnerUser,
		ChamaID:  w.OwnerChama,
		Balance:  w.Balance,
		Currency: w.Currency,
	})
}

// Balance returns the owner's wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	owner := ledger.OwnerRef{
		UserID:  c.Query("user_id"),
		ChamaID: c.Query("chama_id"),
	}
	balance, err := h.service.GetBalance(c.UserContext(), owner)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ledger.ErrInvalidOperation):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": balance.WalletID,
		"balance":   balance.Amount,
		"currency":  balance.Currency,
		"timestamp": balance.AsOf,
	})
}

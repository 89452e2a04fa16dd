package history

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/somulo1/chamaledger/internal/ledger"
)

// Handler exposes transaction log HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a history handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transactionJSON struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Amount            int64  `json:"amount"`
	SourceWallet      string `json:"source_wallet,omitempty"`
	DestinationWallet string `json:"destination_wallet,omitempty"`
	Status            string `json:"status"`
	Description       string `json:"description,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func toJSON(t ledger.Transaction) transactionJSON {
	return transactionJSON{
		ID:                t.ID,
		Type:              string(t.Kind),
		Amount:            t.Amount,
		SourceWallet:      t.SourceWallet,
		DestinationWallet: t.DestinationWallet,
		Status:            t.Status,
		Description:       t.Description,
		CreatedAt:         t.CreatedAt.Format(time.RFC3339Nano),
	}
}

// List returns the owner's transaction history, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	owner := ledger.OwnerRef{
		UserID:  c.Query("user_id"),
		ChamaID: c.Query("chama_id"),
	}
	if err := owner.Validate(); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	page := ledger.Page{Limit: limit, Cursor: c.Query("cursor")}

	records, next, err := h.service.List(c.UserContext(), owner, page)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidOperation):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrNotFound):
			return fiber.NewError(http.StatusBadRequest, "unknown cursor")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	out := make([]transactionJSON, 0, len(records))
	for _, t := range records {
		out = append(out, toJSON(t))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactions": out,
		"next_cursor":  next,
	})
}

// Get returns a single transaction for audit lookups.
func (h *Handler) Get(c *fiber.Ctx) error {
	t, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toJSON(t))
}

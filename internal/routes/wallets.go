package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/somulo1/chamaledger/internal/wallet"
)

// RegisterWalletRoutes wires wallet resolution and balance endpoints.
func RegisterWalletRoutes(router fiber.Router, handler *wallet.Handler) {
	router.Post("/wallets/resolve", handler.Resolve)
	router.Get("/wallets/balance", handler.Balance)
}

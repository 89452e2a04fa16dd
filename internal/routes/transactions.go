package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/somulo1/chamaledger/internal/history"
	"github.com/somulo1/chamaledger/internal/transfer"
)

// RegisterTransactionRoutes wires the operation endpoint and the read-only
// transaction log. The extra middlewares guard the mutating endpoint only.
func RegisterTransactionRoutes(router fiber.Router, transferHandler *transfer.Handler, historyHandler *history.Handler, opMiddlewares ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, opMiddlewares...), transferHandler.Execute)
	router.Post("/transactions", handlers...)
	router.Get("/transactions", historyHandler.List)
	router.Get("/transactions/:id", historyHandler.Get)
}

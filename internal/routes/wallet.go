package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/qoin-labs/qoin-wallet/internal/wallet"
)

// RegisterWalletRoutes wires wallet registry endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, createLimiter fiber.Handler) {
	r.Post("/wallet/create", createLimiter, h.Create)
	r.Get("/transactions/:address", h.Transactions)
}

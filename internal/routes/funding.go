package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/qoin-labs/qoin-wallet/internal/funding"
)

// RegisterFundingRoutes wires deposit/withdraw endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/deposit", h.Deposit)
	r.Post("/withdraw", h.Withdraw)
}

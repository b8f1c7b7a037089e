package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/qoin-labs/qoin-wallet/internal/payments"
)

// RegisterPaymentRoutes wires transfer endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/send", h.Send)
}

package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/qoin-labs/qoin-wallet/internal/ledger"
	"github.com/qoin-labs/qoin-wallet/internal/wallet"
)

// Handler exposes the send endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sendRequest struct {
	FromAddress string          `json:"from_address"`
	ToAddress   string          `json:"to_address"`
	Amount      decimal.Decimal `json:"amount"`
	SecretKey   string          `json:"secret_key"`
	ClientToken string          `json:"client_tx_id"`
}

// Send processes a wallet-to-wallet transfer with the 1% fee.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Send(c.UserContext(), SendInput{
		From:        req.FromAddress,
		To:          req.ToAddress,
		Amount:      req.Amount,
		SecretKey:   req.SecretKey,
		ClientToken: req.ClientToken,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, wallet.ErrAuthentication):
			return fiber.NewError(http.StatusUnauthorized, "secret key does not match sender wallet")
		case errors.Is(err, wallet.ErrUnknownWallet), errors.Is(err, ledger.ErrUnknownAccount):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient balance")
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			return fiber.NewError(http.StatusConflict, "duplicate transaction")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":     true,
		"tx_hash":     res.TxHash,
		"amount_sent": res.AmountSent,
		"fee_charged": res.FeeCharged,
		"new_balance": res.NewBalance,
		"status":      res.Status,
	})
}

package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/qoin-labs/qoin-wallet/internal/ledger"
	"github.com/qoin-labs/qoin-wallet/internal/wallet"
)

// Handler exposes deposit and withdraw HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a funding HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type depositRequest struct {
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
	ClientToken   string          `json:"client_tx_id"`
}

type withdrawRequest struct {
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
	SecretKey     string          `json:"secret_key"`
	ClientToken   string          `json:"client_tx_id"`
}

// Deposit mints tokens into a wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Deposit(c.UserContext(), DepositInput{
		Address:     req.WalletAddress,
		Amount:      req.Amount,
		ClientToken: req.ClientToken,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":       true,
		"tx_hash":       res.TxHash,
		"amount_minted": res.Amount,
		"new_balance":   res.NewBalance,
		"status":        res.Status,
	})
}

// Withdraw burns tokens from a wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		Address:     req.WalletAddress,
		Amount:      req.Amount,
		SecretKey:   req.SecretKey,
		ClientToken: req.ClientToken,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":          true,
		"tx_hash":          res.TxHash,
		"amount_burned":    res.Amount,
		"amount_withdrawn": res.Amount,
		"new_balance":      res.NewBalance,
		"status":           res.Status,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, wallet.ErrUnknownWallet), errors.Is(err, ledger.ErrUnknownAccount):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	case errors.Is(err, wallet.ErrAuthentication):
		return fiber.NewError(http.StatusUnauthorized, "secret key does not match wallet")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return fiber.NewError(http.StatusConflict, "duplicate transaction")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

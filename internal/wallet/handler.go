package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes registry HTTP endpoints.
type Handler struct {
	service   *Service
	assetCode string
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service, assetCode string) *Handler {
	return &Handler{service: service, assetCode: assetCode}
}

type createRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type transactionResponse struct {
	TransactionID string          `json:"transaction_id"`
	Type          string          `json:"type"`
	FromAddress   string          `json:"from_address"`
	ToAddress     string          `json:"to_address"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	TxHash        string          `json:"tx_hash"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Create provisions a wallet and returns the secret key exactly once.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	wallet, secret, err := h.service.Create(c.UserContext(), req.UserID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrDuplicateUser):
			return fiber.NewError(http.StatusConflict, "user already has a wallet")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"wallet_address": wallet.Address,
		"secret_key":     secret,
		"message":        "Wallet created successfully. Store your secret key safely!",
		"warning":        "Save this secret key! It cannot be recovered.",
	})
}

// Balance reports the mirror and network balances for an address.
func (h *Handler) Balance(c *fiber.Ctx) error {
	address := c.Params("address")

	snapshot, err := h.service.Balance(c.UserContext(), address)
	if err != nil {
		if errors.Is(err, ErrUnknownWallet) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_address":  snapshot.Address,
		"balance_db":      snapshot.Local,
		"balance_stellar": snapshot.External,
		"currency":        h.assetCode,
	})
}

// Transactions lists postings touching the address, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	address := c.Params("address")
	limit := c.QueryInt("limit", 50)

	records, err := h.service.History(c.UserContext(), address, limit)
	if err != nil {
		if errors.Is(err, ErrUnknownWallet) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	transactions := make([]transactionResponse, 0, len(records))
	for _, rec := range records {
		transactions = append(transactions, transactionResponse{
			TransactionID: rec.TransactionID,
			Type:          rec.Kind,
			FromAddress:   rec.FromAddress,
			ToAddress:     rec.ToAddress,
			Amount:        rec.Amount,
			Fee:           rec.Fee,
			TxHash:        rec.TxHash,
			Status:        rec.Status,
			CreatedAt:     rec.CreatedAt,
		})
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_address": address,
		"transactions":   transactions,
	})
}

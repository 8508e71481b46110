package transfer

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/ledger"
	"github.com/sango-pay/sango_pay/internal/money"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler exposes the transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type moveRequest struct {
	SourceWalletID      string            `json:"source_wallet_id"`
	DestinationWalletID string            `json:"destination_wallet_id"`
	Amount              string            `json:"amount"`
	Currency            string            `json:"currency"`
	IdempotencyKey      string            `json:"idempotency_key"`
	Metadata            map[string]string `json:"metadata"`
}

type moveResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	Message       string `json:"message,omitempty"`
}

type logResponse struct {
	TransactionID       string            `json:"transaction_id"`
	IdempotencyKey      string            `json:"idempotency_key"`
	SourceWalletID      string            `json:"source_wallet_id,omitempty"`
	DestinationWalletID string            `json:"destination_wallet_id,omitempty"`
	Amount              string            `json:"amount"`
	Currency            string            `json:"currency"`
	Status              string            `json:"status"`
	Type                string            `json:"type"`
	Reference           string            `json:"reference"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Message             string            `json:"message,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Transfer processes a wallet-to-wallet transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	return h.move(c, h.service.Transfer)
}

// Deposit processes an external credit into a wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.move(c, h.service.Deposit)
}

// Withdraw processes a debit out of a wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.move(c, h.service.Withdraw)
}

func (h *Handler) move(c *fiber.Ctx, op func(ctx context.Context, in Input) (Result, error)) error {
	var req moveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if key := c.Get(idempotencyKeyHeader); key != "" {
		req.IdempotencyKey = key
	}
	if req.Currency == "" {
		return fiber.NewError(http.StatusBadRequest, "currency is required")
	}

	amount, err := money.ParseMinor(req.Amount, req.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := op(c.UserContext(), Input{
		SourceWalletID:      req.SourceWalletID,
		DestinationWalletID: req.DestinationWalletID,
		Amount:              amount,
		Currency:            req.Currency,
		IdempotencyKey:      req.IdempotencyKey,
		Metadata:            req.Metadata,
	})
	if err != nil {
		return mapError(c, err)
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(moveResponse{
		TransactionID: res.TransactionID,
		Status:        string(res.Status),
		Reference:     res.Reference,
		Message:       res.Message,
	})
}

// GetByReference fetches a transfer log by its client-facing reference.
func (h *Handler) GetByReference(c *fiber.Ctx) error {
	entry, err := h.service.GetByReference(c.UserContext(), c.Params("reference"))
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(toLogResponse(entry))
}

// GetByIdempotencyKey fetches a transfer log by idempotency key.
func (h *Handler) GetByIdempotencyKey(c *fiber.Ctx) error {
	key := c.Query("idempotency_key")
	if key == "" {
		return fiber.NewError(http.StatusBadRequest, "idempotency_key query parameter is required")
	}
	entry, err := h.service.GetByIdempotencyKey(c.UserContext(), key)
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(toLogResponse(entry))
}

func toLogResponse(entry ledger.TransferLog) logResponse {
	return logResponse{
		TransactionID:       entry.ID,
		IdempotencyKey:      entry.IdempotencyKey,
		SourceWalletID:      entry.SourceWalletID,
		DestinationWalletID: entry.DestinationWalletID,
		Amount:              money.FormatMinor(entry.Amount, entry.Currency),
		Currency:            entry.Currency,
		Status:              string(entry.Status),
		Type:                string(entry.Type),
		Reference:           entry.Reference,
		Metadata:            entry.Metadata,
		Message:             entry.ErrorMessage,
		CreatedAt:           entry.CreatedAt,
		UpdatedAt:           entry.UpdatedAt,
	}
}

func mapError(c *fiber.Ctx, err error) error {
	switch KindOf(err) {
	case KindValidation:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case KindNotFound:
		return fiber.NewError(http.StatusNotFound, err.Error())
	case KindBusinessRule:
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case KindContention:
		c.Set(fiber.HeaderRetryAfter, "1")
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

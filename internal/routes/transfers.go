package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/transfer"
)

// RegisterTransferRoutes wires money movement endpoints.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler) {
	r.Post("/transfers", h.Transfer)
	r.Post("/deposits", h.Deposit)
	r.Post("/withdrawals", h.Withdraw)
	r.Get("/transfers", h.GetByIdempotencyKey)
	r.Get("/transfers/:reference", h.GetByReference)
}

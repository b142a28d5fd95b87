package ledger

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kingsinvest/kings_invest/internal/middleware"
)

// AdminHandler exposes the review and adjustment endpoints.
type AdminHandler struct {
	service *Service
}

func NewAdminHandler(service *Service) *AdminHandler {
	return &AdminHandler{service: service}
}

type adjustmentRequest struct {
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	WalletKind string          `json:"wallet_kind"`
	StatType   string          `json:"stat_type"`
}

func (h *AdminHandler) Deposits(c *fiber.Ctx) error {
	txs, err := h.service.Deposits(c.UserContext(), c.Query("status"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toTransactions(txs))
}

func (h *AdminHandler) Withdrawals(c *fiber.Ctx) error {
	txs, err := h.service.Withdrawals(c.UserContext(), c.Query("status"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toTransactions(txs))
}

func (h *AdminHandler) UserWithdrawals(c *fiber.Ctx) error {
	txs, err := h.service.UserWithdrawals(c.UserContext(), c.Params("userId"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toTransactions(txs))
}

func (h *AdminHandler) resolve(c *fiber.Ctx, fn func(context.Context, string) (Result, error)) error {
	res, err := fn(c.UserContext(), c.Params("id"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toResult(res))
}

func (h *AdminHandler) ApproveDeposit(c *fiber.Ctx) error {
	return h.resolve(c, h.service.ApproveDeposit)
}

func (h *AdminHandler) DeclineDeposit(c *fiber.Ctx) error {
	return h.resolve(c, h.service.DeclineDeposit)
}

func (h *AdminHandler) ApproveWithdrawal(c *fiber.Ctx) error {
	return h.resolve(c, h.service.ApproveWithdrawal)
}

func (h *AdminHandler) DeclineWithdrawal(c *fiber.Ctx) error {
	return h.resolve(c, h.service.DeclineWithdrawal)
}

// Credit and Debit adjust a target user's wallet fields.
func (h *AdminHandler) Credit(c *fiber.Ctx) error {
	return h.adjust(c, h.service.AdminCredit)
}

func (h *AdminHandler) Debit(c *fiber.Ctx) error {
	return h.adjust(c, h.service.AdminDebit)
}

func (h *AdminHandler) adjust(c *fiber.Ctx, fn func(context.Context, AdjustmentRequest) (Result, error)) error {
	var req adjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := fn(c.UserContext(), AdjustmentRequest{
		AdminID:  middleware.UserID(c),
		UserID:   req.UserID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Kind:     req.WalletKind,
		StatType: req.StatType,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toResult(res))
}

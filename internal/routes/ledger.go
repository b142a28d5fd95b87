package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kingsinvest/kings_invest/internal/ledger"
	"github.com/kingsinvest/kings_invest/internal/plan"
)

// RegisterPlanRoutes exposes the public plan catalog.
func RegisterPlanRoutes(r fiber.Router, h *plan.Handler) {
	r.Get("/plans", h.List)
}

// RegisterLedgerRoutes wires the authenticated user endpoints. limit guards
// the state changing routes.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler, limit fiber.Handler) {
	r.Get("/wallet", h.Wallet)
	r.Get("/wallet/balance", h.Balance)
	r.Get("/activity", h.Activity)

	tx := r.Group("/transactions", limit)
	tx.Post("/deposit", h.Deposit)
	tx.Post("/withdraw", h.Withdraw)
	tx.Post("/invest", h.Invest)
}

// RegisterAdminRoutes wires the review and adjustment endpoints. The router
// must already enforce the admin role.
func RegisterAdminRoutes(r fiber.Router, h *ledger.AdminHandler) {
	r.Get("/deposits", h.Deposits)
	r.Post("/deposits/:id/approve", h.ApproveDeposit)
	r.Post("/deposits/:id/decline", h.DeclineDeposit)

	r.Get("/withdrawals", h.Withdrawals)
	r.Post("/withdrawals/:id/approve", h.ApproveWithdrawal)
	r.Post("/withdrawals/:id/decline", h.DeclineWithdrawal)
	r.Get("/users/:userId/withdrawals", h.UserWithdrawals)

	r.Post("/wallets/credit", h.Credit)
	r.Post("/wallets/debit", h.Debit)
}

package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kingsinvest/kings_invest/internal/middleware"
	"github.com/kingsinvest/kings_invest/internal/transaction"
	"github.com/kingsinvest/kings_invest/internal/wallet"
)

// Handler exposes the user facing ledger endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type fundsRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	WalletKind string          `json:"wallet_kind"`
}

type investRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	PlanID     string          `json:"plan_id"`
	Currency   string          `json:"currency"`
	WalletKind string          `json:"wallet_kind"`
}

type transactionResponse struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	WalletID    string         `json:"wallet_id,omitempty"`
	Kind        string         `json:"kind"`
	Amount      string         `json:"amount"`
	Status      string         `json:"status"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type walletResponse struct {
	ID        string    `json:"id"`
	Currency  string    `json:"currency"`
	Kind      string    `json:"kind"`
	Balance   string    `json:"balance"`
	Invested  string    `json:"invested"`
	Earnings  string    `json:"earnings"`
	UpdatedAt time.Time `json:"updated_at"`
}

type resultResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Wallet      *walletResponse     `json:"wallet,omitempty"`
}

func toTransaction(t transaction.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		WalletID:    t.WalletID,
		Kind:        string(t.Kind),
		Amount:      t.Amount.String(),
		Status:      string(t.Status),
		Description: transaction.Describe(t.Kind, t.Details),
		Details:     transaction.DetailsMap(t.Details),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTransactions(txs []transaction.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransaction(t))
	}
	return out
}

func toWallet(w *wallet.Wallet) *walletResponse {
	if w == nil {
		return nil
	}
	return &walletResponse{
		ID:        w.ID,
		Currency:  w.Currency,
		Kind:      string(w.Kind),
		Balance:   w.Balance.String(),
		Invested:  w.Invested.String(),
		Earnings:  w.Earnings.String(),
		UpdatedAt: w.UpdatedAt,
	}
}

func toResult(r Result) resultResponse {
	return resultResponse{Transaction: toTransaction(r.Transaction), Wallet: toWallet(r.Wallet)}
}

// httpError maps ledger errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyResolved):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, "insufficient funds")
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}

func currentUser(c *fiber.Ctx) (string, error) {
	uid := middleware.UserID(c)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return uid, nil
}

// Wallet returns the caller's wallet snapshot.
func (h *Handler) Wallet(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	snap, err := h.service.Snapshot(c.UserContext(), uid)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance":           snap.Balance.String(),
		"invested":          snap.Invested.String(),
		"earnings":          snap.Earnings.String(),
		"total_withdrawals": snap.TotalWithdrawals.String(),
		"as_of":             snap.AsOf,
	})
}

// Balance returns the caller's spendable balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	balance, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"balance": balance.String()})
}

// Activity returns the caller's most recent transactions.
func (h *Handler) Activity(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	activity, err := h.service.Activity(c.UserContext(), uid, c.QueryInt("limit", DefaultActivityLimit))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactions": toTransactions(activity.Transactions),
		"total_count":  activity.Total,
	})
}

// Deposit submits a deposit for approval.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req fundsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	t, err := h.service.SubmitDeposit(c.UserContext(), FundsRequest{
		UserID: uid, Amount: req.Amount, Currency: req.Currency, Kind: req.WalletKind,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toTransaction(t))
}

// Withdraw submits a withdrawal, escrowing the amount immediately.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req fundsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.SubmitWithdrawal(c.UserContext(), FundsRequest{
		UserID: uid, Amount: req.Amount, Currency: req.Currency, Kind: req.WalletKind,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResult(res))
}

// Invest buys into an investment plan.
func (h *Handler) Invest(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req investRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Invest(c.UserContext(), InvestRequest{
		UserID: uid, Amount: req.Amount, PlanID: req.PlanID, Currency: req.Currency, Kind: req.WalletKind,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResult(res))
}

package transaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kingsinvest/kings_invest/internal/wallet"
)

// Details is the per-kind metadata attached to a transaction. The concrete
// types below are the only implementations.
type Details interface {
	detailsType() string
}

// DepositRequest records what the user said they sent. Coin is set for
// recognised crypto deposits.
type DepositRequest struct {
	Currency   string      `json:"currency"`
	WalletKind wallet.Kind `json:"wallet_kind"`
	Coin       string      `json:"coin,omitempty"`
}

// WithdrawalRequest records the requested payout currency.
type WithdrawalRequest struct {
	Currency   string      `json:"currency"`
	WalletKind wallet.Kind `json:"wallet_kind"`
}

// Investment records a plan purchase.
type Investment struct {
	PlanID     string      `json:"plan_id"`
	Currency   string      `json:"currency"`
	WalletKind wallet.Kind `json:"wallet_kind"`
}

// Direction of an admin adjustment.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// AdminAdjustment records a manual credit or debit by an administrator.
type AdminAdjustment struct {
	Currency   string          `json:"currency"`
	WalletKind wallet.Kind     `json:"wallet_kind"`
	Direction  Direction       `json:"direction"`
	StatType   wallet.StatType `json:"stat_type"`
	AdminID    string          `json:"admin_id,omitempty"`
}

func (DepositRequest) detailsType() string    { return "deposit_request" }
func (WithdrawalRequest) detailsType() string { return "withdrawal_request" }
func (Investment) detailsType() string        { return "investment" }
func (AdminAdjustment) detailsType() string   { return "admin_adjustment" }

// ErrUnknownDetails is returned when decoding a details payload of an unknown type.
var ErrUnknownDetails = errors.New("unknown transaction details type")

// recognisedCoins are the crypto currencies tagged with a coin on deposit.
var recognisedCoins = map[string]string{
	"BTC":  "Bitcoin",
	"ETH":  "Ethereum",
	"USDT": "Tether",
	"XRP":  "Ripple",
}

// CoinTag returns the coin tag for a crypto deposit in currency, or "".
func CoinTag(kind wallet.Kind, currency string) string {
	if kind != wallet.KindCrypto {
		return ""
	}
	if _, ok := recognisedCoins[currency]; ok {
		return currency
	}
	return ""
}

// Describe renders a human readable label such as "Bitcoin (BTC) crypto deposit".
func Describe(kind Kind, d Details) string {
	var currency, coin string
	var wk wallet.Kind
	switch v := d.(type) {
	case DepositRequest:
		currency, wk, coin = v.Currency, v.WalletKind, v.Coin
	case WithdrawalRequest:
		currency, wk = v.Currency, v.WalletKind
		coin = CoinTag(wk, currency)
	case Investment:
		currency, wk = v.Currency, v.WalletKind
	case AdminAdjustment:
		currency, wk = v.Currency, v.WalletKind
	}
	if name, ok := recognisedCoins[coin]; ok {
		return fmt.Sprintf("%s (%s) crypto %s", name, coin, kind)
	}
	return fmt.Sprintf("%s %s %s", currency, wk, kind)
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeDetails serialises details with a type tag for storage.
func EncodeDetails(d Details) ([]byte, error) {
	if d == nil {
		return nil, errors.New("transaction details are required")
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return json.Marshal(envelope{Type: d.detailsType(), Data: data})
}

// DecodeDetails restores details written by EncodeDetails.
func DecodeDetails(raw []byte) (Details, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode details envelope: %w", err)
	}
	var (
		d   Details
		err error
	)
	switch env.Type {
	case DepositRequest{}.detailsType():
		var v DepositRequest
		err = json.Unmarshal(env.Data, &v)
		d = v
	case WithdrawalRequest{}.detailsType():
		var v WithdrawalRequest
		err = json.Unmarshal(env.Data, &v)
		d = v
	case Investment{}.detailsType():
		var v Investment
		err = json.Unmarshal(env.Data, &v)
		d = v
	case AdminAdjustment{}.detailsType():
		var v AdminAdjustment
		err = json.Unmarshal(env.Data, &v)
		d = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDetails, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", env.Type, err)
	}
	return d, nil
}

// DetailsMap flattens details for JSON responses.
func DetailsMap(d Details) map[string]any {
	out := map[string]any{}
	if d == nil {
		return out
	}
	out["type"] = d.detailsType()
	switch v := d.(type) {
	case DepositRequest:
		out["currency"], out["wallet_kind"] = v.Currency, v.WalletKind
		if v.Coin != "" {
			out["coin"] = v.Coin
		}
	case WithdrawalRequest:
		out["currency"], out["wallet_kind"] = v.Currency, v.WalletKind
	case Investment:
		out["currency"], out["wallet_kind"], out["plan_id"] = v.Currency, v.WalletKind, v.PlanID
	case AdminAdjustment:
		out["currency"], out["wallet_kind"] = v.Currency, v.WalletKind
		out["direction"], out["stat_type"] = v.Direction, v.StatType
		out["admin_adjustment"] = true
	}
	return out
}

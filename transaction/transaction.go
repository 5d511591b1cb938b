package transaction

import (
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/HayleyDeckers/ledger/safe"
)

// amountScale is the number of decimal places carried by Amount and Balance.
const amountScale = 4

var balanceBounds = safe.Int128Bounds(-amountScale)

// TransactionID identifies a deposit or withdrawal. IDs are globally unique but
// need not be sequential.
type TransactionID struct {
	id uint32
}

// NewTransactionID wraps a raw transaction id.
func NewTransactionID(id uint32) TransactionID {
	return TransactionID{id: id}
}

// Uint32 returns the raw id.
func (t TransactionID) Uint32() uint32 {
	return t.id
}

func (t TransactionID) String() string {
	return strconv.FormatUint(uint64(t.id), 10)
}

// ClientID identifies a client account.
type ClientID struct {
	id uint16
}

// NewClientID wraps a raw client id.
func NewClientID(id uint16) ClientID {
	return ClientID{id: id}
}

// Uint16 returns the raw id.
func (c ClientID) Uint16() uint16 {
	return c.id
}

func (c ClientID) String() string {
	return strconv.FormatUint(uint64(c.id), 10)
}

// Amount is a non-negative quantity with four decimal places, stored as an
// integer number of 1/10000 units.
type Amount struct {
	units uint64
}

// NewAmount builds an Amount from a count of 1/10000 units.
func NewAmount(units uint64) Amount {
	return Amount{units: units}
}

// Units returns the amount as a count of 1/10000 units.
func (a Amount) Units() uint64 {
	return a.units
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.units == 0
}

// Decimal returns the amount as a decimal with four decimal places.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(a.units), -amountScale)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(amountScale)
}

// Balance is a signed quantity with four decimal places and the range of a
// signed 128-bit integer count of 1/10000 units. Balances only change through
// TryAdd and TrySub, which refuse to leave that range.
type Balance struct {
	value decimal.Decimal
}

// NewBalance builds a Balance from a signed count of 1/10000 units.
func NewBalance(units int64) Balance {
	return Balance{value: decimal.New(units, -amountScale)}
}

// TryAdd returns the balance increased by amount, or a BalanceOverflow error.
// The receiver is not modified.
func (b Balance) TryAdd(amount Amount) (Balance, error) {
	next, err := balanceBounds.Add(b.value, amount.Decimal())
	if err != nil {
		return Balance{}, boundsError(err)
	}

	return Balance{value: next}, nil
}

// TrySub returns the balance decreased by amount, or a BalanceUnderflow error.
// The receiver is not modified.
func (b Balance) TrySub(amount Amount) (Balance, error) {
	next, err := balanceBounds.Sub(b.value, amount.Decimal())
	if err != nil {
		return Balance{}, boundsError(err)
	}

	return Balance{value: next}, nil
}

// Covers reports whether the balance is at least amount.
func (b Balance) Covers(amount Amount) bool {
	return b.value.GreaterThanOrEqual(amount.Decimal())
}

// IsNegative reports whether the balance is below zero.
func (b Balance) IsNegative() bool {
	return b.value.IsNegative()
}

// IsZero reports whether the balance is zero.
func (b Balance) IsZero() bool {
	return b.value.IsZero()
}

// Equal reports whether both balances hold the same value.
func (b Balance) Equal(other Balance) bool {
	return b.value.Equal(other.value)
}

// Decimal returns the balance as a decimal.
func (b Balance) Decimal() decimal.Decimal {
	return b.value
}

func (b Balance) String() string {
	return b.value.StringFixed(amountScale)
}

// DisputeStatus is the dispute lifecycle state of a deposit.
//
// Transitions:
//
//	normal → disputed
//	disputed → normal (resolve) | charged_back (chargeback)
//	charged_back is terminal
type DisputeStatus string

const (
	// StatusNormal marks a deposit that is not under dispute.
	StatusNormal DisputeStatus = "normal"
	// StatusDisputed marks a deposit whose amount is currently held.
	StatusDisputed DisputeStatus = "disputed"
	// StatusChargedBack marks a deposit that was reversed; terminal.
	StatusChargedBack DisputeStatus = "charged_back"
)

// DepositRecord is the engine's record of a successful deposit. Only deposits
// are disputable, so withdrawals never get one.
type DepositRecord struct {
	ID     TransactionID
	Client ClientID
	Amount Amount
	Status DisputeStatus
}

// Client is the balance state of one client account.
type Client struct {
	ID        ClientID
	Available Balance
	Held      Balance
	Locked    bool
}

// Total returns available plus held funds. Both operands are in range, so the
// sum is exact even when it exceeds the Balance range.
func (c Client) Total() Balance {
	return Balance{value: c.Available.value.Add(c.Held.value)}
}

package transaction

import (
	"math"
	"strconv"
	"strings"
)

// ActionKind names the kind of an AccountAction.
type ActionKind string

const (
	// KindDeposit credits a client's available funds.
	KindDeposit ActionKind = "deposit"
	// KindWithdrawal debits a client's available funds.
	KindWithdrawal ActionKind = "withdrawal"
	// KindDispute moves a deposit's amount from available to held.
	KindDispute ActionKind = "dispute"
	// KindResolve moves a disputed amount from held back to available.
	KindResolve ActionKind = "resolve"
	// KindChargeback removes a disputed amount from held and locks the client.
	KindChargeback ActionKind = "chargeback"
)

// ParseActionKind parses a kind name case-insensitively.
func ParseActionKind(s string) (ActionKind, error) {
	kind := ActionKind(strings.ToLower(strings.TrimSpace(s)))

	switch kind {
	case KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback:
		return kind, nil
	default:
		return "", NewDomainError(ErrorInvalidInput, "type", "unknown transaction type "+strconv.Quote(s))
	}
}

// HasAmount reports whether actions of this kind carry an amount.
func (k ActionKind) HasAmount() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// AccountAction is one instruction for the engine. The set of implementations
// is closed: Deposit, Withdrawal, Dispute, Resolve and Chargeback.
type AccountAction interface {
	Kind() ActionKind
	TxID() TransactionID
	ClientID() ClientID
	isAccountAction()
}

// Deposit credits Amount to the client's available funds under a new
// transaction id.
type Deposit struct {
	Tx     TransactionID
	Client ClientID
	Amount Amount
}

// Withdrawal debits Amount from the client's available funds under a new
// transaction id.
type Withdrawal struct {
	Tx     TransactionID
	Client ClientID
	Amount Amount
}

// Dispute references an earlier deposit by Tx. Client is ignored unless the
// engine checks dispute ownership.
type Dispute struct {
	Tx     TransactionID
	Client ClientID
}

// Resolve settles a disputed deposit in the client's favor.
type Resolve struct {
	Tx     TransactionID
	Client ClientID
}

// Chargeback reverses a disputed deposit and locks the client.
type Chargeback struct {
	Tx     TransactionID
	Client ClientID
}

func (Deposit) Kind() ActionKind    { return KindDeposit }
func (Withdrawal) Kind() ActionKind { return KindWithdrawal }
func (Dispute) Kind() ActionKind    { return KindDispute }
func (Resolve) Kind() ActionKind    { return KindResolve }
func (Chargeback) Kind() ActionKind { return KindChargeback }

func (a Deposit) TxID() TransactionID    { return a.Tx }
func (a Withdrawal) TxID() TransactionID { return a.Tx }
func (a Dispute) TxID() TransactionID    { return a.Tx }
func (a Resolve) TxID() TransactionID    { return a.Tx }
func (a Chargeback) TxID() TransactionID { return a.Tx }

func (a Deposit) ClientID() ClientID    { return a.Client }
func (a Withdrawal) ClientID() ClientID { return a.Client }
func (a Dispute) ClientID() ClientID    { return a.Client }
func (a Resolve) ClientID() ClientID    { return a.Client }
func (a Chargeback) ClientID() ClientID { return a.Client }

func (Deposit) isAccountAction()    {}
func (Withdrawal) isAccountAction() {}
func (Dispute) isAccountAction()    {}
func (Resolve) isAccountAction()    {}
func (Chargeback) isAccountAction() {}

// NewAction builds the action of the given kind. amount is ignored for kinds
// that do not carry one.
func NewAction(kind ActionKind, client ClientID, tx TransactionID, amount Amount) (AccountAction, error) {
	switch kind {
	case KindDeposit:
		return Deposit{Tx: tx, Client: client, Amount: amount}, nil
	case KindWithdrawal:
		return Withdrawal{Tx: tx, Client: client, Amount: amount}, nil
	case KindDispute:
		return Dispute{Tx: tx, Client: client}, nil
	case KindResolve:
		return Resolve{Tx: tx, Client: client}, nil
	case KindChargeback:
		return Chargeback{Tx: tx, Client: client}, nil
	default:
		return nil, NewDomainError(ErrorInvalidInput, "type", "unknown transaction type "+strconv.Quote(string(kind)))
	}
}

const maxFractionDigits = amountScale

// ParseAmount parses a non-negative decimal with at most four fractional
// digits, such as "10", "1.5", "1." or "0.0001". Signs, exponents, empty input
// and values beyond the Amount range are rejected.
func ParseAmount(s string) (Amount, error) {
	whole, frac, hasDot := strings.Cut(s, ".")

	if whole == "" {
		return Amount{}, NewDomainError(ErrorInvalidInput, "amount", "amount must start with a digit: "+strconv.Quote(s))
	}

	if hasDot && len(frac) > maxFractionDigits {
		return Amount{}, NewDomainError(ErrorInvalidInput, "amount", "amount has more than 4 decimal places: "+strconv.Quote(s))
	}

	var units uint64

	for _, r := range whole {
		d, ok := digit(r)
		if !ok {
			return Amount{}, NewDomainError(ErrorInvalidInput, "amount", "amount is not a non-negative decimal: "+strconv.Quote(s))
		}

		if units > (math.MaxUint64-d)/10 {
			return Amount{}, NewDomainError(ErrorInvalidInput, "amount", "amount too large: "+strconv.Quote(s))
		}

		units = units*10 + d
	}

	var fraction uint64

	for i := 0; i < maxFractionDigits; i++ {
		fraction *= 10

		if i >= len(frac) {
			continue
		}

		d, ok := digit(rune(frac[i]))
		if !ok {
			return Amount{}, NewDomainError(ErrorInvalidInput, "amount", "amount is not a non-negative decimal: "+strconv.Quote(s))
		}

		fraction += d
	}

	const scale = 10_000
	if units > (math.MaxUint64-fraction)/scale {
		return Amount{}, NewDomainError(ErrorInvalidInput, "amount", "amount too large: "+strconv.Quote(s))
	}

	return Amount{units: units*scale + fraction}, nil
}

func digit(r rune) (uint64, bool) {
	if r < '0' || r > '9' {
		return 0, false
	}

	return uint64(r - '0'), true
}

package transaction

import (
	"cmp"
	"fmt"
	"slices"
)

// Engine applies account actions to an in-memory ledger of clients and
// deposits. The zero value is not usable; call NewEngine.
type Engine struct {
	seen     map[TransactionID]struct{}
	deposits map[TransactionID]*DepositRecord
	clients  map[ClientID]Client

	checkDisputeClient bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDisputeClientCheck makes dispute, resolve and chargeback fail with
// ClientMismatch when the action's client does not own the referenced deposit.
func WithDisputeClientCheck(enabled bool) EngineOption {
	return func(e *Engine) {
		e.checkDisputeClient = enabled
	}
}

// NewEngine returns an empty engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		seen:     make(map[TransactionID]struct{}),
		deposits: make(map[TransactionID]*DepositRecord),
		clients:  make(map[ClientID]Client),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	return e
}

// Apply validates action against the current state and commits it. On error
// the engine state is unchanged and the error is a DomainError.
func (e *Engine) Apply(action AccountAction) error {
	switch a := action.(type) {
	case Deposit:
		return e.deposit(a)
	case Withdrawal:
		return e.withdraw(a)
	case Dispute:
		return e.dispute(a)
	case Resolve:
		return e.resolve(a)
	case Chargeback:
		return e.chargeback(a)
	default:
		return NewDomainError(ErrorInvalidInput, "action", fmt.Sprintf("unsupported action %T", action))
	}
}

// Clients returns a snapshot of every client, ordered by id.
func (e *Engine) Clients() []Client {
	out := make([]Client, 0, len(e.clients))
	for _, c := range e.clients {
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b Client) int {
		return cmp.Compare(a.ID.id, b.ID.id)
	})

	return out
}

// Client returns the state of one client.
func (e *Engine) Client(id ClientID) (Client, bool) {
	c, ok := e.clients[id]

	return c, ok
}

// Deposit returns a copy of the deposit record for tx.
func (e *Engine) Deposit(tx TransactionID) (DepositRecord, bool) {
	rec, ok := e.deposits[tx]
	if !ok {
		return DepositRecord{}, false
	}

	return *rec, true
}

func (e *Engine) isDuplicate(tx TransactionID) error {
	if _, ok := e.seen[tx]; ok {
		return NewDomainError(ErrorDuplicateTransaction, "tx", "transaction "+tx.String()+" already processed")
	}

	return nil
}

func (e *Engine) clientOrNew(id ClientID) Client {
	if c, ok := e.clients[id]; ok {
		return c
	}

	return Client{ID: id}
}

func (e *Engine) deposit(a Deposit) error {
	if err := e.isDuplicate(a.Tx); err != nil {
		return err
	}

	next, err := e.clientOrNew(a.Client).credit(a.Amount)
	if err != nil {
		return err
	}

	e.clients[a.Client] = next
	e.seen[a.Tx] = struct{}{}
	e.deposits[a.Tx] = &DepositRecord{
		ID:     a.Tx,
		Client: a.Client,
		Amount: a.Amount,
		Status: StatusNormal,
	}

	return nil
}

func (e *Engine) withdraw(a Withdrawal) error {
	if err := e.isDuplicate(a.Tx); err != nil {
		return err
	}

	next, err := e.clientOrNew(a.Client).debit(a.Amount)
	if err != nil {
		return err
	}

	e.clients[a.Client] = next
	e.seen[a.Tx] = struct{}{}

	return nil
}

// disputed looks up the deposit an action refers to and checks that it is in
// the wanted status.
func (e *Engine) disputed(tx TransactionID, client ClientID, want DisputeStatus) (*DepositRecord, Client, error) {
	rec, ok := e.deposits[tx]
	if !ok {
		return nil, Client{}, NewDomainError(ErrorTransactionNotFound, "tx", "no deposit with transaction id "+tx.String())
	}

	if e.checkDisputeClient && rec.Client != client {
		return nil, Client{}, NewDomainError(ErrorClientMismatch, "client",
			"transaction "+tx.String()+" belongs to client "+rec.Client.String()+", not "+client.String())
	}

	if rec.Status != want {
		return nil, Client{}, NewDomainError(ErrorInvalidDisputeState, "status",
			fmt.Sprintf("transaction %s is %s, expected %s", tx, rec.Status, want))
	}

	return rec, e.clientOrNew(rec.Client), nil
}

func (e *Engine) dispute(a Dispute) error {
	rec, c, err := e.disputed(a.Tx, a.Client, StatusNormal)
	if err != nil {
		return err
	}

	next, err := c.hold(rec.Amount)
	if err != nil {
		return err
	}

	e.clients[rec.Client] = next
	rec.Status = StatusDisputed

	return nil
}

func (e *Engine) resolve(a Resolve) error {
	rec, c, err := e.disputed(a.Tx, a.Client, StatusDisputed)
	if err != nil {
		return err
	}

	next, err := c.release(rec.Amount)
	if err != nil {
		return err
	}

	e.clients[rec.Client] = next
	rec.Status = StatusNormal

	return nil
}

func (e *Engine) chargeback(a Chargeback) error {
	rec, c, err := e.disputed(a.Tx, a.Client, StatusDisputed)
	if err != nil {
		return err
	}

	next, err := c.chargeback(rec.Amount)
	if err != nil {
		return err
	}

	e.clients[rec.Client] = next
	rec.Status = StatusChargedBack

	return nil
}

// The methods below return the updated client without touching the receiver,
// so a failed step leaves nothing to undo.

func (c Client) credit(amount Amount) (Client, error) {
	available, err := c.Available.TryAdd(amount)
	if err != nil {
		return Client{}, onField(err, "available")
	}

	c.Available = available

	return c, nil
}

func (c Client) debit(amount Amount) (Client, error) {
	if c.Locked {
		return Client{}, NewDomainError(ErrorAccountLocked, "client", "client "+c.ID.String()+" is locked")
	}

	if !c.Available.Covers(amount) {
		return Client{}, NewDomainError(ErrorInsufficientFunds, "available",
			"available "+c.Available.String()+" does not cover "+amount.String())
	}

	available, err := c.Available.TrySub(amount)
	if err != nil {
		return Client{}, onField(err, "available")
	}

	c.Available = available

	return c, nil
}

func (c Client) hold(amount Amount) (Client, error) {
	available, err := c.Available.TrySub(amount)
	if err != nil {
		return Client{}, onField(err, "available")
	}

	held, err := c.Held.TryAdd(amount)
	if err != nil {
		return Client{}, onField(err, "held")
	}

	c.Available = available
	c.Held = held

	return c, nil
}

func (c Client) takeHeld(amount Amount) (Balance, error) {
	if !c.Held.Covers(amount) {
		return Balance{}, NewDomainError(ErrorBalanceUnderflow, "held",
			"held "+c.Held.String()+" does not cover "+amount.String())
	}

	held, err := c.Held.TrySub(amount)
	if err != nil {
		return Balance{}, onField(err, "held")
	}

	return held, nil
}

func (c Client) release(amount Amount) (Client, error) {
	held, err := c.takeHeld(amount)
	if err != nil {
		return Client{}, err
	}

	available, err := c.Available.TryAdd(amount)
	if err != nil {
		return Client{}, onField(err, "available")
	}

	c.Available = available
	c.Held = held

	return c, nil
}

func (c Client) chargeback(amount Amount) (Client, error) {
	held, err := c.takeHeld(amount)
	if err != nil {
		return Client{}, err
	}

	c.Held = held
	c.Locked = true

	return c, nil
}

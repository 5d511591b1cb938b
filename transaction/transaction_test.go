package transaction

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		units   uint64
		wantErr bool
	}{
		{input: "0", units: 0},
		{input: "1", units: 10_000},
		{input: "1.", units: 10_000},
		{input: "1.5", units: 15_000},
		{input: "2.7182", units: 27_182},
		{input: "0.0001", units: 1},
		{input: "0010.10", units: 101_000},
		{input: "1844674407370955.1615", units: 18_446_744_073_709_551_615},
		{input: "1844674407370955.1616", wantErr: true},
		{input: "99999999999999999999", wantErr: true},
		{input: "", wantErr: true},
		{input: ".5", wantErr: true},
		{input: "-1", wantErr: true},
		{input: "+1", wantErr: true},
		{input: "1.23456", wantErr: true},
		{input: "1.2a", wantErr: true},
		{input: "1e3", wantErr: true},
		{input: "1.2.3", wantErr: true},
		{input: " 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)

				var domainErr DomainError
				require.True(t, errors.As(err, &domainErr))
				assert.Equal(t, "amount", domainErr.Field)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.units, got.Units())
		})
	}
}

func TestAmountString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0.0000", NewAmount(0).String())
	assert.Equal(t, "1.5000", NewAmount(15_000).String())
	assert.Equal(t, "1844674407370955.1615", NewAmount(^uint64(0)).String())
}

func TestBalance(t *testing.T) {
	t.Parallel()

	var zero Balance
	assert.True(t, zero.IsZero())
	assert.Equal(t, "0.0000", zero.String())

	b, err := zero.TrySub(NewAmount(12_345))
	require.NoError(t, err)
	assert.True(t, b.IsNegative())
	assert.Equal(t, "-1.2345", b.String())
	assert.True(t, zero.IsZero(), "receiver must not change")

	b, err = b.TryAdd(NewAmount(22_345))
	require.NoError(t, err)
	assert.True(t, b.Equal(NewBalance(10_000)))
	assert.True(t, b.Covers(NewAmount(10_000)))
	assert.False(t, b.Covers(NewAmount(10_001)))
}

func TestBalanceLimits(t *testing.T) {
	t.Parallel()

	top := Balance{value: balanceBounds.Max}
	_, err := top.TryAdd(NewAmount(1))
	assert.ErrorIs(t, err, ErrBalanceOverflow)

	bottom := Balance{value: balanceBounds.Min}
	_, err = bottom.TrySub(NewAmount(1))
	assert.ErrorIs(t, err, ErrBalanceUnderflow)

	assert.Equal(t, "17014118346046923173168730371588410.5727", top.String())
	assert.Equal(t, "-17014118346046923173168730371588410.5728", bottom.String())
}

func TestClientTotalBeyondRange(t *testing.T) {
	t.Parallel()

	c := Client{
		Available: Balance{value: balanceBounds.Max},
		Held:      Balance{value: balanceBounds.Max},
	}

	assert.True(t, c.Total().Decimal().Equal(balanceBounds.Max.Mul(decimal.NewFromInt(2))))
}

func TestParseActionKind(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"deposit", "Withdrawal", "DISPUTE", " resolve ", "chargeBack"} {
		kind, err := ParseActionKind(s)
		require.NoError(t, err, s)
		assert.NotEmpty(t, kind)
	}

	_, err := ParseActionKind("transfer")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.True(t, KindDeposit.HasAmount())
	assert.True(t, KindWithdrawal.HasAmount())
	assert.False(t, KindDispute.HasAmount())
}

func TestNewAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind ActionKind
		want AccountAction
	}{
		{kind: KindDeposit, want: Deposit{Tx: NewTransactionID(3), Client: NewClientID(2), Amount: NewAmount(5)}},
		{kind: KindWithdrawal, want: Withdrawal{Tx: NewTransactionID(3), Client: NewClientID(2), Amount: NewAmount(5)}},
		{kind: KindDispute, want: Dispute{Tx: NewTransactionID(3), Client: NewClientID(2)}},
		{kind: KindResolve, want: Resolve{Tx: NewTransactionID(3), Client: NewClientID(2)}},
		{kind: KindChargeback, want: Chargeback{Tx: NewTransactionID(3), Client: NewClientID(2)}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()

			got, err := NewAction(tt.kind, NewClientID(2), NewTransactionID(3), NewAmount(5))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, got.Kind())
			assert.Equal(t, uint32(3), got.TxID().Uint32())
			assert.Equal(t, uint16(2), got.ClientID().Uint16())
		})
	}

	_, err := NewAction("transfer", NewClientID(1), NewTransactionID(1), NewAmount(1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDomainError(t *testing.T) {
	t.Parallel()

	err := NewDomainError(ErrorAccountLocked, "client", "client 4 is locked")
	assert.Equal(t, "0024: client 4 is locked (client)", err.Error())
	assert.Equal(t, "0024: account is locked", ErrAccountLocked.Error())

	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.NotErrorIs(t, err, ErrInsufficientFunds)

	wrapped := errors.Join(errors.New("row 3"), err)
	assert.Equal(t, ErrorAccountLocked, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))

	assert.Equal(t, "account_locked", ErrorAccountLocked.Name())
	assert.Equal(t, "unknown", ErrorCode("x").Name())
}

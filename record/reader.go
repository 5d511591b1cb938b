package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/HayleyDeckers/ledger/transaction"
)

// Column names of the input header.
const (
	ColumnType   = "type"
	ColumnClient = "client"
	ColumnTx     = "tx"
	ColumnAmount = "amount"
)

// ErrInvalidHeader is returned when the header row lacks a required column.
var ErrInvalidHeader = errors.New("invalid header")

// RowError reports a row that could not be decoded. The Reader stays usable
// after returning one.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// columns holds the field index of each known column, -1 when absent.
type columns struct {
	kind, client, tx, amount int
}

// Reader decodes account actions from CSV input.
type Reader struct {
	csv  *csv.Reader
	cols *columns
}

// NewReader returns a Reader over r. The header is read on the first call to Next.
func NewReader(r io.Reader) *Reader {
	c := csv.NewReader(r)
	c.Comment = '#'
	c.FieldsPerRecord = -1
	c.TrimLeadingSpace = true
	c.ReuseRecord = true

	return &Reader{csv: c}
}

// Next returns the next action. It returns io.EOF at the end of the input, a
// *RowError for a row that cannot be decoded, and any other error when the
// input itself cannot be read.
func (r *Reader) Next() (transaction.AccountAction, error) {
	if r.cols == nil {
		if err := r.readHeader(); err != nil {
			return nil, err
		}
	}

	record, err := r.csv.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, &RowError{
				Line: parseErr.StartLine,
				Err:  transaction.NewDomainError(transaction.ErrorInvalidInput, "", parseErr.Err.Error()),
			}
		}

		return nil, err
	}

	line, _ := r.csv.FieldPos(0)

	action, err := r.decode(record)
	if err != nil {
		return nil, &RowError{Line: line, Err: err}
	}

	return action, nil
}

func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}

		return fmt.Errorf("read header: %w", err)
	}

	cols := columns{kind: -1, client: -1, tx: -1, amount: -1}

	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ColumnType:
			cols.kind = i
		case ColumnClient:
			cols.client = i
		case ColumnTx:
			cols.tx = i
		case ColumnAmount:
			cols.amount = i
		}
	}

	var missing []string

	if cols.kind < 0 {
		missing = append(missing, ColumnType)
	}

	if cols.client < 0 {
		missing = append(missing, ColumnClient)
	}

	if cols.tx < 0 {
		missing = append(missing, ColumnTx)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing column(s) %s", ErrInvalidHeader, strings.Join(missing, ", "))
	}

	r.cols = &cols

	return nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}

	return strings.TrimSpace(record[idx])
}

func (r *Reader) decode(record []string) (transaction.AccountAction, error) {
	kind, err := transaction.ParseActionKind(field(record, r.cols.kind))
	if err != nil {
		return nil, err
	}

	client, err := strconv.ParseUint(field(record, r.cols.client), 10, 16)
	if err != nil {
		return nil, transaction.NewDomainError(transaction.ErrorInvalidInput, ColumnClient,
			"client must be an integer in [0, 65535]: "+strconv.Quote(field(record, r.cols.client)))
	}

	tx, err := strconv.ParseUint(field(record, r.cols.tx), 10, 32)
	if err != nil {
		return nil, transaction.NewDomainError(transaction.ErrorInvalidInput, ColumnTx,
			"tx must be an integer in [0, 4294967295]: "+strconv.Quote(field(record, r.cols.tx)))
	}

	rawAmount := field(record, r.cols.amount)

	var amount transaction.Amount

	switch {
	case kind.HasAmount() && rawAmount == "":
		return nil, transaction.NewDomainError(transaction.ErrorInvalidInput, ColumnAmount, string(kind)+" requires an amount")
	case kind.HasAmount():
		if amount, err = transaction.ParseAmount(rawAmount); err != nil {
			return nil, err
		}
	case rawAmount != "":
		return nil, transaction.NewDomainError(transaction.ErrorInvalidInput, ColumnAmount, string(kind)+" must not carry an amount")
	}

	return transaction.NewAction(kind, transaction.NewClientID(uint16(client)), transaction.NewTransactionID(uint32(tx)), amount)
}

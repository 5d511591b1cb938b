package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/HayleyDeckers/ledger/transaction"
)

// ReportHeader is the header row written by WriteReport.
var ReportHeader = []string{"client", "available", "held", "total", "locked"}

// WriteReport writes one row per client, in the given order, after the header.
func WriteReport(w io.Writer, clients []transaction.Client) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ReportHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	row := make([]string, len(ReportHeader))

	for _, c := range clients {
		row[0] = c.ID.String()
		row[1] = c.Available.String()
		row[2] = c.Held.String()
		row[3] = c.Total().String()
		row[4] = strconv.FormatBool(c.Locked)

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write report row for client %s: %w", c.ID, err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}

	return nil
}

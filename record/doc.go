// Package record reads account actions from CSV and writes client reports.
//
// Input rows have the columns type, client, tx and amount, located by the
// header row. Fields are trimmed, lines starting with '#' are skipped and the
// amount column may be omitted for dispute, resolve and chargeback rows:
//
//	type,       client, tx, amount
//	deposit,    1,      1,  1.0
//	dispute,    1,      1
//
// The report has the columns client, available, held, total and locked, with
// amounts rendered to four decimal places.
package record

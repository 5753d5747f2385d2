package pipeline

import "errors"

// ErrNothingToReplace is returned by a replacing import in which no record
// survived validation; the stored ledger is left untouched.
var ErrNothingToReplace = errors.New("no valid records to replace the ledger with")

// Snapshot and report formats.
const (
	// ContentTypeXLSX is used for uploaded balance reports.
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// ContentTypeJSON is used for uploaded run summaries.
	ContentTypeJSON = "application/json"

	// maxWarnings caps the warnings kept on a state; the rest are counted.
	maxWarnings = 500
)

// dateLayouts are tried in order when parsing a record date.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2006/01/02",
	"02-01-2006",
	"2006-01-02T15:04:05Z07:00",
}

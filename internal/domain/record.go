package domain

// RawRecord is one ledger row as it arrives from a spreadsheet or a JSON
// snapshot, before any parsing. Row is the 1-based source row used in
// warnings.
type RawRecord struct {
	Row      int
	Date     string
	Label    string
	Extra    string
	Amount   string
	Account  string
	Category string
	Planned  bool
}

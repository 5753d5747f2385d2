package xlsx

import (
	"fmt"
	"io"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/engine"
	"github.com/dvloznov/finance-ledger/internal/settlement"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of exported workbooks.
const (
	SheetTransactions = "Transactions"
	SheetBalances     = "Balances"
	SheetProfiles     = "Profiles"
	SheetSummary      = "Summary"
	SheetUnresolved   = "Unresolved"
	SheetEdges        = "Settlement"
	SheetParticipants = "Participants"
	SheetRejected     = "Rejected"
)

// numFmtAmount is the built-in "#,##0.00" format.
const numFmtAmount = 4

// transactionHeader is also understood by ReadRecords, so an exported sheet
// can be imported again.
var transactionHeader = []interface{}{"Date", "Account", "Label", "Extra", "Amount", "Category", "Planned", "Normalized"}

// WriteTransactions writes txs as a single-sheet workbook.
func WriteTransactions(w io.Writer, txs []domain.Transaction) error {
	b, err := newBook(SheetTransactions)
	if err != nil {
		return fmt.Errorf("WriteTransactions: %w", err)
	}
	defer b.f.Close()

	if err := b.transactions(SheetTransactions, txs); err != nil {
		return fmt.Errorf("WriteTransactions: %w", err)
	}
	if _, err := b.f.WriteTo(w); err != nil {
		return fmt.Errorf("WriteTransactions: writing workbook: %w", err)
	}
	return nil
}

// WriteReport writes the balances, profile totals, monthly summaries,
// unresolved transfers and categorized transactions of a run.
func WriteReport(w io.Writer, report engine.Report) error {
	b, err := newBook(SheetBalances)
	if err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}
	defer b.f.Close()

	res := report.Balances
	periods := make([]interface{}, len(res.Periods))
	for i, p := range res.Periods {
		periods[i] = p.String()
	}

	header := append([]interface{}{"Account", "Profile", "Opening"}, periods...)
	header = append(header, "Final")
	rows := [][]interface{}{header}
	for _, a := range res.Accounts {
		row := []interface{}{a.Account, a.Profile, amount(a.Opening)}
		for _, bal := range a.Balances {
			row = append(row, amount(bal))
		}
		rows = append(rows, append(row, amount(a.Final)))
	}
	if err := b.table(SheetBalances, rows, 3); err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}

	header = append([]interface{}{"Profile", "Opening"}, periods...)
	rows = [][]interface{}{header}
	for _, p := range res.Profiles {
		row := []interface{}{p.Profile, amount(p.Opening)}
		for _, t := range p.Totals {
			row = append(row, amount(t))
		}
		rows = append(rows, row)
	}
	if err := b.sheet(SheetProfiles); err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}
	if err := b.table(SheetProfiles, rows, 2); err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}

	rows = [][]interface{}{{"Profile", "Period", "Income", "Expenses", "Net", "Closing"}}
	for _, s := range res.Summaries {
		rows = append(rows, []interface{}{s.Profile, s.Period.String(), amount(s.Income), amount(s.Expenses), amount(s.Net), amount(s.Closing)})
	}
	if err := b.sheet(SheetSummary); err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}
	if err := b.table(SheetSummary, rows, 3); err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}

	rows = [][]interface{}{{"Date", "Account", "Label", "Amount", "Category", "Reason"}}
	for _, u := range res.Unresolved {
		tx := u.Transaction
		rows = append(rows, []interface{}{tx.Date.Format("2006-01-02"), tx.Account, tx.RawLabel, amount(tx.Amount), tx.Category, u.Reason})
	}
	if err := b.sheet(SheetUnresolved); err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}
	if err := b.table(SheetUnresolved, rows, 4); err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}

	var own []domain.Transaction
	for _, tx := range report.Transactions {
		if tx.Owner == report.Owner {
			own = append(own, tx)
		}
	}
	if err := b.sheet(SheetTransactions); err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}
	if err := b.transactions(SheetTransactions, own); err != nil {
		return fmt.Errorf("WriteReport: %w", err)
	}

	if _, err := b.f.WriteTo(w); err != nil {
		return fmt.Errorf("WriteReport: writing workbook: %w", err)
	}
	return nil
}

// WriteSettlement writes the debt edges, participant positions and rejected
// expenses of a settlement.
func WriteSettlement(w io.Writer, res settlement.Result) error {
	b, err := newBook(SheetEdges)
	if err != nil {
		return fmt.Errorf("WriteSettlement: %w", err)
	}
	defer b.f.Close()

	rows := [][]interface{}{{"Debtor", "Creditor", "Amount"}}
	for _, e := range res.Edges {
		rows = append(rows, []interface{}{e.Debtor, e.Creditor, amount(e.Amount)})
	}
	if err := b.table(SheetEdges, rows, 3); err != nil {
		return fmt.Errorf("WriteSettlement: %w", err)
	}

	rows = [][]interface{}{{"Name", "Paid", "Consumed", "Owed", "Owing", "Net"}}
	for _, p := range res.Participants {
		rows = append(rows, []interface{}{p.Name, amount(p.Paid), amount(p.Consumed), amount(p.Owed), amount(p.Owing), amount(p.Net)})
	}
	if err := b.sheet(SheetParticipants); err != nil {
		return fmt.Errorf("WriteSettlement: %w", err)
	}
	if err := b.table(SheetParticipants, rows, 2); err != nil {
		return fmt.Errorf("WriteSettlement: %w", err)
	}

	rows = [][]interface{}{{"Expense", "Label", "Payer", "Amount", "Error"}}
	for _, r := range res.Rejected {
		rows = append(rows, []interface{}{r.Expense.ID, r.Expense.Label, r.Expense.Payer, amount(r.Expense.Amount), r.Err.Error()})
	}
	if err := b.sheet(SheetRejected); err != nil {
		return fmt.Errorf("WriteSettlement: %w", err)
	}
	if err := b.table(SheetRejected, rows, 4); err != nil {
		return fmt.Errorf("WriteSettlement: %w", err)
	}

	if _, err := b.f.WriteTo(w); err != nil {
		return fmt.Errorf("WriteSettlement: writing workbook: %w", err)
	}
	return nil
}

type book struct {
	f           *excelize.File
	amountStyle int
}

// newBook creates a workbook whose default sheet is renamed to first.
func newBook(first string) (*book, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), first); err != nil {
		f.Close()
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating style: %w", err)
	}
	return &book{f: f, amountStyle: style}, nil
}

func (b *book) sheet(name string) error {
	if _, err := b.f.NewSheet(name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", name, err)
	}
	return nil
}

// table writes rows from A1 and applies the amount format to every column
// from firstAmountCol (1-based) on.
func (b *book) table(sheet string, rows [][]interface{}, firstAmountCol int) error {
	width := 0
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := b.f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
		if len(row) > width {
			width = len(row)
		}
	}
	if len(rows) < 2 || width < firstAmountCol {
		return nil
	}
	from, err := excelize.CoordinatesToCellName(firstAmountCol, 2)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(width, len(rows))
	if err != nil {
		return err
	}
	if err := b.f.SetCellStyle(sheet, from, to, b.amountStyle); err != nil {
		return fmt.Errorf("styling %s: %w", sheet, err)
	}
	return nil
}

func (b *book) transactions(sheet string, txs []domain.Transaction) error {
	rows := [][]interface{}{transactionHeader}
	for _, tx := range txs {
		planned := ""
		if tx.Planned {
			planned = "yes"
		}
		rows = append(rows, []interface{}{
			tx.Date.Format("2006-01-02"),
			tx.Account,
			tx.RawLabel,
			tx.Extra,
			tx.Amount.String(),
			tx.Category,
			planned,
			tx.NormalizedLabel,
		})
	}
	return b.table(sheet, rows, len(transactionHeader)+1)
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

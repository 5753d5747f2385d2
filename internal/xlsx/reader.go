// Package xlsx imports ledger rows from spreadsheets and exports balances,
// summaries and settlements as workbooks.
package xlsx

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ErrMissingColumn is returned when the header row lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Column roles recognized in a header row.
const (
	colDate     = "date"
	colLabel    = "label"
	colExtra    = "extra"
	colAmount   = "amount"
	colDebit    = "debit"
	colCredit   = "credit"
	colAccount  = "account"
	colCategory = "category"
	colPlanned  = "planned"
)

// headerAliases maps lower-cased header texts found in bank exports to a role.
var headerAliases = map[string]string{
	"date":                     colDate,
	"date opération":           colDate,
	"date operation":           colDate,
	"date de valeur":           colDate,
	"date de comptabilisation": colDate,
	"date op":                  colDate,
	"date val":                 colDate,
	"effective date":           colDate,
	"le":                       colDate,

	"label":                  colLabel,
	"nom":                    colLabel,
	"libellé":                colLabel,
	"libelle":                colLabel,
	"libelle simplifie":      colLabel,
	"libellé de l'opération": colLabel,
	"description":            colLabel,
	"transaction":            colLabel,
	"détails":                colLabel,
	"objet":                  colLabel,

	"extra":                        colExtra,
	"memo":                         colExtra,
	"informations complémentaires": colExtra,
	"informations complementaires": colExtra,

	"amount":         colAmount,
	"montant":        colAmount,
	"montant(euros)": colAmount,
	"montant net":    colAmount,
	"valeur":         colAmount,
	"prix":           colAmount,
	"somme":          colAmount,

	"debit":  colDebit,
	"débit":  colDebit,
	"credit": colCredit,
	"crédit": colCredit,

	"account": colAccount,
	"compte":  colAccount,

	"category":  colCategory,
	"categorie": colCategory,
	"catégorie": colCategory,

	"planned":   colPlanned,
	"prévision": colPlanned,
	"prevision": colPlanned,
}

// ReadRecordsFile reads the first sheet of the workbook at path.
func ReadRecordsFile(path string) ([]domain.RawRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ReadRecordsFile: opening %s: %w", path, err)
	}
	defer f.Close()
	return readRecords(f)
}

// ReadRecords reads the first sheet of a workbook. The first non-empty row is
// the header; columns are matched by name, so their order does not matter.
// A sheet with separate debit and credit columns yields signed amounts.
func ReadRecords(r io.Reader) ([]domain.RawRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ReadRecords: opening workbook: %w", err)
	}
	defer f.Close()
	return readRecords(f)
}

func readRecords(f *excelize.File) ([]domain.RawRecord, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("readRecords: workbook has no sheets")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("readRecords: reading rows: %w", err)
	}

	headerAt := -1
	for i, row := range rows {
		if !isRowEmpty(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, nil
	}

	columns := mapHeader(rows[headerAt])
	if _, ok := columns[colDate]; !ok {
		return nil, fmt.Errorf("readRecords: %q: %w", colDate, ErrMissingColumn)
	}
	_, hasAmount := columns[colAmount]
	_, hasDebit := columns[colDebit]
	_, hasCredit := columns[colCredit]
	if !hasAmount && !hasDebit && !hasCredit {
		return nil, fmt.Errorf("readRecords: %q: %w", colAmount, ErrMissingColumn)
	}

	var records []domain.RawRecord
	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}
		cell := func(role string) string {
			idx, ok := columns[role]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		rec := domain.RawRecord{
			Row:      i + 1,
			Date:     cellDate(cell(colDate)),
			Label:    cell(colLabel),
			Extra:    cell(colExtra),
			Account:  cell(colAccount),
			Category: cell(colCategory),
			Planned:  isTruthy(cell(colPlanned)),
		}
		if hasAmount {
			rec.Amount = cell(colAmount)
		}
		if rec.Amount == "" {
			rec.Amount = debitCredit(cell(colDebit), cell(colCredit))
		}
		records = append(records, rec)
	}
	return records, nil
}

func mapHeader(header []string) map[string]int {
	columns := make(map[string]int)
	for i, h := range header {
		role, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, seen := columns[role]; !seen {
			columns[role] = i
		}
	}
	return columns
}

// cellDate converts an Excel serial date to ISO form and leaves text as is.
func cellDate(v string) string {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial <= 0 {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Format("2006-01-02")
}

// debitCredit turns a debit/credit pair into one signed amount text. Debits
// are negative whatever sign the bank printed.
func debitCredit(debit, credit string) string {
	if debit != "" {
		return "-" + strings.TrimLeft(strings.TrimSpace(debit), "-+")
	}
	return credit
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "oui", "x":
		return true
	}
	return false
}

func isRowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

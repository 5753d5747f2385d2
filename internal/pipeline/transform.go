package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/money"
	"github.com/google/uuid"
)

// Warning is a non-fatal problem found while transforming a record.
type Warning struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("row %d: %s %q: %s", w.Row, w.Field, w.Value, w.Message)
}

// TransformRecords converts raw records into transactions of owner.
// A record whose date cannot be parsed is skipped; an amount that cannot be
// parsed becomes zero. Both produce a warning and the batch continues.
func TransformRecords(owner string, records []domain.RawRecord) ([]domain.Transaction, []Warning) {
	var (
		txs      []domain.Transaction
		warnings []Warning
	)
	for _, rec := range records {
		date, err := parseDate(rec.Date)
		if err != nil {
			warnings = append(warnings, Warning{Row: rec.Row, Field: "date", Value: rec.Date, Message: "unparseable date, row skipped"})
			continue
		}

		amount, ok := money.ParseAmountOrZero(rec.Amount)
		if !ok {
			warnings = append(warnings, Warning{Row: rec.Row, Field: "amount", Value: rec.Amount, Message: "unparseable amount, using 0"})
		}
		if strings.TrimSpace(rec.Account) == "" {
			warnings = append(warnings, Warning{Row: rec.Row, Field: "account", Message: "missing account, row will not affect balances"})
		}

		txs = append(txs, domain.Transaction{
			ID:       uuid.NewString(),
			Date:     date,
			RawLabel: strings.TrimSpace(rec.Label),
			Extra:    strings.TrimSpace(rec.Extra),
			Amount:   amount,
			Category: strings.TrimSpace(rec.Category),
			Account:  strings.TrimSpace(rec.Account),
			Owner:    owner,
			Planned:  rec.Planned,
		})
	}
	return txs, warnings
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("parseDate: empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("parseDate: unsupported date %q", s)
}

// RecordsFromJSON decodes a JSON snapshot. The document is either an array of
// objects or an object with a "transactions" array. Each object has "date",
// "label" (or "description"), "amount" (number or string) and optionally
// "extra", "account", "category" and "planned".
func RecordsFromJSON(data []byte) ([]domain.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("RecordsFromJSON: decoding: %w", err)
	}

	var items []interface{}
	switch v := doc.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		txAny, ok := v["transactions"]
		if !ok {
			return nil, fmt.Errorf("RecordsFromJSON: missing 'transactions' key")
		}
		items, ok = txAny.([]interface{})
		if !ok {
			return nil, fmt.Errorf("RecordsFromJSON: 'transactions' is %T, want []interface{}", txAny)
		}
	default:
		return nil, fmt.Errorf("RecordsFromJSON: top level is %T, want array or object", doc)
	}

	records := make([]domain.RawRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("RecordsFromJSON: element %d is %T, want object", i, item)
		}
		rec, err := recordFromObject(obj)
		if err != nil {
			return nil, fmt.Errorf("RecordsFromJSON: element %d: %w", i, err)
		}
		rec.Row = i + 1
		records = append(records, rec)
	}
	return records, nil
}

func recordFromObject(obj map[string]interface{}) (domain.RawRecord, error) {
	var rec domain.RawRecord
	var err error

	if rec.Date, err = getStringField(obj, "date", false); err != nil {
		return rec, err
	}
	if rec.Label, err = getStringField(obj, "label", false); err != nil {
		return rec, err
	}
	if rec.Label == "" {
		if rec.Label, err = getStringField(obj, "description", false); err != nil {
			return rec, err
		}
	}
	if rec.Extra, err = getStringField(obj, "extra", false); err != nil {
		return rec, err
	}
	if rec.Amount, err = getAmountField(obj, "amount"); err != nil {
		return rec, err
	}
	if rec.Account, err = getStringField(obj, "account", false); err != nil {
		return rec, err
	}
	if rec.Category, err = getStringField(obj, "category", false); err != nil {
		return rec, err
	}
	if v, ok := obj["planned"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return rec, fmt.Errorf("field %q has type %T, want bool", "planned", v)
		}
		rec.Planned = b
	}
	return rec, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

// getAmountField returns the amount as text so that parsing and its warning
// happen in one place, TransformRecords.
func getAmountField(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want number or string", key, v)
	}
}

package notionsync

import (
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/money"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Property names shared by both databases. "Key" is the title column and
// identifies a page across syncs.
const (
	propKey      = "Key"
	propAmount   = "Amount"
	propDisplay  = "Display"
	propSyncedAt = "Synced At"
)

// BalanceRow is one account's closing balance for one period.
type BalanceRow struct {
	Owner   string
	Account string
	Profile string
	Period  domain.Period
	Balance decimal.Decimal
}

// Key identifies the row in the balances database.
func (r BalanceRow) Key() string {
	return fmt.Sprintf("%s/%s/%s", r.Owner, r.Account, r.Period)
}

// BalanceRows flattens a reconciliation into one row per account and period.
func BalanceRows(res reconcile.Result) []BalanceRow {
	var rows []BalanceRow
	for _, a := range res.Accounts {
		for i, p := range res.Periods {
			if i >= len(a.Balances) {
				break
			}
			rows = append(rows, BalanceRow{
				Owner:   res.Owner,
				Account: a.Account,
				Profile: a.Profile,
				Period:  p,
				Balance: a.Balances[i],
			})
		}
	}
	return rows
}

// DebtKey identifies a debt edge of a group in the debts database.
func DebtKey(group string, e domain.DebtEdge) string {
	return fmt.Sprintf("%s/%s->%s", group, e.Debtor, e.Creditor)
}

// BalanceToNotionProperties converts a balance row to Notion properties:
// Key, Owner, Account, Profile, Period, Month, Amount, Display, Synced At.
func BalanceToNotionProperties(row BalanceRow, currency string, syncedAt time.Time) notionapi.Properties {
	props := notionapi.Properties{
		propKey:      titleProperty(row.Key()),
		"Owner":      notionapi.SelectProperty{Select: notionapi.Option{Name: row.Owner}},
		"Account":    richTextProperty(row.Account),
		"Period":     richTextProperty(row.Period.String()),
		"Month":      dateProperty(row.Period.Start()),
		propAmount:   notionapi.NumberProperty{Number: row.Balance.InexactFloat64()},
		propDisplay:  richTextProperty(money.Format(row.Balance, currency)),
		propSyncedAt: dateProperty(syncedAt),
	}
	if row.Profile != "" {
		props["Profile"] = notionapi.SelectProperty{Select: notionapi.Option{Name: row.Profile}}
	}
	return props
}

// DebtToNotionProperties converts a netted debt to Notion properties:
// Key, Group, Debtor, Creditor, Amount, Display, Synced At.
func DebtToNotionProperties(group string, e domain.DebtEdge, currency string, syncedAt time.Time) notionapi.Properties {
	return notionapi.Properties{
		propKey:      titleProperty(DebtKey(group, e)),
		"Group":      notionapi.SelectProperty{Select: notionapi.Option{Name: group}},
		"Debtor":     richTextProperty(e.Debtor),
		"Creditor":   richTextProperty(e.Creditor),
		propAmount:   notionapi.NumberProperty{Number: e.Amount.InexactFloat64()},
		propDisplay:  richTextProperty(money.Format(e.Amount, currency)),
		propSyncedAt: dateProperty(syncedAt),
	}
}

func titleProperty(content string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{
					Content: content,
				},
			},
		},
	}
}

func richTextProperty(content string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{
					Content: content,
				},
			},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: &d,
		},
	}
}

// extractKey returns the Key title of a page, or "" when it has none.
// Pages decoded from the API carry pointer properties.
func extractKey(page notionapi.Page) string {
	prop, ok := page.Properties[propKey]
	if !ok {
		return ""
	}
	var title []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		title = p.Title
	case notionapi.TitleProperty:
		title = p.Title
	}
	if len(title) == 0 {
		return ""
	}
	if title[0].PlainText != "" {
		return title[0].PlainText
	}
	if title[0].Text != nil {
		return title[0].Text.Content
	}
	return ""
}

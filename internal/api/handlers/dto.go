package handlers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/engine"
	"github.com/dvloznov/finance-ledger/internal/money"
	"github.com/dvloznov/finance-ledger/internal/settlement"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// TransactionDTO is the wire form of a ledger row. Amounts are decimal
// strings so that no precision is lost in JSON.
type TransactionDTO struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	Account         string `json:"account"`
	Label           string `json:"label"`
	Extra           string `json:"extra,omitempty"`
	NormalizedLabel string `json:"normalized_label,omitempty"`
	Amount          string `json:"amount"`
	Category        string `json:"category,omitempty"`
	Source          string `json:"source,omitempty"`
	Planned         bool   `json:"planned,omitempty"`
}

func newTransactionDTO(tx domain.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:              tx.ID,
		Account:         tx.Account,
		Label:           tx.RawLabel,
		Extra:           tx.Extra,
		NormalizedLabel: tx.NormalizedLabel,
		Amount:          tx.Amount.String(),
		Category:        tx.Category,
		Planned:         tx.Planned,
	}
	if !tx.Date.IsZero() {
		dto.Date = tx.Date.Format(dateLayout)
	}
	return dto
}

// AccountSeriesDTO is the balance history of one account.
type AccountSeriesDTO struct {
	Account   string   `json:"account"`
	Profile   string   `json:"profile"`
	Opening   string   `json:"opening"`
	Balances  []string `json:"balances"`
	Direct    string   `json:"direct"`
	Synthetic string   `json:"synthetic"`
	Final     string   `json:"final"`
}

// ProfileSeriesDTO is the balance history of one profile.
type ProfileSeriesDTO struct {
	Profile string   `json:"profile"`
	Opening string   `json:"opening"`
	Totals  []string `json:"totals"`
}

// SummaryDTO is one monthly income statement.
type SummaryDTO struct {
	Profile  string `json:"profile"`
	Period   string `json:"period"`
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Net      string `json:"net"`
	Closing  string `json:"closing"`
}

// SavingsDTO compares a profile's balance with its savings target.
type SavingsDTO struct {
	Profile string `json:"profile"`
	Target  string `json:"target"`
	Current string `json:"current"`
	Ratio   string `json:"ratio"`
}

// IssueDTO points at an input row (1-based) that needs attention.
type IssueDTO struct {
	Row        int      `json:"row"`
	Label      string   `json:"label,omitempty"`
	Amount     string   `json:"amount,omitempty"`
	Reason     string   `json:"reason"`
	Candidates []string `json:"candidates,omitempty"`
}

// ReportDTO is the outcome of a reconciliation.
type ReportDTO struct {
	Owner           string             `json:"owner"`
	Periods         []string           `json:"periods"`
	Accounts        []AccountSeriesDTO `json:"accounts"`
	Profiles        []ProfileSeriesDTO `json:"profiles"`
	Summaries       []SummaryDTO       `json:"summaries"`
	Savings         []SavingsDTO       `json:"savings,omitempty"`
	Transactions    []TransactionDTO   `json:"transactions"`
	Unresolved      []IssueDTO         `json:"unresolved,omitempty"`
	Skipped         []IssueDTO         `json:"skipped,omitempty"`
	Synthetic       int                `json:"synthetic"`
	Paired          int                `json:"paired"`
	CreatedAccounts []string           `json:"created_accounts,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
}

func newReportDTO(report engine.Report) ReportDTO {
	res := report.Balances
	dto := ReportDTO{
		Owner:           report.Owner,
		Periods:         make([]string, 0, len(res.Periods)),
		Accounts:        make([]AccountSeriesDTO, 0, len(res.Accounts)),
		Profiles:        make([]ProfileSeriesDTO, 0, len(res.Profiles)),
		Summaries:       make([]SummaryDTO, 0, len(res.Summaries)),
		Transactions:    make([]TransactionDTO, 0, len(report.Transactions)),
		Synthetic:       len(res.Synthetic),
		Paired:          len(res.Pairs),
		CreatedAccounts: res.CreatedAccounts,
	}
	for _, p := range res.Periods {
		dto.Periods = append(dto.Periods, p.String())
	}
	for _, a := range res.Accounts {
		dto.Accounts = append(dto.Accounts, AccountSeriesDTO{
			Account:   a.Account,
			Profile:   a.Profile,
			Opening:   a.Opening.String(),
			Balances:  decimalStrings(a.Balances),
			Direct:    a.Direct.String(),
			Synthetic: a.Synthetic.String(),
			Final:     a.Final.String(),
		})
	}
	for _, p := range res.Profiles {
		dto.Profiles = append(dto.Profiles, ProfileSeriesDTO{
			Profile: p.Profile,
			Opening: p.Opening.String(),
			Totals:  decimalStrings(p.Totals),
		})
	}
	for _, s := range res.Summaries {
		dto.Summaries = append(dto.Summaries, SummaryDTO{
			Profile:  s.Profile,
			Period:   s.Period.String(),
			Income:   s.Income.String(),
			Expenses: s.Expenses.String(),
			Net:      s.Net.String(),
			Closing:  s.Closing.String(),
		})
	}
	for _, s := range report.Savings {
		dto.Savings = append(dto.Savings, SavingsDTO{
			Profile: s.Profile,
			Target:  s.Target.String(),
			Current: s.Current.String(),
			Ratio:   s.Ratio.StringFixed(4),
		})
	}
	for i, tx := range report.Transactions {
		if tx.Owner != report.Owner {
			continue
		}
		t := newTransactionDTO(tx)
		t.Source = string(report.Sources[i])
		dto.Transactions = append(dto.Transactions, t)
	}
	for _, u := range res.Unresolved {
		dto.Unresolved = append(dto.Unresolved, IssueDTO{
			Row:        u.Index + 1,
			Label:      u.Transaction.RawLabel,
			Amount:     u.Transaction.Amount.String(),
			Reason:     u.Reason,
			Candidates: u.Candidates,
		})
	}
	for _, s := range res.Skipped {
		dto.Skipped = append(dto.Skipped, IssueDTO{Row: s.Index + 1, Reason: s.Reason})
	}
	return dto
}

func decimalStrings(values []decimal.Decimal) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

// OverrideDTO is one learned category.
type OverrideDTO struct {
	NormalizedLabel string    `json:"normalized_label"`
	Category        string    `json:"category"`
	Version         int64     `json:"version"`
	LearnedAt       time.Time `json:"learned_at"`
}

func newOverrideDTO(o domain.Override) OverrideDTO {
	return OverrideDTO{
		NormalizedLabel: o.NormalizedLabel,
		Category:        o.Category,
		Version:         o.Version,
		LearnedAt:       o.LearnedAt,
	}
}

// ExpenseDTO is a shared expense as posted to the settle endpoint.
type ExpenseDTO struct {
	ID     string            `json:"id,omitempty"`
	Label  string            `json:"label"`
	Payer  string            `json:"payer"`
	Amount string            `json:"amount"`
	Split  map[string]string `json:"split"`
	Date   string            `json:"date,omitempty"`
}

// toDomain parses the amounts of e. Shape checks (positive amount, split
// sum) are left to settlement.Validate so that bad expenses are reported,
// not dropped.
func (e ExpenseDTO) toDomain(group string) (domain.SharedExpense, error) {
	amount, err := money.ParseAmount(e.Amount)
	if err != nil {
		return domain.SharedExpense{}, fmt.Errorf("expense %q: amount: %w", e.Label, err)
	}
	split := make(map[string]decimal.Decimal, len(e.Split))
	for name, s := range e.Split {
		share, err := money.ParseAmount(s)
		if err != nil {
			return domain.SharedExpense{}, fmt.Errorf("expense %q: share of %s: %w", e.Label, name, err)
		}
		split[strings.TrimSpace(name)] = share
	}
	out := domain.SharedExpense{
		ID:      e.ID,
		GroupID: group,
		Label:   e.Label,
		Payer:   strings.TrimSpace(e.Payer),
		Amount:  amount,
		Split:   split,
	}
	if e.Date != "" {
		d, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			return domain.SharedExpense{}, fmt.Errorf("expense %q: date: %w", e.Label, err)
		}
		out.Date = d
	}
	return out, nil
}

// EdgeDTO is one netted debt.
type EdgeDTO struct {
	Debtor   string `json:"debtor"`
	Creditor string `json:"creditor"`
	Amount   string `json:"amount"`
}

// ParticipantDTO is one person's position after netting.
type ParticipantDTO struct {
	Name     string `json:"name"`
	Owed     string `json:"owed"`
	Owing    string `json:"owing"`
	Net      string `json:"net"`
	Paid     string `json:"paid"`
	Consumed string `json:"consumed"`
}

// RejectedDTO is an expense left out of the settlement.
type RejectedDTO struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Error string `json:"error"`
}

// SettlementDTO is the outcome of settling a group.
type SettlementDTO struct {
	Group        string           `json:"group"`
	Accepted     int              `json:"accepted"`
	Edges        []EdgeDTO        `json:"edges"`
	Participants []ParticipantDTO `json:"participants"`
	Rejected     []RejectedDTO    `json:"rejected,omitempty"`
}

func newSettlementDTO(group string, res settlement.Result) SettlementDTO {
	dto := SettlementDTO{
		Group:        group,
		Accepted:     res.Accepted,
		Edges:        make([]EdgeDTO, 0, len(res.Edges)),
		Participants: make([]ParticipantDTO, 0, len(res.Participants)),
	}
	for _, e := range res.Edges {
		dto.Edges = append(dto.Edges, EdgeDTO{Debtor: e.Debtor, Creditor: e.Creditor, Amount: e.Amount.String()})
	}
	for _, p := range res.Participants {
		dto.Participants = append(dto.Participants, ParticipantDTO{
			Name:     p.Name,
			Owed:     p.Owed.String(),
			Owing:    p.Owing.String(),
			Net:      p.Net.String(),
			Paid:     p.Paid.String(),
			Consumed: p.Consumed.String(),
		})
	}
	for _, r := range res.Rejected {
		dto.Rejected = append(dto.Rejected, RejectedDTO{ID: r.Expense.ID, Label: r.Expense.Label, Error: r.Err.Error()})
	}
	sort.SliceStable(dto.Rejected, func(i, j int) bool { return dto.Rejected[i].Label < dto.Rejected[j].Label })
	return dto
}

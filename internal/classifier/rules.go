package classifier

import (
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// Predicate decides whether a rule applies to a transaction.
type Predicate func(tx domain.Transaction) bool

// Rule maps a predicate to a category. Rules are evaluated in table order.
type Rule struct {
	Name     string
	Category string
	Match    Predicate
}

// RuleTable is an ordered list of rules; the first match wins.
type RuleTable []Rule

// Match returns the first rule matching tx.
func (t RuleTable) Match(tx domain.Transaction) (Rule, bool) {
	for _, r := range t {
		if r.Match != nil && r.Match(tx) {
			return r, true
		}
	}
	return Rule{}, false
}

// Categories returns the distinct categories of the table in order.
func (t RuleTable) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// KeywordRule matches when any keyword is a case-insensitive substring of the
// raw text (label and extended text).
func KeywordRule(category string, keywords ...string) Rule {
	upper := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToUpper(strings.TrimSpace(k)); k != "" {
			upper = append(upper, k)
		}
	}
	return Rule{
		Name:     "keywords:" + category,
		Category: category,
		Match: func(tx domain.Transaction) bool {
			text := strings.ToUpper(tx.Text())
			for _, k := range upper {
				if strings.Contains(text, k) {
					return true
				}
			}
			return false
		},
	}
}

// IncomeRule restricts a rule to positive amounts.
func IncomeRule(r Rule) Rule {
	match := r.Match
	r.Name = "income:" + r.Name
	r.Match = func(tx domain.Transaction) bool {
		return tx.Amount.IsPositive() && match(tx)
	}
	return r
}

// DefaultRules is the stock keyword table.
func DefaultRules() RuleTable {
	return RuleTable{
		KeywordRule("Salary", "PAYROLL", "SALARY", "SALAIRE", "FRANCE TRAVAIL", "POLE EMPLOI"),
		KeywordRule("Reimbursements", "AMELI", "CPAM", "REMBOURSEMENT", "REFUND"),
		KeywordRule("Subscriptions", "NETFLIX", "SPOTIFY", "DISNEY PLUS", "AMAZON PRIME", "YOUTUBE PREMIUM", "GOOGLE ONE", "GOOGLE PLAY", "TWITCH"),
		KeywordRule("Groceries", "CARREFOUR", "AUCHAN", "MONOPRIX", "PICARD", "BIOCOOP", "INTERMARCHE", "LECLERC", "TESCO", "SAINSBURY", "LIDL", "ALDI"),
		KeywordRule("Eating Out", "RESTAURANT", "BOULANGERIE", "MCDONALD", "SUBWAY", "DELIVEROO", "UBER EATS"),
		KeywordRule("Shopping", "AMAZON", "FNAC", "DARTY", "CULTURA", "ZARA", "KIABI", "KLARNA"),
		KeywordRule("Clothing", "VETEMENTS", "CHAUSSURES", "CELIO", "ASOS"),
		KeywordRule("Taxes", "IMPOTS", "TRESOR PUBLIC", "DGFIP", "HMRC"),
		KeywordRule("Bank Fees", "COTISATION BANCAIRE", "FRAIS BANCAIRES", "BANK FEE", "OVERDRAFT FEE"),
		KeywordRule("Home Insurance", "PACIFICA", "MAIF", "MACIF"),
		KeywordRule("Video Games", "PLAYSTATION", "NINTENDO", "STEAM GAMES", "EPIC GAMES"),
		KeywordRule("Health Insurance", "MUTUELLE", "MGEN", "HARMONIE"),
		KeywordRule("Pharmacy", "PHARMACIE", "PHARMACY"),
		KeywordRule("Healthcare", "MEDECIN", "DENTISTE", "DOCTOLIB"),
		KeywordRule("Rent", "LOYER", "LANDLORD", "AGENCE IMMOBILIERE"),
		KeywordRule("Home Improvement", "CASTORAMA", "LEROY MERLIN", "BRICO DEPOT", "IKEA"),
		KeywordRule("Transport", "RATP", "SNCF", "NAVIGO", "TFL TRAVEL"),
		KeywordRule("Fuel", "ESSENCE", "SHELL", "ESSO", "TOTALENERGIES", "CERTAS"),
		KeywordRule("Car", "GARAGE", "CREDIT AUTO"),
		KeywordRule("Cash Withdrawals", "RETRAIT DAB", "RETRAIT GAB", "ATM WITHDRAWAL", "CASH WITHDRAWAL"),
		KeywordRule("Utilities", "FREE MOBILE", "SFR", "BOUYGUES", "EDF", "ENGIE", "BRITISH GAS"),
	}
}

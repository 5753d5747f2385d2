package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultProfile is assigned to accounts created implicitly by a transaction.
const DefaultProfile = "Personal"

// Account is a named bucket of money belonging to an owning profile.
// Balances are never stored; they are always derived from transactions.
type Account struct {
	Name           string
	Owner          string
	Profile        string
	OpeningBalance decimal.Decimal
	SavingsTarget  decimal.Decimal
}

// AccountKey canonicalizes an account name for lookups.
func AccountKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Registry is the ordered set of accounts known for one owner.
// Lookups are case-insensitive; order is insertion order. Profile names are
// case-insensitive too: every account of a profile carries the spelling
// first registered for it.
type Registry struct {
	accounts []Account
	index    map[string]int
	profiles map[string]string
}

// NewRegistry builds a registry from accounts. Later duplicates are ignored.
func NewRegistry(accounts ...Account) *Registry {
	r := &Registry{index: make(map[string]int), profiles: make(map[string]string)}
	for _, a := range accounts {
		r.Add(a)
	}
	return r
}

// Add registers an account and reports whether it was new.
func (r *Registry) Add(a Account) bool {
	key := AccountKey(a.Name)
	if key == "" {
		return false
	}
	if _, ok := r.index[key]; ok {
		return false
	}
	a.Name = strings.TrimSpace(a.Name)
	if a.Profile = strings.TrimSpace(a.Profile); a.Profile == "" {
		a.Profile = DefaultProfile
	}
	pk := AccountKey(a.Profile)
	if name, ok := r.profiles[pk]; ok {
		a.Profile = name
	} else {
		r.profiles[pk] = a.Profile
	}
	r.index[key] = len(r.accounts)
	r.accounts = append(r.accounts, a)
	return true
}

// Get returns the account with the given name.
func (r *Registry) Get(name string) (Account, bool) {
	i, ok := r.index[AccountKey(name)]
	if !ok {
		return Account{}, false
	}
	return r.accounts[i], true
}

// Accounts returns a copy of all accounts in insertion order.
func (r *Registry) Accounts() []Account {
	out := make([]Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// InProfile returns the accounts of one profile in insertion order.
func (r *Registry) InProfile(profile string) []Account {
	var out []Account
	for _, a := range r.accounts {
		if strings.EqualFold(a.Profile, profile) {
			out = append(out, a)
		}
	}
	return out
}

// Profiles returns the distinct profiles in first-seen order.
func (r *Registry) Profiles() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range r.accounts {
		if !seen[a.Profile] {
			seen[a.Profile] = true
			out = append(out, a.Profile)
		}
	}
	return out
}

// Clone returns an independent copy.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return NewRegistry()
	}
	return NewRegistry(r.accounts...)
}

// Len returns the number of accounts.
func (r *Registry) Len() int {
	return len(r.accounts)
}

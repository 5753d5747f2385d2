package pipeline

import (
	"github.com/dvloznov/finance-ledger/internal/classifier"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/engine"
)

// BuildContext assembles the reconciliation context of owner from the
// configuration and the stored accounts and overrides. Configured accounts
// come first and win over stored accounts of the same name.
func BuildContext(cfg *config.Config, owner string, stored []domain.Account, overrides []domain.Override) *engine.ReconciliationContext {
	accounts := cfg.AccountsFor(owner)
	accounts = append(accounts, stored...)

	return engine.NewContext(owner,
		engine.WithAccounts(accounts...),
		engine.WithMemory(classifier.NewOverrideTable(overrides...)),
		engine.WithRules(cfg.RuleTable()),
		engine.WithContacts(cfg.Contacts...),
		engine.WithTransferConfig(cfg.TransferSettings()),
		engine.WithBoilerplate(cfg.Boilerplate...),
	)
}

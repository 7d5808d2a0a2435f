package models

import (
	"sort"

	"github.com/ternarybob/foliomail/internal/common"
)

// Account is one named collection of tracked ticker symbols within a
// portfolio, e.g. "Cash" or "Retirement". Symbol order is the order the user
// entered them in.
type Account struct {
	Name    string   `json:"name" badgerhold:"index"`
	Tickers []string `json:"tickers"`
}

// Portfolio is one user's tracked holdings. The email address doubles as the
// portfolio identifier and the delivery recipient.
type Portfolio struct {
	Email    string    `json:"email" badgerhold:"key"`
	Accounts []Account `json:"accounts"`
}

// Tickers flattens all accounts into a single ordered, duplicate-free symbol
// list. First occurrence wins, so symbols held across several accounts are
// enriched once.
func (p *Portfolio) Tickers() []string {
	var all []string
	for _, account := range p.Accounts {
		all = append(all, account.Tickers...)
	}
	return common.DedupeTickers(all)
}

// FlattenHoldings flattens an account->symbols mapping into a single ordered,
// duplicate-free ticker list. Account names are visited in sorted order so the
// result is stable after a JSON round-trip; within an account, symbol order is
// preserved and the first occurrence of a duplicate wins.
func FlattenHoldings(holdings map[string][]string) []string {
	names := make([]string, 0, len(holdings))
	for name := range holdings {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []string
	for _, name := range names {
		all = append(all, holdings[name]...)
	}
	return common.DedupeTickers(all)
}

// TickersByAccount returns the holdings as an account-name to symbols map,
// the shape used in the per-portfolio task payload.
func (p *Portfolio) TickersByAccount() map[string][]string {
	result := make(map[string][]string, len(p.Accounts))
	for _, account := range p.Accounts {
		result[account.Name] = append([]string(nil), account.Tickers...)
	}
	return result
}

package recurring

import (
	"sort"
	"strings"

	"previsioni/internal/core"
)

// SeriesKey identifies a candidate series. It is compared structurally, so a
// description containing any delimiter cannot collide with another key.
type SeriesKey struct {
	Description string
	Type        core.TransactionType
	Category    string
}

// KeyOf returns the grouping key of a transaction.
func KeyOf(tx core.Transaction) SeriesKey {
	return SeriesKey{
		Description: strings.ToLower(strings.TrimSpace(tx.Description)),
		Type:        tx.Type,
		Category:    core.NormalizeCategory(tx.Category),
	}
}

func (k SeriesKey) less(o SeriesKey) bool {
	if k.Description != o.Description {
		return k.Description < o.Description
	}
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	return k.Category < o.Category
}

// Group is a candidate series: at least two transactions sharing a key,
// ordered ascending by date.
type Group struct {
	Key          SeriesKey
	Transactions []core.Transaction
}

// BuildGroups groups transactions by SeriesKey. Transactions with a blank
// description are ignored and groups with fewer than two members are
// dropped. Output order is deterministic.
func BuildGroups(txs []core.Transaction) []Group {
	byKey := make(map[SeriesKey][]core.Transaction)
	for _, tx := range txs {
		if strings.TrimSpace(tx.Description) == "" {
			continue
		}
		k := KeyOf(tx)
		byKey[k] = append(byKey[k], tx)
	}

	groups := make([]Group, 0, len(byKey))
	for k, members := range byKey {
		if len(members) < 2 {
			continue
		}
		sorted := append([]core.Transaction(nil), members...)
		sort.SliceStable(sorted, func(i, j int) bool {
			if !sorted[i].Date.Equal(sorted[j].Date) {
				return sorted[i].Date.Before(sorted[j].Date)
			}
			return sorted[i].ID < sorted[j].ID
		})
		groups = append(groups, Group{Key: k, Transactions: sorted})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key.less(groups[j].Key) })
	return groups
}

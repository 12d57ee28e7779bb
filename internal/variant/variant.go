// Package variant reduces a listing's bonus tag ids to a canonical variant
// key so price comparison only happens between truly equivalent items.
package variant

import (
	"sort"
	"strings"

	appconfig "auctionflow/config"
)

// Canonicalize maps bonus tag ids to the variant key: keep price-relevant
// tags, translate each to its short tag, sort, join with "+". The same tag
// set in any order yields the same key; a listing with no relevant tags
// yields the empty key, the base variant.
func Canonicalize(table appconfig.BonusTable, bonusIDs []int64) string {
	if len(bonusIDs) == 0 {
		return ""
	}
	tags := make([]string, 0, len(bonusIDs))
	for _, id := range bonusIDs {
		meta, ok := table[id]
		if !ok || !meta.PriceRelevantMeta() {
			continue
		}
		tags = append(tags, meta.Tag)
	}
	if len(tags) == 0 {
		return ""
	}
	sort.Strings(tags)
	return strings.Join(tags, "+")
}

// EffectiveLevel applies every known level delta on top of the item's base
// level. Unknown tags contribute nothing.
func EffectiveLevel(table appconfig.BonusTable, baseLevel int, bonusIDs []int64) int {
	level := baseLevel
	for _, id := range bonusIDs {
		if meta, ok := table[id]; ok {
			level += meta.LevelDelta
		}
	}
	return level
}

// Package rules decides whether a listing is anomalously cheap against its
// historical baseline.
package rules

import (
	"strings"

	appconfig "auctionflow/config"
	"auctionflow/internal/variant"
	"auctionflow/models"
)

// Verdict is the outcome of evaluating one listing, with the derived fields
// the selector and notifier need.
type Verdict struct {
	Qualifies      bool
	SavingsPct     float64
	HistoricalAvg  float64
	EffectiveLevel int
}

// Engine evaluates listings against the rule table. Read-only after
// construction, so Evaluate is safe for concurrent use.
type Engine struct {
	rules    *appconfig.RulesConfig
	bonuses  appconfig.BonusTable
	excluded map[string]struct{}
}

func NewEngine(rules *appconfig.RulesConfig, bonuses appconfig.BonusTable) *Engine {
	excluded := make(map[string]struct{}, len(rules.Defaults.ExcludedQualities))
	for _, q := range rules.Defaults.ExcludedQualities {
		excluded[strings.ToUpper(strings.TrimSpace(q))] = struct{}{}
	}
	return &Engine{rules: rules, bonuses: bonuses, excluded: excluded}
}

// Evaluate judges one listing. Decision order: a per-item override price
// qualifies the listing unconditionally when the buyout is strictly below
// it; otherwise the class preset's generation/quality/subclass gates must
// pass and the buyout must be strictly below ratio*average while staying at
// or above the absolute floor. A listing with no historical baseline never
// qualifies, whatever its price.
func (e *Engine) Evaluate(listing models.ListingRecord, meta models.ItemMetadata, avg float64, hasBaseline bool) Verdict {
	v := Verdict{
		HistoricalAvg:  avg,
		EffectiveLevel: variant.EffectiveLevel(e.bonuses, meta.Level, listing.BonusIDs),
	}
	if hasBaseline && avg > 0 {
		v.SavingsPct = (1 - float64(listing.Buyout)/avg) * 100
	}

	if override, ok := e.rules.OverridePrice(listing.ItemID); ok && listing.Buyout < override {
		v.Qualifies = true
		return v
	}

	if _, out := e.excluded[strings.ToUpper(meta.Quality)]; out {
		return v
	}

	ratio := e.rules.Defaults.Ratio
	floor := e.rules.Defaults.Floor
	if preset, ok := e.rules.PresetFor(meta.Class); ok {
		if !e.presetAllows(preset, meta) {
			return v
		}
		if preset.Ratio > 0 {
			ratio = preset.Ratio
		}
		if preset.Floor > 0 {
			floor = preset.Floor
		}
	}

	if !hasBaseline {
		return v
	}

	price := float64(listing.Buyout)
	v.Qualifies = price < ratio*avg && listing.Buyout >= floor
	return v
}

func (e *Engine) presetAllows(p appconfig.Preset, meta models.ItemMetadata) bool {
	if !p.Generations.Allows(meta.ExpansionID, e.rules.LatestExpansionID) {
		return false
	}
	if len(p.Qualities) > 0 && !containsFold(p.Qualities, meta.Quality) {
		return false
	}
	if len(p.Subclasses) > 0 && !containsFold(p.Subclasses, meta.Subclass) {
		return false
	}
	return true
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

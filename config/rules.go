package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RulesConfig is the in-memory rule table: global cheapness defaults,
// per-item-class presets and per-item price overrides. Loaded once at
// startup and treated as immutable for the duration of a run.
type RulesConfig struct {
	Defaults          RuleDefaults     `yaml:"defaults"`
	LatestExpansionID int64            `yaml:"latest_expansion_id"`
	Presets           map[string]Preset `yaml:"presets"`
	Overrides         map[int64]int64  `yaml:"overrides"`
}

type RuleDefaults struct {
	Ratio             float64  `yaml:"ratio"`
	Floor             int64    `yaml:"floor"`
	TopN              int      `yaml:"top_n"`
	ExcludedQualities []string `yaml:"excluded_qualities"`
}

// Preset narrows which listings of one item class are eligible and at what
// thresholds. Zero-valued Ratio/Floor fall back to the global defaults;
// empty Qualities/Subclasses impose no restriction.
type Preset struct {
	Generations GenerationSet `yaml:"generations"`
	Qualities   []string      `yaml:"qualities"`
	Subclasses  []string      `yaml:"subclasses"`
	Ratio       float64       `yaml:"ratio"`
	Floor       int64         `yaml:"floor"`
}

// GenerationSet is the allowed expansion set for a preset: every expansion,
// only the latest one, or an explicit id list.
type GenerationSet struct {
	All    bool
	Latest bool
	IDs    []int64
}

// UnmarshalYAML accepts "all", "latest" or a sequence of expansion ids.
func (g *GenerationSet) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		switch strings.ToLower(strings.TrimSpace(value.Value)) {
		case "", "all":
			g.All = true
		case "latest":
			g.Latest = true
		default:
			return fmt.Errorf("invalid generations value %q", value.Value)
		}
		return nil
	case yaml.SequenceNode:
		return value.Decode(&g.IDs)
	default:
		return fmt.Errorf("generations must be a string or a list")
	}
}

// Allows reports whether an item of the given expansion passes this set.
func (g GenerationSet) Allows(expansionID, latestExpansionID int64) bool {
	switch {
	case g.All:
		return true
	case g.Latest:
		return expansionID == latestExpansionID
	case len(g.IDs) > 0:
		for _, id := range g.IDs {
			if id == expansionID {
				return true
			}
		}
		return false
	default:
		// Unset set behaves like "all".
		return true
	}
}

// CanonicalClass normalizes an item class name into the preset lookup key.
// Class names arrive localized and inconsistently cased from the upstream.
func CanonicalClass(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PresetFor resolves the preset for an item class name, if one exists.
func (r *RulesConfig) PresetFor(className string) (Preset, bool) {
	p, ok := r.Presets[CanonicalClass(className)]
	return p, ok
}

// OverridePrice returns the per-item override price, if configured.
func (r *RulesConfig) OverridePrice(itemID int64) (int64, bool) {
	p, ok := r.Overrides[itemID]
	return p, ok
}

func (r *RulesConfig) applyDefaults() {
	if r.Defaults.Ratio <= 0 {
		r.Defaults.Ratio = 0.20
	}
	if r.Defaults.Floor <= 0 {
		r.Defaults.Floor = 10000
	}
	if r.Defaults.TopN <= 0 {
		r.Defaults.TopN = 5
	}

	// Preset keys are matched case-insensitively; canonicalize once here
	// so lookups never depend on how the yaml author spelled the class.
	if len(r.Presets) > 0 {
		canon := make(map[string]Preset, len(r.Presets))
		for name, p := range r.Presets {
			canon[CanonicalClass(name)] = p
		}
		r.Presets = canon
	}
}

func (r *RulesConfig) validate() error {
	if r.Defaults.Ratio >= 1 {
		return fmt.Errorf("rules.defaults.ratio must be below 1, got %v", r.Defaults.Ratio)
	}
	for name, p := range r.Presets {
		if p.Ratio < 0 || p.Ratio >= 1 {
			return fmt.Errorf("rules.presets.%s.ratio out of range: %v", name, p.Ratio)
		}
		if p.Floor < 0 {
			return fmt.Errorf("rules.presets.%s.floor must not be negative", name)
		}
	}
	for id, price := range r.Overrides {
		if price <= 0 {
			return fmt.Errorf("rules.overrides.%d must be a positive price", id)
		}
	}
	return nil
}

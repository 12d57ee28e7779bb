package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bonus tag categories that are always price-relevant: they change what the
// item actually is, so listings may only be compared within the same set.
const (
	BonusCategoryItemLevel = "item_level"
	BonusCategorySocket    = "socket"
	BonusCategoryTertiary  = "tertiary"
)

// BonusMeta is the static metadata for one bonus tag id.
type BonusMeta struct {
	Tag           string `yaml:"tag"`
	Category      string `yaml:"category"`
	LevelDelta    int    `yaml:"level_delta"`
	PriceRelevant bool   `yaml:"price_relevant"`
}

// PriceRelevantMeta reports whether this tag participates in the variant
// key, either by explicit flag or by category.
func (m BonusMeta) PriceRelevantMeta() bool {
	if m.PriceRelevant {
		return true
	}
	switch m.Category {
	case BonusCategoryItemLevel, BonusCategorySocket, BonusCategoryTertiary:
		return true
	}
	return false
}

// BonusTable maps bonus tag ids to their static metadata. Tags missing from
// the table are ignored by the variant normalizer.
type BonusTable map[int64]BonusMeta

type bonusFile struct {
	Bonuses BonusTable `yaml:"bonuses"`
}

// LoadBonuses reads the bonus tag metadata table. A missing path yields an
// empty table: every listing then collapses onto the base variant.
func LoadBonuses(path string) (BonusTable, error) {
	if path == "" {
		return BonusTable{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read bonuses file: %w", err)
	}

	var f bonusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("cannot parse bonuses YAML: %w", err)
	}
	if f.Bonuses == nil {
		f.Bonuses = BonusTable{}
	}
	return f.Bonuses, nil
}

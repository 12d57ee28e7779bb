package rules

import (
	"testing"

	appconfig "auctionflow/config"
	"auctionflow/models"
)

func testEngine() *Engine {
	rules := &appconfig.RulesConfig{
		Defaults: appconfig.RuleDefaults{
			Ratio: 0.20,
			Floor: 10000,
			TopN:  5,
		},
		LatestExpansionID: 10,
		Presets: map[string]appconfig.Preset{
			"weapon": {
				Generations: appconfig.GenerationSet{Latest: true},
				Qualities:   []string{"RARE", "EPIC"},
				Subclasses:  []string{"Sword"},
			},
			"consumable": {
				Ratio: 0.10,
				Floor: 50000,
			},
		},
		Overrides: map[int64]int64{7777: 500000},
	}
	return NewEngine(rules, appconfig.BonusTable{
		1707: {Tag: "i15", Category: appconfig.BonusCategoryItemLevel, LevelDelta: 15},
	})
}

func listing(itemID, buyout int64) models.ListingRecord {
	return models.ListingRecord{Realm: "1080", AuctionID: 1, ItemID: itemID, Buyout: buyout}
}

func sword() models.ItemMetadata {
	return models.ItemMetadata{
		ID: 5000, Name: "Steel Sword", Quality: "RARE",
		Class: "Weapon", Subclass: "Sword", Level: 400, ExpansionID: 10,
	}
}

func TestQualifiesBelowRatioAboveFloor(t *testing.T) {
	e := testEngine()
	// avg 1,000,000 and ratio 0.20: threshold is 200,000 exclusive.
	v := e.Evaluate(listing(5000, 150000), sword(), 1000000, true)
	if !v.Qualifies {
		t.Fatal("expected listing below 20% of average to qualify")
	}
	if v.SavingsPct < 84.9 || v.SavingsPct > 85.1 {
		t.Fatalf("savings = %v, want ~85", v.SavingsPct)
	}
}

func TestThresholdBoundaries(t *testing.T) {
	e := testEngine()
	meta := sword()

	// Exactly ratio*avg is not strictly below.
	if v := e.Evaluate(listing(5000, 200000), meta, 1000000, true); v.Qualifies {
		t.Fatal("price equal to ratio*average must not qualify")
	}
	// Floor is inclusive.
	if v := e.Evaluate(listing(5000, 10000), meta, 1000000, true); !v.Qualifies {
		t.Fatal("price at the floor must qualify")
	}
	if v := e.Evaluate(listing(5000, 9999), meta, 1000000, true); v.Qualifies {
		t.Fatal("price below the floor must not qualify")
	}
}

func TestNoBaselineNeverQualifies(t *testing.T) {
	e := testEngine()
	if v := e.Evaluate(listing(5000, 10000), sword(), 0, false); v.Qualifies {
		t.Fatal("a listing with no historical baseline must never qualify")
	}
}

func TestOverrideStrictlyBelow(t *testing.T) {
	e := testEngine()
	meta := models.ItemMetadata{ID: 7777, Class: "Weapon", Subclass: "Axe", Quality: "POOR", ExpansionID: 1}

	// The override bypasses preset gates and baseline entirely.
	if v := e.Evaluate(listing(7777, 499999), meta, 0, false); !v.Qualifies {
		t.Fatal("price strictly below override must qualify unconditionally")
	}
	if v := e.Evaluate(listing(7777, 500000), meta, 0, false); v.Qualifies {
		t.Fatal("price equal to override must not qualify via the override")
	}
}

func TestPresetGates(t *testing.T) {
	e := testEngine()
	cheap := listing(5000, 100000)

	old := sword()
	old.ExpansionID = 9
	if v := e.Evaluate(cheap, old, 1000000, true); v.Qualifies {
		t.Fatal("wrong generation must not pass the weapon preset")
	}

	grey := sword()
	grey.Quality = "POOR"
	if v := e.Evaluate(cheap, grey, 1000000, true); v.Qualifies {
		t.Fatal("quality outside the preset set must not qualify")
	}

	axe := sword()
	axe.Subclass = "Axe"
	if v := e.Evaluate(cheap, axe, 1000000, true); v.Qualifies {
		t.Fatal("subclass outside the preset set must not qualify")
	}
}

func TestPresetThresholdOverrides(t *testing.T) {
	e := testEngine()
	potion := models.ItemMetadata{ID: 6000, Class: "Consumable", Quality: "COMMON", ExpansionID: 10}

	// Consumable preset tightens ratio to 0.10 and floor to 50,000.
	if v := e.Evaluate(listing(6000, 150000), potion, 1000000, true); v.Qualifies {
		t.Fatal("15% of average must fail the 10% consumable ratio")
	}
	if v := e.Evaluate(listing(6000, 90000), potion, 1000000, true); !v.Qualifies {
		t.Fatal("9% of average above the preset floor must qualify")
	}
	if v := e.Evaluate(listing(6000, 40000), potion, 1000000, true); v.Qualifies {
		t.Fatal("price below the preset floor must not qualify")
	}
}

func TestClassWithoutPresetUsesDefaults(t *testing.T) {
	e := testEngine()
	gem := models.ItemMetadata{ID: 8000, Class: "Gem", Quality: "POOR", ExpansionID: 1}
	if v := e.Evaluate(listing(8000, 150000), gem, 1000000, true); !v.Qualifies {
		t.Fatal("class without a preset must fall back to global defaults")
	}
}

func TestExcludedQuality(t *testing.T) {
	rules := &appconfig.RulesConfig{
		Defaults: appconfig.RuleDefaults{Ratio: 0.20, Floor: 10000, ExcludedQualities: []string{"poor"}},
	}
	e := NewEngine(rules, appconfig.BonusTable{})
	grey := models.ItemMetadata{ID: 8000, Class: "Junk", Quality: "POOR"}
	if v := e.Evaluate(listing(8000, 150000), grey, 1000000, true); v.Qualifies {
		t.Fatal("globally excluded quality must not qualify")
	}
}

func TestEffectiveLevelDerived(t *testing.T) {
	e := testEngine()
	l := listing(5000, 150000)
	l.BonusIDs = []int64{1707}
	v := e.Evaluate(l, sword(), 1000000, true)
	if v.EffectiveLevel != 415 {
		t.Fatalf("effective level = %d, want 415", v.EffectiveLevel)
	}
}

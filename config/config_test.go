package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
auctionflow:
  name: auctionflow
  version: 0.1.0
source:
  oauth_token_url: https://eu.battle.net/oauth/token
  api_base_url: https://eu.api.blizzard.com
  namespace: dynamic-eu
  static_namespace: static-eu
  locale: en_US
  requests_per_second: 90
rules:
  latest_expansion_id: 10
  presets:
    Weapon:
      generations: latest
      qualities: [EPIC, RARE]
      ratio: 0.15
      floor: 50000
    armor:
      generations: [9, 10]
  overrides:
    19019: 1000000
notifier:
  requests_per_second: 1
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Source.Retry.MaxAttempts != 5 {
		t.Errorf("expected default max_attempts 5, got %d", cfg.Source.Retry.MaxAttempts)
	}
	if cfg.Rules.Defaults.Ratio != 0.20 {
		t.Errorf("expected default ratio 0.20, got %v", cfg.Rules.Defaults.Ratio)
	}
	if cfg.Rules.Defaults.Floor != 10000 {
		t.Errorf("expected default floor 10000, got %d", cfg.Rules.Defaults.Floor)
	}
	if cfg.Rules.Defaults.TopN != 5 {
		t.Errorf("expected default top_n 5, got %d", cfg.Rules.Defaults.TopN)
	}
	if cfg.Fetcher.MaxWorkers != 16 {
		t.Errorf("expected default max_workers 16, got %d", cfg.Fetcher.MaxWorkers)
	}
}

func TestLoadConfigMissingSource(t *testing.T) {
	if _, err := LoadConfig(writeTempConfig(t, "auctionflow:\n  name: x\n")); err == nil {
		t.Fatal("expected error for missing source configuration")
	}
}

func TestPresetLookupIsCaseInsensitive(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	for _, name := range []string{"Weapon", "weapon", "  WEAPON "} {
		p, ok := cfg.Rules.PresetFor(name)
		if !ok {
			t.Fatalf("expected preset for class %q", name)
		}
		if p.Ratio != 0.15 {
			t.Errorf("class %q: expected ratio 0.15, got %v", name, p.Ratio)
		}
	}
}

func TestGenerationSet(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	weapon, _ := cfg.Rules.PresetFor("weapon")
	if !weapon.Generations.Allows(10, 10) {
		t.Error("latest generation should allow the latest expansion")
	}
	if weapon.Generations.Allows(9, 10) {
		t.Error("latest generation should reject older expansions")
	}

	armor, _ := cfg.Rules.PresetFor("armor")
	if !armor.Generations.Allows(9, 10) || !armor.Generations.Allows(10, 10) {
		t.Error("explicit generation list should allow listed expansions")
	}
	if armor.Generations.Allows(8, 10) {
		t.Error("explicit generation list should reject unlisted expansions")
	}

	var unset GenerationSet
	if !unset.Allows(1, 10) {
		t.Error("unset generation set should behave like all")
	}
}

func TestOverridePrice(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if price, ok := cfg.Rules.OverridePrice(19019); !ok || price != 1000000 {
		t.Errorf("expected override 1000000 for item 19019, got %d (ok=%v)", price, ok)
	}
	if _, ok := cfg.Rules.OverridePrice(1); ok {
		t.Error("unexpected override for unconfigured item")
	}
}

func TestInvalidRatioRejected(t *testing.T) {
	badYAML := `
source:
  oauth_token_url: u
  api_base_url: u
  namespace: n
rules:
  defaults:
    ratio: 1.5
`
	if _, err := LoadConfig(writeTempConfig(t, badYAML)); err == nil {
		t.Fatal("expected error for ratio above 1")
	}
}

func TestProductionRequiresWebhook(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DISCORD_WEBHOOK_URL", "")

	if _, err := LoadConfig(writeTempConfig(t, testConfigYAML)); err == nil {
		t.Fatal("expected error for missing webhook in production")
	}

	withWebhook := testConfigYAML + "  webhook_url: https://discord.com/api/webhooks/1/x\n"
	if _, err := LoadConfig(writeTempConfig(t, withWebhook)); err != nil {
		t.Fatalf("webhook configured, expected success: %v", err)
	}
}

func TestLoadBonuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonuses.yml")
	content := `
bonuses:
  6654:
    tag: sock
    category: socket
  1472:
    tag: +13
    category: item_level
    level_delta: 13
  40:
    tag: spd
    category: secondary
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bonuses: %v", err)
	}

	table, err := LoadBonuses(path)
	if err != nil {
		t.Fatalf("load bonuses: %v", err)
	}
	if len(table) != 3 {
		t.Fatalf("expected 3 bonus entries, got %d", len(table))
	}
	if !table[6654].PriceRelevantMeta() {
		t.Error("socket tag should be price relevant")
	}
	if !table[1472].PriceRelevantMeta() {
		t.Error("item level tag should be price relevant")
	}
	if table[40].PriceRelevantMeta() {
		t.Error("secondary stat tag should not be price relevant")
	}
	if table[1472].LevelDelta != 13 {
		t.Errorf("expected level delta 13, got %d", table[1472].LevelDelta)
	}
}

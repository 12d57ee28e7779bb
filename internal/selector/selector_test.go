package selector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	appconfig "auctionflow/config"
	"auctionflow/internal/catalog"
	"auctionflow/internal/rules"
	"auctionflow/internal/store"
	"auctionflow/logger"
	"auctionflow/models"
)

func itemDoc(id int64, name, quality, class, subclass string) string {
	return fmt.Sprintf(`{"id":%d,"name":"%s","level":400,
		"quality":{"type":"%s"},"item_class":{"id":1,"name":"%s"},
		"item_subclass":{"id":1,"name":"%s"},
		"media":{"id":%d,"key":{"href":"https://x/media/%d"}},
		"expansion_id":10}`, id, name, quality, class, subclass, id, id)
}

func testSelector(t *testing.T) *Selector {
	t.Helper()
	dir := t.TempDir()
	docs := map[int64]string{
		5000: itemDoc(5000, "Steel Sword", "RARE", "Weapon", "Sword"),
		6000: itemDoc(6000, "Healing Potion", "COMMON", "Consumable", "Potion"),
	}
	for id, doc := range docs {
		path := filepath.Join(dir, fmt.Sprintf("%d.json", id))
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write item doc: %v", err)
		}
	}

	rulesCfg := &appconfig.RulesConfig{
		Defaults:          appconfig.RuleDefaults{Ratio: 0.20, Floor: 10000, TopN: 5},
		LatestExpansionID: 10,
	}
	table := appconfig.BonusTable{
		6654: {Tag: "s", Category: appconfig.BonusCategorySocket},
	}
	engine := rules.NewEngine(rulesCfg, table)
	return New(engine, catalog.New(dir), table, logger.GetLogger())
}

func listing(realm string, auctionID, itemID, buyout int64) models.ListingRecord {
	return models.ListingRecord{Realm: realm, AuctionID: auctionID, ItemID: itemID, Buyout: buyout, Quantity: 1}
}

func TestMinima(t *testing.T) {
	table := appconfig.BonusTable{6654: {Tag: "s", Category: appconfig.BonusCategorySocket}}
	socketed := listing("1080", 3, 5000, 80000)
	socketed.BonusIDs = []int64{6654}

	obs := Minima(table, []models.ListingRecord{
		listing("1080", 1, 5000, 120000),
		listing("1080", 2, 5000, 90000),
		socketed,
		listing("509", 4, 5000, 70000),
	}, "run-1")

	if len(obs) != 3 {
		t.Fatalf("expected 3 minima, got %d: %+v", len(obs), obs)
	}
	// Sorted by realm, item, variant: 1080/"", 1080/"s", 509/"".
	if obs[0].MinBuyout != 90000 || obs[0].Variant != "" {
		t.Fatalf("unexpected base minimum: %+v", obs[0])
	}
	if obs[1].MinBuyout != 80000 || obs[1].Variant != "s" {
		t.Fatalf("socketed variant must keep its own minimum: %+v", obs[1])
	}
	if obs[2].Realm != "509" || obs[2].MinBuyout != 70000 {
		t.Fatalf("unexpected second realm minimum: %+v", obs[2])
	}
	for _, o := range obs {
		if o.RunID != "run-1" {
			t.Fatalf("run id not stamped: %+v", o)
		}
	}
}

func TestSelectDedupesRanksAndTruncates(t *testing.T) {
	s := testSelector(t)
	averages := map[models.ItemVariant]float64{
		{ItemID: 5000, Variant: ""}: 1000000,
		{ItemID: 6000, Variant: ""}: 500000,
	}

	listings := []models.ListingRecord{
		listing("1080", 1, 5000, 150000),
		listing("1080", 2, 5000, 120000), // cheaper duplicate of the same (realm, item)
		listing("509", 3, 5000, 90000),
		listing("1080", 4, 6000, 50000),
		listing("1080", 5, 6000, 900000), // not cheap, never qualifies
	}

	got := s.Select(context.Background(), listings, averages, nil, 5, 4)

	want := []int64{4, 3, 2} // ascending buyout: 50000, 90000, 120000
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(got), got)
	}
	for i, id := range want {
		if got[i].AuctionID != id {
			t.Fatalf("rank %d: auction %d, want %d", i, got[i].AuctionID, id)
		}
	}
	if got[0].ItemName != "Healing Potion" {
		t.Fatalf("metadata not resolved: %+v", got[0])
	}

	truncated := s.Select(context.Background(), listings, averages, nil, 2, 4)
	if len(truncated) != 2 || truncated[0].AuctionID != 4 || truncated[1].AuctionID != 3 {
		t.Fatalf("top-2 truncation wrong: %+v", truncated)
	}
}

func TestSelectFiltersAnnounced(t *testing.T) {
	s := testSelector(t)
	averages := map[models.ItemVariant]float64{{ItemID: 5000, Variant: ""}: 1000000}
	listings := []models.ListingRecord{
		listing("1080", 1, 5000, 150000),
		listing("509", 2, 5000, 150000),
	}
	announced := map[store.AnnouncedKey]struct{}{
		{Realm: "1080", AuctionID: 1}: {},
	}

	got := s.Select(context.Background(), listings, averages, announced, 5, 4)
	if len(got) != 1 || got[0].Realm != "509" {
		t.Fatalf("announced listing not filtered: %+v", got)
	}
}

func TestSelectSecondRunDisjoint(t *testing.T) {
	s := testSelector(t)
	averages := map[models.ItemVariant]float64{{ItemID: 5000, Variant: ""}: 1000000}
	listings := []models.ListingRecord{
		listing("1080", 1, 5000, 150000),
		listing("509", 2, 5000, 140000),
		listing("1305", 3, 5000, 130000),
	}

	first := s.Select(context.Background(), listings, averages, nil, 2, 4)
	announced := make(map[store.AnnouncedKey]struct{})
	for _, c := range first {
		announced[store.AnnouncedKey{Realm: c.Realm, AuctionID: c.AuctionID}] = struct{}{}
	}

	second := s.Select(context.Background(), listings, averages, announced, 2, 4)
	for _, c := range second {
		if _, seen := announced[store.AnnouncedKey{Realm: c.Realm, AuctionID: c.AuctionID}]; seen {
			t.Fatalf("second run re-selected announced auction %s/%d", c.Realm, c.AuctionID)
		}
	}
	if len(second) != 1 || second[0].AuctionID != 1 {
		t.Fatalf("expected the one remaining listing, got %+v", second)
	}
}

func TestSelectDeterministicAcrossSchedules(t *testing.T) {
	s := testSelector(t)
	averages := map[models.ItemVariant]float64{{ItemID: 5000, Variant: ""}: 1000000}

	var listings []models.ListingRecord
	for i := int64(0); i < 200; i++ {
		listings = append(listings, listing(fmt.Sprintf("r%d", i%20), i, 5000, 100000))
	}

	first := s.Select(context.Background(), listings, averages, nil, 10, 8)
	for i := 0; i < 5; i++ {
		again := s.Select(context.Background(), listings, averages, nil, 10, 1+i)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("selection depends on worker scheduling:\n%+v\nvs\n%+v", first, again)
		}
	}
	// Equal prices tie-break on auction id.
	for i := 1; i < len(first); i++ {
		if first[i-1].AuctionID > first[i].AuctionID {
			t.Fatalf("tie-break violated at %d: %+v", i, first)
		}
	}
}

func TestSelectUnknownItemDropped(t *testing.T) {
	s := testSelector(t)
	averages := map[models.ItemVariant]float64{{ItemID: 99999, Variant: ""}: 1000000}
	got := s.Select(context.Background(), []models.ListingRecord{listing("1080", 1, 99999, 100000)}, averages, nil, 5, 2)
	if len(got) != 0 {
		t.Fatalf("listing without metadata must be dropped, got %+v", got)
	}
}

func TestParseSnapshots(t *testing.T) {
	s := testSelector(t)
	dir := t.TempDir()

	good := `{"connected_realm":{"href":"https://x/connected-realm/1080?ns=y"},
		"auctions":[{"id":1,"item":{"id":5000},"buyout":100,"quantity":1,"time_left":"LONG"}]}`
	if err := os.WriteFile(filepath.Join(dir, "1080.json"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "509.json"), []byte(`{broken`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.ParseSnapshots(context.Background(), dir, 4)
	if err != nil {
		t.Fatalf("parse snapshots: %v", err)
	}
	if res.Parsed != 1 || res.Bad != 1 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if len(res.Listings) != 1 || res.Listings[0].Realm != "1080" {
		t.Fatalf("unexpected listings: %+v", res.Listings)
	}
}

// Package selector turns one run's snapshot files into a ranked shortlist
// of anomalously cheap listings.
package selector

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	appconfig "auctionflow/config"
	"auctionflow/internal/catalog"
	"auctionflow/internal/rules"
	"auctionflow/internal/snapshot"
	"auctionflow/internal/store"
	"auctionflow/internal/variant"
	"auctionflow/logger"
	"auctionflow/models"
)

// Selector wires the parser, variant normalizer, item catalog and rule
// engine together for one run. All lookups are read-only during a run, so
// the evaluation fan-out needs no locking beyond the result merge.
type Selector struct {
	engine  *rules.Engine
	catalog *catalog.Catalog
	bonuses appconfig.BonusTable
	log     *logger.Entry
}

func New(engine *rules.Engine, cat *catalog.Catalog, bonuses appconfig.BonusTable, log *logger.Log) *Selector {
	return &Selector{
		engine:  engine,
		catalog: cat,
		bonuses: bonuses,
		log:     log.WithComponent("selector"),
	}
}

// ParseResult carries the listings of one run plus the per-file outcome
// counts for the run summary.
type ParseResult struct {
	Listings []models.ListingRecord
	Parsed   int
	Bad      int
}

// ParseSnapshots reads every .json file in dir through a bounded worker
// pool. A snapshot that fails to decode is counted and dropped; it never
// aborts the others.
func (s *Selector) ParseSnapshots(ctx context.Context, dir string, maxWorkers int) (ParseResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ParseResult{}, err
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var res ParseResult

	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				raw, err := os.ReadFile(path)
				var records []models.ListingRecord
				if err == nil {
					_, records, err = snapshot.Parse(raw, path)
				}
				mu.Lock()
				if err != nil {
					s.log.WithError(err).WithFields(logger.Fields{"file": path}).Warn("snapshot dropped")
					res.Bad++
				} else {
					res.Parsed++
					res.Listings = append(res.Listings, records...)
				}
				mu.Unlock()
			}
		}()
	}

	for _, p := range paths {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return res, ctx.Err()
		case jobs <- p:
		}
	}
	close(jobs)
	wg.Wait()
	return res, nil
}

// Minima reduces one run's listings to the minimum buyout per
// (realm, item, variant), the rows the aggregation store persists.
func Minima(table appconfig.BonusTable, listings []models.ListingRecord, runID string) []models.PriceObservation {
	type key struct {
		realm   string
		item    int64
		variant string
	}
	minima := make(map[key]models.PriceObservation)
	for _, l := range listings {
		k := key{realm: l.Realm, item: l.ItemID, variant: variant.Canonicalize(table, l.BonusIDs)}
		if cur, ok := minima[k]; !ok || l.Buyout < cur.MinBuyout {
			minima[k] = models.PriceObservation{
				Realm:      l.Realm,
				ItemID:     l.ItemID,
				Variant:    k.variant,
				MinBuyout:  l.Buyout,
				RunID:      runID,
				ObservedAt: l.SeenAt,
			}
		}
	}

	out := make([]models.PriceObservation, 0, len(minima))
	for _, obs := range minima {
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Realm != b.Realm {
			return a.Realm < b.Realm
		}
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		return a.Variant < b.Variant
	})
	return out
}

// Select evaluates every listing against the historical baseline, keeps the
// cheapest qualifying instance per (realm, item), drops already announced
// auctions, and returns at most topN candidates ordered by ascending price.
// Given identical inputs the output is identical regardless of worker
// scheduling: qualification is a pure function and ordering happens in one
// final sort with the auction id as tie-break.
func (s *Selector) Select(ctx context.Context, listings []models.ListingRecord, averages map[models.ItemVariant]float64, announced map[store.AnnouncedKey]struct{}, topN, maxWorkers int) []models.CandidateRecord {
	if topN <= 0 {
		topN = 5
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	jobs := make(chan models.ListingRecord)
	results := make(chan models.CandidateRecord, maxWorkers)
	var wg sync.WaitGroup

	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l := range jobs {
				if c, ok := s.evaluate(l, averages); ok {
					results <- c
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(jobs)
		for _, l := range listings {
			select {
			case <-ctx.Done():
				return
			case jobs <- l:
			}
		}
	}()

	// Join barrier: dedupe to the cheapest instance per (realm, item).
	type dedupeKey struct {
		realm string
		item  int64
	}
	cheapest := make(map[dedupeKey]models.CandidateRecord)
	for c := range results {
		k := dedupeKey{realm: c.Realm, item: c.ItemID}
		if cur, ok := cheapest[k]; !ok || c.Buyout < cur.Buyout ||
			(c.Buyout == cur.Buyout && c.AuctionID < cur.AuctionID) {
			cheapest[k] = c
		}
	}

	candidates := make([]models.CandidateRecord, 0, len(cheapest))
	for _, c := range cheapest {
		if _, done := announced[store.AnnouncedKey{Realm: c.Realm, AuctionID: c.AuctionID}]; done {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Buyout != candidates[j].Buyout {
			return candidates[i].Buyout < candidates[j].Buyout
		}
		return candidates[i].AuctionID < candidates[j].AuctionID
	})
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

func (s *Selector) evaluate(l models.ListingRecord, averages map[models.ItemVariant]float64) (models.CandidateRecord, bool) {
	meta, ok := s.catalog.Lookup(l.ItemID)
	if !ok {
		// No metadata means no preset or quality judgement is possible.
		return models.CandidateRecord{}, false
	}

	key := models.ItemVariant{ItemID: l.ItemID, Variant: variant.Canonicalize(s.bonuses, l.BonusIDs)}
	avg, hasBaseline := averages[key]

	v := s.engine.Evaluate(l, meta, avg, hasBaseline)
	if !v.Qualifies {
		return models.CandidateRecord{}, false
	}
	return models.CandidateRecord{
		Realm:          l.Realm,
		AuctionID:      l.AuctionID,
		ItemID:         l.ItemID,
		Variant:        key.Variant,
		Buyout:         l.Buyout,
		Quantity:       l.Quantity,
		TimeLeft:       l.TimeLeft,
		SeenAt:         l.SeenAt,
		ItemName:       meta.Name,
		ItemIcon:       meta.Icon,
		SavingsPct:     v.SavingsPct,
		HistoricalAvg:  v.HistoricalAvg,
		EffectiveLevel: v.EffectiveLevel,
	}, true
}

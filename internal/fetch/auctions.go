package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"auctionflow/logger"
)

// AuctionResult reports the outcome of the per-realm snapshot fan-out.
type AuctionResult struct {
	Fetched int
	Failed  int
}

// FetchAuctions pulls the full auction snapshot for every realm id through
// a bounded worker pool and writes each one to saveDir as <realm>.json.
// Per-realm failures are logged and counted, never escalated: one throttled
// or broken realm must not abort its siblings.
func (c *Client) FetchAuctions(ctx context.Context, realmIDs []string, saveDir string, maxWorkers int) (AuctionResult, error) {
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return AuctionResult{}, fmt.Errorf("create snapshot directory: %w", err)
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	log := c.log.WithComponent("fetch").WithFields(logger.Fields{"operation": "fetch_auctions"})
	log.WithFields(logger.Fields{"realms": len(realmIDs), "workers": maxWorkers}).Info("starting auction fan-out")

	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var res AuctionResult

	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for realmID := range jobs {
				if err := c.fetchRealmAuctions(ctx, realmID, saveDir); err != nil {
					log.WithError(err).WithFields(logger.Fields{"realm": realmID}).Warn("realm snapshot dropped")
					mu.Lock()
					res.Failed++
					mu.Unlock()
					continue
				}
				logger.IncrementSnapshotFetched()
				mu.Lock()
				res.Fetched++
				mu.Unlock()
			}
		}()
	}

	for _, id := range realmIDs {
		select {
		case <-ctx.Done():
			// Stop feeding; in-flight workers fail fast on their own.
			close(jobs)
			wg.Wait()
			return res, ctx.Err()
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	log.WithFields(logger.Fields{"fetched": res.Fetched, "failed": res.Failed}).Info("auction fan-out finished")
	return res, nil
}

func (c *Client) fetchRealmAuctions(ctx context.Context, realmID, saveDir string) error {
	url := fmt.Sprintf("%s/data/wow/connected-realm/%s/auctions?namespace=%s",
		c.source.APIBaseURL, realmID, c.source.Namespace)

	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}

	path := filepath.Join(saveDir, realmID+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("save snapshot for realm %s: %w", realmID, err)
	}
	return nil
}

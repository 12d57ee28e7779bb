package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"auctionflow/logger"
	"auctionflow/models"
)

// ItemDirs groups the on-disk locations the item top-up writes to.
type ItemDirs struct {
	ItemsDir        string
	MediaDir        string
	EncounteredFile string
}

// ItemResult reports the outcome of the item metadata top-up.
type ItemResult struct {
	New     int
	Fetched int
	Failed  int
}

// FetchNewItems fetches the static item document (and its media document)
// for every item id not yet in the encountered set, saves both to disk and
// persists the updated set. Only successfully fetched ids are added, so
// failed items are retried on the next run.
func (c *Client) FetchNewItems(ctx context.Context, itemIDs map[int64]struct{}, dirs ItemDirs, maxWorkers int) (ItemResult, error) {
	for _, dir := range []string{dirs.ItemsDir, dirs.MediaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ItemResult{}, fmt.Errorf("create item directory: %w", err)
		}
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	encountered, err := loadEncountered(dirs.EncounteredFile)
	if err != nil {
		return ItemResult{}, err
	}

	var newIDs []int64
	for id := range itemIDs {
		if _, seen := encountered[id]; !seen {
			newIDs = append(newIDs, id)
		}
	}
	sort.Slice(newIDs, func(i, j int) bool { return newIDs[i] < newIDs[j] })

	log := c.log.WithComponent("fetch").WithFields(logger.Fields{"operation": "fetch_items"})
	log.WithFields(logger.Fields{
		"seen_items": len(itemIDs),
		"known":      len(encountered),
		"new":        len(newIDs),
	}).Info("starting item metadata top-up")

	res := ItemResult{New: len(newIDs)}
	if len(newIDs) == 0 {
		return res, nil
	}

	jobs := make(chan int64)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := c.fetchItem(ctx, id, dirs); err != nil {
					log.WithError(err).WithFields(logger.Fields{"item_id": id}).Warn("item metadata dropped")
					mu.Lock()
					res.Failed++
					mu.Unlock()
					continue
				}
				logger.IncrementItemFetched()
				mu.Lock()
				res.Fetched++
				encountered[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}

	for _, id := range newIDs {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			// Persist what succeeded so far; the rest retries next run.
			_ = saveEncountered(dirs.EncounteredFile, encountered)
			return res, ctx.Err()
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	if err := saveEncountered(dirs.EncounteredFile, encountered); err != nil {
		return res, err
	}

	log.WithFields(logger.Fields{"fetched": res.Fetched, "failed": res.Failed}).Info("item metadata top-up finished")
	return res, nil
}

func (c *Client) fetchItem(ctx context.Context, id int64, dirs ItemDirs) error {
	url := fmt.Sprintf("%s/data/wow/item/%d?namespace=%s&locale=%s",
		c.source.APIBaseURL, id, c.source.StaticNamespace, c.source.Locale)

	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}

	var item models.ItemResponse
	if err := json.Unmarshal(body, &item); err != nil {
		return fmt.Errorf("%w: item %d: %v", ErrMalformedResponse, id, err)
	}

	itemPath := filepath.Join(dirs.ItemsDir, strconv.FormatInt(id, 10)+".json")
	if err := os.WriteFile(itemPath, body, 0o644); err != nil {
		return fmt.Errorf("save item %d: %w", id, err)
	}

	// The media document is optional; an item without one still counts as
	// fetched.
	if item.Media.Key.Href == "" {
		return nil
	}

	mediaBody, err := c.Get(ctx, item.Media.Key.Href)
	if err != nil {
		return err
	}
	mediaPath := filepath.Join(dirs.MediaDir, strconv.FormatInt(id, 10)+".json")
	if err := os.WriteFile(mediaPath, mediaBody, 0o644); err != nil {
		return fmt.Errorf("save media for item %d: %w", id, err)
	}
	return nil
}

func loadEncountered(path string) (map[int64]struct{}, error) {
	set := make(map[int64]struct{})
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("read encountered items: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse encountered items: %w", err)
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func saveEncountered(path string, set map[int64]struct{}) error {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode encountered items: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create encountered items directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save encountered items: %w", err)
	}
	return nil
}

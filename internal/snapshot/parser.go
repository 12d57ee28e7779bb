// Package snapshot converts raw per-realm auction dumps into normalized
// listing records.
package snapshot

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"auctionflow/models"
)

// Parse decodes one raw snapshot into listing records. The realm id is
// taken from the connected_realm href's trailing path segment (query string
// stripped); when the snapshot lacks the reference the file name supplies
// the fallback. All records share one ingestion timestamp captured here, so
// time resolution is per run, not per record.
//
// A malformed snapshot yields zero records and an error the caller logs;
// one bad file never aborts the run.
func Parse(raw []byte, filename string) (string, []models.ListingRecord, error) {
	var resp models.AuctionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", nil, fmt.Errorf("malformed snapshot %s: %w", filename, err)
	}

	realm := realmFromHref(resp.ConnectedRealm.Href)
	if realm == "" {
		realm = realmFromFilename(filename)
	}

	seenAt := time.Now().UTC()
	records := make([]models.ListingRecord, 0, len(resp.Auctions))
	for _, a := range resp.Auctions {
		// Bid-only listings carry no buyout; they have no comparable
		// price and would drag every minimum to zero if stored as 0.
		if a.Buyout <= 0 {
			continue
		}
		quantity := a.Quantity
		if quantity < 1 {
			quantity = 1
		}
		records = append(records, models.ListingRecord{
			Realm:     realm,
			AuctionID: a.ID,
			ItemID:    a.Item.ID,
			BonusIDs:  a.Item.BonusLists,
			Buyout:    a.Buyout,
			Quantity:  quantity,
			TimeLeft:  a.TimeLeft,
			SeenAt:    seenAt,
		})
	}
	return realm, records, nil
}

// realmFromHref returns the trailing path segment of the connected realm
// self-reference, e.g. ".../connected-realm/1080?namespace=x" -> "1080".
func realmFromHref(href string) string {
	if href == "" {
		return ""
	}
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		return href[i+1:]
	}
	return href
}

func realmFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

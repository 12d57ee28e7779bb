package models

import (
	"time"
)

// AuctionsResponse is the raw per-realm auction snapshot returned by the
// upstream API and saved to disk, one file per connected realm per run.
type AuctionsResponse struct {
	ConnectedRealm RealmRef      `json:"connected_realm"`
	Auctions       []AuctionJSON `json:"auctions"`
}

// RealmRef is the self-referential link the snapshot carries; the trailing
// path segment of Href is the connected-realm id.
type RealmRef struct {
	Href string `json:"href"`
}

// AuctionJSON is a single raw auction entry inside a snapshot file.
type AuctionJSON struct {
	ID       int64           `json:"id"`
	Item     AuctionItemJSON `json:"item"`
	Buyout   int64           `json:"buyout"`
	Quantity int             `json:"quantity"`
	TimeLeft string          `json:"time_left"`
}

// AuctionItemJSON carries the item identity and its raw bonus tags.
type AuctionItemJSON struct {
	ID         int64   `json:"id"`
	BonusLists []int64 `json:"bonus_lists"`
}

// ListingRecord is one normalized marketplace entry produced by the
// snapshot parser. Immutable; lives only for the current run.
type ListingRecord struct {
	Realm     string
	AuctionID int64
	ItemID    int64
	BonusIDs  []int64
	Buyout    int64
	Quantity  int
	TimeLeft  string
	SeenAt    time.Time
}

// ItemVariant is the grouping key for historical price baselines. Realm is
// intentionally not part of the key: the baseline is market-wide.
type ItemVariant struct {
	ItemID  int64
	Variant string
}

// PriceObservation is one persisted row: the minimum buyout observed for a
// (realm, item, variant) key during a single ingestion run.
type PriceObservation struct {
	Realm      string
	ItemID     int64
	Variant    string
	MinBuyout  int64
	RunID      string
	ObservedAt time.Time
}

// ItemMetadata is the static reference data for one item id, read-only.
type ItemMetadata struct {
	ID          int64
	Name        string
	Icon        string
	Quality     string
	Class       string
	Subclass    string
	Level       int
	ExpansionID int64
}

// CandidateRecord is a listing judged anomalously cheap relative to its
// baseline, after deduplication and ranking.
type CandidateRecord struct {
	Realm          string
	AuctionID      int64
	ItemID         int64
	Variant        string
	Buyout         int64
	Quantity       int
	TimeLeft       string
	SeenAt         time.Time
	ItemName       string
	ItemIcon       string
	SavingsPct     float64
	HistoricalAvg  float64
	EffectiveLevel int
}

// RunSummary reports the outcome of one full ingestion run, including the
// units that failed; per-unit failures never abort the run.
type RunSummary struct {
	RunID               string
	SnapshotsFetched    int
	SnapshotsFailed     int
	SnapshotsParsed     int
	SnapshotsBad        int
	ListingsSeen        int
	CandidatesFound     int
	CandidatesAnnounced int
	StartedAt           time.Time
	FinishedAt          time.Time
}

package store

import (
	"context"
	"fmt"
	"time"

	"auctionflow/models"
)

// AnnouncedKey identifies one listing in the announcement ledger.
type AnnouncedKey struct {
	Realm     string
	AuctionID int64
}

// Announced returns the set of (realm, auction id) pairs already delivered.
// The selector filters against it so a listing is announced at most once for
// its auction lifetime.
func (db *DB) Announced(ctx context.Context) (map[AnnouncedKey]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT realm, auction_id FROM announced_auctions`)
	if err != nil {
		return nil, fmt.Errorf("query announcement ledger: %w", err)
	}
	defer rows.Close()

	set := make(map[AnnouncedKey]struct{})
	for rows.Next() {
		var key AnnouncedKey
		if err := rows.Scan(&key.Realm, &key.AuctionID); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		set[key] = struct{}{}
	}
	return set, rows.Err()
}

// MarkAnnounced records delivered candidates. Call it only after delivery
// succeeded: a failed delivery must leave the listing eligible for the next
// run. INSERT OR IGNORE keeps a replayed candidate from failing the batch.
func (db *DB) MarkAnnounced(ctx context.Context, candidates []models.CandidateRecord, announcedAt time.Time) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO announced_auctions (realm, auction_id, item_id, buyout, announced_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		if _, err := stmt.ExecContext(ctx, c.Realm, c.AuctionID, c.ItemID, c.Buyout, announcedAt); err != nil {
			return fmt.Errorf("record announcement %s/%d: %w", c.Realm, c.AuctionID, err)
		}
	}
	return tx.Commit()
}

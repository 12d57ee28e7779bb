package store

import (
	"context"
	"fmt"

	"auctionflow/models"
)

// RecordRun appends one run's per-(realm, item, variant) minimum buyouts in
// a single transaction. The table is append-only; the history is the
// baseline every later run prices against, so rows are never rewritten.
func (db *DB) RecordRun(ctx context.Context, observations []models.PriceObservation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin observation tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_observations (run_id, realm, item_id, variant, min_buyout, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		if _, err := stmt.ExecContext(ctx,
			obs.RunID, obs.Realm, obs.ItemID, obs.Variant, obs.MinBuyout, obs.ObservedAt,
		); err != nil {
			return fmt.Errorf("insert observation for item %d: %w", obs.ItemID, err)
		}
	}
	return tx.Commit()
}

// HistoricalAverages returns the mean of all recorded minimum buyouts per
// (item, variant) across every realm and run. Realms are deliberately
// pooled: the baseline is the market-wide going rate, and a realm with a
// skewed local market is exactly what the pricing rules should flag.
func (db *DB) HistoricalAverages(ctx context.Context) (map[models.ItemVariant]float64, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id, variant, AVG(min_buyout)
		FROM price_observations
		GROUP BY item_id, variant`)
	if err != nil {
		return nil, fmt.Errorf("query historical averages: %w", err)
	}
	defer rows.Close()

	averages := make(map[models.ItemVariant]float64)
	for rows.Next() {
		var key models.ItemVariant
		var avg float64
		if err := rows.Scan(&key.ItemID, &key.Variant, &avg); err != nil {
			return nil, fmt.Errorf("scan historical average: %w", err)
		}
		averages[key] = avg
	}
	return averages, rows.Err()
}

// ObservationCount reports the total number of stored observations.
func (db *DB) ObservationCount(ctx context.Context) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_observations`).Scan(&n)
	return n, err
}

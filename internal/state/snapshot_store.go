package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Snapshot is one observation of a vault's headline numbers, recorded each
// refresh cycle so the web layer can serve history.
type Snapshot struct {
	ID           int64     `json:"id"`
	TokenAddress string    `json:"token_address"`
	TokenSymbol  string    `json:"token_symbol"`
	TVL          float64   `json:"tvl"`
	VirtualPrice float64   `json:"virtual_price"`
	ClosestAPY   float64   `json:"closest_apy"`
	CapturedAt   time.Time `json:"captured_at"`
}

// SaveSnapshot persists a vault snapshot and returns its row ID.
func SaveSnapshot(snapshot Snapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO vault_snapshots (
			token_address, token_symbol, tvl_usd, virtual_price, closest_apy
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.TokenAddress, snapshot.TokenSymbol,
		snapshot.TVL, snapshot.VirtualPrice, snapshot.ClosestAPY,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Str("token", snapshot.TokenSymbol).
		Float64("tvl", snapshot.TVL).
		Msg("Vault snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots returns the newest snapshots for a token, most recent
// first.
func GetRecentSnapshots(tokenAddress string, limit int) ([]Snapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT snapshot_id, token_address, token_symbol, tvl_usd, virtual_price, closest_apy, captured_at
		FROM vault_snapshots
		WHERE token_address = $1
		ORDER BY captured_at DESC
		LIMIT $2;
	`

	rows, err := DB.Query(query, tokenAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.TokenAddress, &s.TokenSymbol, &s.TVL, &s.VirtualPrice, &s.ClosestAPY, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vault snapshot row: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vault snapshot rows: %w", err)
	}

	return snapshots, nil
}

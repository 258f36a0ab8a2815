package postgres

import (
	"context"
	"fmt"
)

// ImportChecksumExists reports whether a file with checksum was already
// imported for the owner.
func (db *DB) ImportChecksumExists(ctx context.Context, ownerID, checksum string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM imports WHERE owner_id = $1 AND checksum = $2)
	`, ownerID, checksum).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check import: %w", err)
	}
	return exists, nil
}

// RecordImport stores the checksum of an imported file. Recording the same
// file twice is a no-op.
func (db *DB) RecordImport(ctx context.Context, ownerID, checksum, filename string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO imports (owner_id, checksum, filename)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, checksum) DO NOTHING
	`, ownerID, checksum, filename)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
)

// PairingStore persists elder↔guardian pairings. Pairings are durable: a
// pairing recorded while the elder is offline is still visible when the
// elder reconnects.
type PairingStore interface {
	// Upsert records a pairing. Re-pairing an existing (elder, guardian)
	// pair refreshes guardian_name and paired_at instead of duplicating.
	Upsert(ctx context.Context, p model.Pairing) error
	// Delete removes a pairing; ErrNotFound when no row matched.
	Delete(ctx context.Context, elderID, guardianID string) error
	// GuardianIDs lists the guardian ids paired with an elder.
	GuardianIDs(ctx context.Context, elderID string) ([]string, error)
	// ListByElder lists all pairings for an elder.
	ListByElder(ctx context.Context, elderID string) ([]model.Pairing, error)
	// ListByGuardian lists all pairings for a guardian.
	ListByGuardian(ctx context.Context, guardianID string) ([]model.Pairing, error)
}

// PairingRepo provides data access to the pairings table.
//
// Schema:
//   CREATE TABLE pairings (
//     elder_id      VARCHAR(64)  NOT NULL,
//     guardian_id   VARCHAR(64)  NOT NULL,
//     guardian_name VARCHAR(255) NOT NULL,
//     paired_at     DATETIME     NOT NULL,
//     PRIMARY KEY (elder_id, guardian_id)
//   );
type PairingRepo struct {
	db *sql.DB
}

// NewPairingRepo returns a new PairingRepo bound to the provided database.
func NewPairingRepo(db *sql.DB) *PairingRepo { return &PairingRepo{db: db} }

// Upsert inserts the pairing or, when the (elder_id, guardian_id) pair
// already exists, refreshes guardian_name and paired_at. The composite
// primary key makes re-pairing idempotent at the storage level.
func (r *PairingRepo) Upsert(ctx context.Context, p model.Pairing) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pairings (elder_id, guardian_id, guardian_name, paired_at)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE guardian_name = VALUES(guardian_name), paired_at = VALUES(paired_at)`,
		p.ElderID, p.GuardianID, p.GuardianName, p.PairedAt.UTC(),
	)
	return err
}

// Delete removes a pairing and reports ErrNotFound when nothing matched.
func (r *PairingRepo) Delete(ctx context.Context, elderID, guardianID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pairings WHERE elder_id = ? AND guardian_id = ?`,
		elderID, guardianID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GuardianIDs returns the guardians paired with the elder, oldest pairing
// first so fan-out order is stable.
func (r *PairingRepo) GuardianIDs(ctx context.Context, elderID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT guardian_id FROM pairings WHERE elder_id = ? ORDER BY paired_at, guardian_id`,
		elderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByElder returns every pairing for the elder, oldest first. The ws
// handler replays these as GUARDIAN_PAIRED when the elder connects.
func (r *PairingRepo) ListByElder(ctx context.Context, elderID string) ([]model.Pairing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT elder_id, guardian_id, guardian_name, paired_at
		 FROM pairings WHERE elder_id = ? ORDER BY paired_at, guardian_id`,
		elderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPairings(rows)
}

// ListByGuardian returns every pairing the guardian participates in.
func (r *PairingRepo) ListByGuardian(ctx context.Context, guardianID string) ([]model.Pairing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT elder_id, guardian_id, guardian_name, paired_at
		 FROM pairings WHERE guardian_id = ? ORDER BY paired_at`,
		guardianID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPairings(rows)
}

func scanPairings(rows *sql.Rows) ([]model.Pairing, error) {
	var out []model.Pairing
	for rows.Next() {
		var p model.Pairing
		var pairedAt time.Time
		if err := rows.Scan(&p.ElderID, &p.GuardianID, &p.GuardianName, &pairedAt); err != nil {
			return nil, err
		}
		p.PairedAt = pairedAt
		out = append(out, p)
	}
	return out, rows.Err()
}

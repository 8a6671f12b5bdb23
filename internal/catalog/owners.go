package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Owner is an account known to the catalog.
type Owner struct {
	ID         string    `json:"id"`
	Email      string    `json:"email,omitempty"`
	QuotaBytes int64     `json:"quota_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnsureOwner creates the owner row on first sight with the configured
// default quota and refreshes the stored email afterwards.
func (s *Store) EnsureOwner(ctx context.Context, id, email string) error {
	stamp := now()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO owners (id, email, quota_bytes, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = COALESCE(excluded.email, owners.email), updated_at = excluded.updated_at`,
		id, nullableString(email), s.defaultQuota, stamp, stamp,
	)
	if err != nil {
		return fmt.Errorf("ensure owner %s: %w", id, err)
	}
	return nil
}

// SetQuota replaces the owner's ceiling, creating the owner if needed.
func (s *Store) SetQuota(ctx context.Context, id string, quotaBytes int64) error {
	if quotaBytes < 0 {
		return fmt.Errorf("set quota %s: negative quota %d", id, quotaBytes)
	}
	stamp := now()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO owners (id, quota_bytes, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET quota_bytes = excluded.quota_bytes, updated_at = excluded.updated_at`,
		id, quotaBytes, stamp, stamp,
	)
	if err != nil {
		return fmt.Errorf("set quota %s: %w", id, err)
	}
	return nil
}

// QuotaBytes returns the owner's ceiling; ok is false for unknown owners.
func (s *Store) QuotaBytes(ctx context.Context, owner string) (int64, bool, error) {
	ctx = ensureContext(ctx)
	var quota int64
	err := s.db.QueryRowContext(ctx, "SELECT quota_bytes FROM owners WHERE id = ?", owner).Scan(&quota)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read quota %s: %w", owner, err)
	}
	return quota, true, nil
}

// UsedBytes sums the sizes of the audio assets recorded for owner. Covers
// and thumbnails do not count against the quota.
func (s *Store) UsedBytes(ctx context.Context, owner string) (int64, error) {
	ctx = ensureContext(ctx)
	var used int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(size), 0) FROM assets WHERE owner = ? AND kind = ?", owner, KindAudio).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("sum usage %s: %w", owner, err)
	}
	return used, nil
}

// Owners lists every known owner ordered by id.
func (s *Store) Owners(ctx context.Context) ([]Owner, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT id, email, quota_bytes, created_at FROM owners ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []Owner
	for rows.Next() {
		var (
			owner      Owner
			email      sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&owner.ID, &email, &owner.QuotaBytes, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owner.Email = email.String
		if created, err := parseTimeString(createdRaw.String); err == nil {
			owner.CreatedAt = created
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

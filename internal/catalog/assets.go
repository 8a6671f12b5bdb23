package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Asset kinds recorded in the catalog.
const (
	KindAudio = "audio"
	KindCover = "cover"
)

// Asset is one stored file as the catalog knows it.
type Asset struct {
	Name         string         `json:"name"`
	Owner        string         `json:"owner"`
	Kind         string         `json:"kind"`
	OriginalName string         `json:"original_name,omitempty"`
	ContentType  string         `json:"content_type,omitempty"`
	Size         int64          `json:"size"`
	CoverName    string         `json:"cover_name,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

const assetColumns = "name, owner, kind, original_name, content_type, size, cover_name, metadata_json, created_at"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		asset        Asset
		originalName sql.NullString
		contentType  sql.NullString
		coverName    sql.NullString
		metadataRaw  sql.NullString
		createdRaw   sql.NullString
	)
	if err := scanner.Scan(
		&asset.Name,
		&asset.Owner,
		&asset.Kind,
		&originalName,
		&contentType,
		&asset.Size,
		&coverName,
		&metadataRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	asset.OriginalName = originalName.String
	asset.ContentType = contentType.String
	asset.CoverName = coverName.String
	if metadataRaw.Valid && metadataRaw.String != "" {
		if err := json.Unmarshal([]byte(metadataRaw.String), &asset.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", asset.Name, err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		asset.CreatedAt = created
	}
	return &asset, nil
}

// Record inserts an asset row. The owner row is created with the default
// quota when it does not exist yet.
func (s *Store) Record(ctx context.Context, asset Asset) error {
	if asset.Name == "" || asset.Owner == "" {
		return errors.New("record asset: name and owner are required")
	}
	if asset.Kind == "" {
		asset.Kind = KindAudio
	}
	var metadata any
	if len(asset.Metadata) > 0 {
		encoded, err := json.Marshal(asset.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", asset.Name, err)
		}
		metadata = string(encoded)
	}
	if err := s.EnsureOwner(ctx, asset.Owner, ""); err != nil {
		return err
	}
	created := asset.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO assets (`+assetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.Name,
		asset.Owner,
		asset.Kind,
		nullableString(asset.OriginalName),
		nullableString(asset.ContentType),
		asset.Size,
		nullableString(asset.CoverName),
		metadata,
		created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record asset %s: %w", asset.Name, err)
	}
	return nil
}

// Get returns the asset named name, or nil when it is not recorded.
func (s *Store) Get(ctx context.Context, name string) (*Asset, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE name = ?", name)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", name, err)
	}
	return asset, nil
}

// ListByOwner returns owner's assets of kind, oldest first. An empty kind
// lists every kind.
func (s *Store) ListByOwner(ctx context.Context, owner, kind string) ([]Asset, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + assetColumns + " FROM assets WHERE owner = ?"
	args := []any{owner}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets %s: %w", owner, err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

// OwnerOf resolves the owner of a stored file. Covers extracted from audio
// are not recorded as rows of their own and resolve through their parent.
func (s *Store) OwnerOf(ctx context.Context, name string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var owner string
	err := s.db.QueryRowContext(ctx,
		"SELECT owner FROM assets WHERE name = ? OR cover_name = ? LIMIT 1", name, name,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve owner of %s: %w", name, err)
	}
	return owner, true, nil
}

// ClearCover forgets an extracted cover after it has been deleted.
func (s *Store) ClearCover(ctx context.Context, coverName string) error {
	if _, err := s.execWithRetry(ctx, "UPDATE assets SET cover_name = NULL WHERE cover_name = ?", coverName); err != nil {
		return fmt.Errorf("clear cover %s: %w", coverName, err)
	}
	return nil
}

// Remove deletes the asset row and reports whether one existed.
func (s *Store) Remove(ctx context.Context, name string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM assets WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("remove asset %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove asset %s: %w", name, err)
	}
	return affected > 0, nil
}

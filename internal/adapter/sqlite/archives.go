package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

// RecordArchive stores or replaces the ledger entry of a product.
func (s *Store) RecordArchive(ctx context.Context, rec domain.DownloadedArchive) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO archives
		(product_id, title, path, sensed_at, cloud_cover, size_bytes, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (product_id) DO UPDATE SET
			title = excluded.title, path = excluded.path, sensed_at = excluded.sensed_at,
			cloud_cover = excluded.cloud_cover, size_bytes = excluded.size_bytes,
			downloaded_at = excluded.downloaded_at`,
		rec.ProductID, rec.Title, rec.Path, formatTime(rec.SensedAt), rec.CloudCover,
		rec.SizeBytes, formatTime(rec.DownloadedAt),
	)
	if err != nil {
		return fmt.Errorf("record archive %s: %w", rec.ProductID, err)
	}
	return nil
}

// LookupArchive returns the ledger entry of a product.
func (s *Store) LookupArchive(ctx context.Context, productID string) (domain.DownloadedArchive, error) {
	var (
		rec                domain.DownloadedArchive
		sensed, downloaded string
	)
	err := s.db.QueryRowContext(ctx, `SELECT product_id, title, path, sensed_at, cloud_cover,
		size_bytes, downloaded_at FROM archives WHERE product_id = ?`, productID).
		Scan(&rec.ProductID, &rec.Title, &rec.Path, &sensed, &rec.CloudCover, &rec.SizeBytes, &downloaded)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DownloadedArchive{}, fmt.Errorf("archive %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return domain.DownloadedArchive{}, fmt.Errorf("lookup archive %s: %w", productID, err)
	}
	if rec.SensedAt, err = parseTime(sensed); err != nil {
		return domain.DownloadedArchive{}, err
	}
	if rec.DownloadedAt, err = parseTime(downloaded); err != nil {
		return domain.DownloadedArchive{}, err
	}
	return rec, nil
}

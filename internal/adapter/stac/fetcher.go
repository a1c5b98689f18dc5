package stac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

// Downloader fetches one product archive into a directory.
type Downloader interface {
	Download(ctx context.Context, p domain.Product, dir string) (path string, size int64, err error)
}

// ArchiveLedger remembers which products are already on disk.
type ArchiveLedger interface {
	LookupArchive(ctx context.Context, productID string) (domain.DownloadedArchive, error)
	RecordArchive(ctx context.Context, rec domain.DownloadedArchive) error
}

// Fetcher implements domain.ArchiveCatalog: it searches the catalog and
// downloads every product not already recorded in the ledger.
type Fetcher struct {
	catalog    domain.ProductCatalog
	downloader Downloader
	ledger     ArchiveLedger
	dir        string
	logger     *slog.Logger
}

// NewFetcher creates a fetcher storing archives under dir.
func NewFetcher(catalog domain.ProductCatalog, downloader Downloader, ledger ArchiveLedger, dir string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		catalog:    catalog,
		downloader: downloader,
		ledger:     ledger,
		dir:        dir,
		logger:     logger,
	}
}

// FetchArchives searches and fetches every matching product, returning the
// archives in sensing order.
func (f *Fetcher) FetchArchives(ctx context.Context, bbox domain.BoundingBox, window domain.DateRange, maxCloudCover float64) ([]domain.ArchiveRef, error) {
	products, err := f.catalog.Search(ctx, bbox, window, maxCloudCover)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	return f.Fetch(ctx, products)
}

// Fetch makes each product locally readable, in sensing order.
func (f *Fetcher) Fetch(ctx context.Context, products []domain.Product) ([]domain.ArchiveRef, error) {
	sorted := slices.Clone(products)
	slices.SortStableFunc(sorted, func(a, b domain.Product) int {
		return a.SensedAt.Compare(b.SensedAt)
	})

	refs := make([]domain.ArchiveRef, 0, len(sorted))
	for _, p := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := f.fetchOne(ctx, p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, domain.ArchiveRef{Path: path})
	}
	return refs, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, p domain.Product) (string, error) {
	rec, err := f.ledger.LookupArchive(ctx, p.ID)
	switch {
	case err == nil:
		if _, statErr := os.Stat(rec.Path); statErr == nil {
			f.logger.Debug("archive already downloaded", "product", p.ID, "path", rec.Path)
			return rec.Path, nil
		}
		f.logger.Warn("recorded archive missing, downloading again", "product", p.ID, "path", rec.Path)
	case !errors.Is(err, domain.ErrNotFound):
		return "", fmt.Errorf("lookup archive %s: %w", p.ID, err)
	}

	path, size, err := f.downloader.Download(ctx, p, f.dir)
	if err != nil {
		return "", err
	}
	err = f.ledger.RecordArchive(ctx, domain.DownloadedArchive{
		ProductID:    p.ID,
		Title:        p.Title,
		Path:         path,
		SensedAt:     p.SensedAt,
		CloudCover:   p.CloudCover,
		SizeBytes:    size,
		DownloadedAt: domain.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("record archive %s: %w", p.ID, err)
	}
	return path, nil
}

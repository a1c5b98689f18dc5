package domain

import (
	"context"
	"slices"
	"time"
)

// SearchWindowDays is how far either side of the fire date the catalog is
// searched.
const SearchWindowDays = 60

// BoundingBox is a WGS-84 envelope in degrees.
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// DateRange is an inclusive sensing-date interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SearchWindow returns the ±SearchWindowDays interval around a fire date.
func SearchWindow(fireDate time.Time) DateRange {
	return DateRange{
		Start: fireDate.AddDate(0, 0, -SearchWindowDays),
		End:   fireDate.AddDate(0, 0, SearchWindowDays),
	}
}

// Product is a catalog entry for one downloadable archive.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SensedAt    time.Time `json:"sensed_at"`
	CloudCover  float64   `json:"cloud_cover"`
	DownloadURL string    `json:"download_url"`
}

// DownloadedArchive is the ledger entry of a product archive already on disk.
type DownloadedArchive struct {
	ProductID    string
	Title        string
	Path         string
	SensedAt     time.Time
	CloudCover   float64
	SizeBytes    int64
	DownloadedAt time.Time
}

// ProductCatalog searches for products over an area and date range.
type ProductCatalog interface {
	Search(ctx context.Context, bbox BoundingBox, window DateRange, maxCloudCover float64) ([]Product, error)
}

// ArchiveCatalog resolves a search into locally readable archives, fetching
// them when needed.
type ArchiveCatalog interface {
	FetchArchives(ctx context.Context, bbox BoundingBox, window DateRange, maxCloudCover float64) ([]ArchiveRef, error)
}

// SelectAroundFireDate returns up to perSide products sensed on or before the
// fire day (the latest ones) and up to perSide sensed after it (the earliest
// ones), each in chronological order. A negative perSide selects nothing.
func SelectAroundFireDate(products []Product, fireDate time.Time, perSide int) (before, after []Product) {
	perSide = max(perSide, 0)
	sorted := slices.Clone(products)
	slices.SortStableFunc(sorted, func(a, b Product) int {
		return a.SensedAt.Compare(b.SensedAt)
	})

	fireDay := civilDay(fireDate)
	for _, p := range sorted {
		if civilDay(p.SensedAt) <= fireDay {
			before = append(before, p)
		} else if len(after) < perSide {
			after = append(after, p)
		}
	}
	if len(before) > perSide {
		before = before[len(before)-perSide:]
	}
	return before, after
}

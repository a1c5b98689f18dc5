//go:build stac

package stac

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/burn-area-service/internal/config"
	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit a real STAC API. CATALOG_URL defaults to Copernicus.
// Run with: go test -tags=stac ./internal/adapter/stac/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("CATALOG_URL")
	if url == "" {
		url = config.DefaultCatalogURL
	}
	return NewClient(url, os.Getenv("CATALOG_TOKEN"), 30*time.Second,
		observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// Monchique, August 2018.
func TestSmoke_Search(t *testing.T) {
	c := smokeClient(t)
	bbox := domain.BoundingBox{MinLon: -8.70, MinLat: 37.25, MaxLon: -8.45, MaxLat: 37.40}
	window := domain.SearchWindow(time.Date(2018, 8, 3, 0, 0, 0, 0, time.UTC))

	products, err := c.Search(context.Background(), bbox, window, 20)
	require.NoError(t, err)
	require.NotEmpty(t, products)

	for _, p := range products {
		assert.LessOrEqual(t, p.CloudCover, 20.0)
		assert.False(t, p.SensedAt.Before(window.Start), p.ID)
		assert.NotEmpty(t, p.DownloadURL)
	}

	before, after := domain.SelectAroundFireDate(products, time.Date(2018, 8, 3, 0, 0, 0, 0, time.UTC), 2)
	assert.NotEmpty(t, before)
	assert.NotEmpty(t, after)
}

func TestSmoke_CachedCatalog(t *testing.T) {
	cached := NewCachedCatalog(smokeClient(t), 10, observability.NewMetricsForTesting())
	bbox := domain.BoundingBox{MinLon: -8.70, MinLat: 37.25, MaxLon: -8.45, MaxLat: 37.40}
	window := domain.SearchWindow(time.Date(2018, 8, 3, 0, 0, 0, 0, time.UTC))

	r1, err := cached.Search(context.Background(), bbox, window, 20)
	require.NoError(t, err)
	r2, err := cached.Search(context.Background(), bbox, window, 20)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

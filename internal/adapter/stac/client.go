// Package stac searches and downloads Sentinel-2 L2A products from a STAC
// catalog such as the Copernicus Data Space Ecosystem.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/observability"
)

const (
	// Collection is the STAC collection of Sentinel-2 surface reflectance products.
	Collection = "sentinel-2-l2a"

	pageLimit = 100
	maxPages  = 20
)

// Client implements domain.ProductCatalog against a STAC API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a STAC catalog client. The token is sent as a bearer
// credential when non-empty.
func NewClient(baseURL, token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Search returns the products intersecting bbox sensed within window with
// cloud cover at or below maxCloudCover percent.
func (c *Client) Search(ctx context.Context, bbox domain.BoundingBox, window domain.DateRange, maxCloudCover float64) ([]domain.Product, error) {
	body, err := json.Marshal(searchRequest{
		Collections: []string{Collection},
		BBox:        []float64{bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat},
		Datetime:    formatInterval(window),
		Limit:       pageLimit,
		Query: map[string]map[string]float64{
			"eo:cloud_cover": {"lte": maxCloudCover},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var products []domain.Product
	for page := 0; req != nil; page++ {
		if page == maxPages {
			c.logger.Warn("catalog search truncated", "pages", maxPages, "products", len(products))
			break
		}
		var fc featureCollection
		if err := c.doJSON(req, &fc); err != nil {
			return nil, err
		}
		for _, f := range fc.Features {
			p, ok := f.product()
			if !ok {
				c.logger.Debug("skipping item without downloadable asset", "item", f.ID)
				continue
			}
			products = append(products, p)
		}

		req = nil
		if next := fc.nextLink(); next != "" {
			if req, err = c.newRequest(ctx, http.MethodGet, next, nil); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Info("catalog search complete",
		"products", len(products),
		"start", window.Start.Format(time.DateOnly),
		"end", window.End.Format(time.DateOnly),
	)
	return products, nil
}

// Download fetches the archive of p into dir and returns its path and size.
// The file appears under its final name only once fully written.
func (c *Client) Download(ctx context.Context, p domain.Product, dir string) (string, int64, error) {
	if p.DownloadURL == "" {
		return "", 0, fmt.Errorf("product %s has no download URL", p.ID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create archive dir: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodGet, p.DownloadURL, nil)
	if err != nil {
		return "", 0, err
	}
	// Downloads outlive the search timeout.
	client := &http.Client{Transport: c.httpClient.Transport}
	resp, err := client.Do(req)
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		return "", 0, fmt.Errorf("download %s: %w", p.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", 0, fmt.Errorf("download %s: status %d: %s", p.ID, resp.StatusCode, msg)
	}

	dst := filepath.Join(dir, archiveName(p))
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		return "", 0, fmt.Errorf("download %s: %w", p.ID, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", 0, fmt.Errorf("store %s: %w", p.ID, err)
	}
	c.metrics.CatalogRequests.WithLabelValues("success").Inc()
	c.logger.Info("archive downloaded", "product", p.ID, "path", dst, "bytes", n)
	return dst, n, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("decode response: %w", err)
	}
	c.metrics.CatalogRequests.WithLabelValues("success").Inc()
	return nil
}

// archiveName is the local file name of a product archive.
func archiveName(p domain.Product) string {
	name := p.Title
	if name == "" {
		name = p.ID
	}
	name = strings.TrimSuffix(filepath.Base(name), ".SAFE")
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		name += ".zip"
	}
	return name
}

func formatInterval(w domain.DateRange) string {
	start := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 23, 59, 59, 0, time.UTC)
	return start.Format(time.RFC3339) + "/" + end.Format(time.RFC3339)
}

// STAC API request and response types.

type searchRequest struct {
	Collections []string                      `json:"collections"`
	BBox        []float64                     `json:"bbox"`
	Datetime    string                        `json:"datetime"`
	Limit       int                           `json:"limit"`
	Query       map[string]map[string]float64 `json:"query,omitempty"`
}

type featureCollection struct {
	Features []item `json:"features"`
	Links    []link `json:"links"`
}

type link struct {
	Rel    string `json:"rel"`
	Href   string `json:"href"`
	Method string `json:"method,omitempty"`
}

type item struct {
	ID         string           `json:"id"`
	Properties itemProperties   `json:"properties"`
	Assets     map[string]asset `json:"assets"`
}

type itemProperties struct {
	Datetime   time.Time `json:"datetime"`
	CloudCover float64   `json:"eo:cloud_cover"`
	Title      string    `json:"title"`
}

type asset struct {
	Href string `json:"href"`
	Type string `json:"type"`
}

// productAssetKeys are tried in order to find the full product archive.
var productAssetKeys = []string{"PRODUCT", "Product", "product"}

func (it item) product() (domain.Product, bool) {
	href := ""
	for _, key := range productAssetKeys {
		if a, ok := it.Assets[key]; ok && a.Href != "" {
			href = a.Href
			break
		}
	}
	if href == "" {
		return domain.Product{}, false
	}
	title := it.Properties.Title
	if title == "" {
		title = it.ID
	}
	return domain.Product{
		ID:          it.ID,
		Title:       title,
		SensedAt:    it.Properties.Datetime,
		CloudCover:  it.Properties.CloudCover,
		DownloadURL: href,
	}, true
}

// nextLink returns the href of a GET "next" link, if any.
func (fc featureCollection) nextLink() string {
	for _, l := range fc.Links {
		if l.Rel == "next" && (l.Method == "" || strings.EqualFold(l.Method, http.MethodGet)) {
			return l.Href
		}
	}
	return ""
}

package stac

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var (
	testBBox   = domain.BoundingBox{MinLon: -8.7, MinLat: 37.2, MaxLon: -8.4, MaxLat: 37.4}
	testWindow = domain.SearchWindow(time.Date(2020, 8, 15, 0, 0, 0, 0, time.UTC))
)

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testItem(id string, sensed time.Time, cloud float64, href string) item {
	return item{
		ID:         id,
		Properties: itemProperties{Datetime: sensed, CloudCover: cloud},
		Assets:     map[string]asset{"PRODUCT": {Href: href, Type: "application/zip"}},
	}
}

func TestClient_Search_Success(t *testing.T) {
	sensed := time.Date(2020, 8, 10, 11, 21, 21, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{Collection}, req.Collections)
		assert.Equal(t, []float64{-8.7, 37.2, -8.4, 37.4}, req.BBox)
		assert.Equal(t, "2020-06-16T00:00:00Z/2020-10-14T23:59:59Z", req.Datetime)
		assert.Equal(t, 20.0, req.Query["eo:cloud_cover"]["lte"])

		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(featureCollection{Features: []item{
			testItem("S2A_MSIL2A_20200810T112121_N0214_R037_T29SNB_20200810T131012.SAFE", sensed, 3.5, "https://dl/1"),
			{ID: "no-asset", Assets: map[string]asset{"thumbnail": {Href: "https://dl/t.jpg"}}},
		}}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	products, err := c.Search(context.Background(), testBBox, testWindow, 20)
	require.NoError(t, err)

	require.Len(t, products, 1)
	assert.Equal(t, "S2A_MSIL2A_20200810T112121_N0214_R037_T29SNB_20200810T131012.SAFE", products[0].Title)
	assert.True(t, sensed.Equal(products[0].SensedAt))
	assert.Equal(t, 3.5, products[0].CloudCover)
	assert.Equal(t, "https://dl/1", products[0].DownloadURL)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.CatalogRequests.WithLabelValues("success")))
}

func TestClient_Search_FollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		if r.Method == http.MethodPost {
			require.NoError(t, json.NewEncoder(w).Encode(featureCollection{
				Features: []item{testItem("a", time.Now(), 1, "https://dl/a")},
				Links:    []link{{Rel: "next", Href: srv.URL + "/search?token=2"}},
			}))
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("token"))
		require.NoError(t, json.NewEncoder(w).Encode(featureCollection{
			Features: []item{testItem("b", time.Now(), 1, "https://dl/b")},
		}))
	}))
	defer srv.Close()

	products, err := testClient(srv.URL).Search(context.Background(), testBBox, testWindow, 20)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "a", products[0].ID)
	assert.Equal(t, "b", products[1].ID)
}

func TestClient_Search_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Search(context.Background(), testBBox, testWindow, 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.CatalogRequests.WithLabelValues("error")))
}

func TestClient_Search_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.Search(context.Background(), testBBox, testWindow, 20)
	require.Error(t, err)
}

func TestClient_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("PK-archive-bytes"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "images")
	p := domain.Product{
		ID:          "id-1",
		Title:       "S2A_MSIL2A_20200810T112121_N0214_R037_T29SNB_20200810T131012.SAFE",
		DownloadURL: srv.URL + "/download/id-1",
	}

	path, size, err := testClient(srv.URL).Download(context.Background(), p, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "S2A_MSIL2A_20200810T112121_N0214_R037_T29SNB_20200810T131012.zip"), path)
	assert.Equal(t, int64(16), size)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PK-archive-bytes", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file left behind")
}

func TestClient_Download_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, _, err := testClient(srv.URL).Download(context.Background(),
		domain.Product{ID: "x", DownloadURL: srv.URL}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, _, err = testClient(srv.URL).Download(context.Background(), domain.Product{ID: "y"}, dir)
	assert.Error(t, err)
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "S2B_X.zip", archiveName(domain.Product{ID: "id", Title: "S2B_X.SAFE"}))
	assert.Equal(t, "S2B_Y.zip", archiveName(domain.Product{ID: "id", Title: "S2B_Y.zip"}))
	assert.Equal(t, "id.zip", archiveName(domain.Product{ID: "id"}))
}

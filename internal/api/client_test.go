package api

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"go-photos-archiver/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(srv *httptest.Server) *Client {
	return NewClient(Options{
		BaseURL:     srv.URL,
		AccessToken: "tok",
		HTTPClient:  srv.Client(),
		PageSize:    2,
		RetryDelay:  time.Millisecond,
	})
}

func collect[T any](t *testing.T, seq iter.Seq2[T, error]) ([]T, error) {
	t.Helper()
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func TestMediaItemsFollowsPageTokens(t *testing.T) {
	pages := map[string]models.MediaItemsResponse{
		"":   {MediaItems: []models.MediaItem{{ID: "1"}, {ID: "2"}}, NextPageToken: "p2"},
		"p2": {MediaItems: []models.MediaItem{{ID: "3"}}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mediaItems", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("pageSize"))
		_ = json.NewEncoder(w).Encode(pages[r.URL.Query().Get("pageToken")])
	}))
	defer srv.Close()

	items, err := collect(t, testClient(srv).MediaItems(context.Background()))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "3", items[2].ID)
}

func TestSearchMediaItemsSendsDateFilter(t *testing.T) {
	var got models.SearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mediaItems:search", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(models.MediaItemsResponse{MediaItems: []models.MediaItem{{ID: "a"}}})
	}))
	defer srv.Close()

	filter, err := models.NewDateFilter([]models.Date{{Year: 2021, Month: 1}}, nil)
	require.NoError(t, err)

	items, err := collect(t, testClient(srv).SearchMediaItems(context.Background(), filter))
	require.NoError(t, err)
	assert.Len(t, items, 1)
	require.NotNil(t, got.Filters)
	require.NotNil(t, got.Filters.DateFilter)
	assert.Equal(t, []models.Date{{Year: 2021, Month: 1}}, got.Filters.DateFilter.Dates)
	assert.Equal(t, 2, got.PageSize)
}

func TestAlbumMediaItemsSendsAlbumID(t *testing.T) {
	var got models.SearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(models.MediaItemsResponse{})
	}))
	defer srv.Close()

	items, err := collect(t, testClient(srv).AlbumMediaItems(context.Background(), "album-1"))
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, "album-1", got.AlbumID)
	assert.Nil(t, got.Filters)
}

func TestAlbums(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/albums", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.AlbumsResponse{Albums: []models.Album{{ID: "a1", Title: "Trip"}, {ID: "a2"}}})
	}))
	defer srv.Close()

	albums, err := collect(t, testClient(srv).Albums(context.Background()))
	require.NoError(t, err)
	require.Len(t, albums, 2)
	assert.Equal(t, "Album ID: a2", albums[1].DisplayTitle())
}

func TestRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_ = json.NewEncoder(w).Encode(models.MediaItemsResponse{MediaItems: []models.MediaItem{{ID: "x"}}})
		}
	}))
	defer srv.Close()

	items, err := collect(t, testClient(srv).MediaItems(context.Background()))
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		wantCalls int32
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized, 1},
		{"forbidden", http.StatusForbidden, ErrUnauthorized, 1},
		{"not found", http.StatusNotFound, ErrNotFound, 1},
		{"rate limited throughout", http.StatusTooManyRequests, ErrRateLimited, maxAttempts},
		{"server error throughout", http.StatusInternalServerError, ErrServerError, maxAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := collect(t, testClient(srv).MediaItems(context.Background()))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTransportErrorRetries(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int32
	}{
		{"connection reset", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, maxAttempts},
		{"certificate rejected", x509.UnknownAuthorityError{}, 1},
		{"unsupported request", errors.New("unsupported protocol scheme"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := NewClient(Options{
				BaseURL:    "http://photos.test",
				RetryDelay: time.Millisecond,
				HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
					calls.Add(1)
					return nil, tt.err
				})},
			})

			_, err := collect(t, client.MediaItems(context.Background()))
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestPaginationStopsWhenConsumerStops(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		_ = json.NewEncoder(w).Encode(models.MediaItemsResponse{
			MediaItems:    []models.MediaItem{{ID: fmt.Sprintf("%d-a", n)}, {ID: fmt.Sprintf("%d-b", n)}},
			NextPageToken: "more",
		})
	}))
	defer srv.Close()

	seen := 0
	for _, err := range testClient(srv).MediaItems(context.Background()) {
		require.NoError(t, err)
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoggingTransportRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.MediaItemsResponse{MediaItems: []models.MediaItem{{ID: "logged-id"}}})
	}))
	defer srv.Close()

	logPath := filepath.Join(t.TempDir(), DefaultLogFile)
	transport, err := NewLoggingTransport(srv.Client().Transport, logPath)
	require.NoError(t, err)

	client := NewClient(Options{BaseURL: srv.URL, AccessToken: "secret-token", HTTPClient: &http.Client{Transport: transport}})
	items, err := collect(t, client.SearchMediaItems(context.Background(), &models.DateFilter{Dates: []models.Date{{Year: 2020}}}))
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, transport.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "secret-token")
	assert.Contains(t, string(content), "[REDACTED]")
	assert.Contains(t, string(content), "logged-id")
	assert.Contains(t, string(content), "dateFilter")
}

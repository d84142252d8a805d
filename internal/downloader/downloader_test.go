package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSuccessSendsToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), "tok", nil)
	data, err := d.Fetch(context.Background(), srv.URL+"/abc=d")
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestFetchStatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
		wantIs        error
	}{
		{"server error", http.StatusInternalServerError, true, ErrHttpStatus},
		{"bad gateway", http.StatusBadGateway, true, ErrHttpStatus},
		{"rate limited", http.StatusTooManyRequests, true, ErrHttpStatus},
		{"unauthorized", http.StatusUnauthorized, false, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, false, ErrUnauthorized},
		{"not found", http.StatusNotFound, false, ErrNotFound},
		{"bad request", http.StatusBadRequest, false, ErrHttpStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewDownloader(srv.Client(), "", nil).Fetch(context.Background(), srv.URL)
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, IsTransient(err))
			assert.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestFetchConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewDownloader(nil, "", nil).Fetch(context.Background(), url)
	require.Error(t, err)
	assert.True(t, IsTransient(err), "connection refused should be retryable: %v", err)
}

func TestFetchTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := srv.Client()
	client.Timeout = 50 * time.Millisecond
	_, err := NewDownloader(client, "", nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestFetchTruncatedBodyIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	_, err := NewDownloader(srv.Client(), "", nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestFetchCancelledContextIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDownloader(srv.Client(), "", nil).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetchInvalidURL(t *testing.T) {
	_, err := NewDownloader(nil, "", nil).Fetch(context.Background(), "://bad")
	assert.ErrorIs(t, err, ErrHttpRequest)
	assert.False(t, IsTransient(err))
}

func TestFetchTransportErrorClassification(t *testing.T) {
	tlsSrv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer tlsSrv.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name          string
		url           string
		wantTransient bool
	}{
		{"unsupported scheme", "ftp://example.invalid/x", false},
		{"missing host", "http:///x", false},
		{"untrusted certificate", tlsSrv.URL, false},
		{"connection refused", closedURL, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDownloader(nil, "", nil).Fetch(context.Background(), tt.url)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrHttpRequest)
			assert.Equal(t, tt.wantTransient, IsTransient(err), "%v", err)
		})
	}
}

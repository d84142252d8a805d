package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-photos-archiver/internal/helpers"
	"go-photos-archiver/internal/models"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrRateLimited  = errors.New("API rate limit exceeded")
	ErrUnauthorized = errors.New("API request unauthorized (check access token)")
	ErrNotFound     = errors.New("API resource not found")
	ErrServerError  = errors.New("API server error")
)

const (
	PhotosApiBaseUrl = "https://photoslibrary.googleapis.com/v1"

	maxMediaItemsPageSize = 100
	maxAlbumsPageSize     = 50
	maxAttempts           = 3
)

type Options struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
	// PageSize is capped at the API maximum for each endpoint.
	PageSize int
	// PageDelay is slept between page requests.
	PageDelay time.Duration
	// RetryDelay is the initial backoff for 429 and 5xx responses.
	RetryDelay time.Duration
	Logger     log.FieldLogger
}

// Client talks to the Photos Library REST API with a pre-issued bearer token.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	pageSize    int
	pageDelay   time.Duration
	retryDelay  time.Duration
	logger      log.FieldLogger
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = PhotosApiBaseUrl
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.PageSize <= 0 || opts.PageSize > maxMediaItemsPageSize {
		opts.PageSize = maxMediaItemsPageSize
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		accessToken: opts.AccessToken,
		httpClient:  opts.HTTPClient,
		pageSize:    opts.PageSize,
		pageDelay:   opts.PageDelay,
		retryDelay:  opts.RetryDelay,
		logger:      opts.Logger,
	}
}

// MediaItems lists the whole library.
func (c *Client) MediaItems(ctx context.Context) iter.Seq2[models.MediaItem, error] {
	return paginate(ctx, c, func(token string) ([]models.MediaItem, string, error) {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(c.pageSize))
		if token != "" {
			q.Set("pageToken", token)
		}
		var resp models.MediaItemsResponse
		err := c.do(ctx, http.MethodGet, "/mediaItems", q, nil, &resp)
		return resp.MediaItems, resp.NextPageToken, err
	})
}

// SearchMediaItems lists items matching filter. A nil filter lists everything.
func (c *Client) SearchMediaItems(ctx context.Context, filter *models.DateFilter) iter.Seq2[models.MediaItem, error] {
	if filter == nil {
		return c.MediaItems(ctx)
	}
	return c.search(ctx, models.SearchRequest{Filters: &models.Filters{DateFilter: filter}})
}

// AlbumMediaItems lists the contents of one album.
func (c *Client) AlbumMediaItems(ctx context.Context, albumID string) iter.Seq2[models.MediaItem, error] {
	return c.search(ctx, models.SearchRequest{AlbumID: albumID})
}

func (c *Client) search(ctx context.Context, req models.SearchRequest) iter.Seq2[models.MediaItem, error] {
	return paginate(ctx, c, func(token string) ([]models.MediaItem, string, error) {
		body := req
		body.PageSize = c.pageSize
		body.PageToken = token
		var resp models.MediaItemsResponse
		err := c.do(ctx, http.MethodPost, "/mediaItems:search", nil, body, &resp)
		return resp.MediaItems, resp.NextPageToken, err
	})
}

// Albums lists every album in the library.
func (c *Client) Albums(ctx context.Context) iter.Seq2[models.Album, error] {
	size := min(c.pageSize, maxAlbumsPageSize)
	return paginate(ctx, c, func(token string) ([]models.Album, string, error) {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(size))
		if token != "" {
			q.Set("pageToken", token)
		}
		var resp models.AlbumsResponse
		err := c.do(ctx, http.MethodGet, "/albums", q, nil, &resp)
		return resp.Albums, resp.NextPageToken, err
	})
}

// paginate follows nextPageToken until it is empty. A page error is yielded
// once and ends the sequence.
func paginate[T any](ctx context.Context, c *Client, page func(token string) ([]T, string, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		token := ""
		for pageNum := 1; ; pageNum++ {
			items, next, err := page(token)
			if err != nil {
				var zero T
				yield(zero, fmt.Errorf("page %d: %w", pageNum, err))
				return
			}
			c.logger.WithFields(log.Fields{"page": pageNum, "items": len(items)}).Debug("Fetched page")
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if next == "" {
				return
			}
			token = next

			if c.pageDelay > 0 {
				select {
				case <-time.After(c.pageDelay):
				case <-ctx.Done():
					var zero T
					yield(zero, ctx.Err())
					return
				}
			}
		}
	}
}

// do sends one API call, retrying rate limits, server errors and network
// failures up to maxAttempts times, and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("error encoding request body: %w", err)
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("error creating request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if c.accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.accessToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !helpers.IsNetworkFailure(err) {
				return backoff.Permanent(fmt.Errorf("http request failed: %w", err))
			}
			return fmt.Errorf("http request failed (attempt %d/%d): %w", attempt, maxAttempts, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimited
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(ErrUnauthorized)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, path))
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w (status code %d)", ErrServerError, resp.StatusCode)
		default:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("error unmarshalling response JSON: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx)
	return backoff.RetryNotify(operation, policy, func(err error, next time.Duration) {
		c.logger.WithError(err).Warnf("Retrying %s %s (%d/%d) after %s...", method, path, attempt, maxAttempts, next.Round(time.Millisecond))
	})
}

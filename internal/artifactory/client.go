// Package artifactory is the HTTP client for the remote artifact store's
// REST API: metadata queries under api/storage, ranged content downloads,
// and the system ping used to verify credentials.
package artifactory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sztomi/rtfs/internal/metrics"
)

// Config holds client configuration.
type Config struct {
	Host    string // base URL, e.g. https://example.jfrog.io/artifactory
	User    string
	Token   string
	Timeout time.Duration // overall per-request timeout, zero means none
}

// ErrDecode marks a response body that could not be decoded as a listing.
var ErrDecode = errors.New("undecodable listing payload")

// Client talks to one artifact store with a fixed user/token pair. Requests
// authenticate with HTTP Basic; the store treats the token as a password.
type Client struct {
	host       string
	user       string
	token      string
	httpClient *http.Client
}

// New creates a new client.
func New(cfg Config) *Client {
	return &Client{
		host:  strings.TrimSuffix(cfg.Host, "/"),
		user:  cfg.User,
		token: cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Host returns the configured base URL.
func (c *Client) Host() string {
	return c.host
}

// Storage queries the metadata endpoint for a store-relative path and
// decodes the listing union. The store answers error payloads with the
// matching HTTP status, so the body is decoded regardless of status and
// in-band errors come back inside the Listing, not as a Go error.
func (c *Client) Storage(ctx context.Context, path string) (*Listing, error) {
	start := time.Now()
	url := fmt.Sprintf("%s/api/storage/%s", c.host, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage request: %w", err)
	}
	req.SetBasicAuth(c.user, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest("storage", "error", time.Since(start))
		return nil, fmt.Errorf("storage %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordRemoteRequest("storage", "error", time.Since(start))
		return nil, fmt.Errorf("storage %s: read body: %w", path, err)
	}

	var listing Listing
	if err := json.Unmarshal(body, &listing); err != nil {
		metrics.RecordRemoteRequest("storage", "error", time.Since(start))
		return nil, fmt.Errorf("storage %s: %w: %v", path, ErrDecode, err)
	}

	status := "ok"
	if listing.Err != nil {
		status = "remote_error"
	}
	metrics.RecordRemoteRequest("storage", status, time.Since(start))
	return &listing, nil
}

// ReadRange fetches length bytes of content starting at offset from the
// given download locator. The result may be shorter than requested when the
// range extends past the end of the content; reading at or past the end
// returns no bytes and no error.
func (c *Client) ReadRange(ctx context.Context, locator string, offset uint64, length uint32) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("create content request: %w", err)
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+uint64(length)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest("read_range", "error", time.Since(start))
		return nil, fmt.Errorf("content %s: %w", locator, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusRequestedRangeNotSatisfiable:
		metrics.RecordRemoteRequest("read_range", "ok", time.Since(start))
		return nil, nil
	default:
		metrics.RecordRemoteRequest("read_range", "remote_error", time.Since(start))
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordRemoteRequest("read_range", "error", time.Since(start))
		return nil, fmt.Errorf("content %s: read body: %w", locator, err)
	}
	// The range header's end is inclusive, so a full response carries one
	// byte more than asked for.
	if uint64(len(data)) > uint64(length) {
		data = data[:length]
	}

	metrics.RecordRemoteRequest("read_range", "ok", time.Since(start))
	metrics.RecordContentRead(len(data))
	return data, nil
}

// Ping checks connectivity and credentials against the system ping
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/system/ping", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	req.SetBasicAuth(c.user, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest("ping", "error", time.Since(start))
		return fmt.Errorf("ping %s: %w", c.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordRemoteRequest("ping", "remote_error", time.Since(start))
		return statusError(resp)
	}
	metrics.RecordRemoteRequest("ping", "ok", time.Since(start))
	return nil
}

// statusError turns a non-success response into a *RemoteError, preferring
// the store's structured error payload when the body carries one.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Errors []RemoteError `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		return &payload.Errors[0]
	}
	return &RemoteError{Message: http.StatusText(resp.StatusCode), Status: resp.StatusCode}
}

// Package backend fetches collections, layer features and legends from the
// layer collection backend.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-map/internal/service"
)

// maxBodySize caps response bodies read from the backend.
const maxBodySize = 64 << 20

// Config holds the backend client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. "http://10.0.0.5:8000".
	BaseURL string

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after a transient failure of a
	// collection or feature fetch. Legend fetches are never retried.
	MaxRetries uint64

	// InitialInterval and MaxInterval shape the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Client talks to the collection backend.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a backend client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// CollectionURL returns the endpoint of one collection.
func (c *Client) CollectionURL(id string) string {
	return fmt.Sprintf("%s/collections/collection/%s/", c.cfg.BaseURL, url.PathEscape(id))
}

// CollectionsURL returns the endpoint listing all collections.
func (c *Client) CollectionsURL() string {
	return c.cfg.BaseURL + "/collections/"
}

// Collection fetches and decodes one collection.
func (c *Client) Collection(ctx context.Context, id string) (*service.Collection, error) {
	body, err := c.getWithRetry(ctx, c.CollectionURL(id))
	if err != nil {
		return nil, err
	}
	var coll service.Collection
	if err := json.Unmarshal(body, &coll); err != nil {
		return nil, fmt.Errorf("collection %s: %w: %v", id, ErrMalformed, err)
	}
	return &coll, nil
}

// Collections fetches the list of available collections.
func (c *Client) Collections(ctx context.Context) ([]service.Collection, error) {
	body, err := c.getWithRetry(ctx, c.CollectionsURL())
	if err != nil {
		return nil, err
	}
	var colls []service.Collection
	if err := json.Unmarshal(body, &colls); err != nil {
		return nil, fmt.Errorf("collections: %w: %v", ErrMalformed, err)
	}
	return colls, nil
}

// FeaturesURL returns layerURL with the bbox query parameter set.
func FeaturesURL(layerURL string, bounds orb.Bound) (string, error) {
	u, err := url.Parse(layerURL)
	if err != nil {
		return "", fmt.Errorf("layer url %q: %w", layerURL, err)
	}
	q := u.Query()
	q.Set("bbox", service.FormatBBox(bounds))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Features fetches the features of a vector layer inside bounds.
func (c *Client) Features(ctx context.Context, layerURL string, bounds orb.Bound) ([]*geojson.Feature, error) {
	u, err := FeaturesURL(layerURL, bounds)
	if err != nil {
		return nil, err
	}
	body, err := c.getWithRetry(ctx, u)
	if err != nil {
		return nil, err
	}
	p, err := DecodePayload(body)
	if err != nil {
		return nil, err
	}
	return p.Normalize(), nil
}

// Legend fetches legend markup. It makes a single attempt.
func (c *Client) Legend(ctx context.Context, legendURL string) (string, error) {
	body, err := c.get(ctx, legendURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) getWithRetry(ctx context.Context, u string) ([]byte, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.cfg.InitialInterval
	expo.MaxInterval = c.cfg.MaxInterval
	expo.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(expo, c.cfg.MaxRetries), ctx)

	var body []byte
	op := func() error {
		var err error
		body, err = c.get(ctx, u)
		if err != nil && (ctx.Err() != nil || !retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Printf("backend: %v (retrying in %s)", err, wait.Round(time.Millisecond))
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("GET %s: reading body: %w", u, err)
	}
	return body, nil
}

// retryable classifies errors from get: transport failures and
// temporary statuses are retried, other statuses are not.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}

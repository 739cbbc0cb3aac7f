// Package spotify uses Spotify's Artist API as an external neighbor source:
// artists are nodes and the related-artists relation provides the edges.
//
// Authentication follows the Client Credentials Flow; tokens are refreshed
// automatically shortly before they expire.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultAPIURL   = "https://api.spotify.com/v1"

	// tokenRefreshThreshold is the minimum remaining validity of the access
	// token; a token closer to expiry than this is refreshed before use.
	tokenRefreshThreshold = 60 * time.Second

	// defaultSearchLimit caps how many hits an artist search requests.
	defaultSearchLimit = 5

	// maxRateLimitRetries bounds how many HTTP 429 responses a single call
	// will wait out before giving up.
	maxRateLimitRetries = 3
)

// ErrMissingCredentials indicates the client was constructed without a client
// ID and secret pair.
var ErrMissingCredentials = errors.New("spotify: client ID and secret are required")

// ArtistRef is an artist as reported by the API: display name plus Spotify
// ID.
type ArtistRef struct {
	Name string
	ID   string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURLs overrides the token and API endpoints, for testing against a
// local server.
func WithBaseURLs(tokenURL, apiURL string) ClientOption {
	return func(c *Client) {
		c.tokenURL = tokenURL
		c.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// WithRateLimit caps outgoing API requests. The default allows 10 requests
// per second.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// Client is a minimal Spotify web API client covering artist search and the
// related-artists endpoint. It is safe for concurrent use.
type Client struct {
	clientID     string
	clientSecret string

	httpClient *http.Client
	tokenURL   string
	apiURL     string
	limiter    *rate.Limiter
	tracer     trace.Tracer

	tokenMu     chan struct{}
	accessToken string
	expiresAt   time.Time
}

// NewClient creates a client for the given Client Credentials Flow pair.
func NewClient(clientID, clientSecret string, opts ...ClientOption) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}

	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		tokenURL:     defaultTokenURL,
		apiURL:       defaultAPIURL,
		limiter:      rate.NewLimiter(10, 10),
		tracer:       otel.Tracer("graphscraper/spotify"),
		tokenMu:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SearchArtists returns up to limit artists matching the given name, best
// match first. A non-positive limit uses the default.
func (c *Client) SearchArtists(ctx context.Context, name string, limit int) ([]ArtistRef, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	ctx, span := c.tracer.Start(ctx, "spotify.search_artists",
		trace.WithAttributes(attribute.String("artist.name", name)))
	defer span.End()

	q := url.Values{}
	q.Set("q", name)
	q.Set("type", "artist")
	q.Set("limit", strconv.Itoa(limit))

	var payload struct {
		Artists struct {
			Items []struct {
				Name string `json:"name"`
				ID   string `json:"id"`
			} `json:"items"`
		} `json:"artists"`
	}
	if err := c.getJSON(ctx, "/search?"+q.Encode(), &payload); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("search artists %q: %w", name, err)
	}

	refs := make([]ArtistRef, 0, len(payload.Artists.Items))
	for _, item := range payload.Artists.Items {
		if item.Name == "" || item.ID == "" {
			err := fmt.Errorf("search artists %q: item with missing name or ID", name)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		refs = append(refs, ArtistRef{Name: item.Name, ID: item.ID})
	}
	span.SetAttributes(attribute.Int("artist.hits", len(refs)))
	return refs, nil
}

// RelatedArtists returns the artists Spotify considers similar to the one
// with the given ID.
func (c *Client) RelatedArtists(ctx context.Context, artistID string) ([]ArtistRef, error) {
	ctx, span := c.tracer.Start(ctx, "spotify.related_artists",
		trace.WithAttributes(attribute.String("artist.id", artistID)))
	defer span.End()

	var payload struct {
		Artists []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"artists"`
	}
	path := "/artists/" + url.PathEscape(artistID) + "/related-artists"
	if err := c.getJSON(ctx, path, &payload); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("related artists of %q: %w", artistID, err)
	}

	refs := make([]ArtistRef, 0, len(payload.Artists))
	for _, item := range payload.Artists {
		if item.Name == "" || item.ID == "" {
			err := fmt.Errorf("related artists of %q: item with missing name or ID", artistID)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		refs = append(refs, ArtistRef{Name: item.Name, ID: item.ID})
	}
	span.SetAttributes(attribute.Int("artist.hits", len(refs)))
	return refs, nil
}

// getJSON performs an authenticated GET against the API, waiting out rate
// limit responses up to maxRateLimitRetries times.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		token, err := c.token(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt >= maxRateLimitRetries {
				return fmt.Errorf("rate limited after %d retries", attempt)
			}
			if err := sleepRetryAfter(ctx, resp.Header.Get("Retry-After")); err != nil {
				return err
			}
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
		}

		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
		return nil
	}
}

// sleepRetryAfter blocks for the duration the server requested, defaulting to
// one second when the header is absent or malformed.
func sleepRetryAfter(ctx context.Context, header string) error {
	delay := time.Second
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		delay = time.Duration(secs) * time.Second
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// token returns a valid access token, requesting a fresh one when the cached
// token is within the refresh threshold of expiry. The channel acts as a
// context-aware mutex so callers can bail out while another goroutine holds
// a slow token request.
func (c *Client) token(ctx context.Context) (string, error) {
	select {
	case c.tokenMu <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-c.tokenMu }()

	if time.Until(c.expiresAt) > tokenRefreshThreshold {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("token endpoint returned an empty access token")
	}

	c.accessToken = payload.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volfpeter/graphscraper/pkg/cache/badgerstore"
)

type fakeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// fakeSpotify is a local stand-in for the token and artist endpoints.
type fakeSpotify struct {
	tokenRequests  atomic.Int64
	searchRequests atomic.Int64
	tokenTTL       int
	rateLimitOnce  atomic.Bool

	// search results keyed by lowercased query; related keyed by artist ID.
	search  map[string][]fakeArtist
	related map[string][]fakeArtist
}

func (f *fakeSpotify) tokenHandler(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != "test-id" || pass != "test-secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	n := f.tokenRequests.Add(1)
	ttl := f.tokenTTL
	if ttl == 0 {
		ttl = 3600
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": fmt.Sprintf("token-%d", n),
		"expires_in":   ttl,
	})
}

func (f *fakeSpotify) apiHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer token-") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.rateLimitOnce.CompareAndSwap(true, false) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	switch {
	case r.URL.Path == "/search":
		f.searchRequests.Add(1)
		q := strings.ToLower(r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"artists": map[string]interface{}{"items": f.search[q]},
		})
	case strings.HasSuffix(r.URL.Path, "/related-artists"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/artists/"), "/related-artists")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"artists": f.related[id],
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFakeSpotify(t *testing.T, f *fakeSpotify) (*Client, *fakeSpotify) {
	t.Helper()
	if f == nil {
		f = &fakeSpotify{}
	}

	tokenSrv := httptest.NewServer(http.HandlerFunc(f.tokenHandler))
	apiSrv := httptest.NewServer(http.HandlerFunc(f.apiHandler))
	t.Cleanup(tokenSrv.Close)
	t.Cleanup(apiSrv.Close)

	c, err := NewClient("test-id", "test-secret",
		WithBaseURLs(tokenSrv.URL, apiSrv.URL),
		WithHTTPClient(tokenSrv.Client()),
	)
	require.NoError(t, err)
	return c, f
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient("", "secret")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	_, err = NewClient("id", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestSearchArtists(t *testing.T) {
	ctx := context.Background()
	c, _ := newFakeSpotify(t, &fakeSpotify{
		search: map[string][]fakeArtist{
			"queen": {{Name: "Queen", ID: "q1"}, {Name: "Queens of the Stone Age", ID: "q2"}},
		},
	})

	artists, err := c.SearchArtists(ctx, "queen", 5)
	require.NoError(t, err)
	require.Len(t, artists, 2)
	assert.Equal(t, ArtistRef{Name: "Queen", ID: "q1"}, artists[0])

	artists, err = c.SearchArtists(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, artists)
}

func TestSearchArtistsRejectsMalformedItems(t *testing.T) {
	ctx := context.Background()
	c, _ := newFakeSpotify(t, &fakeSpotify{
		search: map[string][]fakeArtist{
			"broken": {{Name: "No ID Artist"}},
		},
	})

	_, err := c.SearchArtists(ctx, "broken", 5)
	require.Error(t, err)
}

func TestRelatedArtists(t *testing.T) {
	ctx := context.Background()
	c, _ := newFakeSpotify(t, &fakeSpotify{
		related: map[string][]fakeArtist{
			"q1": {{Name: "David Bowie", ID: "d1"}},
		},
	})

	artists, err := c.RelatedArtists(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Equal(t, "David Bowie", artists[0].Name)
}

func TestTokenIsReusedUntilNearExpiry(t *testing.T) {
	ctx := context.Background()
	c, f := newFakeSpotify(t, &fakeSpotify{tokenTTL: 3600})

	_, err := c.SearchArtists(ctx, "a", 1)
	require.NoError(t, err)
	_, err = c.SearchArtists(ctx, "b", 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.tokenRequests.Load(), "a long-lived token must be reused")
}

func TestTokenRefreshesWithinThreshold(t *testing.T) {
	ctx := context.Background()
	// 30s is below the 60s refresh threshold, so every call refreshes.
	c, f := newFakeSpotify(t, &fakeSpotify{tokenTTL: 30})

	_, err := c.SearchArtists(ctx, "a", 1)
	require.NoError(t, err)
	_, err = c.SearchArtists(ctx, "b", 1)
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.tokenRequests.Load())
}

func TestRateLimitedRequestIsRetried(t *testing.T) {
	ctx := context.Background()
	c, f := newFakeSpotify(t, &fakeSpotify{
		search: map[string][]fakeArtist{
			"queen": {{Name: "Queen", ID: "q1"}},
		},
	})
	f.rateLimitOnce.Store(true)

	artists, err := c.SearchArtists(ctx, "queen", 5)
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Equal(t, int64(1), f.searchRequests.Load())
}

func TestArtistGraphEndToEnd(t *testing.T) {
	ctx := context.Background()

	f := &fakeSpotify{
		search: map[string][]fakeArtist{
			"queeen":                   {{Name: "Queen", ID: "q1"}},
			"queen":                    {{Name: "Queen", ID: "q1"}},
			"david bowie":              {{Name: "David Bowie", ID: "d1"}},
			"electric light orchestra": {{Name: "Electric Light Orchestra", ID: "e1"}},
			"the rolling stones":       {{Name: "The Rolling Stones", ID: "r1"}},
			"elton john":               {{Name: "Elton John", ID: "e2"}},
			"led zeppelin":             {{Name: "Led Zeppelin", ID: "l1"}},
			"pink floyd":               {{Name: "Pink Floyd", ID: "p1"}},
			"the beatles":              {{Name: "The Beatles", ID: "b1"}},
		},
		related: map[string][]fakeArtist{
			"q1": {
				{Name: "David Bowie", ID: "d1"},
				{Name: "Electric Light Orchestra", ID: "e1"},
				{Name: "The Rolling Stones", ID: "r1"},
				{Name: "Elton John", ID: "e2"},
				{Name: "Led Zeppelin", ID: "l1"},
				{Name: "Pink Floyd", ID: "p1"},
				{Name: "The Beatles", ID: "b1"},
			},
		},
	}
	tokenSrv := httptest.NewServer(http.HandlerFunc(f.tokenHandler))
	apiSrv := httptest.NewServer(http.HandlerFunc(f.apiHandler))
	defer tokenSrv.Close()
	defer apiSrv.Close()

	store, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	g, err := New(store, Config{ClientID: "test-id", ClientSecret: "test-secret"},
		WithBaseURLs(tokenSrv.URL, apiSrv.URL))
	require.NoError(t, err)

	// A misspelled query resolves to the authentic artist name.
	name, ok, err := g.AuthenticNodeName(ctx, "Queeen")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Queen", name)

	node, err := g.Nodes().Resolve(ctx, name, true, "")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "q1", node.ExternalID())

	// Seven related artists come back; the default limit keeps six.
	neighbors, err := node.Neighbors(ctx)
	require.NoError(t, err)
	assert.Len(t, neighbors, DefaultNeighborCount)
}

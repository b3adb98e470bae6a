package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "golang news 15 October 2026", req.Query)
		assert.Equal(t, 4, req.MaxResults)
		assert.Equal(t, "search-key", req.APIKey)

		_ = json.NewEncoder(w).Encode(searchResponse{Results: []SearchResult{
			{URL: "https://go.dev", Title: "Go", Content: "release"},
			{URL: "https://example.com"},
		}})
	}))
	defer server.Close()

	c := NewSearchClient(server.URL, "search-key", time.Second)
	c.now = func() time.Time { return time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC) }

	got, err := c.Search(context.Background(), "golang news", 4)
	require.NoError(t, err)
	assert.Equal(t, "Search Results:\n\n"+
		"URL: https://go.dev\nTitle: Go\nContent: release\n\n"+
		"URL: https://example.com\nTitle: N/A\nContent: N/A\n\n", got)
}

func TestSearchClient_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewSearchClient(server.URL, "", time.Second).Search(context.Background(), "q", 4)
	assert.ErrorContains(t, err, "429")
}

func TestFormatSearchResults_Empty(t *testing.T) {
	assert.Equal(t, "No search results found.", FormatSearchResults(nil))
}

func TestPageFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Doc</title><style>p{}</style></head>
			<body><h1>Hello</h1><script>var x;</script><p>  world   text </p></body></html>`))
	}))
	defer server.Close()

	got, err := NewPageFetcher(time.Second, 100).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "URL: "+server.URL+"\nTitle: Doc\nContent: Hello world text\n", got)

	capped, err := NewPageFetcher(time.Second, 5).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, capped, "Content: Hello\n")
}

func TestPageFetcher_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewPageFetcher(time.Second, 100).Fetch(context.Background(), server.URL)
	assert.ErrorContains(t, err, "404")
}

type memoryImageStore struct {
	name string
	data []byte
}

func (m *memoryImageStore) PutImage(_ context.Context, name string, data []byte, _ string) (string, error) {
	m.name, m.data = name, data
	return "https://cdn.local/" + name, nil
}

func TestImageGenerator_Generate(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1792x1024", req["size"])
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"` + encoded + `"}]}`))
	}))
	defer server.Close()

	inline := NewImageGenerator(server.URL, "", time.Second, nil)
	got, err := inline.Generate(context.Background(), "a cat", "1792x1024")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+encoded, got)

	store := &memoryImageStore{}
	offload := NewImageGenerator(server.URL, "", time.Second, store)
	got, err = offload.Generate(context.Background(), "a cat", "1792x1024")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "https://cdn.local/images/"))
	assert.Equal(t, []byte("png-bytes"), store.data)
}

func TestImageGenerator_URLResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.local/1.png"}]}`))
	}))
	defer server.Close()

	got, err := NewImageGenerator(server.URL, "", time.Second, nil).Generate(context.Background(), "p", "1024x1024")
	require.NoError(t, err)
	assert.Equal(t, "https://img.local/1.png", got)
}

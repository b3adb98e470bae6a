package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SearchResult is one hit returned by the search API
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeImages bool   `json:"include_images"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchClient queries a Tavily-style web search API
type SearchClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

func NewSearchClient(endpoint, apiKey string, timeout time.Duration) *SearchClient {
	return &SearchClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Search runs the query, biased towards today's date, and formats the hits
// as URL/Title/Content blocks for the model
func (c *SearchClient) Search(ctx context.Context, query string, maxResults int) (string, error) {
	payload, err := json.Marshal(searchRequest{
		APIKey:      c.apiKey,
		Query:       fmt.Sprintf("%s %s", query, c.now().Format("02 January 2006")),
		MaxResults:  maxResults,
		SearchDepth: "advanced",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("search failed! status: %d, response: %s", resp.StatusCode, body)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse search response: %w", err)
	}
	return FormatSearchResults(result.Results), nil
}

func FormatSearchResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No search results found."
	}

	var b strings.Builder
	b.WriteString("Search Results:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "URL: %s\nTitle: %s\nContent: %s\n\n", orNA(r.URL), orNA(r.Title), orNA(r.Content))
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

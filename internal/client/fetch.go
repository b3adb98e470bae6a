package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const maxPageBytes = 4 << 20

// PageFetcher downloads a page and reduces it to readable text
type PageFetcher struct {
	httpClient *http.Client
	maxChars   int
}

func NewPageFetcher(timeout time.Duration, maxChars int) *PageFetcher {
	return &PageFetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxChars:   maxChars,
	}
}

// Fetch returns the page formatted as URL/Title/Content, content capped at maxChars
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target := rawURL
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	var title, content string
	if strings.Contains(resp.Header.Get("Content-Type"), "html") || resp.Header.Get("Content-Type") == "" {
		title, content, err = ExtractText(body)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", target, err)
		}
	} else {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", target, err)
		}
		content = string(data)
	}

	return fmt.Sprintf("URL: %s\nTitle: %s\nContent: %s\n",
		target, orNA(title), orNA(truncateChars(content, f.maxChars))), nil
}

// ExtractText returns the document title and the visible text of an HTML page
func ExtractText(r io.Reader) (string, string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	var title string
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "svg", "head":
				if n.Data == "head" {
					title = findTitle(n)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, strings.Join(parts, " "), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func truncateChars(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

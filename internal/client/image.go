package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ImageGenerator calls an OpenAI-compatible images/generations endpoint
type ImageGenerator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	store      ImageStore
}

// NewImageGenerator creates a generator. When store is non-nil, generated
// images are uploaded and referenced by URL instead of inlined as data URIs.
func NewImageGenerator(endpoint, apiKey string, timeout time.Duration, store ImageStore) *ImageGenerator {
	return &ImageGenerator{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
	}
}

// Generate returns either a data URI or an object store URL for the image
func (g *ImageGenerator) Generate(ctx context.Context, prompt, size string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"prompt":          prompt,
		"size":            size,
		"n":               1,
		"response_format": "b64_json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image generation failed! status: %d, response: %s", resp.StatusCode, truncateForLog(string(body)))
	}

	first := gjson.GetBytes(body, "data.0")
	if url := first.Get("url").String(); url != "" {
		return url, nil
	}
	encoded := first.Get("b64_json").String()
	if encoded == "" {
		return "", fmt.Errorf("image response carries no image data")
	}
	encoded = strings.TrimPrefix(encoded, "data:image/png;base64,")

	if g.store == nil {
		return "data:image/png;base64," + encoded, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode image data: %w", err)
	}
	return g.store.PutImage(ctx, "images/"+uuid.NewString()+".png", data, "image/png")
}

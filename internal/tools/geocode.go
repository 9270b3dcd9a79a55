package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org"

// GeocodeTool resolves a free-form place name to coordinates through the
// Nominatim search API.
type GeocodeTool struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewGeocodeTool creates the geocoding tool. baseURL overrides the public
// Nominatim endpoint; pass "" for the default.
func NewGeocodeTool(baseURL string, timeout time.Duration) *GeocodeTool {
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GeocodeTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Nominatim's usage policy requires an identifying agent.
		userAgent: "chat-relay/1.0",
		client:    &http.Client{Timeout: timeout},
	}
}

func (t *GeocodeTool) Name() string { return "geocode" }

func (t *GeocodeTool) Description() string {
	return "Resolves a place name to its display name and latitude/longitude."
}

func (t *GeocodeTool) ParameterSchema() string {
	s := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Place name to resolve, e.g. a city or address.",
			},
		},
		"required": []string{"query"},
	}
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}

func (t *GeocodeTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", t.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building geocode request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocode request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading geocode response: %w", err)
	}

	var results []struct {
		DisplayName string `json:"display_name"`
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return "", fmt.Errorf("parsing geocode response: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf(`{"query":%q,"found":false}`, query), nil
	}

	out := map[string]any{
		"query":        query,
		"found":        true,
		"display_name": results[0].DisplayName,
		"lat":          results[0].Lat,
		"lon":          results[0].Lon,
	}
	b, _ := json.Marshal(out)
	return string(b), nil
}

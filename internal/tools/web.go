package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	fetchUserAgent    = "Mozilla/5.0 (compatible; GovClaw/0.1; +https://github.com/GovClaw)"
	defaultFetchChars = 50000
	maxFetchChars     = 200000
	braveSearchURL    = "https://api.search.brave.com/res/v1/web/search"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// stripHTML removes tags and collapses whitespace.
func stripHTML(html string) string {
	html = scriptStyleRe.ReplaceAllString(html, "")
	html = tagRe.ReplaceAllString(html, " ")
	replacer := strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'")
	html = replacer.Replace(html)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(html, " "))
}

// WebFetchTool downloads a URL and returns readable text.
type WebFetchTool struct {
	Client *http.Client
}

// NewWebFetchTool creates a WebFetchTool with a 30s HTTP timeout.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{Client: &http.Client{Timeout: 30 * time.Second}}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch the content of a URL and return readable text. Strips HTML tags."
}

func (t *WebFetchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to fetch",
			},
			"max_chars": map[string]any{
				"type":        "integer",
				"description": "Maximum characters to return (default 50000)",
			},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	rawURL := GetString(params, "url", "")
	if rawURL == "" {
		return "Error: url is required", nil
	}
	maxChars := GetInt(params, "max_chars", defaultFetchChars)
	if maxChars < 100 {
		maxChars = 100
	}
	if maxChars > maxFetchChars {
		maxChars = maxFetchChars
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Sprintf("Error: invalid URL: %v", err), nil
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Sprintf("Request failed: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Sprintf("HTTP error %d fetching %s", resp.StatusCode, rawURL), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), nil
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	switch {
	case contentType == "", strings.Contains(contentType, "text/html"), strings.Contains(contentType, "text/plain"):
		text = stripHTML(string(body))
	default:
		text = fmt.Sprintf("[Non-text content: %s]", contentType)
	}

	if len(text) > maxChars {
		text = text[:maxChars] + fmt.Sprintf("\n\n[Truncated at %d chars]", maxChars)
	}
	return fmt.Sprintf("Content from %s:\n\n%s", rawURL, text), nil
}

// WebSearchTool queries the Brave Search API.
type WebSearchTool struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// NewWebSearchTool creates a WebSearchTool.
func NewWebSearchTool(apiKey string) *WebSearchTool {
	return &WebSearchTool{
		APIKey:  apiKey,
		BaseURL: braveSearchURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web using Brave Search. Returns titles, URLs, and snippets."
}

func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query string",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": "Number of results to return (default 5, max 20)",
			},
		},
		"required": []string{"query"},
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	if t.APIKey == "" {
		return "Error: no search API key configured", nil
	}
	query := GetString(params, "query", "")
	if query == "" {
		return "Error: query is required", nil
	}
	count := GetInt(params, "count", 5)
	if count < 1 {
		count = 1
	}
	if count > 20 {
		count = 20
	}

	endpoint := fmt.Sprintf("%s?q=%s&count=%d", t.BaseURL, url.QueryEscape(query), count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("tools: build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.APIKey)

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Sprintf("Search request failed: %v", err), nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Search API error %d: %s", resp.StatusCode, truncate(string(body), 300)), nil
	}

	var data braveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Sprintf("Error decoding search response: %v", err), nil
	}
	if len(data.Web.Results) == 0 {
		return fmt.Sprintf("No results found for query: %s", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for: %s\n", query)
	for i, r := range data.Web.Results {
		fmt.Fprintf(&b, "\n%d. %s\n   URL: %s\n   %s\n", i+1, r.Title, r.URL, r.Description)
	}
	return b.String(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"asha-agent/internal/domain"
)

const (
	defaultWebSearchBaseURL = "https://api.search.brave.com"
	webSearchResultCount    = 3
)

// WebSearchConfig configures the web search capability.
type WebSearchConfig struct {
	Getter       Getter
	KeyParameter string
	BaseURL      string
	HTTPClient   *http.Client
}

type webSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

type webSearch struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	keyParam   string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

// NewWebSearchTool returns the Brave-backed web search capability.
func NewWebSearchTool(cfg WebSearchConfig) (*Tool, error) {
	if cfg.Getter == nil {
		return nil, errors.New("tools: web search getter must not be nil")
	}
	if strings.TrimSpace(cfg.KeyParameter) == "" {
		return nil, errors.New("tools: web search key parameter must not be empty")
	}
	w := &webSearch{
		baseURL:    defaultWebSearchBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		getter:     cfg.Getter,
		keyParam:   cfg.KeyParameter,
	}
	if cfg.BaseURL != "" {
		w.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		w.httpClient = cfg.HTTPClient
	}

	return &Tool{
		Spec: domain.ToolSpec{
			Name:        "web_search",
			Description: "Search the web for current information about careers, events, and mentorship programs.",
			Parameters: domain.ParameterSpec{
				Required: []string{"query"},
				Properties: map[string]domain.PropertySpec{
					"query": {Type: "string", Description: "The search query."},
				},
			},
		},
		Run: w.run,
	}, nil
}

func (w *webSearch) run(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "query", "")

	apiKey, err := w.resolveAPIKey(ctx)
	if err != nil {
		return fmt.Sprintf("⚠️ Web search is unavailable right now: %v", err), nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", webSearchResultCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		w.baseURL+"/res/v1/web/search?"+params.Encode(), nil)
	if err != nil {
		return fmt.Sprintf("⚠️ Web search failed: %v", err), nil
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)

	res, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("⚠️ Web search failed: %v", err), nil
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Sprintf("⚠️ Web search failed: %v", err), nil
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Sprintf("⚠️ Web search failed with status %d: %s", res.StatusCode, string(body)), nil
	}

	var payload webSearchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Sprintf("⚠️ Data Error: %v", err), nil
	}

	results := payload.Web.Results
	if len(results) == 0 {
		return fmt.Sprintf("🔍 No results found for '%s'.", query), nil
	}
	if len(results) > webSearchResultCount {
		results = results[:webSearchResultCount]
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("🔗 %s\n%s\n%s", r.Title, r.URL, r.Description))
	}
	return strings.Join(lines, "\n\n"), nil
}

func (w *webSearch) resolveAPIKey(ctx context.Context) (string, error) {
	w.keyOnce.Do(func() {
		w.apiKey, w.keyErr = w.getter.GetParameter(ctx, w.keyParam)
	})
	return w.apiKey, w.keyErr
}

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
	defaultCourseSearchBaseURL = "https://paid-udemy-course-for-free.p.rapidapi.com"
	courseSearchHost           = "paid-udemy-course-for-free.p.rapidapi.com"
)

// CourseSearchConfig configures the learning resources capability.
type CourseSearchConfig struct {
	Getter       Getter
	KeyParameter string
	BaseURL      string
	HTTPClient   *http.Client
}

type course struct {
	Title    string  `json:"title"`
	Rating   float64 `json:"rating"`
	Duration float64 `json:"duration"`
	Category string  `json:"category"`
	Language string  `json:"language"`
	DescText string  `json:"desc_text"`
}

type courseSearch struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	keyParam   string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

// NewCourseSearchTool returns the free-course search capability. Like the
// other networked capabilities, it degrades to descriptive reply text on
// upstream failure.
func NewCourseSearchTool(cfg CourseSearchConfig) (*Tool, error) {
	if cfg.Getter == nil {
		return nil, errors.New("tools: course search getter must not be nil")
	}
	if strings.TrimSpace(cfg.KeyParameter) == "" {
		return nil, errors.New("tools: course search key parameter must not be empty")
	}
	c := &courseSearch{
		baseURL:    defaultCourseSearchBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		getter:     cfg.Getter,
		keyParam:   cfg.KeyParameter,
	}
	if cfg.BaseURL != "" {
		c.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		c.httpClient = cfg.HTTPClient
	}

	return &Tool{
		Spec: domain.ToolSpec{
			Name:        "fetch_learning_resources",
			Description: "Search for free Udemy courses with detailed information including ratings, duration, and expiry dates.",
			Parameters: domain.ParameterSpec{
				Required: []string{"query"},
				Properties: map[string]domain.PropertySpec{
					"query": {Type: "string", Description: "The search term for courses (e.g., 'python', 'AI', 'web development')."},
				},
			},
		},
		Run: c.run,
	}, nil
}

func (c *courseSearch) run(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "query", "")

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return fmt.Sprintf("⚠️ Course search is unavailable right now: %v", err), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?s="+url.QueryEscape(query), nil)
	if err != nil {
		return fmt.Sprintf("⚠️ API Error: %v", err), nil
	}
	req.Header.Set("x-rapidapi-key", apiKey)
	req.Header.Set("x-rapidapi-host", courseSearchHost)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("⚠️ API Error: %v", err), nil
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Sprintf("⚠️ API Error: %v", err), nil
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Sprintf("⚠️ API Error: unexpected status %d", res.StatusCode), nil
	}

	var courses []course
	if err := json.Unmarshal(body, &courses); err != nil {
		return fmt.Sprintf("⚠️ Data Error: %v", err), nil
	}
	if len(courses) == 0 {
		return fmt.Sprintf("🔍 No courses found for '%s'. Try a different search term.", query), nil
	}
	if len(courses) > 5 {
		courses = courses[:5]
	}

	cards := make([]string, 0, len(courses))
	for _, crs := range courses {
		desc := crs.DescText
		if len(desc) > 100 {
			desc = desc[:100]
		}
		cards = append(cards, strings.Join([]string{
			fmt.Sprintf("🎯 %s", crs.Title),
			fmt.Sprintf("⭐ Rating: %g/5 | ⏳ Duration: %g hours", crs.Rating, crs.Duration),
			fmt.Sprintf("📚 Category: %s | 🌐 Language: %s", crs.Category, crs.Language),
			fmt.Sprintf("📝 Description: %s...", desc),
			"──────────────────────────",
		}, "\n"))
	}
	return strings.Join(cards, "\n\n"), nil
}

func (c *courseSearch) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = c.getter.GetParameter(ctx, c.keyParam)
	})
	return c.apiKey, c.keyErr
}

package tools

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
	"sync"
	"time"

	"asha-agent/internal/domain"
)

const defaultJobSearchBaseURL = "https://jsearch.p.rapidapi.com"

// JobSearchConfig configures the job search capability.
type JobSearchConfig struct {
	Getter       Getter
	KeyParameter string
	BaseURL      string
	HTTPClient   *http.Client
}

// Getter resolves API keys by parameter name; satisfied by the paramstore
// implementations.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type jobSearchResponse struct {
	Data []struct {
		JobTitle     string `json:"job_title"`
		EmployerName string `json:"employer_name"`
		JobPublisher string `json:"job_publisher"`
		JobCountry   string `json:"job_country"`
		JobCity      string `json:"job_city"`
		JobApplyLink string `json:"job_apply_link"`
	} `json:"data"`
}

type jobSearch struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	keyParam   string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

// NewJobSearchTool returns the job search capability backed by the JSearch
// API. Upstream failures are formatted into the reply text, not returned as
// errors, so a failed search still produces a conversational answer.
func NewJobSearchTool(cfg JobSearchConfig) (*Tool, error) {
	if cfg.Getter == nil {
		return nil, errors.New("tools: job search getter must not be nil")
	}
	if strings.TrimSpace(cfg.KeyParameter) == "" {
		return nil, errors.New("tools: job search key parameter must not be empty")
	}
	j := &jobSearch{
		baseURL:    defaultJobSearchBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		getter:     cfg.Getter,
		keyParam:   cfg.KeyParameter,
	}
	if cfg.BaseURL != "" {
		j.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		j.httpClient = cfg.HTTPClient
	}

	return &Tool{
		Spec: domain.ToolSpec{
			Name:        "search_jobs",
			Description: "Search for jobs using a query and optional filters like country, pagination, and remote.",
			Parameters: domain.ParameterSpec{
				Required: []string{"query"},
				Properties: map[string]domain.PropertySpec{
					"query":          {Type: "string", Description: "Free-form job search query (e.g. 'developer jobs in chicago')."},
					"country":        {Type: "string", Description: "Country code (default 'india')."},
					"page":           {Type: "integer", Description: "Page number to return."},
					"num_pages":      {Type: "integer", Description: "Number of pages to return (max 20)."},
					"date_posted":    {Type: "string", Description: "Posting age filter.", Enum: []string{"all", "today", "3days", "week", "month"}},
					"work_from_home": {Type: "boolean", Description: "Whether to return only remote jobs."},
				},
			},
		},
		Run: j.run,
	}, nil
}

func (j *jobSearch) run(ctx context.Context, args map[string]any) (string, error) {
	apiKey, err := j.resolveAPIKey(ctx)
	if err != nil {
		return fmt.Sprintf("⚠️ Job search is unavailable right now: %v", err), nil
	}

	params := url.Values{}
	params.Set("query", stringArg(args, "query", ""))
	params.Set("page", strconv.Itoa(intArg(args, "page", 1)))
	params.Set("num_pages", strconv.Itoa(intArg(args, "num_pages", 1)))
	params.Set("country", stringArg(args, "country", "india"))
	params.Set("date_posted", stringArg(args, "date_posted", "all"))
	params.Set("radius", "10000000")
	if boolArg(args, "work_from_home") {
		params.Set("work_from_home", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return fmt.Sprintf("⚠️ Job search failed: %v", err), nil
	}
	req.Header.Set("X-RapidAPI-Key", apiKey)
	req.Header.Set("X-RapidAPI-Host", "jsearch.p.rapidapi.com")

	res, err := j.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("⚠️ Job search failed: %v", err), nil
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Sprintf("⚠️ Job search failed: %v", err), nil
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Sprintf("❌ Request failed with status %d: %s", res.StatusCode, string(body)), nil
	}

	var payload jobSearchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Sprintf("⚠️ Data Error: %v", err), nil
	}

	jobs := payload.Data
	if len(jobs) > 3 {
		jobs = jobs[:3]
	}
	if len(jobs) == 0 {
		return "No jobs found for your search.", nil
	}

	listings := make([]string, 0, len(jobs))
	for _, job := range jobs {
		listings = append(listings, fmt.Sprintf(
			"📌 %s at %s\nPublisher: %s, %s\n🔗 %s\n%s",
			job.JobTitle, job.EmployerName,
			job.JobPublisher, job.JobCountry,
			job.JobApplyLink, job.JobCity,
		))
	}
	return strings.Join(listings, "\n\n"), nil
}

func (j *jobSearch) resolveAPIKey(ctx context.Context) (string, error) {
	j.keyOnce.Do(func() {
		j.apiKey, j.keyErr = j.getter.GetParameter(ctx, j.keyParam)
	})
	return j.apiKey, j.keyErr
}

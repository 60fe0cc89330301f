// Package gemini is a focused client for the Gemini generateContent API.
// It translates provider-agnostic chat messages and tool specs into the
// Gemini wire format and returns a tagged reply: either a final answer or
// the model's requested tool invocations.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"asha-agent/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// generateRequest is the minimal request shape for generateContent.
type generateRequest struct {
	SystemInstruction *content          `json:"system_instruction,omitempty"`
	Contents          []content         `json:"contents"`
	Tools             []toolDecl        `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text         string        `json:"text,omitempty"`
	FunctionCall *functionCall `json:"functionCall,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type toolDecl struct {
	FunctionDeclarations []functionDeclaration `json:"function_declarations"`
}

type functionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *schema `json:"parameters,omitempty"`
}

type schema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

type schemaProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

// generateResponse is the minimal response shape for generateContent.
type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// tokenPayload is the JSON shape stored in the parameter store for the API
// key. A bare non-JSON value is accepted as the key itself.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client invokes the Gemini generateContent endpoint.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	specs       []domain.ToolSpec
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given paramstore getter for API
// key retrieval. The declared tool specs are advertised to the model on
// every request. The key is fetched on the first Generate call and reused
// for the lifetime of the process.
func NewClient(ps Getter, paramPrefix, model string, specs []domain.ToolSpec, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("gemini: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("gemini: parameter prefix must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("gemini: model must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		model:       model,
		temperature: 0.2,
		specs:       specs,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchAPIKey(ctx, c.getter, c.paramPrefix+"/gemini-api-key")
	})
	return c.apiKey, c.keyErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func generateURL(baseURL, model string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return fmt.Sprintf("%s/models/%s:generateContent", base, model)
}

// Generate sends the ordered messages to the model and returns either a
// final answer or the requested tool invocations.
func (c *Client) Generate(ctx context.Context, messages []domain.ChatMessage) (domain.ModelReply, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return domain.ModelReply{}, err
	}

	body, err := json.Marshal(c.buildRequest(messages))
	if err != nil {
		return domain.ModelReply{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := generateURL(c.baseURL, c.model)
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return domain.ModelReply{}, fmt.Errorf("gemini: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return domain.ModelReply{}, fmt.Errorf("gemini: request failed: %w", err)
	}

	var payload generateResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.ModelReply{}, fmt.Errorf("gemini: decode response: %w", decErr)
	}
	return parseReply(payload)
}

// buildRequest maps chat messages onto the Gemini shapes: system messages
// merge into system_instruction and assistant turns take the "model" role.
func (c *Client) buildRequest(messages []domain.ChatMessage) generateRequest {
	req := generateRequest{
		GenerationConfig: &generationConfig{Temperature: c.temperature},
	}

	var system []string
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: []part{{Text: strings.Join(system, "\n\n")}}}
	}
	if decls := declarationsFromSpecs(c.specs); len(decls) > 0 {
		req.Tools = []toolDecl{{FunctionDeclarations: decls}}
	}
	return req
}

func declarationsFromSpecs(specs []domain.ToolSpec) []functionDeclaration {
	decls := make([]functionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decl := functionDeclaration{Name: spec.Name, Description: spec.Description}
		if len(spec.Parameters.Properties) > 0 {
			props := make(map[string]schemaProperty, len(spec.Parameters.Properties))
			for name, p := range spec.Parameters.Properties {
				props[name] = schemaProperty{Type: p.Type, Description: p.Description, Enum: p.Enum}
			}
			decl.Parameters = &schema{
				Type:       "object",
				Properties: props,
				Required:   spec.Parameters.Required,
			}
		}
		decls = append(decls, decl)
	}
	return decls
}

func parseReply(payload generateResponse) (domain.ModelReply, error) {
	if len(payload.Candidates) == 0 {
		return domain.ModelReply{}, errors.New("gemini: no candidates in response")
	}

	var calls []domain.ToolCall
	var text []string
	for _, p := range payload.Candidates[0].Content.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, domain.ToolCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args})
			continue
		}
		if p.Text != "" {
			text = append(text, p.Text)
		}
	}
	if len(calls) > 0 {
		return domain.ToolRequest(calls), nil
	}
	return domain.FinalAnswer(strings.Join(text, "")), nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchAPIKey(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("gemini: paramstore getter is nil")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("gemini: fetch API key from paramstore: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("gemini: unmarshal paramstore token value as JSON: %w", err)
		}
		raw = tp.Token
	}
	if raw == "" {
		return "", errors.New("gemini: API key is empty")
	}
	return raw, nil
}

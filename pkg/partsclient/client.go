// Package partsclient is a Go client for the parts assistant HTTP API.
package partsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running parts assistant API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a new API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
	}, nil
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Part is a catalog part as returned by the API.
type Part struct {
	PartNumber         string   `json:"part_number"`
	Name               string   `json:"name"`
	ManufacturerNumber string   `json:"manufacturer_number"`
	Price              string   `json:"price"`
	Brand              string   `json:"brand"`
	ApplianceTypes     string   `json:"appliance_types"`
	Symptoms           string   `json:"symptoms"`
	URL                string   `json:"url"`
	StockStatus        string   `json:"stock_status"`
	InstallDifficulty  string   `json:"install_difficulty"`
	InstallTime        string   `json:"install_time"`
	InstallVideoURL    string   `json:"install_video_url"`
	ReplaceParts       string   `json:"replace_parts"`
	CompatibleModels   []string `json:"compatible_models,omitempty"`
	Relevance          float64  `json:"relevance_score,omitempty"`
}

// RepairGuide is a troubleshooting guide.
type RepairGuide struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	ApplianceType string   `json:"appliance_type"`
	Symptom       string   `json:"symptom"`
	Steps         string   `json:"steps"`
	Difficulty    string   `json:"difficulty"`
	PartsNeeded   []string `json:"parts_needed"`
	URL           string   `json:"url"`
}

// Article is a blog post.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Mismatch reports a contradiction with what the conversation established.
type Mismatch struct {
	Field       string `json:"field"`
	Established string `json:"established"`
	Observed    string `json:"observed"`
	Message     string `json:"message"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the answer to a chat request.
type ChatResponse struct {
	Response           string        `json:"response"`
	Parts              []Part        `json:"parts"`
	Repairs            []RepairGuide `json:"repairs"`
	Blogs              []Article     `json:"blogs"`
	ConversationID     string        `json:"conversation_id"`
	Source             string        `json:"source"`
	Confidence         float64       `json:"confidence"`
	SuggestedQuestions []string      `json:"suggested_questions"`
	Stage              string        `json:"stage"`
	Mismatch           *Mismatch     `json:"mismatch,omitempty"`
	ResponseTimeMs     int64         `json:"response_time_ms"`
}

// Chat sends one user message. Leave ConversationID empty to start a new
// conversation; the server assigns one and returns it.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchRequest is the body of the search endpoints.
type SearchRequest struct {
	Query         string `json:"query"`
	ApplianceType string `json:"appliance_type,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

// SearchParts runs a keyword or semantic parts search.
func (c *Client) SearchParts(ctx context.Context, req SearchRequest) ([]Part, error) {
	var resp struct {
		Results []Part `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/search/parts", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// SearchRepairs searches the repair guides.
func (c *Client) SearchRepairs(ctx context.Context, req SearchRequest) ([]RepairGuide, error) {
	var resp struct {
		Results []RepairGuide `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/search/repairs", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetPart fetches a part by part or manufacturer number.
func (c *Client) GetPart(ctx context.Context, id string) (*Part, error) {
	var part Part
	if err := c.do(ctx, http.MethodGet, "/api/part/"+url.PathEscape(id), nil, &part); err != nil {
		return nil, err
	}
	return &part, nil
}

// CompatibilityResponse reports whether a part fits a model.
type CompatibilityResponse struct {
	PartID         string `json:"part_id"`
	ModelNumber    string `json:"model_number"`
	Compatible     bool   `json:"compatible"`
	Method         string `json:"method"`
	PartAppliance  string `json:"part_appliance,omitempty"`
	ModelAppliance string `json:"model_appliance,omitempty"`
	Message        string `json:"message"`
}

// CheckCompatibility asks whether partID fits modelNumber.
func (c *Client) CheckCompatibility(ctx context.Context, partID, modelNumber string) (*CompatibilityResponse, error) {
	body := map[string]string{"part_id": partID, "model_number": modelNumber}
	var resp CompatibilityResponse
	if err := c.do(ctx, http.MethodPost, "/api/compatibility", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status     string                 `json:"status"`
	Components map[string]interface{} `json:"components"`
	Timestamp  string                 `json:"timestamp"`
}

// Health checks the service health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheStats holds the response cache and router counters.
type CacheStats struct {
	Cache struct {
		TotalQueries int64   `json:"total_queries"`
		Hits         int64   `json:"cache_hits"`
		Misses       int64   `json:"cache_misses"`
		HitRate      float64 `json:"hit_rate"`
		Size         int     `json:"cached_responses"`
	} `json:"cache_performance"`
	Router struct {
		Requests  int64            `json:"requests"`
		Calls     map[string]int64 `json:"tier_calls"`
		Hits      map[string]int64 `json:"tier_hits"`
		Failures  map[string]int64 `json:"tier_failures"`
		Exhausted int64            `json:"exhausted"`
	} `json:"router_performance"`
	Timestamp string `json:"timestamp"`
}

// CacheStats fetches cache and router counters.
func (c *Client) CacheStats(ctx context.Context) (*CacheStats, error) {
	var resp CacheStats
	if err := c.do(ctx, http.MethodGet, "/api/cache/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearCache empties the server's response cache.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/cache/clear", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

const ToolWebSearch = "web_search"

const (
	defaultSearchResults = 5
	maxSearchResults     = 10
)

type WebSearchInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// SearchResult is one hit from the search endpoint.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearch queries a configurable JSON search endpoint. Read-only; any
// URLs inside the input are checked against the guard allowlist before
// this tool ever runs.
type WebSearch struct {
	endpoint string
	client   *http.Client
}

func NewWebSearch(endpoint string) *WebSearch {
	return &WebSearch{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *WebSearch) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolWebSearch,
		Desc: "Search the web for current information. Returns titles, URLs and snippets.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "Search query text",
				Required: true,
			},
			"max_results": {
				Type: "number",
				Desc: "Maximum number of results to return (default 5, max 10)",
			},
		}),
	}
}

func (t *WebSearch) Risk() RiskClass {
	return RiskReadOnly
}

func (t *WebSearch) Validate(input json.RawMessage) error {
	var in WebSearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("web_search input must be a JSON object: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if in.MaxResults < 0 {
		return fmt.Errorf("max_results must not be negative")
	}
	return nil
}

func (t *WebSearch) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	if t.endpoint == "" {
		return "", fmt.Errorf("search endpoint is not configured")
	}
	var in WebSearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("unmarshal input: %w", err)
	}
	n := in.MaxResults
	if n == 0 {
		n = defaultSearchResults
	}
	if n > maxSearchResults {
		n = maxSearchResults
	}

	q := url.Values{}
	q.Set("q", strings.TrimSpace(in.Query))
	q.Set("count", strconv.Itoa(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}

	results, err := decodeSearchResults(body)
	if err != nil {
		return "", err
	}
	if len(results) > n {
		results = results[:n]
	}
	out, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(out), nil
}

// decodeSearchResults accepts either a bare array or a {"results": [...]}
// envelope, since self-hosted search endpoints differ.
func decodeSearchResults(body []byte) ([]SearchResult, error) {
	var results []SearchResult
	if err := json.Unmarshal(body, &results); err == nil {
		return results, nil
	}
	var envelope struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return envelope.Results, nil
}

var _ Tool = (*WebSearch)(nil)

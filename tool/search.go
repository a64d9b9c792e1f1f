package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SearchToolID is the canonical registry id of the web search tool.
const SearchToolID = "tavily_search"

// DefaultTavilyEndpoint is the Tavily search API.
const DefaultTavilyEndpoint = "https://api.tavily.com/search"

// ErrMissingCredential is returned at construction time when a tool needs an
// API key that is not configured.
var ErrMissingCredential = errors.New("missing credential")

// SearchResult is one hit returned by the search backend.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// SearchResponse is the JSON document the search tool returns to the model.
type SearchResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Results []SearchResult `json:"results"`
}

// SearchOptions configures the web search tool.
type SearchOptions struct {
	Endpoint   string
	MaxResults int
	// Depth is "basic" or "advanced".
	Depth      string
	HTTPClient *http.Client
}

// Search queries the Tavily web search API.
type Search struct {
	apiKey string
	opts   SearchOptions
}

// NewSearch creates the web search tool. An empty apiKey fails immediately with
// ErrMissingCredential rather than at call time.
func NewSearch(apiKey string, optFns ...func(o *SearchOptions)) (*Search, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w: TAVILY_API_KEY is not set", SearchToolID, ErrMissingCredential)
	}

	opts := SearchOptions{
		Endpoint:   DefaultTavilyEndpoint,
		MaxResults: 5,
		Depth:      "basic",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Search{apiKey: apiKey, opts: opts}, nil
}

// Name implements Tool.
func (*Search) Name() string { return SearchToolID }

// Description implements Tool.
func (*Search) Description() string {
	return "Search the web for current, citable information. Returns a JSON document with the top results (title, url, content)."
}

// Parameters implements Tool.
func (*Search) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
		},
		"required": []any{"query"},
	}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

// Call runs the query and returns the results as JSON text.
func (s *Search) Call(ctx context.Context, input string) (string, error) {
	if input == "" {
		return "", &ToolError{Tool: SearchToolID, Message: "Error: Query is empty", Code: "EMPTY_QUERY"}
	}

	body, err := json.Marshal(tavilyRequest{Query: input, MaxResults: s.opts.MaxResults, SearchDepth: s.opts.Depth})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return "", &ToolError{Tool: SearchToolID, Message: "Error: search request failed: " + err.Error(), Code: "REQUEST_FAILED", Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &ToolError{Tool: SearchToolID, Message: "Error: reading search response: " + err.Error(), Code: "REQUEST_FAILED", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ToolError{
			Tool:    SearchToolID,
			Message: fmt.Sprintf("Error: search returned status %d", resp.StatusCode),
			Code:    "HTTP_ERROR",
			Details: string(data),
		}
	}

	var out SearchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &ToolError{Tool: SearchToolID, Message: "Error: malformed search response", Code: "DECODE_ERROR", Cause: err}
	}

	if out.Query == "" {
		out.Query = input
	}
	if out.Results == nil {
		out.Results = []SearchResult{}
	}

	text, err := json.Marshal(out)
	if err != nil {
		return "", err
	}

	return string(text), nil
}

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/logging"
)

const (
	defaultDuckDuckGoURL     = "https://api.duckduckgo.com/"
	defaultDuckDuckGoTimeout = 10 * time.Second
	defaultMaxResults        = 5
)

// duckduckgoProvider queries the DuckDuckGo Instant Answer API. It needs
// no credentials; the answer abstract and related topics become results.
type duckduckgoProvider struct {
	baseURL    string
	maxResults int
	httpClient *http.Client
	log        *logging.Logger
}

func newDuckDuckGo(baseURL string, maxResults int, timeout time.Duration, log *logging.Logger) *duckduckgoProvider {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if timeout <= 0 {
		timeout = defaultDuckDuckGoTimeout
	}

	return &duckduckgoProvider{
		baseURL:    baseURL,
		maxResults: maxResults,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.Named("search"),
	}
}

// instantAnswer is the subset of the Instant Answer response we consume.
type instantAnswer struct {
	Heading       string         `json:"Heading"`
	AbstractText  string         `json:"AbstractText"`
	AbstractURL   string         `json:"AbstractURL"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

// relatedTopic is either a direct hit or a named group of nested topics.
type relatedTopic struct {
	Text     string         `json:"Text"`
	FirstURL string         `json:"FirstURL"`
	Topics   []relatedTopic `json:"Topics"`
}

func (d *duckduckgoProvider) Search(ctx context.Context, query string) (*Results, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing search URL: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error (%d)", resp.StatusCode)
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := &Results{Query: query}
	if answer.AbstractText != "" {
		results.Results = append(results.Results, Result{
			Title:   answer.Heading,
			URL:     answer.AbstractURL,
			Snippet: answer.AbstractText,
		})
	}
	d.appendTopics(results, answer.RelatedTopics)

	d.log.Debug(ctx, "search completed",
		zap.String("query", query),
		zap.Int("results", len(results.Results)))
	return results, nil
}

// appendTopics flattens related topics (including nested groups) into
// results, up to the configured maximum.
func (d *duckduckgoProvider) appendTopics(results *Results, topics []relatedTopic) {
	for _, topic := range topics {
		if len(results.Results) >= d.maxResults {
			return
		}
		if len(topic.Topics) > 0 {
			d.appendTopics(results, topic.Topics)
			continue
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}

		// Topic text reads "Title - description"; split it if possible.
		title, snippet := topic.Text, topic.Text
		if parts := strings.SplitN(topic.Text, " - ", 2); len(parts) == 2 {
			title, snippet = parts[0], parts[1]
		}
		results.Results = append(results.Results, Result{
			Title:   title,
			URL:     topic.FirstURL,
			Snippet: snippet,
		})
	}
}

var _ Provider = (*duckduckgoProvider)(nil)

// Package collab holds the HTTP clients for the four capability
// collaborators: live search, website analysis, document analysis, and
// speech transcription. Each is a plain request/response contract; the
// actual analysis happens on the other side of the wire.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type SearchClient struct {
	BaseURL string
	Client  *http.Client
}

type searchReq struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type SearchTopic struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type SearchResult struct {
	Abstract      string        `json:"abstract"`
	Answer        string        `json:"answer"`
	RelatedTopics []SearchTopic `json:"related_topics"`
	Results       []SearchTopic `json:"results"`
}

func NewSearchClient(baseURL string) *SearchClient {
	return &SearchClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *SearchClient) Search(ctx context.Context, query string, maxResults int) (*SearchResult, error) {
	if c.Client == nil {
		return nil, errors.New("search: http client is nil")
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	b, err := json.Marshal(searchReq{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/search", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromBody("search", resp)
	}

	var decoded SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

// errorFromBody builds an error out of a non-2xx response, reading at most
// a few KB of the body.
func errorFromBody(who string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", who, msg)
}

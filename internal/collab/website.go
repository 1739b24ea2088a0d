package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type WebsiteClient struct {
	BaseURL string
	Client  *http.Client
}

type websiteReq struct {
	URL string `json:"url"`
}

type WebsiteAnalysis struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Headings    []string `json:"headings"`
	LinksCount  int      `json:"links_count"`
	IsEcommerce bool     `json:"is_ecommerce"`
	IsBusiness  bool     `json:"is_business"`
	WordCount   int      `json:"word_count"`
}

func NewWebsiteClient(baseURL string) *WebsiteClient {
	return &WebsiteClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *WebsiteClient) Analyze(ctx context.Context, pageURL string) (*WebsiteAnalysis, error) {
	if c.Client == nil {
		return nil, errors.New("website: http client is nil")
	}

	b, err := json.Marshal(websiteReq{URL: pageURL})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/analyze", strings.TrimRight(c.BaseURL, "/"))
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
		return nil, errorFromBody("website", resp)
	}

	var decoded struct {
		WebsiteAnalysis
		Error string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}
	return &decoded.WebsiteAnalysis, nil
}

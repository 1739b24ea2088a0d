package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

type DocumentClient struct {
	BaseURL string
	Client  *http.Client
}

type DocumentAnalysis struct {
	Type            string    `json:"type"`
	FileName        string    `json:"file_name"`
	Size            int64     `json:"size"`
	Summary         string    `json:"summary"`
	KeyPoints       []string  `json:"key_points"`
	Recommendations string    `json:"recommendations"`
	WordCount       int       `json:"word_count"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewDocumentClient(baseURL string) *DocumentClient {
	return &DocumentClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Analyze uploads the document as multipart form data and returns the
// collaborator's structured analysis.
func (c *DocumentClient) Analyze(ctx context.Context, fileName string, data []byte) (*DocumentAnalysis, error) {
	if c.Client == nil {
		return nil, errors.New("document: http client is nil")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/analyze-document", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromBody("document", resp)
	}

	var decoded DocumentAnalysis
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

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

type SpeechClient struct {
	BaseURL string
	Client  *http.Client
}

type Transcript struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSpeechClient(baseURL string) *SpeechClient {
	return &SpeechClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Transcribe posts raw audio bytes and returns the transcript text. An
// empty transcript is reported as such, not as an error.
func (c *SpeechClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if c.Client == nil {
		return "", errors.New("speech: http client is nil")
	}

	url := fmt.Sprintf("%s/transcribe", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errorFromBody("speech", resp)
	}

	var decoded Transcript
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return decoded.Text, nil
}

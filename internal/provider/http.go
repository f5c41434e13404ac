package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"habitat/internal/model"
)

// HTTPProvider asks a remote topic service for topics.
//
// Request body: {"topic", "journey", "count", "usedTopics"}.
// Response body: {"success", "topics": [{"title", "description", "richContent"}], "error"}.
type HTTPProvider struct {
	url    string
	client *http.Client
}

type topicRequest struct {
	Topic      string   `json:"topic"`
	Journey    []string `json:"journey"`
	Count      int      `json:"count"`
	UsedTopics []string `json:"usedTopics"`
}

type topicResponse struct {
	Success bool          `json:"success"`
	Topics  []model.Topic `json:"topics"`
	Error   string        `json:"error"`
}

// NewHTTPProvider creates a provider posting to url.
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{url: url, client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProvider) RequestTopics(ctx context.Context, req Request) ([]model.Topic, error) {
	body, err := json.Marshal(topicRequest{
		Topic:      req.Seed,
		Journey:    nonNil(req.Journey),
		Count:      req.Count,
		UsedTopics: nonNil(req.Exclude),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode topic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build topic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach topic service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read topic response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("topic service returned %s", resp.Status)
	}

	var out topicResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode topic response: %w", err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return nil, errors.New("topic service: " + msg)
	}
	return out.Topics, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"eva-chat/backend/internal/model"
)

// HTTPClient implements StoreClient against the server's REST API. It is
// what a Go-based UI or SDK embeds alongside the Reconciler.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	ownerID string
}

func NewHTTPClient(baseURL, ownerID string) *HTTPClient {
	return &HTTPClient{client: &http.Client{}, baseURL: baseURL, ownerID: ownerID}
}

func (c *HTTPClient) ListMessageKeys(ctx context.Context, conversationID string) ([]model.Message, error) {
	url := fmt.Sprintf("%s/api/v1/conversations/%s/messages?keys_only=true", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	var messages []model.Message
	if err := c.do(req, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *HTTPClient) AppendMessage(ctx context.Context, conversationID string, msg *model.Message) (*model.Message, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("could not marshal message: %w", err)
	}
	url := fmt.Sprintf("%s/api/v1/conversations/%s/messages", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	var saved model.Message
	if err := c.do(req, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *HTTPClient) UpdateAnnotation(ctx context.Context, conversationID, messageID string, partIdx int, updates model.PartMetadata) error {
	payload := struct {
		PartIndex  int      `json:"part_index"`
		IsInReport *bool    `json:"is_in_report,omitempty"`
		Threshold  *float64 `json:"threshold,omitempty"`
	}{PartIndex: partIdx, IsInReport: updates.IsInReport, Threshold: updates.Threshold}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal annotation update: %w", err)
	}
	url := fmt.Sprintf("%s/api/v1/conversations/%s/messages/%s/annotation", c.baseURL, conversationID, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	if c.ownerID != "" {
		req.Header.Set("X-User-ID", c.ownerID)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

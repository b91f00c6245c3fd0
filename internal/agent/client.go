package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"eva-chat/backend/internal/model"
)

// Event is one chunk of the agent runtime's incremental stream. The core does
// not interpret tool semantics, only whether an invocation reached a terminal
// result and whether that result is an error payload; result content passes
// through opaquely.
type Event struct {
	Type     model.EventType `json:"type"`
	Content  string          `json:"content,omitempty"`
	ToolName string          `json:"tool_name,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	IsError  bool            `json:"is_error,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Tool describes one remote tool the runtime may invoke during a turn.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// TurnRequest carries one turn's input to the runtime: the full history, the
// available tools and the system prompt. The per-turn deadline travels in the
// context.
type TurnRequest struct {
	Model    string          `json:"model"`
	System   string          `json:"system,omitempty"`
	Messages []model.Message `json:"messages"`
	Tools    []Tool          `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
}

type GenerateRequest struct {
	Model     string `json:"model"`
	System    string `json:"system,omitempty"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

// Session is a tool-provider connection scoped to a single turn: acquired at
// turn start, released at turn end on every exit path. No process-wide
// connection is shared between turns.
type Session interface {
	Tools(ctx context.Context) ([]Tool, error)
	StreamTurn(ctx context.Context, req *TurnRequest, ch chan<- Event) error
	Close() error
}

// Runtime defines the interface for interacting with the agent runtime.
type Runtime interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	Connect(ctx context.Context) (Session, error)
}

type httpRuntime struct {
	client *http.Client
	url    string
	apiKey string
}

// NewHTTPRuntime returns a Runtime speaking the gateway's NDJSON protocol.
func NewHTTPRuntime(url, apiKey string) Runtime {
	return &httpRuntime{
		client: &http.Client{},
		url:    url,
		apiKey: apiKey,
	}
}

func (r *httpRuntime) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/v1/generate", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("could not create http request: %w", err)
	}
	r.setHeaders(httpReq)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(resp)
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}
	return &genResp, nil
}

// Connect acquires a fresh session for one turn. The gateway is stateless per
// call, so there is no handshake; what matters is that nothing here outlives
// the turn.
func (r *httpRuntime) Connect(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &httpSession{runtime: r}, nil
}

type httpSession struct {
	runtime *httpRuntime
}

func (s *httpSession) Tools(ctx context.Context) ([]Tool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.runtime.url+"/v1/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("could not create http request: %w", err)
	}
	s.runtime.setHeaders(httpReq)

	resp, err := s.runtime.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(resp)
	}

	var payload struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("could not decode tool list: %w", err)
	}
	return payload.Tools, nil
}

// StreamTurn posts the turn and forwards NDJSON chunks onto the channel until
// the stream ends or the context is cancelled. The channel is always closed
// before returning.
func (s *httpSession) StreamTurn(ctx context.Context, req *TurnRequest, ch chan<- Event) error {
	defer close(ch)

	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.runtime.url+"/v1/turns", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	s.runtime.setHeaders(httpReq)

	resp, err := s.runtime.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return upstreamError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			select {
			case ch <- Event{Type: model.EventError, Error: "failed to decode stream chunk"}:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		}

		if event.Type == model.EventDone || event.Type == model.EventError {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *httpSession) Close() error {
	// Per-turn sessions hold no connection state beyond the pooled transport.
	return nil
}

func (r *httpRuntime) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
}

// upstreamError converts a non-200 gateway response into a structured
// UpstreamError, carrying the Retry-After duration on rate limits.
func upstreamError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	ue := &UpstreamError{
		StatusCode: resp.StatusCode,
		Message:    string(bodyBytes),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			ue.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return ue
}

package agent

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

	"voice-gateway/internal/observability"
)

// Reply is the backend's answer to one utterance: a single message or an
// ordered list of parts.
type Reply struct {
	parts []string
}

// NewReply builds a reply from its parts, in delivery order.
func NewReply(parts ...string) Reply {
	return Reply{parts: parts}
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (r *Reply) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		r.parts = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("reply must be a string or an array of strings: %w", err)
	}
	r.parts = many
	return nil
}

// Spoken joins the parts with single spaces into one spoken reply.
func (r Reply) Spoken() string {
	return strings.Join(r.parts, " ")
}

// Client talks to the conversational-agent backend's session API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenSource // nil disables auth
	logger     *observability.Logger
}

func NewClient(baseURL string, tokens *TokenSource, logger *observability.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		logger:     logger,
	}
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// CreateSession opens a new backend conversation session.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var resp createSessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", nil, &resp); err != nil {
		return "", fmt.Errorf("failed to create agent session: %w", err)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("agent backend returned an empty session id")
	}
	return resp.SessionID, nil
}

type sendMessageRequest struct {
	SequenceID int64  `json:"sequenceId"`
	Text       string `json:"text"`
}

type sendMessageResponse struct {
	Reply Reply `json:"reply"`
}

// SendMessage delivers one utterance tagged with its sequence number and
// returns the backend's reply.
func (c *Client) SendMessage(ctx context.Context, sessionID string, sequence int64, text string) (Reply, error) {
	req := sendMessageRequest{SequenceID: sequence, Text: text}
	var resp sendMessageResponse
	path := fmt.Sprintf("/v1/sessions/%s/messages", sessionID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return Reply{}, fmt.Errorf("failed to send message to agent: %w", err)
	}
	return resp.Reply, nil
}

// EndSession asks the backend to end a session. Ending an already-ended
// session is treated as success.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/sessions/%s", sessionID), nil, nil)
	var se *statusError
	if errors.As(err, &se) && (se.status == http.StatusNotFound || se.status == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to end agent session: %w", err)
	}
	return nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("agent backend returned %d: %s", e.status, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire agent token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{status: resp.StatusCode, body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

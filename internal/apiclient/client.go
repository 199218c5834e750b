package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Reply is the body the attendance API answers recognition calls with.
type Reply struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// Created reports whether the call created a record.
func (r Reply) Created() bool { return r.StatusCode == http.StatusCreated }

// TokenSource yields the bearer token for each call.
type TokenSource func() (string, error)

// StaticToken always returns tok.
func StaticToken(tok string) TokenSource {
	return func() (string, error) { return tok, nil }
}

// Client posts liveness-verified sightings to the attendance API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   TokenSource
}

// New creates a client. token may be nil when the API runs without auth.
func New(baseURL string, token TokenSource) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// StartClass reports a verified faculty sighting.
func (c *Client) StartClass(ctx context.Context, facultyID string) (Reply, error) {
	return c.post(ctx, "/start_class", map[string]string{"faculty_id": facultyID})
}

// LogStudentEntry reports a verified student sighting.
func (c *Client) LogStudentEntry(ctx context.Context, userID string) (Reply, error) {
	return c.post(ctx, "/log_student_entry_auto", map[string]string{"user_id": userID})
}

func (c *Client) post(ctx context.Context, path string, payload any) (Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != nil {
		tok, err := c.Token()
		if err != nil {
			return Reply{}, fmt.Errorf("bearer token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("attendance api request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	reply := Reply{StatusCode: resp.StatusCode}
	_ = json.Unmarshal(raw, &reply)
	if resp.StatusCode >= 300 {
		msg := reply.Error
		if msg == "" {
			msg = string(raw)
		}
		return reply, fmt.Errorf("attendance api %s %s: %s", path, resp.Status, msg)
	}
	return reply, nil
}

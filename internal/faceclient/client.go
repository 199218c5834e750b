package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoMatch means no enrolled identity scored at or above the threshold.
var ErrNoMatch = errors.New("no enrolled face matched")

// DefaultSkipIdentity is what Identify reports in skip mode unless
// SkipIdentity is set.
const DefaultSkipIdentity = "student_mock"

// FaceQuality contains face quality metrics.
type FaceQuality struct {
	Score     float64 `json:"score"`
	Blur      float64 `json:"blur"`
	IsFrontal bool    `json:"is_frontal"`
}

// SearchMatch represents a face match from gallery search.
type SearchMatch struct {
	UserID     string  `json:"user_id"`
	Similarity float64 `json:"similarity"`
	Name       string  `json:"name,omitempty"`
}

// LivenessResult contains anti-spoofing check result.
type LivenessResult struct {
	IsLive     bool
	Confidence float64
}

// Client calls the face recognition microservice. With Skip set it answers
// every call with canned results and never touches the network; Identify then
// reports SkipIdentity for every face.
type Client struct {
	BaseURL      string
	HTTP         *http.Client
	Skip         bool
	SkipIdentity string
	Threshold    float64
}

// New creates a client with configurable timeout.
func New(baseURL string, skip bool, threshold float64) *Client {
	return &Client{
		BaseURL:      baseURL,
		Skip:         skip,
		SkipIdentity: DefaultSkipIdentity,
		Threshold:    threshold,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // Face processing can take time
		},
	}
}

// Identify runs a 1:N search for the face in imageURL and returns the best
// match scoring at least the client threshold.
func (c *Client) Identify(ctx context.Context, imageURL string) (SearchMatch, error) {
	if c.Skip {
		id := c.SkipIdentity
		if id == "" {
			id = DefaultSkipIdentity
		}
		return SearchMatch{UserID: id, Similarity: 0.92, Name: "Mock User"}, nil
	}
	if imageURL == "" {
		return SearchMatch{}, fmt.Errorf("image url required")
	}

	payload := map[string]interface{}{
		"image_url": imageURL,
		"top_k":     1,
	}
	if c.Threshold > 0 {
		payload["threshold"] = c.Threshold
	}

	var out struct {
		Matches       []SearchMatch `json:"matches"`
		FacesDetected int           `json:"faces_detected"`
		Quality       *FaceQuality  `json:"quality"`
	}
	if err := c.post(ctx, "/search", payload, &out); err != nil {
		return SearchMatch{}, err
	}

	var best SearchMatch
	for _, m := range out.Matches {
		if m.Similarity >= c.Threshold && m.Similarity > best.Similarity {
			best = m
		}
	}
	if best.UserID == "" {
		return SearchMatch{}, ErrNoMatch
	}
	return best, nil
}

// Liveness checks if the face image is from a live person (anti-spoofing).
func (c *Client) Liveness(ctx context.Context, imageURL string) (*LivenessResult, error) {
	if c.Skip {
		return &LivenessResult{IsLive: true, Confidence: 0.85}, nil
	}

	var out struct {
		IsLive     bool    `json:"is_live"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.post(ctx, "/liveness", map[string]string{"image_url": imageURL}, &out); err != nil {
		return nil, err
	}
	return &LivenessResult{IsLive: out.IsLive, Confidence: out.Confidence}, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

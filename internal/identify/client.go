package identify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/services"
)

// Box is a crop rectangle in pixel coordinates, used to re-run
// identification on the part of a photo that actually contains the bird.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Candidate is one species suggestion from the identification service.
type Candidate struct {
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	Confidence     float64 `json:"confidence"`
}

// Response is the ranked candidate list for one photo. Empty candidates
// means the service could not suggest anything; the reviewer falls back to
// manual entry.
type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// Identifier is the species suggestion surface used by the review workflow.
type Identifier interface {
	Identify(ctx context.Context, image []byte, crop *Box) (*Response, error)
}

// Client calls an HTTP identification service.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ Identifier = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an identification client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.Identify.BaseURL)
	if baseURL == "" {
		return nil, errors.New("identify base url required")
	}
	apiKey := strings.TrimSpace(cfg.Identify.APIKey)
	if apiKey == "" {
		return nil, errors.New("identify api key required")
	}

	timeout := time.Duration(cfg.Identify.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      strings.TrimSpace(cfg.Identify.Model),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type request struct {
	Image string `json:"image"`
	Model string `json:"model,omitempty"`
	Crop  *Box   `json:"crop,omitempty"`
}

// Identify submits a photo, optionally cropped, and returns the ranked
// candidate list. A timed-out request yields an empty response rather than
// an error, so the review loop degrades to manual entry instead of
// aborting the batch.
func (c *Client) Identify(ctx context.Context, image []byte, crop *Box) (*Response, error) {
	if len(image) == 0 {
		return nil, services.Wrap(services.ErrValidation, "identify", "identify", "image is empty", nil)
	}

	body, err := json.Marshal(request{
		Image: base64.StdEncoding.EncodeToString(image),
		Model: c.model,
		Crop:  crop,
	})
	if err != nil {
		return nil, fmt.Errorf("encode identify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/identify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build identify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if isTimeout(err) {
			return &Response{}, nil
		}
		return nil, services.Wrap(services.ErrExternal, "identify", "identify",
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternal, "identify", "identify",
			fmt.Sprintf("service returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrExternal, "identify", "identify", "decode response", err)
	}
	return &payload, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

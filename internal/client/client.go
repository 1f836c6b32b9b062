// Package client talks to a running tts-gateway over HTTP and drives batch
// synthesis of text chunks.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every request when the caller passes zero.
const DefaultTimeout = 120 * time.Second

const (
	errFmtStatus  = "%w: %s returned %d: %s"
	errFmtDecode  = "failed to decode %s response: %w"
	maxErrorBytes = 512
	statusHealthy = "healthy"
)

var (
	// ErrGatewayStatus is returned for any non-200 response.
	ErrGatewayStatus = errors.New("gateway returned an error status")
	// ErrGatewayUnhealthy is returned when /health reports anything but healthy.
	ErrGatewayUnhealthy = errors.New("gateway is not healthy")
)

// Health mirrors the /health response.
type Health struct {
	Status             string   `json:"status"`
	Service            string   `json:"service"`
	ProvidersAvailable int      `json:"providers_available"`
	Providers          []string `json:"providers"`
}

// Provider mirrors one /providers entry.
type Provider struct {
	Voices  []string `json:"voices"`
	Enabled bool     `json:"enabled"`
}

// Result mirrors the data block of a successful /tts response.
type Result struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Voice    string `json:"voice"`
}

type ttsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    Result `json:"data"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// GatewayClient is an HTTP client for the gateway façade.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGatewayClient creates a client for the gateway at baseURL.
func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &GatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the gateway root.
func (c *GatewayClient) BaseURL() string {
	return c.baseURL
}

// Health queries /health and fails unless the gateway reports healthy.
func (c *GatewayClient) Health(ctx context.Context) (*Health, error) {
	var health Health

	err := c.getJSON(ctx, "/health", &health)
	if err != nil {
		return nil, err
	}

	if health.Status != statusHealthy {
		return &health, fmt.Errorf("%w: status %q", ErrGatewayUnhealthy, health.Status)
	}

	return &health, nil
}

// Providers returns the provider catalog keyed by provider name.
func (c *GatewayClient) Providers(ctx context.Context) (map[string]Provider, error) {
	var body struct {
		Providers map[string]Provider `json:"providers"`
	}

	err := c.getJSON(ctx, "/providers", &body)
	if err != nil {
		return nil, err
	}

	return body.Providers, nil
}

// Synthesize requests audio for text. Empty provider or voice leaves the
// choice to the gateway.
func (c *GatewayClient) Synthesize(ctx context.Context, text, provider, voice string) (*Result, error) {
	query := url.Values{}
	query.Set("text", text)

	if provider != "" {
		query.Set("provider", provider)
	}

	if voice != "" {
		query.Set("voice", voice)
	}

	var body ttsResponse

	err := c.getJSON(ctx, "/tts?"+query.Encode(), &body)
	if err != nil {
		return nil, err
	}

	return &body.Data, nil
}

// Download fetches the MP3 behind a /tts result.
func (c *GatewayClient) Download(ctx context.Context, result *Result) ([]byte, error) {
	target := result.URL
	if target == "" {
		target = c.baseURL + "/play/" + url.PathEscape(result.Filename)
	}

	resp, err := c.do(ctx, target)
	if err != nil {
		return nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio for %s: %w", result.Filename, readErr)
	}

	return audioData, nil
}

func (c *GatewayClient) getJSON(ctx context.Context, path string, target any) error {
	resp, err := c.do(ctx, c.baseURL+path)
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	decodeErr := json.NewDecoder(resp.Body).Decode(target)
	if decodeErr != nil {
		return fmt.Errorf(errFmtDecode, path, decodeErr)
	}

	return nil
}

// do performs a GET and returns the response only for status 200.
func (c *GatewayClient) do(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", target, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", target, err)
	}

	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))

	detail := strings.TrimSpace(string(snippet))

	var parsed errorResponse
	if json.Unmarshal(snippet, &parsed) == nil && parsed.Detail != "" {
		detail = parsed.Detail
	}

	return nil, fmt.Errorf(errFmtStatus, ErrGatewayStatus, target, resp.StatusCode, detail)
}

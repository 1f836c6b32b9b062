package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/book-expert/tts-gateway/internal/tts/audio"
)

// SAPI service endpoints.
const (
	sapiHealth     = "/health"
	sapiProviders  = "/providers"
	sapiSynthesize = "/synthesize"

	sapiStatusOK = "ok"

	headerAccept    = "Accept"
	contentTypeJSON = "application/json"
)

const (
	errFmtHealthFailed  = "health check failed for service at %s: %w"
	errFmtHealthStatus  = "%w: status %q"
	errFmtReadBody      = "failed to read response body: %w"
	errFmtMarshal       = "failed to marshal request: %w"
	errFmtServiceError  = "%w: %s"
	errFmtProvidersFail = "failed to list providers at %s: %w"
)

// VoiceInfo is one voice as reported by the SAPI service.
type VoiceInfo struct {
	Name        string         `json:"name"`
	SAPIVersion int            `json:"sapi_version"`
	Features    map[string]any `json:"features,omitempty"`
}

// SAPIProvider is one speech backend hosted by the SAPI service.
type SAPIProvider struct {
	Name      string      `json:"name"`
	Available bool        `json:"available"`
	Voices    []VoiceInfo `json:"voices"`
	Error     string      `json:"error,omitempty"`
}

// SynthesisRequest is the body of POST /synthesize.
type SynthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// SynthesisResponse carries base64 audio plus its format description. PCM
// parameters are only meaningful for raw_pcm; zero values fall back to the
// audio package defaults.
type SynthesisResponse struct {
	Success    bool   `json:"success"`
	AudioData  string `json:"audio_data"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
	Channels   int    `json:"channels"`
	Error      string `json:"error,omitempty"`
}

// PCM returns the response's raw PCM parameters with defaults applied.
func (r SynthesisResponse) PCM() audio.PCM {
	return audio.PCM{
		SampleRate: r.SampleRate,
		BitDepth:   r.BitDepth,
		Channels:   r.Channels,
	}.WithDefaults()
}

type healthResponse struct {
	Status string `json:"status"`
}

// DefaultHealthTimeout bounds a single health check.
const DefaultHealthTimeout = 5 * time.Second

// SAPIClient talks to the remote Windows SAPI service.
type SAPIClient struct {
	httpClient    *http.Client
	baseURL       string
	healthTimeout time.Duration
}

// NewSAPIClient creates a client. The timeout applies to every request;
// health checks are further capped at DefaultHealthTimeout.
func NewSAPIClient(baseURL string, timeout time.Duration) *SAPIClient {
	return &SAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		healthTimeout: DefaultHealthTimeout,
	}
}

// WithHealthTimeout overrides the health check bound. Non-positive values
// are ignored.
func (c *SAPIClient) WithHealthTimeout(timeout time.Duration) *SAPIClient {
	if timeout > 0 {
		c.healthTimeout = timeout
	}

	return c
}

// BaseURL returns the service root.
func (c *SAPIClient) BaseURL() string {
	return c.baseURL
}

// Health returns nil when the service answers 200 with status "ok".
func (c *SAPIClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	body, getErr := c.get(ctx, sapiHealth)
	if getErr != nil {
		return fmt.Errorf(errFmtHealthFailed, c.baseURL, getErr)
	}

	var health healthResponse

	parseErr := parseJSON(body, &health)
	if parseErr != nil {
		return fmt.Errorf(errFmtHealthFailed, c.baseURL, parseErr)
	}

	if health.Status != sapiStatusOK {
		return fmt.Errorf(errFmtHealthStatus, ErrServiceUnhealthy, health.Status)
	}

	return nil
}

// Providers lists the service's speech backends keyed by backend name.
func (c *SAPIClient) Providers(ctx context.Context) (map[string]SAPIProvider, error) {
	body, getErr := c.get(ctx, sapiProviders)
	if getErr != nil {
		return nil, fmt.Errorf(errFmtProvidersFail, c.baseURL, getErr)
	}

	providers := make(map[string]SAPIProvider)

	parseErr := parseJSON(body, &providers)
	if parseErr != nil {
		return nil, fmt.Errorf(errFmtProvidersFail, c.baseURL, parseErr)
	}

	return providers, nil
}

// VoiceNames flattens the voices of every available backend, ordered by
// backend name.
func (c *SAPIClient) VoiceNames(ctx context.Context) ([]string, error) {
	providers, listErr := c.Providers(ctx)
	if listErr != nil {
		return nil, listErr
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}

	sort.Strings(names)

	var voices []string

	for _, name := range names {
		provider := providers[name]
		if !provider.Available {
			continue
		}

		for _, voice := range provider.Voices {
			voices = append(voices, voice.Name)
		}
	}

	return voices, nil
}

// Synthesize asks the service to render text. A response with success=false
// is returned as ErrSynthesisRejected.
func (c *SAPIClient) Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResponse, error) {
	if req.Text == "" {
		return SynthesisResponse{}, ErrEmptyText
	}

	payload, marshalErr := json.Marshal(req)
	if marshalErr != nil {
		return SynthesisResponse{}, fmt.Errorf(errFmtMarshal, marshalErr)
	}

	httpReq, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+sapiSynthesize,
		bytes.NewReader(payload),
	)
	if reqErr != nil {
		return SynthesisResponse{}, fmt.Errorf(errFmtRequestCreate, reqErr)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	body, doErr := c.do(httpReq)
	if doErr != nil {
		return SynthesisResponse{}, doErr
	}

	var resp SynthesisResponse

	parseErr := parseJSON(body, &resp)
	if parseErr != nil {
		return SynthesisResponse{}, parseErr
	}

	if !resp.Success {
		return SynthesisResponse{}, fmt.Errorf(errFmtServiceError, ErrSynthesisRejected, resp.Error)
	}

	return resp, nil
}

func (c *SAPIClient) get(ctx context.Context, path string) ([]byte, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf(errFmtRequestCreate, reqErr)
	}

	req.Header.Set(headerAccept, contentTypeJSON)

	return c.do(req)
}

func (c *SAPIClient) do(req *http.Request) ([]byte, error) {
	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf(errFmtRequestSend, c.baseURL, doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf(errFmtReadBody, readErr)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(errFmtStatus, ErrRemoteStatus, resp.Status)
	}

	return body, nil
}

package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/book-expert/tts-gateway/internal/core"
)

const (
	// ProviderPollinations is the hosted MP3 API provider name.
	ProviderPollinations = "pollinations"
	// DefaultPollinationsURL is the API root the text is appended to.
	DefaultPollinationsURL = "https://text.pollinations.ai"
	// DefaultPollinationsModel is the audio model requested from the API.
	DefaultPollinationsModel = "openai-audio"

	contentTypeMPEG   = "audio/mpeg"
	headerContentType = "Content-Type"

	audioFilePermissions = 0o644

	errFmtRequestCreate = "failed to create request: %w"
	errFmtRequestSend   = "failed to send request to %s: %w"
	errFmtStatus        = "%w: %s"
	errFmtContentType   = "%w: expected %s, got %q"
	errFmtWriteAudio    = "failed to write audio to %s: %w"
)

// PollinationsVoices is the fixed voice catalog of the hosted API.
var PollinationsVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// PollinationsEngine fetches finished MP3 audio from a hosted API. The body
// is written verbatim; no transcoding is needed.
type PollinationsEngine struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewPollinations creates the engine. The client should carry no timeout of
// its own; request lifetime is bounded by the caller's context.
func NewPollinations(baseURL, model string, client *http.Client) *PollinationsEngine {
	if baseURL == "" {
		baseURL = DefaultPollinationsURL
	}

	if model == "" {
		model = DefaultPollinationsModel
	}

	if client == nil {
		client = &http.Client{}
	}

	return &PollinationsEngine{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

// Name returns the provider name.
func (e *PollinationsEngine) Name() string {
	return ProviderPollinations
}

// Kind reports core.KindRemoteAPI.
func (e *PollinationsEngine) Kind() core.Kind {
	return core.KindRemoteAPI
}

// Voices returns the fixed catalog.
func (e *PollinationsEngine) Voices(_ context.Context) []string {
	return slices.Clone(PollinationsVoices)
}

// Available is always true; the API is not checked.
func (e *PollinationsEngine) Available(_ context.Context) bool {
	return true
}

// Synthesize downloads the MP3 for text and writes it to destination.
func (e *PollinationsEngine) Synthesize(ctx context.Context, input, voice, destination string) error {
	if input == "" {
		return ErrEmptyText
	}

	query := url.Values{}
	query.Set("model", e.model)
	query.Set("voice", voice)

	endpoint := e.baseURL + "/" + url.PathEscape(input) + "?" + query.Encode()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if reqErr != nil {
		return fmt.Errorf(errFmtRequestCreate, reqErr)
	}

	resp, doErr := e.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf(errFmtRequestSend, e.baseURL, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf(errFmtStatus, ErrRemoteStatus, resp.Status)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.Contains(contentType, contentTypeMPEG) {
		return fmt.Errorf(errFmtContentType, ErrUnexpectedContentType, contentTypeMPEG, contentType)
	}

	return writeBody(resp.Body, destination)
}

// writeBody streams body into destination, removing the file when the copy
// does not complete.
func writeBody(body io.Reader, destination string) error {
	file, createErr := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, audioFilePermissions)
	if createErr != nil {
		return fmt.Errorf(errFmtWriteAudio, destination, createErr)
	}

	_, copyErr := io.Copy(file, body)
	closeErr := file.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(destination)

		if copyErr != nil {
			return fmt.Errorf(errFmtWriteAudio, destination, copyErr)
		}

		return fmt.Errorf(errFmtWriteAudio, destination, closeErr)
	}

	return nil
}

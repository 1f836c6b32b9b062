package tts

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/tts/audio"
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
)

// ProviderWindows is the remote SAPI proxy provider name.
const ProviderWindows = "windows"

const errFmtDecodeAudio = "failed to decode audio payload: %w"

// WindowsEngine forwards requests to the remote SAPI service and transcodes
// the audio it returns.
type WindowsEngine struct {
	client     *SAPIClient
	transcoder *pipeline.Transcoder
	enabled    bool
}

// NewWindows creates the proxy engine. A disabled engine is never available
// and never contacts the service.
func NewWindows(client *SAPIClient, transcoder *pipeline.Transcoder, enabled bool) *WindowsEngine {
	return &WindowsEngine{
		client:     client,
		transcoder: transcoder,
		enabled:    enabled,
	}
}

// Name returns the provider name.
func (e *WindowsEngine) Name() string {
	return ProviderWindows
}

// Kind reports core.KindRemoteProxy.
func (e *WindowsEngine) Kind() core.Kind {
	return core.KindRemoteProxy
}

// Voices enumerates the service's voices. Any failure yields an empty list.
func (e *WindowsEngine) Voices(ctx context.Context) []string {
	if !e.enabled {
		return nil
	}

	voices, listErr := e.client.VoiceNames(ctx)
	if listErr != nil {
		return nil
	}

	return voices
}

// Available checks the service health endpoint on every call.
func (e *WindowsEngine) Available(ctx context.Context) bool {
	if !e.enabled {
		return false
	}

	return e.client.Health(ctx) == nil
}

// Synthesize requests audio from the service and transcodes it to MP3.
func (e *WindowsEngine) Synthesize(ctx context.Context, input, voice, destination string) error {
	resp, synthErr := e.client.Synthesize(ctx, SynthesisRequest{Text: input, Voice: voice})
	if synthErr != nil {
		return synthErr
	}

	data, decodeErr := base64.StdEncoding.DecodeString(resp.AudioData)
	if decodeErr != nil {
		return fmt.Errorf(errFmtDecodeAudio, decodeErr)
	}

	format, formatErr := audio.ParseFormat(resp.Format)
	if formatErr != nil {
		return formatErr
	}

	streamInput, inputErr := pipeline.InputFor(format, resp.PCM())
	if inputErr != nil {
		return inputErr
	}

	return e.transcoder.EncodeBytes(ctx, data, streamInput, destination)
}

// Package core defines the core business logic and interfaces for the TTS gateway.
package core

import "context"

// Kind tags the synthesis mechanism an Engine wraps. The set is closed.
type Kind int

const (
	// KindRemoteAPI is a hosted endpoint that already returns MP3.
	KindRemoteAPI Kind = iota
	// KindCLIPipe is a command whose stdout is piped into the transcoder.
	KindCLIPipe
	// KindEffects renders to a temporary file and transcodes it through a filter graph.
	KindEffects
	// KindRemoteProxy forwards to an external service and transcodes its payload.
	KindRemoteProxy
)

// String returns the variant name used in logs.
func (k Kind) String() string {
	switch k {
	case KindRemoteAPI:
		return "remote-api"
	case KindCLIPipe:
		return "cli-pipe"
	case KindEffects:
		return "effects"
	case KindRemoteProxy:
		return "remote-proxy"
	default:
		return "unknown"
	}
}

// Engine is the capability contract every synthesis backend implements.
//
// Voices returns the provider's ordered voice catalog. Available is a check that
// never fails loudly: any problem is reported as false. Synthesize writes a
// complete MP3 file to destination or returns an error; callers must not trust a
// file left behind by a failed call.
type Engine interface {
	Name() string
	Kind() Kind
	Voices(ctx context.Context) []string
	Available(ctx context.Context) bool
	Synthesize(ctx context.Context, text, voice, destination string) error
}

// Synthesizer is the boolean boundary the cache and the façade call into.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, provider, voice, destination string) bool
}

// Catalog exposes the read-only provider registry.
type Catalog interface {
	Providers() map[string]Provider
	Voices(provider string) []string
}

// Provider is a registered, checked backend.
type Provider struct {
	Name    string   `json:"-"`
	Voices  []string `json:"voices"`
	Enabled bool     `json:"enabled"`
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}

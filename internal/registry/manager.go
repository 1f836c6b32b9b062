// Package registry checks the synthesis engines once at startup and routes
// requests to the ones that answered.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/core"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownProvider is returned for a provider that was not registered.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrUnknownVoice is returned for a voice outside the provider's catalog.
	ErrUnknownVoice = errors.New("unknown voice")
)

const (
	logFmtRegistered  = "Registered provider %s (%s) with %d voices."
	logFmtUnavailable = "Provider %s (%s) is not available; skipping."
	logFmtSynthFailed = "Synthesis failed for provider=%s voice=%s: %v"
	logFmtSynthDone   = "Synthesized provider=%s voice=%s in %s."
	logFmtRejected    = "Rejected synthesis request: %v"

	errFmtUnknownProvider = "%w: %q"
	errFmtUnknownVoice    = "%w: %q for provider %q"
)

type checkResult struct {
	available bool
	voices    []string
}

// Manager owns the provider table. It is built once and never mutated, so
// concurrent reads need no locking.
type Manager struct {
	engines   map[string]core.Engine
	providers map[string]core.Provider
	names     []string
	log       *logger.Logger
}

// New checks every engine concurrently and registers the available ones.
// Engines that report unavailable are dropped for the process lifetime.
func New(ctx context.Context, log *logger.Logger, engines ...core.Engine) *Manager {
	results := make([]checkResult, len(engines))

	var group errgroup.Group

	for index, engine := range engines {
		group.Go(func() error {
			if !engine.Available(ctx) {
				return nil
			}

			results[index] = checkResult{available: true, voices: engine.Voices(ctx)}

			return nil
		})
	}

	// Checks never return errors; an engine that fails its check is unavailable.
	_ = group.Wait()

	manager := &Manager{
		engines:   make(map[string]core.Engine),
		providers: make(map[string]core.Provider),
		log:       log,
	}

	for index, engine := range engines {
		name := engine.Name()
		if !results[index].available {
			log.Warn(logFmtUnavailable, name, engine.Kind())

			continue
		}

		manager.engines[name] = engine
		manager.providers[name] = core.Provider{
			Name:    name,
			Voices:  results[index].voices,
			Enabled: true,
		}
		manager.names = append(manager.names, name)

		log.Info(logFmtRegistered, name, engine.Kind(), len(results[index].voices))
	}

	sort.Strings(manager.names)

	return manager
}

// Providers returns a copy of the enabled providers keyed by name.
func (m *Manager) Providers() map[string]core.Provider {
	providers := make(map[string]core.Provider, len(m.providers))

	for name, provider := range m.providers {
		if !provider.Enabled {
			continue
		}

		provider.Voices = slices.Clone(provider.Voices)
		providers[name] = provider
	}

	return providers
}

// Names returns the registered provider names in sorted order.
func (m *Manager) Names() []string {
	return slices.Clone(m.names)
}

// Voices returns the catalog for provider, or nil when it is not registered.
func (m *Manager) Voices(provider string) []string {
	entry, ok := m.providers[provider]
	if !ok {
		return nil
	}

	return slices.Clone(entry.Voices)
}

// Validate reports whether provider is registered and voice is in its catalog.
func (m *Manager) Validate(provider, voice string) error {
	entry, ok := m.providers[provider]
	if !ok || !entry.Enabled {
		return fmt.Errorf(errFmtUnknownProvider, ErrUnknownProvider, provider)
	}

	if !slices.Contains(entry.Voices, voice) {
		return fmt.Errorf(errFmtUnknownVoice, ErrUnknownVoice, voice, provider)
	}

	return nil
}

// Synthesize validates the request, then delegates to the engine. Failures
// are logged with their cause and reported as false.
func (m *Manager) Synthesize(ctx context.Context, text, provider, voice, destination string) bool {
	validateErr := m.Validate(provider, voice)
	if validateErr != nil {
		m.log.Warn(logFmtRejected, validateErr)

		return false
	}

	start := time.Now()

	synthErr := m.engines[provider].Synthesize(ctx, text, voice, destination)
	if synthErr != nil {
		m.log.Error(logFmtSynthFailed, provider, voice, synthErr)

		return false
	}

	m.log.Info(logFmtSynthDone, provider, voice, time.Since(start).Round(time.Millisecond))

	return true
}

// Kinds maps each registered provider to its engine variant.
func (m *Manager) Kinds() map[string]core.Kind {
	kinds := make(map[string]core.Kind, len(m.engines))

	for name, engine := range m.engines {
		kinds[name] = engine.Kind()
	}

	return kinds
}

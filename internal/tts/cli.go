// Package tts implements the synthesis engines behind the gateway: a hosted
// MP3 API, command-line synthesizers piped into the transcoder, a local
// effects chain, and a proxy to the remote Windows SAPI service.
//
// Engines return errors; the registry decides what to log and collapses
// failures to a boolean.
package tts

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/book-expert/tts-gateway/internal/tts/text"
)

var (
	// ErrEmptyText is returned when an engine is asked to synthesize nothing.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrUnexpectedContentType is returned when a remote API does not answer with MP3.
	ErrUnexpectedContentType = errors.New("unexpected content type")
	// ErrRemoteStatus is returned for a non-success HTTP status.
	ErrRemoteStatus = errors.New("remote service returned non-OK status")
	// ErrSynthesisRejected is returned when the proxy reports success=false.
	ErrSynthesisRejected = errors.New("remote service rejected synthesis")
	// ErrServiceUnhealthy is returned when the proxy health check does not report ok.
	ErrServiceUnhealthy = errors.New("remote service is not healthy")
)

// availabilityCheck is one check: either run the command, or only look the
// executable up on PATH.
type availabilityCheck struct {
	command    pipeline.Command
	lookupOnly bool
}

func runChecks(ctx context.Context, transcoder *pipeline.Transcoder, checks []availabilityCheck) bool {
	for _, item := range checks {
		var err error
		if item.lookupOnly {
			err = transcoder.LookPath(item.command.Name)
		} else {
			err = transcoder.Run(ctx, item.command)
		}

		if err != nil {
			return false
		}
	}

	return transcoder.SelfCheck(ctx) == nil
}

// invocation is what a CLI engine runs for one request.
type invocation struct {
	command pipeline.Command
	stdin   string
	piped   bool
}

// buildFunc turns request text and a voice into an invocation.
type buildFunc func(sanitizer *text.Sanitizer, input, voice string) invocation

// CLIEngine pipes a command-line synthesizer's stdout into the transcoder.
type CLIEngine struct {
	name       string
	voices     []string
	checks     []availabilityCheck
	input      pipeline.Input
	build      buildFunc
	transcoder *pipeline.Transcoder
	sanitizer  *text.Sanitizer

	checkOnce sync.Once
	available bool
}

func newCLIEngine(
	name string,
	voices []string,
	checks []availabilityCheck,
	input pipeline.Input,
	build buildFunc,
	transcoder *pipeline.Transcoder,
) *CLIEngine {
	return &CLIEngine{
		name:       name,
		voices:     slices.Clone(voices),
		checks:     checks,
		input:      input,
		build:      build,
		transcoder: transcoder,
		sanitizer:  text.NewSanitizer(),
	}
}

// Name returns the provider name.
func (e *CLIEngine) Name() string {
	return e.name
}

// Kind reports core.KindCLIPipe.
func (e *CLIEngine) Kind() core.Kind {
	return core.KindCLIPipe
}

// Voices returns the static voice catalog.
func (e *CLIEngine) Voices(_ context.Context) []string {
	return slices.Clone(e.voices)
}

// Available runs the checks once and remembers the answer.
func (e *CLIEngine) Available(ctx context.Context) bool {
	e.checkOnce.Do(func() {
		e.available = runChecks(ctx, e.transcoder, e.checks)
	})

	return e.available
}

// Synthesize renders text with voice into an MP3 at destination.
func (e *CLIEngine) Synthesize(ctx context.Context, input, voice, destination string) error {
	if input == "" {
		return ErrEmptyText
	}

	inv := e.build(e.sanitizer, input, voice)
	if inv.piped {
		return e.transcoder.PipeWithStdin(ctx, inv.command, inv.stdin, e.input, destination)
	}

	return e.transcoder.Pipe(ctx, inv.command, e.input, destination)
}

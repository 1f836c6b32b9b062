package tts

import (
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/book-expert/tts-gateway/internal/tts/text"
)

const (
	// ProviderFlite is the Flite provider name.
	ProviderFlite = "flite"
	// DefaultFliteBinary is the Flite executable.
	DefaultFliteBinary = "flite"
)

// FliteVoices is the Flite voice catalog.
var FliteVoices = []string{"kal16", "kal", "awb", "rms", "slt"}

// NewFlite writes WAV to /dev/stdout.
func NewFlite(transcoder *pipeline.Transcoder, binary string) *CLIEngine {
	if binary == "" {
		binary = DefaultFliteBinary
	}

	build := func(sanitizer *text.Sanitizer, input, voice string) invocation {
		return invocation{command: pipeline.NewCommand(binary,
			"-voice", voice,
			"-t", sanitizer.ForCommandLine(input),
			"-o", "/dev/stdout",
		)}
	}

	checks := []availabilityCheck{{command: pipeline.NewCommand(binary, "-lv")}}

	return newCLIEngine(ProviderFlite, FliteVoices, checks, pipeline.WAVInput(), build, transcoder)
}

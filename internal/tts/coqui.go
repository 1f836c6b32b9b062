package tts

import (
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/book-expert/tts-gateway/internal/tts/text"
)

const (
	// ProviderCoqui is the Coqui TTS provider name.
	ProviderCoqui = "coqui"
	// DefaultCoquiBinary is the Coqui TTS executable.
	DefaultCoquiBinary = "tts"
)

// CoquiVoices are the model names expected to be installed.
var CoquiVoices = []string{
	"tts_models/en/ljspeech/tacotron2-DDC",
	"tts_models/en/ljspeech/glow-tts",
}

// NewCoqui writes WAV to stdout with --pipe_out.
func NewCoqui(transcoder *pipeline.Transcoder, binary string) *CLIEngine {
	if binary == "" {
		binary = DefaultCoquiBinary
	}

	build := func(sanitizer *text.Sanitizer, input, voice string) invocation {
		return invocation{command: pipeline.NewCommand(binary,
			"--text", sanitizer.ForCommandLine(input),
			"--model_name", voice,
			"--pipe_out",
		)}
	}

	checks := []availabilityCheck{{command: pipeline.NewCommand(binary, "--help")}}

	return newCLIEngine(ProviderCoqui, CoquiVoices, checks, pipeline.WAVInput(), build, transcoder)
}

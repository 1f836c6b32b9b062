package tts

import (
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/book-expert/tts-gateway/internal/tts/text"
)

const (
	// ProviderEspeak is the eSpeak NG provider name.
	ProviderEspeak = "espeak"
	// DefaultEspeakBinary is the eSpeak NG executable.
	DefaultEspeakBinary = "espeak-ng"

	espeakWordsPerMinute = "150"
)

// EspeakVoices is the eSpeak NG voice catalog.
var EspeakVoices = []string{"en", "en-us", "en-gb", "es", "fr", "de", "it", "pt"}

// NewEspeak writes WAV to stdout with --stdout.
func NewEspeak(transcoder *pipeline.Transcoder, binary string) *CLIEngine {
	if binary == "" {
		binary = DefaultEspeakBinary
	}

	build := func(sanitizer *text.Sanitizer, input, voice string) invocation {
		return invocation{command: pipeline.NewCommand(binary,
			"-v", voice,
			"-s", espeakWordsPerMinute,
			"--stdout",
			sanitizer.ForCommandLine(input),
		)}
	}

	checks := []availabilityCheck{{command: pipeline.NewCommand(binary, "--version")}}

	return newCLIEngine(ProviderEspeak, EspeakVoices, checks, pipeline.WAVInput(), build, transcoder)
}

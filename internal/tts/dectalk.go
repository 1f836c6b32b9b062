package tts

import (
	"github.com/book-expert/tts-gateway/internal/tts/audio"
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/book-expert/tts-gateway/internal/tts/text"
)

const (
	// ProviderDECtalk is the DECtalk provider name.
	ProviderDECtalk = "dectalk"
	// DefaultDECtalkBinary is the DECtalk executable.
	DefaultDECtalkBinary = "dectalk"

	dectalkSampleRate = 11025
)

// DECtalkVoices are the speaker numbers: Perfect Paul, Beautiful Betty, Huge
// Harry, Frail Frank, Doctor Dennis, Kit the Kid, Uppity Ursula, Rough Rita,
// Whispering Wendy and Variable.
var DECtalkVoices = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

// DECtalkPCM is the layout of DECtalk's stdout:raw output.
func DECtalkPCM() audio.PCM {
	return audio.PCM{
		SampleRate: dectalkSampleRate,
		BitDepth:   audio.BitDepth16,
		Channels:   1,
	}
}

// NewDECtalk streams raw PCM, so the transcoder is told the sample layout.
func NewDECtalk(transcoder *pipeline.Transcoder, binary string) *CLIEngine {
	if binary == "" {
		binary = DefaultDECtalkBinary
	}

	// DECtalkPCM is a constant, valid layout.
	pcmInput, _ := pipeline.RawPCMInput(DECtalkPCM())

	build := func(sanitizer *text.Sanitizer, input, voice string) invocation {
		return invocation{command: pipeline.NewCommand(binary,
			"-s", voice,
			"-fo", "stdout:raw",
			"-a", sanitizer.ForCommandLine(input),
		)}
	}

	checks := []availabilityCheck{{command: pipeline.NewCommand(binary, "-a", `"hi"`, "-fo", "stdout:raw")}}

	return newCLIEngine(ProviderDECtalk, DECtalkVoices, checks, pcmInput, build, transcoder)
}

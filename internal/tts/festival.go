package tts

import (
	"fmt"

	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/book-expert/tts-gateway/internal/tts/text"
)

const (
	// ProviderFestival is the Festival provider name.
	ProviderFestival = "festival"
	// DefaultFestivalBinary is the Festival executable.
	DefaultFestivalBinary = "festival"
)

// festivalScript selects a voice, synthesizes the utterance and saves the
// wave to stdout.
const festivalScript = `(voice_%s)
(utt.save.wave
  (utt.synth (Utterance Text "%s"))
  "/dev/stdout" 'wav)
`

// FestivalVoices is the Festival diphone voice catalog.
var FestivalVoices = []string{"kal_diphone", "rab_diphone", "don_diphone", "rms_diphone"}

// NewFestival feeds a Scheme script on stdin; Festival takes no text argument.
func NewFestival(transcoder *pipeline.Transcoder, binary string) *CLIEngine {
	if binary == "" {
		binary = DefaultFestivalBinary
	}

	build := func(sanitizer *text.Sanitizer, input, voice string) invocation {
		return invocation{
			command: pipeline.NewCommand(binary),
			stdin:   fmt.Sprintf(festivalScript, voice, sanitizer.ForScheme(input)),
			piped:   true,
		}
	}

	checks := []availabilityCheck{{command: pipeline.NewCommand(binary, "--version")}}

	return newCLIEngine(ProviderFestival, FestivalVoices, checks, pipeline.WAVInput(), build, transcoder)
}

package tts

import (
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/book-expert/tts-gateway/internal/tts/text"
)

const (
	// ProviderSAM is the Software Automatic Mouth provider name.
	ProviderSAM = "sam"
	// DefaultSAMBinary is the SAM executable.
	DefaultSAMBinary = "sam"
)

// samPreset holds SAM's speed, pitch, throat and mouth parameters.
type samPreset struct {
	speed, pitch, throat, mouth string
}

var samPresets = map[string]samPreset{
	"sam":    {speed: "72", pitch: "64", throat: "128", mouth: "128"},
	"elf":    {speed: "72", pitch: "64", throat: "110", mouth: "160"},
	"robot":  {speed: "92", pitch: "60", throat: "190", mouth: "190"},
	"stuffy": {speed: "82", pitch: "72", throat: "110", mouth: "105"},
	"old":    {speed: "82", pitch: "32", throat: "145", mouth: "145"},
	"alien":  {speed: "100", pitch: "64", throat: "150", mouth: "200"},
}

// SAMVoices is the SAM preset catalog.
var SAMVoices = []string{"sam", "elf", "robot", "stuffy", "old", "alien"}

// NewSAM writes WAV to /dev/stdout. Unknown presets fall back to "sam".
func NewSAM(transcoder *pipeline.Transcoder, binary string) *CLIEngine {
	if binary == "" {
		binary = DefaultSAMBinary
	}

	build := func(sanitizer *text.Sanitizer, input, voice string) invocation {
		preset, ok := samPresets[voice]
		if !ok {
			preset = samPresets["sam"]
		}

		return invocation{command: pipeline.NewCommand(binary,
			"-speed", preset.speed,
			"-pitch", preset.pitch,
			"-throat", preset.throat,
			"-mouth", preset.mouth,
			"-wav", "/dev/stdout",
			sanitizer.ForCommandLine(input),
		)}
	}

	checks := []availabilityCheck{{command: pipeline.NewCommand(binary), lookupOnly: true}}

	return newCLIEngine(ProviderSAM, SAMVoices, checks, pipeline.WAVInput(), build, transcoder)
}

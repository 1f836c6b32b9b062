package tts

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/book-expert/tts-gateway/internal/tts/text"
)

const (
	// ProviderLPC is the robot-voice effects provider name.
	ProviderLPC = "lpc"

	effectsTempPattern   = "lpc-*.wav"
	effectsWordsPerMin   = "120"
	effectsBaseVoice     = "en"
	errFmtEffectsTemp    = "failed to create intermediate file: %w"
	errFmtEffectsBase    = "base synthesis failed: %w"
	errFmtEffectsEncode  = "effects transcoding failed: %w"
	defaultEffectsPreset = "robot_high"
)

// Filter graphs per preset. Bit crushing and resampling give the low-fidelity
// character; band limits shape the formants.
var effectGraphs = map[string]string{
	"robot_low": "aformat=sample_fmts=s16:sample_rates=8000," +
		"acrusher=bits=4:mix=1," +
		"highpass=f=300," +
		"lowpass=f=3000," +
		"tremolo=f=8:d=0.4," +
		"aformat=sample_rates=22050",
	"robot_medium": "aformat=sample_rates=11025," +
		"acrusher=bits=6:mix=1," +
		"highpass=f=200," +
		"lowpass=f=4000," +
		"vibrato=f=6:d=0.3",
	"robot_high": "aformat=sample_rates=16000," +
		"acrusher=bits=8:mix=1," +
		"dynaudnorm=p=0.9",
	"speak_spell": "aformat=sample_fmts=s16:sample_rates=8000," +
		"acrusher=bits=5:mix=1," +
		"dynaudnorm=p=0.95," +
		"highpass=f=500," +
		"lowpass=f=2500," +
		"tremolo=f=25:d=0.1," +
		"volume=0.8",
	// Eight bands, all below the Nyquist frequency of the 22.05 kHz base render.
	"vocoder": "asplit=8[a0][a1][a2][a3][a4][a5][a6][a7];" +
		"[a0]bandpass=f=200:w=100[b0];" +
		"[a1]bandpass=f=400:w=100[b1];" +
		"[a2]bandpass=f=800:w=200[b2];" +
		"[a3]bandpass=f=1600:w=200[b3];" +
		"[a4]bandpass=f=3200:w=400[b4];" +
		"[a5]bandpass=f=4800:w=400[b5];" +
		"[a6]bandpass=f=6400:w=800[b6];" +
		"[a7]bandpass=f=8000:w=800[b7];" +
		"[b0][b1][b2][b3][b4][b5][b6][b7]amix=inputs=8",
}

// EffectsVoices is the effect preset catalog.
var EffectsVoices = []string{"robot_low", "robot_medium", "robot_high", "speak_spell", "vocoder"}

// FilterGraph returns the audio filter graph for a preset; unknown presets
// get robot_high.
func FilterGraph(preset string) string {
	graph, ok := effectGraphs[preset]
	if !ok {
		return effectGraphs[defaultEffectsPreset]
	}

	return graph
}

// EffectsEngine renders a base voice to a temporary WAV file and transcodes
// it once through a preset filter graph.
type EffectsEngine struct {
	base       string
	tempDir    string
	transcoder *pipeline.Transcoder
	sanitizer  *text.Sanitizer

	checkOnce sync.Once
	available bool
}

// NewEffects creates the effects engine. base is the synthesizer that writes
// the intermediate WAV (espeak-compatible -w flag); tempDir may be empty.
func NewEffects(transcoder *pipeline.Transcoder, base, tempDir string) *EffectsEngine {
	if base == "" {
		base = DefaultEspeakBinary
	}

	return &EffectsEngine{
		base:       base,
		tempDir:    tempDir,
		transcoder: transcoder,
		sanitizer:  text.NewSanitizer(),
	}
}

// Name returns the provider name.
func (e *EffectsEngine) Name() string {
	return ProviderLPC
}

// Kind reports core.KindEffects.
func (e *EffectsEngine) Kind() core.Kind {
	return core.KindEffects
}

// Voices returns the preset catalog.
func (e *EffectsEngine) Voices(_ context.Context) []string {
	return slices.Clone(EffectsVoices)
}

// Available checks both the base synthesizer and the transcoder, once.
func (e *EffectsEngine) Available(ctx context.Context) bool {
	e.checkOnce.Do(func() {
		checks := []availabilityCheck{{command: pipeline.NewCommand(e.base, "--version")}}
		e.available = runChecks(ctx, e.transcoder, checks)
	})

	return e.available
}

// Synthesize renders input and applies the preset. The intermediate file is
// removed on every return path.
func (e *EffectsEngine) Synthesize(ctx context.Context, input, voice, destination string) error {
	if input == "" {
		return ErrEmptyText
	}

	intermediate, createErr := os.CreateTemp(e.tempDir, effectsTempPattern)
	if createErr != nil {
		return fmt.Errorf(errFmtEffectsTemp, createErr)
	}

	intermediatePath := intermediate.Name()

	defer func() {
		_ = os.Remove(intermediatePath)
	}()

	closeErr := intermediate.Close()
	if closeErr != nil {
		return fmt.Errorf(errFmtEffectsTemp, closeErr)
	}

	baseCmd := pipeline.NewCommand(e.base,
		"-s", effectsWordsPerMin,
		"-v", effectsBaseVoice,
		"-w", intermediatePath,
		e.sanitizer.ForCommandLine(input),
	)

	runErr := e.transcoder.Run(ctx, baseCmd)
	if runErr != nil {
		return fmt.Errorf(errFmtEffectsBase, runErr)
	}

	encodeErr := e.transcoder.EncodeFile(ctx, intermediatePath, FilterGraph(voice), destination)
	if encodeErr != nil {
		return fmt.Errorf(errFmtEffectsEncode, encodeErr)
	}

	return nil
}

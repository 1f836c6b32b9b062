package tts_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/testutil/fakebin"
	"github.com/book-expert/tts-gateway/internal/tts"
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIEngines_Arguments(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		build    func(*pipeline.Transcoder, string) *tts.CLIEngine
		provider string
		voice    string
		want     string
	}{
		{
			name:     "espeak",
			build:    tts.NewEspeak,
			provider: tts.ProviderEspeak,
			voice:    "en-gb",
			want:     "RIFF-v|en-gb|-s|150|--stdout|Hello world|",
		},
		{
			name:     "flite",
			build:    tts.NewFlite,
			provider: tts.ProviderFlite,
			voice:    "slt",
			want:     "RIFF-voice|slt|-t|Hello world|-o|/dev/stdout|",
		},
		{
			name:     "dectalk",
			build:    tts.NewDECtalk,
			provider: tts.ProviderDECtalk,
			voice:    "3",
			want:     "RIFF-s|3|-fo|stdout:raw|-a|Hello world|",
		},
		{
			name:     "sam",
			build:    tts.NewSAM,
			provider: tts.ProviderSAM,
			voice:    "robot",
			want:     "RIFF-speed|92|-pitch|60|-throat|190|-mouth|190|-wav|/dev/stdout|Hello world|",
		},
		{
			name:     "coqui",
			build:    tts.NewCoqui,
			provider: tts.ProviderCoqui,
			voice:    "tts_models/en/ljspeech/glow-tts",
			want:     "RIFF--text|Hello world|--model_name|tts_models/en/ljspeech/glow-tts|--pipe_out|",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			engine := tc.build(pipeline.New(bins["ffmpeg"]), bins["synth"])
			destination := filepath.Join(t.TempDir(), "out.mp3")

			err := engine.Synthesize(context.Background(), "Hello\nworld", tc.voice, destination)
			require.NoError(t, err)

			assert.Equal(t, tc.provider, engine.Name())
			assert.Equal(t, core.KindCLIPipe, engine.Kind())
			assert.Equal(t, tc.want, readFile(t, destination))
		})
	}
}

func TestDECtalk_RawPCMInput(t *testing.T) {
	t.Parallel()

	engine := tts.NewDECtalk(pipeline.New(bins["ffmpeg"]), bins["synth"])
	destination := filepath.Join(t.TempDir(), "out.mp3")

	require.NoError(t, engine.Synthesize(context.Background(), "hi", "0", destination))
	assert.Contains(t, readArgs(t, destination), "-f s16le -ar 11025 -ac 1 -i pipe:0")
}

func TestEspeak_WAVInput(t *testing.T) {
	t.Parallel()

	engine := tts.NewEspeak(pipeline.New(bins["ffmpeg"]), bins["synth"])
	destination := filepath.Join(t.TempDir(), "out.mp3")

	require.NoError(t, engine.Synthesize(context.Background(), "hi", "en", destination))

	args := readArgs(t, destination)
	assert.Contains(t, args, "-f wav -i pipe:0")
	assert.NotContains(t, args, "-ar")
}

func TestFestival_ScriptOnStdin(t *testing.T) {
	t.Parallel()

	engine := tts.NewFestival(pipeline.New(bins["ffmpeg"]), bins["stdin-synth"])
	destination := filepath.Join(t.TempDir(), "out.mp3")

	err := engine.Synthesize(context.Background(), `Say "hi"`, "kal_diphone", destination)
	require.NoError(t, err)

	script := readFile(t, destination)
	assert.Contains(t, script, "(voice_kal_diphone)")
	assert.Contains(t, script, `(Utterance Text "Say \"hi\"")`)
	assert.Contains(t, script, `"/dev/stdout" 'wav)`)
}

func TestCLIEngine_LeadingDashIsNotAnOption(t *testing.T) {
	t.Parallel()

	engine := tts.NewEspeak(pipeline.New(bins["ffmpeg"]), bins["synth"])
	destination := filepath.Join(t.TempDir(), "out.mp3")

	require.NoError(t, engine.Synthesize(context.Background(), "-v fr", "en", destination))
	assert.Equal(t, "RIFF-v|en|-s|150|--stdout| -v fr|", readFile(t, destination))
}

func TestCLIEngine_EmptyText(t *testing.T) {
	t.Parallel()

	counter := &fakebin.Counter{}
	engine := tts.NewEspeak(pipeline.New(bins["ffmpeg"], pipeline.WithCommandFunc(counter.CommandContext)), bins["synth"])

	err := engine.Synthesize(context.Background(), "", "en", filepath.Join(t.TempDir(), "out.mp3"))
	require.ErrorIs(t, err, tts.ErrEmptyText)
	assert.Zero(t, counter.Spawned())
}

func TestCLIEngine_SilentTranscoderFails(t *testing.T) {
	t.Parallel()

	engine := tts.NewEspeak(pipeline.New(bins["ffmpeg-silent"]), bins["synth"])
	destination := filepath.Join(t.TempDir(), "out.mp3")

	err := engine.Synthesize(context.Background(), "hi", "en", destination)
	require.ErrorIs(t, err, pipeline.ErrOutputMissing)
	assert.NoFileExists(t, destination)
}

func TestCLIEngine_SpawnsTwoProcesses(t *testing.T) {
	t.Parallel()

	counter := &fakebin.Counter{}
	engine := tts.NewFlite(pipeline.New(bins["ffmpeg"], pipeline.WithCommandFunc(counter.CommandContext)), bins["synth"])

	require.NoError(t, engine.Synthesize(context.Background(), "hi", "kal", filepath.Join(t.TempDir(), "out.mp3")))
	assert.Equal(t, int64(2), counter.Spawned())
}

func TestCLIEngine_AvailableIsCached(t *testing.T) {
	t.Parallel()

	counter := &fakebin.Counter{}
	engine := tts.NewEspeak(pipeline.New(bins["ffmpeg"], pipeline.WithCommandFunc(counter.CommandContext)), bins["synth"])

	assert.True(t, engine.Available(context.Background()))
	assert.True(t, engine.Available(context.Background()))
	assert.Equal(t, int64(2), counter.Spawned(), "engine check and transcoder check run once")
}

func TestCLIEngine_Unavailable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		transcoder string
		binary     string
	}{
		{name: "engine check fails", transcoder: bins["ffmpeg"], binary: bins["failing"]},
		{name: "engine missing", transcoder: bins["ffmpeg"], binary: filepath.Join(t.TempDir(), "missing")},
		{name: "transcoder fails", transcoder: bins["ffmpeg-fail"], binary: bins["synth"]},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			engine := tts.NewEspeak(pipeline.New(tc.transcoder), tc.binary)
			assert.False(t, engine.Available(context.Background()))
		})
	}
}

func TestSAM_LookupOnlyCheck(t *testing.T) {
	t.Parallel()

	counter := &fakebin.Counter{}
	engine := tts.NewSAM(pipeline.New(bins["ffmpeg"], pipeline.WithCommandFunc(counter.CommandContext)), bins["synth"])

	assert.True(t, engine.Available(context.Background()))
	assert.Equal(t, int64(1), counter.Spawned(), "only the transcoder check spawns")
}

func TestCLIEngine_VoicesAreCopies(t *testing.T) {
	t.Parallel()

	engine := tts.NewEspeak(pipeline.New(bins["ffmpeg"]), bins["synth"])

	voices := engine.Voices(context.Background())
	require.Len(t, voices, 8)

	voices[0] = "changed"
	assert.Equal(t, "en", engine.Voices(context.Background())[0])
}

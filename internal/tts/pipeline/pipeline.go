// Package pipeline runs synthesis commands and transcodes their raw audio
// output into MP3 files.
//
// Every engine that produces WAV or raw PCM goes through a Transcoder. The
// Transcoder owns the only place processes are spawned, so handle lifecycle
// (closing the parent's pipe ends, waiting on both stages) is implemented once.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/book-expert/tts-gateway/internal/tts/audio"
	"golang.org/x/sync/errgroup"
)

// DefaultBinary is the transcoder looked up on PATH when none is configured.
const DefaultBinary = "ffmpeg"

const (
	pipeInput      = "pipe:0"
	stderrTailSize = 512
)

const (
	errFmtSourceStart   = "%w: %s: %w"
	errFmtSinkStart     = "%w: %s: %w"
	errFmtTranscoder    = "%w: %w (stderr: %s)"
	errFmtTranscoderSrc = "%w: %w (stderr: %s; source: %v)"
	errFmtOutputMissing = "%w: %s"
	errFmtRunFailed     = "%w: %s: %w (output: %s)"
)

var (
	// ErrSourceStart is returned when the synthesis command cannot be launched.
	ErrSourceStart = errors.New("failed to start synthesis command")
	// ErrSinkStart is returned when the transcoder cannot be launched.
	ErrSinkStart = errors.New("failed to start transcoder")
	// ErrTranscoderFailed is returned when the transcoder exits non-zero.
	ErrTranscoderFailed = errors.New("transcoder failed")
	// ErrOutputMissing is returned when the transcoder exits zero but left no
	// file or an empty one.
	ErrOutputMissing = errors.New("transcoder produced no output file")
	// ErrCommandFailed is returned by Run when a command exits non-zero.
	ErrCommandFailed = errors.New("command failed")
)

// CommandFunc builds an unstarted process. It matches exec.CommandContext.
type CommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

// Command names an executable and its arguments.
type Command struct {
	Name string
	Args []string
}

// NewCommand is shorthand for Command{Name: name, Args: args}.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Input describes how the transcoder should read its input stream.
type Input struct {
	args []string
}

// WAVInput is a self-describing WAV stream.
func WAVInput() Input {
	return Input{args: []string{"-f", "wav"}}
}

// RawPCMInput is headerless PCM. Sample format, rate and channel count are
// all passed explicitly; omitting any of them yields garbled output.
func RawPCMInput(pcm audio.PCM) (Input, error) {
	validateErr := pcm.Validate()
	if validateErr != nil {
		return Input{}, validateErr
	}

	return Input{args: []string{
		"-f", pcm.SampleFormat(),
		"-ar", strconv.Itoa(pcm.SampleRate),
		"-ac", strconv.Itoa(pcm.Channels),
	}}, nil
}

// InputFor maps a payload format tag onto an Input.
func InputFor(format audio.Format, pcm audio.PCM) (Input, error) {
	switch format {
	case audio.FormatWAV:
		return WAVInput(), nil
	case audio.FormatRawPCM:
		return RawPCMInput(pcm.WithDefaults())
	default:
		return Input{}, fmt.Errorf("%w: %q", audio.ErrUnknownFormat, format)
	}
}

// AdaptiveMP3Args returns the output encoding settings: VBR MP3, mono, tuned
// compression, and no -ar so the transcoder picks the rate from its input.
func AdaptiveMP3Args() []string {
	return []string{
		"-acodec", "mp3",
		"-q:a", "2",
		"-compression_level", "2",
		"-joint_stereo", "1",
		"-ac", "1",
	}
}

// Transcoder drives the external audio transcoder.
type Transcoder struct {
	binary  string
	command CommandFunc
}

// Option configures a Transcoder.
type Option func(*Transcoder)

// WithCommandFunc replaces exec.CommandContext for every process the
// Transcoder spawns.
func WithCommandFunc(fn CommandFunc) Option {
	return func(t *Transcoder) {
		t.command = fn
	}
}

// New creates a Transcoder for the given binary.
func New(binary string, opts ...Option) *Transcoder {
	if binary == "" {
		binary = DefaultBinary
	}

	transcoder := &Transcoder{
		binary:  binary,
		command: exec.CommandContext,
	}

	for _, opt := range opts {
		opt(transcoder)
	}

	return transcoder
}

// Binary returns the transcoder executable.
func (t *Transcoder) Binary() string {
	return t.binary
}

// SelfCheck verifies the transcoder runs.
func (t *Transcoder) SelfCheck(ctx context.Context) error {
	return t.Run(ctx, NewCommand(t.binary, "-version"))
}

// LookPath reports whether an executable can be found without running it.
func (t *Transcoder) LookPath(name string) error {
	_, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("executable %q not found: %w", name, err)
	}

	return nil
}

// Run executes a command to completion.
func (t *Transcoder) Run(ctx context.Context, cmd Command) error {
	// #nosec G204 -- commands are assembled by engines from fixed binaries and argv slices
	process := t.command(ctx, cmd.Name, cmd.Args...)

	output, err := process.CombinedOutput()
	if err != nil {
		return fmt.Errorf(errFmtRunFailed, ErrCommandFailed, cmd.Name, err, tail(output))
	}

	return nil
}

// Pipe runs src with its stdout wired into the transcoder and writes the MP3
// to destination.
func (t *Transcoder) Pipe(ctx context.Context, src Command, input Input, destination string) error {
	return t.pipe(ctx, src, nil, input, destination)
}

// PipeWithStdin is Pipe for backends that read their script from stdin. The
// payload is written and stdin closed while the transcoder drains stdout.
func (t *Transcoder) PipeWithStdin(
	ctx context.Context,
	src Command,
	payload string,
	input Input,
	destination string,
) error {
	return t.pipe(ctx, src, strings.NewReader(payload), input, destination)
}

// EncodeBytes transcodes an in-memory payload.
func (t *Transcoder) EncodeBytes(ctx context.Context, data []byte, input Input, destination string) error {
	args := encodeArgs(input.args, pipeInput, "", destination)

	// #nosec G204 -- binary comes from configuration, args are built above
	sink := t.command(ctx, t.binary, args...)
	sink.Stdin = bytes.NewReader(data)

	return t.runSink(sink, destination)
}

// EncodeFile transcodes an audio file through an audio filter graph.
func (t *Transcoder) EncodeFile(ctx context.Context, source, filterGraph, destination string) error {
	args := encodeArgs(nil, source, filterGraph, destination)

	// #nosec G204 -- binary comes from configuration, args are built above
	sink := t.command(ctx, t.binary, args...)

	return t.runSink(sink, destination)
}

func (t *Transcoder) pipe(
	ctx context.Context,
	src Command,
	stdin io.Reader,
	input Input,
	destination string,
) error {
	reader, writer, pipeErr := os.Pipe()
	if pipeErr != nil {
		return fmt.Errorf("failed to create pipe: %w", pipeErr)
	}

	// #nosec G204 -- engines assemble src from fixed binaries and argv slices
	source := t.command(ctx, src.Name, src.Args...)
	source.Stdin = stdin
	source.Stdout = writer

	var sourceStderr bytes.Buffer
	source.Stderr = &sourceStderr

	// #nosec G204 -- binary comes from configuration, args are built here
	sink := t.command(ctx, t.binary, encodeArgs(input.args, pipeInput, "", destination)...)
	sink.Stdin = reader
	sink.Stdout = io.Discard

	var sinkStderr bytes.Buffer
	sink.Stderr = &sinkStderr

	sourceStartErr := source.Start()

	// The child holds its own copy of the write end. Ours must go or the
	// transcoder never sees EOF.
	_ = writer.Close()

	if sourceStartErr != nil {
		_ = reader.Close()

		return fmt.Errorf(errFmtSourceStart, ErrSourceStart, src.Name, sourceStartErr)
	}

	sinkStartErr := sink.Start()

	_ = reader.Close()

	if sinkStartErr != nil {
		// With every read end closed the source dies on its next write.
		_ = source.Wait()

		return fmt.Errorf(errFmtSinkStart, ErrSinkStart, t.binary, sinkStartErr)
	}

	var (
		group     errgroup.Group
		sourceErr error
	)

	group.Go(func() error {
		sourceErr = source.Wait()

		return nil
	})

	group.Go(func() error {
		return sink.Wait()
	})

	sinkErr := group.Wait()
	if sinkErr != nil {
		if sourceErr != nil {
			return fmt.Errorf(errFmtTranscoderSrc, ErrTranscoderFailed, sinkErr,
				tail(sinkStderr.Bytes()), sourceErr)
		}

		return fmt.Errorf(errFmtTranscoder, ErrTranscoderFailed, sinkErr, tail(sinkStderr.Bytes()))
	}

	return verifyOutput(destination)
}

func (t *Transcoder) runSink(sink *exec.Cmd, destination string) error {
	var stderr bytes.Buffer
	sink.Stderr = &stderr

	runErr := sink.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return fmt.Errorf(errFmtTranscoder, ErrTranscoderFailed, runErr, tail(stderr.Bytes()))
		}

		return fmt.Errorf(errFmtSinkStart, ErrSinkStart, t.binary, runErr)
	}

	return verifyOutput(destination)
}

func encodeArgs(inputArgs []string, source, filterGraph, destination string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	args = append(args, inputArgs...)
	args = append(args, "-i", source)

	if filterGraph != "" {
		args = append(args, "-af", filterGraph)
	}

	args = append(args, AdaptiveMP3Args()...)

	return append(args, destination)
}

// verifyOutput enforces that a zero exit code alone is not success.
func verifyOutput(destination string) error {
	info, statErr := os.Stat(destination)
	if statErr != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return fmt.Errorf(errFmtOutputMissing, ErrOutputMissing, destination)
	}

	return nil
}

func tail(output []byte) string {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) > stderrTailSize {
		trimmed = trimmed[len(trimmed)-stderrTailSize:]
	}

	return string(trimmed)
}

// Package fakebin writes shell scripts that stand in for the transcoder and
// the synthesis binaries in tests.
//
// Scripts should be installed from TestMain, before any test spawns a
// process: writing an executable while another goroutine forks can fail
// with "text file busy".
package fakebin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync/atomic"
)

const scriptPermissions = 0o755

// Transcoder copies its input (stdin for pipe:0, otherwise the -i file) to
// its last argument and records its argv next to it as "<dest>.args".
// "-version" succeeds without touching the filesystem.
const Transcoder = `#!/bin/sh
if [ "$1" = "-version" ]; then echo "fake transcoder"; exit 0; fi
input=""
prev=""
out=""
for arg in "$@"; do
  if [ "$prev" = "-i" ]; then input="$arg"; fi
  prev="$arg"
  out="$arg"
done
printf '%s\n' "$@" > "$out.args"
if [ "$input" = "pipe:0" ]; then cat > "$out"; else cat "$input" > "$out"; fi
`

// SilentTranscoder exits zero without writing anything.
const SilentTranscoder = `#!/bin/sh
cat > /dev/null
exit 0
`

// EmptyTranscoder exits zero after creating an empty file at its last argument.
const EmptyTranscoder = `#!/bin/sh
cat > /dev/null
for arg in "$@"; do out="$arg"; done
: > "$out"
exit 0
`

// FailingTranscoder drains its input and exits non-zero.
const FailingTranscoder = `#!/bin/sh
cat > /dev/null
echo "invalid data found when processing input" >&2
exit 1
`

// Synth prints a WAV-looking header followed by its arguments to stdout.
const Synth = `#!/bin/sh
printf 'RIFF'
printf '%s|' "$@"
`

// StdinSynth echoes its stdin to stdout.
const StdinSynth = `#!/bin/sh
cat
`

// FileSynth writes a WAV-looking payload to the argument following -w.
const FileSynth = `#!/bin/sh
prev=""
for arg in "$@"; do
  if [ "$prev" = "-w" ]; then printf 'RIFF-base' > "$arg"; fi
  prev="$arg"
done
`

// Failing exits non-zero.
const Failing = `#!/bin/sh
exit 3
`

// Supported reports whether the scripts can run on this platform.
func Supported() bool {
	return runtime.GOOS != "windows"
}

// Install writes each script into dir and returns the absolute paths by name.
func Install(dir string, scripts map[string]string) (map[string]string, error) {
	paths := make(map[string]string, len(scripts))

	for name, body := range scripts {
		path := filepath.Join(dir, name)

		writeErr := os.WriteFile(path, []byte(body), scriptPermissions)
		if writeErr != nil {
			return nil, fmt.Errorf("failed to write fake binary %s: %w", name, writeErr)
		}

		paths[name] = path
	}

	return paths, nil
}

// Counter wraps exec.CommandContext and counts spawned processes.
type Counter struct {
	spawned atomic.Int64
}

// CommandContext matches pipeline.CommandFunc.
func (c *Counter) CommandContext(ctx context.Context, name string, arg ...string) *exec.Cmd {
	c.spawned.Add(1)

	return exec.CommandContext(ctx, name, arg...)
}

// Spawned returns the number of commands built so far.
func (c *Counter) Spawned() int64 {
	return c.spawned.Load()
}

// Package audiocache memoizes synthesis results as MP3 files named after a
// fingerprint of the request.
package audiocache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/tts/ttsutils"
	"github.com/google/uuid"
)

// Extension is the suffix of every cached file.
const Extension = ".mp3"

const (
	partialMarker = ".partial-"

	logFmtCacheHit  = "Cache hit for %s."
	logFmtCacheMiss = "Cache miss for %s; synthesizing with %s/%s."
	logFmtPublished = "Published %s (%s)."

	errFmtSynthesis = "%w: provider %q voice %q"
	errFmtPublish   = "failed to publish %s: %w"
	errFmtFilename  = "%w: %q"
)

var (
	// ErrSynthesisFailed is returned when the synthesizer reports failure.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrInvalidFilename is returned for names that are not a cached MP3 in
	// the cache directory.
	ErrInvalidFilename = errors.New("invalid audio filename")
	// ErrNotFound is returned when a valid name has no file.
	ErrNotFound = errors.New("audio file not found")
)

// Entry describes one cached file.
type Entry struct {
	Filename string
	Size     int64
	Modified time.Time
}

// Fingerprint derives the cache filename for a request. Each field is length
// prefixed so that no two distinct triples hash the same input.
func Fingerprint(text, provider, voice string) string {
	hash := sha256.New()

	for _, field := range []string{text, provider, voice} {
		var length [8]byte

		binary.BigEndian.PutUint64(length[:], uint64(len(field)))
		hash.Write(length[:])
		hash.Write([]byte(field))
	}

	return hex.EncodeToString(hash.Sum(nil)) + Extension
}

// Cache resolves requests to files in a single flat directory.
type Cache struct {
	dir   string
	synth core.Synthesizer
	log   *logger.Logger
}

// New creates the cache directory if needed.
func New(dir string, synth core.Synthesizer, log *logger.Logger) (*Cache, error) {
	mkdirErr := ttsutils.EnsureDir(dir)
	if mkdirErr != nil {
		return nil, mkdirErr
	}

	return &Cache{dir: dir, synth: synth, log: log}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Resolve returns the filename for the request, synthesizing it on a miss.
// The engine writes to a unique in-progress file that is renamed into place
// only on success, so the fingerprint name never holds a partial file.
func (c *Cache) Resolve(ctx context.Context, text, provider, voice string) (string, error) {
	filename := Fingerprint(text, provider, voice)
	target := filepath.Join(c.dir, filename)

	if ttsutils.IsRegularFile(target) {
		c.log.Info(logFmtCacheHit, filename)

		return filename, nil
	}

	c.log.Info(logFmtCacheMiss, filename, provider, voice)

	partial := filepath.Join(c.dir,
		strings.TrimSuffix(filename, Extension)+partialMarker+uuid.NewString()+Extension)

	if !c.synth.Synthesize(ctx, text, provider, voice, partial) {
		_ = os.Remove(partial)

		return "", fmt.Errorf(errFmtSynthesis, ErrSynthesisFailed, provider, voice)
	}

	renameErr := os.Rename(partial, target)
	if renameErr != nil {
		_ = os.Remove(partial)

		return "", fmt.Errorf(errFmtPublish, filename, renameErr)
	}

	if info, statErr := os.Stat(target); statErr == nil {
		c.log.Info(logFmtPublished, filename, ttsutils.FormatFileSize(info.Size()))
	}

	return filename, nil
}

// Path maps a cached filename to its location, rejecting anything that is not
// a plain published MP3 name.
func (c *Cache) Path(filename string) (string, error) {
	if !validFilename(filename) {
		return "", fmt.Errorf(errFmtFilename, ErrInvalidFilename, filename)
	}

	path := filepath.Join(c.dir, filename)
	if !ttsutils.IsRegularFile(path) {
		return "", fmt.Errorf(errFmtFilename, ErrNotFound, filename)
	}

	return path, nil
}

// List returns the published files, newest first.
func (c *Cache) List() ([]Entry, error) {
	dirEntries, readErr := os.ReadDir(c.dir)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", readErr)
	}

	entries := make([]Entry, 0, len(dirEntries))

	for _, dirEntry := range dirEntries {
		if !dirEntry.Type().IsRegular() || !validFilename(dirEntry.Name()) {
			continue
		}

		info, infoErr := dirEntry.Info()
		if infoErr != nil {
			continue
		}

		entries = append(entries, Entry{
			Filename: dirEntry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Modified.After(entries[j].Modified)
	})

	return entries, nil
}

func validFilename(filename string) bool {
	if filename == "" || filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) {
		return false
	}

	if strings.HasPrefix(filename, ".") || strings.Contains(filename, partialMarker) {
		return false
	}

	return strings.HasSuffix(filename, Extension)
}

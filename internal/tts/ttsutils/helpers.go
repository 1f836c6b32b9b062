// Package ttsutils holds the small file helpers shared by the cache, the
// HTTP layer and the batch client.
package ttsutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const defaultDirPermissions = 0o750

const (
	formatSeconds = "%.1fs"
	formatMinutes = "%dm %.1fs"
	formatHours   = "%dh %dm"
)

// Audio extensions accepted as download targets.
const (
	extMP3 = ".mp3"
	extWAV = ".wav"
	extOGG = ".ogg"
)

const errFmtFailedToCreateDir = "failed to create directory %s: %w"

// EnsureDir creates path and its parents when missing.
func EnsureDir(path string) error {
	mkdirErr := os.MkdirAll(path, defaultDirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
	}

	return nil
}

// IsRegularFile reports whether path exists and is a regular file.
func IsRegularFile(path string) bool {
	info, statErr := os.Stat(path)

	return statErr == nil && info.Mode().IsRegular()
}

// FormatDuration renders d as "45.2s", "5m 30.5s" or "1h 15m".
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()

	switch {
	case d < time.Minute:
		return fmt.Sprintf(formatSeconds, seconds)
	case d < time.Hour:
		minutes := int(d / time.Minute)

		return fmt.Sprintf(formatMinutes, minutes, seconds-float64(minutes*60))
	default:
		hours := int(d / time.Hour)
		minutes := int((d % time.Hour) / time.Minute)

		return fmt.Sprintf(formatHours, hours, minutes)
	}
}

// FormatFileSize renders a byte count in binary units, e.g. "1.5 KiB".
// Negative counts render as zero.
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}

	return humanize.IBytes(uint64(bytes))
}

// IsAudioFile reports whether filename carries an audio extension the
// gateway can produce or relay.
func IsAudioFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case extMP3, extWAV, extOGG:
		return true
	default:
		return false
	}
}


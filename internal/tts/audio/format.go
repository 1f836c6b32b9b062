// Package audio describes the audio payloads that reach the transcoder and
// validates the out-of-band parameters raw PCM needs.
package audio

import (
	"errors"
	"fmt"
)

// Defaults for raw PCM when a backend does not declare its parameters.
const (
	DefaultSampleRate = 22050
	DefaultBitDepth   = 16
	DefaultChannels   = 1
)

// Supported bit depths.
const (
	BitDepth8  = 8
	BitDepth16 = 16
	BitDepth24 = 24
	BitDepth32 = 32
)

// Validation limits.
const (
	MaxSampleRate = 192000
	MaxChannels   = 8
)

const (
	errFmtSampleRateRange = "%w: sample rate must be between 1 and %d Hz, got %d"
	errFmtBitDepthValues  = "%w: bit depth must be 8, 16, 24, or 32, got %d"
	errFmtChannelsRange   = "%w: channels must be between 1 and %d, got %d"
	errFmtUnknownFormat   = "%w: %q"
)

var (
	// ErrInvalidPCM is returned when raw PCM parameters cannot be decoded.
	ErrInvalidPCM = errors.New("invalid pcm parameters")
	// ErrUnknownFormat is returned for a payload format tag this package does not know.
	ErrUnknownFormat = errors.New("unknown audio format")
)

// Format is the container tag a backend declares for its payload.
type Format string

// Format tags, matching the remote proxy's wire values.
const (
	FormatWAV    Format = "wav"
	FormatRawPCM Format = "raw_pcm"
)

// ParseFormat maps a wire tag onto a Format.
func ParseFormat(tag string) (Format, error) {
	switch Format(tag) {
	case FormatWAV, FormatRawPCM:
		return Format(tag), nil
	default:
		return "", fmt.Errorf(errFmtUnknownFormat, ErrUnknownFormat, tag)
	}
}

// PCM holds the parameters raw PCM carries no header for.
type PCM struct {
	SampleRate int `json:"sample_rate"`
	BitDepth   int `json:"bit_depth"`
	Channels   int `json:"channels"`
}

// NewDefaultPCM returns 16-bit mono PCM at 22.05 kHz.
func NewDefaultPCM() PCM {
	return PCM{
		SampleRate: DefaultSampleRate,
		BitDepth:   DefaultBitDepth,
		Channels:   DefaultChannels,
	}
}

// WithDefaults fills zero fields from NewDefaultPCM.
func (p PCM) WithDefaults() PCM {
	def := NewDefaultPCM()

	if p.SampleRate == 0 {
		p.SampleRate = def.SampleRate
	}

	if p.BitDepth == 0 {
		p.BitDepth = def.BitDepth
	}

	if p.Channels == 0 {
		p.Channels = def.Channels
	}

	return p
}

// Validate checks the parameters are within decodable bounds.
func (p PCM) Validate() error {
	sampleRateErr := validateSampleRate(p.SampleRate)
	if sampleRateErr != nil {
		return sampleRateErr
	}

	bitDepthErr := validateBitDepth(p.BitDepth)
	if bitDepthErr != nil {
		return bitDepthErr
	}

	return validateChannels(p.Channels)
}

// SampleFormat returns the transcoder's name for the sample layout.
// 8-bit PCM is unsigned; wider depths are signed little-endian.
func (p PCM) SampleFormat() string {
	if p.BitDepth == BitDepth8 {
		return "u8"
	}

	return fmt.Sprintf("s%dle", p.BitDepth)
}

func validateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MaxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidPCM, MaxSampleRate, sampleRate)
	}

	return nil
}

func validateBitDepth(bitDepth int) error {
	switch bitDepth {
	case BitDepth8, BitDepth16, BitDepth24, BitDepth32:
		return nil
	default:
		return fmt.Errorf(errFmtBitDepthValues, ErrInvalidPCM, bitDepth)
	}
}

func validateChannels(channels int) error {
	if channels <= 0 || channels > MaxChannels {
		return fmt.Errorf(errFmtChannelsRange, ErrInvalidPCM, MaxChannels, channels)
	}

	return nil
}

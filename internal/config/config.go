// Package config provides the configuration structure for the tts-gateway.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Defaults applied to fields left empty in the TOML file.
const (
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 8887
	DefaultMaxTextLength    = 1000
	DefaultReadTimeout      = 15
	DefaultWriteTimeout     = 120
	DefaultAudioDir         = "audio_files"
	DefaultLogsDir          = "logs"
	DefaultTranscoder       = "ffmpeg"
	DefaultPollinationsURL  = "https://text.pollinations.ai"
	DefaultPollinationsMdl  = "openai-audio"
	DefaultWindowsURL       = "http://localhost:5000"
	DefaultWindowsTimeout   = 30
	DefaultSynthesisSubject = "tts.synthesize"
	DefaultAudioBucket      = "TTS_AUDIO"
	DefaultWorkerProvider   = "espeak"
)

var (
	// ErrInvalidPort is returned for a port outside 1..65535.
	ErrInvalidPort = errors.New("server port must be between 1 and 65535")
	// ErrInvalidTextLength is returned for a non-positive text limit.
	ErrInvalidTextLength = errors.New("max_text_length must be positive")
	// ErrInvalidTimeout is returned for a negative timeout.
	ErrInvalidTimeout = errors.New("timeouts must not be negative")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host                string   `toml:"host"`
	Port                int      `toml:"port"`
	MaxTextLength       int      `toml:"max_text_length"`
	CORSOrigins         []string `toml:"cors_origins"`
	ReadTimeoutSeconds  int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ReadTimeout returns the read timeout as a duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a duration.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	AudioDir    string `toml:"audio_dir"`
	BaseLogsDir string `toml:"base_logs_dir"`
	TempDir     string `toml:"temp_dir"`
}

// TranscoderConfig names the audio transcoder executable.
type TranscoderConfig struct {
	Binary string `toml:"binary"`
}

// EnginesConfig names the executable of each command-line engine. Empty
// values fall back to the engine's own default.
type EnginesConfig struct {
	Espeak      string `toml:"espeak"`
	Festival    string `toml:"festival"`
	Flite       string `toml:"flite"`
	DECtalk     string `toml:"dectalk"`
	SAM         string `toml:"sam"`
	Coqui       string `toml:"coqui"`
	EffectsBase string `toml:"effects_base"`
}

// PollinationsConfig holds the hosted API settings.
type PollinationsConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// WindowsConfig holds the remote SAPI proxy settings.
type WindowsConfig struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the proxy call timeout as a duration.
func (w WindowsConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// NATSConfig holds the configuration for NATS. An empty URL disables the
// job worker.
type NATSConfig struct {
	URL                    string `toml:"url"`
	SynthesisSubject       string `toml:"synthesis_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	DefaultProvider        string `toml:"default_provider"`
}

// Enabled reports whether the worker should run.
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Paths        PathsConfig        `toml:"paths"`
	Transcoder   TranscoderConfig   `toml:"transcoder"`
	Engines      EnginesConfig      `toml:"engines"`
	Pollinations PollinationsConfig `toml:"pollinations"`
	Windows      WindowsConfig      `toml:"windows"`
	NATS         NATSConfig         `toml:"nats"`
}

// Load loads the configuration for the tts-gateway through the central
// configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile loads the configuration from a TOML file on disk.
func LoadFile(path string) (*Config, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, readErr)
	}

	return Parse(data)
}

// Parse decodes TOML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return cfg, nil
}

// ApplyDefaults fills every empty field with its default.
func (c *Config) ApplyDefaults() {
	setString(&c.Server.Host, DefaultHost)
	setInt(&c.Server.Port, DefaultPort)
	setInt(&c.Server.MaxTextLength, DefaultMaxTextLength)
	setInt(&c.Server.ReadTimeoutSeconds, DefaultReadTimeout)
	setInt(&c.Server.WriteTimeoutSeconds, DefaultWriteTimeout)

	setString(&c.Paths.AudioDir, DefaultAudioDir)
	setString(&c.Paths.BaseLogsDir, DefaultLogsDir)

	if c.Paths.TempDir == "" {
		c.Paths.TempDir = os.TempDir()
	}

	setString(&c.Transcoder.Binary, DefaultTranscoder)

	setString(&c.Pollinations.BaseURL, DefaultPollinationsURL)
	setString(&c.Pollinations.Model, DefaultPollinationsMdl)

	setInt(&c.Windows.TimeoutSeconds, DefaultWindowsTimeout)

	setString(&c.Windows.URL, DefaultWindowsURL)

	setString(&c.NATS.SynthesisSubject, DefaultSynthesisSubject)
	setString(&c.NATS.AudioObjectStoreBucket, DefaultAudioBucket)
	setString(&c.NATS.DefaultProvider, DefaultWorkerProvider)
}

// Validate checks the values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Server.MaxTextLength <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTextLength, c.Server.MaxTextLength)
	}

	if c.Server.ReadTimeoutSeconds < 0 || c.Server.WriteTimeoutSeconds < 0 || c.Windows.TimeoutSeconds < 0 {
		return ErrInvalidTimeout
	}

	return nil
}

func setString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

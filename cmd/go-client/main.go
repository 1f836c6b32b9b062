package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/client"
	"github.com/book-expert/tts-gateway/internal/tts/ttsutils"
)

// Flag descriptions.
const (
	flagURLDesc       = "Base URL of the tts-gateway"
	flagTextDesc      = "Text to convert to speech"
	flagOutputDesc    = "Output file (.mp3) for --text, output directory for --chunks"
	flagChunksDesc    = "JSON file containing an array of text chunks to process"
	flagProviderDesc  = "Provider to synthesize with (gateway default when empty)"
	flagVoiceDesc     = "Voice to synthesize with (provider default when empty)"
	flagWorkersDesc   = "Concurrent requests for --chunks"
	flagTimeoutDesc   = "Per-request timeout"
	flagLogDirDesc    = "Directory for the client log file"
	flagVerboseDesc   = "Enable verbose logging"
	flagHealthDesc    = "Check gateway health and exit"
	flagProvidersDesc = "List providers and voices and exit"
)

// Flag names.
const (
	flagURL       = "url"
	flagText      = "text"
	flagOutput    = "output"
	flagChunks    = "chunks"
	flagProvider  = "provider"
	flagVoice     = "voice"
	flagWorkers   = "workers"
	flagTimeout   = "timeout"
	flagLogDir    = "log-dir"
	flagVerbose   = "verbose"
	flagHealth    = "health"
	flagProviders = "providers"
)

// Error messages.
const (
	errFailedToInitLogger    = "failed to initialize logger: %w"
	errHealthCheckFailed     = "Health check failed: %v"
	errServiceNotHealthy     = "Gateway is not healthy: %v\n"
	errFailedToListProviders = "failed to list providers: %w"
	errFailedToProcessText   = "failed to process text: %w"
	errFailedToProcessChunks = "failed to process chunks: %w"
)

// Log messages.
const (
	logClientInitialized     = "TTS client initialized (gateway: %s)"
	logProcessingSingleText  = "Processing single text to: %s"
	logSuccessfullyGenerated = "Successfully generated speech: %s"
	logGenerated             = "Generated: %s\n"
	logProcessingChunks      = "Processing chunks from: %s"
	logOutputDirectory       = "Output directory: %s"
	logSuccessfullyProcessed = "Successfully processed all chunks"
	logGeneratedAudioFiles   = "Generated audio files in: %s\n"
	msgServiceHealthy        = "Gateway is healthy (%d providers: %s)\n"
)

// Defaults.
const (
	defaultGatewayURL  = "http://localhost:8887"
	defaultOutputFile  = "output.mp3"
	defaultOutputDir   = "audio_chunks"
	defaultLogDir      = "logs"
	logFileNameDefault = "tts-client.log"
	logFileNameVerbose = "tts-client-verbose.log"
)

var (
	errEitherTextOrChunks = errors.New("either --text or --chunks must be provided")
	errCannotSpecifyBoth  = errors.New("cannot specify both --text and --chunks")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	url       string
	text      string
	output    string
	chunks    string
	provider  string
	voice     string
	logDir    string
	workers   int
	timeout   time.Duration
	verbose   bool
	health    bool
	providers bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the application entry point, returning an error on failure.
func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	logFileName := logFileNameDefault
	if flags.verbose {
		logFileName = logFileNameVerbose
	}

	clientLog, err := logger.New(flags.logDir, logFileName)
	if err != nil {
		return fmt.Errorf(errFailedToInitLogger, err)
	}

	defer func() { _ = clientLog.Close() }()

	gatewayClient := client.NewGatewayClient(flags.url, flags.timeout)
	clientLog.Info(logClientInitialized, gatewayClient.BaseURL())

	ctx := context.Background()

	switch {
	case flags.health:
		return handleHealthCheck(ctx, gatewayClient, clientLog, stdout)
	case flags.providers:
		return handleProviders(ctx, gatewayClient, stdout)
	}

	validateErr := validateArguments(flags)
	if validateErr != nil {
		clientLog.Error("%v", validateErr)

		return validateErr
	}

	processor := client.NewBatchProcessor(gatewayClient, client.BatchOptions{
		Provider: flags.provider,
		Voice:    flags.voice,
		Workers:  flags.workers,
	}, clientLog)

	if flags.text != "" {
		return processSingleText(ctx, processor, clientLog, stdout, flags)
	}

	return processChunks(ctx, processor, clientLog, stdout, flags)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("go-client", flag.ContinueOnError)
	flagSet.StringVar(&flags.url, flagURL, defaultGatewayURL, flagURLDesc)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.StringVar(&flags.chunks, flagChunks, "", flagChunksDesc)
	flagSet.StringVar(&flags.provider, flagProvider, "", flagProviderDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.StringVar(&flags.logDir, flagLogDir, defaultLogDir, flagLogDirDesc)
	flagSet.IntVar(&flags.workers, flagWorkers, client.DefaultWorkers, flagWorkersDesc)
	flagSet.DurationVar(&flags.timeout, flagTimeout, client.DefaultTimeout, flagTimeoutDesc)
	flagSet.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flagSet.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flagSet.BoolVar(&flags.providers, flagProviders, false, flagProvidersDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return flags, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// validateArguments checks that exactly one of --text and --chunks is set.
func validateArguments(flags appFlags) error {
	if flags.text == "" && flags.chunks == "" {
		return errEitherTextOrChunks
	}

	if flags.text != "" && flags.chunks != "" {
		return errCannotSpecifyBoth
	}

	return nil
}

// outputPathFor picks the --text destination, forcing an .mp3 name.
func outputPathFor(flags appFlags) string {
	ext := filepath.Ext(flags.output)

	switch {
	case flags.output == "":
		return defaultOutputFile
	case strings.EqualFold(ext, ".mp3"):
		return flags.output
	case ext == "":
		return filepath.Join(flags.output, defaultOutputFile)
	case ttsutils.IsAudioFile(flags.output):
		return strings.TrimSuffix(flags.output, ext) + ".mp3"
	default:
		return flags.output + ".mp3"
	}
}

func handleHealthCheck(ctx context.Context, gatewayClient *client.GatewayClient, clientLog *logger.Logger, stdout io.Writer) error {
	health, err := gatewayClient.Health(ctx)
	if err != nil {
		clientLog.Error(errHealthCheckFailed, err)
		_, _ = fmt.Fprintf(stdout, errServiceNotHealthy, err)

		return err
	}

	_, _ = fmt.Fprintf(stdout, msgServiceHealthy, health.ProvidersAvailable, strings.Join(health.Providers, ", "))

	return nil
}

func handleProviders(ctx context.Context, gatewayClient *client.GatewayClient, stdout io.Writer) error {
	providers, err := gatewayClient.Providers(ctx)
	if err != nil {
		return fmt.Errorf(errFailedToListProviders, err)
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		_, _ = fmt.Fprintf(stdout, "%s: %s\n", name, strings.Join(providers[name].Voices, ", "))
	}

	return nil
}

func processSingleText(
	ctx context.Context,
	processor *client.BatchProcessor,
	clientLog *logger.Logger,
	stdout io.Writer,
	flags appFlags,
) error {
	outputPath := outputPathFor(flags)
	clientLog.Info(logProcessingSingleText, outputPath)

	err := processor.ProcessSingleChunk(ctx, flags.text, outputPath)
	if err != nil {
		clientLog.Error("%v", err)

		return fmt.Errorf(errFailedToProcessText, err)
	}

	clientLog.Info(logSuccessfullyGenerated, outputPath)
	_, _ = fmt.Fprintf(stdout, logGenerated, outputPath)

	return nil
}

func processChunks(
	ctx context.Context,
	processor *client.BatchProcessor,
	clientLog *logger.Logger,
	stdout io.Writer,
	flags appFlags,
) error {
	outputDir := flags.output
	if outputDir == "" {
		outputDir = defaultOutputDir
	}

	clientLog.Info(logProcessingChunks, flags.chunks)
	clientLog.Info(logOutputDirectory, outputDir)

	err := processor.ProcessChunks(ctx, flags.chunks, outputDir)
	if err != nil {
		clientLog.Error("%v", err)

		return fmt.Errorf(errFailedToProcessChunks, err)
	}

	clientLog.Info(logSuccessfullyProcessed)
	_, _ = fmt.Fprintf(stdout, logGeneratedAudioFiles, outputDir)

	return nil
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/tts/ttsutils"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the batch concurrency when the caller passes zero.
const DefaultWorkers = 4

const (
	filePermissions = 0o600

	outputFileFormat = "chunk_%04d.mp3"

	errFmtChunkFailed = "chunk %d failed: %w"

	logFmtServiceHealthy        = "Gateway is healthy, processing %d chunks with %d workers"
	logFmtGeneratedAudio        = "Generated audio: %s (%s)"
	logFmtChunkProcessingFailed = "Failed to process chunk %d: %v"
	logFmtChunkProcessed        = "Processed chunk %d/%d"
)

// Static errors.
var (
	ErrChunksPathEmpty = errors.New("chunks path cannot be empty")
	ErrOutputDirEmpty  = errors.New("output directory cannot be empty")
	ErrTextEmpty       = errors.New("text cannot be empty")
	ErrOutputPathEmpty = errors.New("output path cannot be empty")
	ErrNoChunksFound   = errors.New("no chunks found")
)

// BatchOptions selects the provider, voice and concurrency for a batch.
type BatchOptions struct {
	Provider string
	Voice    string
	Workers  int
}

// BatchProcessor turns text chunks into numbered MP3 files through the gateway.
type BatchProcessor struct {
	client *GatewayClient
	opts   BatchOptions
	log    *logger.Logger
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(client *GatewayClient, opts BatchOptions, log *logger.Logger) *BatchProcessor {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	return &BatchProcessor{client: client, opts: opts, log: log}
}

// ProcessSingleChunk synthesizes text and writes the MP3 to outputPath.
func (b *BatchProcessor) ProcessSingleChunk(ctx context.Context, text, outputPath string) error {
	if text == "" {
		return ErrTextEmpty
	}

	if outputPath == "" {
		return ErrOutputPathEmpty
	}

	dirErr := ttsutils.EnsureDir(filepath.Dir(outputPath))
	if dirErr != nil {
		return dirErr
	}

	result, err := b.client.Synthesize(ctx, text, b.opts.Provider, b.opts.Voice)
	if err != nil {
		return fmt.Errorf("failed to generate speech: %w", err)
	}

	audioData, err := b.client.Download(ctx, result)
	if err != nil {
		return fmt.Errorf("failed to download speech: %w", err)
	}

	writeErr := os.WriteFile(outputPath, audioData, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write audio file: %w", writeErr)
	}

	b.log.Info(logFmtGeneratedAudio, outputPath, ttsutils.FormatFileSize(int64(len(audioData))))

	return nil
}

// ProcessChunks reads a JSON array of strings from chunksPath and writes
// chunk_0001.mp3, chunk_0002.mp3, ... into outputDir. A failed chunk does not
// stop the others; every failure is returned joined.
func (b *BatchProcessor) ProcessChunks(ctx context.Context, chunksPath, outputDir string) error {
	if chunksPath == "" {
		return ErrChunksPathEmpty
	}

	if outputDir == "" {
		return ErrOutputDirEmpty
	}

	chunks, err := ReadChunksFile(chunksPath)
	if err != nil {
		return err
	}

	dirErr := ttsutils.EnsureDir(outputDir)
	if dirErr != nil {
		return dirErr
	}

	_, healthErr := b.client.Health(ctx)
	if healthErr != nil {
		return fmt.Errorf("gateway health check failed: %w", healthErr)
	}

	b.log.Info(logFmtServiceHealthy, len(chunks), b.opts.Workers)

	return b.processChunksParallel(ctx, chunks, outputDir)
}

func (b *BatchProcessor) processChunksParallel(ctx context.Context, chunks []string, outputDir string) error {
	var (
		group    errgroup.Group
		mutex    sync.Mutex
		failures []error
	)

	group.SetLimit(b.opts.Workers)

	for chunkIndex, chunk := range chunks {
		number := chunkIndex + 1

		group.Go(func() error {
			outputPath := filepath.Join(outputDir, fmt.Sprintf(outputFileFormat, number))

			err := b.ProcessSingleChunk(ctx, chunk, outputPath)
			if err != nil {
				b.log.Error(logFmtChunkProcessingFailed, number, err)

				mutex.Lock()
				failures = append(failures, fmt.Errorf(errFmtChunkFailed, number, err))
				mutex.Unlock()

				return nil
			}

			b.log.Info(logFmtChunkProcessed, number, len(chunks))

			return nil
		})
	}

	_ = group.Wait()

	return errors.Join(failures...)
}

// ReadChunksFile parses a JSON array of text chunks.
func ReadChunksFile(chunksPath string) ([]string, error) {
	data, err := os.ReadFile(chunksPath) // #nosec G304 -- path is a user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	var chunks []string

	err = json.Unmarshal(data, &chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chunks JSON: %w", err)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChunksFound, chunksPath)
	}

	return chunks, nil
}

// Package worker provides a NATS worker that turns text objects into cached
// MP3 files and publishes them back to the object store.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 5 * time.Minute

var (
	// ErrTextEmpty indicates that the downloaded text object was blank.
	ErrTextEmpty = errors.New("text object is empty")
	// ErrProviderUnavailable indicates that the worker's provider is not registered.
	ErrProviderUnavailable = errors.New("provider is not available")
)

// Resolver is the content cache as seen by the worker.
type Resolver interface {
	Resolve(ctx context.Context, text, provider, voice string) (string, error)
	Path(filename string) (string, error)
}

// NatsWorker listens for synthesis jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	provider       string
	store          core.ObjectStore
	cache          Resolver
	catalog        core.Catalog
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. Every job is
// synthesized with provider; the event's voice is used when provider offers it.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	provider string,
	store core.ObjectStore,
	cache Resolver,
	catalog core.Catalog,
	log *logger.Logger,
) (*NatsWorker, error) {
	if len(catalog.Voices(provider)) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrProviderUnavailable, provider)
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		provider:       provider,
		store:          store,
		cache:          cache,
		catalog:        catalog,
		log:            log,
	}, nil
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for synthesis jobs on subject %s with provider %s.", w.subject, w.provider)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := w.parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse event: %v", err)

		return
	}

	audioKey, processErr := w.processJob(ctx, event)
	if processErr != nil {
		w.log.Error("Failed to process synthesis job for workflow %s: %v", event.Header.WorkflowID, processErr)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// processJob downloads the text, resolves it through the cache and uploads
// the MP3 under its fingerprint name unless the store already holds it.
func (w *NatsWorker) processJob(ctx context.Context, event *events.TextProcessedEvent) (string, error) {
	textData, err := w.store.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	text := strings.TrimSpace(string(textData))
	if text == "" {
		return "", fmt.Errorf("%w: key '%s'", ErrTextEmpty, event.TextKey)
	}

	voice := w.voiceFor(event.Voice)

	filename, err := w.cache.Resolve(ctx, text, w.provider, voice)
	if err != nil {
		return "", fmt.Errorf("failed to synthesize text for key '%s': %w", event.TextKey, err)
	}

	exists, err := w.store.Exists(ctx, filename)
	if err != nil {
		return "", err
	}

	if exists {
		w.log.Info("Audio %s already uploaded; skipping.", filename)

		return filename, nil
	}

	path, err := w.cache.Path(filename)
	if err != nil {
		return "", err
	}

	audioData, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file '%s': %w", path, err)
	}

	err = w.store.Upload(ctx, filename, audioData)
	if err != nil {
		return "", fmt.Errorf("failed to upload audio data for key '%s': %w", filename, err)
	}

	return filename, nil
}

// voiceFor keeps the requested voice when the provider offers it and falls
// back to the provider's first voice otherwise.
func (w *NatsWorker) voiceFor(requested string) string {
	voices := w.catalog.Voices(w.provider)
	if requested != "" && slices.Contains(voices, requested) {
		return requested
	}

	if requested != "" {
		w.log.Warn("Voice %q is not offered by %s; using %q.", requested, w.provider, voices[0])
	}

	return voices[0]
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) parseEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}

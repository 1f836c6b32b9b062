package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/audiocache"
	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/go-chi/chi/v5"
)

const (
	serviceName     = "Multi-Provider Text-to-Speech API"
	fallbackVoice   = "default"
	contentTypeJSON = "application/json"
	contentTypeMPEG = "audio/mpeg"
	playCacheHeader = "public, max-age=3600"

	msgGenerated       = "Audio generated successfully"
	msgAudioNotFound   = "Audio file not found"
	msgTextRequired    = "Query parameter 'text' is required"
	errFmtTextTooLong  = "Query parameter 'text' must be at most %d characters"
	errFmtProvider     = "Provider '%s' not available. Available providers: %s"
	errFmtVoice        = "Voice '%s' not available for provider '%s'. Available voices: %s"
	errFmtGenerate     = "Failed to generate audio using %s"
	errFmtGenerateInfo = "Audio generation failed: %v"
)

type handler struct {
	registry      Registry
	cache         AudioCache
	maxTextLength int
	log           *logger.Logger
}

type providerView struct {
	Voices  []string `json:"voices"`
	Enabled bool     `json:"enabled"`
}

type ttsData struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Voice    string `json:"voice"`
}

type ttsResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    ttsData `json:"data"`
}

type fileView struct {
	Filename string  `json:"filename"`
	URL      string  `json:"url"`
	Size     int64   `json:"size"`
	Created  float64 `json:"created"`
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": serviceName,
		"endpoints": map[string]string{
			"/tts":             "Generate audio from text (returns URL)",
			"/play/{filename}": "Stream audio file",
			"/files":           "List all audio files",
			"/providers":       "List available TTS providers",
			"/health":          "Health check",
		},
		"available_providers": providerViews(h.registry.Providers()),
	})
}

func (h *handler) providers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": providerViews(h.registry.Providers()),
	})
}

func (h *handler) textToSpeech(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	text := query.Get("text")
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, msgTextRequired)

		return
	}

	if h.maxTextLength > 0 && utf8.RuneCountInString(text) > h.maxTextLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(errFmtTextTooLong, h.maxTextLength))

		return
	}

	provider := query.Get("provider")
	if provider == "" {
		provider = DefaultProvider
	}

	if _, ok := h.registry.Providers()[provider]; !ok {
		available := strings.Join(h.registry.Names(), ", ")
		writeError(w, http.StatusBadRequest, fmt.Sprintf(errFmtProvider, provider, available))

		return
	}

	voices := h.registry.Voices(provider)

	voice := query.Get("voice")
	if voice == "" {
		voice = fallbackVoice
		if len(voices) > 0 {
			voice = voices[0]
		}
	}

	if err := h.registry.Validate(provider, voice); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(errFmtVoice, voice, provider, strings.Join(voices, ", ")))

		return
	}

	filename, err := h.cache.Resolve(r.Context(), text, provider, voice)
	if err != nil {
		if errors.Is(err, audiocache.ErrSynthesisFailed) {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf(errFmtGenerate, provider))

			return
		}

		h.log.Error("Resolving audio for %s/%s: %v", provider, voice, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf(errFmtGenerateInfo, err))

		return
	}

	writeJSON(w, http.StatusOK, ttsResponse{
		Success: true,
		Message: msgGenerated,
		Data: ttsData{
			Filename: filename,
			URL:      playURL(r, filename),
			Text:     text,
			Provider: provider,
			Voice:    voice,
		},
	})
}

func (h *handler) play(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	path, err := h.cache.Path(filename)
	if err != nil {
		writeError(w, http.StatusNotFound, msgAudioNotFound)

		return
	}

	file, err := os.Open(path) // #nosec G304 -- path is validated by the cache
	if err != nil {
		writeError(w, http.StatusNotFound, msgAudioNotFound)

		return
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		writeError(w, http.StatusNotFound, msgAudioNotFound)

		return
	}

	w.Header().Set("Content-Type", contentTypeMPEG)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", playCacheHeader)
	w.Header().Set("Content-Disposition", "inline")

	http.ServeContent(w, r, filename, info.ModTime(), file)
}

func (h *handler) files(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cache.List()
	if err != nil {
		h.log.Error("Listing audio files: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	files := make([]fileView, 0, len(entries))
	for _, entry := range entries {
		files = append(files, fileView{
			Filename: entry.Filename,
			URL:      playURL(r, entry.Filename),
			Size:     entry.Size,
			Created:  float64(entry.Modified.UnixNano()) / 1e9,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"total": len(files),
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	names := h.registry.Names()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"service":             serviceName,
		"providers_available": len(names),
		"providers":           names,
	})
}

func providerViews(providers map[string]core.Provider) map[string]providerView {
	views := make(map[string]providerView, len(providers))
	for name, provider := range providers {
		voices := provider.Voices
		if voices == nil {
			voices = []string{}
		}

		views[name] = providerView{Voices: voices, Enabled: provider.Enabled}
	}

	return views
}

func playURL(r *http.Request, filename string) string {
	scheme := "http"
	if isSecure(r) {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s/play/%s", scheme, r.Host, filename)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

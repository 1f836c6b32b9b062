package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/api"
	"github.com/book-expert/tts-gateway/internal/audiocache"
	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errEngineDown = errors.New("engine down")

type stubEngine struct {
	name   string
	voices []string
	fail   bool
	calls  atomic.Int64
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Kind() core.Kind { return core.KindCLIPipe }

func (s *stubEngine) Voices(_ context.Context) []string { return s.voices }

func (s *stubEngine) Available(_ context.Context) bool { return true }

func (s *stubEngine) Synthesize(_ context.Context, text, voice, destination string) error {
	s.calls.Add(1)

	if s.fail {
		return errEngineDown
	}

	return os.WriteFile(destination, []byte("ID3|"+text+"|"+voice), 0o600)
}

type fixture struct {
	server   *httptest.Server
	engine   *stubEngine
	broken   *stubEngine
	audioDir string
}

func newFixture(t *testing.T, origins ...string) *fixture {
	t.Helper()

	log, err := logger.New(t.TempDir(), "api-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	engine := &stubEngine{name: "pollinations", voices: []string{"alloy", "echo"}}
	broken := &stubEngine{name: "espeak", voices: []string{"en"}, fail: true}

	manager := registry.New(context.Background(), log, engine, broken)

	audioDir := filepath.Join(t.TempDir(), "audio")
	cache, err := audiocache.New(audioDir, manager, log)
	require.NoError(t, err)

	router := api.NewRouter(manager, cache, api.Options{MaxTextLength: 20, CORSOrigins: origins}, log)
	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)

	return &fixture{server: server, engine: engine, broken: broken, audioDir: audioDir}
}

func (fx *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Get(fx.server.URL + path)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &decoded))
	}

	return resp, decoded
}

func TestTTS_GeneratesAndCaches(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	resp, body := fx.get(t, "/tts?text=Hello+world")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	filename := audiocache.Fingerprint("Hello world", "pollinations", "alloy")
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Audio generated successfully", body["message"])
	assert.Equal(t, filename, data["filename"])
	assert.Equal(t, fx.server.URL+"/play/"+filename, data["url"])
	assert.Equal(t, "Hello world", data["text"])
	assert.Equal(t, "pollinations", data["provider"])
	assert.Equal(t, "alloy", data["voice"])

	resp, _ = fx.get(t, "/tts?text=Hello+world")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), fx.engine.calls.Load(), "second request is served from the cache")
}

func TestTTS_Rejections(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	testCases := []struct {
		name   string
		path   string
		status int
		detail string
	}{
		{name: "missing text", path: "/tts", status: http.StatusBadRequest, detail: "'text' is required"},
		{name: "blank text", path: "/tts?text=+%09+", status: http.StatusBadRequest, detail: "'text' is required"},
		{name: "text too long", path: "/tts?text=" + strings.Repeat("a", 21), status: http.StatusBadRequest, detail: "at most 20"},
		{
			name: "unknown provider", path: "/tts?text=hi&provider=nope", status: http.StatusBadRequest,
			detail: "Provider 'nope' not available. Available providers: espeak, pollinations",
		},
		{
			name: "unknown voice", path: "/tts?text=hi&voice=onyx", status: http.StatusBadRequest,
			detail: "Voice 'onyx' not available for provider 'pollinations'. Available voices: alloy, echo",
		},
		{
			name: "engine failure", path: "/tts?text=hi&provider=espeak", status: http.StatusInternalServerError,
			detail: "Failed to generate audio using espeak",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := fx.get(t, tc.path)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Contains(t, body["detail"], tc.detail)
		})
	}

	assert.Equal(t, int64(0), fx.engine.calls.Load(), "rejected requests never reach the engine")
	assert.Equal(t, int64(1), fx.broken.calls.Load())
}

func TestTTS_TextLengthCountsCharacters(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	resp, _ := fx.get(t, "/tts?text="+url.QueryEscape(strings.Repeat("é", 20)))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPlay(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, body := fx.get(t, "/tts?text=Play+me&voice=echo")
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)

	filename, ok := data["filename"].(string)
	require.True(t, ok)

	resp, err := http.Get(fx.server.URL + "/play/" + filename)
	require.NoError(t, err)

	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "inline", resp.Header.Get("Content-Disposition"))
	assert.Equal(t, []byte("ID3|Play me|echo"), audio)
}

func TestPlay_NotFound(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	require.NoError(t, os.WriteFile(filepath.Join(fx.audioDir, "notes.txt"), []byte("x"), 0o600))

	for _, name := range []string{"missing.mp3", "notes.txt", "..%2Fsecret.mp3", "abc.partial-1.mp3"} {
		resp, body := fx.get(t, "/play/"+name)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, name)
		assert.Equal(t, "Audio file not found", body["detail"], name)
	}
}

func TestFiles(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, _ = fx.get(t, "/tts?text=one")
	_, _ = fx.get(t, "/tts?text=two")

	resp, body := fx.get(t, "/files")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 2, body["total"], 0)

	files, ok := body["files"].([]any)
	require.True(t, ok)
	require.Len(t, files, 2)

	for _, raw := range files {
		file, isMap := raw.(map[string]any)
		require.True(t, isMap)

		filename, _ := file["filename"].(string)
		assert.Equal(t, fx.server.URL+"/play/"+filename, file["url"])
		assert.Greater(t, file["size"], 0.0)
		assert.Greater(t, file["created"], 0.0)
	}
}

func TestProvidersAndHealth(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	resp, body := fx.get(t, "/providers")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	providers, ok := body["providers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"voices": []any{"alloy", "echo"}, "enabled": true}, providers["pollinations"])

	resp, body = fx.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.InDelta(t, 2, body["providers_available"], 0)
	assert.Equal(t, []any{"espeak", "pollinations"}, body["providers"])

	resp, body = fx.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "endpoints")
	assert.Contains(t, body, "available_providers")
}

func TestCORS(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "http://allowed.example")

	req, err := http.NewRequest(http.MethodOptions, fx.server.URL+"/tts", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://allowed.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://allowed.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Length, Content-Range, Accept-Ranges", resp.Header.Get("Access-Control-Expose-Headers"))

	req.Header.Set("Origin", "http://other.example")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	resp, body := fx.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not Found", body["detail"])
}

package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/book-expert/tts-gateway/internal/tts"
	"github.com/book-expert/tts-gateway/internal/tts/audio"
	"github.com/book-expert/tts-gateway/internal/tts/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mp3Body = "ID3-fake-mp3-body"

func TestPollinations_WritesBodyVerbatim(t *testing.T) {
	t.Parallel()

	requests := make(chan *url.URL, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.URL

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte(mp3Body))
	}))
	defer server.Close()

	engine := tts.NewPollinations(server.URL, "", server.Client())
	destination := filepath.Join(t.TempDir(), "out.mp3")

	err := engine.Synthesize(context.Background(), "Hello world", "alloy", destination)
	require.NoError(t, err)

	assert.Equal(t, mp3Body, readFile(t, destination))

	got := <-requests
	assert.Equal(t, "/Hello world", got.Path)
	assert.Equal(t, tts.DefaultPollinationsModel, got.Query().Get("model"))
	assert.Equal(t, "alloy", got.Query().Get("voice"))
}

func TestPollinations_Failures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		status      int
		contentType string
		wantErr     error
	}{
		{name: "wrong content type", status: http.StatusOK, contentType: "text/html", wantErr: tts.ErrUnexpectedContentType},
		{name: "server error", status: http.StatusInternalServerError, contentType: "audio/mpeg", wantErr: tts.ErrRemoteStatus},
		{name: "redirect status", status: http.StatusNotModified, contentType: "audio/mpeg", wantErr: tts.ErrRemoteStatus},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer server.Close()

			engine := tts.NewPollinations(server.URL, "", server.Client())
			destination := filepath.Join(t.TempDir(), "out.mp3")

			err := engine.Synthesize(context.Background(), "Hello", "nova", destination)
			require.ErrorIs(t, err, tc.wantErr)
			assert.NoFileExists(t, destination)
		})
	}
}

func TestPollinations_ContextCancelled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	engine := tts.NewPollinations(server.URL, "", server.Client())
	destination := filepath.Join(t.TempDir(), "out.mp3")

	require.Error(t, engine.Synthesize(ctx, "Hello", "nova", destination))
	assert.NoFileExists(t, destination)
}

func TestPollinations_Catalog(t *testing.T) {
	t.Parallel()

	engine := tts.NewPollinations("", "", nil)

	assert.Equal(t, tts.ProviderPollinations, engine.Name())
	assert.Equal(t, core.KindRemoteAPI, engine.Kind())
	assert.True(t, engine.Available(context.Background()))
	assert.Equal(t, []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}, engine.Voices(context.Background()))
}

// sapiStub mimics the Windows SAPI service.
type sapiStub struct {
	health    string
	response  tts.SynthesisResponse
	delay     time.Duration
	requests  atomic.Int64
	lastVoice atomic.Value
}

// wait holds the handler for the stub's delay or until the client gives up.
func (s *sapiStub) wait(r *http.Request) bool {
	if s.delay <= 0 {
		return true
	}

	select {
	case <-time.After(s.delay):
		return true
	case <-r.Context().Done():
		return false
	}
}

func (s *sapiStub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)

		if !s.wait(r) {
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]string{"status": s.health})
	})

	mux.HandleFunc("GET /providers", func(w http.ResponseWriter, _ *http.Request) {
		s.requests.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]tts.SAPIProvider{
			"zeta": {
				Name:      "Zeta",
				Available: true,
				Voices:    []tts.VoiceInfo{{Name: "Zira", SAPIVersion: 5}},
			},
			"balcon": {
				Name:      "Balcon (Windows SAPI)",
				Available: true,
				Voices: []tts.VoiceInfo{
					{Name: "Microsoft David", SAPIVersion: 5},
					{Name: "Microsoft Sam", SAPIVersion: 4},
				},
			},
			"broken": {Name: "Broken", Available: false, Error: "not installed"},
		})
	})

	mux.HandleFunc("POST /synthesize", func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)

		var req tts.SynthesisRequest

		_ = json.NewDecoder(r.Body).Decode(&req)
		s.lastVoice.Store(req.Voice)

		if !s.wait(r) {
			return
		}

		_ = json.NewEncoder(w).Encode(s.response)
	})

	return mux
}

func newWindows(t *testing.T, stub *sapiStub, transcoderBin string, enabled bool) *tts.WindowsEngine {
	t.Helper()

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client := tts.NewSAPIClient(server.URL, 5*time.Second)

	return tts.NewWindows(client, pipeline.New(transcoderBin), enabled)
}

func TestWindows_RawPCM(t *testing.T) {
	t.Parallel()

	stub := &sapiStub{
		health: "ok",
		response: tts.SynthesisResponse{
			Success:    true,
			AudioData:  base64.StdEncoding.EncodeToString([]byte("pcm-bytes")),
			Format:     "raw_pcm",
			SampleRate: 11025,
			BitDepth:   8,
		},
	}
	engine := newWindows(t, stub, bins["ffmpeg"], true)
	destination := filepath.Join(t.TempDir(), "out.mp3")

	err := engine.Synthesize(context.Background(), "Hello", "Microsoft David", destination)
	require.NoError(t, err)

	assert.Equal(t, "pcm-bytes", readFile(t, destination))
	assert.Contains(t, readArgs(t, destination), "-f u8 -ar 11025 -ac 1 -i pipe:0")
	assert.Equal(t, "Microsoft David", stub.lastVoice.Load())
}

func TestWindows_WAV(t *testing.T) {
	t.Parallel()

	stub := &sapiStub{
		health: "ok",
		response: tts.SynthesisResponse{
			Success:   true,
			AudioData: base64.StdEncoding.EncodeToString([]byte("RIFF-wav")),
			Format:    "wav",
		},
	}
	engine := newWindows(t, stub, bins["ffmpeg"], true)
	destination := filepath.Join(t.TempDir(), "out.mp3")

	require.NoError(t, engine.Synthesize(context.Background(), "Hello", "Microsoft Sam", destination))
	assert.Equal(t, "RIFF-wav", readFile(t, destination))
	assert.Contains(t, readArgs(t, destination), "-f wav -i pipe:0")
}

func TestWindows_Failures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		response tts.SynthesisResponse
		wantErr  error
	}{
		{
			name:     "rejected",
			response: tts.SynthesisResponse{Success: false, Error: "voice not found"},
			wantErr:  tts.ErrSynthesisRejected,
		},
		{
			name:     "unknown format",
			response: tts.SynthesisResponse{Success: true, AudioData: "AAAA", Format: "flac"},
			wantErr:  audio.ErrUnknownFormat,
		},
		{
			name:     "invalid pcm",
			response: tts.SynthesisResponse{Success: true, AudioData: "AAAA", Format: "raw_pcm", BitDepth: 12},
			wantErr:  audio.ErrInvalidPCM,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			engine := newWindows(t, &sapiStub{health: "ok", response: tc.response}, bins["ffmpeg"], true)
			destination := filepath.Join(t.TempDir(), "out.mp3")

			err := engine.Synthesize(context.Background(), "Hello", "Microsoft Sam", destination)
			require.ErrorIs(t, err, tc.wantErr)
			assert.NoFileExists(t, destination)
		})
	}
}

func TestWindows_BadBase64(t *testing.T) {
	t.Parallel()

	stub := &sapiStub{
		health:   "ok",
		response: tts.SynthesisResponse{Success: true, AudioData: "%%%", Format: "wav"},
	}
	engine := newWindows(t, stub, bins["ffmpeg"], true)

	require.Error(t, engine.Synthesize(context.Background(), "Hello", "Microsoft Sam", filepath.Join(t.TempDir(), "o.mp3")))
}

func TestWindows_Availability(t *testing.T) {
	t.Parallel()

	healthy := newWindows(t, &sapiStub{health: "ok"}, bins["ffmpeg"], true)
	assert.True(t, healthy.Available(context.Background()))
	assert.Equal(t, core.KindRemoteProxy, healthy.Kind())
	assert.Equal(t, tts.ProviderWindows, healthy.Name())

	degraded := newWindows(t, &sapiStub{health: "degraded"}, bins["ffmpeg"], true)
	assert.False(t, degraded.Available(context.Background()))

	stub := &sapiStub{health: "ok"}
	disabled := newWindows(t, stub, bins["ffmpeg"], false)
	assert.False(t, disabled.Available(context.Background()))
	assert.Empty(t, disabled.Voices(context.Background()))
	assert.Zero(t, stub.requests.Load(), "a disabled proxy never contacts the service")
}

func TestWindows_HealthIsCheckedEveryCall(t *testing.T) {
	t.Parallel()

	stub := &sapiStub{health: "ok"}
	engine := newWindows(t, stub, bins["ffmpeg"], true)

	engine.Available(context.Background())
	engine.Available(context.Background())

	assert.Equal(t, int64(2), stub.requests.Load())
}

func TestWindows_VoicesFlattenAvailableProviders(t *testing.T) {
	t.Parallel()

	engine := newWindows(t, &sapiStub{health: "ok"}, bins["ffmpeg"], true)

	assert.Equal(t,
		[]string{"Microsoft David", "Microsoft Sam", "Zira"},
		engine.Voices(context.Background()),
	)
}

func TestWindows_SynthesizeTimesOut(t *testing.T) {
	t.Parallel()

	stub := &sapiStub{
		health: "ok",
		delay:  2 * time.Second,
		response: tts.SynthesisResponse{
			Success:   true,
			AudioData: base64.StdEncoding.EncodeToString([]byte("RIFF-wav")),
			Format:    "wav",
		},
	}

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	engine := tts.NewWindows(tts.NewSAPIClient(server.URL, 200*time.Millisecond), pipeline.New(bins["ffmpeg"]), true)
	destination := filepath.Join(t.TempDir(), "out.mp3")

	start := time.Now()
	err := engine.Synthesize(context.Background(), "Hello", "Microsoft Sam", destination)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second, "the client timeout bounds the request")
	assert.NoFileExists(t, destination)
}

func TestSAPIClient_HealthHasItsOwnTimeout(t *testing.T) {
	t.Parallel()

	stub := &sapiStub{health: "ok", delay: 2 * time.Second}

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client := tts.NewSAPIClient(server.URL, 30*time.Second).WithHealthTimeout(100 * time.Millisecond)

	start := time.Now()
	err := client.Health(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second, "health is bounded by the health timeout, not the synthesis timeout")

	engine := tts.NewWindows(client, pipeline.New(bins["ffmpeg"]), true)
	assert.False(t, engine.Available(context.Background()))
}

func TestSAPIClient_DefaultHealthTimeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, tts.DefaultHealthTimeout)

	stub := &sapiStub{health: "ok"}

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client := tts.NewSAPIClient(server.URL, 30*time.Second).WithHealthTimeout(0)
	require.NoError(t, client.Health(context.Background()))
}

func TestWindows_UnreachableService(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	engine := tts.NewWindows(tts.NewSAPIClient(server.URL, time.Second), pipeline.New(bins["ffmpeg"]), true)

	assert.False(t, engine.Available(context.Background()))
	assert.Empty(t, engine.Voices(context.Background()))
}

func TestSAPIClient_MalformedJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	client := tts.NewSAPIClient(server.URL, time.Second)

	_, err := client.Providers(context.Background())
	require.ErrorIs(t, err, tts.ErrMalformedResponse)
	assert.Contains(t, err.Error(), "<html>")
}

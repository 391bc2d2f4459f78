package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cohesion-org/deepseek-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mP8/x8AAwMCAO0V9b0AAAAASUVORK5CYII="

func TestStripPrompt(t *testing.T) {
	cases := []struct {
		name, output, prompt, want string
	}{
		{"echo prefix", "PROMPT Tip: use flexbox.", "PROMPT", "Tip: use flexbox."},
		{"repeated echo", "PROMPT a PROMPT b", "PROMPT", "a  b"},
		{"no echo", "  plain  ", "PROMPT", "plain"},
		{"empty prompt", " x ", "", "x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, StripPrompt(tc.output, tc.prompt))
		})
	}
}

func TestHuggingFace_GenerateText(t *testing.T) {
	var got hfTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gpt2-large", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"generated_text": got.Inputs + "\n  Ship small websites fast. Really."},
		})
	}))
	defer srv.Close()

	h := NewHuggingFace(srv.URL, "gpt2-large", "hf-token", time.Second)
	text, err := h.GenerateText(context.Background(), "persona\nWrite a tip.", TextOptions{MaxTokens: 150, Temperature: 0.7, TopP: 0.95})
	require.NoError(t, err)
	require.Equal(t, "Ship small websites fast. Really.", text)

	require.Equal(t, 150, got.Parameters.MaxNewTokens)
	require.InDelta(t, 0.7, got.Parameters.Temperature, 1e-9)
	require.InDelta(t, 0.95, got.Parameters.TopP, 1e-9)
	require.True(t, got.Parameters.DoSample)
}

func TestHuggingFace_ErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Model gpt2-large is currently loading"}`))
	}))
	defer srv.Close()

	h := NewHuggingFace(srv.URL, "gpt2-large", "", time.Second)
	_, err := h.GenerateText(context.Background(), "p", TextOptions{MaxTokens: 10})
	require.Error(t, err)
	require.Contains(t, err.Error(), "currently loading")
}

func TestHuggingFace_OnlyEchoIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"generated_text":"p"}]`))
	}))
	defer srv.Close()

	h := NewHuggingFace(srv.URL, "gpt2-large", "", time.Second)
	_, err := h.GenerateText(context.Background(), "p", TextOptions{})
	require.ErrorIs(t, err, ErrEmptyOutput)
}

type stubCompleter struct {
	req *deepseek.ChatCompletionRequest
	err error
}

func (s *stubCompleter) CreateChatCompletion(ctx context.Context, req *deepseek.ChatCompletionRequest) (*deepseek.ChatCompletionResponse, error) {
	s.req = req
	return nil, s.err
}

func TestDeepSeek_BuildsRequestAndWrapsError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("boom")}
	d := &DeepSeek{client: stub, model: deepseek.DeepSeekChat}

	_, err := d.GenerateText(context.Background(), "persona", TextOptions{MaxTokens: 100, Temperature: 0.7, TopP: 0.95})
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	require.NotNil(t, stub.req)
	require.Equal(t, deepseek.DeepSeekChat, stub.req.Model)
	require.Equal(t, 100, stub.req.MaxTokens)
	require.InDelta(t, 0.7, float64(stub.req.Temperature), 1e-6)
	require.InDelta(t, 0.95, float64(stub.req.TopP), 1e-6)
	require.Len(t, stub.req.Messages, 1)
	require.Equal(t, "persona", stub.req.Messages[0].Content)
}

func TestSDWebUI_WritesFixedFile(t *testing.T) {
	var calls int32
	var got txt2ImgRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/sdapi/v1/txt2img", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(txt2ImgResponse{Images: []string{tinyPNG}})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out", "generated_image.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	s := NewSDWebUI(path, SDWebUIOptions{URL: srv.URL, Steps: 30, Width: 512, Height: 512})
	out, err := s.GenerateImage(context.Background(), "a ninja writing css")
	require.NoError(t, err)
	require.Equal(t, path, out)
	require.Equal(t, "a ninja writing css", got.Prompt)
	require.Equal(t, 30, got.Steps)
	require.True(t, got.SendImages)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, _ := base64.StdEncoding.DecodeString(tinyPNG)
	require.Equal(t, want, data)
}

func TestSDWebUI_RejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(txt2ImgResponse{Images: []string{base64.StdEncoding.EncodeToString([]byte("hello world"))}})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "generated_image.png")
	s := NewSDWebUI(path, SDWebUIOptions{URL: srv.URL})
	_, err := s.GenerateImage(context.Background(), "x")
	require.Error(t, err)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestSDWebUI_EnforcesMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(txt2ImgResponse{Images: []string{tinyPNG}})
	}))
	defer srv.Close()

	s := NewSDWebUI(filepath.Join(t.TempDir(), "img.png"), SDWebUIOptions{URL: srv.URL, MaxBytes: 10})
	_, err := s.GenerateImage(context.Background(), "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "limit is 10")
}

func TestSDWebUI_EmptyPrompt(t *testing.T) {
	s := NewSDWebUI(filepath.Join(t.TempDir(), "img.png"), SDWebUIOptions{URL: "http://127.0.0.1:1"})
	_, err := s.GenerateImage(context.Background(), "   ")
	require.Error(t, err)
}

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/polaris-gw/polaris/pkg/config"
	"github.com/polaris-gw/polaris/pkg/dispatch"
	"github.com/polaris-gw/polaris/pkg/keypool"
	"github.com/polaris-gw/polaris/pkg/relay"
	"github.com/polaris-gw/polaris/pkg/translate"
)

const testSecret = "operator-secret-token"

// newTestServer wires a gateway around a fake upstream.
func newTestServer(t *testing.T, upstream http.HandlerFunc) (*Server, *httptest.Server) {
	t.Helper()
	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Upstream.BaseURL = up.URL
	cfg.Keys.OperatorSecret = testSecret

	pool := keypool.New("op-key-one:2,op-key-two:1", keypool.DefaultConfig())
	streams := relay.NewRegistry(time.Minute)
	d := dispatch.New(
		dispatch.Config{UpstreamBaseURL: up.URL, OperatorSecret: testSecret},
		keypool.DefaultConfig(),
		pool,
		streams,
	)

	return NewServer(cfg, Deps{
		Dispatcher: d,
		Operator:   pool,
		Streams:    streams,
	}), up
}

func TestNativePassthrough(t *testing.T) {
	var gotPath, gotKey string
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("X-Goog-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models": []}`))
	})

	req := httptest.NewRequest("GET", "/v1beta/models?pageSize=5", nil)
	req.Header.Set("X-Goog-Api-Key", testSecret)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotPath != "/v1beta/models?pageSize=5" {
		t.Errorf("upstream path = %q, query must pass through", gotPath)
	}
	if gotKey != "op-key-one" && gotKey != "op-key-two" {
		t.Errorf("upstream key = %q, want a pool key", gotKey)
	}
}

func TestNativeRejectsMissingCredential(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	req := httptest.NewRequest("GET", "/v1beta/models", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestChatCompletions(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("upstream path = %q, want generateContent", r.URL.Path)
		}
		var native translate.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&native); err != nil {
			t.Errorf("upstream body not a native request: %v", err)
		}
		if len(native.Contents) != 1 || native.Contents[0].Parts[0].Text != "hi" {
			t.Errorf("Contents = %+v", native.Contents)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "hello"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 1, "candidatesTokenCount": 1, "totalTokenCount": 2}
		}`))
	})

	body := `{"model": "gemini-2.0-flash", "messages": [{"role": "user", "content": "hi"}]}`
	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var chat translate.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &chat); err != nil {
		t.Fatalf("response not a chat completion: %v", err)
	}
	if chat.Choices[0].Message.Content != "hello" {
		t.Errorf("content = %q", chat.Choices[0].Message.Content)
	}
	if chat.Usage.TotalTokens != 2 {
		t.Errorf("Usage = %+v", chat.Usage)
	}
}

func TestChatCompletionsStreaming(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("alt = %q, want sse", r.URL.Query().Get("alt"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"candidates\": [{\"content\": {\"parts\": [{\"text\": \"hey\"}]}, \"finishReason\": \"STOP\"}]}\n\n")
	})

	body := `{"model": "gemini-2.0-flash", "messages": [{"role": "user", "content": "hi"}], "stream": true}`
	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	out := rec.Body.String()
	if !strings.Contains(out, `"chat.completion.chunk"`) {
		t.Errorf("stream output missing translated chunk: %s", out)
	}
	if !strings.Contains(out, "data: [DONE]") {
		t.Errorf("stream output missing [DONE]: %s", out)
	}
}

func TestChatCompletionsRejectsBadRequest(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(`{"model": ""}`))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_request_error") {
		t.Errorf("body = %s, want bearer error envelope", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAdminStatsAuth(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest("GET", "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rec.Code)
	}

	var stats struct {
		Pool keypool.Stats `json:"pool"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("stats not JSON: %v", err)
	}
	if stats.Pool.Total != 2 {
		t.Errorf("pool total = %d, want 2", stats.Pool.Total)
	}
	if strings.Contains(rec.Body.String(), "op-key-one") {
		t.Error("stats leaked a raw credential")
	}
}

func TestRequestIDEcho(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied-id")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "caller-supplied-id" {
		t.Errorf("request id = %q, want caller-supplied-id", got)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("request id not generated")
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("panic detail leaked to client")
	}
}

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/polaris-gw/polaris/pkg/dispatch"
	"github.com/polaris-gw/polaris/pkg/translate"
)

// maxRequestBody caps inbound request bodies. Generation prompts are
// large but bounded; anything past this is abuse.
const maxRequestBody = 16 << 20

// NativeHandler relays native-dialect requests verbatim. The path and
// query reach the upstream untouched; only the auth header is swapped.
type NativeHandler struct {
	dispatcher *dispatch.Dispatcher
}

// NewNativeHandler creates the native passthrough handler.
func NewNativeHandler(d *dispatch.Dispatcher) *NativeHandler {
	return &NativeHandler{dispatcher: d}
}

func (h *NativeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeNativeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	h.dispatcher.Dispatch(w, r, dispatch.Outbound{
		Method:  r.Method,
		Path:    path,
		Header:  r.Header.Clone(),
		Body:    body,
		Stream:  isNativeStream(r),
		Dialect: dispatch.DialectNative,
	})
}

// isNativeStream detects a streaming generation call: the streaming
// operation suffix, an explicit alt=sse, or an SSE Accept header.
func isNativeStream(r *http.Request) bool {
	if strings.Contains(r.URL.Path, ":streamGenerateContent") {
		return true
	}
	if r.URL.Query().Get("alt") == "sse" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// ChatHandler serves the bearer dialect: OpenAI-shaped chat completions
// translated onto the native generation API.
type ChatHandler struct {
	dispatcher *dispatch.Dispatcher
	apiVersion string
}

// NewChatHandler creates the bearer chat completions handler.
func NewChatHandler(d *dispatch.Dispatcher, apiVersion string) *ChatHandler {
	return &ChatHandler{dispatcher: d, apiVersion: apiVersion}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeBearerError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeBearerError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}

	native, chat, err := translate.Request(body)
	if err != nil {
		writeBearerError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	outBody, err := json.Marshal(native)
	if err != nil {
		writeBearerError(w, http.StatusInternalServerError, "server_error", "failed to encode upstream request")
		return
	}

	path := translate.NativeModelPath(h.apiVersion, chat.Model, chat.Stream)
	out := dispatch.Outbound{
		Method:  http.MethodPost,
		Path:    path,
		Header:  r.Header.Clone(),
		Body:    outBody,
		Stream:  chat.Stream,
		Dialect: dispatch.DialectBearer,
	}
	if chat.Stream {
		out.Path += "?alt=sse"
		out.TransformStream = func(rc io.ReadCloser) io.ReadCloser {
			return translate.Stream(rc, chat.Model)
		}
	} else {
		out.TransformBody = func(b []byte) ([]byte, error) {
			return translate.Response(b, chat.Model)
		}
	}

	h.dispatcher.Dispatch(w, r, out)
}

// HealthHandler reports liveness.
type HealthHandler struct{}

func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeNativeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"status":  "INVALID_ARGUMENT",
		},
	})
}

func writeBearerError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    kind,
			"code":    status,
		},
	})
}

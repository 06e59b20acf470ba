package translate

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// streamTranslator rewrites a native SSE stream into a bearer SSE stream
// on the fly. It reads upstream "data:" events, translates each chunk,
// and appends the terminal [DONE] marker bearer clients expect.
type streamTranslator struct {
	upstream io.ReadCloser
	scanner  *bufio.Scanner
	model    string
	id       string
	created  int64

	buf   bytes.Buffer
	first bool
	done  bool
}

// Stream wraps a native SSE response body so reads yield bearer-dialect
// SSE events for the given model. Closing the returned reader closes the
// upstream body.
func Stream(upstream io.ReadCloser, model string) io.ReadCloser {
	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &streamTranslator{
		upstream: upstream,
		scanner:  scanner,
		model:    model,
		id:       "chatcmpl-" + uuid.NewString(),
		created:  time.Now().Unix(),
		first:    true,
	}
}

func (s *streamTranslator) Read(p []byte) (int, error) {
	for s.buf.Len() == 0 {
		if s.done {
			return 0, io.EOF
		}
		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				return 0, err
			}
			s.buf.WriteString("data: [DONE]\n\n")
			continue
		}

		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		out, err := Chunk([]byte(payload), s.id, s.model, s.created, s.first)
		if err != nil {
			// Skip malformed chunks rather than killing the stream.
			continue
		}
		s.first = false
		s.buf.WriteString("data: ")
		s.buf.Write(out)
		s.buf.WriteString("\n\n")
	}

	return s.buf.Read(p)
}

func (s *streamTranslator) Close() error {
	return s.upstream.Close()
}

package streamclient

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spoq-dev/spoq/internal/sse"
)

// Stream pulls lines from an HTTP response body and feeds them through an
// sse.Parser, yielding typed events one at a time. Cancellation is
// cooperative: Cancel sets a flag that Next checks before its next blocking
// read and closes the underlying body to unblock a read already in flight.
type Stream struct {
	threadID string
	body     io.ReadCloser
	reader   *bufio.Reader
	parser   *sse.Parser
	logger   *zap.Logger
	cancelled atomic.Bool
}

func newStream(body io.ReadCloser, threadID string, logger *zap.Logger) *Stream {
	return &Stream{
		threadID: threadID,
		body:     body,
		reader:   bufio.NewReader(body),
		parser:   sse.NewParser(),
		logger:   logger,
	}
}

// Next blocks until a typed event is available, the stream ends (io.EOF),
// or an I/O error occurs (*StreamError). Per-event parse errors are logged
// and dropped; the read loop continues onto the next frame rather than
// terminating the stream.
func (s *Stream) Next() (*sse.Event, error) {
	for {
		if s.cancelled.Load() {
			return nil, io.EOF
		}

		line, err := s.reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")

		if line != "" {
			ev, parseErr := s.parser.Feed(trimmed)
			if parseErr != nil {
				s.logger.Warn("dropping unparseable sse event", zap.String("thread_id", s.threadID), zap.Error(parseErr))
			} else if ev != nil {
				return ev, nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || s.cancelled.Load() {
				return nil, io.EOF
			}
			return nil, &StreamError{ThreadID: s.threadID, Message: err.Error()}
		}
	}
}

// Cancel requests cooperative abort: the next call to Next (or the one
// currently blocked on a read) returns io.EOF instead of a further event.
func (s *Stream) Cancel() {
	s.cancelled.Store(true)
	_ = s.body.Close()
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}

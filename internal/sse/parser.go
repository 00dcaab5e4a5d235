// Package sse implements the stateful line-by-line Server-Sent Events
// accumulator spoq's stream client reads backend events through.
//
// The accumulation loop mirrors the bufio.Reader line-reading pattern used
// for OpenAI-style chat streams: lines are fed one at a time, "event:" and
// "data:" lines accumulate into a pending frame, and a blank line dispatches
// the frame into a typed Event. Comment lines (leading ":") are ignored.
package sse

import (
	"fmt"
	"strings"

	"github.com/spoq-dev/spoq/internal/spoqerr"
)

// Parser holds the accumulator state for one SSE stream. It is not safe for
// concurrent use; spoq feeds it lines from a single reader goroutine.
type Parser struct {
	eventType string
	data      []string
}

// NewParser returns a fresh Parser ready to accept lines.
func NewParser() *Parser {
	return &Parser{}
}

// Feed processes a single line of SSE input (already stripped of its
// trailing \r\n). It returns a non-nil Event only when the line completes a
// frame (a blank line following accumulated event/data lines). Feed never
// returns both a nil error and a nil event unless the line did not complete
// a frame.
func (p *Parser) Feed(line string) (*Event, error) {
	switch {
	case line == "":
		return p.dispatch()
	case strings.HasPrefix(line, ":"):
		return nil, nil
	case strings.HasPrefix(line, "event:"):
		p.eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		return nil, nil
	case strings.HasPrefix(line, "data:"):
		p.data = append(p.data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		return nil, nil
	default:
		// Unrecognized field name; SSE requires ignoring it rather than erroring.
		return nil, nil
	}
}

// dispatch completes the pending frame on a blank line and resets state for
// the next frame regardless of outcome.
func (p *Parser) dispatch() (*Event, error) {
	eventType := p.eventType
	data := p.data
	p.eventType = ""
	p.data = nil

	if eventType == "" && len(data) == 0 {
		// Blank line with nothing accumulated; nothing to dispatch.
		return nil, nil
	}

	joined := strings.Join(data, "\n")

	// No "event:" line: the type is read from the JSON payload's own
	// "type" field instead.
	if eventType == "" {
		t, err := typeFromPayload(joined)
		if err != nil {
			return nil, spoqerr.New(spoqerr.KindClient, "data without event line", fmt.Errorf("%w: %v", spoqerr.ErrInvalidEventPayload, err))
		}
		eventType = t
	}
	if len(data) == 0 {
		return nil, spoqerr.New(spoqerr.KindClient, "event type "+eventType, spoqerr.ErrMissingEventData)
	}

	return decode(eventType, joined)
}

// Reset discards any partially accumulated frame, for use when a stream
// reconnects mid-event.
func (p *Parser) Reset() {
	p.eventType = ""
	p.data = nil
}

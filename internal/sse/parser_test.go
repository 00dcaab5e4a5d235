package sse

import (
	"errors"
	"testing"

	"github.com/spoq-dev/spoq/internal/spoqerr"
	"github.com/spoq-dev/spoq/internal/testutil"
)

func feedLines(t *testing.T, p *Parser, lines ...string) (*Event, error) {
	t.Helper()
	var ev *Event
	var err error
	for _, line := range lines {
		ev, err = p.Feed(line)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}
	}
	return nil, nil
}

func TestParser_ContentEvent(t *testing.T) {
	p := NewParser()
	ev, err := feedLines(t, p,
		"event: content",
		`data: {"text":"hello","seq":1,"thread_id":"t1"}`,
		"",
	)
	testutil.RequireNoError(t, err, "feed content event")
	testutil.RequireTrue(t, ev != nil, "expected event to dispatch")
	testutil.RequireEqual(t, ev.Kind, KindContent, "event kind")
	testutil.RequireEqual(t, ev.Payload, ContentPayload{Text: "hello"}, "content payload")
	testutil.RequireEqual(t, ev.Meta.ThreadID, "t1", "thread id")
}

func TestParser_ContentTextAliases(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"text", `{"text":"hi"}`},
		{"data", `{"data":"hi"}`},
		{"content", `{"content":"hi"}`},
		{"delta.content", `{"delta":{"content":"hi"}}`},
		{"delta.text", `{"delta":{"text":"hi"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewParser()
			ev, err := feedLines(t, p, "event: content", "data: "+tc.data, "")
			testutil.RequireNoError(t, err, "feed content alias")
			testutil.RequireEqual(t, ev.Payload, ContentPayload{Text: "hi"}, "aliased text")
		})
	}
}

func TestParser_MultilineDataJoinedWithNewline(t *testing.T) {
	p := NewParser()
	ev, err := feedLines(t, p,
		"event: content",
		`data: {"text":`,
		`data: "hello"}`,
		"",
	)
	testutil.RequireNoError(t, err, "feed multiline data")
	testutil.RequireEqual(t, ev.Payload, ContentPayload{Text: "hello"}, "joined multiline payload")
}

func TestParser_CommentLinesIgnored(t *testing.T) {
	p := NewParser()
	ev, err := feedLines(t, p,
		": keep-alive comment",
		"event: ping",
		"data: {}",
		"",
	)
	testutil.RequireNoError(t, err, "feed with leading comment")
	testutil.RequireEqual(t, ev.Kind, KindPing, "ping event kind")
}

func TestParser_UnknownEventType(t *testing.T) {
	p := NewParser()
	_, err := feedLines(t, p, "event: not_a_real_kind", "data: {}", "")
	testutil.RequireTrue(t, errors.Is(err, spoqerr.ErrUnknownEventType), "expected ErrUnknownEventType")
}

func TestParser_EventWithoutData(t *testing.T) {
	p := NewParser()
	_, err := feedLines(t, p, "event: ping", "")
	testutil.RequireTrue(t, errors.Is(err, spoqerr.ErrMissingEventData), "expected ErrMissingEventData")
}

func TestParser_DataWithoutEventLineReadsTypeFromPayload(t *testing.T) {
	p := NewParser()
	ev, err := feedLines(t, p, `data: {"type":"ping"}`, "")
	testutil.RequireNoError(t, err, "data without event line should dispatch via payload type")
	testutil.RequireTrue(t, ev != nil, "expected event to dispatch")
	testutil.RequireEqual(t, ev.Kind, KindPing, "event kind read from payload type field")
}

func TestParser_DataWithoutEventLineOrTypeFieldErrors(t *testing.T) {
	p := NewParser()
	_, err := feedLines(t, p, "data: {}", "")
	testutil.RequireTrue(t, errors.Is(err, spoqerr.ErrInvalidEventPayload), "expected ErrInvalidEventPayload")
}

func TestParser_CommentOnlyBlockDispatchesNothing(t *testing.T) {
	p := NewParser()
	ev, err := feedLines(t, p, ": just a comment", ": another comment", "")
	testutil.RequireNoError(t, err, "comment-only block")
	testutil.RequireTrue(t, ev == nil, "comment-only block should not dispatch")
}

func TestParser_InvalidJSONPayload(t *testing.T) {
	p := NewParser()
	_, err := feedLines(t, p, "event: content", "data: {not json", "")
	testutil.RequireTrue(t, errors.Is(err, spoqerr.ErrInvalidEventPayload), "expected ErrInvalidEventPayload")
}

func TestParser_ResetClearsPartialFrame(t *testing.T) {
	p := NewParser()
	_, err := p.Feed("event: content")
	testutil.RequireNoError(t, err, "feed partial event line")
	p.Reset()
	ev, err := feedLines(t, p, "event: ping", "data: {}", "")
	testutil.RequireNoError(t, err, "feed after reset")
	testutil.RequireEqual(t, ev.Kind, KindPing, "event kind after reset")
}

func TestParser_ToolResultAcceptsStringOrJSON(t *testing.T) {
	p := NewParser()
	ev, err := feedLines(t, p, "event: tool_result", `data: {"id":"c1","result":"plain text"}`, "")
	testutil.RequireNoError(t, err, "feed tool result string")
	testutil.RequireEqual(t, ev.Payload.(ToolResultPayload).Result, "plain text", "string result")

	p2 := NewParser()
	ev2, err := feedLines(t, p2, "event: tool_result", `data: {"id":"c1","result":{"ok":true}}`, "")
	testutil.RequireNoError(t, err, "feed tool result object")
	testutil.RequireEqual(t, ev2.Payload.(ToolResultPayload).Result, `{"ok":true}`, "object result marshaled back to string")
}

func TestParser_TodoActiveFormDefaultsToContent(t *testing.T) {
	p := NewParser()
	ev, err := feedLines(t, p, "event: todos_updated",
		`data: {"todos":[{"content":"write tests","status":"in_progress"},{"content":"ship","active_form":"Shipping","status":"bogus"}]}`,
		"")
	testutil.RequireNoError(t, err, "feed todos_updated")
	todos := ev.Payload.(TodosUpdatedPayload).Todos
	testutil.RequireEqual(t, len(todos), 2, "todo count")
	testutil.RequireEqual(t, todos[0].ActiveForm, "write tests", "active form defaults to content")
	testutil.RequireEqual(t, todos[1].ActiveForm, "Shipping", "active form preserved when present")
	testutil.RequireEqual(t, todos[1].Status, "pending", "unknown status defaults to pending")
}

func TestParser_PermissionRequestPassesRawToolInput(t *testing.T) {
	p := NewParser()
	ev, err := feedLines(t, p, "event: permission_request",
		`data: {"permission_id":"p1","tool_name":"bash","tool_input":{"command":"ls -la"}}`,
		"")
	testutil.RequireNoError(t, err, "feed permission_request")
	payload := ev.Payload.(PermissionRequestPayload)
	testutil.RequireEqual(t, payload.PermissionID, "p1", "permission id")
	testutil.RequireStringContains(t, string(payload.ToolInput), `"command":"ls -la"`, "raw tool input passthrough")
}

func TestParser_ToolCallFieldAliases(t *testing.T) {
	p := NewParser()
	ev, err := feedLines(t, p, "event: tool_call_start", `data: {"id":"c1","tool_name":"grep"}`, "")
	testutil.RequireNoError(t, err, "feed tool_call_start with tool_name alias")
	testutil.RequireEqual(t, ev.Payload.(ToolCallStartPayload).FunctionName, "grep", "tool_name alias resolves to FunctionName")

	p2 := NewParser()
	ev2, err := feedLines(t, p2, "event: tool_call_argument", `data: {"id":"c1","argument_chunk":"--foo"}`, "")
	testutil.RequireNoError(t, err, "feed tool_call_argument with argument_chunk alias")
	testutil.RequireEqual(t, ev2.Payload.(ToolCallArgumentPayload).Chunk, "--foo", "argument_chunk alias resolves to Chunk")
}

func TestParser_SequentialEventsResetStateBetweenFrames(t *testing.T) {
	p := NewParser()
	ev1, err := feedLines(t, p, "event: content", `data: {"text":"a"}`, "")
	testutil.RequireNoError(t, err, "first frame")
	ev2, err := feedLines(t, p, "event: content", `data: {"text":"b"}`, "")
	testutil.RequireNoError(t, err, "second frame")
	testutil.RequireEqual(t, ev1.Payload, ContentPayload{Text: "a"}, "first frame payload")
	testutil.RequireEqual(t, ev2.Payload, ContentPayload{Text: "b"}, "second frame payload independent of first")
}

package streamclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/spoq-dev/spoq/internal/sse"
	"github.com/spoq-dev/spoq/internal/testutil"
)

type fakeDoer struct {
	resp    *http.Response
	lastReq *http.Request
	err     error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func sseBody(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestClient_StreamEmitsTypedEvents(t *testing.T) {
	body := "event: thread_info\ndata: {\"thread_id\":\"T1\",\"title\":\"Greet\"}\n\n" +
		"event: content\ndata: {\"text\":\"Hi\"}\n\n" +
		"event: done\ndata: {}\n\n"

	doer := &fakeDoer{resp: &http.Response{StatusCode: 200, Body: sseBody(body)}}
	client := NewClient("http://backend", doer, nil)

	stream, err := client.Stream(context.Background(), Request{Prompt: "Hello", SessionID: "s1", ThreadID: "local-x"})
	testutil.RequireNoError(t, err, "start stream")

	ev1, err := stream.Next()
	testutil.RequireNoError(t, err, "first event")
	testutil.RequireEqual(t, ev1.Kind, sse.KindThreadInfo, "first event kind")

	ev2, err := stream.Next()
	testutil.RequireNoError(t, err, "second event")
	testutil.RequireEqual(t, ev2.Kind, sse.KindContent, "second event kind")

	ev3, err := stream.Next()
	testutil.RequireNoError(t, err, "third event")
	testutil.RequireEqual(t, ev3.Kind, sse.KindDone, "third event kind")

	_, err = stream.Next()
	testutil.RequireTrue(t, err == io.EOF, "stream should end with io.EOF")
}

func TestClient_StreamSkipsUnparseableEventsAndContinues(t *testing.T) {
	body := "event: not_a_kind\ndata: {}\n\n" +
		"event: done\ndata: {}\n\n"

	doer := &fakeDoer{resp: &http.Response{StatusCode: 200, Body: sseBody(body)}}
	client := NewClient("http://backend", doer, nil)

	stream, err := client.Stream(context.Background(), Request{Prompt: "Hello", SessionID: "s1"})
	testutil.RequireNoError(t, err, "start stream")

	ev, err := stream.Next()
	testutil.RequireNoError(t, err, "should skip the unknown event and surface the next one")
	testutil.RequireEqual(t, ev.Kind, sse.KindDone, "surfaced event kind")
}

func TestClient_NonSuccessStatusReturnsServerError(t *testing.T) {
	doer := &fakeDoer{resp: &http.Response{StatusCode: 503, Body: sseBody("backend overloaded")}}
	client := NewClient("http://backend", doer, nil)

	_, err := client.Stream(context.Background(), Request{Prompt: "Hello", SessionID: "s1"})
	testutil.RequireTrue(t, err != nil, "expected an error for 503 status")
}

func TestClient_CancelStopsIteration(t *testing.T) {
	body := "event: content\ndata: {\"text\":\"a\"}\n\n" +
		"event: content\ndata: {\"text\":\"b\"}\n\n"

	doer := &fakeDoer{resp: &http.Response{StatusCode: 200, Body: sseBody(body)}}
	client := NewClient("http://backend", doer, nil)

	stream, err := client.Stream(context.Background(), Request{Prompt: "Hello", SessionID: "s1"})
	testutil.RequireNoError(t, err, "start stream")

	stream.Cancel()
	_, err = stream.Next()
	testutil.RequireTrue(t, err == io.EOF, "cancelled stream should report io.EOF")
}

func TestClient_RequestBodyShape(t *testing.T) {
	doer := &fakeDoer{resp: &http.Response{StatusCode: 200, Body: sseBody("")}}
	client := NewClient("http://backend", doer, nil)

	_, err := client.Stream(context.Background(), Request{Prompt: "Hello", SessionID: "s1", ThreadID: "t1", PlanMode: true})
	testutil.RequireNoError(t, err, "start stream")
	testutil.RequireEqual(t, doer.lastReq.URL.Path, "/v1/stream", "request path")
	testutil.RequireEqual(t, doer.lastReq.Method, http.MethodPost, "request method")
}

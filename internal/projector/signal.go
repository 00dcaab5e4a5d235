// Package projector is the single function that consumes typed SSE and
// control-channel events and applies them to the thread cache and session
// state, surfacing a small set of cross-cutting signals the event loop
// reacts to directly (reconciliation, stream completion, OS-shim hints).
package projector

// SignalKind discriminates a cross-cutting Signal.
type SignalKind string

const (
	SignalThreadCreated    SignalKind = "thread_created"
	SignalStreamComplete   SignalKind = "stream_complete"
	SignalStreamError      SignalKind = "stream_error"
	SignalStreamCancelled  SignalKind = "stream_cancelled"
	SignalOAuthConsent     SignalKind = "oauth_consent_required"
	SignalContextCompacted SignalKind = "context_compacted"
)

// Signal is a projector side effect the event loop, not the cache, must act
// on (e.g. notifying the OS shim, or nothing beyond a redraw).
type Signal struct {
	Kind SignalKind

	ThreadCreated    *ThreadCreatedSignal
	StreamComplete   *StreamCompleteSignal
	StreamError      *StreamErrorSignal
	StreamCancelled  *StreamCancelledSignal
	OAuthConsent     *OAuthConsentSignal
	ContextCompacted *ContextCompactedSignal
}

// ThreadCreatedSignal reports that a pending thread was reconciled to a
// backend-assigned real id.
type ThreadCreatedSignal struct {
	PendingID string
	RealID    string
	Title     string
}

// StreamCompleteSignal reports a stream finished normally.
type StreamCompleteSignal struct {
	ThreadID string
}

// StreamErrorSignal reports a stream terminated with a backend error.
type StreamErrorSignal struct {
	ThreadID string
	Message  string
}

// StreamCancelledSignal reports the backend acknowledged a cancel request.
type StreamCancelledSignal struct {
	ThreadID string
}

// OAuthConsentSignal reports the user must complete an OAuth consent flow.
type OAuthConsentSignal struct {
	Provider string
	URL      string
}

// ContextCompactedSignal reports the backend compacted context server-side.
type ContextCompactedSignal struct {
	TokensBefore int
	TokensAfter  int
}

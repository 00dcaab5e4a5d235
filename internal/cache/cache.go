package cache

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleEvictAfter is the LRU threshold: a thread untouched this long
// with no in-flight streaming message is dropped from the cache.
const DefaultIdleEvictAfter = 30 * time.Minute

// ThreadCache owns every Thread and its Message vector. It is the single
// mutator of this state; callers on the event-loop task call its methods
// directly with no locking.
type ThreadCache struct {
	threads             map[string]*Thread
	messages            map[string][]*Message
	threadOrder         []string // newest-created first; not reordered on access
	pendingToReal       map[string]string
	pendingTitleUpdates map[string]pendingTitleUpdate
	lastAccessed        map[string]time.Time
	errors              map[string][]*ErrorInfo
	errorFocus          map[string]int

	idleEvictAfter time.Duration
	nextMessageID  int64
	nextStreamID   int64
}

type pendingTitleUpdate struct {
	Title          string
	HasTitle       bool
	Description    string
	HasDescription bool
}

// NewThreadCache constructs an empty cache with the given idle-eviction
// threshold. Pass DefaultIdleEvictAfter for the spec default.
func NewThreadCache(idleEvictAfter time.Duration) *ThreadCache {
	return &ThreadCache{
		threads:             make(map[string]*Thread),
		messages:            make(map[string][]*Message),
		pendingToReal:       make(map[string]string),
		pendingTitleUpdates: make(map[string]pendingTitleUpdate),
		lastAccessed:        make(map[string]time.Time),
		errors:              make(map[string][]*ErrorInfo),
		errorFocus:          make(map[string]int),
		idleEvictAfter:      idleEvictAfter,
		nextMessageID:       1,
		nextStreamID:        -1,
	}
}

// resolve follows a single pending->real redirect, returning the thread's
// current id and whether the thread (under either id) exists in the cache.
func (c *ThreadCache) resolve(threadID string) (string, bool) {
	if real, ok := c.pendingToReal[threadID]; ok {
		threadID = real
	}
	_, exists := c.threads[threadID]
	return threadID, exists
}

// Thread returns the current Thread for an id (pending or real), or nil.
func (c *ThreadCache) Thread(threadID string) *Thread {
	id, ok := c.resolve(threadID)
	if !ok {
		return nil
	}
	return c.threads[id]
}

// Messages returns the message slice for a thread, or nil.
func (c *ThreadCache) Messages(threadID string) []*Message {
	id, ok := c.resolve(threadID)
	if !ok {
		return nil
	}
	return c.messages[id]
}

// ThreadOrder returns the current thread ordering, newest-created first.
// Accessing a thread does not move it.
func (c *ThreadCache) ThreadOrder() []string {
	return c.threadOrder
}

// Errors returns the error banner queue for a thread.
func (c *ThreadCache) Errors(threadID string) []*ErrorInfo {
	id, ok := c.resolve(threadID)
	if !ok {
		return nil
	}
	return c.errors[id]
}

// CreatePendingThread creates a client-side thread with a "local-<uuid>" id
// placed at the MRU head, and returns that pending id.
func (c *ThreadCache) CreatePendingThread(title string, threadType ThreadType) string {
	now := time.Now()
	pendingID := "local-" + uuid.NewString()
	c.threads[pendingID] = &Thread{
		ID:             pendingID,
		Title:          title,
		ThreadType:     threadType,
		PermissionMode: PermissionDefault,
		PlanState:      PlanNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.messages[pendingID] = nil
	c.threadOrder = append([]string{pendingID}, c.threadOrder...)
	c.lastAccessed[pendingID] = now
	return pendingID
}

// AppendUserMessage appends a finalized user message and bumps its
// render_version. No-op if the thread does not exist.
func (c *ThreadCache) AppendUserMessage(threadID, content string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	msg := &Message{ID: c.nextMessageID, ThreadID: id, Role: RoleUser, Content: content, RenderVersion: 1}
	c.nextMessageID++
	c.messages[id] = append(c.messages[id], msg)
	c.bumpThread(id)
}

// StartStreamingAssistant appends a streaming assistant message with a
// negative placeholder id and returns that id. No-op (returns 0) if the
// thread does not exist.
func (c *ThreadCache) StartStreamingAssistant(threadID string) int64 {
	id, ok := c.resolve(threadID)
	if !ok {
		return 0
	}
	msgID := c.nextStreamID
	c.nextStreamID--
	msg := &Message{ID: msgID, ThreadID: id, Role: RoleAssistant, IsStreaming: true, RenderVersion: 1}
	c.messages[id] = append(c.messages[id], msg)
	c.bumpThread(id)
	return msgID
}

// EnsureStreamingAssistant returns the trailing streaming assistant
// message's id, starting a new one if the thread exists but has none.
// Returns 0 if the thread does not exist.
func (c *ThreadCache) EnsureStreamingAssistant(threadID string) int64 {
	id, ok := c.resolve(threadID)
	if !ok {
		return 0
	}
	if msg := c.trailingStreaming(id); msg != nil {
		return msg.ID
	}
	return c.StartStreamingAssistant(id)
}

// CurrentStreamingID returns the trailing streaming message's id, or 0 if
// the thread does not exist or has no streaming message.
func (c *ThreadCache) CurrentStreamingID(threadID string) int64 {
	id, ok := c.resolve(threadID)
	if !ok {
		return 0
	}
	if msg := c.trailingStreaming(id); msg != nil {
		return msg.ID
	}
	return 0
}

// trailingStreaming returns the last message in a thread if it is currently
// streaming, or nil.
func (c *ThreadCache) trailingStreaming(id string) *Message {
	msgs := c.messages[id]
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]
	if !last.IsStreaming {
		return nil
	}
	return last
}

// AppendToken appends text to the trailing streaming assistant message's
// partial_content, merging it into the last Text segment. No-op if the
// thread or a trailing streaming message does not exist.
func (c *ThreadCache) AppendToken(threadID, text string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	msg := c.trailingStreaming(id)
	if msg == nil {
		return
	}
	msg.PartialContent += text
	appendTextSegment(msg, text)
	c.bumpMessage(msg)
}

// AppendReasoningToken appends text to the trailing streaming assistant
// message's reasoning_content. No-op if no such message exists.
func (c *ThreadCache) AppendReasoningToken(threadID, text string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	msg := c.trailingStreaming(id)
	if msg == nil {
		return
	}
	msg.ReasoningContent += text
	c.bumpMessage(msg)
}

// appendTextSegment appends text to the message's trailing Text segment,
// creating one if the last segment is not Text (merge invariant: no two
// consecutive Text segments).
func appendTextSegment(msg *Message, text string) {
	if n := len(msg.Segments); n > 0 && msg.Segments[n-1].Kind == SegmentText {
		msg.Segments[n-1].Text += text
		return
	}
	msg.Segments = append(msg.Segments, Segment{Kind: SegmentText, Text: text})
}

// findTool locates the ToolEvent with the given call id among the trailing
// streaming message's segments.
func (c *ThreadCache) findTool(threadID, callID string) *ToolEvent {
	id, ok := c.resolve(threadID)
	if !ok {
		return nil
	}
	msg := c.trailingStreaming(id)
	if msg == nil {
		return nil
	}
	for i := range msg.Segments {
		if msg.Segments[i].Kind == SegmentTool && msg.Segments[i].Tool != nil && msg.Segments[i].Tool.CallID == callID {
			return msg.Segments[i].Tool
		}
	}
	return nil
}

// StartToolEvent appends a new Running tool segment to the trailing
// streaming message.
func (c *ThreadCache) StartToolEvent(threadID, callID, functionName string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	msg := c.trailingStreaming(id)
	if msg == nil {
		return
	}
	msg.Segments = append(msg.Segments, Segment{
		Kind: SegmentTool,
		Tool: &ToolEvent{CallID: callID, FunctionName: functionName, Status: ToolRunning, StartedAt: time.Now()},
	})
	c.bumpMessage(msg)
}

// AppendToolArgChunk accumulates a chunk of a tool call's streamed argument JSON.
func (c *ThreadCache) AppendToolArgChunk(threadID, callID, chunk string) {
	if tool := c.findTool(threadID, callID); tool != nil {
		tool.ArgsJSON += chunk
		c.bumpTrailing(threadID)
	}
}

// SetToolDisplayName sets a tool event's human-readable display name.
func (c *ThreadCache) SetToolDisplayName(threadID, callID, displayName string) {
	if tool := c.findTool(threadID, callID); tool != nil {
		tool.DisplayName = displayName
		c.bumpTrailing(threadID)
	}
}

// CompleteToolEvent marks a tool event Complete.
func (c *ThreadCache) CompleteToolEvent(threadID, callID string) {
	if tool := c.findTool(threadID, callID); tool != nil {
		tool.Status = ToolComplete
		tool.CompletedAt = time.Now()
		c.bumpTrailing(threadID)
	}
}

// FailToolEvent marks a tool event Failed.
func (c *ThreadCache) FailToolEvent(threadID, callID string) {
	if tool := c.findTool(threadID, callID); tool != nil {
		tool.Status = ToolFailed
		tool.CompletedAt = time.Now()
		c.bumpTrailing(threadID)
	}
}

// findSubagent locates the SubagentEvent with the given id among the
// trailing streaming message's segments.
func (c *ThreadCache) findSubagent(threadID, subagentID string) *SubagentEvent {
	id, ok := c.resolve(threadID)
	if !ok {
		return nil
	}
	msg := c.trailingStreaming(id)
	if msg == nil {
		return nil
	}
	for i := range msg.Segments {
		if msg.Segments[i].Kind == SegmentSubagent && msg.Segments[i].Subagent != nil && msg.Segments[i].Subagent.SubagentID == subagentID {
			return msg.Segments[i].Subagent
		}
	}
	return nil
}

// StartSubagentEvent appends a new Started subagent segment to the trailing
// streaming message.
func (c *ThreadCache) StartSubagentEvent(threadID, subagentID, name string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	msg := c.trailingStreaming(id)
	if msg == nil {
		return
	}
	msg.Segments = append(msg.Segments, Segment{
		Kind:     SegmentSubagent,
		Subagent: &SubagentEvent{SubagentID: subagentID, Name: name, Status: SubagentStarted},
	})
	c.bumpMessage(msg)
}

// UpdateSubagentProgress records the latest progress message for a subagent event.
func (c *ThreadCache) UpdateSubagentProgress(threadID, subagentID, message string) {
	if sub := c.findSubagent(threadID, subagentID); sub != nil {
		sub.Status = SubagentRunning
		sub.LastUpdate = message
		c.bumpTrailing(threadID)
	}
}

// CompleteSubagentEvent marks a subagent event complete with a summary.
func (c *ThreadCache) CompleteSubagentEvent(threadID, subagentID, summary string, isError bool) {
	if sub := c.findSubagent(threadID, subagentID); sub != nil {
		sub.Status = SubagentComplete
		sub.Summary = summary
		sub.IsError = isError
		c.bumpTrailing(threadID)
	}
}

// resultPreviewLimit is the maximum length of a tool result preview.
const resultPreviewLimit = 500

// SetToolResult records a tool's final result content, truncated to a
// word-boundary-respecting preview, and completes or fails the event
// depending on is_error.
func (c *ThreadCache) SetToolResult(threadID, callID, content string, isError bool) {
	tool := c.findTool(threadID, callID)
	if tool == nil {
		return
	}
	tool.ResultPreview = truncateAtWordBoundary(content, resultPreviewLimit)
	tool.ResultIsError = isError
	if isError {
		c.FailToolEvent(threadID, callID)
	} else {
		c.CompleteToolEvent(threadID, callID)
	}
}

func truncateAtWordBoundary(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

// FinalizeStreaming moves partial_content to content, clears is_streaming,
// assigns the final message id, and collapses reasoning by default.
// Idempotent: the second call after the first finds no trailing streaming
// message and is a no-op.
func (c *ThreadCache) FinalizeStreaming(threadID string, finalMsgID int64) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	msg := c.trailingStreaming(id)
	if msg == nil {
		return
	}
	msg.Content = msg.PartialContent
	msg.PartialContent = ""
	msg.IsStreaming = false
	msg.ID = finalMsgID
	msg.ReasoningCollapsed = true
	c.bumpMessage(msg)
}

// ReconcileThread rewrites a pending id to its backend-assigned real id
// across threads, messages, and thread_order, and flushes any buffered
// title/description updates that arrived before reconciliation.
func (c *ThreadCache) ReconcileThread(pendingID, realID string, title string) {
	thread, ok := c.threads[pendingID]
	if !ok {
		return
	}
	delete(c.threads, pendingID)
	thread.ID = realID
	if title != "" {
		thread.Title = title
	}
	c.threads[realID] = thread

	c.messages[realID] = c.messages[pendingID]
	delete(c.messages, pendingID)
	for _, msg := range c.messages[realID] {
		msg.ThreadID = realID
	}

	for i, tid := range c.threadOrder {
		if tid == pendingID {
			c.threadOrder[i] = realID
		}
	}

	if errs, ok := c.errors[pendingID]; ok {
		c.errors[realID] = errs
		delete(c.errors, pendingID)
	}
	if focus, ok := c.errorFocus[pendingID]; ok {
		c.errorFocus[realID] = focus
		delete(c.errorFocus, pendingID)
	}
	if accessed, ok := c.lastAccessed[pendingID]; ok {
		c.lastAccessed[realID] = accessed
		delete(c.lastAccessed, pendingID)
	}

	c.pendingToReal[pendingID] = realID

	for _, key := range []string{pendingID, realID} {
		if pending, ok := c.pendingTitleUpdates[key]; ok {
			if pending.HasTitle {
				thread.Title = pending.Title
			}
			if pending.HasDescription {
				thread.Description = pending.Description
			}
			delete(c.pendingTitleUpdates, key)
		}
	}
}

// ApplyThreadUpdate sets a thread's title/description, buffering the update
// if the thread id is still pending reconciliation.
func (c *ThreadCache) ApplyThreadUpdate(threadID string, title, description string, hasTitle, hasDescription bool) {
	if thread, ok := c.threads[threadID]; ok {
		if hasTitle {
			thread.Title = title
		}
		if hasDescription {
			thread.Description = description
		}
		return
	}
	update := c.pendingTitleUpdates[threadID]
	if hasTitle {
		update.Title = title
		update.HasTitle = true
	}
	if hasDescription {
		update.Description = description
		update.HasDescription = true
	}
	c.pendingTitleUpdates[threadID] = update
}

// PushError appends an inline error banner to a thread's queue, focusing it.
func (c *ThreadCache) PushError(threadID, code, message string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	errInfo := &ErrorInfo{ID: uuid.NewString(), Code: code, Message: message, Timestamp: time.Now()}
	c.errors[id] = append(c.errors[id], errInfo)
	c.errorFocus[id] = len(c.errors[id]) - 1
}

// DismissFocusedError removes the currently focused error from a thread's
// queue and refocuses the new most-recent entry, if any.
func (c *ThreadCache) DismissFocusedError(threadID string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	errs := c.errors[id]
	focus, hasFocus := c.errorFocus[id]
	if !hasFocus || focus < 0 || focus >= len(errs) {
		return
	}
	errs = append(errs[:focus], errs[focus+1:]...)
	c.errors[id] = errs
	if len(errs) == 0 {
		delete(c.errorFocus, id)
		return
	}
	c.errorFocus[id] = len(errs) - 1
}

// ToggleReasoningCollapsed flips reasoning_collapsed on the focused
// message: the most recent message in the thread that carries reasoning
// content. A no-op if the thread has no reasoning to show.
func (c *ThreadCache) ToggleReasoningCollapsed(threadID string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	msgs := c.messages[id]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ReasoningContent != "" {
			msgs[i].ReasoningCollapsed = !msgs[i].ReasoningCollapsed
			c.bumpMessage(msgs[i])
			return
		}
	}
}

// Touch records that a thread was just accessed, for LRU purposes.
func (c *ThreadCache) Touch(threadID string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	c.lastAccessed[id] = time.Now()
}

// EvictIdle drops every thread untouched for longer than idleEvictAfter
// that has no in-flight streaming message, preserving the relative order of
// survivors.
func (c *ThreadCache) EvictIdle(now time.Time) {
	survivors := c.threadOrder[:0:0]
	for _, id := range c.threadOrder {
		if c.shouldEvict(id, now) {
			delete(c.threads, id)
			delete(c.messages, id)
			delete(c.lastAccessed, id)
			delete(c.errors, id)
			delete(c.errorFocus, id)
			continue
		}
		survivors = append(survivors, id)
	}
	c.threadOrder = survivors
}

func (c *ThreadCache) shouldEvict(id string, now time.Time) bool {
	accessed, ok := c.lastAccessed[id]
	if !ok || now.Sub(accessed) <= c.idleEvictAfter {
		return false
	}
	for _, msg := range c.messages[id] {
		if msg.IsStreaming {
			return false
		}
	}
	return true
}

func (c *ThreadCache) bumpThread(id string) {
	if thread, ok := c.threads[id]; ok {
		thread.UpdatedAt = time.Now()
		thread.MessageCount = len(c.messages[id])
	}
	c.lastAccessed[id] = time.Now()
}

func (c *ThreadCache) bumpMessage(msg *Message) {
	msg.RenderVersion++
	c.bumpThread(msg.ThreadID)
}

func (c *ThreadCache) bumpTrailing(threadID string) {
	id, ok := c.resolve(threadID)
	if !ok {
		return
	}
	if msg := c.trailingStreaming(id); msg != nil {
		c.bumpMessage(msg)
	}
}

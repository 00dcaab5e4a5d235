package render

import (
	"strings"
	"testing"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/control"
	"github.com/spoq-dev/spoq/internal/hitarea"
	"github.com/spoq-dev/spoq/internal/session"
	"github.com/spoq-dev/spoq/internal/testutil"
)

func newThreadView(c *cache.ThreadCache, s *session.State, threadID string) *AppViewState {
	return &AppViewState{
		Screen:         ScreenThread,
		Focus:          FocusInput,
		TermWidth:      60,
		TermHeight:     20,
		Cache:          c,
		Session:        s,
		ActiveThreadID: threadID,
		Scroll:         &ScrollState{},
		Conn:           control.ConnState{Status: control.StatusConnected},
	}
}

func TestPrepare_ClearsHitRegistryAndBuildsHeightCache(t *testing.T) {
	caches := NewCaches()
	caches.Hits.Register(hitarea.Rect{Width: 1, Height: 1}, hitarea.Action{Kind: hitarea.ActionDismissError}, nil)

	c := cache.NewThreadCache(cache.DefaultIdleEvictAfter)
	s := session.New()
	threadID := c.CreatePendingThread("t", cache.ThreadConversation)
	c.AppendUserMessage(threadID, "hello there")

	view := newThreadView(c, s, threadID)
	Prepare(caches, view)

	testutil.RequireEqual(t, caches.Hits.Len(), 0, "prepare clears stale hit rects")
	testutil.RequireTrue(t, caches.Heights[threadID] != nil, "height cache built for the active thread")
}

func TestRender_ThreadScreenIncludesMessageContentAndInput(t *testing.T) {
	caches := NewCaches()
	c := cache.NewThreadCache(cache.DefaultIdleEvictAfter)
	s := session.New()
	threadID := c.CreatePendingThread("My Thread", cache.ThreadConversation)
	c.AppendUserMessage(threadID, "hello there")

	view := newThreadView(c, s, threadID)
	view.InputContent = "next message"
	Prepare(caches, view)

	out, outputs := Render(caches, view)
	testutil.RequireTrue(t, strings.Contains(out, "hello there"), "message content rendered")
	testutil.RequireTrue(t, strings.Contains(out, "next message"), "input content rendered")
	testutil.RequireTrue(t, strings.Contains(out, "My Thread"), "header shows thread title")
	testutil.RequireTrue(t, outputs.TotalContentLines > 0, "outputs report total content lines")
}

func TestRender_PlanProposedRegistersApprovalHitAreas(t *testing.T) {
	caches := NewCaches()
	c := cache.NewThreadCache(cache.DefaultIdleEvictAfter)
	s := session.New()
	threadID := c.CreatePendingThread("t", cache.ThreadConversation)
	thread := c.Thread(threadID)
	thread.PlanState = cache.PlanProposed

	view := newThreadView(c, s, threadID)
	Prepare(caches, view)
	out, _ := Render(caches, view)

	testutil.RequireTrue(t, strings.Contains(out, "approve"), "plan approval affordance rendered")
	testutil.RequireTrue(t, caches.Hits.Len() >= 3, "approve/reject/view-plan hit areas registered")
}

func TestRender_DashboardListsThreads(t *testing.T) {
	caches := NewCaches()
	c := cache.NewThreadCache(cache.DefaultIdleEvictAfter)
	s := session.New()
	c.CreatePendingThread("Alpha", cache.ThreadConversation)
	c.CreatePendingThread("Beta", cache.ThreadConversation)

	view := &AppViewState{Screen: ScreenDashboard, TermWidth: 60, TermHeight: 20, Cache: c, Session: s, Scroll: &ScrollState{}}
	out, outputs := Render(caches, view)

	testutil.RequireTrue(t, strings.Contains(out, "Alpha"), "dashboard lists first thread")
	testutil.RequireTrue(t, strings.Contains(out, "Beta"), "dashboard lists second thread")
	testutil.RequireEqual(t, outputs.TotalContentLines, 3, "one line per thread plus the header")
}

func TestRender_ErrorBannerRegistersDismissHitArea(t *testing.T) {
	caches := NewCaches()
	c := cache.NewThreadCache(cache.DefaultIdleEvictAfter)
	s := session.New()
	threadID := c.CreatePendingThread("t", cache.ThreadConversation)
	c.PushError(threadID, "boom", "something broke")

	view := newThreadView(c, s, threadID)
	Prepare(caches, view)
	out, _ := Render(caches, view)

	testutil.RequireTrue(t, strings.Contains(out, "something broke"), "error message rendered")
	testutil.RequireTrue(t, caches.Hits.Len() >= 1, "dismiss hit area registered for the error banner")
}

func TestRender_ThinkingStateShowsSpinner(t *testing.T) {
	caches := NewCaches()
	c := cache.NewThreadCache(cache.DefaultIdleEvictAfter)
	s := session.New()
	threadID := c.CreatePendingThread("t", cache.ThreadConversation)
	c.AppendUserMessage(threadID, "hi")
	c.StartStreamingAssistant(threadID)

	view := newThreadView(c, s, threadID)
	view.Tick = 3
	Prepare(caches, view)
	out, _ := Render(caches, view)

	testutil.RequireTrue(t, strings.Contains(out, SpinnerGlyph(3)), "spinner glyph rendered while thinking")
	testutil.RequireTrue(t, strings.Contains(out, SpinnerVerb(3)), "spinner verb rendered while thinking")
}

func TestRender_ErrorBannerCapsVisibleAtTwoAndSummarizesRest(t *testing.T) {
	caches := NewCaches()
	c := cache.NewThreadCache(cache.DefaultIdleEvictAfter)
	s := session.New()
	threadID := c.CreatePendingThread("t", cache.ThreadConversation)
	c.PushError(threadID, "e1", "first error")
	c.PushError(threadID, "e2", "second error")
	c.PushError(threadID, "e3", "third error")

	view := newThreadView(c, s, threadID)
	Prepare(caches, view)
	out, _ := Render(caches, view)

	testutil.RequireTrue(t, strings.Contains(out, "first error"), "first error rendered")
	testutil.RequireTrue(t, strings.Contains(out, "second error"), "second error rendered")
	testutil.RequireTrue(t, !strings.Contains(out, "third error"), "third error not rendered directly")
	testutil.RequireTrue(t, strings.Contains(out, "+1 more"), "excess errors summarized as +N more")
}

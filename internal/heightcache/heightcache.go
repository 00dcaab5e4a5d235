// Package heightcache maintains a per-thread cache of each message's
// estimated visual line height, incrementally kept in step with the
// message cache's render_version counters, and answers the binary-search
// visible-range query the renderer needs to virtualize a long thread.
package heightcache

import (
	"sort"
	"strings"

	"github.com/spoq-dev/spoq/internal/cache"
)

// Entry is one message's cached height and its cumulative offset within
// the thread (the running total of every prior entry's visual_lines).
type Entry struct {
	MessageID        int64
	RenderVersion    uint64
	VisualLines      int
	CumulativeOffset int
}

// Cache holds the height entries for exactly one (thread_id, viewport_width)
// pair. A width change or a thread switch invalidates it outright.
type Cache struct {
	threadID      string
	viewportWidth int
	entries       []Entry
	totalLines    int
}

// New builds an empty cache keyed to threadID and viewportWidth.
func New(threadID string, viewportWidth int) *Cache {
	return &Cache{threadID: threadID, viewportWidth: viewportWidth}
}

// IsValidFor reports whether the cache can be reused (incrementally
// updated) for the given key, rather than rebuilt from scratch.
func (c *Cache) IsValidFor(threadID string, viewportWidth int) bool {
	return c != nil && c.threadID == threadID && c.viewportWidth == viewportWidth
}

// Entries exposes the current height entries, in message order.
func (c *Cache) Entries() []Entry {
	if c == nil {
		return nil
	}
	return c.entries
}

// TotalLines is the sum of every entry's visual_lines.
func (c *Cache) TotalLines() int {
	if c == nil {
		return 0
	}
	return c.totalLines
}

// EstimateHeight approximates a message's rendered visual line count
// without performing an actual wrap/render pass: base top/bottom padding,
// a thinking-block contribution when reasoning is present, content lines
// approximated from character count, and a flat cost per tool/subagent
// segment.
func EstimateHeight(message *cache.Message, viewportWidth int) int {
	lines := 2

	if message.Role == cache.RoleAssistant && message.ReasoningContent != "" {
		if message.ReasoningCollapsed {
			lines += 2
		} else {
			reasoningLines := strings.Count(message.ReasoningContent, "\n") + 1
			lines += 1 + reasoningLines + 1 + 1
		}
	}

	content := message.Content
	if message.IsStreaming {
		content = message.PartialContent
	}
	charCount := len([]rune(content))
	logicalLines := (charCount + 59) / 60
	if logicalLines < 1 {
		logicalLines = 1
	}
	wrapFactor := 1
	if viewportWidth > 0 {
		wrapFactor = (60 + viewportWidth - 1) / viewportWidth
	}
	lines += logicalLines * wrapFactor

	if message.Role == cache.RoleAssistant {
		toolCount := 0
		for _, seg := range message.Segments {
			if seg.Kind == cache.SegmentTool || seg.Kind == cache.SegmentSubagent {
				toolCount++
			}
		}
		lines += toolCount * 2
	}

	return lines
}

// Prepare brings existing up to date against messages for (threadID,
// viewportWidth), rebuilding from scratch when the key changed and
// otherwise incrementally recomputing only the entries whose
// (message_id, render_version) no longer match. It always returns the
// cache to use going forward (existing, mutated in place, or a fresh one).
func Prepare(existing *Cache, threadID string, viewportWidth int, messages []*cache.Message) *Cache {
	if !existing.IsValidFor(threadID, viewportWidth) {
		fresh := New(threadID, viewportWidth)
		for _, m := range messages {
			fresh.append(m.ID, m.RenderVersion, EstimateHeight(m, viewportWidth))
		}
		return fresh
	}

	c := existing
	if len(messages) < len(c.entries) {
		c.entries = c.entries[:len(messages)]
		c.recalculateOffsetsFrom(len(c.entries))
	}

	firstChanged := -1
	limit := len(c.entries)
	for i := 0; i < limit; i++ {
		msg := messages[i]
		entry := &c.entries[i]
		if entry.MessageID == msg.ID && entry.RenderVersion == msg.RenderVersion {
			continue
		}
		newHeight := EstimateHeight(msg, viewportWidth)
		entry.MessageID = msg.ID
		entry.RenderVersion = msg.RenderVersion
		if entry.VisualLines != newHeight {
			entry.VisualLines = newHeight
			if firstChanged == -1 {
				firstChanged = i
			}
		}
	}

	for i := len(c.entries); i < len(messages); i++ {
		msg := messages[i]
		c.append(msg.ID, msg.RenderVersion, EstimateHeight(msg, viewportWidth))
	}

	if firstChanged != -1 {
		c.recalculateOffsetsFrom(firstChanged)
	}

	return c
}

func (c *Cache) append(messageID int64, renderVersion uint64, visualLines int) {
	offset := 0
	if n := len(c.entries); n > 0 {
		offset = c.entries[n-1].CumulativeOffset + c.entries[n-1].VisualLines
	}
	c.entries = append(c.entries, Entry{
		MessageID:        messageID,
		RenderVersion:    renderVersion,
		VisualLines:      visualLines,
		CumulativeOffset: offset,
	})
	c.totalLines = offset + visualLines
}

func (c *Cache) recalculateOffsetsFrom(start int) {
	offset := 0
	if start > 0 {
		prev := c.entries[start-1]
		offset = prev.CumulativeOffset + prev.VisualLines
	}
	for i := start; i < len(c.entries); i++ {
		c.entries[i].CumulativeOffset = offset
		offset += c.entries[i].VisualLines
	}
	c.totalLines = offset
}

// VisibleRange returns the half-open [start, end) message index range that
// intersects [scrollFromTop, scrollFromTop+viewportHeight), plus the
// residual line offset within the first visible message, using binary
// search over the cumulative offsets.
func (c *Cache) VisibleRange(scrollFromTop, viewportHeight int) (start, end, firstLineOffset int) {
	if c == nil || len(c.entries) == 0 || viewportHeight <= 0 {
		return 0, 0, 0
	}
	if scrollFromTop >= c.totalLines {
		return len(c.entries), len(c.entries), 0
	}

	start = sort.Search(len(c.entries), func(i int) bool {
		e := c.entries[i]
		return e.CumulativeOffset+e.VisualLines > scrollFromTop
	})
	if start >= len(c.entries) {
		return len(c.entries), len(c.entries), 0
	}

	firstLineOffset = scrollFromTop - c.entries[start].CumulativeOffset
	if firstLineOffset < 0 {
		firstLineOffset = 0
	}

	visibleEnd := scrollFromTop + viewportHeight
	end = sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].CumulativeOffset >= visibleEnd
	})

	return start, end, firstLineOffset
}

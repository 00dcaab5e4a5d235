package render

import "strings"

// WrapWithPrefix wraps text to width-len(prefix) columns, putting prefix on
// the first line of each newline-separated paragraph and indenting every
// wrapped continuation with spaces of
// the same visual width so a prefix like a user-message vertical bar reads
// as continuous down the left edge.
func WrapWithPrefix(text, prefix string, width int) []string {
	indent := strings.Repeat(" ", visualWidth(prefix))
	contentWidth := width - visualWidth(prefix)
	if contentWidth < 1 {
		contentWidth = 1
	}

	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		lines := wrapParagraph(paragraph, contentWidth)
		if len(lines) == 0 {
			lines = []string{""}
		}
		for i, line := range lines {
			if i == 0 && len(out) == 0 {
				out = append(out, prefix+line)
			} else if i == 0 {
				out = append(out, prefix+line)
			} else {
				out = append(out, indent+line)
			}
		}
	}
	return out
}

// wrapParagraph greedily word-wraps a single line (no embedded newlines) to
// width columns, breaking mid-word only when a single word exceeds width.
func wrapParagraph(s string, width int) []string {
	if s == "" {
		return []string{""}
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var cur strings.Builder
	curWidth := 0

	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			curWidth = 0
		}
	}

	for _, word := range words {
		wordWidth := visualWidth(word)
		for wordWidth > width {
			if curWidth > 0 {
				flush()
			}
			lines = append(lines, word[:width])
			word = word[width:]
			wordWidth = visualWidth(word)
		}
		sep := 0
		if curWidth > 0 {
			sep = 1
		}
		if curWidth+sep+wordWidth > width {
			flush()
			sep = 0
		}
		if sep == 1 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
		curWidth += sep + wordWidth
	}
	flush()
	return lines
}

func visualWidth(s string) int {
	return len([]rune(s))
}

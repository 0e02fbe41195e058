package llm

import (
	"regexp"
	"strings"
)

// reFence matches one fenced block; the info string may be go, golang or empty.
var reFence = regexp.MustCompile("(?s)```[ \\t]*(?:go|golang)?[ \\t]*\\r?\\n(.*?)```")

// ExtractCode strips Markdown fences and surrounding prose from a model answer.
// With several fenced blocks the first one declaring a package main wins.
// The result ends with exactly one newline, or is empty.
func ExtractCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if blocks := reFence.FindAllStringSubmatch(s, -1); len(blocks) > 0 {
		chosen := blocks[0][1]
		for _, b := range blocks {
			if strings.Contains(b[1], "package main") {
				chosen = b[1]
				break
			}
		}
		return withNewline(strings.TrimSpace(chosen))
	}

	// unterminated fence: drop the opening line and any dangling closer
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = ""
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return withNewline(strings.TrimSpace(s))
}

func withNewline(s string) string {
	if s == "" {
		return ""
	}
	return s + "\n"
}

package gitutil

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// ChangedLines returns the line numbers on the new side of a unified diff
// that were added by the patch. Context lines are not included.
func ChangedLines(patch string, logger *slog.Logger) []int {
	var changed []int
	currentLine := -1

	for line := range strings.SplitSeq(patch, "\n") {
		if strings.HasPrefix(line, "@@") {
			matches := hunkHeaderRegex.FindStringSubmatch(line)
			if len(matches) < 2 {
				currentLine = -1
				continue
			}
			start, err := strconv.Atoi(matches[1])
			if err != nil {
				if logger != nil {
					logger.Warn("skipped malformed hunk header", "line", line, "error", err)
				}
				currentLine = -1
				continue
			}
			currentLine = start
			continue
		}

		if currentLine == -1 {
			continue
		}

		switch {
		case strings.HasPrefix(line, "diff --git "):
			currentLine = -1
		case strings.HasPrefix(line, "+"):
			changed = append(changed, currentLine)
			currentLine++
		case strings.HasPrefix(line, " "):
			currentLine++
		}
	}
	return changed
}

// FormatRanges collapses sorted line numbers into "a-b" ranges, e.g. "3-5, 9".
func FormatRanges(lines []int) string {
	if len(lines) == 0 {
		return ""
	}
	var parts []string
	start, prev := lines[0], lines[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, n := range lines[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return strings.Join(parts, ", ")
}

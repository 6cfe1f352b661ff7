package search

import (
	"bufio"
	"strings"
	"unicode/utf8"
)

// MaxPassageRunes caps the size of a passage produced by SplitPassages.
const MaxPassageRunes = 600

// SplitPassages turns extracted document text into search passages.
//
// Blank lines end a passage. Extractors often emit one line per visual line
// with no blank separators, so consecutive lines are also packed together
// until adding the next one would exceed MaxPassageRunes. A single line longer
// than the cap becomes its own passage.
func SplitPassages(text string) []string {
	var (
		out   []string
		cur   strings.Builder
		runes int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
		runes = 0
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		n := utf8.RuneCountInString(line)
		if runes > 0 && runes+1+n > MaxPassageRunes {
			flush()
		}
		if runes > 0 {
			cur.WriteByte(' ')
			runes++
		}
		cur.WriteString(line)
		runes += n
	}
	// a line beyond the scanner buffer ends the scan; keep what we have
	flush()
	return out
}

package app

import (
	"fmt"
	"strings"
)

type resultGroup struct {
	source  string
	section string
	results []Result
}

// groupBySection groups results sharing source and section, in order of
// first appearance.
func groupBySection(results []Result) []resultGroup {
	var groups []resultGroup
	index := make(map[string]int)
	for _, r := range results {
		key := r.Source + "\x00" + r.Section
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, resultGroup{source: r.Source, section: r.Section})
		}
		groups[i].results = append(groups[i].results, r)
	}
	return groups
}

// BuildContext renders results as a context block for a generation prompt.
// The block never exceeds maxChars runes; the entry that does not fit is cut
// and ends with "...".
func BuildContext(results []Result, maxChars int) string {
	var buf strings.Builder
	used := 0

	for i, g := range groupBySection(results) {
		header := fmt.Sprintf("%d. [%s", i+1, g.source)
		if g.section != "" {
			header += " › " + g.section
		}
		header += fmt.Sprintf("] (similarity: %.2f)\n", g.results[0].Similarity)

		var body strings.Builder
		for _, r := range g.results {
			body.WriteString(r.Content)
			body.WriteString("\n")
		}
		entry := header + body.String() + "\n"

		size := len([]rune(entry))
		if used+size <= maxChars {
			buf.WriteString(entry)
			used += size
			continue
		}

		room := maxChars - used - len([]rune(header)) - len("...\n")
		if room > 0 {
			buf.WriteString(header)
			buf.WriteString(string([]rune(body.String())[:room]))
			buf.WriteString("...\n")
		}
		break
	}

	return buf.String()
}

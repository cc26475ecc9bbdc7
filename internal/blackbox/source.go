package blackbox

import (
	"bytes"
	"strings"
)

// logSpan locates one log inside a file. Flight controllers append a new log
// to the same file on every arm, each starting with the same first header
// line.
type logSpan struct {
	start, end int
}

// splitLogs skips leading '#' comment lines and cuts data at every repeat of
// the first header line.
func splitLogs(data []byte) ([]string, []logSpan, error) {
	var comments []string
	pos := 0
	for pos < len(data) && data[pos] == '#' {
		end := bytes.IndexByte(data[pos:], '\n')
		if end < 0 {
			end = len(data) - pos
		}
		line := strings.TrimSpace(strings.TrimPrefix(string(data[pos:pos+end]), "#"))
		comments = append(comments, line)
		pos += end + 1
	}
	if pos+1 >= len(data) || data[pos] != 'H' || data[pos+1] != ' ' {
		return comments, nil, ErrNoLog
	}
	nl := bytes.IndexByte(data[pos:], '\n')
	if nl < 0 {
		return comments, []logSpan{{start: pos, end: len(data)}}, nil
	}
	marker := data[pos : pos+nl+1]

	var spans []logSpan
	start := pos
	for {
		rel := bytes.Index(data[start+len(marker):], marker)
		if rel < 0 {
			spans = append(spans, logSpan{start: start, end: len(data)})
			break
		}
		next := start + len(marker) + rel
		spans = append(spans, logSpan{start: start, end: next})
		start = next
	}
	return comments, spans, nil
}

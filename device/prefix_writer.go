package device

import (
	"bytes"
	"io"
)

// prefixWriter is an io.Writer that injects a prefix at the beginning of each
// line written to sink.
type prefixWriter struct {
	sink   io.Writer
	prefix string

	// midLine is set when the last write did not end with a line feed.
	midLine bool
}

// Write writes p to the sink. The injected prefixes are not included in the
// returned byte count.
func (w *prefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) > 0 {
		if !w.midLine {
			if _, err := io.WriteString(w.sink, w.prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			line = p[:i+1]
		}

		n, err := w.sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}

		w.midLine = line[len(line)-1] != '\n'
		p = p[len(line):]
	}

	return written, nil
}

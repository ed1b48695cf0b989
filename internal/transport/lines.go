package transport

import (
	"bytes"
	"strings"
	"time"
)

const (
	readChunk = 256
	// maxLineLen bounds the pending buffer when a device never sends '\n'.
	maxLineLen = 4096
)

// chunkReader is a reader whose Read returns (0, nil) when its own
// timeout expires, as serial ports do.
type chunkReader interface {
	Read(p []byte) (int, error)
}

// lineReader assembles newline-terminated lines across reads. Partial
// lines survive a timeout and are completed by the next call.
type lineReader struct {
	r       chunkReader
	pending []byte
	chunk   []byte
	now     func() time.Time
}

func newLineReader(r chunkReader) *lineReader {
	return &lineReader{r: r, chunk: make([]byte, readChunk), now: time.Now}
}

// readLine returns the next complete line or ErrReadTimeout once timeout
// has elapsed, even while bytes keep arriving without a '\n'. Unterminated
// input stays pending for the next call.
func (l *lineReader) readLine(timeout time.Duration) (string, error) {
	deadline := l.now().Add(timeout)
	for {
		if line, ok := l.next(); ok {
			return line, nil
		}
		n, err := l.r.Read(l.chunk)
		l.pending = append(l.pending, l.chunk[:n]...)
		if n == 0 && err != nil {
			return "", err
		}
		if !l.now().Before(deadline) {
			if line, ok := l.next(); ok {
				return line, nil
			}
			return "", ErrReadTimeout
		}
	}
}

// next pops one complete line with invalid UTF-8 bytes dropped.
func (l *lineReader) next() (string, bool) {
	i := bytes.IndexByte(l.pending, '\n')
	if i < 0 {
		if len(l.pending) < maxLineLen {
			return "", false
		}
		i = len(l.pending)
	}
	raw := l.pending[:i]
	if i < len(l.pending) {
		l.pending = l.pending[i+1:]
	} else {
		l.pending = l.pending[:0]
	}
	line := strings.ToValidUTF8(string(raw), "")
	return strings.TrimRight(line, "\r"), true
}

package orchestrator

import (
	"errors"
	"io"
	"syscall"
)

const readChunk = 1024

// Tee copies r to every sink, turning CRLF into LF, until r reports end of
// file or fails. A failing sink does not stop the copy: the reader is
// drained so the child never blocks on a full terminal buffer. The first
// sink error is returned once the stream ends.
func Tee(r io.Reader, sinks ...io.Writer) error {
	norm := &crlfNormalizer{}
	buf := make([]byte, readChunk)
	var sinkErr error

	emit := func(p []byte) {
		if len(p) == 0 {
			return
		}
		for _, w := range sinks {
			if _, err := w.Write(p); err != nil && sinkErr == nil {
				sinkErr = err
			}
		}
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			emit(norm.Normalize(buf[:n]))
		}
		if err != nil {
			emit(norm.Flush())
			if errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) {
				// EIO is how Linux reports that the terminal's other side closed.
				return sinkErr
			}
			return errors.Join(err, sinkErr)
		}
	}
}

// crlfNormalizer rewrites "\r\n" as "\n" across chunk boundaries.
type crlfNormalizer struct {
	pendingCR bool
}

func (c *crlfNormalizer) Normalize(p []byte) []byte {
	out := make([]byte, 0, len(p)+1)
	if c.pendingCR {
		c.pendingCR = false
		if len(p) == 0 || p[0] != '\n' {
			out = append(out, '\r')
		}
	}
	for i, b := range p {
		if b == '\r' {
			if i == len(p)-1 {
				c.pendingCR = true
				continue
			}
			if p[i+1] == '\n' {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// Flush returns a carriage return held back at the end of the last chunk.
func (c *crlfNormalizer) Flush() []byte {
	if !c.pendingCR {
		return nil
	}
	c.pendingCR = false
	return []byte{'\r'}
}

package remote

import (
	"bytes"
	"io"
	"sync"
)

// CRLFWriter turns "\n" into "\r\n" so log lines stay aligned while the
// terminal is in raw mode.
type CRLFWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

func NewCRLFWriter(w io.Writer) *CRLFWriter {
	return &CRLFWriter{w: w}
}

func (c *CRLFWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(p)
	c.buf = c.buf[:0]
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			c.buf = append(c.buf, p...)
			break
		}
		c.buf = append(c.buf, p[:i]...)
		if i == 0 || p[i-1] != '\r' {
			c.buf = append(c.buf, '\r')
		}
		c.buf = append(c.buf, '\n')
		p = p[i+1:]
	}
	if _, err := c.w.Write(c.buf); err != nil {
		return 0, err
	}
	return n, nil
}

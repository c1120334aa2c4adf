package subproc

import (
	"bytes"
	"sync"
)

// lineSplitter is an io.Writer that hands every complete, non-empty line to fn.
// A trailing fragment is kept until its newline arrives. fn must not retain
// the slice.
type lineSplitter struct {
	buf []byte
	fn  func(line []byte)
}

func (s *lineSplitter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	start := 0
	for {
		i := bytes.IndexByte(s.buf[start:], '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(s.buf[start : start+i]); len(line) > 0 {
			s.fn(line)
		}
		start += i + 1
	}
	if start > 0 {
		s.buf = append(s.buf[:0], s.buf[start:]...)
	}
	return len(p), nil
}

// tailBuffer keeps the last max bytes written through add.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (t *tailBuffer) add(line []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line...)
	t.buf = append(t.buf, '\n')
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}

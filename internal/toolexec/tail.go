package toolexec

import (
	"strings"
	"sync"
)

// tailBuffer keeps the last n complete lines written to it plus any partial line.
type tailBuffer struct {
	mu      sync.Mutex
	n       int
	lines   []string
	partial strings.Builder
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			t.push(t.partial.String())
			t.partial.Reset()
			continue
		}
		t.partial.WriteByte(b)
	}
	return len(p), nil
}

func (t *tailBuffer) push(line string) {
	t.lines = append(t.lines, strings.TrimRight(line, "\r"))
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.lines
	if t.partial.Len() > 0 {
		out = append(append([]string(nil), out...), t.partial.String())
		if len(out) > t.n {
			out = out[len(out)-t.n:]
		}
	}
	return strings.Join(out, "\n")
}

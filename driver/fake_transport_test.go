package driver

import (
	"errors"
	"sync"
	"time"
)

// fakeTransport serves a scripted sequence of read chunks and records
// everything written to it. Once the script is exhausted, Read returns an
// error so a test with a wrong expectation fails fast instead of hanging.
type fakeTransport struct {
	mu      sync.Mutex
	queue   [][]byte
	written [][]byte
	closed  bool

	// stall makes Read return empty chunks once the script is exhausted,
	// simulating a device that never answers.
	stall bool
}

func newFakeTransport(chunks ...string) *fakeTransport {
	f := &fakeTransport{}
	for _, c := range chunks {
		f.queue = append(f.queue, []byte(c))
	}
	return f
}

func (f *fakeTransport) Open() error  { return nil }
func (f *fakeTransport) Close() error { f.closed = true; return nil }
func (f *fakeTransport) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeTransport) Read() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		if f.stall {
			return nil, nil
		}
		return nil, errors.New("fakeTransport: script exhausted")
	}
	chunk := f.queue[0]
	f.queue = f.queue[1:]
	return chunk, nil
}

func (f *fakeTransport) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), b...)
	f.written = append(f.written, cp)
	return len(b), nil
}

func (f *fakeTransport) SetTimeout(d time.Duration) error { return nil }

func (f *fakeTransport) allWritten() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, w := range f.written {
		out = append(out, w...)
	}
	return string(out)
}

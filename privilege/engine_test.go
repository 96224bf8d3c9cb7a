package privilege

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgrid/netcli/channel"
)

// scriptedTransport implements transport.Transport with a queued sequence
// of read chunks, for driving a real channel.Channel end to end.
type scriptedTransport struct {
	mu    sync.Mutex
	queue [][]byte
}

func newScriptedTransport(chunks ...string) *scriptedTransport {
	st := &scriptedTransport{}
	for _, c := range chunks {
		st.queue = append(st.queue, []byte(c))
	}
	return st
}

func (s *scriptedTransport) Open() error  { return nil }
func (s *scriptedTransport) Close() error { return nil }
func (s *scriptedTransport) IsAlive() bool { return true }

func (s *scriptedTransport) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, errors.New("scriptedTransport: exhausted")
	}
	chunk := s.queue[0]
	s.queue = s.queue[1:]
	return chunk, nil
}

func (s *scriptedTransport) Write(b []byte) (int, error) { return len(b), nil }
func (s *scriptedTransport) SetTimeout(d time.Duration) error { return nil }

func engineOverScript(t *testing.T, chunks ...string) (*Engine, *Map) {
	t.Helper()
	m := threeLevelMap(t)
	st := newScriptedTransport(chunks...)
	cfg := channel.DefaultConfig(m.Combined())
	cfg.PromptSearchDepth = 128
	ch := channel.New(st, cfg)
	return NewEngine(ch, m), m
}

func TestEngineAcquireSameLevelNoOp(t *testing.T) {
	e, _ := engineOverScript(t, "rtr1>")
	e.SetCurrent("exec")
	require.NoError(t, e.Acquire(context.Background(), "exec"))
	assert.Equal(t, "exec", e.Current())
}

func TestEngineAcquireDiscoversCurrentAndEscalates(t *testing.T) {
	// get_prompt discovers "exec"; escalate echoes "enable", hits the
	// escalate_prompt, the secondary password lands on the target prompt,
	// then the final verification get_prompt confirms it.
	e, _ := engineOverScript(t, "rtr1>", "enable\r\n", "password:", "rtr1#", "rtr1#")
	e.SecondaryPassword = "secret"

	err := e.Acquire(context.Background(), "privileged")
	require.NoError(t, err)
	assert.Equal(t, "privileged", e.Current())
}

func TestEngineAcquireMismatchAfterWalk(t *testing.T) {
	e, _ := engineOverScript(t, "rtr1>", "enable\r\n", "password:", "rtr1#", "rtr1>")
	e.SecondaryPassword = "secret"

	err := e.Acquire(context.Background(), "privileged")
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestEngineAcquireUnknownTarget(t *testing.T) {
	e, _ := engineOverScript(t, "rtr1>")
	err := e.Acquire(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

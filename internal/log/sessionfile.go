package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SessionFile is the on-disk sink for a device session transcript. It
// appends until the transcript reaches capBytes, then rolls over, keeping
// up to keep older transcripts as path.1 (newest) through path.<keep>
// (oldest). Transcripts routinely carry whatever the device echoed back,
// including in-band login conversations, so files are created owner-only.
type SessionFile struct {
	mu sync.Mutex

	path     string
	capBytes int64
	keep     int

	f       *os.File
	written int64
}

// NewSessionFile opens (or creates) the transcript at path, creating parent
// directories as needed. capBytes bounds a single transcript; keep is how
// many rolled-over transcripts to retain.
func NewSessionFile(path string, capBytes int64, keep int) (*SessionFile, error) {
	s := &SessionFile{path: path, capBytes: capBytes, keep: keep}
	if err := s.reopen(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SessionFile) reopen() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("session log %s: %w", s.path, err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("session log %s: %w", s.path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("session log %s: %w", s.path, err)
	}
	s.f = f
	s.written = st.Size()
	return nil
}

func (s *SessionFile) backup(i int) string {
	return fmt.Sprintf("%s.%d", s.path, i)
}

// rollover shifts each retained transcript up by one, dropping the oldest,
// and renames the live transcript to path.1. Caller holds mu.
func (s *SessionFile) rollover() error {
	if s.f != nil {
		if err := s.f.Close(); err != nil {
			return err
		}
		s.f = nil
	}

	_ = os.Remove(s.backup(s.keep))
	for i := s.keep - 1; i > 0; i-- {
		if _, err := os.Stat(s.backup(i)); err == nil {
			if err := os.Rename(s.backup(i), s.backup(i+1)); err != nil {
				return fmt.Errorf("session log %s: %w", s.path, err)
			}
		}
	}

	if s.keep > 0 {
		if _, err := os.Stat(s.path); err == nil {
			if err := os.Rename(s.path, s.backup(1)); err != nil {
				return fmt.Errorf("session log %s: %w", s.path, err)
			}
		}
	} else {
		// keep=0 means no history: the full transcript is simply dropped.
		_ = os.Remove(s.path)
	}

	return s.reopen()
}

// Write implements io.Writer. A write that would push the transcript past
// capBytes triggers a rollover first, so it lands whole in the new file.
func (s *SessionFile) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return 0, fmt.Errorf("session log %s: closed", s.path)
	}
	if s.written+int64(len(p)) > s.capBytes {
		if err := s.rollover(); err != nil {
			return 0, err
		}
	}
	n, err := s.f.Write(p)
	s.written += int64(n)
	return n, err
}

// Close implements io.Closer. Idempotent.
func (s *SessionFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

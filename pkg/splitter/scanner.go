package splitter

import (
	"errors"
	"io"
)

const DefaultWindowSize = 64 * 1024

// Scanner reads a stream window by window and hands out complete records one
// at a time. A new window is only read after every record of the previous one
// has been consumed, so at most one window of records is buffered.
type Scanner struct {
	r     io.Reader
	buf   []byte
	state State

	pending []Record
	current Record

	err  error
	done bool
}

func NewScanner(r io.Reader, b Boundary, windowSize int) *Scanner {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Scanner{
		r:     r,
		buf:   make([]byte, windowSize),
		state: NewState(b),
	}
}

// Scan advances to the next record. It returns false when the stream is
// exhausted or a read failed, Err tells the two apart.
func (s *Scanner) Scan() bool {
	for len(s.pending) == 0 {
		if s.done {
			return false
		}
		s.fill()
	}
	s.current = s.pending[0]
	s.pending[0] = Record{}
	s.pending = s.pending[1:]
	return true
}

func (s *Scanner) fill() {
	n, err := s.r.Read(s.buf)
	if n > 0 {
		var records []Record
		s.state, records = s.state.Step(s.buf[:n])
		s.pending = append(s.pending[:0], records...)
	}
	if err == nil {
		return
	}
	s.done = true
	if errors.Is(err, io.EOF) {
		s.err = s.state.Flush()
		return
	}
	s.err = err
}

// Record returns the record produced by the last successful call to Scan.
func (s *Scanner) Record() Record {
	return s.current
}

// Err returns the first non-EOF error. A stream that ends inside a record
// yields an error wrapping ErrTruncatedRecord.
func (s *Scanner) Err() error {
	return s.err
}

// Package splitter turns an arbitrarily chunked byte stream into complete
// logical records. A record is only emitted once its closing boundary marker
// has been observed, so the output does not depend on how the stream was cut
// into read windows.
package splitter

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrTruncatedRecord is reported when the stream ends inside a record.
var ErrTruncatedRecord = errors.New("stream ended inside a record")

// Boundary describes how records are delimited. Line boundaries have no Open
// marker and Close is the line terminator. Tag boundaries keep both markers as
// part of the emitted record.
type Boundary struct {
	Open  []byte
	Close []byte
}

// Lines delimits records by "\n". Carriage returns before the terminator are dropped.
func Lines() Boundary {
	return Boundary{Close: []byte("\n")}
}

// Tags delimits records by an opening and closing element tag, e.g. "<page>" and "</page>".
func Tags(open, close string) Boundary {
	return Boundary{Open: []byte(open), Close: []byte(close)}
}

func (b Boundary) lineOriented() bool {
	return len(b.Open) == 0
}

// Record is one complete unit taken from the stream.
type Record struct {
	Text string
	// Offset is the byte offset of the first byte of Text in the stream.
	Offset int64
}

// State is the splitter state carried between windows. The zero value is not
// usable, create one with NewState.
type State struct {
	boundary  Boundary
	remainder []byte
	// offset of remainder[0] in the stream
	offset int64
}

func NewState(b Boundary) State {
	if len(b.Close) == 0 {
		panic("splitter: boundary without closing marker")
	}
	return State{boundary: b}
}

// Remainder returns the bytes carried over to the next window.
func (s State) Remainder() []byte {
	return s.remainder
}

// Step consumes one window and returns the next state with every record that
// became complete. The window is copied, callers may reuse it. The remainder
// buffer moves to the returned State, so s must not be stepped again.
func (s State) Step(window []byte) (State, []Record) {
	closing := s.boundary.Close
	// the remainder holds no closing marker, only its tail can start one
	from := max(len(s.remainder)-len(closing)+1, 0)
	data := append(s.remainder, window...)

	idx := bytes.LastIndex(data[from:], closing)
	if idx < 0 {
		return State{boundary: s.boundary, remainder: data, offset: s.offset}, nil
	}
	cut := from + idx + len(closing)

	records := s.split(data[:cut], s.offset)
	n := copy(data, data[cut:])
	next := State{
		boundary:  s.boundary,
		remainder: data[:n],
		offset:    s.offset + int64(cut),
	}
	return next, records
}

func (s State) split(complete []byte, base int64) []Record {
	closing := s.boundary.Close
	records := make([]Record, 0, bytes.Count(complete, closing))

	pos := 0
	for pos < len(complete) {
		idx := bytes.Index(complete[pos:], closing)
		if idx < 0 {
			break
		}
		fragment := complete[pos : pos+idx]
		start := pos
		pos += idx + len(closing)

		if s.boundary.lineOriented() {
			fragment = bytes.TrimSuffix(fragment, []byte("\r"))
			if len(bytes.TrimSpace(fragment)) == 0 {
				continue
			}
			records = append(records, Record{Text: string(fragment), Offset: base + int64(start)})
			continue
		}

		open := bytes.Index(fragment, s.boundary.Open)
		if open < 0 {
			// prologue or inter-record noise
			continue
		}
		text := make([]byte, 0, len(fragment)-open+len(closing))
		text = append(text, fragment[open:]...)
		text = append(text, closing...)
		records = append(records, Record{Text: string(text), Offset: base + int64(start+open)})
	}
	return records
}

// Flush is called once the stream is exhausted. Trailing whitespace, and for
// tag boundaries any trailing data that does not open a record, is accepted.
// Anything else is a truncated record.
func (s State) Flush() error {
	rest := bytes.TrimSpace(s.remainder)
	if len(rest) == 0 {
		return nil
	}
	if !s.boundary.lineOriented() && !bytes.Contains(rest, s.boundary.Open) {
		return nil
	}
	return fmt.Errorf("%w: %d bytes at offset %d", ErrTruncatedRecord, len(s.remainder), s.offset)
}

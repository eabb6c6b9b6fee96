// internal/protocol/framer.go
// Recovers self-delimiting JSON records from a raw byte stream.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxBuffer bounds how many bytes of a single partial record are held.
const DefaultMaxBuffer = 64 << 10

// MalformedPolicy selects what the Framer does with input that will never parse.
type MalformedPolicy string

const (
	// PolicyFail surfaces ErrMalformedMessage to the caller.
	PolicyFail MalformedPolicy = "fail"
	// PolicyDiscard drops bytes up to the next '{' and keeps going.
	PolicyDiscard MalformedPolicy = "discard"
)

// ParseMalformedPolicy validates a policy name.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch p := MalformedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFail, PolicyDiscard:
		return p, nil
	default:
		return "", fmt.Errorf("unknown malformed policy %q", s)
	}
}

const whitespace = " \t\r\n"

// Framer is a per-connection accumulator. It is not safe for concurrent use;
// the connection's read pump owns it.
type Framer struct {
	buf       []byte
	policy    MalformedPolicy
	maxBuffer int
	discarded int
}

// NewFramer returns a Framer. A zero maxBuffer selects DefaultMaxBuffer,
// an empty policy selects PolicyFail.
func NewFramer(policy MalformedPolicy, maxBuffer int) *Framer {
	if policy == "" {
		policy = PolicyFail
	}
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Framer{policy: policy, maxBuffer: maxBuffer}
}

// Feed appends p and returns every record that is now complete, in stream order.
// Trailing partial input is kept for the next call. Under PolicyFail the records
// decoded before the malformed one are returned together with the error.
func (f *Framer) Feed(p []byte) ([]Inbound, error) {
	f.buf = append(f.buf, p...)
	f.trim()

	var out []Inbound
	for len(f.buf) > 0 {
		msg, n, err := f.next()
		switch {
		case err == nil:
			out = append(out, msg)
			f.consume(n)
		case n > 0:
			// A complete record that is not a valid message is dropped either way.
			f.consume(n)
			if f.policy == PolicyDiscard {
				f.discarded += n
				continue
			}
			return out, err
		case errors.Is(err, ErrIncompleteMessage):
			if len(f.buf) > f.maxBuffer {
				err = fmt.Errorf("%w: record exceeds %d bytes", ErrMalformedMessage, f.maxBuffer)
				if f.policy == PolicyDiscard {
					f.discarded += len(f.buf)
					f.buf = f.buf[:0]
					return out, nil
				}
				return out, err
			}
			return out, nil
		default:
			if f.policy == PolicyDiscard {
				f.resync()
				continue
			}
			return out, err
		}
	}
	return out, nil
}

// Buffered returns the number of bytes waiting for the rest of a record.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Discarded returns the number of bytes dropped under PolicyDiscard.
func (f *Framer) Discarded() int {
	return f.discarded
}

// next decodes the record at offset 0 and reports how many bytes it used.
// n is also set when a complete record fails to parse as an Inbound.
func (f *Framer) next() (Inbound, int, error) {
	if f.buf[0] != '{' {
		return Inbound{}, 0, fmt.Errorf("%w: record must start with '{', got %q", ErrMalformedMessage, f.buf[0])
	}

	dec := json.NewDecoder(bytes.NewReader(f.buf))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Inbound{}, 0, ErrIncompleteMessage
		}
		return Inbound{}, 0, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	n := int(dec.InputOffset())
	msg, err := ParseInbound(raw)
	if err != nil {
		return Inbound{}, n, err
	}
	return msg, n, nil
}

func (f *Framer) consume(n int) {
	f.buf = append(f.buf[:0], f.buf[n:]...)
	f.trim()
}

func (f *Framer) trim() {
	rest := bytes.TrimLeft(f.buf, whitespace)
	if len(rest) != len(f.buf) {
		f.buf = append(f.buf[:0], rest...)
	}
}

// resync drops the current prefix up to the next candidate record start.
func (f *Framer) resync() {
	if len(f.buf) == 0 {
		return
	}
	i := bytes.IndexByte(f.buf[1:], '{')
	if i < 0 {
		f.discarded += len(f.buf)
		f.buf = f.buf[:0]
		return
	}
	f.discarded += i + 1
	f.consume(i + 1)
}

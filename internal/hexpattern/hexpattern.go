// Package hexpattern finds and rewrites byte patterns that contain at most
// one contiguous run of wildcard bytes.
//
// Two notations are accepted. Hex notation is two or more whitespace
// separated tokens, each two hex digits or "??":
//
//	41 42 ?? 44
//
// Anything else is ASCII notation, where every '?' is one wildcard byte:
//
//	Resolution=?;
//
// Unspaced hex with a wildcard, such as "4142??44", is rejected rather than
// read as ASCII.
//
// Values are encoded in the notation of the pattern they replace. Values for
// hex notation patterns are whitespace separated two-digit hex tokens only.
// ASCII values may embed \xHH byte escapes, and every maximal run of decimal
// digits is one byte in [0,255].
package hexpattern

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPattern means a pattern could not be parsed.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrInvalidEncoding means a value could not be encoded to bytes.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrPatternNotFound means the pattern does not occur in the buffer.
	ErrPatternNotFound = errors.New("pattern not found")
)

// Notation is the syntax a pattern was written in.
type Notation int

const (
	NotationASCII Notation = iota
	NotationHex
)

// Pattern is a parsed byte pattern: Prefix, then Wildcard bytes of any
// value, then Suffix.
type Pattern struct {
	Prefix   []byte
	Wildcard int
	Suffix   []byte
	Notation Notation
}

// Len is the number of bytes a match spans.
func (p *Pattern) Len() int {
	return len(p.Prefix) + p.Wildcard + len(p.Suffix)
}

// Parse reads a pattern in hex or ASCII notation.
func Parse(s string) (*Pattern, error) {
	if isHexNotation(s) {
		return parseHex(s)
	}
	if isCompactHex(s) {
		return nil, fmt.Errorf("%w: %q looks like hex without spaces; separate the bytes, as in \"41 42 ?? 44\"", ErrInvalidPattern, s)
	}
	return parseASCII(s)
}

// isHexNotation reports whether s is at least two tokens that are each a
// byte or a "??" wildcard.
func isHexNotation(s string) bool {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return false
	}
	for _, f := range fields {
		if f == "??" {
			continue
		}
		if len(f) != 2 || !isHexDigit(f[0]) || !isHexDigit(f[1]) {
			return false
		}
	}
	return true
}

// isCompactHex reports whether s is unspaced hex with a "??" wildcard, such
// as "4142??44". Read as ASCII it would never match the intended bytes.
func isCompactHex(s string) bool {
	if !strings.Contains(s, "??") || strings.ContainsAny(s, " \t") {
		return false
	}
	digits := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '?':
		case isHexDigit(s[i]):
			digits++
		default:
			return false
		}
	}
	return digits > 0
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// builder accumulates prefix, wildcard run and suffix and rejects a second run.
type builder struct {
	p        Pattern
	inSuffix bool
}

func (b *builder) literal(c byte) {
	if b.p.Wildcard > 0 {
		b.inSuffix = true
		b.p.Suffix = append(b.p.Suffix, c)
		return
	}
	b.p.Prefix = append(b.p.Prefix, c)
}

func (b *builder) wildcard() error {
	if b.inSuffix {
		return fmt.Errorf("%w: more than one wildcard run", ErrInvalidPattern)
	}
	b.p.Wildcard++
	return nil
}

func (b *builder) done(src string) (*Pattern, error) {
	if b.p.Len() == 0 {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if len(b.p.Prefix) == 0 && len(b.p.Suffix) == 0 {
		return nil, fmt.Errorf("%w: %q has no literal bytes", ErrInvalidPattern, src)
	}
	p := b.p
	return &p, nil
}

func parseHex(s string) (*Pattern, error) {
	b := builder{p: Pattern{Notation: NotationHex}}
	for _, tok := range strings.Fields(s) {
		if tok == "??" {
			if err := b.wildcard(); err != nil {
				return nil, err
			}
			continue
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: token %q: %v", ErrInvalidPattern, tok, err)
		}
		b.literal(byte(v))
	}
	return b.done(s)
}

func parseASCII(s string) (*Pattern, error) {
	b := builder{p: Pattern{Notation: NotationASCII}}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '?':
			if err := b.wildcard(); err != nil {
				return nil, err
			}
		case c >= 0x80:
			return nil, fmt.Errorf("%w: non-ASCII byte 0x%02X at %d", ErrInvalidPattern, c, i)
		default:
			b.literal(c)
		}
	}
	return b.done(s)
}

// Find returns the offset of the first match in buf, or -1.
func (p *Pattern) Find(buf []byte) int {
	n := p.Len()
	skip := len(p.Prefix) + p.Wildcard

	for start := 0; start+n <= len(buf); {
		var i int
		if len(p.Prefix) > 0 {
			j := bytes.Index(buf[start:], p.Prefix)
			if j < 0 {
				return -1
			}
			i = start + j
		} else {
			j := bytes.Index(buf[start+p.Wildcard:], p.Suffix)
			if j < 0 {
				return -1
			}
			i = start + j
		}
		if i+n > len(buf) {
			return -1
		}
		if bytes.Equal(buf[i+skip:i+n], p.Suffix) {
			return i
		}
		start = i + 1
	}
	return -1
}

// EncodeValue turns a value string into bytes using the pattern's notation.
func (p *Pattern) EncodeValue(s string) ([]byte, error) {
	if p.Notation == NotationHex {
		return encodeHex(s)
	}
	return encodeASCII(s)
}

func encodeHex(s string) ([]byte, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidEncoding)
	}
	out := make([]byte, 0, len(fields))
	for _, tok := range fields {
		if len(tok) != 2 {
			return nil, fmt.Errorf("%w: hex token %q is not two digits", ErrInvalidEncoding, tok)
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: hex token %q", ErrInvalidEncoding, tok)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func encodeASCII(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidEncoding)
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] == 'x':
			if i+4 > len(s) || !isHexDigit(s[i+2]) || !isHexDigit(s[i+3]) {
				return nil, fmt.Errorf("%w: malformed byte escape at %d", ErrInvalidEncoding, i)
			}
			v, _ := strconv.ParseUint(s[i+2:i+4], 16, 8)
			out = append(out, byte(v))
			i += 4
		case '0' <= c && c <= '9':
			j := i
			for j < len(s) && '0' <= s[j] && s[j] <= '9' {
				j++
			}
			v, err := strconv.ParseUint(s[i:j], 10, 8)
			if err != nil {
				return nil, fmt.Errorf("%w: decimal %s out of byte range", ErrInvalidEncoding, s[i:j])
			}
			out = append(out, byte(v))
			i = j
		case c >= 0x80:
			return nil, fmt.Errorf("%w: non-ASCII byte 0x%02X at %d", ErrInvalidEncoding, c, i)
		default:
			out = append(out, c)
			i++
		}
	}
	return out, nil
}

// Align picks the bytes of value that go into the wildcard run:
//
//   - a value as long as the whole pattern is an overlay; only the bytes
//     under the wildcard run are taken
//   - a value at least as long as the run contributes its trailing bytes
//   - a shorter value is taken whole and written at the start of the run,
//     the rest of the run keeps its current bytes
func (p *Pattern) Align(value []byte) []byte {
	switch {
	case len(value) == p.Len():
		return value[len(p.Prefix) : len(p.Prefix)+p.Wildcard]
	case len(value) >= p.Wildcard:
		return value[len(value)-p.Wildcard:]
	default:
		return value
	}
}

// Replace rewrites the first match in buf and returns a new buffer.
// Patterns without a wildcard have the whole match swapped for value. When
// value itself contains the pattern and buf already holds value, buf is
// returned unchanged so reruns do not splice again.
func (p *Pattern) Replace(buf, value []byte) ([]byte, error) {
	i := p.Find(buf)
	if i < 0 {
		return buf, ErrPatternNotFound
	}

	if p.Wildcard == 0 {
		if bytes.Contains(value, p.Prefix) && bytes.Contains(buf, value) {
			return buf, nil
		}
		out := make([]byte, 0, len(buf)-p.Len()+len(value))
		out = append(out, buf[:i]...)
		out = append(out, value...)
		return append(out, buf[i+p.Len():]...), nil
	}

	out := bytes.Clone(buf)
	copy(out[i+len(p.Prefix):], p.Align(value))
	return out, nil
}

package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var errEOF = errors.New("unexpected end of data")

// lexer reads COS syntax from an in-memory buffer.
type lexer struct {
	data []byte
	pos  int
}

func newLexer(data []byte, pos int) *lexer { return &lexer{data: data, pos: pos} }

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func (l *lexer) eof() bool { return l.pos >= len(l.data) }

func (l *lexer) peek(n int) byte {
	if l.pos+n >= len(l.data) {
		return 0
	}
	return l.data[l.pos+n]
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

// keyword reads a run of regular characters.
func (l *lexer) keyword() string {
	start := l.pos
	for l.pos < len(l.data) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// expect consumes kw after optional whitespace.
func (l *lexer) expect(kw string) error {
	l.skipSpace()
	save := l.pos
	if got := l.keyword(); got != kw {
		l.pos = save
		return fmt.Errorf("expected %q at offset %d, found %q", kw, save, got)
	}
	return nil
}

func isNumberStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func (l *lexer) number() (Number, error) {
	start := l.pos
	digits := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c >= '0' && c <= '9' {
			digits = true
		} else if c != '+' && c != '-' && c != '.' {
			break
		}
		l.pos++
	}
	if !digits {
		l.pos = start
		return Number{}, fmt.Errorf("invalid number at offset %d", start)
	}
	s := string(l.data[start:l.pos])
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}, fmt.Errorf("invalid number %q at offset %d", s, start)
	}
	return Real(f), nil
}

// uint reads an unsigned integer without a sign, used for object headers.
func (l *lexer) uint() (int, bool) {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '9' {
		l.pos++
	}
	if start == l.pos {
		return 0, false
	}
	n, err := strconv.Atoi(string(l.data[start:l.pos]))
	return n, err == nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func (l *lexer) name() Name {
	l.pos++
	var out bytes.Buffer
	for l.pos < len(l.data) && !isDelimiter(l.data[l.pos]) {
		c := l.data[l.pos]
		if c == '#' && l.pos+2 < len(l.data) {
			hi, ok1 := hexValue(l.data[l.pos+1])
			lo, ok2 := hexValue(l.data[l.pos+2])
			if ok1 && ok2 {
				out.WriteByte(hi<<4 | lo)
				l.pos += 3
				continue
			}
		}
		out.WriteByte(c)
		l.pos++
	}
	return Name(out.String())
}

func (l *lexer) literalString() (String, error) {
	start := l.pos
	l.pos++
	var buf bytes.Buffer
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.eof() {
				return String{}, errEOF
			}
			esc := l.data[l.pos]
			l.pos++
			switch esc {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if l.peek(0) == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if esc >= '0' && esc <= '7' {
					v := int(esc - '0')
					for k := 0; k < 2 && !l.eof(); k++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v<<3 + int(d-'0')
						l.pos++
					}
					buf.WriteByte(byte(v))
				} else {
					buf.WriteByte(esc)
				}
			}
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return String{Bytes: buf.Bytes()}, nil
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}
	return String{}, fmt.Errorf("unterminated string at offset %d", start)
}

func (l *lexer) hexString() (String, error) {
	start := l.pos
	l.pos++
	var out []byte
	var hi byte
	odd := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if odd {
				out = append(out, hi<<4)
			}
			return String{Bytes: out, Hex: true}, nil
		}
		if isWhitespace(c) {
			continue
		}
		v, ok := hexValue(c)
		if !ok {
			return String{}, fmt.Errorf("invalid hex digit %q at offset %d", c, l.pos-1)
		}
		if odd {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		odd = !odd
	}
	return String{}, fmt.Errorf("unterminated hex string at offset %d", start)
}

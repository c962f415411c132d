package pdfdoc

import (
	"bytes"
	"fmt"
)

const maxNesting = 64

// lengthFunc resolves an indirect /Length value while a stream is being read.
type lengthFunc func(Ref) (int, bool)

func (l *lexer) object(depth int) (Object, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("nesting too deep at offset %d", l.pos)
	}
	l.skipSpace()
	if l.eof() {
		return nil, errEOF
	}
	c := l.data[l.pos]
	switch {
	case c == '/':
		return l.name(), nil
	case c == '(':
		return l.literalString()
	case c == '<' && l.peek(1) == '<':
		return l.dict(depth)
	case c == '<':
		return l.hexString()
	case c == '[':
		return l.array(depth)
	case isNumberStart(c):
		return l.numberOrRef()
	}
	start := l.pos
	switch kw := l.keyword(); kw {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return Null{}, nil
	case "":
		return nil, fmt.Errorf("unexpected %q at offset %d", c, start)
	default:
		return nil, fmt.Errorf("unexpected keyword %q at offset %d", kw, start)
	}
}

// numberOrRef reads a number and looks ahead for the "gen R" tail of a
// reference.
func (l *lexer) numberOrRef() (Object, error) {
	n, err := l.number()
	if err != nil || !n.IsInt || n.I < 0 {
		return n, err
	}
	save := l.pos
	gen, ok := l.uint()
	if ok {
		l.skipSpace()
		if l.peek(0) == 'R' && (l.pos+1 >= len(l.data) || isDelimiter(l.data[l.pos+1])) {
			l.pos++
			return Ref{Num: int(n.I), Gen: gen}, nil
		}
	}
	l.pos = save
	return n, nil
}

func (l *lexer) array(depth int) (Object, error) {
	l.pos++
	var out Array
	for {
		l.skipSpace()
		if l.eof() {
			return nil, errEOF
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return out, nil
		}
		o, err := l.object(depth + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
}

func (l *lexer) dict(depth int) (Object, error) {
	l.pos += 2
	d := NewDict()
	for {
		l.skipSpace()
		if l.eof() {
			return nil, errEOF
		}
		if l.data[l.pos] == '>' && l.peek(1) == '>' {
			l.pos += 2
			return d, nil
		}
		if l.data[l.pos] != '/' {
			return nil, fmt.Errorf("dictionary key expected at offset %d", l.pos)
		}
		key := l.name()
		v, err := l.object(depth + 1)
		if err != nil {
			return nil, fmt.Errorf("value of /%s: %w", key, err)
		}
		if _, null := v.(Null); !null {
			d.KV[string(key)] = v
		}
	}
}

// streamBody reads the bytes after the "stream" keyword.
func (l *lexer) streamBody(d *Dict, length lengthFunc) (*Stream, error) {
	if l.peek(0) == '\r' {
		l.pos++
	}
	if l.peek(0) == '\n' {
		l.pos++
	}
	start := l.pos
	n := -1
	switch v := d.Get("Length").(type) {
	case Number:
		n = int(v.Int())
	case Ref:
		if length != nil {
			if got, ok := length(v); ok {
				n = got
			}
		}
	}
	if n >= 0 && start+n <= len(l.data) {
		after := newLexer(l.data, start+n)
		after.skipSpace()
		if bytes.HasPrefix(l.data[after.pos:], []byte("endstream")) {
			l.pos = after.pos + len("endstream")
			return &Stream{Dict: d, Data: l.data[start : start+n]}, nil
		}
	}
	idx := bytes.Index(l.data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, fmt.Errorf("stream at offset %d has no endstream", start)
	}
	end := start + idx
	if end > start && l.data[end-1] == '\n' {
		end--
	}
	if end > start && l.data[end-1] == '\r' {
		end--
	}
	l.pos = start + idx + len("endstream")
	return &Stream{Dict: d, Data: l.data[start:end]}, nil
}

// indirect parses "num gen obj ... endobj" at the lexer position.
func (l *lexer) indirect(length lengthFunc) (Ref, Object, error) {
	start := l.pos
	num, ok1 := l.uint()
	gen, ok2 := l.uint()
	if !ok1 || !ok2 {
		return Ref{}, nil, fmt.Errorf("object header expected at offset %d", start)
	}
	if err := l.expect("obj"); err != nil {
		return Ref{}, nil, err
	}
	obj, err := l.object(0)
	if err != nil {
		return Ref{}, nil, fmt.Errorf("object %d %d: %w", num, gen, err)
	}
	l.skipSpace()
	if d, isDict := obj.(*Dict); isDict && bytes.HasPrefix(l.data[l.pos:], []byte("stream")) {
		l.pos += len("stream")
		s, err := l.streamBody(d, length)
		if err != nil {
			return Ref{}, nil, fmt.Errorf("object %d %d: %w", num, gen, err)
		}
		obj = s
	}
	_ = l.expect("endobj")
	return Ref{Num: num, Gen: gen}, obj, nil
}

// ParseObject parses a single direct object from data.
func ParseObject(data []byte) (Object, error) {
	return newLexer(data, 0).object(0)
}

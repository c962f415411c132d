package pdfdoc

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Object is a PDF COS value.
type Object interface {
	Type() string
}

type Name string

func (Name) Type() string { return "name" }

// Number holds either an integer or a real value.
type Number struct {
	I     int64
	F     float64
	IsInt bool
}

func (Number) Type() string { return "number" }

func (n Number) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

func (n Number) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}

func Int(i int64) Number    { return Number{I: i, IsInt: true} }
func Real(f float64) Number { return Number{F: f} }

type Bool bool

func (Bool) Type() string { return "boolean" }

type Null struct{}

func (Null) Type() string { return "null" }

// String is a literal or hexadecimal string.
type String struct {
	Bytes []byte
	Hex   bool
}

func (String) Type() string { return "string" }

func Str(s string) String { return String{Bytes: []byte(s)} }

type Array []Object

func (Array) Type() string { return "array" }

// Dict is a dictionary keyed by name without the leading slash.
type Dict struct {
	KV map[string]Object
}

func (*Dict) Type() string { return "dict" }

func NewDict() *Dict { return &Dict{KV: make(map[string]Object)} }

func (d *Dict) Get(key string) Object {
	if d == nil {
		return nil
	}
	return d.KV[key]
}

func (d *Dict) Set(key string, v Object) *Dict {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = v
	return d
}

// Clone copies the top level of d.
func (d *Dict) Clone() *Dict {
	out := &Dict{KV: make(map[string]Object, len(d.KV))}
	for k, v := range d.KV {
		out.KV[k] = v
	}
	return out
}

// Stream is a dictionary followed by raw (still encoded) data.
type Stream struct {
	Dict *Dict
	Data []byte
}

func (*Stream) Type() string { return "stream" }

// Ref is an indirect reference.
type Ref struct {
	Num, Gen int
}

func (Ref) Type() string { return "ref" }

func (r Ref) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

var (
	_ Object = Name("")
	_ Object = Number{}
	_ Object = Bool(false)
	_ Object = Null{}
	_ Object = String{}
	_ Object = Array(nil)
	_ Object = (*Dict)(nil)
	_ Object = (*Stream)(nil)
	_ Object = Ref{}
)

// formatReal prints f with at most four decimals and no trailing zeros.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

func nameLiteral(v string) string {
	var b strings.Builder
	b.WriteByte('/')
	for i := 0; i < len(v); i++ {
		ch := v[i]
		if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_' || ch == '.' || ch == '+' {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "#%02X", ch)
	}
	return b.String()
}

func writeLiteral(b *bytes.Buffer, raw []byte) {
	b.WriteByte('(')
	for _, ch := range raw {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if ch < 0x20 || ch >= 0x7f {
				fmt.Fprintf(b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
}

// writeObject serializes o. Dictionary keys are written in sorted order so
// the same object graph always yields the same bytes.
func writeObject(b *bytes.Buffer, o Object) {
	switch v := o.(type) {
	case Name:
		b.WriteString(nameLiteral(string(v)))
	case Number:
		if v.IsInt {
			b.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			b.WriteString(formatReal(v.F))
		}
	case Bool:
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case String:
		if v.Hex {
			b.WriteByte('<')
			b.WriteString(strings.ToUpper(hex.EncodeToString(v.Bytes)))
			b.WriteByte('>')
		} else {
			writeLiteral(b, v.Bytes)
		}
	case Array:
		b.WriteByte('[')
		for i, it := range v {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeObject(b, it)
		}
		b.WriteByte(']')
	case *Dict:
		b.WriteString("<<")
		if v != nil {
			keys := make([]string, 0, len(v.KV))
			for k := range v.KV {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i, k := range keys {
				if i > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(nameLiteral(k))
				b.WriteByte(' ')
				writeObject(b, v.KV[k])
			}
		}
		b.WriteString(">>")
	case *Stream:
		d := v.Dict
		if d == nil {
			d = NewDict()
		}
		d = d.Clone().Set("Length", Int(int64(len(v.Data))))
		writeObject(b, d)
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
	case Ref:
		b.WriteString(v.String())
	default:
		b.WriteString("null")
	}
}

// Serialize returns the PDF text form of o.
func Serialize(o Object) []byte {
	var b bytes.Buffer
	writeObject(&b, o)
	return b.Bytes()
}

func numberOf(o Object) (float64, bool) {
	n, ok := o.(Number)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

func intOf(o Object) (int, bool) {
	n, ok := o.(Number)
	if !ok {
		return 0, false
	}
	return int(n.Int()), true
}

func nameOf(o Object) (string, bool) {
	n, ok := o.(Name)
	return string(n), ok
}

func rectArray(llx, lly, urx, ury float64) Array {
	return Array{Real(llx), Real(lly), Real(urx), Real(ury)}
}

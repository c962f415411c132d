package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

const (
	entryFree       = 0
	entryInFile     = 1
	entryCompressed = 2
)

type xrefEntry struct {
	kind   int
	offset int64
	gen    int
	stream int
	index  int
}

// xrefTable is the merged cross-reference information of every revision in
// the file; newer sections win.
type xrefTable struct {
	entries map[int]xrefEntry
	trailer *Dict
	// startxref of the newest revision, used as /Prev when appending.
	start int64
	// stream reports whether the newest section is a cross-reference stream.
	stream bool
	// rebuilt is set when the table came from scanning object headers.
	rebuilt bool
}

var startXRefRe = regexp.MustCompile(`startxref\s+(\d+)`)

func findStartXRef(data []byte) (int64, error) {
	tail := data
	if len(tail) > 4096 {
		tail = tail[len(tail)-4096:]
	}
	m := startXRefRe.FindAllSubmatch(tail, -1)
	if len(m) == 0 {
		m = startXRefRe.FindAllSubmatch(data, -1)
	}
	if len(m) == 0 {
		return 0, errors.New("startxref not found")
	}
	off, err := strconv.ParseInt(string(m[len(m)-1][1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if off <= 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", off)
	}
	return off, nil
}

// readXRef follows the revision chain from the last startxref. When the chain
// is damaged it falls back to rebuilding the table from object headers.
func readXRef(data []byte) (*xrefTable, error) {
	t := &xrefTable{entries: make(map[int]xrefEntry)}
	start, err := findStartXRef(data)
	if err == nil {
		t.start = start
		err = t.readChain(data, start)
	}
	if err == nil && t.trailer != nil && t.trailer.Get("Root") != nil {
		return t, nil
	}
	rebuilt, rerr := rebuildXRef(data)
	if rerr != nil {
		if err != nil {
			return nil, fmt.Errorf("%w (rebuild: %v)", err, rerr)
		}
		return nil, rerr
	}
	rebuilt.start = t.start
	return rebuilt, nil
}

func (t *xrefTable) readChain(data []byte, start int64) error {
	seen := make(map[int64]bool)
	off := start
	first := true
	for off > 0 {
		if seen[off] {
			return fmt.Errorf("xref loop at offset %d", off)
		}
		seen[off] = true
		if off >= int64(len(data)) {
			return fmt.Errorf("xref offset out of range: %d", off)
		}
		l := newLexer(data, int(off))
		l.skipSpace()
		var trailer *Dict
		var err error
		isStream := !bytes.HasPrefix(data[l.pos:], []byte("xref"))
		if isStream {
			trailer, err = t.readStreamSection(data, l.pos)
		} else {
			trailer, err = t.readTableSection(l)
			if err == nil {
				if hyb, ok := intOf(trailer.Get("XRefStm")); ok && hyb > 0 && !seen[int64(hyb)] {
					seen[int64(hyb)] = true
					if _, err := t.readStreamSection(data, hyb); err != nil {
						return fmt.Errorf("hybrid xref stream: %w", err)
					}
				}
			}
		}
		if err != nil {
			return err
		}
		if first {
			t.stream = isStream
			t.trailer = trailer.Clone()
			delete(t.trailer.KV, "Prev")
			delete(t.trailer.KV, "XRefStm")
			first = false
		} else {
			for k, v := range trailer.KV {
				if _, ok := t.trailer.KV[k]; !ok && k != "Prev" && k != "XRefStm" {
					t.trailer.KV[k] = v
				}
			}
		}
		prev, _ := intOf(trailer.Get("Prev"))
		off = int64(prev)
	}
	return nil
}

// set records e unless a newer section already placed num. Free entries never
// shadow a placement, so hybrid files resolve through their /XRefStm.
func (t *xrefTable) set(num int, e xrefEntry) {
	if old, ok := t.entries[num]; !ok || (old.kind == entryFree && e.kind != entryFree) {
		t.entries[num] = e
	}
}

func (t *xrefTable) readTableSection(l *lexer) (*Dict, error) {
	if err := l.expect("xref"); err != nil {
		return nil, err
	}
	for {
		l.skipSpace()
		if bytes.HasPrefix(l.data[l.pos:], []byte("trailer")) {
			l.pos += len("trailer")
			obj, err := l.object(0)
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			d, ok := obj.(*Dict)
			if !ok {
				return nil, errors.New("trailer is not a dictionary")
			}
			return d, nil
		}
		first, ok1 := l.uint()
		count, ok2 := l.uint()
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("invalid xref subsection header at offset %d", l.pos)
		}
		for i := 0; i < count; i++ {
			off, ok1 := l.uint()
			gen, ok2 := l.uint()
			l.skipSpace()
			kind := l.keyword()
			if !ok1 || !ok2 || (kind != "n" && kind != "f") {
				return nil, fmt.Errorf("invalid xref entry %d at offset %d", first+i, l.pos)
			}
			if kind == "f" {
				t.set(first+i, xrefEntry{kind: entryFree, gen: gen})
				continue
			}
			t.set(first+i, xrefEntry{kind: entryInFile, offset: int64(off), gen: gen})
		}
	}
}

func (t *xrefTable) readStreamSection(data []byte, off int) (*Dict, error) {
	_, obj, err := newLexer(data, off).indirect(nil)
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}
	s, ok := obj.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object at offset %d is not an xref stream", off)
	}
	if typ, _ := nameOf(s.Dict.Get("Type")); typ != "XRef" {
		return nil, fmt.Errorf("object at offset %d is not an xref stream", off)
	}
	raw, err := decodeStream(s)
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}
	wArr, _ := s.Dict.Get("W").(Array)
	if len(wArr) != 3 {
		return nil, errors.New("xref stream: /W must have three entries")
	}
	var w [3]int
	for i := range w {
		w[i], _ = intOf(wArr[i])
		if w[i] < 0 || w[i] > 8 {
			return nil, errors.New("xref stream: bad /W")
		}
	}
	size, _ := intOf(s.Dict.Get("Size"))
	index := []int{0, size}
	if idx, ok := s.Dict.Get("Index").(Array); ok {
		index = index[:0]
		for _, it := range idx {
			v, _ := intOf(it)
			index = append(index, v)
		}
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, errors.New("xref stream: empty rows")
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		for n := 0; n < index[i+1]; n++ {
			if pos+rowLen > len(raw) {
				return s.Dict, nil
			}
			row := raw[pos : pos+rowLen]
			pos += rowLen
			kind := entryInFile
			if w[0] > 0 {
				kind = int(readBE(row[:w[0]]))
			}
			f2 := readBE(row[w[0] : w[0]+w[1]])
			f3 := readBE(row[w[0]+w[1]:])
			num := index[i] + n
			switch kind {
			case entryFree:
				t.set(num, xrefEntry{kind: entryFree, gen: int(f3)})
			case entryInFile:
				t.set(num, xrefEntry{kind: entryInFile, offset: f2, gen: int(f3)})
			case entryCompressed:
				t.set(num, xrefEntry{kind: entryCompressed, stream: int(f2), index: int(f3)})
			}
		}
	}
	return s.Dict, nil
}

func readBE(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

var objHeaderRe = regexp.MustCompile(`(\d+)[ \t\r\n\f\x00]+(\d+)[ \t\r\n\f\x00]+obj\b`)

// rebuildXRef scans the file for object headers. Later definitions win, which
// matches how incremental updates supersede earlier ones.
func rebuildXRef(data []byte) (*xrefTable, error) {
	t := &xrefTable{entries: make(map[int]xrefEntry), rebuilt: true}
	for _, m := range objHeaderRe.FindAllSubmatchIndex(data, -1) {
		if m[0] > 0 && !isDelimiter(data[m[0]-1]) {
			continue
		}
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		t.entries[num] = xrefEntry{kind: entryInFile, offset: int64(m[0]), gen: gen}
	}
	if len(t.entries) == 0 {
		return nil, errors.New("no objects found")
	}
	t.trailer = NewDict()
	rest := data
	for {
		i := bytes.Index(rest, []byte("trailer"))
		if i < 0 {
			break
		}
		rest = rest[i+len("trailer"):]
		obj, err := ParseObject(rest)
		if d, ok := obj.(*Dict); err == nil && ok {
			for k, v := range d.KV {
				if k != "Prev" && k != "XRefStm" {
					t.trailer.KV[k] = v
				}
			}
		}
	}
	return t, nil
}

// maxObjectNumber returns the highest object number known to the table.
func (t *xrefTable) maxObjectNumber() int {
	max := 0
	for n := range t.entries {
		if n > max {
			max = n
		}
	}
	if size, ok := intOf(t.trailer.Get("Size")); ok && size-1 > max {
		max = size - 1
	}
	return max
}

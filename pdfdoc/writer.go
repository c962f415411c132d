package pdfdoc

import (
	"bytes"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// DefaultProducer is written to /Producer unless WithProducer overrides it.
const DefaultProducer = "pdfedit"

type indirect struct {
	gen int
	obj Object
}

// Save returns the original bytes followed by an incremental update that
// carries every drawn page, embedded resource and an updated document info
// dictionary. Save does not modify the Document; calling it twice yields the
// same bytes for the same clock.
func (d *Document) Save() ([]byte, error) {
	objs := make(map[int]indirect, len(d.added)+8)
	for num, o := range d.added {
		objs[num] = indirect{obj: o}
	}
	for _, f := range d.ttFonts {
		m, err := f.trueTypeObjects(d)
		if err != nil {
			return nil, fmt.Errorf("pdfdoc: font %s: %w", f.name, err)
		}
		for num, o := range m {
			objs[num] = indirect{obj: o}
		}
	}
	next := d.nextNum
	alloc := func(o Object) Ref {
		r := Ref{Num: next}
		next++
		objs[r.Num] = indirect{obj: o}
		return r
	}
	for i := 1; i <= len(d.pages); i++ {
		c, ok := d.canvases[i]
		if !ok || c.Empty() {
			continue
		}
		pd, err := c.commit(alloc)
		if err != nil {
			return nil, fmt.Errorf("pdfdoc: page %d: %w", i, err)
		}
		objs[c.page.ref.Num] = indirect{gen: c.page.ref.Gen, obj: pd}
	}
	info := NewDict()
	if old := d.dict(d.xref.trailer.Get("Info")); old != nil {
		info = old.Clone()
	}
	producer := d.producer
	if producer == "" {
		producer = DefaultProducer
	}
	info.Set("Producer", Str(producer))
	info.Set("ModDate", Str("D:"+d.now().UTC().Format("20060102150405")+"Z"))
	infoRef := alloc(info)

	var out bytes.Buffer
	out.Grow(len(d.data) + 4096)
	out.Write(d.data)
	if len(d.data) > 0 && d.data[len(d.data)-1] != '\n' && d.data[len(d.data)-1] != '\r' {
		out.WriteByte('\n')
	}
	nums := make([]int, 0, len(objs))
	for num := range objs {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	offsets := make(map[int]int64, len(nums))
	gens := make(map[int]int, len(nums))
	for _, num := range nums {
		o := objs[num]
		offsets[num] = int64(out.Len())
		gens[num] = o.gen
		fmt.Fprintf(&out, "%d %d obj\n", num, o.gen)
		writeObject(&out, o.obj)
		out.WriteString("\nendobj\n")
	}

	sum := blake2b.Sum256(out.Bytes())
	newID := String{Bytes: sum[:16], Hex: true}
	firstID := newID
	if ids, ok := d.xref.trailer.Get("ID").(Array); ok && len(ids) == 2 {
		if s, ok := ids[0].(String); ok {
			firstID = String{Bytes: s.Bytes, Hex: true}
		}
	}
	trailer := NewDict().
		Set("Root", d.xref.trailer.Get("Root")).
		Set("Info", infoRef).
		Set("ID", Array{firstID, newID})
	if !d.xref.rebuilt {
		trailer.Set("Prev", Int(d.xref.start))
	}

	if d.xref.stream && !d.xref.rebuilt {
		xrefRef := Ref{Num: next}
		next++
		offsets[xrefRef.Num] = int64(out.Len())
		index, entries := xrefStreamEntries(offsets, gens)
		trailer.Set("Type", Name("XRef")).
			Set("Size", Int(int64(next))).
			Set("W", Array{Int(1), Int(4), Int(2)}).
			Set("Index", index)
		start := out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", xrefRef.Num)
		writeObject(&out, &Stream{Dict: trailer, Data: entries})
		fmt.Fprintf(&out, "\nendobj\nstartxref\n%d\n%%%%EOF\n", start)
		return out.Bytes(), nil
	}

	if d.xref.rebuilt {
		for num, e := range d.xref.entries {
			if _, ok := offsets[num]; !ok && e.kind == entryInFile {
				offsets[num] = e.offset
				gens[num] = e.gen
			}
		}
	}
	trailer.Set("Size", Int(int64(next)))
	start := out.Len()
	writeXRefTable(&out, offsets, gens, d.xref.rebuilt)
	out.WriteString("trailer\n")
	writeObject(&out, trailer)
	fmt.Fprintf(&out, "\nstartxref\n%d\n%%%%EOF\n", start)
	return out.Bytes(), nil
}

// writeXRefTable writes a classic table with one subsection per run of
// consecutive object numbers. A full table also lists the free head entry.
func writeXRefTable(out *bytes.Buffer, offsets map[int]int64, gens map[int]int, full bool) {
	nums := make([]int, 0, len(offsets)+1)
	for num := range offsets {
		nums = append(nums, num)
	}
	if full {
		nums = append(nums, 0)
	}
	sort.Ints(nums)
	out.WriteString("xref\n")
	for i := 0; i < len(nums); {
		j := i + 1
		for j < len(nums) && nums[j] == nums[j-1]+1 {
			j++
		}
		fmt.Fprintf(out, "%d %d\n", nums[i], j-i)
		for _, num := range nums[i:j] {
			if num == 0 {
				out.WriteString("0000000000 65535 f \n")
				continue
			}
			fmt.Fprintf(out, "%010d %05d n \n", offsets[num], gens[num])
		}
		i = j
	}
}

// xrefStreamEntries builds the /Index array and the binary rows of a
// cross-reference stream with field widths 1, 4 and 2.
func xrefStreamEntries(offsets map[int]int64, gens map[int]int) (Array, []byte) {
	nums := make([]int, 0, len(offsets))
	for num := range offsets {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	var index Array
	var rows []byte
	for i := 0; i < len(nums); {
		j := i + 1
		for j < len(nums) && nums[j] == nums[j-1]+1 {
			j++
		}
		index = append(index, Int(int64(nums[i])), Int(int64(j-i)))
		for _, num := range nums[i:j] {
			off, gen := offsets[num], gens[num]
			rows = append(rows, 1,
				byte(off>>24), byte(off>>16), byte(off>>8), byte(off),
				byte(gen>>8), byte(gen))
		}
		i = j
	}
	return index, rows
}

// commit turns the canvas into a replacement page dictionary. The original
// content is bracketed by q/Q so its graphics state cannot leak into the
// added content, which is drawn through the display-to-user transform.
func (c *Canvas) commit(alloc func(Object) Ref) (*Dict, error) {
	d := c.doc
	pd := c.page.dict.Clone()

	prefix, err := d.compress([]byte("q\n"))
	if err != nil {
		return nil, err
	}
	contents := Array{alloc(prefix)}
	switch v := pd.Get("Contents").(type) {
	case Ref:
		if arr, ok := d.resolveArray(v); ok {
			contents = append(contents, arr...)
		} else {
			contents = append(contents, v)
		}
	case Array:
		contents = append(contents, v...)
	}
	var body bytes.Buffer
	body.WriteString("Q\nq\n")
	body.WriteString(c.prologue())
	body.Write(c.ops.Bytes())
	body.WriteString("Q\n")
	tail, err := d.compress(body.Bytes())
	if err != nil {
		return nil, err
	}
	contents = append(contents, alloc(tail))
	pd.Set("Contents", contents)
	pd.Set("Resources", c.mergedResources())

	if len(c.links) > 0 {
		var annots Array
		if arr, ok := d.resolveArray(pd.Get("Annots")); ok {
			annots = append(annots, arr...)
		}
		for _, link := range c.links {
			annots = append(annots, alloc(link.Clone().Set("P", c.page.ref)))
		}
		pd.Set("Annots", annots)
	}
	return pd, nil
}

func (c *Canvas) mergedResources() *Dict {
	d := c.doc
	res := NewDict()
	if c.page.resources != nil {
		res = c.page.resources.Clone()
	}
	merge := func(cat string, add map[string]Object) {
		if len(add) == 0 {
			return
		}
		sub := NewDict()
		if old := d.dict(res.Get(cat)); old != nil {
			sub = old.Clone()
		}
		for k, v := range add {
			sub.Set(k, v)
		}
		res.Set(cat, sub)
	}
	fonts := make(map[string]Object, len(c.fontRes))
	for k, v := range c.fontRes {
		fonts[k] = v
	}
	images := make(map[string]Object, len(c.imageRes))
	for k, v := range c.imageRes {
		images[k] = v
	}
	states := make(map[string]Object, len(c.stateRes))
	for k, v := range c.stateRes {
		states[k] = v
	}
	merge("Font", fonts)
	merge("XObject", images)
	merge("ExtGState", states)
	return res
}

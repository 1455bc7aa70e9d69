package template

// Template is one unit of flowing data: a File descriptor plus the feature
// payload derived (or about to be derived) from it.
type Template struct {
	File File
	Data []float32
}

// New creates a Template for the named record with the given payload.
func New(name string, data []float32) Template {
	return Template{File: NewFile(name), Data: data}
}

// Bytes returns the payload size in bytes.
func (t Template) Bytes() int {
	return 4 * len(t.Data)
}

// List is an ordered batch of Templates.
type List []Template

// Files returns the descriptors of all templates in order.
func (l List) Files() FileList {
	fl := make(FileList, len(l))
	for i, t := range l {
		fl[i] = t.File
	}
	return fl
}

// Bytes returns the total payload size of the batch in bytes.
func (l List) Bytes() int {
	n := 0
	for _, t := range l {
		n += t.Bytes()
	}
	return n
}

// Tagged returns a copy of the batch whose descriptors all carry the
// option. Files are cloned, so lists the templates were read out of keep
// their original options.
func (l List) Tagged(key, value string) List {
	out := make(List, len(l))
	for i, t := range l {
		f := t.File.Clone()
		f.Set(key, value)
		out[i] = Template{File: f, Data: t.Data}
	}
	return out
}

// Mid returns the sub-batch [off, off+n), clamped to the list bounds.
// An out-of-range offset yields an empty List.
func (l List) Mid(off, n int) List {
	if off < 0 {
		off = 0
	}
	if off >= len(l) || n <= 0 {
		return nil
	}
	end := off + n
	if end > len(l) {
		end = len(l)
	}
	return l[off:end]
}

// Partition splits the batch into index-aligned contiguous segments of the
// given sizes: segment i holds the records [sum(sizes[:i]), sum(sizes[:i+1])),
// clamped to the batch length. Segments past the end of a short batch are
// empty but still present, so the segment count always equals len(sizes).
func (l List) Partition(sizes []int) []List {
	parts := make([]List, len(sizes))
	off := 0
	for i, size := range sizes {
		parts[i] = l.Mid(off, size)
		off += size
	}
	return parts
}

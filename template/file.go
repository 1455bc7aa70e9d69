// Package template defines the data units that flow through brec pipelines:
// File descriptors with key/value options, Templates carrying derived
// feature payloads, and the List/FileList batch types the pipelines
// partition and stream.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/brec/internal/spec"
)

// File is a descriptor: a name (usually a path) plus string-keyed options.
//
// The flat form is "name[key=value,flag,...]"; a bare key means "true".
// Values may nest brackets, e.g. "out.mtx[split=[100,100]]". Options are
// shared (not copied) on struct assignment; use Clone before mutating a
// File that others may still hold.
type File struct {
	Name string

	options map[string]string
}

// NewFile creates a File with the given name and no options.
func NewFile(name string) File {
	return File{Name: name}
}

// ParseFile parses the flat form "name[key=value,...]".
// A missing bracket section yields a File with no options.
func ParseFile(flat string) (File, error) {
	open := strings.Index(flat, "[")
	if open < 0 {
		return File{Name: flat}, nil
	}
	if !strings.HasSuffix(flat, "]") {
		return File{}, fmt.Errorf("template: unterminated option block in %q", flat)
	}

	f := File{Name: flat[:open]}
	body := flat[open+1 : len(flat)-1]
	if body == "" {
		return f, nil
	}
	for _, kv := range spec.Split(body, ',') {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			value = "true"
		}
		f.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return f, nil
}

// MustParseFile is ParseFile for descriptors known to be well formed.
// It panics on a malformed descriptor.
func MustParseFile(flat string) File {
	f, err := ParseFile(flat)
	if err != nil {
		panic(err)
	}
	return f
}

// IsAnonymous reports whether the File has no name.
func (f File) IsAnonymous() bool {
	return f.Name == ""
}

// Suffix returns the file extension without the leading dot.
func (f File) Suffix() string {
	return strings.TrimPrefix(filepath.Ext(f.Name), ".")
}

// BaseName returns the name with directory and extension stripped.
func (f File) BaseName() string {
	base := filepath.Base(f.Name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Exists reports whether a file with this name exists on the local filesystem.
func (f File) Exists() bool {
	if f.Name == "" {
		return false
	}
	_, err := os.Stat(f.Name)
	return err == nil
}

// Set stores an option. The empty value is stored as-is; use Remove to drop
// a key.
func (f *File) Set(key, value string) {
	if f.options == nil {
		f.options = make(map[string]string)
	}
	f.options[key] = value
}

// SetBool stores a boolean option in the flat-form convention.
func (f *File) SetBool(key string, value bool) {
	f.Set(key, strconv.FormatBool(value))
}

// Remove drops an option if present.
func (f *File) Remove(key string) {
	delete(f.options, key)
}

// Contains reports whether the option key is present.
func (f File) Contains(key string) bool {
	_, ok := f.options[key]
	return ok
}

// Get returns the option value, or def when absent.
func (f File) Get(key, def string) string {
	if v, ok := f.options[key]; ok {
		return v
	}
	return def
}

// Bool reports whether the option is present and not "false"/"0".
func (f File) Bool(key string) bool {
	v, ok := f.options[key]
	if !ok {
		return false
	}
	return v != "false" && v != "0"
}

// Int returns the option parsed as an integer, or def when absent or
// malformed.
func (f File) Int(key string, def int) int {
	v, ok := f.options[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// IntList parses a "[a,b,c]" (or single "a") option value into ints.
// Absent keys yield nil; malformed entries yield an error.
func (f File) IntList(key string) ([]int, error) {
	v, ok := f.options[key]
	if !ok {
		return nil, nil
	}
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		v = v[1 : len(v)-1]
	}
	if v == "" {
		return nil, nil
	}
	parts := spec.Split(v, ',')
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("template: bad int list entry %q in option %s", p, key)
		}
		out = append(out, n)
	}
	return out, nil
}

// Flat returns the canonical flat form. Options are emitted in sorted key
// order so that Flat (and therefore Hash) is deterministic.
func (f File) Flat() string {
	if len(f.options) == 0 {
		return f.Name
	}
	keys := make([]string, 0, len(f.options))
	for k := range f.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(f.Name)
	sb.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		v := f.options[k]
		if v == "true" {
			sb.WriteString(k)
			continue
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v)
	}
	sb.WriteByte(']')
	return sb.String()
}

// Hash returns a short content hash of the flat descriptor, used to key
// implicit memory galleries.
func (f File) Hash() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(f.Flat()))
}

// Clone returns a File with its own copy of the option map.
func (f File) Clone() File {
	c := File{Name: f.Name}
	if len(f.options) > 0 {
		c.options = make(map[string]string, len(f.options))
		for k, v := range f.options {
			c.options[k] = v
		}
	}
	return c
}

// Failed reports whether this record is marked as a failure to enroll.
func (f File) Failed() bool {
	return f.Bool("FTE")
}

// FileList is a list of record descriptors.
type FileList []File

// Names returns the record names in order.
func (fl FileList) Names() []string {
	names := make([]string, len(fl))
	for i, f := range fl {
		names[i] = f.Name
	}
	return names
}

// Failures counts records marked as failures to enroll.
func (fl FileList) Failures() int {
	n := 0
	for _, f := range fl {
		if f.Failed() {
			n++
		}
	}
	return n
}

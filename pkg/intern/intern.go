// Package intern deduplicates strings that repeat across a trace, such as
// pipeline stage names. Interned strings are represented by a Symbol whose
// equality is a pointer comparison.
package intern

import "strings"

// hashSeed is the initial value of the Bernstein string hash.
const hashSeed uint32 = 5381

// Hash returns the 32-bit Bernstein hash of s (h = h*33 ^ b).
func Hash(s string) uint32 {
	h := hashSeed
	for i := 0; i < len(s); i++ {
		h += h << 5
		h ^= uint32(s[i])
	}
	return h
}

type entry struct {
	text string
	hash uint32
	next *entry
}

// Symbol is a handle to an interned string. Two symbols obtained from the
// same Table for equal content are identical, so == is a valid content
// comparison. The zero Symbol represents "no string".
type Symbol struct {
	e *entry
}

// String returns the interned text.
func (s Symbol) String() string {
	if s.e == nil {
		return ""
	}
	return s.e.text
}

// Hash returns the cached Bernstein hash of the interned text.
func (s Symbol) Hash() uint32 {
	if s.e == nil {
		return hashSeed
	}
	return s.e.hash
}

// IsZero reports whether s is the zero Symbol.
func (s Symbol) IsZero() bool { return s.e == nil }

// Table is an open-chaining hash table of interned strings. Entries are
// never evicted.
//
// A Table is not safe for concurrent mutation. It is filled while a trace
// is ingested and only read afterwards.
type Table struct {
	buckets map[uint32]*entry
	n       int
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{buckets: make(map[uint32]*entry)}
}

// Intern returns the Symbol for text, inserting a private copy of it on
// first use.
func (t *Table) Intern(text string) Symbol {
	h := Hash(text)
	if e := t.find(h, text); e != nil {
		return Symbol{e}
	}
	if t.buckets == nil {
		t.buckets = make(map[uint32]*entry)
	}
	e := &entry{
		// Callers often pass substrings of a larger line buffer.
		text: strings.Clone(text),
		hash: h,
		next: t.buckets[h],
	}
	t.buckets[h] = e
	t.n++
	return Symbol{e}
}

// Lookup returns the Symbol for text without inserting it.
func (t *Table) Lookup(text string) (Symbol, bool) {
	e := t.find(Hash(text), text)
	if e == nil {
		return Symbol{}, false
	}
	return Symbol{e}, true
}

// Len returns the number of distinct strings in the table.
func (t *Table) Len() int { return t.n }

func (t *Table) find(h uint32, text string) *entry {
	for e := t.buckets[h]; e != nil; e = e.next {
		if e.text == text {
			return e
		}
	}
	return nil
}

// Package envtable implements a private, array-backed environment
// table with dedup/overwrite insertion and BSD-style lookup semantics.
//
// It is the Go analog of the struct environment / sudo_putenv family in
// sudo's plugins/sudoers/env.c: entries are stored as NAME=VALUE
// strings in insertion order, with a view that is always safe to hand
// to exec as a conventional environment vector. Capacity grows through
// Go's append; it does not grow in fixed-size increments.
package envtable

import (
	"errors"
	"fmt"
	"strings"
)

// growth is the number of spare slots FromEnviron reserves beyond the
// copied entries. Later growth is left to append.
const growth = 128

// ErrInvalidName is returned when a name is empty or (for Set/Unset)
// contains '='.
var ErrInvalidName = errors.New("envtable: invalid name")

// ErrOverflow is returned if growing the table would overflow its
// internal bookkeeping. In practice this is unreachable in Go (no
// array-size_t arithmetic to overflow), but the error is kept so
// callers can handle an arithmetic-overflow-on-growth failure the same
// way regardless of platform.
var ErrOverflow = errors.New("envtable: capacity overflow")

// Table is an ordered sequence of NAME=VALUE entries. The zero value is
// an empty, usable table.
type Table struct {
	entries []string
}

// New returns an empty table with room for at least size entries
// before it needs to grow.
func New(size int) *Table {
	t := &Table{}
	if size > 0 {
		t.entries = make([]string, 0, size)
	}
	return t
}

// FromEnviron builds a table by shallow-copying an invoker-style
// environment slice (e.g. os.Environ()). Entries are not validated;
// malformed entries (no '=') are kept as-is, matching env_init's
// behavior of copying the pointer vector verbatim.
func FromEnviron(environ []string) *Table {
	t := &Table{entries: make([]string, len(environ), len(environ)+growth)}
	copy(t.entries, environ)
	return t
}

// Clone returns a deep copy (the string headers are copied; the
// strings themselves are immutable and safely shared).
func (t *Table) Clone() *Table {
	c := &Table{entries: make([]string, len(t.entries), cap(t.entries))}
	copy(c.entries, t.entries)
	return c
}

// Len returns the number of entries currently stored.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns the live backing slice of NAME=VALUE strings in
// insertion order. Callers must not retain it across further mutation
// of t.
func (t *Table) Entries() []string {
	return t.entries
}

// Environ returns a copy of the entries, suitable for os/exec.Cmd.Env.
func (t *Table) Environ() []string {
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}

// splitName returns the name portion of entry, honoring the BSD rule
// that a bare name (no '=') is its own name.
func splitName(entry string) string {
	if i := strings.IndexByte(entry, '='); i >= 0 {
		return entry[:i]
	}
	return entry
}

// queryName truncates name at its first '=', for BSD-compatible Get
// lookups (characters at and after '=' in the query are ignored).
func queryName(name string) string {
	if i := strings.IndexByte(name, '='); i >= 0 {
		return name[:i]
	}
	return name
}

// Get performs a linear scan for an entry whose NAME matches name
// (BSD '=' truncation applied to name, not to stored entries) and
// returns its value and true, or ("", false) if absent.
func (t *Table) Get(name string) (string, bool) {
	qn := queryName(name)
	for _, e := range t.entries {
		n, v, ok := cutName(e)
		if ok && n == qn {
			return v, true
		}
	}
	return "", false
}

// cutName splits entry into NAME, VALUE on the first '='. ok is false
// if entry has no '=' (bare name, no value).
func cutName(entry string) (name, value string, ok bool) {
	i := strings.IndexByte(entry, '=')
	if i < 0 {
		return entry, "", false
	}
	return entry[:i], entry[i+1:], true
}

// Put inserts entry (which must contain '='). If dedup is true and an
// entry with the same NAME= prefix already exists: when overwrite is
// true, the existing slot is replaced and any later duplicates are
// swept out (collapsing the tail, preserving the first occurrence's
// position); when overwrite is false, the table is left unchanged and
// Put still reports success (the original is kept). If no match is
// found (or dedup is false), entry is appended.
func (t *Table) Put(entry string, dedup, overwrite bool) error {
	name, _, hasEq := cutName(entry)
	if !hasEq {
		return fmt.Errorf("%w: entry %q has no '='", ErrInvalidName, entry)
	}
	prefix := name + "="

	if dedup {
		for i, e := range t.entries {
			if !strings.HasPrefix(e, prefix) {
				continue
			}
			if overwrite {
				t.entries[i] = entry
				t.pruneDuplicates(prefix, i+1)
			}
			return nil
		}
	}

	// append grows the backing array itself; growth is retained as the
	// initial capacity hint (FromEnviron) rather than a manual
	// reallocarray step, since Go slices can't overflow the way a
	// size_t multiplication in the original could.
	t.entries = append(t.entries, entry)
	return nil
}

// pruneDuplicates removes every later entry matching prefix, starting
// at from, collapsing the tail in place.
func (t *Table) pruneDuplicates(prefix string, from int) {
	out := t.entries[:from]
	for _, e := range t.entries[from:] {
		if strings.HasPrefix(e, prefix) {
			continue
		}
		out = append(out, e)
	}
	t.entries = out
}

// Set builds a NAME=VALUE entry and inserts it via Put.
func (t *Table) Set(name, value string, dedup, overwrite bool) error {
	if name == "" || strings.ContainsRune(name, '=') {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return t.Put(name+"="+value, dedup, overwrite)
}

// Unset removes every entry whose NAME equals name. name must be
// non-empty and must not contain '='. Succeeds (no-op) if nothing
// matched.
func (t *Table) Unset(name string) error {
	if name == "" || strings.ContainsRune(name, '=') {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	prefix := name + "="
	out := t.entries[:0]
	for _, e := range t.entries {
		if strings.HasPrefix(e, prefix) {
			continue
		}
		out = append(out, e)
	}
	t.entries = out
	return nil
}

// Old holds the previous generation of a table, as env_init/
// env_swap_old track it in the original. It is a thin wrapper so
// callers (Rebuilder) can walk the prior generation while populating a
// fresh Table.
type Old struct {
	table *Table
}

// Swap exchanges cur and o's held table, returning the new current and
// an error if o held nothing (mirrors env_swap_old's false return when
// old_envp is NULL).
func (o *Old) Swap(cur *Table) (*Table, error) {
	if o.table == nil {
		return cur, errors.New("envtable: no previous generation to swap with")
	}
	prev := o.table
	o.table = cur
	return prev, nil
}

// Set stores cur as the retained previous generation.
func (o *Old) Set(cur *Table) {
	o.table = cur
}

// Table returns the retained previous generation, or nil if none.
func (o *Old) Table() *Table {
	return o.table
}

package dbc

import (
	"fmt"
	"iter"
	"slices"
)

// ValueEntry is a raw value with its label.
type ValueEntry struct {
	Raw   int64
	Label string
}

// ValueTable maps raw values of a signal to labels.
// Entries keep their declaration order.
type ValueTable struct {
	entries []ValueEntry
	index   map[int64]int
}

func newValueTable() *ValueTable {
	return &ValueTable{
		index: make(map[int64]int),
	}
}

func (vt *ValueTable) add(raw int64, label string) error {
	if _, ok := vt.index[raw]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateValue, raw)
	}

	vt.index[raw] = len(vt.entries)
	vt.entries = append(vt.entries, ValueEntry{Raw: raw, Label: label})

	return nil
}

// Lookup returns the label of a raw value.
func (vt *ValueTable) Lookup(raw int64) (string, bool) {
	idx, ok := vt.index[raw]
	if !ok {
		return "", false
	}
	return vt.entries[idx].Label, true
}

func (vt *ValueTable) Len() int {
	return len(vt.entries)
}

// Entries iterates over the table in declaration order.
func (vt *ValueTable) Entries() iter.Seq[ValueEntry] {
	return slices.Values(vt.entries)
}

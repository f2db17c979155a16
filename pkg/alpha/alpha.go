// Package alpha generates fresh names by suffix bumping. A table maps
// each name prefix to the largest numeric suffix ever handed out for it.
package alpha

import (
	"fmt"

	"tlog.app/go/tlog"
)

// Debug enables trace output for every lookup.
var Debug bool

// Table maps a prefix to the largest suffix in use; -1 means the bare
// prefix itself is taken.
type Table map[string]int

// NewTable makes an empty table.
func NewTable() Table {
	return make(Table)
}

// splitName splits a name into a prefix and a numeric suffix. The
// suffix must follow an underscore, be non-empty, consist of digits
// only, and not start with 0 unless it is exactly "0"; otherwise the
// whole name is the prefix and the suffix is -1.
func splitName(name string) (string, int) {
	under := -1
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '_' {
			under = i
			break
		}
	}
	if under < 0 || under == len(name)-1 {
		return name, -1
	}
	if name[under+1] == '0' && under < len(name)-2 {
		return name, -1
	}
	suffix := 0
	for i := under + 1; i < len(name); i++ {
		c := name[i]
		if c < '0' || c > '9' {
			return name, -1
		}
		suffix = 10*suffix + int(c-'0')
	}
	return name[:under], suffix
}

// NewName returns a name not previously handed out of the table. The
// first lookup of a prefix returns the name unchanged; later lookups
// bump the suffix past everything seen before.
func NewName(t Table, name string) string {
	prefix, suffix := splitName(name)
	old, ok := t[prefix]
	if !ok {
		t[prefix] = suffix
		if Debug {
			tlog.Printw("alpha fresh", "name", name, "prefix", prefix, "suffix", suffix)
		}
		return name
	}
	newSuffix := old + 1
	if suffix > newSuffix {
		newSuffix = suffix
	}
	t[prefix] = newSuffix
	out := fmt.Sprintf("%s_%d", prefix, newSuffix)
	if Debug {
		tlog.Printw("alpha bump", "name", name, "result", out)
	}
	return out
}

// Register records a name as taken without renaming it, so later
// lookups avoid it.
func Register(t Table, name string) {
	prefix, suffix := splitName(name)
	if old, ok := t[prefix]; !ok || suffix > old {
		t[prefix] = suffix
	}
}

package alpha

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		in     string
		prefix string
		suffix int
	}{
		{"x", "x", -1},
		{"x_5", "x", 5},
		{"x_", "x_", -1},
		{"x_05", "x_05", -1},
		{"x_0", "x", 0},
		{"x_5a", "x_5a", -1},
		{"a_b_12", "a_b", 12},
		{"_7", "", 7},
	}
	for _, tt := range tests {
		p, s := splitName(tt.in)
		assert.Equal(t, tt.prefix, p, "prefix of %q", tt.in)
		assert.Equal(t, tt.suffix, s, "suffix of %q", tt.in)
	}
}

func TestNewNameFreshPrefix(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, "x", NewName(tbl, "x"), "first lookup keeps the name")
	assert.Equal(t, -1, tbl["x"], "table records the requested suffix")
}

func TestNewNameBumps(t *testing.T) {
	tbl := NewTable()
	NewName(tbl, "x")
	assert.Equal(t, "x_0", NewName(tbl, "x"))
	assert.Equal(t, "x_1", NewName(tbl, "x"))
}

func TestNewNameRequestedSuffixWins(t *testing.T) {
	tbl := NewTable()
	NewName(tbl, "x")
	NewName(tbl, "x") // x_0
	assert.Equal(t, "x_5", NewName(tbl, "x_5"), "a larger requested suffix is honored")
	assert.Equal(t, "x_6", NewName(tbl, "x"), "later lookups continue past it")
}

func TestNewNameLeadingZeroSuffix(t *testing.T) {
	tbl := NewTable()
	// x_05 has no numeric suffix, the whole string is the prefix.
	assert.Equal(t, "x_05", NewName(tbl, "x_05"))
	assert.Equal(t, "x_05_0", NewName(tbl, "x_05"))
}

func TestRegister(t *testing.T) {
	tbl := NewTable()
	Register(tbl, "main")
	assert.Equal(t, "main_0", NewName(tbl, "main"), "registered names are taken")
	Register(tbl, "v_9")
	assert.Equal(t, "v_10", NewName(tbl, "v"))
}

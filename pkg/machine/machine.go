// Package machine describes the target data model: byte sizes and
// alignments of the fundamental C types, plus the dialect flag that
// selects MSVC spellings and layout rules. A Machine is threaded through
// the layout engine and the printer instead of living in process state.
package machine

import (
	"os"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
)

// Machine is one target data model.
type Machine struct {
	Msvc bool `yaml:"msvc"`

	SizeofShort     int `yaml:"sizeof_short"`
	SizeofInt       int `yaml:"sizeof_int"`
	SizeofLong      int `yaml:"sizeof_long"`
	SizeofLongLong  int `yaml:"sizeof_longlong"`
	SizeofEnum      int `yaml:"sizeof_enum"`
	SizeofPtr       int `yaml:"sizeof_ptr"`
	SizeofDouble    int `yaml:"sizeof_double"`
	SizeofLongDouble int `yaml:"sizeof_longdouble"`
	SizeofVaList    int `yaml:"sizeof_valist"`

	AlignofShort      int `yaml:"alignof_short"`
	AlignofInt        int `yaml:"alignof_int"`
	AlignofLong       int `yaml:"alignof_long"`
	AlignofLongLong   int `yaml:"alignof_longlong"`
	AlignofEnum       int `yaml:"alignof_enum"`
	AlignofPtr        int `yaml:"alignof_ptr"`
	AlignofFloat      int `yaml:"alignof_float"`
	AlignofDouble     int `yaml:"alignof_double"`
	AlignofLongDouble int `yaml:"alignof_longdouble"`
	AlignofVaList     int `yaml:"alignof_valist"`

	CharIsUnsigned bool `yaml:"char_is_unsigned"`
}

// Gcc64 is the GCC data model for a 64-bit LP64 target.
func Gcc64() *Machine {
	return &Machine{
		SizeofShort:      2,
		SizeofInt:        4,
		SizeofLong:       8,
		SizeofLongLong:   8,
		SizeofEnum:       4,
		SizeofPtr:        8,
		SizeofDouble:     8,
		SizeofLongDouble: 16,
		SizeofVaList:     24,
		AlignofShort:      2,
		AlignofInt:        4,
		AlignofLong:       8,
		AlignofLongLong:   8,
		AlignofEnum:       4,
		AlignofPtr:        8,
		AlignofFloat:      4,
		AlignofDouble:     8,
		AlignofLongDouble: 16,
		AlignofVaList:     8,
	}
}

// Gcc32 is the GCC data model for a 32-bit ILP32 target.
func Gcc32() *Machine {
	return &Machine{
		SizeofShort:      2,
		SizeofInt:        4,
		SizeofLong:       4,
		SizeofLongLong:   8,
		SizeofEnum:       4,
		SizeofPtr:        4,
		SizeofDouble:     8,
		SizeofLongDouble: 12,
		SizeofVaList:     4,
		AlignofShort:      2,
		AlignofInt:        4,
		AlignofLong:       4,
		AlignofLongLong:   4,
		AlignofEnum:       4,
		AlignofPtr:        4,
		AlignofFloat:      4,
		AlignofDouble:     4,
		AlignofLongDouble: 4,
		AlignofVaList:     4,
	}
}

// Msvc32 is the MSVC data model for a 32-bit target.
func Msvc32() *Machine {
	return &Machine{
		Msvc:             true,
		SizeofShort:      2,
		SizeofInt:        4,
		SizeofLong:       4,
		SizeofLongLong:   8,
		SizeofEnum:       4,
		SizeofPtr:        4,
		SizeofDouble:     8,
		SizeofLongDouble: 8,
		SizeofVaList:     4,
		AlignofShort:      2,
		AlignofInt:        4,
		AlignofLong:       4,
		AlignofLongLong:   8,
		AlignofEnum:       4,
		AlignofPtr:        4,
		AlignofFloat:      4,
		AlignofDouble:     8,
		AlignofLongDouble: 8,
		AlignofVaList:     4,
	}
}

// Load reads a data model from a YAML file. Missing fields fall back to
// the GCC 64-bit model so partial files stay usable.
func Load(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read machine model")
	}
	m := Gcc64()
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, errors.Wrap(err, "parse machine model %v", path)
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "machine model %v", path)
	}
	return m, nil
}

// Validate checks the model for impossible values.
func (m *Machine) Validate() error {
	sizes := []struct {
		name string
		n    int
	}{
		{"sizeof_short", m.SizeofShort},
		{"sizeof_int", m.SizeofInt},
		{"sizeof_long", m.SizeofLong},
		{"sizeof_longlong", m.SizeofLongLong},
		{"sizeof_enum", m.SizeofEnum},
		{"sizeof_ptr", m.SizeofPtr},
		{"sizeof_double", m.SizeofDouble},
		{"sizeof_longdouble", m.SizeofLongDouble},
		{"sizeof_valist", m.SizeofVaList},
	}
	for _, s := range sizes {
		if s.n <= 0 {
			return errors.New("%s must be positive, got %d", s.name, s.n)
		}
	}
	if m.SizeofShort > m.SizeofInt || m.SizeofInt > m.SizeofLong || m.SizeofLong > m.SizeofLongLong {
		return errors.New("integer sizes must be nondecreasing: short %d, int %d, long %d, long long %d",
			m.SizeofShort, m.SizeofInt, m.SizeofLong, m.SizeofLongLong)
	}
	return nil
}

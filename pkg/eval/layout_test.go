package eval

import (
	"testing"

	"github.com/nlucid/cil/pkg/cil"
	"github.com/nlucid/cil/pkg/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bits(n int) *int { return &n }

func mkStruct(name string, fields ...cil.FieldSpec) *cil.CompInfo {
	return cil.MkCompInfo(true, name, func(*cil.TComp) []cil.FieldSpec {
		return fields
	}, nil)
}

func mkUnion(name string, fields ...cil.FieldSpec) *cil.CompInfo {
	return cil.MkCompInfo(false, name, func(*cil.TComp) []cil.FieldSpec {
		return fields
	}, nil)
}

func TestBitsSizeOfPrimitives(t *testing.T) {
	v := NewEnv(machine.Gcc64())
	tests := []struct {
		name string
		typ  cil.Type
		want int
	}{
		{"char", cil.CharType(), 8},
		{"short", &cil.TInt{Kind: cil.IShort}, 16},
		{"int", cil.IntType(), 32},
		{"long", &cil.TInt{Kind: cil.ILong}, 64},
		{"long long", &cil.TInt{Kind: cil.ILongLong}, 64},
		{"float", &cil.TFloat{Kind: cil.FFloat}, 32},
		{"double", &cil.TFloat{Kind: cil.FDouble}, 64},
		{"pointer", cil.VoidPtrType(), 64},
		{"array", &cil.TArray{Elem: cil.IntType(), Len: cil.Integer(3)}, 96},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.BitsSizeOf(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBitsSizeOfErrors(t *testing.T) {
	v := NewEnv(machine.Gcc64())
	for _, typ := range []cil.Type{
		cil.VoidType(),
		&cil.TFun{Ret: cil.VoidType()},
		&cil.TArray{Elem: cil.IntType()},
		&cil.TComp{Ci: mkStruct("incomplete")},
	} {
		_, err := v.BitsSizeOf(typ)
		var serr *cil.SizeOfError
		require.ErrorAs(t, err, &serr, "type %v", cil.TypeName(typ))
	}
}

func TestSizeOfRecovers(t *testing.T) {
	v := NewEnv(machine.Gcc64())
	e := v.SizeOf(&cil.TArray{Elem: cil.IntType()})
	_, sym := e.(*cil.SizeOf)
	assert.True(t, sym, "failed sizeof stays symbolic")

	e = v.SizeOf(cil.IntType())
	n, ok := cil.IsInteger(e)
	require.True(t, ok)
	assert.EqualValues(t, 4, n)
}

func TestGCCStructLayout(t *testing.T) {
	// struct { char a; int b; char c; } with 4-byte int.
	v := NewEnv(machine.Gcc64())
	ci := mkStruct("s",
		cil.FieldSpec{Name: "a", Typ: cil.CharType()},
		cil.FieldSpec{Name: "b", Typ: cil.IntType()},
		cil.FieldSpec{Name: "c", Typ: cil.CharType()},
	)
	tc := &cil.TComp{Ci: ci}

	wantStarts := []int{0, 32, 64}
	for i, f := range ci.Fields {
		start, width, err := v.BitsOffset(tc, &cil.Field{F: f, Next: cil.NoOffset{}})
		require.NoError(t, err)
		assert.Equal(t, wantStarts[i], start, "field %s", f.Name)
		if f.Name != "b" {
			assert.Equal(t, 8, width)
		}
	}

	size, err := v.BitsSizeOf(tc)
	require.NoError(t, err)
	assert.Equal(t, 96, size)

	align, err := v.AlignOf(tc)
	require.NoError(t, err)
	assert.Equal(t, 4, align)
}

func TestGCCBitfields(t *testing.T) {
	v := NewEnv(machine.Gcc64())
	// struct { int a:3; int b:5; int :0; int c:1; }
	ci := mkStruct("bf",
		cil.FieldSpec{Name: "a", Typ: cil.IntType(), Bitfield: bits(3)},
		cil.FieldSpec{Name: "b", Typ: cil.IntType(), Bitfield: bits(5)},
		cil.FieldSpec{Name: cil.MissingFieldName, Typ: cil.IntType(), Bitfield: bits(0)},
		cil.FieldSpec{Name: "c", Typ: cil.IntType(), Bitfield: bits(1)},
	)
	tc := &cil.TComp{Ci: ci}

	start := func(i int) int {
		s, _, err := v.BitsOffset(tc, &cil.Field{F: ci.Fields[i], Next: cil.NoOffset{}})
		require.NoError(t, err)
		return s
	}
	assert.Equal(t, 0, start(0), "a packs at the front")
	assert.Equal(t, 3, start(1), "b packs right after a")
	assert.Equal(t, 32, start(3), "zero width pushes c to the next int")
}

func TestMSVCBitfieldPacking(t *testing.T) {
	// struct { int a:3; int b:5; char c:2; int d:7; }
	v := NewEnv(machine.Msvc32())
	ci := mkStruct("bf",
		cil.FieldSpec{Name: "a", Typ: cil.IntType(), Bitfield: bits(3)},
		cil.FieldSpec{Name: "b", Typ: cil.IntType(), Bitfield: bits(5)},
		cil.FieldSpec{Name: "c", Typ: cil.CharType(), Bitfield: bits(2)},
		cil.FieldSpec{Name: "d", Typ: cil.IntType(), Bitfield: bits(7)},
	)
	tc := &cil.TComp{Ci: ci}

	starts := make([]int, 4)
	for i, f := range ci.Fields {
		s, _, err := v.BitsOffset(tc, &cil.Field{F: f, Next: cil.NoOffset{}})
		require.NoError(t, err)
		starts[i] = s
	}
	assert.Equal(t, 0, starts[0], "a opens the int pack")
	assert.Equal(t, 3, starts[1], "b shares the int pack")
	assert.Equal(t, 32, starts[2], "c closes the int pack and opens a char pack at byte 4")
	assert.Equal(t, 64, starts[3], "d closes the char pack and opens a new int pack")
}

func TestMSVCZeroWidthOnlyStruct(t *testing.T) {
	v := NewEnv(machine.Msvc32())
	ci := mkStruct("z",
		cil.FieldSpec{Name: cil.MissingFieldName, Typ: cil.IntType(), Bitfield: bits(0)},
	)
	size, err := v.BitsSizeOf(&cil.TComp{Ci: ci})
	require.NoError(t, err)
	assert.Equal(t, 32, size)
}

func TestUnionLayout(t *testing.T) {
	v := NewEnv(machine.Gcc64())
	ci := mkUnion("u",
		cil.FieldSpec{Name: "c", Typ: cil.CharType()},
		cil.FieldSpec{Name: "n", Typ: cil.IntType()},
		cil.FieldSpec{Name: "d", Typ: &cil.TFloat{Kind: cil.FDouble}},
	)
	tc := &cil.TComp{Ci: ci}
	size, err := v.BitsSizeOf(tc)
	require.NoError(t, err)
	assert.Equal(t, 64, size)

	for _, f := range ci.Fields {
		start, _, err := v.BitsOffset(tc, &cil.Field{F: f, Next: cil.NoOffset{}})
		require.NoError(t, err)
		assert.Equal(t, 0, start, "union fields start at 0")
	}
}

// Every field must lie within its struct, and struct field offsets are
// nondecreasing in declaration order.
func TestFieldOffsetsWithinSize(t *testing.T) {
	for _, m := range []*machine.Machine{machine.Gcc64(), machine.Gcc32(), machine.Msvc32()} {
		v := NewEnv(m)
		ci := mkStruct("mix",
			cil.FieldSpec{Name: "a", Typ: cil.CharType()},
			cil.FieldSpec{Name: "b", Typ: cil.IntType(), Bitfield: bits(5)},
			cil.FieldSpec{Name: "c", Typ: &cil.TInt{Kind: cil.IShort}},
			cil.FieldSpec{Name: "d", Typ: &cil.TArray{Elem: cil.CharType(), Len: cil.Integer(3)}},
		)
		tc := &cil.TComp{Ci: ci}
		size, err := v.BitsSizeOf(tc)
		require.NoError(t, err)

		prev := -1
		for _, f := range ci.Fields {
			start, width, err := v.BitsOffset(tc, &cil.Field{F: f, Next: cil.NoOffset{}})
			require.NoError(t, err)
			assert.LessOrEqual(t, start+width, size, "field %s overflows", f.Name)
			assert.GreaterOrEqual(t, start, prev, "offsets must not decrease")
			prev = start
		}
	}
}

func TestBitsOffsetIndexChain(t *testing.T) {
	v := NewEnv(machine.Gcc64())
	ci := mkStruct("cell", cil.FieldSpec{Name: "v", Typ: cil.IntType()})
	arr := &cil.TArray{Elem: &cil.TComp{Ci: ci}, Len: cil.Integer(4)}

	off := &cil.Index{E: cil.Integer(2), Next: &cil.Field{F: ci.Fields[0], Next: cil.NoOffset{}}}
	start, width, err := v.BitsOffset(arr, off)
	require.NoError(t, err)
	assert.Equal(t, 64, start)
	assert.Equal(t, 32, width)

	_, _, err = v.BitsOffset(arr, &cil.Index{E: cil.VarExp(cil.MakeGlobalVar("i", cil.IntType())), Next: cil.NoOffset{}})
	assert.Error(t, err, "non-constant index has no static offset")
}

func TestAlignOfNamedAndArray(t *testing.T) {
	v := NewEnv(machine.Gcc64())
	named := &cil.TNamed{Name: "len_t", Typ: &cil.TInt{Kind: cil.ILong}}
	a, err := v.AlignOf(named)
	require.NoError(t, err)
	assert.Equal(t, 8, a)

	arr := &cil.TArray{Elem: named, Len: cil.Integer(2)}
	a, err = v.AlignOf(arr)
	require.NoError(t, err)
	assert.Equal(t, 8, a, "arrays align like their element")
}

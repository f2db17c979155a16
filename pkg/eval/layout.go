// Package eval performs compile-time evaluation over the IR: the
// target-dependent layout engine (sizes, alignments, field offsets) and
// the constant folder. The two are mutually recursive: array lengths
// must fold before a size is known, and machine-dependent folding
// resolves sizeof through layout.
package eval

import (
	"github.com/nlucid/cil/pkg/cil"
	"github.com/nlucid/cil/pkg/machine"
)

// Env threads the target data model through evaluation.
type Env struct {
	M *machine.Machine
}

// NewEnv makes an evaluation environment for the given target.
func NewEnv(m *machine.Machine) *Env {
	return &Env{M: m}
}

// BytesSizeOfInt gives the byte size of an integer kind on the target.
func (v *Env) BytesSizeOfInt(k cil.IKind) int {
	switch k {
	case cil.IChar, cil.ISChar, cil.IUChar:
		return 1
	case cil.IShort, cil.IUShort:
		return v.M.SizeofShort
	case cil.IInt, cil.IUInt:
		return v.M.SizeofInt
	case cil.ILong, cil.IULong:
		return v.M.SizeofLong
	}
	return v.M.SizeofLongLong
}

// IsCharUnsigned reports the signedness of an integer kind, resolving
// plain char against the target.
func (v *Env) IsCharUnsigned(k cil.IKind) bool {
	if k == cil.IChar {
		return v.M.CharIsUnsigned
	}
	return k.IsUnsigned()
}

// AlignOf returns the byte alignment of a type.
func (v *Env) AlignOf(t cil.Type) (int, error) {
	switch t := t.(type) {
	case *cil.TInt:
		switch t.Kind {
		case cil.IChar, cil.ISChar, cil.IUChar:
			return 1, nil
		case cil.IShort, cil.IUShort:
			return v.M.AlignofShort, nil
		case cil.IInt, cil.IUInt:
			return v.M.AlignofInt, nil
		case cil.ILong, cil.IULong:
			return v.M.AlignofLong, nil
		}
		return v.M.AlignofLongLong, nil
	case *cil.TEnum:
		return v.M.AlignofEnum, nil
	case *cil.TFloat:
		switch t.Kind {
		case cil.FFloat:
			return v.M.AlignofFloat, nil
		case cil.FDouble:
			return v.M.AlignofDouble, nil
		}
		return v.M.AlignofLongDouble, nil
	case *cil.TPtr:
		return v.M.AlignofPtr, nil
	case *cil.TBuiltinVaList:
		return v.M.AlignofVaList, nil
	case *cil.TNamed:
		return v.AlignOf(t.Typ)
	case *cil.TArray:
		return v.AlignOf(t.Elem)
	case *cil.TComp:
		return v.alignOfComp(t.Ci)
	case *cil.TVoid:
		return 0, cil.SizeOfErr(t, "alignment of void")
	case *cil.TFun:
		return 0, cil.SizeOfErr(t, "alignment of a function")
	}
	return 0, cil.SizeOfErr(t, "alignment")
}

// alignOfComp is the maximum alignment across the fields that
// contribute. GCC drops every zero-width bitfield; MSVC drops only those
// not preceded by a bitfield.
func (v *Env) alignOfComp(ci *cil.CompInfo) (int, error) {
	max := 1
	prevBitfield := false
	for _, f := range ci.Fields {
		drop := false
		if f.Bitfield != nil && *f.Bitfield == 0 {
			if v.M.Msvc {
				drop = !prevBitfield
			} else {
				drop = true
			}
		}
		prevBitfield = f.Bitfield != nil
		if drop {
			continue
		}
		a, err := v.AlignOf(f.Typ)
		if err != nil {
			return 0, err
		}
		if a > max {
			max = a
		}
	}
	return max, nil
}

// offsetAcc accumulates field placement within a composite.
type offsetAcc struct {
	firstFree      int // first free bit
	lastFieldStart int
	lastFieldWidth int
	pack           *bitPack // MSVC only
}

// bitPack is a run of bitfields sharing one storage unit.
type bitPack struct {
	start int // bit where the pack's storage unit starts
	kind  cil.IKind
	width int // storage width in bits
}

// addTrailing rounds n up to a multiple of roundto, a power of two.
func addTrailing(n, roundto int) int {
	return (n + roundto - 1) &^ (roundto - 1)
}

// OffsetOfFieldAcc places one field after the fields accumulated so far,
// under the target's packing rules.
func (v *Env) OffsetOfFieldAcc(fi *cil.FieldInfo, sofar offsetAcc) (offsetAcc, error) {
	if v.M.Msvc {
		return v.offsetOfFieldAccMSVC(fi, sofar)
	}
	return v.offsetOfFieldAccGCC(fi, sofar)
}

func (v *Env) offsetOfFieldAccGCC(fi *cil.FieldInfo, sofar offsetAcc) (offsetAcc, error) {
	ftype := cil.UnrollType(fi.Typ)
	align, err := v.AlignOf(ftype)
	if err != nil {
		return sofar, err
	}
	ftypeAlign := 8 * align
	ftypeBits, err := v.BitsSizeOf(ftype)
	if err != nil {
		return sofar, err
	}

	switch {
	case fi.Bitfield != nil && *fi.Bitfield == 0:
		// Zero width ends the run: pad up to the alignment of the
		// field's own type.
		firstFree := addTrailing(sofar.firstFree, ftypeAlign)
		return offsetAcc{firstFree: firstFree, lastFieldStart: firstFree}, nil

	case fi.Bitfield != nil:
		w := *fi.Bitfield
		// A bitfield cannot span more alignment boundaries of its type
		// than the type itself does.
		if (sofar.firstFree+w+ftypeAlign-1)/ftypeAlign-sofar.firstFree/ftypeAlign > ftypeBits/ftypeAlign {
			start := addTrailing(sofar.firstFree, ftypeAlign)
			return offsetAcc{firstFree: start + w, lastFieldStart: start, lastFieldWidth: w}, nil
		}
		return offsetAcc{
			firstFree:      sofar.firstFree + w,
			lastFieldStart: sofar.firstFree,
			lastFieldWidth: w,
		}, nil

	default:
		start := addTrailing(sofar.firstFree, ftypeAlign)
		return offsetAcc{
			firstFree:      start + ftypeBits,
			lastFieldStart: start,
			lastFieldWidth: ftypeBits,
		}, nil
	}
}

func (v *Env) offsetOfFieldAccMSVC(fi *cil.FieldInfo, sofar offsetAcc) (offsetAcc, error) {
	ftype := cil.UnrollType(fi.Typ)
	align, err := v.AlignOf(ftype)
	if err != nil {
		return sofar, err
	}
	ftypeAlign := 8 * align
	ftypeBits, err := v.BitsSizeOf(ftype)
	if err != nil {
		return sofar, err
	}
	kind := cil.IInt
	if ti, ok := ftype.(*cil.TInt); ok {
		kind = ti.Kind
	}

	switch {
	case fi.Bitfield != nil && *fi.Bitfield == 0 && sofar.pack == nil:
		// A zero-width bitfield after a non-bitfield is ignored.
		return offsetAcc{firstFree: sofar.firstFree, lastFieldStart: sofar.firstFree}, nil

	case fi.Bitfield != nil && sofar.pack != nil && sofar.pack.width != ftypeBits:
		// A bitfield of a different storage width closes the pack and
		// retries.
		firstFree := sofar.pack.start
		if sofar.firstFree != sofar.pack.start {
			firstFree = sofar.pack.start + sofar.pack.width
		}
		return v.offsetOfFieldAccMSVC(fi, offsetAcc{
			firstFree:      addTrailing(firstFree, ftypeAlign),
			lastFieldStart: sofar.lastFieldStart,
			lastFieldWidth: sofar.lastFieldWidth,
		})

	case fi.Bitfield != nil && *fi.Bitfield == 0:
		// Same storage width, zero width: close the pack and open a
		// fresh empty one.
		firstFree := sofar.pack.start + sofar.pack.width
		return offsetAcc{
			firstFree:      firstFree,
			lastFieldStart: firstFree,
			pack:           &bitPack{start: firstFree, kind: kind, width: ftypeBits},
		}, nil

	case fi.Bitfield != nil && sofar.pack != nil:
		w := *fi.Bitfield
		if sofar.pack.start+sofar.pack.width >= sofar.firstFree+w {
			// Fits in the current pack.
			return offsetAcc{
				firstFree:      sofar.firstFree + w,
				lastFieldStart: sofar.firstFree,
				lastFieldWidth: w,
				pack:           sofar.pack,
			}, nil
		}
		// Does not fit: start a new storage unit of the same width.
		firstFree := sofar.pack.start + sofar.pack.width
		return offsetAcc{
			firstFree:      firstFree + w,
			lastFieldStart: firstFree,
			lastFieldWidth: w,
			pack:           &bitPack{start: firstFree, kind: kind, width: ftypeBits},
		}, nil

	case fi.Bitfield != nil:
		// First bitfield: open a pack at the aligned position.
		w := *fi.Bitfield
		start := addTrailing(sofar.firstFree, ftypeAlign)
		return offsetAcc{
			firstFree:      start + w,
			lastFieldStart: start,
			lastFieldWidth: w,
			pack:           &bitPack{start: start, kind: kind, width: ftypeBits},
		}, nil

	case sofar.pack != nil:
		// A non-bitfield closes the pack, then places normally.
		firstFree := sofar.pack.start
		if sofar.firstFree != sofar.pack.start {
			firstFree = sofar.pack.start + sofar.pack.width
		}
		return v.offsetOfFieldAccMSVC(fi, offsetAcc{
			firstFree:      firstFree,
			lastFieldStart: sofar.lastFieldStart,
			lastFieldWidth: sofar.lastFieldWidth,
		})

	default:
		start := addTrailing(sofar.firstFree, ftypeAlign)
		return offsetAcc{
			firstFree:      start + ftypeBits,
			lastFieldStart: start,
			lastFieldWidth: ftypeBits,
		}, nil
	}
}

// BitsSizeOf computes the size of a type in bits.
func (v *Env) BitsSizeOf(t cil.Type) (int, error) {
	switch t := t.(type) {
	case *cil.TInt:
		return 8 * v.BytesSizeOfInt(t.Kind), nil
	case *cil.TFloat:
		switch t.Kind {
		case cil.FFloat:
			return 32, nil
		case cil.FDouble:
			return 8 * v.M.SizeofDouble, nil
		}
		return 8 * v.M.SizeofLongDouble, nil
	case *cil.TEnum:
		return 8 * v.M.SizeofEnum, nil
	case *cil.TPtr:
		return 8 * v.M.SizeofPtr, nil
	case *cil.TBuiltinVaList:
		return 8 * v.M.SizeofVaList, nil
	case *cil.TNamed:
		return v.BitsSizeOf(t.Typ)
	case *cil.TComp:
		return v.bitsSizeOfComp(t)
	case *cil.TArray:
		if t.Len == nil {
			return 0, cil.SizeOfErr(t, "array of unknown length")
		}
		n, ok := cil.IsInteger(v.ConstFold(true, t.Len))
		if !ok {
			return 0, cil.SizeOfErr(t, "array length is not a constant")
		}
		elem, err := v.BitsSizeOf(t.Elem)
		if err != nil {
			return 0, err
		}
		return elem * int(n), nil
	case *cil.TVoid:
		return 0, cil.SizeOfErr(t, "void")
	case *cil.TFun:
		return 0, cil.SizeOfErr(t, "function")
	}
	return 0, cil.SizeOfErr(t, "size")
}

func (v *Env) bitsSizeOfComp(t *cil.TComp) (int, error) {
	ci := t.Ci
	if len(ci.Fields) == 0 {
		return 0, cil.SizeOfErr(t, "abstract type %s", ci.Name)
	}
	align, err := v.alignOfComp(ci)
	if err != nil {
		return 0, err
	}
	if ci.IsStruct {
		acc := offsetAcc{}
		for _, f := range ci.Fields {
			acc, err = v.OffsetOfFieldAcc(f, acc)
			if err != nil {
				return 0, err
			}
		}
		if v.M.Msvc && acc.firstFree == 0 {
			// MSVC gives a struct of only zero-width bitfields 32 bits,
			// unpadded.
			return 32, nil
		}
		return addTrailing(acc.firstFree, 8*align), nil
	}
	// Union: the maximum over the fields, each placed at 0.
	max := 0
	for _, f := range ci.Fields {
		acc, err := v.OffsetOfFieldAcc(f, offsetAcc{})
		if err != nil {
			return 0, err
		}
		if acc.firstFree > max {
			max = acc.firstFree
		}
	}
	return addTrailing(max, 8*align), nil
}

// SizeOf returns sizeof(t) in bytes as an expression, or the symbolic
// SizeOf node when the size cannot be computed.
func (v *Env) SizeOf(t cil.Type) cil.Exp {
	bits, err := v.BitsSizeOf(t)
	if err != nil {
		return &cil.SizeOf{T: t}
	}
	return cil.Integer(bits / 8)
}

// BitsOffset returns the (start, width) in bits of an offset chain
// applied to a base type.
func (v *Env) BitsOffset(baset cil.Type, off cil.Offset) (start, width int, err error) {
	width, err = v.BitsSizeOf(baset)
	if err != nil {
		return 0, 0, err
	}
	return v.loopOffset(baset, width, 0, off)
}

func (v *Env) loopOffset(baset cil.Type, width, start int, off cil.Offset) (int, int, error) {
	switch off := off.(type) {
	case cil.NoOffset:
		return start, width, nil
	case *cil.Index:
		bt, ok := cil.UnrollType(baset).(*cil.TArray)
		if !ok {
			return 0, 0, cil.Bug(cil.NoLoc, "BitsOffset: Index on a non-array")
		}
		n, ok := cil.IsInteger(v.ConstFold(true, off.E))
		if !ok {
			return 0, 0, cil.SizeOfErr(baset, "index is not a constant")
		}
		elemBits, err := v.BitsSizeOf(bt.Elem)
		if err != nil {
			return 0, 0, err
		}
		return v.loopOffset(bt.Elem, elemBits, start+int(n)*elemBits, off.Next)
	case *cil.Field:
		f := off.F
		if !f.Comp.IsStruct {
			// Union fields all start at 0.
			w := 0
			if f.Bitfield != nil {
				w = *f.Bitfield
			} else {
				var err error
				w, err = v.BitsSizeOf(f.Typ)
				if err != nil {
					return 0, 0, err
				}
			}
			return v.loopOffset(f.Typ, w, start, off.Next)
		}
		acc := offsetAcc{}
		found := false
		for _, fi := range f.Comp.Fields {
			var err error
			acc, err = v.OffsetOfFieldAcc(fi, acc)
			if err != nil {
				return 0, 0, err
			}
			if fi == f {
				found = true
				break
			}
		}
		if !found {
			return 0, 0, cil.Bug(cil.NoLoc, "BitsOffset: no field %s in %s", f.Name, f.Comp.Name)
		}
		return v.loopOffset(f.Typ, acc.lastFieldWidth, start+acc.lastFieldStart, off.Next)
	}
	return 0, 0, cil.Bug(cil.NoLoc, "BitsOffset: unexpected offset")
}

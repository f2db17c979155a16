// The constant folder. Arithmetic happens on 64-bit values with
// wraparound; widths narrower than 64 bits are applied only by explicit
// casts, through TruncateInteger64.
package eval

import (
	"math"

	"github.com/nlucid/cil/pkg/cil"
)

// IsIntegralType reports whether t unrolls to an integer or enum type.
func IsIntegralType(t cil.Type) bool {
	switch cil.UnrollType(t).(type) {
	case *cil.TInt, *cil.TEnum:
		return true
	}
	return false
}

// IsPointerType reports whether t unrolls to a pointer type.
func IsPointerType(t cil.Type) bool {
	_, ok := cil.UnrollType(t).(*cil.TPtr)
	return ok
}

func intConst(k cil.IKind, n int64) cil.Exp {
	return &cil.Const{C: &cil.CInt64{V: n, Kind: k}}
}

// ConstFold rewrites e bottom-up, evaluating subexpressions whose
// operands are integer constants. With machdep set, sizeof and alignof
// are resolved through the layout engine; otherwise they stay symbolic.
func (v *Env) ConstFold(machdep bool, e cil.Exp) cil.Exp {
	switch e := e.(type) {
	case *cil.BinOp:
		return v.constFoldBinOp(machdep, e)
	case *cil.UnOp:
		tk, ok := integralKind(e.T)
		if !ok {
			return e
		}
		e1 := v.ConstFold(machdep, e.E)
		if c, ok := intConstOf(e1); ok {
			switch e.Op {
			case cil.Neg:
				return intConst(tk, -c.V)
			case cil.BNot:
				return intConst(tk, ^c.V)
			}
			return e
		}
		if e1 != e.E {
			return &cil.UnOp{Op: e.Op, E: e1, T: e.T}
		}
		return e
	case *cil.Const:
		// Characters are integers.
		if c, ok := e.C.(*cil.CChr); ok {
			return &cil.Const{C: cil.CharConstToInt(c.C)}
		}
		return e
	case *cil.SizeOf:
		if machdep {
			bits, err := v.BitsSizeOf(e.T)
			if err != nil {
				return e
			}
			return cil.Integer(bits / 8)
		}
		return e
	case *cil.SizeOfE:
		if machdep {
			return v.ConstFold(machdep, &cil.SizeOf{T: cil.TypeOf(e.E)})
		}
		return e
	case *cil.AlignOf:
		if machdep {
			a, err := v.AlignOf(e.T)
			if err != nil {
				return e
			}
			return cil.Integer(a)
		}
		return e
	case *cil.AlignOfE:
		if machdep {
			return v.ConstFold(machdep, &cil.AlignOf{T: cil.TypeOf(e.E)})
		}
		return e
	case *cil.CastE:
		e1 := v.ConstFold(machdep, e.E)
		if ti, ok := cil.UnrollType(e.T).(*cil.TInt); ok && len(ti.A) == 0 {
			if c, ok := intConstOf(e1); ok {
				return cil.Kinteger64(ti.Kind, c.V)
			}
		}
		if e1 != e.E {
			return &cil.CastE{T: e.T, E: e1}
		}
		return e
	}
	return e
}

// integralKind maps the result type of an operation to the integer kind
// folding happens in. Enums fold as int.
func integralKind(t cil.Type) (cil.IKind, bool) {
	switch t := cil.UnrollType(t).(type) {
	case *cil.TInt:
		return t.Kind, true
	case *cil.TEnum:
		return cil.IInt, true
	}
	return cil.IInt, false
}

// intConstOf extracts an integer constant, promoting characters and
// looking through casts to attribute-free integer types.
func intConstOf(e cil.Exp) (*cil.CInt64, bool) {
	switch e := e.(type) {
	case *cil.Const:
		switch c := e.C.(type) {
		case *cil.CInt64:
			return c, true
		case *cil.CChr:
			return cil.CharConstToInt(c.C), true
		}
	case *cil.CastE:
		if ti, ok := cil.UnrollType(e.T).(*cil.TInt); ok && len(ti.A) == 0 {
			if c, ok := intConstOf(e.E); ok {
				tr, _ := cil.TruncateInteger64(ti.Kind, c.V)
				return &cil.CInt64{V: tr, Kind: ti.Kind}, true
			}
		}
	}
	return nil, false
}

func (v *Env) constFoldBinOp(machdep bool, e *cil.BinOp) cil.Exp {
	l := v.ConstFold(machdep, e.L)
	r := v.ConstFold(machdep, e.R)
	keep := func() cil.Exp {
		if l != e.L || r != e.R {
			return &cil.BinOp{Op: e.Op, L: l, R: r, T: e.T}
		}
		return e
	}
	if !IsIntegralType(e.T) && !isPointerOp(e.Op) {
		return keep()
	}

	// Additive with a literal zero simplifies away.
	switch e.Op {
	case cil.PlusA:
		if cil.IsZero(l) {
			return r
		}
		if cil.IsZero(r) {
			return l
		}
	case cil.PlusPI, cil.IndexPI, cil.MinusA, cil.MinusPI:
		if cil.IsZero(r) {
			return l
		}
	}

	lc, lok := intConstOf(l)
	rc, rok := intConstOf(r)
	if !lok || !rok || lc.Kind != rc.Kind || !IsIntegralType(e.T) {
		return keep()
	}
	k := lc.Kind
	i1, i2 := lc.V, rc.V
	unsigned := v.IsCharUnsigned(k)

	boolInt := func(b bool) cil.Exp {
		if b {
			return cil.One()
		}
		return cil.Zero()
	}

	switch e.Op {
	case cil.PlusA:
		return intConst(k, i1+i2)
	case cil.MinusA:
		return intConst(k, i1-i2)
	case cil.Mult:
		return intConst(k, i1*i2)
	case cil.Div:
		if i2 == 0 || (i1 == math.MinInt64 && i2 == -1) {
			return keep()
		}
		if unsigned {
			return intConst(k, int64(uint64(i1)/uint64(i2)))
		}
		return intConst(k, i1/i2)
	case cil.Mod:
		if i2 == 0 || (i1 == math.MinInt64 && i2 == -1) {
			return keep()
		}
		if unsigned {
			return intConst(k, int64(uint64(i1)%uint64(i2)))
		}
		return intConst(k, i1%i2)
	case cil.BAnd:
		return intConst(k, i1&i2)
	case cil.BOr:
		return intConst(k, i1|i2)
	case cil.BXor:
		return intConst(k, i1^i2)
	case cil.Shiftlt:
		if i2 < 0 || i2 >= 64 {
			return keep()
		}
		return intConst(k, i1<<uint(i2))
	case cil.Shiftrt:
		if i2 < 0 || i2 >= 64 {
			return keep()
		}
		if unsigned {
			return intConst(k, int64(uint64(i1)>>uint(i2)))
		}
		return intConst(k, i1>>uint(i2))
	case cil.Eq, cil.EqP:
		return boolInt(i1 == i2)
	case cil.Ne, cil.NeP:
		return boolInt(i1 != i2)
	case cil.Ge, cil.GeP:
		return boolInt(ge(unsigned, i1, i2))
	case cil.Le, cil.LeP:
		return boolInt(ge(unsigned, i2, i1))
	case cil.Gt, cil.GtP:
		return boolInt(ge(unsigned, i1, i2) && i1 != i2)
	case cil.Lt, cil.LtP:
		return boolInt(ge(unsigned, i2, i1) && i1 != i2)
	}
	return keep()
}

func isPointerOp(op cil.BOp) bool {
	switch op {
	case cil.PlusPI, cil.IndexPI, cil.MinusPI, cil.MinusPP,
		cil.LtP, cil.GtP, cil.LeP, cil.GeP, cil.EqP, cil.NeP:
		return true
	}
	return false
}

// ge reports a >= b in the kind's signedness, comparing unsigned 64-bit
// values by splitting on the high bit.
func ge(unsigned bool, a, b int64) bool {
	if !unsigned {
		return a >= b
	}
	ah, bh := a < 0, b < 0
	switch {
	case ah && !bh:
		return true
	case !ah && bh:
		return false
	}
	return a >= b
}

// Increm adds the integer k to e, as pointer arithmetic when e is a
// pointer, and folds the result.
func (v *Env) Increm(e cil.Exp, k int) cil.Exp {
	t := cil.TypeOf(e)
	op := cil.PlusA
	if IsPointerType(t) {
		op = cil.PlusPI
	}
	return v.ConstFold(false, &cil.BinOp{Op: op, L: e, R: cil.Integer(k), T: t})
}

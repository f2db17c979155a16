// Type utilities: attribute access, typedef unrolling, the type of an
// expression, and structural type signatures.
package cil

import "fmt"

// TypeAttrs returns the attribute list of a type constructor.
func TypeAttrs(t Type) []Attribute {
	switch t := t.(type) {
	case *TVoid:
		return t.A
	case *TInt:
		return t.A
	case *TFloat:
		return t.A
	case *TPtr:
		return t.A
	case *TArray:
		return t.A
	case *TFun:
		return t.A
	case *TNamed:
		return t.A
	case *TComp:
		return t.A
	case *TEnum:
		return t.A
	case *TBuiltinVaList:
		return t.A
	}
	return nil
}

// SetTypeAttrs returns a copy of t with its attribute list replaced.
func SetTypeAttrs(t Type, a []Attribute) Type {
	switch t := t.(type) {
	case *TVoid:
		return &TVoid{A: a}
	case *TInt:
		return &TInt{Kind: t.Kind, A: a}
	case *TFloat:
		return &TFloat{Kind: t.Kind, A: a}
	case *TPtr:
		return &TPtr{Elem: t.Elem, A: a}
	case *TArray:
		return &TArray{Elem: t.Elem, Len: t.Len, A: a}
	case *TFun:
		return &TFun{Ret: t.Ret, Params: t.Params, VarArg: t.VarArg, A: a}
	case *TNamed:
		return &TNamed{Name: t.Name, Typ: t.Typ, A: a}
	case *TComp:
		return &TComp{Ci: t.Ci, A: a}
	case *TEnum:
		return &TEnum{Ei: t.Ei, A: a}
	case *TBuiltinVaList:
		return &TBuiltinVaList{A: a}
	}
	return t
}

// UnrollType follows TNamed chains to the underlying type. The named
// types' attributes are dropped along the way; use UnrollTypeKeepAttrs
// when they matter.
func UnrollType(t Type) Type {
	for {
		n, ok := t.(*TNamed)
		if !ok {
			return t
		}
		t = n.Typ
	}
}

// UnrollTypeKeepAttrs follows TNamed chains, merging each named type's
// attributes into the result.
func UnrollTypeKeepAttrs(t Type) Type {
	var acc []Attribute
	for {
		n, ok := t.(*TNamed)
		if !ok {
			if len(acc) == 0 {
				return t
			}
			return TypeAddAttributes(acc, t)
		}
		acc = AddAttributes(n.A, acc)
		t = n.Typ
	}
}

// modeKind maps a GCC mode(...) tag to an integer kind, preserving the
// signedness of the original kind.
func modeKind(tag string, unsigned bool) (IKind, bool) {
	pick := func(s, u IKind) IKind {
		if unsigned {
			return u
		}
		return s
	}
	switch tag {
	case "__QI__", "__byte__":
		return pick(ISChar, IUChar), true
	case "__HI__":
		return pick(IShort, IUShort), true
	case "__SI__", "__word__", "__pointer__":
		return pick(IInt, IUInt), true
	case "__DI__":
		return pick(ILongLong, IULongLong), true
	}
	return IInt, false
}

// TypeAddAttributes merges a0 into the attributes of t. As a special
// case, a lone mode(tag) attribute on an integer type rewrites the
// integer kind instead of being recorded.
func TypeAddAttributes(a0 []Attribute, t Type) Type {
	if len(a0) == 0 {
		return t
	}
	if ti, ok := t.(*TInt); ok && len(a0) == 1 && a0[0].Name == "mode" {
		a := a0[0]
		if len(a.Params) == 1 {
			if c, ok := a.Params[0].(*ACons); ok && len(c.Params) == 0 {
				if k, ok := modeKind(c.Name, ti.Kind.IsUnsigned()); ok {
					return &TInt{Kind: k, A: ti.A}
				}
				panic(Bug(NoLoc, "unknown integer mode %s", c.Name))
			}
		}
	}
	return SetTypeAttrs(t, AddAttributes(a0, TypeAttrs(t)))
}

// TypeRemoveAttributes drops the listed attribute names from t.
func TypeRemoveAttributes(names []string, t Type) Type {
	return SetTypeAttrs(t, DropAttributes(names, TypeAttrs(t)))
}

// --- The type of an expression ---

// CharType, IntType, UIntType and friends are freshly allocated on each
// call so that callers may attach attributes without aliasing.

// IntType returns a plain int type.
func IntType() Type { return &TInt{Kind: IInt} }

// UIntType returns an unsigned int type.
func UIntType() Type { return &TInt{Kind: IUInt} }

// CharType returns a plain char type.
func CharType() Type { return &TInt{Kind: IChar} }

// CharPtrType returns char *.
func CharPtrType() Type { return &TPtr{Elem: CharType()} }

// VoidType returns void.
func VoidType() Type { return &TVoid{} }

// VoidPtrType returns void *.
func VoidPtrType() Type { return &TPtr{Elem: VoidType()} }

// TypeOf computes the static type of an expression.
func TypeOf(e Exp) Type {
	switch e := e.(type) {
	case *Const:
		switch c := e.C.(type) {
		case *CInt64:
			return &TInt{Kind: c.Kind}
		case *CChr:
			return IntType()
		case *CStr:
			return CharPtrType()
		case *CReal:
			return &TFloat{Kind: c.Kind}
		}
	case *Lval:
		return TypeOfLval(e.Lv)
	case *SizeOf, *SizeOfE, *AlignOf, *AlignOfE:
		return UIntType()
	case *UnOp:
		return e.T
	case *BinOp:
		return e.T
	case *CastE:
		return e.T
	case *AddrOf:
		return &TPtr{Elem: TypeOfLval(e.Lv)}
	case *StartOf:
		switch t := UnrollType(TypeOfLval(e.Lv)).(type) {
		case *TArray:
			return &TPtr{Elem: t.Elem}
		default:
			panic(Bug(NoLoc, "TypeOf: StartOf on a non-array"))
		}
	}
	panic(Bug(NoLoc, "TypeOf: unexpected expression %T", e))
}

// TypeOfLval computes the type of an lvalue.
func TypeOfLval(lv Lvalue) Type {
	switch h := lv.Host.(type) {
	case *Var:
		return TypeOffset(h.Vi.Typ, lv.Off)
	case *Mem:
		switch t := UnrollType(TypeOf(h.E)).(type) {
		case *TPtr:
			return TypeOffset(t.Elem, lv.Off)
		default:
			panic(Bug(NoLoc, "TypeOfLval: Mem on a non-pointer"))
		}
	}
	panic(Bug(NoLoc, "TypeOfLval: unexpected host"))
}

// TypeOffset applies an offset chain to a base type.
func TypeOffset(base Type, off Offset) Type {
	switch off := off.(type) {
	case NoOffset:
		return base
	case *Index:
		switch t := UnrollType(base).(type) {
		case *TArray:
			return TypeOffset(t.Elem, off.Next)
		default:
			panic(Bug(NoLoc, "TypeOffset: Index on a non-array"))
		}
	case *Field:
		return TypeOffset(off.F.Typ, off.Next)
	}
	panic(Bug(NoLoc, "TypeOffset: unexpected offset"))
}

// --- Type signatures ---

// TSig is a canonical, sharing-free form of a type used for structural
// equivalence. Named types are unrolled; composite and enum references
// reduce to their tag.
type TSig interface {
	implTSig()
}

// TSBase wraps a non-structured base type (void, int, float, va_list).
type TSBase struct {
	T Type
}

// TSPtr is the signature of a pointer type.
type TSPtr struct {
	Elem  TSig
	Attrs []Attribute
}

// TSArray is the signature of an array type. Len is the folded constant
// length; HasLen is false for unspecified or non-constant lengths.
type TSArray struct {
	Elem   TSig
	Len    int64
	HasLen bool
	Attrs  []Attribute
}

// TSComp identifies a composite by its struct/union flag and name.
type TSComp struct {
	IsStruct bool
	Name     string
	Attrs    []Attribute
}

// TSEnum identifies an enumeration by name.
type TSEnum struct {
	Name  string
	Attrs []Attribute
}

// TSFun is the signature of a function type.
type TSFun struct {
	Ret    TSig
	Params []TSig
	VarArg bool
	Attrs  []Attribute
}

func (*TSBase) implTSig()  {}
func (*TSPtr) implTSig()   {}
func (*TSArray) implTSig() {}
func (*TSComp) implTSig()  {}
func (*TSEnum) implTSig()  {}
func (*TSFun) implTSig()   {}

// TypeSig computes the signature of t with attributes passed through
// unchanged.
func TypeSig(t Type) TSig {
	return TypeSigWithAttrs(func(a []Attribute) []Attribute { return a }, t)
}

// TypeSigWithAttrs computes the signature of t, post-processing every
// attribute list with f.
func TypeSigWithAttrs(f func([]Attribute) []Attribute, t Type) TSig {
	switch t := t.(type) {
	case *TVoid, *TInt, *TFloat, *TBuiltinVaList:
		return &TSBase{T: SetTypeAttrs(t, f(TypeAttrs(t)))}
	case *TPtr:
		return &TSPtr{Elem: TypeSigWithAttrs(f, t.Elem), Attrs: f(t.A)}
	case *TArray:
		sig := &TSArray{Elem: TypeSigWithAttrs(f, t.Elem), Attrs: f(t.A)}
		if t.Len != nil {
			if n, ok := IsInteger(t.Len); ok {
				sig.Len = n
				sig.HasLen = true
			}
		}
		return sig
	case *TComp:
		return &TSComp{IsStruct: t.Ci.IsStruct, Name: t.Ci.Name, Attrs: f(AddAttributes(t.Ci.Attrs, t.A))}
	case *TEnum:
		return &TSEnum{Name: t.Ei.Name, Attrs: f(t.A)}
	case *TFun:
		sig := &TSFun{Ret: TypeSigWithAttrs(f, t.Ret), VarArg: t.VarArg, Attrs: f(t.A)}
		for _, p := range t.Params {
			sig.Params = append(sig.Params, TypeSigWithAttrs(f, p.Typ))
		}
		return sig
	case *TNamed:
		return TypeSigWithAttrs(f, t.Typ)
	}
	panic(Bug(NoLoc, "TypeSig: unexpected type %T", t))
}

// TypeSigEqual compares two signatures structurally.
func TypeSigEqual(a, b TSig) bool {
	switch a := a.(type) {
	case *TSBase:
		b, ok := b.(*TSBase)
		return ok && baseTypeEqual(a.T, b.T)
	case *TSPtr:
		b, ok := b.(*TSPtr)
		return ok && attrsEqual(a.Attrs, b.Attrs) && TypeSigEqual(a.Elem, b.Elem)
	case *TSArray:
		b, ok := b.(*TSArray)
		return ok && a.HasLen == b.HasLen && a.Len == b.Len &&
			attrsEqual(a.Attrs, b.Attrs) && TypeSigEqual(a.Elem, b.Elem)
	case *TSComp:
		b, ok := b.(*TSComp)
		return ok && a.IsStruct == b.IsStruct && a.Name == b.Name && attrsEqual(a.Attrs, b.Attrs)
	case *TSEnum:
		b, ok := b.(*TSEnum)
		return ok && a.Name == b.Name && attrsEqual(a.Attrs, b.Attrs)
	case *TSFun:
		b, ok := b.(*TSFun)
		if !ok || a.VarArg != b.VarArg || len(a.Params) != len(b.Params) {
			return false
		}
		if !attrsEqual(a.Attrs, b.Attrs) || !TypeSigEqual(a.Ret, b.Ret) {
			return false
		}
		for i := range a.Params {
			if !TypeSigEqual(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func baseTypeEqual(a, b Type) bool {
	if !attrsEqual(TypeAttrs(a), TypeAttrs(b)) {
		return false
	}
	switch a := a.(type) {
	case *TVoid:
		_, ok := b.(*TVoid)
		return ok
	case *TInt:
		b, ok := b.(*TInt)
		return ok && a.Kind == b.Kind
	case *TFloat:
		b, ok := b.(*TFloat)
		return ok && a.Kind == b.Kind
	case *TBuiltinVaList:
		_, ok := b.(*TBuiltinVaList)
		return ok
	}
	return false
}

func attrsEqual(a, b []Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !AttrEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// TypeEqual reports whether two types are equivalent modulo TNamed
// unrolling and attribute sorting.
func TypeEqual(a, b Type) bool {
	return TypeSigEqual(TypeSig(a), TypeSig(b))
}

// TypeName returns a short human-readable description of a type, for
// diagnostics only. The printer owns the real C spelling.
func TypeName(t Type) string {
	switch t := t.(type) {
	case *TVoid:
		return "void"
	case *TInt:
		return t.Kind.String()
	case *TFloat:
		return t.Kind.String()
	case *TPtr:
		return TypeName(t.Elem) + " *"
	case *TArray:
		return TypeName(t.Elem) + "[]"
	case *TFun:
		return "function"
	case *TNamed:
		return t.Name
	case *TComp:
		if t.Ci.IsStruct {
			return "struct " + t.Ci.Name
		}
		return "union " + t.Ci.Name
	case *TEnum:
		return "enum " + t.Ei.Name
	case *TBuiltinVaList:
		return "__builtin_va_list"
	}
	return fmt.Sprintf("%T", t)
}

package cil

import "testing"

func TestUnrollType(t *testing.T) {
	base := &TInt{Kind: IInt}
	named := &TNamed{Name: "myint", Typ: base, A: []Attribute{attr("const")}}
	nested := &TNamed{Name: "myint2", Typ: named}
	if UnrollType(nested) != Type(base) {
		t.Error("UnrollType must reach the underlying type")
	}
	// The lossy variant drops the typedef's attributes.
	if len(TypeAttrs(UnrollType(nested))) != 0 {
		t.Error("UnrollType must not merge attributes")
	}
	kept := UnrollTypeKeepAttrs(nested)
	if !HasAttribute("const", TypeAttrs(kept)) {
		t.Error("UnrollTypeKeepAttrs must keep the typedef's attributes")
	}
}

func TestTypeAddAttributesMode(t *testing.T) {
	tests := []struct {
		tag  string
		kind IKind
		want IKind
	}{
		{"__QI__", IInt, ISChar},
		{"__byte__", IUInt, IUChar},
		{"__HI__", IInt, IShort},
		{"__SI__", IUInt, IUInt},
		{"__word__", IInt, IInt},
		{"__DI__", IInt, ILongLong},
		{"__DI__", IUInt, IULongLong},
	}
	for _, tt := range tests {
		mode := Attribute{Name: "mode", Params: []AttrParam{&ACons{Name: tt.tag}}}
		got := TypeAddAttributes([]Attribute{mode}, &TInt{Kind: tt.kind})
		ti, ok := got.(*TInt)
		if !ok {
			t.Fatalf("mode(%s) did not give an integer", tt.tag)
		}
		if ti.Kind != tt.want {
			t.Errorf("mode(%s) on %s = %s, want %s", tt.tag, tt.kind, ti.Kind, tt.want)
		}
		if HasAttribute("mode", ti.A) {
			t.Errorf("mode(%s) must be consumed, not recorded", tt.tag)
		}
	}
}

func TestTypeAddAttributesMerge(t *testing.T) {
	got := TypeAddAttributes([]Attribute{attr("const")}, &TPtr{Elem: IntType()})
	if !HasAttribute("const", TypeAttrs(got)) {
		t.Error("attribute not merged")
	}
}

func TestTypeSigEquality(t *testing.T) {
	base := IntType()
	named := &TNamed{Name: "myint", Typ: base}
	tests := []struct {
		name  string
		a, b  Type
		equal bool
	}{
		{"int == int", IntType(), IntType(), true},
		{"int != uint", IntType(), UIntType(), false},
		{"named unrolls", named, base, true},
		{"ptr int == ptr int", &TPtr{Elem: IntType()}, &TPtr{Elem: IntType()}, true},
		{"ptr int != ptr char", &TPtr{Elem: IntType()}, &TPtr{Elem: CharType()}, false},
		{"array 4 == array 4",
			&TArray{Elem: IntType(), Len: Integer(4)},
			&TArray{Elem: IntType(), Len: Integer(4)}, true},
		{"array 4 != array 8",
			&TArray{Elem: IntType(), Len: Integer(4)},
			&TArray{Elem: IntType(), Len: Integer(8)}, false},
		{"attrs matter",
			&TPtr{Elem: IntType(), A: []Attribute{attr("const")}},
			&TPtr{Elem: IntType()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeEqual(tt.a, tt.b); got != tt.equal {
				t.Errorf("TypeEqual = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestTypeSigComp(t *testing.T) {
	ci := MkCompInfo(true, "point", func(self *TComp) []FieldSpec {
		return []FieldSpec{
			{Name: "x", Typ: IntType()},
			{Name: "y", Typ: IntType()},
		}
	}, nil)
	a := &TComp{Ci: ci}
	b := &TComp{Ci: ci}
	if !TypeEqual(a, b) {
		t.Error("two references to one composite must be equal")
	}
	other := MkCompInfo(true, "rect", func(self *TComp) []FieldSpec { return nil }, nil)
	if TypeEqual(a, &TComp{Ci: other}) {
		t.Error("different composites must differ")
	}
}

func TestTypeSigWithAttrs(t *testing.T) {
	strip := func([]Attribute) []Attribute { return nil }
	a := &TPtr{Elem: IntType(), A: []Attribute{attr("const")}}
	b := &TPtr{Elem: IntType()}
	if !TypeSigEqual(TypeSigWithAttrs(strip, a), TypeSigWithAttrs(strip, b)) {
		t.Error("stripping attributes must make the signatures equal")
	}
}

func TestTypeOf(t *testing.T) {
	vi := MakeGlobalVar("g", &TArray{Elem: IntType(), Len: Integer(3)})
	if _, ok := TypeOfLval(VarLval(vi)).(*TArray); !ok {
		t.Error("type of array variable lvalue")
	}
	decay := MkAddrOrStartOf(VarLval(vi))
	if _, ok := decay.(*StartOf); !ok {
		t.Fatalf("array must decay with StartOf, got %T", decay)
	}
	pt, ok := TypeOf(decay).(*TPtr)
	if !ok {
		t.Fatalf("decayed array type %T", TypeOf(decay))
	}
	if _, ok := pt.Elem.(*TInt); !ok {
		t.Error("decay must point at the element type")
	}
	if _, ok := TypeOf(Integer(1)).(*TInt); !ok {
		t.Error("type of an int constant")
	}
}

func TestCompInfoKey(t *testing.T) {
	ci := MkCompInfo(true, "a", func(*TComp) []FieldSpec { return nil }, nil)
	old := ci.Key
	ci.SetName("b")
	if ci.Key == old {
		t.Error("renaming must recompute the key")
	}
	if ci.Key != compKey(true, "b") {
		t.Error("key must hash the struct keyword and name")
	}
}

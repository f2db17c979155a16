package cil

import (
	"strings"
	"testing"
)

// captureWarnings swaps the warning sink for the duration of a test.
func captureWarnings(t *testing.T) *[]string {
	t.Helper()
	var got []string
	old := Warnf
	Warnf = func(format string, args ...any) {
		got = append(got, format)
	}
	t.Cleanup(func() { Warnf = old })
	return &got
}

func TestTruncateInteger64(t *testing.T) {
	tests := []struct {
		name    string
		kind    IKind
		in      int64
		want    int64
		changed bool
	}{
		{"ushort wraps", IUShort, 0x1FFFF, 0xFFFF, true},
		{"ushort fits", IUShort, 0xFFFF, 0xFFFF, false},
		{"schar sign extends", ISChar, 0xFF, -1, true},
		{"uchar logical", IUChar, 0x1FF, 0xFF, true},
		{"int wraps", IInt, 4000000000, -294967296, true},
		{"longlong unchanged", ILongLong, 1 << 40, 1 << 40, false},
		{"negative int fits", IInt, -5, -5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := TruncateInteger64(tt.kind, tt.in)
			if got != tt.want || changed != tt.changed {
				t.Errorf("TruncateInteger64(%s, %#x) = %d, %v; want %d, %v",
					tt.kind, tt.in, got, changed, tt.want, tt.changed)
			}
			// Truncation is idempotent.
			again, changed2 := TruncateInteger64(tt.kind, got)
			if again != got || changed2 {
				t.Errorf("truncation not idempotent for %s", tt.kind)
			}
		})
	}
}

func TestKinteger64Warns(t *testing.T) {
	warns := captureWarnings(t)
	e := Kinteger64(IUShort, 0x1FFFF)
	c := e.(*Const).C.(*CInt64)
	if c.V != 0xFFFF {
		t.Errorf("stored value %#x, want 0xFFFF", c.V)
	}
	if len(*warns) == 0 {
		t.Error("truncation must warn")
	}

	*warns = nil
	Kinteger64(IInt, 42)
	if len(*warns) != 0 {
		t.Error("no warning when the value fits")
	}
}

func TestIsInteger(t *testing.T) {
	if n, ok := IsInteger(&CastE{T: IntType(), E: Integer(7)}); !ok || n != 7 {
		t.Error("IsInteger must look through casts")
	}
	if n, ok := IsInteger(&Const{C: &CChr{C: 'A'}}); !ok || n != 65 {
		t.Error("IsInteger must read character constants")
	}
	if _, ok := IsInteger(VarExp(MakeGlobalVar("x", IntType()))); ok {
		t.Error("a variable is not an integer constant")
	}
	if !IsZero(Zero()) || IsZero(One()) {
		t.Error("IsZero")
	}
}

func TestMakeGlobalVarID(t *testing.T) {
	a := MakeGlobalVar("x", IntType())
	b := MakeGlobalVar("x", IntType())
	if a.ID != b.ID {
		t.Error("global ids hash the name, equal names get equal ids")
	}
	if !a.Glob {
		t.Error("global flag")
	}
}

func TestMakeLocalAndTempVars(t *testing.T) {
	fd := EmptyFunction("f")
	a := MakeLocalVar(fd, "a", IntType(), true)
	b := MakeLocalVar(fd, "b", IntType(), false)
	if a.ID != 0 || b.ID != 1 {
		t.Errorf("local ids: %d, %d", a.ID, b.ID)
	}
	if len(fd.Slocals) != 1 {
		t.Error("insert=false must not append to Slocals")
	}
	tmp := MakeTempVar(fd, "", IntType())
	if tmp.Name != "tmp2" {
		t.Errorf("temp name %q", tmp.Name)
	}
}

func TestSetFormalsSharesSequence(t *testing.T) {
	fd := EmptyFunction("f")
	x := &VarInfo{Name: "x", Typ: IntType()}
	SetFormals(fd, []*VarInfo{x})
	tf := fd.Svar.Typ.(*TFun)
	if !sameSlice(tf.Params, fd.Sformals) {
		t.Fatal("formals and the type's parameters must be one sequence")
	}
	if x.ID != 0 {
		t.Error("formals are numbered from 0")
	}

	y := MakeFormalVar(fd, "$", "y", IntType())
	tf = fd.Svar.Typ.(*TFun)
	if !sameSlice(tf.Params, fd.Sformals) {
		t.Fatal("MakeFormalVar must preserve the shared sequence")
	}
	if len(fd.Sformals) != 2 || fd.Sformals[1] != y {
		t.Error("$ must append")
	}

	z := MakeFormalVar(fd, "^", "z", IntType())
	if fd.Sformals[0] != z {
		t.Error("^ must prepend")
	}
	w := MakeFormalVar(fd, "x", "w", IntType())
	if fd.Sformals[2] != w {
		t.Errorf("insert after x failed: %v", fd.Sformals)
	}
}

func TestSetFunctionType(t *testing.T) {
	fd := EmptyFunction("f")
	SetFormals(fd, []*VarInfo{{Name: "x", Typ: IntType()}})
	nt := &TFun{Ret: IntType(), Params: make([]*VarInfo, 1)}
	SetFunctionType(fd, nt)
	if !sameSlice(nt.Params, fd.Sformals) {
		t.Error("SetFunctionType must install the formals into the new type")
	}
}

func TestMkAddrOf(t *testing.T) {
	vi := MakeGlobalVar("p", &TPtr{Elem: IntType()})
	inner := VarExp(vi)

	// &*e simplifies to e.
	if MkAddrOf(MkMem(inner, NoOffset{})) != inner {
		t.Error("&*e must give back e")
	}

	// &a[0] decays to a.
	arr := MakeGlobalVar("a", &TArray{Elem: IntType(), Len: Integer(4)})
	got := MkAddrOf(Lvalue{Host: &Var{Vi: arr}, Off: &Index{E: Zero(), Next: NoOffset{}}})
	if _, ok := got.(*StartOf); !ok {
		t.Errorf("&a[0] = %T, want StartOf", got)
	}

	// Taking the address demotes register storage.
	reg := MakeGlobalVar("r", IntType())
	reg.Storage = Register
	MkAddrOf(VarLval(reg))
	if reg.Storage != NoStorage {
		t.Error("register storage must be demoted")
	}
}

func TestMkMem(t *testing.T) {
	vi := MakeGlobalVar("x", IntType())
	addr := &AddrOf{Lv: VarLval(vi)}
	lv := MkMem(addr, NoOffset{})
	if h, ok := lv.Host.(*Var); !ok || h.Vi != vi {
		t.Error("*&x must simplify to x")
	}

	p := MakeGlobalVar("p", &TPtr{Elem: IntType()})
	lv = MkMem(VarExp(p), NoOffset{})
	if _, ok := lv.Host.(*Mem); !ok {
		t.Error("plain pointer dereference stays a Mem")
	}
}

func TestAddOffset(t *testing.T) {
	ci := MkCompInfo(true, "s", func(*TComp) []FieldSpec {
		return []FieldSpec{{Name: "f", Typ: IntType()}}
	}, nil)
	f := ci.Fields[0]
	off := AddOffset(&Field{F: f, Next: NoOffset{}}, &Index{E: Zero(), Next: NoOffset{}})
	ix, ok := off.(*Index)
	if !ok {
		t.Fatalf("outer offset %T", off)
	}
	if _, ok := ix.Next.(*Field); !ok {
		t.Error("must append at the innermost NoOffset")
	}
}

func TestMkCompInfoRecursive(t *testing.T) {
	ci := MkCompInfo(true, "node", func(self *TComp) []FieldSpec {
		return []FieldSpec{
			{Name: "val", Typ: IntType()},
			{Name: "next", Typ: &TPtr{Elem: self}},
		}
	}, nil)
	next := ci.Fields[1]
	pt := next.Typ.(*TPtr)
	if pt.Elem.(*TComp).Ci != ci {
		t.Error("the forward reference must be the composite itself")
	}
	if next.Comp != ci {
		t.Error("fields must point back at their composite")
	}
}

func TestMkWhileShape(t *testing.T) {
	body := []*Stmt{MkEmptyStmt()}
	got := MkWhile(One(), body)
	if len(got) != 1 {
		t.Fatalf("mkWhile gives one statement, got %d", len(got))
	}
	loop, ok := got[0].Kind.(*Sloop)
	if !ok {
		t.Fatalf("outer statement %T", got[0].Kind)
	}
	head, ok := loop.Body.Stmts[0].Kind.(*Sif)
	if !ok {
		t.Fatalf("loop head %T", loop.Body.Stmts[0].Kind)
	}
	if len(head.Then.Stmts) != 1 || len(head.Else.Stmts) != 1 {
		t.Fatal("head must have skip and break branches")
	}
	if _, ok := head.Else.Stmts[0].Kind.(*Sbreak); !ok {
		t.Error("the else branch is the break")
	}
}

func TestMkForIncrOps(t *testing.T) {
	fd := EmptyFunction("f")
	i := MakeLocalVar(fd, "i", IntType(), true)
	stmts := MkForIncr(i, Zero(), Integer(10), One(), nil)
	loop := stmts[1].Kind.(*Sloop)
	head := loop.Body.Stmts[0].Kind.(*Sif)
	if head.Cond.(*BinOp).Op != Lt {
		t.Error("integer iteration compares with Lt")
	}

	p := MakeLocalVar(fd, "p", &TPtr{Elem: IntType()}, true)
	stmts = MkForIncr(p, Zero(), Integer(10), One(), nil)
	loop = stmts[1].Kind.(*Sloop)
	head = loop.Body.Stmts[0].Kind.(*Sif)
	if head.Cond.(*BinOp).Op != LtP {
		t.Error("pointer iteration compares with LtP")
	}
}

func TestCompactStmts(t *testing.T) {
	set := func() Instr {
		return &Set{Lv: VarLval(MakeGlobalVar("x", IntType())), E: One()}
	}
	a := MkStmtOneInstr(set())
	b := MkStmtOneInstr(set())
	c := MkStmt(&Sbreak{})
	d := MkStmtOneInstr(set())

	out := CompactStmts([]*Stmt{a, b, c, d})
	if len(out) != 3 {
		t.Fatalf("compacted to %d statements, want 3", len(out))
	}
	if out[0] != a {
		t.Error("the first statement keeps its identity")
	}
	if len(out[0].Kind.(*Sinstr).Instrs) != 2 {
		t.Error("adjacent instructions must merge")
	}

	// A label on the second statement blocks merging.
	l1 := MkStmtOneInstr(set())
	l2 := MkStmtOneInstr(set())
	l2.Labels = []Label{&NameLabel{Name: "L", User: true}}
	out = CompactStmts([]*Stmt{l1, l2})
	if len(out) != 2 {
		t.Error("labeled statements must not be folded away")
	}
}

func TestGetGlobInit(t *testing.T) {
	f := &File{Name: "dir/prog.c"}
	fd := GetGlobInit(f)
	if fd.Svar.Name != "__globinit_prog" {
		t.Errorf("globinit name %q", fd.Svar.Name)
	}
	if GetGlobInit(f) != fd {
		t.Error("second call must return the same function")
	}
	if strings.Contains(fd.Svar.Name, ".") {
		t.Error("name must be a valid symbol")
	}
}

// Constructors for canonical entities, expressions and statements.
package cil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Zero returns the integer constant 0.
func Zero() Exp { return Integer(0) }

// One returns the integer constant 1.
func One() Exp { return Integer(1) }

// MinusOne returns the integer constant -1.
func MinusOne() Exp { return Integer(-1) }

// Integer builds an int constant expression.
func Integer(n int) Exp {
	return &Const{C: &CInt64{V: int64(n), Kind: IInt}}
}

// Kinteger builds an integer constant of the given kind.
func Kinteger(k IKind, n int) Exp {
	return Kinteger64(k, int64(n))
}

// Kinteger64 builds an integer constant of the given kind, truncating v
// to the kind's width. A warning is emitted when truncation changes the
// value.
func Kinteger64(k IKind, v int64) Exp {
	tr, changed := TruncateInteger64(k, v)
	if changed {
		Warnf("truncating integer %d to %d for %s", v, tr, k)
	}
	return &Const{C: &CInt64{V: tr, Kind: k}}
}

// integerKindBits gives the width used for compile-time truncation.
// Long is treated as 64 bits here; layout-accurate sizes come from the
// target data model.
func integerKindBits(k IKind) uint {
	switch k {
	case IChar, ISChar, IUChar:
		return 8
	case IShort, IUShort:
		return 16
	case IInt, IUInt:
		return 32
	}
	return 64
}

// TruncateInteger64 truncates v to the width of kind k, using a logical
// shift for unsigned kinds and an arithmetic shift otherwise. The second
// result reports whether the value changed.
func TruncateInteger64(k IKind, v int64) (int64, bool) {
	bits := integerKindBits(k)
	if bits == 64 {
		return v, false
	}
	var tr int64
	if k.IsUnsigned() {
		tr = int64(uint64(v) << (64 - bits) >> (64 - bits))
	} else {
		tr = v << (64 - bits) >> (64 - bits)
	}
	return tr, tr != v
}

// CharConstToInt promotes a character constant to an int constant.
func CharConstToInt(c byte) *CInt64 {
	return &CInt64{V: int64(int8(c)), Kind: IInt}
}

// IsInteger recovers the 64-bit value of a constant expression, looking
// through casts and character constants.
func IsInteger(e Exp) (int64, bool) {
	switch e := e.(type) {
	case *Const:
		switch c := e.C.(type) {
		case *CInt64:
			return c.V, true
		case *CChr:
			return CharConstToInt(c.C).V, true
		}
	case *CastE:
		return IsInteger(e.E)
	}
	return 0, false
}

// IsZero reports whether e is a literal zero.
func IsZero(e Exp) bool {
	n, ok := IsInteger(e)
	return ok && n == 0
}

// --- Variables ---

// MakeGlobalVar creates a global variable with the given name and type.
// The id is a hash of the name, so the same name always maps to the same
// id.
func MakeGlobalVar(name string, t Type) *VarInfo {
	return &VarInfo{
		Name: name,
		Typ:  t,
		Glob: true,
		ID:   hashName(name),
		Decl: NoLoc,
	}
}

// MakeLocalVar creates a local variable in fd, assigning the next id.
// The variable is appended to Slocals iff insert is set.
func MakeLocalVar(fd *Fundec, name string, t Type, insert bool) *VarInfo {
	fd.Smaxid++
	vi := &VarInfo{
		Name: name,
		Typ:  t,
		ID:   fd.Smaxid,
		Decl: NoLoc,
	}
	if insert {
		fd.Slocals = append(fd.Slocals, vi)
	}
	return vi
}

// MakeTempVar creates a fresh temporary in fd. basename defaults to
// "tmp"; the final name is basename followed by the assigned id.
func MakeTempVar(fd *Fundec, basename string, t Type) *VarInfo {
	if basename == "" {
		basename = "tmp"
	}
	name := fmt.Sprintf("%s%d", basename, fd.Smaxid+1)
	return MakeLocalVar(fd, name, t, true)
}

// MakeFormalVar creates a new formal for fd and inserts it according to
// where: "^" prepends, "$" appends, and any other value names an
// existing formal to insert after.
func MakeFormalVar(fd *Fundec, where string, name string, t Type) *VarInfo {
	vi := &VarInfo{Name: name, Typ: t, Decl: NoLoc}
	var formals []*VarInfo
	switch where {
	case "^":
		formals = append([]*VarInfo{vi}, fd.Sformals...)
	case "$":
		formals = append(append([]*VarInfo{}, fd.Sformals...), vi)
	default:
		found := false
		for _, f := range fd.Sformals {
			formals = append(formals, f)
			if f.Name == where {
				formals = append(formals, vi)
				found = true
			}
		}
		if !found {
			panic(Bug(NoLoc, "MakeFormalVar: no formal named %s in %s", where, fd.Svar.Name))
		}
	}
	SetFormals(fd, formals)
	return vi
}

// SetFormals installs formals as the formal list of fd, numbering them
// from 0 and installing the same slice into the function type so the two
// stay the one sequence.
func SetFormals(fd *Fundec, formals []*VarInfo) {
	for i, f := range formals {
		f.ID = i
	}
	if len(formals)-1 > fd.Smaxid {
		fd.Smaxid = len(formals) - 1
	}
	fd.Sformals = formals
	tf, ok := fd.Svar.Typ.(*TFun)
	if !ok {
		panic(Bug(fd.Svar.Decl, "SetFormals: %s is not a function", fd.Svar.Name))
	}
	tf.Params = formals
}

// SetFunctionType replaces the type of fd's function. The new type must
// be a function type with as many parameters as there are formals; the
// formals slice is installed into it to preserve sharing.
func SetFunctionType(fd *Fundec, t Type) {
	tf, ok := t.(*TFun)
	if !ok {
		panic(Bug(fd.Svar.Decl, "SetFunctionType: not a function type"))
	}
	if len(tf.Params) != len(fd.Sformals) {
		panic(Bug(fd.Svar.Decl, "SetFunctionType: wrong number of parameters"))
	}
	fd.Svar.Typ = t
	tf.Params = fd.Sformals
}

// SetMaxID recomputes Smaxid from the formals and locals of fd.
func SetMaxID(fd *Fundec) {
	max := -1
	for _, vi := range fd.Sformals {
		if vi.ID > max {
			max = vi.ID
		}
	}
	for _, vi := range fd.Slocals {
		if vi.ID > max {
			max = vi.ID
		}
	}
	fd.Smaxid = max
}

// --- Composites ---

// FieldSpec describes one field for MkCompInfo.
type FieldSpec struct {
	Name     string
	Typ      Type
	Bitfield *int
	Attrs    []Attribute
	Loc      Location
}

// MkCompInfo creates a composite descriptor. The field-spec closure
// receives a forward reference to the composite's own type, so recursive
// composites can point back at themselves.
func MkCompInfo(isStruct bool, name string, mk func(*TComp) []FieldSpec, attrs []Attribute) *CompInfo {
	if name == "" {
		panic(Bug(NoLoc, "MkCompInfo: empty name"))
	}
	ci := &CompInfo{
		IsStruct: isStruct,
		Name:     name,
		Key:      compKey(isStruct, name),
		Attrs:    SortAttributes(attrs),
	}
	self := &TComp{Ci: ci}
	for _, fs := range mk(self) {
		ci.Fields = append(ci.Fields, &FieldInfo{
			Comp:     ci,
			Name:     fs.Name,
			Typ:      fs.Typ,
			Bitfield: fs.Bitfield,
			Attrs:    SortAttributes(fs.Attrs),
			Loc:      fs.Loc,
		})
	}
	return ci
}

// GetCompField finds a field of ci by name.
func GetCompField(ci *CompInfo, name string) (*FieldInfo, error) {
	for _, f := range ci.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, Bug(NoLoc, "no field %s in %s", name, ci.Name)
}

// EmptyFunction produces a function with no formals, no locals and an
// empty body, returning void.
func EmptyFunction(name string) *Fundec {
	fd := &Fundec{
		Svar:       MakeGlobalVar(name, &TFun{Ret: VoidType()}),
		Sbody:      MkBlock(nil),
		Smaxid:     -1,
		Smaxstmtid: -1,
	}
	SetFormals(fd, nil)
	return fd
}

// MakeValidSymbolName turns an arbitrary string into a C identifier.
func MakeValidSymbolName(s string) string {
	out := []byte(s)
	for i, c := range out {
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(i > 0 && c >= '0' && c <= '9')
		if !ok {
			out[i] = '_'
		}
	}
	return string(out)
}

// GetGlobInit returns the global-initializer function of f, creating an
// empty one named after the file when absent.
func GetGlobInit(f *File) *Fundec {
	if f.GlobInit == nil {
		base := filepath.Base(f.Name)
		if ext := filepath.Ext(base); ext != "" {
			base = strings.TrimSuffix(base, ext)
		}
		f.GlobInit = EmptyFunction(MakeValidSymbolName("__globinit_" + base))
	}
	return f.GlobInit
}

// --- Lvalues ---

// VarLval makes the lvalue (vi, NoOffset).
func VarLval(vi *VarInfo) Lvalue {
	return Lvalue{Host: &Var{Vi: vi}, Off: NoOffset{}}
}

// VarExp makes the expression reading vi.
func VarExp(vi *VarInfo) Exp {
	return &Lval{Lv: VarLval(vi)}
}

// AddOffset appends toadd at the innermost NoOffset of off.
func AddOffset(toadd, off Offset) Offset {
	switch off := off.(type) {
	case NoOffset:
		return toadd
	case *Field:
		return &Field{F: off.F, Next: AddOffset(toadd, off.Next)}
	case *Index:
		return &Index{E: off.E, Next: AddOffset(toadd, off.Next)}
	}
	panic(Bug(NoLoc, "AddOffset: unexpected offset"))
}

// AddOffsetLval appends toadd to the offset chain of lv.
func AddOffsetLval(toadd Offset, lv Lvalue) Lvalue {
	return Lvalue{Host: lv.Host, Off: AddOffset(toadd, lv.Off)}
}

// MkMem makes the lvalue *(addr) with the given offset, simplifying
// &lv and array decays away when possible.
func MkMem(addr Exp, off Offset) Lvalue {
	switch e := addr.(type) {
	case *AddrOf:
		return AddOffsetLval(off, e.Lv)
	case *StartOf:
		return AddOffsetLval(&Index{E: Zero(), Next: off}, e.Lv)
	}
	return Lvalue{Host: &Mem{E: addr}, Off: off}
}

// MkAddrOf takes the address of lv. *(e) with no offset simplifies to e
// and &a[0] becomes the decay of a. Taking the address of a register
// variable demotes its storage class.
func MkAddrOf(lv Lvalue) Exp {
	if h, ok := lv.Host.(*Var); ok && h.Vi.Storage == Register {
		h.Vi.Storage = NoStorage
	}
	if m, ok := lv.Host.(*Mem); ok {
		if _, none := lv.Off.(NoOffset); none {
			return m.E
		}
	}
	if ix, ok := lv.Off.(*Index); ok {
		if _, none := ix.Next.(NoOffset); none && IsZero(ix.E) {
			return &StartOf{Lv: Lvalue{Host: lv.Host, Off: NoOffset{}}}
		}
	}
	return &AddrOf{Lv: lv}
}

// MkAddrOrStartOf decays arrays with StartOf and takes the address of
// everything else.
func MkAddrOrStartOf(lv Lvalue) Exp {
	if _, ok := UnrollType(TypeOfLval(lv)).(*TArray); ok {
		return &StartOf{Lv: lv}
	}
	return MkAddrOf(lv)
}

// --- Statements ---

// MkStmt wraps a statement kind into a fresh statement with no labels,
// no id and no CFG links.
func MkStmt(k StmtKind) *Stmt {
	return &Stmt{Kind: k, SID: -1}
}

// MkBlock makes a block from a statement list.
func MkBlock(stmts []*Stmt) *Block {
	return &Block{Stmts: stmts}
}

// MkEmptyStmt makes a statement that does nothing.
func MkEmptyStmt() *Stmt {
	return MkStmt(&Sinstr{})
}

// MkStmtOneInstr makes a statement from one instruction.
func MkStmtOneInstr(i Instr) *Stmt {
	return MkStmt(&Sinstr{Instrs: []Instr{i}})
}

// MkWhile builds while(guard) body as the canonical
// Loop [ if(guard) skip else break; body ].
func MkWhile(guard Exp, body []*Stmt) []*Stmt {
	head := MkStmt(&Sif{
		Cond: guard,
		Then: MkBlock([]*Stmt{MkEmptyStmt()}),
		Else: MkBlock([]*Stmt{MkStmt(&Sbreak{})}),
	})
	return []*Stmt{MkStmt(&Sloop{Body: MkBlock(append([]*Stmt{head}, body...))})}
}

// MkFor builds for(start; guard; next) body out of the while form.
func MkFor(start []*Stmt, guard Exp, next []*Stmt, body []*Stmt) []*Stmt {
	return append(append([]*Stmt{}, start...),
		MkWhile(guard, append(append([]*Stmt{}, body...), next...))...)
}

// MkForIncr builds for(iter = first; iter < past; iter += incr) body,
// choosing pointer or arithmetic comparison and addition from the type
// of iter.
func MkForIncr(iter *VarInfo, first, past, incr Exp, body []*Stmt) []*Stmt {
	compop, nextop := Lt, PlusA
	if _, ok := UnrollType(iter.Typ).(*TPtr); ok {
		compop, nextop = LtP, PlusPI
	}
	return MkFor(
		[]*Stmt{MkStmtOneInstr(&Set{Lv: VarLval(iter), E: first})},
		&BinOp{Op: compop, L: VarExp(iter), R: past, T: IntType()},
		[]*Stmt{MkStmtOneInstr(&Set{
			Lv: VarLval(iter),
			E:  &BinOp{Op: nextop, L: VarExp(iter), R: incr, T: iter.Typ},
		})},
		body)
}

// CompactStmts coalesces adjacent instruction statements. The second of
// two adjacent instruction statements is folded into the first unless it
// carries labels; the first statement keeps its identity.
func CompactStmts(ss []*Stmt) []*Stmt {
	var out []*Stmt
	var last *Stmt
	var lastInstrs []Instr
	flush := func() {
		if last != nil {
			last.Kind = &Sinstr{Instrs: lastInstrs}
			out = append(out, last)
			last = nil
			lastInstrs = nil
		}
	}
	for _, s := range ss {
		if si, ok := s.Kind.(*Sinstr); ok {
			if last != nil && len(s.Labels) == 0 {
				lastInstrs = append(lastInstrs, si.Instrs...)
				continue
			}
			flush()
			last = s
			lastInstrs = append([]Instr{}, si.Instrs...)
			continue
		}
		flush()
		out = append(out, s)
	}
	flush()
	return out
}

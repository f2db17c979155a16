// The rewriting visitor. A visitor exposes one callback per node kind,
// each returning an action; the traversal engine rebuilds a parent node
// only when a child actually changed, so an all-DoChildren visitor
// returns every node by identity.
package cil

import "tlog.app/go/tlog"

// DebugVisit enables trace output at global boundaries.
var DebugVisit bool

// Action tells the traversal what to do at a node.
type Action[N any] struct {
	kind actionKind
	node N
	post func(N) N
}

type actionKind int

const (
	aDoChildren actionKind = iota
	aSkipChildren
	aChangeTo
	aChangeDoChildrenPost
)

// SkipChildren keeps the node and does not descend.
func SkipChildren[N any]() Action[N] {
	return Action[N]{kind: aSkipChildren}
}

// DoChildren descends and rebuilds the node iff a child changed.
func DoChildren[N any]() Action[N] {
	return Action[N]{kind: aDoChildren}
}

// ChangeTo replaces the node without descending.
func ChangeTo[N any](n N) Action[N] {
	return Action[N]{kind: aChangeTo, node: n}
}

// ChangeDoChildrenPost replaces the node, descends into the replacement,
// then applies post to the result.
func ChangeDoChildrenPost[N any](n N, post func(N) N) Action[N] {
	return Action[N]{kind: aChangeDoChildrenPost, node: n, post: post}
}

// Visitor is the per-node-kind callback set. Embed NopVisitor to get
// DoChildren everywhere and override what you need. Instruction, global
// and attribute callbacks return lists that splice in place of the
// original node.
type Visitor interface {
	VExpr(e Exp) Action[Exp]
	VLval(lv Lvalue) Action[Lvalue]
	VOffset(o Offset) Action[Offset]
	VInst(i Instr) Action[[]Instr]
	VStmt(s *Stmt) Action[*Stmt]
	VBlock(b *Block) Action[*Block]
	VFunc(f *Fundec) Action[*Fundec]
	VGlob(g Global) Action[[]Global]
	VInit(i Init) Action[Init]
	VType(t Type) Action[Type]
	VAttr(a Attribute) Action[[]Attribute]
	VVarDecl(v *VarInfo) Action[*VarInfo]
	VVarUse(v *VarInfo) Action[*VarInfo]

	// SetLoc is called at every global, statement and instruction
	// boundary with that node's source location.
	SetLoc(l Location)
}

// NopVisitor visits everything and changes nothing.
type NopVisitor struct{}

func (NopVisitor) VExpr(Exp) Action[Exp]              { return DoChildren[Exp]() }
func (NopVisitor) VLval(Lvalue) Action[Lvalue]        { return DoChildren[Lvalue]() }
func (NopVisitor) VOffset(Offset) Action[Offset]      { return DoChildren[Offset]() }
func (NopVisitor) VInst(Instr) Action[[]Instr]        { return DoChildren[[]Instr]() }
func (NopVisitor) VStmt(*Stmt) Action[*Stmt]          { return DoChildren[*Stmt]() }
func (NopVisitor) VBlock(*Block) Action[*Block]       { return DoChildren[*Block]() }
func (NopVisitor) VFunc(*Fundec) Action[*Fundec]      { return DoChildren[*Fundec]() }
func (NopVisitor) VGlob(Global) Action[[]Global]      { return DoChildren[[]Global]() }
func (NopVisitor) VInit(Init) Action[Init]            { return DoChildren[Init]() }
func (NopVisitor) VType(Type) Action[Type]            { return DoChildren[Type]() }
func (NopVisitor) VAttr(Attribute) Action[[]Attribute] { return DoChildren[[]Attribute]() }
func (NopVisitor) VVarDecl(v *VarInfo) Action[*VarInfo] { return DoChildren[*VarInfo]() }
func (NopVisitor) VVarUse(v *VarInfo) Action[*VarInfo]  { return DoChildren[*VarInfo]() }
func (NopVisitor) SetLoc(Location)                    {}

// doVisit runs one action, descending with children.
func doVisit[N any](v Visitor, a Action[N], children func(Visitor, N) N, n N) N {
	switch a.kind {
	case aSkipChildren:
		return n
	case aChangeTo:
		return a.node
	case aChangeDoChildrenPost:
		return a.post(children(v, a.node))
	}
	return children(v, n)
}

// doVisitList runs one action whose replacement is a list.
func doVisitList[N comparable](v Visitor, a Action[[]N], children func(Visitor, N) N, n N) []N {
	switch a.kind {
	case aSkipChildren:
		return []N{n}
	case aChangeTo:
		return a.node
	case aChangeDoChildrenPost:
		out := mapNoCopy(a.node, func(x N) N { return children(v, x) })
		return a.post(out)
	}
	n2 := children(v, n)
	if n2 == n {
		return []N{n}
	}
	return []N{n2}
}

// mapNoCopy maps f over xs, reusing xs when nothing changed.
func mapNoCopy[T comparable](xs []T, f func(T) T) []T {
	for i, x := range xs {
		x2 := f(x)
		if x2 != x {
			out := make([]T, len(xs))
			copy(out, xs[:i])
			out[i] = x2
			for j := i + 1; j < len(xs); j++ {
				out[j] = f(xs[j])
			}
			return out
		}
	}
	return xs
}

// mapNoCopyList maps an element-to-list f over xs, reusing xs when every
// element mapped to itself.
func mapNoCopyList[T comparable](xs []T, f func(T) []T) []T {
	for i, x := range xs {
		ys := f(x)
		if len(ys) == 1 && ys[0] == x {
			continue
		}
		out := make([]T, 0, len(xs)+len(ys))
		out = append(out, xs[:i]...)
		out = append(out, ys...)
		for j := i + 1; j < len(xs); j++ {
			out = append(out, f(xs[j])...)
		}
		return out
	}
	return xs
}

// VisitExpr visits an expression.
func VisitExpr(v Visitor, e Exp) Exp {
	return doVisit(v, v.VExpr(e), childrenExpr, e)
}

func childrenExpr(v Visitor, e Exp) Exp {
	switch e := e.(type) {
	case *Const:
		return e
	case *Lval:
		lv := VisitLval(v, e.Lv)
		if lv != e.Lv {
			return &Lval{Lv: lv}
		}
	case *SizeOf:
		t := VisitType(v, e.T)
		if t != e.T {
			return &SizeOf{T: t}
		}
	case *SizeOfE:
		e1 := VisitExpr(v, e.E)
		if e1 != e.E {
			return &SizeOfE{E: e1}
		}
	case *AlignOf:
		t := VisitType(v, e.T)
		if t != e.T {
			return &AlignOf{T: t}
		}
	case *AlignOfE:
		e1 := VisitExpr(v, e.E)
		if e1 != e.E {
			return &AlignOfE{E: e1}
		}
	case *UnOp:
		e1 := VisitExpr(v, e.E)
		t := VisitType(v, e.T)
		if e1 != e.E || t != e.T {
			return &UnOp{Op: e.Op, E: e1, T: t}
		}
	case *BinOp:
		l := VisitExpr(v, e.L)
		r := VisitExpr(v, e.R)
		t := VisitType(v, e.T)
		if l != e.L || r != e.R || t != e.T {
			return &BinOp{Op: e.Op, L: l, R: r, T: t}
		}
	case *CastE:
		t := VisitType(v, e.T)
		e1 := VisitExpr(v, e.E)
		if t != e.T || e1 != e.E {
			return &CastE{T: t, E: e1}
		}
	case *AddrOf:
		lv := VisitLval(v, e.Lv)
		if lv != e.Lv {
			return &AddrOf{Lv: lv}
		}
	case *StartOf:
		lv := VisitLval(v, e.Lv)
		if lv != e.Lv {
			return &StartOf{Lv: lv}
		}
	}
	return e
}

// VisitLval visits an lvalue.
func VisitLval(v Visitor, lv Lvalue) Lvalue {
	return doVisit(v, v.VLval(lv), childrenLval, lv)
}

func childrenLval(v Visitor, lv Lvalue) Lvalue {
	switch h := lv.Host.(type) {
	case *Var:
		vi := doVisit(v, v.VVarUse(h.Vi), func(Visitor, *VarInfo) *VarInfo { return h.Vi }, h.Vi)
		off := VisitOffset(v, lv.Off)
		if vi != h.Vi || off != lv.Off {
			return Lvalue{Host: &Var{Vi: vi}, Off: off}
		}
	case *Mem:
		e := VisitExpr(v, h.E)
		off := VisitOffset(v, lv.Off)
		if e != h.E || off != lv.Off {
			return Lvalue{Host: &Mem{E: e}, Off: off}
		}
	}
	return lv
}

// VisitOffset visits an offset chain.
func VisitOffset(v Visitor, o Offset) Offset {
	return doVisit(v, v.VOffset(o), childrenOffset, o)
}

func childrenOffset(v Visitor, o Offset) Offset {
	switch o := o.(type) {
	case *Field:
		next := VisitOffset(v, o.Next)
		if next != o.Next {
			return &Field{F: o.F, Next: next}
		}
	case *Index:
		e := VisitExpr(v, o.E)
		next := VisitOffset(v, o.Next)
		if e != o.E || next != o.Next {
			return &Index{E: e, Next: next}
		}
	}
	return o
}

// VisitInstr visits one instruction; the result splices in place of it.
func VisitInstr(v Visitor, i Instr) []Instr {
	v.SetLoc(i.InstrLoc())
	return doVisitList(v, v.VInst(i), childrenInstr, i)
}

func childrenInstr(v Visitor, i Instr) Instr {
	switch i := i.(type) {
	case *Set:
		lv := VisitLval(v, i.Lv)
		e := VisitExpr(v, i.E)
		if lv != i.Lv || e != i.E {
			return &Set{Lv: lv, E: e, Loc: i.Loc}
		}
	case *Call:
		dest := i.Dest
		if dest != nil {
			lv := VisitLval(v, *dest)
			if lv != *dest {
				dest = &lv
			}
		}
		fn := VisitExpr(v, i.Fn)
		args := mapNoCopy(i.Args, func(a Exp) Exp { return VisitExpr(v, a) })
		if dest != i.Dest || fn != i.Fn || !sameSlice(args, i.Args) {
			return &Call{Dest: dest, Fn: fn, Args: args, Loc: i.Loc}
		}
	case *Asm:
		attrs := VisitAttrs(v, i.Attrs)
		outs := mapNoCopy(i.Outputs, func(o AsmOutput) AsmOutput {
			lv := VisitLval(v, o.Lv)
			if lv != o.Lv {
				return AsmOutput{Constraint: o.Constraint, Lv: lv}
			}
			return o
		})
		ins := mapNoCopy(i.Inputs, func(in AsmInput) AsmInput {
			e := VisitExpr(v, in.E)
			if e != in.E {
				return AsmInput{Constraint: in.Constraint, E: e}
			}
			return in
		})
		if attrsChanged(attrs, i.Attrs) || !sameSlice(outs, i.Outputs) || !sameSlice(ins, i.Inputs) {
			return &Asm{Attrs: attrs, Templates: i.Templates, Outputs: outs, Inputs: ins, Clobbers: i.Clobbers, Loc: i.Loc}
		}
	}
	return i
}

// sameSlice reports whether two slices are the same slice, by backing
// identity. mapNoCopy returns its input unchanged exactly in that case.
func sameSlice[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func attrsChanged(a, b []Attribute) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if !AttrEqual(a[i], b[i]) {
			return true
		}
	}
	return false
}

// VisitStmt visits a statement. Statement identity is preserved: the
// kind and labels are updated in place so Goto references stay valid.
func VisitStmt(v Visitor, s *Stmt) *Stmt {
	return doVisit(v, v.VStmt(s), childrenStmt, s)
}

func childrenStmt(v Visitor, s *Stmt) *Stmt {
	kind := childrenStmtKind(v, s)
	if kind != s.Kind {
		s.Kind = kind
	}
	labels := mapNoCopy(s.Labels, func(l Label) Label {
		if c, ok := l.(*CaseLabel); ok {
			e := VisitExpr(v, c.E)
			if e != c.E {
				return &CaseLabel{E: e, Loc: c.Loc}
			}
		}
		return l
	})
	if !sameSlice(labels, s.Labels) {
		s.Labels = labels
	}
	return s
}

func childrenStmtKind(v Visitor, s *Stmt) StmtKind {
	switch k := s.Kind.(type) {
	case *Sinstr:
		instrs := mapNoCopyList(k.Instrs, func(i Instr) []Instr { return VisitInstr(v, i) })
		if !sameSlice(instrs, k.Instrs) {
			return &Sinstr{Instrs: instrs}
		}
	case *Sreturn:
		v.SetLoc(k.Loc)
		if k.E != nil {
			e := VisitExpr(v, k.E)
			if e != k.E {
				return &Sreturn{E: e, Loc: k.Loc}
			}
		}
	case *Sgoto:
		v.SetLoc(k.Loc)
	case *Sbreak:
		v.SetLoc(k.Loc)
	case *Scontinue:
		v.SetLoc(k.Loc)
	case *Sif:
		v.SetLoc(k.Loc)
		cond := VisitExpr(v, k.Cond)
		th := VisitBlock(v, k.Then)
		el := VisitBlock(v, k.Else)
		if cond != k.Cond || th != k.Then || el != k.Else {
			return &Sif{Cond: cond, Then: th, Else: el, Loc: k.Loc}
		}
	case *Sswitch:
		v.SetLoc(k.Loc)
		cond := VisitExpr(v, k.Cond)
		body := VisitBlock(v, k.Body)
		if cond != k.Cond || body != k.Body {
			return &Sswitch{Cond: cond, Body: body, Cases: k.Cases, Loc: k.Loc}
		}
	case *Sloop:
		v.SetLoc(k.Loc)
		body := VisitBlock(v, k.Body)
		if body != k.Body {
			return &Sloop{Body: body, Loc: k.Loc}
		}
	case *Sblock:
		b := VisitBlock(v, k.B)
		if b != k.B {
			return &Sblock{B: b}
		}
	}
	return s.Kind
}

// VisitBlock visits a block.
func VisitBlock(v Visitor, b *Block) *Block {
	return doVisit(v, v.VBlock(b), childrenBlock, b)
}

func childrenBlock(v Visitor, b *Block) *Block {
	stmts := mapNoCopy(b.Stmts, func(s *Stmt) *Stmt { return VisitStmt(v, s) })
	if !sameSlice(stmts, b.Stmts) {
		return &Block{Attrs: b.Attrs, Stmts: stmts}
	}
	return b
}

// VisitType visits a type. Typedef bodies and composite fields are not
// descended here; they are visited at their defining globals.
func VisitType(v Visitor, t Type) Type {
	return doVisit(v, v.VType(t), childrenType, t)
}

func childrenType(v Visitor, t Type) Type {
	visAttrs := func(a []Attribute) ([]Attribute, bool) {
		a2 := VisitAttrs(v, a)
		return a2, attrsChanged(a2, a)
	}
	switch t := t.(type) {
	case *TVoid:
		if a, ch := visAttrs(t.A); ch {
			return &TVoid{A: a}
		}
	case *TInt:
		if a, ch := visAttrs(t.A); ch {
			return &TInt{Kind: t.Kind, A: a}
		}
	case *TFloat:
		if a, ch := visAttrs(t.A); ch {
			return &TFloat{Kind: t.Kind, A: a}
		}
	case *TBuiltinVaList:
		if a, ch := visAttrs(t.A); ch {
			return &TBuiltinVaList{A: a}
		}
	case *TPtr:
		elem := VisitType(v, t.Elem)
		a, ch := visAttrs(t.A)
		if elem != t.Elem || ch {
			return &TPtr{Elem: elem, A: a}
		}
	case *TArray:
		elem := VisitType(v, t.Elem)
		ln := t.Len
		if ln != nil {
			ln = VisitExpr(v, ln)
		}
		a, ch := visAttrs(t.A)
		if elem != t.Elem || ln != t.Len || ch {
			return &TArray{Elem: elem, Len: ln, A: a}
		}
	case *TFun:
		ret := VisitType(v, t.Ret)
		for _, p := range t.Params {
			pt := VisitType(v, p.Typ)
			if pt != p.Typ {
				p.Typ = pt
			}
		}
		a, ch := visAttrs(t.A)
		if ret != t.Ret || ch {
			return &TFun{Ret: ret, Params: t.Params, VarArg: t.VarArg, A: a}
		}
	case *TNamed:
		if a, ch := visAttrs(t.A); ch {
			return &TNamed{Name: t.Name, Typ: t.Typ, A: a}
		}
	case *TComp:
		if a, ch := visAttrs(t.A); ch {
			return &TComp{Ci: t.Ci, A: a}
		}
	case *TEnum:
		if a, ch := visAttrs(t.A); ch {
			return &TEnum{Ei: t.Ei, A: a}
		}
	}
	return t
}

// VisitInit visits an initializer.
func VisitInit(v Visitor, ini Init) Init {
	return doVisit(v, v.VInit(ini), childrenInit, ini)
}

func childrenInit(v Visitor, ini Init) Init {
	switch ini := ini.(type) {
	case *SingleInit:
		e := VisitExpr(v, ini.E)
		if e != ini.E {
			return &SingleInit{E: e}
		}
	case *CompoundInit:
		t := VisitType(v, ini.T)
		items := mapNoCopy(ini.Inits, func(it InitItem) InitItem {
			off := VisitOffset(v, it.Off)
			in := VisitInit(v, it.Init)
			if off != it.Off || in != it.Init {
				return InitItem{Off: off, Init: in}
			}
			return it
		})
		changed := t != ini.T || !sameSlice(items, ini.Inits)
		if changed {
			return &CompoundInit{T: t, Inits: items}
		}
	}
	return ini
}

// VisitAttrs visits an attribute list. Each attribute may expand into a
// list; when anything changed the combined list is re-sorted to keep the
// sorted-list invariant.
func VisitAttrs(v Visitor, al []Attribute) []Attribute {
	out := make([]Attribute, 0, len(al))
	changed := false
	for _, a := range al {
		expanded := doVisitAttr(v, a)
		if len(expanded) != 1 || !AttrEqual(expanded[0], a) {
			changed = true
		}
		out = append(out, expanded...)
	}
	if !changed {
		return al
	}
	return SortAttributes(out)
}

func doVisitAttr(v Visitor, a Attribute) []Attribute {
	act := v.VAttr(a)
	switch act.kind {
	case aSkipChildren:
		return []Attribute{a}
	case aChangeTo:
		return act.node
	case aChangeDoChildrenPost:
		out := make([]Attribute, len(act.node))
		for i, x := range act.node {
			out[i] = childrenAttr(v, x)
		}
		return act.post(out)
	}
	return []Attribute{childrenAttr(v, a)}
}

func childrenAttr(v Visitor, a Attribute) Attribute {
	params := mapNoCopy(a.Params, func(p AttrParam) AttrParam { return visitAttrParam(v, p) })
	if !sameSlice(params, a.Params) {
		return Attribute{Name: a.Name, Params: params}
	}
	return a
}

func visitAttrParam(v Visitor, p AttrParam) AttrParam {
	switch p := p.(type) {
	case *ACons:
		params := mapNoCopy(p.Params, func(q AttrParam) AttrParam { return visitAttrParam(v, q) })
		if !sameSlice(params, p.Params) {
			return &ACons{Name: p.Name, Params: params}
		}
	case *ASizeOf:
		t := VisitType(v, p.T)
		if t != p.T {
			return &ASizeOf{T: t}
		}
	case *ASizeOfE:
		q := visitAttrParam(v, p.P)
		if q != p.P {
			return &ASizeOfE{P: q}
		}
	case *AUnOp:
		q := visitAttrParam(v, p.P)
		if q != p.P {
			return &AUnOp{Op: p.Op, P: q}
		}
	case *ABinOp:
		l := visitAttrParam(v, p.L)
		r := visitAttrParam(v, p.R)
		if l != p.L || r != p.R {
			return &ABinOp{Op: p.Op, L: l, R: r}
		}
	}
	return p
}

// VisitVarDecl visits the declaration of a variable, updating its type
// and attributes in place.
func VisitVarDecl(v Visitor, vi *VarInfo) *VarInfo {
	return doVisit(v, v.VVarDecl(vi), childrenVarDecl, vi)
}

func childrenVarDecl(v Visitor, vi *VarInfo) *VarInfo {
	t := VisitType(v, vi.Typ)
	if t != vi.Typ {
		vi.Typ = t
	}
	a := VisitAttrs(v, vi.Attrs)
	if attrsChanged(a, vi.Attrs) {
		vi.Attrs = a
	}
	return vi
}

// VisitFunction visits a function definition, re-installing formals via
// SetFormals if they changed so the shared-sequence invariant holds.
func VisitFunction(v Visitor, fd *Fundec) *Fundec {
	return doVisit(v, v.VFunc(fd), childrenFunction, fd)
}

func childrenFunction(v Visitor, fd *Fundec) *Fundec {
	fd.Svar = VisitVarDecl(v, fd.Svar)
	formals := mapNoCopy(fd.Sformals, func(vi *VarInfo) *VarInfo { return VisitVarDecl(v, vi) })
	if !sameSlice(formals, fd.Sformals) {
		SetFormals(fd, formals)
	}
	fd.Slocals = mapNoCopy(fd.Slocals, func(vi *VarInfo) *VarInfo { return VisitVarDecl(v, vi) })
	fd.Sbody = VisitBlock(v, fd.Sbody)
	return fd
}

// VisitGlobal visits one global; the result splices in place of it.
func VisitGlobal(v Visitor, g Global) []Global {
	v.SetLoc(GlobalLoc(g))
	if DebugVisit {
		tlog.Printw("visit global", "global", tlog.FormatNext("%T"), g)
	}
	return doVisitList(v, v.VGlob(g), childrenGlobal, g)
}

func childrenGlobal(v Visitor, g Global) Global {
	switch g := g.(type) {
	case *GType:
		t := VisitType(v, g.Typ)
		if t != g.Typ {
			return &GType{Name: g.Name, Typ: t, Loc: g.Loc}
		}
	case *GCompTag:
		for _, f := range g.Ci.Fields {
			t := VisitType(v, f.Typ)
			if t != f.Typ {
				f.Typ = t
			}
			a := VisitAttrs(v, f.Attrs)
			if attrsChanged(a, f.Attrs) {
				f.Attrs = a
			}
		}
		a := VisitAttrs(v, g.Ci.Attrs)
		if attrsChanged(a, g.Ci.Attrs) {
			g.Ci.Attrs = a
		}
	case *GEnumTag:
		items := mapNoCopy(g.Ei.Items, func(it EnumItem) EnumItem {
			e := VisitExpr(v, it.Value)
			if e != it.Value {
				return EnumItem{Name: it.Name, Value: e, Loc: it.Loc}
			}
			return it
		})
		if !sameSlice(items, g.Ei.Items) {
			g.Ei.Items = items
		}
		a := VisitAttrs(v, g.Ei.Attrs)
		if attrsChanged(a, g.Ei.Attrs) {
			g.Ei.Attrs = a
		}
	case *GDecl:
		vi := VisitVarDecl(v, g.Vi)
		if vi != g.Vi {
			return &GDecl{Vi: vi, Loc: g.Loc}
		}
	case *GVar:
		vi := VisitVarDecl(v, g.Vi)
		ini := g.Init
		if ini != nil {
			ini = VisitInit(v, ini)
		}
		if vi != g.Vi || ini != g.Init {
			return &GVar{Vi: vi, Init: ini, Loc: g.Loc}
		}
	case *GFun:
		fd := VisitFunction(v, g.Fd)
		if fd != g.Fd {
			return &GFun{Fd: fd, Loc: g.Loc}
		}
	case *GPragma:
		al := VisitAttrs(v, []Attribute{g.A})
		if len(al) == 1 && !AttrEqual(al[0], g.A) {
			return &GPragma{A: al[0], Loc: g.Loc}
		}
	}
	return g
}

// VisitFile visits every global of f, then the global initializer.
func VisitFile(v Visitor, f *File) {
	var out []Global
	changed := false
	for _, g := range f.Globals {
		gs := VisitGlobal(v, g)
		if len(gs) != 1 || gs[0] != g {
			changed = true
		}
		out = append(out, gs...)
	}
	if changed {
		f.Globals = out
	}
	if f.GlobInit != nil {
		f.GlobInit = VisitFunction(v, f.GlobInit)
	}
}

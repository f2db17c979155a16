// Package clone produces independently mutable copies of functions, and
// re-freshens variable names with the alpha tables. Copying is the only
// supported way to duplicate a function: locals, formals and statements
// are all fresh objects, and goto and switch references are patched to
// point inside the copy.
package clone

import (
	"fmt"

	"github.com/nlucid/cil/pkg/alpha"
	"github.com/nlucid/cil/pkg/cil"
)

// copier rewrites variable uses through the clone map and duplicates
// every statement, recording each original's copy by identity so the
// patch pass can find the copy of any goto target. The source function
// is left untouched.
type copier struct {
	cil.NopVisitor
	vars    map[string]*cil.VarInfo
	stmts   map[*cil.Stmt]*cil.Stmt
	patches []*cil.Stmt
}

func (c *copier) copyVar(vi *cil.VarInfo) *cil.VarInfo {
	nv := *vi
	c.vars[vi.Name] = &nv
	return &nv
}

func (c *copier) VVarUse(vi *cil.VarInfo) cil.Action[*cil.VarInfo] {
	if nv, ok := c.vars[vi.Name]; ok && !vi.Glob {
		return cil.ChangeTo(nv)
	}
	return cil.SkipChildren[*cil.VarInfo]()
}

func (c *copier) VStmt(s *cil.Stmt) cil.Action[*cil.Stmt] {
	ns := &cil.Stmt{Labels: s.Labels, Kind: s.Kind, SID: s.SID}
	c.stmts[s] = ns
	c.patches = append(c.patches, ns)
	return cil.ChangeDoChildrenPost(ns, func(x *cil.Stmt) *cil.Stmt { return x })
}

// patch rewrites goto targets and switch case references to their
// copies, by the identity of the original statements.
func (c *copier) patch() {
	for _, s := range c.patches {
		switch k := s.Kind.(type) {
		case *cil.Sgoto:
			ns, ok := c.stmts[k.Target]
			if !ok {
				cil.Warnf("copied goto targets a statement outside the function")
				continue
			}
			s.Kind = &cil.Sgoto{Target: ns, Loc: k.Loc}
		case *cil.Sswitch:
			cases := make([]*cil.Stmt, 0, len(k.Cases))
			for _, cs := range k.Cases {
				ns, ok := c.stmts[cs]
				if !ok {
					cil.Warnf("copied switch case lies outside the function")
					continue
				}
				cases = append(cases, ns)
			}
			s.Kind = &cil.Sswitch{Cond: k.Cond, Body: k.Body, Cases: cases, Loc: k.Loc}
		}
	}
}

// CopyFunction deep-clones fd under a new name. Unnamed formals are
// given names arg0, arg1, ... in the copy.
func CopyFunction(fd *cil.Fundec, newName string) *cil.Fundec {
	c := &copier{
		vars:  make(map[string]*cil.VarInfo),
		stmts: make(map[*cil.Stmt]*cil.Stmt),
	}

	svar := cil.MakeGlobalVar(newName, nil)
	svar.Attrs = fd.Svar.Attrs
	svar.Storage = fd.Svar.Storage
	svar.Inline = fd.Svar.Inline
	svar.Decl = fd.Svar.Decl
	tf, ok := fd.Svar.Typ.(*cil.TFun)
	if !ok {
		panic(cil.Bug(fd.Svar.Decl, "CopyFunction: %s is not a function", fd.Svar.Name))
	}
	svar.Typ = &cil.TFun{Ret: tf.Ret, VarArg: tf.VarArg, A: tf.A}

	nfd := &cil.Fundec{
		Svar:       svar,
		Smaxid:     fd.Smaxid,
		Inline:     fd.Inline,
		Smaxstmtid: -1,
	}

	formals := make([]*cil.VarInfo, len(fd.Sformals))
	for i, f := range fd.Sformals {
		nf := c.copyVar(f)
		if nf.Name == "" {
			nf.Name = fmt.Sprintf("arg%d", i)
		}
		formals[i] = nf
	}
	cil.SetFormals(nfd, formals)

	nfd.Slocals = make([]*cil.VarInfo, len(fd.Slocals))
	for i, l := range fd.Slocals {
		nfd.Slocals[i] = c.copyVar(l)
	}

	nfd.Sbody = cil.VisitBlock(c, fd.Sbody)
	c.patch()
	return nfd
}

// renamer gives every local and formal a fresh name against the table.
type renamer struct {
	cil.NopVisitor
	table alpha.Table
}

func (r *renamer) VFunc(fd *cil.Fundec) cil.Action[*cil.Fundec] {
	for _, vi := range fd.Sformals {
		vi.Name = alpha.NewName(r.table, vi.Name)
	}
	for _, vi := range fd.Slocals {
		vi.Name = alpha.NewName(r.table, vi.Name)
	}
	return cil.SkipChildren[*cil.Fundec]()
}

// UniqueVarNames renames locals and formals across f so no name is used
// twice, seeding the table with every global name first.
func UniqueVarNames(f *cil.File) {
	table := alpha.NewTable()
	for _, g := range f.Globals {
		switch g := g.(type) {
		case *cil.GDecl:
			alpha.Register(table, g.Vi.Name)
		case *cil.GVar:
			alpha.Register(table, g.Vi.Name)
		case *cil.GFun:
			alpha.Register(table, g.Fd.Svar.Name)
		}
	}
	cil.VisitFile(&renamer{table: table}, f)
}

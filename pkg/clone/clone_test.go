package clone

import (
	"testing"

	"github.com/nlucid/cil/pkg/cil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// incrFunction builds
//
//	int f(int x) { int tmp; L: tmp = x + 1; goto L; return tmp; }
//
// so the clone has formals, locals, a goto and variable uses to remap.
func incrFunction(t *testing.T) (*cil.Fundec, *cil.VarInfo, *cil.VarInfo, *cil.Stmt) {
	t.Helper()
	fd := cil.EmptyFunction("f")
	x := cil.MakeFormalVar(fd, "$", "x", cil.IntType())
	cil.SetFunctionType(fd, &cil.TFun{Ret: cil.IntType(), Params: fd.Sformals})
	tmp := cil.MakeLocalVar(fd, "tmp", cil.IntType(), true)

	target := cil.MkStmtOneInstr(&cil.Set{
		Lv: cil.VarLval(tmp),
		E:  &cil.BinOp{Op: cil.PlusA, L: cil.VarExp(x), R: cil.One(), T: cil.IntType()},
	})
	target.Labels = []cil.Label{&cil.NameLabel{Name: "L", User: true}}
	g := cil.MkStmt(&cil.Sgoto{Target: target})
	ret := cil.MkStmt(&cil.Sreturn{E: cil.VarExp(tmp)})
	fd.Sbody = cil.MkBlock([]*cil.Stmt{target, g, ret})
	return fd, x, tmp, target
}

func TestCopyFunctionName(t *testing.T) {
	fd, _, _, _ := incrFunction(t)
	cp := CopyFunction(fd, "g")
	assert.Equal(t, "g", cp.Svar.Name)
	assert.NotSame(t, fd.Svar, cp.Svar)
}

func TestCopyFunctionFreshVars(t *testing.T) {
	fd, x, tmp, _ := incrFunction(t)
	cp := CopyFunction(fd, "g")

	require.Len(t, cp.Sformals, 1)
	require.Len(t, cp.Slocals, 1)
	assert.NotSame(t, x, cp.Sformals[0])
	assert.NotSame(t, tmp, cp.Slocals[0])
	assert.Equal(t, "x", cp.Sformals[0].Name)

	// The formals sequence is shared with the clone's type.
	tf := cp.Svar.Typ.(*cil.TFun)
	require.Len(t, tf.Params, 1)
	assert.Same(t, cp.Sformals[0], tf.Params[0])

	// Uses inside the body reference the clone's variables.
	set := cp.Sbody.Stmts[0].Kind.(*cil.Sinstr).Instrs[0].(*cil.Set)
	assert.Same(t, cp.Slocals[0], set.Lv.Host.(*cil.Var).Vi)
	use := set.E.(*cil.BinOp).L.(*cil.Lval).Lv.Host.(*cil.Var).Vi
	assert.Same(t, cp.Sformals[0], use)
}

func TestCopyFunctionPatchesGotos(t *testing.T) {
	fd, _, _, target := incrFunction(t)
	cp := CopyFunction(fd, "g")

	require.Len(t, cp.Sbody.Stmts, 3)
	newTarget := cp.Sbody.Stmts[0]
	assert.NotSame(t, target, newTarget)

	g := cp.Sbody.Stmts[1].Kind.(*cil.Sgoto)
	assert.Same(t, newTarget, g.Target, "goto must point inside the clone")

	// The original is untouched.
	og := fd.Sbody.Stmts[1].Kind.(*cil.Sgoto)
	assert.Same(t, target, og.Target)
}

func TestCopyFunctionLeavesOriginalIDs(t *testing.T) {
	fd, _, _, _ := incrFunction(t)
	CopyFunction(fd, "g")
	for i, s := range fd.Sbody.Stmts {
		assert.Equal(t, -1, s.SID, "statement %d of the source must keep its id", i)
	}
	assert.Equal(t, -1, fd.Smaxstmtid)
}

func TestCopyFunctionNamesUnnamedFormals(t *testing.T) {
	fd := cil.EmptyFunction("f")
	cil.SetFormals(fd, []*cil.VarInfo{
		{Name: "", Typ: cil.IntType()},
		{Name: "", Typ: cil.IntType()},
	})
	cp := CopyFunction(fd, "g")
	assert.Equal(t, "arg0", cp.Sformals[0].Name)
	assert.Equal(t, "arg1", cp.Sformals[1].Name)
}

func TestCopyFunctionGlobalsShared(t *testing.T) {
	g := cil.MakeGlobalVar("counter", cil.IntType())
	fd := cil.EmptyFunction("f")
	fd.Sbody = cil.MkBlock([]*cil.Stmt{
		cil.MkStmtOneInstr(&cil.Set{Lv: cil.VarLval(g), E: cil.One()}),
	})
	cp := CopyFunction(fd, "h")
	set := cp.Sbody.Stmts[0].Kind.(*cil.Sinstr).Instrs[0].(*cil.Set)
	assert.Same(t, g, set.Lv.Host.(*cil.Var).Vi, "globals are shared, not cloned")
}

func TestUniqueVarNames(t *testing.T) {
	f1 := cil.EmptyFunction("f1")
	a1 := cil.MakeLocalVar(f1, "a", cil.IntType(), true)
	f2 := cil.EmptyFunction("f2")
	a2 := cil.MakeLocalVar(f2, "a", cil.IntType(), true)

	file := &cil.File{
		Name: "t.c",
		Globals: []cil.Global{
			&cil.GFun{Fd: f1},
			&cil.GFun{Fd: f2},
		},
	}
	UniqueVarNames(file)
	assert.NotEqual(t, a1.Name, a2.Name, "locals across functions must not collide")
}

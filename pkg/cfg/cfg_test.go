package cfg

import (
	"testing"

	"github.com/nlucid/cil/pkg/cil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setInstr() cil.Instr {
	return &cil.Set{Lv: cil.VarLval(cil.MakeGlobalVar("x", cil.IntType())), E: cil.One()}
}

func TestComputeAssignsUniqueIDs(t *testing.T) {
	fd := cil.EmptyFunction("f")
	a := cil.MkStmtOneInstr(setInstr())
	b := cil.MkStmtOneInstr(setInstr())
	r := cil.MkStmt(&cil.Sreturn{})
	fd.Sbody = cil.MkBlock([]*cil.Stmt{a, b, r})

	stmts, err := Compute(fd)
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	seen := map[int]bool{}
	for _, s := range stmts {
		assert.GreaterOrEqual(t, s.SID, 0)
		assert.Less(t, s.SID, fd.Smaxstmtid)
		assert.False(t, seen[s.SID], "duplicate id %d", s.SID)
		seen[s.SID] = true
	}
}

func TestComputeLinksFallthrough(t *testing.T) {
	fd := cil.EmptyFunction("f")
	a := cil.MkStmtOneInstr(setInstr())
	b := cil.MkStmtOneInstr(setInstr())
	r := cil.MkStmt(&cil.Sreturn{})
	fd.Sbody = cil.MkBlock([]*cil.Stmt{a, b, r})

	_, err := Compute(fd)
	require.NoError(t, err)

	require.Len(t, a.Succs, 1)
	assert.Same(t, b, a.Succs[0])
	require.Len(t, b.Preds, 1)
	assert.Same(t, a, b.Preds[0])
	assert.Empty(t, r.Succs, "return has no successor")
}

func TestComputeLinksIf(t *testing.T) {
	fd := cil.EmptyFunction("f")
	thenStmt := cil.MkStmtOneInstr(setInstr())
	after := cil.MkStmt(&cil.Sreturn{})
	iff := cil.MkStmt(&cil.Sif{
		Cond: cil.One(),
		Then: cil.MkBlock([]*cil.Stmt{thenStmt}),
		Else: cil.MkBlock(nil),
	})
	fd.Sbody = cil.MkBlock([]*cil.Stmt{iff, after})

	_, err := Compute(fd)
	require.NoError(t, err)

	assert.Contains(t, iff.Succs, thenStmt, "then branch head")
	assert.Contains(t, iff.Succs, after, "empty else falls through")
	assert.Contains(t, thenStmt.Succs, after)
}

func TestComputeLinksGotoAndLoop(t *testing.T) {
	fd := cil.EmptyFunction("f")
	target := cil.MkStmtOneInstr(setInstr())
	target.Labels = []cil.Label{&cil.NameLabel{Name: "L", User: true}}
	g := cil.MkStmt(&cil.Sgoto{Target: target})
	loop := cil.MkStmt(&cil.Sloop{Body: cil.MkBlock([]*cil.Stmt{target, g})})
	fd.Sbody = cil.MkBlock([]*cil.Stmt{loop})

	_, err := Compute(fd)
	require.NoError(t, err)

	assert.Contains(t, loop.Succs, target, "loop links to its body head")
	assert.Contains(t, g.Succs, target, "goto links to its target")
}

func TestComputeRejectsUnnormalized(t *testing.T) {
	for _, kind := range []cil.StmtKind{
		&cil.Sbreak{},
		&cil.Scontinue{},
		&cil.Sswitch{Cond: cil.One(), Body: cil.MkBlock(nil)},
	} {
		fd := cil.EmptyFunction("f")
		fd.Sbody = cil.MkBlock([]*cil.Stmt{cil.MkStmt(kind)})
		_, err := Compute(fd)
		assert.Error(t, err, "%T must be rejected", kind)
	}
}

func TestComputeResetsStaleLinks(t *testing.T) {
	fd := cil.EmptyFunction("f")
	a := cil.MkStmtOneInstr(setInstr())
	r := cil.MkStmt(&cil.Sreturn{})
	fd.Sbody = cil.MkBlock([]*cil.Stmt{a, r})

	_, err := Compute(fd)
	require.NoError(t, err)
	_, err = Compute(fd)
	require.NoError(t, err)

	assert.Len(t, a.Succs, 1, "links must not accumulate across runs")
	assert.Len(t, r.Preds, 1)
}

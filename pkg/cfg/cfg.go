// Package cfg computes successor and predecessor links on the
// statements of a function. Break, Continue and Switch must have been
// normalized away before the CFG is built; finding one is an error.
package cfg

import (
	"github.com/nlucid/cil/pkg/cil"
	"tlog.app/go/errors"
)

// numberer assigns fresh statement ids in visit order and clears any
// stale CFG links.
type numberer struct {
	cil.NopVisitor
	count int
	stmts []*cil.Stmt
}

func (n *numberer) VStmt(s *cil.Stmt) cil.Action[*cil.Stmt] {
	s.SID = n.count
	n.count++
	s.Succs = nil
	s.Preds = nil
	n.stmts = append(n.stmts, s)
	return cil.DoChildren[*cil.Stmt]()
}

// Compute numbers every statement of fd, links successors and
// predecessors, records the number of statements (one past the largest
// statement id) in fd.Smaxstmtid and returns the statements in numbering
// order.
func Compute(fd *cil.Fundec) ([]*cil.Stmt, error) {
	n := &numberer{}
	cil.VisitBlock(n, fd.Sbody)
	if err := succPredBlock(fd.Sbody, nil); err != nil {
		return nil, errors.Wrap(err, "cfg of %v", fd.Svar.Name)
	}
	fd.Smaxstmtid = n.count
	return n.stmts, nil
}

func link(from, to *cil.Stmt) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

func tryLink(from, fallthru *cil.Stmt) {
	if fallthru != nil {
		link(from, fallthru)
	}
}

func succPredBlock(b *cil.Block, fallthru *cil.Stmt) error {
	for i, s := range b.Stmts {
		next := fallthru
		if i+1 < len(b.Stmts) {
			next = b.Stmts[i+1]
		}
		if err := succPredStmt(s, next); err != nil {
			return err
		}
	}
	return nil
}

func succPredStmt(s *cil.Stmt, fallthru *cil.Stmt) error {
	switch k := s.Kind.(type) {
	case *cil.Sinstr:
		tryLink(s, fallthru)
	case *cil.Sreturn:
		// No successors.
	case *cil.Sgoto:
		if k.Target == nil {
			return errors.New("goto with no target")
		}
		link(s, k.Target)
	case *cil.Sbreak:
		return errors.New("break must be normalized away before the CFG")
	case *cil.Scontinue:
		return errors.New("continue must be normalized away before the CFG")
	case *cil.Sswitch:
		return errors.New("switch must be normalized away before the CFG")
	case *cil.Sif:
		if len(k.Then.Stmts) == 0 {
			tryLink(s, fallthru)
		} else {
			link(s, k.Then.Stmts[0])
			if err := succPredBlock(k.Then, fallthru); err != nil {
				return err
			}
		}
		if len(k.Else.Stmts) == 0 {
			tryLink(s, fallthru)
		} else {
			link(s, k.Else.Stmts[0])
			if err := succPredBlock(k.Else, fallthru); err != nil {
				return err
			}
		}
	case *cil.Sloop:
		if len(k.Body.Stmts) == 0 {
			return errors.New("empty loop body")
		}
		link(s, k.Body.Stmts[0])
		// Falling off the end of the loop body goes back to its head.
		if err := succPredBlock(k.Body, k.Body.Stmts[0]); err != nil {
			return err
		}
	case *cil.Sblock:
		if len(k.B.Stmts) == 0 {
			tryLink(s, fallthru)
		} else {
			link(s, k.B.Stmts[0])
			if err := succPredBlock(k.B, fallthru); err != nil {
				return err
			}
		}
	}
	return nil
}

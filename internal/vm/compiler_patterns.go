package vm

import (
	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/diagnostics"
)

// compileMatch tries the cases in order. Each pattern test jumps to the next
// case on the first mismatch; falling off the last case raises MATCHFAIL.
func (m *methodCompiler) compileMatch(n *ast.Match) error {
	r, err := m.reprOf(n)
	if err != nil {
		return err
	}
	sr, err := m.reprOf(n.Scrutinee)
	if err != nil {
		return err
	}
	if err := m.compileExpr(n.Scrutinee); err != nil {
		return err
	}
	outer := m.locals.Checkpoint()
	scrutinee := m.locals.Define("", sr)
	m.store(scrutinee)

	var ends []int
	for _, c := range n.Cases {
		cp := m.locals.Checkpoint()
		fails, err := m.testPattern(c.Pattern, scrutinee)
		if err != nil {
			return err
		}
		if err := m.compileAs(c.Body, r); err != nil {
			return err
		}
		ends = append(ends, m.emitJump(OP_GOTO))
		for _, f := range fails {
			m.patchJump(f)
		}
		m.locals.Rollback(cp)
	}
	m.line = n.Pos.Line
	m.emit(OP_MATCHFAIL)
	for _, e := range ends {
		m.patchJump(e)
	}
	m.locals.Rollback(outer)
	return nil
}

// testPattern emits the test of p against the value in src, binding the
// pattern's variables, and returns the jumps taken on mismatch.
func (m *methodCompiler) testPattern(p ast.Pattern, src Local) ([]int, error) {
	switch p := p.(type) {
	case *ast.WildcardPattern:
		return nil, nil
	case *ast.VarPattern:
		m.locals.Alias(p.Name, src)
		return nil, nil
	case *ast.IntPattern:
		m.load(src)
		if err := m.emitConst(OP_ICONST, Constant{Kind: ConstInt, Int: p.Value}); err != nil {
			return nil, err
		}
		return []int{m.emitJump(OP_IF_ICMPNE)}, nil
	case *ast.BoolPattern:
		m.load(src)
		v := 0
		if p.Value {
			v = 1
		}
		m.emitU8(OP_ZCONST, v)
		return []int{m.emitJump(OP_IF_ICMPNE)}, nil
	case *ast.StringPattern:
		m.load(src)
		if err := m.emitConst(OP_SCONST, Constant{Kind: ConstString, Str: p.Value}); err != nil {
			return nil, err
		}
		if err := m.emitConst(OP_INVOKEHOST, stringCompare); err != nil {
			return nil, err
		}
		return []int{m.emitJump(OP_IFNE)}, nil
	case *ast.NilPattern:
		m.load(src)
		m.emit(OP_LIST_ISEMPTY)
		return []int{m.emitJump(OP_IFEQ)}, nil
	case *ast.ConsPattern:
		m.load(src)
		m.emit(OP_LIST_ISEMPTY)
		fails := []int{m.emitJump(OP_IFNE)}
		head, err := m.testPart(p.Head, src, OP_LIST_HEAD)
		if err != nil {
			return nil, err
		}
		tail, err := m.testPart(p.Tail, src, OP_LIST_TAIL)
		if err != nil {
			return nil, err
		}
		return append(append(fails, head...), tail...), nil
	case *ast.ConstructorPattern:
		ref, err := m.c.holderRef(p.Name)
		if err != nil {
			return nil, err
		}
		m.load(src)
		if err := m.emitConst(OP_INSTANCEOF, ref); err != nil {
			return nil, err
		}
		fails := []int{m.emitJump(OP_IFEQ)}
		if p.Arg == nil {
			return fails, nil
		}
		arg, err := m.testPart(p.Arg, src, OP_GETPAYLOAD)
		if err != nil {
			return nil, err
		}
		return append(fails, arg...), nil
	}
	return nil, diagnostics.Internalf("cannot compile pattern %T", p)
}

// testPart extracts a boxed component of src with op, unboxes it to the
// representation of p's type and tests p against it.
func (m *methodCompiler) testPart(p ast.Pattern, src Local, op Opcode) ([]int, error) {
	if _, ok := p.(*ast.WildcardPattern); ok {
		return nil, nil
	}
	r, err := m.reprOf(p)
	if err != nil {
		return nil, err
	}
	m.load(src)
	m.emit(op)
	if err := m.coerce(ReprRef, r); err != nil {
		return nil, err
	}
	part := m.locals.Define("", r)
	m.store(part)
	return m.testPattern(p, part)
}

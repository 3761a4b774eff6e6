package vm

import (
	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/typesystem"
)

// Local is a named slot of the method being compiled. A Self entry names the
// enclosing recursive lambda and occupies no slot.
type Local struct {
	Name string
	Slot int
	Repr Repr
	Self *selfRef
}

// selfRef lets a let rec body call itself directly.
type selfRef struct {
	method   string
	desc     string
	captures []string
	params   []Repr
	result   Repr
}

// LocalTable maps names to slots for one method. Slots are handed out in
// order and reclaimed by Rollback; the high-water mark becomes MaxLocals.
// The parent is the table of the enclosing method, consulted when a nested
// lambda decides what to capture.
type LocalTable struct {
	parent  *LocalTable
	entries []Local
	next    int
	max     int
}

func NewLocalTable(parent *LocalTable) *LocalTable {
	return &LocalTable{parent: parent}
}

// Define allocates a slot wide enough for r and binds name to it,
// shadowing any earlier binding.
func (t *LocalTable) Define(name string, r Repr) Local {
	l := Local{Name: name, Slot: t.next, Repr: r}
	t.next += r.Width()
	if t.next > t.max {
		t.max = t.next
	}
	t.entries = append(t.entries, l)
	return l
}

// DefineSelf binds name to the recursive lambda being compiled.
func (t *LocalTable) DefineSelf(name string, self *selfRef) {
	t.entries = append(t.entries, Local{Name: name, Slot: -1, Repr: ReprRef, Self: self})
}

// Resolve finds the innermost binding of name in this method.
func (t *LocalTable) Resolve(name string) (Local, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Name == name {
			return t.entries[i], true
		}
	}
	return Local{}, false
}

// ResolveOuter reports whether name is a local of this method or of any
// enclosing one.
func (t *LocalTable) ResolveOuter(name string) bool {
	for s := t; s != nil; s = s.parent {
		if _, ok := s.Resolve(name); ok {
			return true
		}
	}
	return false
}

// Checkpoint captures the table state so a scope can be closed with Rollback.
type Checkpoint struct {
	entries int
	next    int
}

func (t *LocalTable) Checkpoint() Checkpoint {
	return Checkpoint{entries: len(t.entries), next: t.next}
}

// Rollback forgets the bindings made since cp and releases their slots.
func (t *LocalTable) Rollback(cp Checkpoint) {
	t.entries = t.entries[:cp.entries]
	t.next = cp.next
}

func (t *LocalTable) MaxLocals() int { return t.max }

// methodCompiler emits the code of one method.
type methodCompiler struct {
	c      *Compiler
	chunk  *Chunk
	locals *LocalTable
	// subst maps the type variables of the function being specialized.
	subst map[int]typesystem.Type
	line  int
	err   error
}

func newMethodCompiler(c *Compiler, parent *LocalTable, subst map[int]typesystem.Type) *methodCompiler {
	return &methodCompiler{c: c, chunk: NewChunk(), locals: NewLocalTable(parent), subst: subst}
}

// typeOf returns the type of node in the method being compiled.
func (m *methodCompiler) typeOf(node ast.Node) (typesystem.Type, error) {
	t, ok := m.c.res.Types[node]
	if !ok {
		return nil, diagnostics.Internalf("no type recorded for %T at %s", node, node.GetPos())
	}
	if len(m.subst) > 0 {
		t = typesystem.Replace(t, m.subst)
	}
	return t, nil
}

func (m *methodCompiler) reprOf(node ast.Node) (Repr, error) {
	t, err := m.typeOf(node)
	if err != nil {
		return ReprRef, err
	}
	return ReprOf(t)
}

// compileBody compiles expr and returns its value as ret.
func (m *methodCompiler) compileBody(expr ast.Expression, ret Repr) error {
	r, err := m.reprOf(expr)
	if err != nil {
		return err
	}
	if err := m.compileExpr(expr); err != nil {
		return err
	}
	if err := m.coerce(r, ret); err != nil {
		return err
	}
	m.emitReturn(ret)
	return m.err
}

func (m *methodCompiler) finish(name, desc string) *Method {
	meth := &Method{
		Name:       name,
		Descriptor: desc,
		MaxLocals:  m.locals.MaxLocals(),
		Code:       m.chunk.Code,
		Lines:      m.chunk.Lines,
	}
	m.c.addMethod(meth)
	return meth
}

// emit helpers

func (m *methodCompiler) emit(op Opcode) {
	m.chunk.WriteOp(op, m.line)
}

func (m *methodCompiler) emitU8(op Opcode, v int) {
	m.emit(op)
	m.chunk.Write(byte(v), m.line)
}

func (m *methodCompiler) emitU16(op Opcode, v int) {
	m.emit(op)
	m.chunk.WriteU16(v, m.line)
}

func (m *methodCompiler) emitConst(op Opcode, k Constant) error {
	idx, err := m.c.constant(k)
	if err != nil {
		return err
	}
	m.emitU16(op, idx)
	return nil
}

func (m *methodCompiler) emitJump(op Opcode) int {
	m.emit(op)
	m.chunk.Write(0xff, m.line)
	m.chunk.Write(0xff, m.line)
	return m.chunk.Len() - 2
}

func (m *methodCompiler) patchJump(offset int) {
	jump := m.chunk.Len() - offset - 2
	if jump > 0xffff {
		if m.err == nil {
			m.err = diagnostics.Internalf("jump too far")
		}
		return
	}
	m.chunk.Code[offset] = byte(jump >> 8)
	m.chunk.Code[offset+1] = byte(jump)
}

func (m *methodCompiler) load(l Local) {
	switch l.Repr {
	case ReprInt, ReprBool:
		m.emitU16(OP_ILOAD, l.Slot)
	case ReprDouble:
		m.emitU16(OP_DLOAD, l.Slot)
	default:
		m.emitU16(OP_ALOAD, l.Slot)
	}
}

func (m *methodCompiler) store(l Local) {
	switch l.Repr {
	case ReprInt, ReprBool:
		m.emitU16(OP_ISTORE, l.Slot)
	case ReprDouble:
		m.emitU16(OP_DSTORE, l.Slot)
	default:
		m.emitU16(OP_ASTORE, l.Slot)
	}
}

func (m *methodCompiler) pop(r Repr) {
	switch r.Width() {
	case 1:
		m.emit(OP_POP)
	case 2:
		m.emit(OP_POP2)
	}
}

func (m *methodCompiler) emitReturn(r Repr) {
	switch r {
	case ReprInt, ReprBool:
		m.emit(OP_IRETURN)
	case ReprDouble:
		m.emit(OP_DRETURN)
	case ReprRef:
		m.emit(OP_ARETURN)
	default:
		m.emit(OP_RETURN)
	}
}

// coerce converts the value on top of the stack from one representation to
// another by boxing or unboxing.
func (m *methodCompiler) coerce(from, to Repr) error {
	if from == to {
		return nil
	}
	switch {
	case from == ReprVoid:
		m.emit(OP_UNIT)
		return m.coerce(ReprRef, to)
	case to == ReprVoid:
		m.pop(from)
		return nil
	case (from == ReprInt && to == ReprBool) || (from == ReprBool && to == ReprInt):
		return nil
	case to == ReprRef:
		m.emit(boxOps[from])
		return nil
	case from == ReprRef:
		m.emit(unboxOps[to])
		return nil
	}
	return diagnostics.Internalf("cannot convert %s to %s", from, to)
}

var boxOps = map[Repr]Opcode{ReprInt: OP_BOX_I, ReprBool: OP_BOX_Z, ReprDouble: OP_BOX_D}
var unboxOps = map[Repr]Opcode{ReprInt: OP_UNBOX_I, ReprBool: OP_UNBOX_Z, ReprDouble: OP_UNBOX_D}

// Alias binds name to the slot of an existing local.
func (t *LocalTable) Alias(name string, l Local) {
	l.Name = name
	t.entries = append(t.entries, l)
}

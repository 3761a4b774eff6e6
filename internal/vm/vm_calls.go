package vm

import (
	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/host"
)

// fieldRepr is the representation named by a field descriptor.
func fieldRepr(desc string) (Repr, error) {
	_, r, err := ParseDescriptor("()" + desc)
	if err != nil {
		return ReprRef, faultf(FaultLink, "%v", err)
	}
	return r, nil
}

func (vm *VM) getStatic(k Constant) error {
	inst, err := vm.owner(k.Owner)
	if err != nil {
		return err
	}
	r, err := fieldRepr(k.Descriptor)
	if err != nil {
		return err
	}
	v, ok := inst.fields[k.Name]
	if !ok {
		return faultf(FaultLink, "field %s.%s read before it was initialized", k.Owner, k.Name)
	}
	return vm.pushBoxed(r, v)
}

func (vm *VM) putStatic(k Constant) error {
	inst, err := vm.owner(k.Owner)
	if err != nil {
		return err
	}
	r, err := fieldRepr(k.Descriptor)
	if err != nil {
		return err
	}
	inst.fields[k.Name] = vm.popBoxed(r)
	return nil
}

// owner resolves the module a constant refers to. Generated code only names
// its own module here, so the current frame's module is the common case.
func (vm *VM) owner(name string) (*moduleInstance, error) {
	if vm.frame != nil && vm.frame.module.art.Name == name {
		return vm.frame.module, nil
	}
	return vm.module(name)
}

func (vm *VM) resolveMethod(k Constant) (*moduleInstance, *Method, *methodSig, error) {
	inst, err := vm.owner(k.Owner)
	if err != nil {
		return nil, nil, nil, err
	}
	m, ok := inst.methods[k.Name]
	if !ok {
		return nil, nil, nil, faultf(FaultLink, "no method %s.%s", k.Owner, k.Name)
	}
	if m.Descriptor != k.Descriptor {
		return nil, nil, nil, faultf(FaultLink, "method %s.%s has descriptor %s, not %s", k.Owner, k.Name, m.Descriptor, k.Descriptor)
	}
	sig, err := inst.sig(m)
	if err != nil {
		return nil, nil, nil, err
	}
	return inst, m, sig, nil
}

func (vm *VM) invokeStatic(k Constant) error {
	inst, m, sig, err := vm.resolveMethod(k)
	if err != nil {
		return err
	}
	return vm.pushFrame(inst, m, sig, false)
}

func (vm *VM) makeClosure(k Constant, captures int) error {
	inst, m, sig, err := vm.resolveMethod(k)
	if err != nil {
		return err
	}
	if captures >= len(sig.params) {
		return faultf(FaultLink, "closure over %s captures %d of %d parameters", m.Name, captures, len(sig.params))
	}
	args := make([]any, captures)
	for i := captures - 1; i >= 0; i-- {
		args[i] = vm.pop().Obj
	}
	vm.push(ObjVal(&Closure{module: inst, method: m, params: sig.params, result: sig.result, args: args}))
	return nil
}

// apply adds one boxed argument to a closure. A saturated closure calls its
// method and leaves the result boxed; otherwise a new, longer closure is
// pushed.
func (vm *VM) apply() error {
	arg := vm.pop().Obj
	c, ok := vm.pop().Obj.(*Closure)
	if !ok {
		return faultf(FaultBadUnbox, "applying a value that is not a function")
	}
	args := make([]any, len(c.args)+1)
	copy(args, c.args)
	args[len(c.args)] = arg
	if len(args) < len(c.params) {
		next := *c
		next.args = args
		vm.push(ObjVal(&next))
		return nil
	}
	for i, a := range args {
		if err := vm.pushBoxed(c.params[i], a); err != nil {
			return err
		}
	}
	sig, err := c.module.sig(c.method)
	if err != nil {
		return err
	}
	return vm.pushFrame(c.module, c.method, sig, true)
}

// getExport pushes, boxed, an export of another module: a field value, the
// result of a function without parameters, or a closure over a function.
func (vm *VM) getExport(k Constant) error {
	inst, err := vm.module(k.Owner)
	if err != nil {
		return err
	}
	if v, ok := inst.fields[k.Name]; ok {
		vm.push(ObjVal(v))
		return nil
	}
	m, ok := inst.methods[k.Name]
	if !ok || m.Function == "" {
		return faultf(FaultLink, "module %s exports no %s", k.Owner, k.Name)
	}
	sig, err := inst.sig(m)
	if err != nil {
		return err
	}
	if len(sig.params) == 0 {
		return vm.pushFrame(inst, m, sig, true)
	}
	vm.push(ObjVal(&Closure{module: inst, method: m, params: sig.params, result: sig.result}))
	return nil
}

// newHolder allocates a constructor instance, taking the boxed payload from
// the stack when the constructor has one.
func (vm *VM) newHolder(k Constant) error {
	h, err := vm.holderClass(k)
	if err != nil {
		return err
	}
	if h.HasArg {
		h.Payload = vm.pop().Obj
	}
	vm.push(ObjVal(h))
	return nil
}

func (vm *VM) holderClass(k Constant) (*Holder, error) {
	if k.Owner == "" {
		switch k.Name {
		case config.OkCtorName:
			return &Holder{Class: k.Name, Sum: config.ResultTypeName, Tag: 0, HasArg: true}, nil
		case config.ErrorCtorName:
			return &Holder{Class: k.Name, Sum: config.ResultTypeName, Tag: 1, HasArg: true}, nil
		}
		return nil, faultf(FaultLink, "no built-in constructor %s", k.Name)
	}
	inst, err := vm.owner(k.Owner)
	if err != nil {
		return nil, err
	}
	a, ok := inst.holders[k.Name]
	if !ok {
		return nil, faultf(FaultLink, "module %s has no constructor %s", k.Owner, k.Name)
	}
	return &Holder{Owner: k.Owner, Class: a.Name, Sum: a.Sum, Tag: a.Tag, HasArg: a.Payload}, nil
}

// callHost crosses into the host registry. Unit crosses as nil.
func (vm *VM) callHost(op Opcode, k Constant) error {
	params, result, err := ParseDescriptor(k.Descriptor)
	if err != nil {
		return faultf(FaultLink, "host %s.%s: %v", k.Owner, k.Name, err)
	}
	args := make([]any, len(params))
	for i := len(params) - 1; i >= 0; i-- {
		args[i] = toHost(vm.popBoxed(params[i]))
	}
	var v any
	switch op {
	case OP_INVOKEHOST:
		v, err = vm.host.Call(host.MemberKey(k.Owner, k.Name, host.KindFunc), args)
	case OP_INVOKEHOSTVIRTUAL:
		recv := toHost(vm.pop().Obj)
		v, err = vm.host.CallMethod(k.Owner, recv, k.Name, args)
	case OP_GETHOSTFIELD:
		v, err = vm.host.Field(host.MemberKey(k.Owner, k.Name, host.KindField))
	case OP_NEWHOST:
		v, err = vm.host.New(k.Owner)
	}
	if err != nil {
		return &Fault{Kind: FaultHost, Msg: k.String(), Cause: err}
	}
	if result == ReprVoid {
		return nil
	}
	if v == nil {
		v = Unit
	}
	return vm.pushBoxed(result, v)
}

func toHost(v any) any {
	if _, ok := v.(UnitValue); ok {
		return nil
	}
	return v
}

package vm

import (
	"fmt"
	"math"
	"strings"
)

// executeOneOp executes a single instruction whose opcode has been read.
func (vm *VM) executeOneOp(op Opcode) error {
	switch op {
	case OP_ICONST:
		vm.push(IntVal(vm.readConstant().Int))
	case OP_DCONST:
		vm.pushDouble(vm.readConstant().Double)
	case OP_SCONST:
		vm.push(ObjVal(vm.readConstant().Str))
	case OP_ZCONST:
		vm.push(Value{Data: uint64(vm.readByte())})
	case OP_UNIT:
		vm.push(ObjVal(Unit))

	case OP_ILOAD, OP_ALOAD:
		vm.push(vm.stack[vm.frame.base+vm.readU16()])
	case OP_DLOAD:
		slot := vm.frame.base + vm.readU16()
		vm.push(vm.stack[slot])
		vm.push(vm.stack[slot+1])
	case OP_ISTORE, OP_ASTORE:
		slot := vm.frame.base + vm.readU16()
		vm.stack[slot] = vm.pop()
	case OP_DSTORE:
		slot := vm.frame.base + vm.readU16()
		vm.stack[slot+1] = vm.pop()
		vm.stack[slot] = vm.pop()

	case OP_POP:
		vm.pop()
	case OP_POP2:
		vm.pop()
		vm.pop()
	case OP_DUP:
		v := vm.pop()
		vm.push(v)
		vm.push(v)

	case OP_IADD, OP_ISUB, OP_IMUL, OP_IDIV, OP_IREM:
		b := vm.pop().AsInt()
		a := vm.pop().AsInt()
		r, err := intArithmetic(op, a, b)
		if err != nil {
			return err
		}
		vm.push(IntVal(r))
	case OP_INEG:
		vm.push(IntVal(-vm.pop().AsInt()))
	case OP_DADD, OP_DSUB, OP_DMUL, OP_DDIV, OP_DREM:
		b := vm.popDouble()
		a := vm.popDouble()
		vm.pushDouble(doubleArithmetic(op, a, b))
	case OP_DNEG:
		vm.pushDouble(-vm.popDouble())
	case OP_I2D:
		vm.pushDouble(float64(vm.pop().AsInt()))
	case OP_DCMP:
		b := vm.popDouble()
		a := vm.popDouble()
		switch {
		case a < b:
			vm.push(IntVal(-1))
		case a == b:
			vm.push(IntVal(0))
		default:
			vm.push(IntVal(1))
		}

	case OP_IFEQ, OP_IFNE, OP_IFLT, OP_IFGE, OP_IFGT, OP_IFLE:
		offset := vm.readJumpOffset()
		if compareInts(op, vm.pop().AsInt(), 0) {
			vm.frame.ip += offset
		}
	case OP_IF_ICMPEQ, OP_IF_ICMPNE, OP_IF_ICMPLT, OP_IF_ICMPGE, OP_IF_ICMPGT, OP_IF_ICMPLE:
		offset := vm.readJumpOffset()
		b := vm.pop().AsInt()
		a := vm.pop().AsInt()
		if compareInts(op, a, b) {
			vm.frame.ip += offset
		}
	case OP_GOTO:
		offset := vm.readJumpOffset()
		vm.frame.ip += offset

	case OP_BOX_I:
		vm.push(ObjVal(vm.pop().AsInt()))
	case OP_BOX_Z:
		vm.push(ObjVal(vm.pop().AsBool()))
	case OP_BOX_D:
		vm.push(ObjVal(vm.popDouble()))
	case OP_UNBOX_I:
		return vm.pushBoxed(ReprInt, vm.pop().Obj)
	case OP_UNBOX_Z:
		return vm.pushBoxed(ReprBool, vm.pop().Obj)
	case OP_UNBOX_D:
		return vm.pushBoxed(ReprDouble, vm.pop().Obj)

	case OP_OBJ_EQ:
		b := vm.pop().Obj
		a := vm.pop().Obj
		vm.push(BoolVal(valuesEqual(a, b)))
	case OP_STRCAT:
		n := int(vm.readByte())
		parts := make([]string, n)
		for i := n - 1; i >= 0; i-- {
			s, ok := vm.pop().Obj.(string)
			if !ok {
				return faultf(FaultBadUnbox, "string concatenation of a non-string")
			}
			parts[i] = s
		}
		vm.push(ObjVal(strings.Join(parts, "")))
	case OP_TOSTR_I:
		vm.push(ObjVal(FormatValue(vm.pop().AsInt())))
	case OP_TOSTR_Z:
		vm.push(ObjVal(FormatValue(vm.pop().AsBool())))
	case OP_TOSTR_D:
		vm.push(ObjVal(FormatValue(vm.popDouble())))
	case OP_TOSTR_A:
		vm.push(ObjVal(FormatValue(vm.pop().Obj)))

	case OP_GETSTATIC:
		return vm.getStatic(vm.readConstant())
	case OP_PUTSTATIC:
		return vm.putStatic(vm.readConstant())
	case OP_INVOKESTATIC:
		return vm.invokeStatic(vm.readConstant())
	case OP_INVOKEHOST, OP_INVOKEHOSTVIRTUAL, OP_GETHOSTFIELD, OP_NEWHOST:
		return vm.callHost(op, vm.readConstant())
	case OP_CLOSURE:
		k := vm.readConstant()
		n := int(vm.readByte())
		return vm.makeClosure(k, n)
	case OP_APPLY:
		return vm.apply()
	case OP_GETEXPORT:
		return vm.getExport(vm.readConstant())

	case OP_NEWLIST:
		n := vm.readU16()
		var l *List
		for i := 0; i < n; i++ {
			l = &List{Head: vm.pop().Obj, Tail: l}
		}
		vm.push(ObjVal(l))
	case OP_LIST_CONS:
		tail, err := asList(vm.pop().Obj)
		if err != nil {
			return err
		}
		head := vm.pop().Obj
		vm.push(ObjVal(&List{Head: head, Tail: tail}))
	case OP_LIST_ISEMPTY:
		l, err := asList(vm.pop().Obj)
		if err != nil {
			return err
		}
		vm.push(BoolVal(l == nil))
	case OP_LIST_HEAD, OP_LIST_TAIL:
		l, err := asList(vm.pop().Obj)
		if err != nil {
			return err
		}
		if l == nil {
			return faultf(FaultMatchFailure, "%s of an empty list", op)
		}
		if op == OP_LIST_HEAD {
			vm.push(ObjVal(l.Head))
		} else {
			vm.push(ObjVal(l.Tail))
		}

	case OP_NEW:
		return vm.newHolder(vm.readConstant())
	case OP_INSTANCEOF:
		k := vm.readConstant()
		h, ok := vm.pop().Obj.(*Holder)
		vm.push(BoolVal(ok && h.Owner == k.Owner && h.Class == k.Name))
	case OP_GETPAYLOAD:
		h, ok := vm.pop().Obj.(*Holder)
		if !ok || !h.HasArg {
			return faultf(FaultBadUnbox, "payload of a value without one")
		}
		vm.push(ObjVal(h.Payload))

	case OP_PRINT_I:
		return vm.print(vm.pop().AsInt())
	case OP_PRINT_Z:
		return vm.print(vm.pop().AsBool())
	case OP_PRINT_D:
		return vm.print(vm.popDouble())
	case OP_PRINT_A:
		return vm.print(vm.pop().Obj)
	case OP_MATCHFAIL:
		return faultf(FaultNonExhaustive, "no case matched")

	case OP_IRETURN:
		vm.returnFrom(vm.frame.sig.result)
	case OP_DRETURN:
		vm.returnFrom(ReprDouble)
	case OP_ARETURN:
		vm.returnFrom(ReprRef)
	case OP_RETURN:
		vm.returnFrom(ReprVoid)

	default:
		return faultf(FaultLink, "unknown opcode %d", op)
	}
	return nil
}

func intArithmetic(op Opcode, a, b int64) (int64, error) {
	switch op {
	case OP_IADD:
		return a + b, nil
	case OP_ISUB:
		return a - b, nil
	case OP_IMUL:
		return a * b, nil
	}
	if b == 0 {
		return 0, &Fault{Kind: FaultDivideByZero}
	}
	if op == OP_IDIV {
		return a / b, nil
	}
	return a % b, nil
}

func doubleArithmetic(op Opcode, a, b float64) float64 {
	switch op {
	case OP_DADD:
		return a + b
	case OP_DSUB:
		return a - b
	case OP_DMUL:
		return a * b
	case OP_DDIV:
		return a / b
	}
	return math.Mod(a, b)
}

func compareInts(op Opcode, a, b int64) bool {
	switch op {
	case OP_IFEQ, OP_IF_ICMPEQ:
		return a == b
	case OP_IFNE, OP_IF_ICMPNE:
		return a != b
	case OP_IFLT, OP_IF_ICMPLT:
		return a < b
	case OP_IFGE, OP_IF_ICMPGE:
		return a >= b
	case OP_IFGT, OP_IF_ICMPGT:
		return a > b
	}
	return a <= b
}

func asList(v any) (*List, error) {
	switch l := v.(type) {
	case *List:
		return l, nil
	case nil:
		return nil, nil
	}
	return nil, faultf(FaultBadUnbox, "expected a list, got %T", v)
}

func (vm *VM) print(v any) error {
	if _, err := fmt.Fprintln(vm.out, FormatValue(v)); err != nil {
		return &Fault{Kind: FaultHost, Msg: "print", Cause: err}
	}
	return nil
}

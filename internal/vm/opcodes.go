// Package vm generates and executes code for the representation-typed stack
// machine: artifacts holding methods, fields and a constant pool.
package vm

// Opcode represents a single VM instruction
type Opcode byte

// Operands follow the opcode big-endian. "u16" is a constant pool index
// unless noted otherwise.
const (
	// Constants
	OP_ICONST Opcode = iota // u16: push Int constant
	OP_DCONST               // u16: push Double constant (two words)
	OP_SCONST               // u16: push String constant
	OP_ZCONST               // u8: push Bool 0 or 1
	OP_UNIT                 // push the unit reference

	// Locals (u16 slot)
	OP_ILOAD
	OP_DLOAD
	OP_ALOAD
	OP_ISTORE
	OP_DSTORE
	OP_ASTORE

	// Stack manipulation
	OP_POP  // discard one word
	OP_POP2 // discard two words
	OP_DUP  // duplicate one word

	// Int arithmetic (Bool shares the Int representation)
	OP_IADD
	OP_ISUB
	OP_IMUL
	OP_IDIV
	OP_IREM
	OP_INEG

	// Double arithmetic
	OP_DADD
	OP_DSUB
	OP_DMUL
	OP_DDIV
	OP_DREM
	OP_DNEG
	OP_I2D // widen Int to Double
	OP_DCMP

	// Control flow. Offsets are u16, relative to the end of the instruction,
	// and always forward.
	OP_IFEQ // pop Int, jump if zero
	OP_IFNE
	OP_IFLT
	OP_IFGE
	OP_IFGT
	OP_IFLE
	OP_IF_ICMPEQ // pop two Ints, jump if equal
	OP_IF_ICMPNE
	OP_IF_ICMPLT
	OP_IF_ICMPGE
	OP_IF_ICMPGT
	OP_IF_ICMPLE
	OP_GOTO

	// Boxing
	OP_BOX_I
	OP_BOX_D
	OP_BOX_Z
	OP_UNBOX_I
	OP_UNBOX_D
	OP_UNBOX_Z

	// References and strings
	OP_OBJ_EQ // pop two references, push 1 if structurally equal
	OP_STRCAT // u8: concatenate the top n strings
	OP_TOSTR_I
	OP_TOSTR_D
	OP_TOSTR_Z
	OP_TOSTR_A

	// Module fields
	OP_GETSTATIC // u16 field ref
	OP_PUTSTATIC // u16 field ref

	// Calls
	OP_INVOKESTATIC      // u16 method ref
	OP_INVOKEHOST        // u16 host ref
	OP_INVOKEHOSTVIRTUAL // u16 host ref, receiver below the arguments
	OP_GETHOSTFIELD      // u16 host ref
	OP_NEWHOST           // u16 host ref
	OP_CLOSURE           // u16 method ref, u8 capture count
	OP_APPLY             // pop boxed argument and closure, push boxed result
	OP_GETEXPORT         // u16 export ref: push an export of another module boxed

	// Lists
	OP_NEWLIST // u16 element count
	OP_LIST_CONS
	OP_LIST_ISEMPTY
	OP_LIST_HEAD
	OP_LIST_TAIL

	// Holders
	OP_NEW        // u16 holder ref
	OP_INSTANCEOF // u16 holder ref
	OP_GETPAYLOAD

	// Output and faults
	OP_PRINT_I
	OP_PRINT_D
	OP_PRINT_Z
	OP_PRINT_A
	OP_MATCHFAIL

	// Returns
	OP_IRETURN
	OP_DRETURN
	OP_ARETURN
	OP_RETURN
)

// OpcodeNames maps opcodes to their string names (for debugging)
var OpcodeNames = map[Opcode]string{
	OP_ICONST: "ICONST",
	OP_DCONST: "DCONST",
	OP_SCONST: "SCONST",
	OP_ZCONST: "ZCONST",
	OP_UNIT:   "UNIT",

	OP_ILOAD:  "ILOAD",
	OP_DLOAD:  "DLOAD",
	OP_ALOAD:  "ALOAD",
	OP_ISTORE: "ISTORE",
	OP_DSTORE: "DSTORE",
	OP_ASTORE: "ASTORE",

	OP_POP:  "POP",
	OP_POP2: "POP2",
	OP_DUP:  "DUP",

	OP_IADD: "IADD",
	OP_ISUB: "ISUB",
	OP_IMUL: "IMUL",
	OP_IDIV: "IDIV",
	OP_IREM: "IREM",
	OP_INEG: "INEG",

	OP_DADD: "DADD",
	OP_DSUB: "DSUB",
	OP_DMUL: "DMUL",
	OP_DDIV: "DDIV",
	OP_DREM: "DREM",
	OP_DNEG: "DNEG",
	OP_I2D:  "I2D",
	OP_DCMP: "DCMP",

	OP_IFEQ:      "IFEQ",
	OP_IFNE:      "IFNE",
	OP_IFLT:      "IFLT",
	OP_IFGE:      "IFGE",
	OP_IFGT:      "IFGT",
	OP_IFLE:      "IFLE",
	OP_IF_ICMPEQ: "IF_ICMPEQ",
	OP_IF_ICMPNE: "IF_ICMPNE",
	OP_IF_ICMPLT: "IF_ICMPLT",
	OP_IF_ICMPGE: "IF_ICMPGE",
	OP_IF_ICMPGT: "IF_ICMPGT",
	OP_IF_ICMPLE: "IF_ICMPLE",
	OP_GOTO:      "GOTO",

	OP_BOX_I:   "BOX_I",
	OP_BOX_D:   "BOX_D",
	OP_BOX_Z:   "BOX_Z",
	OP_UNBOX_I: "UNBOX_I",
	OP_UNBOX_D: "UNBOX_D",
	OP_UNBOX_Z: "UNBOX_Z",

	OP_OBJ_EQ:  "OBJ_EQ",
	OP_STRCAT:  "STRCAT",
	OP_TOSTR_I: "TOSTR_I",
	OP_TOSTR_D: "TOSTR_D",
	OP_TOSTR_Z: "TOSTR_Z",
	OP_TOSTR_A: "TOSTR_A",

	OP_GETSTATIC: "GETSTATIC",
	OP_PUTSTATIC: "PUTSTATIC",

	OP_INVOKESTATIC:      "INVOKESTATIC",
	OP_INVOKEHOST:        "INVOKEHOST",
	OP_INVOKEHOSTVIRTUAL: "INVOKEHOSTVIRTUAL",
	OP_GETHOSTFIELD:      "GETHOSTFIELD",
	OP_NEWHOST:           "NEWHOST",
	OP_CLOSURE:           "CLOSURE",
	OP_APPLY:             "APPLY",
	OP_GETEXPORT:         "GETEXPORT",

	OP_NEWLIST:      "NEWLIST",
	OP_LIST_CONS:    "LIST_CONS",
	OP_LIST_ISEMPTY: "LIST_ISEMPTY",
	OP_LIST_HEAD:    "LIST_HEAD",
	OP_LIST_TAIL:    "LIST_TAIL",

	OP_NEW:        "NEW",
	OP_INSTANCEOF: "INSTANCEOF",
	OP_GETPAYLOAD: "GETPAYLOAD",

	OP_PRINT_I:   "PRINT_I",
	OP_PRINT_D:   "PRINT_D",
	OP_PRINT_Z:   "PRINT_Z",
	OP_PRINT_A:   "PRINT_A",
	OP_MATCHFAIL: "MATCHFAIL",

	OP_IRETURN: "IRETURN",
	OP_DRETURN: "DRETURN",
	OP_ARETURN: "ARETURN",
	OP_RETURN:  "RETURN",
}

// operandKind describes the operand bytes that follow an opcode.
type operandKind int

const (
	operandNone operandKind = iota
	operandU8
	operandSlot
	operandConst
	operandJump
	operandCount
	operandClosure // u16 method ref + u8 capture count
)

func (op Opcode) operands() operandKind {
	switch op {
	case OP_ZCONST, OP_STRCAT:
		return operandU8
	case OP_ILOAD, OP_DLOAD, OP_ALOAD, OP_ISTORE, OP_DSTORE, OP_ASTORE:
		return operandSlot
	case OP_ICONST, OP_DCONST, OP_SCONST, OP_GETSTATIC, OP_PUTSTATIC,
		OP_INVOKESTATIC, OP_INVOKEHOST, OP_INVOKEHOSTVIRTUAL, OP_GETHOSTFIELD, OP_NEWHOST,
		OP_GETEXPORT, OP_NEW, OP_INSTANCEOF:
		return operandConst
	case OP_IFEQ, OP_IFNE, OP_IFLT, OP_IFGE, OP_IFGT, OP_IFLE,
		OP_IF_ICMPEQ, OP_IF_ICMPNE, OP_IF_ICMPLT, OP_IF_ICMPGE, OP_IF_ICMPGT, OP_IF_ICMPLE, OP_GOTO:
		return operandJump
	case OP_NEWLIST:
		return operandCount
	case OP_CLOSURE:
		return operandClosure
	}
	return operandNone
}

// width is the encoded size of an instruction, opcode included.
func (op Opcode) width() int {
	switch op.operands() {
	case operandU8:
		return 2
	case operandSlot, operandConst, operandJump, operandCount:
		return 3
	case operandClosure:
		return 4
	}
	return 1
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

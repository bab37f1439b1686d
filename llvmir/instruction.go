package llvmir

import (
	"strconv"
	"strings"
)

// Opcode of an instruction, as written in LLVM IR.
type Opcode string

const (
	OpAdd  Opcode = "add"
	OpSub  Opcode = "sub"
	OpMul  Opcode = "mul"
	OpSDiv Opcode = "sdiv"
	OpUDiv Opcode = "udiv"
	OpSRem Opcode = "srem"
	OpURem Opcode = "urem"
	OpShl  Opcode = "shl"
	OpLShr Opcode = "lshr"
	OpAShr Opcode = "ashr"
	OpAnd  Opcode = "and"
	OpOr   Opcode = "or"
	OpXor  Opcode = "xor"

	OpFAdd Opcode = "fadd"
	OpFSub Opcode = "fsub"
	OpFMul Opcode = "fmul"
	OpFDiv Opcode = "fdiv"
	OpFRem Opcode = "frem"
	OpFNeg Opcode = "fneg"

	OpICmp   Opcode = "icmp"
	OpFCmp   Opcode = "fcmp"
	OpSelect Opcode = "select"

	OpTrunc   Opcode = "trunc"
	OpZExt    Opcode = "zext"
	OpSExt    Opcode = "sext"
	OpFPTrunc Opcode = "fptrunc"
	OpFPExt   Opcode = "fpext"
	OpFPToSI  Opcode = "fptosi"
	OpFPToUI  Opcode = "fptoui"
	OpSIToFP  Opcode = "sitofp"
	OpUIToFP  Opcode = "uitofp"
	OpBitCast Opcode = "bitcast"

	OpAlloca Opcode = "alloca"
	OpLoad   Opcode = "load"
	OpStore  Opcode = "store"
	OpGEP    Opcode = "getelementptr"
	OpCall   Opcode = "call"

	OpBr  Opcode = "br"
	OpRet Opcode = "ret"
)

// IsCast returns whether the opcode is a conversion `<op> <ty> %v to <ty2>`.
func (op Opcode) IsCast() bool {
	switch op {
	case OpTrunc, OpZExt, OpSExt, OpFPTrunc, OpFPExt, OpFPToSI, OpFPToUI, OpSIToFP, OpUIToFP, OpBitCast:
		return true
	}
	return false
}

// Predicate of icmp and fcmp instructions.
type Predicate string

const (
	IntEQ  Predicate = "eq"
	IntNE  Predicate = "ne"
	IntULT Predicate = "ult"
	IntULE Predicate = "ule"
	IntUGT Predicate = "ugt"
	IntUGE Predicate = "uge"
	IntSLT Predicate = "slt"
	IntSLE Predicate = "sle"
	IntSGT Predicate = "sgt"
	IntSGE Predicate = "sge"

	FloatOEQ Predicate = "oeq"
	FloatONE Predicate = "one"
	FloatOLT Predicate = "olt"
	FloatOLE Predicate = "ole"
	FloatOGT Predicate = "ogt"
	FloatOGE Predicate = "oge"
	FloatUNE Predicate = "une"
	FloatUNO Predicate = "uno"
	FloatORD Predicate = "ord"
)

type attachment struct {
	kind string
	node *MDNode
}

// Instruction is one instruction in a basic block. As a Value it is the instruction result.
//
// Instructions are created with a Builder.
type Instruction struct {
	Opcode   Opcode
	typ      *Type
	name     string
	operands []Value
	block    *Block

	// Flags written after the opcode, e.g. "nsw" or "inbounds".
	Flags []string

	// Predicate for icmp and fcmp.
	Predicate Predicate

	// ElemType is the allocated type for alloca, the loaded type for load and the source element type for
	// getelementptr.
	ElemType *Type

	// Align for alloca, load and store, 0 if not set.
	Align int

	callee   *Function
	metadata []attachment
}

// Name of the result, without the '%'. Empty for unnamed values and for instructions without results.
func (instr *Instruction) Name() string { return instr.name }

// Operands of the instruction.
func (instr *Instruction) Operands() []Value { return instr.operands }

// Block that holds the instruction.
func (instr *Instruction) Block() *Block { return instr.block }

// Callee of a call instruction.
func (instr *Instruction) Callee() *Function { return instr.callee }

// IsTerminator returns whether the instruction ends a basic block.
func (instr *Instruction) IsTerminator() bool {
	return instr.Opcode == OpBr || instr.Opcode == OpRet
}

// SetMetadata attaches a metadata node, e.g. `!range !0`. Attaching the same kind again replaces it.
func (instr *Instruction) SetMetadata(kind string, node *MDNode) *Instruction {
	for i := range instr.metadata {
		if instr.metadata[i].kind == kind {
			instr.metadata[i].node = node
			return instr
		}
	}
	instr.metadata = append(instr.metadata, attachment{kind: kind, node: node})
	return instr
}

// Metadata returns the node attached with the given kind, or nil.
func (instr *Instruction) Metadata(kind string) *MDNode {
	for _, a := range instr.metadata {
		if a.kind == kind {
			return a.node
		}
	}
	return nil
}

// Type of the result: void for store, br and ret.
func (instr *Instruction) Type() *Type { return instr.typ }

func (instr *Instruction) ref(slots *slotTracker) string {
	if instr.name != "" {
		return formatName('%', instr.name)
	}
	return "%" + strconv.Itoa(slots.local(instr))
}

func (instr *Instruction) hasResult() bool {
	return instr.typ.Kind != VoidKind
}

// text renders the instruction, without indentation or line break.
func (instr *Instruction) text(slots *slotTracker) string {
	var sb strings.Builder
	if instr.hasResult() {
		sb.WriteString(instr.ref(slots))
		sb.WriteString(" = ")
	}
	sb.WriteString(string(instr.Opcode))
	for _, flag := range instr.Flags {
		sb.WriteString(" ")
		sb.WriteString(flag)
	}
	ops := instr.operands

	switch {
	case instr.Opcode == OpICmp || instr.Opcode == OpFCmp:
		sb.WriteString(" " + string(instr.Predicate) + " " + typedRef(ops[0], slots) + ", " + ops[1].ref(slots))

	case instr.Opcode.IsCast():
		sb.WriteString(" " + typedRef(ops[0], slots) + " to " + instr.typ.String())

	case instr.Opcode == OpFNeg:
		sb.WriteString(" " + typedRef(ops[0], slots))

	case instr.Opcode == OpSelect:
		sb.WriteString(" " + typedRef(ops[0], slots) + ", " + typedRef(ops[1], slots) + ", " + typedRef(ops[2], slots))

	case instr.Opcode == OpAlloca:
		sb.WriteString(" " + instr.ElemType.String())

	case instr.Opcode == OpLoad:
		sb.WriteString(" " + instr.ElemType.String() + ", " + typedRef(ops[0], slots))

	case instr.Opcode == OpStore:
		sb.WriteString(" " + typedRef(ops[0], slots) + ", " + typedRef(ops[1], slots))

	case instr.Opcode == OpGEP:
		sb.WriteString(" " + instr.ElemType.String())
		for _, op := range ops {
			sb.WriteString(", " + typedRef(op, slots))
		}

	case instr.Opcode == OpCall:
		sb.WriteString(" " + instr.typ.String() + " " + instr.callee.ref(slots) + "(")
		for i, op := range ops {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(typedRef(op, slots))
		}
		sb.WriteString(")")

	case instr.Opcode == OpBr:
		for i, op := range ops {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(" " + typedRef(op, slots))
		}

	case instr.Opcode == OpRet:
		if len(ops) == 0 {
			sb.WriteString(" void")
		} else {
			sb.WriteString(" " + typedRef(ops[0], slots))
		}

	default:
		// Binary operators.
		sb.WriteString(" " + typedRef(ops[0], slots) + ", " + ops[1].ref(slots))
	}

	if instr.Align > 0 {
		sb.WriteString(", align " + strconv.Itoa(instr.Align))
	}
	for _, a := range instr.metadata {
		sb.WriteString(", !" + a.kind + " " + a.node.mdRef(slots))
	}
	return sb.String()
}

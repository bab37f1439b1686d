package llvmir

import (
	"github.com/gomlx/exceptions"
)

// Builder appends instructions to a basic block, the "insert point".
//
// Misuse (mismatched types, values of another Context, adding instructions after a terminator) panics
// with exceptions.Panicf: they are bugs in the code emitting the IR, not in its input.
type Builder struct {
	module *Module
	ctx    *Context
	block  *Block
}

// NewBuilder returns a Builder for the given module, with no insert point set.
func NewBuilder(m *Module) *Builder {
	return &Builder{module: m, ctx: m.ctx}
}

// Module being built.
func (b *Builder) Module() *Module { return b.module }

// SetInsertPoint makes new instructions be appended to block.
func (b *Builder) SetInsertPoint(block *Block) {
	if block.fn.module != b.module {
		exceptions.Panicf("llvmir: block %q belongs to a different module", block.name)
	}
	b.block = block
}

// InsertBlock returns the current insert point.
func (b *Builder) InsertBlock() *Block { return b.block }

// Function returns the function of the current insert point.
func (b *Builder) Function() *Function {
	if b.block == nil {
		return nil
	}
	return b.block.fn
}

func (b *Builder) check(values ...Value) {
	for _, v := range values {
		if v == nil {
			exceptions.Panicf("llvmir: nil value given to Builder")
		}
		if v.Type().ctx != b.ctx {
			exceptions.Panicf("llvmir: value of type %s belongs to a different Context", v.Type())
		}
	}
}

func (b *Builder) insert(instr *Instruction, name string) *Instruction {
	if b.block == nil {
		exceptions.Panicf("llvmir: Builder has no insert point, use SetInsertPoint first")
	}
	if b.block.Terminator() != nil {
		exceptions.Panicf("llvmir: block %q already has a terminator, can't add %s", b.block.name, instr.Opcode)
	}
	b.check(instr.operands...)
	if instr.hasResult() {
		instr.name = b.block.fn.uniqueLocal(name)
	}
	instr.block = b.block
	b.block.instructions = append(b.block.instructions, instr)
	return instr
}

func (b *Builder) binary(op Opcode, x, y Value, name string, isFloat bool, flags ...string) *Instruction {
	b.check(x, y)
	if x.Type() != y.Type() {
		exceptions.Panicf("llvmir: %s operands have different types %s and %s", op, x.Type(), y.Type())
	}
	if isFloat != x.Type().IsFloat() || (!isFloat && !x.Type().IsInt()) {
		exceptions.Panicf("llvmir: %s doesn't accept operands of type %s", op, x.Type())
	}
	return b.insert(&Instruction{Opcode: op, typ: x.Type(), operands: []Value{x, y}, Flags: flags}, name)
}

// Add returns `add x, y`, with optional flags like "nsw" or "nuw".
func (b *Builder) Add(x, y Value, name string, flags ...string) *Instruction {
	return b.binary(OpAdd, x, y, name, false, flags...)
}

// Sub returns `sub x, y`.
func (b *Builder) Sub(x, y Value, name string, flags ...string) *Instruction {
	return b.binary(OpSub, x, y, name, false, flags...)
}

// Mul returns `mul x, y`.
func (b *Builder) Mul(x, y Value, name string, flags ...string) *Instruction {
	return b.binary(OpMul, x, y, name, false, flags...)
}

func (b *Builder) SDiv(x, y Value, name string) *Instruction { return b.binary(OpSDiv, x, y, name, false) }
func (b *Builder) UDiv(x, y Value, name string) *Instruction { return b.binary(OpUDiv, x, y, name, false) }
func (b *Builder) SRem(x, y Value, name string) *Instruction { return b.binary(OpSRem, x, y, name, false) }
func (b *Builder) URem(x, y Value, name string) *Instruction { return b.binary(OpURem, x, y, name, false) }
func (b *Builder) Shl(x, y Value, name string) *Instruction  { return b.binary(OpShl, x, y, name, false) }
func (b *Builder) LShr(x, y Value, name string) *Instruction { return b.binary(OpLShr, x, y, name, false) }
func (b *Builder) AShr(x, y Value, name string) *Instruction { return b.binary(OpAShr, x, y, name, false) }
func (b *Builder) And(x, y Value, name string) *Instruction  { return b.binary(OpAnd, x, y, name, false) }
func (b *Builder) Or(x, y Value, name string) *Instruction   { return b.binary(OpOr, x, y, name, false) }
func (b *Builder) Xor(x, y Value, name string) *Instruction  { return b.binary(OpXor, x, y, name, false) }

func (b *Builder) FAdd(x, y Value, name string) *Instruction { return b.binary(OpFAdd, x, y, name, true) }
func (b *Builder) FSub(x, y Value, name string) *Instruction { return b.binary(OpFSub, x, y, name, true) }
func (b *Builder) FMul(x, y Value, name string) *Instruction { return b.binary(OpFMul, x, y, name, true) }
func (b *Builder) FDiv(x, y Value, name string) *Instruction { return b.binary(OpFDiv, x, y, name, true) }
func (b *Builder) FRem(x, y Value, name string) *Instruction { return b.binary(OpFRem, x, y, name, true) }

// FNeg returns `fneg x`.
func (b *Builder) FNeg(x Value, name string) *Instruction {
	b.check(x)
	if !x.Type().IsFloat() {
		exceptions.Panicf("llvmir: fneg doesn't accept operands of type %s", x.Type())
	}
	return b.insert(&Instruction{Opcode: OpFNeg, typ: x.Type(), operands: []Value{x}}, name)
}

// Not returns `xor x, -1`.
func (b *Builder) Not(x Value, name string) *Instruction {
	b.check(x)
	return b.Xor(x, ConstInt(x.Type(), -1), name)
}

// ICmp compares two integers (or pointers), returning an i1.
func (b *Builder) ICmp(pred Predicate, x, y Value, name string) *Instruction {
	b.check(x, y)
	if x.Type() != y.Type() || !(x.Type().IsInt() || x.Type().Kind == PtrKind) {
		exceptions.Panicf("llvmir: icmp of invalid types %s and %s", x.Type(), y.Type())
	}
	return b.insert(&Instruction{Opcode: OpICmp, typ: b.ctx.Bool(), Predicate: pred, operands: []Value{x, y}}, name)
}

// FCmp compares two floating point values, returning an i1.
func (b *Builder) FCmp(pred Predicate, x, y Value, name string) *Instruction {
	b.check(x, y)
	if x.Type() != y.Type() || !x.Type().IsFloat() {
		exceptions.Panicf("llvmir: fcmp of invalid types %s and %s", x.Type(), y.Type())
	}
	return b.insert(&Instruction{Opcode: OpFCmp, typ: b.ctx.Bool(), Predicate: pred, operands: []Value{x, y}}, name)
}

// Select returns `select cond, onTrue, onFalse`.
func (b *Builder) Select(cond, onTrue, onFalse Value, name string) *Instruction {
	b.check(cond, onTrue, onFalse)
	if cond.Type() != b.ctx.Bool() {
		exceptions.Panicf("llvmir: select condition must be i1, got %s", cond.Type())
	}
	if onTrue.Type() != onFalse.Type() {
		exceptions.Panicf("llvmir: select operands have different types %s and %s", onTrue.Type(), onFalse.Type())
	}
	return b.insert(&Instruction{Opcode: OpSelect, typ: onTrue.Type(), operands: []Value{cond, onTrue, onFalse}}, name)
}

// Cast converts v to type to with the given cast opcode.
func (b *Builder) Cast(op Opcode, v Value, to *Type, name string) *Instruction {
	b.check(v)
	if !op.IsCast() {
		exceptions.Panicf("llvmir: %s is not a cast", op)
	}
	if to.ctx != b.ctx {
		exceptions.Panicf("llvmir: cast target type %s belongs to a different Context", to)
	}
	from := v.Type()
	valid := false
	switch op {
	case OpTrunc:
		valid = from.IsInt() && to.IsInt() && from.Bits > to.Bits
	case OpZExt, OpSExt:
		valid = from.IsInt() && to.IsInt() && from.Bits < to.Bits
	case OpFPTrunc:
		valid = from.IsFloat() && to.IsFloat() && from.SizeInBits() > to.SizeInBits()
	case OpFPExt:
		valid = from.IsFloat() && to.IsFloat() && from.SizeInBits() < to.SizeInBits()
	case OpFPToSI, OpFPToUI:
		valid = from.IsFloat() && to.IsInt()
	case OpSIToFP, OpUIToFP:
		valid = from.IsInt() && to.IsFloat()
	case OpBitCast:
		valid = from.SizeInBits() == to.SizeInBits() && from.SizeInBits() > 0
	}
	if !valid {
		exceptions.Panicf("llvmir: invalid %s from %s to %s", op, from, to)
	}
	return b.insert(&Instruction{Opcode: op, typ: to, operands: []Value{v}}, name)
}

// IntCast converts the integer v to type to, with trunc, sext (if signed) or zext. It returns v unchanged if
// it already has type to.
func (b *Builder) IntCast(v Value, to *Type, signed bool, name string) Value {
	from := v.Type()
	switch {
	case from == to:
		return v
	case from.Bits > to.Bits:
		return b.Cast(OpTrunc, v, to, name)
	case signed:
		return b.Cast(OpSExt, v, to, name)
	default:
		return b.Cast(OpZExt, v, to, name)
	}
}

// FPCast converts the floating point v to type to, with fpext or fptrunc. It returns v unchanged if it
// already has type to.
func (b *Builder) FPCast(v Value, to *Type, name string) Value {
	from := v.Type()
	switch {
	case from == to:
		return v
	case from.SizeInBits() == to.SizeInBits():
		// half <-> bfloat: go through float.
		return b.Cast(OpFPTrunc, b.Cast(OpFPExt, v, b.ctx.Float(), name), to, name)
	case from.SizeInBits() > to.SizeInBits():
		return b.Cast(OpFPTrunc, v, to, name)
	default:
		return b.Cast(OpFPExt, v, to, name)
	}
}

// Alloca reserves stack space for a value of type typ. It is always placed at the start of the entry
// block of the current function (after other allocas), so it is executed once.
func (b *Builder) Alloca(typ *Type, align int, name string) *Instruction {
	fn := b.Function()
	if fn == nil {
		exceptions.Panicf("llvmir: Builder has no insert point, use SetInsertPoint first")
	}
	if typ.ctx != b.ctx {
		exceptions.Panicf("llvmir: alloca of type %s that belongs to a different Context", typ)
	}
	entry := fn.blocks[0]
	instr := &Instruction{Opcode: OpAlloca, typ: b.ctx.Ptr(), ElemType: typ, Align: align,
		name: fn.uniqueLocal(name), block: entry}
	pos := 0
	for pos < len(entry.instructions) && entry.instructions[pos].Opcode == OpAlloca {
		pos++
	}
	entry.instructions = append(entry.instructions, nil)
	copy(entry.instructions[pos+1:], entry.instructions[pos:])
	entry.instructions[pos] = instr
	return instr
}

// Load returns `load typ, ptr`.
func (b *Builder) Load(typ *Type, ptr Value, align int, name string) *Instruction {
	b.check(ptr)
	if ptr.Type().Kind != PtrKind {
		exceptions.Panicf("llvmir: load from non-pointer of type %s", ptr.Type())
	}
	return b.insert(&Instruction{Opcode: OpLoad, typ: typ, ElemType: typ, Align: align, operands: []Value{ptr}}, name)
}

// Store writes v to ptr.
func (b *Builder) Store(v, ptr Value, align int) *Instruction {
	b.check(v, ptr)
	if ptr.Type().Kind != PtrKind {
		exceptions.Panicf("llvmir: store to non-pointer of type %s", ptr.Type())
	}
	return b.insert(&Instruction{Opcode: OpStore, typ: b.ctx.Void(), Align: align, operands: []Value{v, ptr}}, "")
}

// InBoundsGEP returns `getelementptr inbounds elemType, ptr, indices...`.
func (b *Builder) InBoundsGEP(elemType *Type, ptr Value, indices []Value, name string) *Instruction {
	b.check(ptr)
	b.check(indices...)
	if ptr.Type().Kind != PtrKind {
		exceptions.Panicf("llvmir: getelementptr on non-pointer of type %s", ptr.Type())
	}
	for _, index := range indices {
		if !index.Type().IsInt() {
			exceptions.Panicf("llvmir: getelementptr index of type %s", index.Type())
		}
	}
	operands := append([]Value{ptr}, indices...)
	return b.insert(&Instruction{Opcode: OpGEP, typ: b.ctx.Ptr(), ElemType: elemType, Flags: []string{"inbounds"},
		operands: operands}, name)
}

// Call calls fn with the given arguments.
func (b *Builder) Call(fn *Function, args []Value, name string) *Instruction {
	if fn.module != b.module {
		exceptions.Panicf("llvmir: calling function %q of a different module", fn.name)
	}
	if len(args) != len(fn.params) {
		exceptions.Panicf("llvmir: function %q takes %d arguments, got %d", fn.name, len(fn.params), len(args))
	}
	b.check(args...)
	for i, arg := range args {
		if arg.Type() != fn.params[i].typ {
			exceptions.Panicf("llvmir: argument #%d of %q must be %s, got %s", i, fn.name, fn.params[i].typ, arg.Type())
		}
	}
	return b.insert(&Instruction{Opcode: OpCall, typ: fn.RetType, callee: fn, operands: args}, name)
}

// Br jumps to dest.
func (b *Builder) Br(dest *Block) *Instruction {
	return b.insert(&Instruction{Opcode: OpBr, typ: b.ctx.Void(), operands: []Value{dest}}, "")
}

// CondBr jumps to onTrue if cond is true, to onFalse otherwise.
func (b *Builder) CondBr(cond Value, onTrue, onFalse *Block) *Instruction {
	b.check(cond)
	if cond.Type() != b.ctx.Bool() {
		exceptions.Panicf("llvmir: branch condition must be i1, got %s", cond.Type())
	}
	return b.insert(&Instruction{Opcode: OpBr, typ: b.ctx.Void(), operands: []Value{cond, onTrue, onFalse}}, "")
}

// RetVoid returns from a void function.
func (b *Builder) RetVoid() *Instruction {
	if fn := b.Function(); fn != nil && fn.RetType.Kind != VoidKind {
		exceptions.Panicf("llvmir: ret void in function %q returning %s", fn.name, fn.RetType)
	}
	return b.insert(&Instruction{Opcode: OpRet, typ: b.ctx.Void()}, "")
}

// Ret returns v.
func (b *Builder) Ret(v Value) *Instruction {
	b.check(v)
	if fn := b.Function(); fn != nil && fn.RetType != v.Type() {
		exceptions.Panicf("llvmir: returning %s from function %q of type %s", v.Type(), fn.name, fn.RetType)
	}
	return b.insert(&Instruction{Opcode: OpRet, typ: b.ctx.Void(), operands: []Value{v}}, "")
}

package gpu

import (
	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/gomlx/hlo2llvm/hlo"
	"github.com/gomlx/hlo2llvm/hlo/optypes"
	"github.com/gomlx/hlo2llvm/hlo/shapeinference"
	"github.com/gomlx/hlo2llvm/llvmir"
	"github.com/pkg/errors"
)

// generator returns the value of the element at idx of some array.
type generator func(idx *arrayIndex) (llvmir.Value, error)

type elementKey struct {
	instr *hlo.Instruction
	idx   *arrayIndex
}

// elementalEmitter emits the scalar code computing one element of an instruction, recursively emitting
// the elements of the operands it reads.
//
// Instructions bound to a generator (kernel inputs, fused or reducer parameters) are not emitted, their
// generator is called instead.
type elementalEmitter struct {
	k     *kernel
	b     *llvmir.Builder
	ctx   *llvmir.Context
	cc    CudaComputeCapability
	bound map[*hlo.Instruction]generator
	cache map[elementKey]llvmir.Value
}

func (k *kernel) newElementalEmitter() *elementalEmitter {
	return &elementalEmitter{
		k:     k,
		b:     k.b,
		ctx:   k.c.ctx,
		cc:    k.c.profile.ComputeCapability,
		bound: make(map[*hlo.Instruction]generator),
		cache: make(map[elementKey]llvmir.Value),
	}
}

func (e *elementalEmitter) bind(instr *hlo.Instruction, gen generator) {
	e.bound[instr] = gen
}

// emit returns the value of the element at idx of instr.
func (e *elementalEmitter) emit(instr *hlo.Instruction, idx *arrayIndex) (llvmir.Value, error) {
	key := elementKey{instr: instr, idx: idx}
	if value, found := e.cache[key]; found {
		return value, nil
	}
	var value llvmir.Value
	var err error
	if gen, found := e.bound[instr]; found {
		value, err = gen(idx)
	} else {
		value, err = e.emitInstruction(instr, idx)
	}
	if err != nil {
		return nil, err
	}
	e.cache[key] = value
	return value, nil
}

func (e *elementalEmitter) emitInstruction(instr *hlo.Instruction, idx *arrayIndex) (llvmir.Value, error) {
	op := instr.OpType
	switch {
	case op == optypes.Parameter:
		return nil, errors.Errorf("%s is not bound to any value", instr)

	case op == optypes.Constant:
		if instr.Shape.IsScalar() {
			return literalElement(valueType(e.ctx, instr.Shape.DType), instr.Literal.Values[0]), nil
		}
		return e.k.load(&slot{buffer: e.k.c.constantBuffer(instr), shape: instr.Shape}, idx), nil

	case shapeinference.StandardUnaryOperations.Has(op):
		x, err := e.emit(instr.Operands[0], idx)
		if err != nil {
			return nil, err
		}
		return e.unary(instr, x)

	case shapeinference.StandardBinaryOperations.Has(op):
		operands, err := e.emitOperands(instr, idx, idx)
		if err != nil {
			return nil, err
		}
		return e.binary(instr, operands[0], operands[1])
	}

	switch op {
	case optypes.Compare:
		operands, err := e.emitOperands(instr, idx, idx)
		if err != nil {
			return nil, err
		}
		return e.compare(instr, operands[0], operands[1])

	case optypes.Select:
		operands, err := e.emitOperands(instr, e.scalarOr(instr.Operands[0], idx), idx, idx)
		if err != nil {
			return nil, err
		}
		return e.b.Select(operands[0], operands[1], operands[2], ""), nil

	case optypes.Clamp:
		operands, err := e.emitOperands(instr, e.scalarOr(instr.Operands[0], idx), idx,
			e.scalarOr(instr.Operands[2], idx))
		if err != nil {
			return nil, err
		}
		dtype := instr.Shape.DType
		return e.minimum(dtype, e.maximum(dtype, operands[1], operands[0]), operands[2]), nil

	case optypes.Convert:
		x, err := e.emit(instr.Operands[0], idx)
		if err != nil {
			return nil, err
		}
		return e.convert(x, instr.Operands[0].Shape.DType, instr.Shape.DType), nil

	case optypes.Iota:
		return e.iota(instr, idx)

	case optypes.Bitcast, optypes.Broadcast, optypes.Reshape, optypes.Transpose, optypes.Slice, optypes.Reverse:
		if op == optypes.Bitcast && instr.Operands[0].Shape.DType != instr.Shape.DType {
			return nil, unsupported(instr, "bitcast from %s to %s in a fused computation",
				instr.Operands[0].Shape.DType, instr.Shape.DType)
		}
		source, err := e.k.sourceIndex(instr, idx)
		if err != nil {
			return nil, err
		}
		return e.emit(instr.Operands[0], source)
	}
	return nil, unsupported(instr, "op %s in an elemental computation", op.ToHLO())
}

// emitOperands emits the operands of instr, each one at the corresponding index.
func (e *elementalEmitter) emitOperands(instr *hlo.Instruction, indices ...*arrayIndex) ([]llvmir.Value, error) {
	values := make([]llvmir.Value, len(indices))
	for i, idx := range indices {
		value, err := e.emit(instr.Operands[i], idx)
		if err != nil {
			return nil, err
		}
		values[i] = value
	}
	return values, nil
}

// scalarOr returns the scalar index if operand is a scalar, or idx otherwise.
func (e *elementalEmitter) scalarOr(operand *hlo.Instruction, idx *arrayIndex) *arrayIndex {
	if operand.Shape.IsScalar() && len(idx.dims) > 0 {
		return scalarIndex()
	}
	return idx
}

// floatOp applies fn to args of the floating point dtype. The computation is done in f32 if the device has
// no native arithmetic for dtype, or if forceF32 is set and dtype is a 16 bits float.
func (e *elementalEmitter) floatOp(dtype dtypes.DType, forceF32 bool, fn func(args []llvmir.Value) llvmir.Value,
	args ...llvmir.Value) llvmir.Value {
	upcast := needsUpcast(dtype, e.cc) || (forceF32 && (dtype == dtypes.F16 || dtype == dtypes.BF16))
	if upcast {
		for i, arg := range args {
			args[i] = e.b.FPCast(arg, e.ctx.Float(), "")
		}
	}
	result := fn(args)
	if upcast {
		result = e.b.FPCast(result, valueType(e.ctx, dtype), "")
	}
	return result
}

// callIntrinsic calls the LLVM intrinsic `<name>.<type>`, e.g. `llvm.sqrt.f32`.
func (e *elementalEmitter) callIntrinsic(dtype dtypes.DType, name string, args ...llvmir.Value) llvmir.Value {
	return e.floatOp(dtype, true, func(args []llvmir.Value) llvmir.Value {
		return e.b.Call(e.k.c.intrinsic(name, args[0].Type(), len(args)), args, "")
	}, args...)
}

// callLibdevice calls the libdevice implementation of op, e.g. `__nv_expf`.
func (e *elementalEmitter) callLibdevice(dtype dtypes.DType, op string, args ...llvmir.Value) llvmir.Value {
	return e.floatOp(dtype, true, func(args []llvmir.Value) llvmir.Value {
		return e.b.Call(e.k.c.libdevice(op, args[0].Type(), len(args)), args, "")
	}, args...)
}

var (
	libdeviceUnaryOps = map[optypes.OpType]string{
		optypes.Exp:   "exp",
		optypes.Log:   "log",
		optypes.Tanh:  "tanh",
		optypes.Sin:   "sin",
		optypes.Cos:   "cos",
		optypes.Rsqrt: "rsqrt",
	}
	intrinsicUnaryOps = map[optypes.OpType]string{
		optypes.Sqrt:  "llvm.sqrt",
		optypes.Floor: "llvm.floor",
		optypes.Ceil:  "llvm.ceil",
	}
)

func (e *elementalEmitter) unary(instr *hlo.Instruction, x llvmir.Value) (llvmir.Value, error) {
	b := e.b
	dtype := instr.Operands[0].Shape.DType
	typ := x.Type()
	op := instr.OpType
	if name, found := libdeviceUnaryOps[op]; found {
		return e.callLibdevice(dtype, name, x), nil
	}
	if name, found := intrinsicUnaryOps[op]; found {
		return e.callIntrinsic(dtype, name, x), nil
	}

	switch op {
	case optypes.Copy:
		return x, nil

	case optypes.Not:
		return b.Not(x, ""), nil

	case optypes.Negate:
		if dtype.IsFloat() {
			return e.floatOp(dtype, false, func(args []llvmir.Value) llvmir.Value {
				return b.FNeg(args[0], "")
			}, x), nil
		}
		return b.Sub(llvmir.ConstInt(typ, 0), x, ""), nil

	case optypes.Abs:
		switch {
		case dtype.IsFloat():
			return e.callIntrinsic(dtype, "llvm.fabs", x), nil
		case dtype.IsSigned():
			zero := llvmir.ConstInt(typ, 0)
			isNegative := b.ICmp(llvmir.IntSLT, x, zero, "")
			return b.Select(isNegative, b.Sub(zero, x, ""), x, ""), nil
		}
		return x, nil

	case optypes.Sign:
		return e.sign(dtype, x), nil

	case optypes.Logistic:
		// 1 / (1 + exp(-x))
		return e.floatOp(dtype, true, func(args []llvmir.Value) llvmir.Value {
			t := args[0].Type()
			one := llvmir.ConstFloat(t, 1)
			exp := b.Call(e.k.c.libdevice("exp", t, 1), []llvmir.Value{b.FNeg(args[0], "")}, "")
			return b.FDiv(one, b.FAdd(one, exp, ""), "")
		}, x), nil
	}
	return nil, unsupported(instr, "op %s", op.ToHLO())
}

// sign returns -1, 0 or 1. Float zeros and NaNs are returned unchanged.
func (e *elementalEmitter) sign(dtype dtypes.DType, x llvmir.Value) llvmir.Value {
	b := e.b
	if dtype.IsFloat() {
		return e.floatOp(dtype, false, func(args []llvmir.Value) llvmir.Value {
			t := args[0].Type()
			zero := llvmir.ConstFloat(t, 0)
			isPositive := b.FCmp(llvmir.FloatOGT, args[0], zero, "")
			isNegative := b.FCmp(llvmir.FloatOLT, args[0], zero, "")
			negativeOrSame := b.Select(isNegative, llvmir.ConstFloat(t, -1), args[0], "")
			return b.Select(isPositive, llvmir.ConstFloat(t, 1), negativeOrSame, "")
		}, x)
	}
	typ := x.Type()
	zero := llvmir.ConstInt(typ, 0)
	if dtype == dtypes.PRED {
		return x
	}
	if !dtype.IsSigned() {
		return b.Cast(llvmir.OpZExt, b.ICmp(llvmir.IntNE, x, zero, ""), typ, "")
	}
	isPositive := b.ICmp(llvmir.IntSGT, x, zero, "")
	isNegative := b.ICmp(llvmir.IntSLT, x, zero, "")
	negativeOrZero := b.Select(isNegative, llvmir.ConstInt(typ, -1), zero, "")
	return b.Select(isPositive, llvmir.ConstInt(typ, 1), negativeOrZero, "")
}

func (e *elementalEmitter) binary(instr *hlo.Instruction, x, y llvmir.Value) (llvmir.Value, error) {
	b := e.b
	dtype := instr.Operands[0].Shape.DType
	isFloat := dtype.IsFloat()
	floatBinary := func(fn func(x, y llvmir.Value, name string) *llvmir.Instruction) llvmir.Value {
		return e.floatOp(dtype, false, func(args []llvmir.Value) llvmir.Value {
			return fn(args[0], args[1], "")
		}, x, y)
	}

	switch instr.OpType {
	case optypes.Add:
		if isFloat {
			return floatBinary(b.FAdd), nil
		}
		return b.Add(x, y, ""), nil
	case optypes.Subtract:
		if isFloat {
			return floatBinary(b.FSub), nil
		}
		return b.Sub(x, y, ""), nil
	case optypes.Multiply:
		if isFloat {
			return floatBinary(b.FMul), nil
		}
		return b.Mul(x, y, ""), nil
	case optypes.Divide:
		if isFloat {
			return floatBinary(b.FDiv), nil
		}
		return e.intDivide(dtype, x, y, false), nil
	case optypes.Remainder:
		if isFloat {
			return floatBinary(b.FRem), nil
		}
		return e.intDivide(dtype, x, y, true), nil
	case optypes.Maximum:
		return e.maximum(dtype, x, y), nil
	case optypes.Minimum:
		return e.minimum(dtype, x, y), nil
	case optypes.Power:
		if !isFloat {
			return nil, unsupported(instr, "integer power")
		}
		return e.callLibdevice(dtype, "pow", x, y), nil
	case optypes.And:
		return b.And(x, y, ""), nil
	case optypes.Or:
		return b.Or(x, y, ""), nil
	case optypes.Xor:
		return b.Xor(x, y, ""), nil
	case optypes.ShiftLeft, optypes.ShiftRightLogical, optypes.ShiftRightArithmetic:
		return e.shift(instr.OpType, x, y), nil
	}
	return nil, unsupported(instr, "op %s", instr.OpType.ToHLO())
}

// intDivide returns x/y (or x%y if remainder is set), defined for all inputs: x/0 is -1 and x%0 is x, and
// for signed types MIN/-1 is MIN and MIN%-1 is 0.
func (e *elementalEmitter) intDivide(dtype dtypes.DType, x, y llvmir.Value, remainder bool) llvmir.Value {
	b := e.b
	typ := x.Type()
	zero, one, minusOne := llvmir.ConstInt(typ, 0), llvmir.ConstInt(typ, 1), llvmir.ConstInt(typ, -1)
	isZero := b.ICmp(llvmir.IntEQ, y, zero, "")
	if !dtype.IsSigned() {
		safe := b.Select(isZero, one, y, "")
		if remainder {
			return b.Select(isZero, x, b.URem(x, safe, ""), "")
		}
		return b.Select(isZero, minusOne, b.UDiv(x, safe, ""), "")
	}

	minValue := llvmir.ConstInt(typ, int64(-1)<<(typ.Bits-1))
	overflow := b.And(b.ICmp(llvmir.IntEQ, x, minValue, ""), b.ICmp(llvmir.IntEQ, y, minusOne, ""), "")
	safe := b.Select(b.Or(isZero, overflow, ""), one, y, "")
	if remainder {
		return b.Select(isZero, x, b.Select(overflow, zero, b.SRem(x, safe, ""), ""), "")
	}
	return b.Select(isZero, minusOne, b.Select(overflow, minValue, b.SDiv(x, safe, ""), ""), "")
}

func (e *elementalEmitter) maximum(dtype dtypes.DType, x, y llvmir.Value) llvmir.Value {
	if dtype.IsFloat() {
		return e.callIntrinsic(dtype, "llvm.maxnum", x, y)
	}
	pred := llvmir.IntUGT
	if dtype.IsSigned() {
		pred = llvmir.IntSGT
	}
	return e.b.Select(e.b.ICmp(pred, x, y, ""), x, y, "")
}

func (e *elementalEmitter) minimum(dtype dtypes.DType, x, y llvmir.Value) llvmir.Value {
	if dtype.IsFloat() {
		return e.callIntrinsic(dtype, "llvm.minnum", x, y)
	}
	pred := llvmir.IntULT
	if dtype.IsSigned() {
		pred = llvmir.IntSLT
	}
	return e.b.Select(e.b.ICmp(pred, x, y, ""), x, y, "")
}

// shift shifts x by y bits. Shifts by the bit width or more (or negative) give 0, or the sign for
// arithmetic right shifts.
func (e *elementalEmitter) shift(op optypes.OpType, x, y llvmir.Value) llvmir.Value {
	b := e.b
	typ := x.Type()
	zero := llvmir.ConstInt(typ, 0)
	outOfRange := b.ICmp(llvmir.IntUGE, y, llvmir.ConstInt(typ, int64(typ.Bits)), "")
	switch op {
	case optypes.ShiftLeft:
		return b.Select(outOfRange, zero, b.Shl(x, y, ""), "")
	case optypes.ShiftRightLogical:
		return b.Select(outOfRange, zero, b.LShr(x, y, ""), "")
	}
	signs := b.AShr(x, llvmir.ConstInt(typ, int64(typ.Bits-1)), "")
	return b.Select(outOfRange, signs, b.AShr(x, y, ""), "")
}

var (
	floatPredicates = map[string]llvmir.Predicate{
		"EQ": llvmir.FloatOEQ, "NE": llvmir.FloatUNE,
		"LT": llvmir.FloatOLT, "LE": llvmir.FloatOLE,
		"GT": llvmir.FloatOGT, "GE": llvmir.FloatOGE,
	}
	signedPredicates = map[string]llvmir.Predicate{
		"EQ": llvmir.IntEQ, "NE": llvmir.IntNE,
		"LT": llvmir.IntSLT, "LE": llvmir.IntSLE,
		"GT": llvmir.IntSGT, "GE": llvmir.IntSGE,
	}
	unsignedPredicates = map[string]llvmir.Predicate{
		"EQ": llvmir.IntEQ, "NE": llvmir.IntNE,
		"LT": llvmir.IntULT, "LE": llvmir.IntULE,
		"GT": llvmir.IntUGT, "GE": llvmir.IntUGE,
	}
)

func (e *elementalEmitter) compare(instr *hlo.Instruction, x, y llvmir.Value) (llvmir.Value, error) {
	direction, err := instr.ComparisonDirection()
	if err != nil {
		return nil, err
	}
	dtype := instr.Operands[0].Shape.DType
	if dtype.IsFloat() {
		if needsUpcast(dtype, e.cc) {
			x = e.b.FPCast(x, e.ctx.Float(), "")
			y = e.b.FPCast(y, e.ctx.Float(), "")
		}
		return e.b.FCmp(floatPredicates[direction], x, y, ""), nil
	}
	predicates := unsignedPredicates
	if dtype.IsSigned() {
		predicates = signedPredicates
	}
	return e.b.ICmp(predicates[direction], x, y, ""), nil
}

// convert converts x from dtype from to dtype to. Conversions to PRED compare with zero.
func (e *elementalEmitter) convert(x llvmir.Value, from, to dtypes.DType) llvmir.Value {
	b := e.b
	typ := valueType(e.ctx, to)
	switch {
	case from == to:
		return x
	case to == dtypes.PRED:
		if from.IsFloat() {
			return b.FCmp(llvmir.FloatUNE, x, llvmir.ConstFloat(x.Type(), 0), "")
		}
		return b.ICmp(llvmir.IntNE, x, llvmir.ConstInt(x.Type(), 0), "")
	case from == dtypes.PRED:
		if to.IsFloat() {
			return b.Cast(llvmir.OpUIToFP, x, typ, "")
		}
		return b.Cast(llvmir.OpZExt, x, typ, "")
	case from.IsFloat() && to.IsFloat():
		return b.FPCast(x, typ, "")
	case from.IsFloat():
		if to.IsSigned() {
			return b.Cast(llvmir.OpFPToSI, x, typ, "")
		}
		return b.Cast(llvmir.OpFPToUI, x, typ, "")
	case to.IsFloat():
		if from.IsSigned() {
			return b.Cast(llvmir.OpSIToFP, x, typ, "")
		}
		return b.Cast(llvmir.OpUIToFP, x, typ, "")
	}
	return b.IntCast(x, typ, from.IsSigned(), "")
}

func (e *elementalEmitter) iota(instr *hlo.Instruction, idx *arrayIndex) (llvmir.Value, error) {
	axis, err := instr.IntAttribute("iota_dimension")
	if err != nil {
		return nil, err
	}
	if axis < 0 || axis >= len(idx.dims) {
		return nil, errors.Errorf("%s: iota_dimension %d out of range for rank %d", instr, axis, len(idx.dims))
	}
	value := e.k.multiIndex(idx)[axis]
	dtype := instr.Shape.DType
	typ := valueType(e.ctx, dtype)
	if dtype.IsFloat() {
		return e.b.Cast(llvmir.OpUIToFP, value, typ, ""), nil
	}
	return e.b.IntCast(value, typ, false, ""), nil
}

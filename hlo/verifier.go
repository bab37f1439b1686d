package hlo

import (
	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/gomlx/hlo2llvm/hlo/optypes"
	"github.com/gomlx/hlo2llvm/hlo/shapeinference"
	"github.com/gomlx/hlo2llvm/hlo/shapes"
	"github.com/pkg/errors"
)

// Verify checks that the declared shape of every instruction is consistent with its operands and
// attributes, and that called computations have matching signatures.
//
// Opcodes the GPU lowering doesn't support (dot, convolution, ...) are only checked for being well-formed
// references; they are rejected later, at lowering time.
func Verify(module *Module) error {
	for _, comp := range module.Computations {
		for _, instr := range comp.Instructions {
			if err := verifyInstruction(instr); err != nil {
				return errors.WithMessagef(err, "computation %q", comp.Name)
			}
		}
	}
	return nil
}

func expectOperands(instr *Instruction, count int) error {
	if len(instr.Operands) != count {
		return errors.Errorf("%s expects %d operands, got %d", instr, count, len(instr.Operands))
	}
	return nil
}

func expectShape(instr *Instruction, inferred shapes.Shape, err error) error {
	if err != nil {
		return errors.WithMessagef(err, "%s", instr)
	}
	if !instr.Shape.Equal(inferred) {
		return errors.Errorf("%s declares shape %s, but its operands imply %s", instr, instr.Shape, inferred)
	}
	return nil
}

func verifyInstruction(instr *Instruction) error {
	opType := instr.OpType
	if !instr.Shape.Ok() {
		return errors.Errorf("%s has invalid shape %s", instr, instr.Shape)
	}
	operandShape := func(i int) shapes.Shape { return instr.Operands[i].Shape }

	switch {
	case opType == optypes.Parameter:
		return expectOperands(instr, 0)

	case opType == optypes.Constant:
		if len(instr.Literal.Values) != instr.Shape.Size() {
			return errors.Errorf("%s has %d values for shape %s", instr, len(instr.Literal.Values), instr.Shape)
		}
		return nil

	case shapeinference.StandardUnaryOperations.Has(opType):
		if err := expectOperands(instr, 1); err != nil {
			return err
		}
		inferred, err := shapeinference.UnaryOp(opType, operandShape(0))
		return expectShape(instr, inferred, err)

	case shapeinference.StandardBinaryOperations.Has(opType):
		if err := expectOperands(instr, 2); err != nil {
			return err
		}
		inferred, err := shapeinference.BinaryOp(opType, operandShape(0), operandShape(1))
		return expectShape(instr, inferred, err)

	case shapeinference.ComparisonOperations.Has(opType):
		if err := expectOperands(instr, 2); err != nil {
			return err
		}
		if _, err := instr.ComparisonDirection(); err != nil {
			return err
		}
		inferred, err := shapeinference.ComparisonOp(opType, operandShape(0), operandShape(1))
		return expectShape(instr, inferred, err)
	}

	switch opType {
	case optypes.Select:
		if err := expectOperands(instr, 3); err != nil {
			return err
		}
		inferred, err := shapeinference.Select(operandShape(0), operandShape(1), operandShape(2))
		return expectShape(instr, inferred, err)

	case optypes.Clamp:
		if err := expectOperands(instr, 3); err != nil {
			return err
		}
		inferred, err := shapeinference.Clamp(operandShape(0), operandShape(1), operandShape(2))
		return expectShape(instr, inferred, err)

	case optypes.Convert:
		if err := expectOperands(instr, 1); err != nil {
			return err
		}
		if operandShape(0).IsTuple() || !operandShape(0).EqualDimensions(instr.Shape) {
			return errors.Errorf("%s can't convert %s to %s", instr, operandShape(0), instr.Shape)
		}
		return nil

	case optypes.Bitcast:
		if err := expectOperands(instr, 1); err != nil {
			return err
		}
		if operandShape(0).IsTuple() || instr.Shape.IsTuple() || operandShape(0).Memory() != instr.Shape.Memory() {
			return errors.Errorf("%s can't bitcast %s to %s", instr, operandShape(0), instr.Shape)
		}
		return nil

	case optypes.Tuple:
		elements := make([]shapes.Shape, len(instr.Operands))
		for i := range instr.Operands {
			elements[i] = operandShape(i)
		}
		return expectShape(instr, shapes.MakeTuple(elements...), nil)

	case optypes.GetTupleElement:
		if err := expectOperands(instr, 1); err != nil {
			return err
		}
		index, err := instr.IntAttribute("index")
		if err != nil {
			return err
		}
		inferred, err := operandShape(0).TupleElement(index)
		return expectShape(instr, inferred, err)

	case optypes.Broadcast:
		if err := expectOperands(instr, 1); err != nil {
			return err
		}
		dims, err := instr.IntListAttribute("dimensions")
		if err != nil {
			return err
		}
		return errors.WithMessagef(shapeinference.Broadcast(operandShape(0), instr.Shape, dims), "%s", instr)

	case optypes.Reshape:
		if err := expectOperands(instr, 1); err != nil {
			return err
		}
		return errors.WithMessagef(shapeinference.Reshape(operandShape(0), instr.Shape), "%s", instr)

	case optypes.Transpose:
		if err := expectOperands(instr, 1); err != nil {
			return err
		}
		dims, err := instr.IntListAttribute("dimensions")
		if err != nil {
			return err
		}
		inferred, err := shapeinference.Transpose(operandShape(0), dims)
		return expectShape(instr, inferred, err)

	case optypes.Reverse:
		if err := expectOperands(instr, 1); err != nil {
			return err
		}
		dims, err := instr.IntListAttribute("dimensions")
		if err != nil {
			return err
		}
		for _, axis := range dims {
			if axis < 0 || axis >= instr.Shape.Rank() {
				return errors.Errorf("%s: invalid dimensions=%v", instr, dims)
			}
		}
		return expectShape(instr, operandShape(0), nil)

	case optypes.Slice:
		if err := expectOperands(instr, 1); err != nil {
			return err
		}
		specs, err := instr.SliceAttribute()
		if err != nil {
			return err
		}
		inferred, err := shapeinference.Slice(operandShape(0), specs)
		return expectShape(instr, inferred, err)

	case optypes.Iota:
		if err := expectOperands(instr, 0); err != nil {
			return err
		}
		axis, err := instr.IntAttribute("iota_dimension")
		if err != nil {
			return err
		}
		if instr.Shape.IsTuple() || axis < 0 || axis >= instr.Shape.Rank() {
			return errors.Errorf("%s: iota_dimension=%d out of range for %s", instr, axis, instr.Shape)
		}
		if instr.Shape.DType == dtypes.Bool {
			return errors.Errorf("%s: iota of pred is not supported", instr)
		}
		return nil

	case optypes.Fusion:
		called, err := instr.CalledComputation()
		if err != nil {
			return err
		}
		if len(called.Parameters) != len(instr.Operands) {
			return errors.Errorf("%s has %d operands but fused computation %q has %d parameters",
				instr, len(instr.Operands), called.Name, len(called.Parameters))
		}
		for i, param := range called.Parameters {
			if !param.Shape.Equal(operandShape(i)) {
				return errors.Errorf("%s operand %d has shape %s, but fused parameter has shape %s",
					instr, i, operandShape(i), param.Shape)
			}
		}
		return expectShape(instr, called.Root.Shape, nil)

	case optypes.Reduce:
		called, err := instr.CalledComputation()
		if err != nil {
			return err
		}
		if len(instr.Operands) < 2 || len(instr.Operands)%2 != 0 {
			return errors.Errorf("%s expects pairs of (operand, init value), got %d operands", instr, len(instr.Operands))
		}
		if len(instr.Operands) > 2 {
			// Variadic reduce: left for the lowering to reject.
			return nil
		}
		if len(called.Parameters) != 2 {
			return errors.Errorf("%s: reduction computation %q must have 2 parameters", instr, called.Name)
		}
		dims, err := instr.IntListAttribute("dimensions")
		if err != nil {
			return err
		}
		inferred, err := shapeinference.Reduce(operandShape(0), operandShape(1), dims)
		return expectShape(instr, inferred, err)
	}
	return nil
}

// Package shapeinference calculates the shape resulting from HLO operations and validates its inputs.
//
// The HLO text format declares the shape of every instruction, so the verifier (see hlo.Verify) uses these
// functions to check that the declared shape matches what the operands imply.
//
// It defines a BinaryOp function for shape inference for the elementwise binary functions (no implicit
// broadcasting in HLO: both operands must have the same dimensions), and one function per remaining OpType.
package shapeinference

import (
	"slices"

	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/gomlx/hlo2llvm/hlo/optypes"
	"github.com/gomlx/hlo2llvm/hlo/shapes"
	"github.com/gomlx/hlo2llvm/internal/sets"
	"github.com/pkg/errors"
)

var (
	// StandardUnaryOperations include all operations that have a single operand and an output of the same shape.
	StandardUnaryOperations = sets.MakeWith(
		optypes.Abs,
		optypes.Negate,
		optypes.Exp,
		optypes.Log,
		optypes.Sqrt,
		optypes.Rsqrt,
		optypes.Tanh,
		optypes.Sin,
		optypes.Cos,
		optypes.Floor,
		optypes.Ceil,
		optypes.Not,
		optypes.Logistic,
		optypes.Sign,
		optypes.Copy,
	)

	// StandardBinaryOperations include all operations that have two operands usually named lhs (left-hand-side) and
	// rhs (right-hand-side), of the same shape as the output.
	StandardBinaryOperations = sets.MakeWith(
		optypes.Add,
		optypes.Subtract,
		optypes.Multiply,
		optypes.Divide,
		optypes.Remainder,
		optypes.Maximum,
		optypes.Minimum,
		optypes.Power,
		optypes.And,
		optypes.Or,
		optypes.Xor,
		optypes.ShiftLeft,
		optypes.ShiftRightLogical,
		optypes.ShiftRightArithmetic,
	)

	// FloatOperations operates only on floating point values.
	FloatOperations = sets.MakeWith(
		optypes.Exp,
		optypes.Log,
		optypes.Sqrt,
		optypes.Rsqrt,
		optypes.Tanh,
		optypes.Sin,
		optypes.Cos,
		optypes.Floor,
		optypes.Ceil,
		optypes.Logistic,
	)

	// BitwiseOperations operates only on integer (or boolean, for and/or/xor/not) values.
	BitwiseOperations = sets.MakeWith(
		optypes.And,
		optypes.Or,
		optypes.Xor,
		optypes.Not,
		optypes.ShiftLeft,
		optypes.ShiftRightLogical,
		optypes.ShiftRightArithmetic,
	)

	// ComparisonOperations include all operations that take two inputs and returns booleans with the results of
	// a comparison.
	ComparisonOperations = sets.MakeWith(
		optypes.Compare,
	)
)

// UnaryOp checks the validity of the data type for StandardUnaryOperations and returns the output shape,
// which is the same as the operand.
func UnaryOp(opType optypes.OpType, operand shapes.Shape) (shapes.Shape, error) {
	if !StandardUnaryOperations.Has(opType) {
		return shapes.Invalid(), errors.Errorf("operation %s is not in the StandardUnaryOperations set", opType)
	}
	if err := checkArray(opType, operand); err != nil {
		return shapes.Invalid(), err
	}
	if FloatOperations.Has(opType) && !operand.DType.IsFloat() {
		return shapes.Invalid(), errors.Errorf("operation %s requires a floating point operand, got %s", opType, operand)
	}
	if opType == optypes.Not && operand.DType.IsFloat() {
		return shapes.Invalid(), errors.Errorf("operation %s requires an integer or boolean operand, got %s", opType, operand)
	}
	return operand.Clone(), nil
}

// BinaryOp returns the expected output shape for ops in the StandardBinaryOperations set.
//
// HLO doesn't broadcast implicitly: both operands must have the same dtype and dimensions.
func BinaryOp(opType optypes.OpType, lhsShape, rhsShape shapes.Shape) (shapes.Shape, error) {
	if !StandardBinaryOperations.Has(opType) {
		return shapes.Invalid(), errors.Errorf("operation %s is not in the StandardBinaryOperations set", opType)
	}
	if err := checkArray(opType, lhsShape, rhsShape); err != nil {
		return shapes.Invalid(), err
	}
	if lhsShape.DType != rhsShape.DType {
		return shapes.Invalid(), errors.Errorf("data types (DType) for %s must match, got %s and %s",
			opType, lhsShape, rhsShape)
	}
	if !lhsShape.EqualDimensions(rhsShape) {
		return shapes.Invalid(), errors.Errorf("dimensions for %s must match, got %s and %s", opType, lhsShape, rhsShape)
	}
	if BitwiseOperations.Has(opType) && lhsShape.DType.IsFloat() {
		return shapes.Invalid(), errors.Errorf("operation %s requires integer or boolean operands, got %s", opType, lhsShape)
	}
	return lhsShape.Clone(), nil
}

// ComparisonOp returns the boolean output shape of a comparison.
func ComparisonOp(opType optypes.OpType, lhsShape, rhsShape shapes.Shape) (shapes.Shape, error) {
	if !ComparisonOperations.Has(opType) {
		return shapes.Invalid(), errors.Errorf("operation %s is not in the ComparisonOperations set", opType)
	}
	if err := checkArray(opType, lhsShape, rhsShape); err != nil {
		return shapes.Invalid(), err
	}
	if lhsShape.DType != rhsShape.DType || !lhsShape.EqualDimensions(rhsShape) {
		return shapes.Invalid(), errors.Errorf("operands of %s must have the same shape, got %s and %s",
			opType, lhsShape, rhsShape)
	}
	return shapes.Make(dtypes.Bool, lhsShape.Dimensions...), nil
}

// Select returns the shape of `select(pred, onTrue, onFalse)`. The predicate can be a scalar.
func Select(pred, onTrue, onFalse shapes.Shape) (shapes.Shape, error) {
	if err := checkArray(optypes.Select, pred, onTrue, onFalse); err != nil {
		return shapes.Invalid(), err
	}
	if pred.DType != dtypes.Bool {
		return shapes.Invalid(), errors.Errorf("select predicate must be of type pred, got %s", pred)
	}
	if !onTrue.Equal(onFalse) {
		return shapes.Invalid(), errors.Errorf("select branches must have the same shape, got %s and %s", onTrue, onFalse)
	}
	if !pred.IsScalar() && !pred.EqualDimensions(onTrue) {
		return shapes.Invalid(), errors.Errorf("select predicate %s must be a scalar or match the branches %s", pred, onTrue)
	}
	return onTrue.Clone(), nil
}

// Clamp returns the shape of `clamp(min, operand, max)`. Min and max can be scalars.
func Clamp(minShape, operand, maxShape shapes.Shape) (shapes.Shape, error) {
	if err := checkArray(optypes.Clamp, minShape, operand, maxShape); err != nil {
		return shapes.Invalid(), err
	}
	for _, bound := range []shapes.Shape{minShape, maxShape} {
		if bound.DType != operand.DType {
			return shapes.Invalid(), errors.Errorf("clamp bounds must have dtype %s, got %s", operand.DType, bound)
		}
		if !bound.IsScalar() && !bound.EqualDimensions(operand) {
			return shapes.Invalid(), errors.Errorf("clamp bound %s must be a scalar or match the operand %s", bound, operand)
		}
	}
	return operand.Clone(), nil
}

// Broadcast checks that the operand axes map to output axes of the same dimension.
// `dimensions[i]` is the output axis of the operand axis i.
func Broadcast(operand, output shapes.Shape, dimensions []int) error {
	if err := checkArray(optypes.Broadcast, operand, output); err != nil {
		return err
	}
	if operand.DType != output.DType {
		return errors.Errorf("broadcast can't change dtype from %s to %s", operand, output)
	}
	if len(dimensions) != operand.Rank() {
		return errors.Errorf("broadcast dimensions=%v must have one entry per operand axis of %s", dimensions, operand)
	}
	for operandAxis, outputAxis := range dimensions {
		if outputAxis < 0 || outputAxis >= output.Rank() {
			return errors.Errorf("broadcast dimensions=%v out of range for output %s", dimensions, output)
		}
		if operand.Dimensions[operandAxis] != output.Dimensions[outputAxis] {
			return errors.Errorf("broadcast of %s to %s: operand axis %d doesn't match output axis %d",
				operand, output, operandAxis, outputAxis)
		}
	}
	return nil
}

// Reshape checks that the number of elements is preserved.
func Reshape(operand, output shapes.Shape) error {
	if err := checkArray(optypes.Reshape, operand, output); err != nil {
		return err
	}
	if operand.DType != output.DType || operand.Size() != output.Size() {
		return errors.Errorf("reshape from %s to %s must preserve dtype and number of elements", operand, output)
	}
	return nil
}

// Transpose returns the shape of the operand transposed with the given permutation.
func Transpose(operand shapes.Shape, permutation []int) (shapes.Shape, error) {
	if err := checkArray(optypes.Transpose, operand); err != nil {
		return shapes.Invalid(), err
	}
	if len(permutation) != operand.Rank() {
		return shapes.Invalid(), errors.Errorf("transpose dimensions=%v must be a permutation of the axes of %s",
			permutation, operand)
	}
	sorted := slices.Sorted(slices.Values(permutation))
	for i, axis := range sorted {
		if axis != i {
			return shapes.Invalid(), errors.Errorf("transpose dimensions=%v is not a permutation of the axes of %s",
				permutation, operand)
		}
	}
	output := shapes.Make(operand.DType)
	for _, axis := range permutation {
		output.Dimensions = append(output.Dimensions, operand.Dimensions[axis])
	}
	return output, nil
}

// SliceSpec is the `[start:limit:stride]` of one axis of a slice.
type SliceSpec struct {
	Start, Limit, Stride int
}

// Slice returns the shape of the slice of operand.
func Slice(operand shapes.Shape, specs []SliceSpec) (shapes.Shape, error) {
	if err := checkArray(optypes.Slice, operand); err != nil {
		return shapes.Invalid(), err
	}
	if len(specs) != operand.Rank() {
		return shapes.Invalid(), errors.Errorf("slice needs one [start:limit:stride] per axis of %s, got %d",
			operand, len(specs))
	}
	output := shapes.Make(operand.DType)
	for axis, spec := range specs {
		if spec.Stride <= 0 || spec.Start < 0 || spec.Limit < spec.Start || spec.Limit > operand.Dimensions[axis] {
			return shapes.Invalid(), errors.Errorf("invalid slice [%d:%d:%d] for axis %d of %s",
				spec.Start, spec.Limit, spec.Stride, axis, operand)
		}
		output.Dimensions = append(output.Dimensions, (spec.Limit-spec.Start+spec.Stride-1)/spec.Stride)
	}
	return output, nil
}

// Reduce returns the shape of reducing the given axes of operand.
func Reduce(operand, initValue shapes.Shape, axes []int) (shapes.Shape, error) {
	if err := checkArray(optypes.Reduce, operand, initValue); err != nil {
		return shapes.Invalid(), err
	}
	if !initValue.IsScalar() || initValue.DType != operand.DType {
		return shapes.Invalid(), errors.Errorf("reduce init value must be a scalar of dtype %s, got %s",
			operand.DType, initValue)
	}
	reduced := sets.Make[int](len(axes))
	for _, axis := range axes {
		if axis < 0 || axis >= operand.Rank() || reduced.Has(axis) {
			return shapes.Invalid(), errors.Errorf("invalid reduce dimensions=%v for %s", axes, operand)
		}
		reduced.Insert(axis)
	}
	output := shapes.Make(operand.DType)
	for axis, dim := range operand.Dimensions {
		if !reduced.Has(axis) {
			output.Dimensions = append(output.Dimensions, dim)
		}
	}
	return output, nil
}

func checkArray(opType optypes.OpType, operands ...shapes.Shape) error {
	for _, operand := range operands {
		if operand.IsTuple() {
			return errors.Errorf("operation %s doesn't accept tuple operands, got %s", opType, operand)
		}
		if !operand.Ok() {
			return errors.Errorf("operation %s got an invalid operand shape %s", opType, operand)
		}
	}
	return nil
}

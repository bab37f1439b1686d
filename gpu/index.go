package gpu

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/hlo2llvm/hlo"
	"github.com/gomlx/hlo2llvm/hlo/optypes"
	"github.com/gomlx/hlo2llvm/llvmir"
	"github.com/pkg/errors"
)

// arrayIndex is the index of an element of an array with the given dimensions. It is given by its
// multidimensional index, by its row-major linear index, or both.
type arrayIndex struct {
	dims   []int
	multi  []llvmir.Value
	linear llvmir.Value
}

func scalarIndex() *arrayIndex {
	return &arrayIndex{dims: []int{}, multi: []llvmir.Value{}}
}

// multiIndex returns the multidimensional index of idx, computing it from the linear index if needed.
func (k *kernel) multiIndex(idx *arrayIndex) []llvmir.Value {
	if idx.multi != nil {
		return idx.multi
	}
	b := k.b
	rank := len(idx.dims)
	multi := make([]llvmir.Value, rank)
	stride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		dim := idx.dims[axis]
		if dim == 1 {
			multi[axis] = k.indexConst(0)
			continue
		}
		value := idx.linear
		if stride > 1 {
			value = b.UDiv(value, k.indexConst(stride), "")
		}
		if axis > 0 {
			value = b.URem(value, k.indexConst(dim), "")
		}
		multi[axis] = value
		stride *= dim
	}
	idx.multi = multi
	return multi
}

// linearize returns the row-major linear index of idx in an array of dimensions dims.
func (k *kernel) linearize(idx *arrayIndex, dims []int) llvmir.Value {
	if idx.linear != nil && slices.Equal(idx.dims, dims) {
		return idx.linear
	}
	multi := k.multiIndex(idx)
	if len(multi) != len(dims) {
		exceptions.Panicf("index of rank %d used with dimensions %v", len(multi), dims)
	}
	b := k.b
	var linear llvmir.Value
	stride := 1
	for axis := len(dims) - 1; axis >= 0; axis-- {
		if dims[axis] != 1 {
			term := multi[axis]
			if stride != 1 {
				term = b.Mul(term, k.indexConst(stride), "", "nuw", "nsw")
			}
			if linear == nil {
				linear = term
			} else {
				linear = b.Add(linear, term, "", "nuw", "nsw")
			}
		}
		stride *= dims[axis]
	}
	if linear == nil {
		return k.indexConst(0)
	}
	return linear
}

// sourceIndex returns the index of the operand element that the element at idx of a data movement
// instruction (broadcast, reshape, bitcast, transpose, slice or reverse) is read from.
func (k *kernel) sourceIndex(instr *hlo.Instruction, idx *arrayIndex) (*arrayIndex, error) {
	b := k.b
	operandDims := instr.Operands[0].Shape.Dimensions
	switch instr.OpType {
	case optypes.Reshape, optypes.Bitcast:
		return &arrayIndex{dims: operandDims, linear: k.linearize(idx, instr.Shape.Dimensions)}, nil

	case optypes.Broadcast:
		dims, err := instr.IntListAttribute("dimensions")
		if err != nil {
			return nil, err
		}
		if slices.Equal(operandDims, idx.dims) && isIdentityPermutation(dims) {
			return idx, nil
		}
		multi := k.multiIndex(idx)
		source := make([]llvmir.Value, len(dims))
		for i, axis := range dims {
			source[i] = multi[axis]
		}
		return &arrayIndex{dims: operandDims, multi: source}, nil

	case optypes.Transpose:
		permutation, err := instr.IntListAttribute("dimensions")
		if err != nil {
			return nil, err
		}
		if isIdentityPermutation(permutation) {
			return idx, nil
		}
		multi := k.multiIndex(idx)
		source := make([]llvmir.Value, len(permutation))
		for i, axis := range permutation {
			source[axis] = multi[i]
		}
		return &arrayIndex{dims: operandDims, multi: source}, nil

	case optypes.Slice:
		specs, err := instr.SliceAttribute()
		if err != nil {
			return nil, err
		}
		multi := k.multiIndex(idx)
		source := make([]llvmir.Value, len(specs))
		for axis, spec := range specs {
			value := multi[axis]
			if spec.Stride != 1 {
				value = b.Mul(value, k.indexConst(spec.Stride), "", "nuw", "nsw")
			}
			if spec.Start != 0 {
				value = b.Add(value, k.indexConst(spec.Start), "", "nuw", "nsw")
			}
			source[axis] = value
		}
		return &arrayIndex{dims: operandDims, multi: source}, nil

	case optypes.Reverse:
		axes, err := instr.IntListAttribute("dimensions")
		if err != nil {
			return nil, err
		}
		source := slices.Clone(k.multiIndex(idx))
		for _, axis := range axes {
			source[axis] = b.Sub(k.indexConst(operandDims[axis]-1), source[axis], "", "nuw", "nsw")
		}
		return &arrayIndex{dims: operandDims, multi: source}, nil
	}
	return nil, errors.Errorf("%s doesn't move data", instr)
}

func isIdentityPermutation(permutation []int) bool {
	for i, axis := range permutation {
		if i != axis {
			return false
		}
	}
	return true
}

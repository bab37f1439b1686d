// Package shapes defines Shape, the type of an HLO value: an array of a DType with fixed dimensions
// and a layout, or a tuple of shapes.
package shapes

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/pkg/errors"
)

// Shape is a minimalistic shape representation of an HLO value.
//
// It is defined as a DType (the underlying data type, e.g.: Float32, Int64, etc.) and the dimensions on each
// axis of the array. If len(Dimensions) is 0, it represents a scalar.
//
// Layout holds the minor-to-major order of the axes, as in `f32[2,3]{1,0}`. A nil Layout means the default
// (row-major) layout.
//
// Alternatively a value can represent a "tuple" of sub-values, in which case TupleShapes is set and DType is
// dtypes.Invalid.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
	Layout     []int

	TupleShapes []Shape
}

// Make returns an array shape with the given dtype and dimensions, with the default layout.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	return Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
}

// MakeTuple returns a tuple shape holding the given element shapes.
func MakeTuple(elements ...Shape) Shape {
	// TupleShapes must be non-nil even for the empty tuple.
	return Shape{TupleShapes: append([]Shape{}, elements...)}
}

// Invalid returns an invalid shape, used as the shape returned together with an error.
func Invalid() Shape {
	return Shape{DType: dtypes.Invalid}
}

// Ok returns whether the shape is valid: either a tuple or an array of a known dtype with non-negative
// dimensions.
func (s Shape) Ok() bool {
	if s.IsTuple() {
		return true
	}
	if !s.DType.IsValid() {
		return false
	}
	for _, dim := range s.Dimensions {
		if dim < 0 {
			return false
		}
	}
	return true
}

// IsTuple returns whether the shape is a tuple. The empty tuple `()` is a tuple with no elements.
func (s Shape) IsTuple() bool {
	return s.TupleShapes != nil
}

// TupleSize is an alias to len(Shape.TupleShapes).
func (s Shape) TupleSize() int {
	return len(s.TupleShapes)
}

// IsScalar returns whether the Shape is a scalar array, i.e. its len(Shape.Dimensions) == 0.
func (s Shape) IsScalar() bool { return !s.IsTuple() && s.Rank() == 0 }

// Rank of a shape is the number of axes. A shortcut to len(Shape.Dimensions).
func (s Shape) Rank() int {
	return len(s.Dimensions)
}

// Size returns the number of elements of the array. A scalar has size 1.
func (s Shape) Size() int {
	size := 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return size
}

// Memory returns the number of bytes used to store an array of the given shape.
func (s Shape) Memory() int {
	return s.DType.Size() * s.Size()
}

// HasDefaultLayout returns whether the layout is the default row-major one, `{rank-1, ..., 1, 0}`.
// For tuples, it returns whether all elements have the default layout.
func (s Shape) HasDefaultLayout() bool {
	if s.IsTuple() {
		for _, element := range s.TupleShapes {
			if !element.HasDefaultLayout() {
				return false
			}
		}
		return true
	}
	if s.Layout == nil {
		return true
	}
	if len(s.Layout) != s.Rank() {
		return false
	}
	for i, axis := range s.Layout {
		if axis != s.Rank()-1-i {
			return false
		}
	}
	return true
}

// Equal compares dtype, dimensions and tuple elements, ignoring layouts.
func (s Shape) Equal(s2 Shape) bool {
	if s.IsTuple() != s2.IsTuple() {
		return false
	}
	if s.IsTuple() {
		return slices.EqualFunc(s.TupleShapes, s2.TupleShapes, func(a, b Shape) bool { return a.Equal(b) })
	}
	return s.DType == s2.DType && slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares only the dimensions, ignoring dtype and layout.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return !s.IsTuple() && !s2.IsTuple() && slices.Equal(s.Dimensions, s2.Dimensions)
}

// WithDType returns a copy of the shape with a different dtype.
func (s Shape) WithDType(dtype dtypes.DType) Shape {
	s2 := s.Clone()
	s2.DType = dtype
	return s2
}

// Clone makes a deep copy (including dimensions, layout and tuples) of the given shape.
func (s Shape) Clone() (newS Shape) {
	newS.DType = s.DType
	if s.Dimensions != nil {
		newS.Dimensions = slices.Clone(s.Dimensions)
	}
	if s.Layout != nil {
		newS.Layout = slices.Clone(s.Layout)
	}
	if s.TupleShapes != nil {
		newS.TupleShapes = make([]Shape, len(s.TupleShapes))
		for ii, subS := range s.TupleShapes {
			newS.TupleShapes[ii] = subS.Clone()
		}
	}
	return newS
}

// TupleElement returns the shape of the i-th tuple element.
func (s Shape) TupleElement(i int) (Shape, error) {
	if !s.IsTuple() {
		return Invalid(), errors.Errorf("shape %s is not a tuple", s)
	}
	if i < 0 || i >= len(s.TupleShapes) {
		return Invalid(), errors.Errorf("tuple index %d out of range for shape %s", i, s)
	}
	return s.TupleShapes[i], nil
}

// String implements fmt.Stringer and returns the HLO text representation of the shape.
func (s Shape) String() string {
	return s.ToHLO()
}

// ToHLO returns the HLO text representation of the shape, e.g. `f32[2,3]{1,0}`.
func (s Shape) ToHLO() string {
	var sb strings.Builder
	_ = s.WriteHLO(&sb)
	return sb.String()
}

// WriteHLO writes the HLO text representation of the shape to the given writer.
func (s Shape) WriteHLO(writer io.Writer) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	if s.IsTuple() {
		w("(")
		for i, subShape := range s.TupleShapes {
			if i > 0 {
				w(", ")
			}
			if err != nil {
				return err
			}
			err = subShape.WriteHLO(writer)
		}
		w(")")
		return err
	}

	w("%s[", s.DType.HLOName())
	for i, dim := range s.Dimensions {
		if i > 0 {
			w(",")
		}
		w("%d", dim)
	}
	w("]")
	if s.Layout != nil {
		w("{")
		for i, axis := range s.Layout {
			if i > 0 {
				w(",")
			}
			w("%d", axis)
		}
		w("}")
	}
	return err
}

package hlo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/gomlx/hlo2llvm/hlo/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Literal holds the value of a constant, flattened in row-major order.
//
// Values hold one Go value per element, according to Shape.DType: bool for PRED, int64 for signed integers,
// uint64 for unsigned integers and float64 for all floating point types (already rounded to the precision
// of the dtype).
type Literal struct {
	Shape  shapes.Shape
	Values []any
}

// String returns the HLO text representation of the literal, without the shape.
func (l *Literal) String() string {
	var sb strings.Builder
	if l.Shape.IsScalar() {
		if len(l.Values) == 1 {
			sb.WriteString(formatLiteralValue(l.Values[0]))
		}
		return sb.String()
	}
	var write func(axis, offset int) int
	write = func(axis, offset int) int {
		sb.WriteString("{")
		dim := l.Shape.Dimensions[axis]
		for i := 0; i < dim; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if axis == l.Shape.Rank()-1 {
				sb.WriteString(formatLiteralValue(l.Values[offset]))
				offset++
			} else {
				offset = write(axis+1, offset)
			}
		}
		sb.WriteString("}")
		return offset
	}
	write(0, 0)
	return sb.String()
}

func formatLiteralValue(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		switch {
		case math.IsNaN(v):
			return "nan"
		case math.IsInf(v, 1):
			return "inf"
		case math.IsInf(v, -1):
			return "-inf"
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%d", v)
	}
}

// literalValue converts the text of one literal element to the Go value used for dtype.
// negative is set if the element was preceded by a '-' token (only for inf/nan, numbers carry their sign).
func literalValue(dtype dtypes.DType, text string, negative bool) (any, error) {
	switch {
	case dtype == dtypes.Bool:
		switch text {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, errors.Errorf("invalid pred value %q", text)

	case dtype.IsSigned():
		value, err := strconv.ParseInt(text, 10, dtype.Bits())
		if err != nil {
			return nil, errors.Errorf("invalid %s value %q", dtype.HLOName(), text)
		}
		return value, nil

	case dtype.IsUnsigned():
		value, err := strconv.ParseUint(text, 10, dtype.Bits())
		if err != nil {
			return nil, errors.Errorf("invalid %s value %q", dtype.HLOName(), text)
		}
		return value, nil

	case dtype.IsFloat():
		var value float64
		switch text {
		case "inf":
			value = math.Inf(1)
		case "nan":
			value = math.NaN()
		default:
			var err error
			value, err = strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, errors.Errorf("invalid %s value %q", dtype.HLOName(), text)
			}
		}
		if negative {
			value = -value
		}
		return roundToDType(dtype, value)
	}
	return nil, errors.Errorf("constants of dtype %s are not supported", dtype)
}

// roundToDType rounds a float64 to the precision of the floating point dtype, returning an error if a finite
// value overflows it.
func roundToDType(dtype dtypes.DType, value float64) (float64, error) {
	var rounded float64
	switch dtype {
	case dtypes.F64:
		return value, nil
	case dtypes.F32:
		f32 := float32(value)
		if math32.IsInf(f32, 0) && !math.IsInf(value, 0) {
			return 0, errors.Errorf("value %g overflows f32", value)
		}
		rounded = float64(f32)
	case dtypes.F16:
		f16 := float16.Fromfloat32(float32(value))
		if f16.IsInf(0) && !math.IsInf(value, 0) {
			return 0, errors.Errorf("value %g overflows f16", value)
		}
		rounded = float64(f16.Float32())
	case dtypes.BF16:
		bf16 := BFloat16FromFloat32(float32(value))
		rounded = float64(math32.Float32frombits(uint32(bf16) << 16))
		if math.IsInf(rounded, 0) && !math.IsInf(value, 0) {
			return 0, errors.Errorf("value %g overflows bf16", value)
		}
	default:
		return 0, errors.Errorf("dtype %s is not a float", dtype)
	}
	return rounded, nil
}

// BFloat16FromFloat32 returns the bits of the bfloat16 nearest to f (round to nearest even). NaNs are kept
// quiet.
func BFloat16FromFloat32(f float32) uint16 {
	if math32.IsNaN(f) {
		return 0x7fc0
	}
	bits := math32.Float32bits(f)
	rounding := uint32(0x7fff) + ((bits >> 16) & 1)
	return uint16((bits + rounding) >> 16)
}

package llvmir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gomlx/exceptions"
	"github.com/x448/float16"
)

// Value is anything that can be used as an operand: constants, globals, functions, function parameters,
// basic blocks (as branch targets) and instructions.
type Value interface {
	Type() *Type

	// ref returns how the value is referenced as an operand, without its type, e.g. `%x`, `@g` or `1`.
	ref(slots *slotTracker) string
}

// Constant is a Value known at compile time.
type Constant interface {
	Value
	isConstant()
}

// IntConst is an integer constant. Its value is kept sign-extended to 64 bits.
type IntConst struct {
	typ   *Type
	Value int64
}

// ConstInt returns an integer constant of the given integer type. Values are truncated to the width of typ.
func ConstInt(typ *Type, value int64) *IntConst {
	if !typ.IsInt() {
		exceptions.Panicf("llvmir: ConstInt requires an integer type, got %s", typ)
	}
	if typ.Bits < 64 {
		shift := 64 - typ.Bits
		value = value << shift >> shift
	}
	return &IntConst{typ: typ, Value: value}
}

// ConstBool returns the `i1` constant true or false.
func ConstBool(ctx *Context, value bool) *IntConst {
	if value {
		return ConstInt(ctx.Bool(), 1)
	}
	return ConstInt(ctx.Bool(), 0)
}

func (c *IntConst) Type() *Type { return c.typ }
func (c *IntConst) isConstant() {}
func (c *IntConst) ref(*slotTracker) string {
	if c.typ.Bits == 1 {
		if c.Value != 0 {
			return "true"
		}
		return "false"
	}
	return strconv.FormatInt(c.Value, 10)
}

// FloatConst is a floating point constant. Value is already rounded to the precision of the type.
type FloatConst struct {
	typ   *Type
	Value float64
}

// ConstFloat returns a floating point constant of the given type, rounding value to its precision.
func ConstFloat(typ *Type, value float64) *FloatConst {
	switch typ.Kind {
	case DoubleKind:
	case FloatKind:
		value = float64(float32(value))
	case HalfKind:
		value = float64(float16.Fromfloat32(float32(value)).Float32())
	case BFloatKind:
		value = float64(math32.Float32frombits(uint32(bfloat16Bits(float32(value))) << 16))
	default:
		exceptions.Panicf("llvmir: ConstFloat requires a floating point type, got %s", typ)
	}
	return &FloatConst{typ: typ, Value: value}
}

func (c *FloatConst) Type() *Type             { return c.typ }
func (c *FloatConst) isConstant()             {}
func (c *FloatConst) ref(*slotTracker) string { return FormatFloat(c.typ, c.Value) }

// FormatFloat renders a floating point constant the way LLVM does: `%e` notation (e.g. `1.000000e+00`) for
// float and double when it represents the value exactly, and the hexadecimal form otherwise. Half and
// bfloat are always written in hexadecimal, with the `0xH` and `0xR` prefixes.
func FormatFloat(typ *Type, value float64) string {
	switch typ.Kind {
	case HalfKind:
		return fmt.Sprintf("0xH%04X", float16.Fromfloat32(float32(value)).Bits())
	case BFloatKind:
		return fmt.Sprintf("0xR%04X", bfloat16Bits(float32(value)))
	}
	if !math.IsInf(value, 0) && !math.IsNaN(value) {
		text := strconv.FormatFloat(value, 'e', 6, 64)
		if parsed, err := strconv.ParseFloat(text, 64); err == nil && parsed == value {
			return text
		}
	}
	return fmt.Sprintf("0x%016X", math.Float64bits(value))
}

// bfloat16Bits rounds f to the nearest bfloat16 (ties to even), keeping NaNs quiet.
func bfloat16Bits(f float32) uint16 {
	if math32.IsNaN(f) {
		return 0x7fc0
	}
	bits := math32.Float32bits(f)
	return uint16((bits + 0x7fff + ((bits >> 16) & 1)) >> 16)
}

// ArrayConst is a constant array. An array of only zeros is written as `zeroinitializer`.
type ArrayConst struct {
	typ      *Type
	Elements []Constant
}

// ConstArray returns a constant array with the given elements, which must all be of type elem.
func ConstArray(elem *Type, elements []Constant) *ArrayConst {
	for i, e := range elements {
		if e.Type() != elem {
			exceptions.Panicf("llvmir: ConstArray element #%d has type %s, expected %s", i, e.Type(), elem)
		}
	}
	return &ArrayConst{typ: elem.ctx.Array(elem, len(elements)), Elements: elements}
}

func (c *ArrayConst) Type() *Type { return c.typ }
func (c *ArrayConst) isConstant() {}
func (c *ArrayConst) ref(slots *slotTracker) string {
	if c.isZero() {
		return "zeroinitializer"
	}
	parts := make([]string, len(c.Elements))
	for i, e := range c.Elements {
		parts[i] = typedRef(e, slots)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (c *ArrayConst) isZero() bool {
	for _, e := range c.Elements {
		switch v := e.(type) {
		case *IntConst:
			if v.Value != 0 {
				return false
			}
		case *FloatConst:
			if v.Value != 0 || math.Signbit(v.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// typedRef returns "<type> <ref>", the usual way operands are written.
func typedRef(v Value, slots *slotTracker) string {
	return v.Type().String() + " " + v.ref(slots)
}

// isIdentifier reports whether name can be written without quotes after '%' or '@'.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '$', c == '.', c == '_', c == '-':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// formatName returns name prefixed with sigil ('%' or '@'), quoted if needed.
func formatName(sigil byte, name string) string {
	if isIdentifier(name) {
		return string(sigil) + name
	}
	return string(sigil) + strconv.Quote(name)
}

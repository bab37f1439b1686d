// Package dtypes defines the DType enum for the HLO primitive types understood by the HLO parser and the
// GPU lowering.
//
// The enum values follow the XLA PrimitiveType numbering, so they can be compared with values coming from
// other XLA tools. Only the array types the lowering can emit are listed.
package dtypes

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// DType is an enum that represents the data type of an HLO array element.
type DType int32

const (
	// INVALID primitive type to serve as default.
	INVALID DType = 0

	// PRED are two-state booleans.
	PRED DType = 1

	// S8 and friends are signed integral values of fixed width.
	S8  DType = 2
	S16 DType = 3
	S32 DType = 4
	S64 DType = 5

	// U8 and friends are unsigned integral values of fixed width.
	U8  DType = 6
	U16 DType = 7
	U32 DType = 8
	U64 DType = 9

	// F16 and friends are floating-point values of fixed width.
	F16 DType = 10
	F32 DType = 11
	F64 DType = 12

	// BF16 is the truncated 16 bit floating-point format: 1 bit of sign, 8 bits of exponent and 7 bits of
	// mantissa.
	BF16 DType = 16
)

// Aliases with Go idiomatic names.
const (
	// Invalid (an alias for INVALID) represents an invalid (or not set) dtype.
	Invalid = INVALID

	// Bool (an alias for PRED) is used as the output and input of logic operations.
	Bool = PRED

	Int8  = S8
	Int16 = S16
	Int32 = S32
	Int64 = S64

	Uint8  = U8
	Uint16 = U16
	Uint32 = U32
	Uint64 = U64

	Float16  = F16
	BFloat16 = BF16
	Float32  = F32
	Float64  = F64
)

// hloNames are the spellings used by the HLO text format.
var hloNames = map[DType]string{
	PRED: "pred",
	S8:   "s8",
	S16:  "s16",
	S32:  "s32",
	S64:  "s64",
	U8:   "u8",
	U16:  "u16",
	U32:  "u32",
	U64:  "u64",
	F16:  "f16",
	BF16: "bf16",
	F32:  "f32",
	F64:  "f64",
}

// MapOfNames maps names (HLO spelling, upper-case enum names and Go aliases) to DType.
// Lower-case versions of every name are also included.
var MapOfNames = map[string]DType{
	"INVALID":  INVALID,
	"Invalid":  INVALID,
	"PRED":     PRED,
	"Bool":     PRED,
	"S8":       S8,
	"Int8":     S8,
	"S16":      S16,
	"Int16":    S16,
	"S32":      S32,
	"Int32":    S32,
	"S64":      S64,
	"Int64":    S64,
	"U8":       U8,
	"Uint8":    U8,
	"U16":      U16,
	"Uint16":   U16,
	"U32":      U32,
	"Uint32":   U32,
	"U64":      U64,
	"Uint64":   U64,
	"F16":      F16,
	"Float16":  F16,
	"BF16":     BF16,
	"BFloat16": BF16,
	"F32":      F32,
	"Float32":  F32,
	"F64":      F64,
	"Float64":  F64,
}

func init() {
	// Add a mapping to the lower-case version of dtypes.
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if _, found := MapOfNames[lowerKey]; found {
			continue
		}
		MapOfNames[lowerKey] = MapOfNames[key]
	}
}

// FromHLO returns the DType for the HLO primitive type name (e.g. "f32", "pred"), or INVALID if the name is
// not known.
func FromHLO(name string) DType {
	for dtype, hloName := range hloNames {
		if hloName == name {
			return dtype
		}
	}
	return INVALID
}

// HLOName returns the spelling used by the HLO text format, e.g. "f32".
func (dtype DType) HLOName() string {
	if name, found := hloNames[dtype]; found {
		return name
	}
	return fmt.Sprintf("unknown_dtype<%d>", int32(dtype))
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	switch dtype {
	case INVALID:
		return "INVALID"
	case PRED:
		return "PRED"
	}
	if name, found := hloNames[dtype]; found {
		return strings.ToUpper(name)
	}
	return fmt.Sprintf("DType(%d)", int32(dtype))
}

// IsValid returns whether the dtype is one of the known array types.
func (dtype DType) IsValid() bool {
	_, found := hloNames[dtype]
	return found
}

// IsFloat returns whether dtype is a floating point type.
func (dtype DType) IsFloat() bool {
	return dtype == F16 || dtype == BF16 || dtype == F32 || dtype == F64
}

// IsInt returns whether dtype is an integer type, signed or unsigned.
func (dtype DType) IsInt() bool {
	return dtype.IsSigned() || dtype.IsUnsigned()
}

// IsSigned returns whether dtype is a signed integer.
func (dtype DType) IsSigned() bool {
	return dtype == S8 || dtype == S16 || dtype == S32 || dtype == S64
}

// IsUnsigned returns whether dtype is an unsigned integer.
func (dtype DType) IsUnsigned() bool {
	return dtype == U8 || dtype == U16 || dtype == U32 || dtype == U64
}

// Bits returns the number of bits of one element. PRED uses 1 bit in registers, see Size for memory.
func (dtype DType) Bits() int {
	switch dtype {
	case PRED:
		return 1
	case S8, U8:
		return 8
	case S16, U16, F16, BF16:
		return 16
	case S32, U32, F32:
		return 32
	case S64, U64, F64:
		return 64
	default:
		return 0
	}
}

// Size returns the number of bytes one element takes in memory. PRED is stored as one byte.
func (dtype DType) Size() int {
	if dtype == PRED {
		return 1
	}
	return dtype.Bits() / 8
}

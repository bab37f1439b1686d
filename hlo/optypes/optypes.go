// Package optypes defines OpType, the enum of HLO opcodes known by the parser.
package optypes

import "github.com/pkg/errors"

// OpType is an enum of the HLO opcodes -- not all of them are supported by the GPU lowering.
type OpType int

//go:generate go tool enumer -type OpType optypes.go

const (
	Invalid OpType = iota
	Parameter
	Constant
	Tuple
	GetTupleElement
	Bitcast
	Copy
	Convert

	// Unary elementwise operations.
	Abs
	Negate
	Exp
	Log
	Sqrt
	Rsqrt
	Tanh
	Sin
	Cos
	Floor
	Ceil
	Not
	Logistic
	Sign

	// Binary elementwise operations.
	Add
	Subtract
	Multiply
	Divide
	Remainder
	Maximum
	Minimum
	Power
	And
	Or
	Xor
	ShiftLeft
	ShiftRightLogical
	ShiftRightArithmetic

	// Elementwise operations with special operands or attributes.
	Compare
	Select
	Clamp

	// Data movement: the output element is read from a different index of the operand.
	Broadcast
	Reshape
	Transpose
	Slice
	Reverse
	Iota

	// Operations that call other computations.
	Fusion
	Reduce

	// Known by the parser, but not supported by the GPU lowering.
	Dot
	Convolution
	Concatenate
	Pad
	Gather
	Scatter
	Sort
	While
	Conditional
	Call
	CustomCall
	DynamicSlice
	DynamicUpdateSlice
	ReduceWindow
	AllReduce
	Rng

	// Last should always be kept the last, it is used as a counter/marker.
	Last
)

// hloNames are the opcode spellings used by the HLO text format.
var hloNames = map[OpType]string{
	Parameter:            "parameter",
	Constant:             "constant",
	Tuple:                "tuple",
	GetTupleElement:      "get-tuple-element",
	Bitcast:              "bitcast",
	Copy:                 "copy",
	Convert:              "convert",
	Abs:                  "abs",
	Negate:               "negate",
	Exp:                  "exponential",
	Log:                  "log",
	Sqrt:                 "sqrt",
	Rsqrt:                "rsqrt",
	Tanh:                 "tanh",
	Sin:                  "sine",
	Cos:                  "cosine",
	Floor:                "floor",
	Ceil:                 "ceil",
	Not:                  "not",
	Logistic:             "logistic",
	Sign:                 "sign",
	Add:                  "add",
	Subtract:             "subtract",
	Multiply:             "multiply",
	Divide:               "divide",
	Remainder:            "remainder",
	Maximum:              "maximum",
	Minimum:              "minimum",
	Power:                "power",
	And:                  "and",
	Or:                   "or",
	Xor:                  "xor",
	ShiftLeft:            "shift-left",
	ShiftRightLogical:    "shift-right-logical",
	ShiftRightArithmetic: "shift-right-arithmetic",
	Compare:              "compare",
	Select:               "select",
	Clamp:                "clamp",
	Broadcast:            "broadcast",
	Reshape:              "reshape",
	Transpose:            "transpose",
	Slice:                "slice",
	Reverse:              "reverse",
	Iota:                 "iota",
	Fusion:               "fusion",
	Reduce:               "reduce",
	Dot:                  "dot",
	Convolution:          "convolution",
	Concatenate:          "concatenate",
	Pad:                  "pad",
	Gather:               "gather",
	Scatter:              "scatter",
	Sort:                 "sort",
	While:                "while",
	Conditional:          "conditional",
	Call:                 "call",
	CustomCall:           "custom-call",
	DynamicSlice:         "dynamic-slice",
	DynamicUpdateSlice:   "dynamic-update-slice",
	ReduceWindow:         "reduce-window",
	AllReduce:            "all-reduce",
	Rng:                  "rng",
}

var fromHLOName = make(map[string]OpType, len(hloNames))

func init() {
	for opType, name := range hloNames {
		fromHLOName[name] = opType
	}
}

// ToHLO returns the opcode as spelled in HLO text, e.g. "get-tuple-element".
func (op OpType) ToHLO() string {
	if name, found := hloNames[op]; found {
		return name
	}
	return "unknown_op<" + op.String() + ">"
}

// FromHLO parses an HLO opcode name.
func FromHLO(name string) (OpType, error) {
	if op, found := fromHLOName[name]; found {
		return op, nil
	}
	return Invalid, errors.Errorf("unknown HLO opcode %q", name)
}

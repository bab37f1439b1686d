package gpu

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/gomlx/hlo2llvm/llvmir"
)

// memoryType returns the LLVM type used to store elements of dtype in buffers. PRED is stored as i8.
func memoryType(ctx *llvmir.Context, dtype dtypes.DType) *llvmir.Type {
	switch dtype {
	case dtypes.PRED, dtypes.S8, dtypes.U8:
		return ctx.Int(8)
	case dtypes.S16, dtypes.U16:
		return ctx.Int(16)
	case dtypes.S32, dtypes.U32:
		return ctx.Int(32)
	case dtypes.S64, dtypes.U64:
		return ctx.Int(64)
	case dtypes.F16:
		return ctx.Half()
	case dtypes.BF16:
		return ctx.BFloat()
	case dtypes.F32:
		return ctx.Float()
	case dtypes.F64:
		return ctx.Double()
	}
	exceptions.Panicf("no LLVM type for dtype %s", dtype)
	return nil
}

// valueType returns the LLVM type of elements of dtype once loaded: PRED values are i1.
func valueType(ctx *llvmir.Context, dtype dtypes.DType) *llvmir.Type {
	if dtype == dtypes.PRED {
		return ctx.Bool()
	}
	return memoryType(ctx, dtype)
}

// literalElement converts one element of an hlo.Literal (bool, int64, uint64 or float64) to a constant of
// type typ.
func literalElement(typ *llvmir.Type, value any) llvmir.Constant {
	switch v := value.(type) {
	case bool:
		if v {
			return llvmir.ConstInt(typ, 1)
		}
		return llvmir.ConstInt(typ, 0)
	case int64:
		return llvmir.ConstInt(typ, v)
	case uint64:
		return llvmir.ConstInt(typ, int64(v))
	case float64:
		return llvmir.ConstFloat(typ, v)
	}
	exceptions.Panicf("unexpected literal value %v of type %T", value, value)
	return nil
}

// needsUpcast returns whether arithmetic on dtype must be done in f32 on the given device: bf16 before
// compute capability 8.0 and f16 before 5.3 lack native instructions.
func needsUpcast(dtype dtypes.DType, cc CudaComputeCapability) bool {
	switch dtype {
	case dtypes.BF16:
		return !cc.IsAtLeast(8, 0)
	case dtypes.F16:
		return !cc.IsAtLeast(5, 3)
	}
	return false
}

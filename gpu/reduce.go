package gpu

import (
	"fmt"

	"github.com/gomlx/hlo2llvm/hlo"
	"github.com/gomlx/hlo2llvm/internal/sets"
	"github.com/gomlx/hlo2llvm/llvmir"
	"github.com/pkg/errors"
)

// emitReduce emits a reduce where each thread computes one output element, looping serially over the
// reduced axes of the operand.
func (k *kernel) emitReduce(instr *hlo.Instruction, inputs []*slot, out *slot, idx *arrayIndex) error {
	if len(inputs) != 2 {
		return unsupported(instr, "variadic reduce with %d operands", len(inputs))
	}
	input, init := inputs[0], inputs[1]
	axes, err := instr.IntListAttribute("dimensions")
	if err != nil {
		return err
	}
	reducer, err := instr.CalledComputation()
	if err != nil {
		return err
	}
	if len(reducer.Parameters) != 2 {
		return errors.Errorf("%s: reducer %q must take 2 parameters, it takes %d", instr, reducer.Name,
			len(reducer.Parameters))
	}

	b := k.b
	dtype := out.shape.DType
	accType := valueType(k.c.ctx, dtype)
	align := dtype.Size()
	accumulator := b.Alloca(accType, align, "accumulator")
	b.Store(k.load(init, scalarIndex()), accumulator, align)

	// Kept axes of the operand take the output index, computed ahead of the loops so it dominates them.
	outMulti := k.multiIndex(idx)
	reduced := sets.MakeWith(axes...)
	rank := input.shape.Rank()
	source := make([]llvmir.Value, rank)
	next := 0
	for axis := range rank {
		if !reduced.Has(axis) {
			source[axis] = outMulti[next]
			next++
		}
	}

	var loops []*forLoop
	for axis := range rank {
		if !reduced.Has(axis) {
			continue
		}
		loop := k.startLoop(fmt.Sprintf("reduce.%d", axis), input.shape.Dimensions[axis])
		source[axis] = loop.indvar
		loops = append(loops, loop)
	}

	element := k.load(input, &arrayIndex{dims: input.shape.Dimensions, multi: source})
	current := b.Load(accType, accumulator, align, "")
	result, err := k.applyReducer(reducer, current, element)
	if err != nil {
		return errors.WithMessagef(err, "%s: reducer %q", instr, reducer.Name)
	}
	b.Store(result, accumulator, align)

	for i := len(loops) - 1; i >= 0; i-- {
		k.endLoop(loops[i])
	}
	k.store(b.Load(accType, accumulator, align, ""), out, idx)
	return nil
}

// applyReducer emits the scalar reducer computation applied to (accumulator, element).
func (k *kernel) applyReducer(reducer *hlo.Computation, args ...llvmir.Value) (llvmir.Value, error) {
	if !reducer.Root.Shape.IsScalar() {
		return nil, unsupported(reducer.Root, "non-scalar reducer output %s", reducer.Root.Shape)
	}
	e := k.newElementalEmitter()
	for _, param := range reducer.Parameters {
		value := args[param.ParameterNumber]
		e.bind(param, func(*arrayIndex) (llvmir.Value, error) { return value, nil })
	}
	return e.emit(reducer.Root, scalarIndex())
}

// forLoop is a serial loop `for indvar := 0; indvar < tripCount; indvar++`, with the induction variable
// kept in an alloca.
type forLoop struct {
	prefix  string
	address *llvmir.Instruction
	indvar  llvmir.Value
	header  *llvmir.Block
	exit    *llvmir.Block
}

// startLoop emits the loop header and leaves the builder in the loop body.
func (k *kernel) startLoop(prefix string, tripCount int) *forLoop {
	b := k.b
	align := k.c.indexType.SizeInBits() / 8
	loop := &forLoop{prefix: prefix}
	loop.address = b.Alloca(k.c.indexType, align, prefix+".invar_address")
	b.Store(k.indexConst(0), loop.address, align)
	loop.header = k.fn.NewBlock(prefix + ".loop_header")
	body := k.fn.NewBlock(prefix + ".loop_body")
	loop.exit = k.fn.NewBlock(prefix + ".loop_exit")
	b.Br(loop.header)

	b.SetInsertPoint(loop.header)
	loop.indvar = b.Load(k.c.indexType, loop.address, align, prefix+".indvar")
	done := b.ICmp(llvmir.IntUGE, loop.indvar, k.indexConst(tripCount), "")
	b.CondBr(done, loop.exit, body)
	b.SetInsertPoint(body)
	return loop
}

// endLoop increments the induction variable, jumps back to the header and leaves the builder in the
// loop exit block.
func (k *kernel) endLoop(loop *forLoop) {
	b := k.b
	align := k.c.indexType.SizeInBits() / 8
	next := b.Add(loop.indvar, k.indexConst(1), loop.prefix+".invar_next", "nuw", "nsw")
	b.Store(next, loop.address, align)
	b.Br(loop.header)
	b.SetInsertPoint(loop.exit)
}

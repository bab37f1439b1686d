package gpu

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/gomlx/hlo2llvm/gpu/nvptx"
	"github.com/gomlx/hlo2llvm/hlo"
	"github.com/gomlx/hlo2llvm/hlo/shapes"
	"github.com/gomlx/hlo2llvm/llvmir"
	"github.com/pkg/errors"
)

// kernel holds the state of the kernel function being emitted.
//
// Each thread of the kernel computes one element of the output, at the linear index
// `blockIdx.x * threadsPerBlock + threadIdx.x`.
type kernel struct {
	c      *compiler
	b      *llvmir.Builder
	fn     *llvmir.Function
	launch LaunchDimensions

	// args maps the buffers passed to the kernel to the function parameters, given in order by argBuffers.
	args       map[*buffer]*llvmir.Param
	argBuffers []*buffer
	output     *buffer

	// scopes are the alias scopes of the kernel arguments, empty if noalias metadata is disabled.
	scopes map[*buffer]*llvmir.MDNode

	inBounds *llvmir.Instruction
	body     *llvmir.Block
}

func (c *compiler) newKernel(name string, args []*buffer, output *buffer, launch LaunchDimensions) *kernel {
	ctx := c.ctx
	paramTypes := make([]*llvmir.Type, len(args))
	for i := range paramTypes {
		paramTypes[i] = ctx.Ptr()
	}
	k := &kernel{
		c:          c,
		b:          c.b,
		fn:         c.module.NewFunction(name, ctx.Void(), paramTypes...),
		launch:     launch,
		args:       make(map[*buffer]*llvmir.Param, len(args)),
		argBuffers: args,
		output:     output,
		scopes:     make(map[*buffer]*llvmir.MDNode),
	}
	for i, buf := range args {
		param := k.fn.Param(i).SetName(fmt.Sprintf("arg%d", i)).AddAttributes("noalias", "align 16")
		if bytes := buf.shape.Memory(); bytes > 0 {
			param.AddAttributes(fmt.Sprintf("dereferenceable(%d)", bytes))
		}
		k.args[buf] = param
		if c.options.EnableNoaliasMetadata {
			k.scopes[buf] = c.aliasScope(buf)
		}
	}

	annotations := c.module.NamedMetadata(nvptx.Annotations)
	i32 := ctx.Int(32)
	annotations.Add(
		c.module.MDNode(llvmir.ValueAsMetadata(k.fn), llvmir.MDString(nvptx.KernelAnnotation),
			llvmir.ValueAsMetadata(llvmir.ConstInt(i32, 1))),
		c.module.MDNode(llvmir.ValueAsMetadata(k.fn), llvmir.MDString(nvptx.ReqNTIDXAnnotation),
			llvmir.ValueAsMetadata(llvmir.ConstInt(i32, int64(launch.ThreadsPerBlock)))))
	return k
}

// aliasScope returns the alias scope of a buffer, in the module wide alias domain.
func (c *compiler) aliasScope(buf *buffer) *llvmir.MDNode {
	if c.aliasDomain == nil {
		c.aliasDomain = c.module.MDNode(llvmir.MDString("XLA global AA domain"))
	}
	return c.module.MDNode(
		llvmir.MDString(fmt.Sprintf("buffer: {index:%d, offset:0, size:%d}", buf.index, buf.shape.Memory())),
		c.aliasDomain)
}

// prologue emits the computation of the thread linear index and the bounds check, and leaves the builder
// in the block executed by threads within bounds. It returns the index of the output element of the thread.
func (k *kernel) prologue(outputShape shapes.Shape) *arrayIndex {
	b, ctx := k.b, k.c.ctx
	i32 := ctx.Int(32)
	b.SetInsertPoint(k.fn.NewBlock("entry"))

	blockID := b.Call(k.c.module.GetOrInsertFunction(nvptx.BlockIdxX, i32), nil, "block.id.x")
	blockID.SetMetadata("range", k.c.module.RangeMetadata(i32, 0, int64(k.launch.BlockCount)))
	threadID := b.Call(k.c.module.GetOrInsertFunction(nvptx.ThreadIdxX, i32), nil, "thread.id.x")
	threadID.SetMetadata("range", k.c.module.RangeMetadata(i32, 0, int64(k.launch.ThreadsPerBlock)))

	linear := b.Add(
		b.Mul(b.IntCast(blockID, k.c.indexType, false, "block.id"), k.indexConst(k.launch.ThreadsPerBlock), "",
			"nuw", "nsw"),
		b.IntCast(threadID, k.c.indexType, false, "thread.id"),
		"linear_index", "nuw", "nsw")
	k.inBounds = b.ICmp(llvmir.IntULT, linear, k.indexConst(outputShape.Size()), "linear_index_in_range")

	// The conditional branch is added by finish, once all the blocks of the body exist.
	k.body = k.fn.NewBlock("linear_index_in_range-true")
	b.SetInsertPoint(k.body)
	return &arrayIndex{dims: outputShape.Dimensions, linear: linear}
}

// finish terminates the kernel: threads out of bounds jump directly to the exit block.
func (k *kernel) finish() {
	b := k.b
	last := b.InsertBlock()
	exit := k.fn.NewBlock("linear_index_in_range-after")
	b.SetInsertPoint(k.fn.Blocks()[0])
	b.CondBr(k.inBounds, k.body, exit)
	b.SetInsertPoint(last)
	b.Br(exit)
	b.SetInsertPoint(exit)
	b.RetVoid()
}

func (k *kernel) indexConst(value int) llvmir.Value {
	return llvmir.ConstInt(k.c.indexType, int64(value))
}

// basePointer returns the address of the first element of buf.
func (k *kernel) basePointer(buf *buffer) llvmir.Value {
	if buf.global != nil {
		return buf.global
	}
	param, found := k.args[buf]
	if !found {
		exceptions.Panicf("buffer #%d is not an argument of kernel %q", buf.index, k.fn.Name())
	}
	return param
}

// elementPointer returns the address of the element at idx of the slot.
func (k *kernel) elementPointer(s *slot, idx *arrayIndex) llvmir.Value {
	linear := k.linearize(idx, s.shape.Dimensions)
	elemType := memoryType(k.c.ctx, s.shape.DType)
	return k.b.InBoundsGEP(elemType, k.basePointer(s.buffer), []llvmir.Value{linear}, "")
}

// load reads the element at idx of the slot. PRED values are returned as i1.
func (k *kernel) load(s *slot, idx *arrayIndex) llvmir.Value {
	b, ctx := k.b, k.c.ctx
	dtype := s.shape.DType
	ptr := k.elementPointer(s, idx)
	load := b.Load(memoryType(ctx, dtype), ptr, dtype.Size(), "")
	m := k.c.module
	if k.c.options.EnableInvariantLoadMetadata && s.buffer != k.output {
		load.SetMetadata("invariant.load", m.MDNode())
	}
	if scope, found := k.scopes[s.buffer]; found {
		load.SetMetadata("alias.scope", m.MDNode(scope))
		if s.buffer != k.output {
			load.SetMetadata("noalias", m.MDNode(k.scopes[k.output]))
		}
	}
	if dtype == dtypes.PRED {
		return b.ICmp(llvmir.IntNE, load, llvmir.ConstInt(load.Type(), 0), "")
	}
	return load
}

// store writes value to the element at idx of the slot.
func (k *kernel) store(value llvmir.Value, s *slot, idx *arrayIndex) {
	b, ctx := k.b, k.c.ctx
	dtype := s.shape.DType
	if dtype == dtypes.PRED {
		value = b.Cast(llvmir.OpZExt, value, memoryType(ctx, dtype), "")
	}
	ptr := k.elementPointer(s, idx)
	store := b.Store(value, ptr, dtype.Size())
	scope, found := k.scopes[s.buffer]
	if !found {
		return
	}
	m := k.c.module
	store.SetMetadata("alias.scope", m.MDNode(scope))
	var others []llvmir.Metadata
	for _, buf := range k.argBuffers {
		if buf != s.buffer {
			others = append(others, k.scopes[buf])
		}
	}
	if len(others) > 0 {
		store.SetMetadata("noalias", m.MDNode(others...))
	}
}

// slotGenerator returns a generator that loads elements of s.
func (k *kernel) slotGenerator(s *slot) generator {
	return func(idx *arrayIndex) (llvmir.Value, error) {
		return k.load(s, idx), nil
	}
}

// emitFusion emits the fused computation of a loop fusion, with its parameters reading from the fusion
// operands.
func (k *kernel) emitFusion(instr *hlo.Instruction, inputs []*slot, out *slot, idx *arrayIndex) error {
	if kind, found := instr.Attribute("kind"); found && kind != "kLoop" {
		return unsupported(instr, "fusion kind %s", kind)
	}
	fused, err := instr.CalledComputation()
	if err != nil {
		return err
	}
	if fused.Root.Shape.IsTuple() {
		return unsupported(instr, "multi-output fusion")
	}
	e := k.newElementalEmitter()
	for _, param := range fused.Parameters {
		if param.ParameterNumber >= len(inputs) {
			return errors.Errorf("%s: fused parameter %s has no matching operand", instr, param)
		}
		e.bind(param, k.slotGenerator(&slot{buffer: inputs[param.ParameterNumber].buffer, shape: param.Shape}))
	}
	value, err := e.emit(fused.Root, idx)
	if err != nil {
		return errors.WithMessagef(err, "fused computation %q", fused.Name)
	}
	k.store(value, out, idx)
	return nil
}

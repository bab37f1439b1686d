package gpu

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/hlo2llvm/gpu/nvptx"
	"github.com/gomlx/hlo2llvm/hlo"
	"github.com/gomlx/hlo2llvm/hlo/optypes"
	"github.com/gomlx/hlo2llvm/hlo/shapeinference"
	"github.com/gomlx/hlo2llvm/hlo/shapes"
	"github.com/gomlx/hlo2llvm/internal/sets"
	"github.com/gomlx/hlo2llvm/llvmir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CompileConfig is created with Compile, and is a "builder pattern" to configure the lowering of one HLO
// module.
//
// At a minimum one has to set the device profile (see CompileConfig.WithProfile). Once configured, call
// CompileConfig.Done to lower the module and get back an Artifact or an error.
type CompileConfig struct {
	module  *hlo.Module
	profile *DeviceProfile
	ctx     *llvmir.Context
	options *DebugOptions
	used    bool
}

// Compile starts the configuration of the lowering of module to NVPTX LLVM IR. See CompileConfig.
func Compile(module *hlo.Module) *CompileConfig {
	return &CompileConfig{module: module}
}

// WithProfile sets the device the IR is generated for. It must be called exactly once.
//
// It returns itself (CompileConfig) to allow cascading configuration calls.
func (cc *CompileConfig) WithProfile(profile DeviceProfile) *CompileConfig {
	if cc.profile != nil {
		exceptions.Panicf("gpu.Compile() was given the device profile more than once")
	}
	cc.profile = &profile
	return cc
}

// WithContext sets the LLVM context that owns the generated module. If not set, a new context is created,
// so each lowering is independent of the others.
//
// It returns itself (CompileConfig) to allow cascading configuration calls.
func (cc *CompileConfig) WithContext(ctx *llvmir.Context) *CompileConfig {
	if ctx == nil {
		exceptions.Panicf("gpu.Compile().WithContext() given a nil context")
	}
	if cc.ctx != nil {
		exceptions.Panicf("gpu.Compile() was given the LLVM context more than once")
	}
	cc.ctx = ctx
	return cc
}

// WithDebugOptions sets the debug options. If not set DefaultDebugOptions is used.
//
// It returns itself (CompileConfig) to allow cascading configuration calls.
func (cc *CompileConfig) WithDebugOptions(options DebugOptions) *CompileConfig {
	cc.options = &options
	return cc
}

// Artifact is the result of a lowering: the LLVM module and the kernels it defines.
type Artifact struct {
	Module  *llvmir.Module
	Kernels []KernelThunk
}

// KernelThunk describes one kernel of the module and how it must be launched.
type KernelThunk struct {
	// Name of the kernel function in the LLVM module.
	Name string

	// Instruction is the name of the HLO instruction the kernel computes.
	Instruction string

	Launch LaunchDimensions
}

// Done lowers the module. The CompileConfig can't be used after Done is called.
func (cc *CompileConfig) Done() (*Artifact, error) {
	if cc.used {
		return nil, errors.New("CompileConfig used more than once, which is not supported -- call gpu.Compile() again")
	}
	cc.used = true
	if cc.module == nil || cc.module.Entry == nil {
		return nil, errors.New("no HLO module given to gpu.Compile()")
	}
	if cc.profile == nil {
		return nil, errors.New("no device profile given to gpu.Compile(), use gpu.Compile().WithProfile()")
	}
	if err := cc.profile.Validate(); err != nil {
		return nil, err
	}
	options := DefaultDebugOptions()
	if cc.options != nil {
		options = *cc.options
	}
	ctx := cc.ctx
	if ctx == nil {
		ctx = llvmir.NewContext()
	}

	c := newCompiler(cc.module, *cc.profile, options, ctx)
	var compileErr error
	err := exceptions.TryCatch[error](func() { compileErr = c.compile() })
	if err == nil {
		err = compileErr
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering module %q", cc.module.Name)
	}
	return &Artifact{Module: c.module, Kernels: c.kernels}, nil
}

// UnsupportedError is returned for HLO constructs the lowering doesn't implement.
type UnsupportedError struct {
	What        string
	Instruction *hlo.Instruction
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s in %s", e.What, e.Instruction)
}

func unsupported(instr *hlo.Instruction, format string, args ...any) error {
	return errors.WithStack(&UnsupportedError{What: fmt.Sprintf(format, args...), Instruction: instr})
}

// kernelOps are the operations lowered to a kernel of their own.
var kernelOps = sets.MakeWith(
	optypes.Compare,
	optypes.Select,
	optypes.Clamp,
	optypes.Convert,
	optypes.Broadcast,
	optypes.Reshape,
	optypes.Transpose,
	optypes.Slice,
	optypes.Reverse,
	optypes.Iota,
	optypes.Fusion,
	optypes.Reduce,
)

func init() {
	for op := range shapeinference.StandardUnaryOperations {
		kernelOps.Insert(op)
	}
	for op := range shapeinference.StandardBinaryOperations {
		kernelOps.Insert(op)
	}
}

// buffer is one allocation: an entry parameter, a constant, or the output of a kernel.
type buffer struct {
	index int
	shape shapes.Shape

	// global holds the value of constants, nil for everything else.
	global *llvmir.Global
}

// slot is where the value of an instruction lives: a buffer viewed with the instruction shape, or a tuple
// of slots.
type slot struct {
	buffer   *buffer
	shape    shapes.Shape
	elements []*slot
}

type compiler struct {
	hloModule *hlo.Module
	profile   DeviceProfile
	options   DebugOptions

	ctx       *llvmir.Context
	module    *llvmir.Module
	b         *llvmir.Builder
	indexType *llvmir.Type

	slots     map[*hlo.Instruction]*slot
	constants map[*hlo.Instruction]*buffer
	buffers   []*buffer
	kernels   []KernelThunk

	aliasDomain *llvmir.MDNode
}

func newCompiler(module *hlo.Module, profile DeviceProfile, options DebugOptions, ctx *llvmir.Context) *compiler {
	c := &compiler{
		hloModule: module,
		profile:   profile,
		options:   options,
		ctx:       ctx,
		slots:     make(map[*hlo.Instruction]*slot),
		constants: make(map[*hlo.Instruction]*buffer),
	}
	c.module = ctx.NewModule(module.Name)
	c.module.TargetTriple = profile.TargetTriple
	c.module.DataLayout = profile.DataLayout
	c.b = llvmir.NewBuilder(c.module)
	c.indexType = ctx.Int(8 * profile.PointerSize)
	return c
}

func (c *compiler) compile() error {
	klog.V(1).Infof("Lowering HLO module %q for %s", c.hloModule.Name, c.profile)
	i32 := c.ctx.Int(32)
	ftz := int64(0)
	if c.options.FTZ {
		ftz = 1
	}
	c.module.NamedMetadata(nvptx.ModuleFlags).Add(c.module.MDNode(
		llvmir.ValueAsMetadata(llvmir.ConstInt(i32, nvptx.ModuleFlagOverride)),
		llvmir.MDString(nvptx.ReflectFTZFlag),
		llvmir.ValueAsMetadata(llvmir.ConstInt(i32, ftz))))

	// Kernels index every array as row-major.
	for _, comp := range c.hloModule.Computations {
		for _, instr := range comp.Instructions {
			if !instr.Shape.HasDefaultLayout() {
				return unsupported(instr, "non-default layout %s", instr.Shape.ToHLO())
			}
		}
	}

	for _, instr := range c.hloModule.Entry.PostOrder() {
		klog.V(2).Infof("  %s: %s", instr, instr.Shape)
		if err := c.lowerInstruction(instr); err != nil {
			return err
		}
	}
	klog.V(1).Infof("Module %q: %d kernels, %d buffers", c.hloModule.Name, len(c.kernels), len(c.buffers))
	return nil
}

func (c *compiler) newBuffer(shape shapes.Shape) *buffer {
	buf := &buffer{index: len(c.buffers), shape: shape}
	c.buffers = append(c.buffers, buf)
	return buf
}

// newSlot allocates buffers for a value of the given shape, one per tuple leaf.
func (c *compiler) newSlot(shape shapes.Shape) *slot {
	if shape.IsTuple() {
		s := &slot{shape: shape}
		for _, element := range shape.TupleShapes {
			s.elements = append(s.elements, c.newSlot(element))
		}
		return s
	}
	return &slot{buffer: c.newBuffer(shape), shape: shape}
}

// constantBuffer returns the buffer of a constant, backed by a private module global named
// `buffer_for_<name>`.
func (c *compiler) constantBuffer(instr *hlo.Instruction) *buffer {
	if buf, found := c.constants[instr]; found {
		return buf
	}
	dtype := instr.Shape.DType
	elemType := memoryType(c.ctx, dtype)
	elements := make([]llvmir.Constant, len(instr.Literal.Values))
	for i, value := range instr.Literal.Values {
		elements[i] = literalElement(elemType, value)
	}
	global := c.module.NewGlobal("buffer_for_"+sanitizeName(instr.Name), llvmir.ConstArray(elemType, elements))
	global.Linkage = llvmir.PrivateLinkage
	global.IsConstant = true
	global.UnnamedAddr = true
	global.Align = 64
	buf := c.newBuffer(instr.Shape)
	buf.global = global
	c.constants[instr] = buf
	return buf
}

func (c *compiler) lowerInstruction(instr *hlo.Instruction) error {
	switch instr.OpType {
	case optypes.Parameter:
		c.slots[instr] = c.newSlot(instr.Shape)
		return nil

	case optypes.Constant:
		if instr.Shape.IsTuple() {
			return unsupported(instr, "tuple constant")
		}
		c.slots[instr] = &slot{buffer: c.constantBuffer(instr), shape: instr.Shape}
		return nil

	case optypes.Tuple:
		s := &slot{shape: instr.Shape}
		for _, operand := range instr.Operands {
			s.elements = append(s.elements, c.slots[operand])
		}
		c.slots[instr] = s
		return nil

	case optypes.GetTupleElement:
		index, err := instr.IntAttribute("index")
		if err != nil {
			return err
		}
		tuple := c.slots[instr.Operands[0]]
		if index < 0 || index >= len(tuple.elements) {
			return errors.Errorf("%s: tuple index %d out of range for %s", instr, index, tuple.shape)
		}
		c.slots[instr] = tuple.elements[index]
		return nil

	case optypes.Bitcast:
		operand := c.slots[instr.Operands[0]]
		if operand.buffer == nil || instr.Shape.IsTuple() {
			return unsupported(instr, "bitcast of tuple")
		}
		c.slots[instr] = &slot{buffer: operand.buffer, shape: instr.Shape}
		return nil
	}

	if !kernelOps.Has(instr.OpType) {
		return unsupported(instr, "op %s", instr.OpType.ToHLO())
	}
	if instr.Shape.IsTuple() {
		return unsupported(instr, "tuple output of %s", instr.OpType.ToHLO())
	}
	out := &slot{buffer: c.newBuffer(instr.Shape), shape: instr.Shape}
	c.slots[instr] = out
	if instr.Shape.Size() == 0 {
		klog.V(1).Infof("  %s has no elements: no kernel emitted", instr)
		return nil
	}
	return c.emitKernel(instr, out)
}

// kernelInputs returns the slots read by the kernel computing instr, in operand order.
func (c *compiler) kernelInputs(instr *hlo.Instruction) ([]*slot, error) {
	inputs := make([]*slot, len(instr.Operands))
	for i, operand := range instr.Operands {
		s := c.slots[operand]
		if s == nil {
			return nil, errors.Errorf("%s: operand %s was not lowered", instr, operand)
		}
		if s.buffer == nil {
			return nil, unsupported(instr, "tuple operand #%d", i)
		}
		inputs[i] = s
	}
	return inputs, nil
}

func (c *compiler) emitKernel(instr *hlo.Instruction, out *slot) error {
	name := c.kernelName(instr)
	launch, err := CalculateLaunchDimensions(instr.Shape.Size(), c.profile.DeviceInfo)
	if err != nil {
		return errors.WithMessagef(err, "kernel for %s", instr)
	}
	// Loop and reduce kernels use no shared memory, so SharedMemoryPerBlock never limits them.
	inputs, err := c.kernelInputs(instr)
	if err != nil {
		return err
	}

	// Arguments: distinct non-constant buffers in first use order, then the output.
	var args []*buffer
	seen := sets.Make[*buffer]()
	for _, input := range inputs {
		if input.buffer.global != nil || seen.Has(input.buffer) {
			continue
		}
		seen.Insert(input.buffer)
		args = append(args, input.buffer)
	}
	args = append(args, out.buffer)

	k := c.newKernel(name, args, out.buffer, launch)
	index := k.prologue(instr.Shape)
	switch instr.OpType {
	case optypes.Reduce:
		err = k.emitReduce(instr, inputs, out, index)
	case optypes.Fusion:
		err = k.emitFusion(instr, inputs, out, index)
	default:
		e := k.newElementalEmitter()
		for i, operand := range instr.Operands {
			e.bind(operand, k.slotGenerator(inputs[i]))
		}
		var value llvmir.Value
		value, err = e.emit(instr, index)
		if err == nil {
			k.store(value, out, index)
		}
	}
	if err != nil {
		return err
	}
	k.finish()

	c.kernels = append(c.kernels, KernelThunk{Name: name, Instruction: instr.Name, Launch: launch})
	klog.V(1).Infof("  kernel %s for %s: %s, %d args, %d waves", name, instr, launch, len(args),
		launch.Waves(c.profile.DeviceInfo))
	return nil
}

// kernelName returns the function name for the kernel computing instr: the instruction name with
// characters not valid in PTX identifiers replaced by '_', made unique within the module.
//
// Names starting with nvptx.LibdevicePrefix get an extra '_', since libdevice functions may be declared
// after the kernel. Intrinsic names contain '.', so they never clash with a sanitized name.
func (c *compiler) kernelName(instr *hlo.Instruction) string {
	base := sanitizeName(instr.Name)
	if strings.HasPrefix(base, nvptx.LibdevicePrefix) {
		base = "_" + base
	}
	name := base
	for i := 1; c.module.Function(name) != nil; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

func sanitizeName(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

// intrinsic declares (if needed) and returns the overloaded LLVM intrinsic `<name>.<type suffix>`, with
// numArgs arguments of type typ.
func (c *compiler) intrinsic(name string, typ *llvmir.Type, numArgs int) *llvmir.Function {
	params := make([]*llvmir.Type, numArgs)
	for i := range params {
		params[i] = typ
	}
	return c.module.GetOrInsertFunction(name+"."+intrinsicSuffix(typ), typ, params...)
}

// libdevice declares (if needed) and returns the libdevice implementation of op for typ, which must be
// float or double.
func (c *compiler) libdevice(op string, typ *llvmir.Type, numArgs int) *llvmir.Function {
	params := make([]*llvmir.Type, numArgs)
	for i := range params {
		params[i] = typ
	}
	return c.module.GetOrInsertFunction(nvptx.Libdevice(op, typ.Kind == llvmir.DoubleKind), typ, params...)
}

func intrinsicSuffix(typ *llvmir.Type) string {
	switch typ.Kind {
	case llvmir.HalfKind:
		return "f16"
	case llvmir.BFloatKind:
		return "bf16"
	case llvmir.FloatKind:
		return "f32"
	case llvmir.DoubleKind:
		return "f64"
	}
	return typ.String()
}

package llvmir

import (
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
)

// Module is an LLVM module: globals, functions (definitions and declarations) and metadata.
// Create it with Context.NewModule.
type Module struct {
	ctx *Context

	// Name is written as the `; ModuleID` and the `source_filename`.
	Name string

	DataLayout, TargetTriple string

	globals   []*Global
	functions []*Function
	named     []*NamedMetadata

	// symbols holds the names of globals and functions, to keep them unique.
	symbols    map[string]bool
	lastUnique int

	// mdNodes uniques metadata nodes by their contents.
	mdNodes map[string]*MDNode
}

// NewModule creates an empty module owned by ctx.
func (ctx *Context) NewModule(name string) *Module {
	return &Module{
		ctx:     ctx,
		Name:    name,
		symbols: make(map[string]bool),
		mdNodes: make(map[string]*MDNode),
	}
}

// Context that owns the module.
func (m *Module) Context() *Context { return m.ctx }

// Globals in the order they were created.
func (m *Module) Globals() []*Global { return m.globals }

// Functions (definitions and declarations) in the order they were created.
func (m *Module) Functions() []*Function { return m.functions }

// Function returns the function with the given name, or nil.
func (m *Module) Function(name string) *Function {
	for _, fn := range m.functions {
		if fn.name == name {
			return fn
		}
	}
	return nil
}

// NamedMetadata returns the named metadata with the given name, creating it if needed.
func (m *Module) NamedMetadata(name string) *NamedMetadata {
	for _, nm := range m.named {
		if nm.Name == name {
			return nm
		}
	}
	nm := &NamedMetadata{Name: name}
	m.named = append(m.named, nm)
	return nm
}

// uniqueSymbol returns name, or name with a ".<n>" suffix if it is already taken.
func (m *Module) uniqueSymbol(name string) string {
	unique := name
	for m.symbols[unique] {
		m.lastUnique++
		unique = name + "." + strconv.Itoa(m.lastUnique)
	}
	m.symbols[unique] = true
	return unique
}

func (m *Module) checkContext(v Value) {
	if v.Type().ctx != m.ctx {
		exceptions.Panicf("llvmir: value of type %s belongs to a different Context than module %q", v.Type(), m.Name)
	}
}

// Linkage of globals and functions.
type Linkage string

const (
	ExternalLinkage Linkage = ""
	PrivateLinkage  Linkage = "private"
	InternalLinkage Linkage = "internal"
)

// Global is a module level variable. As a Value, it is the pointer to the variable.
type Global struct {
	module *Module
	name   string

	// ValueType is the type of the variable itself (the Global value is a `ptr`).
	ValueType   *Type
	Initializer Constant

	Linkage     Linkage
	IsConstant  bool
	UnnamedAddr bool
	Align       int
}

// NewGlobal adds a global variable with the given initializer. The name is made unique if needed.
func (m *Module) NewGlobal(name string, init Constant) *Global {
	m.checkContext(init)
	g := &Global{module: m, name: m.uniqueSymbol(name), ValueType: init.Type(), Initializer: init}
	m.globals = append(m.globals, g)
	return g
}

// Name of the global, without the '@'.
func (g *Global) Name() string              { return g.name }
func (g *Global) Type() *Type               { return g.module.ctx.Ptr() }
func (g *Global) isConstant()               {}
func (g *Global) ref(_ *slotTracker) string { return formatName('@', g.name) }

// Function is a function definition, or a declaration if it has no blocks.
// As a Value, it is the pointer to the function.
type Function struct {
	module  *Module
	name    string
	RetType *Type
	params  []*Param
	blocks  []*Block
	Linkage Linkage

	// Local names already used, and the counter used to make them unique.
	localNames map[string]bool
	lastUnique int
}

// NewFunction adds a function with the given return and parameter types.
// The name is kept as given: it panics if the module already has a symbol with that name.
func (m *Module) NewFunction(name string, retType *Type, paramTypes ...*Type) *Function {
	if m.symbols[name] {
		exceptions.Panicf("llvmir: module %q already has a symbol named %q", m.Name, name)
	}
	m.symbols[name] = true
	fn := &Function{module: m, name: name, RetType: retType, localNames: make(map[string]bool)}
	for i, pt := range append([]*Type{retType}, paramTypes...) {
		if pt.ctx != m.ctx {
			exceptions.Panicf("llvmir: type %s of function %q (#%d) belongs to a different Context", pt, name, i)
		}
	}
	for i, pt := range paramTypes {
		fn.params = append(fn.params, &Param{fn: fn, typ: pt, index: i})
	}
	m.functions = append(m.functions, fn)
	return fn
}

// GetOrInsertFunction returns the function with the given name, declaring it if it doesn't exist yet.
// It panics if the existing function has a different signature.
func (m *Module) GetOrInsertFunction(name string, retType *Type, paramTypes ...*Type) *Function {
	fn := m.Function(name)
	if fn == nil {
		return m.NewFunction(name, retType, paramTypes...)
	}
	same := fn.RetType == retType && len(fn.params) == len(paramTypes)
	for i := 0; same && i < len(paramTypes); i++ {
		same = fn.params[i].typ == paramTypes[i]
	}
	if !same {
		exceptions.Panicf("llvmir: function %q redeclared with a different signature", name)
	}
	return fn
}

// Name of the function, without the '@'.
func (fn *Function) Name() string { return fn.name }

// Module that holds the function.
func (fn *Function) Module() *Module { return fn.module }

// Params of the function.
func (fn *Function) Params() []*Param { return fn.params }

// Param returns the i-th parameter.
func (fn *Function) Param(i int) *Param { return fn.params[i] }

// Blocks of the function, the first one is the entry block.
func (fn *Function) Blocks() []*Block { return fn.blocks }

// IsDeclaration returns whether the function has no body.
func (fn *Function) IsDeclaration() bool { return len(fn.blocks) == 0 }

func (fn *Function) Type() *Type               { return fn.module.ctx.Ptr() }
func (fn *Function) isConstant()               {}
func (fn *Function) ref(_ *slotTracker) string { return formatName('@', fn.name) }

// NewBlock appends a basic block to the function. The name is made unique within the function.
func (fn *Function) NewBlock(name string) *Block {
	if name == "" {
		name = "bb"
	}
	block := &Block{fn: fn, name: fn.uniqueLocal(name)}
	fn.blocks = append(fn.blocks, block)
	return block
}

// uniqueLocal returns name, or name with a numeric suffix if already used in the function.
// Empty names stay empty (the value will be numbered when written).
func (fn *Function) uniqueLocal(name string) string {
	if name == "" {
		return ""
	}
	unique := name
	for fn.localNames[unique] {
		fn.lastUnique++
		unique = name + strconv.Itoa(fn.lastUnique)
	}
	fn.localNames[unique] = true
	return unique
}

// Param is a function parameter.
type Param struct {
	fn    *Function
	typ   *Type
	index int
	name  string

	// Attributes written before the parameter name, e.g. "noalias", "align 16".
	Attributes []string
}

// SetName sets the name of the parameter, made unique within the function.
func (p *Param) SetName(name string) *Param {
	p.name = p.fn.uniqueLocal(name)
	return p
}

// Name of the parameter, without the '%'. It may be empty.
func (p *Param) Name() string { return p.name }

// Index of the parameter in the function signature.
func (p *Param) Index() int { return p.index }

// AddAttributes appends parameter attributes.
func (p *Param) AddAttributes(attrs ...string) *Param {
	p.Attributes = append(p.Attributes, attrs...)
	return p
}

func (p *Param) Type() *Type { return p.typ }
func (p *Param) ref(slots *slotTracker) string {
	if p.name != "" {
		return formatName('%', p.name)
	}
	return "%" + strconv.Itoa(slots.local(p))
}

// Block is a basic block. As a Value it is a branch target, of type label.
type Block struct {
	fn           *Function
	name         string
	instructions []*Instruction
}

// Name of the block.
func (b *Block) Name() string { return b.name }

// Parent function.
func (b *Block) Parent() *Function { return b.fn }

// Instructions in the block.
func (b *Block) Instructions() []*Instruction { return b.instructions }

// Terminator returns the last instruction if it is a terminator, or nil.
func (b *Block) Terminator() *Instruction {
	if len(b.instructions) == 0 {
		return nil
	}
	last := b.instructions[len(b.instructions)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

func (b *Block) Type() *Type               { return b.fn.module.ctx.Label() }
func (b *Block) ref(_ *slotTracker) string { return formatName('%', b.name) }

// Metadata is an operand of a metadata node: a string, a value, or another node.
type Metadata interface {
	// key uniquely identifies the contents, independently of the node numbering.
	key() string
	mdRef(slots *slotTracker) string
}

// MDString is a metadata string, written as `!"text"`.
type MDString string

func (s MDString) key() string                 { return "!" + strconv.Quote(string(s)) }
func (s MDString) mdRef(_ *slotTracker) string { return "!" + strconv.Quote(string(s)) }

type valueMetadata struct {
	value Value
}

// ValueAsMetadata wraps a constant or global value to be used in a metadata node, e.g. `i32 1` or
// `ptr @kernel`.
func ValueAsMetadata(v Constant) Metadata {
	return valueMetadata{value: v}
}

func (vm valueMetadata) key() string                     { return typedRef(vm.value, nil) }
func (vm valueMetadata) mdRef(slots *slotTracker) string { return typedRef(vm.value, slots) }

// MDNode is a numbered metadata node `!{...}`. Nodes are uniqued per module: see Module.MDNode.
type MDNode struct {
	Elements []Metadata
	uniqueID string
}

// MDNode returns the node with the given elements, creating it if the module doesn't have one yet.
func (m *Module) MDNode(elements ...Metadata) *MDNode {
	parts := make([]string, len(elements))
	for i, e := range elements {
		if vm, ok := e.(valueMetadata); ok {
			m.checkContext(vm.value)
		}
		parts[i] = e.key()
	}
	uniqueID := "!{" + strings.Join(parts, ", ") + "}"
	if node, found := m.mdNodes[uniqueID]; found {
		return node
	}
	node := &MDNode{Elements: elements, uniqueID: uniqueID}
	m.mdNodes[uniqueID] = node
	return node
}

func (n *MDNode) key() string                     { return n.uniqueID }
func (n *MDNode) mdRef(slots *slotTracker) string { return "!" + strconv.Itoa(slots.metadata(n)) }

// RangeMetadata returns the node used with `!range` for values in [low, high).
func (m *Module) RangeMetadata(typ *Type, low, high int64) *MDNode {
	return m.MDNode(ValueAsMetadata(ConstInt(typ, low)), ValueAsMetadata(ConstInt(typ, high)))
}

// NamedMetadata is module level metadata, e.g. `!nvvm.annotations = !{!0, !1}`.
type NamedMetadata struct {
	Name  string
	Nodes []*MDNode
}

// Add appends nodes to the named metadata.
func (nm *NamedMetadata) Add(nodes ...*MDNode) {
	nm.Nodes = append(nm.Nodes, nodes...)
}

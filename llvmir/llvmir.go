// Package llvmir builds LLVM IR modules in memory and renders them in the textual `.ll` format.
//
// It covers what the GPU lowering needs: scalar and array types, constants, globals, functions with
// parameter attributes, basic blocks, a Builder for the usual arithmetic, memory and control flow
// instructions, and metadata (named metadata, `!range`, `!invariant.load`, ...).
//
// Types and values belong to a Context. Using a value of one Context in a module of another is a
// programming error and panics (with exceptions.Panicf); API boundaries that take user input catch it with
// exceptions.TryCatch.
//
// Example:
//
//	ctx := llvmir.NewContext()
//	m := ctx.NewModule("add")
//	fn := m.NewFunction("add_one", ctx.Int(32), ctx.Int(32))
//	b := llvmir.NewBuilder(m)
//	b.SetInsertPoint(fn.NewBlock("entry"))
//	b.Ret(b.Add(fn.Param(0), llvmir.ConstInt(ctx.Int(32), 1), "sum"))
//	_ = m.Write(os.Stdout)
package llvmir

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// TypeKind enumerates the kinds of types supported.
type TypeKind int

const (
	VoidKind TypeKind = iota
	IntKind
	HalfKind
	BFloatKind
	FloatKind
	DoubleKind
	PtrKind
	ArrayKind
	LabelKind
)

// Type of an LLVM value. Types are interned by their Context, so they can be compared with ==.
type Type struct {
	ctx  *Context
	Kind TypeKind

	// Bits is the width of integer types.
	Bits int

	// Elem and Len describe array types `[Len x Elem]`.
	Elem *Type
	Len  int
}

// Context owns the types (and hence all values) of the modules created with it.
// It is not safe for concurrent use.
type Context struct {
	types map[string]*Type
}

// NewContext returns a new, empty Context.
func NewContext() *Context {
	return &Context{types: make(map[string]*Type)}
}

func (ctx *Context) intern(t *Type) *Type {
	t.ctx = ctx
	key := t.String()
	if existing, found := ctx.types[key]; found {
		return existing
	}
	ctx.types[key] = t
	return t
}

// Void type, for functions that don't return a value.
func (ctx *Context) Void() *Type { return ctx.intern(&Type{Kind: VoidKind}) }

// Int returns the integer type with the given number of bits, e.g. `i32`.
func (ctx *Context) Int(bits int) *Type {
	if bits <= 0 {
		exceptions.Panicf("llvmir: invalid integer width %d", bits)
	}
	return ctx.intern(&Type{Kind: IntKind, Bits: bits})
}

// Bool returns `i1`.
func (ctx *Context) Bool() *Type { return ctx.Int(1) }

// Half returns the IEEE 16 bits float type.
func (ctx *Context) Half() *Type { return ctx.intern(&Type{Kind: HalfKind}) }

// BFloat returns the brain float 16 bits type.
func (ctx *Context) BFloat() *Type { return ctx.intern(&Type{Kind: BFloatKind}) }

// Float returns the IEEE 32 bits float type.
func (ctx *Context) Float() *Type { return ctx.intern(&Type{Kind: FloatKind}) }

// Double returns the IEEE 64 bits float type.
func (ctx *Context) Double() *Type { return ctx.intern(&Type{Kind: DoubleKind}) }

// Ptr returns the opaque pointer type (default address space).
func (ctx *Context) Ptr() *Type { return ctx.intern(&Type{Kind: PtrKind}) }

// Label is the type of basic blocks, when used as branch targets.
func (ctx *Context) Label() *Type { return ctx.intern(&Type{Kind: LabelKind}) }

// Array returns the type `[length x elem]`.
func (ctx *Context) Array(elem *Type, length int) *Type {
	if elem.ctx != ctx {
		exceptions.Panicf("llvmir: array element type %s belongs to a different Context", elem)
	}
	if length < 0 {
		exceptions.Panicf("llvmir: invalid array length %d", length)
	}
	return ctx.intern(&Type{Kind: ArrayKind, Elem: elem, Len: length})
}

// Context that owns the type.
func (t *Type) Context() *Context { return t.ctx }

// IsInt returns whether t is an integer type (including i1).
func (t *Type) IsInt() bool { return t.Kind == IntKind }

// IsFloat returns whether t is one of the floating point types.
func (t *Type) IsFloat() bool {
	switch t.Kind {
	case HalfKind, BFloatKind, FloatKind, DoubleKind:
		return true
	}
	return false
}

// SizeInBits returns the number of bits of scalar types, and 0 for the others.
func (t *Type) SizeInBits() int {
	switch t.Kind {
	case IntKind:
		return t.Bits
	case HalfKind, BFloatKind:
		return 16
	case FloatKind:
		return 32
	case DoubleKind:
		return 64
	}
	return 0
}

// String returns the type as written in LLVM IR, e.g. `i32`, `float` or `[4 x half]`.
func (t *Type) String() string {
	switch t.Kind {
	case VoidKind:
		return "void"
	case IntKind:
		return fmt.Sprintf("i%d", t.Bits)
	case HalfKind:
		return "half"
	case BFloatKind:
		return "bfloat"
	case FloatKind:
		return "float"
	case DoubleKind:
		return "double"
	case PtrKind:
		return "ptr"
	case ArrayKind:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case LabelKind:
		return "label"
	}
	return fmt.Sprintf("<invalid type kind %d>", int(t.Kind))
}

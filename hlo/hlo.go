// Package hlo parses the HLO text format into an in-memory Module.
//
// Only the subset of the format needed to describe array computations is supported: modules, computations,
// instructions with typed or untyped operands, array and tuple shapes with layouts, constant literals and
// attributes. Attribute values are kept as raw text, and decoded on demand by the Instruction accessors.
//
// Example:
//
//	HloModule add_module
//
//	ENTRY main {
//	  p0 = f32[2]{0} parameter(0)
//	  p1 = f32[2]{0} parameter(1)
//	  ROOT add.1 = f32[2]{0} add(p0, p1)
//	}
package hlo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/hlo2llvm/hlo/optypes"
	"github.com/gomlx/hlo2llvm/hlo/shapeinference"
	"github.com/gomlx/hlo2llvm/hlo/shapes"
	"github.com/pkg/errors"
)

// ParseError is returned for text that is not a valid HLO module. Line and Column are 1-based.
type ParseError struct {
	Line, Column int
	Msg          string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// Module is a parsed HLO module: a set of computations, one of which is the entry.
type Module struct {
	Name string

	// Attributes of the `HloModule` header line, as raw text, e.g. "entry_computation_layout".
	Attributes map[string]string

	// Computations in the order they were defined.
	Computations []*Computation

	// Entry computation: the one marked with ENTRY, or the last one if none is marked.
	Entry *Computation
}

// Computation returns the computation with the given name, or nil.
func (m *Module) Computation(name string) *Computation {
	for _, comp := range m.Computations {
		if comp.Name == name {
			return comp
		}
	}
	return nil
}

// Computation is a named list of instructions with a root.
type Computation struct {
	Name    string
	IsEntry bool

	// Instructions in the order they were defined.
	Instructions []*Instruction

	// Root is the instruction marked with ROOT, or the last one if none is marked.
	Root *Instruction

	// Parameters indexed by their parameter number.
	Parameters []*Instruction

	byName map[string]*Instruction
}

// Instruction returns the instruction with the given name, or nil.
func (c *Computation) Instruction(name string) *Instruction {
	return c.byName[name]
}

// PostOrder returns the instructions reachable from the root, each one after all its operands.
// Parameters not used by the root are also included, in parameter order, ahead of everything else.
func (c *Computation) PostOrder() []*Instruction {
	visited := make(map[*Instruction]bool, len(c.Instructions))
	order := make([]*Instruction, 0, len(c.Instructions))
	var visit func(instr *Instruction)
	visit = func(instr *Instruction) {
		if visited[instr] {
			return
		}
		visited[instr] = true
		for _, operand := range instr.Operands {
			visit(operand)
		}
		order = append(order, instr)
	}
	for _, param := range c.Parameters {
		visit(param)
	}
	if c.Root != nil {
		visit(c.Root)
	}
	return order
}

// Instruction is one HLO operation.
type Instruction struct {
	Name     string
	Shape    shapes.Shape
	OpType   optypes.OpType
	Operands []*Instruction
	IsRoot   bool

	// Attributes as raw text, keyed by the attribute name, e.g. "dimensions" -> "{0,1}".
	Attributes map[string]string

	// Called computations: `to_apply` for reduce, `calls` for fusion.
	Called []*Computation

	// ParameterNumber is only set for parameters.
	ParameterNumber int

	// Literal is only set for constants.
	Literal *Literal

	// Parent computation.
	Parent *Computation

	operandNames []string
	line, col    int
}

// String returns the instruction name with its opcode, for error messages.
func (instr *Instruction) String() string {
	return fmt.Sprintf("%%%s (%s)", instr.Name, instr.OpType.ToHLO())
}

// Attribute returns the raw text of an attribute.
func (instr *Instruction) Attribute(key string) (string, bool) {
	value, found := instr.Attributes[key]
	return value, found
}

// IntAttribute decodes an integer attribute, like `index=1` or `iota_dimension=0`.
func (instr *Instruction) IntAttribute(key string) (int, error) {
	raw, found := instr.Attributes[key]
	if !found {
		return 0, errors.Errorf("%s: missing attribute %q", instr, key)
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Wrapf(err, "%s: attribute %s=%s is not an integer", instr, key, raw)
	}
	return value, nil
}

// IntListAttribute decodes an attribute of the form `{0,1,2}`. An absent attribute returns an empty list.
func (instr *Instruction) IntListAttribute(key string) ([]int, error) {
	raw, found := instr.Attributes[key]
	if !found {
		return nil, nil
	}
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") || !strings.HasSuffix(raw, "}") {
		return nil, errors.Errorf("%s: attribute %s=%s must be of the form {a,b,...}", instr, key, raw)
	}
	var values []int
	for _, part := range strings.Split(raw[1:len(raw)-1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: attribute %s=%s", instr, key, raw)
		}
		values = append(values, value)
	}
	return values, nil
}

// SliceAttribute decodes the `slice={[start:limit:stride], ...}` attribute. Stride defaults to 1.
func (instr *Instruction) SliceAttribute() ([]shapeinference.SliceSpec, error) {
	raw, found := instr.Attributes["slice"]
	if !found {
		return nil, errors.Errorf("%s: missing attribute \"slice\"", instr)
	}
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") || !strings.HasSuffix(raw, "}") {
		return nil, errors.Errorf("%s: malformed slice=%s", instr, raw)
	}
	var specs []shapeinference.SliceSpec
	for _, part := range strings.Split(raw[1:len(raw)-1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, "[") || !strings.HasSuffix(part, "]") {
			return nil, errors.Errorf("%s: malformed slice entry %q", instr, part)
		}
		fields := strings.Split(part[1:len(part)-1], ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, errors.Errorf("%s: malformed slice entry %q", instr, part)
		}
		spec := shapeinference.SliceSpec{Stride: 1}
		targets := []*int{&spec.Start, &spec.Limit, &spec.Stride}
		for i, field := range fields {
			value, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, errors.Wrapf(err, "%s: malformed slice entry %q", instr, part)
			}
			*targets[i] = value
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ComparisonDirection of a compare instruction, e.g. "LT".
func (instr *Instruction) ComparisonDirection() (string, error) {
	raw, found := instr.Attributes["direction"]
	if !found {
		return "", errors.Errorf("%s: missing attribute \"direction\"", instr)
	}
	switch raw {
	case "EQ", "NE", "LT", "LE", "GT", "GE":
		return raw, nil
	}
	return "", errors.Errorf("%s: invalid comparison direction %q", instr, raw)
}

// CalledComputation returns the single computation called by a fusion or reduce.
func (instr *Instruction) CalledComputation() (*Computation, error) {
	if len(instr.Called) != 1 {
		return nil, errors.Errorf("%s: expected exactly one called computation, got %d", instr, len(instr.Called))
	}
	return instr.Called[0], nil
}

package hlo

import (
	"fmt"
	"strconv"

	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/gomlx/hlo2llvm/hlo/optypes"
	"github.com/gomlx/hlo2llvm/hlo/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LoadModuleFromText parses and verifies an HLO module in text format.
//
// Syntax errors are returned as *ParseError (use errors.As to retrieve it); verification errors describe
// the offending instruction.
func LoadModuleFromText(text string) (*Module, error) {
	module, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if err := Verify(module); err != nil {
		return nil, errors.WithMessagef(err, "verifying module %q", module.Name)
	}
	klog.V(2).Infof("Loaded HLO module %q with %d computations", module.Name, len(module.Computations))
	return module, nil
}

// Parse parses an HLO module in text format, without verifying the shapes of its instructions.
func Parse(text string) (*Module, error) {
	p := &parser{lex: newLexer(text), src: text}
	if err := p.advance(); err != nil {
		return nil, err
	}
	module, err := p.parseModule()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return module, nil
}

type parser struct {
	lex *lexer
	src string
	tok token

	// peeked holds tokens read ahead of tok.
	peeked []token
}

func (p *parser) advance() error {
	if len(p.peeked) > 0 {
		p.tok = p.peeked[0]
		p.peeked = p.peeked[1:]
		return nil
	}
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// peek returns the token after the current one.
func (p *parser) peek() (token, error) {
	if len(p.peeked) == 0 {
		tok, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peeked = append(p.peeked, tok)
	}
	return p.peeked[0], nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.tok.line, Column: p.tok.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(text string) error {
	if !p.tok.is(tokPunct, text) {
		return p.errorf("expected %q, got %s", text, p.tok)
	}
	return p.advance()
}

func (p *parser) expectIdent(what string) (string, error) {
	if p.tok.kind != tokIdent {
		return "", p.errorf("expected %s, got %s", what, p.tok)
	}
	text := p.tok.text
	return text, p.advance()
}

func (p *parser) parseModule() (*Module, error) {
	if !p.tok.is(tokIdent, "HloModule") {
		return nil, p.errorf("expected 'HloModule', got %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, err := p.expectIdent("module name")
	if err != nil {
		return nil, err
	}
	module := &Module{Name: name, Attributes: make(map[string]string)}
	for p.tok.is(tokPunct, ",") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.parseAttribute(module.Attributes); err != nil {
			return nil, err
		}
	}

	for p.tok.kind != tokEOF {
		comp, err := p.parseComputation()
		if err != nil {
			return nil, err
		}
		if module.Computation(comp.Name) != nil {
			return nil, &ParseError{Msg: fmt.Sprintf("computation %q defined more than once", comp.Name)}
		}
		module.Computations = append(module.Computations, comp)
		if comp.IsEntry {
			if module.Entry != nil {
				return nil, &ParseError{Msg: fmt.Sprintf("more than one ENTRY computation: %q and %q",
					module.Entry.Name, comp.Name)}
			}
			module.Entry = comp
		}
	}
	if len(module.Computations) == 0 {
		return nil, p.errorf("module %q has no computations", module.Name)
	}
	if module.Entry == nil {
		module.Entry = module.Computations[len(module.Computations)-1]
		module.Entry.IsEntry = true
	}
	if err := resolveCalledComputations(module); err != nil {
		return nil, err
	}
	return module, nil
}

func (p *parser) parseComputation() (*Computation, error) {
	comp := &Computation{byName: make(map[string]*Instruction)}
	if p.tok.is(tokIdent, "ENTRY") {
		comp.IsEntry = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	var err error
	comp.Name, err = p.expectIdent("computation name")
	if err != nil {
		return nil, err
	}

	// Optional signature: `(p0: f32[2]) -> f32[2]`, it is redundant with the parameters and the root.
	if p.tok.is(tokPunct, "(") {
		if _, err := p.skipBalanced(); err != nil {
			return nil, err
		}
		if p.tok.is(tokPunct, "->") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if _, err := p.parseShape(); err != nil {
				return nil, err
			}
		}
	}

	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for !p.tok.is(tokPunct, "}") {
		if p.tok.kind == tokEOF {
			return nil, p.errorf("unexpected end of input in computation %q, missing '}'", comp.Name)
		}
		instr, err := p.parseInstruction(comp)
		if err != nil {
			return nil, err
		}
		if _, found := comp.byName[instr.Name]; found {
			return nil, &ParseError{Line: instr.line, Column: instr.col,
				Msg: fmt.Sprintf("instruction %q defined more than once in computation %q", instr.Name, comp.Name)}
		}
		comp.byName[instr.Name] = instr
		comp.Instructions = append(comp.Instructions, instr)
		if instr.IsRoot {
			if comp.Root != nil {
				return nil, &ParseError{Line: instr.line, Column: instr.col,
					Msg: fmt.Sprintf("computation %q has more than one ROOT", comp.Name)}
			}
			comp.Root = instr
		}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if len(comp.Instructions) == 0 {
		return nil, p.errorf("computation %q has no instructions", comp.Name)
	}
	if comp.Root == nil {
		comp.Root = comp.Instructions[len(comp.Instructions)-1]
		comp.Root.IsRoot = true
	}
	if err := resolveOperands(comp); err != nil {
		return nil, err
	}
	return comp, nil
}

func (p *parser) parseInstruction(comp *Computation) (*Instruction, error) {
	instr := &Instruction{Parent: comp, Attributes: make(map[string]string), line: p.tok.line, col: p.tok.col}
	if p.tok.is(tokIdent, "ROOT") {
		instr.IsRoot = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	var err error
	instr.Name, err = p.expectIdent("instruction name")
	if err != nil {
		return nil, err
	}
	if err = p.expectPunct("="); err != nil {
		return nil, err
	}
	instr.Shape, err = p.parseShape()
	if err != nil {
		return nil, err
	}
	opLine, opCol := p.tok.line, p.tok.col
	opName, err := p.expectIdent("opcode")
	if err != nil {
		return nil, err
	}
	instr.OpType, err = optypes.FromHLO(opName)
	if err != nil {
		return nil, &ParseError{Line: opLine, Column: opCol, Msg: err.Error()}
	}
	if err = p.expectPunct("("); err != nil {
		return nil, err
	}

	switch instr.OpType {
	case optypes.Parameter:
		if p.tok.kind != tokInt {
			return nil, p.errorf("expected parameter number, got %s", p.tok)
		}
		instr.ParameterNumber, err = strconv.Atoi(p.tok.text)
		if err != nil || instr.ParameterNumber < 0 {
			return nil, p.errorf("invalid parameter number %s", p.tok)
		}
		if err = p.advance(); err != nil {
			return nil, err
		}
	case optypes.Constant:
		instr.Literal, err = p.parseLiteral(instr.Shape)
		if err != nil {
			return nil, err
		}
	default:
		for !p.tok.is(tokPunct, ")") {
			if len(instr.operandNames) > 0 {
				if err = p.expectPunct(","); err != nil {
					return nil, err
				}
			}
			name, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			instr.operandNames = append(instr.operandNames, name)
		}
	}
	if err = p.expectPunct(")"); err != nil {
		return nil, err
	}

	for p.tok.is(tokPunct, ",") {
		if err = p.advance(); err != nil {
			return nil, err
		}
		if err = p.parseAttribute(instr.Attributes); err != nil {
			return nil, err
		}
	}
	return instr, nil
}

// parseOperand parses `name` or `shape name`, and returns the name.
func (p *parser) parseOperand() (string, error) {
	if p.tok.is(tokPunct, "(") {
		if _, err := p.parseShape(); err != nil {
			return "", err
		}
	} else if p.tok.kind == tokIdent && dtypes.FromHLO(p.tok.text) != dtypes.Invalid {
		next, err := p.peek()
		if err != nil {
			return "", err
		}
		if next.is(tokPunct, "[") {
			if _, err := p.parseShape(); err != nil {
				return "", err
			}
		}
	}
	return p.expectIdent("operand name")
}

// parseAttribute parses `key=value` and stores the raw text of value.
func (p *parser) parseAttribute(attributes map[string]string) error {
	key, err := p.expectIdent("attribute name")
	if err != nil {
		return err
	}
	if err = p.expectPunct("="); err != nil {
		return err
	}
	var value string
	switch {
	case p.tok.is(tokPunct, "{") || p.tok.is(tokPunct, "("):
		value, err = p.skipBalanced()
		if err != nil {
			return err
		}
	case p.tok.kind == tokIdent || p.tok.kind == tokInt || p.tok.kind == tokFloat || p.tok.kind == tokString:
		value = p.tok.text
		if err = p.advance(); err != nil {
			return err
		}
	default:
		return p.errorf("expected value for attribute %q, got %s", key, p.tok)
	}
	if _, found := attributes[key]; found {
		return p.errorf("attribute %q given more than once", key)
	}
	attributes[key] = value
	return nil
}

// skipBalanced skips from an opening bracket to its matching closing bracket, and returns the raw source
// text in between, brackets included.
func (p *parser) skipBalanced() (string, error) {
	start := p.tok.start
	var stack []string
	closing := map[string]string{"(": ")", "{": "}", "[": "]"}
	for {
		if p.tok.kind == tokEOF {
			return "", p.errorf("unbalanced brackets, unexpected end of input")
		}
		if p.tok.kind == tokPunct {
			if closer, isOpen := closing[p.tok.text]; isOpen {
				stack = append(stack, closer)
			} else if p.tok.text == ")" || p.tok.text == "}" || p.tok.text == "]" {
				if len(stack) == 0 || stack[len(stack)-1] != p.tok.text {
					return "", p.errorf("unbalanced brackets, unexpected %s", p.tok)
				}
				stack = stack[:len(stack)-1]
			}
		}
		end := p.tok.end
		if err := p.advance(); err != nil {
			return "", err
		}
		if len(stack) == 0 {
			return p.src[start:end], nil
		}
	}
}

// parseShape parses an array shape `f32[2,3]{1,0}` or a tuple shape `(f32[], s32[2])`.
func (p *parser) parseShape() (shapes.Shape, error) {
	if p.tok.is(tokPunct, "(") {
		if err := p.advance(); err != nil {
			return shapes.Invalid(), err
		}
		elements := []shapes.Shape{}
		for !p.tok.is(tokPunct, ")") {
			if len(elements) > 0 {
				if err := p.expectPunct(","); err != nil {
					return shapes.Invalid(), err
				}
			}
			element, err := p.parseShape()
			if err != nil {
				return shapes.Invalid(), err
			}
			elements = append(elements, element)
		}
		if err := p.advance(); err != nil {
			return shapes.Invalid(), err
		}
		return shapes.MakeTuple(elements...), nil
	}

	if p.tok.kind != tokIdent {
		return shapes.Invalid(), p.errorf("expected shape, got %s", p.tok)
	}
	dtype := dtypes.FromHLO(p.tok.text)
	if dtype == dtypes.Invalid {
		return shapes.Invalid(), p.errorf("unknown or unsupported element type %s", p.tok)
	}
	if err := p.advance(); err != nil {
		return shapes.Invalid(), err
	}
	if err := p.expectPunct("["); err != nil {
		return shapes.Invalid(), err
	}
	shape := shapes.Make(dtype)
	for !p.tok.is(tokPunct, "]") {
		if len(shape.Dimensions) > 0 {
			if err := p.expectPunct(","); err != nil {
				return shapes.Invalid(), err
			}
		}
		if p.tok.is(tokPunct, "<") {
			return shapes.Invalid(), p.errorf("dynamic dimensions are not supported")
		}
		if p.tok.kind != tokInt {
			return shapes.Invalid(), p.errorf("expected dimension, got %s", p.tok)
		}
		dim, err := strconv.Atoi(p.tok.text)
		if err != nil || dim < 0 {
			return shapes.Invalid(), p.errorf("invalid dimension %s", p.tok)
		}
		shape.Dimensions = append(shape.Dimensions, dim)
		if err := p.advance(); err != nil {
			return shapes.Invalid(), err
		}
	}
	if err := p.advance(); err != nil {
		return shapes.Invalid(), err
	}

	// A '{' after a shape can also open a computation body, as in `(p0: f32[2]) -> f32[2] {`: a layout
	// is always followed by an axis, '}' or ':'.
	isLayout := false
	if p.tok.is(tokPunct, "{") {
		next, err := p.peek()
		if err != nil {
			return shapes.Invalid(), err
		}
		isLayout = next.kind == tokInt || next.is(tokPunct, "}") || next.is(tokPunct, ":")
	}
	if isLayout {
		layout, err := p.parseLayout()
		if err != nil {
			return shapes.Invalid(), err
		}
		if len(layout) != shape.Rank() {
			return shapes.Invalid(), p.errorf("layout %v doesn't match the rank of %s", layout, shape)
		}
		shape.Layout = layout
	}
	return shape, nil
}

// parseLayout parses `{1,0}`, ignoring tiling and memory space annotations after ':'.
func (p *parser) parseLayout() ([]int, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	layout := []int{}
	for !p.tok.is(tokPunct, "}") {
		if p.tok.is(tokPunct, ":") {
			// Skip until the closing '}' of the layout.
			depth := 0
			for depth > 0 || !p.tok.is(tokPunct, "}") {
				if p.tok.kind == tokEOF {
					return nil, p.errorf("unterminated layout")
				}
				if p.tok.is(tokPunct, "(") || p.tok.is(tokPunct, "{") {
					depth++
				} else if p.tok.is(tokPunct, ")") || (p.tok.is(tokPunct, "}") && depth > 0) {
					depth--
				}
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
			break
		}
		if len(layout) > 0 {
			if err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		if p.tok.kind != tokInt {
			return nil, p.errorf("expected layout axis, got %s", p.tok)
		}
		axis, err := strconv.Atoi(p.tok.text)
		if err != nil {
			return nil, p.errorf("invalid layout axis %s", p.tok)
		}
		layout = append(layout, axis)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return layout, p.advance()
}

// parseLiteral parses the value of a constant of the given shape: a scalar value, or nested `{...}` lists.
func (p *parser) parseLiteral(shape shapes.Shape) (*Literal, error) {
	if shape.IsTuple() {
		return nil, p.errorf("tuple constants are not supported")
	}
	literal := &Literal{Shape: shape, Values: make([]any, 0, shape.Size())}
	var parseElements func(depth int) error
	parseElements = func(depth int) error {
		if p.tok.is(tokPunct, "{") {
			if depth >= shape.Rank() {
				return p.errorf("constant literal has more nesting levels than the rank of %s", shape)
			}
			if err := p.advance(); err != nil {
				return err
			}
			count := 0
			for !p.tok.is(tokPunct, "}") {
				if count > 0 {
					if err := p.expectPunct(","); err != nil {
						return err
					}
				}
				if err := parseElements(depth + 1); err != nil {
					return err
				}
				count++
			}
			if count != shape.Dimensions[depth] {
				return p.errorf("constant literal has %d elements in axis %d, but shape %s expects %d",
					count, depth, shape, shape.Dimensions[depth])
			}
			return p.advance()
		}
		if depth != shape.Rank() {
			return p.errorf("constant literal for %s expects nested {...} lists, got %s", shape, p.tok)
		}
		return p.parseLiteralElement(literal)
	}
	if err := parseElements(0); err != nil {
		return nil, err
	}
	return literal, nil
}

func (p *parser) parseLiteralElement(literal *Literal) error {
	negative := false
	if p.tok.is(tokPunct, "-") {
		negative = true
		if err := p.advance(); err != nil {
			return err
		}
		if p.tok.kind != tokIdent {
			return p.errorf("expected inf or nan after '-', got %s", p.tok)
		}
	}
	if p.tok.kind != tokInt && p.tok.kind != tokFloat && p.tok.kind != tokIdent {
		return p.errorf("expected constant value, got %s", p.tok)
	}
	value, err := literalValue(literal.Shape.DType, p.tok.text, negative)
	if err != nil {
		return p.errorf("%s", err.Error())
	}
	literal.Values = append(literal.Values, value)
	return p.advance()
}

func resolveOperands(comp *Computation) error {
	for _, instr := range comp.Instructions {
		for _, name := range instr.operandNames {
			operand, found := comp.byName[name]
			if !found {
				return &ParseError{Line: instr.line, Column: instr.col,
					Msg: fmt.Sprintf("instruction %q uses undefined operand %q", instr.Name, name)}
			}
			instr.Operands = append(instr.Operands, operand)
		}
		if instr.OpType == optypes.Parameter {
			for len(comp.Parameters) <= instr.ParameterNumber {
				comp.Parameters = append(comp.Parameters, nil)
			}
			if comp.Parameters[instr.ParameterNumber] != nil {
				return &ParseError{Line: instr.line, Column: instr.col,
					Msg: fmt.Sprintf("parameter number %d used more than once in computation %q",
						instr.ParameterNumber, comp.Name)}
			}
			comp.Parameters[instr.ParameterNumber] = instr
		}
	}
	for number, param := range comp.Parameters {
		if param == nil {
			return &ParseError{Msg: fmt.Sprintf("computation %q is missing parameter number %d", comp.Name, number)}
		}
	}
	return detectCycles(comp)
}

func detectCycles(comp *Computation) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*Instruction]int, len(comp.Instructions))
	var visit func(instr *Instruction) error
	visit = func(instr *Instruction) error {
		switch state[instr] {
		case visiting:
			return &ParseError{Line: instr.line, Column: instr.col,
				Msg: fmt.Sprintf("cycle detected through instruction %q", instr.Name)}
		case done:
			return nil
		}
		state[instr] = visiting
		for _, operand := range instr.Operands {
			if err := visit(operand); err != nil {
				return err
			}
		}
		state[instr] = done
		return nil
	}
	for _, instr := range comp.Instructions {
		if err := visit(instr); err != nil {
			return err
		}
	}
	return nil
}

// calledComputationAttributes are the attributes that name a computation.
var calledComputationAttributes = []string{"to_apply", "calls"}

func resolveCalledComputations(module *Module) error {
	for _, comp := range module.Computations {
		for _, instr := range comp.Instructions {
			for _, key := range calledComputationAttributes {
				name, found := instr.Attributes[key]
				if !found {
					continue
				}
				called := module.Computation(name)
				if called == nil {
					return &ParseError{Line: instr.line, Column: instr.col,
						Msg: fmt.Sprintf("instruction %q calls undefined computation %q", instr.Name, name)}
				}
				if called == comp {
					return &ParseError{Line: instr.line, Column: instr.col,
						Msg: fmt.Sprintf("computation %q calls itself", comp.Name)}
				}
				instr.Called = append(instr.Called, called)
			}
		}
	}
	return nil
}

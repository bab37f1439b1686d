package llvmir

import (
	"fmt"
	"io"
	"strings"
)

// slotTracker numbers unnamed values of the function being written (%0, %1, ...) and metadata nodes of
// the module (!0, !1, ...).
type slotTracker struct {
	locals  map[Value]int
	mdSlots map[*MDNode]int
	mdNodes []*MDNode
}

func newSlotTracker() *slotTracker {
	return &slotTracker{mdSlots: make(map[*MDNode]int)}
}

// local returns the number of an unnamed local value.
func (s *slotTracker) local(v Value) int {
	if s == nil {
		return -1
	}
	id, found := s.locals[v]
	if !found {
		id = len(s.locals)
		s.locals[v] = id
	}
	return id
}

// metadata returns the number of a node, numbering it (and the nodes it refers to) on first use.
func (s *slotTracker) metadata(n *MDNode) int {
	if id, found := s.mdSlots[n]; found {
		return id
	}
	id := len(s.mdNodes)
	s.mdSlots[n] = id
	s.mdNodes = append(s.mdNodes, n)
	for _, e := range n.Elements {
		if child, ok := e.(*MDNode); ok {
			s.metadata(child)
		}
	}
	return id
}

// startFunction resets the local numbering, and numbers the unnamed values of fn in order: parameters,
// then instruction results.
func (s *slotTracker) startFunction(fn *Function) {
	s.locals = make(map[Value]int)
	for _, p := range fn.params {
		if p.name == "" {
			s.local(p)
		}
	}
	for _, block := range fn.blocks {
		for _, instr := range block.instructions {
			if instr.hasResult() && instr.name == "" {
				s.local(instr)
			}
		}
	}
}

// numberMetadata assigns numbers to all metadata nodes: first the ones used by named metadata, then
// the ones attached to instructions, in order.
func (s *slotTracker) numberMetadata(m *Module) {
	for _, nm := range m.named {
		for _, node := range nm.Nodes {
			s.metadata(node)
		}
	}
	for _, fn := range m.functions {
		for _, block := range fn.blocks {
			for _, instr := range block.instructions {
				for _, a := range instr.metadata {
					s.metadata(a.node)
				}
			}
		}
	}
}

// String returns the module in textual LLVM IR.
func (m *Module) String() string {
	var sb strings.Builder
	_ = m.Write(&sb)
	return sb.String()
}

// Write writes the module in textual LLVM IR: header, globals, functions (definitions and declarations, in
// creation order), named metadata and numbered metadata nodes.
//
// The output only depends on the contents of the module: building the same module twice writes the same
// bytes.
func (m *Module) Write(writer io.Writer) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			// No op if an error was encountered earlier
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	slots := newSlotTracker()
	slots.numberMetadata(m)

	w("; ModuleID = '%s'\n", m.Name)
	w("source_filename = %q\n", m.Name)
	if m.DataLayout != "" {
		w("target datalayout = %q\n", m.DataLayout)
	}
	if m.TargetTriple != "" {
		w("target triple = %q\n", m.TargetTriple)
	}

	if len(m.globals) > 0 {
		w("\n")
		for _, g := range m.globals {
			w("%s\n", g.text(slots))
		}
	}

	for _, fn := range m.functions {
		w("\n")
		if err == nil {
			err = fn.write(writer, slots)
		}
	}

	if len(m.named) > 0 {
		w("\n")
		for _, nm := range m.named {
			refs := make([]string, len(nm.Nodes))
			for i, node := range nm.Nodes {
				refs[i] = node.mdRef(slots)
			}
			w("!%s = !{%s}\n", nm.Name, strings.Join(refs, ", "))
		}
	}

	if len(slots.mdNodes) > 0 {
		w("\n")
		// Numbering nested nodes may append to slots.mdNodes while iterating.
		for i := 0; i < len(slots.mdNodes); i++ {
			node := slots.mdNodes[i]
			elements := make([]string, len(node.Elements))
			for j, e := range node.Elements {
				elements[j] = e.mdRef(slots)
			}
			w("!%d = !{%s}\n", i, strings.Join(elements, ", "))
		}
	}
	return err
}

func (g *Global) text(slots *slotTracker) string {
	parts := []string{g.ref(slots), "="}
	if g.Linkage != ExternalLinkage {
		parts = append(parts, string(g.Linkage))
	}
	if g.UnnamedAddr {
		parts = append(parts, "unnamed_addr")
	}
	if g.IsConstant {
		parts = append(parts, "constant")
	} else {
		parts = append(parts, "global")
	}
	parts = append(parts, typedRef(g.Initializer, slots))
	text := strings.Join(parts, " ")
	if g.Align > 0 {
		text += fmt.Sprintf(", align %d", g.Align)
	}
	return text
}

func (fn *Function) write(writer io.Writer, slots *slotTracker) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	slots.startFunction(fn)
	keyword := "define"
	if fn.IsDeclaration() {
		keyword = "declare"
	}
	w("%s ", keyword)
	if fn.Linkage != ExternalLinkage {
		w("%s ", fn.Linkage)
	}
	w("%s %s(", fn.RetType, fn.ref(slots))
	for i, p := range fn.params {
		if i > 0 {
			w(", ")
		}
		w("%s", p.typ)
		for _, attr := range p.Attributes {
			w(" %s", attr)
		}
		if !fn.IsDeclaration() {
			w(" %s", p.ref(slots))
		}
	}
	w(")")
	if fn.IsDeclaration() {
		w("\n")
		return err
	}

	w(" {\n")
	for i, block := range fn.blocks {
		if i > 0 {
			w("\n")
		}
		w("%s:\n", strings.TrimPrefix(block.ref(slots), "%"))
		for _, instr := range block.instructions {
			w("  %s\n", instr.text(slots))
		}
	}
	w("}\n")
	return err
}

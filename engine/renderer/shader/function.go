package shader

import (
	"fmt"
	"strings"
)

// SwitchCase is one arm of FunctionBuilder.Switch.
type SwitchCase struct {
	Value string
	Body  func()
}

// FunctionBuilder emits the statements of one function body with indentation.
type FunctionBuilder struct {
	w      *Writer
	sb     strings.Builder
	indent int
}

func newFunctionBuilder(w *Writer) *FunctionBuilder {
	return &FunctionBuilder{w: w, indent: 1}
}

// String returns the emitted body.
func (b *FunctionBuilder) String() string { return b.sb.String() }

// Writer returns the writer the function belongs to.
func (b *FunctionBuilder) Writer() *Writer { return b.w }

// Line emits one raw statement line.
func (b *FunctionBuilder) Line(format string, args ...any) {
	b.sb.WriteString(strings.Repeat("    ", b.indent))
	fmt.Fprintf(&b.sb, format, args...)
	b.sb.WriteByte('\n')
}

// Let binds an immutable local and returns its name.
func (b *FunctionBuilder) Let(name, expr string) string {
	b.Line("let %s = %s;", name, expr)
	return name
}

// Var declares a mutable local and returns its name.
func (b *FunctionBuilder) Var(name, typ, expr string) string {
	typ = closeTemplates(typ)
	if expr == "" {
		b.Line("var %s: %s;", name, typ)
	} else {
		b.Line("var %s: %s = %s;", name, typ, expr)
	}
	return name
}

// Assign emits lhs = expr.
func (b *FunctionBuilder) Assign(lhs, expr string) {
	b.Line("%s = %s;", lhs, expr)
}

// Return emits a return statement; an empty expr returns nothing.
func (b *FunctionBuilder) Return(expr string) {
	if expr == "" {
		b.Line("return;")
		return
	}
	b.Line("return %s;", expr)
}

func (b *FunctionBuilder) block(body func()) {
	b.indent++
	if body != nil {
		body()
	}
	b.indent--
}

// If emits a conditional block.
func (b *FunctionBuilder) If(cond string, then func()) {
	b.Line("if (%s) {", cond)
	b.block(then)
	b.Line("}")
}

// IfElse emits a conditional with an else branch.
func (b *FunctionBuilder) IfElse(cond string, then, els func()) {
	b.Line("if (%s) {", cond)
	b.block(then)
	b.Line("} else {")
	b.block(els)
	b.Line("}")
}

// For emits a C-style loop.
func (b *FunctionBuilder) For(init, cond, step string, body func()) {
	b.Line("for (%s; %s; %s) {", init, cond, step)
	b.block(body)
	b.Line("}")
}

// Switch emits a switch statement. WGSL requires a default arm, which is emitted empty
// when def is nil.
func (b *FunctionBuilder) Switch(selector string, cases []SwitchCase, def func()) {
	b.Line("switch (%s) {", selector)
	b.indent++
	for _, c := range cases {
		b.Line("case %s: {", c.Value)
		b.block(c.Body)
		b.Line("}")
	}
	b.Line("default: {")
	b.block(def)
	b.Line("}")
	b.indent--
	b.Line("}")
}

// Call emits fn(args) as a statement expression and returns the expression, counting the
// call site on the writer.
func (b *FunctionBuilder) Call(fn *Function, args ...string) string {
	return b.w.Call(fn, args...)
}

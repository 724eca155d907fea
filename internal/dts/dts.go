// Package dts derives TypeScript declaration files (.d.ts) from source.
//
// The emitter works on a tree-sitter syntax tree and never type-checks: types
// come from annotations, and where an annotation is missing a small set of
// syntactic inferences apply (literals, arrow functions, new expressions,
// "as" casts). Anything else is declared as "any".
package dts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const indent = "    "

// ParseError reports a syntax error found while parsing a source file.
type ParseError struct {
	File   string
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error", e.File, e.Line, e.Column)
}

// Emit returns the declaration file text for src. fileName selects the
// grammar (.tsx uses the TSX grammar) and is used in error messages.
func Emit(ctx context.Context, fileName string, src []byte) ([]byte, error) {
	lang := typescript.GetLanguage()
	if strings.EqualFold(filepath.Ext(fileName), ".tsx") {
		lang = tsx.GetLanguage()
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		n := firstError(root)
		p := n.StartPoint()
		return nil, &ParseError{File: fileName, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
	}

	e := newEmitter(src)
	e.collect(root)
	e.program(root)
	return []byte(e.String()), nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() || c.IsMissing() {
			return firstError(c)
		}
	}
	return n
}

type emitter struct {
	src        []byte
	lines      []string
	locals     map[string]bool
	referenced map[string]bool
	overloaded map[string]bool
	exported   bool
}

func newEmitter(src []byte) *emitter {
	return &emitter{
		src:        src,
		locals:     map[string]bool{},
		referenced: map[string]bool{},
		overloaded: map[string]bool{},
	}
}

func (e *emitter) String() string {
	if !e.exported {
		e.lines = append(e.lines, "export {};")
	}
	return strings.Join(e.lines, "\n") + "\n"
}

func (e *emitter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(e.src)
}

func (e *emitter) emit(line string) {
	e.lines = append(e.lines, line)
}

// collect records top-level names and which of them are exported indirectly
// (export default <name>, export { name }).
func (e *emitter) collect(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "export_statement":
			if d := n.ChildByFieldName("declaration"); d != nil && d.Type() == "function_signature" {
				e.overloaded[e.text(d.ChildByFieldName("name"))] = true
			}
			if n.ChildByFieldName("source") != nil {
				continue
			}
			if v := n.ChildByFieldName("value"); v != nil && v.Type() == "identifier" {
				e.referenced[e.text(v)] = true
			}
			for j := 0; j < int(n.NamedChildCount()); j++ {
				clause := n.NamedChild(j)
				if clause.Type() != "export_clause" {
					continue
				}
				for k := 0; k < int(clause.NamedChildCount()); k++ {
					spec := clause.NamedChild(k)
					if name := spec.ChildByFieldName("name"); name != nil {
						e.referenced[e.text(name)] = true
					}
				}
			}
		case "function_signature":
			e.overloaded[e.text(n.ChildByFieldName("name"))] = true
		default:
			for _, name := range e.declaredNames(n) {
				e.locals[name] = true
			}
		}
	}
}

func (e *emitter) declaredNames(n *sitter.Node) []string {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "enum_declaration":
		return []string{e.text(n.ChildByFieldName("name"))}
	case "lexical_declaration", "variable_declaration":
		var names []string
		for _, d := range namedChildren(n, "variable_declarator") {
			names = append(names, e.bindingNames(d.ChildByFieldName("name"))...)
		}
		return names
	}
	return nil
}

func (e *emitter) program(root *sitter.Node) {
	var pendingDoc *sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() == "comment" {
			if strings.HasPrefix(e.text(n), "/**") {
				pendingDoc = n
			}
			continue
		}
		doc := pendingDoc
		pendingDoc = nil
		if doc != nil && doc.EndPoint().Row+1 < n.StartPoint().Row {
			doc = nil
		}
		before := len(e.lines)
		e.statement(n)
		if doc != nil && len(e.lines) > before {
			e.lines = append(e.lines[:before], append([]string{e.text(doc)}, e.lines[before:]...)...)
		}
	}
}

func (e *emitter) statement(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		if hasNamedChild(n, "import_clause") || hasChild(n, "=") {
			e.emit(terminate(e.text(n)))
		}
	case "export_statement":
		e.exportStatement(n)
	case "interface_declaration":
		e.emit(e.text(n))
	case "type_alias_declaration":
		e.emit(terminate(e.text(n)))
	case "ambient_declaration":
		e.emit(e.text(n))
	case "function_signature":
		if e.referenced[e.text(n.ChildByFieldName("name"))] {
			e.function("declare ", n)
		}
	case "function_declaration", "generator_function_declaration":
		name := e.text(n.ChildByFieldName("name"))
		if e.referenced[name] && !e.overloaded[name] {
			e.function("declare ", n)
		}
	case "class_declaration", "abstract_class_declaration":
		if e.referenced[e.text(n.ChildByFieldName("name"))] {
			e.class("declare ", n)
		}
	case "enum_declaration":
		if e.referenced[e.text(n.ChildByFieldName("name"))] {
			e.emit("declare " + e.text(n))
		}
	case "lexical_declaration", "variable_declaration":
		e.variables("declare ", n, func(name string) bool { return e.referenced[name] })
	}
}

func (e *emitter) exportStatement(n *sitter.Node) {
	e.exported = true
	isDefault := hasChild(n, "default")

	if n.ChildByFieldName("source") != nil || hasNamedChild(n, "export_clause") || hasChild(n, "=") {
		e.emit(terminate(e.text(n)))
		return
	}

	if d := n.ChildByFieldName("declaration"); d != nil {
		prefix := "export declare "
		if isDefault {
			prefix = "export default "
		}
		switch d.Type() {
		case "function_declaration", "generator_function_declaration":
			if !e.overloaded[e.text(d.ChildByFieldName("name"))] {
				e.function(prefix, d)
			}
		case "function_signature":
			e.function(prefix, d)
		case "class_declaration", "abstract_class_declaration":
			e.class(prefix, d)
		case "interface_declaration":
			e.emit(strings.TrimSuffix(prefix, "declare ") + e.text(d))
		case "type_alias_declaration":
			e.emit("export " + terminate(e.text(d)))
		case "enum_declaration", "internal_module", "module":
			e.emit("export declare " + e.text(d))
		case "lexical_declaration", "variable_declaration":
			e.variables("export declare ", d, func(string) bool { return true })
		case "ambient_declaration":
			e.emit("export " + e.text(d))
		default:
			e.emit("export " + e.text(d))
		}
		return
	}

	v := n.ChildByFieldName("value")
	if v == nil {
		return
	}
	switch v.Type() {
	case "identifier":
		e.emit("export default " + e.text(v) + ";")
	case "function_expression", "function", "generator_function":
		e.function("export default ", v)
	case "class":
		e.class("export default ", v)
	default:
		e.emit("declare const _default: " + e.inferValue(v, false) + ";")
		e.emit("export default _default;")
	}
}

// function renders a function declaration, signature or expression.
// Ambient declarations have no generator or async form; both show up only in
// the return type.
func (e *emitter) function(prefix string, n *sitter.Node) {
	head := prefix + "function "
	if name := e.text(n.ChildByFieldName("name")); name != "" {
		head += name
	}
	e.emit(head + e.signature(n) + ";")
}

func isGenerator(n *sitter.Node) bool {
	return strings.HasPrefix(n.Type(), "generator_") || hasChild(n, "*")
}

// signature renders "<T>(params): R" for any function-like node.
func (e *emitter) signature(n *sitter.Node) string {
	return e.text(n.ChildByFieldName("type_parameters")) +
		e.params(n) + ": " + e.returnType(n)
}

func (e *emitter) returnType(n *sitter.Node) string {
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		return annotation(e.text(rt))
	}
	body := n.ChildByFieldName("body")
	async := hasChild(n, "async")
	if isGenerator(n) {
		if async {
			return "AsyncGenerator<any, any, any>"
		}
		return "Generator<any, any, any>"
	}
	result := "any"
	switch {
	case body == nil:
	case body.Type() == "statement_block":
		if !hasValueReturn(body) {
			result = "void"
		}
	default:
		result = e.inferValue(body, false)
	}
	if async {
		return "Promise<" + result + ">"
	}
	return result
}

func (e *emitter) params(n *sitter.Node) string {
	if single := n.ChildByFieldName("parameter"); single != nil {
		return "(" + e.text(single) + ": any)"
	}
	ps := n.ChildByFieldName("parameters")
	if ps == nil {
		return "()"
	}
	var out []string
	for i := 0; i < int(ps.NamedChildCount()); i++ {
		p := ps.NamedChild(i)
		if s := e.param(p); s != "" {
			out = append(out, s)
		}
	}
	return "(" + strings.Join(out, ", ") + ")"
}

func (e *emitter) param(p *sitter.Node) string {
	switch p.Type() {
	case "required_parameter", "optional_parameter":
	case "identifier":
		return e.text(p) + ": any"
	default:
		return ""
	}
	pattern := p.ChildByFieldName("pattern")
	if pattern == nil {
		return ""
	}
	name := e.text(pattern)
	value := p.ChildByFieldName("value")
	rest := pattern.Type() == "rest_pattern"

	typ := ""
	if t := p.ChildByFieldName("type"); t != nil {
		typ = annotation(e.text(t))
	} else if value != nil {
		typ = e.inferValue(value, false)
	} else if rest {
		typ = "any[]"
	} else {
		typ = "any"
	}

	optional := p.Type() == "optional_parameter" || (value != nil && !rest)
	if optional && name != "this" {
		name += "?"
	}
	return name + ": " + typ
}

func (e *emitter) variables(prefix string, n *sitter.Node, include func(string) bool) {
	kind := "const"
	if k := n.ChildByFieldName("kind"); k != nil {
		kind = e.text(k)
	} else if n.Type() == "variable_declaration" {
		kind = "var"
	} else if n.ChildCount() > 0 {
		kind = e.text(n.Child(0))
	}
	for _, d := range namedChildren(n, "variable_declarator") {
		nameNode := d.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		if nameNode.Type() != "identifier" {
			// Destructured bindings carry no per-name type.
			for _, name := range e.bindingNames(nameNode) {
				if include(name) {
					e.emit(prefix + kind + " " + name + ": any;")
				}
			}
			continue
		}
		name := e.text(nameNode)
		if !include(name) {
			continue
		}
		typ := "any"
		if t := d.ChildByFieldName("type"); t != nil {
			typ = annotation(e.text(t))
		} else if v := d.ChildByFieldName("value"); v != nil {
			typ = e.inferValue(v, kind == "const")
		}
		e.emit(prefix + kind + " " + name + ": " + typ + ";")
	}
}

// bindingNames lists the names bound by a declarator name or destructuring
// pattern, in source order.
func (e *emitter) bindingNames(p *sitter.Node) []string {
	if p == nil {
		return nil
	}
	switch p.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{e.text(p)}
	case "pair_pattern":
		return e.bindingNames(p.ChildByFieldName("value"))
	case "assignment_pattern", "object_assignment_pattern":
		return e.bindingNames(p.ChildByFieldName("left"))
	case "array_pattern", "object_pattern", "rest_pattern":
		var names []string
		for i := 0; i < int(p.NamedChildCount()); i++ {
			names = append(names, e.bindingNames(p.NamedChild(i))...)
		}
		return names
	}
	return nil
}

func (e *emitter) class(prefix string, n *sitter.Node) {
	head := prefix
	if n.Type() == "abstract_class_declaration" || hasChild(n, "abstract") {
		head += "abstract "
	}
	head += "class"
	if name := e.text(n.ChildByFieldName("name")); name != "" {
		head += " " + name
	}
	head += e.text(n.ChildByFieldName("type_parameters"))
	for _, h := range namedChildren(n, "class_heritage") {
		head += " " + strings.Join(strings.Fields(e.text(h)), " ")
	}
	e.emit(head + " {")

	body := n.ChildByFieldName("body")
	var members []string
	privateNames := map[string]bool{}
	hasHashPrivate := false
	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			m := body.NamedChild(i)
			nameNode := m.ChildByFieldName("name")
			if nameNode != nil && nameNode.Type() == "private_property_identifier" {
				hasHashPrivate = true
				continue
			}
			members = append(members, e.member(m, privateNames)...)
		}
	}
	if hasHashPrivate {
		e.emit(indent + "#private;")
	}
	for _, m := range members {
		e.emit(indent + m)
	}
	e.emit("}")
}

type modifiers struct {
	access   string
	static   bool
	readonly bool
	abstract bool
	accessor string
	optional bool
}

func (e *emitter) modifiers(n *sitter.Node) modifiers {
	var m modifiers
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "accessibility_modifier":
			m.access = e.text(c)
		case "static":
			m.static = true
		case "readonly":
			m.readonly = true
		case "abstract":
			m.abstract = true
		case "get", "set":
			m.accessor = c.Type()
		case "?":
			m.optional = true
		}
	}
	return m
}

func (m modifiers) prefix() string {
	var b strings.Builder
	if m.access != "" && m.access != "public" {
		b.WriteString(m.access + " ")
	}
	if m.static {
		b.WriteString("static ")
	}
	if m.abstract {
		b.WriteString("abstract ")
	}
	if m.readonly {
		b.WriteString("readonly ")
	}
	return b.String()
}

func (e *emitter) member(m *sitter.Node, privateNames map[string]bool) []string {
	switch m.Type() {
	case "index_signature":
		return []string{terminate(e.text(m))}
	case "method_definition", "method_signature", "abstract_method_signature":
	case "public_field_definition":
		return e.field(m, privateNames)
	default:
		return nil
	}

	mods := e.modifiers(m)
	name := e.text(m.ChildByFieldName("name"))
	if name == "constructor" {
		return e.constructor(m)
	}
	if mods.access == "private" {
		if privateNames[name] {
			return nil
		}
		privateNames[name] = true
		return []string{mods.prefix() + name + ";"}
	}
	if m.Type() == "abstract_method_signature" {
		mods.abstract = true
	}
	opt := ""
	if mods.optional {
		opt = "?"
	}
	switch mods.accessor {
	case "get":
		return []string{mods.prefix() + "get " + name + "(): " + e.returnType(m) + ";"}
	case "set":
		return []string{mods.prefix() + "set " + name + e.params(m) + ";"}
	}
	return []string{mods.prefix() + name + opt + e.signature(m) + ";"}
}

func (e *emitter) field(m *sitter.Node, privateNames map[string]bool) []string {
	mods := e.modifiers(m)
	name := e.text(m.ChildByFieldName("name"))
	if mods.access == "private" {
		privateNames[name] = true
		return []string{mods.prefix() + name + ";"}
	}
	typ := "any"
	if t := m.ChildByFieldName("type"); t != nil {
		typ = annotation(e.text(t))
	} else if v := m.ChildByFieldName("value"); v != nil {
		typ = e.inferValue(v, mods.readonly)
	}
	opt := ""
	if mods.optional {
		opt = "?"
	}
	return []string{mods.prefix() + name + opt + ": " + typ + ";"}
}

// constructor renders parameter properties followed by the constructor signature.
func (e *emitter) constructor(m *sitter.Node) []string {
	var out []string
	if ps := m.ChildByFieldName("parameters"); ps != nil {
		for i := 0; i < int(ps.NamedChildCount()); i++ {
			p := ps.NamedChild(i)
			mods := e.modifiers(p)
			if mods.access == "" && !mods.readonly {
				continue
			}
			pattern := p.ChildByFieldName("pattern")
			if pattern == nil {
				continue
			}
			name := e.text(pattern)
			if mods.access == "private" {
				out = append(out, mods.prefix()+name+";")
				continue
			}
			typ := "any"
			if t := p.ChildByFieldName("type"); t != nil {
				typ = annotation(e.text(t))
			} else if v := p.ChildByFieldName("value"); v != nil {
				typ = e.inferValue(v, false)
			}
			opt := ""
			if p.Type() == "optional_parameter" {
				opt = "?"
			}
			out = append(out, mods.prefix()+name+opt+": "+typ+";")
		}
	}
	return append(out, "constructor"+e.params(m)+";")
}

// inferValue gives the declared type of an initializer. asConst keeps literal
// types, matching how const declarations are typed.
func (e *emitter) inferValue(v *sitter.Node, asConst bool) string {
	switch v.Type() {
	case "number":
		if asConst {
			return e.text(v)
		}
		return "number"
	case "string":
		if asConst {
			return requote(e.text(v))
		}
		return "string"
	case "template_string":
		if asConst && !hasNamedChild(v, "template_substitution") {
			return requote(e.text(v))
		}
		return "string"
	case "true", "false":
		if asConst {
			return v.Type()
		}
		return "boolean"
	case "null":
		return "null"
	case "undefined":
		return "undefined"
	case "regex":
		return "RegExp"
	case "unary_expression":
		op := e.text(v.ChildByFieldName("operator"))
		arg := v.ChildByFieldName("argument")
		switch op {
		case "-", "+", "~":
			if asConst && op == "-" && arg != nil && arg.Type() == "number" {
				return "-" + e.text(arg)
			}
			return "number"
		case "!":
			return "boolean"
		case "typeof":
			return "string"
		case "void":
			return "undefined"
		}
		return "any"
	case "arrow_function", "function_expression", "function", "generator_function":
		return e.text(v.ChildByFieldName("type_parameters")) + e.params(v) + " => " + e.returnType(v)
	case "new_expression":
		if c := v.ChildByFieldName("constructor"); c != nil &&
			(c.Type() == "identifier" || c.Type() == "member_expression") {
			return e.text(c) + e.text(v.ChildByFieldName("type_arguments"))
		}
		return "any"
	case "as_expression", "satisfies_expression":
		if v.NamedChildCount() == 0 {
			return "any"
		}
		inner := v.NamedChild(0)
		if v.NamedChildCount() < 2 {
			return e.inferValue(inner, asConst || hasChild(v, "const"))
		}
		typ := e.text(v.NamedChild(int(v.NamedChildCount()) - 1))
		if v.Type() == "as_expression" && typ != "const" {
			return typ
		}
		return e.inferValue(inner, asConst || typ == "const")
	case "parenthesized_expression":
		if v.NamedChildCount() > 0 {
			return e.inferValue(v.NamedChild(0), asConst)
		}
	case "binary_expression":
		return e.inferBinary(v)
	case "array":
		return e.inferArray(v)
	case "object":
		return e.inferObject(v)
	}
	return "any"
}

func (e *emitter) inferBinary(v *sitter.Node) string {
	op := e.text(v.ChildByFieldName("operator"))
	switch op {
	case "==", "===", "!=", "!==", "<", ">", "<=", ">=", "instanceof", "in":
		return "boolean"
	case "-", "*", "/", "%", "**", "|", "&", "^", "<<", ">>", ">>>":
		return "number"
	case "+":
		l := e.inferValue(v.ChildByFieldName("left"), false)
		r := e.inferValue(v.ChildByFieldName("right"), false)
		if l == "string" || r == "string" {
			return "string"
		}
		if l == "number" && r == "number" {
			return "number"
		}
	}
	return "any"
}

func (e *emitter) inferArray(v *sitter.Node) string {
	elem := ""
	for i := 0; i < int(v.NamedChildCount()); i++ {
		t := e.inferValue(v.NamedChild(i), false)
		if elem == "" {
			elem = t
		} else if elem != t {
			return "any[]"
		}
	}
	if elem == "" || strings.ContainsAny(elem, " |&=>") {
		return "any[]"
	}
	return elem + "[]"
}

func (e *emitter) inferObject(v *sitter.Node) string {
	var props []string
	for i := 0; i < int(v.NamedChildCount()); i++ {
		p := v.NamedChild(i)
		switch p.Type() {
		case "pair":
			key := p.ChildByFieldName("key")
			if key == nil || key.Type() == "computed_property_name" {
				continue
			}
			props = append(props, e.text(key)+": "+e.inferValue(p.ChildByFieldName("value"), false)+";")
		case "shorthand_property_identifier":
			props = append(props, e.text(p)+": any;")
		case "method_definition":
			props = append(props, e.text(p.ChildByFieldName("name"))+e.signature(p)+";")
		}
	}
	if len(props) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(props, " ") + " }"
}

// hasValueReturn reports whether body returns a value, ignoring nested functions.
func hasValueReturn(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "return_statement":
			if c.NamedChildCount() > 0 {
				return true
			}
		case "function_declaration", "generator_function_declaration", "function_expression",
			"function", "generator_function", "arrow_function", "class", "class_declaration",
			"method_definition":
			continue
		default:
			if hasValueReturn(c) {
				return true
			}
		}
	}
	return false
}

func annotation(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), ":"))
}

func terminate(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ";") || strings.HasSuffix(s, "}") {
		return s
	}
	return s + ";"
}

// requote converts a string or substitution-free template literal to the
// double-quoted form used in declarations.
func requote(lit string) string {
	if len(lit) < 2 || lit[0] == '"' {
		return lit
	}
	quote := lit[:1]
	inner := lit[1 : len(lit)-1]
	inner = strings.ReplaceAll(inner, `\`+quote, quote)
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\\' && i+1 < len(inner) {
			b.WriteByte(c)
			b.WriteByte(inner[i+1])
			i++
			continue
		}
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func hasChild(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

func hasNamedChild(n *sitter.Node, typ string) bool {
	return len(namedChildren(n, typ)) > 0
}

func namedChildren(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}

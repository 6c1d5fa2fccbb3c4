package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"docagent/internal/endpoint"
)

// FastAPIExtractor implements LanguageExtractor for FastAPI route handlers.
type FastAPIExtractor struct{}

var httpMethods = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true,
	"patch": true, "options": true, "head": true,
}

var (
	// Path(...), fastapi.Query(...), params.Header(...)
	markerCallRe = regexp.MustCompile(`(?s)^(?:[A-Za-z_]\w*\.)*(Path|Query|Body|Header|Cookie|Form|File|Depends|Security)\s*\((.*)\)$`)
	statusAttrRe = regexp.MustCompile(`HTTP_(\d{3})\b`)
)

var markerLocations = map[string]string{
	"Path":   endpoint.LocationPath,
	"Query":  endpoint.LocationQuery,
	"Body":   endpoint.LocationBody,
	"Form":   endpoint.LocationBody,
	"File":   endpoint.LocationBody,
	"Header": endpoint.LocationHeader,
	"Cookie": endpoint.LocationHeader,
}

// Framework-injected handler arguments that are not part of the API surface.
var injectedTypes = map[string]bool{
	"Request":         true,
	"Response":        true,
	"BackgroundTasks": true,
	"WebSocket":       true,
}

// Capitalized annotations that are scalars or containers, not request models.
var nonModelTypes = map[string]bool{
	"Any": true, "Dict": true, "Mapping": true, "Tuple": true, "Literal": true,
	"UUID": true, "Decimal": true, "EmailStr": true, "HttpUrl": true, "AnyUrl": true,
	"AnyHttpUrl": true, "SecretStr": true, "Json": true, "UploadFile": true,
	"IPvAnyAddress": true, "None": true,
}

func (f *FastAPIExtractor) GetLanguage() *sitter.Language {
	return python.GetLanguage()
}

func (f *FastAPIExtractor) GetQuery() string {
	return `
		(decorated_definition
			definition: (function_definition)) @route
	`
}

const routerQuery = `
	(assignment
		left: (identifier) @name
		right: (call
			function: [(identifier) (attribute)] @ctor
			arguments: (argument_list) @args))
`

// ScanFile records `router = APIRouter(prefix="/x")` assignments so that
// decorators on that router resolve to full paths.
func (f *FastAPIExtractor) ScanFile(file *SourceFile) {
	file.RouterPrefixes = map[string]string{}
	query, err := sitter.NewQuery([]byte(routerQuery), f.GetLanguage())
	if err != nil {
		return
	}
	qc := sitter.NewQueryCursor()
	qc.Exec(query, file.Root)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var name, ctor string
		var args *sitter.Node
		for _, c := range m.Captures {
			switch query.CaptureNameForId(c.Index) {
			case "name":
				name = c.Node.Content(file.Code)
			case "ctor":
				ctor = c.Node.Content(file.Code)
			case "args":
				args = c.Node
			}
		}
		if !strings.HasSuffix(ctor, "APIRouter") || args == nil {
			continue
		}
		if v := keywordArgument(args, "prefix", file.Code); v != nil {
			if prefix, ok := stringLiteral(v, file.Code); ok {
				file.RouterPrefixes[name] = strings.TrimRight(prefix, "/")
			}
		}
	}
}

func (f *FastAPIExtractor) ExtractRoutes(captureName string, node *sitter.Node, file *SourceFile) []endpoint.Signature {
	if captureName != "route" {
		return nil
	}
	def := node.ChildByFieldName("definition")
	if def == nil || def.Type() != "function_definition" {
		return nil
	}

	var sigs []endpoint.Signature
	for i := 0; i < int(node.NamedChildCount()); i++ {
		dec := node.NamedChild(i)
		if dec.Type() != "decorator" {
			continue
		}
		sig, ok := f.extractRoute(dec, def, file)
		if ok {
			sigs = append(sigs, sig)
		}
	}
	return sigs
}

func (f *FastAPIExtractor) extractRoute(dec, def *sitter.Node, file *SourceFile) (endpoint.Signature, bool) {
	src := file.Code
	if dec.NamedChildCount() == 0 {
		return endpoint.Signature{}, false
	}
	call := dec.NamedChild(0)
	if call.Type() != "call" {
		return endpoint.Signature{}, false
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return endpoint.Signature{}, false
	}
	attr := fn.ChildByFieldName("attribute")
	if attr == nil || !httpMethods[attr.Content(src)] {
		return endpoint.Signature{}, false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Type() != "argument_list" {
		return endpoint.Signature{}, false
	}

	pathNode := firstPositional(args)
	if pathNode == nil {
		pathNode = keywordArgument(args, "path", src)
	}
	path, ok := stringLiteral(pathNode, src)
	if !ok {
		return endpoint.Signature{}, false
	}
	if obj := fn.ChildByFieldName("object"); obj != nil && obj.Type() == "identifier" {
		path = file.RouterPrefixes[obj.Content(src)] + path
	}

	sig := endpoint.Signature{
		Method:     strings.ToUpper(attr.Content(src)),
		Path:       path,
		File:       file.Path,
		Line:       int(def.StartPoint().Row + 1),
		EndLine:    int(def.EndPoint().Row + 1),
		Tags:       []string{},
		StatusCode: endpoint.DefaultStatusCode,
	}
	if name := def.ChildByFieldName("name"); name != nil {
		sig.Function = name.Content(src)
	}

	sig.Summary, sig.Description = splitDocstring(docstring(def, src))
	if v := keywordArgument(args, "summary", src); v != nil {
		if s, ok := stringLiteral(v, src); ok {
			sig.Summary = strings.TrimSpace(s)
		}
	}
	if v := keywordArgument(args, "description", src); v != nil {
		if s, ok := stringLiteral(v, src); ok {
			sig.Description = cleanDocstring(s)
		}
	}

	if ret := def.ChildByFieldName("return_type"); ret != nil {
		if t := ret.Content(src); t != "None" {
			sig.ResponseModel = t
		}
	}
	if v := keywordArgument(args, "response_model", src); v != nil {
		if t := v.Content(src); t != "None" {
			sig.ResponseModel = t
		}
	}
	if v := keywordArgument(args, "tags", src); v != nil {
		sig.Tags = stringList(v, src)
	}
	if v := keywordArgument(args, "status_code", src); v != nil {
		if code := statusCode(v, src); code > 0 {
			sig.StatusCode = code
		}
	}

	if params := def.ChildByFieldName("parameters"); params != nil {
		sig.Parameters, sig.RequestModel = extractParameters(params, path, src)
	}
	return sig, true
}

type rawParam struct {
	name       string
	annotation string
	def        string
	hasDefault bool
}

func extractParameters(params *sitter.Node, routePath string, src []byte) ([]endpoint.Parameter, string) {
	out := []endpoint.Parameter{}
	var requestModel string

	for i := 0; i < int(params.NamedChildCount()); i++ {
		raw, ok := readParam(params.NamedChild(i), src)
		if !ok || raw.name == "self" || raw.name == "cls" {
			continue
		}
		p, isModel, keep := classifyParam(raw, routePath)
		if !keep {
			continue
		}
		if isModel && requestModel == "" {
			requestModel = p.Type
		}
		out = append(out, p)
	}
	return out, requestModel
}

func readParam(n *sitter.Node, src []byte) (rawParam, bool) {
	var raw rawParam
	switch n.Type() {
	case "identifier":
		raw.name = n.Content(src)
	case "typed_parameter":
		if n.NamedChildCount() == 0 || n.NamedChild(0).Type() != "identifier" {
			// *args: T and **kwargs: T
			return raw, false
		}
		raw.name = n.NamedChild(0).Content(src)
		if t := n.ChildByFieldName("type"); t != nil {
			raw.annotation = t.Content(src)
		}
	case "default_parameter", "typed_default_parameter":
		name := n.ChildByFieldName("name")
		if name == nil {
			return raw, false
		}
		raw.name = name.Content(src)
		if t := n.ChildByFieldName("type"); t != nil {
			raw.annotation = t.Content(src)
		}
		if v := n.ChildByFieldName("value"); v != nil {
			raw.def = v.Content(src)
			raw.hasDefault = true
			if s, ok := stringLiteral(v, src); ok {
				raw.def = s
			}
		}
	default:
		// splats, separators, comments
		return raw, false
	}
	return raw, true
}

// classifyParam decides location, type and optionality. keep is false for
// dependencies and framework-injected arguments.
func classifyParam(raw rawParam, routePath string) (p endpoint.Parameter, isModel bool, keep bool) {
	typ := raw.annotation
	var metadata []string
	if inner, ok := genericArgs(typ, "Annotated"); ok && len(inner) > 0 {
		typ = inner[0]
		metadata = inner[1:]
	}

	marker, markerArgs := "", ""
	for _, m := range metadata {
		if name, args, ok := markerCall(m); ok {
			marker, markerArgs = name, args
			break
		}
	}
	defaultIsMarker := false
	if raw.hasDefault {
		if name, args, ok := markerCall(raw.def); ok {
			marker, markerArgs = name, args
			defaultIsMarker = true
		}
	}
	if marker == "Depends" || marker == "Security" {
		return p, false, false
	}
	if injectedTypes[baseTypeName(typ)] {
		return p, false, false
	}

	p.Name = raw.name
	p.Type = typ
	if p.Type == "" {
		p.Type = "string"
	}
	p.Required = !raw.hasDefault
	if raw.hasDefault && !defaultIsMarker {
		def := raw.def
		p.Default = &def
	}
	if defaultIsMarker {
		// Query(...) is required; Query(10) or Query(default=10) carries a default.
		p.Required = true
		if def, ok := markerDefault(markerArgs); ok {
			p.Required = false
			p.Default = &def
		}
	}

	switch {
	case marker != "":
		p.Location = markerLocations[marker]
	case strings.Contains(routePath, "{"+raw.name+"}") || strings.Contains(routePath, "{"+raw.name+":"):
		p.Location = endpoint.LocationPath
	case isModelType(typ):
		p.Location = endpoint.LocationBody
	case baseTypeName(typ) == "UploadFile":
		p.Location = endpoint.LocationBody
	default:
		p.Location = endpoint.LocationQuery
	}
	if p.Location == endpoint.LocationPath {
		p.Required = true
		p.Default = nil
	}
	isModel = p.Location == endpoint.LocationBody && isModelType(typ)
	return p, isModel, true
}

func markerCall(expr string) (name, args string, ok bool) {
	m := markerCallRe.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// markerDefault finds the default in the argument list of a parameter marker.
func markerDefault(args string) (string, bool) {
	parts := splitTopLevel(args, ',')
	value := ""
	found := false
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, isKw := splitKeyword(part); isKw {
			if k == "default" {
				value, found = v, true
				break
			}
			continue
		}
		if i == 0 {
			value, found = part, true
			break
		}
	}
	if !found || value == "..." || value == "Ellipsis" {
		return "", false
	}
	return unquote(value), true
}

func splitKeyword(arg string) (key, value string, ok bool) {
	eq := strings.Index(arg, "=")
	if eq <= 0 || strings.ContainsAny(arg[:eq], "([{\"' ") {
		return "", "", false
	}
	if eq+1 < len(arg) && arg[eq+1] == '=' {
		return "", "", false
	}
	return strings.TrimSpace(arg[:eq]), strings.TrimSpace(arg[eq+1:]), true
}

// isModelType reports whether an annotation names a Pydantic-style model,
// looking through Optional, Union, list types and `X | None`.
func isModelType(t string) bool {
	t = strings.TrimSpace(t)
	if t == "" {
		return false
	}
	if alts := splitTopLevel(t, '|'); len(alts) > 1 {
		for _, alt := range alts {
			if strings.TrimSpace(alt) != "None" {
				return isModelType(alt)
			}
		}
		return false
	}
	base := baseTypeName(t)
	switch base {
	case "Optional", "Union", "List", "Sequence", "Set", "list", "set":
		inner, ok := genericArgs(t, "")
		if !ok || len(inner) == 0 {
			return false
		}
		for _, arg := range inner {
			if strings.TrimSpace(arg) != "None" {
				return isModelType(arg)
			}
		}
		return false
	}
	if nonModelTypes[base] {
		return false
	}
	r := []rune(base)
	return len(r) > 0 && unicode.IsUpper(r[0])
}

// baseTypeName strips module qualifiers and generic arguments:
// "typing.Optional[int]" -> "Optional".
func baseTypeName(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.Index(t, "["); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndex(t, "."); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSpace(t)
}

// genericArgs splits "Name[a, b]" into its arguments. An empty want matches
// any generic.
func genericArgs(t, want string) ([]string, bool) {
	t = strings.TrimSpace(t)
	open := strings.Index(t, "[")
	if open < 0 || !strings.HasSuffix(t, "]") {
		return nil, false
	}
	if want != "" && baseTypeName(t[:open]) != want {
		return nil, false
	}
	parts := splitTopLevel(t[open+1:len(t)-1], ',')
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, true
}

// splitTopLevel splits s on sep outside brackets and string literals.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	var quote rune
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
		case r == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + len(string(r))
		}
	}
	return append(parts, s[start:])
}

func firstPositional(args *sitter.Node) *sitter.Node {
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		switch c.Type() {
		case "keyword_argument", "comment", "list_splat", "dictionary_splat":
			continue
		}
		return c
	}
	return nil
}

func keywordArgument(args *sitter.Node, name string, src []byte) *sitter.Node {
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		if c.Type() != "keyword_argument" {
			continue
		}
		if n := c.ChildByFieldName("name"); n != nil && n.Content(src) == name {
			return c.ChildByFieldName("value")
		}
	}
	return nil
}

// stringLiteral returns the text of a plain string literal without its
// prefix and quotes. Escape sequences are kept as written.
func stringLiteral(n *sitter.Node, src []byte) (string, bool) {
	if n == nil || n.Type() != "string" {
		return "", false
	}
	return unquoteLiteral(n.Content(src))
}

func unquoteLiteral(raw string) (string, bool) {
	raw = strings.TrimLeft(raw, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(raw) >= 2*len(q) && strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) {
			return raw[len(q) : len(raw)-len(q)], true
		}
	}
	return "", false
}

func unquote(v string) string {
	if !strings.HasPrefix(v, `"`) && !strings.HasPrefix(v, "'") {
		return v
	}
	if s, ok := unquoteLiteral(v); ok {
		return s
	}
	return v
}

func stringList(n *sitter.Node, src []byte) []string {
	out := []string{}
	if n.Type() != "list" && n.Type() != "tuple" {
		return out
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if s, ok := stringLiteral(n.NamedChild(i), src); ok {
			out = append(out, s)
		}
	}
	return out
}

func statusCode(n *sitter.Node, src []byte) int {
	text := n.Content(src)
	switch n.Type() {
	case "integer":
		code, err := strconv.Atoi(text)
		if err != nil {
			return 0
		}
		return code
	case "attribute", "identifier":
		if m := statusAttrRe.FindStringSubmatch(text); m != nil {
			code, _ := strconv.Atoi(m[1])
			return code
		}
	}
	return 0
}

func docstring(def *sitter.Node, src []byte) string {
	body := def.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	for i := 1; first.Type() == "comment" && i < int(body.NamedChildCount()); i++ {
		first = body.NamedChild(i)
	}
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	s, ok := stringLiteral(first.NamedChild(0), src)
	if !ok {
		return ""
	}
	return cleanDocstring(s)
}

// cleanDocstring trims the docstring and removes the common indentation of
// every line after the first.
func cleanDocstring(doc string) string {
	lines := strings.Split(strings.ReplaceAll(doc, "\t", "    "), "\n")
	indent := -1
	for _, l := range lines[1:] {
		trimmed := strings.TrimLeft(l, " ")
		if trimmed == "" {
			continue
		}
		if n := len(l) - len(trimmed); indent < 0 || n < indent {
			indent = n
		}
	}
	lines[0] = strings.TrimSpace(lines[0])
	for i := 1; i < len(lines); i++ {
		if indent > 0 && len(lines[i]) >= indent {
			lines[i] = lines[i][indent:]
		} else {
			lines[i] = strings.TrimLeft(lines[i], " ")
		}
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func splitDocstring(doc string) (summary, description string) {
	if doc == "" {
		return "", ""
	}
	parts := strings.SplitN(doc, "\n", 2)
	summary = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		description = strings.TrimSpace(parts[1])
	}
	return summary, description
}

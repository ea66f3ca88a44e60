package golang

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/vgerber/opage/pkg/ir"
	"github.com/vgerber/opage/pkg/utils"
)

// typeMapper renders graph types as Go type expressions.
type typeMapper struct {
	g *ir.Graph
}

// expr is the Go type of k. Declared types are referenced by name; anonymous
// arrays, maps and aliases are spelled out.
func (m typeMapper) expr(k ir.Key) string {
	return m.exprDepth(k, 0)
}

func (m typeMapper) exprDepth(k ir.Key, depth int) string {
	t, ok := m.g.Get(k)
	if !ok || depth > 32 {
		return "any"
	}
	if t.Declared {
		return t.Name
	}
	switch t.Kind {
	case ir.KindPrimitive:
		return primitiveType(t.Primitive, t.Format)
	case ir.KindArray:
		return "[]" + m.exprDepth(t.Elem, depth+1)
	case ir.KindMap:
		return "map[string]" + m.exprDepth(t.Elem, depth+1)
	case ir.KindAlias:
		return m.exprDepth(t.Target, depth+1)
	}
	return "any"
}

// underlying follows aliases down to the type that defines the shape.
func (m typeMapper) underlying(k ir.Key) (*ir.TypeDef, bool) {
	nullable := false
	for range 32 {
		t, ok := m.g.Get(k)
		if !ok {
			return nil, nullable
		}
		nullable = nullable || t.Nullable
		if t.Kind != ir.KindAlias {
			return t, nullable
		}
		k = t.Target
	}
	return nil, nullable
}

// requiredNames lists the JSON names of the required fields when k is a struct.
func (m typeMapper) requiredNames(k ir.Key) []string {
	t, _ := m.underlying(k)
	if t == nil || t.Kind != ir.KindStruct {
		return nil
	}
	var out []string
	for _, f := range t.Fields {
		if f.Required {
			out = append(out, strconv.Quote(f.JSONName))
		}
	}
	return out
}

// nilable reports whether the zero value of k already means "absent".
func (m typeMapper) nilable(k ir.Key) bool {
	t, _ := m.underlying(k)
	if t == nil {
		return true
	}
	switch t.Kind {
	case ir.KindArray, ir.KindMap:
		return true
	case ir.KindPrimitive:
		return t.Primitive == ir.PrimitiveAny || t.Primitive == ir.PrimitiveNull
	}
	return false
}

// fieldType is the Go type of a struct field. Optional and nullable values
// are pointers, and so are nested structs and unions so that recursive
// types stay finite.
func (m typeMapper) fieldType(k ir.Key, required bool) string {
	expr := m.expr(k)
	if m.nilable(k) {
		return expr
	}
	t, nullable := m.underlying(k)
	if !required || nullable || (t != nil && (t.Kind == ir.KindStruct || t.Kind == ir.KindUnion)) {
		return "*" + expr
	}
	return expr
}

func primitiveType(p ir.Primitive, format string) string {
	switch p {
	case ir.PrimitiveString:
		return "string"
	case ir.PrimitiveInteger:
		if format == "int32" {
			return "int32"
		}
		return "int64"
	case ir.PrimitiveNumber:
		if format == "float" {
			return "float32"
		}
		return "float64"
	case ir.PrimitiveBoolean:
		return "bool"
	}
	return "any"
}

// enumLiteral renders an enum value as a constant of base, or reports that
// the value cannot be one.
func enumLiteral(base ir.Primitive, v any) (string, bool) {
	switch base {
	case ir.PrimitiveString:
		return strconv.Quote(fmt.Sprint(v)), true
	case ir.PrimitiveBoolean:
		b, ok := v.(bool)
		return strconv.FormatBool(b), ok
	case ir.PrimitiveInteger:
		switch n := v.(type) {
		case int:
			return strconv.Itoa(n), true
		case int64:
			return strconv.FormatInt(n, 10), true
		case uint64:
			return strconv.FormatUint(n, 10), true
		case float64:
			if n == math.Trunc(n) {
				return strconv.FormatInt(int64(n), 10), true
			}
		}
	case ir.PrimitiveNumber:
		switch n := v.(type) {
		case int, int64, uint64:
			return fmt.Sprint(n), true
		case float64:
			return strconv.FormatFloat(n, 'g', -1, 64), true
		}
	}
	return "", false
}

// jsonTag renders the struct tag of a field.
func jsonTag(name string, omitEmpty bool) string {
	if omitEmpty {
		name += ",omitempty"
	}
	return "`json:" + strconv.Quote(name) + "`"
}

// pathExpression turns a path template into a Go string expression that
// escapes every variable: /items/{id} becomes
// "/items/" + url.PathEscape(fmt.Sprint(id)).
func pathExpression(template string, args map[string]string) string {
	var parts []string
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		if open > 0 {
			parts = append(parts, strconv.Quote(rest[:open]))
		}
		name := rest[open+1 : open+end]
		arg, ok := args[name]
		if !ok {
			arg = strconv.Quote(name)
		}
		parts = append(parts, "url.PathEscape(fmt.Sprint("+arg+"))")
		rest = rest[open+end+1:]
	}
	if rest != "" || len(parts) == 0 {
		parts = append(parts, strconv.Quote(rest))
	}
	return strings.Join(parts, " + ")
}

// isJSONMediaType matches application/json and any +json suffix.
func isJSONMediaType(ct string) bool {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	return mt == "application/json" || strings.HasSuffix(mt, "+json") || mt == "*/*" || mt == ""
}

// formatGoComment formats a string as Go comment lines
func formatGoComment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			result = append(result, "//")
		} else {
			result = append(result, "// "+line)
		}
	}
	return strings.Join(result, "\n")
}

var nonPackageChars = regexp.MustCompile(`[^a-z0-9_]`)

// sanitizePackageName makes a valid Go package name from a project name
func sanitizePackageName(name string) string {
	// Extract the last part of the package name if it looks like a module path
	parts := strings.Split(name, "/")
	name = parts[len(parts)-1]

	name = utils.RemoveAccents(strings.ToLower(name))
	name = nonPackageChars.ReplaceAllString(name, "")

	if len(name) > 0 && name[0] >= '0' && name[0] <= '9' {
		name = "pkg" + name
	}
	if name == "" {
		name = "client"
	}
	return name
}

// modulePath is the go.mod module of the generated project. Names that
// already look like module paths are kept.
func modulePath(name string) string {
	if strings.Contains(name, "/") && !strings.ContainsAny(name, " \t") {
		return strings.Trim(name, "/")
	}
	return sanitizePackageName(name)
}

// moduleFile is the file that holds the declarations of a module.
func moduleFile(module string) string {
	if module == "" {
		return "api.go"
	}
	return module + "_api.go"
}

// generatedHeader opens every Go file the emitter writes.
const generatedHeader = "// Code generated by opage. DO NOT EDIT."

func isModuleFile(name string) bool {
	return name == "api.go" || strings.HasSuffix(name, "_api.go")
}

// nameSet hands out identifiers for declarations the emitter adds next to
// the graph's own types.
type nameSet map[string]bool

func (s nameSet) claim(base string) string {
	name := base
	for i := 2; s[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	s[name] = true
	return name
}

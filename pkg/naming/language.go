// Package naming turns document names into identifiers that are legal in a
// target language and unique within their scope.
package naming

import (
	"fmt"
	"go/token"
	"regexp"
	"strings"

	"github.com/vgerber/opage/pkg/utils"
)

// Role is the kind of entity an identifier names. Case conventions and
// reserved words differ per role.
type Role int

const (
	RoleType Role = iota
	RoleField
	RoleVariant
	RoleModule
	RoleOperation
	RoleParam
	RoleResponse
)

func (r Role) String() string {
	switch r {
	case RoleType:
		return "type"
	case RoleField:
		return "field"
	case RoleVariant:
		return "variant"
	case RoleModule:
		return "module"
	case RoleOperation:
		return "operation"
	case RoleParam:
		return "parameter"
	case RoleResponse:
		return "response"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Language describes the identifier rules of a target language.
type Language interface {
	Name() string
	// Normalize converts free text into an identifier for role. The result is
	// legal but may still be reserved.
	Normalize(role Role, s string) string
	// Legal reports whether s may be used verbatim for role.
	Legal(role Role, s string) bool
	// Reserved reports whether s cannot be used for role.
	Reserved(role Role, s string) bool
	// SharedTypeNamespace is true when all modules end up in one namespace,
	// so type identifiers must be unique across modules.
	SharedTypeNamespace() bool
}

type profile struct {
	name      string
	cases     map[Role]func(string) string
	keywords  map[string]bool
	reserved  map[Role]map[string]bool
	digitPre  map[Role]string
	shared    bool
	legalExpr *regexp.Regexp
}

func (p *profile) Name() string { return p.name }

func (p *profile) SharedTypeNamespace() bool { return p.shared }

func (p *profile) Normalize(role Role, s string) string {
	out := p.cases[role](s)
	if out == "" {
		out = p.cases[role]("value")
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = p.digitPre[role] + out
	}
	return out
}

func (p *profile) Legal(role Role, s string) bool {
	return p.legalExpr.MatchString(s) && !p.Reserved(role, s)
}

func (p *profile) Reserved(role Role, s string) bool {
	return p.keywords[s] || p.reserved[role][s]
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Go returns the rules for Go output. Types, fields, variants, operations and
// response variants are exported PascalCase; parameters are camelCase; modules
// are snake_case file names inside one package.
func Go() Language {
	keywords := map[string]bool{}
	for tok := token.BREAK; tok <= token.VAR; tok++ {
		if tok.IsKeyword() {
			keywords[tok.String()] = true
		}
	}
	predeclared := []string{
		"any", "bool", "byte", "comparable", "complex64", "complex128", "error", "float32", "float64",
		"int", "int8", "int16", "int32", "int64", "rune", "string", "uint", "uint8", "uint16", "uint32",
		"uint64", "uintptr", "true", "false", "iota", "nil", "append", "cap", "clear", "close", "complex",
		"copy", "delete", "imag", "len", "make", "max", "min", "new", "panic", "print", "println", "real", "recover",
	}
	for _, w := range predeclared {
		keywords[w] = true
	}
	pascal := func(s string) string { return utils.ToPascalCase(s) }
	return &profile{
		name: "go",
		cases: map[Role]func(string) string{
			RoleType:      pascal,
			RoleField:     pascal,
			RoleVariant:   pascal,
			RoleModule:    utils.ToSnakeCase,
			RoleOperation: pascal,
			RoleParam:     utils.ToCamelCase,
			RoleResponse:  pascal,
		},
		keywords: keywords,
		reserved: map[Role]map[string]bool{
			// names the emitted runtime declares next to the models
			RoleType: set("Client", "Option", "Stream", "APIError", "UnionMatchError", "NewClient", "WithHTTPClient", "WithHeader"),
			// locals and imports of every generated method
			RoleParam: set("ctx", "c", "body", "params", "req", "resp", "out", "err", "q", "u", "path", "text",
				"url", "fmt", "json", "http", "context", "io", "bytes", "strings", "errors"),
			RoleField:    set("MarshalJSON", "UnmarshalJSON"),
			RoleVariant:  set("MarshalJSON", "UnmarshalJSON"),
			RoleResponse: set("StatusCode", "ContentType", "Body"),
		},
		digitPre: map[Role]string{
			RoleType: "T", RoleField: "F", RoleVariant: "V", RoleModule: "m",
			RoleOperation: "Op", RoleParam: "p", RoleResponse: "Status",
		},
		shared:    true,
		legalExpr: regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`),
	}
}

// Rust returns the rules for Rust output: PascalCase types and variants,
// snake_case fields, functions, parameters and modules.
func Rust() Language {
	keywords := set(
		"as", "async", "await", "break", "const", "continue", "crate", "dyn", "else", "enum", "extern",
		"false", "fn", "for", "if", "impl", "in", "let", "loop", "match", "mod", "move", "mut", "pub",
		"ref", "return", "self", "Self", "static", "struct", "super", "trait", "true", "type", "unsafe",
		"use", "where", "while", "abstract", "become", "box", "do", "final", "macro", "override", "priv",
		"typeof", "unsized", "virtual", "yield", "try", "gen",
	)
	return &profile{
		name: "rust",
		cases: map[Role]func(string) string{
			RoleType:      utils.ToPascalCase,
			RoleField:     utils.ToSnakeCase,
			RoleVariant:   utils.ToPascalCase,
			RoleModule:    utils.ToSnakeCase,
			RoleOperation: utils.ToSnakeCase,
			RoleParam:     utils.ToSnakeCase,
			RoleResponse:  utils.ToPascalCase,
		},
		keywords: keywords,
		reserved: map[Role]map[string]bool{
			RoleType: set("String", "Vec", "Option", "Result", "Box", "HashMap", "Value"),
		},
		digitPre: map[Role]string{
			RoleType: "T", RoleField: "f_", RoleVariant: "V", RoleModule: "m_",
			RoleOperation: "op_", RoleParam: "p_", RoleResponse: "Status",
		},
		legalExpr: regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`),
	}
}

// ForTarget returns the Language for a configured target name.
func ForTarget(target string) (Language, error) {
	switch strings.ToLower(target) {
	case "", "go":
		return Go(), nil
	case "rust":
		return Rust(), nil
	}
	return nil, fmt.Errorf("unknown target language %q", target)
}

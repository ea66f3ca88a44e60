// Package ir holds the intermediate representation handed from the resolvers
// to the emitters: a Type Graph of TypeDefs connected by keys, plus the list
// of Operations.
package ir

import (
	"strings"
)

// Key identifies a TypeDef in a Graph. Keys of document schemas are the JSON
// pointer of the schema ("#/components/schemas/Pet/properties/owner"); shared
// builtin primitives use "builtin:<primitive>[:<format>]".
type Key string

// Kind is the TypeDef variant.
type Kind string

const (
	KindPrimitive Kind = "primitive"
	KindArray     Kind = "array"
	KindMap       Kind = "map"
	KindStruct    Kind = "struct"
	KindEnum      Kind = "enum"
	KindUnion     Kind = "union"
	KindAlias     Kind = "alias"
)

// Primitive is the scalar type of a KindPrimitive TypeDef or the base of an enum.
type Primitive string

const (
	PrimitiveString  Primitive = "string"
	PrimitiveNumber  Primitive = "number"
	PrimitiveInteger Primitive = "integer"
	PrimitiveBoolean Primitive = "boolean"
	PrimitiveNull    Primitive = "null"
	// PrimitiveAny is an unconstrained value ({} or a media type without schema).
	PrimitiveAny Primitive = "any"
)

// UnionTag records which keyword produced a union.
type UnionTag string

const (
	UnionAnyOf UnionTag = "anyOf"
	UnionOneOf UnionTag = "oneOf"
)

// MatchRule is how generated code selects the union member of a decoded value.
type MatchRule string

const (
	// MatchDiscriminator selects the member by the discriminator property.
	MatchDiscriminator MatchRule = "discriminator"
	// MatchExclusive requires exactly one member to decode strictly.
	MatchExclusive MatchRule = "exclusive"
)

// Path is the naming path of a TypeDef: the chain of container names that
// leads to it. It is rendered as "/A/B/C".
type Path []string

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// Last returns the innermost segment.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Append returns a new path with seg added. The receiver is never modified.
func (p Path) Append(seg string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// TypeDef is one node of the Type Graph. Which fields are meaningful depends on Kind.
type TypeDef struct {
	Key  Key
	Kind Kind
	Path Path
	// Name is the canonical identifier, empty for anonymous types
	Name   string
	Module string
	// Declared types get their own declaration in emitted code
	Declared    bool
	Nullable    bool
	Description string
	Deprecated  bool

	// KindPrimitive
	Primitive Primitive
	Format    string

	// KindArray and KindMap
	Elem Key

	// KindStruct
	Fields     []Field
	Additional Key
	AllOf      []Key

	// KindEnum
	Variants []EnumVariant
	EnumBase Primitive

	// KindUnion
	Union *Union

	// KindAlias
	Target Key

	placeholder bool
}

// Field is one property of a struct.
type Field struct {
	JSONName    string
	Name        string
	Type        Key
	Required    bool
	Default     any
	Description string
	Deprecated  bool
}

// EnumVariant is one allowed value of an enum.
type EnumVariant struct {
	Value any
	Name  string
}

// Union is a tagged choice between member types.
type Union struct {
	Tag           UnionTag
	Members       []UnionMember
	Match         MatchRule
	Discriminator *Discriminator
}

// UnionMember is one alternative of a union.
type UnionMember struct {
	Name string
	Type Key
	// Values are the discriminator values selecting this member
	Values []string
}

// Discriminator is the property that names the member of a union.
type Discriminator struct {
	PropertyName string
	Mapping      map[string]Key
}

// BuiltinKey returns the key of the shared primitive TypeDef.
func BuiltinKey(p Primitive, format string) Key {
	if format == "" {
		return Key("builtin:" + string(p))
	}
	return Key("builtin:" + string(p) + ":" + format)
}

// IsBuiltin reports whether k names a shared primitive.
func (k Key) IsBuiltin() bool {
	return strings.HasPrefix(string(k), "builtin:")
}

// References returns the keys this TypeDef points at, in declaration order.
func (t *TypeDef) References() []Key {
	var out []Key
	add := func(k Key) {
		if k != "" {
			out = append(out, k)
		}
	}
	switch t.Kind {
	case KindArray, KindMap:
		add(t.Elem)
	case KindAlias:
		add(t.Target)
	case KindStruct:
		for _, f := range t.Fields {
			add(f.Type)
		}
		add(t.Additional)
		for _, k := range t.AllOf {
			add(k)
		}
	case KindUnion:
		if t.Union != nil {
			for _, m := range t.Union.Members {
				add(m.Type)
			}
		}
	}
	return out
}

// Field returns the field with the given JSON name.
func (t *TypeDef) Field(jsonName string) (*Field, bool) {
	for i := range t.Fields {
		if t.Fields[i].JSONName == jsonName {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

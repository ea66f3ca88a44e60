// Package document is the generic, already-parsed form of an OpenAPI
// document. Nodes are addressed by JSON pointers ("#/components/schemas/Pet")
// and keep the key order of the source, which the resolvers rely on for
// deterministic output.
//
// YAML and JSON inputs are both parsed with gopkg.in/yaml.v3.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vgerber/opage/pkg/generrors"
)

// Document is a parsed OpenAPI document.
type Document struct {
	source string
	root   *yaml.Node
}

// Kind is the shape of a node.
type Kind int

const (
	KindInvalid Kind = iota
	KindMap
	KindSeq
	KindScalar
	KindNull
)

// Node is a view of one node of a Document together with its location.
// The zero Node is invalid and reports ok=false from every lookup.
type Node struct {
	n       *yaml.Node
	pointer string
}

// Pair is one key/value entry of a mapping node.
type Pair struct {
	Key   string
	Value Node
}

// Parse parses YAML or JSON data. source is only used in error messages.
func Parse(source string, data []byte) (*Document, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &generrors.ParseError{Source: source, Message: "document is empty"}
		}
		return nil, &generrors.ParseError{Source: source, Message: "invalid YAML/JSON", Cause: err}
	}

	doc := &Document{source: source, root: &root}
	top := doc.Root()
	if top.Kind() != KindMap {
		return nil, &generrors.ParseError{Source: source, Location: Root, Line: top.Line(), Message: "document root must be an object"}
	}

	version, ok := top.Get("openapi")
	if !ok || version.Kind() != KindScalar {
		return nil, &generrors.ParseError{Source: source, Location: Root, Message: "missing \"openapi\" version field"}
	}
	if !strings.HasPrefix(version.Scalar(), "3.") {
		return nil, &generrors.ParseError{
			Source:   source,
			Location: version.Pointer(),
			Line:     version.Line(),
			Message:  fmt.Sprintf("unsupported OpenAPI version %q, expected 3.x", version.Scalar()),
		}
	}

	for _, section := range []string{"paths", "components"} {
		if n, ok := top.Get(section); ok && n.Kind() != KindMap && n.Kind() != KindNull {
			return nil, &generrors.ParseError{Source: source, Location: n.Pointer(), Line: n.Line(), Message: section + " must be an object"}
		}
	}
	return doc, nil
}

// Source returns the name the document was parsed from.
func (d *Document) Source() string { return d.source }

// Version returns the declared OpenAPI version.
func (d *Document) Version() string {
	v, _ := d.Root().Get("openapi")
	return v.Scalar()
}

// Root returns the top-level mapping.
func (d *Document) Root() Node {
	n := d.root
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	return wrap(n, Root)
}

// Lookup resolves a local JSON pointer.
func (d *Document) Lookup(pointer string) (Node, bool) {
	tokens, ok := Split(pointer)
	if !ok {
		return Node{}, false
	}
	cur := d.Root()
	for _, t := range tokens {
		switch cur.Kind() {
		case KindMap:
			cur, ok = cur.Get(t)
		case KindSeq:
			cur, ok = cur.Index(t)
		default:
			ok = false
		}
		if !ok {
			return Node{}, false
		}
	}
	return cur, true
}

// Without returns a copy of the document with the nodes at the given pointers
// removed from their parent mapping. The receiver is not modified. The second
// result lists the pointers that matched nothing.
func (d *Document) Without(pointers ...string) (*Document, []string) {
	cp := &Document{source: d.source, root: clone(d.root)}
	var missing []string
	for _, p := range pointers {
		if !cp.remove(p) {
			missing = append(missing, p)
		}
	}
	return cp, missing
}

func (d *Document) remove(pointer string) bool {
	tokens, ok := Split(pointer)
	if !ok || len(tokens) == 0 {
		return false
	}
	parent, ok := d.Lookup(Join(Root, tokens[:len(tokens)-1]...))
	if !ok || parent.Kind() != KindMap {
		return false
	}
	key := tokens[len(tokens)-1]
	content := parent.n.Content
	for i := 0; i+1 < len(content); i += 2 {
		if content[i].Value == key {
			parent.n.Content = append(content[:i:i], content[i+2:]...)
			return true
		}
	}
	return false
}

func clone(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Content != nil {
		cp.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			cp.Content[i] = clone(c)
		}
	}
	if n.Alias != nil {
		cp.Alias = clone(n.Alias)
	}
	return &cp
}

func wrap(n *yaml.Node, pointer string) Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return Node{n: n, pointer: pointer}
}

// Pointer returns the location of the node.
func (n Node) Pointer() string { return n.pointer }

// Valid reports whether the node exists.
func (n Node) Valid() bool { return n.n != nil }

// Line returns the 1-based source line, or 0.
func (n Node) Line() int {
	if n.n == nil {
		return 0
	}
	return n.n.Line
}

func (n Node) Kind() Kind {
	if n.n == nil {
		return KindInvalid
	}
	switch n.n.Kind {
	case yaml.MappingNode:
		return KindMap
	case yaml.SequenceNode:
		return KindSeq
	case yaml.ScalarNode:
		if n.n.Tag == "!!null" {
			return KindNull
		}
		return KindScalar
	}
	return KindInvalid
}

// Get returns the value stored under key in a mapping node.
func (n Node) Get(key string) (Node, bool) {
	if n.Kind() != KindMap {
		return Node{}, false
	}
	c := n.n.Content
	for i := 0; i+1 < len(c); i += 2 {
		if c[i].Value == key {
			return wrap(c[i+1], Join(n.pointer, key)), true
		}
	}
	return Node{}, false
}

// Has reports whether a mapping node contains key.
func (n Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Index returns the element of a sequence node addressed by a decimal token.
func (n Node) Index(token string) (Node, bool) {
	if n.Kind() != KindSeq {
		return Node{}, false
	}
	i := 0
	for _, r := range token {
		if r < '0' || r > '9' {
			return Node{}, false
		}
		i = i*10 + int(r-'0')
	}
	if token == "" || i >= len(n.n.Content) {
		return Node{}, false
	}
	return wrap(n.n.Content[i], Join(n.pointer, token)), true
}

// Pairs returns the entries of a mapping node in document order.
func (n Node) Pairs() []Pair {
	if n.Kind() != KindMap {
		return nil
	}
	c := n.n.Content
	out := make([]Pair, 0, len(c)/2)
	for i := 0; i+1 < len(c); i += 2 {
		out = append(out, Pair{Key: c[i].Value, Value: wrap(c[i+1], Join(n.pointer, c[i].Value))})
	}
	return out
}

// Keys returns the keys of a mapping node in document order.
func (n Node) Keys() []string {
	pairs := n.Pairs()
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	return keys
}

// Items returns the elements of a sequence node.
func (n Node) Items() []Node {
	if n.Kind() != KindSeq {
		return nil
	}
	out := make([]Node, len(n.n.Content))
	for i, c := range n.n.Content {
		out[i] = wrap(c, Join(n.pointer, fmt.Sprint(i)))
	}
	return out
}

// Scalar returns the raw text of a scalar node, or "".
func (n Node) Scalar() string {
	if n.Kind() != KindScalar {
		return ""
	}
	return n.n.Value
}

// String returns the scalar stored under key, or "".
func (n Node) String(key string) string {
	v, _ := n.Get(key)
	return v.Scalar()
}

// Bool returns the boolean stored under key. Missing or non-boolean values are false.
func (n Node) Bool(key string) bool {
	v, ok := n.Get(key)
	if !ok || v.Kind() != KindScalar {
		return false
	}
	var b bool
	if err := v.n.Decode(&b); err != nil {
		return false
	}
	return b
}

// Strings returns the scalars of the sequence stored under key. A single
// scalar is returned as a one-element slice.
func (n Node) Strings(key string) []string {
	v, ok := n.Get(key)
	if !ok {
		return nil
	}
	switch v.Kind() {
	case KindScalar:
		return []string{v.Scalar()}
	case KindNull:
		return []string{"null"}
	}
	var out []string
	for _, item := range v.Items() {
		if item.Kind() == KindNull {
			out = append(out, "null")
			continue
		}
		out = append(out, item.Scalar())
	}
	return out
}

// Ref returns the $ref of a reference object.
func (n Node) Ref() (string, bool) {
	v, ok := n.Get("$ref")
	if !ok || v.Kind() != KindScalar {
		return "", false
	}
	return v.Scalar(), true
}

// Value decodes the node into plain Go values (map[string]any, []any,
// string, int, float64, bool, nil).
func (n Node) Value() (any, error) {
	if n.n == nil {
		return nil, nil
	}
	var v any
	if err := n.n.Decode(&v); err != nil {
		return nil, &generrors.ParseError{Location: n.pointer, Line: n.Line(), Cause: err}
	}
	return v, nil
}

// Tag returns the resolved YAML tag of a scalar ("!!str", "!!int", ...).
func (n Node) Tag() string {
	if n.n == nil {
		return ""
	}
	return n.n.ShortTag()
}

package generator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vgerber/opage/pkg/document"
	"github.com/vgerber/opage/pkg/generrors"
	"github.com/vgerber/opage/pkg/ir"
	"github.com/vgerber/opage/pkg/utils"
)

const componentSchemas = "#/components/schemas"

// keywords whose constraints cannot be expressed by the type model
var unsupportedKeywords = []string{
	"prefixItems", "patternProperties", "dependentSchemas",
	"if", "then", "else", "not", "$dynamicRef", "$recursiveRef",
}

// SchemaResolverOptions configures a SchemaResolver
type SchemaResolverOptions struct {
	// InlinePrimitives maps inline primitive schemas onto shared builtin
	// types. When false every inline primitive becomes a declared alias.
	InlinePrimitives bool
	Logger           *slog.Logger
}

// SchemaResolver turns schema nodes into TypeDefs. Results are memoized by
// location: resolving the same location twice yields the same key, and a
// placeholder is registered before children are visited so that cycles end
// on the placeholder.
type SchemaResolver struct {
	doc    *document.Document
	graph  *ir.Graph
	logger *slog.Logger
	inline bool

	mu       sync.RWMutex
	roots    map[string]ir.Path
	required map[ir.Key][]string
}

// NewSchemaResolver creates a resolver that fills graph from doc. Every
// component schema is registered as a naming root.
func NewSchemaResolver(doc *document.Document, graph *ir.Graph, opts SchemaResolverOptions) *SchemaResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &SchemaResolver{
		doc:      doc,
		graph:    graph,
		logger:   logger,
		inline:   opts.InlinePrimitives,
		roots:    map[string]ir.Path{},
		required: map[ir.Key][]string{},
	}
	if schemas, ok := doc.Lookup(componentSchemas); ok {
		for _, p := range schemas.Pairs() {
			name := p.Key
			if title := p.Value.String("title"); title != "" {
				name = title
			}
			r.roots[p.Value.Pointer()] = ir.Path{utils.ToPascalCase(name)}
		}
	}
	return r
}

// Graph returns the graph being filled.
func (r *SchemaResolver) Graph() *ir.Graph { return r.graph }

// Root registers the naming path used for the schema at pointer and
// everything nested below it.
func (r *SchemaResolver) Root(pointer string, path ir.Path) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots[pointer] = path
}

// ComponentPointers lists the component schemas in document order.
func (r *SchemaResolver) ComponentPointers() []string {
	schemas, ok := r.doc.Lookup(componentSchemas)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range schemas.Pairs() {
		out = append(out, p.Value.Pointer())
	}
	return out
}

// ResolveComponents resolves every component schema. Components are
// independent entry points, so they are resolved by up to workers goroutines
// sharing the memo. The first failing component in document order wins.
func (r *SchemaResolver) ResolveComponents(ctx context.Context, workers int) error {
	pointers := r.ComponentPointers()
	if workers < 1 {
		workers = 1
	}

	// a failing component does not cancel the others; only ctx does, so the
	// reported error is stable across schedules
	var g errgroup.Group
	g.SetLimit(workers)
	errs := make([]error, len(pointers))
	for i, ptr := range pointers {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			_, errs[i] = r.Resolve(ptr)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	r.logger.Debug("resolved component schemas", "count", len(pointers), "types", r.graph.Len())
	return ctx.Err()
}

// Resolve returns the key of the TypeDef modeling the schema at pointer.
func (r *SchemaResolver) Resolve(pointer string) (ir.Key, error) {
	ptr, ok := document.Normalize(pointer)
	if !ok {
		return "", &generrors.UnsupportedFeatureError{Feature: "external $ref", Location: pointer}
	}
	node, ok := r.doc.Lookup(ptr)
	if !ok {
		return "", &generrors.RefResolutionError{Ref: pointer}
	}
	return r.resolveNode(node)
}

func (r *SchemaResolver) resolveNode(node document.Node) (ir.Key, error) {
	ptr := node.Pointer()

	if _, isRef := node.Ref(); isRef {
		if r.isComponent(ptr) {
			return r.resolveComponentAlias(node)
		}
		target, err := r.follow(node)
		if err != nil {
			return "", err
		}
		return r.resolveNode(target)
	}

	if err := checkSupported(node); err != nil {
		return "", err
	}
	if (node.Kind() == document.KindScalar && node.Scalar() == "true") || node.Kind() == document.KindNull {
		return r.builtin(ir.PrimitiveAny, "", false)
	}
	if node.Kind() != document.KindMap {
		return "", &generrors.ParseError{Location: ptr, Line: node.Line(), Message: "schema must be an object"}
	}

	types, nullable, err := schemaTypes(node)
	if err != nil {
		return "", err
	}
	nullable = nullable || node.Bool("nullable")

	switch {
	case node.Has("enum") || node.Has("const"):
		return r.declare(node, func(td *ir.TypeDef) error { return r.buildEnum(node, types, td) })
	case node.Has("allOf"):
		if node.Has("oneOf") || node.Has("anyOf") {
			return "", &generrors.UnsupportedFeatureError{Feature: "allOf combined with oneOf/anyOf", Location: ptr}
		}
		return r.declare(node, func(td *ir.TypeDef) error { return r.buildAllOf(node, td) })
	case node.Has("oneOf") || node.Has("anyOf"):
		return r.resolveUnion(node, nullable)
	case slices.Contains(types, "array") || node.Has("items"):
		return r.declare(node, func(td *ir.TypeDef) error { return r.buildArray(node, td) })
	case slices.Contains(types, "object") || node.Has("properties") || node.Has("additionalProperties"):
		return r.declare(node, func(td *ir.TypeDef) error { return r.buildObject(node, td) })
	}

	prim := ir.PrimitiveAny
	if len(types) == 1 {
		prim = ir.Primitive(types[0])
	}
	format := node.String("format")
	if !r.isComponent(ptr) && r.inline {
		return r.builtin(prim, format, nullable)
	}
	target, err := r.builtin(prim, format, false)
	if err != nil {
		return "", err
	}
	return r.declare(node, func(td *ir.TypeDef) error {
		td.Kind = ir.KindAlias
		td.Target = target
		td.Declared = true
		return nil
	})
}

// declare reserves the TypeDef for node and lets build fill it in. Callers
// that lose the race for the reservation get the key right away.
func (r *SchemaResolver) declare(node document.Node, build func(td *ir.TypeDef) error) (ir.Key, error) {
	key := ir.Key(node.Pointer())
	path := r.pathFor(node.Pointer())
	if _, created, err := r.graph.Reserve(key, path); err != nil || !created {
		return key, err
	}

	_, nullable, _ := schemaTypes(node)
	td := &ir.TypeDef{
		Key:         key,
		Path:        path,
		Nullable:    nullable || node.Bool("nullable"),
		Description: node.String("description"),
		Deprecated:  node.Bool("deprecated"),
	}
	if err := build(td); err != nil {
		return "", err
	}
	switch {
	case r.isComponent(node.Pointer()):
		td.Declared = true
	case isAllOfPart(node.Pointer()):
		td.Declared = false
	case td.Kind == ir.KindStruct || td.Kind == ir.KindEnum || td.Kind == ir.KindUnion:
		td.Declared = true
	}
	return key, r.graph.Complete(td)
}

func (r *SchemaResolver) builtin(p ir.Primitive, format string, nullable bool) (ir.Key, error) {
	key := ir.BuiltinKey(p, format)
	if nullable {
		key += "?"
	}
	_, err := r.graph.Put(&ir.TypeDef{Key: key, Kind: ir.KindPrimitive, Primitive: p, Format: format, Nullable: nullable})
	return key, err
}

func (r *SchemaResolver) resolveComponentAlias(node document.Node) (ir.Key, error) {
	target, err := r.follow(node)
	if err != nil {
		return "", err
	}
	return r.declare(node, func(td *ir.TypeDef) error {
		key, err := r.resolveNode(target)
		if err != nil {
			return err
		}
		td.Kind = ir.KindAlias
		td.Target = key
		return nil
	})
}

// follow resolves a chain of $refs starting at node. It stops at the first
// node that is not a reference or that is a component, which has its own
// TypeDef.
func (r *SchemaResolver) follow(node document.Node) (document.Node, error) {
	seen := map[string]bool{node.Pointer(): true}
	cur := node
	for {
		ref, ok := cur.Ref()
		if !ok {
			return cur, nil
		}
		target, local := document.Normalize(ref)
		if !local {
			return document.Node{}, &generrors.UnsupportedFeatureError{Feature: "external $ref", Location: cur.Pointer(), Message: ref}
		}
		next, found := r.doc.Lookup(target)
		if !found {
			return document.Node{}, &generrors.RefResolutionError{Ref: ref, Location: cur.Pointer()}
		}
		if r.isComponent(target) {
			return next, nil
		}
		if seen[target] {
			return document.Node{}, &generrors.RefResolutionError{Ref: ref, Location: cur.Pointer(), Message: "circular $ref chain"}
		}
		seen[target] = true
		cur = next
	}
}

func (r *SchemaResolver) buildEnum(node document.Node, types []string, td *ir.TypeDef) error {
	td.Kind = ir.KindEnum
	var values []any
	if c, ok := node.Get("const"); ok {
		v, err := c.Value()
		if err != nil {
			return err
		}
		values = []any{v}
	} else {
		list, _ := node.Get("enum")
		if list.Kind() != document.KindSeq {
			return &generrors.ParseError{Location: list.Pointer(), Line: list.Line(), Message: "enum must be a list"}
		}
		for _, item := range list.Items() {
			v, err := item.Value()
			if err != nil {
				return err
			}
			values = append(values, v)
		}
	}

	seen := map[string]bool{}
	for _, v := range values {
		if v == nil {
			td.Nullable = true
			continue
		}
		lit := fmt.Sprint(v)
		if seen[lit] {
			continue
		}
		seen[lit] = true
		td.Variants = append(td.Variants, ir.EnumVariant{Value: v})
	}
	if len(td.Variants) == 0 {
		return &generrors.UnsupportedFeatureError{Feature: "enum without non-null values", Location: node.Pointer()}
	}

	if len(types) == 1 {
		td.EnumBase = ir.Primitive(types[0])
		return nil
	}
	base, ok := inferEnumBase(td.Variants)
	if !ok {
		return &generrors.UnsupportedFeatureError{Feature: "enum with mixed value types", Location: node.Pointer()}
	}
	td.EnumBase = base
	return nil
}

// inferEnumBase finds the primitive shared by all values
func inferEnumBase(variants []ir.EnumVariant) (ir.Primitive, bool) {
	var base ir.Primitive
	for _, v := range variants {
		var p ir.Primitive
		switch v.Value.(type) {
		case string:
			p = ir.PrimitiveString
		case bool:
			p = ir.PrimitiveBoolean
		case int, int64, uint64:
			p = ir.PrimitiveInteger
		case float64:
			p = ir.PrimitiveNumber
		default:
			return "", false
		}
		switch {
		case base == "":
			base = p
		case base == p:
		case base == ir.PrimitiveInteger && p == ir.PrimitiveNumber, base == ir.PrimitiveNumber && p == ir.PrimitiveInteger:
			base = ir.PrimitiveNumber
		default:
			return "", false
		}
	}
	return base, true
}

func (r *SchemaResolver) buildArray(node document.Node, td *ir.TypeDef) error {
	td.Kind = ir.KindArray
	items, ok := node.Get("items")
	if !ok {
		key, err := r.builtin(ir.PrimitiveAny, "", false)
		td.Elem = key
		return err
	}
	if items.Kind() == document.KindSeq {
		return &generrors.UnsupportedFeatureError{Feature: "tuple items", Location: items.Pointer()}
	}
	key, err := r.resolveNode(items)
	td.Elem = key
	return err
}

func (r *SchemaResolver) buildObject(node document.Node, td *ir.TypeDef) error {
	additional, err := r.additional(node)
	if err != nil {
		return err
	}
	props, hasProps := node.Get("properties")
	if !hasProps || len(props.Pairs()) == 0 {
		td.Kind = ir.KindMap
		if additional == "" {
			additional, err = r.builtin(ir.PrimitiveAny, "", false)
		}
		td.Elem = additional
		return err
	}

	td.Kind = ir.KindStruct
	td.Additional = additional
	td.Fields, err = r.fields(node)
	return err
}

func (r *SchemaResolver) fields(node document.Node) ([]ir.Field, error) {
	props, _ := node.Get("properties")
	required := node.Strings("required")
	var out []ir.Field
	for _, p := range props.Pairs() {
		key, err := r.resolveNode(p.Value)
		if err != nil {
			return nil, err
		}
		f := ir.Field{
			JSONName:    p.Key,
			Type:        key,
			Required:    slices.Contains(required, p.Key),
			Description: p.Value.String("description"),
			Deprecated:  p.Value.Bool("deprecated"),
		}
		if d, ok := p.Value.Get("default"); ok {
			if f.Default, err = d.Value(); err != nil {
				return nil, err
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// additional resolves additionalProperties. Absent or false yields "".
func (r *SchemaResolver) additional(node document.Node) (ir.Key, error) {
	ap, ok := node.Get("additionalProperties")
	if !ok {
		return "", nil
	}
	if ap.Kind() == document.KindScalar {
		if ap.Scalar() == "true" {
			return r.builtin(ir.PrimitiveAny, "", false)
		}
		return "", nil
	}
	return r.resolveNode(ap)
}

// buildAllOf records the members of an intersection. Member fields are
// merged by Flatten once every member is resolved.
func (r *SchemaResolver) buildAllOf(node document.Node, td *ir.TypeDef) error {
	td.Kind = ir.KindStruct
	members, _ := node.Get("allOf")
	required := node.Strings("required")
	for _, m := range members.Items() {
		key, err := r.resolveNode(m)
		if err != nil {
			return err
		}
		td.AllOf = append(td.AllOf, key)
		if _, isRef := m.Ref(); !isRef {
			required = append(required, m.Strings("required")...)
		}
	}
	if node.Has("properties") {
		fields, err := r.fields(node)
		if err != nil {
			return err
		}
		td.Fields = fields
	}
	additional, err := r.additional(node)
	if err != nil {
		return err
	}
	td.Additional = additional

	r.mu.Lock()
	r.required[td.Key] = required
	r.mu.Unlock()
	return nil
}

func (r *SchemaResolver) resolveUnion(node document.Node, nullable bool) (ir.Key, error) {
	tag := ir.UnionOneOf
	list, ok := node.Get("oneOf")
	if other, both := node.Get("anyOf"); both && ok {
		return "", &generrors.UnsupportedFeatureError{Feature: "oneOf combined with anyOf", Location: other.Pointer()}
	} else if !ok {
		tag, list = ir.UnionAnyOf, other
	}
	if node.Has("properties") {
		return "", &generrors.UnsupportedFeatureError{Feature: string(tag) + " combined with properties", Location: node.Pointer()}
	}

	var members []document.Node
	for _, m := range list.Items() {
		if isNullSchema(m) {
			nullable = true
			continue
		}
		members = append(members, m)
	}
	if len(members) == 0 {
		return "", &generrors.UnsupportedFeatureError{Feature: string(tag) + " without non-null members", Location: list.Pointer()}
	}

	// [X, null] is a nullable X
	if len(members) == 1 && !node.Has("discriminator") {
		if !r.isComponent(node.Pointer()) {
			if _, isRef := members[0].Ref(); !isRef {
				return r.resolveNode(members[0])
			}
		}
		return r.declare(node, func(td *ir.TypeDef) error {
			key, err := r.resolveNode(members[0])
			td.Kind = ir.KindAlias
			td.Target = key
			td.Nullable = true
			return err
		})
	}

	return r.declare(node, func(td *ir.TypeDef) error {
		td.Kind = ir.KindUnion
		td.Nullable = td.Nullable || nullable
		u := &ir.Union{Tag: tag, Match: ir.MatchExclusive}
		for _, m := range members {
			key, err := r.resolveNode(m)
			if err != nil {
				return err
			}
			u.Members = append(u.Members, ir.UnionMember{Type: key})
		}
		if disc, ok := node.Get("discriminator"); ok {
			d, err := r.discriminator(disc)
			if err != nil {
				return err
			}
			u.Discriminator = d
			u.Match = ir.MatchDiscriminator
			assignDiscriminatorValues(u)
		}
		td.Union = u
		return nil
	})
}

func (r *SchemaResolver) discriminator(node document.Node) (*ir.Discriminator, error) {
	prop := node.String("propertyName")
	if prop == "" {
		return nil, &generrors.ParseError{Location: node.Pointer(), Line: node.Line(), Message: "discriminator requires propertyName"}
	}
	d := &ir.Discriminator{PropertyName: prop, Mapping: map[string]ir.Key{}}
	mapping, _ := node.Get("mapping")
	for _, p := range mapping.Pairs() {
		ref := p.Value.Scalar()
		if !strings.HasPrefix(ref, "#") {
			// bare schema names are allowed as mapping targets
			ref = document.Join(componentSchemas, ref)
		}
		target, ok := document.Normalize(ref)
		if !ok {
			return nil, &generrors.UnsupportedFeatureError{Feature: "external $ref", Location: p.Value.Pointer(), Message: ref}
		}
		targetNode, found := r.doc.Lookup(target)
		if !found {
			return nil, &generrors.RefResolutionError{Ref: ref, Location: p.Value.Pointer()}
		}
		key, err := r.resolveNode(targetNode)
		if err != nil {
			return nil, err
		}
		d.Mapping[p.Key] = key
	}
	return d, nil
}

// assignDiscriminatorValues lists, per member, the discriminator values that
// select it: explicit mapping entries, else the component name.
func assignDiscriminatorValues(u *ir.Union) {
	values := map[ir.Key][]string{}
	for v, k := range u.Discriminator.Mapping {
		values[k] = append(values[k], v)
	}
	for i := range u.Members {
		m := &u.Members[i]
		if vs, ok := values[m.Type]; ok {
			slices.Sort(vs)
			m.Values = vs
			continue
		}
		if name, ok := strings.CutPrefix(string(m.Type), componentSchemas+"/"); ok && !strings.Contains(name, "/") {
			m.Values = []string{document.UnescapeToken(name)}
		}
	}
}

// pathFor derives the naming path of a location from the closest registered
// root above it.
func (r *SchemaResolver) pathFor(ptr string) ir.Path {
	tokens, _ := document.Split(ptr)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for n := len(tokens); n >= 0; n-- {
		base := document.Join(document.Root, tokens[:n]...)
		if path, ok := r.roots[base]; ok {
			return r.walk(path, base, tokens[n:])
		}
	}

	var words []string
	for _, t := range tokens {
		switch t {
		case "components", "schemas", "paths", "content", "schema":
		default:
			words = append(words, t)
		}
	}
	return ir.Path{utils.ToPascalCase(strings.Join(words, " "))}
}

func (r *SchemaResolver) walk(path ir.Path, cur string, rest []string) ir.Path {
	for i := 0; i < len(rest); i++ {
		tok := rest[i]
		next := ""
		if i+1 < len(rest) {
			next = rest[i+1]
		}
		switch tok {
		case "properties", "$defs", "definitions":
			if next != "" {
				path = path.Append(utils.ToPascalCase(next))
				cur = document.Join(cur, tok, next)
				i++
				continue
			}
		case "items":
			path = path.Append(path.Last() + "Item")
		case "additionalProperties":
			path = path.Append(path.Last() + "Value")
		case "anyOf", "oneOf":
			if next != "" {
				list, _ := r.doc.Lookup(document.Join(cur, tok))
				cur = document.Join(cur, tok, next)
				i++
				member, _ := r.doc.Lookup(cur)
				if nonNullMembers(list) == 1 {
					// a nullable wrapper names nothing of its own
					continue
				}
				if title := member.String("title"); title != "" {
					path = path.Append(utils.ToPascalCase(title))
				} else {
					idx, _ := strconv.Atoi(next)
					path = path.Append(fmt.Sprintf("%sVariant%d", path.Last(), idx+1))
				}
				continue
			}
		case "allOf":
			// members contribute to their parent
			if next != "" {
				cur = document.Join(cur, tok, next)
				i++
				continue
			}
		default:
			path = path.Append(utils.ToPascalCase(tok))
		}
		cur = document.Join(cur, tok)
	}
	return path
}

func (r *SchemaResolver) isComponent(ptr string) bool {
	tokens, ok := document.Split(ptr)
	return ok && len(tokens) == 3 && tokens[0] == "components" && tokens[1] == "schemas"
}

func (r *SchemaResolver) requiredOf(key ir.Key) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.required[key]
}

func isAllOfPart(ptr string) bool {
	tokens, _ := document.Split(ptr)
	return len(tokens) >= 2 && tokens[len(tokens)-2] == "allOf"
}

func checkSupported(node document.Node) error {
	for _, kw := range unsupportedKeywords {
		if child, ok := node.Get(kw); ok {
			return &generrors.UnsupportedFeatureError{Feature: kw, Location: child.Pointer()}
		}
	}
	return nil
}

// schemaTypes returns the declared types without "null" and whether "null" was listed.
func schemaTypes(node document.Node) ([]string, bool, error) {
	var types []string
	nullable := false
	for _, t := range node.Strings("type") {
		if t == "null" {
			nullable = true
			continue
		}
		switch t {
		case "string", "number", "integer", "boolean", "object", "array":
		default:
			return nil, false, &generrors.ParseError{Location: node.Pointer(), Line: node.Line(), Message: fmt.Sprintf("unknown type %q", t)}
		}
		types = append(types, t)
	}
	if len(types) > 1 {
		return nil, false, &generrors.UnsupportedFeatureError{
			Feature:  "multiple types",
			Location: node.Pointer(),
			Message:  strings.Join(types, ", "),
		}
	}
	if len(types) == 0 && nullable && len(node.Strings("type")) == 1 {
		// a bare {type: null}
		return []string{"null"}, false, nil
	}
	return types, nullable, nil
}

func nonNullMembers(list document.Node) int {
	n := 0
	for _, m := range list.Items() {
		if !isNullSchema(m) {
			n++
		}
	}
	return n
}

func isNullSchema(node document.Node) bool {
	if _, isRef := node.Ref(); isRef {
		return false
	}
	t := node.Strings("type")
	return len(t) == 1 && t[0] == "null" && !node.Has("enum")
}

package generator

import (
	"fmt"
	"slices"

	"github.com/vgerber/opage/pkg/generrors"
	"github.com/vgerber/opage/pkg/ir"
)

// Flatten merges the fields of allOf members into their struct. It runs after
// resolution, when every member is complete. A member declaring a field the
// struct already has must agree on its type; equivalent declarations are
// merged, anything else is a StructuralConflictError.
func (r *SchemaResolver) Flatten() error {
	if err := checkAliasCycles(r.graph); err != nil {
		return err
	}
	f := &flattener{r: r, done: map[ir.Key]bool{}, active: map[ir.Key]bool{}}
	for _, t := range r.graph.Types() {
		if t.Kind == ir.KindStruct && len(t.AllOf) > 0 {
			if err := f.flatten(t); err != nil {
				return err
			}
		}
	}
	return nil
}

type flattener struct {
	r      *SchemaResolver
	done   map[ir.Key]bool
	active map[ir.Key]bool
}

func (f *flattener) flatten(t *ir.TypeDef) error {
	if f.done[t.Key] || len(t.AllOf) == 0 {
		return nil
	}
	if f.active[t.Key] {
		return &generrors.StructuralConflictError{Location: string(t.Key), Message: "allOf members include the type itself"}
	}
	f.active[t.Key] = true
	defer delete(f.active, t.Key)

	g := f.r.graph
	var merged []ir.Field
	additional := ir.Key("")
	add := func(field ir.Field) error {
		for i := range merged {
			if merged[i].JSONName != field.JSONName {
				continue
			}
			if !g.Equivalent(merged[i].Type, field.Type) {
				return &generrors.StructuralConflictError{
					Location: string(t.Key),
					Name:     field.JSONName,
					Message:  fmt.Sprintf("allOf members declare it as %s and %s", merged[i].Type, field.Type),
				}
			}
			merged[i].Required = merged[i].Required || field.Required
			if merged[i].Description == "" {
				merged[i].Description = field.Description
			}
			return nil
		}
		merged = append(merged, field)
		return nil
	}

	for _, mk := range t.AllOf {
		m := g.Resolve(mk)
		for m != nil && m.Kind == ir.KindAlias {
			m = g.Resolve(m.Target)
		}
		if m == nil {
			return &generrors.RefResolutionError{Ref: string(mk), Location: string(t.Key)}
		}
		switch {
		case m.Kind == ir.KindStruct:
			if active := f.active[m.Key]; active {
				return &generrors.StructuralConflictError{Location: string(t.Key), Message: "circular allOf through " + string(m.Key)}
			}
			if err := f.flatten(m); err != nil {
				return err
			}
			for _, field := range m.Fields {
				if err := add(field); err != nil {
					return err
				}
			}
			if additional == "" {
				additional = m.Additional
			}
		case m.Kind == ir.KindMap:
			// free-form member, only widens additional properties
			if additional == "" {
				additional = m.Elem
			}
		case m.Kind == ir.KindPrimitive && m.Primitive == ir.PrimitiveAny:
			// constraint-only member such as {required: [...]}
		default:
			return &generrors.StructuralConflictError{
				Location: string(t.Key),
				Message:  fmt.Sprintf("allOf member %s is a %s, not an object", mk, m.Kind),
			}
		}
	}
	for _, field := range t.Fields {
		if err := add(field); err != nil {
			return err
		}
	}

	required := f.r.requiredOf(t.Key)
	for i := range merged {
		if slices.Contains(required, merged[i].JSONName) {
			merged[i].Required = true
		}
	}
	t.Fields = merged
	if t.Additional == "" {
		t.Additional = additional
	}
	f.done[t.Key] = true
	return nil
}

// checkAliasCycles rejects components that only refer to each other.
func checkAliasCycles(g *ir.Graph) error {
	for _, t := range g.Types() {
		if t.Kind != ir.KindAlias {
			continue
		}
		seen := map[ir.Key]bool{t.Key: true}
		cur := t
		for cur != nil && cur.Kind == ir.KindAlias {
			if seen[cur.Target] {
				return &generrors.RefResolutionError{Ref: string(cur.Target), Location: string(t.Key), Message: "circular alias"}
			}
			seen[cur.Target] = true
			cur, _ = g.Get(cur.Target)
		}
	}
	return nil
}

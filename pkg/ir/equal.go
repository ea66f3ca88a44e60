package ir

import (
	"fmt"
	"slices"
)

// Equivalent reports whether the types at a and b have the same structure.
// Names, paths and descriptions are ignored. Cycles are handled by assuming
// equivalence for pairs already under comparison.
func (g *Graph) Equivalent(a, b Key) bool {
	return g.equivalent(a, b, map[[2]Key]bool{})
}

func (g *Graph) equivalent(a, b Key, visiting map[[2]Key]bool) bool {
	if a == b {
		return true
	}
	pair := [2]Key{a, b}
	if visiting[pair] {
		return true
	}
	visiting[pair] = true

	ta, tb := g.Resolve(a), g.Resolve(b)
	if ta == nil || tb == nil {
		return false
	}
	if ta.Key == tb.Key {
		return true
	}
	if ta.Kind == KindAlias && tb.Kind == KindAlias {
		return g.equivalent(ta.Target, tb.Target, visiting)
	}
	if ta.Kind == KindAlias {
		return g.equivalent(ta.Target, tb.Key, visiting)
	}
	if tb.Kind == KindAlias {
		return g.equivalent(ta.Key, tb.Target, visiting)
	}
	if ta.Kind != tb.Kind || ta.Nullable != tb.Nullable {
		return false
	}

	switch ta.Kind {
	case KindPrimitive:
		return ta.Primitive == tb.Primitive && ta.Format == tb.Format
	case KindArray, KindMap:
		return g.equivalent(ta.Elem, tb.Elem, visiting)
	case KindEnum:
		if ta.EnumBase != tb.EnumBase || len(ta.Variants) != len(tb.Variants) {
			return false
		}
		for i := range ta.Variants {
			if fmt.Sprint(ta.Variants[i].Value) != fmt.Sprint(tb.Variants[i].Value) {
				return false
			}
		}
		return true
	case KindStruct:
		if len(ta.Fields) != len(tb.Fields) {
			return false
		}
		if (ta.Additional == "") != (tb.Additional == "") {
			return false
		}
		if ta.Additional != "" && !g.equivalent(ta.Additional, tb.Additional, visiting) {
			return false
		}
		for _, fa := range ta.Fields {
			fb, ok := tb.Field(fa.JSONName)
			if !ok || fa.Required != fb.Required || !g.equivalent(fa.Type, fb.Type, visiting) {
				return false
			}
		}
		return true
	case KindUnion:
		ua, ub := ta.Union, tb.Union
		if ua == nil || ub == nil || ua.Tag != ub.Tag || len(ua.Members) != len(ub.Members) {
			return false
		}
		if (ua.Discriminator == nil) != (ub.Discriminator == nil) {
			return false
		}
		if ua.Discriminator != nil && ua.Discriminator.PropertyName != ub.Discriminator.PropertyName {
			return false
		}
		for i := range ua.Members {
			if !g.equivalent(ua.Members[i].Type, ub.Members[i].Type, visiting) ||
				!slices.Equal(ua.Members[i].Values, ub.Members[i].Values) {
				return false
			}
		}
		return true
	}
	return false
}

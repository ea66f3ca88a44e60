package ir

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrFrozen is returned by mutating calls on a frozen Graph.
var ErrFrozen = errors.New("type graph is frozen")

// Graph is the registry of TypeDefs. It is safe for concurrent use while it
// is being built; after Freeze it is read-only.
type Graph struct {
	mu     sync.RWMutex
	types  map[Key]*TypeDef
	frozen bool
}

func NewGraph() *Graph {
	return &Graph{types: make(map[Key]*TypeDef)}
}

// Reserve registers a placeholder for key unless the key is already known.
// It returns the entry and whether this call created it. Only the creator
// fills the placeholder in; everyone else just refers to the key, which is
// what lets cyclic schemas terminate.
func (g *Graph) Reserve(key Key, path Path) (*TypeDef, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return nil, false, ErrFrozen
	}
	if t, ok := g.types[key]; ok {
		return t, false, nil
	}
	t := &TypeDef{Key: key, Path: path, placeholder: true}
	g.types[key] = t
	return t, true, nil
}

// Complete replaces the placeholder at def.Key with def.
func (g *Graph) Complete(def *TypeDef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return ErrFrozen
	}
	cur, ok := g.types[def.Key]
	if !ok || !cur.placeholder {
		return fmt.Errorf("type %s was not reserved", def.Key)
	}
	if def.Path == nil {
		def.Path = cur.Path
	}
	def.placeholder = false
	*cur = *def
	return nil
}

// Put registers a finished TypeDef. Existing entries are kept as they are, so
// Put is idempotent for shared builtins.
func (g *Graph) Put(def *TypeDef) (*TypeDef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return nil, ErrFrozen
	}
	if t, ok := g.types[def.Key]; ok {
		return t, nil
	}
	g.types[def.Key] = def
	return def, nil
}

// Get returns the TypeDef for key.
func (g *Graph) Get(key Key) (*TypeDef, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.types[key]
	return t, ok
}

// MustGet is Get for keys already validated by Freeze.
func (g *Graph) MustGet(key Key) *TypeDef {
	t, ok := g.Get(key)
	if !ok {
		panic(fmt.Sprintf("ir: unknown type %s", key))
	}
	return t
}

// Resolve follows aliases that are not declarations of their own.
func (g *Graph) Resolve(key Key) *TypeDef {
	seen := map[Key]bool{}
	for {
		t, ok := g.Get(key)
		if !ok {
			return nil
		}
		if t.Kind != KindAlias || t.Declared || seen[key] {
			return t
		}
		seen[key] = true
		key = t.Target
	}
}

// Len returns the number of TypeDefs.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.types)
}

// Types returns all TypeDefs ordered by key.
func (g *Graph) Types() []*TypeDef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*TypeDef, 0, len(g.types))
	for _, t := range g.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Declared returns the declared TypeDefs ordered by module, then name.
func (g *Graph) Declared() []*TypeDef {
	var out []*TypeDef
	for _, t := range g.Types() {
		if t.Declared {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Frozen reports whether Freeze succeeded.
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// Freeze validates the graph and makes it read-only. It checks that no
// placeholder is left, that every reference resolves, that declared types
// have identifiers unique per module, that field and variant identifiers are
// unique per type, and that every union carries a match rule.
func (g *Graph) Freeze() error {
	if err := g.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	g.frozen = true
	g.mu.Unlock()
	return nil
}

// Validate runs the Freeze checks without freezing.
func (g *Graph) Validate() error {
	var errs []error
	declared := map[string]Key{}
	for _, t := range g.Types() {
		if t.placeholder {
			errs = append(errs, fmt.Errorf("type %s was never resolved", t.Key))
			continue
		}
		for _, ref := range t.References() {
			if _, ok := g.Get(ref); !ok {
				errs = append(errs, fmt.Errorf("type %s references unknown type %s", t.Key, ref))
			}
		}
		if t.Declared {
			if t.Name == "" {
				errs = append(errs, fmt.Errorf("declared type %s has no name", t.Key))
			} else {
				scoped := t.Module + "." + t.Name
				if other, dup := declared[scoped]; dup {
					errs = append(errs, fmt.Errorf("types %s and %s are both named %q", other, t.Key, t.Name))
				}
				declared[scoped] = t.Key
			}
		}
		errs = append(errs, checkMembers(t)...)
	}
	return errors.Join(errs...)
}

func checkMembers(t *TypeDef) []error {
	var errs []error
	unique := func(what, name string, seen map[string]bool) {
		if name == "" {
			errs = append(errs, fmt.Errorf("%s of %s has no name", what, t.Key))
			return
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("duplicate %s %q in %s", what, name, t.Key))
		}
		seen[name] = true
	}
	switch t.Kind {
	case KindStruct:
		if !t.Declared {
			return nil
		}
		seen := map[string]bool{}
		for _, f := range t.Fields {
			unique("field", f.Name, seen)
		}
	case KindEnum:
		if !t.Declared {
			return nil
		}
		seen := map[string]bool{}
		for _, v := range t.Variants {
			unique("enum variant", v.Name, seen)
		}
	case KindUnion:
		if t.Union == nil || len(t.Union.Members) == 0 {
			errs = append(errs, fmt.Errorf("union %s has no members", t.Key))
			return errs
		}
		if t.Union.Match == "" {
			errs = append(errs, fmt.Errorf("union %s has no match rule", t.Key))
		}
		if t.Union.Match == MatchDiscriminator && t.Union.Discriminator == nil {
			errs = append(errs, fmt.Errorf("union %s matches by discriminator but declares none", t.Key))
		}
		seen := map[string]bool{}
		for _, m := range t.Union.Members {
			unique("union member", m.Name, seen)
		}
	}
	return errs
}

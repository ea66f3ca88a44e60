package generator

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/vgerber/opage/pkg/config"
	"github.com/vgerber/opage/pkg/generrors"
	"github.com/vgerber/opage/pkg/ir"
	"github.com/vgerber/opage/pkg/naming"
	"github.com/vgerber/opage/pkg/utils"
)

// NameResolver assigns identifiers to every declared type, field, enum
// variant, union member, operation, parameter and response variant.
type NameResolver struct {
	lang     naming.Language
	structs  *naming.Mapping
	props    *naming.Mapping
	modules  *naming.Mapping
	statuses map[uint16]string
	logger   *slog.Logger
}

// NewNameResolver builds a resolver from the name_mapping section.
func NewNameResolver(lang naming.Language, mapping config.NameMappingConfig, statuses map[uint16]string, logger *slog.Logger) *NameResolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NameResolver{
		lang:     lang,
		structs:  naming.NewMapping("struct_mapping", mapping.StructMapping),
		props:    naming.NewMapping("property_mapping", mapping.PropertyMapping),
		modules:  naming.NewMapping("module_mapping", mapping.ModuleMapping),
		statuses: statuses,
		logger:   logger,
	}
}

// Resolve names everything in api. Types are named before operations so
// that union members can be labeled after the types they hold.
func (n *NameResolver) Resolve(api *ir.API) error {
	if err := n.nameTypes(api.Types); err != nil {
		return err
	}
	if err := n.nameOperations(api.Operations); err != nil {
		return err
	}
	for _, m := range []*naming.Mapping{n.structs, n.props, n.modules} {
		for _, key := range m.Unused() {
			n.logger.Warn("name mapping entry matched nothing", "mapping", m.Name(), "key", key)
		}
	}
	return nil
}

func (n *NameResolver) nameTypes(g *ir.Graph) error {
	var declared []*ir.TypeDef
	for _, t := range g.Types() {
		if t.Declared {
			declared = append(declared, t)
		}
	}
	sort.SliceStable(declared, func(i, j int) bool {
		a, b := declared[i], declared[j]
		if len(a.Path) != len(b.Path) {
			return len(a.Path) < len(b.Path)
		}
		if a.Path.String() != b.Path.String() {
			return a.Path.String() < b.Path.String()
		}
		return a.Key < b.Key
	})

	scopes := map[string]*naming.Scope{}
	scopeFor := func(module string) *naming.Scope {
		if n.lang.SharedTypeNamespace() {
			module = ""
		}
		s, ok := scopes[module]
		if !ok {
			s = naming.NewScope("types "+module, n.lang, naming.RoleType)
			scopes[module] = s
		}
		return s
	}

	for _, t := range declared {
		module, err := n.typeModule(t.Path)
		if err != nil {
			return err
		}
		t.Module = module
	}

	// mapped identifiers are authoritative, so they go first
	var derived []*ir.TypeDef
	for _, t := range declared {
		name, _, ok := n.structs.Lookup(t.Path.String(), string(t.Key))
		if !ok {
			derived = append(derived, t)
			continue
		}
		scope := scopeFor(t.Module)
		claimed, err := scope.Claim(name, string(t.Key))
		if err != nil {
			return withField(err, "name_mapping.struct_mapping", t.Path.String())
		}
		if claimed {
			t.Name = name
			continue
		}
		owner, _ := scope.Owner(name)
		if !g.Equivalent(ir.Key(owner), t.Key) {
			return &generrors.StructuralConflictError{
				Location: string(t.Key),
				Name:     name,
				Message:  fmt.Sprintf("struct_mapping maps %s onto %s, which has a different structure", t.Path, owner),
			}
		}
		n.logger.Debug("merging mapped duplicate", "path", t.Path.String(), "into", owner)
		*t = ir.TypeDef{
			Key:         t.Key,
			Kind:        ir.KindAlias,
			Path:        t.Path,
			Name:        name,
			Target:      ir.Key(owner),
			Description: t.Description,
		}
	}
	for _, t := range derived {
		name, err := scopeFor(t.Module).Derive(string(t.Key), t.Path...)
		if err != nil {
			return err
		}
		t.Name = name
	}

	for _, t := range g.Types() {
		if !t.Declared {
			continue
		}
		var err error
		switch t.Kind {
		case ir.KindStruct:
			err = n.nameFields(t)
		case ir.KindEnum:
			err = n.nameVariants(t)
		case ir.KindUnion:
			err = n.nameMembers(g, t)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *NameResolver) typeModule(path ir.Path) (string, error) {
	keys := make([]string, 0, len(path))
	for i := len(path); i > 0; i-- {
		keys = append(keys, path[:i].String())
	}
	module, key, ok := n.modules.Lookup(keys...)
	if !ok {
		return "", nil
	}
	if !n.lang.Legal(naming.RoleModule, module) {
		return "", &generrors.ConfigError{Field: "name_mapping.module_mapping", Value: key, Message: fmt.Sprintf("%q is not a legal %s module name", module, n.lang.Name())}
	}
	return module, nil
}

func (n *NameResolver) nameFields(t *ir.TypeDef) error {
	scope := naming.NewScope(t.Name+" fields", n.lang, naming.RoleField)
	var derived []int
	for i := range t.Fields {
		f := &t.Fields[i]
		name, key, ok := n.props.Lookup(t.Path.String() + "/" + f.JSONName)
		if !ok {
			derived = append(derived, i)
			continue
		}
		claimed, err := scope.Claim(name, f.JSONName)
		if err != nil {
			return withField(err, "name_mapping.property_mapping", key)
		}
		if !claimed {
			if name, err = scope.Derive(f.JSONName, name); err != nil {
				return err
			}
		}
		f.Name = name
	}
	for _, i := range derived {
		f := &t.Fields[i]
		name, err := scope.Derive(f.JSONName, f.JSONName)
		if err != nil {
			return err
		}
		f.Name = name
	}
	return nil
}

func (n *NameResolver) nameVariants(t *ir.TypeDef) error {
	scope := naming.NewScope(t.Name+" variants", n.lang, naming.RoleVariant)
	for i := range t.Variants {
		v := &t.Variants[i]
		lit := fmt.Sprint(v.Value)
		name, err := scope.Derive(lit, lit)
		if err != nil {
			return err
		}
		v.Name = name
	}
	return nil
}

func (n *NameResolver) nameMembers(g *ir.Graph, t *ir.TypeDef) error {
	scope := naming.NewScope(t.Name+" members", n.lang, naming.RoleVariant)
	for i := range t.Union.Members {
		m := &t.Union.Members[i]
		name, err := scope.Derive(strconv.Itoa(i), memberLabel(g, m.Type, 0))
		if err != nil {
			return err
		}
		m.Name = name
	}
	return nil
}

// memberLabel describes the type held by a union member.
func memberLabel(g *ir.Graph, k ir.Key, depth int) string {
	t, ok := g.Get(k)
	if !ok || depth > 8 {
		return "Value"
	}
	switch {
	case t.Declared:
		return t.Name
	case t.Kind == ir.KindPrimitive:
		return string(t.Primitive)
	case t.Kind == ir.KindArray:
		return memberLabel(g, t.Elem, depth+1) + " List"
	case t.Kind == ir.KindMap:
		return memberLabel(g, t.Elem, depth+1) + " Map"
	case t.Kind == ir.KindAlias:
		return memberLabel(g, t.Target, depth+1)
	}
	return t.Path.Last()
}

func (n *NameResolver) nameOperations(ops []ir.Operation) error {
	scope := naming.NewScope("operations", n.lang, naming.RoleOperation)
	for i := range ops {
		op := &ops[i]
		name, err := scope.Derive(op.Method+" "+op.PathTemplate, strings.ToLower(op.Method), op.ID)
		if err != nil {
			return err
		}
		op.Name = name

		if op.Module, err = n.operationModule(op); err != nil {
			return err
		}

		params := naming.NewScope(name+" parameters", n.lang, naming.RoleParam)
		for j := range op.Parameters {
			p := &op.Parameters[j]
			if p.Name, err = params.Derive(string(p.In)+":"+p.JSONName, string(p.In), p.JSONName); err != nil {
				return err
			}
		}

		requests := naming.NewScope(name+" request variants", n.lang, naming.RoleResponse)
		for j := range op.RequestVariants {
			v := &op.RequestVariants[j]
			if v.Name, err = requests.Derive(v.ContentType, ContentTypeSuffix(v.ContentType)); err != nil {
				return err
			}
		}

		if err := n.nameResponses(name, op); err != nil {
			return err
		}
	}
	return nil
}

func (n *NameResolver) nameResponses(opName string, op *ir.Operation) error {
	perStatus := map[uint16]int{}
	for _, v := range op.ResponseVariants {
		perStatus[v.Status]++
	}
	scope := naming.NewScope(opName+" responses", n.lang, naming.RoleResponse)
	for j := range op.ResponseVariants {
		v := &op.ResponseVariants[j]
		owner := fmt.Sprintf("%d %s", v.Status, v.ContentType)
		base := StatusName(v.Status, n.statuses)
		if perStatus[v.Status] > 1 {
			base += ContentTypeSuffix(v.ContentType)
		}
		if _, mapped := n.statuses[v.Status]; mapped && perStatus[v.Status] == 1 {
			claimed, err := scope.Claim(base, owner)
			if err != nil {
				return withField(err, "name_mapping.status_code_mapping", strconv.Itoa(int(v.Status)))
			}
			if claimed {
				v.Name = base
				continue
			}
		}
		name, err := scope.Derive(owner, base)
		if err != nil {
			return err
		}
		v.Name = name
	}
	return nil
}

func (n *NameResolver) operationModule(op *ir.Operation) (string, error) {
	keys := []string{op.PathTemplate}
	if len(op.Tags) > 0 {
		keys = append([]string{op.Tags[0]}, keys...)
	}
	module, key, ok := n.modules.Lookup(keys...)
	if !ok {
		if len(op.Tags) == 0 {
			return "", nil
		}
		return n.lang.Normalize(naming.RoleModule, op.Tags[0]), nil
	}
	if !n.lang.Legal(naming.RoleModule, module) {
		return "", &generrors.ConfigError{Field: "name_mapping.module_mapping", Value: key, Message: fmt.Sprintf("%q is not a legal %s module name", module, n.lang.Name())}
	}
	return module, nil
}

// StatusName is the identifier stem of a status code: the mapped name, else
// the HTTP reason phrase ("NotFound"), else "Status" and the code.
func StatusName(code uint16, mapping map[uint16]string) string {
	if name, ok := mapping[code]; ok {
		return name
	}
	if text := http.StatusText(int(code)); text != "" {
		return utils.ToPascalCase(text)
	}
	return "Status" + strconv.Itoa(int(code))
}

// ContentTypeSuffix is the identifier stem of a media type.
func ContentTypeSuffix(contentType string) string {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch {
	case mt == "":
		return "Empty"
	case mt == "application/json" || strings.HasSuffix(mt, "+json"):
		return "Json"
	case mt == "text/plain":
		return "Text"
	case mt == "application/xml" || mt == "text/xml" || strings.HasSuffix(mt, "+xml"):
		return "Xml"
	case mt == "application/x-www-form-urlencoded":
		return "Form"
	case strings.HasPrefix(mt, "multipart/"):
		return "Multipart"
	case mt == "application/octet-stream":
		return "Binary"
	case mt == "text/event-stream":
		return "EventStream"
	case mt == "*/*":
		return "Any"
	}
	_, sub, _ := strings.Cut(mt, "/")
	return utils.ToPascalCase(sub)
}

func withField(err error, field, value string) error {
	if ce, ok := err.(*generrors.ConfigError); ok {
		ce.Field = field
		if ce.Value != "" {
			ce.Message = fmt.Sprintf("%q is %s", ce.Value, ce.Message)
		}
		ce.Value = value
	}
	return err
}

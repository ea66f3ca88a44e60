package golang

import (
	"sort"
	"strconv"
	"strings"

	"github.com/vgerber/opage/pkg/ir"
	"github.com/vgerber/opage/pkg/utils"
)

// typeView is a declared type ready for the templates.
type typeView struct {
	Name       string
	Doc        string
	Deprecated bool
	// Kind is one of struct, enum, union, defined (array and map) or alias
	Kind       string
	Underlying string

	Fields []fieldView

	Base   string
	Consts []constView

	Members       []memberView
	Discriminator string
	Nullable      bool
}

type fieldView struct {
	Name       string
	Type       string
	Tag        string
	Doc        string
	Deprecated bool
}

type constView struct {
	Name    string
	Literal string
}

type memberView struct {
	Field  string
	Type   string
	Values []string
	// Required holds the quoted JSON names a payload must carry to match
	Required []string
}

// opView is one operation ready for the templates.
type opView struct {
	Name       string
	Doc        string
	Deprecated bool
	Method     string
	Path       string
	Args       string
	IsStream   bool

	ParamsType string
	Query      []paramView
	Header     []paramView
	Cookie     []paramView
	Params     []paramView

	Body         *bodyView
	RequestType  string
	BodyVariants []bodyView

	ResponseType string
	Statuses     []statusView
}

type paramView struct {
	Field    string
	JSONName string
	Type     string
	Doc      string
}

type bodyView struct {
	Field       string
	ContentType string
	Type        string
}

type statusView struct {
	Code     int
	Variants []responseView
}

type responseView struct {
	Field       string
	ContentType string
	Type        string
	// Decode is json, text or none
	Decode string
	Doc    string
}

// moduleView is everything rendered into one module file.
type moduleView struct {
	Package    string
	Module     string
	Types      []typeView
	Operations []opView
}

// viewBuilder turns the API into per-module views.
type viewBuilder struct {
	api   *ir.API
	types typeMapper
	names nameSet
}

func newViewBuilder(api *ir.API) *viewBuilder {
	b := &viewBuilder{api: api, types: typeMapper{g: api.Types}, names: nameSet{}}
	for _, runtime := range []string{"Client", "Option", "Stream", "APIError", "UnionMatchError", "NewClient", "WithHTTPClient", "WithHeader"} {
		b.names[runtime] = true
	}
	for _, t := range api.Types.Declared() {
		b.names[t.Name] = true
	}
	return b
}

// modules groups declared types and operations by module, sorted by module.
func (b *viewBuilder) modules(pkg string) []moduleView {
	byModule := map[string]*moduleView{}
	get := func(module string) *moduleView {
		mv, ok := byModule[module]
		if !ok {
			mv = &moduleView{Package: pkg, Module: module}
			byModule[module] = mv
		}
		return mv
	}
	for _, t := range b.api.Types.Declared() {
		mv := get(t.Module)
		mv.Types = append(mv.Types, b.typeView(t))
	}
	for i := range b.api.Operations {
		op := &b.api.Operations[i]
		mv := get(op.Module)
		aux := b.opView(op)
		mv.Operations = append(mv.Operations, aux)
	}

	out := make([]moduleView, 0, len(byModule))
	for _, mv := range byModule {
		out = append(out, *mv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}

func (b *viewBuilder) typeView(t *ir.TypeDef) typeView {
	v := typeView{
		Name:       t.Name,
		Doc:        t.Description,
		Deprecated: t.Deprecated,
		Nullable:   t.Nullable,
	}
	switch t.Kind {
	case ir.KindStruct:
		v.Kind = "struct"
		for _, f := range t.Fields {
			v.Fields = append(v.Fields, fieldView{
				Name:       f.Name,
				Type:       b.types.fieldType(f.Type, f.Required),
				Tag:        jsonTag(f.JSONName, !f.Required),
				Doc:        f.Description,
				Deprecated: f.Deprecated,
			})
		}
	case ir.KindEnum:
		b.enumView(t, &v)
	case ir.KindUnion:
		v.Kind = "union"
		if t.Union.Discriminator != nil {
			v.Discriminator = t.Union.Discriminator.PropertyName
		}
		for _, m := range t.Union.Members {
			mv := memberView{Field: m.Name, Type: b.types.expr(m.Type), Required: b.types.requiredNames(m.Type)}
			if t.Union.Match == ir.MatchDiscriminator {
				for _, val := range m.Values {
					mv.Values = append(mv.Values, strconv.Quote(val))
				}
			}
			v.Members = append(v.Members, mv)
		}
	case ir.KindArray:
		v.Kind = "defined"
		v.Underlying = "[]" + b.types.expr(t.Elem)
	case ir.KindMap:
		v.Kind = "defined"
		v.Underlying = "map[string]" + b.types.expr(t.Elem)
	case ir.KindAlias:
		v.Kind = "alias"
		v.Underlying = b.types.expr(t.Target)
	default:
		v.Kind = "alias"
		v.Underlying = primitiveType(t.Primitive, t.Format)
	}
	return v
}

func (b *viewBuilder) enumView(t *ir.TypeDef, v *typeView) {
	base := primitiveType(t.EnumBase, "")
	if base == "any" {
		v.Kind = "alias"
		v.Underlying = "any"
		return
	}
	v.Kind = "enum"
	v.Base = base
	for _, variant := range t.Variants {
		lit, ok := enumLiteral(t.EnumBase, variant.Value)
		if !ok {
			// values that do not fit the base leave a plain defined type
			v.Consts = nil
			return
		}
		v.Consts = append(v.Consts, constView{Name: b.names.claim(t.Name + variant.Name), Literal: lit})
	}
}

func (b *viewBuilder) opView(op *ir.Operation) opView {
	v := opView{
		Name:       op.Name,
		Doc:        strings.TrimSpace(op.Summary + "\n\n" + op.Description),
		Deprecated: op.Deprecated,
		Method:     op.Method,
		IsStream:   op.IsStream,
	}

	var args []string
	pathArgs := map[string]string{}
	for _, p := range op.ParametersIn(ir.ParamPath) {
		pathArgs[p.JSONName] = p.Name
		args = append(args, p.Name+" "+b.types.expr(p.Type))
	}
	v.Path = pathExpression(op.PathTemplate, pathArgs)

	for _, p := range op.Parameters {
		if p.In == ir.ParamPath {
			continue
		}
		pv := paramView{
			Field:    utils.ToPascalCase(p.Name),
			JSONName: p.JSONName,
			Type:     b.types.fieldType(p.Type, p.Required),
			Doc:      p.Description,
		}
		v.Params = append(v.Params, pv)
		switch p.In {
		case ir.ParamQuery:
			v.Query = append(v.Query, pv)
		case ir.ParamHeader:
			v.Header = append(v.Header, pv)
		case ir.ParamCookie:
			v.Cookie = append(v.Cookie, pv)
		}
	}
	if len(v.Params) > 0 {
		v.ParamsType = b.names.claim(op.Name + "Params")
		args = append(args, "params "+v.ParamsType)
	}

	switch len(op.RequestVariants) {
	case 0:
	case 1:
		rv := op.RequestVariants[0]
		v.Body = &bodyView{ContentType: rv.ContentType, Type: b.types.expr(rv.Type)}
		args = append(args, "body "+v.Body.Type)
	default:
		v.RequestType = b.names.claim(op.Name + "Request")
		for _, rv := range op.RequestVariants {
			v.BodyVariants = append(v.BodyVariants, bodyView{Field: rv.Name, ContentType: rv.ContentType, Type: b.types.expr(rv.Type)})
		}
		args = append(args, "body "+v.RequestType)
	}
	if len(args) > 0 {
		v.Args = ", " + strings.Join(args, ", ")
	}

	if op.IsStream {
		return v
	}
	v.ResponseType = b.names.claim(op.Name + "Response")
	index := map[uint16]int{}
	for _, rv := range op.ResponseVariants {
		i, ok := index[rv.Status]
		if !ok {
			i = len(v.Statuses)
			index[rv.Status] = i
			v.Statuses = append(v.Statuses, statusView{Code: int(rv.Status)})
		}
		resp := responseView{Field: rv.Name, ContentType: rv.ContentType, Doc: rv.Description, Decode: "none"}
		if rv.Type != "" {
			resp.Type = b.types.expr(rv.Type)
			switch {
			case isJSONMediaType(rv.ContentType):
				resp.Decode = "json"
			case resp.Type == "string":
				resp.Decode = "text"
			}
		}
		v.Statuses[i].Variants = append(v.Statuses[i].Variants, resp)
	}
	return v
}

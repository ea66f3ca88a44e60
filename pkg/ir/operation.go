package ir

import (
	"errors"
	"fmt"
)

// ParamLocation is where a parameter travels.
type ParamLocation string

const (
	ParamPath   ParamLocation = "path"
	ParamQuery  ParamLocation = "query"
	ParamHeader ParamLocation = "header"
	ParamCookie ParamLocation = "cookie"
)

// Operation is one endpoint: a method on a path template.
type Operation struct {
	// ID is the operationId, or one synthesized from method and path
	ID string
	// Name is the canonical identifier of the generated call
	Name         string
	Module       string
	Method       string
	PathTemplate string
	Summary      string
	Description  string
	Tags         []string
	Deprecated   bool

	Parameters       []Parameter
	RequestVariants  []RequestVariant
	RequestRequired  bool
	ResponseVariants []ResponseVariant

	// IsStream marks duplex or event endpoints. Their variant lists are empty.
	IsStream bool
}

// Parameter is one path, query, header or cookie parameter.
type Parameter struct {
	JSONName    string
	Name        string
	In          ParamLocation
	Type        Key
	Required    bool
	Description string
}

// RequestVariant is the body accepted for one content type.
type RequestVariant struct {
	ContentType string
	Type        Key
	Name        string
}

// ResponseVariant is the body returned for one status code and content type.
// ContentType and Type are empty for responses without content.
type ResponseVariant struct {
	Status      uint16
	ContentType string
	Type        Key
	Name        string
	Description string
}

// Request returns the variant for a content type.
func (o *Operation) Request(contentType string) (RequestVariant, bool) {
	for _, v := range o.RequestVariants {
		if v.ContentType == contentType {
			return v, true
		}
	}
	return RequestVariant{}, false
}

// Response returns the variant for a status code and content type.
func (o *Operation) Response(status uint16, contentType string) (ResponseVariant, bool) {
	for _, v := range o.ResponseVariants {
		if v.Status == status && v.ContentType == contentType {
			return v, true
		}
	}
	return ResponseVariant{}, false
}

// ParametersIn returns the parameters of one location in declaration order.
func (o *Operation) ParametersIn(in ParamLocation) []Parameter {
	var out []Parameter
	for _, p := range o.Parameters {
		if p.In == in {
			out = append(out, p)
		}
	}
	return out
}

// Metadata describes the generated project.
type Metadata struct {
	Name    string
	Version string
	Title   string
}

// API is the frozen result of a resolution run.
type API struct {
	Metadata   Metadata
	Types      *Graph
	Operations []Operation
}

// Validate checks that operations only reference known types and that
// operation, parameter and variant identifiers are unique.
func (a *API) Validate() error {
	var errs []error
	names := map[string]string{}
	for _, op := range a.Operations {
		label := op.Method + " " + op.PathTemplate
		if op.Name == "" {
			errs = append(errs, fmt.Errorf("%s has no name", label))
		} else if other, dup := names[op.Name]; dup {
			errs = append(errs, fmt.Errorf("%s and %s are both named %q", other, label, op.Name))
		}
		names[op.Name] = label

		if op.IsStream && (len(op.RequestVariants) > 0 || len(op.ResponseVariants) > 0) {
			errs = append(errs, fmt.Errorf("%s is a stream but has request or response variants", label))
		}

		check := func(what string, k Key) {
			if k == "" {
				return
			}
			t, ok := a.Types.Get(k)
			if !ok {
				errs = append(errs, fmt.Errorf("%s %s references unknown type %s", label, what, k))
				return
			}
			if t.Kind == KindUnion && (t.Union == nil || t.Union.Match == "") {
				errs = append(errs, fmt.Errorf("%s %s is a union without match rule", label, what))
			}
		}

		params := map[string]bool{}
		for _, p := range op.Parameters {
			if params[p.Name] {
				errs = append(errs, fmt.Errorf("%s has duplicate parameter %q", label, p.Name))
			}
			params[p.Name] = true
			check("parameter "+p.JSONName, p.Type)
		}
		for _, v := range op.RequestVariants {
			check("request body "+v.ContentType, v.Type)
		}
		variants := map[string]bool{}
		for _, v := range op.ResponseVariants {
			if variants[v.Name] {
				errs = append(errs, fmt.Errorf("%s has duplicate response variant %q", label, v.Name))
			}
			variants[v.Name] = true
			check(fmt.Sprintf("response %d %s", v.Status, v.ContentType), v.Type)
		}
	}
	return errors.Join(errs...)
}

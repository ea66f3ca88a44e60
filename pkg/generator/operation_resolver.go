package generator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/vgerber/opage/pkg/document"
	"github.com/vgerber/opage/pkg/generrors"
	"github.com/vgerber/opage/pkg/ir"
	"github.com/vgerber/opage/pkg/utils"
)

// methods in the order OpenAPI lists them on a path item
var methods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

var statusRange = regexp.MustCompile(`^[1-5][xX]{2}$`)

// OperationResolver turns path items into Operations. Inline schemas of
// parameters, bodies and responses go through the shared SchemaResolver.
type OperationResolver struct {
	doc      *document.Document
	schemas  *SchemaResolver
	statuses map[uint16]string
	logger   *slog.Logger
	rooted   map[string]bool
}

// NewOperationResolver creates a resolver over doc. statuses is the
// status_code_mapping used for naming response schemas. The schemas of
// reusable parameters, request bodies and responses are registered as naming
// roots right away, before any component schema can reach them.
func NewOperationResolver(doc *document.Document, schemas *SchemaResolver, statuses map[uint16]string, logger *slog.Logger) *OperationResolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := &OperationResolver{doc: doc, schemas: schemas, statuses: statuses, logger: logger, rooted: map[string]bool{}}
	o.registerComponentRoots()
	return o
}

// Resolve walks paths in document order and the methods of each path in
// OpenAPI order.
func (o *OperationResolver) Resolve(ctx context.Context) ([]ir.Operation, error) {
	paths, ok := o.doc.Lookup("#/paths")
	if !ok {
		return nil, nil
	}

	var ops []ir.Operation
	declaredIDs := map[string]string{}
	for _, p := range paths.Pairs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, err := o.deref(p.Value)
		if err != nil {
			return nil, err
		}
		vars, err := templateVariables(p.Key)
		if err != nil {
			return nil, &generrors.OperationModelError{Path: p.Key, Location: p.Value.Pointer(), Message: err.Error()}
		}
		for _, method := range methods {
			node, ok := item.Get(method)
			if !ok {
				continue
			}
			op, err := o.resolveOperation(p.Key, method, vars, item, node)
			if err != nil {
				return nil, err
			}
			if id := node.String("operationId"); id != "" {
				if prev, dup := declaredIDs[id]; dup {
					return nil, &generrors.OperationModelError{
						Method:   op.Method,
						Path:     p.Key,
						Location: node.Pointer(),
						Message:  fmt.Sprintf("operationId %q is already used by %s", id, prev),
					}
				}
				declaredIDs[id] = op.Method + " " + p.Key
			}
			o.logger.Debug("resolved operation", "id", op.ID, "method", op.Method, "path", op.PathTemplate,
				"requests", len(op.RequestVariants), "responses", len(op.ResponseVariants))
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func (o *OperationResolver) resolveOperation(path, method string, vars []string, item, node document.Node) (ir.Operation, error) {
	op := ir.Operation{
		ID:           node.String("operationId"),
		Method:       strings.ToUpper(method),
		PathTemplate: path,
		Summary:      node.String("summary"),
		Description:  node.String("description"),
		Tags:         node.Strings("tags"),
		Deprecated:   node.Bool("deprecated"),
		IsStream:     node.Bool("x-stream") || node.Bool("x-websocket"),
	}
	if op.ID == "" {
		op.ID = SynthesizeOperationID(method, path)
	}
	fail := func(msg string, cause error) error {
		return &generrors.OperationModelError{Method: op.Method, Path: path, Location: node.Pointer(), Message: msg, Cause: cause}
	}
	base := utils.ToPascalCase(op.ID)

	params, err := o.parameters(base, item, node)
	if err != nil {
		return op, fail("parameters", err)
	}
	declared := map[string]bool{}
	for i := range params {
		if params[i].In == ir.ParamPath {
			declared[params[i].JSONName] = true
			params[i].Required = true
		}
	}
	for _, v := range vars {
		if !declared[v] {
			return op, fail(fmt.Sprintf("path variable {%s} has no path parameter", v), nil)
		}
		delete(declared, v)
	}
	for _, p := range params {
		if declared[p.JSONName] && p.In == ir.ParamPath {
			return op, fail(fmt.Sprintf("path parameter %q does not appear in the template", p.JSONName), nil)
		}
	}
	op.Parameters = params

	if op.IsStream {
		return op, nil
	}
	if body, ok := node.Get("requestBody"); ok {
		if err := o.requestBody(base, body, &op); err != nil {
			return op, fail("request body", err)
		}
	}
	if responses, ok := node.Get("responses"); ok {
		if err := o.responses(base, responses, &op); err != nil {
			return op, fail("responses", err)
		}
	}
	return op, nil
}

// parameters merges path item and operation parameters; the operation wins
// on (in, name).
func (o *OperationResolver) parameters(base string, item, node document.Node) ([]ir.Parameter, error) {
	var out []ir.Parameter
	index := map[string]int{}
	for _, owner := range []document.Node{item, node} {
		list, ok := owner.Get("parameters")
		if !ok {
			continue
		}
		for _, raw := range list.Items() {
			p, err := o.parameter(base, raw)
			if err != nil {
				return nil, err
			}
			k := string(p.In) + ":" + p.JSONName
			if i, dup := index[k]; dup {
				out[i] = p
				continue
			}
			index[k] = len(out)
			out = append(out, p)
		}
	}
	return out, nil
}

func (o *OperationResolver) parameter(base string, raw document.Node) (ir.Parameter, error) {
	node, err := o.deref(raw)
	if err != nil {
		return ir.Parameter{}, err
	}
	p := ir.Parameter{
		JSONName:    node.String("name"),
		In:          ir.ParamLocation(node.String("in")),
		Required:    node.Bool("required"),
		Description: node.String("description"),
	}
	if p.JSONName == "" {
		return p, &generrors.ParseError{Location: node.Pointer(), Line: node.Line(), Message: "parameter requires a name"}
	}
	switch p.In {
	case ir.ParamPath, ir.ParamQuery, ir.ParamHeader, ir.ParamCookie:
	default:
		return p, &generrors.ParseError{Location: node.Pointer(), Line: node.Line(), Message: fmt.Sprintf("parameter %q has unknown location %q", p.JSONName, p.In)}
	}

	schema, ok := node.Get("schema")
	if !ok {
		content, _ := node.Get("content")
		if pairs := content.Pairs(); len(pairs) > 0 {
			schema, ok = pairs[0].Value.Get("schema")
		}
	}
	if !ok {
		return p, &generrors.ParseError{Location: node.Pointer(), Line: node.Line(), Message: fmt.Sprintf("parameter %q has no schema", p.JSONName)}
	}
	o.root(schema.Pointer(), ir.Path{base + utils.ToPascalCase(p.JSONName)})
	if p.Type, err = o.schemas.Resolve(schema.Pointer()); err != nil {
		return p, err
	}
	return p, nil
}

func (o *OperationResolver) requestBody(base string, raw document.Node, op *ir.Operation) error {
	body, err := o.deref(raw)
	if err != nil {
		return err
	}
	op.RequestRequired = body.Bool("required")
	content, _ := body.Get("content")
	pairs := content.Pairs()
	for _, ct := range pairs {
		name := base + "RequestBody"
		if len(pairs) > 1 {
			name += ContentTypeSuffix(ct.Key)
		}
		key, err := o.mediaType(ct.Value, ir.Path{name})
		if err != nil {
			return err
		}
		op.RequestVariants = append(op.RequestVariants, ir.RequestVariant{ContentType: ct.Key, Type: key})
	}
	return nil
}

func (o *OperationResolver) responses(base string, responses document.Node, op *ir.Operation) error {
	for _, r := range responses.Pairs() {
		if r.Key == "default" {
			o.logger.Info("skipping default response", "method", op.Method, "path", op.PathTemplate)
			continue
		}
		if statusRange.MatchString(r.Key) {
			return &generrors.UnsupportedFeatureError{Feature: "status code range", Location: r.Value.Pointer(), Message: r.Key}
		}
		code, err := strconv.ParseUint(r.Key, 10, 16)
		if err != nil || code < 100 || code > 599 {
			return &generrors.ParseError{Location: r.Value.Pointer(), Line: r.Value.Line(), Message: fmt.Sprintf("invalid status code %q", r.Key)}
		}
		status := uint16(code)

		resp, err := o.deref(r.Value)
		if err != nil {
			return err
		}
		description := resp.String("description")
		content, _ := resp.Get("content")
		pairs := content.Pairs()
		if len(pairs) == 0 {
			op.ResponseVariants = append(op.ResponseVariants, ir.ResponseVariant{Status: status, Description: description})
			continue
		}
		for _, ct := range pairs {
			name := base + StatusName(status, o.statuses)
			if len(pairs) > 1 {
				name += ContentTypeSuffix(ct.Key)
			}
			key, err := o.mediaType(ct.Value, ir.Path{name})
			if err != nil {
				return err
			}
			op.ResponseVariants = append(op.ResponseVariants, ir.ResponseVariant{
				Status:      status,
				ContentType: ct.Key,
				Type:        key,
				Description: description,
			})
		}
	}
	return nil
}

// mediaType resolves the schema of a media type object. A media type
// without a schema carries arbitrary content.
func (o *OperationResolver) mediaType(media document.Node, path ir.Path) (ir.Key, error) {
	schema, ok := media.Get("schema")
	if !ok {
		return ir.BuiltinKey(ir.PrimitiveAny, ""), o.putAny()
	}
	o.root(schema.Pointer(), path)
	return o.schemas.Resolve(schema.Pointer())
}

func (o *OperationResolver) putAny() error {
	_, err := o.schemas.builtin(ir.PrimitiveAny, "", false)
	return err
}

// root registers a naming root once. Path level parameters are shared by
// all operations of the path; the first operation names them.
func (o *OperationResolver) root(pointer string, path ir.Path) {
	if o.rooted[pointer] {
		return
	}
	o.rooted[pointer] = true
	o.schemas.Root(pointer, path)
}

// registerComponentRoots names the schemas of reusable parameters, request
// bodies and responses after their component.
func (o *OperationResolver) registerComponentRoots() {
	if params, ok := o.doc.Lookup("#/components/parameters"); ok {
		for _, p := range params.Pairs() {
			name := ir.Path{utils.ToPascalCase(p.Key)}
			if schema, ok := p.Value.Get("schema"); ok {
				o.root(schema.Pointer(), name)
			}
			content, _ := p.Value.Get("content")
			for _, ct := range content.Pairs() {
				if schema, ok := ct.Value.Get("schema"); ok {
					o.root(schema.Pointer(), name)
				}
			}
		}
	}
	for _, c := range []struct{ section, suffix string }{
		{"requestBodies", "Request"},
		{"responses", "Response"},
	} {
		section, ok := o.doc.Lookup("#/components/" + c.section)
		if !ok {
			continue
		}
		for _, p := range section.Pairs() {
			name := utils.ToPascalCase(p.Key)
			if !strings.HasSuffix(name, c.suffix) {
				name += c.suffix
			}
			content, _ := p.Value.Get("content")
			pairs := content.Pairs()
			for _, ct := range pairs {
				schema, ok := ct.Value.Get("schema")
				if !ok {
					continue
				}
				n := name
				if len(pairs) > 1 {
					n += ContentTypeSuffix(ct.Key)
				}
				o.root(schema.Pointer(), ir.Path{n})
			}
		}
	}
}

// deref follows $ref chains of non-schema objects.
func (o *OperationResolver) deref(node document.Node) (document.Node, error) {
	seen := map[string]bool{}
	for {
		ref, ok := node.Ref()
		if !ok {
			return node, nil
		}
		target, local := document.Normalize(ref)
		if !local {
			return node, &generrors.UnsupportedFeatureError{Feature: "external $ref", Location: node.Pointer(), Message: ref}
		}
		if seen[target] {
			return node, &generrors.RefResolutionError{Ref: ref, Location: node.Pointer(), Message: "circular $ref chain"}
		}
		seen[target] = true
		next, found := o.doc.Lookup(target)
		if !found {
			return node, &generrors.RefResolutionError{Ref: ref, Location: node.Pointer()}
		}
		node = next
	}
}

// templateVariables validates a path template and returns its variables.
func templateVariables(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path template must start with /")
	}
	var vars []string
	seen := map[string]bool{}
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '{':
			end := strings.IndexByte(path[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unbalanced { at offset %d", i)
			}
			name := path[i+1 : i+1+end]
			if name == "" || strings.ContainsAny(name, "{/") {
				return nil, fmt.Errorf("malformed variable %q", name)
			}
			if seen[name] {
				return nil, fmt.Errorf("variable {%s} appears twice", name)
			}
			seen[name] = true
			vars = append(vars, name)
			i += end + 1
		case '}':
			return nil, fmt.Errorf("unbalanced } at offset %d", i)
		}
	}
	return vars, nil
}

// SynthesizeOperationID builds an operation id from method and path
// template: get /items/{id} becomes getItemsById.
func SynthesizeOperationID(method, path string) string {
	words := []string{strings.ToLower(method)}
	for _, seg := range strings.Split(path, "/") {
		switch {
		case seg == "":
		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			words = append(words, "by", strings.Trim(seg, "{}"))
		default:
			words = append(words, seg)
		}
	}
	if len(words) == 1 {
		words = append(words, "root")
	}
	return utils.ToCamelCase(strings.Join(words, " "))
}

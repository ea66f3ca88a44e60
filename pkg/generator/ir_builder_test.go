package generator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vgerber/opage/pkg/config"
	"github.com/vgerber/opage/pkg/document"
	"github.com/vgerber/opage/pkg/generrors"
	"github.com/vgerber/opage/pkg/ir"
)

func resolve(t *testing.T, spec string, cfg *config.Config) (*ir.API, error) {
	t.Helper()
	doc, err := document.Parse("test.yaml", []byte(spec))
	require.NoError(t, err)
	return Build(context.Background(), doc, cfg, nil)
}

func mustResolve(t *testing.T, spec string, cfg *config.Config) *ir.API {
	t.Helper()
	api, err := resolve(t, spec, cfg)
	require.NoError(t, err)
	return api
}

func parseConfig(t *testing.T, data string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(data))
	require.NoError(t, err)
	return cfg
}

func schemaKey(name string) ir.Key {
	return ir.Key(document.Join(componentSchemas, name))
}

func findOperation(t *testing.T, api *ir.API, id string) *ir.Operation {
	t.Helper()
	for i := range api.Operations {
		if api.Operations[i].ID == id {
			return &api.Operations[i]
		}
	}
	t.Fatalf("operation %q not found", id)
	return nil
}

// summary renders everything naming and resolution decide, for comparing runs.
func summary(api *ir.API) []string {
	var out []string
	for _, t := range api.Types.Types() {
		line := fmt.Sprintf("%s %s %s name=%s module=%s declared=%v", t.Key, t.Kind, t.Path, t.Name, t.Module, t.Declared)
		for _, f := range t.Fields {
			line += fmt.Sprintf(" %s:%s:%s:%v", f.JSONName, f.Name, f.Type, f.Required)
		}
		out = append(out, line)
	}
	for _, op := range api.Operations {
		line := fmt.Sprintf("%s %s %s %s", op.Method, op.PathTemplate, op.Name, op.Module)
		for _, v := range op.ResponseVariants {
			line += fmt.Sprintf(" %d:%s:%s:%s", v.Status, v.ContentType, v.Type, v.Name)
		}
		out = append(out, line)
	}
	return out
}

const itemsSpec = `
openapi: 3.1.0
info: {title: Items, version: 1.0.0}
paths:
  /items:
    get:
      operationId: listItems
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                type: array
                items: {$ref: '#/components/schemas/TestComponent'}
components:
  schemas:
    TestComponent:
      type: object
      properties:
        id: {type: string}
`

func TestBuildEndToEnd(t *testing.T) {
	api := mustResolve(t, itemsSpec, nil)
	require.True(t, api.Types.Frozen())
	assert.Equal(t, ir.Metadata{Name: "Items", Version: "1.0.0", Title: "Items"}, api.Metadata)

	component := api.Types.MustGet(schemaKey("TestComponent"))
	assert.Equal(t, ir.KindStruct, component.Kind)
	assert.Equal(t, "TestComponent", component.Name)
	assert.True(t, component.Declared)
	require.Len(t, component.Fields, 1)
	id := component.Fields[0]
	assert.Equal(t, "id", id.JSONName)
	assert.Equal(t, "Id", id.Name)
	idType := api.Types.MustGet(id.Type)
	assert.Equal(t, ir.KindPrimitive, idType.Kind)
	assert.Equal(t, ir.PrimitiveString, idType.Primitive)

	require.Len(t, api.Operations, 1)
	op := api.Operations[0]
	assert.Equal(t, "listItems", op.ID)
	assert.Equal(t, "ListItems", op.Name)
	assert.Equal(t, "GET", op.Method)
	assert.Equal(t, "/items", op.PathTemplate)

	resp, ok := op.Response(200, "application/json")
	require.True(t, ok)
	assert.Equal(t, "Ok", resp.Name)
	list := api.Types.MustGet(resp.Type)
	assert.Equal(t, ir.KindArray, list.Kind)
	assert.False(t, list.Declared)
	assert.Equal(t, schemaKey("TestComponent"), list.Elem)
}

func TestBuildRustIdentifiers(t *testing.T) {
	api := mustResolve(t, itemsSpec, parseConfig(t, "target: rust"))
	assert.Equal(t, "list_items", api.Operations[0].Name)
	assert.Equal(t, "id", api.Types.MustGet(schemaKey("TestComponent")).Fields[0].Name)
}

func TestBuildMetadataFromConfig(t *testing.T) {
	api := mustResolve(t, itemsSpec, parseConfig(t, "project_metadata: {name: shop, version: 2.0.0}"))
	assert.Equal(t, ir.Metadata{Name: "shop", Version: "2.0.0", Title: "Items"}, api.Metadata)
}

const cyclicSpec = `
openapi: 3.1.0
info: {title: Graph, version: '1'}
paths: {}
components:
  schemas:
    Node:
      type: object
      properties:
        value: {type: string}
        next: {$ref: '#/components/schemas/Node'}
        children:
          type: array
          items: {$ref: '#/components/schemas/Node'}
        edges:
          type: array
          items: {$ref: '#/components/schemas/Edge'}
    Edge:
      type: object
      required: [to]
      properties:
        to: {$ref: '#/components/schemas/Node'}
        weight: {type: number, format: double}
        tags:
          type: object
          additionalProperties: {type: string}
`

func TestBuildCycles(t *testing.T) {
	api := mustResolve(t, cyclicSpec, nil)
	node := api.Types.MustGet(schemaKey("Node"))
	next, ok := node.Field("next")
	require.True(t, ok)
	assert.Equal(t, schemaKey("Node"), next.Type)

	edge := api.Types.MustGet(schemaKey("Edge"))
	to, _ := edge.Field("to")
	assert.Equal(t, schemaKey("Node"), to.Type)
	assert.True(t, to.Required)

	weight, _ := edge.Field("weight")
	assert.Equal(t, ir.BuiltinKey(ir.PrimitiveNumber, "double"), weight.Type)

	tags, _ := edge.Field("tags")
	tagsType := api.Types.MustGet(tags.Type)
	assert.Equal(t, ir.KindMap, tagsType.Kind)
	assert.Equal(t, ir.BuiltinKey(ir.PrimitiveString, ""), tagsType.Elem)
}

func TestBuildDeterministic(t *testing.T) {
	spec := cyclicSpec + `
    node_edge:
      type: object
      properties:
        a: {type: integer}
    NodeEdge:
      oneOf:
        - {$ref: '#/components/schemas/Node'}
        - {$ref: '#/components/schemas/Edge'}
`
	first := summary(mustResolve(t, spec, nil))
	for range 5 {
		assert.Equal(t, first, summary(mustResolve(t, spec, nil)))
	}
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	var spec string
	spec = `
openapi: 3.1.0
info: {title: Many, version: '1'}
paths: {}
components:
  schemas:
`
	for i := range 40 {
		spec += fmt.Sprintf(`    Model%d:
      type: object
      properties:
        shared: {$ref: '#/components/schemas/Shared'}
        next: {$ref: '#/components/schemas/Model%d'}
        inner:
          type: object
          properties:
            value: {type: string}
`, i, (i+1)%40)
	}
	spec += `    Shared:
      type: object
      properties:
        inner:
          type: object
          properties:
            value: {type: integer}
`
	sequential := summary(mustResolve(t, spec, parseConfig(t, "parallelism: 1")))
	parallel := summary(mustResolve(t, spec, parseConfig(t, "parallelism: 16")))
	assert.Equal(t, sequential, parallel)
}

func TestBuildIgnoredComponentStillReferenced(t *testing.T) {
	spec := `
openapi: 3.1.0
info: {title: Pets, version: '1'}
paths: {}
components:
  schemas:
    Pet:
      type: object
      properties:
        owner: {$ref: '#/components/schemas/Owner'}
    Owner:
      type: object
      properties:
        name: {type: string}
`
	_, err := resolve(t, spec, parseConfig(t, "ignore: {components: [Owner]}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, generrors.ErrRefResolution)

	var refErr *generrors.RefResolutionError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "#/components/schemas/Owner", refErr.Ref)
}

func TestBuildIgnoredPathIsGone(t *testing.T) {
	spec := itemsSpec + `
    Internal:
      type: object
      properties:
        secret: {type: string}
`
	spec2 := `
openapi: 3.1.0
info: {title: Items, version: '1'}
paths:
  /items:
    get:
      operationId: listItems
      responses:
        '204': {description: empty}
  /internal/health:
    get:
      operationId: health
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema: {type: object, properties: {up: {type: boolean}}}
`
	api := mustResolve(t, spec2, parseConfig(t, "ignore: {paths: [/internal/health]}"))
	require.Len(t, api.Operations, 1)
	assert.Equal(t, "listItems", api.Operations[0].ID)
	for _, td := range api.Types.Types() {
		assert.NotContains(t, string(td.Key), "health")
	}

	api = mustResolve(t, spec, parseConfig(t, "ignore: {components: [Internal]}"))
	_, ok := api.Types.Get(schemaKey("Internal"))
	assert.False(t, ok)
}

func TestBuildUnsupported(t *testing.T) {
	tests := []struct {
		name   string
		schema string
	}{
		{"prefixItems", "{type: array, prefixItems: [{type: string}]}"},
		{"tuple items", "{type: array, items: [{type: string}]}"},
		{"patternProperties", "{type: object, patternProperties: {'^x': {type: string}}}"},
		{"not", "{not: {type: string}}"},
		{"if", "{if: {type: string}, then: {minLength: 1}}"},
		{"multiple types", "{type: [string, integer]}"},
		{"external ref", "{$ref: 'other.yaml#/components/schemas/Pet'}"},
		{"mixed enum", "{enum: [a, 1]}"},
		{"dynamic ref", "{$dynamicRef: '#node'}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := `
openapi: 3.1.0
info: {title: Bad, version: '1'}
components:
  schemas:
    Bad:
      type: object
      properties:
        field: ` + tt.schema + "\n"
			_, err := resolve(t, spec, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, generrors.ErrUnsupportedFeature)
		})
	}
}

func TestBuildCanceled(t *testing.T) {
	doc, err := document.Parse("test.yaml", []byte(cyclicSpec))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Build(ctx, doc, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildParallelReportsFirstFailure(t *testing.T) {
	spec := `
openapi: 3.1.0
info: {title: Broken, version: '1'}
paths: {}
components:
  schemas:
`
	for i := range 30 {
		spec += fmt.Sprintf("    Ok%d: {type: object, properties: {id: {type: string}}}\n", i)
	}
	for i := range 30 {
		spec += fmt.Sprintf("    Tuple%d: {type: array, prefixItems: [{type: string}]}\n", i)
	}
	cfg := parseConfig(t, "parallelism: 16")
	for range 10 {
		_, err := resolve(t, spec, cfg)
		var unsupported *generrors.UnsupportedFeatureError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "#/components/schemas/Tuple0/prefixItems", unsupported.Location)
	}
}

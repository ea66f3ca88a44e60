package opage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vgerber/opage/pkg/config"
	"github.com/vgerber/opage/pkg/generrors"
	"github.com/vgerber/opage/pkg/ir"
)

const storeSpec = `
openapi: 3.1.0
info: {title: Store, version: '2'}
paths:
  /orders/{orderId}:
    get:
      operationId: getOrder
      parameters:
        - {name: orderId, in: path, required: true, schema: {type: integer}}
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Order'}
components:
  schemas:
    Order:
      type: object
      required: [id]
      properties:
        id: {type: integer}
        status: {enum: [open, closed]}
`

func TestResolve(t *testing.T) {
	api, err := Resolve(context.Background(), []byte(storeSpec), nil)
	require.NoError(t, err)

	require.Len(t, api.Operations, 1)
	assert.Equal(t, "GetOrder", api.Operations[0].Name)

	order := api.Types.MustGet("#/components/schemas/Order")
	assert.Equal(t, "Order", order.Name)
	status, ok := order.Field("status")
	require.True(t, ok)
	assert.Equal(t, ir.KindEnum, api.Types.MustGet(status.Type).Kind)
	assert.Equal(t, "Status", api.Types.MustGet(status.Type).Name)
}

func TestResolveRustTarget(t *testing.T) {
	cfg, err := config.Parse([]byte("target: rust"))
	require.NoError(t, err)
	api, err := Resolve(context.Background(), []byte(storeSpec), cfg)
	require.NoError(t, err)
	assert.Equal(t, "get_order", api.Operations[0].Name)
}

func TestResolveParseError(t *testing.T) {
	_, err := Resolve(context.Background(), []byte("openapi: [unclosed"), nil)
	assert.ErrorIs(t, err, generrors.ErrParse)
}

func TestGenerate(t *testing.T) {
	spec := filepath.Join(t.TempDir(), "store.yaml")
	require.NoError(t, os.WriteFile(spec, []byte(storeSpec), 0o644))
	out := t.TempDir()

	require.NoError(t, Generate(context.Background(), Options{Spec: spec, OutDir: out}))
	assert.FileExists(t, filepath.Join(out, "client.go"))
	assert.FileExists(t, filepath.Join(out, "go.mod"))
}

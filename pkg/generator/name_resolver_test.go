package generator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vgerber/opage/pkg/generrors"
	"github.com/vgerber/opage/pkg/ir"
)

const ownersSpec = `
openapi: 3.1.0
info: {title: Owners, version: '1'}
paths: {}
components:
  schemas:
    Owner:
      type: object
      properties:
        name: {type: string}
    Pet:
      type: object
      properties:
        name: {type: string}
        owner:
          type: object
          properties:
            name: {type: string}
    Shop:
      type: object
      properties:
        owner:
          type: object
          properties:
            name: {type: %s}
`

func ownerKey(component string) ir.Key {
	return schemaKey(component) + "/properties/owner"
}

func TestNameDerivedQualifiesOnCollision(t *testing.T) {
	api := mustResolve(t, fmt.Sprintf(ownersSpec, "string"), nil)
	assert.Equal(t, "Owner", api.Types.MustGet(schemaKey("Owner")).Name)
	assert.Equal(t, "PetOwner", api.Types.MustGet(ownerKey("Pet")).Name)
	assert.Equal(t, "ShopOwner", api.Types.MustGet(ownerKey("Shop")).Name)
}

func TestNameMappingPrecedence(t *testing.T) {
	cfg := parseConfig(t, `
name_mapping:
  struct_mapping:
    /Pet/Owner: Keeper
    "#/components/schemas/Shop": Store
  property_mapping:
    /Pet/name: Title
`)
	api := mustResolve(t, fmt.Sprintf(ownersSpec, "string"), cfg)

	assert.Equal(t, "Keeper", api.Types.MustGet(ownerKey("Pet")).Name)
	assert.Equal(t, "Store", api.Types.MustGet(schemaKey("Shop")).Name)
	assert.Equal(t, "Owner", api.Types.MustGet(schemaKey("Owner")).Name)
	// derived names keep following the document path, not the mapped parent
	assert.Equal(t, "ShopOwner", api.Types.MustGet(ownerKey("Shop")).Name)

	pet := api.Types.MustGet(schemaKey("Pet"))
	name, _ := pet.Field("name")
	assert.Equal(t, "Title", name.Name)
	owner, _ := pet.Field("owner")
	assert.Equal(t, "Owner", owner.Name)
}

func TestNameMappingMergesEquivalentTypes(t *testing.T) {
	cfg := parseConfig(t, `
name_mapping:
  struct_mapping:
    /Pet/Owner: Person
    /Shop/Owner: Person
`)
	api := mustResolve(t, fmt.Sprintf(ownersSpec, "string"), cfg)

	pet := api.Types.MustGet(ownerKey("Pet"))
	assert.Equal(t, "Person", pet.Name)
	assert.True(t, pet.Declared)

	shop := api.Types.MustGet(ownerKey("Shop"))
	assert.Equal(t, ir.KindAlias, shop.Kind)
	assert.False(t, shop.Declared)
	assert.Equal(t, ownerKey("Pet"), shop.Target)
	assert.Equal(t, ownerKey("Pet"), api.Types.Resolve(ownerKey("Shop")).Key)
}

func TestNameMappingConflictingTypes(t *testing.T) {
	cfg := parseConfig(t, `
name_mapping:
  struct_mapping:
    /Pet/Owner: Person
    /Shop/Owner: Person
`)
	_, err := resolve(t, fmt.Sprintf(ownersSpec, "integer"), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, generrors.ErrStructuralConflict)
}

func TestNameMappingIllegalIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		cfg   string
		field string
	}{
		{"struct", "name_mapping: {struct_mapping: {/Pet: my-pet}}", "name_mapping.struct_mapping"},
		{"struct keyword", "name_mapping: {struct_mapping: {/Pet: func}}", "name_mapping.struct_mapping"},
		{"property", "name_mapping: {property_mapping: {/Pet/name: '1st'}}", "name_mapping.property_mapping"},
		{"module", "name_mapping: {module_mapping: {/Pet: 'pet store'}}", "name_mapping.module_mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolve(t, fmt.Sprintf(ownersSpec, "string"), parseConfig(t, tt.cfg))
			require.Error(t, err)
			var cfgErr *generrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNameCollisionsAndReservedWords(t *testing.T) {
	api := mustResolve(t, components(`
    PetOwner:
      type: object
      properties:
        id: {type: string}
    pet_owner:
      type: object
      properties:
        id: {type: integer}
    Client:
      type: object
      properties:
        type: {type: string}
        Type: {type: integer}
`), nil)
	assert.Equal(t, "PetOwner", api.Types.MustGet(schemaKey("PetOwner")).Name)
	assert.Equal(t, "PetOwner2", api.Types.MustGet(schemaKey("pet_owner")).Name)

	client := api.Types.MustGet(schemaKey("Client"))
	assert.Equal(t, "Client2", client.Name)
	assert.Equal(t, "Type", client.Fields[0].Name)
	assert.Equal(t, "Type2", client.Fields[1].Name)
}

func TestNameModules(t *testing.T) {
	spec := `
openapi: 3.1.0
info: {title: Pets, version: '1'}
paths:
  /pets:
    get:
      operationId: listPets
      tags: [Pet Store]
      responses:
        '204': {description: none}
  /users:
    get:
      operationId: listUsers
      tags: [users]
      responses:
        '204': {description: none}
  /health:
    get:
      operationId: health
      responses:
        '204': {description: none}
components:
  schemas:
    Pet:
      type: object
      properties:
        owner:
          type: object
          properties:
            name: {type: string}
`
	cfg := parseConfig(t, `
name_mapping:
  module_mapping:
    users: accounts
    /Pet: animals
`)
	api := mustResolve(t, spec, cfg)

	assert.Equal(t, "pet_store", findOperation(t, api, "listPets").Module)
	assert.Equal(t, "accounts", findOperation(t, api, "listUsers").Module)
	assert.Equal(t, "", findOperation(t, api, "health").Module)

	assert.Equal(t, "animals", api.Types.MustGet(schemaKey("Pet")).Module)
	assert.Equal(t, "animals", api.Types.MustGet(schemaKey("Pet")+"/properties/owner").Module)
}

func TestNameResponses(t *testing.T) {
	spec := `
openapi: 3.1.0
info: {title: Status, version: '1'}
paths:
  /items:
    get:
      operationId: getItems
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema: {type: string}
            text/plain:
              schema: {type: string}
        '299': {description: odd}
        '404': {description: missing}
        '500': {description: broken}
`
	cfg := parseConfig(t, `
name_mapping:
  status_code_mapping:
    404: Missing
    500: Ok
`)
	op := mustResolve(t, spec, cfg).Operations[0]

	var got []string
	for _, v := range op.ResponseVariants {
		got = append(got, v.Name)
	}
	assert.Equal(t, []string{"OkJson", "OkText", "Status299", "Missing", "Ok"}, got)
}

func TestNameResponsesMappedCollision(t *testing.T) {
	spec := `
openapi: 3.1.0
info: {title: Status, version: '1'}
paths:
  /items:
    get:
      responses:
        '200': {description: ok}
        '500': {description: broken}
`
	op := mustResolve(t, spec, parseConfig(t, "name_mapping: {status_code_mapping: {500: Ok}}")).Operations[0]
	require.Len(t, op.ResponseVariants, 2)
	assert.Equal(t, "Ok", op.ResponseVariants[0].Name)
	assert.Equal(t, "Ok2", op.ResponseVariants[1].Name)
}

func TestStatusName(t *testing.T) {
	tests := []struct {
		code     uint16
		mapping  map[uint16]string
		expected string
	}{
		{200, nil, "Ok"},
		{201, nil, "Created"},
		{404, nil, "NotFound"},
		{404, map[uint16]string{404: "Missing"}, "Missing"},
		{299, nil, "Status299"},
		{503, nil, "ServiceUnavailable"},
	}
	for _, tt := range tests {
		if got := StatusName(tt.code, tt.mapping); got != tt.expected {
			t.Errorf("StatusName(%d) = %q, expected %q", tt.code, got, tt.expected)
		}
	}
}

func TestContentTypeSuffix(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "Empty"},
		{"application/json", "Json"},
		{"application/json; charset=utf-8", "Json"},
		{"application/problem+json", "Json"},
		{"text/plain", "Text"},
		{"application/xml", "Xml"},
		{"application/x-www-form-urlencoded", "Form"},
		{"multipart/form-data", "Multipart"},
		{"application/octet-stream", "Binary"},
		{"text/event-stream", "EventStream"},
		{"*/*", "Any"},
		{"image/png", "Png"},
		{"application/vnd.api.v2", "VndApiV2"},
	}
	for _, tt := range tests {
		if got := ContentTypeSuffix(tt.input); got != tt.expected {
			t.Errorf("ContentTypeSuffix(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

package ir

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveOnce(t *testing.T) {
	g := NewGraph()
	var created int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := g.Reserve("#/components/schemas/Pet", Path{"Pet"})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestFreezeRejectsPlaceholders(t *testing.T) {
	g := NewGraph()
	_, _, err := g.Reserve("#/components/schemas/Pet", Path{"Pet"})
	require.NoError(t, err)
	assert.ErrorContains(t, g.Freeze(), "never resolved")
}

func TestFreezeCycle(t *testing.T) {
	g := NewGraph()
	nodeKey := Key("#/components/schemas/Node")
	_, _, err := g.Reserve(nodeKey, Path{"Node"})
	require.NoError(t, err)
	require.NoError(t, g.Complete(&TypeDef{
		Key:      nodeKey,
		Kind:     KindStruct,
		Name:     "Node",
		Declared: true,
		Fields:   []Field{{JSONName: "next", Name: "Next", Type: nodeKey}},
	}))

	require.NoError(t, g.Freeze())
	assert.True(t, g.Frozen())

	_, _, err = g.Reserve("#/x", nil)
	assert.ErrorIs(t, err, ErrFrozen)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		types []*TypeDef
		err   string
	}{
		{
			name:  "dangling reference",
			types: []*TypeDef{{Key: "a", Kind: KindArray, Elem: "missing"}},
			err:   "unknown type missing",
		},
		{
			name: "duplicate declared names",
			types: []*TypeDef{
				{Key: "a", Kind: KindPrimitive, Primitive: PrimitiveString, Name: "Pet", Declared: true},
				{Key: "b", Kind: KindPrimitive, Primitive: PrimitiveString, Name: "Pet", Declared: true},
			},
			err: "both named \"Pet\"",
		},
		{
			name: "duplicate field names",
			types: []*TypeDef{
				{Key: "s", Kind: KindStruct, Name: "S", Declared: true, Fields: []Field{
					{JSONName: "a", Name: "A", Type: BuiltinKey(PrimitiveString, "")},
					{JSONName: "A", Name: "A", Type: BuiltinKey(PrimitiveString, "")},
				}},
				{Key: BuiltinKey(PrimitiveString, ""), Kind: KindPrimitive, Primitive: PrimitiveString},
			},
			err: "duplicate field \"A\"",
		},
		{
			name: "union without match rule",
			types: []*TypeDef{
				{Key: "u", Kind: KindUnion, Name: "U", Declared: true, Union: &Union{
					Tag:     UnionAnyOf,
					Members: []UnionMember{{Name: "String", Type: BuiltinKey(PrimitiveString, "")}},
				}},
				{Key: BuiltinKey(PrimitiveString, ""), Kind: KindPrimitive, Primitive: PrimitiveString},
			},
			err: "no match rule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			for _, td := range tt.types {
				_, err := g.Put(td)
				require.NoError(t, err)
			}
			assert.ErrorContains(t, g.Validate(), tt.err)
		})
	}
}

func TestEquivalent(t *testing.T) {
	g := NewGraph()
	str := BuiltinKey(PrimitiveString, "")
	for _, td := range []*TypeDef{
		{Key: str, Kind: KindPrimitive, Primitive: PrimitiveString},
		{Key: "a", Kind: KindStruct, Fields: []Field{{JSONName: "id", Type: str, Required: true}, {JSONName: "self", Type: "a"}}},
		{Key: "b", Kind: KindStruct, Fields: []Field{{JSONName: "self", Type: "b"}, {JSONName: "id", Type: str, Required: true}}},
		{Key: "c", Kind: KindStruct, Fields: []Field{{JSONName: "id", Type: str}, {JSONName: "self", Type: "c"}}},
		{Key: "alias", Kind: KindAlias, Target: "a"},
	} {
		_, err := g.Put(td)
		require.NoError(t, err)
	}

	assert.True(t, g.Equivalent("a", "b"))
	assert.True(t, g.Equivalent("alias", "b"))
	assert.False(t, g.Equivalent("a", "c"))
}

func TestOperationLookups(t *testing.T) {
	op := Operation{
		RequestVariants: []RequestVariant{{ContentType: "application/json", Type: "a"}, {ContentType: "text/plain", Type: "b"}},
		ResponseVariants: []ResponseVariant{
			{Status: 200, ContentType: "application/json", Type: "a"},
			{Status: 404, ContentType: "application/json", Type: "c"},
		},
	}
	v, ok := op.Request("text/plain")
	require.True(t, ok)
	assert.Equal(t, Key("b"), v.Type)

	r, ok := op.Response(404, "application/json")
	require.True(t, ok)
	assert.Equal(t, Key("c"), r.Type)

	_, ok = op.Response(500, "application/json")
	assert.False(t, ok)
}

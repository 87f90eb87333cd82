package params_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/params"
)

func attrs(t *testing.T, m map[string]any) map[string]*structpb.Value {
	t.Helper()
	out := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		pv, err := structpb.NewValue(v)
		require.NoError(t, err)
		out[k] = pv
	}
	return out
}

func TestGetStringAndBoolAndInt(t *testing.T) {
	a := params.New(attrs(t, map[string]any{
		"graph_name": "g0",
		"directed":   true,
		"axis":       float64(1),
	}))

	s, err := a.GetString("graph_name")
	require.NoError(t, err)
	assert.Equal(t, "g0", s)

	b, err := a.GetBool("directed")
	require.NoError(t, err)
	assert.True(t, b)

	n, err := a.GetInt64("axis")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMissingKey(t *testing.T) {
	a := params.New(attrs(t, map[string]any{}))
	_, err := a.GetString("graph_name")
	assert.True(t, grapeerr.Is(err, grapeerr.MissingKey))
}

func TestInvalidValue(t *testing.T) {
	a := params.New(attrs(t, map[string]any{"directed": "not-a-bool"}))
	_, err := a.GetBool("directed")
	assert.True(t, grapeerr.Is(err, grapeerr.InvalidValue))
}

func TestGetStringList(t *testing.T) {
	a := params.New(attrs(t, map[string]any{
		"nodes-list": []any{"1", "2", "3"},
	}))
	list, err := a.GetStringList("nodes-list")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, list)
}

func TestGetGraphType(t *testing.T) {
	a := params.New(attrs(t, map[string]any{"graph_type": "DYNAMIC_PROPERTY"}))
	gt, err := a.GetGraphType("graph_type")
	require.NoError(t, err)
	assert.Equal(t, command.DynamicProperty, gt)

	bad := params.New(attrs(t, map[string]any{"graph_type": "NOT_A_TYPE"}))
	_, err = bad.GetGraphType("graph_type")
	assert.True(t, grapeerr.Is(err, grapeerr.InvalidValue))
}

func TestGetStruct(t *testing.T) {
	a := params.New(attrs(t, map[string]any{
		"schema_def": map[string]any{
			"oid_type": "int64",
			"vid_type": "uint64",
		},
	}))
	var schema command.SchemaDef
	require.NoError(t, a.GetStruct("schema_def", &schema))
	assert.Equal(t, "int64", schema.OidType)
	assert.Equal(t, "uint64", schema.VidType)
}

func TestGetOrDefaults(t *testing.T) {
	a := params.New(attrs(t, map[string]any{}))
	assert.Equal(t, "fallback", a.GetStringOr("missing", "fallback"))
	assert.True(t, a.GetBoolOr("missing", true))
	assert.EqualValues(t, 5, a.GetInt64Or("missing", 5))
	assert.False(t, a.Has("missing"))
}

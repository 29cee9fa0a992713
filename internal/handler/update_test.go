package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HsiangNianian/aieda-bridge/internal/adapter"
	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

func ops(items ...map[string]any) map[string]any {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = it
	}
	return map[string]any{"operations": list}
}

func wireOp() map[string]any {
	return map[string]any{"kind": "create_wire", "input": map[string]any{"line": []any{0.0, 0.0, 10.0, 0.0}}}
}

func TestUpdateSchemaRequiresOperations(t *testing.T) {
	env, _ := mockEnv()
	for _, payload := range []map[string]any{{}, {"operations": []any{}}, {"operations": "x"}} {
		_, err := UpdateSchema(context.Background(), payload, env)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "operations", vErr.Field)
	}
}

func TestUpdateSchemaMalformedItemStopsBatch(t *testing.T) {
	env, m := mockEnv()
	_, err := UpdateSchema(context.Background(), map[string]any{"operations": []any{
		wireOp(),
		map[string]any{"input": map[string]any{"line": []any{0.0, 0.0, 2.0, 2.0}}},
		wireOp(),
	}}, env)
	var bErr *BatchItemError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, 1, bErr.Index)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "operations[1]", vErr.Field)
	assert.NotEmpty(t, vErr.Errors)

	wires, err := m.GetAllWires(context.Background())
	require.NoError(t, err)
	assert.Len(t, wires, 1)
}

func TestUpdateSchemaMalformedItemsContinue(t *testing.T) {
	env, m := mockEnv()
	env.Command = protocol.Command{Meta: protocol.Meta{ContinueOnError: true}}
	out, err := UpdateSchema(context.Background(), map[string]any{"operations": []any{
		wireOp(),
		map[string]any{"input": map[string]any{"line": []any{0.0, 0.0, 2.0, 2.0}}},
		"create_wire",
		wireOp(),
	}}, env)
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, 4, res["requested"])
	assert.Equal(t, 2, res["applied"])
	assert.Equal(t, 2, res["failed"])
	results := res["results"].([]ItemResult)
	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Error, "operation 1 is malformed")
	assert.False(t, results[2].OK)
	assert.True(t, results[3].OK)

	wires, err := m.GetAllWires(context.Background())
	require.NoError(t, err)
	assert.Len(t, wires, 2)
}

func TestUpdateSchemaApplies(t *testing.T) {
	env, m := mockEnv()
	out, err := UpdateSchema(context.Background(), ops(
		wireOp(),
		map[string]any{"type": "create_component", "input": map[string]any{"device": "mock-device-r", "x": 5.0, "y": 6.0}},
		map[string]any{"action": "create_netport", "net": "VCC", "x": 1.0, "y": 1.0},
	), env)
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, 3, res["requested"])
	assert.Equal(t, 3, res["applied"])
	assert.Equal(t, 0, res["failed"])

	parts, err := m.GetAllComponents(context.Background())
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

func TestUpdateSchemaDryRunDoesNotMutate(t *testing.T) {
	env, m := mockEnv()
	env.Command = protocol.Command{Meta: protocol.Meta{DryRun: true}}
	out, err := UpdateSchema(context.Background(), ops(wireOp(), wireOp(), map[string]any{"kind": "delete_component", "input": map[string]any{"uuid": "missing"}}), env)
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, 3, res["applied"])
	assert.Equal(t, 0, res["failed"])
	assert.Equal(t, true, res["dry_run"])

	wires, err := m.GetAllWires(context.Background())
	require.NoError(t, err)
	assert.Empty(t, wires)
}

func TestUpdateSchemaDryRunAcceptsEveryItem(t *testing.T) {
	env, _ := mockEnv()
	env.Command = protocol.Command{Meta: protocol.Meta{DryRun: true}}
	out, err := UpdateSchema(context.Background(), map[string]any{"operations": []any{
		wireOp(),
		map[string]any{"kind": "rotate_board"},
		map[string]any{"input": map[string]any{}},
	}}, env)
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, 3, res["requested"])
	assert.Equal(t, 3, res["applied"])
	assert.Equal(t, 0, res["failed"])

	results := res["results"].([]ItemResult)
	for _, item := range results {
		assert.True(t, item.OK)
		assert.True(t, item.DryRun)
	}
	assert.Equal(t, "rotate_board", results[1].Kind)
	first := results[1].Result.(map[string]any)
	assert.Contains(t, first["warnings"], `unsupported operation kind "rotate_board"`)
	assert.NotEmpty(t, results[2].Result.(map[string]any)["warnings"])
	assert.NotContains(t, results[0].Result.(map[string]any), "warnings")
}

func TestUpdateSchemaStopsOnFirstFailure(t *testing.T) {
	env, m := mockEnv()
	_, err := UpdateSchema(context.Background(), ops(
		wireOp(),
		map[string]any{"kind": "delete_wire", "input": map[string]any{"uuid": "ghost"}},
		wireOp(),
	), env)
	var bErr *BatchItemError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, 1, bErr.Index)
	assert.Equal(t, "delete_wire", bErr.Kind)
	assert.True(t, errors.Is(err, adapter.ErrNotFound))
	assert.Contains(t, err.Error(), "operation 1 (delete_wire) failed")
	require.Len(t, bErr.Results, 2)
	assert.True(t, bErr.Results[0].OK)
	assert.False(t, bErr.Results[1].OK)

	wires, err := m.GetAllWires(context.Background())
	require.NoError(t, err)
	assert.Len(t, wires, 1, "items before the failure stay applied")
}

func TestUpdateSchemaContinueOnError(t *testing.T) {
	env, _ := mockEnv()
	env.Command = protocol.Command{Meta: protocol.Meta{ContinueOnError: true}}
	out, err := UpdateSchema(context.Background(), ops(
		map[string]any{"kind": "explode"},
		wireOp(),
		map[string]any{"kind": "create_wire", "input": map[string]any{"line": []any{1.0}}},
	), env)
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, 1, res["applied"])
	assert.Equal(t, 2, res["failed"])
	results := res["results"].([]ItemResult)
	assert.Contains(t, results[0].Error, "unsupported operation kind")
	assert.Contains(t, results[2].Error, "line")
}

package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HsiangNianian/aieda-bridge/internal/capability"
	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

func returning(v any) capability.Method {
	return func(context.Context, ...any) (any, error) { return v, nil }
}

func failing(msg string) capability.Method {
	return func(context.Context, ...any) (any, error) { return nil, errors.New(msg) }
}

func minimalHost() capability.MapHost {
	return capability.MapHost{
		capability.ComponentGetAll: returning([]any{}),
		capability.WireGetAll:      returning([]any{}),
	}
}

func TestEasyEDAUnavailableHost(t *testing.T) {
	a := NewEasyEDA(nil)
	assert.Equal(t, TypeEasyEDA, a.Type())
	assert.False(t, a.IsAvailable())

	_, err := a.GetAllComponents(context.Background())
	assert.ErrorIs(t, err, ErrRuntimeUnavailable)

	_, err = a.GetAllTexts(context.Background())
	assert.ErrorIs(t, err, ErrRuntimeUnavailable)
}

func TestEasyEDABestEffortTexts(t *testing.T) {
	a := NewEasyEDA(minimalHost())
	require.True(t, a.IsAvailable())
	texts, err := a.GetAllTexts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, texts)

	_, err = a.GetAllPolygons(context.Background())
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.False(t, capErr.Write)
	assert.Equal(t, []string{capability.PolygonGetAll}, capErr.Missing)
}

func TestEasyEDAWriteValidatesBeforeCapability(t *testing.T) {
	a := NewEasyEDA(minimalHost())

	_, err := a.CreateWire(context.Background(), Record{})
	var inErr *InputError
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, "line", inErr.Field)

	_, err = a.CreateWire(context.Background(), Record{"line": []any{0.0, 0.0, 10.0, 0.0}})
	assert.ErrorIs(t, err, ErrOperationUnsupported)

	_, err = a.ModifyComponent(context.Background(), Record{"x": 1.0})
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, "uuid", inErr.Field)

	_, err = a.CreateNetFlag(context.Background(), Record{"net": "GND", "x": 1.0})
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, "y", inErr.Field)
}

func TestEasyEDAHostCallError(t *testing.T) {
	h := minimalHost()
	h[capability.WireDelete] = failing("locked document")
	a := NewEasyEDA(h)
	_, err := a.DeleteWire(context.Background(), Record{"uuid": "w1"})
	var hostErr *HostCallError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, capability.WireDelete, hostErr.Method)
	assert.Contains(t, err.Error(), "locked document")
}

func TestCreateComponentShapeFallback(t *testing.T) {
	var seen []int
	h := minimalHost()
	h[capability.ComponentCreate] = func(_ context.Context, args ...any) (any, error) {
		seen = append(seen, len(args))
		if len(args) != 1 {
			return nil, errors.New("bad arity")
		}
		opts := args[0].(map[string]any)
		return map[string]any{"primitiveId": "gge42", "x": opts["x"], "y": opts["y"]}, nil
	}
	a := NewEasyEDA(h)
	rec, err := a.CreateComponent(context.Background(), Record{"device": map[string]any{"uuid": "dev", "libraryUuid": "lib"}, "x": 10.0, "y": 20.0})
	require.NoError(t, err)
	assert.Equal(t, []int{8, 3, 1}, seen)
	assert.Equal(t, "gge42", rec.ID())
	assert.Equal(t, 10.0, rec["x"])
}

func TestCreateComponentAllShapesFail(t *testing.T) {
	calls := 0
	h := minimalHost()
	h[capability.ComponentCreate] = func(context.Context, ...any) (any, error) {
		calls++
		return nil, errors.New("nope")
	}
	a := NewEasyEDA(h)
	_, err := a.CreateComponent(context.Background(), Record{"device_uuid": "dev", "x": 1.0, "y": 2.0})
	require.ErrorIs(t, err, ErrCreateComponentFailed)
	var ccErr *CreateComponentError
	require.ErrorAs(t, err, &ccErr)
	assert.Len(t, ccErr.Attempts, len(createShapes))
	assert.Equal(t, len(createShapes), calls)
	assert.Contains(t, err.Error(), "positional: nope")
	assert.Contains(t, err.Error(), "device-uuid: nope")
}

func TestEasyEDAReadsReconcileComponents(t *testing.T) {
	h := minimalHost()
	h[capability.ComponentGetAll] = returning([]any{
		map[string]any{"primitiveId": "e7", "x": 0.0, "y": 0.0},
		map[string]any{"primitiveId": "e9", "x": 50.0, "y": 60.0},
	})
	h[capability.ComponentGetAllIDs] = returning([]any{"gge7", "gge1001"})
	h[capability.ComponentGet] = func(_ context.Context, args ...any) (any, error) {
		if args[0] == "gge1001" {
			return map[string]any{"x": 50.0, "y": 60.0}, nil
		}
		return nil, errors.New("unknown")
	}
	a := NewEasyEDA(h)
	records, err := a.GetAllComponents(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "gge7", records[0].ID())
	assert.Equal(t, "gge1001", records[1].ID())
}

func TestEasyEDAReconcileFailureKeepsIDs(t *testing.T) {
	h := minimalHost()
	h[capability.ComponentGetAll] = returning([]any{map[string]any{"primitiveId": "e7"}})
	h[capability.ComponentGetAllIDs] = failing("not ready")
	records, err := NewEasyEDA(h).GetAllComponents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e7", records[0].ID())
}

func TestEasyEDAAuthStatus(t *testing.T) {
	h := minimalHost()
	h[capability.AccountGetUserInfo] = returning(map[string]any{"uuid": "u1", "username": "ada", "token": "secret"})
	st, err := NewEasyEDA(h).GetAuthStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st.Authenticated)
	assert.True(t, *st.Authenticated)
	assert.Equal(t, "authenticated", st.Status)
	assert.NotContains(t, st.User, "token")
	assert.NotNil(t, st.Raw)
}

func TestSelectFallsBackToMock(t *testing.T) {
	assert.Equal(t, TypeMock, Select(nil).Type())
	assert.Equal(t, TypeEasyEDA, Select(minimalHost()).Type())
}

func TestCapabilitiesReturnsCopy(t *testing.T) {
	a := NewEasyEDA(minimalHost())
	c := a.Capabilities()
	c.UpdateOperations.Missing[protocol.OpCreateWire] = nil
	assert.NotNil(t, a.Capabilities().UpdateOperations.Missing[protocol.OpCreateWire])
}

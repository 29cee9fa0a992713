package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

// countingHost records every method invocation so probes can prove they
// never call into the host.
func countingHost(calls *int, names ...string) MapHost {
	h := MapHost{}
	for _, name := range names {
		h[name] = func(context.Context, ...any) (any, error) {
			*calls++
			return nil, nil
		}
	}
	return h
}

func TestProbeNilHost(t *testing.T) {
	r := Probe(nil)
	assert.False(t, r.EnvironmentDetected)
	assert.False(t, r.RuntimeAvailable)
	assert.False(t, r.RuntimeMinimum.Available)
	assert.Empty(t, r.UpdateOperations.Available)
	assert.Len(t, r.UpdateOperations.Missing, len(protocol.OpKinds))
}

func TestProbeMinimumOnly(t *testing.T) {
	calls := 0
	r := Probe(countingHost(&calls, RuntimeMinimum...))
	assert.Zero(t, calls)
	assert.True(t, r.EnvironmentDetected)
	assert.True(t, r.RuntimeMinimum.Available)
	assert.Empty(t, r.RuntimeMinimum.Missing)
	assert.True(t, r.RuntimeAvailable)
	assert.False(t, r.ReadOptional.Available)
	assert.ElementsMatch(t, ReadOptional, r.ReadOptional.Missing)
	assert.Equal(t, []string{WireCreate}, r.UpdateOperations.Missing[protocol.OpCreateWire])
}

func TestProbeNilMethodIsNotCallable(t *testing.T) {
	h := MapHost{ComponentGetAll: nil, WireGetAll: func(context.Context, ...any) (any, error) { return nil, nil }}
	r := Probe(h)
	assert.False(t, r.RuntimeAvailable)
	assert.Equal(t, []string{ComponentGetAll}, r.RuntimeMinimum.Missing)
}

func TestProbeOperations(t *testing.T) {
	calls := 0
	names := append([]string{}, RuntimeMinimum...)
	names = append(names, WireCreate, WireDelete)
	r := Probe(countingHost(&calls, names...))
	assert.ElementsMatch(t, []protocol.OpKind{protocol.OpCreateWire, protocol.OpDeleteWire}, r.UpdateOperations.Available)
	assert.True(t, r.OperationAvailable(protocol.OpCreateWire))
	assert.False(t, r.OperationAvailable(protocol.OpModifyWire))
	assert.True(t, r.Has(WireCreate))
	assert.False(t, r.Has(TextGetAll))
}

func TestReportCloneIsDeep(t *testing.T) {
	r := Full()
	require.True(t, r.RuntimeAvailable)
	c := r.Clone()
	c.RuntimeMinimum.Methods[0].Available = false
	c.UpdateOperations.Available[0] = "tampered"
	c.ReadOptional.Missing = append(c.ReadOptional.Missing, "x")
	assert.True(t, r.RuntimeMinimum.Methods[0].Available)
	assert.NotEqual(t, protocol.OpKind("tampered"), r.UpdateOperations.Available[0])
	assert.Empty(t, r.ReadOptional.Missing)
}

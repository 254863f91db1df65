package periph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnnohj/hostbridge/bridge"
)

func TestPinOutputValue(t *testing.T) {
	pins := NewPins()

	require.NoError(t, pins.SetDirection(13, Output))
	require.NoError(t, pins.SetValue(13, true))

	v, err := pins.Value(13)
	require.NoError(t, err)
	assert.True(t, v)

	// The host observes the same level.
	v, err = pins.OutputValue(13)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestPinInputSeparateFromOutput(t *testing.T) {
	pins := NewPins()

	// Writing an input has no observable effect; the injected level wins.
	require.NoError(t, pins.SetValue(5, true))
	v, err := pins.Value(5)
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, pins.InjectInput(5, true))
	v, err = pins.Value(5)
	require.NoError(t, err)
	assert.True(t, v)

	// The injected level never leaks into the output cell.
	v, err = pins.OutputValue(5)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestPinDirectionChangeClearsInjectedLatch(t *testing.T) {
	pins := NewPins()

	require.NoError(t, pins.InjectInput(7, true))
	require.NoError(t, pins.SetDirection(7, Output))
	require.NoError(t, pins.SetDirection(7, Input))

	// Back to input: the stale injected level must not reappear.
	v, err := pins.Value(7)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestPinPullImpliedLevel(t *testing.T) {
	pins := NewPins()

	require.NoError(t, pins.SetPull(3, PullUp))
	v, err := pins.Value(3)
	require.NoError(t, err)
	assert.True(t, v, "pulled-up floating input should read high")

	require.NoError(t, pins.SetPull(3, PullDown))
	v, err = pins.Value(3)
	require.NoError(t, err)
	assert.False(t, v)

	// An injected level overrides the pull.
	require.NoError(t, pins.InjectInput(3, true))
	v, err = pins.Value(3)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestPinClaimRelease(t *testing.T) {
	pins := NewPins()

	require.NoError(t, pins.Claim(10))
	assert.ErrorIs(t, pins.Claim(10), bridge.ErrInvalidHandle)

	require.NoError(t, pins.Release(10))
	require.NoError(t, pins.Claim(10))
}

func TestPinDeinitRejectsOperations(t *testing.T) {
	pins := NewPins()

	require.NoError(t, pins.Deinit(8))

	assert.ErrorIs(t, pins.SetValue(8, true), bridge.ErrInvalidHandle)
	_, err := pins.Value(8)
	assert.ErrorIs(t, err, bridge.ErrInvalidHandle)

	// Claiming re-enables the pin.
	require.NoError(t, pins.Claim(8))
	require.NoError(t, pins.SetValue(8, true))
}

func TestPinIndexBounds(t *testing.T) {
	pins := NewPins()

	assert.ErrorIs(t, pins.SetValue(-1, true), bridge.ErrInvalidHandle)
	assert.ErrorIs(t, pins.SetValue(NumPins, true), bridge.ErrInvalidHandle)
}

func TestPinResetAllHonorsNeverReset(t *testing.T) {
	pins := NewPins()

	require.NoError(t, pins.SetDirection(1, Output))
	require.NoError(t, pins.SetValue(1, true))

	require.NoError(t, pins.SetDirection(2, Output))
	require.NoError(t, pins.SetValue(2, true))
	require.NoError(t, pins.MarkNeverReset(2))

	pins.ResetAll()

	snap := pins.Snapshot()
	assert.Equal(t, PinState{Enabled: true}, snap[1])
	assert.True(t, snap[2].Value, "never-reset pin should keep its state")
	assert.Equal(t, Output, snap[2].Direction)
}

func TestPinSnapshotIsACopy(t *testing.T) {
	pins := NewPins()

	snap := pins.Snapshot()
	require.Len(t, snap, NumPins)
	snap[0].Value = true

	v, err := pins.Value(0)
	require.NoError(t, err)
	assert.False(t, v)
}

package periph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnnohj/hostbridge/bridge"
)

func TestAnalogADCStartsAtMidScale(t *testing.T) {
	analog := NewAnalog()

	require.NoError(t, analog.Init(4, false))

	v, err := analog.Read(4)
	require.NoError(t, err)
	assert.Equal(t, uint16(AnalogMidScale), v)
}

func TestAnalogInjectedReading(t *testing.T) {
	analog := NewAnalog()

	require.NoError(t, analog.Init(4, false))
	require.NoError(t, analog.InjectInput(4, 1023))

	v, err := analog.Read(4)
	require.NoError(t, err)
	assert.Equal(t, uint16(1023), v)

	// Interpreter-side writes have no effect on an ADC.
	require.NoError(t, analog.Write(4, 0))
	v, _ = analog.Read(4)
	assert.Equal(t, uint16(1023), v)
}

func TestAnalogDACWrite(t *testing.T) {
	analog := NewAnalog()

	require.NoError(t, analog.Init(2, true))
	require.NoError(t, analog.Write(2, 40000))

	v, err := analog.OutputValue(2)
	require.NoError(t, err)
	assert.Equal(t, uint16(40000), v)

	// Host-side injection has no effect on a DAC.
	require.NoError(t, analog.InjectInput(2, 0))
	v, _ = analog.OutputValue(2)
	assert.Equal(t, uint16(40000), v)
}

func TestAnalogDeinitRejectsOperations(t *testing.T) {
	analog := NewAnalog()

	require.NoError(t, analog.Init(1, false))
	require.NoError(t, analog.Deinit(1))

	_, err := analog.Read(1)
	assert.ErrorIs(t, err, bridge.ErrInvalidHandle)
}

func TestAnalogUninitializedChannel(t *testing.T) {
	analog := NewAnalog()

	_, err := analog.Read(0)
	assert.ErrorIs(t, err, bridge.ErrInvalidHandle)

	_, err = analog.Read(NumAnalogChannels)
	assert.ErrorIs(t, err, bridge.ErrInvalidHandle)
}

func TestAnalogResetAll(t *testing.T) {
	analog := NewAnalog()

	require.NoError(t, analog.Init(3, true))
	require.NoError(t, analog.Write(3, 100))

	analog.ResetAll()

	_, err := analog.Read(3)
	assert.ErrorIs(t, err, bridge.ErrInvalidHandle)
}

package yolink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	payload := []byte(`{"event":"THSensor.Report","time":1700000000123,"msgid":"1700000000123",
		"data":{"state":"normal","temperature":21.0,"humidity":"45.5","battery":4},"deviceId":"d88b4c01"}`)

	evt, err := ParseEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, "d88b4c01", evt.DeviceID)
	assert.Equal(t, "THSensor.Report", evt.Event)
	assert.Equal(t, int64(1700000000123), evt.Time)
	assert.Equal(t, "1700000000123", evt.MsgID)
	assert.Equal(t, time.UnixMilli(1700000000123), evt.EventTime())

	state, ok := evt.State()
	assert.True(t, ok)
	assert.Equal(t, "normal", state)

	temp, ok := evt.Float("temperature")
	assert.True(t, ok)
	assert.InDelta(t, 21.0, temp, 1e-9)

	humidity, ok := evt.Float("humidity")
	assert.True(t, ok, "numeric strings are accepted")
	assert.InDelta(t, 45.5, humidity, 1e-9)

	_, ok = evt.Float("missing")
	assert.False(t, ok)
}

func TestParseEvent_NumericMsgID(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"deviceId":"d1","event":"DoorSensor.Alert","time":"1700000000000","msgid":42}`))
	require.NoError(t, err)
	assert.Equal(t, "42", evt.MsgID)
	assert.Equal(t, int64(1700000000000), evt.Time)
	assert.NotNil(t, evt.Data)

	_, ok := evt.State()
	assert.False(t, ok)
}

func TestParseEvent_Invalid(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`{"event":"DoorSensor.Alert"}`,
		`{"deviceId":"d1","time":"yesterday"}`,
		`{"deviceId":"d1","data":"flat"}`,
	} {
		_, err := ParseEvent([]byte(payload))
		assert.ErrorIs(t, err, ErrInvalidEvent, payload)
	}
}

func TestEvent_FloatTypes(t *testing.T) {
	evt := Event{Data: map[string]any{
		"f":   1.5,
		"i":   2,
		"bad": "x",
		"b":   true,
	}}

	v, ok := evt.Float("f")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = evt.Float("i")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = evt.Float("bad")
	assert.False(t, ok)
	_, ok = evt.Float("b")
	assert.False(t, ok)
}

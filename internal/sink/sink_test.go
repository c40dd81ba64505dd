package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	lines []string
	err   error
}

func (w *recordingWriter) WriteLine(_ context.Context, line string) error {
	w.lines = append(w.lines, line)
	return w.err
}

type recordingPublisher struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte, qos byte, retained bool) error {
	p.topic, p.payload, p.qos, p.retained = topic, payload, qos, retained
	return p.err
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name        string
		measurement string
		tagSet      string
		fields      []Field
		want        string
	}{
		{
			name:        "temperature point",
			measurement: "weather",
			tagSet:      "location=home",
			fields:      []Field{F("temperature", 69.8), F("humidity", 45.5)},
			want:        "weather,location=home temperature=69.8,humidity=45.5",
		},
		{
			name:        "field order preserved",
			measurement: "weather",
			tagSet:      "location=home",
			fields:      []Field{F("humidity", 45.5), F("temperature", 69.8)},
			want:        "weather,location=home humidity=45.5,temperature=69.8",
		},
		{
			name:        "no tag set",
			measurement: "weather",
			fields:      []Field{F("temperature", 70.0)},
			want:        "weather temperature=70",
		},
		{
			name:        "escaping and types",
			measurement: "my room,1",
			tagSet:      "location=garage\n",
			fields:      []Field{F("door open", true), F("count", 3), F("note", `say "hi"`)},
			want:        `my\ room\,1,location=garage door\ open=true,count=3i,note="say \"hi\""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLine(tt.measurement, tt.tagSet, tt.fields))
		})
	}
}

func TestMetrics_Write(t *testing.T) {
	w := &recordingWriter{}
	m := NewMetrics(w, "weather", "location=home")

	require.NoError(t, m.Write(context.Background(), F("temperature", 69.8), F("humidity", 45.5)))
	assert.Equal(t, []string{"weather,location=home temperature=69.8,humidity=45.5"}, w.lines)
	assert.Equal(t, "weather", m.Measurement())
}

func TestMetrics_WriteErrors(t *testing.T) {
	backendErr := errors.New("HTTP 500")
	w := &recordingWriter{err: backendErr}
	m := NewMetrics(w, "weather", "")

	err := m.Write(context.Background(), F("temperature", 1.0))
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, backendErr)
	assert.Len(t, w.lines, 1, "no retry")

	assert.ErrorIs(t, m.Write(context.Background()), ErrNoFields)
}

func TestRepublish_Publish(t *testing.T) {
	p := &recordingPublisher{}
	r := NewRepublish(p, 1, true)

	require.NoError(t, r.Publish(context.Background(), "yolink/DoorSensor/d1/report", []byte("DoorEvent.OPEN")))
	assert.Equal(t, "yolink/DoorSensor/d1/report", p.topic)
	assert.Equal(t, "DoorEvent.OPEN", string(p.payload))
	assert.Equal(t, byte(1), p.qos)
	assert.True(t, p.retained)

	p.err = errors.New("not connected")
	assert.ErrorIs(t, r.Publish(context.Background(), "t", nil), ErrPublishFailed)
}

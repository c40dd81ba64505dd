package yolink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is one device report received from the YoLink broker.
//
// Example payload:
//
//	{"event":"DoorSensor.Alert","time":1700000000000,"msgid":"1700000000000",
//	 "data":{"state":"open","battery":4},"deviceId":"d88b4c0100000001"}
type Event struct {
	DeviceID string         `json:"deviceId"`
	Event    string         `json:"event"`
	Time     int64          `json:"time"`
	MsgID    string         `json:"msgid"`
	Data     map[string]any `json:"data"`
}

// ParseEvent decodes an MQTT payload into an Event.
// Numbers inside data are kept as json.Number.
func ParseEvent(payload []byte) (Event, error) {
	var raw struct {
		DeviceID string          `json:"deviceId"`
		Event    string          `json:"event"`
		Time     json.Number     `json:"time"`
		MsgID    json.RawMessage `json:"msgid"`
		Data     map[string]any  `json:"data"`
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if raw.DeviceID == "" {
		return Event{}, fmt.Errorf("%w: missing deviceId", ErrInvalidEvent)
	}

	evt := Event{
		DeviceID: raw.DeviceID,
		Event:    raw.Event,
		MsgID:    strings.Trim(string(raw.MsgID), `"`),
		Data:     raw.Data,
	}
	if raw.Time != "" {
		ms, err := raw.Time.Int64()
		if err != nil {
			f, ferr := raw.Time.Float64()
			if ferr != nil {
				return Event{}, fmt.Errorf("%w: bad time %q", ErrInvalidEvent, raw.Time)
			}
			ms = int64(f)
		}
		evt.Time = ms
	}
	if evt.Data == nil {
		evt.Data = map[string]any{}
	}
	return evt, nil
}

// EventTime converts the millisecond timestamp to a time.Time.
func (e Event) EventTime() time.Time {
	return time.UnixMilli(e.Time)
}

// State returns data.state when present as a string.
func (e Event) State() (string, bool) {
	s, ok := e.Data["state"].(string)
	return s, ok
}

// Float reads a numeric data field. JSON numbers and numeric strings
// are both accepted.
func (e Event) Float(key string) (float64, bool) {
	switch v := e.Data[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

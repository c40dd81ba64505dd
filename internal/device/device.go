package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/yolink-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/yolink-bridge/internal/sink"
	"github.com/nerrad567/yolink-bridge/internal/yolink"
)

// Kind is the closed set of sensor kinds the bridge understands.
type Kind int

// Supported kinds.
const (
	KindDoor Kind = iota + 1
	KindTemperature
	KindLeak
	KindVibration
)

// String returns the human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindDoor:
		return "Door Sensor"
	case KindTemperature:
		return "Temperature Sensor"
	case KindLeak:
		return "Leak Sensor"
	case KindVibration:
		return "Vibration Sensor"
	default:
		return "Unknown"
	}
}

// Raw YoLink type names.
const (
	TypeDoor        = "DoorSensor"
	TypeTemperature = "THSensor"
	TypeLeak        = "LeakSensor"
	TypeVibration   = "VibrationSensor"
	TypeHub         = "Hub"
	TypeSiren       = "Siren"
)

var kindByType = map[string]Kind{
	TypeDoor:        KindDoor,
	TypeTemperature: KindTemperature,
	TypeLeak:        KindLeak,
	TypeVibration:   KindVibration,
}

// KindOf maps a raw YoLink type to a Kind.
//
// Returns ErrFilteredType for hubs and sirens and ErrInvalidDeviceType
// for anything else unrecognised.
func KindOf(rawType string) (Kind, error) {
	if k, ok := kindByType[rawType]; ok {
		return k, nil
	}
	if rawType == TypeHub || rawType == TypeSiren {
		return 0, fmt.Errorf("%w: %s", ErrFilteredType, rawType)
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDeviceType, rawType)
}

// MetricsSink receives one time-series point per reading. *sink.Metrics implements it.
type MetricsSink interface {
	Write(ctx context.Context, fields ...sink.Field) error
}

// RepublishSink forwards a payload to the local broker. *sink.Republish implements it.
type RepublishSink interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Device is a YoLink sensor known to the bridge.
//
// Refresh replaces the last event wholesale; Process interprets it and
// performs at most one side effect. A missing field in the event is
// logged and treated as success. Only the Consumer calls Refresh and
// Process, so per-device state has a single writer.
type Device interface {
	ID() string
	Name() string
	Kind() Kind
	RawType() string

	// Refresh stores evt as the latest event.
	Refresh(evt yolink.Event)

	// Process acts on the latest event. Sink failures are wrapped in ErrSinkWrite.
	Process(ctx context.Context) error

	// Describe returns a multi-line diagnostic summary.
	Describe() string

	// AttachMetrics sets (replaces) the metrics sink.
	AttachMetrics(s MetricsSink)

	// AttachRepublish sets (replaces) the republish sink and derives the topic.
	AttachRepublish(s RepublishSink)
}

// New builds the Device variant for a record.
func New(rec yolink.DeviceRecord, logger Logger) (Device, error) {
	if rec.DeviceID == "" {
		return nil, ErrInvalidRecord
	}
	kind, err := KindOf(rec.Type)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}

	var dev interface {
		Device
		init(rec yolink.DeviceRecord, kind Kind, logger Logger)
	}
	switch kind {
	case KindDoor:
		dev = &Door{}
	case KindTemperature:
		dev = &Temperature{}
	case KindLeak:
		dev = &Leak{}
	default:
		dev = &Vibration{}
	}
	dev.init(rec, kind, logger)
	return dev, nil
}

// base carries identity, the latest event, and the attached sinks.
// Sinks are attached before the consumer starts and not guarded.
type base struct {
	record yolink.DeviceRecord
	kind   Kind
	logger Logger
	now    func() time.Time

	mu        sync.RWMutex
	lastEvent yolink.Event

	metrics   MetricsSink
	republish RepublishSink
	topic     string
}

func (b *base) init(rec yolink.DeviceRecord, kind Kind, logger Logger) {
	b.record = rec
	b.kind = kind
	b.logger = logger
	b.now = time.Now
}

func (b *base) ID() string      { return b.record.DeviceID }
func (b *base) Name() string    { return b.record.Name }
func (b *base) Kind() Kind      { return b.kind }
func (b *base) RawType() string { return b.record.Type }

func (b *base) Refresh(evt yolink.Event) {
	b.mu.Lock()
	b.lastEvent = evt
	b.mu.Unlock()
}

// event returns a snapshot of the latest event.
func (b *base) event() yolink.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastEvent
}

func (b *base) AttachMetrics(s MetricsSink) {
	b.metrics = s
}

func (b *base) AttachRepublish(s RepublishSink) {
	b.republish = s
	b.topic = mqtt.Topics{}.DeviceReport(b.record.Type, b.record.DeviceID)
}

// Topic returns the derived republish topic, empty until a sink is attached.
func (b *base) Topic() string {
	return b.topic
}

// publish sends payload to the republish sink if one is attached.
func (b *base) publish(ctx context.Context, payload string) error {
	if b.republish == nil {
		b.logger.Debug("no republish sink attached", "device_id", b.ID())
		return nil
	}
	if err := b.republish.Publish(ctx, b.topic, []byte(payload)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSinkWrite, b.ID(), err)
	}
	b.logger.Debug("republished device state", "device_id", b.ID(), "topic", b.topic, "payload", payload)
	return nil
}

// describe renders the shared diagnostic header.
func (b *base) describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Id: %s\n", b.ID())
	fmt.Fprintf(&sb, "Name: %s\n", b.Name())
	fmt.Fprintf(&sb, "Type: %s\n", b.kind)
	evt := b.event()
	fmt.Fprintf(&sb, "Event: %s\n", evt.Event)
	if evt.Time != 0 {
		fmt.Fprintf(&sb, "Event Time: %s\n", evt.EventTime().Format(time.DateTime))
	} else {
		sb.WriteString("Event Time: -\n")
	}
	fmt.Fprintf(&sb, "Current Time: %s\n", b.now().Format(time.DateTime))
	return sb.String()
}

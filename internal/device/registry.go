package device

import (
	"errors"
	"sort"
	"sync"

	"github.com/nerrad567/yolink-bridge/internal/yolink"
)

// Registry maps device ids to Devices.
//
// It is populated once at startup from the account's device list and is
// read-mostly afterwards. Sinks are attached during startup, before the
// consumer starts.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
	logger  Logger
}

// NewRegistry builds a registry from the account's device records.
//
// Hubs and sirens are skipped. Records of unsupported types are logged and
// skipped. Duplicate ids keep the first record.
func NewRegistry(records []yolink.DeviceRecord, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Registry{
		devices: make(map[string]Device, len(records)),
		logger:  logger,
	}

	for _, rec := range records {
		dev, err := New(rec, logger)
		switch {
		case errors.Is(err, ErrFilteredType):
			logger.Debug("skipping non-sensor device", "device_id", rec.DeviceID, "type", rec.Type)
			continue
		case err != nil:
			logger.Warn("skipping device", "device_id", rec.DeviceID, "type", rec.Type, "error", err)
			continue
		}
		if _, exists := r.devices[dev.ID()]; exists {
			logger.Warn("duplicate device id in catalog", "device_id", dev.ID())
			continue
		}
		r.devices[dev.ID()] = dev
	}

	return r
}

// Get returns the device with the given id.
func (r *Registry) Get(id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[id]
	return dev, ok
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Devices returns all devices sorted by id.
func (r *Registry) Devices() []Device {
	ids := r.IDs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.devices[id])
	}
	return out
}

// IDs returns all device ids sorted lexically.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AttachMetrics attaches s to the device with the given id.
// Returns false if no such device is registered.
func (r *Registry) AttachMetrics(id string, s MetricsSink) bool {
	r.mu.RLock()
	dev, ok := r.devices[id]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("metrics sink configured for unknown device", "device_id", id)
		return false
	}
	dev.AttachMetrics(s)
	r.logger.Info("metrics sink attached", "device_id", id, "name", dev.Name())
	return true
}

// AttachRepublishAll attaches s to every device that republishes state.
// Returns the number of devices attached.
func (r *Registry) AttachRepublishAll(s RepublishSink) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, dev := range r.devices {
		switch dev.Kind() {
		case KindDoor, KindLeak:
			dev.AttachRepublish(s)
			n++
		}
	}
	return n
}

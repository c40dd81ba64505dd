package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	HomeID        string          `json:"home_id"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Subscriber    SubscriberStats `json:"subscriber"`
	Queue         QueueMetrics    `json:"queue"`
	Consumer      ConsumerMetrics `json:"consumer"`
	Devices       DeviceMetrics   `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SubscriberStats contains vendor subscription statistics.
type SubscriberStats struct {
	State     string `json:"state"`
	Received  uint64 `json:"received"`
	Malformed uint64 `json:"malformed"`
}

// QueueMetrics contains event queue statistics.
type QueueMetrics struct {
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
	Dropped  uint64 `json:"dropped"`
	Blocked  uint64 `json:"blocked"`
}

// ConsumerMetrics contains dispatch counters.
type ConsumerMetrics struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Unknown   uint64 `json:"unknown"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total  int            `json:"total"`
	ByKind map[string]int `json:"by_kind"`
}

// handleMetrics returns pipeline and runtime metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := s.consumer.Stats()
	metrics := SystemMetrics{
		Timestamp:     s.now().UTC().Format(time.RFC3339),
		Version:       s.version,
		HomeID:        s.homeID,
		UptimeSeconds: int64(s.now().Sub(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Subscriber: SubscriberStats{
			State:     s.subscriber.State().String(),
			Received:  s.subscriber.Received(),
			Malformed: s.subscriber.Malformed(),
		},
		Queue: QueueMetrics{
			Length:   s.queue.Len(),
			Capacity: s.queue.Cap(),
			Dropped:  s.queue.Dropped(),
			Blocked:  s.queue.Blocked(),
		},
		Consumer: ConsumerMetrics{
			Processed: stats.Processed,
			Failed:    stats.Failed,
			Unknown:   stats.Unknown,
		},
		Devices: DeviceMetrics{
			ByKind: make(map[string]int),
		},
	}

	for _, dev := range s.registry.Devices() {
		metrics.Devices.Total++
		metrics.Devices.ByKind[dev.Kind().String()]++
	}

	writeJSON(w, http.StatusOK, metrics)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/yolink-bridge/internal/device"
)

// DeviceView is the JSON representation of a registered device.
type DeviceView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	RawType  string `json:"raw_type"`
	Describe string `json:"describe"`
}

func viewOf(dev device.Device) DeviceView {
	return DeviceView{
		ID:       dev.ID(),
		Name:     dev.Name(),
		Kind:     dev.Kind().String(),
		RawType:  dev.RawType(),
		Describe: dev.Describe(),
	}
}

// handleListDevices returns all registered devices sorted by id.
//
// Query parameters:
//   - type: filter by raw YoLink type (DoorSensor, THSensor, ...)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	rawType := r.URL.Query().Get("type")

	devices := make([]DeviceView, 0, s.registry.Len())
	for _, dev := range s.registry.Devices() {
		if rawType != "" && dev.RawType() != rawType {
			continue
		}
		devices = append(devices, viewOf(dev))
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by id.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dev, ok := s.registry.Get(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(dev))
}

package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/yolink-bridge/internal/api"
	"github.com/nerrad567/yolink-bridge/internal/device"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/tsdb"
	"github.com/nerrad567/yolink-bridge/internal/sink"
)

// lineWriteCloser is a metrics backend.
type lineWriteCloser interface {
	sink.LineWriter
	HealthCheck(ctx context.Context) error
	Close() error
}

// sinks holds the connected sink clients.
type sinks struct {
	// health is keyed by component name for the status API.
	health  map[string]api.HealthChecker
	closers []func()
}

// Close closes every sink in reverse order of connection.
func (s *sinks) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// wireSinks connects the enabled sinks and attaches them to devices.
// The caller closes the result.
func wireSinks(ctx context.Context, cfg *config.Config, registry *device.Registry, log *logging.Logger) (*sinks, error) {
	opened := &sinks{health: make(map[string]api.HealthChecker)}
	if cfg.Features.InfluxDB {
		writer, err := newLineWriter(ctx, cfg.InfluxDB)
		if err != nil {
			opened.Close()
			return nil, err
		}
		opened.health["influxdb"] = writer
		opened.closers = append(opened.closers, func() {
			log.Info("closing InfluxDB connection")
			if closeErr := writer.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		})

		if err := writer.HealthCheck(ctx); err != nil {
			log.Warn("InfluxDB health check failed, writes may fail", "error", err)
		}

		attached := attachMetrics(registry, writer, cfg.InfluxDB.Sensors)
		log.Info("InfluxDB sink ready",
			"backend", cfg.InfluxDB.Backend,
			"url", cfg.InfluxDB.URL,
			"sensors", attached)
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.Features.LocalMQTT {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			opened.Close()
			return nil, fmt.Errorf("connecting to local MQTT: %w", err)
		}
		client.SetLogger(log.With("component", "mqtt"))
		client.SetOnConnect(func() {
			log.Info("local MQTT reconnected")
		})
		client.SetOnDisconnect(func(err error) {
			log.Warn("local MQTT disconnected", "error", err)
		})
		opened.health["mqtt"] = client
		opened.closers = append(opened.closers, func() {
			log.Info("disconnecting from local MQTT")
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing local MQTT", "error", closeErr)
			}
		})

		republish := sink.NewRepublish(client, byte(cfg.MQTT.QoS), cfg.MQTT.Retained)
		attached := registry.AttachRepublishAll(republish)
		log.Info("local MQTT sink ready",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"devices", attached)
	} else {
		log.Info("local MQTT disabled")
	}

	return opened, nil
}

// newLineWriter selects the metrics backend.
func newLineWriter(ctx context.Context, cfg config.InfluxDBConfig) (lineWriteCloser, error) {
	switch cfg.Backend {
	case config.BackendV2:
		client, err := influxdb.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		return client, nil
	default:
		client, err := tsdb.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("configuring InfluxDB: %w", err)
		}
		return client, nil
	}
}

// attachMetrics gives each configured sensor its own metrics sink.
func attachMetrics(registry *device.Registry, writer sink.LineWriter, sensors []config.SensorConfig) int {
	attached := 0
	for _, s := range sensors {
		if registry.AttachMetrics(s.DeviceID, sink.NewMetrics(writer, s.Measurement, s.TagSet)) {
			attached++
		}
	}
	return attached
}

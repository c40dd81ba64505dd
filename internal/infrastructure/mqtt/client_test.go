package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/mqtt/mqtttest"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "yolink-bridge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectFake connects a Client to an in-memory broker.
func connectFake(t *testing.T, prepare func(*mqtttest.FakeClient)) (*Client, *mqtttest.FakeClient) {
	t.Helper()
	var fake *mqtttest.FakeClient
	client, err := connect(testConfig(), func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		fake = mqtttest.NewFakeClient(opts)
		if prepare != nil {
			prepare(fake)
		}
		return fake
	})
	if err != nil {
		return nil, fake
	}
	return client, fake
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client, fake := connectFake(t, nil)
	require.NotNil(t, client)
	defer client.Close()

	assert.True(t, client.IsConnected())
	assert.Equal(t, 1, fake.Connects())
	assert.Equal(t, []string{"tcp://127.0.0.1:1883"}, brokerURLs(fake.Options))
	assert.True(t, fake.Options.AutoReconnect)
	assert.True(t, fake.Options.WillEnabled)
	assert.Equal(t, Topics{}.BridgeStatus(), fake.Options.WillTopic)
}

func TestConnect_Refused(t *testing.T) {
	_, err := connect(testConfig(), func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		fake := mqtttest.NewFakeClient(opts)
		fake.ConnectErr = errors.New("connection refused")
		return fake
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestConnect_PublishesOnlineStatus(t *testing.T) {
	client, fake := connectFake(t, nil)
	require.NotNil(t, client)
	defer client.Close()

	require.Eventually(t, func() bool {
		for _, p := range fake.Published() {
			if p.Topic == (Topics{}).BridgeStatus() && strings.Contains(string(p.Payload), `"online"`) {
				return p.Retained
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestClose(t *testing.T) {
	client, fake := connectFake(t, nil)
	require.NotNil(t, client)

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
	assert.Equal(t, 1, fake.Disconnects())

	var sawOffline bool
	for _, p := range fake.Published() {
		if strings.Contains(string(p.Payload), "graceful_shutdown") {
			sawOffline = true
		}
	}
	assert.True(t, sawOffline, "graceful offline status should be published")
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	assert.NoError(t, client.Close())
}

func TestConnectionLost(t *testing.T) {
	client, fake := connectFake(t, nil)
	require.NotNil(t, client)
	defer client.Close()

	lost := make(chan error, 1)
	client.SetOnDisconnect(func(err error) { lost <- err })

	fake.Drop(errors.New("broker went away"))

	select {
	case err := <-lost:
		assert.EqualError(t, err, "broker went away")
	case <-time.After(time.Second):
		t.Fatal("disconnect callback not invoked")
	}
	assert.False(t, client.IsConnected())
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	client, _ := connectFake(t, nil)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, client.HealthCheck(ctx))

	client.Close()
	assert.ErrorIs(t, client.HealthCheck(context.Background()), ErrNotConnected)
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish(t *testing.T) {
	client, fake := connectFake(t, nil)
	require.NotNil(t, client)
	defer client.Close()

	topic := Topics{}.DeviceReport("DoorSensor", "d-1")
	require.NoError(t, client.Publish(context.Background(), topic, []byte("DoorEvent.OPEN"), 0, false))

	var found bool
	for _, p := range fake.Published() {
		if p.Topic == topic {
			found = true
			assert.Equal(t, "DoorEvent.OPEN", string(p.Payload))
			assert.False(t, p.Retained)
		}
	}
	assert.True(t, found)
}

func TestPublish_Validation(t *testing.T) {
	client, _ := connectFake(t, nil)
	require.NotNil(t, client)
	defer client.Close()
	ctx := context.Background()

	assert.ErrorIs(t, client.Publish(ctx, "", []byte("x"), 0, false), ErrInvalidTopic)
	assert.ErrorIs(t, client.Publish(ctx, "a/b", []byte("x"), 3, false), ErrInvalidQoS)
	assert.ErrorIs(t, client.Publish(ctx, "a/b", make([]byte, maxPayloadSize+1), 0, false), ErrPublishFailed)
}

func TestPublish_BrokerError(t *testing.T) {
	client, fake := connectFake(t, nil)
	require.NotNil(t, client)
	defer client.Close()

	fake.PublishErr = errors.New("not authorised")
	err := client.PublishString(context.Background(), "yolink/x/y/report", "payload", 0, false)
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestPublish_NotConnected(t *testing.T) {
	client, _ := connectFake(t, nil)
	require.NotNil(t, client)
	client.Close()

	err := client.Publish(context.Background(), "yolink/x/y/report", []byte("x"), 0, false)
	assert.ErrorIs(t, err, ErrNotConnected)
}

// =============================================================================
// Options and Topics
// =============================================================================

func TestNewVendorOptions(t *testing.T) {
	opts := NewVendorOptions(config.YoLinkMQTTConfig{Host: "api.yosmart.com", Port: 8003, KeepAlive: 30},
		"access-token", "yolink-bridge-abc")

	assert.Equal(t, []string{"tcp://api.yosmart.com:8003"}, brokerURLs(opts))
	assert.Equal(t, "access-token", opts.Username)
	assert.Empty(t, opts.Password)
	assert.Equal(t, "yolink-bridge-abc", opts.ClientID)
	assert.True(t, opts.CleanSession)
	assert.False(t, opts.AutoReconnect)
	assert.True(t, opts.Order)
	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
	assert.Equal(t, int64(30), opts.KeepAlive)
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	assert.Equal(t, []string{"tcp://127.0.0.1:1883"}, brokerURLs(opts))
	assert.Equal(t, "yolink-bridge-test", opts.ClientID)
	assert.Empty(t, opts.Username)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.ConnectRetry)
	assert.Equal(t, time.Second, opts.ConnectRetryInterval)
	assert.Equal(t, 5*time.Second, opts.MaxReconnectInterval)
	assert.Nil(t, opts.TLSConfig)

	cfg.Broker.TLS = true
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "secret"}
	opts = buildClientOptions(cfg)

	assert.Equal(t, []string{"ssl://127.0.0.1:1883"}, brokerURLs(opts))
	assert.Equal(t, "bridge", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), opts.TLSConfig.MinVersion)
}

func TestTopics(t *testing.T) {
	topics := Topics{}
	assert.Equal(t, "yolink/DoorSensor/d-1/report", topics.DeviceReport("DoorSensor", "d-1"))
	assert.Equal(t, "yolink/bridge/status", topics.BridgeStatus())
	assert.Equal(t, "yolink/+/+/report", topics.AllDeviceReports())
}

func brokerURLs(opts *pahomqtt.ClientOptions) []string {
	urls := make([]string, 0, len(opts.Servers))
	for _, u := range opts.Servers {
		urls = append(urls, u.String())
	}
	return urls
}

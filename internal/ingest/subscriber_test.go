package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/mqtt/mqtttest"
	"github.com/nerrad567/yolink-bridge/internal/yolink"
)

const testTopic = "yl-home/home-1/+/report"

// =============================================================================
// Test doubles
// =============================================================================

type fakeTokens struct {
	mu       sync.Mutex
	token    string
	renewals int
	err      error
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.err
}

func (f *fakeTokens) Renew(context.Context) (yolink.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewals++
	return yolink.Token{AccessToken: f.token}, nil
}

func (f *fakeTokens) renewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewals
}

// fakeFactory hands out FakeClients and remembers each one.
type fakeFactory struct {
	mu      sync.Mutex
	clients []*mqtttest.FakeClient
	setup   func(n int, c *mqtttest.FakeClient)
}

func (f *fakeFactory) new(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := mqtttest.NewFakeClient(opts)
	if f.setup != nil {
		f.setup(len(f.clients), c)
	}
	f.clients = append(f.clients, c)
	return c
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *fakeFactory) client(i int) *mqtttest.FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[i]
}

func newTestSubscriber(policy string, factory *fakeFactory) (*Subscriber, *Queue, *fakeTokens) {
	q := NewQueue(8, config.OverflowDrop, nil)
	tokens := &fakeTokens{token: "access-1"}
	s := NewSubscriber(SubscriberConfig{
		Broker:        config.YoLinkMQTTConfig{Host: "api.yosmart.com", Port: 8003, QoS: 0},
		Topic:         testTopic,
		RestartPolicy: policy,
		Cooldown:      5 * time.Millisecond,
		MaxBackoff:    20 * time.Millisecond,
	}, tokens, q, nil)
	s.factory = factory.new
	return s, q, tokens
}

func runSubscriber(ctx context.Context, s *Subscriber) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitConnected(t *testing.T, s *Subscriber) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == StateConnected }, time.Second, 5*time.Millisecond)
}

// =============================================================================
// Connection
// =============================================================================

func TestSubscriber_ConnectAndReceive(t *testing.T) {
	factory := &fakeFactory{}
	s, q, _ := newTestSubscriber(config.RestartPolicyExit, factory)

	ctx, cancel := context.WithCancel(context.Background())
	done := runSubscriber(ctx, s)
	waitConnected(t, s)

	fake := factory.client(0)
	assert.True(t, fake.Subscribed(testTopic))
	assert.Equal(t, "access-1", fake.Options.Username)
	assert.Equal(t, "", fake.Options.Password)
	assert.True(t, fake.Options.CleanSession)
	assert.False(t, fake.Options.AutoReconnect)
	assert.Equal(t, "tcp://api.yosmart.com:8003", fake.Options.Servers[0].String())
	assert.Contains(t, fake.Options.ClientID, clientIDPrefix)

	require.True(t, fake.Deliver(testTopic, []byte(`{"event":"DoorSensor.Alert","time":1772366400000,"msgid":"1","data":{"state":"open"},"deviceId":"d1"}`)))
	require.True(t, fake.Deliver(testTopic, []byte(`not json`)))

	assert.Equal(t, 1, q.Len())
	assert.Equal(t, uint64(1), s.Malformed())
	assert.Equal(t, uint64(2), s.Received())

	got, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "d1", got.DeviceID)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateTerminated, s.State())
	assert.Equal(t, 1, fake.Disconnects())
}

func TestSubscriber_UniqueClientIDs(t *testing.T) {
	s1, _, _ := newTestSubscriber(config.RestartPolicyExit, &fakeFactory{})
	s2, _, _ := newTestSubscriber(config.RestartPolicyExit, &fakeFactory{})
	assert.NotEqual(t, s1.newID(), s2.newID())
}

func TestSubscriber_ExitPolicyOnConnectionLost(t *testing.T) {
	factory := &fakeFactory{}
	s, _, _ := newTestSubscriber(config.RestartPolicyExit, factory)

	done := runSubscriber(context.Background(), s)
	waitConnected(t, s)

	factory.client(0).Drop(errors.New("keepalive timeout"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRestartRequired)
		assert.Contains(t, err.Error(), "keepalive timeout")
	case <-time.After(time.Second):
		t.Fatal("Run did not return after connection loss")
	}
	assert.Equal(t, StateTerminated, s.State())
	assert.Equal(t, 1, factory.count())
}

func TestSubscriber_ExitPolicyOnRefusedConnect(t *testing.T) {
	factory := &fakeFactory{setup: func(_ int, c *mqtttest.FakeClient) {
		c.ConnectCode = 5
	}}
	s, _, _ := newTestSubscriber(config.RestartPolicyExit, factory)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrRestartRequired)
	assert.ErrorIs(t, err, mqtt.ErrConnectionFailed)
	assert.Equal(t, StateTerminated, s.State())
}

func TestSubscriber_SubscribeFailure(t *testing.T) {
	factory := &fakeFactory{setup: func(_ int, c *mqtttest.FakeClient) {
		c.SubscribeErr = errors.New("not authorised")
	}}
	s, _, _ := newTestSubscriber(config.RestartPolicyExit, factory)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrRestartRequired)
	assert.ErrorIs(t, err, mqtt.ErrSubscribeFailed)
	assert.Equal(t, 1, factory.client(0).Disconnects())
}

func TestSubscriber_ReconnectPolicy(t *testing.T) {
	factory := &fakeFactory{setup: func(n int, c *mqtttest.FakeClient) {
		// Second client is refused once, third succeeds.
		if n == 1 {
			c.ConnectErr = errors.New("server unavailable")
		}
	}}
	s, _, tokens := newTestSubscriber(config.RestartPolicyReconnect, factory)

	ctx, cancel := context.WithCancel(context.Background())
	done := runSubscriber(ctx, s)
	waitConnected(t, s)

	factory.client(0).Drop(errors.New("token expired"))

	require.Eventually(t, func() bool {
		return factory.count() == 3 && s.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, tokens.renewCount(), 2)
	assert.True(t, factory.client(2).Subscribed(testTopic))

	cancel()
	require.NoError(t, <-done)
}

func TestSubscriber_CancelDuringCooldown(t *testing.T) {
	factory := &fakeFactory{}
	s, _, _ := newTestSubscriber(config.RestartPolicyReconnect, factory)
	s.cfg.Cooldown = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := runSubscriber(ctx, s)
	waitConnected(t, s)

	factory.client(0).Drop(errors.New("gone"))
	require.Eventually(t, func() bool { return s.State() == StateRestarting }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateTerminated, s.State())
}

func TestSubscriber_HandleConnectNonZeroCode(t *testing.T) {
	s, _, _ := newTestSubscriber(config.RestartPolicyExit, &fakeFactory{})
	fake := mqtttest.NewFakeClient(nil)

	err := s.handleConnect(context.Background(), fake, 4)
	assert.ErrorIs(t, err, mqtt.ErrConnectionFailed)
	assert.Equal(t, StateRestarting, s.State())
	assert.False(t, fake.Subscribed(testTopic))
}

func TestSubscriber_AccessTokenFailure(t *testing.T) {
	factory := &fakeFactory{}
	s, _, tokens := newTestSubscriber(config.RestartPolicyExit, factory)
	tokens.err = errors.New("no token")

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrRestartRequired)
	assert.Zero(t, factory.count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestSubscriber_SubscribesWithConfiguredQoS(t *testing.T) {
	factory := &fakeFactory{}
	s, _, _ := newTestSubscriber(config.RestartPolicyExit, factory)
	s.cfg.Broker.QoS = 1

	ctx, cancel := context.WithCancel(context.Background())
	done := runSubscriber(ctx, s)
	waitConnected(t, s)

	qos, ok := factory.client(0).SubscribedQoS(testTopic)
	require.True(t, ok)
	assert.Equal(t, byte(1), qos)

	cancel()
	require.NoError(t, <-done)
}

func TestSubscriber_ConnectTimeoutDisconnectsClient(t *testing.T) {
	factory := &fakeFactory{setup: func(_ int, c *mqtttest.FakeClient) { c.ConnectHang = true }}
	s, _, _ := newTestSubscriber(config.RestartPolicyExit, factory)

	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrRestartRequired)
	assert.ErrorIs(t, err, mqtt.ErrConnectionFailed)
	assert.Contains(t, err.Error(), "connect timeout")

	require.Equal(t, 1, factory.count())
	assert.Equal(t, 1, factory.client(0).Disconnects())
	assert.Equal(t, StateTerminated, s.State())
}

// =============================================================================
// Ordering through the paho router
// =============================================================================

// serveScriptedBroker plays the broker side of conn: it accepts the CONNECT,
// acknowledges the SUBSCRIBE, publishes payloads on topic in order, then
// reads until the client hangs up.
func serveScriptedBroker(conn net.Conn, topic string, payloads [][]byte) {
	defer conn.Close()

	pkt, err := packets.ReadPacket(conn)
	if err != nil {
		return
	}
	if _, ok := pkt.(*packets.ConnectPacket); !ok {
		return
	}
	connack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
	connack.ReturnCode = packets.Accepted
	if connack.Write(conn) != nil {
		return
	}

	pkt, err = packets.ReadPacket(conn)
	if err != nil {
		return
	}
	sub, ok := pkt.(*packets.SubscribePacket)
	if !ok {
		return
	}
	suback := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
	suback.MessageID = sub.MessageID
	suback.ReturnCodes = []byte{0}
	if suback.Write(conn) != nil {
		return
	}

	for _, payload := range payloads {
		pub := packets.NewControlPacket(packets.Publish).(*packets.PublishPacket)
		pub.TopicName = topic
		pub.Payload = payload
		if pub.Write(conn) != nil {
			return
		}
	}

	for {
		if _, err := packets.ReadPacket(conn); err != nil {
			return
		}
	}
}

func TestSubscriber_PreservesArrivalOrder(t *testing.T) {
	const total = 300

	payloads := make([][]byte, total)
	for i := range payloads {
		payloads[i] = []byte(fmt.Sprintf(
			`{"event":"DoorSensor.Alert","time":%d,"msgid":"%d","data":{"state":"open"},"deviceId":"d1"}`,
			1772366400000+i, i))
	}

	clientConn, brokerConn := net.Pipe()
	go serveScriptedBroker(brokerConn, "yl-home/home-1/d1/report", payloads)

	q := NewQueue(total, config.OverflowDrop, nil)
	s := NewSubscriber(SubscriberConfig{
		Broker:        config.YoLinkMQTTConfig{Host: "api.yosmart.com", Port: 8003},
		Topic:         testTopic,
		RestartPolicy: config.RestartPolicyExit,
	}, &fakeTokens{token: "access-1"}, q, nil)
	s.factory = func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		opts.SetCustomOpenConnectionFn(func(*url.URL, pahomqtt.ClientOptions) (net.Conn, error) {
			return clientConn, nil
		})
		return pahomqtt.NewClient(opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runSubscriber(ctx, s)

	require.Eventually(t, func() bool { return q.Len() == total }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(total), s.Received())
	assert.Zero(t, q.Dropped())

	for i := 0; i < total; i++ {
		evt, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), evt.MsgID, "event %d out of order", i)
	}

	cancel()
	require.NoError(t, <-done)
}

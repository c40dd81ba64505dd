package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/yolink-bridge/internal/yolink"
)

const (
	// connectWait bounds the wait for CONNACK beyond paho's own timeout.
	connectWait = 15 * time.Second

	// subscribeWait bounds the wait for SUBACK.
	subscribeWait = 10 * time.Second

	// disconnectQuiesce is how long paho may flush in-flight work on Disconnect (ms).
	disconnectQuiesce = 250

	// reconnectMaxElapsed is the total budget for one reconnect cycle.
	reconnectMaxElapsed = 15 * time.Minute

	clientIDPrefix = "yolink-bridge-"
)

// State is the Subscriber's connection state.
type State int

// Subscriber states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateRestarting
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRestarting:
		return "restarting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// TokenSource supplies and renews the vendor access token. *yolink.TokenManager implements it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Renew(ctx context.Context) (yolink.Token, error)
}

// SubscriberConfig configures the vendor MQTT subscription.
type SubscriberConfig struct {
	Broker config.YoLinkMQTTConfig

	// Topic is the resolved subscription topic (home id substituted).
	Topic string

	// RestartPolicy is config.RestartPolicyExit or config.RestartPolicyReconnect.
	RestartPolicy string

	// Cooldown is the wait between a lost connection and the first reconnect.
	Cooldown time.Duration

	// MaxBackoff caps the delay between reconnect attempts.
	MaxBackoff time.Duration
}

// Subscriber holds the vendor MQTT session and feeds parsed events into
// the queue.
//
// The vendor broker authenticates with a bearer token that expires, so
// paho's auto-reconnect is disabled. When the connection ends the restart
// policy decides what happens: exit returns ErrRestartRequired from Run,
// reconnect renews the token and builds a fresh client.
//
// Thread Safety:
//   - State and Malformed are safe for concurrent use.
//   - Run must be called once.
type Subscriber struct {
	cfg     SubscriberConfig
	tokens  TokenSource
	queue   *Queue
	factory mqtt.ClientFactory
	logger  Logger
	newID   func() string

	mu     sync.Mutex
	state  State
	client pahomqtt.Client

	// lost receives connection-lost notifications from paho callbacks.
	lost chan error

	malformed atomic.Uint64
	received  atomic.Uint64
}

// NewSubscriber creates a subscriber. Call Run to connect.
func NewSubscriber(cfg SubscriberConfig, tokens TokenSource, queue *Queue, logger Logger) *Subscriber {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.RestartPolicy == "" {
		cfg.RestartPolicy = config.RestartPolicyExit
	}
	return &Subscriber{
		cfg:     cfg,
		tokens:  tokens,
		queue:   queue,
		factory: pahomqtt.NewClient,
		logger:  logger,
		newID:   func() string { return clientIDPrefix + uuid.NewString() },
		lost:    make(chan error, 1),
	}
}

// State returns the current connection state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Malformed returns how many payloads failed to parse.
func (s *Subscriber) Malformed() uint64 {
	return s.malformed.Load()
}

// Received returns how many messages arrived from the broker.
func (s *Subscriber) Received() uint64 {
	return s.received.Load()
}

func (s *Subscriber) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		s.logger.Debug("subscriber state", "from", prev.String(), "to", state.String())
	}
}

// Run connects, subscribes, and blocks until ctx is cancelled (returns nil)
// or the connection can no longer be maintained (returns an error wrapping
// ErrRestartRequired).
func (s *Subscriber) Run(ctx context.Context) error {
	err := s.connect(ctx)
	for {
		if err == nil {
			select {
			case <-ctx.Done():
				s.disconnect()
				s.setState(StateTerminated)
				s.logger.Info("subscriber stopped")
				return nil
			case err = <-s.lost:
				s.logger.Warn("vendor MQTT connection lost", "error", err)
				s.disconnect()
			}
		}

		if ctx.Err() != nil {
			s.setState(StateTerminated)
			return nil
		}

		s.setState(StateRestarting)
		if s.cfg.RestartPolicy != config.RestartPolicyReconnect {
			s.setState(StateTerminated)
			return fmt.Errorf("%w: %w", ErrRestartRequired, err)
		}

		err = s.reconnect(ctx)
		if err != nil && ctx.Err() == nil {
			s.setState(StateTerminated)
			return fmt.Errorf("%w: reconnect gave up: %w", ErrRestartRequired, err)
		}
	}
}

// reconnect waits out the cooldown, then renews the token and connects with
// exponential backoff until it succeeds, ctx ends, or the budget runs out.
func (s *Subscriber) reconnect(ctx context.Context) error {
	s.logger.Info("reconnecting to vendor MQTT", "cooldown", s.cfg.Cooldown.String())

	timer := time.NewTimer(s.cfg.Cooldown)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
	}

	bo := backoff.NewExponentialBackOff()
	if s.cfg.Cooldown > 0 {
		bo.InitialInterval = s.cfg.Cooldown
	}
	if s.cfg.MaxBackoff > 0 {
		bo.MaxInterval = s.cfg.MaxBackoff
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		if _, err := s.tokens.Renew(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return struct{}{}, backoff.Permanent(err)
			}
			s.logger.Warn("token renewal failed", "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		if err := s.connect(ctx); err != nil {
			s.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(reconnectMaxElapsed))
	return err
}

// connect builds a fresh client with the current access token, waits for
// CONNACK, and hands the result to handleConnect.
func (s *Subscriber) connect(ctx context.Context) error {
	s.setState(StateConnecting)

	// A loss reported by a previous client is stale now.
	select {
	case <-s.lost:
	default:
	}

	accessToken, err := s.tokens.AccessToken(ctx)
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("access token: %w", err)
	}

	clientID := s.newID()
	opts := mqtt.NewVendorOptions(s.cfg.Broker, accessToken, clientID)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		select {
		case s.lost <- err:
		default:
		}
	})

	client := s.factory(opts)
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	s.logger.Info("connecting to vendor MQTT",
		"host", s.cfg.Broker.Host,
		"port", s.cfg.Broker.Port,
		"client_id", clientID)

	token := client.Connect()
	if !token.WaitTimeout(connectWait) {
		client.Disconnect(disconnectQuiesce)
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: connect timeout", mqtt.ErrConnectionFailed)
	}

	var code byte
	if ct, ok := token.(interface{ ReturnCode() byte }); ok {
		code = ct.ReturnCode()
	}
	if err := token.Error(); err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: code %d: %w", mqtt.ErrConnectionFailed, code, err)
	}

	return s.handleConnect(ctx, client, code)
}

// handleConnect subscribes on a successful CONNACK (code 0). Any other
// code moves the subscriber to Restarting.
func (s *Subscriber) handleConnect(ctx context.Context, client pahomqtt.Client, code byte) error {
	if code != 0 {
		s.setState(StateRestarting)
		return fmt.Errorf("%w: broker refused connection with code %d", mqtt.ErrConnectionFailed, code)
	}

	token := client.Subscribe(s.cfg.Topic, byte(s.cfg.Broker.QoS), func(_ pahomqtt.Client, msg pahomqtt.Message) {
		_ = s.handleMessage(ctx, msg.Payload())
	})
	if !token.WaitTimeout(subscribeWait) {
		client.Disconnect(disconnectQuiesce)
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: %s: timeout", mqtt.ErrSubscribeFailed, s.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(disconnectQuiesce)
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: %s: %w", mqtt.ErrSubscribeFailed, s.cfg.Topic, err)
	}

	s.setState(StateConnected)
	s.logger.Info("subscribed to vendor MQTT", "topic", s.cfg.Topic)
	return nil
}

// handleMessage parses payload and pushes the event onto the queue.
// It runs on paho's callback goroutine and never panics out of it.
func (s *Subscriber) handleMessage(ctx context.Context, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in message handler", "panic", r)
			err = fmt.Errorf("%w: panic: %v", ErrMalformedEvent, r)
		}
	}()

	s.received.Add(1)

	evt, err := yolink.ParseEvent(payload)
	if err != nil {
		s.malformed.Add(1)
		s.logger.Warn("dropping malformed event", "error", err, "bytes", len(payload))
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	s.logger.Debug("event received", "device_id", evt.DeviceID, "event", evt.Event)
	return s.queue.Push(ctx, evt)
}

// disconnect closes the current client, if any.
func (s *Subscriber) disconnect() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(disconnectQuiesce)
	}
	s.setState(StateDisconnected)
}

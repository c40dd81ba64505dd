// Package mqtttest provides an in-memory stand-in for a paho MQTT client.
//
// FakeClient satisfies pahomqtt.Client so that code built on paho can be
// exercised without a running broker. Connection outcomes, published
// messages and subscriptions are all observable from the test.
package mqtttest

import (
	"errors"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is a paho token carrying an optional error and CONNACK code.
// Tokens from NewPendingToken never complete.
type Token struct {
	err     error
	code    byte
	done    chan struct{}
	pending bool
}

// NewToken returns a token that has already completed with err.
func NewToken(err error) *Token {
	done := make(chan struct{})
	close(done)
	return &Token{err: err, done: done}
}

// NewConnectToken returns a completed token reporting the given CONNACK code.
func NewConnectToken(code byte, err error) *Token {
	t := NewToken(err)
	t.code = code
	return t
}

// NewPendingToken returns a token that never completes, like a CONNECT
// the broker never answers.
func NewPendingToken() *Token {
	return &Token{done: make(chan struct{}), pending: true}
}

// Wait implements pahomqtt.Token.
func (t *Token) Wait() bool { return !t.pending }

// WaitTimeout implements pahomqtt.Token. A pending token reports a timeout
// immediately.
func (t *Token) WaitTimeout(time.Duration) bool { return !t.pending }

// Done implements pahomqtt.Token.
func (t *Token) Done() <-chan struct{} { return t.done }

// Error implements pahomqtt.Token.
func (t *Token) Error() error { return t.err }

// ReturnCode mirrors pahomqtt.ConnectToken.
func (t *Token) ReturnCode() byte { return t.code }

// Message is a minimal pahomqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	QoS       byte
	Retain    bool
}

func (m Message) Duplicate() bool   { return false }
func (m Message) Qos() byte         { return m.QoS }
func (m Message) Retained() bool    { return m.Retain }
func (m Message) Topic() string     { return m.TopicName }
func (m Message) MessageID() uint16 { return 0 }
func (m Message) Payload() []byte   { return m.Body }
func (m Message) Ack()              {}

// Published records one call to Publish.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient is a pahomqtt.Client whose broker lives in memory.
//
// Set ConnectCode/ConnectErr before Connect to simulate a refused CONNACK,
// ConnectHang for a CONNACK that never arrives, and PublishErr/SubscribeErr
// to fail those operations.
type FakeClient struct {
	mu sync.Mutex

	Options *pahomqtt.ClientOptions

	ConnectCode  byte
	ConnectErr   error
	ConnectHang  bool
	PublishErr   error
	SubscribeErr error

	connected     bool
	connects      int
	disconnects   int
	published     []Published
	subscriptions map[string]pahomqtt.MessageHandler
	qos           map[string]byte
}

// NewFakeClient builds a fake bound to opts. The options' OnConnect and
// OnConnectionLost handlers are honoured.
func NewFakeClient(opts *pahomqtt.ClientOptions) *FakeClient {
	return &FakeClient{
		Options:       opts,
		subscriptions: make(map[string]pahomqtt.MessageHandler),
		qos:           make(map[string]byte),
	}
}

// IsConnected implements pahomqtt.Client.
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// IsConnectionOpen implements pahomqtt.Client.
func (f *FakeClient) IsConnectionOpen() bool { return f.IsConnected() }

// Connect implements pahomqtt.Client. On success the OnConnect handler from
// the options is invoked asynchronously, the way paho does it.
func (f *FakeClient) Connect() pahomqtt.Token {
	f.mu.Lock()
	f.connects++
	if f.ConnectHang {
		f.mu.Unlock()
		return NewPendingToken()
	}
	code, err := f.ConnectCode, f.ConnectErr
	if err == nil && code != 0 {
		err = errors.New("mqtttest: connection refused")
	}
	f.connected = err == nil
	f.mu.Unlock()

	if err == nil && f.Options != nil && f.Options.OnConnect != nil {
		go f.Options.OnConnect(f)
	}
	return NewConnectToken(code, err)
}

// Disconnect implements pahomqtt.Client.
func (f *FakeClient) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.disconnects++
	f.mu.Unlock()
}

// Publish implements pahomqtt.Client.
func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return NewToken(f.PublishErr)
	}
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = append([]byte(nil), p...)
	case string:
		body = []byte(p)
	}
	f.published = append(f.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: body})
	return NewToken(nil)
}

// Subscribe implements pahomqtt.Client.
func (f *FakeClient) Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return NewToken(f.SubscribeErr)
	}
	f.subscriptions[topic] = callback
	f.qos[topic] = qos
	return NewToken(nil)
}

// SubscribeMultiple implements pahomqtt.Client.
func (f *FakeClient) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	for topic, qos := range filters {
		if tok := f.Subscribe(topic, qos, callback); tok.Error() != nil {
			return tok
		}
	}
	return NewToken(nil)
}

// Unsubscribe implements pahomqtt.Client.
func (f *FakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		delete(f.subscriptions, topic)
	}
	return NewToken(nil)
}

// AddRoute implements pahomqtt.Client.
func (f *FakeClient) AddRoute(topic string, callback pahomqtt.MessageHandler) {
	f.mu.Lock()
	f.subscriptions[topic] = callback
	f.mu.Unlock()
}

// OptionsReader implements pahomqtt.Client.
func (f *FakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

// Deliver hands payload to the handler subscribed on topic.
// It reports false when nothing is subscribed there.
func (f *FakeClient) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	handler, ok := f.subscriptions[topic]
	f.mu.Unlock()
	if !ok || handler == nil {
		return false
	}
	handler(f, Message{TopicName: topic, Body: payload})
	return true
}

// Drop simulates a lost connection, invoking the ConnectionLost handler.
func (f *FakeClient) Drop(err error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	if f.Options != nil && f.Options.OnConnectionLost != nil {
		f.Options.OnConnectionLost(f, err)
	}
}

// Published returns a copy of everything published so far.
func (f *FakeClient) Published() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Published(nil), f.published...)
}

// SubscribedQoS returns the QoS requested for topic.
func (f *FakeClient) SubscribedQoS(topic string) (byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	qos, ok := f.qos[topic]
	return qos, ok
}

// Subscribed reports whether a handler is registered for topic.
func (f *FakeClient) Subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subscriptions[topic]
	return ok
}

// Connects returns how many times Connect was called.
func (f *FakeClient) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Disconnects returns how many times Disconnect was called.
func (f *FakeClient) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

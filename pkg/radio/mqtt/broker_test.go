package mqtt

import (
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeBroker delivers publishes to matching subscriptions synchronously.
type fakeBroker struct {
	lock     sync.Mutex
	subs     map[*fakeClient]map[string]paho.MessageHandler
	retained map[string][]byte
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		subs:     make(map[*fakeClient]map[string]paho.MessageHandler),
		retained: make(map[string][]byte),
	}
}

func (b *fakeBroker) client() *fakeClient {
	return &fakeClient{broker: b}
}

func (b *fakeBroker) publish(topic string, payload []byte, retained bool) {
	type target struct {
		c *fakeClient
		h paho.MessageHandler
	}
	var targets []target
	b.lock.Lock()
	if retained {
		if len(payload) == 0 {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = payload
		}
	}
	for c, filters := range b.subs {
		for filter, h := range filters {
			if MatchTopic(topic, filter) {
				targets = append(targets, target{c, h})
			}
		}
	}
	b.lock.Unlock()
	for _, t := range targets {
		t.h(t.c, &fakeMessage{topic: topic, payload: payload})
	}
}

type fakeClient struct {
	broker    *fakeBroker
	published []string
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() paho.Token    { return &paho.DummyToken{} }
func (c *fakeClient) Disconnect(uint)        {}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.broker.lock.Lock()
	c.published = append(c.published, topic)
	c.broker.lock.Unlock()
	c.broker.publish(topic, payload.([]byte), retained)
	return &paho.DummyToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	return c.SubscribeMultiple(map[string]byte{topic: qos}, callback)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	b := c.broker
	var retained []*fakeMessage
	b.lock.Lock()
	if b.subs[c] == nil {
		b.subs[c] = make(map[string]paho.MessageHandler)
	}
	for filter := range filters {
		b.subs[c][filter] = callback
		for topic, payload := range b.retained {
			if MatchTopic(topic, filter) {
				retained = append(retained, &fakeMessage{topic: topic, payload: payload})
			}
		}
	}
	b.lock.Unlock()
	for _, msg := range retained {
		callback(c, msg)
	}
	return &paho.DummyToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.broker.lock.Lock()
	for _, topic := range topics {
		delete(c.broker.subs[c], topic)
	}
	c.broker.lock.Unlock()
	return &paho.DummyToken{}
}

func (c *fakeClient) AddRoute(string, paho.MessageHandler) {}

func (c *fakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

func (c *fakeClient) subscribed() []string {
	c.broker.lock.Lock()
	defer c.broker.lock.Unlock()
	var filters []string
	for filter := range c.broker.subs[c] {
		filters = append(filters, filter)
	}
	return filters
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

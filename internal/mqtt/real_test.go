package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/cadence-clicker/internal/engine"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakePaho implements the subset of paho.Client used by RealClient.
// Calling any other method panics via the nil embedded interface.
type fakePaho struct {
	paho.Client

	mu           sync.Mutex
	open         bool
	publishErr   error
	published    []message
	subscribed   map[string]paho.MessageHandler
	disconnected bool
}

func newFakePaho(open bool) *fakePaho {
	return &fakePaho{open: open, subscribed: map[string]paho.MessageHandler{}}
}

func (f *fakePaho) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakePaho) setOpen(open bool) {
	f.mu.Lock()
	f.open = open
	f.mu.Unlock()
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return &fakeToken{err: f.publishErr}
	}
	f.published = append(f.published, message{topic: topic, payload: payload.([]byte), qos: qos, retained: retained})
	return &fakeToken{}
}

func (f *fakePaho) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic] = cb
	return &fakeToken{}
}

func (f *fakePaho) Disconnect(quiesce uint) {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
}

type fakeMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

var testTopics = NewTopics("cc")

func TestRealClientPublishesWhenConnected(t *testing.T) {
	fp := newFakePaho(true)
	c := newClientWith(fp, testTopics, nil)

	if err := c.Publish(ChannelEvent{Type: EventPrimaryOn, Primary: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fp.published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(fp.published))
	}
	ev, sys := fp.published[0], fp.published[1]
	if ev.topic != "cc/events" || ev.qos != 0 || ev.retained {
		t.Errorf("unexpected event publish: %+v", ev)
	}
	if sys.topic != "cc/system" || sys.qos != 1 || !sys.retained {
		t.Errorf("unexpected system publish: %+v", sys)
	}
	if !c.IsConnected() {
		t.Error("expected connected")
	}
}

func TestRealClientBuffersWhileDisconnected(t *testing.T) {
	fp := newFakePaho(false)
	c := newClientWith(fp, testTopics, nil)

	c.Publish(ChannelEvent{Type: EventPrimaryOn})
	c.Publish(ChannelEvent{Type: EventPrimaryOff})
	if len(fp.published) != 0 {
		t.Fatalf("expected nothing sent while disconnected, got %d", len(fp.published))
	}
	if c.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", c.Pending())
	}

	fp.setOpen(true)
	c.onConnect()

	if c.Pending() != 0 {
		t.Errorf("expected outbox drained, got %d", c.Pending())
	}
	if len(fp.published) != 2 {
		t.Fatalf("expected 2 replayed messages, got %d", len(fp.published))
	}
	if !strings.Contains(string(fp.published[0].payload), "PRIMARY_ON") ||
		!strings.Contains(string(fp.published[1].payload), "PRIMARY_OFF") {
		t.Error("expected replay in publish order")
	}
}

func TestRealClientAnnouncesReconnect(t *testing.T) {
	fp := newFakePaho(true)
	c := newClientWith(fp, testTopics, nil)

	c.onConnect()
	if len(fp.published) != 0 {
		t.Fatalf("first connect should publish nothing, got %d", len(fp.published))
	}

	c.onConnect()
	if len(fp.published) != 1 {
		t.Fatalf("expected RECONNECTED, got %d messages", len(fp.published))
	}
	if !strings.Contains(string(fp.published[0].payload), `"event":"RECONNECTED"`) {
		t.Errorf("unexpected payload %s", fp.published[0].payload)
	}
}

func TestRealClientSubscribesAndDispatches(t *testing.T) {
	fp := newFakePaho(true)
	h := &recordingHandler{}
	c := newClientWith(fp, testTopics, h)

	c.onConnect()

	cb, ok := fp.subscribed["cc/command"]
	if !ok {
		t.Fatal("expected subscription to command topic")
	}
	if _, ok := fp.subscribed["cc/config"]; !ok {
		t.Fatal("expected subscription to config topic")
	}
	if _, ok := fp.subscribed["cc/listener"]; !ok {
		t.Fatal("expected subscription to listener topic")
	}

	cb(fp, fakeMessage{topic: "cc/command", payload: []byte("ENABLE_SECONDARY")})
	cb(fp, fakeMessage{topic: "cc/command", payload: []byte("garbage")})
	if len(h.commands) != 1 || h.commands[0] != engine.Enable(engine.Secondary) {
		t.Errorf("unexpected commands: %v", h.commands)
	}
}

func TestRealClientNoSubscriptionsWithoutHandler(t *testing.T) {
	fp := newFakePaho(true)
	c := newClientWith(fp, testTopics, nil)
	c.onConnect()
	if len(fp.subscribed) != 0 {
		t.Errorf("expected no subscriptions, got %d", len(fp.subscribed))
	}
}

func TestRealClientPublishError(t *testing.T) {
	fp := newFakePaho(true)
	fp.publishErr = errors.New("not authorized")
	c := newClientWith(fp, testTopics, nil)

	if err := c.Publish(ChannelEvent{Type: EventPrimaryOn}); err == nil {
		t.Error("expected publish error")
	}
}

func TestRealClientClose(t *testing.T) {
	fp := newFakePaho(true)
	c := newClientWith(fp, testTopics, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fp.disconnected {
		t.Error("expected disconnect")
	}
}

package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	payload interface{}
}

type fakeClient struct {
	subscribed   []string
	published    []published
	subscribeErr error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.published = append(c.published, published{topic, payload})
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.subscribed = append(c.subscribed, topic)
	return doneToken{err: c.subscribeErr}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestBus_Subscribes(t *testing.T) {
	c := &fakeClient{}
	if _, err := newBus(c, "site1", nil); err != nil {
		t.Fatal(err)
	}
	want := []string{"site1/sync/start", "site1/sync/endfile/+"}
	if len(c.subscribed) != 2 || c.subscribed[0] != want[0] || c.subscribed[1] != want[1] {
		t.Errorf("subscribed = %v, want %v", c.subscribed, want)
	}
}

func TestBus_SubscribeError(t *testing.T) {
	c := &fakeClient{subscribeErr: errors.New("denied")}
	if _, err := newBus(c, "site1", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestBus_Publish(t *testing.T) {
	c := &fakeClient{}
	b, err := newBus(c, "site1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SendEndFile(4); err != nil {
		t.Fatal(err)
	}
	if err := b.SendStart(); err != nil {
		t.Fatal(err)
	}
	if len(c.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(c.published))
	}
	if c.published[0].topic != "site1/sync/endfile/4" || c.published[0].payload != "4" {
		t.Errorf("end file = %+v", c.published[0])
	}
	if c.published[1].topic != "site1/sync/start" {
		t.Errorf("start topic = %s", c.published[1].topic)
	}

	b.Close()
	if !c.disconnected {
		t.Error("Close did not disconnect")
	}
}

func TestBus_WaitStart(t *testing.T) {
	b, err := newBus(&fakeClient{}, "site1", nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.WaitStart(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitStart() = %v, want deadline exceeded", err)
	}

	b.deliver("site1/sync/start", nil)
	b.deliver("site1/sync/start", nil)
	if err := b.WaitStart(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	if err := b.WaitStart(ctx2); err == nil {
		t.Error("repeated start signals were queued")
	}
}

func TestBus_EndFiles(t *testing.T) {
	b, err := newBus(&fakeClient{}, "site1", nil)
	if err != nil {
		t.Fatal(err)
	}
	b.deliver("site1/sync/endfile/3", []byte("3"))
	b.deliver("site1/sync/endfile/3", []byte("3"))
	b.deliver("site1/sync/endfile/x", nil)
	b.deliver("other/sync/endfile/3", nil)

	if got := b.EndFiles(3); got != 2 {
		t.Errorf("EndFiles(3) = %d, want 2", got)
	}
}

func TestClientOptionsFromURL(t *testing.T) {
	tests := []struct {
		url        string
		wantBroker string
		wantPrefix string
		wantClient string
	}{
		{"mqtt://broker:1883", "tcp://broker:1883", DefaultPrefix, ""},
		{"mqtt://u:p@broker:1883/site1?client-id=logger7", "tcp://broker:1883", "site1", "logger7"},
		{"ssl://broker:8883/a/b/", "ssl://broker:8883", "a/b", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			opts, prefix, err := ClientOptionsFromURL(tt.url)
			if err != nil {
				t.Fatal(err)
			}
			if prefix != tt.wantPrefix {
				t.Errorf("prefix = %s, want %s", prefix, tt.wantPrefix)
			}
			if len(opts.Servers) != 1 || opts.Servers[0].String() != tt.wantBroker {
				t.Errorf("servers = %v, want %s", opts.Servers, tt.wantBroker)
			}
			if opts.ClientID != tt.wantClient {
				t.Errorf("client id = %q, want %q", opts.ClientID, tt.wantClient)
			}
		})
	}
}

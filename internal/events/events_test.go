package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/grapio/internal/model"
)

func TestDiscard(t *testing.T) {
	var pub Publisher = Discard{}
	if err := pub.Publish(context.Background(), TopicFlagSet, FlagSet{}); err != nil {
		t.Fatalf("Discard.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Discard.Close returned unexpected error: %v", err)
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicFlagSet, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := FlagSet{Flag: model.NewFeatureFlag("dark-mode", "true", ""), At: time.Now().UTC()}
	if err := pub.Publish(context.Background(), TopicFlagSet, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got FlagSet
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Flag.Key != "dark-mode" || got.Flag.Consumer != "*" {
			t.Errorf("got flag %+v", got.Flag)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_PublishCanceledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicFlagSet, FlagSet{}); err == nil {
		t.Fatal("expected error publishing with a canceled context")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	err = pub.Publish(context.Background(), TopicFlagUnset, FlagUnset{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestMessage_Decode(t *testing.T) {
	for _, tc := range []struct {
		name  string
		msg   Message
		check func(t *testing.T, ev any)
	}{
		{
			name: "set",
			msg:  Message{Topic: TopicFlagSet, Data: []byte(`{"flag":{"key":"k","consumer":"svc","value":"1"}}`)},
			check: func(t *testing.T, ev any) {
				fs, ok := ev.(*FlagSet)
				if !ok || fs.Flag.Consumer != "svc" {
					t.Fatalf("unexpected event %#v", ev)
				}
			},
		},
		{
			name: "unset",
			msg:  Message{Topic: TopicFlagUnset, Data: []byte(`{"key":"k","consumer":"*","removed":true}`)},
			check: func(t *testing.T, ev any) {
				fu, ok := ev.(*FlagUnset)
				if !ok || !fu.Removed {
					t.Fatalf("unexpected event %#v", ev)
				}
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := tc.msg.Decode()
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			tc.check(t, ev)
		})
	}
}

func TestMessage_DecodeErrors(t *testing.T) {
	if _, err := (Message{Topic: "grapio.other"}).Decode(); err == nil {
		t.Error("expected error for unknown topic")
	}
	if _, err := (Message{Topic: TopicFlagSet, Data: []byte("{")}).Decode(); err == nil {
		t.Error("expected error for malformed payload")
	}
}

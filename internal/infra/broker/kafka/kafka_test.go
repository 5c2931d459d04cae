package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestPublishSendsKeyAndHeaders(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "rl.booking.events.v1" {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != "b-1" {
			return fmt.Errorf("unexpected key %q", key)
		}
		found := false
		for _, h := range msg.Headers {
			if string(h.Key) == "ce_id" && string(h.Value) == "ev-1" {
				found = true
			}
		}
		if !found {
			return errors.New("ce_id header missing")
		}
		return nil
	})
	p := &Producer{sync: sync}
	defer p.Close()

	err := p.Publish(context.Background(), "rl.booking.events.v1", "b-1", []byte(`{}`), map[string]string{"ce_id": "ev-1"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublishReportsBrokerFailure(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	p := &Producer{sync: sync}
	defer p.Close()

	err := p.Publish(context.Background(), "t", "k", nil, nil)
	if !errors.Is(err, sarama.ErrNotLeaderForPartition) {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	p := &Producer{sync: mocks.NewSyncProducer(t, nil)}
	defer p.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, "t", "k", nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestHeader(t *testing.T) {
	msg := &sarama.ConsumerMessage{Headers: []*sarama.RecordHeader{
		nil,
		{Key: []byte("ce_type"), Value: []byte("channel.booking.created")},
	}}
	if got := Header(msg, "ce_type"); got != "channel.booking.created" {
		t.Fatalf("unexpected header %q", got)
	}
	if got := Header(msg, "ce_id"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	appoutbox "roomledger/internal/app/outbox"
	"roomledger/internal/app/uow"
	infraoutbox "roomledger/internal/infra/outbox"
	"roomledger/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	mu       sync.Mutex
	failures int
	sent     []published
	notify   chan struct{}
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload, headers: headers})
	if p.notify != nil {
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
	return nil
}

func (p *fakeProducer) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.sent...)
}

func commitRecords(t *testing.T, store *memory.Store, records ...appoutbox.EventRecord) {
	t.Helper()
	ctx := context.Background()
	unit, err := store.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, rec := range records {
		if err := unit.Outbox().Add(ctx, rec); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func record(id, name, aggregate string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"booking_id":"` + aggregate + `"}`),
		OccurredAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		Aggregate:  aggregate,
		Headers:    map[string]string{},
	}
}

func TestProcessOnceRelaysCloudEvents(t *testing.T) {
	store := memory.NewStore()
	commitRecords(t, store,
		record("ev-1", "booking.reserved", "b-1"),
		record("ev-2", "inventory.changed", "rt-1"),
	)
	producer := &fakeProducer{}
	w := &infraoutbox.Worker{Store: store.Outbox(), Producer: producer, TopicPrefix: "rl.", Source: "app://test"}

	sent, err := w.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if sent != 2 {
		t.Fatalf("expected 2 sent, got %d", sent)
	}
	msgs := producer.messages()
	wantTopics := []string{"rl.booking.events.v1", "rl.inventory.events.v1"}
	for i, m := range msgs {
		if m.topic != wantTopics[i] {
			t.Fatalf("message %d: expected topic %s, got %s", i, wantTopics[i], m.topic)
		}
	}
	first := msgs[0]
	if first.key != "b-1" || first.headers["ce_id"] != "ev-1" || first.headers["ce_type"] != "booking.reserved.v1" {
		t.Fatalf("unexpected key or headers: %s %v", first.key, first.headers)
	}
	var envelope struct {
		SpecVersion string         `json:"specversion"`
		ID          string         `json:"id"`
		Type        string         `json:"type"`
		Source      string         `json:"source"`
		Subject     string         `json:"subject"`
		Data        map[string]any `json:"data"`
	}
	if err := json.Unmarshal(first.payload, &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.SpecVersion != "1.0" || envelope.Source != "app://test" || envelope.Subject != "b-1" {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if envelope.Data["booking_id"] != "b-1" {
		t.Fatalf("unexpected data %v", envelope.Data)
	}
	if pending := store.Outbox().Pending(); len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %d", len(pending))
	}
}

func TestProcessOnceRetriesFailedPublish(t *testing.T) {
	store := memory.NewStore()
	commitRecords(t, store, record("ev-1", "booking.cancelled", "b-1"))
	producer := &fakeProducer{failures: 1}
	w := &infraoutbox.Worker{Store: store.Outbox(), Producer: producer, Backoff: []time.Duration{0}}
	ctx := context.Background()

	sent, err := w.ProcessOnce(ctx)
	if err != nil || sent != 0 {
		t.Fatalf("first pass: sent %d, err %v", sent, err)
	}
	if pending := store.Outbox().Pending(); len(pending) != 1 {
		t.Fatalf("failed record must stay pending, got %d", len(pending))
	}
	sent, err = w.ProcessOnce(ctx)
	if err != nil || sent != 1 {
		t.Fatalf("second pass: sent %d, err %v", sent, err)
	}
}

func TestRolledBackRecordsAreNeverRelayed(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	unit, err := store.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := unit.Outbox().Add(ctx, record("ev-1", "booking.reserved", "b-1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := unit.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if pending := store.Outbox().Pending(); len(pending) != 0 {
		t.Fatalf("expected no records, got %d", len(pending))
	}
}

func TestFlushWakesRunningWorker(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeProducer{notify: make(chan struct{}, 1)}
	w := &infraoutbox.Worker{Store: store.Outbox(), Producer: producer, Interval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	commitRecords(t, store, record("ev-1", "booking.confirmed", "b-1"))
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	select {
	case <-producer.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not trigger a relay")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestRunRequiresDependencies(t *testing.T) {
	w := &infraoutbox.Worker{}
	if err := w.Run(context.Background()); !errors.Is(err, infraoutbox.ErrWorkerNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

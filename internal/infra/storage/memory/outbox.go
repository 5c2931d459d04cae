package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "roomledger/internal/app/outbox"
	infraoutbox "roomledger/internal/infra/outbox"
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	attempts  int
	sent      bool
	claimed   bool
	nextTry   time.Time
	lastError string
}

// Outbox keeps committed event records until the relay marks them sent.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
	byID    map[string]*outboxEntry
}

func NewOutbox() *Outbox {
	return &Outbox{byID: make(map[string]*outboxEntry)}
}

func (o *Outbox) append(records []appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range records {
		e := &outboxEntry{record: rec}
		o.entries = append(o.entries, e)
		o.byID[rec.ID] = e
	}
}

func (o *Outbox) Claim(ctx context.Context, workerID string, limit int) ([]infraoutbox.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	var out []infraoutbox.Record
	for _, e := range o.entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		if e.sent || e.claimed || now.Before(e.nextTry) {
			continue
		}
		e.claimed = true
		out = append(out, infraoutbox.Record{EventRecord: e.record, Attempts: e.attempts})
	}
	return out, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.byID[id]; ok {
		e.sent = true
		e.claimed = false
	}
	o.compact()
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.byID[id]; ok {
		e.claimed = false
		e.attempts++
		e.nextTry = next
		e.lastError = errMsg
	}
	return nil
}

// Pending returns records not yet relayed, oldest first.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []appoutbox.EventRecord
	for _, e := range o.entries {
		if !e.sent {
			out = append(out, e.record)
		}
	}
	return out
}

func (o *Outbox) compact() {
	kept := o.entries[:0]
	for _, e := range o.entries {
		if e.sent {
			delete(o.byID, e.record.ID)
			continue
		}
		kept = append(kept, e)
	}
	o.entries = kept
}

var _ infraoutbox.Store = (*Outbox)(nil)

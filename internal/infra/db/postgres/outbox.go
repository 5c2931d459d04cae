package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "roomledger/internal/app/outbox"
	infraoutbox "roomledger/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"

	// Claims older than this are considered abandoned by a crashed worker.
	claimTimeout = time.Minute
)

// OutboxStore writes event records in the caller's transaction and serves
// them to the relay worker.
type OutboxStore struct {
	db dbtx
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{db: pool}
}

func (s *OutboxStore) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	const stmt = `
INSERT INTO outbox_events (id, name, aggregate, payload, headers, occurred_at, state)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	headers := rec.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := conn(ctx, s.db).Exec(ctx, stmt, rec.ID, rec.Name, rec.Aggregate, rec.Payload, headers, rec.OccurredAt, stateNew)
	return mapError("add outbox event", err)
}

// Claim takes up to limit due records, skipping rows other workers hold.
func (s *OutboxStore) Claim(ctx context.Context, workerID string, limit int) ([]infraoutbox.Record, error) {
	const stmt = `
UPDATE outbox_events SET state = $1, claimed_by = $2, claimed_at = NOW()
WHERE id IN (
	SELECT id FROM outbox_events
	WHERE (state IN ($3, $4) AND next_attempt_at <= NOW())
	   OR (state = $1 AND claimed_at < $5)
	ORDER BY created_at
	LIMIT $6
	FOR UPDATE SKIP LOCKED
)
RETURNING id, name, aggregate, payload, headers, occurred_at, attempts`
	rows, err := conn(ctx, s.db).Query(ctx, stmt, stateClaimed, workerID, stateNew, stateFailed, time.Now().Add(-claimTimeout), limit)
	if err != nil {
		return nil, mapError("claim outbox events", err)
	}
	defer rows.Close()
	var out []infraoutbox.Record
	for rows.Next() {
		var rec infraoutbox.Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Aggregate, &rec.Payload, &rec.Headers, &rec.OccurredAt, &rec.Attempts); err != nil {
			return nil, mapError("claim outbox events", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("claim outbox events", err)
	}
	sortRecords(out)
	return out, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := conn(ctx, s.db).Exec(ctx, `UPDATE outbox_events SET state = $2, sent_at = NOW() WHERE id = $1`, id, stateSent)
	return mapError("mark outbox event sent", err)
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	const stmt = `
UPDATE outbox_events
SET state = $2, next_attempt_at = $3, last_error = $4, attempts = attempts + 1
WHERE id = $1`
	_, err := conn(ctx, s.db).Exec(ctx, stmt, id, stateFailed, next, errMsg)
	return mapError("mark outbox event failed", err)
}

// RETURNING does not preserve the subquery order.
func sortRecords(recs []infraoutbox.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].OccurredAt.Before(recs[j].OccurredAt)
	})
}

var (
	_ appoutbox.Outbox  = (*OutboxStore)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)

package postgres

import (
	"context"
	"fmt"

	"github.com/rogerbap/gaminglibrary/internal/domain"
)

type outboxRepo struct {
	db   DBTX
	inTx bool
}

// Insert writes an outbox event using the camelCase column names shared with
// the consumers.
func (r *outboxRepo) Insert(ctx context.Context, draft domain.OutboxDraft) error {
	headers := draft.Headers
	if len(headers) == 0 {
		headers = []byte(`{}`)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_outbox
		  ("eventId", "aggregateType", "aggregateId", "eventType", "partitionKey", "headers", "payload", "occurredAt")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		draft.EventID,
		string(draft.AggregateType),
		draft.AggregateID,
		string(draft.EventType),
		draft.PartitionKey,
		[]byte(headers),
		[]byte(draft.Payload),
		draft.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchUnpublished claims the oldest pending rows. Inside a transaction the
// rows are locked with SKIP LOCKED so concurrent dispatchers split the work.
func (r *outboxRepo) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxDraft, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT "id", "eventId", "aggregateType", "aggregateId", "eventType",
		       "partitionKey", "headers", "payload", "occurredAt"
		FROM event_outbox
		ORDER BY "id" ASC
		LIMIT $1`
	if r.inTx {
		query += ` FOR UPDATE SKIP LOCKED`
	}
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxDraft
	for rows.Next() {
		var d domain.OutboxDraft
		var aggType, evType string
		var headers, payload []byte
		err := rows.Scan(&d.SeqID, &d.EventID, &aggType, &d.AggregateID,
			&evType, &d.PartitionKey, &headers, &payload, &d.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		d.AggregateType = domain.AggregateType(aggType)
		d.EventType = domain.EventType(evType)
		d.Headers = headers
		d.Payload = payload
		d.OccurredAt = d.OccurredAt.UTC()
		events = append(events, d)
	}
	return events, rows.Err()
}

func (r *outboxRepo) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM event_outbox WHERE "id" = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

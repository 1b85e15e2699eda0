package outbox

import (
	"context"
	"database/sql"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

type postgresRepository struct{ db *database.DB }

func NewPostgresRepository(db *database.DB) Repository { return &postgresRepository{db: db} }

func (r *postgresRepository) Insert(ctx context.Context, msg Message) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO outbox_messages (id, type, payload, occurred_at, retry_count, processed_at)
		VALUES ($1, $2, $3, $4, $5, NULL)`,
		msg.ID, msg.Type, []byte(msg.Payload), msg.OccurredAt, msg.RetryCount)
	return err
}

func (r *postgresRepository) PendingBatch(ctx context.Context, maxRetry, batchSize int) ([]Message, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `
		SELECT id, type, payload, occurred_at, retry_count, processed_at
		FROM outbox_messages
		WHERE processed_at IS NULL AND retry_count < $1
		ORDER BY occurred_at ASC
		LIMIT $2`, maxRetry, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Message
	for rows.Next() {
		var msg Message
		var payload []byte
		var processedAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.Type, &payload, &msg.OccurredAt, &msg.RetryCount, &processedAt); err != nil {
			return nil, err
		}
		msg.Payload = payload
		if processedAt.Valid {
			t := processedAt.Time
			msg.ProcessedAt = &t
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *postgresRepository) Save(ctx context.Context, msg Message) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE outbox_messages
		SET retry_count = $2, processed_at = COALESCE($3, processed_at)
		WHERE id = $1`,
		msg.ID, msg.RetryCount, msg.ProcessedAt)
	return err
}

// Package chatrepo persists chat threads and messages.
package chatrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/meal-insight/internal/domain/chat"
)

// PostgresRepository implements chat.ThreadRepository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateOrGet upserts the thread keyed on (analysis_id, user_id). The insert
// races safely: ON CONFLICT DO NOTHING followed by a read converges all
// concurrent callers on the same row.
func (r *PostgresRepository) CreateOrGet(ctx context.Context, analysisID uuid.UUID, userID int64) (chat.Thread, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_threads (id, analysis_id, user_id, message_count, updated_at)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (analysis_id, user_id) DO NOTHING
	`, uuid.New(), analysisID, userID, time.Now().UTC())
	if err != nil {
		return chat.Thread{}, err
	}

	var thread chat.Thread
	err = r.pool.QueryRow(ctx, `
		SELECT id, analysis_id, user_id, message_count, updated_at
		FROM chat_threads
		WHERE analysis_id = $1 AND user_id = $2
	`, analysisID, userID).Scan(
		&thread.ID, &thread.AnalysisID, &thread.UserID,
		&thread.MessageCount, &thread.UpdatedAt,
	)
	if err != nil {
		return chat.Thread{}, err
	}
	return thread, nil
}

// ReserveTurn advances the turn counter while it is below limit. The guarded
// UPDATE is the whole point: two concurrent turns on a thread one short of
// the cap cannot both succeed.
func (r *PostgresRepository) ReserveTurn(ctx context.Context, threadID uuid.UUID, limit int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chat_threads
		SET message_count = message_count + 1, updated_at = now()
		WHERE id = $1 AND message_count < $2
	`, threadID, limit)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AppendMessage inserts one message row.
func (r *PostgresRepository) AppendMessage(ctx context.Context, msg chat.Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, thread_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.ThreadID, string(msg.Role), msg.Content, msg.CreatedAt)
	return err
}

// ListMessages returns a thread's messages oldest first.
func (r *PostgresRepository) ListMessages(ctx context.Context, threadID uuid.UUID) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, thread_id, role, content, created_at
		FROM chat_messages
		WHERE thread_id = $1
		ORDER BY created_at ASC, id ASC
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var (
			msg  chat.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = chat.Role(role)
		out = append(out, msg)
	}
	return out, rows.Err()
}

var _ chat.ThreadRepository = (*PostgresRepository)(nil)

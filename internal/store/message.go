package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/db"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

const messageColumns = `id, conversation_id, role, content, created_at`

type messageStore struct {
	conn db.DBTX
}

func newMessageStore(conn db.DBTX) MessageStore {
	return &messageStore{conn: conn}
}

// Create stamps created_at with clock_timestamp() so messages written in one
// transaction still order by creation.
func (s *messageStore) Create(ctx context.Context, msg *model.Message) error {
	row := s.conn.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, clock_timestamp())
		RETURNING `+messageColumns,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
	)
	created, err := scanMessage(row)
	if err != nil {
		return err
	}
	*msg = *created
	return nil
}

func (s *messageStore) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (s *messageStore) ListRecent(ctx context.Context, conversationID int64, limit int32) ([]model.Message, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(result)
	return result, nil
}

func (s *messageStore) List(ctx context.Context, conversationID int64, limit, offset int32) ([]model.Message, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT m.id, m.conversation_id, m.role, m.content, m.created_at,
		       f.id, f.original_text, f.corrected_text, f.has_errors, f.errors, f.created_at
		FROM messages m
		LEFT JOIN grammar_feedback f ON f.message_id = m.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC, m.id ASC
		LIMIT $2 OFFSET $3`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.Message, 0)
	for rows.Next() {
		var (
			msg        model.Message
			role       string
			fbID       *int64
			original   *string
			corrected  *string
			hasErrors  *bool
			errorsJSON []byte
			fbCreated  *time.Time
		)
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt,
			&fbID, &original, &corrected, &hasErrors, &errorsJSON, &fbCreated,
		); err != nil {
			return nil, err
		}
		msg.Role = model.MessageRole(role)

		if fbID != nil {
			fbErrors, err := decodeGrammarErrors(errorsJSON)
			if err != nil {
				return nil, fmt.Errorf("decoding feedback %d: %w", *fbID, err)
			}
			msg.GrammarFeedback = &model.GrammarFeedback{
				ID:            *fbID,
				MessageID:     msg.ID,
				OriginalText:  deref(original),
				CorrectedText: deref(corrected),
				HasErrors:     hasErrors != nil && *hasErrors,
				Errors:        fbErrors,
				CreatedAt:     derefTime(fbCreated),
			}
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (s *messageStore) LatestBefore(ctx context.Context, messageID int64, role model.MessageRole) (*model.Message, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT p.id, p.conversation_id, p.role, p.content, p.created_at
		FROM messages p
		JOIN messages m ON m.id = $1 AND p.conversation_id = m.conversation_id
		WHERE p.role = $2 AND (p.created_at, p.id) < (m.created_at, m.id)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT 1`, messageID, string(role))
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (s *messageStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var (
		msg  model.Message
		role string
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.Role = model.MessageRole(role)
	return &msg, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

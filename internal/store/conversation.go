package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/db"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

const conversationColumns = `id, title, conversation_type, role_character, message_count, status, created_at, updated_at`

type conversationStore struct {
	conn db.DBTX
}

func newConversationStore(conn db.DBTX) ConversationStore {
	return &conversationStore{conn: conn}
}

func (s *conversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	row := s.conn.QueryRow(ctx, `
		INSERT INTO conversations (id, title, conversation_type, role_character, message_count, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+conversationColumns,
		conv.ID, conv.Title, string(conv.Mode), conv.RoleCharacter, conv.MessageCount, string(conv.Status),
	)
	created, err := scanConversation(row)
	if err != nil {
		return err
	}
	*conv = *created
	return nil
}

func (s *conversationStore) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (s *conversationStore) List(ctx context.Context, limit, offset int32) ([]model.Conversation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *conv)
	}
	return result, rows.Err()
}

func (s *conversationStore) AddMessageCount(ctx context.Context, id int64, delta int) (int, error) {
	var count int
	err := s.conn.QueryRow(ctx, `
		UPDATE conversations
		SET message_count = message_count + $2, updated_at = now()
		WHERE id = $1
		RETURNING message_count`, id, delta).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return count, nil
}

func (s *conversationStore) UpdateStatus(ctx context.Context, id int64, status model.ConversationStatus) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE conversations SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *conversationStore) UpdateTitle(ctx context.Context, id int64, title string) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE conversations SET title = $2, updated_at = now() WHERE id = $1`, id, title)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *conversationStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var (
		conv   model.Conversation
		mode   string
		status string
	)
	if err := row.Scan(
		&conv.ID,
		&conv.Title,
		&mode,
		&conv.RoleCharacter,
		&conv.MessageCount,
		&status,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	conv.Mode = model.ConversationMode(mode)
	conv.Status = model.ConversationStatus(status)
	return &conv, nil
}

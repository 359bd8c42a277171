package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/db"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

// ErrDuplicate is returned when a message already has feedback.
var ErrDuplicate = errors.New("already exists")

const uniqueViolation = "23505"

type grammarFeedbackStore struct {
	conn db.DBTX
}

func newGrammarFeedbackStore(conn db.DBTX) GrammarFeedbackStore {
	return &grammarFeedbackStore{conn: conn}
}

func (s *grammarFeedbackStore) Create(ctx context.Context, fb *model.GrammarFeedback) error {
	if fb.Errors == nil {
		fb.Errors = []model.GrammarError{}
	}
	errorsJSON, err := json.Marshal(fb.Errors)
	if err != nil {
		return fmt.Errorf("encoding grammar errors: %w", err)
	}

	row := s.conn.QueryRow(ctx, `
		INSERT INTO grammar_feedback (id, message_id, original_text, corrected_text, has_errors, errors)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		fb.ID, fb.MessageID, fb.OriginalText, fb.CorrectedText, fb.HasErrors, errorsJSON,
	)
	if err := row.Scan(&fb.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *grammarFeedbackStore) GetByMessageID(ctx context.Context, messageID int64) (*model.GrammarFeedback, error) {
	var (
		fb         model.GrammarFeedback
		errorsJSON []byte
	)
	err := s.conn.QueryRow(ctx, `
		SELECT id, message_id, original_text, corrected_text, has_errors, errors, created_at
		FROM grammar_feedback WHERE message_id = $1`, messageID,
	).Scan(&fb.ID, &fb.MessageID, &fb.OriginalText, &fb.CorrectedText, &fb.HasErrors, &errorsJSON, &fb.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	fb.Errors, err = decodeGrammarErrors(errorsJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding feedback %d: %w", fb.ID, err)
	}
	return &fb, nil
}

func (s *grammarFeedbackStore) Stats(ctx context.Context, since *time.Time) (model.GrammarStats, error) {
	var stats model.GrammarStats
	err := s.conn.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE has_errors)
		FROM grammar_feedback
		WHERE $1::timestamptz IS NULL OR created_at >= $1`, since,
	).Scan(&stats.TotalMessages, &stats.MessagesWithErrors)
	if err != nil {
		return model.GrammarStats{}, err
	}

	if stats.TotalMessages > 0 {
		stats.ErrorRate = float64(stats.MessagesWithErrors) / float64(stats.TotalMessages)
	}
	return stats, nil
}

func decodeGrammarErrors(raw []byte) ([]model.GrammarError, error) {
	out := []model.GrammarError{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

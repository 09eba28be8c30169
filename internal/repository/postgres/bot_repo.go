package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// KnowledgeRepo implements KnowledgeRepository.
type KnowledgeRepo struct{ db *DB }

// NewKnowledgeRepo constructs a knowledge base repository.
func NewKnowledgeRepo(db *DB) *KnowledgeRepo { return &KnowledgeRepo{db: db} }

// ListActive returns active knowledge entries in insertion order.
func (r *KnowledgeRepo) ListActive(ctx context.Context) ([]model.KnowledgeEntry, error) {
	const q = `SELECT id, title, content, category FROM knowledge_base WHERE is_active=true ORDER BY created_at`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select knowledge: %w", err)
	}
	defer rows.Close()

	out := []model.KnowledgeEntry{}
	for rows.Next() {
		var e model.KnowledgeEntry
		var cat pgtype.Text
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &cat); err != nil {
			return nil, err
		}
		e.Category = textPtr(cat)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ChatRepo implements ChatRepository.
type ChatRepo struct{ db *DB }

// NewChatRepo constructs a chat history repository.
func NewChatRepo(db *DB) *ChatRepo { return &ChatRepo{db: db} }

// Recent returns up to limit turns, newest first.
func (r *ChatRepo) Recent(ctx context.Context, accountID uuid.UUID, limit int) ([]model.ChatTurn, error) {
	const q = `
SELECT id, user_id, message, response, created_at
FROM chat_history WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("select chat history: %w", err)
	}
	defer rows.Close()

	out := []model.ChatTurn{}
	for rows.Next() {
		var t model.ChatTurn
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Message, &t.Response, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Append inserts a chat turn.
func (r *ChatRepo) Append(ctx context.Context, t *model.ChatTurn) error {
	if t.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	const q = `
INSERT INTO chat_history (id, user_id, message, response)
VALUES ($1, $2, $3, $4)
RETURNING created_at`
	if err := r.db.Pool.QueryRow(ctx, q, t.ID, t.AccountID, t.Message, t.Response).Scan(&t.CreatedAt); err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	return nil
}

// CategoryRepo implements CategoryRepository.
type CategoryRepo struct{ db *DB }

// NewCategoryRepo constructs a news category repository.
func NewCategoryRepo(db *DB) *CategoryRepo { return &CategoryRepo{db: db} }

// List returns all categories.
func (r *CategoryRepo) List(ctx context.Context) ([]model.NewsCategory, error) {
	const q = `SELECT id, name, icon FROM news_categories ORDER BY name`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	out := []model.NewsCategory{}
	for rows.Next() {
		var c model.NewsCategory
		var icon pgtype.Text
		if err := rows.Scan(&c.ID, &c.Name, &icon); err != nil {
			return nil, err
		}
		c.Icon = textPtr(icon)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ToggleSubscription flips the subscription in one transaction.
func (r *CategoryRepo) ToggleSubscription(ctx context.Context, accountID, categoryID uuid.UUID) (subscribed bool, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT id FROM user_preferences WHERE user_id=$1 AND category_id=$2 FOR UPDATE`
	const del = `DELETE FROM user_preferences WHERE id=$1`
	const ins = `
INSERT INTO user_preferences (user_id, category_id) VALUES ($1, $2)
ON CONFLICT (user_id, category_id) DO NOTHING`

	var prefID uuid.UUID
	scanErr := tx.QueryRow(ctx, sel, accountID, categoryID).Scan(&prefID)
	switch {
	case scanErr == nil:
		if _, err = tx.Exec(ctx, del, prefID); err != nil {
			return false, err
		}
		return false, nil
	case errors.Is(scanErr, pgx.ErrNoRows):
		if _, err = tx.Exec(ctx, ins, accountID, categoryID); err != nil {
			return false, err
		}
		return true, nil
	default:
		err = scanErr
		return false, err
	}
}

package repository

import (
	"context"

	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/gofrs/uuid/v5"
)

// KnowledgeRepository reads the chatbot knowledge base.
type KnowledgeRepository interface {
	// ListActive returns all active entries.
	ListActive(ctx context.Context) ([]model.KnowledgeEntry, error)
}

// ChatRepository stores chatbot question/answer history.
type ChatRepository interface {
	// Recent returns up to limit most recent turns, newest first.
	Recent(ctx context.Context, accountID uuid.UUID, limit int) ([]model.ChatTurn, error)
	// Append stores a turn.
	Append(ctx context.Context, t *model.ChatTurn) error
}

// CategoryRepository manages news categories and subscriptions.
type CategoryRepository interface {
	// List returns all categories ordered by name.
	List(ctx context.Context) ([]model.NewsCategory, error)
	// ToggleSubscription subscribes or unsubscribes the account and reports the new state.
	ToggleSubscription(ctx context.Context, accountID, categoryID uuid.UUID) (subscribed bool, err error)
}

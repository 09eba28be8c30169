// Package bot handles Telegram updates: registration flow, commands and chatbot questions.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/metrics"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/repository"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Sender is the part of the Bot API used here. Implemented by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Answerer produces chatbot replies. Implemented by *assistant.Assistant.
type Answerer interface {
	Answer(ctx context.Context, accountID uuid.UUID, question string) string
}

// Provisioner creates accounts on first contact. Implemented by *service.Provisioner.
type Provisioner interface {
	EnsureAccount(ctx context.Context, p model.TelegramPrincipal) (*model.Account, error)
}

// Bot processes updates delivered by the webhook.
type Bot struct {
	api        Sender
	accounts   repository.AccountRepository
	categories repository.CategoryRepository
	prov       Provisioner
	assistant  Answerer
	webAppURL  string
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// New constructs a Bot.
func New(api Sender, accounts repository.AccountRepository, categories repository.CategoryRepository,
	prov Provisioner, assistant Answerer, webAppURL string, log *zap.Logger, m *metrics.Metrics) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{api: api, accounts: accounts, categories: categories, prov: prov, assistant: assistant,
		webAppURL: webAppURL, log: log, metrics: m}
}

// HandleUpdate processes one update. Messages without text, sender or chat are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	switch {
	case upd.CallbackQuery != nil:
		b.metrics.BotUpdate("callback")
		return b.onCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.Text != "" && upd.Message.From != nil && upd.Message.Chat != nil:
		b.metrics.BotUpdate("message")
		return b.onMessage(ctx, upd.Message)
	default:
		b.metrics.BotUpdate("ignored")
		return nil
	}
}

// lookup returns the account or nil if the user is unknown.
func (b *Bot) lookup(ctx context.Context, telegramID int64) (*model.Account, error) {
	acc, err := b.accounts.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return acc, nil
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	if _, err := b.api.Send(c); err != nil {
		return fmt.Errorf("%w: send: %v", errs.ErrUpstream, err)
	}
	return nil
}

func (b *Bot) answerCallback(cb *tgbotapi.CallbackQuery, text string) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		return fmt.Errorf("%w: answer callback: %v", errs.ErrUpstream, err)
	}
	return nil
}

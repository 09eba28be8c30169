// Package assistant answers user questions from the static knowledge base through an LLM.
package assistant

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/and161185/lyceum-portal/internal/llm"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

const (
	// MaxQuestionLength bounds a question in characters.
	MaxQuestionLength = 1000
	// HistoryTurns is how many previous turns are included in the prompt.
	HistoryTurns = 5
)

// User-facing replies.
const (
	MsgTooLong         = "Вопрос слишком длинный. Пожалуйста, задайте более короткий вопрос."
	MsgRateLimited     = "Превышен лимит запросов. Пожалуйста, попробуйте позже."
	MsgPaymentRequired = "Сервис временно недоступен. Обратитесь к администратору."
	MsgUnavailable     = "Извините, не могу ответить на вопрос в данный момент."
	MsgFailed          = "Произошла ошибка при обработке запроса."
)

// Completer sends a chat to a model. Implemented by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Assistant builds the prompt and stores the conversation.
type Assistant struct {
	knowledge repository.KnowledgeRepository
	chats     repository.ChatRepository
	llm       Completer
	log       *zap.Logger
}

// New constructs an Assistant.
func New(knowledge repository.KnowledgeRepository, chats repository.ChatRepository, c Completer, log *zap.Logger) *Assistant {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{knowledge: knowledge, chats: chats, llm: c, log: log}
}

// Answer returns the reply to send to the user. It never fails: errors become fixed messages.
func (a *Assistant) Answer(ctx context.Context, accountID uuid.UUID, question string) string {
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return MsgTooLong
	}

	history, err := a.chats.Recent(ctx, accountID, HistoryTurns)
	if err != nil {
		a.log.Error("load chat history", zap.String("account_id", accountID.String()), zap.Error(err))
		return MsgFailed
	}
	entries, err := a.knowledge.ListActive(ctx)
	if err != nil {
		a.log.Error("load knowledge base", zap.Error(err))
		return MsgFailed
	}

	answer, err := a.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: SystemPrompt(entries, history)},
		{Role: "user", Content: question},
	})
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return MsgRateLimited
	case errors.Is(err, llm.ErrPaymentRequired):
		return MsgPaymentRequired
	case err != nil:
		a.log.Error("llm completion", zap.Error(err))
		return MsgUnavailable
	}

	if err := a.chats.Append(ctx, &model.ChatTurn{AccountID: accountID, Message: question, Response: answer}); err != nil {
		a.log.Error("save chat turn", zap.String("account_id", accountID.String()), zap.Error(err))
		return MsgFailed
	}
	return answer
}

// SystemPrompt concatenates knowledge entries and history (given newest first)
// into the system message. History is rendered oldest first.
func SystemPrompt(entries []model.KnowledgeEntry, history []model.ChatTurn) string {
	kb := make([]string, 0, len(entries))
	for _, e := range entries {
		kb = append(kb, e.Title+": "+e.Content)
	}
	turns := make([]string, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		turns = append(turns, "Q: "+history[i].Message+"\nA: "+history[i].Response)
	}

	var b strings.Builder
	b.WriteString("Ты - помощник Лицея №1. Используй следующую информацию для ответа на вопросы:\n\n")
	b.WriteString(strings.Join(kb, "\n\n"))
	b.WriteString("\n\nИстория общения:\n")
	b.WriteString(strings.Join(turns, "\n"))
	b.WriteString("\n\nОтвечай кратко, информативно и дружелюбно. Если информации нет в базе знаний, так и скажи.")
	return b.String()
}

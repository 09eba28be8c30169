package bot

import (
	"context"
	"strings"

	"github.com/and161185/lyceum-portal/internal/model"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Callback data.
const (
	cbStartRegistration    = "start_registration"
	cbCompleteRegistration = "complete_registration"
	cbRolePrefix           = "role_"
	cbCategoryPrefix       = "cat_"
)

const (
	textCategories = "✅ Отлично! Теперь выберите интересующие вас категории новостей:"
	textCompleted  = "🎉 Регистрация завершена! Теперь вы можете открыть приложение и просматривать новости и мероприятия.\n\nИспользуйте /help для списка команд."
)

// selectableRoles are the roles a user may pick in the bot.
var selectableRoles = map[model.Role]bool{model.RoleStudent: true, model.RoleParent: true}

func (b *Bot) onCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	if data == cbStartRegistration {
		_, err := b.prov.EnsureAccount(ctx, model.TelegramPrincipal{
			ID:        cb.From.ID,
			FirstName: cb.From.FirstName,
			LastName:  cb.From.LastName,
			Username:  cb.From.UserName,
		})
		if err != nil {
			return err
		}
		if err := b.answerCallback(cb, "Готово!"); err != nil {
			return err
		}
		out := tgbotapi.NewMessage(chatID, textPickRole)
		out.ReplyMarkup = roleKeyboard()
		return b.send(out)
	}

	acc, err := b.lookup(ctx, cb.From.ID)
	if err != nil {
		return err
	}
	if acc == nil {
		return b.answerCallback(cb, "Ошибка: профиль не найден")
	}

	switch {
	case strings.HasPrefix(data, cbRolePrefix):
		role := model.Role(strings.TrimPrefix(data, cbRolePrefix))
		if !selectableRoles[role] {
			b.log.Warn("rejected role selection", zap.Int64("telegram_id", cb.From.ID), zap.String("role", string(role)))
			return b.answerCallback(cb, "Эту роль нельзя выбрать")
		}
		if err := b.accounts.SetSelectedRole(ctx, cb.From.ID, role); err != nil {
			return err
		}
		if err := b.answerCallback(cb, "Роль выбрана!"); err != nil {
			return err
		}
		return b.sendCategories(ctx, chatID)

	case strings.HasPrefix(data, cbCategoryPrefix):
		catID, err := uuid.FromString(strings.TrimPrefix(data, cbCategoryPrefix))
		if err != nil {
			return b.answerCallback(cb, "Неизвестная категория")
		}
		on, err := b.categories.ToggleSubscription(ctx, acc.ID, catID)
		if err != nil {
			return err
		}
		if on {
			return b.answerCallback(cb, "Подписались на категорию!")
		}
		return b.answerCallback(cb, "Отписались от категории")

	case data == cbCompleteRegistration:
		if err := b.accounts.CompleteRegistration(ctx, cb.From.ID); err != nil {
			return err
		}
		if acc.SelectedRole != nil {
			if _, err := b.accounts.AddRole(ctx, acc.ID, *acc.SelectedRole); err != nil {
				return err
			}
		}
		if err := b.answerCallback(cb, "Готово!"); err != nil {
			return err
		}
		return b.send(tgbotapi.NewMessage(chatID, textCompleted))
	}

	b.log.Debug("unknown callback", zap.String("data", data))
	return b.answerCallback(cb, "")
}

func (b *Bot) sendCategories(ctx context.Context, chatID int64) error {
	cats, err := b.categories.List(ctx)
	if err != nil {
		return err
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(cats)+1)
	for _, c := range cats {
		icon := "📌"
		if c.Icon != nil && *c.Icon != "" {
			icon = *c.Icon
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(icon+" "+c.Name, cbCategoryPrefix+c.ID.String()),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Завершить регистрацию", cbCompleteRegistration),
	))

	out := tgbotapi.NewMessage(chatID, textCategories)
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.send(out)
}

package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	textWelcome  = "👋 Добро пожаловать в Лицей №1!\n\nДля начала работы необходимо пройти регистрацию. Нажмите кнопку ниже, чтобы начать."
	textPickRole = "Выберите вашу роль:"
	textHelp     = "📚 <b>Доступные команды:</b>\n\n" +
		"/start - Начать работу с ботом\n" +
		"/webapp - Открыть приложение\n" +
		"/help - Показать это сообщение\n\n" +
		"Вы также можете задать мне любой вопрос о лицее, и я постараюсь помочь!"
	textNeedRegistration = "⚠️ Для доступа к приложению необходимо завершить регистрацию. Используйте /start"
	textOpenApp          = "🚀 Открыть приложение:"
	textFinishFirst      = "Пожалуйста, завершите регистрацию с помощью команды /start"
	textNoWebApp         = "Приложение временно недоступно."
)

func greeting(firstName string) string {
	return "Привет, " + firstName + "! 👋\n\nИспользуйте /webapp чтобы открыть приложение, или задайте мне вопрос о лицее."
}

func roleKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👨‍🎓 Ученик", "role_student")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👨‍👩‍👧 Родитель", "role_parent")),
	)
}

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	acc, err := b.lookup(ctx, msg.From.ID)
	if err != nil {
		return err
	}

	switch msg.Text {
	case "/start":
		out := tgbotapi.NewMessage(chatID, "")
		switch {
		case acc == nil:
			out.Text = textWelcome
			out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📝 Начать регистрацию", cbStartRegistration),
			))
		case !acc.RegistrationCompleted:
			out.Text = textPickRole
			out.ReplyMarkup = roleKeyboard()
		default:
			out.Text = greeting(msg.From.FirstName)
		}
		return b.send(out)

	case "/help":
		out := tgbotapi.NewMessage(chatID, textHelp)
		out.ParseMode = tgbotapi.ModeHTML
		return b.send(out)

	case "/webapp":
		if acc == nil || !acc.RegistrationCompleted {
			return b.send(tgbotapi.NewMessage(chatID, textNeedRegistration))
		}
		if b.webAppURL == "" {
			return b.send(tgbotapi.NewMessage(chatID, textNoWebApp))
		}
		out := tgbotapi.NewMessage(chatID, textOpenApp)
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📱 Открыть Mini App", b.webAppURL),
		))
		return b.send(out)
	}

	if acc == nil || !acc.RegistrationCompleted {
		return b.send(tgbotapi.NewMessage(chatID, textFinishFirst))
	}
	answer := b.assistant.Answer(ctx, acc.ID, msg.Text)
	b.log.Debug("question answered", zap.Int64("telegram_id", msg.From.ID), zap.Int("answer_len", len(answer)))
	return b.send(tgbotapi.NewMessage(chatID, answer))
}

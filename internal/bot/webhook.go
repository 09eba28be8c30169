package bot

import (
	"fmt"

	"github.com/and161185/lyceum-portal/internal/errs"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RawRequester issues Bot API calls by method name. Implemented by *tgbotapi.BotAPI.
type RawRequester interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// RegisterWebhook points Telegram at url. Telegram echoes secret in the
// X-Telegram-Bot-Api-Secret-Token header of every webhook call.
func RegisterWebhook(api RawRequester, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	params.AddNonEmpty("allowed_updates", `["message","callback_query"]`)

	resp, err := api.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("%w: setWebhook: %w", errs.ErrUpstream, err)
	}
	if !resp.Ok {
		return fmt.Errorf("%w: setWebhook: %s", errs.ErrUpstream, resp.Description)
	}
	return nil
}

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/and161185/lyceum-portal/internal/crypto"
	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/model"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type verifyInitDataRequest struct {
	InitData string `json:"initData"`
}

type accountView struct {
	ID                    string      `json:"id"`
	TelegramID            int64       `json:"telegram_id"`
	FirstName             string      `json:"first_name"`
	LastName              string      `json:"last_name"`
	RegistrationCompleted bool        `json:"registration_completed"`
	SelectedRole          *model.Role `json:"selected_role"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

type verifyInitDataResponse struct {
	Success    bool         `json:"success"`
	User       accountView  `json:"user"`
	Roles      []model.Role `json:"roles"`
	Token      string       `json:"token"`
	ExpiresAt  time.Time    `json:"expires_at"`
	SessionURL string       `json:"sessionUrl"`
}

func (s *Server) handleVerifyInitData(w http.ResponseWriter, r *http.Request) {
	var req verifyInitDataRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "initData is required")
		return
	}

	sess, err := s.miniapp.Login(r.Context(), req.InitData)
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "initData is required")
		return
	case errors.Is(err, errs.ErrUnauthorized):
		s.log.Info("initData rejected", zap.Error(err), zap.String("remote", clientIP(r)))
		writeError(w, http.StatusUnauthorized, "Invalid initData")
		return
	case err != nil:
		s.log.Error("mini app login", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	roles := sess.Roles
	if roles == nil {
		roles = []model.Role{}
	}
	a := sess.Account
	writeJSON(w, http.StatusOK, verifyInitDataResponse{
		Success: true,
		User: accountView{
			ID:                    a.ID.String(),
			TelegramID:            a.TelegramID,
			FirstName:             a.FirstName,
			LastName:              a.LastName,
			RegistrationCompleted: a.RegistrationCompleted,
			SelectedRole:          a.SelectedRole,
			CreatedAt:             a.CreatedAt,
			UpdatedAt:             a.UpdatedAt,
		},
		Roles:      roles,
		Token:      sess.Token,
		ExpiresAt:  sess.ExpiresAt,
		SessionURL: sess.SessionURL,
	})
}

// secretTokenHeader carries the secret_token registered with setWebhook.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// handleWebhook acknowledges every decodable update with 200 so Telegram does not
// redeliver it. Processing errors are logged.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebhookSecret != "" && !crypto.SecretEqual(s.opts.WebhookSecret, r.Header.Get(secretTokenHeader)) {
		s.log.Warn("telegram webhook with bad secret token", zap.String("remote", clientIP(r)))
		writeText(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var upd tgbotapi.Update
	if err := decodeJSON(r, &upd); err != nil {
		s.log.Warn("undecodable telegram update", zap.Error(err))
		writeText(w, http.StatusInternalServerError, "Error")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.WebhookTimeout)
	defer cancel()
	if err := s.bot.HandleUpdate(ctx, upd); err != nil {
		s.log.Error("telegram update", zap.Int("update_id", upd.UpdateID), zap.Error(err))
	}
	writeText(w, http.StatusOK, "OK")
}

package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/service"
	"go.uber.org/zap"
)

// Stable client-facing messages.
const (
	msgCredentialsRequired = "Имя пользователя и пароль обязательны"
	msgInvalidCredentials  = "Неверные учетные данные"
	msgBadLogin            = "Неверный логин или пароль"
	msgServerError         = "Ошибка сервера"
	msgUnauthorized        = "Unauthorized"
	msgInvalidSecret       = "Invalid secret key"
	msgTelegramIDRequired  = "telegram_id is required"
	msgAdminCreateFailed   = "Could not create admin"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminView struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	FullName *string `json:"full_name"`
}

type adminLoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Admin     adminView `json:"admin"`
}

func lockoutMessage(retryAfter time.Duration) string {
	mins := int(math.Ceil(retryAfter.Minutes()))
	if mins < 1 {
		mins = 1
	}
	return "Слишком много попыток входа. Попробуйте снова через " + strconv.Itoa(mins) + " минут."
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}

	sess, err := s.auth.AdminLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		var locked *service.LockedError
		switch {
		case errors.Is(err, service.ErrCredentialsRequired):
			writeError(w, http.StatusBadRequest, msgCredentialsRequired)
		case errors.Is(err, errs.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, msgInvalidCredentials)
		case errors.As(err, &locked):
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(locked.RetryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, lockoutMessage(locked.RetryAfter))
		case errors.Is(err, errs.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, msgBadLogin)
		default:
			s.log.Error("admin login", zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, adminLoginResponse{
		Success:   true,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Admin: adminView{
			ID:       sess.Admin.ID.String(),
			Username: sess.Admin.Username,
			FullName: sess.Admin.FullName,
		},
	})
}

// handleAdminSession reports the admin behind a bearer token that passed requireAdmin.
func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	admin, claims, ok := AdminFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"expires_at": claims.ExpiresAt,
		"admin": adminView{
			ID:       admin.ID.String(),
			Username: admin.Username,
			FullName: admin.FullName,
		},
	})
}

type createAdminRequest struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	FullName  *string `json:"full_name"`
	SecretKey string  `json:"secret_key"`
}

func (s *Server) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}

	a, err := s.bootstrap.CreateAdmin(r.Context(), req.SecretKey, req.Username, req.Password, req.FullName)
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	case errors.Is(err, service.ErrCredentialsRequired):
		writeError(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	case errors.Is(err, errs.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, msgInvalidCredentials)
		return
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, msgAdminCreateFailed)
		return
	case err != nil:
		s.log.Error("create admin", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"admin":   map[string]string{"id": a.ID.String(), "username": a.Username},
	})
}

type setAdminRequest struct {
	TelegramID json.Number `json:"telegram_id"`
	SecretKey  string      `json:"secret_key"`
}

func (s *Server) handleSetAdmin(w http.ResponseWriter, r *http.Request) {
	var req setAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgTelegramIDRequired)
		return
	}
	id, err := req.TelegramID.Int64()
	if err != nil {
		id = 0
	}

	res, err := s.bootstrap.GrantAdmin(r.Context(), req.SecretKey, id)
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, msgTelegramIDRequired)
		return
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusForbidden, msgInvalidSecret)
		return
	case err != nil:
		s.log.Error("grant admin", zap.Int64("telegram_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     res.Message(),
		"user_id":     res.AccountID.String(),
		"telegram_id": res.TelegramID,
	})
}

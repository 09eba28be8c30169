package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/session"
	"go.uber.org/zap"
)

type ctxKey string

const adminKey ctxKey = "lyceum.admin"

type adminPrincipal struct {
	admin  *model.AdminCredential
	claims session.Claims
}

// WithAdmin stores the authenticated admin in context.
func WithAdmin(ctx context.Context, a *model.AdminCredential, c session.Claims) context.Context {
	return context.WithValue(ctx, adminKey, adminPrincipal{admin: a, claims: c})
}

// AdminFromCtx fetches the authenticated admin from context.
func AdminFromCtx(ctx context.Context) (*model.AdminCredential, session.Claims, bool) {
	p, ok := ctx.Value(adminKey).(adminPrincipal)
	if !ok || p.admin == nil {
		return nil, session.Claims{}, false
	}
	return p.admin, p.claims, true
}

// requireAdmin rejects requests without a valid admin bearer token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r.Header.Get("Authorization"))
		if tok == "" {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		admin, claims, err := s.auth.VerifyAdminSession(r.Context(), tok)
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		case err != nil:
			s.log.Error("verify admin session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin, claims)))
	})
}

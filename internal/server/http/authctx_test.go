package httpserver

import (
	"context"
	"testing"

	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/session"
	"github.com/gofrs/uuid/v5"
)

func TestWithAdmin_And_AdminFromCtx(t *testing.T) {
	t.Parallel()

	if a, _, ok := AdminFromCtx(context.Background()); ok || a != nil {
		t.Fatalf("expected no admin in empty ctx")
	}

	want := &model.AdminCredential{ID: uuid.Must(uuid.NewV4()), Username: "root"}
	ctx := WithAdmin(context.Background(), want, session.Claims{SubjectID: want.ID.String()})

	got, claims, ok := AdminFromCtx(ctx)
	if !ok {
		t.Fatalf("expected admin in ctx")
	}
	if got.ID != want.ID || claims.SubjectID != want.ID.String() {
		t.Fatalf("mismatch: got %s/%s, want %s", got.ID, claims.SubjectID, want.ID)
	}

	bad := context.WithValue(context.Background(), adminKey, "not-a-principal")
	if a, _, ok := AdminFromCtx(bad); ok || a != nil {
		t.Fatalf("expected miss on wrong typed value")
	}
}

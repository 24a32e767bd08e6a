package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"vaxdash/internal/auth"
)

type fixedVersion struct {
	version int
	err     error
}

func (f fixedVersion) CheckTokenVersion(_ context.Context, _ string, v int) (bool, error) {
	return v == f.version, f.err
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	jm := auth.NewJWTManagerFromKeys(key, &key.PublicKey, "vaxdash")
	admin, _, _ := jm.IssueAccessToken("a1", time.Minute, 1, "local", []string{"admin"})
	viewer, _, _ := jm.IssueAccessToken("v1", time.Minute, 1, "local", nil)
	stale, _, _ := jm.IssueAccessToken("a1", time.Minute, 0, "local", []string{"admin"})

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, found := ClaimsFromContext(r.Context()); !found {
			t.Error("claims missing from context")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		versions VersionChecker
		header   string
		want     int
	}{
		{"admin", fixedVersion{version: 1}, "Bearer " + admin, http.StatusNoContent},
		{"no revocation store", nil, "Bearer " + admin, http.StatusNoContent},
		{"viewer", fixedVersion{version: 1}, "Bearer " + viewer, http.StatusForbidden},
		{"stale version", fixedVersion{version: 1}, "Bearer " + stale, http.StatusUnauthorized},
		{"store error", fixedVersion{version: 1, err: errors.New("db down")}, "Bearer " + admin, http.StatusInternalServerError},
		{"missing header", fixedVersion{version: 1}, "", http.StatusUnauthorized},
		{"not bearer", fixedVersion{version: 1}, admin, http.StatusUnauthorized},
		{"garbage", fixedVersion{version: 1}, "Bearer x.y.z", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(jm, tt.versions, zap.NewNop())
			h := m.JWTAuth(m.RequireRole("admin")(ok))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func authProbe(t *testing.T, secret, token string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var gotUID string
	handler := AuthMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = UserID(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rewards/summary", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, gotUID
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	token := SignToken("secret", "u1", time.Now().Add(time.Hour))

	rec, uid := authProbe(t, "secret", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	if uid != "u1" {
		t.Fatalf("uid не дошёл до обработчика: %q", uid)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	valid := SignToken("secret", "u1", time.Now().Add(time.Hour))
	corrupted := valid[:len(valid)-1] + "0"
	if strings.HasSuffix(valid, "0") {
		corrupted = valid[:len(valid)-1] + "1"
	}

	cases := []struct {
		name  string
		token string
	}{
		{"нет токена", ""},
		{"просроченный", SignToken("secret", "u1", time.Now().Add(-time.Minute))},
		{"чужой секрет", SignToken("другой", "u1", time.Now().Add(time.Hour))},
		{"испорченная подпись", corrupted},
		{"мусор", "совсем-не-токен"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := authProbe(t, "secret", tc.token)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("ожидали 401, получили %d", rec.Code)
			}
		})
	}
}

func TestAdminMiddleware(t *testing.T) {
	handler := AdminMiddleware("admin-token")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/rewards/run", nil)
	req.Header.Set("X-Admin-Token", "admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ожидали 202, получили %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/rewards/run", nil)
	req.Header.Set("X-Admin-Token", "не тот")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("ожидали 401, получили %d", rec.Code)
	}
}

// Пустой настроенный админ-токен не должен превращаться в «пускать всех».
func TestAdminMiddlewareEmptyTokenClosesDoor(t *testing.T) {
	handler := AdminMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/rewards/run", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("пустой токен обязан закрывать доступ, получили %d", rec.Code)
	}
}

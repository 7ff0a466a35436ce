package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const userIDKey contextKey = "auth_user_id"

// AuthMiddleware проверяет подписанный токен мобильного клиента.
// Формат: "<uid>:<expires_unix>:<hex hmac-sha256(uid:expires, secret)>".
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := sha256.Sum256([]byte(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "токен отсутствует", http.StatusUnauthorized)
				return
			}
			uid, ok := validateToken(token, key[:])
			if !ok {
				http.Error(w, "подпись недействительна", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, uid)))
		})
	}
}

// AdminMiddleware пускает только запросы с корректным админским токеном.
func AdminMiddleware(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Token")
			if adminToken == "" || !hmac.Equal([]byte(got), []byte(adminToken)) {
				http.Error(w, "доступ запрещён", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID возвращает uid аутентифицированного пользователя.
func UserID(r *http.Request) string {
	uid, _ := r.Context().Value(userIDKey).(string)
	return uid
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func validateToken(token string, key []byte) (string, bool) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", false
	}
	uid, expiresRaw, sigHex := parts[0], parts[1], parts[2]
	if uid == "" {
		return "", false
	}
	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil || time.Now().Unix() > expires {
		return "", false
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(uid + ":" + expiresRaw))
	expected, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", false
	}
	return uid, hmac.Equal(h.Sum(nil), expected)
}

// SignToken выписывает токен; используется тестами и CLI-утилитами.
func SignToken(secret, uid string, expires time.Time) string {
	key := sha256.Sum256([]byte(secret))
	payload := uid + ":" + strconv.FormatInt(expires.Unix(), 10)
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(payload))
	return payload + ":" + hex.EncodeToString(h.Sum(nil))
}

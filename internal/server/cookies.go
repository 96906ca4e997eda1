package server

import (
	"net/http"
	"time"

	"message-board/internal/auth"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"

	accessTokenMaxAge  = time.Hour
	refreshTokenMaxAge = 7 * 24 * time.Hour
)

func authCookie(name, value string, maxAge time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func setAuthCookies(w http.ResponseWriter, tokens auth.Tokens, secure bool) {
	http.SetCookie(w, authCookie(accessTokenCookie, tokens.Access, accessTokenMaxAge, secure))
	http.SetCookie(w, authCookie(refreshTokenCookie, tokens.Refresh, refreshTokenMaxAge, secure))
}

func clearAuthCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		c := authCookie(name, "", 0, secure)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

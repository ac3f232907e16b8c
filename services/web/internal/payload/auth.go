package payload

import (
	"net/url"
	"strings"
)

// LoginRequest is the query string accepted by GET /auth/login.
type LoginRequest struct {
	ScreenHint string `validate:"omitempty,oneof=signup login"`
	ReturnTo   string `validate:"omitempty,max=2048"`
}

// NewLoginRequest reads a LoginRequest from the login query string.
func NewLoginRequest(q url.Values) LoginRequest {
	return LoginRequest{
		ScreenHint: q.Get("screen_hint"),
		ReturnTo:   q.Get("returnTo"),
	}
}

// SafeReturnTo returns ReturnTo when it is a same-origin relative path and an
// empty string otherwise.
func (r LoginRequest) SafeReturnTo() string {
	return SameOriginPath(r.ReturnTo)
}

// SameOriginPath returns raw when it is a relative path rooted at "/" that
// cannot be reinterpreted as another origin, and "" otherwise.
func SameOriginPath(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}

	return raw
}

// TokenResponse is returned by GET /api/token.
type TokenResponse struct {
	IDToken string `json:"id_token"`
}

// ErrorResponse is the JSON body of API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

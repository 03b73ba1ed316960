package cookiejar

import "net/http"

// NewCookie builds an auth cookie with the attributes the session protocol
// requires: Path=/, SameSite=Lax, Secure in production, HttpOnly for the
// refresh token only. The XSRF cookie must stay script-readable for the
// double-submit check to work. maxAge of 0 produces a session cookie.
func NewCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		HttpOnly: name == RefreshTokenCookie,
	}
}

// ExpiredCookie builds a cookie that tells the receiver to drop name.
func ExpiredCookie(name string, secure bool) *http.Cookie {
	return NewCookie(name, "", -1, secure)
}

// SetAuthCookies writes both auth cookies to w.
func SetAuthCookies(w http.ResponseWriter, refreshToken, xsrfToken string, refreshMaxAge int, secure bool) {
	http.SetCookie(w, NewCookie(RefreshTokenCookie, refreshToken, refreshMaxAge, secure))
	http.SetCookie(w, NewCookie(XSRFTokenCookie, xsrfToken, refreshMaxAge, secure))
}

// ClearAuthCookies expires both auth cookies on w.
func ClearAuthCookies(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, ExpiredCookie(RefreshTokenCookie, secure))
	http.SetCookie(w, ExpiredCookie(XSRFTokenCookie, secure))
}

package cookie

import (
	"net/http"
	"time"
)

// Config names the session cookies and their shared attributes.
type Config struct {
	AccessName   string
	RefreshName  string
	RememberName string
	Domain       string
	Secure       bool
}

// Issue builds the cookie set for a freshly issued or rotated session.
// remember selects client retention only: persistent cookies carry
// Max-Age, ephemeral ones die with the browser session. Server-side
// validity is identical in both modes.
func (c Config) Issue(access, refresh string, remember bool, accessTTL, refreshTTL time.Duration) []*http.Cookie {
	accessMaxAge, refreshMaxAge := 0, 0
	if remember {
		accessMaxAge = int(accessTTL.Seconds())
		refreshMaxAge = int(refreshTTL.Seconds())
	}

	cookies := []*http.Cookie{
		c.build(c.AccessName, access, accessMaxAge),
		c.build(c.RefreshName, refresh, refreshMaxAge),
	}
	// The marker lets a later transparent refresh reproduce the
	// caller's retention choice without storing it server-side.
	if remember {
		cookies = append(cookies, c.build(c.RememberName, "1", refreshMaxAge))
	} else {
		cookies = append(cookies, c.expired(c.RememberName))
	}

	return cookies
}

// Clear builds expired replacements for every session cookie.
func (c Config) Clear() []*http.Cookie {
	return []*http.Cookie{
		c.expired(c.AccessName),
		c.expired(c.RefreshName),
		c.expired(c.RememberName),
	}
}

// Remembered reports whether the request carries the persistence marker.
func (c Config) Remembered(r *http.Request) bool {
	marker, err := r.Cookie(c.RememberName)
	return err == nil && marker.Value == "1"
}

func (c Config) build(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c Config) expired(name string) *http.Cookie {
	cookie := c.build(name, "", -1)
	cookie.Expires = time.Unix(0, 0)
	return cookie
}

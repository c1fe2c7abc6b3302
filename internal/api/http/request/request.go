package request

import (
	"net"
	"net/http"
)

// ClientIP extracts the caller's network address. The router runs chi's
// RealIP middleware ahead of everything, so RemoteAddr already reflects
// forwarded-for headers when a trusted proxy set them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

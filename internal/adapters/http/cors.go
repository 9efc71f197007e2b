package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"net/url"
	"strings"
)

// corsPolicy decides which origins may call the API. Browser map clients
// are usually served from a different host than the tile service, so the
// policy supports a global "*" in addition to exact origins and subdomain
// patterns like "*.example.com". Patterns are sorted into buckets once at
// construction instead of being re-parsed per request.
type corsPolicy struct {
	allowAll bool
	exact    map[string]struct{}
	suffixes []string
}

func newCORSPolicy(origins []string) *corsPolicy {
	p := &corsPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, pattern := range origins {
		switch {
		case pattern == "*":
			p.allowAll = true
		case strings.HasPrefix(pattern, "*."):
			// Keep the leading dot so "*.example.com" cannot match "notexample.com".
			p.suffixes = append(p.suffixes, pattern[1:])
		default:
			p.exact[pattern] = struct{}{}
		}
	}
	return p
}

// allows reports whether the given Origin header value is acceptable.
func (p *corsPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.allowAll {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	if len(p.suffixes) == 0 {
		return false
	}
	host := originHost(origin)
	for _, suffix := range p.suffixes {
		// "*.example.com" matches "tiles.example.com" but not "example.com" itself.
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// originHost extracts the bare hostname from an Origin header value,
// e.g. "https://example.com:8080" becomes "example.com".
func originHost(origin string) string {
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return u.Hostname()
	}
	// Origins without a scheme never parse into a Host, strip manually.
	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, ":/"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// corsMiddleware applies the configured CORS policy and short-circuits
// preflight requests.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if s.cors.allows(origin) {
			header := w.Header()
			if s.cors.allowAll {
				header.Set("Access-Control-Allow-Origin", "*")
			} else {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Vary", "Origin")
			}
			header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
			header.Set("Access-Control-Max-Age", "86400") // 24 hours
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

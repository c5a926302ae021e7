package router

import (
	"net/http"
	"strings"

	"CrmAPI/internal/config"

	"github.com/go-chi/cors"
)

// corsOptions turns the CSV allow-list into go-chi/cors options. An empty list allows
// every origin. With credentials enabled a wildcard echoes the request origin, since
// browsers reject "*" together with credentials.
func corsOptions(cfg config.CORSConfig) cors.Options {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           86400,
	}

	origins := parseOrigins(cfg.AllowOrigin)
	wildcard := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			wildcard = true
			break
		}
	}
	switch {
	case wildcard && cfg.AllowCredentials:
		opts.AllowOriginFunc = func(_ *http.Request, origin string) bool { return origin != "" }
	case wildcard:
		opts.AllowedOrigins = []string{"*"}
	default:
		opts.AllowedOrigins = origins
	}
	return opts
}

func parseOrigins(allowOrigin string) []string {
	parts := strings.Split(allowOrigin, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		res = append(res, p)
	}
	return res
}

package middleware

import (
	"context"
	"net/http"

	"github.com/zzy10151020/MBTI-System-sub000/internal/utils"
)

type ctxKey int

const localeKey ctxKey = 1

const defaultLocale = "en"

// Locales lists the message catalogs the API can answer in.
var Locales = []string{"en", "zh"}

// LocaleMiddleware picks the response locale from ?lang= or Accept-Language, stores it in
// the request context and echoes it as Content-Language.
func LocaleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := utils.DetermineLocale(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), Locales, defaultLocale)
		w.Header().Set("Content-Language", locale)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeKey, locale)))
	})
}

func LocaleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(localeKey).(string); ok && s != "" {
		return s
	}
	return defaultLocale
}

package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Recover turns a panicking basket request into a 500 and logs the stack.
// http.ErrAbortHandler is passed through so the server can drop the
// connection.
func Recover(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				ev := logger.Error().
					Str("rid", GetRequestID(r)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Bytes("stack", debug.Stack())
				if uid := UserIDFrom(r.Context()); uid != "" {
					ev = ev.Str("user", uid)
				}
				ev.Msg("request panicked")
				fail(w, r, http.StatusInternalServerError, "internal")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

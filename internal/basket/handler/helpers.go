package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"basket-service/internal/basket/service"
	"basket-service/internal/basket/store"
	"basket-service/internal/middleware"
)

type requestError struct {
	status int
	msg    string
	err    error
}

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return e.err }

// badRequest builds a 400; the last error argument, if any, stays
// reachable through errors.As.
func badRequest(format string, args ...any) error {
	e := &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
	if n := len(args); n > 0 {
		e.err, _ = args[n-1].(error)
	}
	return e
}

func userID(r *http.Request) string {
	return middleware.UserIDFrom(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return badRequest("empty request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest("invalid json: %v", err)
	}
	return nil
}

// fail maps service and store errors to status codes. Only unexpected
// errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", mbe.Limit))
	case errors.As(err, &reqErr):
		writeError(w, reqErr.status, reqErr.msg)
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": "))
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		h.log.Error().
			Str("rid", middleware.GetRequestID(r)).
			Str("path", r.URL.Path).
			Err(err).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func atoi(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return def
	}
	return i
}

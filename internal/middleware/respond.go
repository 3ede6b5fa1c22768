package middleware

import (
	"net/http"

	json "github.com/goccy/go-json"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// fail writes a JSON error, tagged with the request id when one is set.
func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	body, _ := json.Marshal(errorBody{Error: msg, RequestID: GetRequestID(r)})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

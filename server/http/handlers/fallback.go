package handlers

import "net/http"

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusNotFound, `{"error":"not found"}`)
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusMethodNotAllowed, `{"error":"method not allowed"}`)
}

func writeStatus(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

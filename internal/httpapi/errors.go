package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"messagecore/pkg/domain"
)

// ErrorBody is the JSON error document returned to clients.
type ErrorBody struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	ClassName string `json:"className"`
}

type errorKind struct {
	name      string
	className string
}

var errorKinds = map[int]errorKind{
	http.StatusBadRequest:            {"BadRequest", "bad-request"},
	http.StatusNotFound:              {"NotFound", "not-found"},
	http.StatusMethodNotAllowed:      {"MethodNotAllowed", "method-not-allowed"},
	http.StatusRequestEntityTooLarge: {"PayloadTooLarge", "payload-too-large"},
	http.StatusUnsupportedMediaType:  {"Unprocessable", "unprocessable"},
	http.StatusTooManyRequests:       {"TooManyRequests", "too-many-requests"},
	http.StatusInternalServerError:   {"GeneralError", "general-error"},
}

// statusOf maps service errors onto HTTP status codes.
func statusOf(err error) int {
	var nf domain.NotFoundError
	var inv domain.InvalidInputError
	var he *httpError
	switch {
	case errors.As(err, &he):
		return he.status
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &inv):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// httpError is raised by the adapter itself, before the service is called.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(msg string) error { return &httpError{status: http.StatusBadRequest, msg: msg} }

// bodyError reports an oversized body as 413 and anything else as a 400
// carrying msg.
func bodyError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &httpError{status: http.StatusRequestEntityTooLarge, msg: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
	}
	return badRequest(msg)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	kind, ok := errorKinds[status]
	if !ok {
		kind = errorKinds[http.StatusInternalServerError]
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, ErrorBody{Name: kind.name, Message: msg, Code: status, ClassName: kind.className})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

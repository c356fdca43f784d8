package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/civiccount/stv-tabulator/internal/log"
)

// Handler is like http.Handler but returns an error, so handlers can
// report failures without writing directly to the response.
type Handler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request) error
}

// HandlerFunc is like http.HandlerFunc but returns an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

func resolveError(handler Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := handler.ServeHTTP(w, r)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		writeStatusCode(w, err)
		writeFormattedError(w, err)
	}
}

func writeStatusCode(w http.ResponseWriter, err error) {
	statusCode := http.StatusBadRequest

	var errStatusCode statusCodeError
	if errors.As(err, &errStatusCode) {
		statusCode = errStatusCode.code
	} else {
		var errTyped interface{ Type() string }
		if errors.As(err, &errTyped) {
			switch errTyped.Type() {
			case "not_found":
				statusCode = http.StatusNotFound
			case "already_stopped":
				statusCode = http.StatusConflict
			case "too_many_ballots":
				statusCode = http.StatusTooManyRequests
			case "invalid_input", "setup":
				statusCode = http.StatusBadRequest
			default:
				statusCode = http.StatusInternalServerError
			}
		} else {
			statusCode = http.StatusInternalServerError
		}
	}

	w.WriteHeader(statusCode)
}

func writeFormattedError(w io.Writer, err error) {
	errType := "internal"
	msg := err.Error()

	var errTyped interface {
		error
		Type() string
	}
	if errors.As(err, &errTyped) {
		errType = errTyped.Type()
	}
	if errType == "internal" {
		log.Error("Error: %v", err)
		msg = "an internal error occurred"
	}

	out := struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{errType, msg}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Error("encoding error message: %v", err)
		fmt.Fprint(w, `{"error":"internal", "message":"something went wrong encoding the error message"}`)
	}
}

// statusCodeError lets a handler pin a specific HTTP status code
// without adding a new Type() discriminator.
type statusCodeError struct {
	err  error
	code int
}

func (s statusCodeError) Error() string { return fmt.Sprintf("%d - %v", s.code, s.err) }
func (s statusCodeError) Unwrap() error { return s.err }

func statusCode(code int, err error) error {
	return statusCodeError{err: err, code: code}
}

package entrystore

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Kind classifies a failed store call.
type Kind string

const (
	// KindTransport means the request never produced a response.
	KindTransport Kind = "transport"
	// KindAPI means the server answered with a non-2xx status.
	KindAPI Kind = "api"
)

// Error is a failed store call. StatusCode is 0 for transport failures.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func transportError(err error) *Error {
	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		cause = urlErr.Err
	}
	return &Error{
		Kind:    KindTransport,
		Message: "no response received from server: " + cause.Error(),
		Err:     err,
	}
}

// errorBody accepts both {"message": "..."} and {"error": {"message": "..."}}.
type errorBody struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

func apiError(status int, data []byte) *Error {
	msg := ""
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		msg = eb.Message
		if msg == "" {
			msg = eb.Error.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" || strings.HasPrefix(msg, "<") {
		msg = http.StatusText(status)
	}
	return &Error{Kind: KindAPI, Message: msg, StatusCode: status}
}

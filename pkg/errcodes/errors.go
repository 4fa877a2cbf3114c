package errcodes

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

// Conflict returns a 409 error. The server raises it when a mutually
// exclusive job is already active for the same resource.
func Conflict(msg string) error {
	return &Error{
		http.StatusConflict,
		msg,
		"conflict",
	}
}

// Transient marks a network or collaborator failure that the next natural
// cycle is expected to clear. Never fatal.
func Transient(msg string) error {
	return &Error{
		http.StatusServiceUnavailable,
		msg,
		"transient",
	}
}

// MalformedStream marks a stream frame that failed to parse. The owning
// feed is closed; nothing is rendered from the frame.
func MalformedStream(msg string) error {
	return &Error{
		http.StatusBadRequest,
		msg,
		"malformed_stream",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		http.StatusUnsupportedMediaType,
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusBadRequest,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusBadRequest,
		msg,
		"validation_type_error",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Empty request body",
		"empty_request_body",
	}
}

// IsTransient reports whether err (at any depth) is a transient
// collaborator failure.
func IsTransient(err error) bool {
	var e *Error
	if ok := errors.As(err, &e); ok {
		return e.Code == "transient"
	}
	return false
}

// IsConflict reports whether err is a job conflict rejection.
func IsConflict(err error) bool {
	var e *Error
	if ok := errors.As(err, &e); ok {
		return e.Code == "conflict"
	}
	return false
}

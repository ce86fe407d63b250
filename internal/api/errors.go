package api

import (
	"errors"
	"net/http"

	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/conversation"
	"github.com/raphaelgruber/feelfree-go/internal/llm"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/onboarding"
	"github.com/raphaelgruber/feelfree-go/internal/service"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Wire codes for errors outside the auth package.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeEmptyMessage         = "empty_message"
	CodeBusy                 = "busy"
	CodeNotActive            = "not_active"
	CodeClosed               = "session_closed"
	CodeNoGenerator          = "no_generator"
	CodeModelUnavailable     = "model_unavailable"
	CodeOnboardingIncomplete = "onboarding_incomplete"
	CodeOnboardingDone       = "onboarding_done"
	CodeNoSession            = "no_session"
	CodeInvalidAnswer        = "invalid_answer"
	CodeInvalidPreferences   = "invalid_preferences"
	CodeNotFound             = "not_found"
)

const modelUnavailableMessage = "The assistant is unavailable right now. Please try again later"

// ErrInvalidRequest is returned for malformed request bodies.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound is returned for unknown routes.
var ErrNotFound = errors.New("not found")

var errorTable = []struct {
	err    error
	code   string
	status int
}{
	{auth.ErrInvalidCredentials, auth.CodeInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrEmailNotConfirmed, auth.CodeEmailNotConfirmed, http.StatusForbidden},
	{auth.ErrWeakPassword, auth.CodeWeakPassword, http.StatusBadRequest},
	{auth.ErrUserExists, auth.CodeUserExists, http.StatusConflict},
	{auth.ErrInvalidEmail, auth.CodeInvalidEmail, http.StatusBadRequest},
	{auth.ErrRateLimited, auth.CodeRateLimited, http.StatusTooManyRequests},
	{auth.ErrEmailRateLimited, auth.CodeEmailRateLimited, http.StatusTooManyRequests},
	{auth.ErrInvalidToken, auth.CodeInvalidToken, http.StatusUnauthorized},
	{auth.ErrSessionExpired, auth.CodeSessionExpired, http.StatusUnauthorized},
	{ErrInvalidRequest, CodeInvalidRequest, http.StatusBadRequest},
	{ErrNotFound, CodeNotFound, http.StatusNotFound},
	{conversation.ErrEmptyMessage, CodeEmptyMessage, http.StatusBadRequest},
	{conversation.ErrBusy, CodeBusy, http.StatusConflict},
	{conversation.ErrNotActive, CodeNotActive, http.StatusConflict},
	{conversation.ErrClosed, CodeClosed, http.StatusConflict},
	{conversation.ErrNoGenerator, CodeNoGenerator, http.StatusServiceUnavailable},
	{llm.ErrFatalAPI, CodeModelUnavailable, http.StatusServiceUnavailable},
	{service.ErrOnboardingIncomplete, CodeOnboardingIncomplete, http.StatusConflict},
	{service.ErrOnboardingDone, CodeOnboardingDone, http.StatusConflict},
	{service.ErrNoSession, CodeNoSession, http.StatusNotFound},
	{onboarding.ErrInvalidAnswer, CodeInvalidAnswer, http.StatusBadRequest},
	{models.ErrInvalidPreferences, CodeInvalidPreferences, http.StatusBadRequest},
	{auth.ErrServer, auth.CodeServer, http.StatusInternalServerError},
}

// Status maps err to an HTTP status and wire code. Unknown errors are 500.
func Status(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, auth.CodeServer
}

// Message is the text sent to the client for err. Internal failures never
// leak their cause.
func Message(err error) string {
	switch {
	case auth.Code(err) != "":
		return auth.Message(err)
	case errors.Is(err, llm.ErrFatalAPI):
		return modelUnavailableMessage
	case errors.Is(err, conversation.ErrNoGenerator):
		return conversation.ErrNoGenerator.Error()
	}
	if status, _ := Status(err); status >= http.StatusInternalServerError {
		return auth.Message(auth.ErrServer)
	}
	return err.Error()
}

// NewErrorBody builds the body for err.
func NewErrorBody(err error) ErrorBody {
	_, code := Status(err)
	return ErrorBody{Error: Message(err), Code: code}
}

// Err rebuilds an error from a response body. Known codes wrap their
// sentinel so errors.Is works on the client side.
func (b ErrorBody) Err() error {
	for _, e := range errorTable {
		if e.code == b.Code {
			if b.Error == "" || b.Error == e.err.Error() {
				return e.err
			}
			return &RemoteError{Message: b.Error, Code: b.Code, sentinel: e.err}
		}
	}
	return &RemoteError{Message: b.Error, Code: b.Code}
}

// RemoteError is a server-reported failure.
type RemoteError struct {
	Message  string
	Code     string
	sentinel error
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.sentinel }

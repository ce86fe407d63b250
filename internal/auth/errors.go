package auth

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// Sentinel errors. Use errors.Is to check for these.
var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrWeakPassword       = errors.New("password should be at least 6 characters")
	ErrUserExists         = errors.New("user already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrEmailRateLimited   = errors.New("email rate limit exceeded")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")
	ErrServer             = errors.New("server error")
)

// Error codes carried over the wire so a client can rebuild the sentinel.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeWeakPassword       = "weak_password"
	CodeUserExists         = "user_exists"
	CodeInvalidEmail       = "invalid_email"
	CodeRateLimited        = "rate_limited"
	CodeEmailRateLimited   = "email_rate_limited"
	CodeInvalidToken       = "invalid_token"
	CodeSessionExpired     = "session_expired"
	CodeServer             = "server_error"
)

var codes = []struct {
	err  error
	code string
	msg  string
}{
	{ErrInvalidCredentials, CodeInvalidCredentials, "Incorrect email or password"},
	{ErrEmailNotConfirmed, CodeEmailNotConfirmed, "Please verify your email first"},
	{ErrWeakPassword, CodeWeakPassword, "Password must be at least 6 characters long"},
	{ErrUserExists, CodeUserExists, "An account already exists with this email"},
	{ErrInvalidEmail, CodeInvalidEmail, "Please enter a valid email address"},
	{ErrRateLimited, CodeRateLimited, "Too many attempts. Please try again later"},
	{ErrEmailRateLimited, CodeEmailRateLimited, "Too many email attempts. Please try again later"},
	{ErrInvalidToken, CodeInvalidToken, "Your session is invalid. Please sign in again"},
	{ErrSessionExpired, CodeSessionExpired, "Your session has expired. Please sign in again"},
	{ErrServer, CodeServer, "Server error. Please try again later"},
}

const (
	connectionMessage = "Connection error. Please check your internet"
	defaultMessage    = "An error occurred. Please try again."
)

// Message maps err to the fixed user-facing text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.msg
		}
	}
	if isNetworkError(err) {
		return connectionMessage
	}
	return defaultMessage
}

// Code returns the wire code for err, or "" when err is not an auth error.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// FromCode returns the sentinel for a wire code, or nil if unknown.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	var urlErr *url.Error
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded)
}

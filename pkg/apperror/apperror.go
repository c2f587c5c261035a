// Package apperror defines the error kinds handlers translate into HTTP status codes.
package apperror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream failure")
)

// AppError pairs a sentinel kind with a message safe to show to clients.
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(kind error, message string) *AppError {
	return &AppError{Err: kind, Message: message}
}

func Unauthorized(message string) *AppError { return New(ErrUnauthorized, message) }
func InvalidInput(message string) *AppError { return New(ErrInvalidInput, message) }
func NotFound(message string) *AppError     { return New(ErrNotFound, message) }
func Upstream(message string) *AppError     { return New(ErrUpstream, message) }

// StatusCode maps an error to the HTTP status it should produce.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as {"error": message} with the mapped status.
func Respond(c *gin.Context, err error) {
	status := StatusCode(err)

	message := err.Error()
	var appErr *AppError
	if errors.As(err, &appErr) {
		message = appErr.Error()
	} else if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	c.JSON(status, gin.H{"error": message})
}

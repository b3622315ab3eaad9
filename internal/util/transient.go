// ABOUTME: Classification of network errors into transient and permanent failures
// ABOUTME: 5xx, timeouts and dropped connections retry; 4xx and cancellations never do
package util

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/harper/ragcore/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrTransientIO) {
		return true
	}

	if status := HTTPStatus(err); status != 0 {
		return status >= 500
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// HTTPStatus extracts the HTTP status code from an OpenAI client error, or 0
func HTTPStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

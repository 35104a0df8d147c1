package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"syscall"

	"github.com/openai/openai-go"
)

// APIError is a non-200 answer from a generation host.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsConnectionRefused reports whether the host actively refused the
// connection, which means the generation service is not running.
func IsConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// IsModelNotFound reports whether the host does not have the requested model.
func IsModelNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound ||
			strings.Contains(strings.ToLower(apiErr.Message), "not found")
	}
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode == http.StatusNotFound
	}
	return false
}

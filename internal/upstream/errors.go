package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Machine codes the server attaches to error responses.
const (
	CodeCartNotFound = "cart_not_found"
	CodeCartEmpty    = "cart_empty"
)

// APIError is a non-2xx response from the server, carrying its machine
// code and user-facing message. Business-rule rejections (minimum
// purchase not met, coupon expired) arrive as APIErrors and are
// surfaced verbatim.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// IsCartNotFound reports whether the error belongs to the
// cart-not-found class: the session has no server-side cart record yet
// (typically local-only history). Callers recover from this class
// silently by computing locally.
func IsCartNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case CodeCartNotFound, CodeCartEmpty:
		return true
	}
	return apiErr.Status == http.StatusNotFound &&
		strings.Contains(strings.ToLower(apiErr.Message), "cart")
}

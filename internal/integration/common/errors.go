package common

import (
	"errors"
	"net/http"

	pkgHTTP "github.com/repoqa/repoqa-backend/pkg/http"
)

// IsRetryable reports whether a connector error is worth another attempt:
// network faults, 429 and 5xx responses.
func IsRetryable(err error) bool {
	var netErr *pkgHTTP.NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	if status, ok := pkgHTTP.StatusCode(err); ok {
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}

	return false
}

package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	switch e.Code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// transientPatterns catch transport failures that arrive already flattened to text.
var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err looks like a failure a retry could cure: a
// retryable HTTP status, a network timeout, a reset or refused connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

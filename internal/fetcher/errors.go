package fetcher

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// ErrUnavailable marks a transport-level failure: the remote source could
// not be reached or did not answer 200. Callers fall back to local data.
var ErrUnavailable = eris.New("fetcher: source unavailable")

// StatusError is returned when the remote answers with a non-200 status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Is lets a StatusError match ErrUnavailable.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnavailable
}

// TransportError wraps a network-level failure (timeout, DNS, refused
// connection) so it matches ErrUnavailable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets a TransportError match ErrUnavailable.
func (e *TransportError) Is(target error) bool {
	return target == ErrUnavailable
}

// FailureReason classifies a transport failure for logging.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	var se *StatusError
	if errors.As(err, &se) {
		return "status"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return "connection"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "temporary failure in name resolution"):
		return "dns"
	case strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "tls handshake timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "connection reset by peer"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "connection refused"):
		return "connection"
	}
	return "other"
}

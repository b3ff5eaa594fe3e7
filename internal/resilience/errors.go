package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// TransientError marks an error as retryable, carrying the transport status
// code when known. A status code in the permanent range (a 4xx other than
// 408/429) overrides the marker during classification.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// StatusCode extracts the transport status code from an error chain, or 0.
func StatusCode(err error) int {
	var te *TransientError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// pg error classes that indicate a server-side condition worth retrying.
// Constraint violations (class 23) and syntax/access errors are permanent.
var transientPgPrefixes = []string{
	"08", // connection exception
	"40", // transaction rollback (serialization failure, deadlock)
	"53", // insufficient resources
	"57", // operator intervention (admin shutdown, crash shutdown)
	"58", // system error
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, a retryable Postgres error class, or matches common
// network-level transient patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		// A known transport status overrides the wrapper: a 4xx other than
		// 408/429 is permanent no matter how it was wrapped.
		return te.StatusCode == 0 || IsTransientHTTPStatus(te.StatusCode)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, prefix := range transientPgPrefixes {
			if strings.HasPrefix(pgErr.Code, prefix) {
				return true
			}
		}
		return false
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

	// String-based heuristics for wrapped errors from transport clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"unexpected eof",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// Classify categorizes an error as "transient" or "permanent" for journal
// entries.
func Classify(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

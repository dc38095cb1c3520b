package retrieval

import "fmt"

// ErrorKind classifies how a retrieval call failed. KindNone means success.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindTimeout      ErrorKind = "timeout"
	KindRateLimited  ErrorKind = "rate_limited"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindServerError  ErrorKind = "server_error"
	KindNetwork      ErrorKind = "network"
	KindCancelled    ErrorKind = "cancelled"
	KindBadStatus    ErrorKind = "bad_status"
	KindBadPayload   ErrorKind = "bad_payload"
)

// Classify maps a non-2xx HTTP status code to an error kind.
func Classify(statusCode int) ErrorKind {
	switch statusCode {
	case 401:
		return KindUnauthorized
	case 404:
		return KindNotFound
	case 429:
		return KindRateLimited
	case 502, 503, 504:
		return KindServerError
	default:
		return KindBadStatus
	}
}

// IsRetryable reports whether another attempt may succeed. Rate limiting is
// terminal here: the caller is expected to back off globally rather than
// hammer the upstream inside one call.
func IsRetryable(kind ErrorKind) bool {
	switch kind {
	case KindServerError, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

func (k ErrorKind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// statusError carries a classified HTTP status through the retry loop.
type statusError struct {
	code int
	kind ErrorKind
}

func (e *statusError) Error() string {
	return fmt.Sprintf("retrieval: http %d (%s)", e.code, e.kind)
}

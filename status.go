package rubyshd

import "fmt"

// Status is the protocol-independent outcome of a request.  Each Protocol
// maps every Status to its own native wire code, so no Status is
// unrepresentable in either protocol.
type Status int

const (
	StatusSuccess Status = iota
	StatusTemporaryRedirect
	StatusPermanentRedirect
	StatusUnauthenticated
	StatusUnauthorized
	StatusNotFound
	StatusRequestTooLarge
	StatusRateLimit
	StatusOtherServerError
	StatusOtherClientError
)

var statusTokens = map[Status]string{
	StatusSuccess:           `success`,
	StatusTemporaryRedirect: `temporary_redirect`,
	StatusPermanentRedirect: `permanent_redirect`,
	StatusUnauthenticated:   `unauthenticated`,
	StatusUnauthorized:      `unauthorized`,
	StatusNotFound:          `not_found`,
	StatusRequestTooLarge:   `request_too_large`,
	StatusRateLimit:         `rate_limited`,
	StatusOtherServerError:  `other_server_error`,
	StatusOtherClientError:  `other_client_error`,
}

// String returns the human-readable rendering used in logs and in the
// fixed-body fallback of the error-document generator.
func (self Status) String() string {
	switch self {
	case StatusSuccess:
		return `Success`
	case StatusTemporaryRedirect, StatusPermanentRedirect:
		return `Redirecting...`
	case StatusUnauthenticated:
		return `Unauthenticated`
	case StatusUnauthorized:
		return `Unauthorized`
	case StatusNotFound:
		return `Not found`
	case StatusRequestTooLarge:
		return `Request too large`
	case StatusRateLimit:
		return `Rate limited`
	case StatusOtherServerError:
		return `Other server error`
	default:
		return `Other client error`
	}
}

// Token returns the snake_case token used in error-document filenames and as
// the response-control channel's status vocabulary.
func (self Status) Token() string {
	return statusTokens[self]
}

// ParseStatus resolves a status token back into a Status.
func ParseStatus(token string) (Status, error) {
	for status, candidate := range statusTokens {
		if candidate == token {
			return status, nil
		}
	}

	return StatusSuccess, fmt.Errorf("unknown status token %q", token)
}

package predict

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies every failure the client can return.
type Kind int

const (
	// KindConnectivity covers refused connections, DNS failures and a missing network.
	KindConnectivity Kind = iota
	// KindTimeout is a request that exceeded its deadline.
	KindTimeout
	// KindUnavailable is an HTTP 500.
	KindUnavailable
	// KindMaintenance is an HTTP 503.
	KindMaintenance
	// KindRateLimited is an HTTP 429.
	KindRateLimited
	// KindServer is any other non-200 status.
	KindServer
	// KindDecode is a success status whose body does not match the schema.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindMaintenance:
		return "maintenance"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// UserMessage is the user-presentable text for the kind. Timeouts read the
// same as connectivity failures.
func (k Kind) UserMessage() string {
	switch k {
	case KindConnectivity, KindTimeout:
		return "Unable to reach the fire risk service. Check your network connection and try again."
	case KindUnavailable:
		return "The fire risk service is temporarily unavailable. Please try again later."
	case KindMaintenance:
		return "The fire risk service is undergoing maintenance. Please try again shortly."
	case KindRateLimited:
		return "Too many requests to the fire risk service. Please wait a moment and try again."
	case KindDecode:
		return "The fire risk service returned data in an unexpected format."
	default:
		return "The fire risk service returned an unexpected error. Please try again later."
	}
}

// Error is returned by every Client operation. StatusCode and Body are kept
// for diagnostics and are zero for transport failures.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s: status %d: %s", e.Op, e.Kind, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage maps any error to user-presentable text, preferring the most
// specific classification available.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind.UserMessage()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout.UserMessage()
	}
	return KindServer.UserMessage()
}

func classifyStatus(code int) Kind {
	switch code {
	case http.StatusInternalServerError:
		return KindUnavailable
	case http.StatusServiceUnavailable:
		return KindMaintenance
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindServer
	}
}

func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	return KindConnectivity
}

package notificationhubs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

type (
	// ErrorKind identifies the category of a failure returned by the service
	// or the transport underneath it.
	ErrorKind int

	// Error is the failure type surfaced by every operation in this library.
	// It is constructed once when a response or transport failure is
	// classified and is never mutated afterwards; each retry attempt produces
	// its own value.
	Error struct {
		// Kind is the category of the failure
		Kind ErrorKind
		// StatusCode is the HTTP status of the response, or zero for transport failures
		StatusCode int
		// Code is the service sub code parsed from the response body, or zero when absent
		Code int
		// Message is the human readable failure description
		Message string
		// TrackingID correlates the failure with server side logs when available
		TrackingID string
		// RetryAfter is the server requested wait before the next attempt, or zero
		RetryAfter time.Duration

		transient bool
		cause     error
	}
)

const (
	// ErrorKindGeneric is an unmapped failure. Unknown failures are treated as
	// permanent so unexpected server behavior is never masked by retries.
	ErrorKindGeneric ErrorKind = iota
	// ErrorKindBadRequest is a malformed request rejected by the service
	ErrorKindBadRequest
	// ErrorKindUnauthorized is an authentication or authorization failure
	ErrorKindUnauthorized
	// ErrorKindThrottled is a quota induced rejection the service asks to back off from
	ErrorKindThrottled
	// ErrorKindEntityNotFound is returned when the addressed entity does not exist
	ErrorKindEntityNotFound
	// ErrorKindEntityAlreadyExists is returned when creating an entity that already exists
	ErrorKindEntityAlreadyExists
	// ErrorKindEntityGone signals the registration or channel is permanently
	// invalid and the device must be registered again
	ErrorKindEntityGone
	// ErrorKindInternalServerError is a retryable server side fault
	ErrorKindInternalServerError
	// ErrorKindServerBusy is a retryable unavailability signal (502, 503, 504)
	ErrorKindServerBusy
	// ErrorKindCommunication is a transport level failure such as a timeout or
	// connection reset
	ErrorKindCommunication
)

const (
	trackingIDHeader = "TrackingId"
	retryAfterHeader = "Retry-After"

	defaultThrottleBackoff = 10 * time.Second
)

var subCodeRegex = regexp.MustCompile(`SubCode=(\d+)`)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindBadRequest:
		return "BadRequest"
	case ErrorKindUnauthorized:
		return "Unauthorized"
	case ErrorKindThrottled:
		return "Throttled"
	case ErrorKindEntityNotFound:
		return "EntityNotFound"
	case ErrorKindEntityAlreadyExists:
		return "EntityAlreadyExists"
	case ErrorKindEntityGone:
		return "EntityGone"
	case ErrorKindInternalServerError:
		return "InternalServerError"
	case ErrorKindServerBusy:
		return "ServerBusy"
	case ErrorKindCommunication:
		return "CommunicationError"
	default:
		return "GenericError"
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("notificationhubs: %s: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.TrackingID != "" {
		msg += fmt.Sprintf(" (trackingId %s)", e.TrackingID)
	}
	return msg
}

// Unwrap exposes the underlying transport error when one exists
func (e *Error) Unwrap() error {
	return e.cause
}

// IsTransient reports whether a retry of the same operation may succeed
// without caller intervention
func (e *Error) IsTransient() bool {
	return e.transient
}

// classifyResponse maps a non-success HTTP response onto a typed *Error. The
// body has already been drained by the caller.
func classifyResponse(res *http.Response, body []byte) *Error {
	retryAfter := parseRetryAfter(res.Header.Get(retryAfterHeader))

	e := &Error{
		StatusCode: res.StatusCode,
		Code:       parseSubCode(body),
		Message:    messageFromBody(res, body),
		TrackingID: res.Header.Get(trackingIDHeader),
	}

	switch res.StatusCode {
	case http.StatusBadRequest:
		e.Kind = ErrorKindBadRequest
	case http.StatusUnauthorized:
		e.Kind = ErrorKindUnauthorized
	case http.StatusForbidden:
		// the legacy API reports throttling as a 403 carrying Retry-After
		if retryAfter > 0 {
			e.Kind = ErrorKindThrottled
			e.transient = true
			e.RetryAfter = retryAfter
		} else {
			e.Kind = ErrorKindUnauthorized
		}
	case http.StatusNotFound:
		e.Kind = ErrorKindEntityNotFound
	case http.StatusConflict:
		e.Kind = ErrorKindEntityAlreadyExists
	case http.StatusGone:
		e.Kind = ErrorKindEntityGone
	case http.StatusRequestTimeout:
		e.Kind = ErrorKindCommunication
		e.transient = true
		e.RetryAfter = retryAfter
	case http.StatusTooManyRequests:
		e.Kind = ErrorKindThrottled
		e.transient = true
		if retryAfter > 0 {
			e.RetryAfter = retryAfter
		} else {
			e.RetryAfter = defaultThrottleBackoff
		}
	case http.StatusInternalServerError:
		e.Kind = ErrorKindInternalServerError
		e.transient = true
		e.RetryAfter = retryAfter
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		e.Kind = ErrorKindServerBusy
		e.transient = true
		e.RetryAfter = retryAfter
	default:
		// fail closed on anything unmapped
		e.Kind = ErrorKindGeneric
	}

	return e
}

// classifyTransportError maps a failure of the HTTP round trip itself onto a
// typed *Error. Context cancellation is the caller's abort signal, not a
// service failure, so it is returned untouched by the pipeline and never
// reaches this function.
func classifyTransportError(err error) *Error {
	msg := "transport failure: " + err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out: " + err.Error()
	}
	return &Error{
		Kind:      ErrorKindCommunication,
		Message:   msg,
		transient: true,
		cause:     err,
	}
}

func messageFromBody(res *http.Response, body []byte) string {
	if len(body) == 0 {
		return http.StatusText(res.StatusCode)
	}
	const maxExcerpt = 1024
	if len(body) > maxExcerpt {
		body = body[:maxExcerpt]
	}
	return string(body)
}

func parseSubCode(body []byte) int {
	match := subCodeRegex.FindSubmatch(body)
	if match == nil {
		return 0
	}
	code, err := strconv.Atoi(string(match[1]))
	if err != nil {
		return 0
	}
	return code
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsTransient reports whether err is a typed error flagged as retryable
func IsTransient(err error) bool {
	e, ok := asError(err)
	return ok && e.IsTransient()
}

// IsNotFound reports whether err signals the addressed entity does not exist
func IsNotFound(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == ErrorKindEntityNotFound
}

// IsAlreadyExists reports whether err signals a create conflict
func IsAlreadyExists(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == ErrorKindEntityAlreadyExists
}

// IsGone reports whether err signals the registration or channel is
// permanently invalid and must be recreated
func IsGone(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == ErrorKindEntityGone
}

// IsUnauthorized reports whether err signals a credential problem
func IsUnauthorized(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == ErrorKindUnauthorized
}

// IsThrottled reports whether err signals the service asked the caller to back off
func IsThrottled(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == ErrorKindThrottled
}

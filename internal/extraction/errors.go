package extraction

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrNoPages is returned when an extraction is attempted with no page images.
// It is raised before any network call is made.
var ErrNoPages = errors.New("at least one page image is required")

// Kind classifies an extraction failure so the interactive layer can react
// differently to each class (retry prompt, credential switch, etc).
type Kind string

const (
	// KindMalformed means the model responded but its output could not be
	// parsed as the expected structured schema.
	KindMalformed Kind = "malformed"
	// KindEntitlement means the model reported a "requested entity not
	// found" class error, usually a key without access to the model.
	KindEntitlement Kind = "entitlement"
	// KindQuota means the request was rejected for rate or quota reasons.
	KindQuota Kind = "quota"
	// KindGeneric covers network failures and anything else.
	KindGeneric Kind = "generic"
)

// Error is a classified extraction failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the classification of err, or KindGeneric when err carries
// no classification.
func KindOf(err error) Kind {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr.Kind
	}
	return KindGeneric
}

// quotaSignals are substrings that identify rate/quota exhaustion in error
// messages when no structured status code is available.
var quotaSignals = []string{
	"quota",
	"resource_exhausted",
	"resource has been exhausted",
	"rate limit",
	"429",
}

// entitlementSignals identify key/entitlement failures by message.
var entitlementSignals = []string{
	"requested entity was not found",
	"api key not valid",
	"permission denied",
}

// classify wraps a model call failure with its taxonomy kind. Structured
// googleapi status codes take precedence over message matching.
func classify(err error) *Error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 429:
			return &Error{Kind: KindQuota, Message: "model quota exhausted", Cause: err}
		case 403, 404:
			return &Error{Kind: KindEntitlement, Message: "model not available for this key", Cause: err}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, signal := range quotaSignals {
		if strings.Contains(msg, signal) {
			return &Error{Kind: KindQuota, Message: "model quota exhausted", Cause: err}
		}
	}
	for _, signal := range entitlementSignals {
		if strings.Contains(msg, signal) {
			return &Error{Kind: KindEntitlement, Message: "model not available for this key", Cause: err}
		}
	}

	return &Error{Kind: KindGeneric, Message: "calling vision model", Cause: err}
}

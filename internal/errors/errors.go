package errors

import (
	"errors"
	"fmt"
)

// Machine-readable reason codes surfaced in error responses.
const (
	ReasonNotFound     = "not_found"
	ReasonInactive     = "inactive"
	ReasonExpired      = "expired"
	ReasonIPRestricted = "ip_restricted"
	ReasonTampered     = "tampered"
	ReasonGeneralError = "general_error"
)

// ErrLinkNotFound is returned when a short code doesn't exist in the database.
var ErrLinkNotFound = errors.New("short link not found")

// ErrLinkInactive is returned when a link has been deactivated, including a
// one-time-use link that has already been consumed.
var ErrLinkInactive = errors.New("short link is not active")

// ErrLinkExpired is returned when a link's expiry timestamp has passed.
var ErrLinkExpired = errors.New("short link has expired")

// ErrIPRestricted is returned when the access policy denies the client IP.
var ErrIPRestricted = errors.New("access denied by IP restriction")

// ErrTampered is returned when integrity verification fails on a link with
// spoofing protection enabled.
var ErrTampered = errors.New("link integrity verification failed")

// ErrCodeGenerationFailed is returned when no unique short code could be
// generated within the retry cap. This indicates the code namespace is too
// small for the number of stored links.
var ErrCodeGenerationFailed = errors.New("failed to generate unique short code")

// ErrCodeTaken is returned when a requested custom code already exists.
var ErrCodeTaken = errors.New("short code already in use")

// ErrInvalidVariants is returned when an A/B test is requested with fewer
// than two variants or weights that do not sum to 100.
var ErrInvalidVariants = errors.New("variant weights must sum to 100 across at least two variants")

// Reason maps an error to its machine-readable reason code.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrLinkNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrLinkInactive):
		return ReasonInactive
	case errors.Is(err, ErrLinkExpired):
		return ReasonExpired
	case errors.Is(err, ErrIPRestricted):
		return ReasonIPRestricted
	case errors.Is(err, ErrTampered):
		return ReasonTampered
	default:
		return ReasonGeneralError
	}
}

// ErrClickRecordingFailed is returned when persisting a click event fails.
type ErrClickRecordingFailed struct {
	LinkID uint
	Reason string
}

func (e ErrClickRecordingFailed) Error() string {
	return fmt.Sprintf("failed to record click for link %d: %s", e.LinkID, e.Reason)
}

// ErrConfigLoad is returned when configuration loading fails.
type ErrConfigLoad struct {
	Path   string
	Reason string
}

func (e ErrConfigLoad) Error() string {
	return fmt.Sprintf("failed to load config from %s: %s", e.Path, e.Reason)
}

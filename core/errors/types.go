// Package errors implements the failure taxonomy shared by the conversation core.
//
// Every error carries a Kind describing what went wrong (unknown skill, disabled
// skill, missing integration credentials, ...) and a Tier describing how a caller
// should react to it (retry silently, surface to the user, back off).
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Kind identifies the failure category.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindDisabled
	KindConfiguration
	KindRemoteAPI
	KindTimeout
	KindStorageUnavailable
	// KindClassificationFallback is informational: nothing matched and the
	// general agent took the turn.
	KindClassificationFallback
	KindInvalidInput
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown",
	KindNotFound:               "not_found",
	KindDisabled:               "disabled",
	KindConfiguration:          "configuration_error",
	KindRemoteAPI:              "remote_api_error",
	KindTimeout:                "timeout",
	KindStorageUnavailable:     "storage_unavailable",
	KindClassificationFallback: "classification_fallback",
	KindInvalidInput:           "invalid_input",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ErrorTier represents how an error should be handled.
type ErrorTier int

const (
	// TierTransient errors are retried silently.
	TierTransient ErrorTier = iota

	// TierPermanent errors will not resolve with retry.
	TierPermanent

	// TierUserFixable errors need a settings or credentials change.
	TierUserFixable

	// TierExternalRateLimit indicates a remote service asked us to slow down.
	TierExternalRateLimit

	// TierExternalDegrading indicates 5xx responses or partial outages.
	TierExternalDegrading
)

var tierNames = map[ErrorTier]string{
	TierTransient:         "transient",
	TierPermanent:         "permanent",
	TierUserFixable:       "user_fixable",
	TierExternalRateLimit: "external_rate_limit",
	TierExternalDegrading: "external_degrading",
}

func (t ErrorTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// TierBehavior defines the retry policy for an error tier.
type TierBehavior struct {
	ShouldRetry bool
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultBehaviors returns the default behavior for each error tier.
func DefaultBehaviors() map[ErrorTier]TierBehavior {
	return map[ErrorTier]TierBehavior{
		TierTransient: {
			ShouldRetry: true,
			MaxRetries:  3,
			BaseBackoff: 100 * time.Millisecond,
			MaxBackoff:  5 * time.Second,
		},
		TierPermanent:   {},
		TierUserFixable: {},
		TierExternalRateLimit: {
			ShouldRetry: true,
			MaxRetries:  5,
			BaseBackoff: time.Second,
			MaxBackoff:  60 * time.Second,
		},
		TierExternalDegrading: {
			ShouldRetry: true,
			MaxRetries:  3,
			BaseBackoff: 500 * time.Millisecond,
			MaxBackoff:  30 * time.Second,
		},
	}
}

var kindTiers = map[Kind]ErrorTier{
	KindNotFound:               TierPermanent,
	KindDisabled:               TierPermanent,
	KindConfiguration:          TierUserFixable,
	KindRemoteAPI:              TierPermanent,
	KindTimeout:                TierTransient,
	KindStorageUnavailable:     TierTransient,
	KindClassificationFallback: TierPermanent,
	KindInvalidInput:           TierPermanent,
}

// TieredError is a classified error.
type TieredError struct {
	Kind       Kind
	Tier       ErrorTier
	Message    string
	Underlying error
	StatusCode int
	Context    map[string]string
}

// Error implements the error interface.
func (e *TieredError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TieredError) Unwrap() error {
	return e.Underlying
}

// Is matches another TieredError of the same Kind. Errors of unknown kind
// fall back to comparing tiers.
func (e *TieredError) Is(target error) bool {
	var te *TieredError
	if !errors.As(target, &te) {
		return false
	}
	if e.Kind == KindUnknown || te.Kind == KindUnknown {
		return e.Tier == te.Tier
	}
	return e.Kind == te.Kind
}

// New creates an error of the given kind with its default tier.
func New(kind Kind, message string) *TieredError {
	return Wrap(kind, message, nil)
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, underlying error) *TieredError {
	tier, ok := kindTiers[kind]
	if !ok {
		tier = TierPermanent
	}
	return &TieredError{
		Kind:       kind,
		Tier:       tier,
		Message:    message,
		Underlying: underlying,
		Context:    make(map[string]string),
	}
}

// NewRemoteAPIError reports a non-2xx response. The tier follows the status:
// 429 backs off, 5xx is degrading and anything else is permanent.
func NewRemoteAPIError(status int, message string) *TieredError {
	e := New(KindRemoteAPI, message).WithStatusCode(status)
	e.Tier = TierForStatus(status)
	return e
}

// TierForStatus maps an HTTP status code onto a tier.
func TierForStatus(status int) ErrorTier {
	switch {
	case status == http.StatusTooManyRequests:
		return TierExternalRateLimit
	case status == http.StatusRequestTimeout:
		return TierTransient
	case status >= 500:
		return TierExternalDegrading
	default:
		return TierPermanent
	}
}

// WithStatusCode adds an HTTP status code to the error.
func (e *TieredError) WithStatusCode(code int) *TieredError {
	e.StatusCode = code
	return e
}

// WithContext adds context key-value pairs to the error.
func (e *TieredError) WithContext(key, value string) *TieredError {
	e.Context[key] = value
	return e
}

// Classify normalizes any error into a TieredError. Context deadlines,
// cancellation and network timeouts become KindTimeout.
func Classify(err error) *TieredError {
	if err == nil {
		return nil
	}
	var te *TieredError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(KindTimeout, "operation abandoned", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Wrap(KindTimeout, "network timeout", err)
	}
	return Wrap(KindUnknown, "unexpected failure", err)
}

// KindOf extracts the Kind of an error.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	return Classify(err).Kind
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// GetTier extracts the ErrorTier from an error, defaulting to Permanent.
func GetTier(err error) ErrorTier {
	var te *TieredError
	if errors.As(err, &te) {
		return te.Tier
	}
	return TierPermanent
}

// GetBehavior returns the behavior for an error's tier.
func GetBehavior(err error) TierBehavior {
	return DefaultBehaviors()[GetTier(Classify(err))]
}

// IsRetryable checks if an error should be retried based on its tier.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return GetBehavior(err).ShouldRetry
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrNotFound           = New(KindNotFound, "not found")
	ErrDisabled           = New(KindDisabled, "disabled")
	ErrMissingConfig      = New(KindConfiguration, "missing configuration")
	ErrRemoteAPI          = New(KindRemoteAPI, "remote api error")
	ErrTimeout            = New(KindTimeout, "operation timed out")
	ErrStorageUnavailable = New(KindStorageUnavailable, "storage unavailable")
	ErrInvalidInput       = New(KindInvalidInput, "invalid input")
)

package domain

import "fmt"

// Kind groups error codes into the classes callers branch on.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindInvalidState        Kind = "invalid_state"
	KindValidation          Kind = "validation"
	KindExternalUnavailable Kind = "external_unavailable"
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
)

// AppError carries a stable machine-readable Code and a human Message.
// Two AppErrors match under errors.Is when their codes are equal.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Meta    map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of e that carries cause.
func (e *AppError) Wrap(cause error) error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithMeta returns a copy of e with meta attached.
func (e *AppError) WithMeta(meta map[string]string) error {
	cp := *e
	cp.Meta = meta
	return &cp
}

func newErr(kind Kind, code, msg string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: msg}
}

var (
	ErrEventNotFound      = newErr(KindNotFound, "event.not_found", "event not found")
	ErrIntentNotFound     = newErr(KindNotFound, "intent.not_found", "payment intent not found")
	ErrEnrollmentNotFound = newErr(KindNotFound, "enrollment.not_found", "enrollment not found")

	ErrAlreadyEnrolled  = newErr(KindConflict, "enrollment.exists", "already enrolled in this event")
	ErrDuplicatePending = newErr(KindConflict, "payment.pending", "a payment for this event is already pending")
	ErrEventFull        = newErr(KindConflict, "event.full", "event is full")

	ErrEventNotOpen    = newErr(KindInvalidState, "event.not_open", "event is not open for joining")
	ErrEventCompleted  = newErr(KindInvalidState, "event.completed", "completed events cannot be modified")
	ErrPaymentRequired = newErr(KindInvalidState, "event.payment_required", "event requires payment")
	ErrEventIsFree     = newErr(KindInvalidState, "event.free", "event has no joining fee")

	ErrProviderUnavailable = newErr(KindExternalUnavailable, "payment.provider_unavailable", "payment provider unavailable, try again")

	ErrSignatureInvalid = newErr(KindValidation, "webhook.signature_invalid", "webhook signature verification failed")
	ErrMalformedWebhook = newErr(KindValidation, "webhook.malformed", "webhook payload is malformed")

	ErrUnauthenticated = newErr(KindUnauthenticated, "auth.unauthorized", "unauthorized")
	ErrForbidden       = newErr(KindForbidden, "auth.forbidden", "forbidden")
)

// ErrValidation builds a request validation error.
func ErrValidation(msg string) error {
	return newErr(KindValidation, "event.invalid", msg)
}

// ErrValidationMeta builds a request validation error with per-field details.
func ErrValidationMeta(msg string, meta map[string]string) error {
	return newErr(KindValidation, "event.invalid", msg).WithMeta(meta)
}

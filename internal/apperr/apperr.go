// Package apperr defines the typed errors every core operation returns.
// The core never renders messages for display; callers translate the
// stable code into whatever the UI needs.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindUnknown covers anything that does not match a known kind.
	KindUnknown Kind = iota
	// KindCancelled marks user abandonment (picker or crop dismissed).
	// Not a failure of the system; the UI may stay silent on it.
	KindCancelled
	// KindValidation marks local validation failures detected before any
	// network call.
	KindValidation
	// KindPermission marks platform permission failures. Terminal for the
	// current attempt; the caller re-prompts or guides to settings.
	KindPermission
	// KindRemote marks errors propagated unchanged from the remote
	// collaborator.
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Code is a stable, localizable reason code.
type Code string

const (
	CodePickerCancelled     Code = "file_picker_cancelled"
	CodePickerFailed        Code = "file_picker_failed"
	CodeImageTooLarge       Code = "image_too_large"
	CodeUnsupportedFormat   Code = "unsupported_format"
	CodeConversionFailed    Code = "image_conversion_failed"
	CodeCropCancelled       Code = "image_crop_cancelled"
	CodeNoImageSelected     Code = "no_image_selected"
	CodePermissionDenied    Code = "permission_denied"
	CodePermissionPermanent Code = "permission_permanently_denied"
	CodeSessionConflict     Code = "session_conflict"
	CodeSessionNotFound     Code = "session_not_found"
	CodeSessionExpired      Code = "session_expired"
	CodeValidationRejected  Code = "validation_rejected"
	CodeConflict            Code = "conflict"
	CodeServerUnavailable   Code = "server_unavailable"
	CodeNetworkTimeout      Code = "network_timeout"
	CodeNotFound            Code = "not_found"
	CodeUnknown             Code = "unknown_error"
)

type Error struct {
	Kind Kind
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func Wrap(kind Kind, code Code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

// KindOf extracts the Kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf extracts the Code of err, or CodeUnknown when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCancelled reports whether err is plain user abandonment.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// Normalize returns err unchanged when it already carries a known kind,
// and otherwise wraps it as a generic unknown error so internal shapes
// never leak to the caller.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(KindUnknown, CodeUnknown, "unexpected error", err)
}

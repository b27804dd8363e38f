// Package apierr classifies failures of the remote game, transcription, and
// audio-stream services.
//
// Every client in this module returns *Error values so that callers can branch
// on the failure class with [errors.Is] against the sentinel values below
// without inspecting message text:
//
//	if errors.Is(err, apierr.ErrTranscriptionEmpty) {
//	    // service was reached but heard nothing usable
//	}
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind identifies the failure class of an [Error].
type Kind int

const (
	// KindTransport means the service could not be reached or did not answer
	// in time.
	KindTransport Kind = iota + 1

	// KindService means the service answered with a non-success status. The
	// server-supplied detail message is kept in [Error.Detail].
	KindService

	// KindValidation means the request was rejected locally before any
	// network call was made.
	KindValidation

	// KindStream means the audio stream carried an explicit error marker.
	KindStream

	// KindDecode means a single stream fragment could not be decoded.
	KindDecode

	// KindTranscriptionEmpty means the transcription service was reached but
	// produced no usable text.
	KindTranscriptionEmpty

	// KindSchema means a response body did not match the expected schema.
	KindSchema
)

// String returns the short name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindService:
		return "service"
	case KindValidation:
		return "validation"
	case KindStream:
		return "stream"
	case KindDecode:
		return "decode"
	case KindTranscriptionEmpty:
		return "transcription_empty"
	case KindSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// Sentinels for use with errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrTransport          = &Error{Kind: KindTransport}
	ErrService            = &Error{Kind: KindService}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrStream             = &Error{Kind: KindStream}
	ErrDecode             = &Error{Kind: KindDecode}
	ErrTranscriptionEmpty = &Error{Kind: KindTranscriptionEmpty}
	ErrSchema             = &Error{Kind: KindSchema}
)

// Error is a classified remote-call failure.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Op names the operation that failed (e.g. "send turn").
	Op string

	// Status is the HTTP status code for KindService errors, zero otherwise.
	Status int

	// Detail is the human-readable message supplied by the server or decoded
	// from a stream error marker.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	switch {
	case e.Status != 0 && e.Detail != "":
		msg += fmt.Sprintf(" (HTTP %d): %s", e.Status, e.Detail)
	case e.Status != 0:
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	case e.Detail != "":
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Detail == "" && t.Err == nil && t.Status == 0
}

// KindOf returns the Kind of the first *Error in err's chain, or zero when
// err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Transport wraps err as a KindTransport error.
func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// Service builds a KindService error from an HTTP status and detail message.
func Service(op string, status int, detail string) *Error {
	return &Error{Kind: KindService, Op: op, Status: status, Detail: detail}
}

// Validation builds a KindValidation error.
func Validation(op, detail string) *Error {
	return &Error{Kind: KindValidation, Op: op, Detail: detail}
}

// Schema wraps a response decoding failure.
func Schema(op string, err error) *Error {
	return &Error{Kind: KindSchema, Op: op, Err: err}
}

// Classify converts an error returned by an HTTP round trip into a
// KindTransport error. Errors that are already classified are returned
// unchanged. Deadline and net timeouts are transport failures; nothing is
// retried.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTransport, Op: op, Detail: "timed out", Err: err}
	case errors.As(err, &ne) && ne.Timeout():
		return &Error{Kind: KindTransport, Op: op, Detail: "timed out", Err: err}
	}
	return Transport(op, err)
}

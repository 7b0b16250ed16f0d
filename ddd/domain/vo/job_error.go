package vo

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindAlreadyActive   ErrorKind = "already_active"
	KindValidation      ErrorKind = "validation"
	KindDownloadFailed  ErrorKind = "download_failed"
	KindProbeFailed     ErrorKind = "probe_failed"
	KindTranscodeFailed ErrorKind = "transcode_failed"
	KindUploadFailed    ErrorKind = "upload_failed"
	KindCancelled       ErrorKind = "cancelled"
	KindBusy            ErrorKind = "busy"
	KindNotFound        ErrorKind = "not_found"
	KindUnauthorized    ErrorKind = "unauthorized"
)

// TerminalMessage is the distinct user-facing line posted for each kind.
func (k ErrorKind) TerminalMessage() string {
	switch k {
	case KindAlreadyActive:
		return "A compression is already in progress. Wait for it to finish or cancel it."
	case KindValidation:
		return "This file can't be compressed: it is too large or not a supported video."
	case KindDownloadFailed:
		return "Could not download your file."
	case KindProbeFailed:
		return "Could not read the video duration."
	case KindTranscodeFailed:
		return "Compression failed."
	case KindUploadFailed:
		return "Could not upload the compressed file."
	case KindCancelled:
		return "Compression cancelled."
	case KindBusy:
		return "The service is busy. Try again later."
	case KindNotFound:
		return "Nothing to act on: no pending session or job."
	case KindUnauthorized:
		return "You are not allowed to do that."
	default:
		return "Something went wrong."
	}
}

// JobError 任务错误：分类 + 发生阶段 + 原因
type JobError struct {
	Kind   ErrorKind
	Stage  Stage
	Reason string
	Err    error
}

// NewJobError builds a classified error.
func NewJobError(kind ErrorKind, stage Stage, reason string, err error) *JobError {
	return &JobError{Kind: kind, Stage: stage, Reason: reason, Err: err}
}

func (e *JobError) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg += " at " + string(e.Stage)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *JobError) Unwrap() error { return e.Err }

// Is matches any JobError of the same kind, so errors.Is(err, ErrCancelled) works.
func (e *JobError) Is(target error) bool {
	t, ok := target.(*JobError)
	return ok && t.Kind == e.Kind
}

var (
	ErrAlreadyActive = &JobError{Kind: KindAlreadyActive}
	ErrValidation    = &JobError{Kind: KindValidation}
	ErrCancelled     = &JobError{Kind: KindCancelled}
	ErrBusy          = &JobError{Kind: KindBusy}
	ErrNotFound      = &JobError{Kind: KindNotFound}
	ErrUnauthorized  = &JobError{Kind: KindUnauthorized}
)

// KindOf extracts the kind of a classified error, "" otherwise.
func KindOf(err error) ErrorKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return ""
}

// Validationf is shorthand for a ValidationError with a formatted reason.
func Validationf(format string, args ...interface{}) *JobError {
	return &JobError{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

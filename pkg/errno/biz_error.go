package errno

import (
	"errors"
	"fmt"
)

// BizError 业务错误，携带错误码和原始错误
type BizError struct {
	errno *Errno
	cause error
}

// NewBizError 包装业务错误
func NewBizError(code *Errno, cause error) *BizError {
	if code == nil {
		code = ErrUnknown
	}
	return &BizError{errno: code, cause: cause}
}

func (e *BizError) Error() string {
	if e.cause == nil {
		return e.errno.Message
	}
	return fmt.Sprintf("%s: %v", e.errno.Message, e.cause)
}

func (e *BizError) Unwrap() error { return e.cause }

// Errno 返回错误码
func (e *BizError) Errno() *Errno { return e.errno }

// Decode resolves any error into an Errno and a user-facing message.
func Decode(err error) (*Errno, string) {
	if err == nil {
		return OK, OK.Message
	}
	var biz *BizError
	if errors.As(err, &biz) {
		return biz.errno, biz.Error()
	}
	var code *Errno
	if errors.As(err, &code) {
		return code, code.Message
	}
	return ErrInternalServer, err.Error()
}

var kindErrno = map[string]*Errno{
	"already_active":   ErrAlreadyActive,
	"validation":       ErrMediaInvalid,
	"download_failed":  ErrDownloadFailed,
	"probe_failed":     ErrProbeFailed,
	"transcode_failed": ErrTranscodeFailed,
	"upload_failed":    ErrUploadFailed,
	"cancelled":        ErrCancelled,
	"busy":             ErrBusy,
	"not_found":        ErrJobNotFound,
	"unauthorized":     ErrNotAuthorizedJob,
}

// FromKind wraps cause with the errno registered for a job error kind.
// Unknown kinds become ErrInternalServer.
func FromKind(kind string, cause error) *BizError {
	code, ok := kindErrno[kind]
	if !ok {
		code = ErrInternalServer
	}
	return NewBizError(code, cause)
}

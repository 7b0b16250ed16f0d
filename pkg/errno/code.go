package errno

import "net/http"

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// HTTPStatus maps the code onto the status the REST layer answers with.
func (e *Errno) HTTPStatus() int {
	if e == nil {
		return http.StatusOK
	}
	if e.Code >= 200 && e.Code < 600 {
		return e.Code
	}
	if s, ok := bizStatus[e.Code]; ok {
		return s
	}
	return http.StatusBadRequest
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrInvalidParam = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrUnauthorized = &Errno{Code: 401, Message: "Unauthorized"}
	ErrForbidden    = &Errno{Code: 403, Message: "Forbidden"}
	ErrNotFound     = &Errno{Code: 404, Message: "Not found"}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrDatabase       = &Errno{Code: 501, Message: "Database error"}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error"}

	// 业务错误码
	ErrMissingParam     = &Errno{Code: 20001, Message: "Missing required parameter"}
	ErrUserIDRequired   = &Errno{Code: 20002, Message: "User ID is required"}
	ErrAlreadyActive    = &Errno{Code: 20003, Message: "A compression is already in progress for this user"}
	ErrMediaInvalid     = &Errno{Code: 20004, Message: "Invalid media or compression settings"}
	ErrSessionNotFound  = &Errno{Code: 20005, Message: "No pending compression session"}
	ErrJobNotFound      = &Errno{Code: 20006, Message: "No active compression job"}
	ErrBusy             = &Errno{Code: 20007, Message: "Service is busy, try again later"}
	ErrDownloadFailed   = &Errno{Code: 20008, Message: "Download failed"}
	ErrProbeFailed      = &Errno{Code: 20009, Message: "Could not read media duration"}
	ErrTranscodeFailed  = &Errno{Code: 20010, Message: "Compression failed"}
	ErrUploadFailed     = &Errno{Code: 20011, Message: "Upload failed"}
	ErrCancelled        = &Errno{Code: 20012, Message: "Compression cancelled"}
	ErrNotAuthorizedJob = &Errno{Code: 20013, Message: "Not allowed to cancel this job"}
)

var bizStatus = map[int]int{
	20001: http.StatusBadRequest,
	20002: http.StatusUnauthorized,
	20003: http.StatusConflict,
	20004: http.StatusUnprocessableEntity,
	20005: http.StatusNotFound,
	20006: http.StatusNotFound,
	20007: http.StatusServiceUnavailable,
	20008: http.StatusBadGateway,
	20009: http.StatusUnprocessableEntity,
	20010: http.StatusInternalServerError,
	20011: http.StatusBadGateway,
	20012: http.StatusConflict,
	20013: http.StatusForbidden,
}

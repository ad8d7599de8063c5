// 包 geoerr：统一错误分类，调用方通过 errors.Is 判定类别
package geoerr

import (
	"errors"
	"fmt"
	"net/http"
)

// 文档注释：错误类别（哨兵值）
// 约束：InvalidArgument/NotFound 永不重试；BackendUnavailable 表示存储重试已耗尽；
// MalformedShape 表示边界追踪得到的边集合无法闭合。
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrMalformedShape     = errors.New("malformed shape")
)

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedShape, fmt.Sprintf(format, args...))
}

// Unavailable：包装最后一次存储错误，保留原始错误链
func Unavailable(cause error) error {
	if cause == nil {
		return ErrBackendUnavailable
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, cause)
}

// 文档注释：错误类别到 HTTP 状态码
// 约束：未归类错误（含上下文取消）统一返回 500。
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrMalformedShape):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

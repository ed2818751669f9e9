package errors

import "errors"

// RetryableError 标记可重试的错误（限流、超时、服务端瞬时故障）
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError 包装为可重试错误
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err}
}

// IsRetryableError 检查错误链中是否存在可重试标记
func IsRetryableError(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

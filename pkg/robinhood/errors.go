package robinhood

import "errors"

// 客户端错误分类，调用方通过 errors.Is 区分失败原因。
var (
	// ErrCircuitOpen 熔断器处于打开状态，请求未发出。
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrUnauthorized 认证失败（401/403）。
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound 请求的数据不存在（404 或结果为空）。
	ErrNotFound = errors.New("not found")
	// ErrRateLimited 触发服务端限流（429）。
	ErrRateLimited = errors.New("rate limited")
	// ErrServerError 服务端错误（5xx）。
	ErrServerError = errors.New("server error")
	// ErrRequestFailed 其余终态失败。
	ErrRequestFailed = errors.New("request failed")
)

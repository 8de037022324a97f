package storage

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Provider 是内容寻址存储提供方驱动的统一接口。每个驱动封装一种
// 提供方特有的请求形状，返回其不透明的 CID。
type Provider interface {
	// Name 返回供日志与回执使用的提供方名称。
	Name() string
	// Priority 返回提供方的优先级（越小越先尝试，须全局唯一）。
	Priority() int
	// Upload 上传内容字节并返回提供方 CID。
	Upload(ctx context.Context, b []byte, filename string, metadata map[string]string) (cid string, err error)
	// Probe 做一次轻量的可用性探测。
	Probe(ctx context.Context) error
}

// UploadResult 表示路由器一次成功上传的回执。
type UploadResult struct {
	CID        string    `json:"cid"`
	Provider   string    `json:"provider"`
	Size       int64     `json:"size"`
	GatewayURL string    `json:"gatewayUrl"`
	Timestamp  time.Time `json:"timestamp"`
	// Queued 为 true 表示远端提供方全部失败，任务已进入重试队列，
	// 本回执中的 CID 来自本地回退存储。
	Queued        bool `json:"queued,omitempty"`
	QueuePosition int  `json:"queuePosition,omitempty"`
}

// HTTPStatusError 表示提供方返回的非 2xx HTTP 响应。
// 状态码 >= 500 视为可重试，4xx 视为不可重试。
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("提供方返回 HTTP %v: %v", e.StatusCode, e.Body)
}

// isRetriableError 对上传失败做重试分类：网络层错误（连接拒绝、超时、
// 域名解析失败）与 HTTP >= 500 可重试；其余（4xx、配置问题）不可重试。
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	cause := errors.Cause(err)

	var statusErr *HTTPStatusError
	if errors.As(cause, &statusErr) {
		return statusErr.StatusCode >= 500
	}

	if errors.Is(cause, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(cause, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(cause, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(cause, &dnsErr) {
		return true
	}

	return false
}

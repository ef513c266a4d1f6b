package adapter

import (
	"context"
	"time"

	"phincommerce/internal/pkg/httpclient"
	"phincommerce/internal/service/orchestrator/domain"
)

// classify 将 HTTP 调用错误映射为带标签的结果：
// 4xx 是下游的业务拒绝，其余（5xx、超时、连接失败、响应无法解析）都是传输错误。
func classify(err error) domain.CallResult {
	if err == nil {
		return domain.Ok()
	}
	if se, ok := httpclient.AsStatusError(err); ok && se.IsClientError() {
		reason := se.Body
		if reason == "" {
			reason = se.Error()
		}
		return domain.Rejected(reason)
	}
	return domain.TransportFailure(err)
}

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// internal/service/orchestrator/domain/port/inventory.go
package port

import (
	"context"

	"phincommerce/internal/service/orchestrator/domain"
)

// InventoryService 是库存服务的出站端口。
// 所有方法都不返回 error，传输错误折叠为 domain.TransportFailure。
type InventoryService interface {
	CheckAvailability(ctx context.Context, productID int64, quantity int) domain.CallResult
	Reserve(ctx context.Context, productID int64, quantity int) domain.CallResult
	Release(ctx context.Context, productID int64, quantity int) domain.CallResult
}

package adapter

import (
	"context"
	"fmt"
	"time"

	"phincommerce/internal/pkg/discovery"
	"phincommerce/internal/pkg/httpclient"
	"phincommerce/internal/pkg/rule"
	"phincommerce/internal/service/orchestrator/domain"
)

// InventoryHTTPAdapter 实现了 port.InventoryService 接口。
type InventoryHTTPAdapter struct {
	client      *httpclient.Client
	resolver    discovery.Resolver
	serviceName string
	stockRule   *rule.StockRule
	callTimeout time.Duration
}

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器。stockRule 为 nil 时使用默认规则。
func NewInventoryHTTPAdapter(client *httpclient.Client, resolver discovery.Resolver, serviceName string, stockRule *rule.StockRule, callTimeout time.Duration) (*InventoryHTTPAdapter, error) {
	if stockRule == nil {
		var err error
		if stockRule, err = rule.NewStockRule(""); err != nil {
			return nil, err
		}
	}
	return &InventoryHTTPAdapter{
		client:      client,
		resolver:    resolver,
		serviceName: serviceName,
		stockRule:   stockRule,
		callTimeout: callTimeout,
	}, nil
}

func (a *InventoryHTTPAdapter) productURL(ctx context.Context, productID int64, suffix string) (string, error) {
	baseURL, err := a.resolver.Resolve(ctx, a.serviceName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/v1/products/%d%s", baseURL, productID, suffix), nil
}

// CheckAvailability 查询商品并用库存规则判断是否可售
func (a *InventoryHTTPAdapter) CheckAvailability(ctx context.Context, productID int64, quantity int) domain.CallResult {
	ctx, cancel := withCallTimeout(ctx, a.callTimeout)
	defer cancel()

	target, err := a.productURL(ctx, productID, "")
	if err != nil {
		return domain.TransportFailure(err)
	}

	var resp SuccessResponse[productDTO]
	if err := a.client.GetJSON(ctx, target, &resp); err != nil {
		return classify(err)
	}

	product := rule.Product{ID: productID, Category: resp.Data.Category, Stock: resp.Data.StockQuantity}
	ok, err := a.stockRule.Allows(product, quantity)
	if err != nil {
		return domain.TransportFailure(err)
	}
	if !ok {
		return domain.Rejected(fmt.Sprintf("insufficient stock: have %d, need %d", resp.Data.StockQuantity, quantity))
	}
	return domain.Ok()
}

// Reserve 扣减库存
func (a *InventoryHTTPAdapter) Reserve(ctx context.Context, productID int64, quantity int) domain.CallResult {
	return a.updateQuantity(ctx, productID, actionDeduct, quantity)
}

// Release 回补库存，是 Reserve 的补偿操作
func (a *InventoryHTTPAdapter) Release(ctx context.Context, productID int64, quantity int) domain.CallResult {
	return a.updateQuantity(ctx, productID, actionAdd, quantity)
}

func (a *InventoryHTTPAdapter) updateQuantity(ctx context.Context, productID int64, action string, quantity int) domain.CallResult {
	ctx, cancel := withCallTimeout(ctx, a.callTimeout)
	defer cancel()

	target, err := a.productURL(ctx, productID, "/quantities")
	if err != nil {
		return domain.TransportFailure(err)
	}

	var resp SuccessResponse[productDTO]
	err = a.client.PatchJSON(ctx, target, quantityUpdateRequest{Action: action, StockQuantity: quantity}, &resp)
	return classify(err)
}

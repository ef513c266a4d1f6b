package adapter

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"phincommerce/internal/pkg/discovery"
	"phincommerce/internal/pkg/httpclient"
	"phincommerce/internal/service/orchestrator/domain"
)

// PaymentHTTPAdapter 实现了 port.PaymentService 接口。
type PaymentHTTPAdapter struct {
	client      *httpclient.Client
	resolver    discovery.Resolver
	serviceName string
	callTimeout time.Duration
}

func NewPaymentHTTPAdapter(client *httpclient.Client, resolver discovery.Resolver, serviceName string, callTimeout time.Duration) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client, resolver: resolver, serviceName: serviceName, callTimeout: callTimeout}
}

// Charge 扣减余额并记录交易。扣款不是幂等的，因此从不重试。
func (a *PaymentHTTPAdapter) Charge(ctx context.Context, req domain.ChargeRequest) domain.CallResult {
	ctx, cancel := withCallTimeout(ctx, a.callTimeout)
	defer cancel()

	baseURL, err := a.resolver.Resolve(ctx, a.serviceName)
	if err != nil {
		return domain.TransportFailure(err)
	}

	body := transactionRequest{
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Mode:       req.Mode,
	}
	var resp SuccessResponse[transactionDTO]
	if err := a.client.PostJSON(ctx, baseURL+"/api/v1/transactions", body, &resp); err != nil {
		return classify(err)
	}

	switch resp.Data.Status {
	case transactionApproved:
		result := domain.Ok()
		result.Reference = resp.Data.ReferenceNumber
		return result
	case transactionRejected:
		result := domain.Rejected("payment rejected")
		result.Reference = resp.Data.ReferenceNumber
		return result
	default:
		return domain.TransportFailure(errors.Errorf("unexpected transaction status %q", resp.Data.Status))
	}
}

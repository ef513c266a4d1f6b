// internal/service/orchestrator/domain/order.go
package domain

import (
	"math"

	"github.com/pkg/errors"
)

// OrderLine 是订单中的一个商品行
type OrderLine struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// OrderSnapshot 是订单服务创建订单时生成的不可变快照。
// Saga 只读取它，从不修改。
type OrderSnapshot struct {
	ID              int64       `json:"id"`
	PaymentMethod   string      `json:"payment_method"`
	BillingAddress  string      `json:"billing_address"`
	ShippingAddress string      `json:"shipping_address"`
	OrderStatus     string      `json:"order_status"`
	TotalAmount     float64     `json:"total_amount"`
	CustomerID      int64       `json:"customer_id"`
	OrderDate       string      `json:"order_date"`
	Items           []OrderLine `json:"order_items"`
}

// Validate 校验快照的结构约束
func (o *OrderSnapshot) Validate() error {
	if o.TotalAmount < 0 {
		return errors.Errorf("order %d: negative total amount %v", o.ID, o.TotalAmount)
	}
	for i, line := range o.Items {
		if line.Price < 0 {
			return errors.Errorf("order %d: line %d has negative price %v", o.ID, i, line.Price)
		}
		if line.Quantity < 0 {
			return errors.Errorf("order %d: line %d has negative quantity %d", o.ID, i, line.Quantity)
		}
	}
	return nil
}

// LinesTotal 返回 Σ price × quantity
func (o *OrderSnapshot) LinesTotal() float64 {
	var total float64
	for _, line := range o.Items {
		total += line.Price * float64(line.Quantity)
	}
	return total
}

// TotalMatchesLines 在浮点误差范围内比较总金额与订单行合计
func (o *OrderSnapshot) TotalMatchesLines() bool {
	return math.Abs(o.TotalAmount-o.LinesTotal()) < 0.005
}

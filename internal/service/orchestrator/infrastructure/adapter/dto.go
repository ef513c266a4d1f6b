package adapter

// SuccessResponse 是下游服务统一的响应信封 {status, message, data}
type SuccessResponse[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type productDTO struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Category      string  `json:"category"`
	StockQuantity int     `json:"stock_quantity"`
	Description   string  `json:"description,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
}

const (
	actionDeduct = "DEDUCT"
	actionAdd    = "ADD"
)

type quantityUpdateRequest struct {
	Action        string `json:"action"`
	StockQuantity int    `json:"stock_quantity"`
}

type transactionRequest struct {
	OrderID    int64   `json:"order_id"`
	CustomerID int64   `json:"customer_id"`
	Amount     float64 `json:"amount"`
	Mode       string  `json:"mode"`
}

const (
	transactionApproved = "APPROVED"
	transactionRejected = "REJECTED"
)

type transactionDTO struct {
	ID              int64   `json:"id"`
	OrderID         int64   `json:"order_id"`
	Amount          float64 `json:"amount"`
	Mode            string  `json:"mode"`
	Status          string  `json:"status"`
	ReferenceNumber string  `json:"reference_number"`
	// payment_date 是不带时区的 LocalDateTime，这里只透传
	PaymentDate string `json:"payment_date"`
}

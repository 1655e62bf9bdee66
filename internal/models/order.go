package models

import "github.com/shopspring/decimal"

// OrderRequest is the payload sent to the backend to create an order
type OrderRequest struct {
	CustomerID    ID                 `json:"customer"`
	POSTerminalID string             `json:"pos_terminal_id"`
	POSProcessed  bool               `json:"pos_processed"`
	Items         []OrderRequestItem `json:"items"`
}

// OrderRequestItem represents a single line in an order request
type OrderRequestItem struct {
	ProductID   ID              `json:"product"`
	WarehouseID ID              `json:"warehouse"`
	LocationID  ID              `json:"location"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// OrderResponse is what the backend returns for a created order
type OrderResponse struct {
	OrderID ID `json:"order_id"`
}

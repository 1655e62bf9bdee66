package models

// StockRecord is a stock placement of one product at one warehouse location
type StockRecord struct {
	ID               ID     `json:"stock_id"`
	ProductID        ID     `json:"product"`
	WarehouseID      ID     `json:"warehouse"`
	LocationID       ID     `json:"location"`
	Quantity         int    `json:"quantity"`
	ReservedQuantity int    `json:"reserved_quantity"`
	BatchNumber      string `json:"batch_number,omitempty"`
}

// Available is on-hand quantity minus reserved quantity
func (s StockRecord) Available() int {
	return s.Quantity - s.ReservedQuantity
}

// Matches reports whether the record is stored at the queried triple
func (s StockRecord) Matches(q StockQuery) bool {
	return s.ProductID == q.ProductID && s.WarehouseID == q.WarehouseID && s.LocationID == q.LocationID
}

// StockQuery addresses stock by product, warehouse and location
type StockQuery struct {
	ProductID   ID
	WarehouseID ID
	LocationID  ID
}

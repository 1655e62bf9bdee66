package models

type Warehouse struct {
	ID       ID     `json:"warehouse_id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// Location is a section inside a warehouse where stock is placed
type Location struct {
	ID          ID     `json:"id"`
	WarehouseID ID     `json:"warehouse"`
	SectionName string `json:"section_name"`
}

package repository

import (
	"context"
	"sync"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

// StockRepository looks up stock placements. A nil record with a nil
// error means the product has no placement at that location.
type StockRepository interface {
	GetStock(ctx context.Context, q models.StockQuery) (*models.StockRecord, error)
}

// InMemoryStockRepository implements StockRepository with in-memory storage
type InMemoryStockRepository struct {
	mu      sync.RWMutex
	records map[models.StockQuery]models.StockRecord
}

// NewInMemoryStockRepository creates a repository holding the given records
func NewInMemoryStockRepository(records ...models.StockRecord) *InMemoryStockRepository {
	r := &InMemoryStockRepository{
		records: make(map[models.StockQuery]models.StockRecord, len(records)),
	}
	for _, rec := range records {
		r.put(rec)
	}
	return r
}

// NewSeededStockRepository returns a repository with a small demo dataset
// for running the service without a backend
func NewSeededStockRepository() *InMemoryStockRepository {
	return NewInMemoryStockRepository(
		models.StockRecord{ID: "1", ProductID: "1", WarehouseID: "1", LocationID: "1", Quantity: 120, ReservedQuantity: 20, BatchNumber: "B-2024-01"},
		models.StockRecord{ID: "2", ProductID: "2", WarehouseID: "1", LocationID: "1", Quantity: 40, ReservedQuantity: 0},
		models.StockRecord{ID: "3", ProductID: "2", WarehouseID: "1", LocationID: "2", Quantity: 15, ReservedQuantity: 5},
		models.StockRecord{ID: "4", ProductID: "3", WarehouseID: "2", LocationID: "3", Quantity: 8, ReservedQuantity: 8},
	)
}

// GetStock returns a copy of the stored record
func (r *InMemoryStockRepository) GetStock(ctx context.Context, q models.StockQuery) (*models.StockRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[q]
	if !exists {
		return nil, nil
	}
	return &rec, nil
}

// Put inserts or replaces a record
func (r *InMemoryStockRepository) Put(rec models.StockRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(rec)
}

func (r *InMemoryStockRepository) put(rec models.StockRecord) {
	q := models.StockQuery{ProductID: rec.ProductID, WarehouseID: rec.WarehouseID, LocationID: rec.LocationID}
	r.records[q] = rec
}

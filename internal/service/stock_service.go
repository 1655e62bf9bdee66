package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
	"github.com/Lixing-Zhang/warehouse-pos/internal/repository"
)

var ErrInvalidStockQuery = errors.New("product, warehouse and location are required")

// StockService answers availability lookups for a single placement
type StockService struct {
	repo repository.StockRepository
}

// StockAvailability is the result of a lookup. Record is nil when the
// product has no placement at that location.
type StockAvailability struct {
	ProductID   models.ID           `json:"product"`
	WarehouseID models.ID           `json:"warehouse"`
	LocationID  models.ID           `json:"location"`
	Available   int                 `json:"available"`
	Record      *models.StockRecord `json:"record"`
}

// NewStockService creates a new stock service
func NewStockService(repo repository.StockRepository) *StockService {
	return &StockService{
		repo: repo,
	}
}

// Lookup returns the available quantity for a product at a location
func (s *StockService) Lookup(ctx context.Context, q models.StockQuery) (*StockAvailability, error) {
	q = models.StockQuery{
		ProductID:   models.ID(strings.TrimSpace(q.ProductID.String())),
		WarehouseID: models.ID(strings.TrimSpace(q.WarehouseID.String())),
		LocationID:  models.ID(strings.TrimSpace(q.LocationID.String())),
	}
	if q.ProductID == "" || q.WarehouseID == "" || q.LocationID == "" {
		return nil, ErrInvalidStockQuery
	}

	rec, err := s.repo.GetStock(ctx, q)
	if err != nil {
		return nil, err
	}

	out := &StockAvailability{
		ProductID:   q.ProductID,
		WarehouseID: q.WarehouseID,
		LocationID:  q.LocationID,
		Record:      rec,
	}
	if rec != nil {
		out.Available = rec.Available()
	}
	return out, nil
}

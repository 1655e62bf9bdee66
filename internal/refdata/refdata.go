// Package refdata loads the customer, product, warehouse and location lists
// an order is composed from.
package refdata

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

// Source provides the reference collections
type Source interface {
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
	ListLocations(ctx context.Context) ([]models.Location, error)
}

// Data is the serialisable content of a Snapshot
type Data struct {
	Customers  []models.Customer  `json:"customers"`
	Products   []models.Product   `json:"products"`
	Warehouses []models.Warehouse `json:"warehouses"`
	Locations  []models.Location  `json:"locations"`
}

// Snapshot is a read-only view of reference data with id lookups.
// It is safe for concurrent use.
type Snapshot struct {
	data       Data
	customers  map[models.ID]models.Customer
	products   map[models.ID]models.Product
	warehouses map[models.ID]models.Warehouse
	locations  map[models.ID]models.Location
}

// NewSnapshot indexes data. The slices are copied.
func NewSnapshot(data Data) *Snapshot {
	s := &Snapshot{
		data: Data{
			Customers:  append([]models.Customer(nil), data.Customers...),
			Products:   append([]models.Product(nil), data.Products...),
			Warehouses: append([]models.Warehouse(nil), data.Warehouses...),
			Locations:  append([]models.Location(nil), data.Locations...),
		},
		customers:  make(map[models.ID]models.Customer, len(data.Customers)),
		products:   make(map[models.ID]models.Product, len(data.Products)),
		warehouses: make(map[models.ID]models.Warehouse, len(data.Warehouses)),
		locations:  make(map[models.ID]models.Location, len(data.Locations)),
	}
	for _, c := range s.data.Customers {
		s.customers[c.ID] = c
	}
	for _, p := range s.data.Products {
		s.products[p.ID] = p
	}
	for _, w := range s.data.Warehouses {
		s.warehouses[w.ID] = w
	}
	for _, l := range s.data.Locations {
		s.locations[l.ID] = l
	}
	return s
}

// Data returns a copy of the collections
func (s *Snapshot) Data() Data {
	return Data{
		Customers:  append([]models.Customer(nil), s.data.Customers...),
		Products:   append([]models.Product(nil), s.data.Products...),
		Warehouses: append([]models.Warehouse(nil), s.data.Warehouses...),
		Locations:  append([]models.Location(nil), s.data.Locations...),
	}
}

func (s *Snapshot) Customer(id models.ID) (models.Customer, bool) {
	c, ok := s.customers[id]
	return c, ok
}

func (s *Snapshot) Product(id models.ID) (models.Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

func (s *Snapshot) Warehouse(id models.ID) (models.Warehouse, bool) {
	w, ok := s.warehouses[id]
	return w, ok
}

func (s *Snapshot) Location(id models.ID) (models.Location, bool) {
	l, ok := s.locations[id]
	return l, ok
}

// Load fetches all four collections concurrently. The first failure
// cancels the remaining requests and is returned.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	var data Data
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		customers, err := src.ListCustomers(ctx)
		if err != nil {
			return fmt.Errorf("failed to load customers: %w", err)
		}
		data.Customers = customers
		return nil
	})
	g.Go(func() error {
		products, err := src.ListProducts(ctx)
		if err != nil {
			return fmt.Errorf("failed to load products: %w", err)
		}
		data.Products = products
		return nil
	})
	g.Go(func() error {
		warehouses, err := src.ListWarehouses(ctx)
		if err != nil {
			return fmt.Errorf("failed to load warehouses: %w", err)
		}
		data.Warehouses = warehouses
		return nil
	})
	g.Go(func() error {
		locations, err := src.ListLocations(ctx)
		if err != nil {
			return fmt.Errorf("failed to load locations: %w", err)
		}
		data.Locations = locations
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewSnapshot(data), nil
}

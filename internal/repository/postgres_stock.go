package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

// PostgresStockRepository reads stock placements straight from the
// warehouse database
type PostgresStockRepository struct {
	db *pgxpool.Pool
}

func NewPostgresStockRepository(db *pgxpool.Pool) *PostgresStockRepository {
	return &PostgresStockRepository{db: db}
}

// OpenPool connects to the database and verifies the connection
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 8

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// GetStock returns the oldest matching placement, or nil if there is none
func (r *PostgresStockRepository) GetStock(ctx context.Context, q models.StockQuery) (*models.StockRecord, error) {
	const query = `
SELECT id::text, product_id::text, warehouse_id::text, location_id::text,
       quantity, reserved_quantity, COALESCE(batch_number, '')
FROM stock_placements
WHERE product_id::text = $1 AND warehouse_id::text = $2 AND location_id::text = $3
ORDER BY id
LIMIT 1;
`
	var (
		out                              models.StockRecord
		id, product, warehouse, location string
	)
	err := r.db.QueryRow(ctx, query, q.ProductID.String(), q.WarehouseID.String(), q.LocationID.String()).
		Scan(&id, &product, &warehouse, &location, &out.Quantity, &out.ReservedQuantity, &out.BatchNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock placement: %w", err)
	}

	out.ID = models.ID(id)
	out.ProductID = models.ID(product)
	out.WarehouseID = models.ID(warehouse)
	out.LocationID = models.ID(location)
	return &out, nil
}

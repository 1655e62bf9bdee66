// Package events publishes notifications about placed orders.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

// OrderPlacedKey is the routing key of OrderPlaced messages
const OrderPlacedKey = "orders.placed"

// OrderPlaced is emitted after the backend accepts an order
type OrderPlaced struct {
	OrderID       models.ID       `json:"order_id"`
	SessionID     string          `json:"session_id"`
	CustomerID    models.ID       `json:"customer_id"`
	POSTerminalID string          `json:"pos_terminal_id"`
	Lines         int             `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	PlacedAt      time.Time       `json:"placed_at"`
}

// Publisher sends order events
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, evt OrderPlaced) error
	Close() error
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) PublishOrderPlaced(ctx context.Context, evt OrderPlaced) error { return nil }
func (Noop) Close() error                                                 { return nil }

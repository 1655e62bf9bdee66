package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
	"github.com/Lixing-Zhang/warehouse-pos/internal/service"
)

// StockHandler handles stock lookup requests
type StockHandler struct {
	service *service.StockService
	logger  *slog.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(service *service.StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{
		service: service,
		logger:  logger,
	}
}

// GetStock handles GET /api/stock?product=&warehouse=&location=
// - 200: availability (0 with a null record when nothing is placed there)
// - 400: a query parameter is missing
// - 502: the stock source failed
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.StockQuery{
		ProductID:   models.ID(q.Get("product")),
		WarehouseID: models.ID(q.Get("warehouse")),
		LocationID:  models.ID(q.Get("location")),
	}

	availability, err := h.service.Lookup(r.Context(), query)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStockQuery) {
			h.logger.Warn("invalid stock query", "query", r.URL.RawQuery)
			WriteError(w, http.StatusBadRequest, err.Error(), h.logger)
			return
		}

		h.logger.Error("failed to look up stock",
			"product", query.ProductID,
			"warehouse", query.WarehouseID,
			"location", query.LocationID,
			"error", err,
		)
		WriteError(w, http.StatusBadGateway, "Stock lookup failed", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, availability, h.logger)
}

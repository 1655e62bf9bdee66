package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Lixing-Zhang/warehouse-pos/internal/backend"
	"github.com/Lixing-Zhang/warehouse-pos/internal/composer"
	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
	"github.com/Lixing-Zhang/warehouse-pos/internal/service"
	"github.com/Lixing-Zhang/warehouse-pos/internal/session"
)

const maxBodyBytes = 1 << 20

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionId")
}

// decode reads a JSON body into v, writing a 400 on failure
func (h *OrderHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.log.Warn("failed to decode request", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.log)
		return false
	}
	return true
}

// lineIndex parses the zero based {index} route parameter
func (h *OrderHandler) lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		h.log.Warn("invalid line index", "index", raw)
		WriteError(w, http.StatusBadRequest, "Invalid line index", h.log)
		return 0, false
	}
	return index, true
}

// linePatch is the body of a line update. Absent fields are left alone and
// an empty string clears a selection.
type linePatch struct {
	Product   *models.ID      `json:"product"`
	Warehouse *models.ID      `json:"warehouse"`
	Location  *models.ID      `json:"location"`
	Quantity  json.RawMessage `json:"quantity"`
}

func (p linePatch) updates() ([]service.LineUpdate, error) {
	var out []service.LineUpdate
	if p.Product != nil {
		out = append(out, service.LineUpdate{Field: composer.FieldProduct, Value: p.Product.String()})
	}
	if p.Warehouse != nil {
		out = append(out, service.LineUpdate{Field: composer.FieldWarehouse, Value: p.Warehouse.String()})
	}
	if p.Location != nil {
		out = append(out, service.LineUpdate{Field: composer.FieldLocation, Value: p.Location.String()})
	}
	if len(p.Quantity) > 0 {
		qty, err := quantityText(p.Quantity)
		if err != nil {
			return nil, err
		}
		out = append(out, service.LineUpdate{Field: composer.FieldQuantity, Value: qty})
	}
	if len(out) == 0 {
		return nil, errors.New("no line fields to update")
	}
	return out, nil
}

// quantityText returns the quantity as the user typed it. Numbers and
// strings are both accepted; coercion happens in the composer. Integral
// numbers such as 5.0 or 1e1 are written out as plain integers first.
func quantityText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid quantity: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("quantity must be a number or string")
	}
	if d, err := decimal.NewFromString(n.String()); err == nil && d.IsInteger() {
		return d.BigInt().String(), nil
	}
	return n.String(), nil
}

// statusFor maps service and workflow errors to HTTP statuses
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, composer.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, composer.ErrStock):
		return http.StatusConflict
	case errors.Is(err, composer.ErrSubmission):
		return http.StatusBadGateway
	case errors.Is(err, composer.ErrSubmitInProgress), errors.Is(err, service.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidID),
		errors.Is(err, service.ErrInvalidStockQuery),
		errors.Is(err, composer.ErrLineIndex),
		errors.Is(err, composer.ErrUnknownField),
		errors.Is(err, composer.ErrUnknownReference):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *OrderHandler) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		h.log.Error("request failed", "error", err)
		WriteError(w, status, "Internal server error", h.log)
	case http.StatusBadGateway:
		h.log.Error("backend request failed", "error", err)
		WriteError(w, status, "Warehouse backend unavailable", h.log)
	default:
		h.log.Info("request rejected", "status", status, "error", err)
		WriteError(w, status, err.Error(), h.log)
	}
}

func issuesOf(err error) []composer.Issue {
	var verr *composer.ValidationError
	if errors.As(err, &verr) {
		return verr.Issues
	}
	return nil
}

func stockProblemsOf(err error) []composer.LineProblem {
	var serr *composer.StockError
	if errors.As(err, &serr) {
		return serr.Lines
	}
	return nil
}

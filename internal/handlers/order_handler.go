package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Lixing-Zhang/warehouse-pos/internal/composer"
	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
	"github.com/Lixing-Zhang/warehouse-pos/internal/service"
)

// OrderHandler exposes order draft sessions over HTTP
type OrderHandler struct {
	orderService *service.OrderService
	log          *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *service.OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		log:          log,
	}
}

// Routes mounts the session endpoints on r
func (h *OrderHandler) Routes(r chi.Router) {
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionId}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Get("/reference", h.GetReference)
		r.Put("/customer", h.SetCustomer)
		r.Put("/terminal", h.SetTerminal)
		r.Post("/lines", h.AddLine)
		r.Patch("/lines/{index}", h.UpdateLine)
		r.Delete("/lines/{index}", h.RemoveLine)
		r.Post("/submit", h.Submit)
		r.Post("/reset", h.Reset)
		r.Post("/acknowledge", h.Acknowledge)
	})
}

// CreateSession handles POST /api/sessions
func (h *OrderHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.orderService.CreateSession(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, view, h.log)
}

// GetSession handles GET /api/sessions/{sessionId}
func (h *OrderHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.orderService.GetSession(r.Context(), sessionID(r))
	h.respond(w, view, err)
}

// DeleteSession handles DELETE /api/sessions/{sessionId}
func (h *OrderHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.orderService.DeleteSession(r.Context(), sessionID(r)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetReference handles GET /api/sessions/{sessionId}/reference
func (h *OrderHandler) GetReference(w http.ResponseWriter, r *http.Request) {
	data, err := h.orderService.Reference(r.Context(), sessionID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, data, h.log)
}

type customerRequest struct {
	CustomerID models.ID `json:"customerId"`
}

// SetCustomer handles PUT /api/sessions/{sessionId}/customer
func (h *OrderHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.orderService.SetCustomer(r.Context(), sessionID(r), req.CustomerID)
	h.respond(w, view, err)
}

type terminalRequest struct {
	POSTerminalID string `json:"posTerminalId"`
}

// SetTerminal handles PUT /api/sessions/{sessionId}/terminal
func (h *OrderHandler) SetTerminal(w http.ResponseWriter, r *http.Request) {
	var req terminalRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.orderService.SetTerminal(r.Context(), sessionID(r), req.POSTerminalID)
	h.respond(w, view, err)
}

// AddLine handles POST /api/sessions/{sessionId}/lines
func (h *OrderHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	view, err := h.orderService.AddLine(r.Context(), sessionID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, view, h.log)
}

// UpdateLine handles PATCH /api/sessions/{sessionId}/lines/{index}.
// Only the fields present in the body change.
func (h *OrderHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	index, ok := h.lineIndex(w, r)
	if !ok {
		return
	}

	var req linePatch
	if !h.decode(w, r, &req) {
		return
	}
	updates, err := req.updates()
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), h.log)
		return
	}

	view, err := h.orderService.UpdateLine(r.Context(), sessionID(r), index, updates)
	h.respond(w, view, err)
}

// RemoveLine handles DELETE /api/sessions/{sessionId}/lines/{index}
func (h *OrderHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	index, ok := h.lineIndex(w, r)
	if !ok {
		return
	}

	view, err := h.orderService.RemoveLine(r.Context(), sessionID(r), index)
	h.respond(w, view, err)
}

// Reset handles POST /api/sessions/{sessionId}/reset
func (h *OrderHandler) Reset(w http.ResponseWriter, r *http.Request) {
	view, err := h.orderService.Reset(r.Context(), sessionID(r))
	h.respond(w, view, err)
}

// Acknowledge handles POST /api/sessions/{sessionId}/acknowledge
func (h *OrderHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	view, err := h.orderService.Acknowledge(r.Context(), sessionID(r))
	h.respond(w, view, err)
}

// Submit handles POST /api/sessions/{sessionId}/submit
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)

	result, err := h.orderService.Submit(r.Context(), id)
	if err != nil {
		var view *service.View
		if result != nil {
			view = result.View
		}
		h.writeSubmitError(w, err, view)
		return
	}

	WriteJSON(w, http.StatusCreated, result, h.log)
	h.log.Info("order created successfully",
		"session_id", id,
		"order_id", result.Order.OrderID,
		"items_count", result.Order.Lines,
	)
}

func (h *OrderHandler) respond(w http.ResponseWriter, view *service.View, err error) {
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view, h.log)
}

// submitErrorResponse carries the itemized failure and the unchanged draft
type submitErrorResponse struct {
	Error   string                 `json:"error"`
	Issues  []composer.Issue       `json:"issues,omitempty"`
	Lines   []composer.LineProblem `json:"lines,omitempty"`
	Session *service.View          `json:"session,omitempty"`
}

func (h *OrderHandler) writeSubmitError(w http.ResponseWriter, err error, view *service.View) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("failed to submit order", "error", err)
		WriteError(w, status, "Internal server error", h.log)
		return
	}
	h.log.Info("order submission rejected", "status", status, "error", err)

	WriteJSON(w, status, submitErrorResponse{
		Error:   err.Error(),
		Issues:  issuesOf(err),
		Lines:   stockProblemsOf(err),
		Session: view,
	}, h.log)
}

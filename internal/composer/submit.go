package composer

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

// Result describes an order accepted by the backend
type Result struct {
	OrderID       models.ID       `json:"orderId"`
	CustomerID    models.ID       `json:"customerId"`
	POSTerminalID string          `json:"posTerminalId"`
	Lines         int             `json:"lines"`
	Total         decimal.Decimal `json:"total"`
}

// Submit validates the draft, checks stock for every line concurrently and
// sends the order as one request.
//
// On success the draft is reset and the backend order id is returned. On
// failure the draft is left as it was and the error is a *ValidationError,
// *StockError or *SubmissionError. A submit from a finished state
// acknowledges that state first; a submit while another is running fails
// with ErrSubmitInProgress.
func (c *Composer) Submit(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.state.inFlight() {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	c.state = StateValidating
	c.lastErr = nil
	c.lastOrderID = ""
	draft := c.draft.Clone()

	if err := validate(draft, c.refs); err != nil {
		c.state = StateFailed
		c.lastErr = err
		c.mu.Unlock()
		c.log.Info("order draft rejected", "error", err)
		return nil, err
	}
	c.state = StateCheckingStock
	c.mu.Unlock()

	if err := c.checkStock(ctx, draft.Lines); err != nil {
		c.fail(err)
		c.log.Info("stock check failed", "lines", len(err.Lines), "error", err)
		return nil, err
	}

	c.setState(StateSubmitting)

	req := buildOrderRequest(draft)
	submitCtx, cancel := context.WithTimeout(ctx, c.opts.SubmitTimeout)
	defer cancel()

	resp, err := c.orders.CreateOrder(submitCtx, req)
	if err == nil && resp == nil {
		err = errEmptyResponse
	}
	if err != nil {
		serr := submissionError(err)
		c.fail(serr)
		c.log.Error("order submission failed", "customer", draft.CustomerID, "error", err)
		return nil, serr
	}

	result := &Result{
		OrderID:       resp.OrderID,
		CustomerID:    req.CustomerID,
		POSTerminalID: req.POSTerminalID,
		Lines:         len(req.Items),
		Total:         orderTotal(req.Items),
	}

	c.mu.Lock()
	c.state = StateSucceeded
	c.lastOrderID = resp.OrderID
	c.draft = NewDraft(c.opts.DefaultTerminalID)
	c.mu.Unlock()

	c.log.Info("order placed",
		"order_id", resp.OrderID,
		"customer", draft.CustomerID,
		"terminal", draft.POSTerminalID,
		"lines", result.Lines,
		"total", result.Total.StringFixed(2),
	)
	return result, nil
}

func (c *Composer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Composer) fail(err error) {
	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = err
	c.mu.Unlock()
}

// stockResult holds the outcome of checking a single line
type stockResult struct {
	index   int
	problem *LineProblem
}

// checkStock queries stock for every line concurrently and waits for all of
// them. Lookup failures and shortages are both reported per line; nothing
// aborts early.
func (c *Composer) checkStock(ctx context.Context, lines []Line) *StockError {
	resultChan := make(chan stockResult, len(lines))

	var wg sync.WaitGroup
	for i, line := range lines {
		wg.Add(1)
		go func(index int, line Line) {
			defer wg.Done()
			resultChan <- stockResult{
				index:   index,
				problem: c.checkLine(ctx, index, line),
			}
		}(i, line)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Collect results maintaining line order
	problems := make([]*LineProblem, len(lines))
	for result := range resultChan {
		problems[result.index] = result.problem
	}

	var out []LineProblem
	for _, p := range problems {
		if p != nil {
			out = append(out, *p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return &StockError{Lines: out}
}

func (c *Composer) checkLine(ctx context.Context, index int, line Line) *LineProblem {
	ctx, cancel := context.WithTimeout(ctx, c.opts.StockCheckTimeout)
	defer cancel()

	q := models.StockQuery{
		ProductID:   line.Product.ID,
		WarehouseID: line.Warehouse.ID,
		LocationID:  line.Location.ID,
	}
	label := line.Product.Label()

	rec, err := c.stock.GetStock(ctx, q)
	if err != nil {
		c.log.Warn("stock lookup failed",
			"line", index+1,
			"product", q.ProductID,
			"warehouse", q.WarehouseID,
			"location", q.LocationID,
			"error", err,
		)
		return &LineProblem{
			Line:      index,
			ProductID: q.ProductID,
			Requested: line.Quantity,
			Message:   fmt.Sprintf("line %d: could not check stock for %s: %v", index+1, label, err),
			Err:       err,
		}
	}

	available := 0
	if rec != nil {
		available = rec.Available()
	}
	if available < line.Quantity {
		return &LineProblem{
			Line:      index,
			ProductID: q.ProductID,
			Requested: line.Quantity,
			Available: available,
			Message: fmt.Sprintf("line %d: insufficient stock for %s (available %d, requested %d)",
				index+1, label, available, line.Quantity),
		}
	}
	return nil
}

// buildOrderRequest turns a validated draft into the backend payload.
// Unit prices come from the product reference.
func buildOrderRequest(d Draft) models.OrderRequest {
	items := make([]models.OrderRequestItem, len(d.Lines))
	for i, l := range d.Lines {
		items[i] = models.OrderRequestItem{
			ProductID:   l.Product.ID,
			WarehouseID: l.Warehouse.ID,
			LocationID:  l.Location.ID,
			Quantity:    l.Quantity,
			Price:       l.Product.Price,
		}
	}
	return models.OrderRequest{
		CustomerID:    d.CustomerID,
		POSTerminalID: d.POSTerminalID,
		POSProcessed:  true,
		Items:         items,
	}
}

func orderTotal(items []models.OrderRequestItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

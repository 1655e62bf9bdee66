package composer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
	"github.com/Lixing-Zhang/warehouse-pos/pkg/logger"
)

func TestSubmit_MissingCustomerNeverTouchesNetwork(t *testing.T) {
	f := newFixture(t)
	f.fillLine(t, 0, "P1", "W1", "L1", "1")
	f.stock.set("P1", "W1", "L1", 100, 0)

	res, err := f.c.Submit(context.Background())
	require.Nil(t, res)
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Issues, 1)
	require.Equal(t, "customer", verr.Issues[0].Field)
	require.Equal(t, -1, verr.Issues[0].Line)

	require.Zero(t, f.stock.calls.Load())
	require.Zero(t, f.orders.count())
	require.Equal(t, StateFailed, f.c.Snapshot().State)
}

func TestSubmit_UnknownCustomer(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.SetCustomer("C404"))
	f.fillLine(t, 0, "P1", "W1", "L1", "1")
	f.stock.set("P1", "W1", "L1", 100, 0)

	_, err := f.c.Submit(context.Background())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Issues, 1)
	require.Equal(t, "customer", verr.Issues[0].Field)
	require.Contains(t, err.Error(), "customer C404 does not exist")
	require.Zero(t, f.stock.calls.Load())
	require.Zero(t, f.orders.count())
}

func TestSubmit_ReportsEveryIncompleteLine(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.SetCustomer("C1"))
	require.NoError(t, f.c.SetLineField(0, FieldProduct, "P1"))
	require.NoError(t, f.c.AddLine())
	require.NoError(t, f.c.SetLineField(1, FieldWarehouse, "W1"))

	_, err := f.c.Submit(context.Background())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	// line 1 lacks warehouse+location, line 2 lacks product+location
	require.Len(t, verr.Issues, 4)
	require.Equal(t, 0, verr.Issues[0].Line)
	require.Equal(t, "warehouse", verr.Issues[0].Field)
	require.Equal(t, 1, verr.Issues[3].Line)
	require.Contains(t, err.Error(), "line 2: product is required")
	require.Zero(t, f.stock.calls.Load())
}

func TestSubmit_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.SetCustomer("C1"))
	f.fillLine(t, 0, "P1", "W1", "L1", "5")
	f.stock.set("P1", "W1", "L1", 10, 8)
	before := f.c.Snapshot().Draft

	_, err := f.c.Submit(context.Background())
	require.ErrorIs(t, err, ErrStock)
	require.Contains(t, err.Error(), "P1")

	var serr *StockError
	require.True(t, errors.As(err, &serr))
	require.Len(t, serr.Lines, 1)
	require.Equal(t, 2, serr.Lines[0].Available)
	require.Equal(t, 5, serr.Lines[0].Requested)

	require.Zero(t, f.orders.count())
	require.Equal(t, before, f.c.Snapshot().Draft)
}

func TestSubmit_SufficientStockPlacesOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.SetCustomer("C1"))
	f.fillLine(t, 0, "P1", "W1", "L1", "5")
	f.stock.set("P1", "W1", "L1", 10, 2)
	f.orders.resp = &models.OrderResponse{OrderID: "ORD-77"}

	res, err := f.c.Submit(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, "ORD-77", res.OrderID)
	require.Equal(t, 1, res.Lines)
	require.Equal(t, "62.50", res.Total.StringFixed(2))

	require.Equal(t, 1, f.orders.count())
	req := f.orders.reqs[0]
	require.EqualValues(t, "C1", req.CustomerID)
	require.Equal(t, "POS001", req.POSTerminalID)
	require.True(t, req.POSProcessed)
	require.Len(t, req.Items, 1)
	require.Equal(t, 5, req.Items[0].Quantity)
	require.True(t, req.Items[0].Price.Equal(decimal.RequireFromString("12.50")))
	require.EqualValues(t, "W1", req.Items[0].WarehouseID)
	require.EqualValues(t, "L1", req.Items[0].LocationID)

	snap := f.c.Snapshot()
	require.Equal(t, StateSucceeded, snap.State)
	require.EqualValues(t, "ORD-77", snap.LastOrderID)
	require.Equal(t, NewDraft("POS001"), snap.Draft, "success resets the draft")
}

func TestSubmit_MissingStockRecordMeansZero(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.SetCustomer("C1"))
	f.fillLine(t, 0, "P1", "W1", "L1", "1")

	_, err := f.c.Submit(context.Background())

	var serr *StockError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, 0, serr.Lines[0].Available)
	require.Zero(t, f.orders.count())
}

func TestSubmit_ChecksEveryLineAndKeepsOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.SetCustomer("C1"))
	require.NoError(t, f.c.AddLine())
	require.NoError(t, f.c.AddLine())
	f.fillLine(t, 0, "P1", "W1", "L1", "3") // lookup fails
	f.fillLine(t, 1, "P2", "W1", "L1", "2") // fine
	f.fillLine(t, 2, "P3", "W2", "L2", "9") // short
	f.stock.errs["P1"] = errors.New("connection refused")
	f.stock.set("P2", "W1", "L1", 5, 0)
	f.stock.set("P3", "W2", "L2", 4, 1)
	before := f.c.Snapshot().Draft

	_, err := f.c.Submit(context.Background())

	var serr *StockError
	require.True(t, errors.As(err, &serr))
	require.EqualValues(t, 3, f.stock.calls.Load())
	require.Len(t, serr.Lines, 2)

	require.Equal(t, 0, serr.Lines[0].Line)
	require.Contains(t, serr.Lines[0].Message, "could not check stock for P1")
	require.Contains(t, serr.Lines[0].Message, "connection refused")
	require.Error(t, serr.Lines[0].Err)

	require.Equal(t, 2, serr.Lines[1].Line)
	require.Contains(t, serr.Lines[1].Message, "Pallet (P3)")
	require.Equal(t, 3, serr.Lines[1].Available)

	require.Zero(t, f.orders.count())
	require.Equal(t, before, f.c.Snapshot().Draft)
}

// barrierStock only answers once every expected call is in flight, so it
// fails (by timeout) if the checks run one after another
type barrierStock struct {
	want    int32
	arrived atomic.Int32
	release chan struct{}
	once    sync.Once
}

func (b *barrierStock) GetStock(ctx context.Context, q models.StockQuery) (*models.StockRecord, error) {
	if b.arrived.Add(1) == b.want {
		b.once.Do(func() { close(b.release) })
	}
	select {
	case <-b.release:
		return &models.StockRecord{Quantity: 50}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSubmit_StockChecksRunConcurrently(t *testing.T) {
	stock := &barrierStock{want: 4, release: make(chan struct{})}
	orders := &fakeOrders{}
	c := New(newFakeRefs(), stock, orders, Options{
		StockCheckTimeout: time.Second,
		Logger:            logger.Discard(),
	})
	require.NoError(t, c.SetCustomer("C1"))
	for i := 0; i < 4; i++ {
		if i > 0 {
			require.NoError(t, c.AddLine())
		}
		require.NoError(t, c.SetLineField(i, FieldProduct, "P1"))
		require.NoError(t, c.SetLineField(i, FieldWarehouse, "W1"))
		require.NoError(t, c.SetLineField(i, FieldLocation, "L1"))
	}

	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, res.Lines)
	require.Equal(t, 1, orders.count())
}

func TestSubmit_BackendRejection(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"backend message", &backendErr{msg: "customer account is suspended"}, "customer account is suspended"},
		{"empty backend message", &backendErr{}, DefaultSubmissionMessage},
		{"transport error", errors.New("dial tcp: no route to host"), DefaultSubmissionMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.c.SetCustomer("C1"))
			f.fillLine(t, 0, "P1", "W1", "L1", "2")
			f.stock.set("P1", "W1", "L1", 10, 0)
			f.orders.err = tt.err
			before := f.c.Snapshot().Draft

			_, err := f.c.Submit(context.Background())
			require.ErrorIs(t, err, ErrSubmission)
			require.ErrorIs(t, err, tt.err)
			require.Equal(t, tt.wantMsg, err.Error())

			snap := f.c.Snapshot()
			require.Equal(t, StateFailed, snap.State)
			require.Equal(t, tt.wantMsg, snap.LastError)
			require.Equal(t, before, snap.Draft, "failed submission keeps the draft")
			require.Equal(t, 1, f.orders.count())
		})
	}
}

func TestSubmit_SubmissionTimeout(t *testing.T) {
	refs, stock := newFakeRefs(), newFakeStock()
	orders := &fakeOrders{block: true}
	c := New(refs, stock, orders, Options{SubmitTimeout: 50 * time.Millisecond, Logger: logger.Discard()})
	require.NoError(t, c.SetCustomer("C1"))
	require.NoError(t, c.SetLineField(0, FieldProduct, "P1"))
	require.NoError(t, c.SetLineField(0, FieldWarehouse, "W1"))
	require.NoError(t, c.SetLineField(0, FieldLocation, "L1"))
	stock.set("P1", "W1", "L1", 10, 0)

	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, ErrSubmission)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, DefaultSubmissionMessage, err.Error())
}

// gateStock blocks every lookup until the gate opens
type gateStock struct {
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gateStock) GetStock(ctx context.Context, q models.StockQuery) (*models.StockRecord, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return &models.StockRecord{Quantity: 10}, nil
}

func TestSubmit_GuardsMutationsWhileInFlight(t *testing.T) {
	stock := &gateStock{entered: make(chan struct{}), gate: make(chan struct{})}
	c := New(newFakeRefs(), stock, &fakeOrders{}, Options{Logger: logger.Discard()})
	require.NoError(t, c.SetCustomer("C1"))
	require.NoError(t, c.SetLineField(0, FieldProduct, "P1"))
	require.NoError(t, c.SetLineField(0, FieldWarehouse, "W1"))
	require.NoError(t, c.SetLineField(0, FieldLocation, "L1"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-stock.entered

	require.Equal(t, StateCheckingStock, c.Snapshot().State)
	require.ErrorIs(t, c.AddLine(), ErrSubmitInProgress)
	require.ErrorIs(t, c.RemoveLine(0), ErrSubmitInProgress)
	require.ErrorIs(t, c.SetCustomer("C2"), ErrSubmitInProgress)
	require.ErrorIs(t, c.SetLineField(0, FieldQuantity, "3"), ErrSubmitInProgress)
	require.ErrorIs(t, c.Reset(), ErrSubmitInProgress)
	require.ErrorIs(t, c.Restore(NewDraft("X")), ErrSubmitInProgress)
	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, ErrSubmitInProgress)

	close(stock.gate)
	require.NoError(t, <-done)
	require.Equal(t, StateSucceeded, c.Snapshot().State)
}

func TestAcknowledgeAndRetry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.SetCustomer("C1"))
	f.fillLine(t, 0, "P1", "W1", "L1", "4")
	f.stock.set("P1", "W1", "L1", 3, 0)

	_, err := f.c.Submit(context.Background())
	require.ErrorIs(t, err, ErrStock)

	f.c.Acknowledge()
	snap := f.c.Snapshot()
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.LastError)

	// user lowers the quantity and retries manually
	require.NoError(t, f.c.SetLineField(0, FieldQuantity, "3"))
	res, err := f.c.Submit(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, "1001", res.OrderID)
	require.Empty(t, f.c.Snapshot().LastError)
}

func TestReset_AfterSuccessMatchesFreshDraft(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.SetCustomer("C1"))
	require.NoError(t, f.c.SetTerminal("POS009"))
	f.fillLine(t, 0, "P1", "W1", "L1", "1")
	f.stock.set("P1", "W1", "L1", 1, 0)

	_, err := f.c.Submit(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.c.Reset())

	fresh := New(newFakeRefs(), newFakeStock(), &fakeOrders{}, Options{Logger: logger.Discard()})
	require.Equal(t, fresh.Snapshot().Draft, f.c.Snapshot().Draft)
}

package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

// State of the submit workflow
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCheckingStock
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateCheckingStock:
		return "checking_stock"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

func (s State) inFlight() bool {
	return s == StateValidating || s == StateCheckingStock || s == StateSubmitting
}

func (s State) finished() bool {
	return s == StateSucceeded || s == StateFailed
}

// References resolves ids picked by the user into reference entities.
// Implementations must be safe for concurrent reads and are never mutated here.
type References interface {
	Customer(id models.ID) (models.Customer, bool)
	Product(id models.ID) (models.Product, bool)
	Warehouse(id models.ID) (models.Warehouse, bool)
	Location(id models.ID) (models.Location, bool)
}

// StockSource looks up the stock record for a product/warehouse/location.
// A nil record with a nil error means no stock exists.
type StockSource interface {
	GetStock(ctx context.Context, q models.StockQuery) (*models.StockRecord, error)
}

// OrderSubmitter creates the order on the backend
type OrderSubmitter interface {
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResponse, error)
}

type Options struct {
	DefaultTerminalID string
	StockCheckTimeout time.Duration
	SubmitTimeout     time.Duration
	Logger            *slog.Logger
}

const (
	defaultTerminalID        = "POS001"
	defaultStockCheckTimeout = 5 * time.Second
	defaultSubmitTimeout     = 15 * time.Second
)

// Snapshot is an immutable view of the composer for a UI layer
type Snapshot struct {
	Draft       Draft     `json:"draft"`
	State       State     `json:"state"`
	LastOrderID models.ID `json:"lastOrderId,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
}

// Composer owns one order draft and runs the submit workflow over it.
// All draft mutations go through its methods.
type Composer struct {
	refs   References
	stock  StockSource
	orders OrderSubmitter
	opts   Options
	log    *slog.Logger

	mu          sync.Mutex
	draft       Draft
	state       State
	lastOrderID models.ID
	lastErr     error
}

// New creates a composer holding a fresh draft
func New(refs References, stock StockSource, orders OrderSubmitter, opts Options) *Composer {
	if opts.DefaultTerminalID == "" {
		opts.DefaultTerminalID = defaultTerminalID
	}
	if opts.StockCheckTimeout <= 0 {
		opts.StockCheckTimeout = defaultStockCheckTimeout
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Composer{
		refs:   refs,
		stock:  stock,
		orders: orders,
		opts:   opts,
		log:    log.With("component", "composer"),
		draft:  NewDraft(opts.DefaultTerminalID),
	}
}

// Restore replaces the draft with a previously persisted one.
// An empty line list becomes a single blank line.
func (c *Composer) Restore(d Draft) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.inFlight() {
		return ErrSubmitInProgress
	}

	d = d.Clone()
	if len(d.Lines) == 0 {
		d.Lines = []Line{NewLine()}
	}
	for i := range d.Lines {
		if d.Lines[i].Quantity < 1 {
			d.Lines[i].Quantity = 1
		}
	}
	c.draft = d
	return nil
}

// Resume carries over the outcome of an earlier submit, as recorded in a
// Snapshot. Only Succeeded and Failed are kept; any other state resumes as
// idle because no submit can still be running for a rebuilt composer.
func (c *Composer) Resume(state State, lastOrderID models.ID, lastError string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.inFlight() {
		return ErrSubmitInProgress
	}

	c.state = StateIdle
	c.lastErr = nil
	if state.finished() {
		c.state = state
		if lastError != "" {
			c.lastErr = errors.New(lastError)
		}
	}
	c.lastOrderID = lastOrderID
	return nil
}

// Snapshot returns a deep copy of the current draft and workflow status
func (c *Composer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Draft:       c.draft.Clone(),
		State:       c.state,
		LastOrderID: c.lastOrderID,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// SetCustomer sets the customer id. It is checked against the references
// on Submit.
func (c *Composer) SetCustomer(id models.ID) error {
	return c.mutate(func(d *Draft) error {
		d.CustomerID = id
		return nil
	})
}

// SetTerminal sets the point-of-sale terminal id
func (c *Composer) SetTerminal(value string) error {
	return c.mutate(func(d *Draft) error {
		d.POSTerminalID = value
		return nil
	})
}

// AddLine appends a blank line
func (c *Composer) AddLine() error {
	return c.mutate(func(d *Draft) error {
		d.Lines = append(d.Lines, NewLine())
		return nil
	})
}

// RemoveLine removes the line at index. Removing the only line is a no-op.
func (c *Composer) RemoveLine(index int) error {
	return c.mutate(func(d *Draft) error {
		if index < 0 || index >= len(d.Lines) {
			return fmt.Errorf("%w: %d", ErrLineIndex, index)
		}
		if len(d.Lines) == 1 {
			return nil
		}
		d.Lines = append(d.Lines[:index:index], d.Lines[index+1:]...)
		return nil
	})
}

// SetLineField replaces one field of the line at index. Reference fields
// take an id (empty clears the selection); quantity takes user text and is
// coerced with CoerceQuantity.
func (c *Composer) SetLineField(index int, field Field, value string) error {
	return c.mutate(func(d *Draft) error {
		if index < 0 || index >= len(d.Lines) {
			return fmt.Errorf("%w: %d", ErrLineIndex, index)
		}
		line := &d.Lines[index]
		id := models.ID(value)

		switch field {
		case FieldProduct:
			if value == "" {
				line.Product = nil
				return nil
			}
			p, ok := c.refs.Product(id)
			if !ok {
				return fmt.Errorf("%w: product %s", ErrUnknownReference, id)
			}
			line.Product = &p
		case FieldWarehouse:
			if value == "" {
				line.Warehouse = nil
				return nil
			}
			w, ok := c.refs.Warehouse(id)
			if !ok {
				return fmt.Errorf("%w: warehouse %s", ErrUnknownReference, id)
			}
			line.Warehouse = &w
		case FieldLocation:
			if value == "" {
				line.Location = nil
				return nil
			}
			loc, ok := c.refs.Location(id)
			if !ok {
				return fmt.Errorf("%w: location %s", ErrUnknownReference, id)
			}
			line.Location = &loc
		case FieldQuantity:
			line.Quantity = CoerceQuantity(value)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		return nil
	})
}

// Reset restores the initial draft. It is also how a draft is cancelled.
func (c *Composer) Reset() error {
	return c.mutate(func(d *Draft) error {
		*d = NewDraft(c.opts.DefaultTerminalID)
		return nil
	})
}

// Acknowledge moves a finished workflow back to idle and clears the
// failure reason. The last order id stays for display.
func (c *Composer) Acknowledge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.finished() {
		c.state = StateIdle
		c.lastErr = nil
	}
}

// mutate applies fn to a working copy and commits it only on success, so a
// failed edit leaves the draft untouched
func (c *Composer) mutate(fn func(d *Draft) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.inFlight() {
		return ErrSubmitInProgress
	}

	working := c.draft.Clone()
	if err := fn(&working); err != nil {
		return err
	}
	c.draft = working
	return nil
}

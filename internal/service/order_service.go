package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lixing-Zhang/warehouse-pos/internal/composer"
	"github.com/Lixing-Zhang/warehouse-pos/internal/events"
	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
	"github.com/Lixing-Zhang/warehouse-pos/internal/refdata"
	"github.com/Lixing-Zhang/warehouse-pos/internal/session"
)

var (
	// ErrSessionBusy is returned while another request, typically a
	// submit, is working on the same session
	ErrSessionBusy = errors.New("session is busy")
	ErrInvalidID   = errors.New("invalid session id")
)

// OrderService binds draft sessions to order composers
type OrderService struct {
	refs      refdata.Source
	stock     composer.StockSource
	orders    composer.OrderSubmitter
	store     session.Store
	publisher events.Publisher
	opts      composer.Options
	log       *slog.Logger
	locks     *sessionLocks
}

// View is what clients see of a session
type View struct {
	ID          string         `json:"id"`
	Draft       composer.Draft `json:"draft"`
	State       composer.State `json:"state"`
	Submittable bool           `json:"submittable"`
	LastOrderID models.ID      `json:"lastOrderId,omitempty"`
	LastError   string         `json:"lastError,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// SubmitResult is returned by Submit. View is set even when the submit fails.
type SubmitResult struct {
	Order *composer.Result `json:"order,omitempty"`
	View  *View            `json:"session"`
}

// NewOrderService creates a new order service. A nil publisher disables
// order notifications.
func NewOrderService(
	refs refdata.Source,
	stock composer.StockSource,
	orders composer.OrderSubmitter,
	store session.Store,
	publisher events.Publisher,
	opts composer.Options,
) *OrderService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	opts.Logger = log

	return &OrderService{
		refs:      refs,
		stock:     stock,
		orders:    orders,
		store:     store,
		publisher: publisher,
		opts:      opts,
		log:       log.With("component", "order_service"),
		locks:     newSessionLocks(),
	}
}

// CreateSession loads reference data and starts a blank draft
func (s *OrderService) CreateSession(ctx context.Context) (*View, error) {
	snap, err := refdata.Load(ctx, s.refs)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}

	c := composer.New(snap, s.stock, s.orders, s.opts)
	sess := session.New(snap.Data(), c.Snapshot().Draft)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.log.Info("session created",
		"session_id", sess.ID,
		"customers", len(sess.Reference.Customers),
		"products", len(sess.Reference.Products),
	)
	return newView(sess, c.Snapshot()), nil
}

// GetSession returns the current draft of a session
func (s *OrderService) GetSession(ctx context.Context, id string) (*View, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.composerFor(sess)
	if err != nil {
		return nil, err
	}
	return newView(sess, c.Snapshot()), nil
}

// Reference returns the reference data a session was opened with
func (s *OrderService) Reference(ctx context.Context, id string) (refdata.Data, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return refdata.Data{}, err
	}
	return sess.Reference, nil
}

// DeleteSession discards a session and its draft
func (s *OrderService) DeleteSession(ctx context.Context, id string) error {
	if !session.ValidID(id) {
		return ErrInvalidID
	}
	if !s.locks.tryAcquire(id) {
		return ErrSessionBusy
	}
	defer s.locks.release(id)

	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func (s *OrderService) SetCustomer(ctx context.Context, id string, customerID models.ID) (*View, error) {
	return s.edit(ctx, id, func(c *composer.Composer) error {
		return c.SetCustomer(customerID)
	})
}

func (s *OrderService) SetTerminal(ctx context.Context, id, terminalID string) (*View, error) {
	return s.edit(ctx, id, func(c *composer.Composer) error {
		return c.SetTerminal(terminalID)
	})
}

func (s *OrderService) AddLine(ctx context.Context, id string) (*View, error) {
	return s.edit(ctx, id, func(c *composer.Composer) error {
		return c.AddLine()
	})
}

func (s *OrderService) RemoveLine(ctx context.Context, id string, index int) (*View, error) {
	return s.edit(ctx, id, func(c *composer.Composer) error {
		return c.RemoveLine(index)
	})
}

// LineUpdate holds the fields to change on one line, in application order
type LineUpdate struct {
	Field composer.Field
	Value string
}

// UpdateLine applies every update to the line at index. Either all of them
// are applied or none.
func (s *OrderService) UpdateLine(ctx context.Context, id string, index int, updates []LineUpdate) (*View, error) {
	return s.edit(ctx, id, func(c *composer.Composer) error {
		for _, u := range updates {
			if err := c.SetLineField(index, u.Field, u.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset discards the draft content and starts over
func (s *OrderService) Reset(ctx context.Context, id string) (*View, error) {
	return s.edit(ctx, id, func(c *composer.Composer) error {
		return c.Reset()
	})
}

// Acknowledge clears a finished submit outcome so the session reads idle again
func (s *OrderService) Acknowledge(ctx context.Context, id string) (*View, error) {
	return s.edit(ctx, id, func(c *composer.Composer) error {
		c.Acknowledge()
		return nil
	})
}

// Submit runs the submit workflow on the session's draft. Concurrent
// requests against the same session fail with ErrSessionBusy until it ends.
func (s *OrderService) Submit(ctx context.Context, id string) (*SubmitResult, error) {
	if !session.ValidID(id) {
		return nil, ErrInvalidID
	}
	if !s.locks.tryAcquire(id) {
		return nil, ErrSessionBusy
	}
	defer s.locks.release(id)

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.composerFor(sess)
	if err != nil {
		return nil, err
	}

	res, submitErr := c.Submit(ctx)
	snap := c.Snapshot()
	sess.Record(snap)
	// the order exists on the backend at this point, so a failed save is
	// only logged
	if err := s.store.Save(ctx, sess); err != nil {
		if submitErr != nil {
			return nil, err
		}
		s.log.Error("failed to save session after submit", "session_id", id, "order_id", res.OrderID, "error", err)
	}

	out := &SubmitResult{Order: res, View: newView(sess, snap)}
	if submitErr != nil {
		return out, submitErr
	}

	evt := events.OrderPlaced{
		OrderID:       res.OrderID,
		SessionID:     sess.ID,
		CustomerID:    res.CustomerID,
		POSTerminalID: res.POSTerminalID,
		Lines:         res.Lines,
		Total:         res.Total,
		PlacedAt:      sess.UpdatedAt,
	}
	if err := s.publisher.PublishOrderPlaced(context.WithoutCancel(ctx), evt); err != nil {
		s.log.Warn("failed to publish order event", "order_id", res.OrderID, "error", err)
	}
	return out, nil
}

// edit loads the session, applies fn and saves the resulting draft
func (s *OrderService) edit(ctx context.Context, id string, fn func(c *composer.Composer) error) (*View, error) {
	if !session.ValidID(id) {
		return nil, ErrInvalidID
	}
	if !s.locks.tryAcquire(id) {
		return nil, ErrSessionBusy
	}
	defer s.locks.release(id)

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.composerFor(sess)
	if err != nil {
		return nil, err
	}

	if err := fn(c); err != nil {
		return nil, err
	}

	snap := c.Snapshot()
	sess.Record(snap)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return newView(sess, snap), nil
}

func (s *OrderService) load(ctx context.Context, id string) (*session.Session, error) {
	if !session.ValidID(id) {
		return nil, ErrInvalidID
	}
	return s.store.Get(ctx, id)
}

// composerFor rebuilds a composer around a stored session
func (s *OrderService) composerFor(sess *session.Session) (*composer.Composer, error) {
	c := composer.New(refdata.NewSnapshot(sess.Reference), s.stock, s.orders, s.opts)
	if err := c.Restore(sess.Draft); err != nil {
		return nil, err
	}
	if err := c.Resume(sess.State, sess.LastOrderID, sess.LastError); err != nil {
		return nil, err
	}
	return c, nil
}

func newView(sess *session.Session, snap composer.Snapshot) *View {
	return &View{
		ID:          sess.ID,
		Draft:       snap.Draft,
		State:       snap.State,
		Submittable: snap.Draft.Submittable(),
		LastOrderID: snap.LastOrderID,
		LastError:   snap.LastError,
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
	}
}

// sessionLocks is a set of session ids currently being worked on
type sessionLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{held: make(map[string]struct{})}
}

func (l *sessionLocks) tryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[id]; busy {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

func (l *sessionLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}

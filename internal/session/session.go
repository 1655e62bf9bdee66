// Package session persists order drafts between requests.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Lixing-Zhang/warehouse-pos/internal/composer"
	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
	"github.com/Lixing-Zhang/warehouse-pos/internal/refdata"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one operator's order draft together with the reference data
// it was composed against
type Session struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Reference   refdata.Data   `json:"reference"`
	Draft       composer.Draft `json:"draft"`
	State       composer.State `json:"state"`
	LastOrderID models.ID      `json:"lastOrderId,omitempty"`
	LastError   string         `json:"lastError,omitempty"`
}

// Record copies the draft and submit outcome of a composer snapshot
func (s *Session) Record(snap composer.Snapshot) {
	s.Draft = snap.Draft
	s.State = snap.State
	s.LastOrderID = snap.LastOrderID
	s.LastError = snap.LastError
	s.UpdatedAt = time.Now().UTC()
}

// New creates a session with a fresh id and draft
func New(ref refdata.Data, draft composer.Draft) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Reference: ref,
		Draft:     draft,
	}
}

// Store persists sessions. Implementations are safe for concurrent use.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// ValidID reports whether id looks like a session id
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

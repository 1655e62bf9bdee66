package composer

import (
	"errors"
	"strings"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

var (
	ErrValidation       = errors.New("order validation failed")
	ErrStock            = errors.New("stock check failed")
	ErrSubmission       = errors.New("order submission failed")
	ErrSubmitInProgress = errors.New("order submission in progress")
	ErrLineIndex        = errors.New("line index out of range")
	ErrUnknownField     = errors.New("unknown line field")
	ErrUnknownReference = errors.New("unknown reference")

	errEmptyResponse = errors.New("backend returned no order")
)

// DefaultSubmissionMessage is shown when the backend gives no reason
const DefaultSubmissionMessage = "failed to place order"

// Issue is one local validation problem. Line is -1 for header fields.
type Issue struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found before any network call
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Message
	}
	return "please fill all required fields: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// LineProblem describes why one line failed its stock check
type LineProblem struct {
	Line      int       `json:"line"`
	ProductID models.ID `json:"productId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
}

// StockError carries one entry per offending line, in line order
type StockError struct {
	Lines []LineProblem
}

func (e *StockError) Error() string {
	msgs := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		msgs[i] = l.Message
	}
	return strings.Join(msgs, "; ")
}

func (e *StockError) Is(target error) bool {
	return target == ErrStock
}

// SubmissionError is a backend rejection or transport failure
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmission
}

// backendMessager is implemented by submitter errors that carry a
// message from the backend response body
type backendMessager interface {
	BackendMessage() string
}

func submissionError(err error) *SubmissionError {
	msg := DefaultSubmissionMessage
	var bm backendMessager
	if errors.As(err, &bm) && bm.BackendMessage() != "" {
		msg = bm.BackendMessage()
	}
	return &SubmissionError{Message: msg, Err: err}
}

package composer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

// Field names one editable field of a Line
type Field string

const (
	FieldProduct   Field = "product"
	FieldWarehouse Field = "warehouse"
	FieldLocation  Field = "location"
	FieldQuantity  Field = "quantity"
)

// Draft is an order being composed. It has no identity until the backend
// accepts it and assigns an order id.
type Draft struct {
	CustomerID    models.ID `json:"customerId"`
	POSTerminalID string    `json:"posTerminalId"`
	Lines         []Line    `json:"lines"`
}

// Line is one product/warehouse/location/quantity tuple.
// Nil references mean "not selected yet".
type Line struct {
	Product   *models.Product   `json:"product"`
	Warehouse *models.Warehouse `json:"warehouse"`
	Location  *models.Location  `json:"location"`
	Quantity  int               `json:"quantity"`
}

// NewDraft returns the initial draft: no customer, the given terminal id and one blank line
func NewDraft(terminalID string) Draft {
	return Draft{
		POSTerminalID: terminalID,
		Lines:         []Line{NewLine()},
	}
}

func NewLine() Line {
	return Line{Quantity: 1}
}

// Complete reports whether every reference is selected and quantity is at least 1
func (l Line) Complete() bool {
	return l.Product != nil && l.Warehouse != nil && l.Location != nil && l.Quantity >= 1
}

// Submittable reports whether the draft has a customer and only complete lines
func (d Draft) Submittable() bool {
	if d.CustomerID == "" || len(d.Lines) == 0 {
		return false
	}
	for _, l := range d.Lines {
		if !l.Complete() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the draft
func (d Draft) Clone() Draft {
	out := Draft{
		CustomerID:    d.CustomerID,
		POSTerminalID: d.POSTerminalID,
		Lines:         make([]Line, len(d.Lines)),
	}
	for i, l := range d.Lines {
		out.Lines[i] = l.clone()
	}
	return out
}

func (l Line) clone() Line {
	out := Line{Quantity: l.Quantity}
	if l.Product != nil {
		p := *l.Product
		out.Product = &p
	}
	if l.Warehouse != nil {
		w := *l.Warehouse
		out.Warehouse = &w
	}
	if l.Location != nil {
		loc := *l.Location
		out.Location = &loc
	}
	return out
}

// CoerceQuantity parses a user-entered quantity. Anything that is not a
// positive integer becomes 1.
func CoerceQuantity(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// validate checks the draft locally and reports every problem at once
func validate(d Draft, refs References) error {
	var issues []Issue

	if d.CustomerID == "" {
		issues = append(issues, Issue{Line: -1, Field: "customer", Message: "customer is required"})
	} else if _, ok := refs.Customer(d.CustomerID); !ok {
		issues = append(issues, Issue{Line: -1, Field: "customer", Message: fmt.Sprintf("customer %s does not exist", d.CustomerID)})
	}
	if len(d.Lines) == 0 {
		issues = append(issues, Issue{Line: -1, Field: "lines", Message: "at least one line is required"})
	}

	for i, l := range d.Lines {
		if l.Product == nil {
			issues = append(issues, lineIssue(i, FieldProduct, "product is required"))
		}
		if l.Warehouse == nil {
			issues = append(issues, lineIssue(i, FieldWarehouse, "warehouse is required"))
		}
		if l.Location == nil {
			issues = append(issues, lineIssue(i, FieldLocation, "location is required"))
		}
		if l.Quantity < 1 {
			issues = append(issues, lineIssue(i, FieldQuantity, "quantity must be at least 1"))
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func lineIssue(index int, field Field, msg string) Issue {
	return Issue{
		Line:    index,
		Field:   string(field),
		Message: fmt.Sprintf("line %d: %s", index+1, msg),
	}
}

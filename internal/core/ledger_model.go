package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType is the kind of stock movement recorded by a ledger entry.
type DocumentType string

const (
	DocumentReceipt  DocumentType = "RECEIPT"
	DocumentDelivery DocumentType = "DELIVERY"
	DocumentTransfer DocumentType = "TRANSFER"
)

// decimalScale is the scale of every NUMERIC column; finer values would be rounded on write.
const decimalScale = 4

func exceedsScale(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(decimalScale))
}

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentReceipt, DocumentDelivery, DocumentTransfer:
		return true
	}
	return false
}

// numberPrefix is the document number prefix used by the gapless per-type sequence.
func (t DocumentType) numberPrefix() string {
	switch t {
	case DocumentReceipt:
		return "WH/IN"
	case DocumentDelivery:
		return "WH/OUT"
	default:
		return "WH/INT"
	}
}

// reservedNumberPrefix covers every sequence prefix; caller-supplied numbers may not use it.
const reservedNumberPrefix = "WH/"

// MovementStatus is the lifecycle state of a ledger entry.
//
//	DRAFT → VALIDATED   (stock effect applied, irreversible)
//	DRAFT → CANCELLED   (no stock effect, irreversible)
type MovementStatus string

const (
	StatusDraft     MovementStatus = "DRAFT"
	StatusValidated MovementStatus = "VALIDATED"
	StatusCancelled MovementStatus = "CANCELLED"
)

func (s MovementStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusValidated, StatusCancelled:
		return true
	}
	return false
}

// Priority is an operational hint carried on ledger entries.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// LedgerEntry is one stock movement document.
// SourceLocationID is nil for receipts, DestinationLocationID is nil for deliveries.
type LedgerEntry struct {
	ID                    string          `json:"id"`
	DocumentNumber        string          `json:"document_number"`
	DocumentType          DocumentType    `json:"document_type"`
	Status                MovementStatus  `json:"status"`
	ProductID             string          `json:"product_id"`
	ProductSKU            string          `json:"product_sku"`  // joined from products
	ProductName           string          `json:"product_name"` // joined from products
	SourceLocationID      *string         `json:"source_location_id,omitempty"`
	SourceLocationName    string          `json:"source_location_name,omitempty"`
	DestinationLocationID *string         `json:"destination_location_id,omitempty"`
	DestinationName       string          `json:"destination_location_name,omitempty"`
	Quantity              decimal.Decimal `json:"quantity"`
	UnitCost              decimal.Decimal `json:"unit_cost"`
	TotalValue            decimal.Decimal `json:"total_value"`
	Priority              Priority        `json:"priority"`
	ContactName           string          `json:"contact_name"`
	Notes                 string          `json:"notes"`
	ScheduledDate         *time.Time      `json:"scheduled_date,omitempty"`
	CompletedDate         *time.Time      `json:"completed_date,omitempty"`
	CreatedBy             string          `json:"created_by"`
	ValidatedBy           *string         `json:"validated_by,omitempty"`
	CancelledBy           *string         `json:"cancelled_by,omitempty"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// stockEffect is the on-hand change a validated entry applies to one stock level row.
type stockEffect struct {
	LocationID string
	Delta      decimal.Decimal
}

// effects returns the on-hand changes of the entry, ordered by location ID.
// Rows are locked in this order so two transfers in opposite directions cannot deadlock.
func (e *LedgerEntry) effects() []stockEffect {
	var out []stockEffect
	if e.SourceLocationID != nil {
		out = append(out, stockEffect{LocationID: *e.SourceLocationID, Delta: e.Quantity.Neg()})
	}
	if e.DestinationLocationID != nil {
		out = append(out, stockEffect{LocationID: *e.DestinationLocationID, Delta: e.Quantity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return out
}

// MovementInput is the payload of createReceipt / createDelivery / createTransfer.
type MovementInput struct {
	DocumentType          DocumentType
	ProductID             string
	SourceLocationID      string
	DestinationLocationID string
	Quantity              decimal.Decimal
	UnitCost              decimal.Decimal
	DocumentNumber        string // optional; assigned from the per-type sequence when empty
	Priority              Priority
	ContactName           string
	Notes                 string
	ScheduledDate         *time.Time
	CreatedBy             string
}

// Normalize trims text fields and applies defaults. Call before Validate.
func (in *MovementInput) Normalize() {
	in.DocumentType = DocumentType(strings.ToUpper(strings.TrimSpace(string(in.DocumentType))))
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.SourceLocationID = strings.TrimSpace(in.SourceLocationID)
	in.DestinationLocationID = strings.TrimSpace(in.DestinationLocationID)
	in.DocumentNumber = strings.TrimSpace(in.DocumentNumber)
	in.Priority = Priority(strings.ToUpper(strings.TrimSpace(string(in.Priority))))
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.Notes = strings.TrimSpace(in.Notes)
}

// Validate enforces the location shape of each document type and a positive quantity.
func (in MovementInput) Validate() error {
	if !in.DocumentType.Valid() {
		return invalid("document_type", "must be one of RECEIPT, DELIVERY, TRANSFER, got %q", in.DocumentType)
	}
	if in.ProductID == "" {
		return invalid("product_id", "is required")
	}
	if !in.Quantity.IsPositive() {
		return invalid("quantity", "must be greater than 0, got %s", in.Quantity)
	}
	if exceedsScale(in.Quantity) {
		return invalid("quantity", "must have at most %d decimal places, got %s", decimalScale, in.Quantity)
	}
	if in.UnitCost.IsNegative() {
		return invalid("unit_cost", "cannot be negative, got %s", in.UnitCost)
	}
	if exceedsScale(in.UnitCost) {
		return invalid("unit_cost", "must have at most %d decimal places, got %s", decimalScale, in.UnitCost)
	}
	if !in.Priority.Valid() {
		return invalid("priority", "must be one of LOW, NORMAL, HIGH, URGENT, got %q", in.Priority)
	}
	if in.CreatedBy == "" {
		return invalid("created_by", "is required")
	}
	if strings.HasPrefix(strings.ToUpper(in.DocumentNumber), reservedNumberPrefix) {
		return invalid("document_number", "prefix %s is reserved for generated numbers, got %q", reservedNumberPrefix, in.DocumentNumber)
	}

	switch in.DocumentType {
	case DocumentReceipt:
		if in.DestinationLocationID == "" {
			return invalid("destination_location_id", "is required for a receipt")
		}
		if in.SourceLocationID != "" {
			return invalid("source_location_id", "must be empty for a receipt")
		}
	case DocumentDelivery:
		if in.SourceLocationID == "" {
			return invalid("source_location_id", "is required for a delivery")
		}
		if in.DestinationLocationID != "" {
			return invalid("destination_location_id", "must be empty for a delivery")
		}
	case DocumentTransfer:
		if in.SourceLocationID == "" {
			return invalid("source_location_id", "is required for a transfer")
		}
		if in.DestinationLocationID == "" {
			return invalid("destination_location_id", "is required for a transfer")
		}
		if in.SourceLocationID == in.DestinationLocationID {
			return invalid("destination_location_id", "must differ from source_location_id")
		}
	}
	return nil
}

// OperationFilter narrows getOperations. Zero values mean "no filter".
// LocationID matches either side of a movement. From/To bound created_at.
type OperationFilter struct {
	DocumentType DocumentType
	Status       MovementStatus
	ProductID    string
	LocationID   string
	From         *time.Time
	To           *time.Time
	Limit        int
}

// ValidateOptions carries the optional reservation a delivery consumes.
type ValidateOptions struct {
	ReservationID string
}

// ValidationResult is the outcome of a successful validation.
type ValidationResult struct {
	Entry       *LedgerEntry      `json:"entry"`
	StockLevels []StockLevel      `json:"stock_levels"`
	Reservation *StockReservation `json:"reservation,omitempty"`
}

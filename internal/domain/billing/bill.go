package billing

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/google/uuid"
)

// State transitions:
//
//	pending → paid
//	pending → cancelled
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentMobileMoney PaymentMethod = "lipa_kwa_simu"
	PaymentCard        PaymentMethod = "card"
	PaymentInsurance   PaymentMethod = "insurance"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentMobileMoney, PaymentCard, PaymentInsurance:
		return true
	}
	return false
}

// SourceKind names the clinical entity a bill or line was generated from.
type SourceKind string

const (
	SourceAppointment   SourceKind = "appointment"
	SourceMedicalRecord SourceKind = "medical_record"
	SourcePrescription  SourceKind = "prescription"
	SourceLabOrder      SourceKind = "lab_order"
)

type SourceRef struct {
	Kind SourceKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

func (r SourceRef) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

// SourceSet is the set of sources that already appear on some bill.
type SourceSet map[SourceRef]struct{}

func NewSourceSet(refs ...SourceRef) SourceSet {
	s := make(SourceSet, len(refs))
	for _, r := range refs {
		s[r] = struct{}{}
	}
	return s
}

func (s SourceSet) Has(r SourceRef) bool {
	_, ok := s[r]
	return ok
}

func (s SourceSet) Add(r SourceRef) {
	s[r] = struct{}{}
}

type Bill struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PatientID uuid.UUID  `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	Items     []BillItem `gorm:"foreignKey:BillID" json:"items"`

	Subtotal int64 `gorm:"column:subtotal;not null;default:0" json:"subtotal"`
	Tax      int64 `gorm:"column:tax;not null;default:0" json:"tax"`
	Discount int64 `gorm:"column:discount;not null;default:0" json:"discount"`
	Total    int64 `gorm:"column:total;not null;default:0" json:"total"`

	Status        Status        `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentMethod PaymentMethod `gorm:"column:payment_method;type:varchar(30)" json:"payment_method,omitempty"`
	PaidAt        *time.Time    `gorm:"column:paid_at" json:"paid_at,omitempty"`

	// Trigger that generated the bill. Empty for bills raised by hand.
	SourceKind SourceKind `gorm:"column:source_kind;type:varchar(30)" json:"source_kind,omitempty"`
	SourceID   *uuid.UUID `gorm:"column:source_id;type:uuid" json:"source_id,omitempty"`

	Notes     string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedBy *uuid.UUID `gorm:"column:created_by;type:uuid" json:"created_by,omitempty"`
}

func (Bill) TableName() string {
	return "billing.bills"
}

// BillItem is one priced line. Name, category and price are copied from the
// price list when the line is created and never re-read.
type BillItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	BillID    uuid.UUID `gorm:"column:bill_id;type:uuid;not null;index" json:"bill_id"`
	Position  int       `gorm:"column:position;not null" json:"position"`

	ServiceID   uuid.UUID        `gorm:"column:service_id;type:uuid;not null" json:"service_id"`
	ServiceName string           `gorm:"column:service_name;type:varchar(255);not null" json:"service_name"`
	Category    pricing.Category `gorm:"column:category;type:varchar(30);not null" json:"category"`
	UnitPrice   int64            `gorm:"column:unit_price;not null" json:"unit_price"`
	Quantity    int              `gorm:"column:quantity;not null;default:1" json:"quantity"`
	TotalPrice  int64            `gorm:"column:total_price;not null" json:"total_price"`

	SourceKind SourceKind `gorm:"column:source_kind;type:varchar(30)" json:"source_kind,omitempty"`
	SourceID   *uuid.UUID `gorm:"column:source_id;type:uuid" json:"source_id,omitempty"`
}

func (BillItem) TableName() string {
	return "billing.bill_items"
}

func (i *BillItem) Source() (SourceRef, bool) {
	if i.SourceID == nil || i.SourceKind == "" {
		return SourceRef{}, false
	}
	return SourceRef{Kind: i.SourceKind, ID: *i.SourceID}, true
}

func NewBill(patientID uuid.UUID) *Bill {
	return &Bill{
		PatientID: patientID,
		Status:    StatusPending,
	}
}

func (b *Bill) SetSource(ref SourceRef) {
	id := ref.ID
	b.SourceKind = ref.Kind
	b.SourceID = &id
}

func (b *Bill) Source() (SourceRef, bool) {
	if b.SourceID == nil || b.SourceKind == "" {
		return SourceRef{}, false
	}
	return SourceRef{Kind: b.SourceKind, ID: *b.SourceID}, true
}

// AddItem appends a line priced from p and recalculates the totals.
// Quantities below one bill a single unit.
func (b *Bill) AddItem(p pricing.ServicePrice, quantity int, src *SourceRef) *BillItem {
	if quantity < 1 {
		quantity = 1
	}
	item := BillItem{
		BillID:      b.ID,
		Position:    len(b.Items),
		ServiceID:   p.ID,
		ServiceName: p.ServiceName,
		Category:    p.Category,
		UnitPrice:   p.Price,
		Quantity:    quantity,
		TotalPrice:  p.Price * int64(quantity),
	}
	if src != nil {
		id := src.ID
		item.SourceKind = src.Kind
		item.SourceID = &id
	}
	b.Items = append(b.Items, item)
	b.Recalculate()
	return &b.Items[len(b.Items)-1]
}

func (b *Bill) ApplyDiscount(discount int64) error {
	if discount < 0 || discount > b.Subtotal {
		return ErrInvalidDiscount
	}
	b.Discount = discount
	b.Recalculate()
	return nil
}

// Recalculate derives subtotal and total from the lines. There is no tax model.
func (b *Bill) Recalculate() {
	var subtotal int64
	for i := range b.Items {
		b.Items[i].TotalPrice = b.Items[i].UnitPrice * int64(b.Items[i].Quantity)
		subtotal += b.Items[i].TotalPrice
	}
	b.Subtotal = subtotal
	b.Tax = 0
	b.Total = subtotal - b.Discount
}

// Sources lists the bill's own source followed by every line source.
func (b *Bill) Sources() []SourceRef {
	var refs []SourceRef
	if ref, ok := b.Source(); ok {
		refs = append(refs, ref)
	}
	for i := range b.Items {
		if ref, ok := b.Items[i].Source(); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

func (b *Bill) IsEditable() bool {
	return b.Status == StatusPending
}

func (b *Bill) CanTransitionTo(next Status) bool {
	return b.Status == StatusPending && (next == StatusPaid || next == StatusCancelled)
}

func (b *Bill) MarkPaid(method PaymentMethod, at time.Time) error {
	if !b.CanTransitionTo(StatusPaid) {
		return ErrInvalidStatusTransition
	}
	if !method.IsValid() {
		return ErrInvalidPaymentMethod
	}
	b.Status = StatusPaid
	b.PaymentMethod = method
	b.PaidAt = &at
	return nil
}

func (b *Bill) Cancel() error {
	if !b.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	b.Status = StatusCancelled
	return nil
}

// ExplicitItem is a line requested by name rather than derived from a
// clinical entity. Category narrows the first lookup; AnyCategory searches
// the whole price list.
type ExplicitItem struct {
	ServiceName string           `json:"service_name" validate:"required,max=255"`
	Category    pricing.Category `json:"category"`
	Quantity    int              `json:"quantity" validate:"omitempty,min=1"`
}

type AddItemCommand struct {
	BillID uuid.UUID
	Item   ExplicitItem
}

type UpdateStatusCommand struct {
	BillID        uuid.UUID
	Status        Status        `validate:"required"`
	PaymentMethod PaymentMethod
}

type ListBillsQuery struct {
	Status   *Status
	Page     int
	PageSize int
}

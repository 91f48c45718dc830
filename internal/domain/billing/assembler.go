package billing

import (
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/google/uuid"
)

// Named consultation services tried, in order, when the rule table finds nothing.
var preferredConsultationNames = []string{
	"Consultation",
	"Doctor Consultation",
	"Medical Consultation",
}

// AssembleInput holds everything a bill is built from. All entities must be
// loaded by the caller; assembly does no I/O.
type AssembleInput struct {
	PatientID uuid.UUID
	Catalog   pricing.Catalog

	Appointment  *appointment.Appointment
	Record       *medical_record.MedicalRecord
	Prescription *prescription.Prescription
	LabOrder     *lab_order.LabOrder
	Items        []ExplicitItem

	// OmitRecordPrescriptions and OmitRecordLabOrders leave the record's
	// linked lines off the bill. Autobilling sets them from the per-trigger
	// switches.
	OmitRecordPrescriptions bool
	OmitRecordLabOrders     bool

	Discount int64

	// Source is recorded on the bill itself. Nil for bills raised by hand.
	Source *SourceRef

	// AlreadyBilled lines are left out rather than billed twice.
	AlreadyBilled SourceSet
}

// Unmatched is a requested line with no price list entry at or above the
// match floor. It is left off the bill.
type Unmatched struct {
	Name     string           `json:"name"`
	Category pricing.Category `json:"category"`
	Source   *SourceRef       `json:"source,omitempty"`
}

type Assembly struct {
	Bill      *Bill
	Unmatched []Unmatched
	Skipped   []SourceRef
}

// Assemble prices every requested line against the catalog and builds a
// pending bill. Lines are added in the order appointment, record
// prescriptions, record lab orders, prescription, lab order, explicit items.
// The bill may come back empty; callers decide whether that is an error.
func Assemble(in AssembleInput) (*Assembly, error) {
	bill := NewBill(in.PatientID)
	if in.Source != nil {
		bill.SetSource(*in.Source)
	}
	a := &Assembly{Bill: bill}

	if appt := in.Appointment; appt != nil {
		src := &SourceRef{Kind: SourceAppointment, ID: appt.ID}
		if !a.skip(in.AlreadyBilled, src) {
			if p, ok := ConsultationPrice(in.Catalog, appt.Type, appt.Department); ok {
				bill.AddItem(p, 1, src)
			} else {
				a.miss(string(appt.Type)+" consultation", pricing.CategoryConsultation, src)
			}
		}
	}

	if rec := in.Record; rec != nil {
		if !in.OmitRecordPrescriptions {
			for i := range rec.Prescriptions {
				a.addPrescription(in, &rec.Prescriptions[i])
			}
		}
		if !in.OmitRecordLabOrders {
			for i := range rec.LabOrders {
				a.addLabOrder(in, &rec.LabOrders[i])
			}
		}
	}

	if in.Prescription != nil {
		a.addPrescription(in, in.Prescription)
	}
	if in.LabOrder != nil {
		a.addLabOrder(in, in.LabOrder)
	}

	for _, item := range in.Items {
		if p, ok := in.Catalog.FindBestPriceWithFallback(item.ServiceName, item.Category); ok {
			bill.AddItem(p, item.Quantity, nil)
		} else {
			a.miss(item.ServiceName, item.Category, nil)
		}
	}

	// An empty bill is reported as nothing to bill by the caller, not as a
	// discount larger than its subtotal.
	if in.Discount != 0 && len(bill.Items) > 0 {
		if err := bill.ApplyDiscount(in.Discount); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Assembly) addPrescription(in AssembleInput, p *prescription.Prescription) {
	if p.Status == prescription.StatusCancelled {
		return
	}
	src := &SourceRef{Kind: SourcePrescription, ID: p.ID}
	if a.skip(in.AlreadyBilled, src) {
		return
	}
	if price, ok := in.Catalog.FindBestPriceWithFallback(p.MedicationName, pricing.CategoryMedication); ok {
		a.Bill.AddItem(price, p.BillableQuantity(), src)
		return
	}
	a.miss(p.MedicationName, pricing.CategoryMedication, src)
}

func (a *Assembly) addLabOrder(in AssembleInput, o *lab_order.LabOrder) {
	if o.Status == lab_order.StatusCancelled {
		return
	}
	src := &SourceRef{Kind: SourceLabOrder, ID: o.ID}
	if a.skip(in.AlreadyBilled, src) {
		return
	}
	if price, ok := in.Catalog.FindBestPriceWithFallback(o.TestName, pricing.CategoryLabTest); ok {
		a.Bill.AddItem(price, 1, src)
		return
	}
	a.miss(o.TestName, pricing.CategoryLabTest, src)
}

func (a *Assembly) skip(billed SourceSet, src *SourceRef) bool {
	if billed.Has(*src) {
		a.Skipped = append(a.Skipped, *src)
		return true
	}
	return false
}

func (a *Assembly) miss(name string, category pricing.Category, src *SourceRef) {
	a.Unmatched = append(a.Unmatched, Unmatched{Name: name, Category: category, Source: src})
}

// ConsultationPrice picks the consultation line for an appointment from the
// consultation section of the catalog: the rule table first, then the
// preferred service names, then a fuzzy match on the appointment type, and
// finally the first consultation entry listed.
func ConsultationPrice(c pricing.Catalog, t appointment.AppointmentType, department string) (pricing.ServicePrice, bool) {
	consultations := c.InCategory(pricing.CategoryConsultation)
	if len(consultations) == 0 {
		return pricing.ServicePrice{}, false
	}

	if cost := pricing.ResolveConsultationCost(consultations, t, department); !cost.IsZero() {
		if cost.ServiceID != uuid.Nil {
			if p, ok := consultations.ByID(cost.ServiceID); ok {
				return p, true
			}
		}
		if p, ok := consultations.FindByName(cost.ServiceName, pricing.AnyCategory); ok {
			return p, true
		}
	}

	for _, name := range preferredConsultationNames {
		if p, ok := consultations.FindByName(name, pricing.AnyCategory); ok {
			return p, true
		}
	}

	query := "consultation"
	if t != appointment.TypeConsultation {
		query = string(t) + " consultation"
	}
	if p, ok := consultations.FindBestPrice(query, pricing.AnyCategory); ok {
		return p, true
	}

	return consultations.First(pricing.AnyCategory)
}

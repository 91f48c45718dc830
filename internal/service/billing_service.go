package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	mr "github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const manualTrigger = "manual"

type BillingServiceDeps struct {
	Bills         billing.Repository
	Settings      billing.SettingsRepository
	Prices        pricing.Repository
	Patients      patient.Repository
	Appointments  appointment.Repository
	Records       mr.Repository
	Prescriptions prescription.Repository
	LabOrders     lab_order.Repository

	Config   *billing.ConfigHolder
	Notifier notification.Sink
	Audit    *AuditService
	Metrics  *metrics.Collector
	Log      *zap.Logger

	// NotifyUserIDs receive "New Bill Generated" notifications.
	NotifyUserIDs []string
	Currency      string
}

type BillingService struct {
	bills         billing.Repository
	settings      billing.SettingsRepository
	prices        pricing.Repository
	patients      patient.Repository
	appointments  appointment.Repository
	records       mr.Repository
	prescriptions prescription.Repository
	labOrders     lab_order.Repository

	config   *billing.ConfigHolder
	notifier notification.Sink
	auditSvc *AuditService
	metrics  *metrics.Collector
	log      *zap.Logger
	tracer   trace.Tracer

	notifyUserIDs []string
	currency      string
	now           func() time.Time
}

func NewBillingService(d BillingServiceDeps) *BillingService {
	s := &BillingService{
		bills:         d.Bills,
		settings:      d.Settings,
		prices:        d.Prices,
		patients:      d.Patients,
		appointments:  d.Appointments,
		records:       d.Records,
		prescriptions: d.Prescriptions,
		labOrders:     d.LabOrders,
		config:        d.Config,
		notifier:      d.Notifier,
		auditSvc:      d.Audit,
		metrics:       d.Metrics,
		log:           d.Log,
		tracer:        otel.Tracer("medbill/service/billing"),
		notifyUserIDs: d.NotifyUserIDs,
		currency:      d.Currency,
		now:           time.Now,
	}
	if s.currency == "" {
		s.currency = "TZS"
	}

	s.config.Subscribe(func(old, updated billing.AutobillingConfig) {
		s.log.Info("autobilling configuration changed",
			zap.Any("previous", old),
			zap.Any("current", updated),
		)
	})
	return s
}

// BillSources names the clinical entities a bill is assembled from. Any
// combination may be given.
type BillSources struct {
	AppointmentID   *uuid.UUID
	MedicalRecordID *uuid.UUID
	PrescriptionID  *uuid.UUID
	LabOrderID      *uuid.UUID
	Items           []billing.ExplicitItem `validate:"dive"`
}

func (s BillSources) IsEmpty() bool {
	return s.AppointmentID == nil && s.MedicalRecordID == nil &&
		s.PrescriptionID == nil && s.LabOrderID == nil && len(s.Items) == 0
}

// single returns the entity source when exactly one is set. That entity
// becomes the bill's own source.
func (s BillSources) single() *billing.SourceRef {
	var refs []billing.SourceRef
	if s.AppointmentID != nil {
		refs = append(refs, billing.SourceRef{Kind: billing.SourceAppointment, ID: *s.AppointmentID})
	}
	if s.MedicalRecordID != nil {
		refs = append(refs, billing.SourceRef{Kind: billing.SourceMedicalRecord, ID: *s.MedicalRecordID})
	}
	if s.PrescriptionID != nil {
		refs = append(refs, billing.SourceRef{Kind: billing.SourcePrescription, ID: *s.PrescriptionID})
	}
	if s.LabOrderID != nil {
		refs = append(refs, billing.SourceRef{Kind: billing.SourceLabOrder, ID: *s.LabOrderID})
	}
	if len(refs) != 1 {
		return nil
	}
	return &refs[0]
}

type AssembleBillCommand struct {
	PatientID uuid.UUID `validate:"required"`
	Sources   BillSources
	Discount  int64  `validate:"gte=0"`
	Notes     string `validate:"max=2000"`

	// Trigger is empty for bills raised by staff.
	Trigger   billing.Trigger
	CreatedBy uuid.UUID
}

// AssembleBill prices the requested sources and stores the resulting bill.
// Lines without a price list match are left off and reported in the result.
// A source that is already on a bill is never billed again.
func (s *BillingService) AssembleBill(ctx context.Context, cmd *AssembleBillCommand, callerRole string, ip string) (*billing.Assembly, error) {
	trigger := triggerLabel(cmd.Trigger)
	ctx, span := s.tracer.Start(ctx, "BillingService.AssembleBill", trace.WithAttributes(
		attribute.String("patient.id", cmd.PatientID.String()),
		attribute.String("billing.trigger", trigger),
	))
	defer span.End()

	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	if cmd.Sources.IsEmpty() {
		return nil, invalid("at least one of appointment_id, medical_record_id, prescription_id, lab_order_id or items is required")
	}
	for _, item := range cmd.Sources.Items {
		if item.Category != pricing.AnyCategory && !item.Category.IsValid() {
			return nil, invalid(fmt.Sprintf("items: category %q is invalid", item.Category))
		}
	}

	p, err := s.patients.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}

	in := billing.AssembleInput{
		PatientID: p.ID,
		Items:     cmd.Sources.Items,
		Discount:  cmd.Discount,
		Source:    cmd.Sources.single(),
	}
	if cmd.Trigger != "" {
		cfg := s.config.Current()
		in.OmitRecordPrescriptions = !cfg.ForPrescriptions
		in.OmitRecordLabOrders = !cfg.ForLabOrders
	}
	if err := s.loadSources(ctx, p.ID, cmd.Sources, &in); err != nil {
		return nil, err
	}

	billed, err := s.bills.BilledSources(ctx, candidateSources(in)...)
	if err != nil {
		return nil, fmt.Errorf("checking existing bills: %w", err)
	}
	if in.Source != nil && billed.Has(*in.Source) {
		return nil, fmt.Errorf("%s: %w", in.Source, billing.ErrAlreadyBilled)
	}
	in.AlreadyBilled = billed

	catalog, err := s.prices.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading price list: %w", err)
	}
	in.Catalog = catalog

	asm, err := billing.Assemble(in)
	if err != nil {
		return nil, err
	}
	s.reportUnmatched(p.ID, trigger, asm.Unmatched)

	if len(asm.Bill.Items) == 0 {
		if len(asm.Skipped) > 0 {
			return nil, billing.ErrAlreadyBilled
		}
		return nil, billing.ErrNothingToBill
	}

	asm.Bill.Notes = cmd.Notes
	asm.Bill.CreatedBy = actorRef(cmd.CreatedBy)

	if err := s.bills.Create(ctx, asm.Bill); err != nil {
		if errors.Is(err, billing.ErrAlreadyBilled) {
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "storing bill")
		return nil, fmt.Errorf("storing bill: %w", err)
	}

	span.SetAttributes(
		attribute.String("bill.id", asm.Bill.ID.String()),
		attribute.Int64("bill.total", asm.Bill.Total),
		attribute.Int("bill.items", len(asm.Bill.Items)),
	)
	if s.metrics != nil {
		s.metrics.BillsCreated.WithLabelValues(trigger).Inc()
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       actorRef(cmd.CreatedBy),
		UserRole:     callerRole,
		Action:       "create",
		ResourceType: "bill",
		ResourceID:   asm.Bill.ID.String(),
		IPAddress:    ip,
		Changes: map[string]any{
			"trigger": trigger,
			"total":   asm.Bill.Total,
			"items":   len(asm.Bill.Items),
		},
	})

	s.log.Info("bill created",
		zap.String("bill_id", asm.Bill.ID.String()),
		zap.String("patient_id", p.ID.String()),
		zap.String("trigger", trigger),
		zap.Int64("total", asm.Bill.Total),
		zap.Int("items", len(asm.Bill.Items)),
		zap.Int("unmatched", len(asm.Unmatched)),
	)

	s.notifier.Notify(ctx, &notification.Notification{
		UserIDs: s.notifyUserIDs,
		Type:    notification.TypeBilling,
		Title:   "New Bill Generated",
		Message: fmt.Sprintf("A new bill of %s %d has been generated for %s.", s.currency, asm.Bill.Total, p.FullName()),
		Metadata: map[string]any{
			"bill_id":    asm.Bill.ID.String(),
			"patient_id": p.ID.String(),
			"trigger":    trigger,
		},
	})

	return asm, nil
}

// loadSources fetches every referenced entity and checks it belongs to the
// patient being billed.
func (s *BillingService) loadSources(ctx context.Context, patientID uuid.UUID, src BillSources, in *billing.AssembleInput) error {
	if src.AppointmentID != nil {
		a, err := s.appointments.GetByID(ctx, *src.AppointmentID)
		if err != nil {
			return fmt.Errorf("loading appointment: %w", err)
		}
		if a.PatientID != patientID {
			return invalid("appointment_id belongs to another patient")
		}
		in.Appointment = a
	}

	if src.MedicalRecordID != nil {
		r, err := s.records.GetByID(ctx, *src.MedicalRecordID)
		if err != nil {
			return fmt.Errorf("loading medical record: %w", err)
		}
		if r.PatientID != patientID {
			return invalid("medical_record_id belongs to another patient")
		}
		in.Record = r
	}

	if src.PrescriptionID != nil {
		rx, err := s.prescriptions.GetByID(ctx, *src.PrescriptionID)
		if err != nil {
			return fmt.Errorf("loading prescription: %w", err)
		}
		if rx.PatientID != patientID {
			return invalid("prescription_id belongs to another patient")
		}
		in.Prescription = rx
	}

	if src.LabOrderID != nil {
		o, err := s.labOrders.GetByID(ctx, *src.LabOrderID)
		if err != nil {
			return fmt.Errorf("loading lab order: %w", err)
		}
		if o.PatientID != patientID {
			return invalid("lab_order_id belongs to another patient")
		}
		in.LabOrder = o
	}

	return nil
}

func candidateSources(in billing.AssembleInput) []billing.SourceRef {
	var refs []billing.SourceRef
	if in.Source != nil {
		refs = append(refs, *in.Source)
	}
	if in.Appointment != nil {
		refs = append(refs, billing.SourceRef{Kind: billing.SourceAppointment, ID: in.Appointment.ID})
	}
	if in.Record != nil {
		for _, rx := range in.Record.Prescriptions {
			refs = append(refs, billing.SourceRef{Kind: billing.SourcePrescription, ID: rx.ID})
		}
		for _, o := range in.Record.LabOrders {
			refs = append(refs, billing.SourceRef{Kind: billing.SourceLabOrder, ID: o.ID})
		}
	}
	if in.Prescription != nil {
		refs = append(refs, billing.SourceRef{Kind: billing.SourcePrescription, ID: in.Prescription.ID})
	}
	if in.LabOrder != nil {
		refs = append(refs, billing.SourceRef{Kind: billing.SourceLabOrder, ID: in.LabOrder.ID})
	}
	return refs
}

func (s *BillingService) reportUnmatched(patientID uuid.UUID, trigger string, unmatched []billing.Unmatched) {
	for _, u := range unmatched {
		if s.metrics != nil {
			s.metrics.BillLinesUnmatched.WithLabelValues(categoryLabel(u.Category)).Inc()
		}
		fields := []zap.Field{
			zap.String("patient_id", patientID.String()),
			zap.String("trigger", trigger),
			zap.String("name", u.Name),
			zap.String("category", categoryLabel(u.Category)),
		}
		if u.Source != nil {
			fields = append(fields, zap.Stringer("source", u.Source))
		}
		s.log.Warn("no price list entry matched, line left off the bill", fields...)
	}
}

// ConsultationCost returns the fee an appointment of type t would be billed.
// It runs the same selection as bill assembly so the amount shown before
// booking is the amount charged.
func (s *BillingService) ConsultationCost(ctx context.Context, t appointment.AppointmentType, department string) (pricing.ConsultationCost, error) {
	if !t.IsValid() {
		return pricing.ConsultationCost{}, appointment.ErrInvalidAppointmentType
	}

	catalog, err := s.prices.Catalog(ctx)
	if err != nil {
		return pricing.ConsultationCost{}, fmt.Errorf("loading price list: %w", err)
	}

	p, ok := billing.ConsultationPrice(catalog, t, department)
	if !ok {
		return pricing.ConsultationCost{}, nil
	}
	return pricing.ConsultationCost{
		Price:       p.Price,
		ServiceName: p.ServiceName,
		ServiceID:   p.ID,
		Category:    p.Category,
	}, nil
}

func (s *BillingService) GetBill(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) (*billing.Bill, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "read", ResourceType: "bill", ResourceID: id.String(), IPAddress: ip,
	})

	return b, nil
}

type PagedBills struct {
	Bills      []*billing.Bill `json:"bills"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

func (s *BillingService) ListPatientBills(ctx context.Context, patientID uuid.UUID, q *billing.ListBillsQuery) (*PagedBills, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	bills, total, err := s.bills.ListByPatient(ctx, patientID, q)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return &PagedBills{Bills: bills, TotalCount: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// AddBillItem prices one more line onto a pending bill.
func (s *BillingService) AddBillItem(ctx context.Context, cmd *billing.AddItemCommand, callerID uuid.UUID, callerRole string, ip string) (*billing.Bill, error) {
	if err := validateStruct(cmd.Item); err != nil {
		return nil, err
	}
	if cmd.Item.Category != pricing.AnyCategory && !cmd.Item.Category.IsValid() {
		return nil, pricing.ErrInvalidCategory
	}

	b, err := s.bills.GetByID(ctx, cmd.BillID)
	if err != nil {
		return nil, err
	}
	if !b.IsEditable() {
		return nil, billing.ErrBillNotEditable
	}

	catalog, err := s.prices.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading price list: %w", err)
	}
	price, ok := catalog.FindBestPriceWithFallback(cmd.Item.ServiceName, cmd.Item.Category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", pricing.ErrPriceNotFound, cmd.Item.ServiceName)
	}

	item := b.AddItem(price, cmd.Item.Quantity, nil)
	if err := s.bills.AddItem(ctx, b, item); err != nil {
		return nil, fmt.Errorf("adding bill item: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "update", ResourceType: "bill", ResourceID: b.ID.String(), IPAddress: ip,
		Changes: map[string]any{"item_added": price.ServiceName, "total": b.Total},
	})

	return b, nil
}

// UpdateBillStatus settles or cancels a pending bill. A paid bill without a
// payment method takes the autobilling default.
func (s *BillingService) UpdateBillStatus(ctx context.Context, cmd *billing.UpdateStatusCommand, callerID uuid.UUID, callerRole string, ip string) (*billing.Bill, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}

	b, err := s.bills.GetByID(ctx, cmd.BillID)
	if err != nil {
		return nil, err
	}

	switch cmd.Status {
	case billing.StatusPaid:
		method := cmd.PaymentMethod
		if method == "" {
			method = s.config.Current().DefaultPaymentMethod
		}
		if method == "" {
			method = billing.PaymentCash
		}
		if err := b.MarkPaid(method, s.now()); err != nil {
			return nil, err
		}
	case billing.StatusCancelled:
		if err := b.Cancel(); err != nil {
			return nil, err
		}
	default:
		return nil, billing.ErrInvalidStatusTransition
	}

	if err := s.bills.UpdateStatus(ctx, b); err != nil {
		return nil, fmt.Errorf("updating bill status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "update", ResourceType: "bill", ResourceID: b.ID.String(), IPAddress: ip,
		Changes: map[string]any{"status": string(b.Status), "payment_method": string(b.PaymentMethod)},
	})

	return b, nil
}

func (s *BillingService) AutobillingConfig() billing.AutobillingConfig {
	return s.config.Current()
}

// UpdateAutobillingConfig applies patch to the live configuration and stores
// it. If the store rejects the write the live configuration is rolled back.
func (s *BillingService) UpdateAutobillingConfig(ctx context.Context, patch billing.AutobillingPatch, callerID uuid.UUID, callerRole string, ip string) (billing.AutobillingConfig, error) {
	old := s.config.Current()
	updated, err := s.config.Update(patch)
	if err != nil {
		return old, err
	}

	if err := s.settings.SaveAutobilling(ctx, updated); err != nil {
		if rbErr := s.config.Replace(old); rbErr != nil {
			s.log.Error("failed to roll back autobilling configuration", zap.Error(rbErr))
		}
		return old, fmt.Errorf("saving autobilling configuration: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "update", ResourceType: "autobilling_config", ResourceID: billing.AutobillingSettingKey, IPAddress: ip,
		Changes: map[string]any{
			"enabled":                           updated.Enabled,
			"auto_generate_for_appointments":    updated.ForAppointments,
			"auto_generate_for_medical_records": updated.ForMedicalRecords,
			"auto_generate_for_prescriptions":   updated.ForPrescriptions,
			"auto_generate_for_lab_orders":      updated.ForLabOrders,
			"default_payment_method":            string(updated.DefaultPaymentMethod),
		},
	})

	return updated, nil
}

// LoadAutobillingConfig replaces the startup defaults with the stored
// configuration, or stores the defaults if nothing has been saved yet.
func (s *BillingService) LoadAutobillingConfig(ctx context.Context) error {
	stored, found, err := s.settings.LoadAutobilling(ctx)
	if err != nil {
		return fmt.Errorf("loading autobilling configuration: %w", err)
	}
	if !found {
		return s.settings.SaveAutobilling(ctx, s.config.Current())
	}
	return s.config.Replace(stored)
}

func triggerLabel(t billing.Trigger) string {
	if t == "" {
		return manualTrigger
	}
	return string(t)
}

func categoryLabel(c pricing.Category) string {
	if c == pricing.AnyCategory {
		return "any"
	}
	return string(c)
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/insurance"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	mr "github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type mockPatientRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*patient.Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*patient.Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.patients {
		if existing.NationalID == p.NationalID {
			return patient.ErrPatientAlreadyExists
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) ExistsByNationalID(_ context.Context, nationalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.NationalID == nationalID {
			return true, nil
		}
	}
	return false, nil
}

type mockAppointmentRepo struct {
	mu       sync.Mutex
	appts    map[uuid.UUID]*appointment.Appointment
	conflict bool
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[uuid.UUID]*appointment.Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return a, nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, a *appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) HasConflict(context.Context, uuid.UUID, time.Time, time.Time, *uuid.UUID) (bool, error) {
	return m.conflict, nil
}

func (m *mockAppointmentRepo) ListUnbilled(_ context.Context, limit int) ([]*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*appointment.Appointment
	for _, a := range m.appts {
		if len(out) == limit {
			break
		}
		out = append(out, a)
	}
	return out, nil
}

type mockRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*mr.MedicalRecord
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[uuid.UUID]*mr.MedicalRecord)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *mr.MedicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	for i := range r.Prescriptions {
		r.Prescriptions[i].ID = uuid.New()
		r.Prescriptions[i].MedicalRecordID = r.ID
	}
	for i := range r.LabOrders {
		r.LabOrders[i].ID = uuid.New()
		r.LabOrders[i].MedicalRecordID = r.ID
	}
	m.records[r.ID] = r
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*mr.MedicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, mr.ErrRecordNotFound
	}
	return r, nil
}

func (m *mockRecordRepo) ListUnbilled(_ context.Context, limit int) ([]*mr.MedicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*mr.MedicalRecord
	for _, r := range m.records {
		if len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

type mockPrescriptionRepo struct {
	mu  sync.Mutex
	rxs map[uuid.UUID]*prescription.Prescription
}

func newMockPrescriptionRepo() *mockPrescriptionRepo {
	return &mockPrescriptionRepo{rxs: make(map[uuid.UUID]*prescription.Prescription)}
}

func (m *mockPrescriptionRepo) put(p *prescription.Prescription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxs[p.ID] = p
}

func (m *mockPrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rxs[id]
	if !ok {
		return nil, prescription.ErrPrescriptionNotFound
	}
	return p, nil
}

func (m *mockPrescriptionRepo) UpdateStatus(_ context.Context, p *prescription.Prescription) error {
	m.put(p)
	return nil
}

type mockLabOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*lab_order.LabOrder
}

func newMockLabOrderRepo() *mockLabOrderRepo {
	return &mockLabOrderRepo{orders: make(map[uuid.UUID]*lab_order.LabOrder)}
}

func (m *mockLabOrderRepo) put(o *lab_order.LabOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *mockLabOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*lab_order.LabOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, lab_order.ErrLabOrderNotFound
	}
	return o, nil
}

func (m *mockLabOrderRepo) UpdateStatus(_ context.Context, o *lab_order.LabOrder) error {
	m.put(o)
	return nil
}

type mockPriceRepo struct {
	mu         sync.Mutex
	prices     []*pricing.ServicePrice
	catalogErr error
	upsertErr  map[string]error
}

func newMockPriceRepo(catalog pricing.Catalog) *mockPriceRepo {
	m := &mockPriceRepo{}
	for i := range catalog {
		p := catalog[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		m.prices = append(m.prices, &p)
	}
	return m
}

func (m *mockPriceRepo) Create(_ context.Context, p *pricing.ServicePrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.prices {
		if existing.Category == p.Category && existing.ServiceName == p.ServiceName {
			return pricing.ErrDuplicateService
		}
	}
	p.ID = uuid.New()
	m.prices = append(m.prices, p)
	return nil
}

func (m *mockPriceRepo) GetByID(_ context.Context, id uuid.UUID) (*pricing.ServicePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prices {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, pricing.ErrPriceNotFound
}

func (m *mockPriceRepo) Update(_ context.Context, p *pricing.ServicePrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.prices {
		if existing.ID == p.ID {
			m.prices[i] = p
			return nil
		}
	}
	return pricing.ErrPriceNotFound
}

func (m *mockPriceRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.prices {
		if p.ID == id {
			m.prices = append(m.prices[:i], m.prices[i+1:]...)
			return nil
		}
	}
	return pricing.ErrPriceNotFound
}

func (m *mockPriceRepo) List(_ context.Context, q *pricing.ListPricesQuery) ([]*pricing.ServicePrice, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*pricing.ServicePrice
	for _, p := range m.prices {
		if q.Category == pricing.AnyCategory || p.Category == q.Category {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockPriceRepo) Catalog(context.Context) (pricing.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	c := make(pricing.Catalog, 0, len(m.prices))
	for _, p := range m.prices {
		c = append(c, *p)
	}
	return c, nil
}

func (m *mockPriceRepo) Upsert(_ context.Context, p *pricing.ServicePrice) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.upsertErr[p.ServiceName]; err != nil {
		return false, err
	}
	for _, existing := range m.prices {
		if existing.Category == p.Category && existing.ServiceName == p.ServiceName {
			existing.Code = p.Code
			existing.Price = p.Price
			existing.SortOrder = p.SortOrder
			existing.Metadata = p.Metadata
			p.ID = existing.ID
			return false, nil
		}
	}
	p.ID = uuid.New()
	m.prices = append(m.prices, p)
	return true, nil
}

// mockBillRepo enforces the same uniqueness on sources as the bill tables.
type mockBillRepo struct {
	mu        sync.Mutex
	bills     []*billing.Bill
	createErr error
}

func (m *mockBillRepo) Create(_ context.Context, b *billing.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	billed := m.billedLocked()
	for _, ref := range b.Sources() {
		if billed.Has(ref) {
			return billing.ErrAlreadyBilled
		}
	}
	b.ID = uuid.New()
	for i := range b.Items {
		b.Items[i].ID = uuid.New()
		b.Items[i].BillID = b.ID
	}
	m.bills = append(m.bills, b)
	return nil
}

func (m *mockBillRepo) GetByID(_ context.Context, id uuid.UUID) (*billing.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bills {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, billing.ErrBillNotFound
}

func (m *mockBillRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _ *billing.ListBillsQuery) ([]*billing.Bill, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*billing.Bill
	for _, b := range m.bills {
		if b.PatientID == patientID {
			out = append(out, b)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockBillRepo) AddItem(context.Context, *billing.Bill, *billing.BillItem) error {
	return nil
}

func (m *mockBillRepo) UpdateStatus(context.Context, *billing.Bill) error {
	return nil
}

func (m *mockBillRepo) BilledSources(_ context.Context, refs ...billing.SourceRef) (billing.SourceSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	billed := m.billedLocked()
	out := billing.NewSourceSet()
	for _, r := range refs {
		if billed.Has(r) {
			out.Add(r)
		}
	}
	return out, nil
}

func (m *mockBillRepo) billedLocked() billing.SourceSet {
	set := billing.NewSourceSet()
	for _, b := range m.bills {
		for _, ref := range b.Sources() {
			set.Add(ref)
		}
	}
	return set
}

func (m *mockBillRepo) all() []*billing.Bill {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*billing.Bill(nil), m.bills...)
}

type mockSettingsRepo struct {
	mu      sync.Mutex
	cfg     billing.AutobillingConfig
	found   bool
	saves   int
	saveErr error
}

func (m *mockSettingsRepo) LoadAutobilling(context.Context) (billing.AutobillingConfig, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, m.found, nil
}

func (m *mockSettingsRepo) SaveAutobilling(_ context.Context, cfg billing.AutobillingConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cfg, m.found = cfg, true
	m.saves++
	return nil
}

type mockInsuranceRepo struct {
	mu     sync.Mutex
	claims map[uuid.UUID]*insurance.Claim
}

func (m *mockInsuranceRepo) Create(_ context.Context, c *insurance.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims == nil {
		m.claims = make(map[uuid.UUID]*insurance.Claim)
	}
	c.ID = uuid.New()
	m.claims[c.ID] = c
	return nil
}

func (m *mockInsuranceRepo) GetByID(_ context.Context, id uuid.UUID) (*insurance.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, insurance.ErrClaimNotFound
	}
	return c, nil
}

func (m *mockInsuranceRepo) Update(_ context.Context, c *insurance.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[c.ID] = c
	return nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (m *mockAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, string(e.Action)+" "+e.ResourceType)
	}
	return out
}

type mockNotificationRepo struct {
	mu      sync.Mutex
	created []*notification.Notification
	err     error
}

func (m *mockNotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, n)
	return nil
}

// captureSink records notifications synchronously.
type captureSink struct {
	mu    sync.Mutex
	notes []*notification.Notification
}

func (s *captureSink) Notify(_ context.Context, n *notification.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
}

func (s *captureSink) titled(title string) []*notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notification.Notification
	for _, n := range s.notes {
		if n.Title == title {
			out = append(out, n)
		}
	}
	return out
}

// recordingPublisher stands in for the autobiller in clinical service tests.
type recordingPublisher struct {
	mu     sync.Mutex
	events []BillingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev BillingEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

type testEnv struct {
	patients      *mockPatientRepo
	appointments  *mockAppointmentRepo
	records       *mockRecordRepo
	prescriptions *mockPrescriptionRepo
	labOrders     *mockLabOrderRepo
	prices        *mockPriceRepo
	bills         *mockBillRepo
	settings      *mockSettingsRepo
	auditRepo     *mockAuditRepo
	sink          *captureSink

	config  *billing.ConfigHolder
	metrics *metrics.Collector
	audit   *AuditService
	billing *BillingService

	auditOnce sync.Once
}

func newTestEnv(t *testing.T, catalog pricing.Catalog) *testEnv {
	t.Helper()

	env := &testEnv{
		patients:      newMockPatientRepo(),
		appointments:  newMockAppointmentRepo(),
		records:       newMockRecordRepo(),
		prescriptions: newMockPrescriptionRepo(),
		labOrders:     newMockLabOrderRepo(),
		prices:        newMockPriceRepo(catalog),
		bills:         &mockBillRepo{},
		settings:      &mockSettingsRepo{},
		auditRepo:     &mockAuditRepo{},
		sink:          &captureSink{},
		config:        billing.NewConfigHolder(billing.DefaultAutobillingConfig()),
		metrics:       metrics.NewCollector("test", prometheus.NewRegistry()),
	}
	env.audit = NewAuditService(env.auditRepo, env.metrics, zap.NewNop())
	t.Cleanup(env.flushAudit)

	env.billing = NewBillingService(BillingServiceDeps{
		Bills:         env.bills,
		Settings:      env.settings,
		Prices:        env.prices,
		Patients:      env.patients,
		Appointments:  env.appointments,
		Records:       env.records,
		Prescriptions: env.prescriptions,
		LabOrders:     env.labOrders,
		Config:        env.config,
		Notifier:      env.sink,
		Audit:         env.audit,
		Metrics:       env.metrics,
		Log:           zap.NewNop(),
		NotifyUserIDs: []string{"billing-desk"},
	})
	return env
}

// flushAudit drains the audit queue. It is safe to call more than once.
func (e *testEnv) flushAudit() {
	e.auditOnce.Do(e.audit.Shutdown)
}

func (e *testEnv) newAutobiller() *Autobiller {
	return NewAutobiller(AutobillerDeps{
		Billing:         e.billing,
		Config:          e.config,
		Appointments:    e.appointments,
		Records:         e.records,
		Notifier:        e.sink,
		Metrics:         e.metrics,
		Log:             zap.NewNop(),
		Workers:         4,
		BufferSize:      64,
		ShutdownTimeout: 5 * time.Second,
		NotifyUserIDs:   []string{"billing-desk"},
	})
}

func (e *testEnv) addPatient(t *testing.T) *patient.Patient {
	t.Helper()
	p := &patient.Patient{
		FirstName:  "Amina",
		LastName:   "Juma",
		Gender:     patient.GenderFemale,
		NationalID: uuid.NewString(),
		Status:     patient.StatusActive,
	}
	if err := e.patients.Create(context.Background(), p); err != nil {
		t.Fatalf("creating patient: %v", err)
	}
	return p
}

func (e *testEnv) addAppointment(t *testing.T, patientID uuid.UUID, typ appointment.AppointmentType) *appointment.Appointment {
	t.Helper()
	a := &appointment.Appointment{
		PatientID:    patientID,
		DoctorID:     uuid.New(),
		ScheduledAt:  time.Now().Add(24 * time.Hour),
		DurationMins: 30,
		Type:         typ,
		Status:       appointment.StatusScheduled,
	}
	if err := e.appointments.Create(context.Background(), a); err != nil {
		t.Fatalf("creating appointment: %v", err)
	}
	return a
}

func catalogEntry(name string, amount int64, c pricing.Category) pricing.ServicePrice {
	return pricing.ServicePrice{ID: uuid.New(), ServiceName: name, Price: amount, Category: c}
}

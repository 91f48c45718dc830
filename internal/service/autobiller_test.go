package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	mr "github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func scheduleCmd(patientID uuid.UUID) *appointment.CreateAppointmentCommand {
	return &appointment.CreateAppointmentCommand{
		PatientID:   patientID,
		DoctorID:    uuid.New(),
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Type:        appointment.TypeConsultation,
	}
}

func outcomes(m *metrics.Collector, t billing.Trigger, outcome string) float64 {
	return testutil.ToFloat64(m.AutobillingEvents.WithLabelValues(string(t), outcome))
}

func TestAutobiller_AppointmentRaisesBill(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	ab := env.newAutobiller()
	appts := NewAppointmentService(env.appointments, env.patients, ab, env.audit, zap.NewNop())
	p := env.addPatient(t)

	a, err := appts.ScheduleAppointment(context.Background(), scheduleCmd(p.ID), uuid.New(), "receptionist", "")
	if err != nil {
		t.Fatalf("ScheduleAppointment: %v", err)
	}
	ab.Shutdown()

	bills := env.bills.all()
	if len(bills) != 1 {
		t.Fatalf("got %d bills, want 1", len(bills))
	}
	b := bills[0]
	if b.PatientID != p.ID || b.Status != billing.StatusPending {
		t.Errorf("unexpected bill header %+v", b)
	}
	if len(b.Items) != 1 || b.Items[0].ServiceName != "Doctor Consultation" {
		t.Fatalf("items = %+v", b.Items)
	}
	if b.Subtotal != 7000 || b.Tax != 0 || b.Discount != 0 || b.Total != 7000 {
		t.Errorf("totals = %d/%d/%d/%d, want 7000/0/0/7000", b.Subtotal, b.Tax, b.Discount, b.Total)
	}
	if src, ok := b.Source(); !ok || src.ID != a.ID || src.Kind != billing.SourceAppointment {
		t.Errorf("bill source = %v", src)
	}
	if got := outcomes(env.metrics, billing.TriggerAppointmentCreated, metrics.OutcomeBilled); got != 1 {
		t.Errorf("billed events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.metrics.AutobillingQueue); got != 0 {
		t.Errorf("queue depth after drain = %v", got)
	}
}

func TestAutobiller_RepeatedEventsBillOnce(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	ab := env.newAutobiller()
	p := env.addPatient(t)
	a := env.addAppointment(t, p.ID, appointment.TypeConsultation)

	ev := BillingEvent{Trigger: billing.TriggerAppointmentCreated, PatientID: p.ID, SourceID: a.ID}
	for range 5 {
		ab.Publish(context.Background(), ev)
	}
	ab.Shutdown()

	if n := len(env.bills.all()); n != 1 {
		t.Fatalf("got %d bills, want 1", n)
	}
	if got := outcomes(env.metrics, billing.TriggerAppointmentCreated, metrics.OutcomeDuplicate); got != 4 {
		t.Errorf("duplicate events = %v, want 4", got)
	}
}

func TestAutobiller_PolicyOff(t *testing.T) {
	tests := []struct {
		name  string
		patch billing.AutobillingPatch
	}{
		{"global switch", billing.AutobillingPatch{Enabled: new(bool)}},
		{"appointment flag", billing.AutobillingPatch{ForAppointments: new(bool)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, hospitalCatalog())
			if _, err := env.config.Update(tt.patch); err != nil {
				t.Fatal(err)
			}
			ab := env.newAutobiller()
			appts := NewAppointmentService(env.appointments, env.patients, ab, env.audit, zap.NewNop())
			p := env.addPatient(t)

			if _, err := appts.ScheduleAppointment(context.Background(), scheduleCmd(p.ID), uuid.New(), "receptionist", ""); err != nil {
				t.Fatalf("ScheduleAppointment: %v", err)
			}
			ab.Shutdown()

			if n := len(env.bills.all()); n != 0 {
				t.Errorf("got %d bills with autobilling off", n)
			}
			if got := outcomes(env.metrics, billing.TriggerAppointmentCreated, metrics.OutcomeDisabled); got != 1 {
				t.Errorf("disabled events = %v, want 1", got)
			}
		})
	}
}

func TestAutobiller_FailureNotifiesAndKeepsClinicalAction(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	env.bills.createErr = errors.New("connection reset by peer")
	ab := env.newAutobiller()
	appts := NewAppointmentService(env.appointments, env.patients, ab, env.audit, zap.NewNop())
	p := env.addPatient(t)

	a, err := appts.ScheduleAppointment(context.Background(), scheduleCmd(p.ID), uuid.New(), "receptionist", "")
	if err != nil {
		t.Fatalf("billing failure leaked into scheduling: %v", err)
	}
	ab.Shutdown()

	if _, err := env.appointments.GetByID(context.Background(), a.ID); err != nil {
		t.Errorf("appointment was not kept: %v", err)
	}
	failed := env.sink.titled("Autobilling failed")
	if len(failed) != 1 {
		t.Fatalf("got %d failure notifications, want 1", len(failed))
	}
	n := failed[0]
	if n.Type != notification.TypeSystem || len(n.UserIDs) != 1 || n.UserIDs[0] != "billing-desk" {
		t.Errorf("unexpected notification %+v", n)
	}
	if !strings.Contains(n.Message, a.ID.String()) {
		t.Errorf("message does not name the appointment: %q", n.Message)
	}
	if n.Metadata["trigger"] != string(billing.TriggerAppointmentCreated) {
		t.Errorf("metadata = %+v", n.Metadata)
	}
	if got := outcomes(env.metrics, billing.TriggerAppointmentCreated, metrics.OutcomeFailed); got != 1 {
		t.Errorf("failed events = %v, want 1", got)
	}
}

func TestAutobiller_UnpricedAppointmentIsNotAFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	ab := env.newAutobiller()
	p := env.addPatient(t)
	a := env.addAppointment(t, p.ID, appointment.TypeEmergency)

	ab.Publish(context.Background(), BillingEvent{Trigger: billing.TriggerAppointmentCreated, PatientID: p.ID, SourceID: a.ID})
	ab.Shutdown()

	if n := len(env.sink.titled("Autobilling failed")); n != 0 {
		t.Errorf("got %d failure notifications for an empty price list", n)
	}
	if got := outcomes(env.metrics, billing.TriggerAppointmentCreated, metrics.OutcomeUnmatched); got != 1 {
		t.Errorf("unmatched events = %v, want 1", got)
	}
}

func TestAutobiller_DispenseAfterRecordBillsNothingTwice(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	ab := env.newAutobiller()
	records := NewMedicalRecordService(env.records, env.patients, ab, env.audit, zap.NewNop())
	dispense := NewPrescriptionService(env.prescriptions, ab, env.audit, zap.NewNop())
	labs := NewLabOrderService(env.labOrders, ab, env.sink, env.audit, zap.NewNop())
	p := env.addPatient(t)

	rec, err := records.CreateRecord(context.Background(), &mr.CreateRecordCommand{
		PatientID:     p.ID,
		DoctorID:      uuid.New(),
		Type:          mr.TypeSOAP,
		Prescriptions: []mr.PrescriptionLine{{MedicationName: "Amoxicillin 500mg", Quantity: 21}},
		LabOrders:     []mr.LabOrderLine{{TestName: "Complete Blood Count"}},
	}, uuid.New(), "doctor", "")
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	rx := rec.Prescriptions[0]
	lab := rec.LabOrders[0]
	env.prescriptions.put(&rx)
	env.labOrders.put(&lab)

	if _, err := dispense.Dispense(context.Background(), rx.ID, uuid.New(), "pharmacist", ""); err != nil {
		t.Fatalf("Dispense: %v", err)
	}
	if _, err := labs.Complete(context.Background(), lab.ID, &lab_order.CompleteLabOrderCommand{Results: "normal"}, uuid.New(), "lab_technician", ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	ab.Shutdown()

	bills := env.bills.all()
	if len(bills) != 1 {
		t.Fatalf("got %d bills, want 1", len(bills))
	}
	if b := bills[0]; len(b.Items) != 2 || b.Total != 21*300+5000 {
		t.Errorf("record bill = %d items, total %d", len(b.Items), b.Total)
	}
	if got := outcomes(env.metrics, billing.TriggerPrescriptionDispensed, metrics.OutcomeDuplicate); got != 1 {
		t.Errorf("duplicate prescription events = %v, want 1", got)
	}
	if got := outcomes(env.metrics, billing.TriggerLabOrderCompleted, metrics.OutcomeDuplicate); got != 1 {
		t.Errorf("duplicate lab events = %v, want 1", got)
	}
	if n := len(env.sink.titled("Lab Results Ready")); n != 1 {
		t.Errorf("got %d lab result notifications, want 1", n)
	}
}

func TestAutobiller_Sweep(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	p := env.addPatient(t)
	q := env.addPatient(t)
	env.addAppointment(t, p.ID, appointment.TypeConsultation)
	env.addAppointment(t, q.ID, appointment.TypeFollowUp)

	ab := env.newAutobiller()
	res, err := ab.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	ab.Shutdown()

	if res.Appointments != 2 || res.MedicalRecords != 0 {
		t.Errorf("sweep result = %+v", res)
	}
	bills := env.bills.all()
	if len(bills) != 2 {
		t.Fatalf("got %d bills, want 2", len(bills))
	}
	var total int64
	for _, b := range bills {
		total += b.Total
	}
	if total != 7000+3000 {
		t.Errorf("combined total = %d, want 10000", total)
	}
}

func TestAutobiller_PublishAfterShutdownIsDropped(t *testing.T) {
	env := newTestEnv(t, hospitalCatalog())
	ab := env.newAutobiller()
	ab.Shutdown()
	ab.Shutdown()

	p := env.addPatient(t)
	a := env.addAppointment(t, p.ID, appointment.TypeConsultation)
	ab.Publish(context.Background(), BillingEvent{Trigger: billing.TriggerAppointmentCreated, PatientID: p.ID, SourceID: a.ID})

	if got := testutil.ToFloat64(env.metrics.AutobillingDropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if n := len(env.bills.all()); n != 0 {
		t.Errorf("got %d bills after shutdown", n)
	}
}

// slowAssembler outlives the autobiller's shutdown window and then writes to
// the audit log before failing, as a stalled database call would.
type slowAssembler struct {
	delay time.Duration
	audit *AuditService
}

func (s *slowAssembler) AssembleBill(ctx context.Context, cmd *AssembleBillCommand, role string, _ string) (*billing.Assembly, error) {
	time.Sleep(s.delay)
	s.audit.LogAsync(ctx, AuditEntry{UserRole: role, Action: "create", ResourceType: "bill", ResourceID: cmd.PatientID.String()})
	return nil, errors.New("context deadline exceeded")
}

func TestAutobiller_LateWorkerAfterShutdownDoesNotPanic(t *testing.T) {
	env := newTestEnv(t, nil)
	notifications := NewNotificationService(&mockNotificationRepo{}, env.metrics, zap.NewNop())
	ab := NewAutobiller(AutobillerDeps{
		Billing:         &slowAssembler{delay: 300 * time.Millisecond, audit: env.audit},
		Config:          env.config,
		Appointments:    env.appointments,
		Records:         env.records,
		Notifier:        notifications,
		Metrics:         env.metrics,
		Log:             zap.NewNop(),
		Workers:         1,
		BufferSize:      4,
		ShutdownTimeout: 50 * time.Millisecond,
		NotifyUserIDs:   []string{"billing-desk"},
	})

	ab.Publish(context.Background(), BillingEvent{
		Trigger:   billing.TriggerAppointmentCreated,
		PatientID: uuid.New(),
		SourceID:  uuid.New(),
	})

	// Same order as the serve command.
	ab.Shutdown()
	notifications.Shutdown(50 * time.Millisecond)
	env.flushAudit()

	ab.wg.Wait()

	if got := outcomes(env.metrics, billing.TriggerAppointmentCreated, metrics.OutcomeFailed); got != 1 {
		t.Errorf("failed events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.metrics.NotificationsSent.WithLabelValues("system", "dropped")); got != 1 {
		t.Errorf("dropped notifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.metrics.AuditBufferDropped); got != 1 {
		t.Errorf("dropped audit entries = %v, want 1", got)
	}
}

func TestAutobiller_SamePatientSameShard(t *testing.T) {
	env := newTestEnv(t, nil)
	ab := env.newAutobiller()
	defer ab.Shutdown()

	id := uuid.New()
	if ab.shardFor(id) != ab.shardFor(id) {
		t.Error("events for one patient must share a worker")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	mr "github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BillingEvent is a clinical event handed to autobilling.
type BillingEvent struct {
	Trigger   billing.Trigger
	PatientID uuid.UUID
	SourceID  uuid.UUID
	ActorID   uuid.UUID
	RequestID string
}

func (e BillingEvent) Source() billing.SourceRef {
	return billing.SourceRef{Kind: e.Trigger.SourceKind(), ID: e.SourceID}
}

// BillingPublisher receives clinical events. Publish never blocks on billing.
type BillingPublisher interface {
	Publish(ctx context.Context, ev BillingEvent)
}

type billAssembler interface {
	AssembleBill(ctx context.Context, cmd *AssembleBillCommand, callerRole string, ip string) (*billing.Assembly, error)
}

type AutobillerDeps struct {
	Billing      billAssembler
	Config       *billing.ConfigHolder
	Appointments appointment.Repository
	Records      mr.Repository
	Notifier     notification.Sink
	Metrics      *metrics.Collector
	Log          *zap.Logger

	Workers         int
	BufferSize      int
	ShutdownTimeout time.Duration
	SweepBatchSize  int

	// NotifyUserIDs receive "Autobilling failed" notifications.
	NotifyUserIDs []string
}

// Autobiller is the billing intake. Events are routed to one of a fixed set
// of workers by patient id, so all events for a patient are handled one at a
// time and in publish order. Workers start with the Autobiller.
type Autobiller struct {
	billing  billAssembler
	config   *billing.ConfigHolder
	appts    appointment.Repository
	records  mr.Repository
	notifier notification.Sink
	metrics  *metrics.Collector
	log      *zap.Logger
	tracer   trace.Tracer

	shards          []chan BillingEvent
	wg              sync.WaitGroup
	mu              sync.RWMutex
	closed          bool
	shutdownTimeout time.Duration
	sweepBatchSize  int
	notifyUserIDs   []string
	handleTimeout   time.Duration
}

func NewAutobiller(d AutobillerDeps) *Autobiller {
	workers := max(d.Workers, 1)
	buffer := max(d.BufferSize, 1)

	a := &Autobiller{
		billing:         d.Billing,
		config:          d.Config,
		appts:           d.Appointments,
		records:         d.Records,
		notifier:        d.Notifier,
		metrics:         d.Metrics,
		log:             d.Log.Named("autobiller"),
		tracer:          otel.Tracer("medbill/service/autobiller"),
		shards:          make([]chan BillingEvent, workers),
		shutdownTimeout: d.ShutdownTimeout,
		sweepBatchSize:  d.SweepBatchSize,
		notifyUserIDs:   d.NotifyUserIDs,
		handleTimeout:   30 * time.Second,
	}
	if a.shutdownTimeout <= 0 {
		a.shutdownTimeout = 10 * time.Second
	}
	if a.sweepBatchSize <= 0 {
		a.sweepBatchSize = 500
	}

	perShard := max(buffer/workers, 1)
	for i := range a.shards {
		a.shards[i] = make(chan BillingEvent, perShard)
		a.wg.Add(1)
		go a.worker(a.shards[i])
	}
	return a
}

// Publish applies the autobilling policy and queues the event. When the
// policy is off the event is discarded; when the patient's queue is full it
// is dropped and counted.
func (a *Autobiller) Publish(ctx context.Context, ev BillingEvent) {
	if !billing.ShouldAutobill(ev.Trigger, a.config.Current()) {
		a.count(ev.Trigger, metrics.OutcomeDisabled)
		a.log.Debug("autobilling disabled for trigger",
			zap.String("trigger", string(ev.Trigger)),
			zap.String("source_id", ev.SourceID.String()),
		)
		return
	}
	if ev.RequestID == "" {
		ev.RequestID = RequestIDFromContext(ctx)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(ev, "intake closed")
		return
	}

	select {
	case a.shardFor(ev.PatientID) <- ev:
		if a.metrics != nil {
			a.metrics.AutobillingQueue.Inc()
		}
	default:
		a.drop(ev, "intake queue full")
	}
}

func (a *Autobiller) shardFor(patientID uuid.UUID) chan BillingEvent {
	h := fnv.New32a()
	_, _ = h.Write(patientID[:])
	return a.shards[h.Sum32()%uint32(len(a.shards))]
}

func (a *Autobiller) drop(ev BillingEvent, reason string) {
	a.count(ev.Trigger, metrics.OutcomeDropped)
	if a.metrics != nil {
		a.metrics.AutobillingDropped.Inc()
	}
	a.log.Warn("dropping autobilling event",
		zap.String("reason", reason),
		zap.String("trigger", string(ev.Trigger)),
		zap.String("patient_id", ev.PatientID.String()),
		zap.String("source_id", ev.SourceID.String()),
	)
}

func (a *Autobiller) worker(events <-chan BillingEvent) {
	defer a.wg.Done()
	for ev := range events {
		if a.metrics != nil {
			a.metrics.AutobillingQueue.Dec()
		}
		a.handle(ev)
	}
}

func (a *Autobiller) handle(ev BillingEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), a.handleTimeout)
	defer cancel()
	if ev.RequestID != "" {
		ctx = WithRequestID(ctx, ev.RequestID)
	}

	ctx, span := a.tracer.Start(ctx, "Autobiller.handle", trace.WithAttributes(
		attribute.String("billing.trigger", string(ev.Trigger)),
		attribute.String("billing.source_id", ev.SourceID.String()),
		attribute.String("patient.id", ev.PatientID.String()),
	))
	defer span.End()

	cmd := &AssembleBillCommand{
		PatientID: ev.PatientID,
		Trigger:   ev.Trigger,
		CreatedBy: ev.ActorID,
	}
	id := ev.SourceID
	switch ev.Trigger {
	case billing.TriggerAppointmentCreated:
		cmd.Sources.AppointmentID = &id
	case billing.TriggerMedicalRecordCreated:
		cmd.Sources.MedicalRecordID = &id
	case billing.TriggerPrescriptionDispensed:
		cmd.Sources.PrescriptionID = &id
	case billing.TriggerLabOrderCompleted:
		cmd.Sources.LabOrderID = &id
	}

	asm, err := a.billing.AssembleBill(ctx, cmd, string(domain.SystemRole), "")
	switch {
	case err == nil:
		a.count(ev.Trigger, metrics.OutcomeBilled)
		a.log.Info("autobilled",
			zap.String("trigger", string(ev.Trigger)),
			zap.String("source_id", ev.SourceID.String()),
			zap.String("bill_id", asm.Bill.ID.String()),
			zap.Int64("total", asm.Bill.Total),
		)

	case errors.Is(err, billing.ErrAlreadyBilled):
		a.count(ev.Trigger, metrics.OutcomeDuplicate)
		a.log.Info("source already billed, skipping",
			zap.String("trigger", string(ev.Trigger)),
			zap.String("source_id", ev.SourceID.String()),
		)

	case errors.Is(err, billing.ErrNothingToBill):
		a.count(ev.Trigger, metrics.OutcomeUnmatched)
		a.log.Info("nothing on the price list matched, no bill raised",
			zap.String("trigger", string(ev.Trigger)),
			zap.String("source_id", ev.SourceID.String()),
		)

	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "autobilling failed")
		a.fail(ctx, ev, err)
	}
}

// fail reports a billing failure without touching the clinical action that
// raised the event.
func (a *Autobiller) fail(ctx context.Context, ev BillingEvent, err error) {
	a.count(ev.Trigger, metrics.OutcomeFailed)
	a.log.Error("autobilling failed",
		zap.String("kind", "downstream_failure"),
		zap.String("component", "autobiller"),
		zap.String("action", string(ev.Trigger)),
		zap.String("patient_id", ev.PatientID.String()),
		zap.String("source_id", ev.SourceID.String()),
		zap.String("request_id", ev.RequestID),
		zap.Error(err),
	)

	a.notifier.Notify(ctx, &notification.Notification{
		UserIDs: a.notifyUserIDs,
		Type:    notification.TypeSystem,
		Title:   "Autobilling failed",
		Message: fmt.Sprintf("A bill could not be generated for %s %s. It needs to be raised by hand.",
			ev.Trigger.SourceKind(), ev.SourceID),
		Metadata: map[string]any{
			"trigger":    string(ev.Trigger),
			"source_id":  ev.SourceID.String(),
			"patient_id": ev.PatientID.String(),
			"error":      err.Error(),
		},
	})
}

func (a *Autobiller) count(t billing.Trigger, outcome string) {
	if a.metrics != nil {
		a.metrics.AutobillingEvents.WithLabelValues(string(t), outcome).Inc()
	}
}

type SweepResult struct {
	Appointments   int `json:"appointments"`
	MedicalRecords int `json:"medical_records"`
}

// Sweep queues every appointment and medical record that has no bill yet.
// Events still pass through the autobilling policy.
func (a *Autobiller) Sweep(ctx context.Context) (*SweepResult, error) {
	appts, err := a.appts.ListUnbilled(ctx, a.sweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing unbilled appointments: %w", err)
	}
	records, err := a.records.ListUnbilled(ctx, a.sweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing unbilled medical records: %w", err)
	}

	for _, ap := range appts {
		a.Publish(ctx, BillingEvent{
			Trigger:   billing.TriggerAppointmentCreated,
			PatientID: ap.PatientID,
			SourceID:  ap.ID,
		})
	}
	for _, r := range records {
		a.Publish(ctx, BillingEvent{
			Trigger:   billing.TriggerMedicalRecordCreated,
			PatientID: r.PatientID,
			SourceID:  r.ID,
		})
	}

	a.log.Info("autobilling sweep queued",
		zap.Int("appointments", len(appts)),
		zap.Int("medical_records", len(records)),
	)
	return &SweepResult{Appointments: len(appts), MedicalRecords: len(records)}, nil
}

// Shutdown stops intake and waits for queued events to be billed, up to the
// configured timeout.
func (a *Autobiller) Shutdown() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	for _, ch := range a.shards {
		close(ch)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(a.shutdownTimeout):
		a.log.Warn("autobiller shutdown timed out; queued events were not billed")
	}
}

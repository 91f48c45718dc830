package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/patient"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultAppointmentMins = 30

type AppointmentService struct {
	repo        appointment.Repository
	patientRepo patient.Repository
	billing     BillingPublisher
	auditSvc    *AuditService
	log         *zap.Logger
}

func NewAppointmentService(
	repo appointment.Repository,
	patientRepo patient.Repository,
	publisher BillingPublisher,
	auditSvc *AuditService,
	log *zap.Logger,
) *AppointmentService {
	return &AppointmentService{repo: repo, patientRepo: patientRepo, billing: publisher, auditSvc: auditSvc, log: log}
}

// ScheduleAppointment books the slot and hands the appointment to
// autobilling. Billing runs after the booking is stored and cannot fail it.
func (s *AppointmentService) ScheduleAppointment(
	ctx context.Context,
	cmd *appointment.CreateAppointmentCommand,
	callerID uuid.UUID,
	callerRole string,
	ip string,
) (*appointment.Appointment, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	if cmd.DurationMins == 0 {
		cmd.DurationMins = defaultAppointmentMins
	}
	if cmd.DurationMins < 5 || cmd.DurationMins > 480 {
		return nil, appointment.ErrInvalidDuration
	}
	if !cmd.Type.IsValid() {
		return nil, appointment.ErrInvalidAppointmentType
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive() {
		return nil, invalid("patient is not active")
	}

	endsAt := cmd.ScheduledAt.Add(durationMins(cmd.DurationMins))
	conflict, err := s.repo.HasConflict(ctx, cmd.DoctorID, cmd.ScheduledAt, endsAt, nil)
	if err != nil {
		return nil, fmt.Errorf("checking conflicts: %w", err)
	}
	if conflict {
		return nil, appointment.ErrAppointmentConflict
	}

	a := &appointment.Appointment{
		PatientID:      cmd.PatientID,
		DoctorID:       cmd.DoctorID,
		Department:     strings.TrimSpace(cmd.Department),
		ScheduledAt:    cmd.ScheduledAt,
		DurationMins:   cmd.DurationMins,
		Type:           cmd.Type,
		Status:         appointment.StatusScheduled,
		ChiefComplaint: cmd.ChiefComplaint,
		Notes:          cmd.Notes,
		CreatedBy:      cmd.CreatedBy,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       actorRef(callerID),
		UserRole:     callerRole,
		Action:       "create",
		ResourceType: "appointment",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
	})

	s.billing.Publish(ctx, BillingEvent{
		Trigger:   billing.TriggerAppointmentCreated,
		PatientID: a.PatientID,
		SourceID:  a.ID,
		ActorID:   callerID,
	})

	return a, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "read", ResourceType: "appointment", ResourceID: id.String(), IPAddress: ip,
	})

	return a, nil
}

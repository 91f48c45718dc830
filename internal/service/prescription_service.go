package service

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/prescription"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PrescriptionService struct {
	repo     prescription.Repository
	billing  BillingPublisher
	auditSvc *AuditService
	log      *zap.Logger
}

func NewPrescriptionService(repo prescription.Repository, publisher BillingPublisher, auditSvc *AuditService, log *zap.Logger) *PrescriptionService {
	return &PrescriptionService{repo: repo, billing: publisher, auditSvc: auditSvc, log: log}
}

// Dispense is done by the pharmacy. The dispensed prescription is billed
// unless it is already on the visit's bill.
func (s *PrescriptionService) Dispense(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) (*prescription.Prescription, error) {
	if callerRole != "pharmacist" && callerRole != "admin" {
		return nil, ErrForbidden
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Dispense(callerID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, p); err != nil {
		return nil, fmt.Errorf("updating prescription status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "update", ResourceType: "prescription", ResourceID: id.String(), IPAddress: ip,
		Changes: map[string]any{"status": string(p.Status)},
	})

	s.billing.Publish(ctx, BillingEvent{
		Trigger:   billing.TriggerPrescriptionDispensed,
		PatientID: p.PatientID,
		SourceID:  p.ID,
		ActorID:   callerID,
	})

	return p, nil
}

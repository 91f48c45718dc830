package service

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/notification"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LabOrderService struct {
	repo     lab_order.Repository
	billing  BillingPublisher
	notifier notification.Sink
	auditSvc *AuditService
	log      *zap.Logger
}

func NewLabOrderService(repo lab_order.Repository, publisher BillingPublisher, notifier notification.Sink, auditSvc *AuditService, log *zap.Logger) *LabOrderService {
	return &LabOrderService{repo: repo, billing: publisher, notifier: notifier, auditSvc: auditSvc, log: log}
}

// Complete records the results, tells the ordering doctor and hands the
// order to autobilling.
func (s *LabOrderService) Complete(ctx context.Context, id uuid.UUID, cmd *lab_order.CompleteLabOrderCommand, callerID uuid.UUID, callerRole string, ip string) (*lab_order.LabOrder, error) {
	if callerRole != "lab_technician" && callerRole != "doctor" && callerRole != "admin" {
		return nil, ErrForbidden
	}
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.Complete(cmd.Results, callerID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, o); err != nil {
		return nil, fmt.Errorf("updating lab order status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "update", ResourceType: "lab_order", ResourceID: id.String(), IPAddress: ip,
		Changes: map[string]any{"status": string(o.Status)},
	})

	if o.Results != "" {
		s.notifier.Notify(ctx, &notification.Notification{
			UserIDs: []string{o.DoctorID.String()},
			Type:    notification.TypeLab,
			Title:   "Lab Results Ready",
			Message: fmt.Sprintf("Results for %s are available.", o.TestName),
			Metadata: map[string]any{
				"lab_order_id": o.ID.String(),
				"patient_id":   o.PatientID.String(),
			},
		})
	}

	s.billing.Publish(ctx, BillingEvent{
		Trigger:   billing.TriggerLabOrderCompleted,
		PatientID: o.PatientID,
		SourceID:  o.ID,
		ActorID:   callerID,
	})

	return o, nil
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/insurance"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/patient"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type InsuranceService struct {
	repo          insurance.Repository
	bills         billing.Repository
	patients      patient.Repository
	notifier      notification.Sink
	auditSvc      *AuditService
	log           *zap.Logger
	notifyUserIDs []string
	now           func() time.Time
}

func NewInsuranceService(
	repo insurance.Repository,
	bills billing.Repository,
	patients patient.Repository,
	notifier notification.Sink,
	auditSvc *AuditService,
	log *zap.Logger,
	notifyUserIDs []string,
) *InsuranceService {
	return &InsuranceService{
		repo:          repo,
		bills:         bills,
		patients:      patients,
		notifier:      notifier,
		auditSvc:      auditSvc,
		log:           log,
		notifyUserIDs: notifyUserIDs,
		now:           time.Now,
	}
}

// SubmitClaim files a claim against a bill. Provider and policy default to
// the cover on the patient's file; the amount defaults to the bill total.
func (s *InsuranceService) SubmitClaim(ctx context.Context, cmd *insurance.SubmitClaimCommand, callerID uuid.UUID, callerRole string, ip string) (*insurance.Claim, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}

	b, err := s.bills.GetByID(ctx, cmd.BillID)
	if err != nil {
		return nil, err
	}
	if b.Status == billing.StatusCancelled {
		return nil, insurance.ErrBillNotClaimable
	}

	p, err := s.patients.GetByID(ctx, b.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}

	provider := strings.TrimSpace(cmd.Provider)
	policy := strings.TrimSpace(cmd.PolicyNumber)
	if p.Insurance != nil {
		if provider == "" {
			provider = p.Insurance.Provider
		}
		if policy == "" {
			policy = p.Insurance.PolicyNumber
		}
	}
	if provider == "" || policy == "" {
		return nil, insurance.ErrNoInsuranceOnFile
	}

	amount := b.Total
	if cmd.ClaimAmount != nil {
		amount = *cmd.ClaimAmount
	}
	if amount <= 0 || amount > b.Total {
		return nil, insurance.ErrInvalidAmount
	}

	claim := &insurance.Claim{
		PatientID:    b.PatientID,
		BillID:       b.ID,
		Provider:     provider,
		PolicyNumber: policy,
		ClaimAmount:  amount,
		Status:       insurance.StatusPending,
		Notes:        cmd.Notes,
		SubmittedBy:  actorRef(callerID),
	}
	if err := claim.Submit(s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("creating insurance claim: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "create", ResourceType: "insurance_claim", ResourceID: claim.ID.String(), IPAddress: ip,
		Changes: map[string]any{"bill_id": b.ID.String(), "amount": amount, "provider": provider},
	})

	s.notifier.Notify(ctx, &notification.Notification{
		UserIDs: s.notifyUserIDs,
		Type:    notification.TypeInsurance,
		Title:   "Insurance Claim Submitted",
		Message: fmt.Sprintf("A claim of %d to %s was submitted for %s.", amount, provider, p.FullName()),
		Metadata: map[string]any{
			"claim_id": claim.ID.String(),
			"bill_id":  b.ID.String(),
		},
	})

	return claim, nil
}

func (s *InsuranceService) UpdateClaimStatus(ctx context.Context, cmd *insurance.UpdateClaimStatusCommand, callerID uuid.UUID, callerRole string, ip string) (*insurance.Claim, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	if !cmd.Status.IsValid() {
		return nil, insurance.ErrInvalidStatusTransition
	}

	claim, err := s.repo.GetByID(ctx, cmd.ClaimID)
	if err != nil {
		return nil, err
	}
	previous := claim.Status
	if err := claim.Transition(*cmd, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, claim); err != nil {
		return nil, fmt.Errorf("updating insurance claim: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "update", ResourceType: "insurance_claim", ResourceID: claim.ID.String(), IPAddress: ip,
		Changes: map[string]any{"from": string(previous), "to": string(claim.Status)},
	})

	s.log.Info("insurance claim status changed",
		zap.String("claim_id", claim.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(claim.Status)),
	)

	return claim, nil
}

func (s *InsuranceService) GetClaim(ctx context.Context, id uuid.UUID) (*insurance.Claim, error) {
	return s.repo.GetByID(ctx, id)
}

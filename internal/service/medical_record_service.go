package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	mr "github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/prescription"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MedicalRecordService struct {
	repo        mr.Repository
	patientRepo patient.Repository
	billing     BillingPublisher
	auditSvc    *AuditService
	log         *zap.Logger
}

func NewMedicalRecordService(repo mr.Repository, patientRepo patient.Repository, publisher BillingPublisher, auditSvc *AuditService, log *zap.Logger) *MedicalRecordService {
	return &MedicalRecordService{repo: repo, patientRepo: patientRepo, billing: publisher, auditSvc: auditSvc, log: log}
}

// CreateRecord stores the visit note with the prescriptions and lab orders
// written during it, then hands the record to autobilling.
func (s *MedicalRecordService) CreateRecord(ctx context.Context, cmd *mr.CreateRecordCommand, callerID uuid.UUID, callerRole string, ip string) (*mr.MedicalRecord, error) {
	if callerRole != "doctor" && callerRole != "nurse" && callerRole != "admin" {
		return nil, ErrForbidden
	}
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	if !cmd.Type.IsValid() {
		return nil, mr.ErrInvalidRecordType
	}

	if _, err := s.patientRepo.GetByID(ctx, cmd.PatientID); err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}

	record := &mr.MedicalRecord{
		PatientID:     cmd.PatientID,
		AppointmentID: cmd.AppointmentID,
		DoctorID:      cmd.DoctorID,
		Type:          cmd.Type,
		SOAPNote:      cmd.SOAPNote,
		Vitals:        cmd.Vitals,
		Diagnoses:     cmd.Diagnoses,
		Notes:         cmd.Notes,
		CreatedBy:     cmd.CreatedBy,
	}
	for _, line := range cmd.Prescriptions {
		record.Prescriptions = append(record.Prescriptions, prescription.Prescription{
			PatientID:       cmd.PatientID,
			DoctorID:        cmd.DoctorID,
			MedicationName:  strings.TrimSpace(line.MedicationName),
			DosageAmount:    line.DosageAmount,
			DosageFrequency: line.DosageFrequency,
			Duration:        line.Duration,
			Quantity:        max(line.Quantity, 1),
			Instructions:    line.Instructions,
			Status:          prescription.StatusActive,
		})
	}
	for _, line := range cmd.LabOrders {
		record.LabOrders = append(record.LabOrders, lab_order.LabOrder{
			PatientID:    cmd.PatientID,
			DoctorID:     cmd.DoctorID,
			TestName:     strings.TrimSpace(line.TestName),
			Instructions: line.Instructions,
			Status:       lab_order.StatusOrdered,
		})
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("creating medical record: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       actorRef(callerID),
		UserRole:     callerRole,
		Action:       "create",
		ResourceType: "medical_record",
		ResourceID:   record.ID.String(),
		IPAddress:    ip,
		Changes: map[string]any{
			"prescriptions": len(record.Prescriptions),
			"lab_orders":    len(record.LabOrders),
		},
	})

	s.billing.Publish(ctx, BillingEvent{
		Trigger:   billing.TriggerMedicalRecordCreated,
		PatientID: record.PatientID,
		SourceID:  record.ID,
		ActorID:   callerID,
	})

	return record, nil
}

func (s *MedicalRecordService) GetRecord(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) (*mr.MedicalRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: actorRef(callerID), UserRole: callerRole,
		Action: "read", ResourceType: "medical_record", ResourceID: id.String(), IPAddress: ip,
	})

	return record, nil
}

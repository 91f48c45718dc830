package v1

import (
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	mr "github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClinicalHandler serves the clinical endpoints whose writes raise
// autobilling triggers.
type ClinicalHandler struct {
	patients      *service.PatientService
	appointments  *service.AppointmentService
	records       *service.MedicalRecordService
	prescriptions *service.PrescriptionService
	labOrders     *service.LabOrderService
}

func NewClinicalHandler(
	patients *service.PatientService,
	appointments *service.AppointmentService,
	records *service.MedicalRecordService,
	prescriptions *service.PrescriptionService,
	labOrders *service.LabOrderService,
) *ClinicalHandler {
	return &ClinicalHandler{
		patients:      patients,
		appointments:  appointments,
		records:       records,
		prescriptions: prescriptions,
		labOrders:     labOrders,
	}
}

type createPatientRequest struct {
	FirstName   string             `json:"first_name" binding:"required"`
	LastName    string             `json:"last_name" binding:"required"`
	DateOfBirth string             `json:"date_of_birth" binding:"required"`
	Gender      patient.Gender     `json:"gender" binding:"required"`
	NationalID  string             `json:"national_id" binding:"required"`
	Phone       string             `json:"phone"`
	Email       string             `json:"email"`
	Address     string             `json:"address"`
	City        string             `json:"city"`
	Insurance   *patient.Insurance `json:"insurance"`
}

type createAppointmentRequest struct {
	PatientID      uuid.UUID                   `json:"patient_id" binding:"required"`
	DoctorID       uuid.UUID                   `json:"doctor_id" binding:"required"`
	Department     string                      `json:"department"`
	ScheduledAt    time.Time                   `json:"scheduled_at" binding:"required"`
	DurationMins   int                         `json:"duration_mins"`
	Type           appointment.AppointmentType `json:"type" binding:"required"`
	ChiefComplaint string                      `json:"chief_complaint"`
	Notes          string                      `json:"notes"`
}

type prescriptionLineRequest struct {
	MedicationName  string `json:"medication_name" binding:"required"`
	DosageAmount    string `json:"dosage_amount"`
	DosageFrequency string `json:"dosage_frequency"`
	Duration        string `json:"duration"`
	Quantity        int    `json:"quantity"`
	Instructions    string `json:"instructions"`
}

type labOrderLineRequest struct {
	TestName     string `json:"test_name" binding:"required"`
	Instructions string `json:"instructions"`
}

type createRecordRequest struct {
	PatientID     uuid.UUID                 `json:"patient_id" binding:"required"`
	AppointmentID *uuid.UUID                `json:"appointment_id"`
	DoctorID      uuid.UUID                 `json:"doctor_id" binding:"required"`
	Type          mr.RecordType             `json:"type" binding:"required"`
	SOAPNote      *mr.SOAPNote              `json:"soap_note"`
	Vitals        *mr.Vitals                `json:"vitals"`
	Diagnoses     []string                  `json:"diagnoses"`
	Notes         string                    `json:"notes"`
	Prescriptions []prescriptionLineRequest `json:"prescriptions" binding:"dive"`
	LabOrders     []labOrderLineRequest     `json:"lab_orders" binding:"dive"`
}

type completeLabOrderRequest struct {
	Results string `json:"results"`
}

func (h *ClinicalHandler) CreatePatient(c *gin.Context) {
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}
	dob, err := time.Parse(time.DateOnly, req.DateOfBirth)
	if err != nil {
		respondError(c, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
		return
	}
	userID, role := caller(c)

	p, err := h.patients.CreatePatient(c.Request.Context(), &patient.CreatePatientCommand{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: dob,
		Gender:      req.Gender,
		NationalID:  req.NationalID,
		Phone:       req.Phone,
		Email:       req.Email,
		Address:     req.Address,
		City:        req.City,
		Insurance:   req.Insurance,
		CreatedBy:   userID,
	}, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

func (h *ClinicalHandler) GetPatient(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	userID, role := caller(c)

	p, err := h.patients.GetPatient(c.Request.Context(), id, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *ClinicalHandler) CreateAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	a, err := h.appointments.ScheduleAppointment(c.Request.Context(), &appointment.CreateAppointmentCommand{
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		Department:     req.Department,
		ScheduledAt:    req.ScheduledAt,
		DurationMins:   req.DurationMins,
		Type:           req.Type,
		ChiefComplaint: req.ChiefComplaint,
		Notes:          req.Notes,
		CreatedBy:      userID,
	}, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, a)
}

func (h *ClinicalHandler) GetAppointment(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	userID, role := caller(c)

	a, err := h.appointments.GetAppointment(c.Request.Context(), id, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *ClinicalHandler) CreateRecord(c *gin.Context) {
	var req createRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	cmd := &mr.CreateRecordCommand{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		DoctorID:      req.DoctorID,
		Type:          req.Type,
		SOAPNote:      req.SOAPNote,
		Vitals:        req.Vitals,
		Diagnoses:     req.Diagnoses,
		Notes:         req.Notes,
		CreatedBy:     userID,
	}
	for _, p := range req.Prescriptions {
		cmd.Prescriptions = append(cmd.Prescriptions, mr.PrescriptionLine{
			MedicationName:  p.MedicationName,
			DosageAmount:    p.DosageAmount,
			DosageFrequency: p.DosageFrequency,
			Duration:        p.Duration,
			Quantity:        p.Quantity,
			Instructions:    p.Instructions,
		})
	}
	for _, o := range req.LabOrders {
		cmd.LabOrders = append(cmd.LabOrders, mr.LabOrderLine{TestName: o.TestName, Instructions: o.Instructions})
	}

	rec, err := h.records.CreateRecord(c.Request.Context(), cmd, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, rec)
}

func (h *ClinicalHandler) GetRecord(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	userID, role := caller(c)

	rec, err := h.records.GetRecord(c.Request.Context(), id, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rec)
}

func (h *ClinicalHandler) DispensePrescription(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	userID, role := caller(c)

	p, err := h.prescriptions.Dispense(c.Request.Context(), id, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *ClinicalHandler) CompleteLabOrder(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req completeLabOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	o, err := h.labOrders.Complete(c.Request.Context(), id, &lab_order.CompleteLabOrderCommand{
		Results:     req.Results,
		CompletedBy: userID,
	}, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, o)
}

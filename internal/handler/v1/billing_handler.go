package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BillingHandler struct {
	billing    *service.BillingService
	autobiller *service.Autobiller
}

func NewBillingHandler(billingSvc *service.BillingService, autobiller *service.Autobiller) *BillingHandler {
	return &BillingHandler{billing: billingSvc, autobiller: autobiller}
}

type billItemRequest struct {
	ServiceName string           `json:"service_name" binding:"required,max=255"`
	Category    pricing.Category `json:"category"`
	Quantity    int              `json:"quantity" binding:"omitempty,min=1"`
}

func (r billItemRequest) toItem() billing.ExplicitItem {
	return billing.ExplicitItem{ServiceName: r.ServiceName, Category: r.Category, Quantity: r.Quantity}
}

type assembleBillRequest struct {
	PatientID       uuid.UUID         `json:"patient_id" binding:"required"`
	AppointmentID   *uuid.UUID        `json:"appointment_id"`
	MedicalRecordID *uuid.UUID        `json:"medical_record_id"`
	PrescriptionID  *uuid.UUID        `json:"prescription_id"`
	LabOrderID      *uuid.UUID        `json:"lab_order_id"`
	Items           []billItemRequest `json:"items" binding:"dive"`
	Discount        int64             `json:"discount" binding:"gte=0"`
	Notes           string            `json:"notes"`
}

type assembleBillResponse struct {
	Bill      *billing.Bill       `json:"bill"`
	Unmatched []billing.Unmatched `json:"unmatched,omitempty"`
	Skipped   []billing.SourceRef `json:"skipped,omitempty"`
}

type updateBillStatusRequest struct {
	Status        billing.Status        `json:"status" binding:"required"`
	PaymentMethod billing.PaymentMethod `json:"payment_method"`
}

// ConsultationCost previews the fee for an appointment before booking.
func (h *BillingHandler) ConsultationCost(c *gin.Context) {
	t := appointment.AppointmentType(c.DefaultQuery("type", string(appointment.TypeConsultation)))
	cost, err := h.billing.ConsultationCost(c.Request.Context(), t, c.Query("department"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, cost)
}

func (h *BillingHandler) Assemble(c *gin.Context) {
	var req assembleBillRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	items := make([]billing.ExplicitItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.toItem())
	}

	cmd := &service.AssembleBillCommand{
		PatientID: req.PatientID,
		Sources: service.BillSources{
			AppointmentID:   req.AppointmentID,
			MedicalRecordID: req.MedicalRecordID,
			PrescriptionID:  req.PrescriptionID,
			LabOrderID:      req.LabOrderID,
			Items:           items,
		},
		Discount:  req.Discount,
		Notes:     req.Notes,
		CreatedBy: userID,
	}
	if cmd.Sources.IsEmpty() {
		respondError(c, http.StatusBadRequest, "at least one source or item is required")
		return
	}

	asm, err := h.billing.AssembleBill(c.Request.Context(), cmd, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, assembleBillResponse{Bill: asm.Bill, Unmatched: asm.Unmatched, Skipped: asm.Skipped})
}

func (h *BillingHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	userID, role := caller(c)

	b, err := h.billing.GetBill(c.Request.Context(), id, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, b)
}

func (h *BillingHandler) ListForPatient(c *gin.Context) {
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	q := &billing.ListBillsQuery{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		st := billing.Status(raw)
		if !st.IsValid() {
			respondError(c, http.StatusBadRequest, "invalid status filter")
			return
		}
		q.Status = &st
	}

	res, err := h.billing.ListPatientBills(c.Request.Context(), patientID, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *BillingHandler) AddItem(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req billItemRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	b, err := h.billing.AddBillItem(c.Request.Context(), &billing.AddItemCommand{
		BillID: id,
		Item:   req.toItem(),
	}, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, b)
}

func (h *BillingHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateBillStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	b, err := h.billing.UpdateBillStatus(c.Request.Context(), &billing.UpdateStatusCommand{
		BillID:        id,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
	}, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, b)
}

func (h *BillingHandler) GetAutobilling(c *gin.Context) {
	respondOK(c, h.billing.AutobillingConfig())
}

func (h *BillingHandler) UpdateAutobilling(c *gin.Context) {
	var patch billing.AutobillingPatch
	if !bindJSON(c, &patch) {
		return
	}
	userID, role := caller(c)

	cfg, err := h.billing.UpdateAutobillingConfig(c.Request.Context(), patch, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, cfg)
}

// Sweep queues every unbilled appointment and record. Billing happens in
// the background, so the response only reports what was queued.
func (h *BillingHandler) Sweep(c *gin.Context) {
	res, err := h.autobiller.Sweep(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, APIResponse[any]{Data: res, Message: "unbilled sources queued"})
}

package v1

import (
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/insurance"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InsuranceHandler struct {
	claims *service.InsuranceService
}

func NewInsuranceHandler(claims *service.InsuranceService) *InsuranceHandler {
	return &InsuranceHandler{claims: claims}
}

type submitClaimRequest struct {
	BillID       uuid.UUID `json:"bill_id" binding:"required"`
	Provider     string    `json:"provider"`
	PolicyNumber string    `json:"policy_number"`
	ClaimAmount  *int64    `json:"claim_amount"`
	Notes        string    `json:"notes"`
}

type updateClaimStatusRequest struct {
	Status          insurance.Status `json:"status" binding:"required"`
	ApprovedAmount  *int64           `json:"approved_amount"`
	RejectionReason string           `json:"rejection_reason"`
	Notes           string           `json:"notes"`
}

func (h *InsuranceHandler) Submit(c *gin.Context) {
	var req submitClaimRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	claim, err := h.claims.SubmitClaim(c.Request.Context(), &insurance.SubmitClaimCommand{
		BillID:       req.BillID,
		Provider:     req.Provider,
		PolicyNumber: req.PolicyNumber,
		ClaimAmount:  req.ClaimAmount,
		Notes:        req.Notes,
		SubmittedBy:  userID,
	}, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, claim)
}

func (h *InsuranceHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	claim, err := h.claims.GetClaim(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, claim)
}

func (h *InsuranceHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateClaimStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	claim, err := h.claims.UpdateClaimStatus(c.Request.Context(), &insurance.UpdateClaimStatusCommand{
		ClaimID:         id,
		Status:          req.Status,
		ApprovedAmount:  req.ApprovedAmount,
		RejectionReason: req.RejectionReason,
		Notes:           req.Notes,
	}, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, claim)
}

package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/insurance"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	mr "github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, mr.ErrRecordNotFound),
		errors.Is(err, prescription.ErrPrescriptionNotFound),
		errors.Is(err, lab_order.ErrLabOrderNotFound),
		errors.Is(err, pricing.ErrPriceNotFound),
		errors.Is(err, billing.ErrBillNotFound),
		errors.Is(err, insurance.ErrClaimNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, patient.ErrPatientAlreadyExists),
		errors.Is(err, appointment.ErrAppointmentConflict),
		errors.Is(err, pricing.ErrDuplicateService):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, billing.ErrAlreadyBilled):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "ALREADY_BILLED"})

	case errors.Is(err, billing.ErrNothingToBill):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "NOTHING_TO_BILL"})

	case errors.Is(err, billing.ErrBillNotEditable),
		errors.Is(err, billing.ErrInvalidStatusTransition),
		errors.Is(err, insurance.ErrInvalidStatusTransition),
		errors.Is(err, insurance.ErrBillNotClaimable),
		errors.Is(err, appointment.ErrInvalidStatusTransition),
		errors.Is(err, lab_order.ErrInvalidStatusTransition),
		errors.Is(err, prescription.ErrNotDispensable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "INVALID_STATE"})

	case errors.Is(err, appointment.ErrInvalidDuration),
		errors.Is(err, appointment.ErrInvalidAppointmentType),
		errors.Is(err, patient.ErrInvalidGender),
		errors.Is(err, patient.ErrInvalidDateOfBirth),
		errors.Is(err, mr.ErrInvalidRecordType),
		errors.Is(err, pricing.ErrInvalidCategory),
		errors.Is(err, pricing.ErrNegativePrice),
		errors.Is(err, pricing.ErrEmptyServiceName),
		errors.Is(err, pricing.ErrMalformedPriceRow),
		errors.Is(err, billing.ErrInvalidDiscount),
		errors.Is(err, billing.ErrInvalidPaymentMethod),
		errors.Is(err, billing.ErrInvalidQuantity),
		errors.Is(err, insurance.ErrInvalidAmount),
		errors.Is(err, insurance.ErrRejectionReasonRequired),
		errors.Is(err, insurance.ErrNoInsuranceOnFile):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})

	default:
		logger(c).Error("unhandled service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}

	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

// caller returns the authenticated user set by AuthMiddleware.
func caller(c *gin.Context) (uuid.UUID, string) {
	id, _ := c.Get(ctxUserID)
	role, _ := c.Get(ctxUserRole)
	userID, _ := id.(uuid.UUID)
	roleName, _ := role.(string)
	return userID, roleName
}

func logger(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ctxLogger); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return zap.NewNop()
}

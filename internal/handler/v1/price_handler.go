package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/service"
	"github.com/gin-gonic/gin"
)

type PriceHandler struct {
	prices *service.PriceService
}

func NewPriceHandler(prices *service.PriceService) *PriceHandler {
	return &PriceHandler{prices: prices}
}

type createPriceRequest struct {
	Code        string           `json:"code" binding:"max=50"`
	Category    pricing.Category `json:"category" binding:"required"`
	ServiceName string           `json:"service_name" binding:"required,max=255"`
	Price       int64            `json:"price" binding:"gte=0"`
	Description string           `json:"description"`
	Metadata    map[string]any   `json:"metadata"`
}

type updatePriceRequest struct {
	Code        *string           `json:"code"`
	Category    *pricing.Category `json:"category"`
	ServiceName *string           `json:"service_name"`
	Price       *int64            `json:"price"`
	Description *string           `json:"description"`
}

func (h *PriceHandler) List(c *gin.Context) {
	res, err := h.prices.ListPrices(c.Request.Context(), &pricing.ListPricesQuery{
		Category: pricing.Category(c.Query("category")),
		Search:   c.Query("search"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 50),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *PriceHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.prices.GetPrice(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PriceHandler) Create(c *gin.Context) {
	var req createPriceRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	p, err := h.prices.CreatePrice(c.Request.Context(), &pricing.CreatePriceCommand{
		Code:        req.Code,
		Category:    req.Category,
		ServiceName: req.ServiceName,
		Price:       req.Price,
		Description: req.Description,
		Metadata:    req.Metadata,
	}, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

func (h *PriceHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updatePriceRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, role := caller(c)

	p, err := h.prices.UpdatePrice(c.Request.Context(), id, &pricing.UpdatePriceCommand{
		Code:        req.Code,
		Category:    req.Category,
		ServiceName: req.ServiceName,
		Price:       req.Price,
		Description: req.Description,
	}, userID, role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PriceHandler) Delete(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	userID, role := caller(c)

	if err := h.prices.DeletePrice(c.Request.Context(), id, userID, role, c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Match answers "what would this name be billed at".
func (h *PriceHandler) Match(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		respondError(c, http.StatusBadRequest, "name is required")
		return
	}

	m, err := h.prices.MatchPrice(c.Request.Context(), name, pricing.Category(c.Query("category")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, m)
}

// Import accepts the hospital price list as a multipart "file" field.
func (h *PriceHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable upload")
		return
	}
	defer f.Close()

	userID, role := caller(c)
	res, err := h.prices.ImportPriceList(c.Request.Context(), f, userID, role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, res)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merch-batch-api/internal/middleware"
	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/schema"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/response"
)

type referenceService interface {
	UOMs(ctx context.Context) ([]models.UOM, error)
	SellingUOMs(ctx context.Context) ([]models.SellingUOM, error)
	Departments(ctx context.Context) ([]models.Department, error)
	SubDepartments(ctx context.Context, dept string) ([]models.SubDepartment, error)
	Stores(ctx context.Context) ([]models.Store, error)
	Derive(ctx context.Context, in schema.DerivedInput) schema.DerivedFields
}

// ReferenceHandler serves the item master lists forms are populated from.
type ReferenceHandler struct {
	service referenceService
}

// NewReferenceHandler constructs the handler.
func NewReferenceHandler(service referenceService) *ReferenceHandler {
	return &ReferenceHandler{service: service}
}

// UOMs godoc
// @Summary List units of measure
// @Tags References
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /references/uom [get]
func (h *ReferenceHandler) UOMs(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "reference service not configured"))
		return
	}
	items, err := h.service.UOMs(c.Request.Context())
	respondList(c, items, err)
}

// SellingUOMs godoc
// @Summary List selling units of measure
// @Tags References
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /references/selling-uom [get]
func (h *ReferenceHandler) SellingUOMs(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "reference service not configured"))
		return
	}
	items, err := h.service.SellingUOMs(c.Request.Context())
	respondList(c, items, err)
}

// Departments godoc
// @Summary List departments
// @Tags References
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /references/departments [get]
func (h *ReferenceHandler) Departments(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "reference service not configured"))
		return
	}
	items, err := h.service.Departments(c.Request.Context())
	respondList(c, items, err)
}

// SubDepartments godoc
// @Summary List sub-departments of a department
// @Tags References
// @Produce json
// @Param dept path string true "Department code"
// @Success 200 {object} response.Envelope
// @Router /references/departments/{dept}/sub-departments [get]
func (h *ReferenceHandler) SubDepartments(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "reference service not configured"))
		return
	}
	items, err := h.service.SubDepartments(c.Request.Context(), c.Param("dept"))
	respondList(c, items, err)
}

// Stores godoc
// @Summary List stores
// @Tags References
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /references/stores [get]
func (h *ReferenceHandler) Stores(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "reference service not configured"))
		return
	}
	items, err := h.service.Stores(c.Request.Context())
	respondList(c, items, err)
}

// Derive godoc
// @Summary Compute derived form fields
// @Tags References
// @Accept json
// @Produce json
// @Param payload body schema.DerivedInput true "Partial form"
// @Success 200 {object} response.Envelope
// @Router /derived-fields [post]
func (h *ReferenceHandler) Derive(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "reference service not configured"))
		return
	}
	var in schema.DerivedInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid derived fields payload"))
		return
	}
	response.JSON(c, http.StatusOK, h.service.Derive(c.Request.Context(), in), nil)
}

func respondList(c *gin.Context, items interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, middleware.ExtractMeta(c))
}

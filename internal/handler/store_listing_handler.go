package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/response"
)

type storeListingService interface {
	Template(ctx context.Context) (*dto.ExportFile, error)
	Parse(ctx context.Context, r io.Reader) (*dto.StoreListingParseResponse, error)
	ValidateCodes(ctx context.Context, codes []string) (*models.StoreCodeValidation, error)
}

// StoreListingHandler serves the store listing upload flow.
type StoreListingHandler struct {
	service storeListingService
}

// NewStoreListingHandler constructs the handler.
func NewStoreListingHandler(service storeListingService) *StoreListingHandler {
	return &StoreListingHandler{service: service}
}

// Template godoc
// @Summary Download the store listing template
// @Tags Store Listing
// @Produce octet-stream
// @Success 200 {file} file
// @Router /store-listing/template [get]
func (h *StoreListingHandler) Template(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "store listing service not configured"))
		return
	}
	file, err := h.service.Template(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Parse godoc
// @Summary Read store codes from an uploaded workbook
// @Tags Store Listing
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx workbook"
// @Success 200 {object} response.Envelope
// @Router /store-listing/parse [post]
func (h *StoreListingHandler) Parse(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "store listing service not configured"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.service.Parse(c.Request.Context(), src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ValidateStores godoc
// @Summary Validate store codes
// @Tags Store Listing
// @Accept json
// @Produce json
// @Param payload body dto.ValidateStoresRequest true "Store codes"
// @Success 200 {object} response.Envelope
// @Router /stores/validate [post]
func (h *StoreListingHandler) ValidateStores(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "store listing service not configured"))
		return
	}
	var req dto.ValidateStoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "codes are required"))
		return
	}
	result, err := h.service.ValidateCodes(c.Request.Context(), req.Codes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

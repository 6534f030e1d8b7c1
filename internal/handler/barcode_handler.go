package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/response"
)

type barcodeService interface {
	Details(ctx context.Context, code, batchNumber string) (*models.BarcodeDetails, error)
	CheckUsed(ctx context.Context, code, batchNumber string, requestType models.RequestType) (models.GuardResult, error)
}

// BarcodeHandler serves item master lookups and the uniqueness guard.
type BarcodeHandler struct {
	service barcodeService
}

// NewBarcodeHandler constructs the handler.
func NewBarcodeHandler(service barcodeService) *BarcodeHandler {
	return &BarcodeHandler{service: service}
}

// Details godoc
// @Summary Look up a barcode in the item master
// @Tags Barcodes
// @Produce json
// @Param barcode path string true "Barcode"
// @Param batch_number query string false "Batch the form belongs to"
// @Success 200 {object} response.Envelope
// @Router /barcodes/{barcode} [get]
func (h *BarcodeHandler) Details(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "barcode service not configured"))
		return
	}
	details, err := h.service.Details(c.Request.Context(), c.Param("barcode"), c.Query("batch_number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// CheckUsed godoc
// @Summary Check whether a barcode is already staged
// @Description A conflict is a 200 response whose data has status true and outcome CONFLICT.
// @Tags Barcodes
// @Produce json
// @Param barcode path string true "Barcode"
// @Param batch_number query string false "Batch the record is saved to"
// @Param request_type query string false "Request type"
// @Success 200 {object} response.Envelope
// @Router /barcodes/{barcode}/used [get]
func (h *BarcodeHandler) CheckUsed(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "barcode service not configured"))
		return
	}
	result, err := h.service.CheckUsed(c.Request.Context(), c.Param("barcode"), c.Query("batch_number"), models.RequestType(c.Query("request_type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

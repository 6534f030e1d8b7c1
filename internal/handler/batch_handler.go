package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/middleware"
	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/response"
)

type batchService interface {
	Generate(ctx context.Context, requestType models.RequestType, actor *models.JWTClaims) (*models.Batch, error)
	List(ctx context.Context, query dto.BatchQuery, actor *models.JWTClaims) ([]models.Batch, *models.Pagination, error)
	Get(ctx context.Context, batchNumber string) (*dto.BatchDetail, error)
	Post(ctx context.Context, batchNumber string, actor *models.JWTClaims) (*models.Batch, error)
	Export(ctx context.Context, batchNumber, format string) (*dto.ExportFile, error)
}

type batchHistoryService interface {
	BatchHistory(ctx context.Context, batchNumber string) ([]models.AuditLog, error)
}

// BatchHandler serves batch endpoints.
type BatchHandler struct {
	service batchService
	history batchHistoryService
}

// NewBatchHandler constructs the handler. history may be nil.
func NewBatchHandler(service batchService, history batchHistoryService) *BatchHandler {
	return &BatchHandler{service: service, history: history}
}

// Create godoc
// @Summary Generate a batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body dto.CreateBatchRequest true "Request type"
// @Success 201 {object} response.Envelope
// @Router /batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "batch service not configured"))
		return
	}
	var req dto.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "request_type is required"))
		return
	}
	claims, ok := actorFromContext(c)
	if !ok {
		return
	}
	batch, err := h.service.Generate(c.Request.Context(), req.RequestType, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// List godoc
// @Summary List batches
// @Tags Batches
// @Produce json
// @Param request_type query string false "Request type"
// @Param status query string false "Comma separated statuses"
// @Param mine query bool false "Only batches created by the caller"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "batch service not configured"))
		return
	}
	claims, ok := actorFromContext(c)
	if !ok {
		return
	}
	query := dto.BatchQuery{
		RequestType: models.RequestType(strings.TrimSpace(c.Query("request_type"))),
		Mine:        c.Query("mine") == "true",
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		query.PageSize = size
	}
	for _, status := range strings.Split(c.Query("status"), ",") {
		if status = strings.ToUpper(strings.TrimSpace(status)); status != "" {
			query.Status = append(query.Status, models.BatchStatus(status))
		}
	}
	batches, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get batch detail
// @Tags Batches
// @Produce json
// @Param batch_number path string true "Batch number"
// @Success 200 {object} response.Envelope
// @Router /batches/{batch_number} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "batch service not configured"))
		return
	}
	detail, err := h.service.Get(c.Request.Context(), c.Param("batch_number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Post godoc
// @Summary Post a batch
// @Description Closes an open batch for editing and queues it for dispatch. Empty batches are refused.
// @Tags Batches
// @Produce json
// @Param batch_number path string true "Batch number"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /batches/{batch_number}/post [post]
func (h *BatchHandler) Post(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "batch service not configured"))
		return
	}
	claims, ok := actorFromContext(c)
	if !ok {
		return
	}
	batch, err := h.service.Post(c.Request.Context(), c.Param("batch_number"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Export godoc
// @Summary Export a batch
// @Tags Batches
// @Produce octet-stream
// @Param batch_number path string true "Batch number"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /batches/{batch_number}/export [get]
func (h *BatchHandler) Export(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "batch service not configured"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), c.Param("batch_number"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// History godoc
// @Summary Batch audit trail
// @Tags Batches
// @Produce json
// @Param batch_number path string true "Batch number"
// @Success 200 {object} response.Envelope
// @Router /batches/{batch_number}/history [get]
func (h *BatchHandler) History(c *gin.Context) {
	if h.history == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "audit service not configured"))
		return
	}
	entries, err := h.history.BatchHistory(c.Request.Context(), c.Param("batch_number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

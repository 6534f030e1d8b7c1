package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/middleware"
	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/response"
)

type recordService interface {
	Validate(ctx context.Context, batchNumber string, req dto.SaveRecordRequest) (*dto.ValidateRecordResponse, error)
	Create(ctx context.Context, batchNumber string, req dto.SaveRecordRequest, image *dto.ImageUpload, actor *models.JWTClaims) (*dto.BatchRecordView, error)
	Update(ctx context.Context, batchNumber, id string, req dto.SaveRecordRequest, image *dto.ImageUpload, actor *models.JWTClaims) (*dto.BatchRecordView, error)
	Delete(ctx context.Context, batchNumber, id string, actor *models.JWTClaims) error
	List(ctx context.Context, batchNumber string, requestType models.RequestType) ([]dto.BatchRecordView, error)
	Get(ctx context.Context, batchNumber, id string) (*dto.BatchRecordView, error)
}

// RecordHandler serves the records staged in a batch.
type RecordHandler struct {
	service recordService
}

// NewRecordHandler constructs the handler.
func NewRecordHandler(service recordService) *RecordHandler {
	return &RecordHandler{service: service}
}

// List godoc
// @Summary List batch records
// @Tags Records
// @Produce json
// @Param batch_number path string true "Batch number"
// @Param request_type query string false "Request type, must match the batch"
// @Success 200 {object} response.Envelope
// @Router /batches/{batch_number}/records [get]
func (h *RecordHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "record service not configured"))
		return
	}
	records, err := h.service.List(c.Request.Context(), c.Param("batch_number"), models.RequestType(c.Query("request_type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a batch record
// @Tags Records
// @Produce json
// @Param batch_number path string true "Batch number"
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{batch_number}/records/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "record service not configured"))
		return
	}
	record, err := h.service.Get(c.Request.Context(), c.Param("batch_number"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Validate godoc
// @Summary Validate a record without saving it
// @Tags Records
// @Accept json
// @Produce json
// @Param batch_number path string true "Batch number"
// @Param payload body dto.SaveRecordRequest true "Record"
// @Success 200 {object} response.Envelope
// @Router /batches/{batch_number}/records/validate [post]
func (h *RecordHandler) Validate(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "record service not configured"))
		return
	}
	var req dto.SaveRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid record payload"))
		return
	}
	result, err := h.service.Validate(c.Request.Context(), c.Param("batch_number"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Create godoc
// @Summary Save a record to a batch
// @Description Accepts JSON, or multipart with a payload field holding the record JSON and an optional image file.
// @Tags Records
// @Accept json,mpfd
// @Produce json
// @Param batch_number path string true "Batch number"
// @Param payload body dto.SaveRecordRequest true "Record"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /batches/{batch_number}/records [post]
func (h *RecordHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "record service not configured"))
		return
	}
	claims, ok := actorFromContext(c)
	if !ok {
		return
	}
	req, image, err := bindRecord(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Create(c.Request.Context(), c.Param("batch_number"), req, image, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Update godoc
// @Summary Update a batch record
// @Tags Records
// @Accept json,mpfd
// @Produce json
// @Param batch_number path string true "Batch number"
// @Param id path string true "Record ID"
// @Param payload body dto.SaveRecordRequest true "Record"
// @Success 200 {object} response.Envelope
// @Router /batches/{batch_number}/records/{id} [put]
func (h *RecordHandler) Update(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "record service not configured"))
		return
	}
	claims, ok := actorFromContext(c)
	if !ok {
		return
	}
	req, image, err := bindRecord(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Update(c.Request.Context(), c.Param("batch_number"), c.Param("id"), req, image, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete a batch record
// @Tags Records
// @Param batch_number path string true "Batch number"
// @Param id path string true "Record ID"
// @Success 204
// @Router /batches/{batch_number}/records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "record service not configured"))
		return
	}
	claims, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("batch_number"), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func bindRecord(c *gin.Context) (dto.SaveRecordRequest, *dto.ImageUpload, error) {
	var req dto.SaveRecordRequest
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, nil, appErrors.Clone(appErrors.ErrValidation, "invalid record payload")
		}
		return req, nil, nil
	}

	payload := strings.TrimSpace(c.PostForm("payload"))
	if payload == "" || !json.Valid([]byte(payload)) {
		return req, nil, appErrors.Clone(appErrors.ErrValidation, "payload must be a JSON object")
	}
	req.Payload = json.RawMessage(payload)
	req.RequestType = models.RequestType(strings.TrimSpace(c.PostForm("request_type")))

	fileHeader, err := c.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return req, nil, nil
		}
		return req, nil, appErrors.Clone(appErrors.ErrValidation, "invalid image upload")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return req, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open image")
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return req, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read image")
	}
	return req, &dto.ImageUpload{Filename: fileHeader.Filename, Data: data}, nil
}

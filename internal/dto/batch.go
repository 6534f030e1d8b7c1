package dto

import (
	"encoding/json"

	"github.com/noah-isme/merch-batch-api/internal/models"
)

// CreateBatchRequest opens a new batch.
type CreateBatchRequest struct {
	RequestType models.RequestType `json:"request_type" binding:"required"`
}

// BatchQuery filters batch listings.
type BatchQuery struct {
	RequestType models.RequestType
	Status      []models.BatchStatus
	Mine        bool
	Page        int
	PageSize    int
}

// SaveRecordRequest carries one staged edit. RequestType is optional and
// must match the batch when given.
type SaveRecordRequest struct {
	RequestType models.RequestType `json:"request_type"`
	Payload     json.RawMessage    `json:"payload" binding:"required"`
}

// ImageUpload is an item image attached to a record.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// ValidateRecordResponse echoes a payload after derived fields are applied.
type ValidateRecordResponse struct {
	Valid       bool               `json:"valid"`
	RequestType models.RequestType `json:"request_type"`
	Barcode     string             `json:"barcode"`
	SKU         string             `json:"sku"`
	Description string             `json:"description"`
	Payload     json.RawMessage    `json:"payload"`
	Guarded     bool               `json:"guarded"`
}

// BatchRecordView is a record with download links for its image.
type BatchRecordView struct {
	models.BatchRecord
	ImageURL     string `json:"image_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// BatchDetail is a batch header with its records.
type BatchDetail struct {
	Batch   models.Batch      `json:"batch"`
	Records []BatchRecordView `json:"records"`
}

// ExportFile is a rendered batch download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

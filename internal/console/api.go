// Package console drives the staged-edit forms of the merchandising console:
// derived fields, the debounced barcode helpers and the
// validate, confirm, guard, save workflow every request type shares.
package console

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
)

// Submission is a record ready to be sent to the batch service.
type Submission struct {
	RequestType models.RequestType
	Payload     json.RawMessage
	Image       *dto.ImageUpload
}

// API is the part of the batch service the workflow talks to.
type API interface {
	ListRecords(ctx context.Context, batchNumber string, requestType models.RequestType) ([]dto.BatchRecordView, error)
	BarcodeDetails(ctx context.Context, code, batchNumber string) (*models.BarcodeDetails, error)
	CheckBarcodeUsed(ctx context.Context, code, batchNumber string, requestType models.RequestType) (models.GuardResult, error)
	SaveRecord(ctx context.Context, batchNumber string, sub Submission) (*dto.BatchRecordView, error)
	UpdateRecord(ctx context.Context, batchNumber, id string, sub Submission) (*dto.BatchRecordView, error)
	DeleteRecord(ctx context.Context, batchNumber, id string) error
	PostBatch(ctx context.Context, batchNumber string) (*models.Batch, error)
	UOMs(ctx context.Context) ([]models.UOM, error)
}

// Notifier shows the outcome of an action to the user.
type Notifier interface {
	Success(title, message string)
	Error(title, message string)
}

// APIError is a non-2xx answer from the batch service.
type APIError struct {
	Status  int
	Code    string
	Title   string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// describe turns any failure into the title and message shown to the user.
func describe(err error, title, fallback string) (string, string) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Title != "" {
			title = apiErr.Title
		}
		if apiErr.Message != "" {
			return title, apiErr.Message
		}
		return title, fallback
	}
	if err != nil && err.Error() != "" {
		return title, err.Error()
	}
	return title, fallback
}

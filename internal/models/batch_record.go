package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// BatchRecord is one staged edit belonging to a batch. Type specific fields
// live in Payload as produced by the request type schema.
type BatchRecord struct {
	ID          string          `db:"id" json:"id"`
	BatchNumber string          `db:"batch_number" json:"batch_number"`
	RequestType RequestType     `db:"request_type" json:"request_type"`
	Barcode     string          `db:"barcode" json:"barcode"`
	SKU         string          `db:"sku" json:"sku"`
	Description string          `db:"description" json:"description"`
	Payload     types.JSONText  `db:"payload" json:"payload"`
	ImagePath   *string         `db:"image_path" json:"image_path,omitempty"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// BarcodeClaim is an open batch record holding a barcode.
type BarcodeClaim struct {
	RecordID    string      `db:"id"`
	BatchNumber string      `db:"batch_number"`
	RequestType RequestType `db:"request_type"`
}

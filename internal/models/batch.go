package models

import "time"

// RequestType identifies the kind of change a batch stages.
type RequestType string

const (
	RequestChangeDescription  RequestType = "change_description"
	RequestChangePackaging    RequestType = "change_packaging"
	RequestChangePriceCost    RequestType = "change_price_cost"
	RequestChangeStatus       RequestType = "change_status"
	RequestChangeStoreListing RequestType = "change_store_listing"
	RequestNewBarcode         RequestType = "new_barcode"
	RequestNewItem            RequestType = "new_item"
)

// RequestTypes lists every supported request type in console menu order.
var RequestTypes = []RequestType{
	RequestChangeDescription,
	RequestChangePackaging,
	RequestChangePriceCost,
	RequestChangeStatus,
	RequestChangeStoreListing,
	RequestNewBarcode,
	RequestNewItem,
}

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	for _, known := range RequestTypes {
		if t == known {
			return true
		}
	}
	return false
}

// BatchStatus captures the lifecycle of a batch. Only OPEN batches accept edits.
type BatchStatus string

const (
	BatchStatusOpen      BatchStatus = "OPEN"
	BatchStatusSubmitted BatchStatus = "SUBMITTED"
	BatchStatusPosted    BatchStatus = "POSTED"
)

// Batch is a named collection of staged records sharing a request type.
type Batch struct {
	BatchNumber   string      `db:"batch_number" json:"batch_number"`
	RequestType   RequestType `db:"request_type" json:"request_type"`
	Status        BatchStatus `db:"batch_status" json:"batch_status"`
	TotalRecord   int         `db:"total_record" json:"total_record"`
	CreatedBy     string      `db:"created_by" json:"created_by"`
	DateCreated   time.Time   `db:"date_created" json:"date_created"`
	DateSubmitted *time.Time  `db:"date_submitted" json:"date_submitted,omitempty"`
	DatePosted    *time.Time  `db:"date_posted" json:"date_posted,omitempty"`
}

// Editable reports whether records may still be added, changed or removed.
func (b *Batch) Editable() bool {
	return b != nil && b.Status == BatchStatusOpen
}

// BatchFilter constrains batch listings.
type BatchFilter struct {
	RequestType RequestType
	Status      []BatchStatus
	CreatedBy   string
	Page        int
	PageSize    int
}

package models

import "github.com/shopspring/decimal"

// ItemMasterItem is the item master view of a barcode.
type ItemMasterItem struct {
	Barcode      string              `db:"barcode"`
	SKU          string              `db:"sku"`
	Description  string              `db:"description"`
	Dept         string              `db:"dept"`
	DeptName     string              `db:"deptnm"`
	UOM          *string             `db:"uom"`
	StandardPack decimal.NullDecimal `db:"standard_pack"`
	CurrentPrice decimal.NullDecimal `db:"current_price"`
	CurrentCost  decimal.NullDecimal `db:"current_cost"`
	SKUStatus    *string             `db:"sku_status"`
	StoreCount   *int                `db:"store_count"`
}

// BarcodeDetails is the lookup response the console uses to prefill a form.
type BarcodeDetails struct {
	Status       bool             `json:"status"`
	Message      string           `json:"message,omitempty"`
	Barcode      string           `json:"barcode"`
	SKU          string           `json:"sku,omitempty"`
	Description  string           `json:"description,omitempty"`
	Dept         string           `json:"dept,omitempty"`
	DeptName     string           `json:"deptnm,omitempty"`
	UOM          *string          `json:"uom,omitempty"`
	StandardPack *decimal.Decimal `json:"standard_pack,omitempty"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	CurrentCost  *decimal.Decimal `json:"current_cost,omitempty"`
	SKUStatus    *string          `json:"sku_status,omitempty"`
	StoreCount   *int             `json:"store_count,omitempty"`
	InBatch      bool             `json:"in_batch"`
}

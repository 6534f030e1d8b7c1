package schema

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/merch-batch-api/pkg/barcode"
)

// Key holds the columns every record stores outside of its payload.
type Key struct {
	Barcode     string
	SKU         string
	Description string
}

// Payload is the typed field set of one request type.
type Payload interface {
	// Derive recomputes the read-only fields from their inputs.
	Derive(uoms *UOMResolver)
	Key() Key
}

// ChangeDescription renames an item.
type ChangeDescription struct {
	Barcode     string `json:"barcode" label:"Barcode" validate:"required,digits,max=13"`
	SKU         string `json:"sku" label:"SKU" validate:"required,max=20"`
	Brand       string `json:"brand" label:"Brand" validate:"required,max=30"`
	Description string `json:"description" label:"Description" validate:"required,max=60"`
	Variant     string `json:"variant" label:"Variant" validate:"max=30"`
	Size        string `json:"size" label:"Size" validate:"max=20"`
	DisplayName string `json:"display_name"`
}

func (p *ChangeDescription) Derive(*UOMResolver) {
	p.DisplayName = ComposeDisplayName(p.Brand, p.Description, p.Variant, p.Size)
}

func (p *ChangeDescription) Key() Key {
	return Key{Barcode: p.Barcode, SKU: p.SKU, Description: p.DisplayName}
}

// ChangePackaging moves an item to another buying unit.
type ChangePackaging struct {
	Barcode      string          `json:"barcode" label:"Barcode" validate:"required,digits,max=13"`
	SKU          string          `json:"sku" label:"SKU" validate:"required,max=20"`
	Description  string          `json:"description"`
	CurrentUOM   string          `json:"current_uom"`
	UOM          string          `json:"uom" label:"UOM" validate:"required"`
	StandardPack decimal.Decimal `json:"standard_pack" label:"Standard pack" validate:"gt=0"`
}

func (p *ChangePackaging) Derive(uoms *UOMResolver) {
	p.StandardPack = uoms.Apply(p.UOM, p.StandardPack)
}

func (p *ChangePackaging) Key() Key {
	return Key{Barcode: p.Barcode, SKU: p.SKU, Description: p.Description}
}

// ChangePriceCost stages a new selling price and cost.
type ChangePriceCost struct {
	Barcode       string           `json:"barcode" label:"Barcode" validate:"required,digits,max=13"`
	SKU           string           `json:"sku" label:"SKU" validate:"required,max=20"`
	Description   string           `json:"description"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	CurrentCost   *decimal.Decimal `json:"current_cost,omitempty"`
	NewPrice      decimal.Decimal  `json:"new_price" label:"New price" validate:"gt=0"`
	NewCost       decimal.Decimal  `json:"new_cost" label:"New cost" validate:"gt=0"`
	EffectiveDate string           `json:"effective_date" label:"Effective date" validate:"required,datetime=2006-01-02"`
}

func (p *ChangePriceCost) Derive(*UOMResolver) {}

func (p *ChangePriceCost) Key() Key {
	return Key{Barcode: p.Barcode, SKU: p.SKU, Description: p.Description}
}

// ChangeStatus activates, deactivates or discontinues an item.
type ChangeStatus struct {
	Barcode       string `json:"barcode" label:"Barcode" validate:"required,digits,max=13"`
	SKU           string `json:"sku" label:"SKU" validate:"required,max=20"`
	Description   string `json:"description"`
	CurrentStatus string `json:"current_status"`
	NewStatus     string `json:"new_status" label:"New status" validate:"required,item_status"`
	Reason        string `json:"reason" label:"Reason" validate:"required,max=120"`
}

func (p *ChangeStatus) Derive(*UOMResolver) {}

func (p *ChangeStatus) Key() Key {
	return Key{Barcode: p.Barcode, SKU: p.SKU, Description: p.Description}
}

// ChangeStoreListing adds or removes an item from stores.
type ChangeStoreListing struct {
	Barcode     string   `json:"barcode" label:"Barcode" validate:"required,digits,max=13"`
	SKU         string   `json:"sku" label:"SKU" validate:"required,max=20"`
	Description string   `json:"description"`
	Action      string   `json:"action" label:"Action" validate:"required,listing_action"`
	Stores      []string `json:"stores" label:"Stores" validate:"required,min=1,dive,required"`
}

func (p *ChangeStoreListing) Derive(*UOMResolver) {}

func (p *ChangeStoreListing) Key() Key {
	return Key{Barcode: p.Barcode, SKU: p.SKU, Description: p.Description}
}

// NewBarcode attaches a generated EAN-13 to an existing SKU. The generated
// code is the record barcode.
type NewBarcode struct {
	SKU          string          `json:"sku" label:"SKU" validate:"required,max=20"`
	Description  string          `json:"description"`
	RawBarcode   string          `json:"raw_barcode" label:"Raw barcode" validate:"required,digits,max=12"`
	NewBarcode   string          `json:"new_barcode"`
	UOM          string          `json:"uom" label:"UOM" validate:"required"`
	StandardPack decimal.Decimal `json:"standard_pack" label:"Standard pack" validate:"gt=0"`
}

func (p *NewBarcode) Derive(uoms *UOMResolver) {
	p.NewBarcode = barcode.ComputeEAN13(p.RawBarcode)
	p.StandardPack = uoms.Apply(p.UOM, p.StandardPack)
}

func (p *NewBarcode) Key() Key {
	return Key{Barcode: p.NewBarcode, SKU: p.SKU, Description: p.Description}
}

// NewItem creates an item. SKU is assigned downstream and may be empty.
type NewItem struct {
	Barcode      string          `json:"barcode" label:"Barcode" validate:"required,digits,max=13"`
	SKU          string          `json:"sku" validate:"max=20"`
	Brand        string          `json:"brand" label:"Brand" validate:"required,max=30"`
	Description  string          `json:"description" label:"Description" validate:"required,max=60"`
	Variant      string          `json:"variant" label:"Variant" validate:"max=30"`
	Size         string          `json:"size" label:"Size" validate:"max=20"`
	DisplayName  string          `json:"display_name"`
	Dept         string          `json:"dept" label:"Department" validate:"required"`
	SubDept      string          `json:"sub_dept" label:"Sub-department" validate:"required"`
	UOM          string          `json:"uom" label:"UOM" validate:"required"`
	StandardPack decimal.Decimal `json:"standard_pack" label:"Standard pack" validate:"gt=0"`
	SellingUOM   string          `json:"selling_uom" label:"Selling UOM" validate:"required"`
	Cost         decimal.Decimal `json:"cost" label:"Cost" validate:"gt=0"`
	Price        decimal.Decimal `json:"price" label:"Price" validate:"gt=0"`
}

func (p *NewItem) Derive(uoms *UOMResolver) {
	p.DisplayName = ComposeDisplayName(p.Brand, p.Description, p.Variant, p.Size)
	p.StandardPack = uoms.Apply(p.UOM, p.StandardPack)
}

func (p *NewItem) Key() Key {
	return Key{Barcode: p.Barcode, SKU: p.SKU, Description: p.DisplayName}
}

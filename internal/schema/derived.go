package schema

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/pkg/barcode"
)

// ComposeDisplayName joins the non-empty naming parts in fixed order with a
// single space.
func ComposeDisplayName(brand, description, variant, size string) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{brand, description, variant, size} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// UOMResolver maps a unit of measure code to its standard pack factor.
// The zero value is an unloaded resolver.
type UOMResolver struct {
	rows   []models.UOM
	loaded bool
}

// NewUOMResolver returns a loaded resolver over rows.
func NewUOMResolver(rows []models.UOM) *UOMResolver {
	return &UOMResolver{rows: append([]models.UOM(nil), rows...), loaded: true}
}

// Loaded reports whether the reference list has been fetched.
func (r *UOMResolver) Loaded() bool {
	return r != nil && r.loaded
}

// Rows returns the reference rows in fetch order.
func (r *UOMResolver) Rows() []models.UOM {
	if r == nil {
		return nil
	}
	return r.rows
}

// Resolve finds the pack factor for code.
func (r *UOMResolver) Resolve(code string) (decimal.Decimal, bool) {
	if !r.Loaded() || strings.TrimSpace(code) == "" {
		return decimal.Decimal{}, false
	}
	for _, row := range r.rows {
		if looseEqual(row.Code, code) {
			return row.PackFactor, true
		}
	}
	return decimal.Decimal{}, false
}

// Apply returns the standard pack after selecting code. A miss, including a
// cleared selection, keeps current.
func (r *UOMResolver) Apply(code string, current decimal.Decimal) decimal.Decimal {
	if factor, ok := r.Resolve(code); ok {
		return factor
	}
	return current
}

// looseEqual compares item master codes, which arrive blank padded and
// sometimes numeric. Case is significant.
func looseEqual(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	return errA == nil && errB == nil && da.Equal(db)
}

// DerivedFields are the read-only values the console renders next to the
// inputs they are computed from.
type DerivedFields struct {
	DisplayName  string           `json:"display_name"`
	StandardPack *decimal.Decimal `json:"standard_pack,omitempty"`
	NewBarcode   string           `json:"new_barcode"`
}

// DerivedInput carries the inputs of every derived field.
type DerivedInput struct {
	Brand        string           `json:"brand"`
	Description  string           `json:"description"`
	Variant      string           `json:"variant"`
	Size         string           `json:"size"`
	UOM          string           `json:"uom"`
	StandardPack *decimal.Decimal `json:"standard_pack"`
	RawBarcode   string           `json:"raw_barcode"`
}

// Derive computes all derived fields for a partially filled form.
func Derive(in DerivedInput, uoms *UOMResolver) DerivedFields {
	out := DerivedFields{
		DisplayName: ComposeDisplayName(in.Brand, in.Description, in.Variant, in.Size),
		NewBarcode:  barcode.ComputeEAN13(in.RawBarcode),
	}
	current := decimal.Decimal{}
	if in.StandardPack != nil {
		current = *in.StandardPack
	}
	if factor, ok := uoms.Resolve(in.UOM); ok {
		out.StandardPack = &factor
	} else if in.StandardPack != nil {
		out.StandardPack = &current
	}
	return out
}

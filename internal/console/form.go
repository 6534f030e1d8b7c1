package console

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/schema"
	"github.com/noah-isme/merch-batch-api/pkg/barcode"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
)

// Field names the form treats specially.
const (
	FieldBarcode      = "barcode"
	FieldRawBarcode   = "raw_barcode"
	FieldNewBarcode   = "new_barcode"
	FieldDisplayName  = "display_name"
	FieldStandardPack = "standard_pack"
	FieldUOM          = "uom"
)

var displayNameParts = []string{"brand", "description", "variant", "size"}

// lookupTargets maps item master details onto the form fields they prefill.
var lookupTargets = map[string]func(*models.BarcodeDetails) interface{}{
	"sku":         func(d *models.BarcodeDetails) interface{} { return d.SKU },
	"description": func(d *models.BarcodeDetails) interface{} { return d.Description },
	"dept":        func(d *models.BarcodeDetails) interface{} { return d.Dept },
	"current_uom": func(d *models.BarcodeDetails) interface{} { return stringValue(d.UOM) },
	"current_price": func(d *models.BarcodeDetails) interface{} {
		return decimalValue(d.CurrentPrice)
	},
	"current_cost": func(d *models.BarcodeDetails) interface{} {
		return decimalValue(d.CurrentCost)
	},
	"current_status": func(d *models.BarcodeDetails) interface{} { return stringValue(d.SKUStatus) },
}

// LookupFunc fetches item master details for a barcode.
type LookupFunc func(ctx context.Context, code, batchNumber string) (*models.BarcodeDetails, error)

// UOMOption is one entry of the unit of measure select.
type UOMOption struct {
	Value string
	Label string
}

// UOMSelect is the render state of the unit of measure select.
type UOMSelect struct {
	Disabled    bool
	Placeholder string
	Options     []UOMOption
}

// FormOption configures a form.
type FormOption func(*Form)

// WithDebounce sets the quiet window of barcode input.
func WithDebounce(wait time.Duration) FormOption {
	return func(f *Form) {
		f.wait = wait
	}
}

// WithLookup enables the debounced item master lookup on barcode input.
func WithLookup(lookup LookupFunc, batchNumber string) FormOption {
	return func(f *Form) {
		f.lookup = lookup
		f.batchNumber = batchNumber
	}
}

// Form holds the field values of one request type. Setters keep the
// derived fields in step with their inputs.
type Form struct {
	mu       sync.Mutex
	registry *schema.Registry
	schema   *schema.Schema
	columns  map[string]bool
	values   map[string]interface{}
	errors   map[string]string
	uoms     *schema.UOMResolver
	image    *dto.ImageUpload

	wait           time.Duration
	rawDebounce    *Debouncer
	lookupDebounce *Debouncer
	lookup         LookupFunc
	batchNumber    string
	lookupSeq      uint64
	lastLookup     *models.BarcodeDetails
}

// NewForm returns an empty form for requestType.
func NewForm(registry *schema.Registry, requestType models.RequestType, opts ...FormOption) (*Form, error) {
	if registry == nil {
		registry = schema.NewRegistry(nil)
	}
	sch, err := registry.Lookup(requestType)
	if err != nil {
		return nil, err
	}
	f := &Form{
		registry: registry,
		schema:   sch,
		columns:  make(map[string]bool),
		values:   make(map[string]interface{}),
		uoms:     &schema.UOMResolver{},
	}
	for _, col := range sch.Columns() {
		f.columns[col] = true
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	f.rawDebounce = NewDebouncer(f.wait)
	f.lookupDebounce = NewDebouncer(f.wait)
	return f, nil
}

// RequestType returns the request type the form edits.
func (f *Form) RequestType() models.RequestType {
	return f.schema.Type
}

// Schema returns the schema the form validates against.
func (f *Form) Schema() *schema.Schema {
	return f.schema
}

// Set writes an input field. Derived fields cannot be set directly.
func (f *Form) Set(field string, value interface{}) {
	switch field {
	case FieldDisplayName, FieldNewBarcode, FieldStandardPack:
		return
	case FieldRawBarcode:
		if s, ok := value.(string); ok {
			f.SetRawBarcode(s)
		}
		return
	case FieldBarcode:
		if s, ok := value.(string); ok {
			f.SetBarcode(s)
		}
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[field] = value
	f.recompute(field)
}

// Get returns the current value of field.
func (f *Form) Get(field string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[field]
}

// String returns field as a string, empty when unset.
func (f *Form) String(field string) string {
	s, _ := f.Get(field).(string)
	return s
}

// SetRawBarcode echoes the raw barcode immediately and recomputes the
// generated EAN-13 once input is quiet.
func (f *Form) SetRawBarcode(raw string) {
	f.mu.Lock()
	f.values[FieldRawBarcode] = raw
	f.mu.Unlock()
	f.rawDebounce.Trigger(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		current, _ := f.values[FieldRawBarcode].(string)
		f.values[FieldNewBarcode] = barcode.ComputeEAN13(current)
	})
}

// SetBarcode echoes the barcode immediately and looks it up in the item
// master once input is quiet. Only the newest lookup is applied.
func (f *Form) SetBarcode(code string) {
	f.mu.Lock()
	f.values[FieldBarcode] = code
	f.mu.Unlock()
	if f.lookup == nil || strings.TrimSpace(code) == "" {
		return
	}
	f.lookupDebounce.Trigger(func() {
		f.mu.Lock()
		f.lookupSeq++
		seq := f.lookupSeq
		f.mu.Unlock()

		details, err := f.lookup(context.Background(), code, f.batchNumber)
		if err != nil || details == nil {
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		if seq != f.lookupSeq {
			return
		}
		f.lastLookup = details
		if !details.Status {
			return
		}
		for field, value := range lookupTargets {
			if f.columns[field] {
				if v := value(details); v != nil && v != "" {
					f.values[field] = v
				}
			}
		}
		f.recompute("description")
	})
}

// Flush applies any debounced computation now.
func (f *Form) Flush() {
	f.rawDebounce.Flush()
	f.lookupDebounce.Flush()
}

// LastLookup returns the most recent applied item master lookup.
func (f *Form) LastLookup() *models.BarcodeDetails {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLookup
}

// LoadUOMs installs the unit of measure reference list.
func (f *Form) LoadUOMs(rows []models.UOM) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uoms = schema.NewUOMResolver(rows)
	f.recompute(FieldUOM)
}

// UOMSelect returns the select state. Until the reference list is loaded
// the select is disabled and shows a loading placeholder.
func (f *Form) UOMSelect() UOMSelect {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.uoms.Loaded() {
		return UOMSelect{Disabled: true, Placeholder: "Loading..."}
	}
	rows := f.uoms.Rows()
	options := make([]UOMOption, 0, len(rows))
	for _, row := range rows {
		options = append(options, UOMOption{Value: row.Code, Label: row.Description})
	}
	return UOMSelect{Placeholder: "Select UOM", Options: options}
}

// AttachImage sets the image sent with the record.
func (f *Form) AttachImage(image *dto.ImageUpload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.image = image
}

// Image returns the attached image.
func (f *Form) Image() *dto.ImageUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.image
}

// Errors returns the field errors of the last validation.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Load fills the form from a stored record for editing.
func (f *Form) Load(payload json.RawMessage) error {
	values := make(map[string]interface{})
	if err := json.Unmarshal(payload, &values); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid record payload")
	}
	f.Reset()
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range values {
		if n, ok := v.(float64); ok {
			v = decimal.NewFromFloat(n).String()
		}
		f.values[k] = v
	}
	return nil
}

// Payload encodes the current values. Empty values are left out.
func (f *Form) Payload() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloadLocked()
}

// Validate checks the form locally and returns the record ready to send.
func (f *Form) Validate() (*schema.Prepared, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prepared, err := f.registry.Prepare(f.schema.Type, f.payloadLocked(), f.uoms)
	if err != nil {
		f.errors = appErrors.FromError(err).Fields
		return nil, err
	}
	f.errors = nil
	return prepared, nil
}

// Reset clears every value, the image and pending debounced work. The UOM
// reference list is kept.
func (f *Form) Reset() {
	f.rawDebounce.Stop()
	f.lookupDebounce.Stop()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = make(map[string]interface{})
	f.errors = nil
	f.image = nil
	f.lastLookup = nil
	f.lookupSeq++
}

func (f *Form) payloadLocked() json.RawMessage {
	out := make(map[string]interface{}, len(f.values))
	for k, v := range f.values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if v == nil {
			continue
		}
		out[k] = v
	}
	data, err := json.Marshal(out)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// recompute refreshes the derived fields that depend on field.
func (f *Form) recompute(field string) {
	if f.columns[FieldDisplayName] {
		for _, part := range displayNameParts {
			if part == field {
				f.values[FieldDisplayName] = schema.ComposeDisplayName(
					f.stringLocked("brand"), f.stringLocked("description"),
					f.stringLocked("variant"), f.stringLocked("size"))
				break
			}
		}
	}
	if f.columns[FieldStandardPack] && field == FieldUOM {
		if factor, ok := f.uoms.Resolve(f.stringLocked(FieldUOM)); ok {
			f.values[FieldStandardPack] = factor.String()
		}
	}
}

func (f *Form) stringLocked(field string) string {
	s, _ := f.values[field].(string)
	return s
}

func stringValue(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func decimalValue(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

// Package schema describes the field set of every request type and turns a
// raw record payload into a validated, derived and normalised one.
package schema

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/pkg/barcode"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
)

// Schema binds a request type to its payload shape and guard policy.
type Schema struct {
	Type  models.RequestType
	Label string
	// Prefix starts every batch number of this type.
	Prefix string
	// UniqueBarcode enables the open-batch barcode guard on create.
	UniqueBarcode bool
	AllowsImage   bool
	newPayload    func() Payload
}

// New returns an empty payload of this schema's shape.
func (s *Schema) New() Payload {
	return s.newPayload()
}

// Prepared is a validated payload ready to be stored.
type Prepared struct {
	Schema  *Schema
	Payload Payload
	Key     Key
	Raw     json.RawMessage
}

var schemas = []*Schema{
	{Type: models.RequestChangeDescription, Label: "Change Description", Prefix: "CD", UniqueBarcode: true, newPayload: func() Payload { return &ChangeDescription{} }},
	{Type: models.RequestChangePackaging, Label: "Change Packaging", Prefix: "CP", UniqueBarcode: true, AllowsImage: true, newPayload: func() Payload { return &ChangePackaging{} }},
	{Type: models.RequestChangePriceCost, Label: "Change Price/Cost", Prefix: "PC", UniqueBarcode: true, newPayload: func() Payload { return &ChangePriceCost{} }},
	{Type: models.RequestChangeStatus, Label: "Change Status", Prefix: "CS", UniqueBarcode: true, newPayload: func() Payload { return &ChangeStatus{} }},
	{Type: models.RequestChangeStoreListing, Label: "Change Store Listing", Prefix: "SL", newPayload: func() Payload { return &ChangeStoreListing{} }},
	{Type: models.RequestNewBarcode, Label: "New Barcode", Prefix: "NB", UniqueBarcode: true, newPayload: func() Payload { return &NewBarcode{} }},
	{Type: models.RequestNewItem, Label: "New Item", Prefix: "NI", UniqueBarcode: true, AllowsImage: true, newPayload: func() Payload { return &NewItem{} }},
}

// Registry resolves schemas and validates payloads against them.
type Registry struct {
	validate *validator.Validate
	byType   map[models.RequestType]*Schema
}

// NewRegistry builds the registry and registers the custom validation tags
// on v. A nil validator gets a fresh one.
func NewRegistry(v *validator.Validate) *Registry {
	if v == nil {
		v = validator.New()
	}
	RegisterValidations(v)
	byType := make(map[models.RequestType]*Schema, len(schemas))
	for _, s := range schemas {
		byType[s.Type] = s
	}
	return &Registry{validate: v, byType: byType}
}

// RegisterValidations installs the tags payload structs rely on.
func RegisterValidations(v *validator.Validate) {
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || barcode.IsDigits(value)
	})
	_ = v.RegisterValidation("request_type", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || models.RequestType(value).Valid()
	})
	_ = v.RegisterValidation("item_status", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "A", "I", "D":
			return true
		}
		return false
	})
	_ = v.RegisterValidation("listing_action", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "ADD", "REMOVE":
			return true
		}
		return false
	})
}

// Schemas lists every request type in display order.
func (r *Registry) Schemas() []*Schema {
	out := make([]*Schema, len(schemas))
	copy(out, schemas)
	return out
}

// Lookup returns the schema for t.
func (r *Registry) Lookup(t models.RequestType) (*Schema, error) {
	s, ok := r.byType[t]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request type %q", t))
	}
	return s, nil
}

// Prepare decodes raw into the payload of t, recomputes derived fields,
// validates the result and re-encodes it.
func (r *Registry) Prepare(t models.RequestType, raw json.RawMessage, uoms *UOMResolver) (*Prepared, error) {
	s, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	payload := s.New()
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload")
	}
	payload.Derive(uoms)
	if err := r.Validate(payload); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode record payload")
	}
	return &Prepared{Schema: s, Payload: payload, Key: payload.Key(), Raw: encoded}, nil
}

// Validate runs the struct rules of payload. The returned error carries one
// message per failing field and the first of them as its message.
func (r *Registry) Validate(payload Payload) error {
	err := r.validate.Struct(payload)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload")
	}
	typ := reflect.TypeOf(payload)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	fields := make(map[string]string, len(verrs))
	first := ""
	for _, fe := range verrs {
		name, label := fieldNames(typ, fe.StructField())
		msg := Message(label, fe)
		if _, exists := fields[name]; !exists {
			fields[name] = msg
		}
		if first == "" {
			first = msg
		}
	}
	out := appErrors.WithFields(appErrors.ErrValidation, fields)
	out.Message = first
	return out
}

func fieldNames(typ reflect.Type, structField string) (string, string) {
	if idx := strings.IndexByte(structField, '['); idx >= 0 {
		structField = structField[:idx]
	}
	f, ok := typ.FieldByName(structField)
	if !ok {
		return strings.ToLower(structField), structField
	}
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	if name == "" {
		name = strings.ToLower(structField)
	}
	label := f.Tag.Get("label")
	if label == "" {
		label = structField
	}
	return name, label
}

// Message renders a field error the way the console shows it.
func Message(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "digits":
		return label + " must contain digits only"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s allows at most %s entries", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s requires at least %s entries", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", label, fe.Param())
	case "datetime":
		return label + " must be a date (YYYY-MM-DD)"
	case "item_status":
		return label + " must be one of A, I or D"
	case "listing_action":
		return label + " must be ADD or REMOVE"
	case "request_type":
		return label + " is not a known request type"
	default:
		return label + " is invalid"
	}
}

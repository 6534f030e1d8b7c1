package schema

import (
	"encoding/json"
	stdErrors "errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
)

func testUOMs() *UOMResolver {
	return NewUOMResolver([]models.UOM{
		{Code: "CS  ", Description: "Case", PackFactor: decimal.NewFromInt(12)},
		{Code: "PC", Description: "Piece", PackFactor: decimal.NewFromInt(1)},
		{Code: "024", Description: "Tray", PackFactor: decimal.NewFromInt(24)},
	})
}

func TestComposeDisplayName(t *testing.T) {
	assert.Equal(t, "Acme Soap Lavender 100g", ComposeDisplayName("Acme", "Soap", "Lavender", "100g"))
	assert.Equal(t, "Acme 100g", ComposeDisplayName("Acme", "", "", "100g"))
	assert.Equal(t, "", ComposeDisplayName("", "", "", ""))
}

func TestUOMResolver(t *testing.T) {
	uoms := testUOMs()
	current := decimal.NewFromInt(6)

	factor, ok := uoms.Resolve("CS")
	require.True(t, ok)
	assert.True(t, factor.Equal(decimal.NewFromInt(12)))

	factor, ok = uoms.Resolve("24")
	require.True(t, ok)
	assert.True(t, factor.Equal(decimal.NewFromInt(24)))

	assert.True(t, uoms.Apply("", current).Equal(current))
	assert.True(t, uoms.Apply("BOX", current).Equal(current))
	assert.True(t, uoms.Apply("cs", current).Equal(current))

	var unloaded *UOMResolver
	assert.False(t, unloaded.Loaded())
	assert.True(t, unloaded.Apply("CS", current).Equal(current))
}

func TestDerive(t *testing.T) {
	pack := decimal.NewFromInt(3)
	out := Derive(DerivedInput{Brand: "Acme", Description: "Soap", UOM: "PC", StandardPack: &pack, RawBarcode: "123456789012"}, testUOMs())
	assert.Equal(t, "Acme Soap", out.DisplayName)
	assert.Equal(t, "1234567890128", out.NewBarcode)
	require.NotNil(t, out.StandardPack)
	assert.True(t, out.StandardPack.Equal(decimal.NewFromInt(1)))

	out = Derive(DerivedInput{RawBarcode: "12a"}, nil)
	assert.Equal(t, "", out.NewBarcode)
	assert.Nil(t, out.StandardPack)
}

func TestPrepareChangeDescription(t *testing.T) {
	registry := NewRegistry(nil)
	raw := json.RawMessage(`{"barcode":"4800016644290","sku":"100200","brand":"Acme","description":"Soap","size":"100g","display_name":"ignored"}`)

	prepared, err := registry.Prepare(models.RequestChangeDescription, raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme Soap 100g", prepared.Key.Description)
	assert.Equal(t, "4800016644290", prepared.Key.Barcode)
	assert.Contains(t, string(prepared.Raw), `"display_name":"Acme Soap 100g"`)
}

func TestPrepareMissingBrand(t *testing.T) {
	registry := NewRegistry(nil)
	raw := json.RawMessage(`{"barcode":"4800016644290","sku":"100200","brand":"","description":"Soap"}`)

	_, err := registry.Prepare(models.RequestChangeDescription, raw, nil)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, stdErrors.As(err, &appErr))
	assert.Equal(t, "Brand is required", appErr.Message)
	assert.Equal(t, "Brand is required", appErr.Fields["brand"])
}

func TestPrepareNewBarcodeDerivesKey(t *testing.T) {
	registry := NewRegistry(nil)
	raw := json.RawMessage(`{"sku":"100200","raw_barcode":"480001664429","uom":"CS"}`)

	prepared, err := registry.Prepare(models.RequestNewBarcode, raw, testUOMs())
	require.NoError(t, err)
	assert.Equal(t, "4800016644290", prepared.Key.Barcode)
	payload := prepared.Payload.(*NewBarcode)
	assert.True(t, payload.StandardPack.Equal(decimal.NewFromInt(12)))
}

func TestPrepareRejectsBadInput(t *testing.T) {
	registry := NewRegistry(nil)

	_, err := registry.Prepare(models.RequestChangeStatus, json.RawMessage(`{"barcode":"12x","sku":"1","new_status":"Z","reason":"gone"}`), nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "Barcode must contain digits only", appErr.Fields["barcode"])
	assert.Equal(t, "New status must be one of A, I or D", appErr.Fields["new_status"])

	_, err = registry.Prepare(models.RequestChangeStoreListing, json.RawMessage(`{"barcode":"123","sku":"1","action":"ADD","stores":[]}`), nil)
	require.Error(t, err)
	assert.Equal(t, "Stores requires at least 1 entries", appErrors.FromError(err).Fields["stores"])

	_, err = registry.Prepare(models.RequestChangePriceCost, json.RawMessage(`{"barcode":"123","sku":"1","new_price":"0","new_cost":"2.5","effective_date":"2026-13-01"}`), nil)
	require.Error(t, err)
	fields := appErrors.FromError(err).Fields
	assert.Equal(t, "New price must be greater than 0", fields["new_price"])
	assert.Equal(t, "Effective date must be a date (YYYY-MM-DD)", fields["effective_date"])

	_, err = registry.Prepare("bogus", nil, nil)
	require.Error(t, err)
	assert.True(t, stdErrors.Is(err, appErrors.ErrValidation))
}

func TestSchemasCoverEveryRequestType(t *testing.T) {
	registry := NewRegistry(nil)
	for _, rt := range models.RequestTypes {
		s, err := registry.Lookup(rt)
		require.NoError(t, err, rt)
		assert.Len(t, s.Prefix, 2)
	}
	listing, _ := registry.Lookup(models.RequestChangeStoreListing)
	assert.False(t, listing.UniqueBarcode)
}

func TestColumnsAndFlatten(t *testing.T) {
	registry := NewRegistry(nil)
	listing, err := registry.Lookup(models.RequestChangeStoreListing)
	require.NoError(t, err)
	cols := listing.Columns()
	assert.Equal(t, []string{"barcode", "sku", "description", "action", "stores"}, cols)

	row, err := Flatten([]byte(`{"barcode":"123","sku":"9","action":"ADD","stores":["101","205"]}`), cols)
	require.NoError(t, err)
	assert.Equal(t, []string{"123", "9", "", "ADD", "101|205"}, row)

	price, _ := registry.Lookup(models.RequestChangePriceCost)
	row, err = Flatten([]byte(`{"new_price":"12.50","new_cost":"8"}`), []string{"new_price", "new_cost", "effective_date"})
	require.NoError(t, err)
	assert.Equal(t, []string{"12.50", "8", ""}, row)
	assert.Contains(t, price.Columns(), "current_price")
}

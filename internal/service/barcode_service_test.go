package service

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
)

const (
	cdOpen   = "CD-20260102-0001"
	cdOther  = "CD-20260102-0002"
	cdPosted = "CD-20260101-0009"
	slOpen   = "SL-20260102-0001"
)

func barcodeFixtures() (*batchRepoStub, *recordRepoStub) {
	batches := newBatchRepoStub(
		models.Batch{BatchNumber: cdOpen, RequestType: models.RequestChangeDescription, Status: models.BatchStatusOpen, CreatedBy: "user-1", DateCreated: testNow},
		models.Batch{BatchNumber: cdOther, RequestType: models.RequestChangeDescription, Status: models.BatchStatusOpen, CreatedBy: "user-2", DateCreated: testNow},
		models.Batch{BatchNumber: cdPosted, RequestType: models.RequestChangeDescription, Status: models.BatchStatusPosted, CreatedBy: "user-1", DateCreated: testNow},
		models.Batch{BatchNumber: slOpen, RequestType: models.RequestChangeStoreListing, Status: models.BatchStatusOpen, CreatedBy: "user-1", DateCreated: testNow},
	)
	records := newRecordRepoStub(batches,
		models.BatchRecord{ID: "r-1", BatchNumber: cdOther, RequestType: models.RequestChangeDescription, Barcode: "4800016644290", SKU: "100200", Payload: types.JSONText(`{}`)},
		models.BatchRecord{ID: "r-2", BatchNumber: cdPosted, RequestType: models.RequestChangeDescription, Barcode: "1234567890128", SKU: "100300", Payload: types.JSONText(`{}`)},
		models.BatchRecord{ID: "r-3", BatchNumber: slOpen, RequestType: models.RequestChangeStoreListing, Barcode: "4800016644290", SKU: "100200", Payload: types.JSONText(`{}`)},
	)
	return batches, records
}

func TestBarcodeServiceCheckUsed(t *testing.T) {
	batches, records := barcodeFixtures()
	svc := NewBarcodeService(nil, batches, records, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.CheckUsed(ctx, "4800016644290", cdOpen, "")
	require.NoError(t, err)
	assert.Equal(t, models.GuardConflict, result.Outcome)
	assert.True(t, result.Status)
	assert.Equal(t, "Barcode Already Used", result.Title)
	assert.Equal(t, cdOther, result.ConflictBatch)
	assert.Contains(t, result.Message, cdOther)

	result, err = svc.CheckUsed(ctx, "4800016644290", cdOther, models.RequestChangeDescription)
	require.NoError(t, err)
	assert.Equal(t, models.GuardConflict, result.Outcome)
	assert.Contains(t, result.Message, "in this batch")

	// claims held by posted batches no longer count
	result, err = svc.CheckUsed(ctx, "1234567890128", cdOpen, "")
	require.NoError(t, err)
	assert.Equal(t, models.GuardOK, result.Outcome)
	assert.False(t, result.Status)

	// store listing may repeat a barcode across open batches
	result, err = svc.CheckUsed(ctx, "4800016644290", slOpen, "")
	require.NoError(t, err)
	assert.Equal(t, models.GuardOK, result.Outcome)
}

func TestBarcodeServiceCheckUsedRejects(t *testing.T) {
	batches, records := barcodeFixtures()
	svc := NewBarcodeService(nil, batches, records, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.CheckUsed(ctx, "48000abc", cdOpen, "")
	require.True(t, stdErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.CheckUsed(ctx, "4800016644290", cdOpen, models.RequestNewItem)
	require.True(t, stdErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.CheckUsed(ctx, "4800016644290", "CD-19990101-0001", "")
	require.True(t, stdErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.CheckUsed(ctx, "4800016644290", "", "")
	require.True(t, stdErrors.Is(err, appErrors.ErrValidation))

	batches.getErr = errBoom
	_, err = svc.CheckUsed(ctx, "4800016644290", cdOpen, "")
	require.True(t, stdErrors.Is(err, appErrors.ErrInternal))
}

func TestBarcodeServiceDetails(t *testing.T) {
	batches, records := barcodeFixtures()
	items := newItemMaster()
	uom := "CS"
	items.items["4800016644290"] = &models.ItemMasterItem{
		Barcode:      "4800016644290",
		SKU:          "100200",
		Description:  "ACME SOAP 100G",
		Dept:         "10",
		DeptName:     "Grocery",
		UOM:          &uom,
		StandardPack: decimal.NewNullDecimal(decimal.NewFromInt(12)),
		CurrentPrice: decimal.NewNullDecimal(decimal.RequireFromString("45.50")),
	}
	svc := NewBarcodeService(items, batches, records, nil, nil, nil)
	ctx := context.Background()

	details, err := svc.Details(ctx, "4800016644290", cdOther)
	require.NoError(t, err)
	assert.True(t, details.Status)
	assert.Equal(t, "100200", details.SKU)
	assert.True(t, details.InBatch)
	require.NotNil(t, details.CurrentPrice)
	assert.Equal(t, "45.5", details.CurrentPrice.String())
	assert.Nil(t, details.CurrentCost)

	details, err = svc.Details(ctx, "4800016644290", cdOpen)
	require.NoError(t, err)
	assert.False(t, details.InBatch)

	details, err = svc.Details(ctx, "999", "")
	require.NoError(t, err)
	assert.False(t, details.Status)
	assert.Equal(t, "barcode 999 was not found", details.Message)

	noMaster := NewBarcodeService(nil, batches, records, nil, nil, nil)
	details, err = noMaster.Details(ctx, "4800016644290", "")
	require.NoError(t, err)
	assert.False(t, details.Status)
}

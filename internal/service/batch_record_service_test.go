package service

import (
	"bytes"
	"context"
	stdErrors "errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/imageproc"
	"github.com/noah-isme/merch-batch-api/pkg/storage"
)

const (
	niOpen = "NI-20260102-0001"
	cpOpen = "CP-20260102-0001"
	nbOpen = "NB-20260102-0001"
)

type recordFixture struct {
	batches *batchRepoStub
	records *recordRepoStub
	guard   *countingGuard
	audit   *auditTrailStub
	cache   *memoryCache
	store   *memoryStore
	signer  *storage.SignedURLSigner
	svc     *BatchRecordService
}

func newRecordFixture(t *testing.T, opts ...BatchRecordServiceOption) *recordFixture {
	t.Helper()
	batches, records := barcodeFixtures()
	batches.batches[niOpen] = &models.Batch{BatchNumber: niOpen, RequestType: models.RequestNewItem, Status: models.BatchStatusOpen, CreatedBy: "user-1", DateCreated: testNow}
	batches.batches[cpOpen] = &models.Batch{BatchNumber: cpOpen, RequestType: models.RequestChangePackaging, Status: models.BatchStatusOpen, CreatedBy: "user-1", DateCreated: testNow}
	batches.batches[nbOpen] = &models.Batch{BatchNumber: nbOpen, RequestType: models.RequestNewBarcode, Status: models.BatchStatusOpen, CreatedBy: "user-1", DateCreated: testNow}

	f := &recordFixture{
		batches: batches,
		records: records,
		audit:   &auditTrailStub{},
		cache:   newMemoryCache(),
		store:   newMemoryStore(),
		signer:  storage.NewSignedURLSigner("file-secret", time.Minute),
	}
	f.guard = &countingGuard{inner: NewBarcodeService(nil, batches, records, nil, nil, nil)}
	cache := NewCacheService(f.cache, nil, time.Minute, nil, true)
	all := []BatchRecordServiceOption{
		WithRecordCache(cache, time.Minute),
		WithRecordAudit(f.audit),
		WithRecordImages(RecordImages{
			Store:          f.store,
			Policy:         imageproc.Policy{MaxBytes: 1 << 20, AllowedMIMEs: []string{"image/png", "image/jpeg"}},
			ThumbnailWidth: 20,
			Signer:         f.signer,
			URLPrefix:      "/api/v1/files?token=",
		}),
	}
	all = append(all, opts...)
	f.svc = NewBatchRecordService(records, batches, f.guard, NewReferenceService(newItemMaster(), nil, 0, nil), nil, nil, all...)
	return f
}

func describePayload(barcode, brand string) dto.SaveRecordRequest {
	return dto.SaveRecordRequest{Payload: []byte(`{"barcode":"` + barcode + `","sku":"100200","brand":"` + brand + `","description":"Soap","size":"100g"}`)}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(y * 10), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestBatchRecordServiceCreate(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	// warm the listing cache so the save has something to invalidate
	_, err := f.svc.List(ctx, cdOpen, "")
	require.NoError(t, err)

	view, err := f.svc.Create(ctx, cdOpen, describePayload("1234567890128", "Acme"), nil, merchandiser())
	require.NoError(t, err)
	assert.Equal(t, "1234567890128", view.Barcode)
	assert.Equal(t, "Acme Soap 100g", view.Description)
	assert.Equal(t, "user-1", view.CreatedBy)
	assert.Contains(t, string(view.Payload), `"display_name":"Acme Soap 100g"`)
	assert.Equal(t, 1, f.guard.calls)

	batch, _ := f.batches.GetByNumber(ctx, cdOpen)
	assert.Equal(t, 1, batch.TotalRecord)
	assert.Equal(t, []string{models.AuditActionRecordCreate}, f.audit.actions())
	assert.Contains(t, f.cache.deleted, recordsCacheKey(cdOpen))

	listed, err := f.svc.List(ctx, cdOpen, models.RequestChangeDescription)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, view.ID, listed[0].ID)
}

func TestBatchRecordServiceCreateConflict(t *testing.T) {
	f := newRecordFixture(t)

	_, err := f.svc.Create(context.Background(), cdOpen, describePayload("4800016644290", "Acme"), nil, merchandiser())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.True(t, stdErrors.Is(err, appErrors.ErrBarcodeUsed))
	assert.Equal(t, "Barcode Already Used", appErr.Title)
	assert.Contains(t, appErr.Message, cdOther)
	assert.Equal(t, 0, f.records.creates)
	assert.Empty(t, f.audit.actions())
}

func TestBatchRecordServiceCreateInvalid(t *testing.T) {
	f := newRecordFixture(t)

	_, err := f.svc.Create(context.Background(), cdOpen, describePayload("1234567890128", ""), nil, merchandiser())
	require.Error(t, err)
	assert.Equal(t, "Brand is required", appErrors.FromError(err).Message)
	assert.Equal(t, 0, f.guard.calls)
	assert.Equal(t, 0, f.records.creates)

	_, err = f.svc.Create(context.Background(), cdOpen, dto.SaveRecordRequest{RequestType: models.RequestNewItem, Payload: []byte(`{}`)}, nil, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Create(context.Background(), cdOpen, describePayload("1234567890128", "Acme"), nil, nil)
	require.True(t, stdErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestBatchRecordServiceCreateClosedBatch(t *testing.T) {
	f := newRecordFixture(t)

	_, err := f.svc.Create(context.Background(), cdPosted, describePayload("1234567890128", "Acme"), nil, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrBatchClosed))

	_, err = f.svc.Create(context.Background(), "CD-19990101-0001", describePayload("1234567890128", "Acme"), nil, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrNotFound))
}

func TestBatchRecordServiceCreateLocked(t *testing.T) {
	locker := &busyLocker{}
	f := newRecordFixture(t, WithRecordLocker(locker, time.Second))

	_, err := f.svc.Create(context.Background(), cdOpen, describePayload("1234567890128", "Acme"), nil, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrLocked))
	assert.Equal(t, []string{barcodeLockKey("change_description", "1234567890128")}, locker.keys)
	assert.Equal(t, 0, f.records.creates)

	// an unreachable Redis does not block saves
	locker.err = errBoom
	_, err = f.svc.Create(context.Background(), cdOpen, describePayload("1234567890128", "Acme"), nil, merchandiser())
	require.NoError(t, err)
}

func newItemPayload() dto.SaveRecordRequest {
	return dto.SaveRecordRequest{Payload: []byte(`{"barcode":"1234567890128","brand":"Acme","description":"Soap","dept":"10","sub_dept":"1","uom":"CS","standard_pack":"1","selling_uom":"PC","cost":"10","price":"12.5"}`)}
}

func TestBatchRecordServiceCreateWithImage(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, niOpen, newItemPayload(), &dto.ImageUpload{Filename: "soap.png", Data: pngBytes(t)}, merchandiser())
	require.NoError(t, err)
	require.NotNil(t, view.ImagePath)
	assert.True(t, strings.HasPrefix(*view.ImagePath, "records/"+niOpen+"/"+view.ID))
	assert.Len(t, f.store.keys(), 2)
	assert.Contains(t, string(view.Payload), `"standard_pack":"12"`)

	require.True(t, strings.HasPrefix(view.ImageURL, "/api/v1/files?token="))
	token, err := url.QueryUnescape(strings.TrimPrefix(view.ImageURL, "/api/v1/files?token="))
	require.NoError(t, err)
	reader, contentType, err := f.svc.OpenImage(ctx, token)
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, pngBytes(t), data)

	_, _, err = f.svc.OpenImage(ctx, "forged.123.abc")
	require.True(t, stdErrors.Is(err, appErrors.ErrForbidden))
}

func TestBatchRecordServiceImageRules(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, cdOpen, describePayload("1234567890128", "Acme"), &dto.ImageUpload{Data: pngBytes(t)}, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Create(ctx, niOpen, newItemPayload(), &dto.ImageUpload{Data: []byte("not an image")}, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrValidation))

	f.records.createErr = errBoom
	_, err = f.svc.Create(ctx, niOpen, newItemPayload(), &dto.ImageUpload{Data: pngBytes(t)}, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, f.store.keys())
}

func TestBatchRecordServiceImageRequestTypes(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	packaging := dto.SaveRecordRequest{Payload: []byte(`{"barcode":"1234567890128","sku":"100200","description":"Soap","uom":"CS"}`)}
	view, err := f.svc.Create(ctx, cpOpen, packaging, &dto.ImageUpload{Filename: "case.png", Data: pngBytes(t)}, merchandiser())
	require.NoError(t, err)
	require.NotNil(t, view.ImagePath)
	assert.True(t, strings.HasPrefix(*view.ImagePath, "records/"+cpOpen+"/"))
	assert.Contains(t, string(view.Payload), `"standard_pack":"12"`)

	newBarcode := dto.SaveRecordRequest{Payload: []byte(`{"sku":"100200","raw_barcode":"480001664429","uom":"CS"}`)}
	_, err = f.svc.Create(ctx, nbOpen, newBarcode, &dto.ImageUpload{Data: pngBytes(t)}, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 1, f.records.creates)
}

func TestBatchRecordServiceUpdateSkipsGuard(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	// r-1 in cdOther holds 4800016644290; editing it keeps the barcode
	view, err := f.svc.Update(ctx, cdOther, "r-1", describePayload("4800016644290", "Brandnew"), nil, merchandiser())
	require.NoError(t, err)
	assert.Equal(t, "Brandnew Soap 100g", view.Description)
	assert.Equal(t, 0, f.guard.calls)
	assert.Equal(t, []string{models.AuditActionRecordUpdate}, f.audit.actions())
	require.NotEmpty(t, f.audit.logs[0].OldValues)

	_, err = f.svc.Update(ctx, cdOther, "missing", describePayload("4800016644290", "Acme"), nil, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Update(ctx, cdPosted, "r-2", describePayload("1234567890128", "Acme"), nil, merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrBatchClosed))
}

func TestBatchRecordServiceDelete(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, cdOther, "r-1", merchandiser()))
	_, err := f.records.GetByID(ctx, cdOther, "r-1")
	require.Error(t, err)
	assert.Equal(t, 0, f.guard.calls)

	err = f.svc.Delete(ctx, cdPosted, "r-2", merchandiser())
	require.True(t, stdErrors.Is(err, appErrors.ErrBatchClosed))
}

func TestBatchRecordServiceListRequestTypeMismatch(t *testing.T) {
	f := newRecordFixture(t)

	_, err := f.svc.List(context.Background(), cdOther, models.RequestNewItem)
	require.True(t, stdErrors.Is(err, appErrors.ErrValidation))

	views, err := f.svc.List(context.Background(), cdOther, "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Empty(t, views[0].ImageURL)
}

func TestBatchRecordServiceValidate(t *testing.T) {
	f := newRecordFixture(t)

	resp, err := f.svc.Validate(context.Background(), cdOpen, describePayload("1234567890128", "Acme"))
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.True(t, resp.Guarded)
	assert.Equal(t, "Acme Soap 100g", resp.Description)
	assert.Equal(t, 0, f.records.creates)
}

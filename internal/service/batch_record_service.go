package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/schema"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/imageproc"
	"github.com/noah-isme/merch-batch-api/pkg/storage"
)

const recordServiceAgent = "batch-record-service"

type recordStore interface {
	Create(ctx context.Context, record *models.BatchRecord) error
	GetByID(ctx context.Context, batchNumber, id string) (*models.BatchRecord, error)
	ListByBatch(ctx context.Context, batchNumber string) ([]models.BatchRecord, error)
	Update(ctx context.Context, record *models.BatchRecord) error
	Delete(ctx context.Context, batchNumber, id string) error
}

type barcodeGuard interface {
	CheckUsed(ctx context.Context, code, batchNumber string, requestType models.RequestType) (models.GuardResult, error)
}

type uomSource interface {
	UOMResolver(ctx context.Context) *schema.UOMResolver
}

// RecordImages configures item image handling.
type RecordImages struct {
	Store          storage.Storage
	Policy         imageproc.Policy
	ThumbnailWidth int
	Signer         *storage.SignedURLSigner
	// URLPrefix is prepended to signed tokens, e.g. /api/v1/files?token=.
	URLPrefix string
}

// BatchRecordService stages, edits and removes records of open batches.
type BatchRecordService struct {
	records    recordStore
	batches    batchReader
	guard      barcodeGuard
	uoms       uomSource
	registry   *schema.Registry
	images     RecordImages
	cache      *CacheService
	recordsTTL time.Duration
	locker     Locker
	lockTTL    time.Duration
	audit      auditLogger
	metrics    *MetricsService
	logger     *zap.Logger
}

// BatchRecordServiceOption configures the service.
type BatchRecordServiceOption func(*BatchRecordService)

// WithRecordImages enables image uploads and download links.
func WithRecordImages(images RecordImages) BatchRecordServiceOption {
	return func(s *BatchRecordService) {
		s.images = images
	}
}

// WithRecordCache caches record listings per batch.
func WithRecordCache(cache *CacheService, ttl time.Duration) BatchRecordServiceOption {
	return func(s *BatchRecordService) {
		s.cache = cache
		s.recordsTTL = ttl
	}
}

// WithRecordLocker serialises saves of the same barcode across instances.
func WithRecordLocker(locker Locker, ttl time.Duration) BatchRecordServiceOption {
	return func(s *BatchRecordService) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithRecordAudit records every mutation in the audit trail.
func WithRecordAudit(audit auditLogger) BatchRecordServiceOption {
	return func(s *BatchRecordService) {
		s.audit = audit
	}
}

// WithRecordMetrics counts save outcomes.
func WithRecordMetrics(metrics *MetricsService) BatchRecordServiceOption {
	return func(s *BatchRecordService) {
		s.metrics = metrics
	}
}

// NewBatchRecordService constructs the service.
func NewBatchRecordService(records recordStore, batches batchReader, guard barcodeGuard, uoms uomSource, registry *schema.Registry, logger *zap.Logger, opts ...BatchRecordServiceOption) *BatchRecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = schema.NewRegistry(nil)
	}
	svc := &BatchRecordService{
		records:  records,
		batches:  batches,
		guard:    guard,
		uoms:     uoms,
		registry: registry,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Validate runs the schema of the batch's request type over a payload
// without storing anything.
func (s *BatchRecordService) Validate(ctx context.Context, batchNumber string, req dto.SaveRecordRequest) (*dto.ValidateRecordResponse, error) {
	batch, err := loadBatch(ctx, s.batches, batchNumber)
	if err != nil {
		return nil, err
	}
	if err := matchRequestType(batch, req.RequestType); err != nil {
		return nil, err
	}
	prepared, err := s.registry.Prepare(batch.RequestType, req.Payload, s.resolver(ctx))
	if err != nil {
		return nil, err
	}
	return &dto.ValidateRecordResponse{
		Valid:       true,
		RequestType: batch.RequestType,
		Barcode:     prepared.Key.Barcode,
		SKU:         prepared.Key.SKU,
		Description: prepared.Key.Description,
		Payload:     prepared.Raw,
		Guarded:     prepared.Schema.UniqueBarcode,
	}, nil
}

// Create validates and stores a new record. For request types that enforce
// unique barcodes the barcode is locked, re-checked against every open batch
// and only then inserted.
func (s *BatchRecordService) Create(ctx context.Context, batchNumber string, req dto.SaveRecordRequest, image *dto.ImageUpload, actor *models.JWTClaims) (*dto.BatchRecordView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	batch, err := loadBatch(ctx, s.batches, batchNumber)
	if err != nil {
		return nil, err
	}
	if !batch.Editable() {
		return nil, closedBatchError(batch)
	}
	if err := matchRequestType(batch, req.RequestType); err != nil {
		return nil, err
	}
	prepared, err := s.registry.Prepare(batch.RequestType, req.Payload, s.resolver(ctx))
	if err != nil {
		s.metrics.RecordSave(batch.RequestType, OutcomeInvalid)
		return nil, err
	}
	upload, err := s.inspectImage(prepared.Schema, image)
	if err != nil {
		s.metrics.RecordSave(batch.RequestType, OutcomeInvalid)
		return nil, err
	}

	record := &models.BatchRecord{
		ID:          uuid.NewString(),
		BatchNumber: batch.BatchNumber,
		RequestType: batch.RequestType,
		Barcode:     prepared.Key.Barcode,
		SKU:         prepared.Key.SKU,
		Description: prepared.Key.Description,
		Payload:     types.JSONText(prepared.Raw),
		CreatedBy:   actor.UserID,
	}

	save := func() error {
		if prepared.Schema.UniqueBarcode {
			result, err := s.guard.CheckUsed(ctx, record.Barcode, batch.BatchNumber, batch.RequestType)
			if err != nil {
				return err
			}
			if result.Outcome == models.GuardConflict {
				s.metrics.RecordSave(batch.RequestType, OutcomeConflict)
				return appErrors.Clone(appErrors.ErrBarcodeUsed, result.Message)
			}
		}
		return s.insert(ctx, record, upload)
	}

	if prepared.Schema.UniqueBarcode {
		err = withLock(ctx, s.locker, s.logger, barcodeLockKey(string(batch.RequestType), record.Barcode), s.lockTTL, save)
	} else {
		err = save()
	}
	if err != nil {
		if !errors.Is(err, appErrors.ErrBarcodeUsed) {
			s.metrics.RecordSave(batch.RequestType, OutcomeFailed)
		}
		return nil, err
	}

	s.metrics.RecordSave(batch.RequestType, OutcomeSaved)
	s.invalidate(ctx, batch.BatchNumber)
	emitAudit(ctx, s.audit, s.logger, recordServiceAgent, &models.AuditLog{
		UserID:     stringPtr(actor.UserID),
		Action:     models.AuditActionRecordCreate,
		Resource:   auditResourceBatch,
		ResourceID: stringPtr(batch.BatchNumber),
		NewValues:  auditSnapshot(record),
	})
	view := s.view(*record)
	return &view, nil
}

func (s *BatchRecordService) insert(ctx context.Context, record *models.BatchRecord, upload *pendingImage) error {
	if upload != nil {
		key, err := s.storeImage(ctx, record, upload)
		if err != nil {
			return err
		}
		record.ImagePath = &key
	}
	err := s.records.Create(ctx, record)
	if err == nil {
		return nil
	}
	if record.ImagePath != nil {
		s.removeImage(ctx, *record.ImagePath)
		record.ImagePath = nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrBatchClosed, fmt.Sprintf("batch %s is no longer open for changes", record.BatchNumber))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save batch record")
}

// Update rewrites a record of an open batch. Edits skip the barcode guard.
func (s *BatchRecordService) Update(ctx context.Context, batchNumber, id string, req dto.SaveRecordRequest, image *dto.ImageUpload, actor *models.JWTClaims) (*dto.BatchRecordView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	batch, err := loadBatch(ctx, s.batches, batchNumber)
	if err != nil {
		return nil, err
	}
	if !batch.Editable() {
		return nil, closedBatchError(batch)
	}
	if err := matchRequestType(batch, req.RequestType); err != nil {
		return nil, err
	}
	existing, err := s.loadRecord(ctx, batch.BatchNumber, id)
	if err != nil {
		return nil, err
	}
	prepared, err := s.registry.Prepare(batch.RequestType, req.Payload, s.resolver(ctx))
	if err != nil {
		return nil, err
	}
	upload, err := s.inspectImage(prepared.Schema, image)
	if err != nil {
		return nil, err
	}

	before := *existing
	updated := *existing
	updated.Barcode = prepared.Key.Barcode
	updated.SKU = prepared.Key.SKU
	updated.Description = prepared.Key.Description
	updated.Payload = types.JSONText(prepared.Raw)
	if upload != nil {
		key, err := s.storeImage(ctx, &updated, upload)
		if err != nil {
			return nil, err
		}
		updated.ImagePath = &key
	}

	if err := s.records.Update(ctx, &updated); err != nil {
		if upload != nil {
			s.removeImage(ctx, *updated.ImagePath)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrBatchClosed, fmt.Sprintf("batch %s is no longer open for changes", batch.BatchNumber))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch record")
	}
	if upload != nil && before.ImagePath != nil && *before.ImagePath != *updated.ImagePath {
		s.removeImage(ctx, *before.ImagePath)
	}

	s.invalidate(ctx, batch.BatchNumber)
	emitAudit(ctx, s.audit, s.logger, recordServiceAgent, &models.AuditLog{
		UserID:     stringPtr(actor.UserID),
		Action:     models.AuditActionRecordUpdate,
		Resource:   auditResourceBatch,
		ResourceID: stringPtr(batch.BatchNumber),
		OldValues:  auditSnapshot(before),
		NewValues:  auditSnapshot(updated),
	})
	view := s.view(updated)
	return &view, nil
}

// Delete removes a record from an open batch.
func (s *BatchRecordService) Delete(ctx context.Context, batchNumber, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	batch, err := loadBatch(ctx, s.batches, batchNumber)
	if err != nil {
		return err
	}
	if !batch.Editable() {
		return closedBatchError(batch)
	}
	existing, err := s.loadRecord(ctx, batch.BatchNumber, id)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, batch.BatchNumber, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrBatchClosed, fmt.Sprintf("batch %s is no longer open for changes", batch.BatchNumber))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch record")
	}
	if existing.ImagePath != nil {
		s.removeImage(ctx, *existing.ImagePath)
	}

	s.invalidate(ctx, batch.BatchNumber)
	emitAudit(ctx, s.audit, s.logger, recordServiceAgent, &models.AuditLog{
		UserID:     stringPtr(actor.UserID),
		Action:     models.AuditActionRecordDelete,
		Resource:   auditResourceBatch,
		ResourceID: stringPtr(batch.BatchNumber),
		OldValues:  auditSnapshot(existing),
	})
	return nil
}

// List returns the records of a batch. requestType, when given, must match
// the batch.
func (s *BatchRecordService) List(ctx context.Context, batchNumber string, requestType models.RequestType) ([]dto.BatchRecordView, error) {
	batch, err := loadBatch(ctx, s.batches, batchNumber)
	if err != nil {
		return nil, err
	}
	if err := matchRequestType(batch, requestType); err != nil {
		return nil, err
	}
	records, err := s.listRecords(ctx, batch.BatchNumber)
	if err != nil {
		return nil, err
	}
	views := make([]dto.BatchRecordView, 0, len(records))
	for _, record := range records {
		views = append(views, s.view(record))
	}
	return views, nil
}

// Get returns one record.
func (s *BatchRecordService) Get(ctx context.Context, batchNumber, id string) (*dto.BatchRecordView, error) {
	record, err := s.loadRecord(ctx, strings.TrimSpace(batchNumber), id)
	if err != nil {
		return nil, err
	}
	view := s.view(*record)
	return &view, nil
}

// OpenImage resolves a signed download token to the stored object.
func (s *BatchRecordService) OpenImage(ctx context.Context, token string) (io.ReadCloser, string, error) {
	if s.images.Store == nil || s.images.Signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "images are not enabled")
	}
	key, err := s.images.Signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download link")
	}
	reader, err := s.images.Store.Open(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "image not found")
	}
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open image")
	}
	return reader, imageproc.ContentType(key), nil
}

func (s *BatchRecordService) listRecords(ctx context.Context, batchNumber string) ([]models.BatchRecord, error) {
	key := recordsCacheKey(batchNumber)
	var cached []models.BatchRecord
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	records, err := s.records.ListByBatch(ctx, batchNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batch records")
	}
	_ = s.cache.Set(ctx, key, records, s.recordsTTL)
	return records, nil
}

func (s *BatchRecordService) loadRecord(ctx context.Context, batchNumber, id string) (*models.BatchRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "record id is required")
	}
	record, err := s.records.GetByID(ctx, batchNumber, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch record not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch record")
	}
	return record, nil
}

func (s *BatchRecordService) resolver(ctx context.Context) *schema.UOMResolver {
	if s.uoms == nil {
		return nil
	}
	return s.uoms.UOMResolver(ctx)
}

func (s *BatchRecordService) invalidate(ctx context.Context, batchNumber string) {
	_ = s.cache.Delete(ctx, recordsCacheKey(batchNumber))
}

type pendingImage struct {
	data []byte
	mime string
}

func (s *BatchRecordService) inspectImage(sch *schema.Schema, image *dto.ImageUpload) (*pendingImage, error) {
	if image == nil || len(image.Data) == 0 {
		return nil, nil
	}
	if !sch.AllowsImage {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s records do not take an image", sch.Label))
	}
	if s.images.Store == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image uploads are not enabled")
	}
	mime, err := s.images.Policy.Inspect(image.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return &pendingImage{data: image.Data, mime: mime}, nil
}

// storeImage writes the image and a best-effort thumbnail next to it.
func (s *BatchRecordService) storeImage(ctx context.Context, record *models.BatchRecord, upload *pendingImage) (string, error) {
	key := fmt.Sprintf("records/%s/%s-%d%s", record.BatchNumber, record.ID, time.Now().UnixNano(), imageproc.Extension(upload.mime))
	stored, err := s.images.Store.Save(ctx, key, upload.mime, upload.data)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}
	thumb, err := imageproc.Thumbnail(upload.data, s.images.ThumbnailWidth)
	if err != nil {
		s.logger.Warn("thumbnail skipped", zap.String("key", stored), zap.Error(err))
		return stored, nil
	}
	if _, err := s.images.Store.Save(ctx, storage.ThumbnailKey(stored), "image/jpeg", thumb); err != nil {
		s.logger.Warn("thumbnail not stored", zap.String("key", stored), zap.Error(err))
	}
	return stored, nil
}

func (s *BatchRecordService) removeImage(ctx context.Context, key string) {
	if s.images.Store == nil {
		return
	}
	for _, k := range []string{key, storage.ThumbnailKey(key)} {
		if err := s.images.Store.Delete(ctx, k); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to remove image", zap.String("key", k), zap.Error(err))
		}
	}
}

func (s *BatchRecordService) view(record models.BatchRecord) dto.BatchRecordView {
	view := dto.BatchRecordView{BatchRecord: record}
	if record.ImagePath == nil || s.images.Signer == nil {
		return view
	}
	view.ImageURL = s.signedURL(*record.ImagePath)
	view.ThumbnailURL = s.signedURL(storage.ThumbnailKey(*record.ImagePath))
	return view
}

func (s *BatchRecordService) signedURL(key string) string {
	token, _, err := s.images.Signer.Sign(key)
	if err != nil {
		s.logger.Warn("failed to sign image url", zap.String("key", key), zap.Error(err))
		return ""
	}
	return s.images.URLPrefix + url.QueryEscape(token)
}

func loadBatch(ctx context.Context, batches batchReader, batchNumber string) (*models.Batch, error) {
	batchNumber = strings.TrimSpace(batchNumber)
	if batchNumber == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch number is required")
	}
	batch, err := batches.GetByNumber(ctx, batchNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("batch %s not found", batchNumber))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	return batch, nil
}

func matchRequestType(batch *models.Batch, requestType models.RequestType) error {
	if requestType == "" || requestType == batch.RequestType {
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation,
		fmt.Sprintf("batch %s holds %s records, not %s", batch.BatchNumber, batch.RequestType, requestType))
}

func closedBatchError(batch *models.Batch) error {
	return appErrors.Clone(appErrors.ErrBatchClosed, fmt.Sprintf("batch %s is %s and can no longer be changed", batch.BatchNumber, batch.Status))
}

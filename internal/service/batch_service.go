package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/repository"
	"github.com/noah-isme/merch-batch-api/internal/schema"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/export"
)

const batchServiceAgent = "batch-service"

type batchStore interface {
	Create(ctx context.Context, params repository.CreateBatchParams) (*models.Batch, error)
	GetByNumber(ctx context.Context, batchNumber string) (*models.Batch, error)
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error)
	TransitionStatus(ctx context.Context, batchNumber string, from, to models.BatchStatus, at time.Time) error
}

type recordLister interface {
	List(ctx context.Context, batchNumber string, requestType models.RequestType) ([]dto.BatchRecordView, error)
}

type batchDispatcher interface {
	Enqueue(batchNumber, postedBy string) error
}

// BatchService opens, lists, posts and exports batches.
type BatchService struct {
	repo       batchStore
	records    recordLister
	registry   *schema.Registry
	dispatcher batchDispatcher
	locker     Locker
	lockTTL    time.Duration
	cache      *CacheService
	audit      auditLogger
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// BatchServiceOption configures the service.
type BatchServiceOption func(*BatchService)

// WithBatchDispatcher hands posted batches to the downstream worker.
func WithBatchDispatcher(dispatcher batchDispatcher) BatchServiceOption {
	return func(s *BatchService) {
		s.dispatcher = dispatcher
	}
}

// WithBatchLocker serialises posts of the same batch.
func WithBatchLocker(locker Locker, ttl time.Duration) BatchServiceOption {
	return func(s *BatchService) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithBatchCache lets posting drop cached record listings.
func WithBatchCache(cache *CacheService) BatchServiceOption {
	return func(s *BatchService) {
		s.cache = cache
	}
}

// WithBatchAudit records batch creation and posting.
func WithBatchAudit(audit auditLogger) BatchServiceOption {
	return func(s *BatchService) {
		s.audit = audit
	}
}

// WithBatchMetrics counts posts.
func WithBatchMetrics(metrics *MetricsService) BatchServiceOption {
	return func(s *BatchService) {
		s.metrics = metrics
	}
}

// WithBatchClock overrides the clock used for batch numbers and timestamps.
func WithBatchClock(now func() time.Time) BatchServiceOption {
	return func(s *BatchService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewBatchService constructs the service.
func NewBatchService(repo batchStore, records recordLister, registry *schema.Registry, logger *zap.Logger, opts ...BatchServiceOption) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = schema.NewRegistry(nil)
	}
	svc := &BatchService{
		repo:     repo,
		records:  records,
		registry: registry,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Generate opens a new batch for requestType.
func (s *BatchService) Generate(ctx context.Context, requestType models.RequestType, actor *models.JWTClaims) (*models.Batch, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	sch, err := s.registry.Lookup(requestType)
	if err != nil {
		return nil, err
	}
	batch, err := s.repo.Create(ctx, repository.CreateBatchParams{
		RequestType: sch.Type,
		Prefix:      sch.Prefix,
		CreatedBy:   actor.UserID,
		Now:         s.now(),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate batch")
	}
	s.logger.Info("batch generated", zap.String("batch_number", batch.BatchNumber), zap.String("request_type", string(batch.RequestType)))
	emitAudit(ctx, s.audit, s.logger, batchServiceAgent, &models.AuditLog{
		UserID:     stringPtr(actor.UserID),
		Action:     models.AuditActionBatchCreate,
		Resource:   auditResourceBatch,
		ResourceID: stringPtr(batch.BatchNumber),
		NewValues:  auditSnapshot(batch),
	})
	return batch, nil
}

// List returns a page of batches.
func (s *BatchService) List(ctx context.Context, query dto.BatchQuery, actor *models.JWTClaims) ([]models.Batch, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if query.RequestType != "" && !query.RequestType.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request type %q", query.RequestType))
	}
	for _, status := range query.Status {
		switch status {
		case models.BatchStatusOpen, models.BatchStatusSubmitted, models.BatchStatusPosted:
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown batch status %q", status))
		}
	}
	filter := models.BatchFilter{
		RequestType: query.RequestType,
		Status:      query.Status,
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if query.Mine {
		filter.CreatedBy = actor.UserID
	}
	batches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	if batches == nil {
		batches = []models.Batch{}
	}
	page, size := query.Page, query.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return batches, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a batch with its records.
func (s *BatchService) Get(ctx context.Context, batchNumber string) (*dto.BatchDetail, error) {
	batch, err := loadBatch(ctx, s.repo, batchNumber)
	if err != nil {
		return nil, err
	}
	records, err := s.records.List(ctx, batch.BatchNumber, "")
	if err != nil {
		return nil, err
	}
	return &dto.BatchDetail{Batch: *batch, Records: records}, nil
}

// Post closes an open batch for editing and hands it to the dispatcher.
// Empty batches are refused.
func (s *BatchService) Post(ctx context.Context, batchNumber string, actor *models.JWTClaims) (*models.Batch, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	batchNumber = strings.TrimSpace(batchNumber)
	var posted *models.Batch
	err := withLock(ctx, s.locker, s.logger, batchLockKey(batchNumber), s.lockTTL, func() error {
		batch, err := loadBatch(ctx, s.repo, batchNumber)
		if err != nil {
			return err
		}
		if !batch.Editable() {
			return closedBatchError(batch)
		}
		records, err := s.records.List(ctx, batch.BatchNumber, "")
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return appErrors.Clone(appErrors.ErrEmptyBatch, fmt.Sprintf("batch %s has no records to post", batch.BatchNumber))
		}

		at := s.now()
		if err := s.repo.TransitionStatus(ctx, batch.BatchNumber, models.BatchStatusOpen, models.BatchStatusSubmitted, at); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrBatchClosed, fmt.Sprintf("batch %s is no longer open", batch.BatchNumber))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to post batch")
		}
		batch.Status = models.BatchStatusSubmitted
		batch.DateSubmitted = &at
		batch.TotalRecord = len(records)
		posted = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.cache.Delete(ctx, recordsCacheKey(posted.BatchNumber))
	s.metrics.RecordPost(posted.RequestType)
	emitAudit(ctx, s.audit, s.logger, batchServiceAgent, &models.AuditLog{
		UserID:     stringPtr(actor.UserID),
		Action:     models.AuditActionBatchPost,
		Resource:   auditResourceBatch,
		ResourceID: stringPtr(posted.BatchNumber),
		NewValues:  auditSnapshot(posted),
	})
	if s.dispatcher != nil {
		if err := s.dispatcher.Enqueue(posted.BatchNumber, actor.UserID); err != nil {
			// The batch stays SUBMITTED and is picked up again on restart.
			s.logger.Error("failed to enqueue dispatch", zap.String("batch_number", posted.BatchNumber), zap.Error(err))
		}
	}
	return posted, nil
}

// Export renders a batch in the requested format.
func (s *BatchService) Export(ctx context.Context, batchNumber, format string) (*dto.ExportFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	detail, err := s.Get(ctx, batchNumber)
	if err != nil {
		return nil, err
	}
	dataset, err := s.dataset(detail)
	if err != nil {
		return nil, err
	}
	renderer := export.RendererFor(f)
	data, err := renderer.Render(*dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.ExportFile{
		Filename:    detail.Batch.BatchNumber + renderer.Extension(),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func (s *BatchService) dataset(detail *dto.BatchDetail) (*export.Dataset, error) {
	records := make([]models.BatchRecord, 0, len(detail.Records))
	for _, view := range detail.Records {
		records = append(records, view.BatchRecord)
	}
	return BuildDataset(s.registry, detail.Batch, records)
}

// BuildDataset flattens batch records into a table whose columns follow the
// request type's field order.
func BuildDataset(registry *schema.Registry, batch models.Batch, records []models.BatchRecord) (*export.Dataset, error) {
	sch, err := registry.Lookup(batch.RequestType)
	if err != nil {
		return nil, err
	}
	columns := sch.Columns()
	headers := append([]string{"record_id"}, columns...)
	headers = append(headers, "image_path", "created_by")
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		values, err := schema.Flatten(record.Payload, columns)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read record payload")
		}
		image := ""
		if record.ImagePath != nil {
			image = *record.ImagePath
		}
		row := append([]string{record.ID}, values...)
		row = append(row, image, record.CreatedBy)
		rows = append(rows, row)
	}
	return &export.Dataset{
		Title: fmt.Sprintf("%s %s", sch.Label, batch.BatchNumber),
		Subtitle: []string{
			fmt.Sprintf("Status: %s", batch.Status),
			fmt.Sprintf("Records: %d", len(records)),
			fmt.Sprintf("Created by %s on %s", batch.CreatedBy, batch.DateCreated.Format("2006-01-02 15:04")),
		},
		Headers: headers,
		Rows:    rows,
	}, nil
}

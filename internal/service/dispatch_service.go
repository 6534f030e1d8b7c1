package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/schema"
	"github.com/noah-isme/merch-batch-api/pkg/events"
	"github.com/noah-isme/merch-batch-api/pkg/export"
	"github.com/noah-isme/merch-batch-api/pkg/jobs"
	"github.com/noah-isme/merch-batch-api/pkg/storage"
)

// JobTypeDispatch identifies batch dispatch jobs on the queue.
const JobTypeDispatch = "batch.dispatch"

// Dispatch results reported to metrics.
const (
	DispatchPosted  = "posted"
	DispatchRetried = "retried"
	DispatchGaveUp  = "gave_up"
	DispatchSkipped = "skipped"
)

// DispatchPayload is the job body of a posted batch.
type DispatchPayload struct {
	BatchNumber string
	PostedBy    string
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

type rawRecordLister interface {
	ListByBatch(ctx context.Context, batchNumber string) ([]models.BatchRecord, error)
}

// DispatchService hands SUBMITTED batches downstream: it writes the batch
// file to storage, publishes a batch.posted event and marks the batch POSTED.
type DispatchService struct {
	batches   batchStore
	records   rawRecordLister
	registry  *schema.Registry
	store     storage.Storage
	publisher events.Publisher
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	queue     jobQueue
	now       func() time.Time
}

// NewDispatchService constructs the service. store and publisher are optional.
func NewDispatchService(batches batchStore, records rawRecordLister, registry *schema.Registry, store storage.Storage, publisher events.Publisher, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = schema.NewRegistry(nil)
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &DispatchService{
		batches:   batches,
		records:   records,
		registry:  registry,
		store:     store,
		publisher: publisher,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Attach sets the queue jobs are enqueued on.
func (s *DispatchService) Attach(queue jobQueue) {
	s.queue = queue
}

// Enqueue schedules dispatch of a batch.
func (s *DispatchService) Enqueue(batchNumber, postedBy string) error {
	if s.queue == nil {
		return errors.New("dispatch queue not attached")
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeDispatch,
		Payload: DispatchPayload{BatchNumber: batchNumber, PostedBy: postedBy},
	})
}

// Resume re-enqueues batches left SUBMITTED by a previous process. The
// backlog is listed in full before anything is enqueued, since running
// workers shrink the SUBMITTED set while it is being paged.
func (s *DispatchService) Resume(ctx context.Context) (int, error) {
	const pageSize = 200
	var pending []string
	for page := 1; ; page++ {
		batches, total, err := s.batches.List(ctx, models.BatchFilter{
			Status:   []models.BatchStatus{models.BatchStatusSubmitted},
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			return 0, fmt.Errorf("list submitted batches: %w", err)
		}
		for _, batch := range batches {
			pending = append(pending, batch.BatchNumber)
		}
		if len(batches) == 0 || page*pageSize >= total {
			break
		}
	}
	queued := 0
	for _, batchNumber := range pending {
		if err := s.Enqueue(batchNumber, ""); err != nil {
			return queued, err
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info("resumed pending dispatches", zap.Int("count", queued))
	}
	return queued, nil
}

// Handle processes one dispatch job. Returning an error lets the queue retry.
func (s *DispatchService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(DispatchPayload)
	if !ok {
		s.logger.Error("unexpected dispatch payload", zap.String("job_id", job.ID))
		return nil
	}
	start := time.Now()
	logger := s.logger.With(zap.String("batch_number", payload.BatchNumber), zap.Int("attempt", job.Attempt))

	batch, err := s.batches.GetByNumber(ctx, payload.BatchNumber)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Warn("dispatch for unknown batch dropped")
		s.metrics.RecordDispatch(DispatchSkipped, 0)
		return nil
	}
	if err != nil {
		s.metrics.RecordDispatch(DispatchRetried, 0)
		return fmt.Errorf("load batch: %w", err)
	}
	if batch.Status != models.BatchStatusSubmitted {
		logger.Info("batch not awaiting dispatch", zap.String("status", string(batch.Status)))
		s.metrics.RecordDispatch(DispatchSkipped, 0)
		return nil
	}

	records, err := s.records.ListByBatch(ctx, batch.BatchNumber)
	if err != nil {
		s.metrics.RecordDispatch(DispatchRetried, 0)
		return fmt.Errorf("list records: %w", err)
	}
	artifact, err := s.writeArtifact(ctx, batch, records)
	if err != nil {
		s.metrics.RecordDispatch(DispatchRetried, 0)
		return err
	}

	if _, err := s.publisher.Publish(ctx, events.BatchEvent{
		Type:          events.TypeBatchPosted,
		BatchNumber:   batch.BatchNumber,
		RequestType:   string(batch.RequestType),
		TotalRecord:   len(records),
		ArtifactKey:   artifact,
		PostedBy:      payload.PostedBy,
		OccurredAt:    s.now(),
		CorrelationID: job.ID,
	}); err != nil {
		s.metrics.RecordDispatch(DispatchRetried, 0)
		return err
	}

	err = s.batches.TransitionStatus(ctx, batch.BatchNumber, models.BatchStatusSubmitted, models.BatchStatusPosted, s.now())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordDispatch(DispatchRetried, 0)
		return fmt.Errorf("mark batch posted: %w", err)
	}
	_ = s.cache.Delete(ctx, recordsCacheKey(batch.BatchNumber))
	s.metrics.RecordDispatch(DispatchPosted, time.Since(start))
	logger.Info("batch dispatched", zap.String("artifact", artifact), zap.Int("records", len(records)))
	return nil
}

// GiveUp is the queue callback for jobs that exhausted their retries.
func (s *DispatchService) GiveUp(job jobs.Job, err error) {
	s.metrics.RecordDispatch(DispatchGaveUp, 0)
	batchNumber := ""
	if payload, ok := job.Payload.(DispatchPayload); ok {
		batchNumber = payload.BatchNumber
	}
	s.logger.Error("batch dispatch abandoned, batch stays SUBMITTED",
		zap.String("batch_number", batchNumber), zap.Int("attempts", job.Attempt), zap.Error(err))
}

func (s *DispatchService) writeArtifact(ctx context.Context, batch *models.Batch, records []models.BatchRecord) (string, error) {
	if s.store == nil {
		return "", nil
	}
	dataset, err := BuildDataset(s.registry, *batch, records)
	if err != nil {
		return "", err
	}
	renderer := export.NewCSVExporter()
	data, err := renderer.Render(*dataset)
	if err != nil {
		return "", fmt.Errorf("render dispatch file: %w", err)
	}
	key := fmt.Sprintf("dispatch/%s/%s%s", batch.RequestType, batch.BatchNumber, renderer.Extension())
	stored, err := s.store.Save(ctx, key, renderer.ContentType(), data)
	if err != nil {
		return "", fmt.Errorf("store dispatch file: %w", err)
	}
	return stored, nil
}

package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/pkg/events"
	"github.com/noah-isme/merch-batch-api/pkg/jobs"
)

type publisherStub struct {
	events []events.BatchEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, event events.BatchEvent) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "msg-1", nil
}

type queueStub struct {
	jobs []jobs.Job
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func submittedFixture(t *testing.T) (*batchRepoStub, *recordRepoStub) {
	t.Helper()
	batches, records := barcodeFixtures()
	require.NoError(t, batches.TransitionStatus(context.Background(), cdOther, models.BatchStatusOpen, models.BatchStatusSubmitted, testNow))
	return batches, records
}

func dispatchJob(batchNumber string) jobs.Job {
	return jobs.Job{ID: "job-1", Type: JobTypeDispatch, Payload: DispatchPayload{BatchNumber: batchNumber, PostedBy: "user-1"}}
}

func TestDispatchServiceHandle(t *testing.T) {
	batches, records := submittedFixture(t)
	store := newMemoryStore()
	publisher := &publisherStub{}
	svc := NewDispatchService(batches, records, nil, store, publisher, nil, nil, nil)

	require.NoError(t, svc.Handle(context.Background(), dispatchJob(cdOther)))

	assert.Equal(t, models.BatchStatusPosted, batches.status(cdOther))
	assert.Equal(t, []string{"dispatch/change_description/" + cdOther + ".csv"}, store.keys())
	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, events.TypeBatchPosted, event.Type)
	assert.Equal(t, cdOther, event.BatchNumber)
	assert.Equal(t, 1, event.TotalRecord)
	assert.Equal(t, "user-1", event.PostedBy)
	assert.Equal(t, "job-1", event.CorrelationID)

	// a second delivery is a no-op
	require.NoError(t, svc.Handle(context.Background(), dispatchJob(cdOther)))
	assert.Len(t, publisher.events, 1)
}

func TestDispatchServiceHandleSkipsOpenBatches(t *testing.T) {
	batches, records := submittedFixture(t)
	publisher := &publisherStub{}
	svc := NewDispatchService(batches, records, nil, nil, publisher, nil, nil, nil)

	require.NoError(t, svc.Handle(context.Background(), dispatchJob(cdOpen)))
	require.NoError(t, svc.Handle(context.Background(), dispatchJob("CD-19990101-0001")))
	assert.Empty(t, publisher.events)
	assert.Equal(t, models.BatchStatusOpen, batches.status(cdOpen))
}

func TestDispatchServiceHandleRetriesOnPublishFailure(t *testing.T) {
	batches, records := submittedFixture(t)
	svc := NewDispatchService(batches, records, nil, newMemoryStore(), &publisherStub{err: errBoom}, nil, nil, nil)

	err := svc.Handle(context.Background(), dispatchJob(cdOther))
	require.Error(t, err)
	assert.Equal(t, models.BatchStatusSubmitted, batches.status(cdOther))

	// giving up leaves the batch for the next resume
	svc.GiveUp(dispatchJob(cdOther), err)
	assert.Equal(t, models.BatchStatusSubmitted, batches.status(cdOther))
}

// postingQueue marks each batch POSTED as soon as it is enqueued, the way
// running workers drain the SUBMITTED set.
type postingQueue struct {
	batches *batchRepoStub
	queued  []string
}

func (q *postingQueue) Enqueue(job jobs.Job) error {
	batchNumber := job.Payload.(DispatchPayload).BatchNumber
	q.queued = append(q.queued, batchNumber)
	return q.batches.TransitionStatus(context.Background(), batchNumber, models.BatchStatusSubmitted, models.BatchStatusPosted, testNow)
}

func TestDispatchServiceResumeLargeBacklogWhileDraining(t *testing.T) {
	batches, records := barcodeFixtures()
	for i := 1; i <= 450; i++ {
		number := fmt.Sprintf("PC-20260101-%04d", i)
		batches.batches[number] = &models.Batch{BatchNumber: number, RequestType: models.RequestChangePriceCost, Status: models.BatchStatusSubmitted, DateCreated: testNow}
	}
	svc := NewDispatchService(batches, records, nil, nil, nil, nil, nil, nil)
	queue := &postingQueue{batches: batches}
	svc.Attach(queue)

	count, err := svc.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 450, count)
	assert.Len(t, queue.queued, 450)
	for number, batch := range batches.batches {
		assert.NotEqual(t, models.BatchStatusSubmitted, batch.Status, number)
	}
}

func TestDispatchServiceResume(t *testing.T) {
	batches, records := submittedFixture(t)
	svc := NewDispatchService(batches, records, nil, nil, nil, nil, nil, nil)

	require.Error(t, svc.Enqueue(cdOther, "user-1"))

	queue := &queueStub{}
	svc.Attach(queue)
	count, err := svc.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeDispatch, queue.jobs[0].Type)
	assert.Equal(t, cdOther, queue.jobs[0].Payload.(DispatchPayload).BatchNumber)
	assert.Equal(t, []models.BatchStatus{models.BatchStatusSubmitted}, batches.filter.Status)
}

func TestDispatchServiceRunsOnQueue(t *testing.T) {
	batches, records := submittedFixture(t)
	publisher := &publisherStub{}
	svc := NewDispatchService(batches, records, nil, nil, publisher, nil, nil, nil)
	done := make(chan struct{})
	queue := jobs.NewQueue("dispatch", func(ctx context.Context, job jobs.Job) error {
		defer close(done)
		return svc.Handle(ctx, job)
	}, jobs.QueueConfig{Workers: 1})
	svc.Attach(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, svc.Enqueue(cdOther, "user-1"))
	<-done
	assert.Equal(t, models.BatchStatusPosted, batches.status(cdOther))
}

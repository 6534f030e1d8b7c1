package console

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/schema"
)

// State is the position of a submission in the save workflow.
type State string

const (
	StateIdle               State = "IDLE"
	StateConfirmOpen        State = "CONFIRM_OPEN"
	StateCheckingUniqueness State = "CHECKING_UNIQUENESS"
	StateSaving             State = "SAVING"
)

// Outcome is how a confirmed submission ended.
type Outcome string

const (
	OutcomeSaved    Outcome = "SAVED"
	OutcomeConflict Outcome = "CONFLICT"
	OutcomeFailed   Outcome = "FAILED"
)

// Notification titles and fallbacks.
const (
	titleSuccess       = "Success"
	titleError         = "Error"
	titleBarcodeUsed   = "Barcode Already Used"
	titleCannotPost    = "Cannot Post Batch"
	fallbackFailure    = "Something went wrong. Please try again."
	messageEmptyBatch  = "Add at least one record before posting the batch."
	messageRecordSaved = "Record saved."
)

var (
	// ErrNotConfirming is returned when Confirm runs without an open confirmation.
	ErrNotConfirming = errors.New("console: no submission awaiting confirmation")
	// ErrBusy is returned while another submission is in flight.
	ErrBusy = errors.New("console: a submission is already in progress")
	// ErrEmptyBatch is returned when posting a batch without records.
	ErrEmptyBatch = errors.New("console: batch has no records")
)

// Workflow runs the staged-edit save pipeline of one batch page: local
// validation, confirmation, the barcode guard and the save.
type Workflow struct {
	api         API
	form        *Form
	notifier    Notifier
	logger      *zap.Logger
	batchNumber string

	mu      sync.Mutex
	state   State
	busy    bool
	pending *schema.Prepared
	records []dto.BatchRecordView
}

// NewWorkflow binds a form to a batch.
func NewWorkflow(api API, form *Form, notifier Notifier, batchNumber string, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		api:         api,
		form:        form,
		notifier:    notifier,
		logger:      logger.With(zap.String("batch_number", batchNumber), zap.String("request_type", string(form.RequestType()))),
		batchNumber: batchNumber,
		state:       StateIdle,
	}
}

// State returns the current workflow state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Busy reports whether a confirmed submission is in flight.
func (w *Workflow) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Pending returns the validated record awaiting confirmation.
func (w *Workflow) Pending() *schema.Prepared {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// Records returns the batch records last loaded.
func (w *Workflow) Records() []dto.BatchRecordView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]dto.BatchRecordView(nil), w.records...)
}

// Init loads the UOM reference list and the batch records.
func (w *Workflow) Init(ctx context.Context) error {
	uoms, err := w.api.UOMs(ctx)
	if err != nil {
		w.fail(err, titleError)
		return err
	}
	w.form.LoadUOMs(uoms)
	return w.Refresh(ctx)
}

// Refresh reloads the batch records.
func (w *Workflow) Refresh(ctx context.Context) error {
	records, err := w.api.ListRecords(ctx, w.batchNumber, w.form.RequestType())
	if err != nil {
		w.fail(err, titleError)
		return err
	}
	w.mu.Lock()
	w.records = records
	w.mu.Unlock()
	return nil
}

// Submit validates the form locally and opens the confirmation. Nothing is
// sent on a validation failure; the field errors stay on the form.
func (w *Workflow) Submit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	prepared, err := w.form.Validate()
	if err != nil {
		w.state = StateIdle
		w.pending = nil
		return err
	}
	w.pending = prepared
	w.state = StateConfirmOpen
	return nil
}

// Cancel closes the confirmation and drops the pending record.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateConfirmOpen {
		return
	}
	w.state = StateIdle
	w.pending = nil
}

// Confirm runs the barcode guard and, when the barcode is free, saves the
// pending record. The save is never attempted after a conflict or a failed
// check. Nothing is retried.
func (w *Workflow) Confirm(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return "", ErrBusy
	}
	if w.state != StateConfirmOpen || w.pending == nil {
		w.mu.Unlock()
		return "", ErrNotConfirming
	}
	pending := w.pending
	w.busy = true
	w.state = StateCheckingUniqueness
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.busy = false
		w.state = StateIdle
		w.pending = nil
		w.mu.Unlock()
	}()

	if pending.Schema.UniqueBarcode {
		result := w.checkBarcode(ctx, pending)
		switch result.Outcome {
		case models.GuardOK:
		case models.GuardConflict:
			title := result.Title
			if title == "" {
				title = titleBarcodeUsed
			}
			w.notify(false, title, result.Message)
			w.logger.Info("save stopped by barcode guard", zap.String("barcode", pending.Key.Barcode))
			return OutcomeConflict, nil
		default:
			w.notify(false, orDefault(result.Title, titleError), orDefault(result.Message, fallbackFailure))
			return OutcomeFailed, nil
		}
	}

	w.mu.Lock()
	w.state = StateSaving
	w.mu.Unlock()

	_, err := w.api.SaveRecord(ctx, w.batchNumber, Submission{
		RequestType: pending.Schema.Type,
		Payload:     pending.Raw,
		Image:       w.form.Image(),
	})
	if err != nil {
		w.fail(err, titleError)
		return OutcomeFailed, nil
	}

	w.notify(true, titleSuccess, messageRecordSaved)
	w.form.Reset()
	if err := w.Refresh(ctx); err != nil {
		w.logger.Warn("failed to refresh records after save", zap.Error(err))
	}
	return OutcomeSaved, nil
}

// Update saves the form over an existing record. The barcode guard is not
// consulted.
func (w *Workflow) Update(ctx context.Context, id string) error {
	prepared, err := w.form.Validate()
	if err != nil {
		return err
	}
	_, err = w.api.UpdateRecord(ctx, w.batchNumber, id, Submission{
		RequestType: prepared.Schema.Type,
		Payload:     prepared.Raw,
		Image:       w.form.Image(),
	})
	if err != nil {
		w.fail(err, titleError)
		return err
	}
	w.notify(true, titleSuccess, "Record updated.")
	w.form.Reset()
	return w.Refresh(ctx)
}

// Delete removes a record without confirmation or guard.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if err := w.api.DeleteRecord(ctx, w.batchNumber, id); err != nil {
		w.fail(err, titleError)
		return err
	}
	w.notify(true, titleSuccess, "Record deleted.")
	return w.Refresh(ctx)
}

// PostBatch finalises the batch. A batch without records is refused
// without calling the service.
func (w *Workflow) PostBatch(ctx context.Context) error {
	w.mu.Lock()
	empty := len(w.records) == 0
	w.mu.Unlock()
	if empty {
		w.notify(false, titleCannotPost, messageEmptyBatch)
		return ErrEmptyBatch
	}
	batch, err := w.api.PostBatch(ctx, w.batchNumber)
	if err != nil {
		w.fail(err, titleCannotPost)
		return err
	}
	w.notify(true, titleSuccess, fmt.Sprintf("Batch %s posted.", batch.BatchNumber))
	return nil
}

func (w *Workflow) checkBarcode(ctx context.Context, pending *schema.Prepared) models.GuardResult {
	result, err := w.api.CheckBarcodeUsed(ctx, pending.Key.Barcode, w.batchNumber, pending.Schema.Type)
	if err != nil {
		title, message := describe(err, titleError, fallbackFailure)
		return models.NewGuardResult(models.GuardFailure, title, message)
	}
	return result
}

func (w *Workflow) fail(err error, title string) {
	title, message := describe(err, title, fallbackFailure)
	w.notify(false, title, message)
}

func (w *Workflow) notify(ok bool, title, message string) {
	if w.notifier == nil {
		return
	}
	if ok {
		w.notifier.Success(title, message)
		return
	}
	w.notifier.Error(title, message)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/merch-batch-api/internal/models"
)

const batchColumns = `batch_number, request_type, batch_status, total_record, created_by, date_created, date_submitted, date_posted`

// BatchRepository persists batch headers and their numbering sequences.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// CreateBatchParams describes a batch to open.
type CreateBatchParams struct {
	RequestType models.RequestType
	Prefix      string
	CreatedBy   string
	Now         time.Time
}

// Create allocates the next number for the request type and inserts an OPEN
// batch in one transaction.
func (r *BatchRepository) Create(ctx context.Context, params CreateBatchParams) (*models.Batch, error) {
	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seq, err := nextSequenceInTx(ctx, tx, params.RequestType)
	if err != nil {
		return nil, err
	}
	batch := &models.Batch{
		BatchNumber: FormatBatchNumber(params.Prefix, now, seq),
		RequestType: params.RequestType,
		Status:      models.BatchStatusOpen,
		CreatedBy:   params.CreatedBy,
		DateCreated: now,
	}
	const query = `INSERT INTO batches (batch_number, request_type, batch_status, total_record, created_by, date_created)
	VALUES (:batch_number, :request_type, :batch_status, :total_record, :created_by, :date_created)`
	if _, err := tx.NamedExecContext(ctx, query, batch); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create batch: %w", err)
	}
	return batch, nil
}

// nextSequenceInTx bumps and returns the counter of a request type, creating
// it on first use.
func nextSequenceInTx(ctx context.Context, tx *sqlx.Tx, requestType models.RequestType) (int, error) {
	const query = `INSERT INTO batch_sequences (request_type, last_no) VALUES ($1, 1)
	ON CONFLICT (request_type) DO UPDATE SET last_no = batch_sequences.last_no + 1
	RETURNING last_no`
	var lastNo int
	if err := tx.GetContext(ctx, &lastNo, query, requestType); err != nil {
		return 0, fmt.Errorf("next batch sequence for %s: %w", requestType, err)
	}
	return lastNo, nil
}

// FormatBatchNumber renders PREFIX-YYYYMMDD-NNNN.
func FormatBatchNumber(prefix string, at time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, at.Format("20060102"), seq)
}

// GetByNumber fetches a batch header.
func (r *BatchRepository) GetByNumber(ctx context.Context, batchNumber string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE batch_number = $1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, batchNumber); err != nil {
		return nil, err
	}
	return &batch, nil
}

// List returns batches matching the filter newest first with the total count.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 3)
	if filter.RequestType != "" {
		args = append(args, filter.RequestType)
		conditions = append(conditions, fmt.Sprintf("request_type = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("batch_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM batches"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM batches%s ORDER BY date_created DESC, batch_number DESC LIMIT %d OFFSET %d",
		batchColumns, where, size, (page-1)*size)
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	return batches, total, nil
}

// TransitionStatus moves a batch from one status to the next, stamping the
// matching date column. It returns sql.ErrNoRows when the batch is not in
// the expected status.
func (r *BatchRepository) TransitionStatus(ctx context.Context, batchNumber string, from, to models.BatchStatus, at time.Time) error {
	column := "date_submitted"
	if to == models.BatchStatusPosted {
		column = "date_posted"
	}
	query := fmt.Sprintf(`UPDATE batches SET batch_status = $1, %s = $2 WHERE batch_number = $3 AND batch_status = $4`, column)
	result, err := r.db.ExecContext(ctx, query, to, at, batchNumber, from)
	if err != nil {
		return fmt.Errorf("transition batch %s: %w", batchNumber, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check batch transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalisePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return page, size
}
